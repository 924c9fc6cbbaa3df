package geom

import (
	"errors"
	"math"
)

// ErrNoVertices is returned when bounds are requested for an empty vertex set.
var ErrNoVertices = errors.New("geom: no vertices")

// Box is an axis-aligned bounding box. Once computed from a non-empty vertex
// set, Min <= Max on every axis.
type Box struct {
	Min Vec3
	Max Vec3
}

// Size returns the extent of the box on each axis.
func (b Box) Size() Vec3 {
	return b.Max.Sub(b.Min)
}

// Contains reports whether p lies inside the closed box.
func (b Box) Contains(p Vec3) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// IsFinite reports whether both corners are finite.
func (b Box) IsFinite() bool {
	return b.Min.IsFinite() && b.Max.IsFinite()
}

// Reduce folds points into a box, starting from Min=+Inf and Max=-Inf on
// every axis. For an empty input the result keeps those sentinels; use
// ComputeBounds unless the caller has already guarded against that.
func Reduce(points []Vec3) Box {
	inf := math.Inf(1)
	b := Box{
		Min: Vec3{inf, inf, inf},
		Max: Vec3{-inf, -inf, -inf},
	}
	for _, p := range points {
		if p.X < b.Min.X {
			b.Min.X = p.X
		}
		if p.X > b.Max.X {
			b.Max.X = p.X
		}
		if p.Y < b.Min.Y {
			b.Min.Y = p.Y
		}
		if p.Y > b.Max.Y {
			b.Max.Y = p.Y
		}
		if p.Z < b.Min.Z {
			b.Min.Z = p.Z
		}
		if p.Z > b.Max.Z {
			b.Max.Z = p.Z
		}
	}
	return b
}

// ComputeBounds returns the axis-aligned bounding box of points.
// It returns ErrNoVertices for an empty slice.
func ComputeBounds(points []Vec3) (Box, error) {
	if len(points) == 0 {
		return Box{}, ErrNoVertices
	}
	return Reduce(points), nil
}
