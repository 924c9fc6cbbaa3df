package voxel

import (
	"fmt"
	"math"

	"github.com/chazu/voxelizer/pkg/geom"
)

// Proximity decides whether a lattice point p counts as "on" the surface
// given the oracle's closest point. The shape of this test is a policy, not
// a detail: the box test is the default, the sphere test is the Euclidean
// alternative.
type Proximity interface {
	Near(p, closest geom.Vec3, resolution float64) bool
	String() string
}

var (
	// BoxProximity occupies p when |p.a - closest.a| < resolution on every
	// axis independently. This yields a shell about one voxel wide and is
	// looser than a Euclidean test near edges and corners.
	BoxProximity Proximity = boxProximity{}

	// SphereProximity occupies p when |p - closest| < resolution.
	SphereProximity Proximity = sphereProximity{}
)

type boxProximity struct{}

func (boxProximity) Near(p, c geom.Vec3, r float64) bool {
	return math.Abs(p.X-c.X) < r &&
		math.Abs(p.Y-c.Y) < r &&
		math.Abs(p.Z-c.Z) < r
}

func (boxProximity) String() string { return "box" }

type sphereProximity struct{}

func (sphereProximity) Near(p, c geom.Vec3, r float64) bool {
	d := p.Sub(c)
	return d.Dot(d) < r*r
}

func (sphereProximity) String() string { return "sphere" }

// ParseProximity maps a policy name ("box", "sphere") to its Proximity.
// The empty string selects BoxProximity.
func ParseProximity(name string) (Proximity, error) {
	switch name {
	case "", "box":
		return BoxProximity, nil
	case "sphere":
		return SphereProximity, nil
	}
	return nil, fmt.Errorf("voxel: unknown proximity policy %q (want box or sphere)", name)
}
