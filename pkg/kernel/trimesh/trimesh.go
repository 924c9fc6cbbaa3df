// Package trimesh implements kernel.Surface over an indexed triangle mesh,
// the representation a host scene usually hands over for a selected
// polygonal object. Nearest-point queries are exact closest points on the
// triangles.
package trimesh

import (
	"errors"
	"fmt"
	"math"

	"github.com/chazu/voxelizer/pkg/geom"
	"github.com/chazu/voxelizer/pkg/kernel"
)

// Compile-time interface check.
var _ kernel.Surface = (*Mesh)(nil)

// ErrNoTriangles is returned when a mesh has no faces to query against.
var ErrNoTriangles = errors.New("trimesh: no triangles")

// Mesh is an indexed triangle mesh. Faces index into Verts, three per
// triangle. A Mesh is immutable after construction and safe for concurrent
// queries.
type Mesh struct {
	name  string
	verts []geom.Vec3
	faces []int

	// per-triangle bounding spheres, used to skip triangles that cannot
	// beat the current best distance
	centers []geom.Vec3
	radii   []float64
}

// New builds a mesh from vertex positions and triangle indices.
func New(name string, verts []geom.Vec3, faces []int) (*Mesh, error) {
	if len(faces) == 0 {
		return nil, ErrNoTriangles
	}
	if len(faces)%3 != 0 {
		return nil, fmt.Errorf("trimesh: %d face indices is not a multiple of 3", len(faces))
	}
	for i, idx := range faces {
		if idx < 0 || idx >= len(verts) {
			return nil, fmt.Errorf("trimesh: face index %d at %d out of range [0,%d)", idx, i, len(verts))
		}
	}

	m := &Mesh{
		name:    name,
		verts:   verts,
		faces:   faces,
		centers: make([]geom.Vec3, len(faces)/3),
		radii:   make([]float64, len(faces)/3),
	}
	for t := range m.centers {
		a, b, c := m.triangle(t)
		center := a.Add(b).Add(c).Scale(1.0 / 3)
		r := math.Max(center.Sub(a).Length(), math.Max(center.Sub(b).Length(), center.Sub(c).Length()))
		m.centers[t] = center
		m.radii[t] = r
	}
	return m, nil
}

// Name returns the mesh name.
func (m *Mesh) Name() string {
	return m.name
}

// Vertices returns the mesh vertex positions.
func (m *Mesh) Vertices() []geom.Vec3 {
	return m.verts
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.faces) / 3
}

func (m *Mesh) triangle(t int) (a, b, c geom.Vec3) {
	return m.verts[m.faces[3*t]], m.verts[m.faces[3*t+1]], m.verts[m.faces[3*t+2]]
}

// NearestPoint returns the closest point on any triangle to p.
func (m *Mesh) NearestPoint(p geom.Vec3) (geom.Vec3, bool) {
	if !p.IsFinite() {
		return geom.Vec3{}, false
	}
	best := math.Inf(1)
	var closest geom.Vec3
	for t := range m.centers {
		// Lower bound on the distance to anything in this triangle.
		lb := p.Sub(m.centers[t]).Length() - m.radii[t]
		if lb > 0 && lb*lb >= best {
			continue
		}
		a, b, c := m.triangle(t)
		q := ClosestPointOnTriangle(p, a, b, c)
		d := p.Sub(q)
		if d2 := d.Dot(d); d2 < best {
			best = d2
			closest = q
		}
	}
	if math.IsInf(best, 1) {
		return geom.Vec3{}, false
	}
	return closest, true
}

// ClosestPointOnTriangle returns the point of triangle abc closest to p,
// classifying p against the triangle's vertex, edge and face regions.
func ClosestPointOnTriangle(p, a, b, c geom.Vec3) geom.Vec3 {
	ab := b.Sub(a)
	ac := c.Sub(a)
	ap := p.Sub(a)

	d1 := ab.Dot(ap)
	d2 := ac.Dot(ap)
	if d1 <= 0 && d2 <= 0 {
		return a
	}

	bp := p.Sub(b)
	d3 := ab.Dot(bp)
	d4 := ac.Dot(bp)
	if d3 >= 0 && d4 <= d3 {
		return b
	}

	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		v := d1 / (d1 - d3)
		return a.Add(ab.Scale(v))
	}

	cp := p.Sub(c)
	d5 := ab.Dot(cp)
	d6 := ac.Dot(cp)
	if d6 >= 0 && d5 <= d6 {
		return c
	}

	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		w := d2 / (d2 - d6)
		return a.Add(ac.Scale(w))
	}

	va := d3*d6 - d5*d4
	if va <= 0 && (d4-d3) >= 0 && (d5-d6) >= 0 {
		w := (d4 - d3) / ((d4 - d3) + (d5 - d6))
		return b.Add(c.Sub(b).Scale(w))
	}

	denom := va + vb + vc
	if denom == 0 {
		// Degenerate (zero-area) triangle: every region test above failed
		// only through rounding; fall back to the nearest vertex.
		return nearestOf(p, a, b, c)
	}
	v := vb / denom
	w := vc / denom
	return a.Add(ab.Scale(v)).Add(ac.Scale(w))
}

func nearestOf(p geom.Vec3, pts ...geom.Vec3) geom.Vec3 {
	best := pts[0]
	bestD := p.Sub(best).Length()
	for _, q := range pts[1:] {
		if d := p.Sub(q).Length(); d < bestD {
			best, bestD = q, d
		}
	}
	return best
}

// Cube returns a closed, outward-wound cube mesh spanning min..max,
// two triangles per face.
func Cube(name string, min, max geom.Vec3) *Mesh {
	verts := make([]geom.Vec3, 8)
	for i := range verts {
		v := min
		if i&4 != 0 {
			v.X = max.X
		}
		if i&2 != 0 {
			v.Y = max.Y
		}
		if i&1 != 0 {
			v.Z = max.Z
		}
		verts[i] = v
	}
	faces := []int{
		0, 1, 3, 0, 3, 2, // -x
		4, 6, 7, 4, 7, 5, // +x
		0, 4, 5, 0, 5, 1, // -y
		2, 3, 7, 2, 7, 6, // +y
		0, 2, 6, 0, 6, 4, // -z
		1, 5, 7, 1, 7, 3, // +z
	}
	m, err := New(name, verts, faces)
	if err != nil {
		panic(fmt.Sprintf("trimesh.Cube: %v", err))
	}
	return m
}
