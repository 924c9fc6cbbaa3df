// Package sdfx implements kernel.Surface using the
// github.com/deadsy/sdfx SDF-based CAD library. Nearest-point queries walk
// down the distance field gradient; vertices come from a marching cubes
// tessellation of the field.
package sdfx

import (
	"fmt"
	"math"
	"sync"

	"github.com/chazu/voxelizer/pkg/geom"
	"github.com/chazu/voxelizer/pkg/kernel"
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Compile-time interface check.
var _ kernel.Surface = (*Surface)(nil)

// DefaultMeshCells controls marching cubes tessellation resolution.
const DefaultMeshCells = 64

// maxProjectSteps bounds the gradient walk in NearestPoint.
const maxProjectSteps = 32

// Surface wraps an sdf.SDF3 to implement kernel.Surface.
type Surface struct {
	name  string
	s     sdf.SDF3
	cells int

	// scale is the bounding box diagonal (at least 1); tolerances are
	// relative to it.
	scale float64

	once  sync.Once
	mesh  *kernel.Mesh
	verts []geom.Vec3
}

// New wraps an arbitrary SDF3. cells <= 0 selects DefaultMeshCells.
func New(name string, s sdf.SDF3, cells int) *Surface {
	if cells <= 0 {
		cells = DefaultMeshCells
	}
	bb := s.BoundingBox()
	scale := fromV3(bb.Max).Sub(fromV3(bb.Min)).Length()
	if scale < 1 {
		scale = 1
	}
	return &Surface{name: name, s: s, cells: cells, scale: scale}
}

// Box creates a box with the given dimensions. The resulting surface has its
// minimum corner at the origin (0,0,0); sdf.Box3D centers the box at the
// origin, so we translate by half-dimensions.
func Box(name string, x, y, z float64) (*Surface, error) {
	s, err := sdf.Box3D(v3.Vec{X: x, Y: y, Z: z}, 0)
	if err != nil {
		return nil, fmt.Errorf("sdfx: box: %w", err)
	}
	m := sdf.Translate3d(v3.Vec{X: x / 2, Y: y / 2, Z: z / 2})
	return New(name, sdf.Transform3D(s, m), 0), nil
}

// Sphere creates a sphere of the given radius centered at the origin.
func Sphere(name string, radius float64) (*Surface, error) {
	s, err := sdf.Sphere3D(radius)
	if err != nil {
		return nil, fmt.Errorf("sdfx: sphere: %w", err)
	}
	return New(name, s, 0), nil
}

// Cylinder creates a Z-aligned cylinder centered at the origin.
func Cylinder(name string, height, radius float64) (*Surface, error) {
	s, err := sdf.Cylinder3D(height, radius, 0)
	if err != nil {
		return nil, fmt.Errorf("sdfx: cylinder: %w", err)
	}
	return New(name, s, 0), nil
}

// Translate returns a copy of the surface moved by (x, y, z).
func (s *Surface) Translate(x, y, z float64) *Surface {
	m := sdf.Translate3d(v3.Vec{X: x, Y: y, Z: z})
	return New(s.name, sdf.Transform3D(s.s, m), s.cells)
}

// Union returns the union of s and o, named after s.
func (s *Surface) Union(o *Surface) *Surface {
	return New(s.name, sdf.Union3D(s.s, o.s), s.cells)
}

// Difference returns s minus o, named after s.
func (s *Surface) Difference(o *Surface) *Surface {
	return New(s.name, sdf.Difference3D(s.s, o.s), s.cells)
}

// WithCells returns a copy that tessellates with the given cell count.
func (s *Surface) WithCells(cells int) *Surface {
	return New(s.name, s.s, cells)
}

// Name returns the surface name.
func (s *Surface) Name() string {
	return s.name
}

// BoundingBox returns the distance field's axis-aligned bounding box.
func (s *Surface) BoundingBox() geom.Box {
	bb := s.s.BoundingBox()
	return geom.Box{Min: fromV3(bb.Min), Max: fromV3(bb.Max)}
}

// Vertices returns the vertices of the tessellated surface.
// The tessellation is computed once and cached.
func (s *Surface) Vertices() []geom.Vec3 {
	s.tessellate()
	return s.verts
}

// ToMesh returns the marching cubes tessellation of the surface.
func (s *Surface) ToMesh() *kernel.Mesh {
	s.tessellate()
	return s.mesh
}

func (s *Surface) tessellate() {
	s.once.Do(func() {
		renderer := render.NewMarchingCubesUniform(s.cells)
		triangles := render.ToTriangles(s.s, renderer)

		numVerts := len(triangles) * 3
		vertices := make([]float32, 0, numVerts*3)
		normals := make([]float32, 0, numVerts*3)
		indices := make([]uint32, 0, numVerts)
		verts := make([]geom.Vec3, 0, numVerts)

		for i, tri := range triangles {
			n := tri.Normal()
			nx := float32(n.X)
			ny := float32(n.Y)
			nz := float32(n.Z)

			for j := 0; j < 3; j++ {
				v := tri[j]
				vertices = append(vertices, float32(v.X), float32(v.Y), float32(v.Z))
				normals = append(normals, nx, ny, nz)
				indices = append(indices, uint32(i*3+j))
				verts = append(verts, geom.Vec3{X: v.X, Y: v.Y, Z: v.Z})
			}
		}

		s.mesh = &kernel.Mesh{
			Vertices: vertices,
			Normals:  normals,
			Indices:  indices,
			Name:     s.name,
		}
		s.verts = verts
	})
}

// Distance evaluates the signed distance at p (negative inside).
func (s *Surface) Distance(p geom.Vec3) float64 {
	return s.s.Evaluate(toV3(p))
}

// NearestPoint projects p onto the zero level set by stepping against the
// normalized gradient. Each step is exact for a true Euclidean distance
// field; bounded or approximate fields converge over several steps.
func (s *Surface) NearestPoint(p geom.Vec3) (geom.Vec3, bool) {
	tol := 1e-9 * s.scale
	q := p
	for i := 0; i < maxProjectSteps; i++ {
		d := s.Distance(q)
		if math.IsNaN(d) {
			return geom.Vec3{}, false
		}
		if math.Abs(d) <= tol {
			return q, true
		}
		g, ok := s.gradient(q)
		if !ok {
			return geom.Vec3{}, false
		}
		q = q.Sub(g.Scale(d))
	}
	if math.Abs(s.Distance(q)) <= 1e-6*s.scale {
		return q, true
	}
	return geom.Vec3{}, false
}

// gradient returns the unit gradient of the field at p. Central differences
// cancel on creases equidistant from several features (a box center), in
// which case one-sided differences pick a direction.
func (s *Surface) gradient(p geom.Vec3) (geom.Vec3, bool) {
	h := 1e-6 * s.scale
	dx := geom.Vec3{X: h}
	dy := geom.Vec3{Y: h}
	dz := geom.Vec3{Z: h}

	g := geom.Vec3{
		X: s.Distance(p.Add(dx)) - s.Distance(p.Sub(dx)),
		Y: s.Distance(p.Add(dy)) - s.Distance(p.Sub(dy)),
		Z: s.Distance(p.Add(dz)) - s.Distance(p.Sub(dz)),
	}
	if n := g.Length(); n > 1e-12*s.scale {
		return g.Scale(1 / n), true
	}

	d0 := s.Distance(p)
	g = geom.Vec3{
		X: s.Distance(p.Add(dx)) - d0,
		Y: s.Distance(p.Add(dy)) - d0,
		Z: s.Distance(p.Add(dz)) - d0,
	}
	if n := g.Length(); n > 1e-12*s.scale {
		return g.Scale(1 / n), true
	}
	return geom.Vec3{}, false
}

func toV3(p geom.Vec3) v3.Vec {
	return v3.Vec{X: p.X, Y: p.Y, Z: p.Z}
}

func fromV3(v v3.Vec) geom.Vec3 {
	return geom.Vec3{X: v.X, Y: v.Y, Z: v.Z}
}
