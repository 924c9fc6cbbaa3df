package voxel

import (
	"fmt"

	"github.com/chazu/voxelizer/pkg/geom"
	"github.com/chazu/voxelizer/pkg/kernel"
)

// Mesh is polygon geometry in the shape a host mesh constructor consumes:
// a vertex list, a per-face vertex count and the concatenated per-face
// vertex indices. Duplicate vertices and coincident faces are allowed.
type Mesh struct {
	Vertices          []geom.Vec3 `json:"vertices"`
	FaceVertexCounts  []int       `json:"face_vertex_counts"`
	FaceVertexIndices []int       `json:"face_vertex_indices"`
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices)
}

// FaceCount returns the number of faces.
func (m *Mesh) FaceCount() int {
	return len(m.FaceVertexCounts)
}

// IsEmpty returns true if the mesh has no faces.
func (m *Mesh) IsEmpty() bool {
	return len(m.FaceVertexCounts) == 0
}

// Validate checks that the face arrays are consistent with each other and
// with the vertex list.
func (m *Mesh) Validate() error {
	total := 0
	for i, c := range m.FaceVertexCounts {
		if c < 3 {
			return fmt.Errorf("voxel: face %d has %d vertices", i, c)
		}
		total += c
	}
	if total != len(m.FaceVertexIndices) {
		return fmt.Errorf("voxel: face counts sum to %d but %d indices given", total, len(m.FaceVertexIndices))
	}
	for i, idx := range m.FaceVertexIndices {
		if idx < 0 || idx >= len(m.Vertices) {
			return fmt.Errorf("voxel: face index %d at %d out of range [0,%d)", idx, i, len(m.Vertices))
		}
	}
	return nil
}

// Bounds returns the box enclosing all vertices.
func (m *Mesh) Bounds() (geom.Box, error) {
	return geom.ComputeBounds(m.Vertices)
}

// faces calls fn with the index slice of every face in order.
func (m *Mesh) faces(fn func(i int, idx []int)) {
	off := 0
	for i, c := range m.FaceVertexCounts {
		fn(i, m.FaceVertexIndices[off:off+c])
		off += c
	}
}

// newell returns the unnormalised polygon normal of idx.
func (m *Mesh) newell(idx []int) geom.Vec3 {
	var n geom.Vec3
	for j, a := range idx {
		p := m.Vertices[a]
		q := m.Vertices[idx[(j+1)%len(idx)]]
		n.X += (p.Y - q.Y) * (p.Z + q.Z)
		n.Y += (p.Z - q.Z) * (p.X + q.X)
		n.Z += (p.X - q.X) * (p.Y + q.Y)
	}
	return n
}

// FaceNormals returns one unit normal per face following its winding.
// Degenerate faces get the zero vector.
func (m *Mesh) FaceNormals() []geom.Vec3 {
	out := make([]geom.Vec3, len(m.FaceVertexCounts))
	m.faces(func(i int, idx []int) {
		n := m.newell(idx)
		if l := n.Length(); l > 0 {
			out[i] = n.Scale(1 / l)
		}
	})
	return out
}

// ConformWinding reorders face indices so every quad faces away from the
// cube it belongs to. It relies on Build's layout, where cube k owns
// vertices [8k, 8k+8). It returns the number of faces flipped.
func (m *Mesh) ConformWinding() int {
	flipped := 0
	m.faces(func(_ int, idx []int) {
		cube := idx[0] / 8
		if 8*cube+8 > len(m.Vertices) {
			return
		}
		var center, centroid geom.Vec3
		for _, v := range m.Vertices[8*cube : 8*cube+8] {
			center = center.Add(v)
		}
		center = center.Scale(1.0 / 8)
		for _, a := range idx {
			centroid = centroid.Add(m.Vertices[a])
		}
		centroid = centroid.Scale(1 / float64(len(idx)))
		if m.newell(idx).Dot(centroid.Sub(center)) < 0 {
			for l, r := 0, len(idx)-1; l < r; l, r = l+1, r-1 {
				idx[l], idx[r] = idx[r], idx[l]
			}
			flipped++
		}
	})
	return flipped
}

// Triangulate converts the mesh into a render mesh. Each face is fanned
// into triangles and gets its own copies of its vertices carrying the face
// normal, so shading is flat.
func (m *Mesh) Triangulate(name string) *kernel.Mesh {
	out := &kernel.Mesh{Name: name}
	normals := m.FaceNormals()
	m.faces(func(i int, idx []int) {
		base := uint32(len(out.Vertices) / 3)
		n := normals[i]
		for _, a := range idx {
			v := m.Vertices[a]
			out.Vertices = append(out.Vertices, float32(v.X), float32(v.Y), float32(v.Z))
			out.Normals = append(out.Normals, float32(n.X), float32(n.Y), float32(n.Z))
		}
		for j := 1; j+1 < len(idx); j++ {
			out.Indices = append(out.Indices, base, base+uint32(j), base+uint32(j+1))
		}
	})
	return out
}
