package kernel

// Mesh is a triangle mesh suitable for rendering.
// All arrays are flat: vertices has 3 floats per vertex (x,y,z),
// normals has 3 floats per vertex, indices has 3 uint32s per triangle.
type Mesh struct {
	Vertices []float32 `json:"vertices"` // [x0,y0,z0, x1,y1,z1, ...]
	Normals  []float32 `json:"normals"`  // [nx0,ny0,nz0, ...]
	Indices  []uint32  `json:"indices"`  // [i0,i1,i2, ...] triangles
	Name     string    `json:"name"`     // scene object this mesh belongs to
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Vertices) == 0
}

// Positions returns the vertex array as [3]float32 tuples.
func (m *Mesh) Positions() [][3]float32 {
	out := make([][3]float32, m.VertexCount())
	for i := range out {
		out[i] = [3]float32{m.Vertices[3*i], m.Vertices[3*i+1], m.Vertices[3*i+2]}
	}
	return out
}

// NormalTuples returns the normal array as [3]float32 tuples.
func (m *Mesh) NormalTuples() [][3]float32 {
	out := make([][3]float32, len(m.Normals)/3)
	for i := range out {
		out[i] = [3]float32{m.Normals[3*i], m.Normals[3*i+1], m.Normals[3*i+2]}
	}
	return out
}
