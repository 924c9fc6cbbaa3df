package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/chazu/voxelizer/pkg/geom"
	"github.com/chazu/voxelizer/pkg/voxel"
)

const meshMagic = "VXM"

// mesh header: vertex, face and index counts (uint32)
const meshHeaderLen = 3 * 4

// EncodeMesh serialises a polygon mesh: float64 positions, then uint32 face
// vertex counts, then uint32 face vertex indices.
func EncodeMesh(m *voxel.Mesh) ([]byte, error) {
	var hdr bytes.Buffer
	for _, n := range []int{len(m.Vertices), len(m.FaceVertexCounts), len(m.FaceVertexIndices)} {
		_ = binary.Write(&hdr, binary.LittleEndian, uint32(n))
	}

	raw := make([]byte, 0, 24*len(m.Vertices)+4*(len(m.FaceVertexCounts)+len(m.FaceVertexIndices)))
	for _, v := range m.Vertices {
		raw = binary.LittleEndian.AppendUint64(raw, math.Float64bits(v.X))
		raw = binary.LittleEndian.AppendUint64(raw, math.Float64bits(v.Y))
		raw = binary.LittleEndian.AppendUint64(raw, math.Float64bits(v.Z))
	}
	for _, c := range m.FaceVertexCounts {
		raw = binary.LittleEndian.AppendUint32(raw, uint32(c))
	}
	for _, i := range m.FaceVertexIndices {
		raw = binary.LittleEndian.AppendUint32(raw, uint32(i))
	}
	return frame(meshMagic, hdr.Bytes(), raw)
}

// DecodeMesh parses a blob written by EncodeMesh and validates the result.
func DecodeMesh(data []byte) (*voxel.Mesh, error) {
	hdr, raw, err := unframe(meshMagic, meshHeaderLen, data)
	if err != nil {
		return nil, err
	}
	nv := int(binary.LittleEndian.Uint32(hdr[0:]))
	nf := int(binary.LittleEndian.Uint32(hdr[4:]))
	ni := int(binary.LittleEndian.Uint32(hdr[8:]))
	if want := 24*nv + 4*(nf+ni); len(raw) != want {
		return nil, fmt.Errorf("%w: mesh body is %d bytes, want %d", ErrCorrupt, len(raw), want)
	}

	m := &voxel.Mesh{
		Vertices:          make([]geom.Vec3, nv),
		FaceVertexCounts:  make([]int, nf),
		FaceVertexIndices: make([]int, ni),
	}
	off := 0
	f := func() float64 {
		v := math.Float64frombits(binary.LittleEndian.Uint64(raw[off:]))
		off += 8
		return v
	}
	u := func() int {
		v := int(binary.LittleEndian.Uint32(raw[off:]))
		off += 4
		return v
	}
	for i := range m.Vertices {
		m.Vertices[i] = geom.Vec3{X: f(), Y: f(), Z: f()}
	}
	for i := range m.FaceVertexCounts {
		m.FaceVertexCounts[i] = u()
	}
	for i := range m.FaceVertexIndices {
		m.FaceVertexIndices[i] = u()
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return m, nil
}
