// Package export writes voxel meshes to interchange formats.
package export

import (
	"bytes"
	"errors"
	"io"
	"os"

	"github.com/chazu/voxelizer/pkg/kernel"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// ErrEmptyMesh is returned for a mesh with no triangles; glTF accessors
// cannot be empty.
var ErrEmptyMesh = errors.New("export: mesh has no triangles")

// Options controls the exported document.
type Options struct {
	// Generator is recorded in the asset header.
	Generator string
	// Material names the single material. Empty means "voxelizerLambert".
	Material string
	// Color is the base color (RGBA, 0..1). Zero means opaque mid grey.
	Color [4]float32
}

// EncodeGLB writes m as a binary glTF document with one mesh, one node and
// one matte material. m must carry per-vertex normals.
func EncodeGLB(w io.Writer, m *kernel.Mesh, opts Options) error {
	doc, err := document(m, opts)
	if err != nil {
		return err
	}
	enc := gltf.NewEncoder(w)
	enc.AsBinary = true
	return enc.Encode(doc)
}

// WriteGLB writes m to path as .glb.
func WriteGLB(path string, m *kernel.Mesh, opts Options) error {
	var out bytes.Buffer
	if err := EncodeGLB(&out, m, opts); err != nil {
		return err
	}
	return os.WriteFile(path, out.Bytes(), 0o644)
}

func document(m *kernel.Mesh, opts Options) (*gltf.Document, error) {
	if m.TriangleCount() == 0 {
		return nil, ErrEmptyMesh
	}
	color := opts.Color
	if color == ([4]float32{}) {
		color = [4]float32{0.5, 0.5, 0.5, 1}
	}
	matName := opts.Material
	if matName == "" {
		matName = "voxelizerLambert"
	}
	gen := opts.Generator
	if gen == "" {
		gen = "voxelize"
	}

	doc := gltf.NewDocument()
	doc.Asset.Generator = gen

	posAccessor := modeler.WritePosition(doc, m.Positions())
	normalAccessor := modeler.WriteNormal(doc, m.NormalTuples())
	indices := make([]uint32, len(m.Indices))
	copy(indices, m.Indices)
	indicesAccessor := modeler.WriteIndices(doc, indices)

	prim := &gltf.Primitive{
		Attributes: map[string]uint32{
			gltf.POSITION: uint32(posAccessor),
			gltf.NORMAL:   uint32(normalAccessor),
		},
		Indices:  gltf.Index(uint32(indicesAccessor)),
		Material: gltf.Index(0),
	}
	material := &gltf.Material{
		Name: matName,
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &color,
			MetallicFactor:  gltf.Float(0),
			RoughnessFactor: gltf.Float(1),
		},
		AlphaMode: gltf.AlphaOpaque,
	}
	if color[3] < 1 {
		material.AlphaMode = gltf.AlphaBlend
	}
	doc.Materials = []*gltf.Material{material}

	name := m.Name
	if name == "" {
		name = "voxelizerMesh"
	}
	doc.Meshes = []*gltf.Mesh{{Name: name, Primitives: []*gltf.Primitive{prim}}}
	doc.Nodes = []*gltf.Node{{Name: name, Mesh: gltf.Index(0)}}
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, uint32(0))
	return doc, nil
}
