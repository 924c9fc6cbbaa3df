package script

// DefaultNormalsScript sets per-face normals, makes the winding consistent
// and sets face normals again so they follow the corrected winding.
const DefaultNormalsScript = `; flat shading for voxel cubes
(set-face-normal (target))
(conform-normals (target))
(set-face-normal (target))
`

// DefaultMaterialScript creates a matte shader and assigns it.
const DefaultMaterialScript = `; one lambert per voxel mesh
(assign-material (target) (shading-node :kind "lambert"))
`

// DefaultMaterial is the shader created when a script leaves fields unset.
var DefaultMaterial = Material{
	Kind:  "lambert",
	Name:  "voxelizerLambert",
	Color: [4]float64{0.5, 0.5, 0.5, 1},
}
