package voxel

import "github.com/chazu/voxelizer/pkg/geom"

// cubeCorners lists the local corner offsets of a unit cube. Corner i has
// offset (i>>2&1, i>>1&1, i&1).
var cubeCorners = [8][3]float64{
	{0, 0, 0}, {0, 0, 1}, {0, 1, 0}, {0, 1, 1},
	{1, 0, 0}, {1, 0, 1}, {1, 1, 0}, {1, 1, 1},
}

// cubeFaces are the six quads of a cube as local corner indices, paired with
// the grid step to the neighbour that shares the face.
var cubeFaces = [6]struct {
	corners [4]int
	step    [3]int
}{
	{[4]int{0, 1, 3, 2}, [3]int{-1, 0, 0}},
	{[4]int{4, 5, 7, 6}, [3]int{1, 0, 0}},
	{[4]int{0, 1, 5, 4}, [3]int{0, -1, 0}},
	{[4]int{2, 3, 7, 6}, [3]int{0, 1, 0}},
	{[4]int{0, 2, 6, 4}, [3]int{0, 0, -1}},
	{[4]int{1, 3, 7, 5}, [3]int{0, 0, 1}},
}

// BuildOptions tunes Build.
type BuildOptions struct {
	// CullShared drops quads whose neighbour across the face is occupied.
	// Vertices are emitted unchanged.
	CullShared bool
}

// Build emits one axis-aligned cube of edge resolution per occupied cell,
// centred on its lattice point, scanning x outermost and z innermost. The
// k-th cube owns vertices [8k, 8k+8). Shared and interior faces are kept
// unless opts.CullShared is set.
func Build(grid *Grid, box geom.Box, resolution float64, opts BuildOptions) *Mesh {
	occupied := grid.Count()
	m := &Mesh{
		Vertices:          make([]geom.Vec3, 0, 8*occupied),
		FaceVertexCounts:  make([]int, 0, 6*occupied),
		FaceVertexIndices: make([]int, 0, 24*occupied),
	}
	half := resolution / 2

	for x := 0; x < grid.width; x++ {
		for y := 0; y < grid.height; y++ {
			for z := 0; z < grid.depth; z++ {
				if !grid.At(x, y, z) {
					continue
				}
				p := LatticePoint(box.Min, resolution, x, y, z)
				origin := geom.Vec3{X: p.X - half, Y: p.Y - half, Z: p.Z - half}
				start := len(m.Vertices)
				for _, c := range cubeCorners {
					m.Vertices = append(m.Vertices, geom.Vec3{
						X: c[0]*resolution + origin.X,
						Y: c[1]*resolution + origin.Y,
						Z: c[2]*resolution + origin.Z,
					})
				}
				for _, f := range cubeFaces {
					if opts.CullShared && grid.Occupied(x+f.step[0], y+f.step[1], z+f.step[2]) {
						continue
					}
					m.FaceVertexCounts = append(m.FaceVertexCounts, 4)
					for _, c := range f.corners {
						m.FaceVertexIndices = append(m.FaceVertexIndices, start+c)
					}
				}
			}
		}
	}
	return m
}
