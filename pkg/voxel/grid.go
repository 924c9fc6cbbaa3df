// Package voxel is the voxelization core: a dense occupancy grid, the
// sampler that fills it from a nearest-point oracle, and the builder that
// turns occupied cells into cube geometry.
//
// Everything here is pure computation. Selection, scene objects, undo and
// post-processing belong to the host package.
package voxel

import "fmt"

// Index addresses one lattice point.
type Index struct {
	X, Y, Z int
}

func (i Index) String() string {
	return fmt.Sprintf("(%d,%d,%d)", i.X, i.Y, i.Z)
}

// Grid is a dense 3-D occupancy grid backed by a flat buffer addressed by
// x + width*(y + height*z). Dimensions are fixed at construction.
// Out-of-range access panics.
type Grid struct {
	width, height, depth int
	cells                []bool
}

// NewGrid allocates an all-false grid. Every dimension must be at least 1.
func NewGrid(width, height, depth int) *Grid {
	if width < 1 || height < 1 || depth < 1 {
		panic(fmt.Sprintf("voxel: invalid grid dimensions %dx%dx%d", width, height, depth))
	}
	return &Grid{
		width:  width,
		height: height,
		depth:  depth,
		cells:  make([]bool, width*height*depth),
	}
}

// Width returns the number of lattice points along X.
func (g *Grid) Width() int { return g.width }

// Height returns the number of lattice points along Y.
func (g *Grid) Height() int { return g.height }

// Depth returns the number of lattice points along Z.
func (g *Grid) Depth() int { return g.depth }

// Dims returns (width, height, depth).
func (g *Grid) Dims() (int, int, int) { return g.width, g.height, g.depth }

// Len returns the total number of lattice points.
func (g *Grid) Len() int { return len(g.cells) }

// InBounds reports whether (x, y, z) addresses a lattice point.
func (g *Grid) InBounds(x, y, z int) bool {
	return x >= 0 && x < g.width && y >= 0 && y < g.height && z >= 0 && z < g.depth
}

// Offset returns the flat buffer offset of (x, y, z).
func (g *Grid) Offset(x, y, z int) int {
	if !g.InBounds(x, y, z) {
		panic(fmt.Sprintf("voxel: index (%d,%d,%d) out of range for %dx%dx%d grid",
			x, y, z, g.width, g.height, g.depth))
	}
	return x + g.width*(y+g.height*z)
}

// Coords is the inverse of Offset.
func (g *Grid) Coords(offset int) (x, y, z int) {
	if offset < 0 || offset >= len(g.cells) {
		panic(fmt.Sprintf("voxel: offset %d out of range for %d cells", offset, len(g.cells)))
	}
	x = offset % g.width
	rest := offset / g.width
	y = rest % g.height
	z = rest / g.height
	return x, y, z
}

// At reports whether (x, y, z) is occupied.
func (g *Grid) At(x, y, z int) bool {
	return g.cells[g.Offset(x, y, z)]
}

// Set marks (x, y, z) occupied or empty.
func (g *Grid) Set(x, y, z int, occupied bool) {
	g.cells[g.Offset(x, y, z)] = occupied
}

// Occupied reports whether (x, y, z) is in range and occupied. Unlike At it
// never panics, which suits neighbour lookups at the grid edge.
func (g *Grid) Occupied(x, y, z int) bool {
	return g.InBounds(x, y, z) && g.cells[x+g.width*(y+g.height*z)]
}

// Count returns the number of occupied lattice points.
func (g *Grid) Count() int {
	n := 0
	for _, c := range g.cells {
		if c {
			n++
		}
	}
	return n
}

// Equal reports whether g and o have the same dimensions and occupancy.
func (g *Grid) Equal(o *Grid) bool {
	if g.width != o.width || g.height != o.height || g.depth != o.depth {
		return false
	}
	for i, c := range g.cells {
		if o.cells[i] != c {
			return false
		}
	}
	return true
}

// Cells exposes the flat buffer in Offset order. Callers must not resize it.
func (g *Grid) Cells() []bool {
	return g.cells
}
