// Package host is the command layer between a scene and the voxelization
// core. It validates a voxelize request, runs bounds, sampling and mesh
// building, hands the result to a mesh sink, applies post-processing and
// returns an undoable action.
package host

import (
	"context"
	"errors"

	"github.com/chazu/voxelizer/pkg/kernel"
	"github.com/chazu/voxelizer/pkg/voxel"
)

var (
	// ErrSelection is returned when the selection does not hold exactly one
	// surface.
	ErrSelection = errors.New("host: select exactly one surface")
	// ErrTooManyCells is returned when the lattice exceeds the cell budget
	// and the request is not forced.
	ErrTooManyCells = errors.New("host: lattice exceeds cell budget")
)

// ObjectID identifies a scene object created by a MeshSink.
type ObjectID int64

// Selection resolves the user's current selection to surfaces.
type Selection interface {
	Surfaces() []kernel.Surface
}

// Surfaces is a fixed Selection.
type Surfaces []kernel.Surface

// Surfaces returns s.
func (s Surfaces) Surfaces() []kernel.Surface { return s }

// MeshSink creates scene objects from emitted geometry and can take them
// out of and back into the scene without recomputing anything.
type MeshSink interface {
	CreateMesh(name string, m *voxel.Mesh) (ObjectID, error)
	Remove(id ObjectID) error
	Reinsert(id ObjectID) error
}

// NormalsSetter recomputes the normals of a named object.
type NormalsSetter interface {
	SetNormals(ctx context.Context, object string) error
}

// MaterialAssigner gives a named object its default material.
type MaterialAssigner interface {
	AssignMaterial(ctx context.Context, object string) error
}
