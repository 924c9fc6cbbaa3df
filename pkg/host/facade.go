package host

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"

	"github.com/chazu/voxelizer/pkg/geom"
	"github.com/chazu/voxelizer/pkg/voxel"
)

// DefaultMaxCells is the lattice size above which Voxelize refuses to run
// unless forced.
const DefaultMaxCells = 125000

// Facade runs voxelize commands against a scene. Sink and Session are
// required; Normals and Materials are optional post-processing steps.
type Facade struct {
	Sink      MeshSink
	Normals   NormalsSetter
	Materials MaterialAssigner
	Session   *Session

	// MaxCells is the cell budget. 0 means DefaultMaxCells, < 0 means none.
	MaxCells int
	// Force runs lattices over budget.
	Force bool

	Sample voxel.SampleOptions
	Build  voxel.BuildOptions

	// Logger receives progress lines. nil discards them.
	Logger *log.Logger
}

// CreateAction is the applied result of a voxelize command: one new scene
// object. Undo removes it, Redo puts the same object back.
type CreateAction struct {
	ID         ObjectID
	Object     string
	Box        geom.Box
	Resolution float64
	Grid       *voxel.Grid
	Mesh       *voxel.Mesh

	// Failed counts lattice points whose query failed in partial mode.
	Failed int

	sink MeshSink
}

// Name describes the action for history listings.
func (a *CreateAction) Name() string {
	return "voxelize " + a.Object
}

// Undo removes the created object.
func (a *CreateAction) Undo() error {
	return a.sink.Remove(a.ID)
}

// Redo re-inserts the created object.
func (a *CreateAction) Redo() error {
	return a.sink.Reinsert(a.ID)
}

func (f *Facade) logf(format string, args ...any) {
	if f.Logger != nil {
		f.Logger.Printf(format, args...)
	}
}

func (f *Facade) maxCells() int {
	if f.MaxCells == 0 {
		return DefaultMaxCells
	}
	return f.MaxCells
}

// Voxelize voxelizes the single selected surface at resolution and creates
// the resulting mesh object. Validation happens before any sampling; an
// oracle failure leaves the scene untouched; a post-processing failure
// removes the object again. The returned action is already applied; push it
// onto a History to make it undoable.
func (f *Facade) Voxelize(ctx context.Context, sel Selection, resolution float64) (*CreateAction, error) {
	if f.Sink == nil || f.Session == nil {
		return nil, errors.New("host: facade needs a sink and a session")
	}
	surfaces := sel.Surfaces()
	if len(surfaces) != 1 {
		return nil, fmt.Errorf("%w: %d selected", ErrSelection, len(surfaces))
	}
	surface := surfaces[0]
	if !(resolution > 0) || math.IsInf(resolution, 1) {
		return nil, fmt.Errorf("%w: %g", voxel.ErrInvalidResolution, resolution)
	}

	box, err := geom.ComputeBounds(surface.Vertices())
	if err != nil {
		return nil, fmt.Errorf("host: %s: %w", surface.Name(), err)
	}
	w, h, d, err := voxel.Dims(box, resolution)
	if err != nil {
		return nil, fmt.Errorf("host: %s: %w", surface.Name(), err)
	}
	cells := w * h * d
	if limit := f.maxCells(); limit > 0 && cells > limit && !f.Force {
		return nil, fmt.Errorf("%w: %dx%dx%d = %d cells, limit %d", ErrTooManyCells, w, h, d, cells, limit)
	}
	f.logf("[voxelize] %s: %dx%dx%d lattice at resolution %g", surface.Name(), w, h, d, resolution)

	grid, err := voxel.Sample(ctx, box, resolution, surface.NearestPoint, f.Sample)
	failed := 0
	var perr *voxel.PartialError
	switch {
	case errors.As(err, &perr) && grid != nil:
		failed = perr.Failed
		f.logf("[voxelize] %s: %d queries failed, first at %v", surface.Name(), perr.Failed, perr.First.Index)
	case err != nil:
		return nil, fmt.Errorf("host: sample %s: %w", surface.Name(), err)
	}

	mesh := voxel.Build(grid, box, resolution, f.Build)
	name := f.Session.Next()
	id, err := f.Sink.CreateMesh(name, mesh)
	if err != nil {
		return nil, fmt.Errorf("host: create %s: %w", name, err)
	}

	if err := f.postProcess(ctx, name); err != nil {
		if rerr := f.Sink.Remove(id); rerr != nil {
			f.logf("[voxelize] %s: rollback failed: %v", name, rerr)
			return nil, errors.Join(err, fmt.Errorf("host: rollback %s: %w", name, rerr))
		}
		return nil, err
	}

	f.logf("[voxelize] created %s: %d cells, %d vertices, %d faces",
		name, grid.Count(), mesh.VertexCount(), mesh.FaceCount())
	return &CreateAction{
		ID:         id,
		Object:     name,
		Box:        box,
		Resolution: resolution,
		Grid:       grid,
		Mesh:       mesh,
		Failed:     failed,
		sink:       f.Sink,
	}, nil
}

func (f *Facade) postProcess(ctx context.Context, name string) error {
	if f.Normals != nil {
		if err := f.Normals.SetNormals(ctx, name); err != nil {
			return fmt.Errorf("host: normals for %s: %w", name, err)
		}
	}
	if f.Materials != nil {
		if err := f.Materials.AssignMaterial(ctx, name); err != nil {
			return fmt.Errorf("host: material for %s: %w", name, err)
		}
	}
	return nil
}
