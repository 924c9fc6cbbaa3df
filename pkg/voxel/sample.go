package voxel

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/chazu/voxelizer/pkg/geom"
)

var (
	ErrInvalidResolution = errors.New("voxel: resolution must be a positive finite number")
	ErrInvalidBox        = errors.New("voxel: bounding box must be finite with min <= max")
	ErrGridTooLarge      = errors.New("voxel: lattice does not fit in memory addressing")
	ErrNilOracle         = errors.New("voxel: nil oracle")
	ErrOracleFailed      = errors.New("voxel: nearest-point query failed")
)

// DefaultChunkSize is the number of lattice points handed to a worker at a
// time.
const DefaultChunkSize = 4096

// maxCells bounds a lattice so width*height*depth cannot overflow int on any
// platform. It is an addressing limit, not a budget; budgets are a host
// concern.
const maxCells = 1 << 31

// Oracle returns the point of a surface closest to p. ok is false when the
// query fails. Oracles used with more than one worker must be safe for
// concurrent use.
type Oracle func(p geom.Vec3) (closest geom.Vec3, ok bool)

// Serialize wraps a non-reentrant oracle so that only one query runs at a
// time.
func Serialize(o Oracle) Oracle {
	var mu sync.Mutex
	return func(p geom.Vec3) (geom.Vec3, bool) {
		mu.Lock()
		defer mu.Unlock()
		return o(p)
	}
}

// SampleOptions tunes Sample. The zero value samples with the box policy on
// GOMAXPROCS workers and fails fast.
type SampleOptions struct {
	// Workers is the size of the worker pool. <= 0 means GOMAXPROCS.
	Workers int
	// ChunkSize is the number of lattice points per work unit. <= 0 means
	// DefaultChunkSize.
	ChunkSize int
	// Proximity decides occupancy. nil means BoxProximity.
	Proximity Proximity
	// Partial keeps sampling past oracle failures, leaving failed cells
	// unoccupied, and reports them in a *PartialError.
	Partial bool
}

// OracleError reports the lattice point at which the oracle failed.
type OracleError struct {
	Index Index
	Point geom.Vec3
}

func (e *OracleError) Error() string {
	return fmt.Sprintf("voxel: nearest-point query failed at lattice %v (point %v)", e.Index, e.Point)
}

func (e *OracleError) Unwrap() error { return ErrOracleFailed }

// PartialError is returned alongside a usable grid when Partial sampling
// met oracle failures.
type PartialError struct {
	// Failed is the number of lattice points whose query failed.
	Failed int
	// First is the failure with the lowest flat offset.
	First *OracleError
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("voxel: %d nearest-point queries failed, first at lattice %v", e.Failed, e.First.Index)
}

func (e *PartialError) Unwrap() error { return e.First }

// Dims returns the lattice point count along each axis:
// 1 + floor((max - min) / resolution), at least 1 for a zero-extent axis.
func Dims(box geom.Box, resolution float64) (w, h, d int, err error) {
	if !(resolution > 0) || math.IsInf(resolution, 1) {
		return 0, 0, 0, ErrInvalidResolution
	}
	if !box.IsFinite() {
		return 0, 0, 0, ErrInvalidBox
	}
	var n [3]int
	total := 1.0
	for a := 0; a < 3; a++ {
		extent := box.Max.Axis(a) - box.Min.Axis(a)
		if extent < 0 {
			return 0, 0, 0, ErrInvalidBox
		}
		c := 1 + math.Floor(extent/resolution)
		total *= c
		if total > maxCells {
			return 0, 0, 0, fmt.Errorf("%w: %g cells at resolution %g", ErrGridTooLarge, total, resolution)
		}
		n[a] = int(c)
	}
	return n[0], n[1], n[2], nil
}

// LatticePoint returns the world position of lattice point (i, j, k).
func LatticePoint(origin geom.Vec3, resolution float64, i, j, k int) geom.Vec3 {
	return geom.Vec3{
		X: origin.X + float64(i)*resolution,
		Y: origin.Y + float64(j)*resolution,
		Z: origin.Z + float64(k)*resolution,
	}
}

// Sample fills a grid sized by Dims(box, resolution): lattice point (i,j,k)
// at box.Min + (i,j,k)*resolution is occupied when the proximity policy
// holds between it and the oracle's closest point.
//
// Work is split into fixed-size chunks of flat offsets consumed by a pool of
// goroutines. Chunks are disjoint so writes need no locking. The result
// does not depend on the worker count. ctx cancellation and fail-fast abort
// are observed between chunks.
//
// On the first oracle failure Sample returns (nil, *OracleError). With
// opts.Partial it returns the completed grid and a *PartialError instead.
func Sample(ctx context.Context, box geom.Box, resolution float64, oracle Oracle, opts SampleOptions) (*Grid, error) {
	w, h, d, err := Dims(box, resolution)
	if err != nil {
		return nil, err
	}
	if oracle == nil {
		return nil, ErrNilOracle
	}
	prox := opts.Proximity
	if prox == nil {
		prox = BoxProximity
	}
	chunk := opts.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}

	grid := NewGrid(w, h, d)
	n := grid.Len()
	chunks := (n + chunk - 1) / chunk
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > chunks {
		workers = chunks
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		next     atomic.Int64
		mu       sync.Mutex
		failed   int
		firstOff = -1
		wg       sync.WaitGroup
	)
	fail := func(off int) {
		mu.Lock()
		failed++
		if firstOff < 0 || off < firstOff {
			firstOff = off
		}
		mu.Unlock()
		if !opts.Partial {
			cancel()
		}
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for runCtx.Err() == nil {
				c := int(next.Add(1) - 1)
				if c >= chunks {
					return
				}
				lo := c * chunk
				hi := min(lo+chunk, n)
				for off := lo; off < hi; off++ {
					x, y, z := grid.Coords(off)
					p := LatticePoint(box.Min, resolution, x, y, z)
					closest, ok := oracle(p)
					if !ok {
						fail(off)
						if !opts.Partial {
							return
						}
						continue
					}
					grid.cells[off] = prox.Near(p, closest, resolution)
				}
			}
		}()
	}
	wg.Wait()

	if failed > 0 {
		x, y, z := grid.Coords(firstOff)
		oerr := &OracleError{
			Index: Index{x, y, z},
			Point: LatticePoint(box.Min, resolution, x, y, z),
		}
		if !opts.Partial {
			return nil, oerr
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return grid, &PartialError{Failed: failed, First: oerr}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return grid, nil
}
