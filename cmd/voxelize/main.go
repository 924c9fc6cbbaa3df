// Command voxelize approximates a surface with a shell of cubes and writes
// the result to a scene database, a .glb file and a grid snapshot.
//
//	voxelize [flags] <resolution>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/chazu/voxelizer/pkg/codec"
	"github.com/chazu/voxelizer/pkg/config"
	"github.com/chazu/voxelizer/pkg/export"
	"github.com/chazu/voxelizer/pkg/host"
	"github.com/chazu/voxelizer/pkg/kernel"
	"github.com/chazu/voxelizer/pkg/kernel/sdfx"
	"github.com/chazu/voxelizer/pkg/kernel/trimesh"
	"github.com/chazu/voxelizer/pkg/scene"
	"github.com/chazu/voxelizer/pkg/script"
)

// usageError marks bad invocations; main exits 2 for them.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stderr); err != nil {
		var ue usageError
		if errors.As(err, &ue) {
			fmt.Fprintln(os.Stderr, "voxelize:", err)
			os.Exit(2)
		}
		log.Printf("[voxelize] %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, logw io.Writer) error {
	fs := flag.NewFlagSet("voxelize", flag.ContinueOnError)
	fs.SetOutput(logw)
	var (
		configPath = fs.String("config", "", "path to voxelize.yaml (optional)")
		objPath    = fs.String("obj", "", "OBJ file to voxelize")
		shape      = fs.String("shape", "box", "built-in shape when -obj is empty: box, sphere or cylinder")
		size       = fs.Float64("size", 1, "shape size: box edge, sphere diameter, cylinder height and diameter")
		glbPath    = fs.String("glb", "", "write the mesh as binary glTF")
		gridPath   = fs.String("grid", "", "write the occupancy grid snapshot")
		dbPath     = fs.String("db", "", "scene database (default from config, else in-memory)")
		workers    = fs.Int("workers", 0, "sampling workers (0 = GOMAXPROCS)")
		proximity  = fs.String("proximity", "", "proximity policy: box or sphere")
		cull       = fs.Bool("cull", false, "skip faces shared by two occupied cells")
		partial    = fs.Bool("partial", false, "keep going when surface queries fail")
		force      = fs.Bool("force", false, "run lattices over the cell budget")
	)
	fs.Usage = func() {
		fmt.Fprintln(logw, "usage: voxelize [flags] <resolution>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return usageError{err.Error()}
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "db":
			cfg.SceneDB = *dbPath
		case "workers":
			cfg.Workers = *workers
		case "proximity":
			cfg.Proximity = *proximity
		case "cull":
			cfg.CullSharedFaces = *cull
		case "partial":
			cfg.Partial = *partial
		case "glb":
			cfg.Outputs.GLB = *glbPath
		case "grid":
			cfg.Outputs.Grid = *gridPath
		}
	})
	cfg.Normalize()

	if fs.NArg() == 0 {
		return usageError{"missing resolution"}
	}
	if fs.NArg() > 1 {
		return usageError{"too many arguments"}
	}
	resolution, err := strconv.ParseFloat(fs.Arg(0), 64)
	if err != nil {
		return usageError{fmt.Sprintf("bad resolution %q", fs.Arg(0))}
	}
	if !(resolution > 0) || math.IsInf(resolution, 1) {
		return usageError{fmt.Sprintf("resolution must be positive, got %g", resolution)}
	}
	if err := cfg.Validate(); err != nil {
		return usageError{err.Error()}
	}
	sampleOpts, err := cfg.SampleOptions()
	if err != nil {
		return usageError{err.Error()}
	}

	surface, err := loadSurface(*objPath, *shape, *size)
	if err != nil {
		return err
	}

	store, err := scene.Open(cfg.SceneDB)
	if err != nil {
		return fmt.Errorf("open scene: %w", err)
	}
	defer store.Close()

	logger := log.New(logw, "", log.LstdFlags)
	engine := script.NewEngine(store, cfg.ScriptConfig())
	session := host.NewSession(cfg.NamePrefix, cfg.NameStart)
	session.Taken = store.Exists
	facade := &host.Facade{
		Sink:      store,
		Normals:   engine,
		Materials: engine,
		Session:   session,
		MaxCells:  cfg.MaxCells,
		Force:     *force,
		Sample:    sampleOpts,
		Build:     cfg.BuildOptions(),
		Logger:    logger,
	}

	start := time.Now()
	act, err := facade.Voxelize(ctx, host.Surfaces{surface}, resolution)
	if err != nil {
		return err
	}
	logger.Printf("[voxelize] %s from %s: %d cells, %d vertices, %d faces, %d failed queries in %s",
		act.Object, surface.Name(), act.Grid.Count(), act.Mesh.VertexCount(), act.Mesh.FaceCount(),
		act.Failed, time.Since(start).Round(time.Millisecond))

	if cfg.Outputs.GLB != "" {
		if err := writeGLB(store, act.Object, cfg.Outputs.GLB); err != nil {
			if !errors.Is(err, export.ErrEmptyMesh) {
				return fmt.Errorf("write %s: %w", cfg.Outputs.GLB, err)
			}
			logger.Printf("[voxelize] %s is empty, skipped %s", act.Object, cfg.Outputs.GLB)
		} else {
			logger.Printf("[voxelize] wrote %s", cfg.Outputs.GLB)
		}
	}
	if cfg.Outputs.Grid != "" {
		snap := &codec.Snapshot{Box: act.Box, Resolution: act.Resolution, Grid: act.Grid}
		if err := codec.WriteGridFile(cfg.Outputs.Grid, snap); err != nil {
			return fmt.Errorf("write %s: %w", cfg.Outputs.Grid, err)
		}
		logger.Printf("[voxelize] wrote %s", cfg.Outputs.Grid)
	}
	return nil
}

func loadSurface(objPath, shape string, size float64) (kernel.Surface, error) {
	if objPath != "" {
		return trimesh.LoadOBJ(objPath)
	}
	if !(size > 0) {
		return nil, usageError{fmt.Sprintf("size must be positive, got %g", size)}
	}
	switch shape {
	case "box":
		return sdfx.Box("pCube1", size, size, size)
	case "sphere":
		return sdfx.Sphere("pSphere1", size/2)
	case "cylinder":
		return sdfx.Cylinder("pCylinder1", size, size/2)
	}
	return nil, usageError{fmt.Sprintf("unknown shape %q (want box, sphere or cylinder)", shape)}
}

// writeGLB exports the object as stored in the scene, after normals and
// material post-processing.
func writeGLB(store *scene.Store, name, path string) error {
	m, err := store.Mesh(name)
	if err != nil {
		return err
	}
	obj, err := store.Object(name)
	if err != nil {
		return err
	}
	opts := export.Options{Generator: "voxelize"}
	if obj.Shader != "" {
		sh, err := store.Shader(obj.Shader)
		if err != nil {
			return err
		}
		opts.Material = sh.Name
		for i, c := range sh.Color {
			opts.Color[i] = float32(c)
		}
	}
	return export.WriteGLB(path, m.Triangulate(name), opts)
}
