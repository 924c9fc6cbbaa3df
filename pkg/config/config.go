// Package config loads voxelize.yaml, the settings shared by the CLI and the
// scene tooling.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/chazu/voxelizer/pkg/host"
	"github.com/chazu/voxelizer/pkg/script"
	"github.com/chazu/voxelizer/pkg/voxel"
)

type Config struct {
	MaxCells        int    `yaml:"max_cells"`
	Workers         int    `yaml:"workers"`
	Proximity       string `yaml:"proximity"`
	CullSharedFaces bool   `yaml:"cull_shared_faces"`
	Partial         bool   `yaml:"partial"`

	NamePrefix string `yaml:"name_prefix"`
	NameStart  int    `yaml:"name_start"`

	Material MaterialSpec `yaml:"material"`
	Scripts  ScriptSpec   `yaml:"scripts"`

	SceneDB string      `yaml:"scene_db"`
	Outputs OutputsSpec `yaml:"outputs"`
}

type MaterialSpec struct {
	Kind  string     `yaml:"kind"`
	Name  string     `yaml:"name"`
	Color [4]float64 `yaml:"color,flow"`
}

// ScriptSpec holds Lisp post-processing sources. Empty means the built-in
// script.
type ScriptSpec struct {
	Normals  string `yaml:"normals"`
	Material string `yaml:"material"`
}

type OutputsSpec struct {
	GLB  string `yaml:"glb,omitempty"`
	Grid string `yaml:"grid,omitempty"`
}

// Default returns the settings used when no file is given.
func Default() Config {
	return Config{
		MaxCells:   host.DefaultMaxCells,
		Proximity:  voxel.BoxProximity.String(),
		NamePrefix: host.DefaultNamePrefix,
		NameStart:  1,
		Material: MaterialSpec{
			Kind:  script.DefaultMaterial.Kind,
			Name:  script.DefaultMaterial.Name,
			Color: script.DefaultMaterial.Color,
		},
		SceneDB: ":memory:",
	}
}

// Load reads path over Default. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("voxelize.yaml: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("voxelize.yaml: %w", err)
	}
	return cfg, nil
}

// Normalize fills blanks left by a partial file.
func (c *Config) Normalize() {
	if c == nil {
		return
	}
	c.Proximity = strings.ToLower(strings.TrimSpace(c.Proximity))
	if c.NamePrefix == "" {
		c.NamePrefix = host.DefaultNamePrefix
	}
	if c.NameStart < 1 {
		c.NameStart = 1
	}
	if c.Material.Kind == "" {
		c.Material.Kind = script.DefaultMaterial.Kind
	}
	if c.Material.Name == "" {
		c.Material.Name = script.DefaultMaterial.Name
	}
	if c.SceneDB == "" {
		c.SceneDB = ":memory:"
	}
}

// Validate checks ranges. The resolution is not a config key; it is
// always given on the command line.
func (c Config) Validate() error {
	var errs []error
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must be >= 0, got %d", c.Workers))
	}
	if _, err := voxel.ParseProximity(c.Proximity); err != nil {
		errs = append(errs, err)
	}
	for i, v := range c.Material.Color {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("material color[%d] = %g outside [0,1]", i, v))
		}
	}
	return errors.Join(errs...)
}

// SampleOptions maps the sampling keys onto voxel.SampleOptions.
func (c Config) SampleOptions() (voxel.SampleOptions, error) {
	prox, err := voxel.ParseProximity(c.Proximity)
	if err != nil {
		return voxel.SampleOptions{}, err
	}
	return voxel.SampleOptions{Workers: c.Workers, Proximity: prox, Partial: c.Partial}, nil
}

func (c Config) BuildOptions() voxel.BuildOptions {
	return voxel.BuildOptions{CullShared: c.CullSharedFaces}
}

func (c Config) ScriptConfig() script.Config {
	return script.Config{
		NormalsScript:  c.Scripts.Normals,
		MaterialScript: c.Scripts.Material,
		Material: script.Material{
			Kind:  c.Material.Kind,
			Name:  c.Material.Name,
			Color: c.Material.Color,
		},
	}
}
