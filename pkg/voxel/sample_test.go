package voxel

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"github.com/chazu/voxelizer/pkg/geom"
)

func unitBox(size float64) geom.Box {
	return geom.Box{Max: geom.Vec3{X: size, Y: size, Z: size}}
}

// sphereOracle projects onto a sphere analytically.
func sphereOracle(c geom.Vec3, r float64) Oracle {
	return func(p geom.Vec3) (geom.Vec3, bool) {
		d := p.Sub(c)
		l := d.Length()
		if l == 0 {
			return c.Add(geom.Vec3{X: r}), true
		}
		return c.Add(d.Scale(r / l)), true
	}
}

func TestDims(t *testing.T) {
	tests := []struct {
		name    string
		box     geom.Box
		res     float64
		w, h, d int
	}{
		{"unit at half", unitBox(1), 0.5, 3, 3, 3},
		{"unit at one", unitBox(1), 1, 2, 2, 2},
		{"non divisible", unitBox(1), 0.3, 4, 4, 4},
		{"zero extent axis", geom.Box{Max: geom.Vec3{X: 2, Y: 0, Z: 1}}, 1, 3, 1, 2},
		{"single point", geom.Box{Min: geom.Vec3{X: 5, Y: 5, Z: 5}, Max: geom.Vec3{X: 5, Y: 5, Z: 5}}, 0.1, 1, 1, 1},
		{"res larger than box", unitBox(1), 10, 1, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h, d, err := Dims(tt.box, tt.res)
			if err != nil {
				t.Fatalf("Dims() error = %v", err)
			}
			if w != tt.w || h != tt.h || d != tt.d {
				t.Errorf("Dims() = %d,%d,%d, want %d,%d,%d", w, h, d, tt.w, tt.h, tt.d)
			}
		})
	}
}

func TestDimsErrors(t *testing.T) {
	tests := []struct {
		name string
		box  geom.Box
		res  float64
		want error
	}{
		{"zero resolution", unitBox(1), 0, ErrInvalidResolution},
		{"negative resolution", unitBox(1), -1, ErrInvalidResolution},
		{"NaN resolution", unitBox(1), math.NaN(), ErrInvalidResolution},
		{"infinite resolution", unitBox(1), math.Inf(1), ErrInvalidResolution},
		{"NaN box", geom.Box{Max: geom.Vec3{X: math.NaN()}}, 1, ErrInvalidBox},
		{"unreduced box", geom.Reduce(nil), 1, ErrInvalidBox},
		{"inverted box", geom.Box{Min: geom.Vec3{X: 1}}, 1, ErrInvalidBox},
		{"too many cells", unitBox(1e6), 1e-3, ErrGridTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, _, err := Dims(tt.box, tt.res); !errors.Is(err, tt.want) {
				t.Errorf("Dims() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSampleStrictBoundary(t *testing.T) {
	tests := []struct {
		name   string
		offset geom.Vec3
		want   bool
	}{
		{"on surface", geom.Vec3{}, true},
		{"just inside x", geom.Vec3{X: 0.75}, true},
		{"exactly resolution on x", geom.Vec3{X: 1}, false},
		{"exactly resolution on z", geom.Vec3{Z: -1}, false},
		{"diagonal inside box test", geom.Vec3{X: 0.9, Y: 0.9, Z: 0.9}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oracle := func(p geom.Vec3) (geom.Vec3, bool) { return p.Add(tt.offset), true }
			g, err := Sample(context.Background(), unitBox(2), 1, oracle, SampleOptions{})
			if err != nil {
				t.Fatalf("Sample() error = %v", err)
			}
			for _, c := range g.Cells() {
				if c != tt.want {
					t.Fatalf("cell occupied = %v, want %v", c, tt.want)
				}
			}
		})
	}
}

func TestSampleSphereProximityIsTighter(t *testing.T) {
	oracle := func(p geom.Vec3) (geom.Vec3, bool) {
		return p.Add(geom.Vec3{X: 0.9, Y: 0.9, Z: 0.9}), true
	}
	g, err := Sample(context.Background(), unitBox(1), 1, oracle, SampleOptions{Proximity: SphereProximity})
	if err != nil {
		t.Fatalf("Sample() error = %v", err)
	}
	if g.Count() != 0 {
		t.Errorf("Count() = %d, want 0 with sphere proximity", g.Count())
	}
}

func TestSampleDeterministicAcrossWorkers(t *testing.T) {
	box := geom.Box{Min: geom.Vec3{X: -2, Y: -2, Z: -2}, Max: geom.Vec3{X: 2, Y: 2, Z: 2}}
	oracle := sphereOracle(geom.Vec3{}, 1.5)

	want, err := Sample(context.Background(), box, 0.25, oracle, SampleOptions{Workers: 1})
	if err != nil {
		t.Fatalf("Sample(workers=1) error = %v", err)
	}
	if want.Count() == 0 {
		t.Fatal("Count() = 0, want a non-empty shell")
	}
	for _, opts := range []SampleOptions{
		{Workers: 2, ChunkSize: 7},
		{Workers: 8, ChunkSize: 64},
		{Workers: 32, ChunkSize: 1},
		{},
	} {
		got, err := Sample(context.Background(), box, 0.25, oracle, opts)
		if err != nil {
			t.Fatalf("Sample(%+v) error = %v", opts, err)
		}
		if !got.Equal(want) {
			t.Errorf("Sample(%+v) differs from single-worker result", opts)
		}
	}
}

func TestSampleUnitCube(t *testing.T) {
	// Analytic nearest point on the surface of [0,1]^3.
	oracle := func(p geom.Vec3) (geom.Vec3, bool) {
		inside := p.X >= 0 && p.X <= 1 && p.Y >= 0 && p.Y <= 1 && p.Z >= 0 && p.Z <= 1
		c := geom.Vec3{
			X: math.Min(math.Max(p.X, 0), 1),
			Y: math.Min(math.Max(p.Y, 0), 1),
			Z: math.Min(math.Max(p.Z, 0), 1),
		}
		if !inside {
			return c, true
		}
		best, axis, toMax := math.Inf(1), 0, false
		for a := 0; a < 3; a++ {
			v := p.Axis(a)
			if v < best {
				best, axis, toMax = v, a, false
			}
			if 1-v < best {
				best, axis, toMax = 1-v, a, true
			}
		}
		target := 0.0
		if toMax {
			target = 1
		}
		switch axis {
		case 0:
			c.X = target
		case 1:
			c.Y = target
		default:
			c.Z = target
		}
		return c, true
	}

	g, err := Sample(context.Background(), unitBox(1), 0.5, oracle, SampleOptions{})
	if err != nil {
		t.Fatalf("Sample() error = %v", err)
	}
	if w, h, d := g.Dims(); w != 3 || h != 3 || d != 3 {
		t.Fatalf("Dims() = %d,%d,%d, want 3,3,3", w, h, d)
	}
	if g.At(1, 1, 1) {
		t.Error("At(1,1,1) = true, want the cube centre unoccupied")
	}
	if g.Count() != 26 {
		t.Errorf("Count() = %d, want 26", g.Count())
	}
}

func TestSampleFailFast(t *testing.T) {
	oracle := func(p geom.Vec3) (geom.Vec3, bool) {
		if p.X > 1.5 {
			return geom.Vec3{}, false
		}
		return p, true
	}
	g, err := Sample(context.Background(), unitBox(3), 1, oracle, SampleOptions{Workers: 1})
	if g != nil {
		t.Error("Sample() returned a grid after an oracle failure")
	}
	if !errors.Is(err, ErrOracleFailed) {
		t.Fatalf("Sample() error = %v, want ErrOracleFailed", err)
	}
	var oerr *OracleError
	if !errors.As(err, &oerr) {
		t.Fatalf("Sample() error = %T, want *OracleError", err)
	}
	if oerr.Index != (Index{2, 0, 0}) {
		t.Errorf("OracleError.Index = %v, want (2,0,0)", oerr.Index)
	}
	if oerr.Point != (geom.Vec3{X: 2}) {
		t.Errorf("OracleError.Point = %v, want (2,0,0)", oerr.Point)
	}
}

func TestSampleFailFastStopsEarly(t *testing.T) {
	var calls atomic.Int64
	oracle := func(p geom.Vec3) (geom.Vec3, bool) {
		calls.Add(1)
		return geom.Vec3{}, false
	}
	_, err := Sample(context.Background(), unitBox(9), 1, oracle, SampleOptions{Workers: 1, ChunkSize: 10})
	if !errors.Is(err, ErrOracleFailed) {
		t.Fatalf("Sample() error = %v, want ErrOracleFailed", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("oracle called %d times, want 1", n)
	}
}

func TestSamplePartial(t *testing.T) {
	oracle := func(p geom.Vec3) (geom.Vec3, bool) {
		if p.X > 1.5 {
			return geom.Vec3{}, false
		}
		return p, true
	}
	g, err := Sample(context.Background(), unitBox(3), 1, oracle, SampleOptions{Partial: true, Workers: 4, ChunkSize: 5})
	var perr *PartialError
	if !errors.As(err, &perr) {
		t.Fatalf("Sample() error = %v, want *PartialError", err)
	}
	if perr.Failed != 32 {
		t.Errorf("PartialError.Failed = %d, want 32", perr.Failed)
	}
	if perr.First.Index != (Index{2, 0, 0}) {
		t.Errorf("PartialError.First.Index = %v, want (2,0,0)", perr.First.Index)
	}
	if !errors.Is(err, ErrOracleFailed) {
		t.Error("errors.Is(PartialError, ErrOracleFailed) = false")
	}
	if g == nil {
		t.Fatal("Sample() grid = nil in partial mode")
	}
	if g.Count() != 32 {
		t.Errorf("Count() = %d, want 32", g.Count())
	}
	if g.At(3, 0, 0) {
		t.Error("At(3,0,0) = true for a failed query")
	}
}

func TestSampleCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	oracle := func(p geom.Vec3) (geom.Vec3, bool) { return p, true }
	if _, err := Sample(ctx, unitBox(4), 1, oracle, SampleOptions{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Sample() error = %v, want context.Canceled", err)
	}
}

func TestSampleValidation(t *testing.T) {
	if _, err := Sample(context.Background(), unitBox(1), 0, sphereOracle(geom.Vec3{}, 1), SampleOptions{}); !errors.Is(err, ErrInvalidResolution) {
		t.Errorf("Sample(res=0) error = %v, want ErrInvalidResolution", err)
	}
	if _, err := Sample(context.Background(), unitBox(1), 1, nil, SampleOptions{}); !errors.Is(err, ErrNilOracle) {
		t.Errorf("Sample(nil oracle) error = %v, want ErrNilOracle", err)
	}
}

func TestSerialize(t *testing.T) {
	var inside, overlaps atomic.Int64
	raw := func(p geom.Vec3) (geom.Vec3, bool) {
		if inside.Add(1) > 1 {
			overlaps.Add(1)
		}
		defer inside.Add(-1)
		return p, true
	}
	g, err := Sample(context.Background(), unitBox(7), 1, Serialize(raw), SampleOptions{Workers: 8, ChunkSize: 3})
	if err != nil {
		t.Fatalf("Sample() error = %v", err)
	}
	if g.Count() != g.Len() {
		t.Errorf("Count() = %d, want %d", g.Count(), g.Len())
	}
	if n := overlaps.Load(); n != 0 {
		t.Errorf("serialized oracle overlapped %d times", n)
	}
}

func TestParseProximity(t *testing.T) {
	tests := []struct {
		in   string
		want Proximity
	}{
		{"", BoxProximity},
		{"box", BoxProximity},
		{"sphere", SphereProximity},
	}
	for _, tt := range tests {
		got, err := ParseProximity(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseProximity(%q) = %v, %v, want %v", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParseProximity("cone"); err == nil {
		t.Error("ParseProximity(cone) error = nil, want non-nil")
	}
}
