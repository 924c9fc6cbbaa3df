package voxel

import "testing"

func mustPanic(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s did not panic", name)
		}
	}()
	fn()
}

func TestNewGridDefaultsEmpty(t *testing.T) {
	g := NewGrid(3, 4, 5)
	if w, h, d := g.Dims(); w != 3 || h != 4 || d != 5 {
		t.Errorf("Dims() = %d,%d,%d, want 3,4,5", w, h, d)
	}
	if g.Len() != 60 {
		t.Errorf("Len() = %d, want 60", g.Len())
	}
	if g.Count() != 0 {
		t.Errorf("Count() = %d, want 0", g.Count())
	}
}

func TestNewGridRejectsZeroDimension(t *testing.T) {
	mustPanic(t, "NewGrid(0,1,1)", func() { NewGrid(0, 1, 1) })
	mustPanic(t, "NewGrid(1,1,-2)", func() { NewGrid(1, 1, -2) })
}

func TestGridSetAt(t *testing.T) {
	g := NewGrid(2, 3, 4)
	g.Set(1, 2, 3, true)
	g.Set(0, 1, 0, true)
	g.Set(0, 1, 0, false)

	if !g.At(1, 2, 3) {
		t.Error("At(1,2,3) = false, want true")
	}
	if g.At(0, 1, 0) {
		t.Error("At(0,1,0) = true, want false after clearing")
	}
	if g.Count() != 1 {
		t.Errorf("Count() = %d, want 1", g.Count())
	}
	if got := g.Offset(1, 2, 3); got != 1+2*(2+3*3) {
		t.Errorf("Offset(1,2,3) = %d, want %d", got, 1+2*(2+3*3))
	}
}

func TestGridOutOfRangePanics(t *testing.T) {
	g := NewGrid(2, 2, 2)
	tests := []struct {
		name    string
		x, y, z int
	}{
		{"x high", 2, 0, 0},
		{"y high", 0, 2, 0},
		{"z high", 0, 0, 2},
		{"negative", -1, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mustPanic(t, "At", func() { g.At(tt.x, tt.y, tt.z) })
			mustPanic(t, "Set", func() { g.Set(tt.x, tt.y, tt.z, true) })
			if g.Occupied(tt.x, tt.y, tt.z) {
				t.Error("Occupied() = true outside the grid")
			}
		})
	}
}

func TestGridCoordsRoundTrip(t *testing.T) {
	g := NewGrid(3, 2, 4)
	for off := 0; off < g.Len(); off++ {
		x, y, z := g.Coords(off)
		if got := g.Offset(x, y, z); got != off {
			t.Fatalf("Offset(Coords(%d)) = %d", off, got)
		}
	}
	mustPanic(t, "Coords(Len())", func() { g.Coords(g.Len()) })
}

func TestGridEqual(t *testing.T) {
	a := NewGrid(2, 2, 2)
	b := NewGrid(2, 2, 2)
	if !a.Equal(b) {
		t.Error("Equal() = false for two empty grids")
	}
	a.Set(1, 1, 1, true)
	if a.Equal(b) {
		t.Error("Equal() = true for different occupancy")
	}
	if a.Equal(NewGrid(2, 2, 3)) {
		t.Error("Equal() = true for different dimensions")
	}
}
