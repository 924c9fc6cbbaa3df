package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/chazu/voxelizer/pkg/geom"
	"github.com/chazu/voxelizer/pkg/voxel"
)

const gridMagic = "VXG"

// grid header: width, height, depth (uint32) + min xyz, resolution (float64)
const gridHeaderLen = 3*4 + 4*8

// maxGridCells is the lattice size voxel.Dims refuses beyond.
const maxGridCells = 1 << 31

// Snapshot is a sampled grid together with the lattice placement needed to
// rebuild its geometry.
type Snapshot struct {
	Box        geom.Box
	Resolution float64
	Grid       *voxel.Grid
}

// EncodeGrid serialises a snapshot. Occupancy is bit-packed in grid offset
// order, least significant bit first.
func EncodeGrid(s *Snapshot) ([]byte, error) {
	if s.Grid == nil {
		return nil, fmt.Errorf("codec: snapshot has no grid")
	}
	w, h, d := s.Grid.Dims()
	var hdr bytes.Buffer
	for _, v := range []uint32{uint32(w), uint32(h), uint32(d)} {
		_ = binary.Write(&hdr, binary.LittleEndian, v)
	}
	for _, f := range []float64{s.Box.Min.X, s.Box.Min.Y, s.Box.Min.Z, s.Resolution} {
		_ = binary.Write(&hdr, binary.LittleEndian, f)
	}

	cells := s.Grid.Cells()
	bits := make([]byte, (len(cells)+7)/8)
	for i, c := range cells {
		if c {
			bits[i/8] |= 1 << (i % 8)
		}
	}
	return frame(gridMagic, hdr.Bytes(), bits)
}

// DecodeGrid parses a blob written by EncodeGrid. The snapshot's Box.Max is
// the last lattice point, not the surface bound it was sampled from.
func DecodeGrid(data []byte) (*Snapshot, error) {
	hdr, bits, err := unframe(gridMagic, gridHeaderLen, data)
	if err != nil {
		return nil, err
	}
	w := int(binary.LittleEndian.Uint32(hdr[0:]))
	h := int(binary.LittleEndian.Uint32(hdr[4:]))
	d := int(binary.LittleEndian.Uint32(hdr[8:]))
	f := func(off int) float64 { return math.Float64frombits(binary.LittleEndian.Uint64(hdr[off:])) }
	origin := geom.Vec3{X: f(12), Y: f(20), Z: f(28)}
	res := f(36)

	if w < 1 || h < 1 || d < 1 {
		return nil, fmt.Errorf("%w: grid dimensions %dx%dx%d", ErrCorrupt, w, h, d)
	}
	if !(res > 0) || math.IsInf(res, 0) || !origin.IsFinite() {
		return nil, fmt.Errorf("%w: lattice origin %v, resolution %g", ErrCorrupt, origin, res)
	}
	n := w
	for _, k := range []int{h, d} {
		if n > maxGridCells/k {
			return nil, fmt.Errorf("%w: grid dimensions %dx%dx%d", ErrCorrupt, w, h, d)
		}
		n *= k
	}
	if len(bits) != (n+7)/8 {
		return nil, fmt.Errorf("%w: %d occupancy bytes for %d cells", ErrCorrupt, len(bits), n)
	}
	g := voxel.NewGrid(w, h, d)
	cells := g.Cells()
	for i := range cells {
		cells[i] = bits[i/8]&(1<<(i%8)) != 0
	}
	return &Snapshot{
		Box:        geom.Box{Min: origin, Max: voxel.LatticePoint(origin, res, w-1, h-1, d-1)},
		Resolution: res,
		Grid:       g,
	}, nil
}

// WriteGridFile encodes s to path.
func WriteGridFile(path string, s *Snapshot) error {
	data, err := EncodeGrid(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadGridFile decodes a grid snapshot from path.
func ReadGridFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := DecodeGrid(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}
