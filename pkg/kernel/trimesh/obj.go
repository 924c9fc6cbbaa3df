package trimesh

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chazu/voxelizer/pkg/geom"
)

// LoadOBJ reads a Wavefront OBJ file. See ReadOBJ.
func LoadOBJ(path string) (*Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	m, err := ReadOBJ(name, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// ReadOBJ parses the geometric subset of Wavefront OBJ: "v x y z" vertex
// lines and "f a b c ..." polygon lines. Polygons are fan-triangulated;
// "a/t/n" references use only the vertex index; negative indices are
// relative to the end of the vertex list. Everything else is ignored.
func ReadOBJ(name string, r io.Reader) (*Mesh, error) {
	var (
		verts []geom.Vec3
		faces []int
	)
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "v":
			if len(fields) < 4 {
				return nil, fmt.Errorf("line %d: vertex needs 3 coordinates, found %d", lineNo, len(fields)-1)
			}
			var c [3]float64
			for i := range c {
				f, err := strconv.ParseFloat(fields[1+i], 64)
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", lineNo, err)
				}
				c[i] = f
			}
			verts = append(verts, geom.Vec3{X: c[0], Y: c[1], Z: c[2]})
		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("line %d: face needs at least 3 vertices, found %d", lineNo, len(fields)-1)
			}
			idx := make([]int, 0, len(fields)-1)
			for _, ref := range fields[1:] {
				i, err := faceVertex(ref, len(verts))
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", lineNo, err)
				}
				idx = append(idx, i)
			}
			for j := 1; j+1 < len(idx); j++ {
				faces = append(faces, idx[0], idx[j], idx[j+1])
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return New(name, verts, faces)
}

func faceVertex(ref string, count int) (int, error) {
	head, _, _ := strings.Cut(ref, "/")
	i, err := strconv.Atoi(head)
	if err != nil {
		return 0, fmt.Errorf("bad face vertex %q: %w", ref, err)
	}
	switch {
	case i > 0:
		i--
	case i < 0:
		i += count
	default:
		return 0, fmt.Errorf("face vertex index 0 is invalid")
	}
	if i < 0 || i >= count {
		return 0, fmt.Errorf("face vertex %q references undefined vertex", ref)
	}
	return i, nil
}
