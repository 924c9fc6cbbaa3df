package scene

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/chazu/voxelizer/pkg/codec"
)

// SetFaceNormals switches object to flat per-face normals.
func (s *Store) SetFaceNormals(object string) error {
	res, err := s.db.Exec(`UPDATE objects SET normals=? WHERE name=? AND live=1`, NormalsFace, object)
	if err != nil {
		return err
	}
	return requireRow(res, object)
}

// ConformNormals rewinds the object's faces so they all point out of their
// cube, then stores the corrected geometry.
func (s *Store) ConformNormals(object string) error {
	m, err := s.Mesh(object)
	if err != nil {
		return err
	}
	if m.ConformWinding() == 0 {
		return nil
	}
	blob, err := codec.EncodeMesh(m)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(`UPDATE objects SET mesh=?, digest=? WHERE name=? AND live=1`, blob, digest(blob), object)
	if err != nil {
		return err
	}
	return requireRow(res, object)
}

// CreateShader stores a new shader. When name is taken a numeric suffix is
// appended; the name actually used is returned.
func (s *Store) CreateShader(kind, name string, color [4]float64) (string, error) {
	if kind == "" || name == "" {
		return "", ErrEmptyShader
	}
	actual := name
	for n := 1; ; n++ {
		_, err := s.Shader(actual)
		if errors.Is(err, ErrNoShader) {
			break
		}
		if err != nil {
			return "", err
		}
		actual = fmt.Sprintf("%s%d", name, n)
	}
	_, err := s.db.Exec(`INSERT INTO shaders(name,kind,r,g,b,a) VALUES(?,?,?,?,?,?)`,
		actual, kind, color[0], color[1], color[2], color[3])
	if err != nil {
		return "", fmt.Errorf("scene: insert shader %s: %w", actual, err)
	}
	return actual, nil
}

// Shader returns the shader named name.
func (s *Store) Shader(name string) (*Shader, error) {
	sh := Shader{Name: name}
	err := s.db.QueryRow(`SELECT kind,r,g,b,a FROM shaders WHERE name=?`, name).
		Scan(&sh.Kind, &sh.Color[0], &sh.Color[1], &sh.Color[2], &sh.Color[3])
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNoShader, name)
	}
	if err != nil {
		return nil, err
	}
	return &sh, nil
}

// AssignMaterial binds shader to object.
func (s *Store) AssignMaterial(object, shader string) error {
	if _, err := s.Shader(shader); err != nil {
		return err
	}
	res, err := s.db.Exec(`UPDATE objects SET shader=? WHERE name=? AND live=1`, shader, object)
	if err != nil {
		return err
	}
	return requireRow(res, object)
}

func requireRow(res sql.Result, object string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, object)
	}
	return nil
}
