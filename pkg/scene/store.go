// Package scene is a SQLite-backed scene: it stores the mesh objects the
// voxelizer creates, the shaders assigned to them and their normal mode.
// A Store is the host's MeshSink and the script Target at the same time.
package scene

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/chazu/voxelizer/pkg/codec"
	"github.com/chazu/voxelizer/pkg/host"
	"github.com/chazu/voxelizer/pkg/voxel"
)

// DefaultParent is the transform node new meshes are created under.
const DefaultParent = "meshTransform"

// Normal modes recorded per object.
const (
	NormalsSmooth = "smooth"
	NormalsFace   = "face"
)

var (
	ErrNotFound    = errors.New("scene: no such object")
	ErrNotLive     = errors.New("scene: object is not in the scene")
	ErrLive        = errors.New("scene: object is already in the scene")
	ErrNameTaken   = errors.New("scene: name already in use")
	ErrNoShader    = errors.New("scene: no such shader")
	ErrEmptyShader = errors.New("scene: empty shader kind or name")
)

// Object is the stored summary of a mesh object.
type Object struct {
	ID       host.ObjectID
	Name     string
	Parent   string
	Live     bool
	Vertices int
	Faces    int
	Normals  string
	Shader   string
	Digest   string
}

// Shader is a stored material node.
type Shader struct {
	Name  string
	Kind  string
	Color [4]float64
}

// Store is a scene persisted in SQLite. Methods are safe for concurrent
// use; the underlying database allows one connection.
type Store struct {
	db     *sql.DB
	parent string
}

// Open opens or creates a scene database. path ":memory:" gives a
// throwaway scene.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("scene: empty db path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, parent: DefaultParent}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS shaders (
			name TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			r REAL NOT NULL,
			g REAL NOT NULL,
			b REAL NOT NULL,
			a REAL NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS objects (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			parent TEXT NOT NULL,
			live INTEGER NOT NULL DEFAULT 1,
			vertices INTEGER NOT NULL,
			faces INTEGER NOT NULL,
			normals TEXT NOT NULL DEFAULT 'smooth',
			shader TEXT REFERENCES shaders(name),
			mesh BLOB NOT NULL,
			digest TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_objects_name ON objects(name, live);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Exists reports whether a live object is named name. It fits
// host.Session.Taken. A failed lookup is logged and reported as free;
// CreateMesh repeats the lookup and returns the error.
func (s *Store) Exists(name string) bool {
	ok, err := s.exists(name)
	if err != nil {
		log.Printf("[voxelize] %v", err)
	}
	return ok
}

func (s *Store) exists(name string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM objects WHERE name=? AND live=1`, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("scene: lookup %s: %w", name, err)
	}
	return n > 0, nil
}

// CreateMesh stores m as a new live object under the default parent.
func (s *Store) CreateMesh(name string, m *voxel.Mesh) (host.ObjectID, error) {
	if err := m.Validate(); err != nil {
		return 0, err
	}
	taken, err := s.exists(name)
	if err != nil {
		return 0, err
	}
	if taken {
		return 0, fmt.Errorf("%w: %s", ErrNameTaken, name)
	}
	blob, err := codec.EncodeMesh(m)
	if err != nil {
		return 0, err
	}
	res, err := s.db.Exec(
		`INSERT INTO objects(name,parent,live,vertices,faces,normals,mesh,digest,created_at) VALUES(?,?,1,?,?,?,?,?,?)`,
		name, s.parent, m.VertexCount(), m.FaceCount(), NormalsSmooth, blob, digest(blob),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("scene: insert %s: %w", name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return host.ObjectID(id), nil
}

// Remove takes a live object out of the scene, keeping its data for
// Reinsert.
func (s *Store) Remove(id host.ObjectID) error {
	return s.setLive(id, false)
}

// Reinsert puts a removed object back.
func (s *Store) Reinsert(id host.ObjectID) error {
	return s.setLive(id, true)
}

func (s *Store) setLive(id host.ObjectID, live bool) error {
	obj, err := s.objectByID(id)
	if err != nil {
		return err
	}
	switch {
	case live && obj.Live:
		return fmt.Errorf("%w: %s", ErrLive, obj.Name)
	case !live && !obj.Live:
		return fmt.Errorf("%w: %s", ErrNotLive, obj.Name)
	}
	if live {
		taken, err := s.exists(obj.Name)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: %s", ErrNameTaken, obj.Name)
		}
	}
	_, err = s.db.Exec(`UPDATE objects SET live=? WHERE id=?`, boolInt(live), int64(id))
	return err
}

// Object returns the live object named name.
func (s *Store) Object(name string) (*Object, error) {
	row := s.db.QueryRow(`SELECT `+objectCols+` FROM objects WHERE name=? AND live=1`, name)
	obj, err := scanObject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return obj, err
}

func (s *Store) objectByID(id host.ObjectID) (*Object, error) {
	row := s.db.QueryRow(`SELECT `+objectCols+` FROM objects WHERE id=?`, int64(id))
	obj, err := scanObject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return obj, err
}

// Objects lists live objects in creation order.
func (s *Store) Objects() ([]Object, error) {
	rows, err := s.db.Query(`SELECT ` + objectCols + ` FROM objects WHERE live=1 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Object
	for rows.Next() {
		obj, err := scanObject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *obj)
	}
	return out, rows.Err()
}

// Mesh loads the geometry of the live object named name.
func (s *Store) Mesh(name string) (*voxel.Mesh, error) {
	var blob []byte
	err := s.db.QueryRow(`SELECT mesh FROM objects WHERE name=? AND live=1`, name).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return codec.DecodeMesh(blob)
}

const objectCols = `id,name,parent,live,vertices,faces,normals,COALESCE(shader,''),digest`

type scanner interface {
	Scan(dest ...any) error
}

func scanObject(r scanner) (*Object, error) {
	var (
		obj  Object
		id   int64
		live int
	)
	if err := r.Scan(&id, &obj.Name, &obj.Parent, &live, &obj.Vertices, &obj.Faces, &obj.Normals, &obj.Shader, &obj.Digest); err != nil {
		return nil, err
	}
	obj.ID = host.ObjectID(id)
	obj.Live = live != 0
	return &obj, nil
}

func digest(blob []byte) string {
	return strconv.FormatUint(codec.Digest(blob), 16)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
