package scene

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/chazu/voxelizer/pkg/geom"
	"github.com/chazu/voxelizer/pkg/host"
	"github.com/chazu/voxelizer/pkg/kernel/trimesh"
	"github.com/chazu/voxelizer/pkg/script"
	"github.com/chazu/voxelizer/pkg/voxel"
)

// Compile-time interface checks.
var (
	_ host.MeshSink = (*Store)(nil)
	_ script.Target = (*Store)(nil)
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scene.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func oneCube() *voxel.Mesh {
	g := voxel.NewGrid(1, 1, 1)
	g.Set(0, 0, 0, true)
	return voxel.Build(g, geom.Box{}, 1, voxel.BuildOptions{})
}

func TestCreateMesh(t *testing.T) {
	s, path := openTemp(t)

	id, err := s.CreateMesh("voxelizerMesh1", oneCube())
	if err != nil {
		t.Fatalf("CreateMesh() error = %v", err)
	}
	obj, err := s.Object("voxelizerMesh1")
	if err != nil {
		t.Fatalf("Object() error = %v", err)
	}
	if obj.ID != id || obj.Parent != DefaultParent || !obj.Live {
		t.Errorf("Object() = %+v, want id %d under %s, live", obj, id, DefaultParent)
	}
	if obj.Vertices != 8 || obj.Faces != 6 {
		t.Errorf("Object() counts = %d verts, %d faces, want 8, 6", obj.Vertices, obj.Faces)
	}
	if obj.Normals != NormalsSmooth {
		t.Errorf("Normals = %q, want %q", obj.Normals, NormalsSmooth)
	}

	m, err := s.Mesh("voxelizerMesh1")
	if err != nil {
		t.Fatalf("Mesh() error = %v", err)
	}
	if m.VertexCount() != 8 {
		t.Errorf("Mesh().VertexCount() = %d, want 8", m.VertexCount())
	}

	// The row is visible to a plain SQL reader.
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()
	var name, parent string
	if err := db.QueryRow(`SELECT name,parent FROM objects WHERE id=?`, int64(id)).Scan(&name, &parent); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if name != "voxelizerMesh1" || parent != "meshTransform" {
		t.Errorf("row = %q under %q", name, parent)
	}
}

func TestCreateMeshRejects(t *testing.T) {
	s, _ := openTemp(t)
	if _, err := s.CreateMesh("a", oneCube()); err != nil {
		t.Fatalf("CreateMesh() error = %v", err)
	}
	if _, err := s.CreateMesh("a", oneCube()); !errors.Is(err, ErrNameTaken) {
		t.Errorf("CreateMesh(duplicate) error = %v, want ErrNameTaken", err)
	}
	bad := &voxel.Mesh{FaceVertexCounts: []int{4}, FaceVertexIndices: []int{0, 1, 2, 3}}
	if _, err := s.CreateMesh("b", bad); err == nil {
		t.Error("CreateMesh(invalid) error = nil, want non-nil")
	}
}

func TestRemoveReinsert(t *testing.T) {
	s, _ := openTemp(t)
	id, err := s.CreateMesh("voxelizerMesh1", oneCube())
	if err != nil {
		t.Fatalf("CreateMesh() error = %v", err)
	}

	if err := s.Remove(id); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if s.Exists("voxelizerMesh1") {
		t.Error("Exists() = true after Remove")
	}
	if err := s.Remove(id); !errors.Is(err, ErrNotLive) {
		t.Errorf("Remove() twice error = %v, want ErrNotLive", err)
	}
	if err := s.Reinsert(id); err != nil {
		t.Fatalf("Reinsert() error = %v", err)
	}
	if err := s.Reinsert(id); !errors.Is(err, ErrLive) {
		t.Errorf("Reinsert() twice error = %v, want ErrLive", err)
	}
	if err := s.Remove(host.ObjectID(999)); !errors.Is(err, ErrNotFound) {
		t.Errorf("Remove(unknown) error = %v, want ErrNotFound", err)
	}

	objs, err := s.Objects()
	if err != nil {
		t.Fatalf("Objects() error = %v", err)
	}
	if len(objs) != 1 || objs[0].ID != id {
		t.Errorf("Objects() = %+v, want the reinserted object", objs)
	}
}

func TestTargetCommands(t *testing.T) {
	s, _ := openTemp(t)
	if _, err := s.CreateMesh("m", oneCube()); err != nil {
		t.Fatalf("CreateMesh() error = %v", err)
	}
	before, _ := s.Object("m")

	if err := s.SetFaceNormals("m"); err != nil {
		t.Fatalf("SetFaceNormals() error = %v", err)
	}
	if err := s.ConformNormals("m"); err != nil {
		t.Fatalf("ConformNormals() error = %v", err)
	}
	after, _ := s.Object("m")
	if after.Normals != NormalsFace {
		t.Errorf("Normals = %q, want %q", after.Normals, NormalsFace)
	}
	if after.Digest == before.Digest {
		t.Error("digest unchanged after conforming an inconsistently wound cube")
	}
	m, _ := s.Mesh("m")
	if n := m.ConformWinding(); n != 0 {
		t.Errorf("stored mesh still has %d inward faces", n)
	}

	shader, err := s.CreateShader("lambert", "voxelizerLambert", [4]float64{0.5, 0.5, 0.5, 1})
	if err != nil {
		t.Fatalf("CreateShader() error = %v", err)
	}
	if err := s.AssignMaterial("m", shader); err != nil {
		t.Fatalf("AssignMaterial() error = %v", err)
	}
	if obj, _ := s.Object("m"); obj.Shader != "voxelizerLambert" {
		t.Errorf("Shader = %q, want voxelizerLambert", obj.Shader)
	}

	if err := s.SetFaceNormals("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetFaceNormals(missing) error = %v, want ErrNotFound", err)
	}
	if err := s.AssignMaterial("m", "nope"); !errors.Is(err, ErrNoShader) {
		t.Errorf("AssignMaterial(unknown shader) error = %v, want ErrNoShader", err)
	}
}

func TestCreateShaderUniquifies(t *testing.T) {
	s, _ := openTemp(t)
	names := make([]string, 3)
	for i := range names {
		n, err := s.CreateShader("lambert", "lambert", [4]float64{1, 1, 1, 1})
		if err != nil {
			t.Fatalf("CreateShader() error = %v", err)
		}
		names[i] = n
	}
	want := []string{"lambert", "lambert1", "lambert2"}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("shader %d = %q, want %q", i, names[i], want[i])
		}
	}
	if _, err := s.CreateShader("", "x", [4]float64{}); !errors.Is(err, ErrEmptyShader) {
		t.Errorf("CreateShader(no kind) error = %v, want ErrEmptyShader", err)
	}
}

func TestVoxelizeIntoScene(t *testing.T) {
	s, _ := openTemp(t)
	engine := script.NewEngine(s, script.Config{})
	session := host.NewSession("", 1)
	session.Taken = s.Exists
	f := &host.Facade{Sink: s, Normals: engine, Materials: engine, Session: session}
	var history host.History

	cube := trimesh.Cube("pCube1", geom.Vec3{}, geom.Vec3{X: 1, Y: 1, Z: 1})
	act, err := f.Voxelize(context.Background(), host.Surfaces{cube}, 0.5)
	if err != nil {
		t.Fatalf("Voxelize() error = %v", err)
	}
	history.Push(act)

	obj, err := s.Object("voxelizerMesh1")
	if err != nil {
		t.Fatalf("Object() error = %v", err)
	}
	if obj.Faces != 26*6 || obj.Normals != NormalsFace || obj.Shader != "voxelizerLambert" {
		t.Errorf("Object() = %+v, want 156 faces, face normals, voxelizerLambert", obj)
	}

	if _, err := history.Undo(); err != nil {
		t.Fatalf("Undo() error = %v", err)
	}
	if s.Exists("voxelizerMesh1") {
		t.Error("object still in the scene after undo")
	}
	if _, err := history.Redo(); err != nil {
		t.Fatalf("Redo() error = %v", err)
	}
	if !s.Exists("voxelizerMesh1") {
		t.Error("object missing after redo")
	}

	// A second run gets the next name.
	act2, err := f.Voxelize(context.Background(), host.Surfaces{cube}, 1)
	if err != nil {
		t.Fatalf("Voxelize() error = %v", err)
	}
	if act2.Object != "voxelizerMesh2" {
		t.Errorf("Object = %q, want voxelizerMesh2", act2.Object)
	}
	if sh, err := s.Shader("voxelizerLambert1"); err != nil || sh.Kind != "lambert" {
		t.Errorf("Shader(voxelizerLambert1) = %+v, %v, want a second lambert", sh, err)
	}
}

func TestLookupFailureIsSurfaced(t *testing.T) {
	s, _ := openTemp(t)
	if _, err := s.db.Exec(`DROP TABLE objects`); err != nil {
		t.Fatalf("drop: %v", err)
	}

	var logs bytes.Buffer
	log.SetOutput(&logs)
	defer log.SetOutput(os.Stderr)

	if s.Exists("voxelizerMesh1") {
		t.Error("Exists() = true without an objects table")
	}
	if !strings.Contains(logs.String(), "scene: lookup voxelizerMesh1") {
		t.Errorf("log = %q, want the lookup failure", logs.String())
	}

	_, err := s.CreateMesh("voxelizerMesh1", oneCube())
	if err == nil || errors.Is(err, ErrNameTaken) {
		t.Fatalf("CreateMesh() error = %v, want the lookup failure", err)
	}
	if !strings.Contains(err.Error(), "scene: lookup") {
		t.Errorf("CreateMesh() error = %v, want it to come from the name lookup", err)
	}
}
