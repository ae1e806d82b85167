package buildengine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/macebuild/mace/internal/common"
	"github.com/macebuild/mace/internal/target"
)

func testEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	e, err := New(cfg, common.MakeLogger(0, true), uuid.Nil)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func writeSource(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("int "+name+"_marker;\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestResolveSourcesSkipsExcludes(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "keep.c")
	excluded := writeSource(t, dir, "skip.c")

	objDir := filepath.Join(dir, "obj")
	decl := target.Declared{
		Name:     "prog",
		Kind:     target.Executable,
		Sources:  dir,
		Excludes: excluded,
	}
	reg, err := target.New(0, decl, ' ', map[string]bool{})
	if err != nil {
		t.Fatal(err)
	}

	e := testEngine(t, Config{Compiler: "/bin/true", Archiver: "/bin/true", ObjDir: objDir, BuildDir: filepath.Join(dir, "build"), Separator: ' '})
	records, err := e.resolveSources(reg)
	require.NoError(t, err)
	require.Lenf(t, records, 1, "expected 1 resolved source after exclusion, got %+v", records)
	require.Equal(t, "keep.c", filepath.Base(records[0].source))
}

func TestResolveSourcesDisambiguatesBasenameCollisions(t *testing.T) {
	dirA := filepath.Join(t.TempDir(), "a")
	dirB := filepath.Join(t.TempDir(), "b")
	if err := os.MkdirAll(dirA, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(dirB, 0o755); err != nil {
		t.Fatal(err)
	}
	srcA := writeSource(t, dirA, "util.c")
	srcB := writeSource(t, dirB, "util.c")

	objDir := filepath.Join(t.TempDir(), "obj")
	decl := target.Declared{
		Name:    "prog",
		Kind:    target.Executable,
		Sources: srcA + " " + srcB,
	}
	reg, err := target.New(0, decl, ' ', map[string]bool{})
	if err != nil {
		t.Fatal(err)
	}

	e := testEngine(t, Config{Compiler: "/bin/true", Archiver: "/bin/true", ObjDir: objDir, BuildDir: filepath.Join(t.TempDir(), "build"), Separator: ' '})
	records, err := e.resolveSources(reg)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.NotEqual(t, records[0].object, records[1].object, "expected disambiguated object paths")
}

func TestResolveSourcesRecompileFirstRun(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "main.c")
	objDir := filepath.Join(dir, "obj")

	decl := target.Declared{Name: "prog", Kind: target.Executable, Sources: dir}
	reg, err := target.New(0, decl, ' ', map[string]bool{})
	if err != nil {
		t.Fatal(err)
	}

	e := testEngine(t, Config{Compiler: "/bin/true", Archiver: "/bin/true", ObjDir: objDir, BuildDir: filepath.Join(dir, "build"), Separator: ' '})
	records, err := e.resolveSources(reg)
	require.NoError(t, err)
	require.Lenf(t, records, 1, "expected a single resolved source: %+v", records)
	require.True(t, records[0].recompile, "expected the first run to mark the only source as needing recompilation")
}

func TestBuildOneEndToEndWithStubTools(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "main.c")

	decl := target.Declared{Name: "prog", Kind: target.Executable, Sources: dir}
	reg, err := target.New(0, decl, ' ', map[string]bool{})
	if err != nil {
		t.Fatal(err)
	}

	e := testEngine(t, Config{
		Compiler: "/bin/true", Archiver: "/bin/true",
		ObjDir: filepath.Join(dir, "obj"), BuildDir: filepath.Join(dir, "build"),
		Separator: ' ',
	})
	if err := e.Build([]*target.Registered{reg}, []int{0}); err != nil {
		t.Fatalf("expected stubbed tools to let the build succeed, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "build")); err != nil {
		t.Fatalf("expected build directory to be created: %v", err)
	}
}

func TestBuildPropagatesChildFailure(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "main.c")

	decl := target.Declared{Name: "prog", Kind: target.Executable, Sources: dir}
	reg, err := target.New(0, decl, ' ', map[string]bool{})
	if err != nil {
		t.Fatal(err)
	}

	e := testEngine(t, Config{
		Compiler: "/bin/false", Archiver: "/bin/true",
		ObjDir: filepath.Join(dir, "obj"), BuildDir: filepath.Join(dir, "build"),
		Separator: ' ',
	})
	if err := e.Build([]*target.Registered{reg}, []int{0}); err == nil {
		t.Fatal("expected a failing compiler to fail the build")
	}
}

func TestBuildRejectsEmptyOrder(t *testing.T) {
	e := testEngine(t, Config{Compiler: "/bin/true", Archiver: "/bin/true", ObjDir: t.TempDir(), BuildDir: t.TempDir(), Separator: ' '})
	if err := e.Build(nil, nil); err == nil {
		t.Fatal("expected an empty build order to be rejected")
	}
}

func TestCleanRemovesDirectories(t *testing.T) {
	dir := t.TempDir()
	objDir := filepath.Join(dir, "obj")
	buildDir := filepath.Join(dir, "build")
	if err := os.MkdirAll(objDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(buildDir, 0o755); err != nil {
		t.Fatal(err)
	}

	e := testEngine(t, Config{Compiler: "/bin/true", Archiver: "/bin/true", ObjDir: objDir, BuildDir: buildDir, Separator: ' '})
	if err := e.Clean(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(objDir); !os.IsNotExist(err) {
		t.Fatalf("expected obj dir to be removed, stat err = %v", err)
	}
	if _, err := os.Stat(buildDir); !os.IsNotExist(err) {
		t.Fatalf("expected build dir to be removed, stat err = %v", err)
	}
}

func TestDryRunDoesNotInvokeChildProcesses(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "main.c")

	decl := target.Declared{Name: "prog", Kind: target.Executable, Sources: dir}
	reg, err := target.New(0, decl, ' ', map[string]bool{})
	if err != nil {
		t.Fatal(err)
	}

	e := testEngine(t, Config{
		// a compiler/archiver that would fail loudly if actually invoked.
		Compiler: "/no/such/compiler", Archiver: "/no/such/archiver",
		ObjDir: filepath.Join(dir, "obj"), BuildDir: filepath.Join(dir, "build"),
		Separator: ' ', DryRun: true,
	})
	if err := e.Build([]*target.Registered{reg}, []int{0}); err != nil {
		t.Fatalf("expected dry-run to skip spawning child processes, got %v", err)
	}
}
