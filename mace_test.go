package mace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/macebuild/mace/internal/cliflags"
)

func TestAddTargetRejectsDuplicatesAndReserved(t *testing.T) {
	e := NewEngine()
	if err := e.AddTarget(Target{Name: "foo", Kind: Executable}); err != nil {
		t.Fatal(err)
	}
	if err := e.AddTarget(Target{Name: "foo", Kind: Executable}); err == nil {
		t.Fatal("expected duplicate target name to be rejected")
	}
	if err := e.AddTarget(Target{Name: "all", Kind: Executable}); err == nil {
		t.Fatal("expected reserved name 'all' to be rejected")
	}
}

func TestBuildOrderAndTransitiveClosure(t *testing.T) {
	e := NewEngine()
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(e.AddTarget(Target{Name: "core", Kind: StaticLibrary}))
	must(e.AddTarget(Target{Name: "util", Kind: StaticLibrary}))
	must(e.AddTarget(Target{Name: "app", Kind: Executable, Links: "core util"}))
	must(e.AddTarget(Target{Name: "unrelated", Kind: Executable}))

	full, err := e.buildOrder()
	if err != nil {
		t.Fatal(err)
	}
	if len(full) != 4 {
		t.Fatalf("expected 4 positions in the full order, got %d", len(full))
	}

	closure, err := e.transitiveClosure(full, "app")
	if err != nil {
		t.Fatal(err)
	}
	if len(closure) != 3 {
		t.Fatalf("expected app's closure to exclude 'unrelated', got %d entries", len(closure))
	}
	for _, pos := range closure {
		if e.targets[pos].Name == "unrelated" {
			t.Fatal("transitive closure must not include an unrelated target")
		}
	}
}

func TestAddTargetReportsNameHashCollisionWithoutFailing(t *testing.T) {
	// "az" and "bY" collide under djb2 (hash = hash*33+byte, h0=5381): both
	// start from the same h0, and 'a'*33+'z' == 'b'*33+'Y'
	// (97*33+122 == 98*33+89 == 3323), so the two names hash identically
	// while remaining textually distinct.
	e := NewEngine()
	if err := e.AddTarget(Target{Name: "az", Kind: Executable}); err != nil {
		t.Fatal(err)
	}
	if err := e.AddTarget(Target{Name: "bY", Kind: Executable}); err != nil {
		t.Fatalf("expected a name-hash collision to be reported, not rejected: %v", err)
	}
	if len(e.targets) != 2 {
		t.Fatalf("expected both colliding targets to be registered, got %d", len(e.targets))
	}
}

func TestSetSeparatorRejectsZeroByte(t *testing.T) {
	e := NewEngine()
	if err := e.SetSeparator(0); err == nil {
		t.Fatal("expected a zero separator byte to be rejected")
	}
}

func TestPackageLevelRunDispatchesToDefaultEngine(t *testing.T) {
	dir := t.TempDir()
	objDir := filepath.Join(dir, "obj")
	buildDir := filepath.Join(dir, "build")

	SetCompiler("/bin/true")
	SetArchiver("/bin/true")
	SetObjDir(objDir)
	SetBuildDir(buildDir)
	if err := AddTarget(Target{Name: "pkglevel", Kind: Executable, Sources: dir}); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "main.c"), []byte("int main_marker;\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if code := Run([]string{"mace"}); code != 0 {
		t.Fatalf("expected Run to succeed against the default engine, got exit code %d", code)
	}
}

func TestRunCleanRemovesOutputDirectories(t *testing.T) {
	dir := t.TempDir()
	objDir := filepath.Join(dir, "obj")
	buildDir := filepath.Join(dir, "build")
	if err := os.MkdirAll(objDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(buildDir, 0o755); err != nil {
		t.Fatal(err)
	}

	e := NewEngine()
	e.SetObjDir(objDir)
	e.SetBuildDir(buildDir)
	e.SetCompiler("/bin/true")

	if err := e.run(&cliflags.Options{Target: "clean", Jobs: 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(objDir); !os.IsNotExist(err) {
		t.Fatalf("expected obj dir removed, got stat err %v", err)
	}
}
