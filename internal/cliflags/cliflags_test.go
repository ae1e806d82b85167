package cliflags

import "testing"

func TestParseDefaults(t *testing.T) {
	opts, err := Parse("test", nil)
	if err != nil {
		t.Fatal(err)
	}
	if opts.Compiler != "" || opts.Jobs != 1 || opts.Macefile != "macefile.c" {
		t.Fatalf("unexpected defaults: %+v", opts)
	}
	if opts.Target != "" {
		t.Fatalf("expected no positional target by default, got %q", opts.Target)
	}
}

func TestParseFlagsAndPositional(t *testing.T) {
	opts, err := Parse("test", []string{"-B", "-j", "4", "-c", "clang", "mytarget"})
	if err != nil {
		t.Fatal(err)
	}
	if !opts.AlwaysMake {
		t.Fatal("expected -B to set AlwaysMake")
	}
	if opts.Jobs != 4 {
		t.Fatalf("expected Jobs=4, got %d", opts.Jobs)
	}
	if opts.Compiler != "clang" {
		t.Fatalf("expected Compiler=clang, got %q", opts.Compiler)
	}
	if opts.Target != "mytarget" {
		t.Fatalf("expected positional target %q, got %q", "mytarget", opts.Target)
	}
}

func TestParseRejectsNonPositiveJobs(t *testing.T) {
	if _, err := Parse("test", []string{"-j", "0"}); err == nil {
		t.Fatal("expected --jobs 0 to be rejected")
	}
}

func TestParseLongFlags(t *testing.T) {
	opts, err := Parse("test", []string{"--always-make", "--silent", "--dry-run", "--old-file", "foo.o", "--old-file", "bar.o"})
	if err != nil {
		t.Fatal(err)
	}
	if !opts.AlwaysMake || !opts.Silent || !opts.DryRun {
		t.Fatalf("expected long-form boolean flags to be set: %+v", opts)
	}
	if len(opts.OldFiles) != 2 || opts.OldFiles[0] != "foo.o" || opts.OldFiles[1] != "bar.o" {
		t.Fatalf("expected repeated --old-file to accumulate, got %v", opts.OldFiles)
	}
}
