package common

import (
	"fmt"
	"testing"
)

func TestExitCodeForChildProcessErrorPropagatesExactCode(t *testing.T) {
	err := &ChildProcessError{Argv: []string{"cc", "main.c"}, ExitCode: 2, Stderr: []byte("main.c:1: error")}
	if code := ExitCodeFor(err); code != 2 {
		t.Fatalf("expected exit code 2, got %d", code)
	}
}

func TestExitCodeForChildProcessErrorSurvivesWrapping(t *testing.T) {
	inner := &ChildProcessError{Argv: []string{"ld"}, ExitCode: 127}
	wrapped := fmt.Errorf("linking failed: %w", inner)
	if code := ExitCodeFor(wrapped); code != 127 {
		t.Fatalf("expected exit code 127 to survive wrapping, got %d", code)
	}
}

func TestExitCodeForClassMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: bad separator", ErrConfiguration), ExitConfiguration},
		{fmt.Errorf("%w: circular link", ErrGraph), ExitGraphOrNoTargets},
		{fmt.Errorf("%w: chdir failed", ErrFilesystem), ExitFilesystem},
		{fmt.Errorf("%w: checksum mismatch", ErrIntegrity), ExitIntegrity},
		{fmt.Errorf("%w: nothing to do", ErrEmptyBuildOrder), ExitEmptyBuildOrder},
		{nil, ExitOK},
	}
	for _, c := range cases {
		if got := ExitCodeFor(c.err); got != c.want {
			t.Fatalf("ExitCodeFor(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}
