package common

import (
	"errors"
	"fmt"
)

// Error kinds and their dispositions (spec.md §7). Each maps to one of the
// exit codes spec.md §6 assigns to a class of failure. Errors returned from
// deep inside the engine are expected to be wrapped with one of these via
// fmt.Errorf("%w: ...") so the top-level Run can pick the right exit code
// without re-deriving the failure class from string matching.
var (
	// ErrConfiguration covers user-error configuration: duplicate/reserved
	// target names, bad separators, unknown CLI flags, missing targets.
	ErrConfiguration = errors.New("configuration error")

	// ErrGraph covers circular dependencies and other graph-shape failures,
	// detected only after the user's entry callback has run.
	ErrGraph = errors.New("graph error")

	// ErrFilesystem covers glob failures, chdir failures, and other
	// filesystem/fork errors.
	ErrFilesystem = errors.New("filesystem error")

	// ErrIntegrity covers corrupted checksum sidecars and detected hash
	// collisions; never silently repaired.
	ErrIntegrity = errors.New("integrity error")

	// ErrChildProcess wraps a non-zero exit (or exec failure) from a
	// spawned compiler/archiver invocation.
	ErrChildProcess = errors.New("child process error")

	// ErrInternal marks an engine invariant violation (out-of-range build
	// order index, pool underflow) - these indicate bugs in the engine
	// itself, not in the user's build description.
	ErrInternal = errors.New("internal invariant violated")

	// ErrEmptyBuildOrder is returned when the computed build order is
	// empty after post-user validation.
	ErrEmptyBuildOrder = errors.New("empty build order")
)

// ChildProcessError wraps ErrChildProcess with the exit code the child
// itself reported (or execFailedExitCode if it never started), so
// ExitCodeFor can propagate that code verbatim instead of flattening every
// child failure into one class's exit status - spec.md §7's "propagate
// child's exit status" policy.
type ChildProcessError struct {
	Argv     []string
	ExitCode int
	Stderr   []byte
}

func (e *ChildProcessError) Error() string {
	return fmt.Sprintf("%v exited with status %d: %s", e.Argv, e.ExitCode, e.Stderr)
}

func (e *ChildProcessError) Unwrap() error {
	return ErrChildProcess
}

// Exit codes per spec.md §6, expressed as the errno values the original C
// implementation exits with (EPERM, ENXIO, ENOENT, EIO, EDOM). Kept as
// plain ints (not syscall.Errno) since they're process exit statuses, not
// an error value checked anywhere in-process.
const (
	ExitOK               = 0
	ExitConfiguration    = 1  // EPERM
	ExitFilesystem       = 2  // ENOENT
	ExitIntegrity        = 5  // EIO
	ExitGraphOrNoTargets = 6  // ENXIO
	ExitEmptyBuildOrder  = 33 // EDOM
)

// ExitCodeFor maps a wrapped engine error to the process exit code spec.md
// §6 specifies for its class. A *ChildProcessError's own exit code always
// takes priority, per spec.md §7's "propagate child's exit status" - it is
// never folded into the EPERM/ENXIO/ENOENT/EIO/EDOM class mapping below.
// Unwrapped/unknown errors fall back to ExitConfiguration, matching the
// "print and exit immediately" default disposition for configuration-shaped
// failures.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitOK
	}
	var childErr *ChildProcessError
	if errors.As(err, &childErr) {
		return childErr.ExitCode
	}
	switch {
	case errors.Is(err, ErrEmptyBuildOrder):
		return ExitEmptyBuildOrder
	case errors.Is(err, ErrIntegrity):
		return ExitIntegrity
	case errors.Is(err, ErrGraph):
		return ExitGraphOrNoTargets
	case errors.Is(err, ErrFilesystem):
		return ExitFilesystem
	case errors.Is(err, ErrConfiguration):
		return ExitConfiguration
	default:
		return ExitConfiguration
	}
}
