// Package procpool implements C6: a fixed-capacity FIFO of child processes,
// bounded by a configurable concurrency limit, waited on in order, with
// failures propagated. Grounded on the fork/exec + captured stdout/stderr
// pattern in VKCOM-nocc's internal/server/cxx-launcher.go and
// internal/client/compile-locally.go, generalized from "launch one cxx"
// into the bounded, FIFO-reaping scheduler spec.md §4.6 describes.
package procpool

import (
	"bytes"
	"fmt"
	"os/exec"

	"github.com/sasha-s/go-deadlock"

	"github.com/macebuild/mace/internal/common"
)

// execFailedExitCode is what spec.md §9's redesigned behavior reports when
// the child process itself could not be exec'd at all (the Go equivalent
// of execvp failing before the child image ever runs) - mirroring the
// original's documented fix of "exit with a distinct non-zero status
// (e.g. 127) if exec fails".
const execFailedExitCode = 127

// Invocation is one process to run: its argument vector and the working
// directory it should run in.
type Invocation struct {
	Argv []string
	Dir  string
}

// Result is the outcome of one Invocation.
type Result struct {
	Invocation Invocation
	ExitCode   int
	Stdout     []byte
	Stderr     []byte
}

type inflight struct {
	inv Invocation
	cmd *exec.Cmd
	out *bytes.Buffer
	errb *bytes.Buffer
}

// Pool is a fixed-capacity FIFO of outstanding child processes.
type Pool struct {
	capacity int
	logger   *common.Logger

	mu    deadlock.Mutex
	queue []*inflight
}

// New creates a pool with the given capacity (spec.md §4.6: defaults to 1
// for serial execution; -j N sets it to N).
func New(capacity int, logger *common.Logger) (*Pool, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: process pool capacity must be >= 1, got %d", common.ErrConfiguration, capacity)
	}
	return &Pool{capacity: capacity, logger: logger}, nil
}

// spawn forks a child executing argv in dir and enqueues it, without
// waiting. Callers must hold mu.
func (p *Pool) spawn(inv Invocation) *inflight {
	cmd := exec.Command(inv.Argv[0], inv.Argv[1:]...)
	cmd.Dir = inv.Dir
	out, errb := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.Stdout = out
	cmd.Stderr = errb

	f := &inflight{inv: inv, cmd: cmd, out: out, errb: errb}
	if err := cmd.Start(); err != nil {
		// the Go equivalent of a failed execvp: no process was ever
		// started, so there's nothing to Wait() on later.
		f.cmd = nil
		fmt.Fprintln(errb, err)
	}
	p.logger.Info(1, "spawn", inv.Argv)
	return f
}

// waitOne waits on the oldest outstanding child, popping it from the
// queue, and turns its outcome into a Result. A non-zero exit (or a
// failed exec) returns an error wrapping common.ErrChildProcess, per
// spec.md §4.6/§7's "propagate child's exit status" policy.
func (p *Pool) waitOne() (Result, error) {
	p.mu.Lock()
	f := p.queue[0]
	p.queue = p.queue[1:]
	p.mu.Unlock()

	exitCode := execFailedExitCode
	if f.cmd != nil {
		err := f.cmd.Wait()
		if f.cmd.ProcessState != nil {
			exitCode = f.cmd.ProcessState.ExitCode()
		}
		if err != nil && f.cmd.ProcessState == nil {
			exitCode = execFailedExitCode
		}
	}

	result := Result{Invocation: f.inv, ExitCode: exitCode, Stdout: f.out.Bytes(), Stderr: f.errb.Bytes()}
	if exitCode != 0 {
		stderr := result.Stderr
		if exitCode == execFailedExitCode {
			stderr = append([]byte("(exec failed) "), stderr...)
		}
		return result, &common.ChildProcessError{Argv: f.inv.Argv, ExitCode: exitCode, Stderr: stderr}
	}
	return result, nil
}

// RunAll drives every invocation through the exact interleaved spawn/reap
// loop spec.md §4.6 specifies: spawn while the pool has room and work
// remains, reap the oldest once either is exhausted, repeat until both the
// input and the pool are drained. It stops at the first non-zero exit,
// leaving any still-running children to be reaped by the OS
// (spec.md §5's Cancellation: "outstanding children are not explicitly
// killed").
func (p *Pool) RunAll(invocations []Invocation) ([]Result, error) {
	results := make([]Result, 0, len(invocations))
	i := 0
	n := len(invocations)

	for {
		if i < n && len(p.queue) < p.capacity {
			p.mu.Lock()
			p.queue = append(p.queue, p.spawn(invocations[i]))
			p.mu.Unlock()
			i++
			continue
		}
		if len(p.queue) > 0 {
			result, err := p.waitOne()
			results = append(results, result)
			if err != nil {
				return results, err
			}
			continue
		}
		if i == n {
			break
		}
	}
	return results, nil
}

// Drain waits on all outstanding children without spawning anything new,
// matching spec.md §4.6's drain() primitive. RunAll already drains the pool
// before it returns, so the build phases do not call Drain.
func (p *Pool) Drain() ([]Result, error) {
	var results []Result
	for len(p.queue) > 0 {
		result, err := p.waitOne()
		results = append(results, result)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}
