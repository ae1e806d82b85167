// Command macebuild is the convenience executable spec.md §6 describes:
// it compiles the caller's build-description source into a standalone
// "builder" binary, then execs that binary forwarding the CLI flags it
// doesn't need for the compile step itself. Grounded on
// original_source/convenience_executable.c's mace.c: build the compile
// command, run it, then build and run the forwarding argv for the result.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/macebuild/mace/internal/cliflags"
)

const (
	defaultMacefile = "macefile.go"
	defaultBuilder  = "builder"
)

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	opts, err := cliflags.Parse("dev", args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	macefile := opts.Macefile
	if macefile == "" {
		macefile = defaultMacefile
	}
	if opts.Directory != "" {
		if err := os.Chdir(opts.Directory); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
	}

	goTool, err := exec.LookPath("go")
	if err != nil {
		fmt.Fprintln(os.Stderr, "macebuild: cannot find a Go toolchain to compile", macefile, ":", err)
		return 2
	}

	builder, err := filepath.Abs(defaultBuilder)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	compile := exec.Command(goTool, "build", "-o", builder, macefile)
	compile.Stdout = os.Stdout
	compile.Stderr = os.Stderr
	if err := compile.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "macebuild: compiling", macefile, "failed:", err)
		return exitCodeOf(err)
	}

	forwarded := forwardArgs(opts)
	builderCmd := exec.Command(builder, forwarded...)
	builderCmd.Stdout = os.Stdout
	builderCmd.Stderr = os.Stderr
	builderCmd.Stdin = os.Stdin
	if err := builderCmd.Run(); err != nil {
		return exitCodeOf(err)
	}
	return 0
}

// forwardArgs rebuilds the relevant subset of opts as an argv for the
// compiled builder, exactly as convenience_executable.c re-emits the
// -B/-d/-n/-s/-j/-c flags it parsed for itself onto the builder it execs.
func forwardArgs(opts *cliflags.Options) []string {
	var argv []string
	if opts.AlwaysMake {
		argv = append(argv, "-B")
	}
	if opts.Debug {
		argv = append(argv, "-d")
	}
	if opts.DryRun {
		argv = append(argv, "-n")
	}
	if opts.Silent {
		argv = append(argv, "-s")
	}
	if opts.Jobs > 1 {
		argv = append(argv, "-j", fmt.Sprint(opts.Jobs))
	}
	if opts.Compiler != "" {
		argv = append(argv, "-c", opts.Compiler)
	}
	for _, old := range opts.OldFiles {
		argv = append(argv, "-o", old)
	}
	if opts.Target != "" {
		argv = append(argv, opts.Target)
	}
	return argv
}

func exitCodeOf(err error) int {
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return 1
}
