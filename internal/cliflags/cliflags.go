// Package cliflags implements C8: parsing the engine's CLI surface with
// github.com/integrii/flaggy, the paired short/long flag library
// jesseduffield-lazydocker's main.go wires up the same way (flaggy.Bool,
// flaggy.String, flaggy.StringSlice, one positional value).
package cliflags

import (
	"fmt"

	"github.com/integrii/flaggy"

	"github.com/macebuild/mace/internal/common"
)

// Options is the parsed CLI surface spec.md §4.8 enumerates.
type Options struct {
	AlwaysMake bool     // -B / --always-make
	Directory  string   // -C / --directory
	Compiler   string   // -c / --cc
	Debug      bool     // -d / --debug
	Jobs       int      // -j / --jobs
	DryRun     bool     // -n / --dry-run
	OldFiles   []string // -o / --old-file, repeatable
	Silent     bool     // -s / --silent
	Macefile   string   // -f / --file
	Target     string   // the single positional argument, "" if omitted
}

// Parse builds a fresh flaggy parser (rather than flaggy's package-level
// DefaultParser) so repeated calls - as in tests - don't share state, and
// parses args (normally os.Args[1:]) into an Options.
func Parse(version string, args []string) (*Options, error) {
	opts := &Options{
		Jobs:     1,
		Macefile: "macefile.c",
	}

	parser := flaggy.NewParser("mace")
	parser.Description = "single-binary build orchestrator for C projects"
	parser.Version = version
	parser.ShowHelpOnUnexpected = false

	parser.Bool(&opts.AlwaysMake, "B", "always-make", "unconditionally rebuild every target")
	parser.String(&opts.Directory, "C", "directory", "change to DIR before doing anything else")
	parser.String(&opts.Compiler, "c", "cc", "compiler to invoke for compiling and linking, overriding the build program's own choice")
	parser.Bool(&opts.Debug, "d", "debug", "print verbose diagnostic output")
	parser.Int(&opts.Jobs, "j", "jobs", "number of child processes to run concurrently")
	parser.Bool(&opts.DryRun, "n", "dry-run", "print what would be done without spawning any processes")
	parser.StringSlice(&opts.OldFiles, "o", "old-file", "treat NAME as already up to date, skipping its recompilation")
	parser.Bool(&opts.Silent, "s", "silent", "suppress non-error output")
	parser.String(&opts.Macefile, "f", "file", "build-description source file to use")
	parser.AddPositionalValue(&opts.Target, "target", 1, false, "the target to build, or 'all'/'clean'")

	if err := parser.ParseArgs(args); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrConfiguration, err)
	}
	if opts.Jobs < 1 {
		return nil, fmt.Errorf("%w: --jobs must be >= 1, got %d", common.ErrConfiguration, opts.Jobs)
	}
	return opts, nil
}
