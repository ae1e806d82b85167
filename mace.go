// Package mace is a single-binary build orchestrator for C projects: the
// build description is itself a small Go program (the engine's equivalent
// of a Makefile) that imports this package, registers targets against the
// package-level default Engine, and finishes its own func main() with
// os.Exit(mace.Run(os.Args)). Grounded on VKCOM-nocc's internal/common
// package layout, generalized into the public surface a user's build
// program links against.
package mace

import (
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/macebuild/mace/internal/buildengine"
	"github.com/macebuild/mace/internal/cliflags"
	"github.com/macebuild/mace/internal/common"
	"github.com/macebuild/mace/internal/graph"
	"github.com/macebuild/mace/internal/pathutil"
	"github.com/macebuild/mace/internal/target"
)

// Kind classifies what a target produces; re-exported so a user's build
// program never has to import internal/target directly.
type Kind = target.Kind

const (
	Executable    = target.Executable
	StaticLibrary = target.StaticLibrary
	SharedLibrary = target.SharedLibrary
)

// Hooks holds the pre/post-build command and message lifecycle hooks.
type Hooks = target.Hooks

// Target is everything a user declares about one build artifact before
// registration: its kind, its sources, and how it links against others.
type Target = target.Declared

// Version is set by `go build -ldflags "-X github.com/macebuild/mace.Version=..."`
// and surfaced on -v/--version via cliflags.Parse's flaggy.Parser.Version,
// mirroring the teacher's build-time version-stamping convention without
// the teacher's own disconnected internal/common.GetVersion().
var Version string

// Engine is the process-wide state a build program configures before
// calling Run: compiler/archiver names, output directories, the token
// separator, and the registered target set.
type Engine struct {
	compiler  string
	archiver  string
	objDir    string
	buildDir  string
	separator byte

	defaultTarget string
	targets       []*target.Registered
	namesSeen     map[string]bool
}

// NewEngine returns an Engine with spec.md §6's defaults: obj/ and build/
// output directories, ' ' as the token separator, no compiler set (the
// build program must call SetCompiler, or -c/--cc must supply one).
func NewEngine() *Engine {
	return &Engine{
		objDir:    "obj",
		buildDir:  "build",
		separator: ' ',
		namesSeen: map[string]bool{},
	}
}

// defaultEngine is the implicit target registry a build program configures
// through the package-level functions below, mirroring spec.md §6's
// single-global-state "process-wide state" contract without forcing every
// build program to thread an *Engine through its own main().
var defaultEngine = NewEngine()

// SetCompiler, SetArchiver, SetObjDir, SetBuildDir, SetSeparator,
// SetDefaultTarget and AddTarget all configure defaultEngine; Run drives it.
func SetCompiler(cc string)        { defaultEngine.SetCompiler(cc) }
func SetArchiver(ar string)        { defaultEngine.SetArchiver(ar) }
func SetObjDir(dir string)         { defaultEngine.SetObjDir(dir) }
func SetBuildDir(dir string)       { defaultEngine.SetBuildDir(dir) }
func SetDefaultTarget(name string) { defaultEngine.SetDefaultTarget(name) }
func SetSeparator(sep byte) error  { return defaultEngine.SetSeparator(sep) }
func AddTarget(t Target) error     { return defaultEngine.AddTarget(t) }

func (e *Engine) SetCompiler(cc string)        { e.compiler = cc }
func (e *Engine) SetArchiver(ar string)        { e.archiver = ar }
func (e *Engine) SetObjDir(dir string)         { e.objDir = dir }
func (e *Engine) SetBuildDir(dir string)       { e.buildDir = dir }
func (e *Engine) SetDefaultTarget(name string) { e.defaultTarget = name }

// SetSeparator overrides the token separator used to split every
// separator-delimited Target field. It must be a single byte.
func (e *Engine) SetSeparator(sep byte) error {
	if sep == 0 {
		return fmt.Errorf("%w: token separator must not be empty", common.ErrConfiguration)
	}
	e.separator = sep
	return nil
}

// AddTarget registers t, computing its name hash, edge set, and derived
// argument vectors once (internal/target.New does the work; spec.md §4.4).
// A djb2 hash collision against a different, already-registered name is
// reported but does not abort registration - spec.md §5's supplemented
// integrity check, since a silent collision would otherwise corrupt graph
// and link-closure lookups that key targets by hash alone.
func (e *Engine) AddTarget(t Target) error {
	reg, err := target.New(len(e.targets), t, e.separator, e.namesSeen)
	if err != nil {
		return err
	}
	for _, existing := range e.targets {
		if existing.Hash == reg.Hash && existing.Name != reg.Name {
			fmt.Fprintf(os.Stderr, "warning: target %q collides with target %q under the name hash (djb2); rename one to avoid undefined build-order and link-closure behavior\n", reg.Name, existing.Name)
		}
	}
	e.namesSeen[t.Name] = true
	e.targets = append(e.targets, reg)
	if reg.HasSelfLoop() {
		fmt.Fprintf(os.Stderr, "warning: target %q links itself\n", t.Name)
	}
	return nil
}

// buildOrder computes the full dependency-ordered linearization of every
// registered target (internal/graph.BuildOrder), independent of which
// subset Run ultimately builds.
func (e *Engine) buildOrder() ([]int, error) {
	nodes := make([]graph.Node, len(e.targets))
	for i, t := range e.targets {
		nodes[i] = graph.Node{Hash: t.Hash, EdgeHashes: t.EdgeHashes}
	}
	return graph.BuildOrder(nodes)
}

// transitiveClosure restricts a full build order down to name and
// everything it (transitively) links against or depends on, preserving the
// full order's relative ordering - spec.md §4.5's "build D and its
// transitive link closure".
func (e *Engine) transitiveClosure(full []int, name string) ([]int, error) {
	startHash := target.HashName(name)
	var start *target.Registered
	for _, t := range e.targets {
		if t.Hash == startHash {
			start = t
			break
		}
	}
	if start == nil {
		return nil, fmt.Errorf("%w: unknown target %q", common.ErrConfiguration, name)
	}

	byHash := make(map[uint64]*target.Registered, len(e.targets))
	for _, t := range e.targets {
		byHash[t.Hash] = t
	}

	needed := map[uint64]bool{start.Hash: true}
	queue := []*target.Registered{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, edgeHash := range cur.EdgeHashes {
			if needed[edgeHash] {
				continue
			}
			if next, ok := byHash[edgeHash]; ok {
				needed[edgeHash] = true
				queue = append(queue, next)
			}
		}
	}

	filtered := make([]int, 0, len(full))
	for _, pos := range full {
		if needed[e.targets[pos].Hash] {
			filtered = append(filtered, pos)
		}
	}
	return filtered, nil
}

// Run is the engine's own main, invoked by a build program's own func
// main() as `os.Exit(mace.Run(os.Args))` after it has finished calling
// SetCompiler/AddTarget/etc. against the package-level default Engine. It
// parses CLI flags, validates post-configuration state, creates output
// directories, computes the build order, and dispatches either the clean
// action or the full build loop - spec.md §6's "User embedding contract".
func Run(args []string) int {
	opts, err := cliflags.Parse(Version, args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return common.ExitCodeFor(err)
	}
	if opts.Directory != "" {
		if err := os.Chdir(opts.Directory); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return common.ExitCodeFor(fmt.Errorf("%w: %v", common.ErrFilesystem, err))
		}
	}

	if err := defaultEngine.run(opts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return common.ExitCodeFor(err)
	}
	return common.ExitOK
}

// run validates post-configuration state, computes the build order, and
// dispatches either Clean or the full build loop according to opts' target
// selection mode (spec.md §4.5's target-selection modes). A CLI -c/--cc
// flag overrides whatever the build program passed to SetCompiler.
func (e *Engine) run(opts *cliflags.Options) error {
	compiler := e.compiler
	if opts.Compiler != "" {
		compiler = opts.Compiler
	}
	if compiler == "" {
		return fmt.Errorf("%w: no compiler set (call SetCompiler or pass -c/--cc)", common.ErrGraph)
	}

	if opts.Target == "clean" {
		logger := common.MakeLogger(verbosity(opts), opts.Silent)
		eng, err := buildengine.New(buildengine.Config{
			Compiler: compiler, Archiver: e.archiver,
			ObjDir: e.objDir, BuildDir: e.buildDir,
		}, logger, uuid.New())
		if err != nil {
			return err
		}
		return eng.Clean()
	}

	if len(e.targets) == 0 {
		return fmt.Errorf("%w: no targets registered", common.ErrGraph)
	}

	full, err := e.buildOrder()
	if err != nil {
		return err
	}

	order := full
	switch {
	case opts.Target != "" && opts.Target != "all":
		order, err = e.transitiveClosure(full, opts.Target)
		if err != nil {
			return err
		}
	case opts.Target == "" && e.defaultTarget != "":
		order, err = e.transitiveClosure(full, e.defaultTarget)
		if err != nil {
			return err
		}
	}

	if err := os.MkdirAll(e.objDir, os.ModePerm); err != nil {
		return fmt.Errorf("%w: %v", common.ErrFilesystem, err)
	}
	if err := os.MkdirAll(e.buildDir, os.ModePerm); err != nil {
		return fmt.Errorf("%w: %v", common.ErrFilesystem, err)
	}

	logger := common.MakeLogger(verbosity(opts), opts.Silent)
	archiver := "ar"
	if e.archiver != "" {
		archiver = e.archiver
	}
	oldFiles := make(map[string]bool, len(opts.OldFiles))
	for _, f := range opts.OldFiles {
		if abs, err := pathutil.Canonicalize(f); err == nil {
			oldFiles[abs] = true
		} else {
			oldFiles[f] = true
		}
	}
	eng, err := buildengine.New(buildengine.Config{
		Compiler:   compiler,
		Archiver:   archiver,
		ObjDir:     e.objDir,
		BuildDir:   e.buildDir,
		Separator:  e.separator,
		AlwaysMake: opts.AlwaysMake,
		DryRun:     opts.DryRun,
		Jobs:       opts.Jobs,
		OldFiles:   oldFiles,
	}, logger, uuid.New())
	if err != nil {
		return err
	}
	return eng.Build(e.targets, order)
}

func verbosity(opts *cliflags.Options) int {
	if opts.Debug {
		return 2
	}
	return 1
}
