// Package buildengine implements C7: the per-target build loop described in
// spec.md §4.7, tying together C1 (pathutil), C2 (tokenize), C3 (checksum),
// C4 (target), C5 (graph) and C6 (procpool) into the ten numbered steps.
// Grounded on VKCOM-nocc's internal/server build-session orchestration
// (internal/server/client-coordinator.go), generalized from "coordinate one
// compile session" into "drive one target through its full precompile/
// compile/link lifecycle".
package buildengine

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/macebuild/mace/internal/checksum"
	"github.com/macebuild/mace/internal/common"
	"github.com/macebuild/mace/internal/pathutil"
	"github.com/macebuild/mace/internal/procpool"
	"github.com/macebuild/mace/internal/target"
	"github.com/macebuild/mace/internal/tokenize"
)

// Config is the process-wide state spec.md §3 calls out: compiler/archiver
// names, the two output directories, the token separator, and the run
// options CLI flags feed in.
type Config struct {
	Compiler  string
	Archiver  string
	ObjDir    string
	BuildDir  string
	Separator byte

	AlwaysMake bool
	DryRun     bool
	Jobs       int

	// OldFiles are canonicalized source paths the -o/--old-file flag marks
	// as already up to date, forcing recompile=false regardless of their
	// content hash (spec.md §4.8's "marks a target/file to skip").
	OldFiles map[string]bool
}

// shellInterpreter runs hook fragments, which spec.md §4.9 calls "literal
// shell pipelines" - requiring an actual shell, not a bare argv split.
const shellInterpreter = "/bin/sh"

// Engine drives targets through the build loop. One Engine is created per
// run and owns the single process pool all phases of all targets share -
// spec.md §5's "process pool slot array is touched only by the engine
// thread" invariant, trivially satisfied by never running two phases
// concurrently.
type Engine struct {
	cfg    Config
	logger *common.Logger
	pool   *procpool.Pool
	runID  uuid.UUID
}

// New builds an Engine from cfg. runID (github.com/google/uuid) identifies
// the run; it is kept on the Engine and is not written to log output.
func New(cfg Config, logger *common.Logger, runID uuid.UUID) (*Engine, error) {
	jobs := cfg.Jobs
	if jobs < 1 {
		jobs = 1
	}
	pool, err := procpool.New(jobs, logger)
	if err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, logger: logger, pool: pool, runID: runID}, nil
}

// sourceRecord is one resolved compilation unit within a target's build.
type sourceRecord struct {
	source    string
	object    string
	recompile bool
}

// Clean implements spec.md §4.7's clean action: recursive delete of both
// output directories, nothing else touched.
func (e *Engine) Clean() error {
	for _, dir := range []string{e.cfg.ObjDir, e.cfg.BuildDir} {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("%w: removing %q: %v", common.ErrFilesystem, dir, err)
		}
	}
	return nil
}

// Build drives every target in order (positions into targets, as produced
// by internal/graph.BuildOrder) through the full ten-step loop.
func (e *Engine) Build(targets []*target.Registered, order []int) error {
	if len(order) == 0 {
		return fmt.Errorf("%w: build order is empty, nothing to do", common.ErrEmptyBuildOrder)
	}
	for _, pos := range order {
		if pos < 0 || pos >= len(targets) {
			panic(fmt.Sprintf("buildengine: internal invariant violated: build-order index %d out of range [0,%d)", pos, len(targets)))
		}
		if err := e.buildOne(targets[pos]); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) buildOne(reg *target.Registered) error {
	e.logger.TargetStart(reg.Name)

	originalWD, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrFilesystem, err)
	}

	// Step 1: pre-build command, run from the original working directory.
	if err := e.runHook(reg.Hooks.PreBuildCommand, originalWD); err != nil {
		return err
	}
	// Step 2: pre-build message.
	e.logger.Message(reg.Hooks.PreBuildMessage)

	// Step 3: change into the target's base directory.
	if reg.BaseDir != "" {
		if err := os.Chdir(reg.BaseDir); err != nil {
			return fmt.Errorf("%w: chdir to %q: %v", common.ErrFilesystem, reg.BaseDir, err)
		}
	}

	records, err := e.resolveSources(reg)
	if err != nil {
		_ = os.Chdir(originalWD)
		return err
	}

	if err := e.precompile(reg, records); err != nil {
		_ = os.Chdir(originalWD)
		return err
	}
	if err := e.compile(reg, records); err != nil {
		_ = os.Chdir(originalWD)
		return err
	}

	// Step 7: return to the original working directory.
	if err := os.Chdir(originalWD); err != nil {
		return fmt.Errorf("%w: restoring working directory %q: %v", common.ErrFilesystem, originalWD, err)
	}

	// Step 8: link.
	if err := e.link(reg, records); err != nil {
		return err
	}

	// Step 9: post-build message.
	e.logger.Message(reg.Hooks.PostBuildMessage)
	// Step 10: post-build command.
	if err := e.runHook(reg.Hooks.PostBuildCommand, originalWD); err != nil {
		return err
	}
	return nil
}

// runHook splits a hook string on tokenize.CommandSeparator and spawns each
// fragment through /bin/sh -c, draining before the next fragment - hooks
// are themselves "shell pipelines", which bare argv splitting cannot run.
func (e *Engine) runHook(hook, dir string) error {
	fragments := tokenize.SplitCommands(hook)
	if len(fragments) == 0 {
		return nil
	}
	invocations := make([]procpool.Invocation, 0, len(fragments))
	for _, fragment := range fragments {
		invocations = append(invocations, procpool.Invocation{
			Argv: []string{shellInterpreter, "-c", fragment},
			Dir:  dir,
		})
	}
	if e.cfg.DryRun {
		for _, inv := range invocations {
			e.logger.Info(1, "would run", inv.Argv)
		}
		return nil
	}
	_, err := e.pool.RunAll(invocations)
	return err
}

// resolveSources implements step 4: tokenizing the source specifier,
// expanding directories/globs, canonicalizing, filtering exclusions,
// assigning a disambiguated flat object path per source, and deciding
// whether each needs recompilation.
func (e *Engine) resolveSources(reg *target.Registered) ([]sourceRecord, error) {
	tokens, err := tokenize.ToArgv(reg.Sources, e.cfg.Separator, "", false)
	if err != nil {
		return nil, err
	}

	var candidates []string
	for _, token := range tokens {
		switch {
		case pathutil.IsDir(token):
			sources, err := pathutil.GlobSourcesUnderDir(token)
			if err != nil {
				return nil, err
			}
			candidates = append(candidates, sources...)
		case pathutil.IsWildcard(token):
			matches, err := pathutil.Glob(token)
			if err != nil {
				return nil, err
			}
			candidates = append(candidates, matches...)
		default:
			candidates = append(candidates, token)
		}
	}

	basenameCount := map[string]int{}
	records := make([]sourceRecord, 0, len(candidates))
	for _, candidate := range candidates {
		abs, err := pathutil.Canonicalize(candidate)
		if err != nil {
			return nil, fmt.Errorf("%w: resolving source %q: %v", common.ErrFilesystem, candidate, err)
		}
		if reg.ExcludeHashes[target.HashName(abs)] {
			continue
		}

		flat := pathutil.ObjectBasename(abs, e.cfg.ObjDir)
		n := basenameCount[flat]
		basenameCount[flat] = n + 1
		object, err := pathutil.DisambiguateObjectPath(flat, n)
		if err != nil {
			return nil, err
		}

		recompile, err := checksum.NeedsRecompile(abs, object, e.cfg.AlwaysMake)
		if err != nil {
			return nil, err
		}
		if e.cfg.OldFiles[abs] {
			recompile = false
		}
		records = append(records, sourceRecord{source: abs, object: object, recompile: recompile})
	}
	return records, nil
}

// compileArgv assembles the fixed-position vector spec.md §4.4 specifies:
// [CC][source][-o<object>][flags...][includes...][links...][-Lbuild_dir][-c],
// with extra trailing flags (e.g. -MM) appended after -c.
func (e *Engine) compileArgv(reg *target.Registered, source, object string, extra ...string) []string {
	argv := []string{e.cfg.Compiler, source, "-o" + object}
	argv = append(argv, reg.ArgvFlags...)
	argv = append(argv, reg.ArgvIncludes...)
	argv = append(argv, reg.ArgvLinks...)
	argv = append(argv, "-L"+e.cfg.BuildDir, "-c")
	argv = append(argv, extra...)
	return argv
}

// precompile implements step 5: for every source marked recompile, spawn
// `CC ... -o<dep>.d ... -c -MM` and drain, per target.Registered pair.
func (e *Engine) precompile(reg *target.Registered, records []sourceRecord) error {
	var invocations []procpool.Invocation
	for _, r := range records {
		if !r.recompile {
			continue
		}
		depFile := common.ReplaceFileExt(r.object, ".d")
		if err := common.MkdirForFile(depFile); err != nil {
			return fmt.Errorf("%w: %v", common.ErrFilesystem, err)
		}
		invocations = append(invocations, procpool.Invocation{Argv: e.compileArgv(reg, r.source, depFile, "-MM")})
	}
	return e.runPhase(invocations)
}

// compile implements step 6. The AllAtOnce variant folds every recompiling
// source into a single invocation with no per-source -o, so the compiler
// falls back to its own <basename>.o naming in the object directory - the
// behavior spec.md §4.4 warns "fails when two sources share a basename".
func (e *Engine) compile(reg *target.Registered, records []sourceRecord) error {
	var toBuild []sourceRecord
	for _, r := range records {
		if r.recompile {
			toBuild = append(toBuild, r)
		}
	}
	if len(toBuild) == 0 {
		return nil
	}
	if err := os.MkdirAll(e.cfg.ObjDir, os.ModePerm); err != nil {
		return fmt.Errorf("%w: %v", common.ErrFilesystem, err)
	}

	if reg.AllAtOnce {
		argv := []string{e.cfg.Compiler}
		for _, r := range toBuild {
			argv = append(argv, r.source)
		}
		argv = append(argv, reg.ArgvFlags...)
		argv = append(argv, reg.ArgvIncludes...)
		argv = append(argv, reg.ArgvLinks...)
		argv = append(argv, "-L"+e.cfg.BuildDir, "-c")
		return e.runPhase([]procpool.Invocation{{Argv: argv, Dir: e.cfg.ObjDir}})
	}

	invocations := make([]procpool.Invocation, 0, len(toBuild))
	for _, r := range toBuild {
		invocations = append(invocations, procpool.Invocation{Argv: e.compileArgv(reg, r.source, r.object)})
	}
	return e.runPhase(invocations)
}

func (e *Engine) runPhase(invocations []procpool.Invocation) error {
	if len(invocations) == 0 {
		return nil
	}
	if e.cfg.DryRun {
		for _, inv := range invocations {
			e.logger.Info(1, "would run", inv.Argv)
		}
		return nil
	}
	_, err := e.pool.RunAll(invocations)
	return err
}

// link implements step 8, dispatching on target.Kind.
func (e *Engine) link(reg *target.Registered, records []sourceRecord) error {
	objects := make([]string, 0, len(records))
	for _, r := range records {
		objects = append(objects, r.object)
	}
	if err := os.MkdirAll(e.cfg.BuildDir, os.ModePerm); err != nil {
		return fmt.Errorf("%w: %v", common.ErrFilesystem, err)
	}

	var argv []string
	switch reg.Kind {
	case target.StaticLibrary:
		archivePath := filepath.Join(e.cfg.BuildDir, "lib"+reg.Name+".a")
		argv = append([]string{e.cfg.Archiver, "-rcs", archivePath}, objects...)
	case target.Executable:
		outPath := filepath.Join(e.cfg.BuildDir, reg.Name)
		argv = append([]string{e.cfg.Compiler, "-o", outPath}, objects...)
		argv = append(argv, reg.ArgvFlags...)
		argv = append(argv, reg.ArgvLinks...)
		argv = append(argv, "-L"+e.cfg.BuildDir)
	case target.SharedLibrary:
		outPath := filepath.Join(e.cfg.BuildDir, "lib"+reg.Name+".so")
		argv = append([]string{e.cfg.Compiler, "-shared", "-fPIC", "-o", outPath}, objects...)
		argv = append(argv, reg.ArgvFlags...)
		argv = append(argv, reg.ArgvLinks...)
		argv = append(argv, "-L"+e.cfg.BuildDir)
	default:
		panic(fmt.Sprintf("buildengine: internal invariant violated: unknown target kind %v", reg.Kind))
	}

	e.logger.Info(1, color.CyanString("link"), reg.Name)
	return e.runPhase([]procpool.Invocation{{Argv: argv}})
}
