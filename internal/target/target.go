// Package target implements C4: per-target configuration and the derived
// argument vectors computed once at registration. Grounded on
// original_source/mace.h's struct Target / mace_add_target / mace_Target_Parse_User /
// mace_Target_argv_init, translated into a registration function returning
// an immutable (post-registration) Registered value.
package target

import (
	"fmt"

	"github.com/macebuild/mace/internal/common"
	"github.com/macebuild/mace/internal/tokenize"
)

// Kind classifies what a target produces.
type Kind int

const (
	Executable Kind = iota
	StaticLibrary
	SharedLibrary
)

func (k Kind) String() string {
	switch k {
	case Executable:
		return "executable"
	case StaticLibrary:
		return "static-library"
	case SharedLibrary:
		return "shared-library"
	default:
		return "unknown-kind"
	}
}

// Hooks holds the four lifecycle hooks spec.md §3 describes: pre/post-build
// shell commands (split on tokenize.CommandSeparator) and pre/post-build
// messages (printed verbatim).
type Hooks struct {
	PreBuildCommand  string
	PostBuildCommand string
	PreBuildMessage  string
	PostBuildMessage string
}

// Declared holds everything a user sets on a target before registration -
// the public surface mirrored by the mace.Target the root package exposes.
// All string-list fields are separator-delimited, tokenized at
// registration with the engine's configured separator (default ' '),
// matching original_source/mace.h's struct Target field shapes exactly
// (see original_source/example_macefile.c).
type Declared struct {
	Name string
	Kind Kind

	Includes     string // -I... directories
	Sources      string // files, directories, or glob patterns
	Excludes     string // explicit source files to skip
	Links        string // target names and/or external library names
	Dependencies string // target names, order-only (no -l emitted)
	Flags        string // passed to the compiler/linker verbatim

	BaseDir   string
	Hooks     Hooks
	AllAtOnce bool
}

// Registered is the materialized, engine-owned view of a Declared target:
// its name hash, resolved edge hashes for graph purposes, and the derived
// argument vectors, computed once and treated as read-only for the rest of
// the run (spec.md §3's Lifecycle / Design Notes §9's "derived state is a
// pure function of declarative fields").
type Registered struct {
	Declared
	Hash  uint64
	Order int

	// EdgeHashes is the deduplicated union of Links' and Dependencies'
	// name hashes, used uniformly for both cycle detection and build-order
	// linearization - original_source/mace.h merges links and dependencies into a
	// single _deps_links hash set for exactly this reason.
	EdgeHashes []uint64

	// LinkNames are the raw Links tokens, split on the engine's separator,
	// in declaration order. HasSelfLoop and ArgvLinks do not read it.
	LinkNames []string

	ExcludeHashes map[uint64]bool // canonicalized excluded source path -> present

	ArgvIncludes []string // -I<abs path>
	ArgvLinks    []string // -l<name>, for every Links token (target or external)
	ArgvFlags    []string // verbatim
}

// HashName computes the djb2 hash (h0=5381, hi=33*hi-1+ci) spec.md §3
// specifies for target-name identity, matching original_source/mace.h's mace_hash
// byte for byte for ASCII input.
func HashName(name string) uint64 {
	var hash uint64 = 5381
	for i := 0; i < len(name); i++ {
		hash = hash*33 + uint64(name[i])
	}
	return hash
}

// New registers a Declared target: hashes its name, rejects reserved/
// duplicate names, tokenizes Links/Dependencies into a deduplicated edge-hash
// set, and materializes the Includes/Links/Flags argument vectors. order is
// the target's insertion index, used as its stable identifier through the
// build (spec.md §3's Ordering).
func New(order int, decl Declared, separator byte, namesSeen map[string]bool) (*Registered, error) {
	if decl.Name == "" {
		return nil, fmt.Errorf("%w: target at position %d has no name", common.ErrConfiguration, order)
	}
	if decl.Name == "all" || decl.Name == "clean" {
		return nil, fmt.Errorf("%w: target name %q is reserved", common.ErrConfiguration, decl.Name)
	}
	if namesSeen[decl.Name] {
		return nil, fmt.Errorf("%w: duplicate target name %q", common.ErrConfiguration, decl.Name)
	}

	reg := &Registered{
		Declared:      decl,
		Hash:          HashName(decl.Name),
		Order:         order,
		ExcludeHashes: map[uint64]bool{},
	}

	edgeSet := map[uint64]bool{}
	addEdges := func(s string) ([]string, error) {
		tokens, err := tokenize.ToArgv(s, separator, "", false)
		if err != nil {
			return nil, err
		}
		for _, tok := range tokens {
			edgeSet[HashName(tok)] = true
		}
		return tokens, nil
	}

	linkNames, err := addEdges(decl.Links)
	if err != nil {
		return nil, err
	}
	reg.LinkNames = linkNames

	if _, err := addEdges(decl.Dependencies); err != nil {
		return nil, err
	}

	reg.EdgeHashes = make([]uint64, 0, len(edgeSet))
	for h := range edgeSet {
		reg.EdgeHashes = append(reg.EdgeHashes, h)
	}

	reg.ArgvIncludes, err = tokenize.ToArgv(decl.Includes, separator, "-I", true)
	if err != nil {
		return nil, err
	}
	reg.ArgvLinks, err = tokenize.ToArgv(decl.Links, separator, "-l", false)
	if err != nil {
		return nil, err
	}
	reg.ArgvFlags, err = tokenize.ToArgv(decl.Flags, separator, "", false)
	if err != nil {
		return nil, err
	}

	excludeTokens, err := tokenize.ToArgv(decl.Excludes, separator, "", true)
	if err != nil {
		return nil, err
	}
	for _, excl := range excludeTokens {
		reg.ExcludeHashes[HashName(excl)] = true
	}

	return reg, nil
}

// HasSelfLoop reports whether the target names itself among its own
// links - a warning, not an abort (spec.md §3's Invariants).
func (r *Registered) HasSelfLoop() bool {
	for _, h := range r.EdgeHashes {
		if h == r.Hash {
			return true
		}
	}
	return false
}
