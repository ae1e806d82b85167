// Package pathutil implements C1: canonicalizing paths, expanding glob
// patterns over the filesystem, and classifying filesystem entries as
// directory / source / object. Grounded on original_source/mace.h's
// mace_isSource / mace_isObject / mace_isDir / mace_isWildcard / glob
// handling (mace_compile_glob), translated from C's realpath/glob(3) to
// Go's filepath package.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/macebuild/mace/internal/common"
)

// IsSource reports whether p names a C source file.
func IsSource(p string) bool {
	return strings.HasSuffix(p, ".c")
}

// IsObject reports whether p names a compiled object file.
func IsObject(p string) bool {
	return strings.HasSuffix(p, ".o")
}

// IsWildcard reports whether s contains a glob metacharacter.
func IsWildcard(s string) bool {
	return strings.ContainsRune(s, '*')
}

// IsDir reports whether p exists and is a directory.
func IsDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

// Canonicalize resolves p to an absolute, symlink-free path. On failure
// (the path doesn't exist yet, a component is unreadable, ...) it returns
// the input unchanged together with the error, mirroring mace's realpath
// fallback: callers decide whether a failure here is fatal (explicit
// source/glob entries) or merely warned about (exclusions).
func Canonicalize(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return p, err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return p, err
	}
	return resolved, nil
}

// Glob expands pattern against the filesystem. Any failure from the
// underlying match, or a pattern that matches nothing, is fatal: a
// non-matching explicit pattern in the user's build description is an
// error, not a silent no-op (spec.md §4.1).
func Glob(pattern string) ([]string, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid glob pattern %q: %v", common.ErrFilesystem, pattern, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: glob pattern %q matched no files", common.ErrFilesystem, pattern)
	}
	sort.Strings(matches)
	return matches, nil
}

// GlobSourcesUnderDir expands the directory-scan glob spec.md §4.1
// describes as "<dir> expands to <dir>/**.c (all C sources beneath)": a
// recursive walk collecting every *.c file under dir, in sorted order.
func GlobSourcesUnderDir(dir string) ([]string, error) {
	var sources []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && IsSource(path) {
			sources = append(sources, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: scanning directory %q: %v", common.ErrFilesystem, dir, err)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: directory %q contains no .c sources", common.ErrFilesystem, dir)
	}
	sort.Strings(sources)
	return sources, nil
}

// ObjectBasename derives the flat <obj_dir>/<basename>.o path for a
// source, before any same-basename disambiguation is applied. Mirrors
// mace_object_path's role, but flat under objDir rather than mirroring the
// source's full directory tree - spec.md's Data Model invariant explicitly
// requires basename-level disambiguation, which only arises under a flat
// layout.
func ObjectBasename(source, objDir string) string {
	base := filepath.Base(source)
	ext := filepath.Ext(base)
	stem := base[:len(base)-len(ext)]
	return filepath.Join(objDir, stem+".o")
}

// DisambiguateObjectPath appends a digit before the extension for the Nth
// (1-indexed) collision on a given object path, per spec.md's "first
// collision -> .1.o, up to 9" rule. n == 0 returns path unchanged.
func DisambiguateObjectPath(path string, n int) (string, error) {
	if n == 0 {
		return path, nil
	}
	if n > 9 {
		return "", fmt.Errorf("%w: more than 9 same-basename objects for %q", common.ErrConfiguration, path)
	}
	ext := filepath.Ext(path)
	stem := path[:len(path)-len(ext)]
	return fmt.Sprintf("%s.%d%s", stem, n, ext), nil
}
