// Package tokenize implements C2: splitting user-supplied separator-
// delimited strings (sources, includes, links, flags) into ordered
// argument vectors, optionally path-expanded and/or prefixed. Grounded on
// original_source/mace.h's mace_argv_flags, which walks strtok_r tokens
// and, per token, optionally realpath-expands it before prefixing.
package tokenize

import (
	"fmt"
	"strings"

	"github.com/macebuild/mace/internal/common"
	"github.com/macebuild/mace/internal/pathutil"
)

// CommandSeparator splits pre/post-build hook strings into individual
// shell invocations. It is always "&&", independent of the configurable
// token separator (spec.md §4.2).
const CommandSeparator = "&&"

// ToArgv splits str on separator (a single byte) and returns one output
// element per non-empty token: prefix + (canonicalized token, if
// pathExpand, else the raw token). When pathExpand is set and
// canonicalization fails, the raw token is emitted rather than aborting -
// matching mace_argv_flags's "fall back to the literal token" behavior.
func ToArgv(str string, separator byte, prefix string, pathExpand bool) ([]string, error) {
	if separator == 0 {
		return nil, fmt.Errorf("%w: token separator must not be empty", common.ErrConfiguration)
	}
	if str == "" {
		return nil, nil
	}

	rawTokens := strings.Split(str, string(separator))
	argv := make([]string, 0, len(rawTokens))
	for _, token := range rawTokens {
		if token == "" {
			continue
		}

		toUse := token
		if pathExpand {
			if resolved, err := pathutil.Canonicalize(token); err == nil {
				toUse = resolved
			}
		}
		argv = append(argv, prefix+toUse)
	}
	return argv, nil
}

// SplitCommands splits a hook's shell pipeline on CommandSeparator into
// individual fragments, trimming surrounding whitespace from each.
func SplitCommands(commands string) []string {
	if commands == "" {
		return nil
	}
	parts := strings.Split(commands, CommandSeparator)
	fragments := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			fragments = append(fragments, p)
		}
	}
	return fragments
}

// Join is the inverse of ToArgv with an empty prefix and no path
// expansion: join(tokens, sep) round-trips through ToArgv(_, sep, "", false)
// back to tokens, the property spec.md §8 requires.
func Join(tokens []string, separator byte) string {
	return strings.Join(tokens, string(separator))
}
