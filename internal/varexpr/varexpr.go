// Package varexpr implements the small "${...}" substitution language
// shared by the filename templater's environment references (spec §4.1)
// and the daily scheduler's configuration variables (spec §4.5):
// plain "${VAR}", pipe fallback chains "${VAR1|VAR2||default}", and
// (via Conditional) the "${var?then:else}" non-empty test. Expansion is
// bounded to guard against self-referential cycles.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package varexpr

import (
	"strings"

	"github.com/NVIDIA/gnssfetch/internal/cmn"
)

// MaxDepth bounds iterative re-expansion; a document that has not
// converged within this many passes is declared cyclic.
const MaxDepth = 8

// Lookup resolves a single variable name to a value.
type Lookup func(name string) (string, bool)

// Expand substitutes every "${...}" reference in s using lookup. A
// reference of the form "${A|B||default}" tries A, then B, then falls
// back to the literal default (which may be empty); a reference with no
// pipes behaves as "${A}" and fails if A is unset with no default given.
// Substitution repeats until no "${" remains or MaxDepth passes have run,
// at which point a non-converging (cyclic) document is reported as an
// error rather than looping forever.
func Expand(s string, lookup Lookup) (string, error) {
	cur := s
	for depth := 0; depth < MaxDepth; depth++ {
		if !strings.Contains(cur, "${") {
			return cur, nil
		}
		next, changed, err := expandOnce(cur, lookup)
		if err != nil {
			return "", err
		}
		if !changed {
			return next, nil
		}
		cur = next
	}
	return "", cmn.NewConfigError("varexpr", "reference did not converge within %d passes (cycle?): %q", MaxDepth, s)
}

func expandOnce(s string, lookup Lookup) (string, bool, error) {
	var b strings.Builder
	changed := false
	i := 0
	for i < len(s) {
		start := strings.Index(s[i:], "${")
		if start < 0 {
			b.WriteString(s[i:])
			break
		}
		start += i
		b.WriteString(s[i:start])
		end := matchBrace(s, start+2)
		if end < 0 {
			// unterminated reference: copy verbatim and stop scanning.
			b.WriteString(s[start:])
			break
		}
		body := s[start+2 : end]
		val, err := resolveBody(body, lookup)
		if err != nil {
			return "", false, err
		}
		b.WriteString(val)
		changed = true
		i = end + 1
	}
	return b.String(), changed, nil
}

// matchBrace finds the index of the '}' matching the '${' whose body
// starts at from, accounting for nested "${...}" inside a fallback
// chain's default value.
func matchBrace(s string, from int) int {
	depth := 1
	for i := from; i < len(s); i++ {
		switch {
		case strings.HasPrefix(s[i:], "${"):
			depth++
			i++
		case s[i] == '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func resolveBody(body string, lookup Lookup) (string, error) {
	parts := strings.Split(body, "|")
	for _, p := range parts[:len(parts)-1] {
		if v, ok := lookup(strings.TrimSpace(p)); ok {
			return v, nil
		}
	}
	last := parts[len(parts)-1]
	if len(parts) > 1 {
		// last element of a fallback chain is always the default literal,
		// never a variable name to look up; it may itself contain a
		// "${...}" reference, expanded on a later pass.
		return last, nil
	}
	if v, ok := lookup(strings.TrimSpace(last)); ok {
		return v, nil
	}
	return "", cmn.NewConfigError("varexpr", "unresolved reference %q and no default given", body)
}

// Conditional evaluates the scheduler's "${var?then:else}" non-empty test
// given the variable's resolved value.
func Conditional(value, then, els string) string {
	if value != "" {
		return then
	}
	return els
}
