// Package scheduler implements the daily scheduler (spec §4.5): a per-date
// state machine coordinated across concurrent processes via on-disk marker
// files, grounded on lru.Run's per-mountpath jogger fan-out (generalized
// from "one jogger per mountpath" to "one worker per date").
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package scheduler

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/NVIDIA/gnssfetch/internal/cmn"
	"github.com/NVIDIA/gnssfetch/internal/varexpr"
)

var dayOffsetRE = regexp.MustCompile(`^(\w+)([+-]\d+)$`)

// DateLookup builds a varexpr.Lookup resolving date fields (yyyy, yy, mm,
// dd, ddd, date) for the given date, honoring "${var+N}"/"${var-N}" day
// offsets (§4.5 "Variable substitution"), falling back to extra for any
// other configured variable.
func DateLookup(date time.Time, extra map[string]string) varexpr.Lookup {
	return func(name string) (string, bool) {
		base, d := name, date
		if m := dayOffsetRE.FindStringSubmatch(name); m != nil {
			offset, _ := strconv.Atoi(m[2])
			base, d = m[1], date.AddDate(0, 0, offset)
		}
		if v, ok := dateField(base, d); ok {
			return v, true
		}
		v, ok := extra[base]
		return v, ok
	}
}

func dateField(name string, d time.Time) (string, bool) {
	switch name {
	case "yyyy":
		return fmt.Sprintf("%04d", d.Year()), true
	case "yy":
		return fmt.Sprintf("%02d", d.Year()%100), true
	case "mm":
		return fmt.Sprintf("%02d", int(d.Month())), true
	case "dd":
		return fmt.Sprintf("%02d", d.Day()), true
	case "ddd":
		return fmt.Sprintf("%03d", d.YearDay()), true
	case "date":
		return d.Format("2006-01-02"), true
	default:
		return "", false
	}
}

// conditionalRE matches one non-nested "${var?then:else}" reference; nested
// references inside then/else are resolved by a subsequent varexpr.Expand
// pass.
var conditionalRE = regexp.MustCompile(`\$\{([^{}?:]+)\?([^{}]*):([^{}]*)\}`)

// ExpandConditionals resolves every "${var?then:else}" in s (§4.5's
// non-empty test), then hands the result to varexpr.Expand for any
// remaining plain/pipe-fallback references.
func ExpandConditionals(s string, lookup varexpr.Lookup) (string, error) {
	replaced := conditionalRE.ReplaceAllStringFunc(s, func(m string) string {
		sub := conditionalRE.FindStringSubmatch(m)
		val, _ := lookup(sub[1])
		return varexpr.Conditional(val, sub[2], sub[3])
	})
	return varexpr.Expand(replaced, lookup)
}

// forLoopRE parses the §4.5 "for N1 to N2 [step S] [if exists] [need K]"
// configuration-item grammar.
var forLoopRE = regexp.MustCompile(`^for\s+(-?\d+)\s+to\s+(-?\d+)(?:\s+step\s+(\d+))?(?:\s+(if\s+exists))?(?:\s+need\s+(\d+))?\s*$`)

// ForLoopSpec is a parsed "for N1 to N2 ..." directive.
type ForLoopSpec struct {
	From, To, Step, Need int
	IfExists             bool
}

// ParseForLoop reports whether raw is a "for ..." directive and, if so,
// its parsed form.
func ParseForLoop(raw string) (*ForLoopSpec, bool, error) {
	m := forLoopRE.FindStringSubmatch(raw)
	if m == nil {
		return nil, false, nil
	}
	spec := &ForLoopSpec{Step: 1}
	var err error
	if spec.From, err = strconv.Atoi(m[1]); err != nil {
		return nil, false, cmn.NewConfigError("for-loop", "bad N1 in %q", raw)
	}
	if spec.To, err = strconv.Atoi(m[2]); err != nil {
		return nil, false, cmn.NewConfigError("for-loop", "bad N2 in %q", raw)
	}
	if m[3] != "" {
		if spec.Step, err = strconv.Atoi(m[3]); err != nil || spec.Step <= 0 {
			return nil, false, cmn.NewConfigError("for-loop", "bad step in %q", raw)
		}
	}
	spec.IfExists = m[4] != ""
	if m[5] != "" {
		if spec.Need, err = strconv.Atoi(m[5]); err != nil {
			return nil, false, cmn.NewConfigError("for-loop", "bad need count in %q", raw)
		}
	}
	return spec, true, nil
}

// Expand re-evaluates eval at every offset from From to To (inclusive,
// stepping by Step), optionally filtering to values whose backing object
// exists, and joins the survivors with spaces — failing if fewer than Need
// results are produced.
func (s *ForLoopSpec) Expand(eval func(offset int) (value string, exists bool, err error)) (string, error) {
	var out []string
	for i := s.From; i <= s.To; i += s.Step {
		val, exists, err := eval(i)
		if err != nil {
			return "", err
		}
		if s.IfExists && !exists {
			continue
		}
		out = append(out, val)
	}
	if len(out) < s.Need {
		return "", cmn.NewConfigError("for-loop", "expected at least %d results, got %d", s.Need, len(out))
	}
	joined := ""
	for i, v := range out {
		if i > 0 {
			joined += " "
		}
		joined += v
	}
	return joined, nil
}
