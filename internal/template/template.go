package template

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/NVIDIA/gnssfetch/internal/cmn"
	"github.com/NVIDIA/gnssfetch/internal/varexpr"
)

// Vars bundles the variables a template may reference (§4.1).
type Vars struct {
	Time    time.Time // the cadence bucket, UTC
	Station string    // configured-case station code; empty if not applicable
	Job     string
	Type    string
	Subtype string
}

var tokenRE = regexp.MustCompile(`\[([a-zA-Z]+)([+-]\d+)?\]`)
var envRE = regexp.MustCompile(`\$\{[^{}]*\}`)

// Expand replaces every bracketed token and environment reference in tmpl.
// Wildcards ('*', '?') in the template are passed through untouched; the
// Archive resolves them against a directory listing (§4.3).
func Expand(tmpl string, v Vars) (string, error) {
	out := tokenRE.ReplaceAllStringFunc(tmpl, func(m string) string {
		sub := tokenRE.FindStringSubmatch(m)
		return expandToken(sub[1], sub[2], v)
	})

	expanded, err := varexpr.Expand(out, func(name string) (string, bool) {
		return os.LookupEnv(name)
	})
	if err != nil {
		return "", err
	}
	return expanded, nil
}

func expandToken(tok, offset string, v Vars) string {
	t := v.Time
	if offset != "" {
		days, _ := strconv.Atoi(offset)
		t = t.AddDate(0, 0, days)
	}
	lower := strings.ToLower(tok)
	switch lower {
	case "yyyy":
		return caseLike(tok, fmt.Sprintf("%04d", t.Year()))
	case "yy":
		return caseLike(tok, fmt.Sprintf("%02d", t.Year()%100))
	case "mm":
		return caseLike(tok, fmt.Sprintf("%02d", int(t.Month())))
	case "dd":
		return caseLike(tok, fmt.Sprintf("%02d", t.Day()))
	case "ddd":
		return caseLike(tok, fmt.Sprintf("%03d", t.YearDay()))
	case "wwww":
		_, week := t.ISOWeek()
		return caseLike(tok, fmt.Sprintf("%04d", week))
	case "ww":
		_, week := t.ISOWeek()
		return caseLike(tok, fmt.Sprintf("%02d", week))
	case "d":
		return fmt.Sprintf("%d", int(t.Weekday()))
	case "hh":
		return caseLike(tok, fmt.Sprintf("%02d", t.Hour()))
	case "h":
		return string(rune('a' + t.Hour()))
	case "ssss":
		return stationCase(tok, v.Station)
	case "job":
		return caseLike(tok, v.Job)
	case "type":
		return caseLike(tok, v.Type)
	case "subtype":
		return caseLike(tok, v.Subtype)
	default:
		return "[" + tok + offset + "]"
	}
}

// caseLike mirrors the replacement's letter case to the token's: an
// upper-case token (e.g. "[YYYY]") yields upper-case output, lower-case
// otherwise. Tokens are case-insensitive on lookup but case-directing on
// output (§4.1 table).
func caseLike(tok, val string) string {
	if tok == strings.ToUpper(tok) {
		return strings.ToUpper(val)
	}
	return strings.ToLower(val)
}

// stationCase implements the "[ssss]"/"[SSSS]" rule: station case is
// preserved as configured unless the token's own case forces upper/lower.
func stationCase(tok, station string) string {
	if tok == "ssss" {
		return strings.ToLower(station)
	}
	if tok == "SSSS" {
		return strings.ToUpper(station)
	}
	return station
}

// CompileWildcard anchors a filename pattern containing '*'/'?' into a
// regexp: literals are quoted, '?' matches any single rune, '*' matches
// any run (§4.3 wildcard resolution).
func CompileWildcard(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, cmn.NewConfigError("template", "invalid wildcard pattern %q: %v", pattern, err)
	}
	return re, nil
}

// HasWildcard reports whether s contains '*' or '?'.
func HasWildcard(s string) bool {
	return strings.ContainsAny(s, "*?")
}
