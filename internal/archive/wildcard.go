package archive

import (
	"github.com/NVIDIA/gnssfetch/internal/cmn"
	"github.com/NVIDIA/gnssfetch/internal/template"
)

// ResolveWildcard compiles pattern into an anchored regexp and requires
// exactly one match among names, per §4.3's wildcard resolution rule.
func ResolveWildcard(path, pattern string, names []string) (string, error) {
	re, err := template.CompileWildcard(pattern)
	if err != nil {
		return "", err
	}
	var matches []string
	for _, n := range names {
		if re.MatchString(n) {
			matches = append(matches, n)
		}
	}
	switch len(matches) {
	case 0:
		return "", cmn.NewNotFoundError(path, pattern)
	case 1:
		return matches[0], nil
	default:
		return "", cmn.NewAmbiguousError(path, pattern, matches)
	}
}

// FetchResolved lists path (honoring the listing cache), resolves
// filename if it carries a wildcard, and returns the concrete filename to
// fetch.
func FetchResolved(b *Base, list func(path string) ([]string, error), path, filename string) (string, error) {
	if !template.HasWildcard(filename) {
		return filename, nil
	}
	names, ok := b.listCacheGet(path)
	if !ok {
		var err error
		names, err = list(path)
		if err != nil {
			return "", err
		}
		b.listCachePut(path, names)
	}
	return ResolveWildcard(path, filename, names)
}
