package catalog

import (
	"sort"
	"strings"
)

// ResolveSubtypes expands a Request's subtype specification into the
// ordered list of ProductType variants to try, highest priority first
// (§4.1 "Priority within a type"):
//
//   - an exact subtype name matches that variant alone;
//   - a trailing '+' (e.g. "RAPID+") matches every variant whose priority
//     is >= the named variant's priority;
//   - an empty subtype matches every variant with priority > 0.
func (c *Catalog) ResolveSubtypes(productType, subtypeSpec string) []*ProductType {
	all := append([]*ProductType(nil), c.byTypeSubtype[productType]...)
	sort.Slice(all, func(i, j int) bool { return all[i].Priority > all[j].Priority })

	switch {
	case subtypeSpec == "":
		out := all[:0:0]
		for _, pt := range all {
			if pt.Priority > 0 {
				out = append(out, pt)
			}
		}
		return out
	case strings.HasSuffix(subtypeSpec, "+"):
		base := strings.TrimSuffix(subtypeSpec, "+")
		var floor int
		found := false
		for _, pt := range all {
			if pt.Subtype == base {
				floor = pt.Priority
				found = true
				break
			}
		}
		if !found {
			return nil
		}
		out := all[:0:0]
		for _, pt := range all {
			if pt.Priority >= floor {
				out = append(out, pt)
			}
		}
		return out
	default:
		for _, pt := range all {
			if pt.Subtype == subtypeSpec {
				return []*ProductType{pt}
			}
		}
		return nil
	}
}
