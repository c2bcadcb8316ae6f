package resolver

import (
	"sort"

	"github.com/NVIDIA/gnssfetch/internal/archive"
	"github.com/NVIDIA/gnssfetch/internal/catalog"
)

// Candidate pairs an Archive with the ProductType variant to try against
// it — the archive's own override (§4.3 "own ProductType overrides") if one
// is configured for (type, subtype), else the catalog's definition.
type Candidate struct {
	Archive     archive.Archive
	ProductType *catalog.ProductType
}

// OrderCandidates implements §4.2's ordering rule: subtype variants from
// highest priority to lowest; within each variant, archives partitioned into
// matching-station and wildcard-only bands (excluded archives dropped),
// each band sorted by descending archive priority.
func OrderCandidates(cat *catalog.Catalog, archives []archive.Archive, productType, subtypeSpec, station string) []Candidate {
	variants := cat.ResolveSubtypes(productType, subtypeSpec)

	var out []Candidate
	for _, pt := range variants {
		var matching, wildcardOnly []archive.Archive
		for _, a := range archives {
			matches, wcOnly, excluded := a.StationServed(station)
			if excluded {
				continue
			}
			if pt.UsesStation() {
				if matches {
					matching = append(matching, a)
				} else if wcOnly {
					wildcardOnly = append(wildcardOnly, a)
				}
				// an archive that serves neither band for a station-bearing
				// product type cannot fulfill this request.
				continue
			}
			// station-less product types: every non-excluded archive is a
			// candidate, ordered only by priority.
			matching = append(matching, a)
		}
		sort.SliceStable(matching, func(i, j int) bool { return matching[i].Priority() > matching[j].Priority() })
		sort.SliceStable(wildcardOnly, func(i, j int) bool { return wildcardOnly[i].Priority() > wildcardOnly[j].Priority() })

		for _, a := range append(matching, wildcardOnly...) {
			variant := pt
			if ov, ok := a.Override(productType, pt.Subtype); ok {
				variant = ov
			}
			out = append(out, Candidate{Archive: a, ProductType: variant})
		}
	}
	return out
}
