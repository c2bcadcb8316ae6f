// Package catalog holds the ProductType catalog: the immutable set of known
// product types and subtypes with filename templates, cadence, latency,
// retention and priority (spec §3, §4.1).
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package catalog

import (
	"time"

	"github.com/NVIDIA/gnssfetch/internal/cmn"
)

type (
	// ProductType is a single (type, subtype) definition. Multiple
	// ProductTypes may share a (Type, Subtype) pair as per-archive
	// overrides; in that case Cadence and Priority must agree across all
	// of them (§3 invariant).
	ProductType struct {
		Type     string
		Subtype  string
		Priority int

		FilenameTemplate string
		PathTemplate     string

		Cadence       string        // one of the Cadence* constants
		RefEpoch      time.Time     // E0 for bucket alignment (§4.1); zero value means Unix epoch
		Latency       time.Duration // delay between nominal time and publication
		RetryInterval time.Duration
		MaxDelay      time.Duration
		RetentionDays int
		ExpiresDays   int // 0 means "does not expire/roll over"

		Compression string // codec pipeline name, looked up in the compression registry

		SupplyCadence time.Duration // >= Cadence; availability granularity
		ValidBefore   *time.Time
		ValidAfter    *time.Time
	}

	// Catalog is the validated, immutable set of ProductTypes loaded once
	// at startup.
	Catalog struct {
		byTypeSubtype map[string][]*ProductType // key: Type — value: all subtype variants, unsorted
	}
)

// UsesStation reports whether the filename or path template references a
// station token ([ssss] or [SSSS]); derived, not configured (§3).
func (pt *ProductType) UsesStation() bool {
	return containsStationToken(pt.FilenameTemplate) || containsStationToken(pt.PathTemplate)
}

func containsStationToken(tmpl string) bool {
	for _, tok := range []string{"[ssss]", "[SSSS]"} {
		if indexOfFold(tmpl, tok) >= 0 {
			return true
		}
	}
	return false
}

// indexOfFold is a tiny case-insensitive substring search, avoiding a
// strings.ToLower allocation for every template lookup.
func indexOfFold(s, substr string) int {
	n, m := len(s), len(substr)
	for i := 0; i+m <= n; i++ {
		if equalFold(s[i:i+m], substr) {
			return i
		}
	}
	return -1
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// CadenceDuration resolves Cadence to a time.Duration, or an error for an
// unrecognized name - validated once at startup.
func (pt *ProductType) CadenceDuration() (time.Duration, error) {
	d, ok := cmn.CadenceSeconds(pt.Cadence)
	if !ok {
		return 0, cmn.NewConfigError(pt.key(), "unknown cadence %q", pt.Cadence)
	}
	return d, nil
}

func (pt *ProductType) key() string { return pt.Type + "/" + pt.Subtype }

// NewCatalog validates a flat list of ProductType definitions and builds a
// Catalog, enforcing the §3 invariants: cadence and priority must agree
// across definitions sharing a (type, subtype); supply_cadence >= cadence.
func NewCatalog(defs []*ProductType) (*Catalog, error) {
	seen := map[string]*ProductType{} // type/subtype -> first-seen def, for consistency checks
	byType := map[string][]*ProductType{}

	for _, d := range defs {
		if d.Type == "" {
			return nil, cmn.NewConfigError("datatypes", "product type definition missing type")
		}
		cadence, err := d.CadenceDuration()
		if err != nil {
			return nil, err
		}
		if d.SupplyCadence < cadence {
			return nil, cmn.NewConfigError(d.key(), "supply_cadence (%s) must be >= cadence (%s)", d.SupplyCadence, cadence)
		}
		k := d.key()
		if prev, ok := seen[k]; ok {
			if prev.Cadence != d.Cadence {
				return nil, cmn.NewConfigError(k, "conflicting cadence %q vs %q across definitions", prev.Cadence, d.Cadence)
			}
			if prev.Priority != d.Priority {
				return nil, cmn.NewConfigError(k, "conflicting priority %d vs %d across definitions", prev.Priority, d.Priority)
			}
		} else {
			seen[k] = d
		}
		byType[d.Type] = append(byType[d.Type], d)
	}
	return &Catalog{byTypeSubtype: byType}, nil
}

// Variants returns every subtype definition known for Type, in no
// particular order; callers needing priority order should use
// ResolveSubtypes.
func (c *Catalog) Variants(productType string) []*ProductType {
	return c.byTypeSubtype[productType]
}

// Lookup returns the ProductType for an exact (type, subtype) pair.
func (c *Catalog) Lookup(productType, subtype string) (*ProductType, bool) {
	for _, pt := range c.byTypeSubtype[productType] {
		if pt.Subtype == subtype {
			return pt, true
		}
	}
	return nil, false
}

// Types returns every distinct product type name registered, in no
// particular order; used by the daily batch driver to enumerate its work.
func (c *Catalog) Types() []string {
	types := make([]string, 0, len(c.byTypeSubtype))
	for t := range c.byTypeSubtype {
		types = append(types, t)
	}
	return types
}
