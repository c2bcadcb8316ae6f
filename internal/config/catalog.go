package config

import (
	"time"

	"github.com/NVIDIA/gnssfetch/internal/catalog"
	"github.com/NVIDIA/gnssfetch/internal/cmn"
	"github.com/NVIDIA/gnssfetch/internal/config/block"
)

// buildCatalog walks every `<datatypes>{<type X>{<subtype Y>{...}}}`
// section (§6) into a flat []*catalog.ProductType and validates it.
func buildCatalog(root *block.Block) (*catalog.Catalog, error) {
	dt, ok := root.One("datatypes")
	if !ok {
		return catalog.NewCatalog(nil)
	}

	var defs []*catalog.ProductType
	for _, typeBlock := range dt.All("type") {
		if typeBlock.Name == "" {
			return nil, cmn.NewConfigError("datatypes", "<type> block missing its type name")
		}
		for _, subBlock := range typeBlock.All("subtype") {
			pt, err := buildProductType(typeBlock.Name, subBlock)
			if err != nil {
				return nil, err
			}
			defs = append(defs, pt)
		}
	}
	return catalog.NewCatalog(defs)
}

func buildProductType(productType string, b *block.Block) (*catalog.ProductType, error) {
	if b.Name == "" {
		return nil, cmn.NewConfigError(productType, "<subtype> block missing its subtype name")
	}
	priority, err := getInt(b, "priority", 0)
	if err != nil {
		return nil, err
	}
	filenameTemplate, err := requireString(b, "filename_template")
	if err != nil {
		return nil, err
	}
	pathTemplate, _ := b.Get("path_template")
	cadence, err := requireString(b, "cadence")
	if err != nil {
		return nil, err
	}
	latencySecs, err := getInt(b, "latency", 0)
	if err != nil {
		return nil, err
	}
	retryIntervalSecs, err := getInt(b, "retry_interval", 0)
	if err != nil {
		return nil, err
	}
	maxDelaySecs, err := getInt(b, "max_delay", 0)
	if err != nil {
		return nil, err
	}
	retentionDays, err := getInt(b, "retention_days", 0)
	if err != nil {
		return nil, err
	}
	expiresDays, err := getInt(b, "expires_days", 0)
	if err != nil {
		return nil, err
	}
	supplyCadenceSecs, err := getInt(b, "supply_cadence", 0)
	if err != nil {
		return nil, err
	}
	cadenceDur, ok := cmn.CadenceSeconds(cadence)
	if !ok {
		return nil, cmn.NewConfigError(productType+"/"+b.Name, "unknown cadence %q", cadence)
	}
	supplyCadence := cadenceDur
	if supplyCadenceSecs > 0 {
		supplyCadence = time.Duration(supplyCadenceSecs) * time.Second
	}
	compression, _ := b.Get("compression")

	validBefore, err := getOptionalTime(b, "valid_before")
	if err != nil {
		return nil, err
	}
	validAfter, err := getOptionalTime(b, "valid_after")
	if err != nil {
		return nil, err
	}

	return &catalog.ProductType{
		Type:             productType,
		Subtype:          b.Name,
		Priority:         priority,
		FilenameTemplate: filenameTemplate,
		PathTemplate:     pathTemplate,
		Cadence:          cadence,
		Latency:          time.Duration(latencySecs) * time.Second,
		RetryInterval:    time.Duration(retryIntervalSecs) * time.Second,
		MaxDelay:         time.Duration(maxDelaySecs) * time.Second,
		RetentionDays:    retentionDays,
		ExpiresDays:      expiresDays,
		Compression:      compression,
		SupplyCadence:    supplyCadence,
		ValidBefore:      validBefore,
		ValidAfter:       validAfter,
	}, nil
}

func getOptionalTime(b *block.Block, key string) (*time.Time, error) {
	v, ok := b.Get(key)
	if !ok || v == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, cmn.NewConfigError(key, "expected YYYY-MM-DD, got %q", v)
	}
	return &t, nil
}
