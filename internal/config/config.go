// Package config builds the strongly typed configuration the rest of the
// module runs on (spec §9 "dynamic config → typed config") from the
// Apache-style nested-block document described in spec §6, parsed by
// internal/config/block.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package config

import (
	"os"
	"time"

	"github.com/NVIDIA/gnssfetch/internal/archive"
	"github.com/NVIDIA/gnssfetch/internal/catalog"
	"github.com/NVIDIA/gnssfetch/internal/cmn"
	"github.com/NVIDIA/gnssfetch/internal/compress"
	"github.com/NVIDIA/gnssfetch/internal/config/block"
)

// Config is the fully validated, typed result of reading a configuration
// file: a compression registry, a product catalog, the configured
// Archives in configuration-file order, and the cache tunables.
type Config struct {
	Compression *compress.Registry
	Catalog     *catalog.Catalog
	Archives    []archive.Archive
	Cache       CacheConfig
}

// CacheConfig mirrors the `<cache>` block (§6).
type CacheConfig struct {
	Datacenter   string // name of the Archive (from <datacenters>) used as cache backing
	JobRetention time.Duration
	QueueLatency time.Duration
}

// Load reads path and builds a validated Config. It applies no
// environment-variable overrides. Any structural or semantic problem is a
// cmn.ConfigError (§7 error kind 1): fatal, no partial result.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, cmn.NewConfigError("load", "opening %q: %v", path, err)
	}
	defer f.Close()

	root, err := block.Parse(f)
	if err != nil {
		return nil, cmn.NewConfigError("load", "%v", err)
	}

	reg, err := buildCompression(root)
	if err != nil {
		return nil, err
	}
	cat, err := buildCatalog(root)
	if err != nil {
		return nil, err
	}
	archives, err := buildArchives(root, cat)
	if err != nil {
		return nil, err
	}
	cacheCfg, err := buildCacheConfig(root)
	if err != nil {
		return nil, err
	}

	return &Config{Compression: reg, Catalog: cat, Archives: archives, Cache: cacheCfg}, nil
}

func buildCacheConfig(root *block.Block) (CacheConfig, error) {
	b, ok := root.One("cache")
	if !ok {
		return CacheConfig{}, cmn.NewConfigError("cache", "missing required <cache> block")
	}
	dc, ok := b.Get("datacenter")
	if !ok {
		return CacheConfig{}, cmn.NewConfigError("cache", "missing datacenter")
	}
	retentionDays, err := getInt(b, "job_retention", 0)
	if err != nil {
		return CacheConfig{}, err
	}
	latencySecs, err := getInt(b, "queue_latency", 0)
	if err != nil {
		return CacheConfig{}, err
	}
	return CacheConfig{
		Datacenter:   dc,
		JobRetention: time.Duration(retentionDays) * 24 * time.Hour,
		QueueLatency: time.Duration(latencySecs) * time.Second,
	}, nil
}
