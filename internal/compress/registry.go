// Package compress implements the Compression Registry: a table of named
// codecs with pre/post filename suffixes and invokable compress/decompress
// pipelines, and the pipeline-conversion algorithm used by Archive fetches
// (spec §2 item 1, §4.3).
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package compress

import (
	"sync"

	"github.com/NVIDIA/gnssfetch/internal/cmn"
)

type (
	// Codec is one named, invokable compression stage.
	Codec struct {
		Name       string
		PreSuffix  string // suffix this codec adds when it is NOT the outermost stage
		PostSuffix string // suffix this codec adds when it IS the outermost stage
		Compress   func(src, dst string) error
		Decompress func(src, dst string) error
	}

	// Pipeline is an ordered list of codec names, innermost (applied to
	// raw content first) to outermost, e.g. ["hatanaka", "compress"] for
	// a ".20d.Z" RINEX file: Hatanaka-compact, then Unix-compress.
	Pipeline []string

	// Registry is a sync.RWMutex-guarded name -> Codec table plus a
	// filename-suffix -> Pipeline lookup table, the same registry shape
	// as the teacher's etl.registry (register/lookup/list over a guarded
	// map), generalized from ETL communicators to compression codecs.
	Registry struct {
		mu       sync.RWMutex
		codecs   map[string]*Codec
		suffices map[string]Pipeline // e.g. ".20d.Z" -> ["hatanaka", "compress"]
	}
)

func NewRegistry() *Registry {
	return &Registry{
		codecs:   make(map[string]*Codec),
		suffices: make(map[string]Pipeline),
	}
}

func (r *Registry) Register(c *Codec) error {
	cmn.Assert(c.Name != "")
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.codecs[c.Name]; exists {
		return cmn.NewConfigError("compressiontypes", "codec %q already registered", c.Name)
	}
	r.codecs[c.Name] = c
	return nil
}

func (r *Registry) Codec(name string) (*Codec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.codecs[name]
	return c, ok
}

// RegisterSuffix associates a filename suffix (e.g. ".20d.Z") with the
// codec pipeline that produced it, per <compressionsuffices>.
func (r *Registry) RegisterSuffix(suffix string, pipeline Pipeline) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.suffices[suffix] = pipeline
}

// PipelineForSuffix infers the compression pipeline from a filename
// suffix, the fallback used when an archive does not declare its
// compression explicitly (§4.3 "detect source compression").
func (r *Registry) PipelineForSuffix(filename string) (Pipeline, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var best Pipeline
	bestLen := -1
	for suf, p := range r.suffices {
		if len(suf) > bestLen && hasSuffixFold(filename, suf) {
			best, bestLen = p, len(suf)
		}
	}
	return best, bestLen >= 0
}

func hasSuffixFold(s, suf string) bool {
	if len(suf) > len(s) {
		return false
	}
	return equalFold(s[len(s)-len(suf):], suf)
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

// List returns the names of every registered codec, for diagnostics and
// config validation error messages.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.codecs))
	for name := range r.codecs {
		out = append(out, name)
	}
	return out
}
