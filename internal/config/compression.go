package config

import (
	"strings"

	"github.com/NVIDIA/gnssfetch/internal/cmn"
	"github.com/NVIDIA/gnssfetch/internal/compress"
	"github.com/NVIDIA/gnssfetch/internal/config/block"
)

// buildCompression registers the built-in codecs plus every configured
// `<compressiontypes>` entry, then loads the `<compressionsuffices>`
// filename-suffix -> pipeline table (§6).
func buildCompression(root *block.Block) (*compress.Registry, error) {
	reg := compress.NewRegistry()

	hatanakaCompress, _ := firstGlobal(root, "hatanaka_compress")
	hatanakaDecompress, _ := firstGlobal(root, "hatanaka_decompress")
	if err := reg.RegisterBuiltins(hatanakaCompress, hatanakaDecompress); err != nil {
		return nil, err
	}

	for _, ct := range root.All("compressiontypes") {
		name, err := requireString(ct, "name")
		if err != nil {
			return nil, err
		}
		if _, ok := reg.Codec(name); ok {
			continue // already a builtin; a config entry re-declaring it is a no-op
		}
		compressCmd, _ := ct.Get("compress")
		uncompressCmd, _ := ct.Get("uncompress")
		preSuffix, _ := ct.Get("presuffix")
		postSuffix, _ := ct.Get("postsuffix")
		if err := reg.Register(compress.NewExecCodec(name, preSuffix, postSuffix, compressCmd, uncompressCmd)); err != nil {
			return nil, err
		}
	}

	if suf, ok := root.One("compressionsuffices"); ok {
		for suffix, pipelines := range suf.Values {
			if len(pipelines) == 0 {
				continue
			}
			names := strings.Fields(pipelines[0])
			pipeline := compress.Pipeline(names)
			for _, n := range pipeline {
				if _, ok := reg.Codec(n); !ok {
					return nil, cmn.NewConfigError("compressionsuffices", "suffix %q references unknown codec %q", suffix, n)
				}
			}
			reg.RegisterSuffix(suffix, pipeline)
		}
	}

	return reg, nil
}

// firstGlobal reads a bare top-level "key value" pair (outside any
// block), used for the handful of scalar settings that are not naturally
// part of a named section.
func firstGlobal(root *block.Block, key string) (string, bool) {
	return root.Get(key)
}
