package compress

import (
	"os"

	"github.com/NVIDIA/gnssfetch/internal/cmn"
)

// Convert transforms a downloaded file from srcPipeline's compression to
// dstPipeline's compression (§4.3): it strips the common prefix shared by
// both pipelines, runs the remaining source stages' Decompress in
// reverse, then the remaining destination stages' Compress in order. All
// intermediate files are written to workDir and the operation is
// out-of-place; the caller renames the final temp file into place only
// after Convert returns successfully.
func (r *Registry) Convert(srcPath string, srcPipeline, dstPipeline Pipeline, workDir string) (dstPath string, err error) {
	common := commonPrefixLen(srcPipeline, dstPipeline)

	cur := srcPath
	cleanup := make([]string, 0, 4)
	defer func() {
		for _, f := range cleanup {
			if f != dstPath {
				os.Remove(f)
			}
		}
	}()

	// 1. decompress the source-only stages, innermost stage last, so
	// traverse srcPipeline in reverse from the end down to `common`.
	for i := len(srcPipeline) - 1; i >= common; i-- {
		codec, ok := r.Codec(srcPipeline[i])
		if !ok {
			return "", cmn.NewConfigError("compressiontypes", "unknown codec %q in source pipeline", srcPipeline[i])
		}
		next, err := tempFile(workDir, "decompress-"+codec.Name)
		if err != nil {
			return "", err
		}
		if err := codec.Decompress(cur, next); err != nil {
			os.Remove(next)
			return "", cmn.NewCodecError("decompress", codec.Name, err)
		}
		cleanup = append(cleanup, next)
		cur = next
	}

	// 2. compress the destination-only stages, in order.
	for i := common; i < len(dstPipeline); i++ {
		codec, ok := r.Codec(dstPipeline[i])
		if !ok {
			return "", cmn.NewConfigError("compressiontypes", "unknown codec %q in destination pipeline", dstPipeline[i])
		}
		next, err := tempFile(workDir, "compress-"+codec.Name)
		if err != nil {
			return "", err
		}
		if err := codec.Compress(cur, next); err != nil {
			os.Remove(next)
			return "", cmn.NewCodecError("compress", codec.Name, err)
		}
		cleanup = append(cleanup, next)
		cur = next
	}

	dstPath = cur
	return dstPath, nil
}

func commonPrefixLen(a, b Pipeline) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}

func tempFile(dir, prefix string) (string, error) {
	f, err := os.CreateTemp(dir, prefix+"-*.tmp")
	if err != nil {
		return "", cmn.NewConfigError("compress", "cannot create temp file in %q: %v", dir, err)
	}
	name := f.Name()
	f.Close()
	return name, nil
}

// FinalName derives the converted file's final name by replacing the
// source pipeline's accumulated suffixes with the destination pipeline's.
func FinalName(r *Registry, base string, srcPipeline, dstPipeline Pipeline) string {
	stripped := base
	for i := len(srcPipeline) - 1; i >= 0; i-- {
		if c, ok := r.Codec(srcPipeline[i]); ok {
			suf := c.PostSuffix
			if i != len(srcPipeline)-1 {
				suf = c.PreSuffix
			}
			stripped = trimSuffixFold(stripped, suf)
		}
	}
	name := stripped
	for i, codecName := range dstPipeline {
		if c, ok := r.Codec(codecName); ok {
			suf := c.PreSuffix
			if i == len(dstPipeline)-1 {
				suf = c.PostSuffix
			}
			name += suf
		}
	}
	return name
}

func trimSuffixFold(s, suf string) string {
	if suf == "" || len(suf) > len(s) {
		return s
	}
	if equalFold(s[len(s)-len(suf):], suf) {
		return s[:len(s)-len(suf)]
	}
	return s
}
