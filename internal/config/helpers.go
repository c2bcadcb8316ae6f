package config

import (
	"strconv"

	"github.com/NVIDIA/gnssfetch/internal/cmn"
	"github.com/NVIDIA/gnssfetch/internal/config/block"
)

func getInt(b *block.Block, key string, def int) (int, error) {
	v, ok := b.Get(key)
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, cmn.NewConfigError(key, "expected an integer, got %q", v)
	}
	return n, nil
}

func requireString(b *block.Block, key string) (string, error) {
	v, ok := b.Get(key)
	if !ok || v == "" {
		return "", cmn.NewConfigError(key, "missing required key %q", key)
	}
	return v, nil
}
