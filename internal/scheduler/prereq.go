package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/NVIDIA/gnssfetch/internal/archive"
)

// checkPrerequisites reports whether every entry in prereqs exists,
// resolved per §4.5: a "~/"-prefixed path against targetDir, else against
// baseDir, else (if store is configured) against the remote object store.
func checkPrerequisites(ctx context.Context, prereqs []string, targetDir, baseDir string, store archive.Archive) (bool, string) {
	for _, raw := range prereqs {
		if ok, err := prerequisiteExists(ctx, raw, targetDir, baseDir, store); err != nil || !ok {
			return false, raw
		}
	}
	return true, ""
}

func prerequisiteExists(ctx context.Context, raw, targetDir, baseDir string, store archive.Archive) (bool, error) {
	if rel := strings.TrimPrefix(raw, "~/"); rel != raw {
		_, err := os.Stat(filepath.Join(targetDir, rel))
		return err == nil, nil
	}
	if _, err := os.Stat(filepath.Join(baseDir, raw)); err == nil {
		return true, nil
	} else if !os.IsNotExist(err) {
		return false, err
	}
	if store == nil {
		return false, nil
	}
	dir, name := filepath.Split(raw)
	return store.Exists(ctx, strings.TrimSuffix(dir, "/"), name)
}
