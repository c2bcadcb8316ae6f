package scheduler

import (
	"context"
	"os"
	"path/filepath"

	"github.com/NVIDIA/gnssfetch/internal/archive"
)

// mirror copies lock/marker writes to an optional object-store namespace
// (§4.5 "Optional object-store backing") and primes a date's target dir
// from it. Date state is decided from the local marker files only; markers
// in the object store are not read back.
type mirror struct {
	store  archive.Archive
	base   string // local base directory the mirrored paths are relative to
	prefix string // path prefix under store
}

func newMirror(store archive.Archive, base, prefix string) *mirror {
	if store == nil {
		return nil
	}
	return &mirror{store: store, base: base, prefix: prefix}
}

func (m *mirror) remoteName(localPath string) (dir, name string) {
	rel, err := filepath.Rel(m.base, localPath)
	if err != nil {
		rel = filepath.Base(localPath)
	}
	dir = filepath.Join(m.prefix, filepath.Dir(rel))
	name = filepath.Base(rel)
	return dir, name
}

func (m *mirror) put(localPath, content string) error {
	f, err := os.CreateTemp("", "gnssfetch-mirror-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return err
	}
	f.Close()
	dir, name := m.remoteName(localPath)
	return m.store.Store(context.Background(), f.Name(), dir, name)
}

// remove is a no-op: Archive has no delete operation (§6 schemes are
// fetch/store/exists/list only), so a removed local marker stays in the
// mirror; syncDown skips marker files, so it is not copied back.
func (m *mirror) remove(string) error { return nil }

// syncDown fetches every object under prefix into the local target dir,
// used to prime the scratch area before the callback runs.
func (m *mirror) syncDown(ctx context.Context, dir string) error {
	if m == nil {
		return nil
	}
	rel, err := filepath.Rel(m.base, dir)
	if err != nil {
		rel = filepath.Base(dir)
	}
	remoteDir := filepath.Join(m.prefix, rel)
	names, err := m.store.List(ctx, remoteDir)
	if err != nil {
		return err
	}
	for _, name := range names {
		switch name {
		case markerComplete, markerFail, markerLock, markerSkip:
			continue
		}
		tmp, err := m.store.Fetch(ctx, remoteDir, name)
		if err != nil {
			return err
		}
		dst := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			os.Remove(tmp)
			return err
		}
		data, err := os.ReadFile(tmp)
		os.Remove(tmp)
		if err != nil {
			return err
		}
		if err := os.WriteFile(dst, data, 0o644); err != nil {
			return err
		}
	}
	return nil
}
