package archive

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/NVIDIA/gnssfetch/internal/cmn"
)

// FileArchive is the file:// variant: a local directory tree, also used
// directly as the Cache's writable backing store (§4.4).
type FileArchive struct {
	*Base
	RootDir string
}

func NewFileArchive(base *Base, rootDir string) *FileArchive {
	return &FileArchive{Base: base, RootDir: rootDir}
}

func (a *FileArchive) full(path, filename string) string {
	return filepath.Join(a.RootDir, path, filename)
}

func (a *FileArchive) List(_ context.Context, path string) ([]string, error) {
	dir := filepath.Join(a.RootDir, path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (a *FileArchive) Fetch(ctx context.Context, path, filename string) (string, error) {
	resolved, err := FetchResolved(a.Base, func(p string) ([]string, error) { return a.List(ctx, p) }, path, filename)
	if err != nil {
		return "", err
	}
	src := a.full(path, resolved)
	tmp, err := os.CreateTemp("", "gnssfetch-file-*.tmp")
	if err != nil {
		return "", err
	}
	defer tmp.Close()
	in, err := os.Open(src)
	if err != nil {
		os.Remove(tmp.Name())
		if os.IsNotExist(err) {
			return "", cmn.NewNotFoundError(path, resolved)
		}
		return "", err
	}
	defer in.Close()
	if _, err := io.Copy(tmp, in); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if a.recordDownload() {
		// a local archive has no real connection to cycle, but the
		// counter still resets so MaxDownloads remains meaningful if a
		// file archive is reused as a connection-budgeted proxy in tests.
		a.resetDownloadCounter()
	}
	return tmp.Name(), nil
}

func (a *FileArchive) Store(_ context.Context, localFile, path, filename string) error {
	if a.ReadonlyArchive {
		return cmn.NewConfigError(a.ArchiveName, "archive is read-only")
	}
	dstDir := filepath.Join(a.RootDir, path)
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return err
	}
	dst := filepath.Join(dstDir, filename)
	tmp := dst + ".tmp"
	if err := copyFileInto(localFile, tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	// write-to-temp-then-rename (§4.4 "Integrity").
	return os.Rename(tmp, dst)
}

func copyFileInto(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}

func (a *FileArchive) Exists(_ context.Context, path, filename string) (bool, error) {
	_, err := os.Stat(a.full(path, filename))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (a *FileArchive) Connect(_ context.Context) error {
	a.setConnected(true)
	return nil
}

func (a *FileArchive) Disconnect() error {
	a.setConnected(false)
	return nil
}
