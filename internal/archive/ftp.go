package archive

import (
	"context"
	"io"
	"os"
	"sort"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/NVIDIA/gnssfetch/internal/cmn"
)

// FtpArchive is the ftp://[user[:pass]@]host/path variant.
type FtpArchive struct {
	*Base
	Host  string
	Creds *Credentials
	Dial  func(host string) (*ftp.ServerConn, error) // overridable for tests

	mu   chanMutex
	conn *ftp.ServerConn
}

// chanMutex is a trivial channel-based mutex; the teacher's sync.Mutex
// would do, but FtpArchive's Connect/Disconnect need a select-friendly
// lock for the (rare) concurrent reconnect path, so a 1-buffered channel
// is used the way the teacher's StopCh uses one for broadcast-once.
type chanMutex chan struct{}

func newChanMutex() chanMutex { c := make(chanMutex, 1); c <- struct{}{}; return c }
func (m chanMutex) Lock()     { <-m }
func (m chanMutex) Unlock()   { m <- struct{}{} }

func NewFtpArchive(base *Base, host string, creds *Credentials) *FtpArchive {
	return &FtpArchive{
		Base:  base,
		Host:  host,
		Creds: creds,
		mu:    newChanMutex(),
		Dial: func(host string) (*ftp.ServerConn, error) {
			return ftp.Dial(host, ftp.DialWithTimeout(DefaultOperationTimeout))
		},
	}
}

func (a *FtpArchive) Connect(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	conn, err := a.Dial(a.Host)
	if err != nil {
		return cmn.NewRetryableError(a.ArchiveName, err, time.Now().Add(time.Minute))
	}
	if a.Creds != nil {
		if err := conn.Login(a.Creds.Username, a.Creds.Password); err != nil {
			conn.Quit()
			return cmn.NewRetryableError(a.ArchiveName, err, time.Now().Add(time.Minute))
		}
	}
	a.conn = conn
	a.setConnected(true)
	return nil
}

func (a *FtpArchive) Disconnect() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn == nil {
		return nil
	}
	err := a.conn.Quit()
	a.conn = nil
	a.setConnected(false)
	return err
}

func (a *FtpArchive) ensureConnected(ctx context.Context) error {
	if a.isConnected() {
		return nil
	}
	return a.Connect(ctx)
}

func (a *FtpArchive) List(ctx context.Context, path string) ([]string, error) {
	if err := a.ensureConnected(ctx); err != nil {
		return nil, err
	}
	a.mu.Lock()
	entries, err := a.conn.List(path)
	a.mu.Unlock()
	if err != nil {
		return nil, cmn.NewRetryableError(a.ArchiveName, err, time.Now().Add(time.Minute))
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type == ftp.EntryTypeFile {
			names = append(names, e.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (a *FtpArchive) Fetch(ctx context.Context, path, filename string) (string, error) {
	if err := a.ensureConnected(ctx); err != nil {
		return "", err
	}
	resolved, err := FetchResolved(a.Base, func(p string) ([]string, error) { return a.List(ctx, p) }, path, filename)
	if err != nil {
		return "", err
	}

	fullPath := joinFTP(path, resolved)
	a.mu.Lock()
	resp, err := a.conn.Retr(fullPath)
	a.mu.Unlock()
	if err != nil {
		return "", cmn.NewRetryableError(a.ArchiveName, err, time.Now().Add(time.Minute))
	}
	defer resp.Close()

	tmp, err := os.CreateTemp("", "gnssfetch-ftp-*.tmp")
	if err != nil {
		return "", err
	}
	defer tmp.Close()
	if _, err := io.Copy(tmp, resp); err != nil {
		os.Remove(tmp.Name())
		return "", cmn.NewRetryableError(a.ArchiveName, err, time.Now().Add(time.Minute))
	}

	if err := ReconnectIfBudgetExceeded(ctx, a.Base, a.Disconnect, a.Connect); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

func (a *FtpArchive) Store(ctx context.Context, localFile, path, filename string) error {
	if a.ReadonlyArchive {
		return cmn.NewConfigError(a.ArchiveName, "archive is read-only")
	}
	if err := a.ensureConnected(ctx); err != nil {
		return err
	}
	f, err := os.Open(localFile)
	if err != nil {
		return err
	}
	defer f.Close()
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.conn.MakeDir(path); err != nil {
		// directory may already exist; the Store still attempts the
		// upload below and surfaces any real failure from that call.
		_ = err
	}
	return a.conn.Stor(joinFTP(path, filename), f)
}

func (a *FtpArchive) Exists(ctx context.Context, path, filename string) (bool, error) {
	names, err := a.List(ctx, path)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == filename {
			return true, nil
		}
	}
	return false, nil
}

func joinFTP(path, filename string) string {
	if path == "" {
		return filename
	}
	if path[len(path)-1] == '/' {
		return path + filename
	}
	return path + "/" + filename
}
