// Package archive defines the uniform Archive capability — {list, fetch,
// store, exists, connect, disconnect} — over a scheme-tagged URI, and the
// file/ftp/http(s)/s3/token-https variants that implement it (spec §4.3,
// §6, §9 "Polymorphism").
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package archive

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/NVIDIA/gnssfetch/internal/catalog"
)

// Archive is the capability set every transport variant implements. The
// original inheritance hierarchy collapses to composition (§9): shared
// state lives in Base, embedded by every concrete variant.
type Archive interface {
	Name() string
	Priority() int
	Readonly() bool

	// StationServed reports whether station is explicitly listed by this
	// archive (matching band) as opposed to covered only by a wildcard
	// (wildcard-only band), and whether it is excluded outright.
	StationServed(station string) (matches bool, wildcardOnly bool, excluded bool)

	// Override returns this archive's ProductType override for
	// (productType, subtype), if any.
	Override(productType, subtype string) (*catalog.ProductType, bool)

	List(ctx context.Context, path string) ([]string, error)
	Fetch(ctx context.Context, path, filename string) (localTempPath string, err error)
	Store(ctx context.Context, localFile, path, filename string) error
	Exists(ctx context.Context, path, filename string) (bool, error)

	Connect(ctx context.Context) error
	Disconnect() error

	// MaxDownloadsPerConnection returns the per-connection download
	// budget (0 means unlimited) before Base forces a reconnect (§4.3).
	MaxDownloadsPerConnection() int
}

// Base carries the state shared by every Archive variant: name, priority,
// credentials, station set, per-archive catalog overrides, the
// per-connection download counter and connection state, and a listing
// cache scoped to the connection's lifetime (§4.3 "cached per path for
// the lifetime of the Archive connection").
type Base struct {
	ArchiveName string
	URI         string
	ArchPriority int
	ReadonlyArchive bool

	Stations         map[string]bool // explicit station codes this archive serves; "*" key means wildcard
	ExcludedStations map[string]bool
	Overrides        map[string]*catalog.ProductType // key: type+"/"+subtype

	MaxDownloads int // 0 == unlimited

	mu          sync.Mutex
	connected   bool
	downloads   atomic.Int64
	listCache   map[string][]string
	listCacheMu sync.RWMutex
}

func (b *Base) Name() string        { return b.ArchiveName }
func (b *Base) Priority() int       { return b.ArchPriority }
func (b *Base) Readonly() bool      { return b.ReadonlyArchive }
func (b *Base) MaxDownloadsPerConnection() int { return b.MaxDownloads }

// StationServed implements §4.2's station-match predicate explicitly (one
// of the spec's resolved Open Questions): a station is "matching" if this
// archive lists it by name; "wildcard-only" if the archive advertises "*"
// and does not list the station by name; excluded if it appears in the
// archive's excluded-station list, which takes precedence over both.
func (b *Base) StationServed(station string) (matches, wildcardOnly, excluded bool) {
	if b.ExcludedStations[station] {
		return false, false, true
	}
	if b.Stations[station] {
		return true, false, false
	}
	if b.Stations["*"] {
		return false, true, false
	}
	return false, false, false
}

func (b *Base) Override(productType, subtype string) (*catalog.ProductType, bool) {
	pt, ok := b.Overrides[productType+"/"+subtype]
	return pt, ok
}

// listCacheGet/listCachePut implement the per-connection listing cache.
func (b *Base) listCacheGet(path string) ([]string, bool) {
	b.listCacheMu.RLock()
	defer b.listCacheMu.RUnlock()
	if b.listCache == nil {
		return nil, false
	}
	v, ok := b.listCache[path]
	return v, ok
}

func (b *Base) listCachePut(path string, names []string) {
	b.listCacheMu.Lock()
	defer b.listCacheMu.Unlock()
	if b.listCache == nil {
		b.listCache = make(map[string][]string)
	}
	b.listCache[path] = names
}

func (b *Base) clearListCache() {
	b.listCacheMu.Lock()
	b.listCache = nil
	b.listCacheMu.Unlock()
}

// recordDownload increments the per-connection download counter and
// reports whether the budget has been exceeded and a reconnect is due
// (§4.3 "per-connection budget").
func (b *Base) recordDownload() (shouldReconnect bool) {
	n := b.downloads.Inc()
	return b.MaxDownloads > 0 && n >= int64(b.MaxDownloads)
}

func (b *Base) resetDownloadCounter() { b.downloads.Store(0) }

func (b *Base) setConnected(v bool) {
	b.mu.Lock()
	b.connected = v
	b.mu.Unlock()
	if !v {
		b.clearListCache()
		b.resetDownloadCounter()
	}
}

func (b *Base) isConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

// ReconnectIfBudgetExceeded closes and reopens the connection once the
// per-connection download budget is exceeded, "to defeat server-side
// accounting limits and long-lived-socket pathologies" (§4.3). connectFn
// and disconnectFn are the variant's own transport-specific hooks.
func ReconnectIfBudgetExceeded(ctx context.Context, b *Base, disconnectFn func() error, connectFn func(context.Context) error) error {
	if !b.recordDownload() {
		return nil
	}
	if err := disconnectFn(); err != nil {
		return err
	}
	b.setConnected(false)
	return connectFn(ctx)
}

// DefaultOperationTimeout bounds a single Archive operation (§5 "Suspension points").
const DefaultOperationTimeout = 2 * time.Minute

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultOperationTimeout
	}
	return context.WithTimeout(ctx, d)
}
