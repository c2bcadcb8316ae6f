// Package cache implements the writable file-Archive-plus-index described
// in spec §4.4: deduplication across jobs, retry scheduling for
// PENDING/DELAYED requests, and retention-based purging, backed by an
// embedded key-value store (spec §4.4 "Integrity").
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package cache

import (
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/tidwall/buntdb"

	"github.com/NVIDIA/gnssfetch/internal/archive"
	"github.com/NVIDIA/gnssfetch/internal/catalog"
	"github.com/NVIDIA/gnssfetch/internal/cmn"
)

const (
	collFiles        = "files"
	collJobs         = "jobs"
	collRequests     = "requests"
	collFileRequests = "file_requests"
	collSepa         = "##"

	autoShrinkSize = cmn.MiB
)

// Cache wires the index (a buntdb-backed key-value store, one collection
// per logical table per §4.4) to a writable backing FileArchive and the
// resolver/archive set used to fulfill requests.
type Cache struct {
	db      *buntdb.DB
	backing *archive.FileArchive

	catalog  *catalog.Catalog
	archives []archive.Archive

	jobRetention time.Duration
	queueLatency time.Duration

	mu sync.Mutex // serializes logical multi-step read-modify-write sequences
}

type Config struct {
	IndexPath    string
	Backing      *archive.FileArchive
	Catalog      *catalog.Catalog
	Archives     []archive.Archive
	JobRetention time.Duration
	QueueLatency time.Duration
}

func New(cfg Config) (*Cache, error) {
	db, err := buntdb.Open(cfg.IndexPath)
	if err != nil {
		return nil, cmn.NewIndexError("open", err)
	}
	db.SetConfig(buntdb.Config{
		SyncPolicy:           buntdb.EverySecond,
		AutoShrinkMinSize:    autoShrinkSize,
		AutoShrinkPercentage: 50,
	})
	return &Cache{
		db:           db,
		backing:      cfg.Backing,
		catalog:      cfg.Catalog,
		archives:     cfg.Archives,
		jobRetention: cfg.JobRetention,
		queueLatency: cfg.QueueLatency,
	}, nil
}

func (c *Cache) Close() error {
	if err := c.db.Close(); err != nil {
		return cmn.NewIndexError("close", err)
	}
	return nil
}

// makeKey mirrors dbdriver/bunt.go's collection+key addressing, guarding
// against collection/key separator collisions the same way.
func makeKey(collection, key string) string {
	if strings.HasSuffix(collection, collSepa) {
		return collection + key
	}
	return collection + collSepa + key
}

func (c *Cache) setJSON(tx *buntdb.Tx, collection, key string, v interface{}) error {
	b, err := jsoniter.Marshal(v)
	if err != nil {
		return cmn.NewIndexError("marshal", err)
	}
	_, _, err = tx.Set(makeKey(collection, key), string(b), nil)
	return err
}

func (c *Cache) getJSON(tx *buntdb.Tx, collection, key string, v interface{}) error {
	s, err := tx.Get(makeKey(collection, key))
	if err != nil {
		return err
	}
	return jsoniter.Unmarshal([]byte(s), v)
}

// ascend iterates the keys of collection in order, calling visit with each
// key (collection prefix stripped) and its raw stored JSON; iteration stops
// when visit returns false.
func ascend(tx *buntdb.Tx, collection string, visit func(key, value string) bool) {
	prefix := makeKey(collection, "")
	tx.AscendKeys(collection+collSepa+"*", func(key, value string) bool {
		if !strings.HasPrefix(key, prefix) {
			return true
		}
		return visit(strings.TrimPrefix(key, prefix), value)
	})
}
