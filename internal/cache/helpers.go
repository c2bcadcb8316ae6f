package cache

import (
	"context"
	"path"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/tidwall/buntdb"

	"github.com/NVIDIA/gnssfetch/internal/archive"
	"github.com/NVIDIA/gnssfetch/internal/cmn"
)

func (c *Cache) requestExists(reqID string) (bool, error) {
	var found bool
	err := c.db.View(func(tx *buntdb.Tx) error {
		_, err := tx.Get(makeKey(collRequests, reqID))
		if err == buntdb.ErrNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return false, cmn.NewIndexError("request_exists", err)
	}
	return found, nil
}

func (c *Cache) getRequestRecord(reqID string) (*RequestRecord, error) {
	var rec RequestRecord
	err := c.db.View(func(tx *buntdb.Tx) error { return c.getJSON(tx, collRequests, reqID, &rec) })
	if err != nil {
		if err == buntdb.ErrNotFound {
			return nil, cmn.NewNotFoundError(collRequests, reqID)
		}
		return nil, cmn.NewIndexError("get_request", err)
	}
	return &rec, nil
}

func (c *Cache) deleteRequest(reqID string) error {
	err := c.db.Update(func(tx *buntdb.Tx) error { return c.deleteRequestTx(tx, reqID) })
	if err != nil {
		return cmn.NewIndexError("delete_request", err)
	}
	return nil
}

// deleteRequestTx removes the request row and every file_requests link that
// references it; the linked files themselves are left for purge to reclaim
// once no request links them (§4.4 "purge").
func (c *Cache) deleteRequestTx(tx *buntdb.Tx, reqID string) error {
	var links []string
	ascend(tx, collFileRequests, func(key, _ string) bool {
		if strings.HasPrefix(key, reqID+collSepa) {
			links = append(links, key)
		}
		return true
	})
	for _, key := range links {
		if _, err := tx.Delete(makeKey(collFileRequests, key)); err != nil && err != buntdb.ErrNotFound {
			return err
		}
	}
	_, err := tx.Delete(makeKey(collRequests, reqID))
	if err != nil && err != buntdb.ErrNotFound {
		return err
	}
	return nil
}

func (c *Cache) linkFileRequestTx(tx *buntdb.Tx, reqID, fileID string) error {
	return c.setJSON(tx, collFileRequests, reqID+collSepa+fileID, struct{}{})
}

func (c *Cache) linkedFileIDs(reqID string) ([]string, error) {
	var ids []string
	err := c.db.View(func(tx *buntdb.Tx) error {
		ascend(tx, collFileRequests, func(key, _ string) bool {
			if strings.HasPrefix(key, reqID+collSepa) {
				ids = append(ids, strings.TrimPrefix(key, reqID+collSepa))
			}
			return true
		})
		return nil
	})
	if err != nil {
		return nil, cmn.NewIndexError("linked_files", err)
	}
	return ids, nil
}

// fileHasLiveLinks reports whether any file_requests row still references
// fileID — i.e. the file is not yet an orphan purge may reclaim.
func (c *Cache) fileHasLiveLinks(fileID string) (bool, error) {
	var live bool
	err := c.db.View(func(tx *buntdb.Tx) error {
		ascend(tx, collFileRequests, func(key, _ string) bool {
			if strings.HasSuffix(key, collSepa+fileID) {
				live = true
				return false
			}
			return true
		})
		return nil
	})
	if err != nil {
		return false, cmn.NewIndexError("file_links", err)
	}
	return live, nil
}

func (c *Cache) getFile(fileID string, out *FileRecord) error {
	err := c.db.View(func(tx *buntdb.Tx) error { return c.getJSON(tx, collFiles, fileID, out) })
	if err != nil {
		if err == buntdb.ErrNotFound {
			return cmn.NewNotFoundError(collFiles, fileID)
		}
		return cmn.NewIndexError("get_file", err)
	}
	return nil
}

func (c *Cache) requestRecordsForJob(jobID string) ([]RequestRecord, error) {
	var recs []RequestRecord
	err := c.db.View(func(tx *buntdb.Tx) error {
		ascend(tx, collRequests, func(_, value string) bool {
			var rec RequestRecord
			if jsoniter.UnmarshalFromString(value, &rec) == nil && rec.JobID == jobID {
				recs = append(recs, rec)
			}
			return true
		})
		return nil
	})
	if err != nil {
		return nil, cmn.NewIndexError("requests_for_job", err)
	}
	return recs, nil
}

func (c *Cache) copyFileToTarget(ctx context.Context, target archive.Archive, fr *FileRecord) error {
	localPath := filepath.Join(c.backing.RootDir, fr.RelativePath)
	dir, file := path.Split(fr.RelativePath)
	return target.Store(ctx, localPath, strings.TrimSuffix(dir, "/"), file)
}
