package cache

import (
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/tidwall/buntdb"

	"github.com/NVIDIA/gnssfetch/internal/cmn"
)

// Purge implements §4.4's purge: delete expired jobs (cascading their
// requests), then delete files whose expiry has passed and which have no
// live request links, removing each file from disk only after its index
// row is gone.
func (c *Cache) Purge(now time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.purgeExpiredJobs(now); err != nil {
		return err
	}
	return c.purgeExpiredFiles(now)
}

func (c *Cache) purgeExpiredJobs(now time.Time) error {
	var expired []string
	err := c.db.View(func(tx *buntdb.Tx) error {
		ascend(tx, collJobs, func(id, value string) bool {
			var jr JobRecord
			if jsoniter.UnmarshalFromString(value, &jr) == nil && !jr.Expiry.After(now) {
				expired = append(expired, id)
			}
			return true
		})
		return nil
	})
	if err != nil {
		return cmn.NewIndexError("purge_scan_jobs", err)
	}

	for _, jobID := range expired {
		reqs, err := c.requestRecordsForJob(jobID)
		if err != nil {
			return err
		}
		err = c.db.Update(func(tx *buntdb.Tx) error {
			for _, r := range reqs {
				if err := c.deleteRequestTx(tx, r.ID); err != nil {
					return err
				}
			}
			_, delErr := tx.Delete(makeKey(collJobs, jobID))
			if delErr != nil && delErr != buntdb.ErrNotFound {
				return delErr
			}
			return nil
		})
		if err != nil {
			return cmn.NewIndexError("purge_job", err)
		}
	}
	return nil
}

func (c *Cache) purgeExpiredFiles(now time.Time) error {
	var candidates []FileRecord
	err := c.db.View(func(tx *buntdb.Tx) error {
		ascend(tx, collFiles, func(_, value string) bool {
			var fr FileRecord
			if jsoniter.UnmarshalFromString(value, &fr) == nil && !fr.Expiry.After(now) {
				candidates = append(candidates, fr)
			}
			return true
		})
		return nil
	})
	if err != nil {
		return cmn.NewIndexError("purge_scan_files", err)
	}

	for _, fr := range candidates {
		live, err := c.fileHasLiveLinks(fr.ID)
		if err != nil {
			return err
		}
		if live {
			continue
		}
		if err := c.db.Update(func(tx *buntdb.Tx) error {
			_, delErr := tx.Delete(makeKey(collFiles, fr.ID))
			if delErr != nil && delErr != buntdb.ErrNotFound {
				return delErr
			}
			return nil
		}); err != nil {
			return cmn.NewIndexError("purge_file", err)
		}
		os.Remove(filepath.Join(c.backing.RootDir, fr.RelativePath))
	}
	return nil
}
