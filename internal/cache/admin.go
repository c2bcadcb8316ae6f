package cache

import (
	"sort"

	jsoniter "github.com/json-iterator/go"
	"github.com/tidwall/buntdb"

	"github.com/NVIDIA/gnssfetch/internal/cmn"
)

// ListJobs is a supplemented admin operation (not in the distilled request-
// fulfillment contract) mirroring the teacher downloader's ListJobs: report
// every known job, most-recently-created first.
func (c *Cache) ListJobs() ([]JobRecord, error) {
	var jobs []JobRecord
	err := c.db.View(func(tx *buntdb.Tx) error {
		ascend(tx, collJobs, func(_, value string) bool {
			var jr JobRecord
			if jsoniter.UnmarshalFromString(value, &jr) == nil {
				jobs = append(jobs, jr)
			}
			return true
		})
		return nil
	})
	if err != nil {
		return nil, cmn.NewIndexError("list_jobs", err)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Created.After(jobs[j].Created) })
	return jobs, nil
}

// ListRequests mirrors the teacher downloader's JobStatus admin op,
// generalized from "single download task" to "every request under a job".
// jobID == "" lists every request known to the index.
func (c *Cache) ListRequests(jobID string) ([]RequestRecord, error) {
	if jobID != "" {
		return c.requestRecordsForJob(jobID)
	}
	var all []RequestRecord
	err := c.db.View(func(tx *buntdb.Tx) error {
		ascend(tx, collRequests, func(_, value string) bool {
			var rec RequestRecord
			if jsoniter.UnmarshalFromString(value, &rec) == nil {
				all = append(all, rec)
			}
			return true
		})
		return nil
	})
	if err != nil {
		return nil, cmn.NewIndexError("list_requests", err)
	}
	return all, nil
}

// PurgeJob force-deletes a job and every request under it regardless of
// expiry, mirroring the teacher downloader's RemoveJob admin op. Linked
// files are left for the regular purge pass to reclaim once unlinked.
func (c *Cache) PurgeJob(jobID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

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
		return cmn.NewIndexError("purge_job_admin", err)
	}
	return nil
}
