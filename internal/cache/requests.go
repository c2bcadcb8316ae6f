package cache

import (
	"context"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/tidwall/buntdb"

	"github.com/NVIDIA/gnssfetch/internal/archive"
	"github.com/NVIDIA/gnssfetch/internal/cmn"
	"github.com/NVIDIA/gnssfetch/internal/resolver"
	"github.com/NVIDIA/gnssfetch/internal/template"
)

// AddRequest implements §4.4's add_request: if reqid is already present it
// is replaced in place (reqid doubles as the storage key, so a re-add is a
// plain overwrite); otherwise a new row is created. The initial
// available_date is predicted across every archive that might eventually
// serve the request; status is PENDING if any archive could, UNAVAILABLE
// otherwise.
func (c *Cache) AddRequest(req *resolver.Request, now time.Time) (*RequestRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if variants := c.catalog.ResolveSubtypes(req.Type, req.Subtype); len(variants) > 0 {
		if err := req.Validate(variants[0].UsesStation()); err != nil {
			return nil, err
		}
	}

	status, avail := c.predictInitial(req, now)
	req.Status = status
	req.AvailableDate = avail
	rec := newRequestRecord(req)

	err := c.db.Update(func(tx *buntdb.Tx) error {
		if err := c.setJSON(tx, collRequests, rec.ID, rec); err != nil {
			return err
		}
		return c.upsertJobTx(tx, req.JobID, avail, now)
	})
	if err != nil {
		return nil, cmn.NewIndexError("add_request", err)
	}
	return rec, nil
}

func (c *Cache) predictInitial(req *resolver.Request, now time.Time) (string, *time.Time) {
	candidates := resolver.OrderCandidates(c.catalog, c.archives, req.Type, req.Subtype, req.Station)
	if len(candidates) == 0 {
		return cmn.StatusUnavailable, nil
	}
	var earliest *time.Time
	servable := false
	for _, cand := range candidates {
		avail := cand.ProductType.Predict(req.Start, req.End, now)
		if avail.Unavailable {
			continue
		}
		servable = true
		t := avail.AvailableTime
		if earliest == nil || t.Before(*earliest) {
			earliest = &t
		}
	}
	if !servable {
		return cmn.StatusUnavailable, nil
	}
	return cmn.StatusPending, earliest
}

// upsertJobTx implements "job.expiry = max(request.available_date) +
// job_retention_days, floored at now" (§4.4 "Job lifetime").
func (c *Cache) upsertJobTx(tx *buntdb.Tx, jobID string, avail *time.Time, now time.Time) error {
	contribution := now
	if avail != nil {
		contribution = *avail
	}
	expiry := contribution.Add(c.jobRetention)
	if expiry.Before(now) {
		expiry = now
	}

	var existing JobRecord
	found := true
	if err := c.getJSON(tx, collJobs, jobID, &existing); err != nil {
		if err != buntdb.ErrNotFound {
			return err
		}
		found = false
	}
	if !found {
		existing = JobRecord{ID: jobID, Created: now, Expiry: expiry}
	} else if expiry.After(existing.Expiry) {
		existing.Expiry = expiry
	}
	return c.setJSON(tx, collJobs, jobID, existing)
}

// FillRequest implements §4.4's fill_request: invoke the Resolver into
// self, link any downloaded files to the request, and persist the updated
// status in the same transaction as the new file links.
func (c *Cache) FillRequest(rec *RequestRecord, now time.Time) (*RequestRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	req := rec.toRequest()
	candidates := resolver.OrderCandidates(c.catalog, c.archives, req.Type, req.Subtype, req.Station)

	var linked []string
	store := func(_ context.Context, fs *template.FileSpec, localTempPath string) error {
		fileID, err := c.storeFetchedFile(fs, localTempPath)
		if err != nil {
			return err
		}
		linked = append(linked, fileID)
		return nil
	}

	if err := resolver.Fulfill(context.Background(), candidates, req, store, now); err != nil {
		return nil, err
	}
	rec.applyRequest(req)

	err := c.db.Update(func(tx *buntdb.Tx) error {
		if err := c.setJSON(tx, collRequests, rec.ID, rec); err != nil {
			return err
		}
		for _, fileID := range linked {
			if err := c.linkFileRequestTx(tx, rec.ID, fileID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, cmn.NewIndexError("fill_request", err)
	}
	return rec, nil
}

// storeFetchedFile moves a resolver-fetched temp file into the backing
// FileArchive (write-to-temp-then-rename happens inside FileArchive.Store,
// §4.4 "Integrity") and indexes it, returning its file id (its relative
// path, which is already the files(...) dedup key).
func (c *Cache) storeFetchedFile(fs *template.FileSpec, localTempPath string) (string, error) {
	retentionDays := 0
	if pt, ok := c.catalog.Lookup(fs.ProductType, fs.Subtype); ok {
		retentionDays = pt.RetentionDays
	}
	if err := c.backing.Store(context.Background(), localTempPath, fs.Path, fs.Filename); err != nil {
		return "", err
	}
	os.Remove(localTempPath)

	fileID := fs.FullPath()
	rec := FileRecord{
		ID: fileID, Type: fs.ProductType, Subtype: fs.Subtype,
		RelativePath: fileID, Expiry: fs.Timestamp.AddDate(0, 0, retentionDays),
	}
	err := c.db.Update(func(tx *buntdb.Tx) error { return c.setJSON(tx, collFiles, fileID, rec) })
	if err != nil {
		return "", cmn.NewIndexError("store_file", err)
	}
	return fileID, nil
}

// FillPending implements §4.4's fill_pending: select every PENDING/DELAYED
// request whose available_date has arrived, fill each, and report the
// job_ids that are now all-terminal (COMPLETED or UNAVAILABLE).
func (c *Cache) FillPending(now time.Time) ([]string, error) {
	var due []RequestRecord
	err := c.db.View(func(tx *buntdb.Tx) error {
		ascend(tx, collRequests, func(_, value string) bool {
			var rec RequestRecord
			if jsoniter.UnmarshalFromString(value, &rec) != nil {
				return true
			}
			if (rec.Status == cmn.StatusPending || rec.Status == cmn.StatusDelayed) &&
				rec.AvailableDate != nil && !rec.AvailableDate.After(now) {
				due = append(due, rec)
			}
			return true
		})
		return nil
	})
	if err != nil {
		return nil, cmn.NewIndexError("fill_pending_scan", err)
	}

	touchedJobs := map[string]bool{}
	for i := range due {
		rec := due[i]
		if _, err := c.FillRequest(&rec, now); err != nil {
			return nil, err
		}
		touchedJobs[rec.JobID] = true
	}

	var doneJobs []string
	for jobID := range touchedJobs {
		terminal, err := c.jobAllTerminal(jobID)
		if err != nil {
			return nil, err
		}
		if terminal {
			doneJobs = append(doneJobs, jobID)
		}
	}
	return doneJobs, nil
}

func (c *Cache) jobAllTerminal(jobID string) (bool, error) {
	reqs, err := c.requestRecordsForJob(jobID)
	if err != nil {
		return false, err
	}
	if len(reqs) == 0 {
		return false, nil
	}
	for _, r := range reqs {
		if r.Status != cmn.StatusCompleted && r.Status != cmn.StatusUnavailable {
			return false, nil
		}
	}
	return true, nil
}

// RetrieveRequest implements §4.4's retrieve_request: if COMPLETED, copy
// cached files to target and delete the request; if UNAVAILABLE, delete it;
// otherwise no-op.
func (c *Cache) RetrieveRequest(ctx context.Context, target archive.Archive, rec *RequestRecord) error {
	switch rec.Status {
	case cmn.StatusCompleted:
		fileIDs, err := c.linkedFileIDs(rec.ID)
		if err != nil {
			return err
		}
		for _, fid := range fileIDs {
			var fr FileRecord
			if err := c.getFile(fid, &fr); err != nil {
				return err
			}
			if err := c.copyFileToTarget(ctx, target, &fr); err != nil {
				return err
			}
		}
		return c.deleteRequest(rec.ID)
	case cmn.StatusUnavailable:
		return c.deleteRequest(rec.ID)
	default:
		return nil
	}
}

// GetData implements §4.4's get_data composite API.
func (c *Cache) GetData(req *resolver.Request, target archive.Archive, queue, download bool, now time.Time) (*RequestRecord, *time.Time, error) {
	reqID := req.ReqID()
	preExisted, err := c.requestExists(reqID)
	if err != nil {
		return nil, nil, err
	}

	var rec *RequestRecord
	if queue || !preExisted {
		rec, err = c.AddRequest(req, now)
	} else {
		rec, err = c.getRequestRecord(reqID)
	}
	if err != nil {
		return nil, nil, err
	}

	if download {
		rec, err = c.FillRequest(rec, now)
		if err != nil {
			return nil, nil, err
		}
	}

	if target != nil {
		if err := c.RetrieveRequest(context.Background(), target, rec); err != nil {
			return nil, nil, err
		}
	}
	if !preExisted && !queue {
		if err := c.deleteRequest(rec.ID); err != nil {
			return nil, nil, err
		}
	}

	var nextCheck *time.Time
	if queue && !download && (rec.Status == cmn.StatusPending || rec.Status == cmn.StatusDelayed) && rec.AvailableDate != nil {
		t := rec.AvailableDate.Add(c.queueLatency)
		nextCheck = &t
	}
	return rec, nextCheck, nil
}
