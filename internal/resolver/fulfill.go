package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/NVIDIA/gnssfetch/internal/cmn"
	"github.com/NVIDIA/gnssfetch/internal/template"
)

// severity ranks the §4.2 aggregate ordering: COMPLETED > DELAYED > PENDING
// > UNAVAILABLE. Higher wins.
func severity(status string) int {
	switch status {
	case cmn.StatusCompleted:
		return 3
	case cmn.StatusDelayed:
		return 2
	case cmn.StatusPending:
		return 1
	default: // UNAVAILABLE
		return 0
	}
}

// Store persists one fetched FileSpec from its local temp path; the cache
// package supplies the concrete implementation (index + move into the
// backing FileArchive, §4.4).
type Store func(ctx context.Context, fs *template.FileSpec, localTempPath string) error

// Fulfill implements §4.2's fulfillment loop over an already-ordered
// candidate list, mutating req in place and returning the first
// unrecoverable (non-retryable) error, if any. A nil return with
// req.Status == UNAVAILABLE/PENDING/DELAYED is the normal "try again later"
// outcome; only config/index errors propagate.
func Fulfill(ctx context.Context, candidates []Candidate, req *Request, store Store, now time.Time) error {
	best := cmn.StatusUnavailable
	var bestTime *time.Time
	var bestMsg string
	seen := false

	record := func(status string, t *time.Time, msg string) {
		if !seen || severity(status) > severity(best) || (severity(status) == severity(best) && earlier(t, bestTime)) {
			best, bestTime, bestMsg = status, t, msg
			seen = true
		}
	}

	if len(candidates) == 0 {
		req.Status = cmn.StatusUnavailable
		req.Message = "no eligible archive for this station/subtype"
		return nil
	}

	for _, cand := range candidates {
		avail := cand.ProductType.Predict(req.Start, req.End, now)
		if avail.Unavailable {
			record(cmn.StatusUnavailable, nil, avail.Reason)
			continue
		}
		if avail.AvailableTime.After(now) {
			t := avail.AvailableTime
			record(cmn.StatusPending, &t, fmt.Sprintf("expected available at %s", t.Format(time.RFC3339)))
			continue
		}

		ok, err := fetchCandidate(ctx, cand, req, store)
		if err != nil {
			if !cmn.IsRetryable(err) {
				return err
			}
			t := avail.FailTime
			record(cmn.StatusDelayed, &t, err.Error())
			continue
		}
		if ok {
			req.Status = cmn.StatusCompleted
			req.SuppliedSubtype = cand.ProductType.Subtype
			req.Message = ""
			req.AvailableDate = &avail.AvailableTime
			return nil
		}
		// availability window passed but the fetch came back empty
		// (not-found on every spec): treat like a failed fetch.
		t := avail.FailTime
		record(cmn.StatusDelayed, &t, "archive reported no matching files")
	}

	req.Status = best
	req.AvailableDate = bestTime
	req.Message = bestMsg
	return nil
}

// fetchCandidate expands req against cand's ProductType and fetches every
// resulting FileSpec from cand's Archive, storing each via store. Returns
// ok=true only if every FileSpec in the expansion was fetched successfully.
func fetchCandidate(ctx context.Context, cand Candidate, req *Request, store Store) (ok bool, err error) {
	specs, err := template.Expansion(cand.ProductType, req.Start, req.End, req.Station, req.JobID)
	if err != nil {
		return false, err
	}
	if len(specs) == 0 {
		return false, nil
	}
	for _, fs := range specs {
		localPath, ferr := cand.Archive.Fetch(ctx, fs.Path, fs.Filename)
		if ferr != nil {
			return false, ferr
		}
		if serr := store(ctx, fs, localPath); serr != nil {
			return false, serr
		}
	}
	return true, nil
}

func earlier(a, b *time.Time) bool {
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}
	return a.Before(*b)
}
