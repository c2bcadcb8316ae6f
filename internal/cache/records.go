package cache

import (
	"time"

	"github.com/NVIDIA/gnssfetch/internal/resolver"
)

// FileRecord is the files(id, type, subtype, relative_path, expiry) row
// (§4.4 "Index schema"), keyed on RelativePath.
type FileRecord struct {
	ID           string
	Type         string
	Subtype      string
	RelativePath string
	Expiry       time.Time
}

// JobRecord is the jobs(id, created, expiry) row.
type JobRecord struct {
	ID      string
	Created time.Time
	Expiry  time.Time
}

// RequestRecord is the requests(...) row — the persisted form of a
// resolver.Request, addressable both by its assigned ID and by the
// deduplicating ReqID.
type RequestRecord struct {
	ID      string
	ReqID   string
	JobID   string
	Type    string
	Subtype string
	Start   time.Time
	End     time.Time
	Station string

	Status          string
	AvailableDate   *time.Time
	SuppliedSubtype string
	Message         string
}

func newRequestRecord(req *resolver.Request) *RequestRecord {
	return &RequestRecord{
		ID: req.ReqID(), ReqID: req.ReqID(), JobID: req.JobID,
		Type: req.Type, Subtype: req.Subtype, Start: req.Start, End: req.End, Station: req.Station,
		Status: req.Status, AvailableDate: req.AvailableDate,
		SuppliedSubtype: req.SuppliedSubtype, Message: req.Message,
	}
}

func (rr *RequestRecord) toRequest() *resolver.Request {
	return &resolver.Request{
		JobID: rr.JobID, Type: rr.Type, Subtype: rr.Subtype,
		Start: rr.Start, End: rr.End, Station: rr.Station,
		Status: rr.Status, AvailableDate: rr.AvailableDate,
		SuppliedSubtype: rr.SuppliedSubtype, Message: rr.Message,
	}
}

func (rr *RequestRecord) applyRequest(req *resolver.Request) {
	rr.Status = req.Status
	rr.AvailableDate = req.AvailableDate
	rr.SuppliedSubtype = req.SuppliedSubtype
	rr.Message = req.Message
}
