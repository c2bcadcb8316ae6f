// Package resolver orders Archive/ProductType candidates for a Request and
// drives fulfillment against them (spec §4.2), grounded on the
// dispatcher/jogger task loop shape in the teacher's downloader package.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package resolver

import (
	"time"

	"github.com/NVIDIA/gnssfetch/internal/cmn"
)

// Request is the §3 DATA MODEL entity the resolver fulfills.
type Request struct {
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

// ReqID is the uniqueness key: (job_id, type, subtype, station, start, end).
func (r *Request) ReqID() string {
	return r.JobID + "|" + r.Type + "|" + r.Subtype + "|" + r.Station + "|" +
		r.Start.UTC().Format(time.RFC3339) + "|" + r.End.UTC().Format(time.RFC3339)
}

func (r *Request) Validate(usesStation bool) error {
	if usesStation && r.Station == "" {
		return cmn.NewConfigError(r.ReqID(), "product type requires a station but request has none")
	}
	if !usesStation && r.Station != "" {
		return cmn.NewConfigError(r.ReqID(), "product type does not use a station but request names one")
	}
	if r.Start.After(r.End) {
		return cmn.NewConfigError(r.ReqID(), "start_epoch after end_epoch")
	}
	return nil
}
