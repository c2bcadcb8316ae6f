// Package template expands ProductType filename/path templates over
// time/station/job variables and computes cadence-aligned time buckets
// (spec §4.1).
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package template

import "time"

// Bucket returns the canonical cadence-aligned time bucket owning t:
// floor((t-e0)/cadence)*cadence + e0, per §4.1.
func Bucket(t, e0 time.Time, cadence time.Duration) time.Time {
	if cadence <= 0 {
		return t
	}
	delta := t.Sub(e0)
	n := delta / cadence
	if delta%cadence < 0 {
		n--
	}
	return e0.Add(n * cadence)
}

// Buckets returns the ordered list of cadence-aligned buckets intersecting
// [start, end], ascending.
func Buckets(start, end, e0 time.Time, cadence time.Duration) []time.Time {
	if cadence <= 0 || end.Before(start) {
		return nil
	}
	var out []time.Time
	for b := Bucket(start, e0, cadence); !b.After(end); b = b.Add(cadence) {
		out = append(out, b)
	}
	// Bucket(start,...) may land before start whenever start isn't itself
	// bucket-aligned; the loop above already begins at the bucket owning
	// start and steps forward by a full cadence, so every emitted bucket
	// intersects [start, end] by construction.
	return out
}
