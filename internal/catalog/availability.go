package catalog

import "time"

// Availability is the §4.1 availability prediction for a Request ending at
// tEnd against a single ProductType variant.
type Availability struct {
	AvailableTime time.Time
	FailTime      time.Time
	Unavailable   bool
	Reason        string // set iff Unavailable
}

// Predict computes §4.1's availability prediction: the expected
// publication time, the fail_time bound, and whether the product is
// authoritatively unavailable (rolling-product expiry or valid_before/
// valid_after fencing) at evaluation time now.
func (pt *ProductType) Predict(start, tEnd, now time.Time) Availability {
	e0 := pt.RefEpoch
	if e0.IsZero() {
		e0 = time.Unix(0, 0).UTC()
	}

	if pt.ExpiresDays > 0 {
		expiry := start.AddDate(0, 0, pt.ExpiresDays)
		if expiry.Before(now) {
			return Availability{Unavailable: true, Reason: "product window has rolled past expiry"}
		}
	}
	if pt.ValidBefore != nil && start.After(*pt.ValidBefore) {
		return Availability{Unavailable: true, Reason: "request start is after valid_before"}
	}
	if pt.ValidAfter != nil && start.Before(*pt.ValidAfter) {
		return Availability{Unavailable: true, Reason: "request start is before valid_after"}
	}

	supply := pt.SupplyCadence
	if supply <= 0 {
		supply = time.Second
	}
	delta := tEnd.Sub(e0)
	n := delta / supply
	if delta%supply != 0 {
		n++
	}
	available := e0.Add(n * supply).Add(pt.Latency)
	fail := available.Add(pt.MaxDelay)

	return Availability{AvailableTime: available, FailTime: fail}
}
