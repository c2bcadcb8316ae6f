package cmn

import "time"

// byte-size helpers, same role as cmn.KiB/MiB in the teacher package.
const (
	KiB = 1024
	MiB = 1024 * KiB
)

// Request.status values (§3 DATA MODEL).
const (
	StatusRequested  = "REQUESTED"
	StatusPending    = "PENDING"
	StatusDelayed    = "DELAYED"
	StatusCompleted  = "COMPLETED"
	StatusUnavailable = "UNAVAILABLE"
	StatusInvalid    = "INVALID"
)

// ProductType.cadence enumeration (§3).
const (
	CadenceHourly    = "hourly"
	Cadence3Hourly   = "3-hourly"
	Cadence6Hourly   = "6-hourly"
	CadenceDaily     = "daily"
	CadenceWeekly    = "weekly"
)

// CadenceSeconds returns the canonical bucket width for a named cadence.
func CadenceSeconds(cadence string) (time.Duration, bool) {
	switch cadence {
	case CadenceHourly:
		return time.Hour, true
	case Cadence3Hourly:
		return 3 * time.Hour, true
	case Cadence6Hourly:
		return 6 * time.Hour, true
	case CadenceDaily:
		return 24 * time.Hour, true
	case CadenceWeekly:
		return 7 * 24 * time.Hour, true
	default:
		return 0, false
	}
}

// Archive connection state (§3).
const (
	ConnDisconnected = "disconnected"
	ConnConnected    = "connected"
)

// Daily scheduler per-date states (§4.5).
const (
	DateSkipped  = "Skipped"
	DateDone     = "Done"
	DateHeld     = "Held"
	DateRetry    = "Retry"
	DateBusy     = "Busy"
	DateTakeover = "Takeover"
	DateEnterable = "Enterable"
)

// Scheduler processing order (§4.5).
const (
	OrderForwards    = "forwards"
	OrderBackwards   = "backwards"
	OrderRandom      = "random"
	OrderBinaryFill  = "binary_fill"
)

// DefaultLockExpiry is the default advisory lock staleness threshold (§5).
const DefaultLockExpiry = 21 * time.Hour // ~0.9 days
