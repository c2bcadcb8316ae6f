package scheduler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/NVIDIA/gnssfetch/internal/cmn"
)

// errLockHeld is returned by acquireLock when another process has already
// created the lock file for this date.
var errLockHeld = errors.New("scheduler: lock already held")

const (
	markerComplete = ".complete"
	markerFail     = ".fail"
	markerLock     = ".lock"
	markerSkip     = ".skip"
)

// markers wraps a single date's marker-file operations against its target
// directory, with an optional mirror to an object-store Archive (§4.5
// "Optional object-store backing").
type markers struct {
	dir    string
	mirror *mirror
}

func newMarkers(dir string, m *mirror) *markers { return &markers{dir: dir, mirror: m} }

func (mk *markers) path(name string) string { return filepath.Join(mk.dir, name) }

func (mk *markers) exists(name string) bool {
	_, err := os.Stat(mk.path(name))
	return err == nil
}

func (mk *markers) modTime(name string) (time.Time, bool) {
	fi, err := os.Stat(mk.path(name))
	if err != nil {
		return time.Time{}, false
	}
	return fi.ModTime(), true
}

func (mk *markers) write(name, content string) error {
	if err := os.MkdirAll(mk.dir, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(mk.path(name), []byte(content), 0o644); err != nil {
		return err
	}
	if mk.mirror != nil {
		return mk.mirror.put(mk.path(name), content)
	}
	return nil
}

func (mk *markers) remove(name string) error {
	err := os.Remove(mk.path(name))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if mk.mirror != nil {
		return mk.mirror.remove(mk.path(name))
	}
	return nil
}

// writeLock writes "(pid, now)" per §4.5, overwriting any existing lock.
// Only used to seed lock state in tests; real acquisition, including
// takeover once the stale lock has been removed, goes through acquireLock
// so that two processes racing on the same unlocked date cannot both win.
func (mk *markers) writeLock(pid int, now time.Time) error {
	return mk.write(markerLock, fmt.Sprintf("%d %d", pid, now.Unix()))
}

// acquireLock atomically creates the lock file, failing with errLockHeld
// if one already exists. This is the only safe way to take the §4.5
// advisory lock: os.O_EXCL guarantees that of two processes racing on the
// same unlocked date, exactly one succeeds.
func (mk *markers) acquireLock(pid int, now time.Time) error {
	if err := os.MkdirAll(mk.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(mk.path(markerLock), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return errLockHeld
		}
		return err
	}
	content := fmt.Sprintf("%d %d", pid, now.Unix())
	_, werr := f.WriteString(content)
	cerr := f.Close()
	if werr != nil {
		return werr
	}
	if cerr != nil {
		return cerr
	}
	if mk.mirror != nil {
		return mk.mirror.put(mk.path(markerLock), content)
	}
	return nil
}

// lockInfo reads back the lock content, reporting whether it is expired
// relative to expiry.
func (mk *markers) lockInfo(expiry time.Duration, now time.Time) (pid int, stale bool, fresh bool) {
	b, err := os.ReadFile(mk.path(markerLock))
	if err != nil {
		return 0, false, false
	}
	fields := strings.Fields(string(b))
	var lockedAt time.Time
	if len(fields) >= 2 {
		pid, _ = strconv.Atoi(fields[0])
		if sec, err := strconv.ParseInt(fields[1], 10, 64); err == nil {
			lockedAt = time.Unix(sec, 0)
		}
	}
	if lockedAt.IsZero() {
		if mt, ok := mk.modTime(markerLock); ok {
			lockedAt = mt
		} else {
			return pid, false, false
		}
	}
	if now.Sub(lockedAt) >= expiry {
		return pid, true, false
	}
	return pid, false, true
}

// MarkerState reports a date directory's current §4.5 state without
// running it, for status tooling that only needs to read, not drive, the
// state machine.
func MarkerState(targetDir string, date, now time.Time, lockExpiry time.Duration, retryIntervalDays, retryMaxAgeDays int) string {
	return State(newMarkers(targetDir, nil), date, now, lockExpiry, retryIntervalDays, retryMaxAgeDays)
}

// State implements the §4.5 per-date state-machine diagram.
func State(mk *markers, date time.Time, now time.Time, lockExpiry time.Duration, retryIntervalDays, retryMaxAgeDays int) string {
	if mk.exists(markerSkip) {
		return cmn.DateSkipped
	}
	if mk.exists(markerComplete) {
		return cmn.DateDone
	}
	if mk.exists(markerFail) {
		mt, _ := mk.modTime(markerFail)
		age := now.Sub(mt)
		withinRetryWindow := retryMaxAgeDays <= 0 || now.Sub(date) <= time.Duration(retryMaxAgeDays)*24*time.Hour
		if age < time.Duration(retryIntervalDays)*24*time.Hour || !withinRetryWindow {
			return cmn.DateHeld
		}
		return cmn.DateRetry
	}
	if mk.exists(markerLock) {
		_, stale, fresh := mk.lockInfo(lockExpiry, now)
		if fresh {
			return cmn.DateBusy
		}
		if stale {
			return cmn.DateTakeover
		}
	}
	return cmn.DateEnterable
}
