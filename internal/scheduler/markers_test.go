package scheduler

import (
	"os"
	"testing"
	"time"

	"github.com/NVIDIA/gnssfetch/internal/cmn"
)

func TestStateEnterableOnEmptyDir(t *testing.T) {
	dir := t.TempDir()
	mk := newMarkers(dir, nil)
	got := State(mk, time.Now(), time.Now(), cmn.DefaultLockExpiry, 1, 0)
	if got != cmn.DateEnterable {
		t.Fatalf("want Enterable, got %s", got)
	}
}

func TestStateSkippedAndDone(t *testing.T) {
	dir := t.TempDir()
	mk := newMarkers(dir, nil)

	if err := mk.write(markerSkip, ""); err != nil {
		t.Fatal(err)
	}
	if got := State(mk, time.Now(), time.Now(), cmn.DefaultLockExpiry, 1, 0); got != cmn.DateSkipped {
		t.Fatalf("want Skipped, got %s", got)
	}
	mk.remove(markerSkip)

	if err := mk.write(markerComplete, ""); err != nil {
		t.Fatal(err)
	}
	if got := State(mk, time.Now(), time.Now(), cmn.DefaultLockExpiry, 1, 0); got != cmn.DateDone {
		t.Fatalf("want Done, got %s", got)
	}
}

func TestStateFailHeldThenRetry(t *testing.T) {
	dir := t.TempDir()
	mk := newMarkers(dir, nil)

	if err := mk.write(markerFail, "x"); err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	date := now.Add(-2 * 24 * time.Hour)

	if got := State(mk, date, now, cmn.DefaultLockExpiry, 10, 0); got != cmn.DateHeld {
		t.Fatalf("want Held for a fresh fail marker, got %s", got)
	}

	old := now.Add(-20 * 24 * time.Hour)
	if err := os.Chtimes(mk.path(markerFail), old, old); err != nil {
		t.Fatal(err)
	}
	if got := State(mk, date, now, cmn.DefaultLockExpiry, 10, 0); got != cmn.DateRetry {
		t.Fatalf("want Retry once the fail marker ages past retry_interval_days, got %s", got)
	}
}

func TestStateFailHeldWhenBeyondRetryMaxAge(t *testing.T) {
	dir := t.TempDir()
	mk := newMarkers(dir, nil)
	if err := mk.write(markerFail, "x"); err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	old := now.Add(-20 * 24 * time.Hour)
	if err := os.Chtimes(mk.path(markerFail), old, old); err != nil {
		t.Fatal(err)
	}
	date := now.Add(-365 * 24 * time.Hour) // far outside retry_max_age_days

	got := State(mk, date, now, cmn.DefaultLockExpiry, 10, 5)
	if got != cmn.DateHeld {
		t.Fatalf("want Held when the date itself is beyond retry_max_age_days, got %s", got)
	}
}

func TestStateLockBusyThenTakeover(t *testing.T) {
	dir := t.TempDir()
	mk := newMarkers(dir, nil)
	now := time.Now()

	if err := mk.writeLock(1234, now); err != nil {
		t.Fatal(err)
	}
	if got := State(mk, now, now, time.Hour, 1, 0); got != cmn.DateBusy {
		t.Fatalf("want Busy for a fresh lock, got %s", got)
	}

	expired := now.Add(-2 * time.Hour)
	if err := mk.writeLock(1234, expired); err != nil {
		t.Fatal(err)
	}
	if got := State(mk, now, now, time.Hour, 1, 0); got != cmn.DateTakeover {
		t.Fatalf("want Takeover for an expired lock, got %s", got)
	}
}

func TestCheckPrerequisites(t *testing.T) {
	base := t.TempDir()
	target := t.TempDir()
	if err := os.WriteFile(base+"/ready", []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	ok, _ := checkPrerequisites(nil, []string{"ready"}, target, base, nil)
	if !ok {
		t.Fatal("expected base-dir prerequisite to be found")
	}

	ok, missing := checkPrerequisites(nil, []string{"missing.txt"}, target, base, nil)
	if ok || missing != "missing.txt" {
		t.Fatalf("expected missing prerequisite to fail, got ok=%v missing=%q", ok, missing)
	}

	if err := os.WriteFile(target+"/local.txt", []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	ok, _ = checkPrerequisites(nil, []string{"~/local.txt"}, target, base, nil)
	if !ok {
		t.Fatal("expected ~/-prefixed prerequisite to resolve against target dir")
	}
}
