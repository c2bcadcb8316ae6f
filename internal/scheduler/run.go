package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang/glog"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/NVIDIA/gnssfetch/internal/archive"
	"github.com/NVIDIA/gnssfetch/internal/cmn"
)

// Callback is the user-supplied per-date processing function (§4.5
// "invokes callback").
type Callback func(ctx context.Context, date time.Time) error

// Config carries every §4.5 tunable for a single Run.
type Config struct {
	StartDate, EndDate time.Time
	DateIncrement      int
	Order              string // cmn.OrderForwards/Backwards/Random/BinaryFill

	TargetDirFor  func(date time.Time) string
	BaseDir       string
	Prerequisites []string

	CleanTargetDir bool

	RetryIntervalDays int
	RetryMaxAgeDays   int
	LockExpiry        time.Duration

	MaxRuntime                      time.Duration
	MaxDaysProcessedPerRun          int
	StopFile                        string
	MaxConsecutiveFails             int
	MaxConsecutivePrerequisiteFails int

	// Parallelism bounds how many dates may be worked concurrently by this
	// process. 0 or 1 means strictly sequential (the spec's baseline
	// model); >1 opts into the supplemented bounded-parallel mode.
	Parallelism int

	ObjectStore  archive.Archive // optional (§4.5 "Optional object-store backing")
	ObjectPrefix string

	Callback Callback
}

// Result summarizes a completed Run invocation.
type Result struct {
	Processed  int
	Succeeded  int
	Failed     int
	Skipped    int
	StoppedFor string // "max_runtime", "max_days", "stop_file", "max_consecutive_fails", "max_consecutive_prerequisite_fails", "" (ran out of dates)
}

// Run drives the per-date state machine over [StartDate, EndDate] until a
// run-wide termination condition fires or every date has been visited.
func Run(ctx context.Context, cfg Config) (Result, error) {
	if cfg.LockExpiry <= 0 {
		cfg.LockExpiry = cmn.DefaultLockExpiry
	}
	dates := DatesInOrder(cfg.StartDate, cfg.EndDate, cfg.DateIncrement, cfg.Order)

	pid := os.Getpid()
	deadline := time.Time{}
	if cfg.MaxRuntime > 0 {
		deadline = time.Now().Add(cfg.MaxRuntime)
	}

	var (
		res                    Result
		mu                     sync.Mutex
		consecutiveFails       atomic.Int32
		consecutivePrereqFails atomic.Int32
		failMarkersThisRun     []*markers
		stopped                string
	)

	stopCh := cmn.NewStopCh()

	process := func(date time.Time) (abort bool) {
		mu.Lock()
		if stopped != "" {
			mu.Unlock()
			return true
		}
		mu.Unlock()

		if !deadline.IsZero() && time.Now().After(deadline) {
			mu.Lock()
			stopped = "max_runtime"
			mu.Unlock()
			return true
		}
		if cfg.StopFile != "" {
			if _, err := os.Stat(cfg.StopFile); err == nil {
				mu.Lock()
				stopped = "stop_file"
				mu.Unlock()
				return true
			}
		}
		mu.Lock()
		if cfg.MaxDaysProcessedPerRun > 0 && res.Processed >= cfg.MaxDaysProcessedPerRun {
			stopped = "max_days"
			mu.Unlock()
			return true
		}
		mu.Unlock()

		dir := cfg.BaseDir
		if cfg.TargetDirFor != nil {
			dir = cfg.TargetDirFor(date)
		}
		var m *mirror
		if cfg.ObjectStore != nil {
			m = newMirror(cfg.ObjectStore, cfg.BaseDir, cfg.ObjectPrefix)
		}
		mk := newMarkers(dir, m)

		state := State(mk, date, time.Now(), cfg.LockExpiry, cfg.RetryIntervalDays, cfg.RetryMaxAgeDays)
		if state == cmn.DateTakeover {
			glog.Warningf("%s: taking over expired lock", date.Format("2006-01-02"))
		}

		mu.Lock()
		switch state {
		case cmn.DateSkipped:
			res.Skipped++
		}
		mu.Unlock()

		if state != cmn.DateEnterable && state != cmn.DateRetry && state != cmn.DateTakeover {
			return false
		}

		ok, missing := checkPrerequisites(ctx, cfg.Prerequisites, dir, cfg.BaseDir, cfg.ObjectStore)
		if !ok {
			glog.Infof("%s: missing prerequisite %q, skipping", date.Format("2006-01-02"), missing)
			n := consecutivePrereqFails.Inc()
			if cfg.MaxConsecutivePrerequisiteFails > 0 && int(n) >= cfg.MaxConsecutivePrerequisiteFails {
				mu.Lock()
				stopped = "max_consecutive_prerequisite_fails"
				mu.Unlock()
				return true
			}
			return false
		}
		consecutivePrereqFails.Store(0)

		if state == cmn.DateTakeover {
			_ = mk.remove(markerLock)
		}
		if err := mk.acquireLock(pid, time.Now()); err != nil {
			if err == errLockHeld {
				glog.Infof("%s: lost the lock race to another worker, skipping this run", date.Format("2006-01-02"))
			}
			return false
		}
		defer mk.remove(markerLock)

		if cfg.CleanTargetDir {
			entries, _ := os.ReadDir(dir)
			for _, e := range entries {
				if e.Name() == markerLock {
					continue
				}
				_ = os.RemoveAll(filepath.Join(dir, e.Name()))
			}
		}

		if m != nil {
			_ = m.syncDown(ctx, dir)
		}

		var cbErr error
		if cfg.Callback != nil {
			cbErr = cfg.Callback(ctx, date)
		}

		mu.Lock()
		res.Processed++
		mu.Unlock()

		if cbErr != nil {
			glog.Errorf("%s: %v", date.Format("2006-01-02"), cbErr)
			_ = mk.write(markerFail, time.Now().Format(time.RFC3339))
			mu.Lock()
			res.Failed++
			failMarkersThisRun = append(failMarkersThisRun, mk)
			mu.Unlock()

			n := consecutiveFails.Inc()
			if cfg.MaxConsecutiveFails > 0 && int(n) >= cfg.MaxConsecutiveFails {
				glog.Warningf("max_consecutive_fails (%d) reached, rolling back this run's fail markers", cfg.MaxConsecutiveFails)
				for _, fm := range failMarkersThisRun {
					_ = fm.remove(markerFail)
				}
				mu.Lock()
				stopped = "max_consecutive_fails"
				mu.Unlock()
				return true
			}
			return false
		}

		consecutiveFails.Store(0)
		_ = mk.write(markerComplete, time.Now().Format(time.RFC3339))
		mu.Lock()
		res.Succeeded++
		mu.Unlock()
		return false
	}

	if cfg.Parallelism > 1 {
		g, gctx := errgroup.WithContext(ctx)
		sem := cmn.NewDynSemaphore(cfg.Parallelism)
	datesLoop:
		for _, d := range dates {
			d := d
			select {
			case <-stopCh.Listen():
				break datesLoop
			case <-gctx.Done():
				break datesLoop
			default:
			}
			sem.Acquire()
			g.Go(func() error {
				defer sem.Release()
				if process(d) {
					stopCh.Close()
				}
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for _, d := range dates {
			if process(d) {
				break
			}
		}
	}

	res.StoppedFor = stopped
	return res, nil
}
