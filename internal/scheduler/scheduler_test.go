package scheduler_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/NVIDIA/gnssfetch/internal/cmn"
	"github.com/NVIDIA/gnssfetch/internal/scheduler"
	"github.com/NVIDIA/gnssfetch/internal/varexpr"
)

var _ = Describe("DatesInOrder", func() {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	It("defaults to backwards", func() {
		dates := scheduler.DatesInOrder(start, end, 1, "")
		Expect(dates[0]).To(Equal(end))
		Expect(dates[len(dates)-1]).To(Equal(start))
	})

	It("honors forwards", func() {
		dates := scheduler.DatesInOrder(start, end, 1, cmn.OrderForwards)
		Expect(dates[0]).To(Equal(start))
	})

	It("visits every offset exactly once under binary_fill", func() {
		dates := scheduler.DatesInOrder(start, end, 1, cmn.OrderBinaryFill)
		seen := map[time.Time]bool{}
		for _, d := range dates {
			seen[d] = true
		}
		Expect(seen).To(HaveLen(5))
	})

	It("steps by date_increment", func() {
		dates := scheduler.DatesInOrder(start, end, 2, cmn.OrderForwards)
		Expect(dates).To(HaveLen(3))
	})
})

var _ = Describe("ForLoopSpec", func() {
	It("parses a for-loop directive", func() {
		spec, ok, err := scheduler.ParseForLoop("for 0 to 3 step 1 if exists need 2")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(spec.From).To(Equal(0))
		Expect(spec.To).To(Equal(3))
		Expect(spec.IfExists).To(BeTrue())
		Expect(spec.Need).To(Equal(2))
	})

	It("reports non-match for an ordinary value", func() {
		_, ok, err := scheduler.ParseForLoop("plain_value")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("filters to existing offsets and enforces the need count", func() {
		spec, _, _ := scheduler.ParseForLoop("for 0 to 4 if exists need 3")
		out, err := spec.Expand(func(offset int) (string, bool, error) {
			return "v", offset%2 == 0, nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("v v v"))
	})

	It("fails when fewer than need results survive", func() {
		spec, _, _ := scheduler.ParseForLoop("for 0 to 1 if exists need 5")
		_, err := spec.Expand(func(offset int) (string, bool, error) {
			return "v", true, nil
		})
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("ExpandConditionals", func() {
	It("resolves date fields against a date lookup", func() {
		date := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
		lookup := scheduler.DateLookup(date, map[string]string{"station": "ABCD"})
		out, err := varexpr.Expand("${yyyy}${ddd}", lookup)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("2026063"))
	})

	It("honors day offsets", func() {
		date := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		lookup := scheduler.DateLookup(date, nil)
		out, err := varexpr.Expand("${yyyy-1}", lookup)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("2025"))
	})

	It("evaluates the non-empty conditional", func() {
		date := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
		lookup := scheduler.DateLookup(date, map[string]string{"station": ""})
		out, err := scheduler.ExpandConditionals("${station?have:none}", lookup)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("none"))
	})
})

var _ = Describe("Run", func() {
	It("writes a complete marker on callback success and skips it on the next run", func() {
		base, err := os.MkdirTemp("", "gnssfetch-sched-test")
		Expect(err).NotTo(HaveOccurred())
		defer os.RemoveAll(base)
		calls := 0
		cfg := scheduler.Config{
			StartDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			Order:     cmn.OrderForwards,
			BaseDir:   base,
			Callback: func(ctx context.Context, date time.Time) error {
				calls++
				return nil
			},
		}
		res, err := scheduler.Run(context.Background(), cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Succeeded).To(Equal(1))
		Expect(calls).To(Equal(1))
		Expect(filepath.Join(base, ".complete")).To(BeAnExistingFile())

		res, err = scheduler.Run(context.Background(), cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(calls).To(Equal(1)) // Done, not re-entered
		Expect(res.Succeeded).To(Equal(0))
	})

	It("stops after max_consecutive_fails and rolls back this run's fail markers", func() {
		base, err := os.MkdirTemp("", "gnssfetch-sched-test")
		Expect(err).NotTo(HaveOccurred())
		defer os.RemoveAll(base)
		cfg := scheduler.Config{
			StartDate:            time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			EndDate:              time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
			Order:                cmn.OrderForwards,
			BaseDir:              base,
			TargetDirFor:         func(d time.Time) string { return filepath.Join(base, d.Format("20060102")) },
			MaxConsecutiveFails:  2,
			Callback: func(ctx context.Context, date time.Time) error {
				return errors.New("boom")
			},
		}
		res, err := scheduler.Run(context.Background(), cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.StoppedFor).To(Equal("max_consecutive_fails"))
		Expect(res.Failed).To(Equal(2))

		entries, _ := os.ReadDir(filepath.Join(base, "20260101"))
		for _, e := range entries {
			Expect(e.Name()).NotTo(Equal(".fail"))
		}
	})

	It("honors a stop_file", func() {
		base, err := os.MkdirTemp("", "gnssfetch-sched-test")
		Expect(err).NotTo(HaveOccurred())
		defer os.RemoveAll(base)
		stopFile := filepath.Join(base, "STOP")
		Expect(os.WriteFile(stopFile, []byte("x"), 0o644)).To(Succeed())

		res, err := scheduler.Run(context.Background(), scheduler.Config{
			StartDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC),
			Order:     cmn.OrderForwards,
			BaseDir:   base,
			StopFile:  stopFile,
			Callback: func(ctx context.Context, date time.Time) error {
				return nil
			},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.StoppedFor).To(Equal("stop_file"))
		Expect(res.Processed).To(Equal(0))
	})

	It("lets only one of two concurrent workers enter the same unlocked date", func() {
		base, err := os.MkdirTemp("", "gnssfetch-sched-test")
		Expect(err).NotTo(HaveOccurred())
		defer os.RemoveAll(base)
		date := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

		entered := make(chan struct{}, 2)
		release := make(chan struct{})
		cfg := func() scheduler.Config {
			return scheduler.Config{
				StartDate: date,
				EndDate:   date,
				BaseDir:   base,
				Callback: func(ctx context.Context, d time.Time) error {
					entered <- struct{}{}
					<-release
					return nil
				},
			}
		}

		results := make(chan scheduler.Result, 2)
		for i := 0; i < 2; i++ {
			go func() {
				res, _ := scheduler.Run(context.Background(), cfg())
				results <- res
			}()
		}

		Eventually(entered).Should(Receive())
		Consistently(entered, "200ms").ShouldNot(Receive())
		close(release)

		r1, r2 := <-results, <-results
		Expect(r1.Processed + r2.Processed).To(Equal(1))
	})
})
