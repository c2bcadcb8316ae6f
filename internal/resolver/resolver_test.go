package resolver_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/NVIDIA/gnssfetch/internal/archive"
	"github.com/NVIDIA/gnssfetch/internal/catalog"
	"github.com/NVIDIA/gnssfetch/internal/cmn"
	"github.com/NVIDIA/gnssfetch/internal/resolver"
	"github.com/NVIDIA/gnssfetch/internal/template"
)

// fakeArchive is a minimal archive.Archive double: List/Fetch are scripted,
// everything else reports a fixed priority/station set.
type fakeArchive struct {
	name     string
	priority int
	stations map[string]bool
	wildcard bool
	excluded map[string]bool

	fetchErr error
	listing  []string
}

func (f *fakeArchive) Name() string   { return f.name }
func (f *fakeArchive) Priority() int  { return f.priority }
func (f *fakeArchive) Readonly() bool { return false }
func (f *fakeArchive) StationServed(station string) (matches, wildcardOnly, excluded bool) {
	if f.excluded[station] {
		return false, false, true
	}
	if f.stations[station] {
		return true, false, false
	}
	if f.wildcard {
		return false, true, false
	}
	return false, false, false
}
func (f *fakeArchive) Override(string, string) (*catalog.ProductType, bool) { return nil, false }
func (f *fakeArchive) List(context.Context, string) ([]string, error)      { return f.listing, nil }
func (f *fakeArchive) Fetch(context.Context, string, string) (string, error) {
	if f.fetchErr != nil {
		return "", f.fetchErr
	}
	return "/tmp/fake-fetched", nil
}
func (f *fakeArchive) Store(context.Context, string, string, string) error { return nil }
func (f *fakeArchive) Exists(context.Context, string, string) (bool, error) {
	return true, nil
}
func (f *fakeArchive) Connect(context.Context) error               { return nil }
func (f *fakeArchive) Disconnect() error                           { return nil }
func (f *fakeArchive) MaxDownloadsPerConnection() int              { return 0 }

var _ archive.Archive = (*fakeArchive)(nil)

func mustCatalog(defs ...*catalog.ProductType) *catalog.Catalog {
	c, err := catalog.NewCatalog(defs)
	Expect(err).NotTo(HaveOccurred())
	return c
}

var _ = Describe("OrderCandidates", func() {
	pt := &catalog.ProductType{
		Type: "ORB", Subtype: "FINAL", Priority: 10,
		FilenameTemplate: "[type]_[ssss]_[yyyy][ddd].dat",
		PathTemplate:     "[yyyy]",
		Cadence:          cmn.CadenceDaily, SupplyCadence: 24 * time.Hour,
	}
	cat := mustCatalog(pt)

	It("orders the matching-station band before the wildcard-only band, each by descending priority", func() {
		low := &fakeArchive{name: "low", priority: 1, stations: map[string]bool{"ABCD": true}}
		high := &fakeArchive{name: "high", priority: 5, stations: map[string]bool{"ABCD": true}}
		wc := &fakeArchive{name: "wc", priority: 100, wildcard: true}

		cands := resolver.OrderCandidates(cat, []archive.Archive{low, wc, high}, "ORB", "FINAL", "ABCD")
		Expect(cands).To(HaveLen(3))
		Expect(cands[0].Archive.Name()).To(Equal("high"))
		Expect(cands[1].Archive.Name()).To(Equal("low"))
		Expect(cands[2].Archive.Name()).To(Equal("wc"))
	})

	It("drops archives that exclude the station", func() {
		excluded := &fakeArchive{name: "ex", priority: 1, stations: map[string]bool{"ABCD": true}, excluded: map[string]bool{"ABCD": true}}
		cands := resolver.OrderCandidates(cat, []archive.Archive{excluded}, "ORB", "FINAL", "ABCD")
		Expect(cands).To(BeEmpty())
	})
})

var _ = Describe("Fulfill", func() {
	pt := &catalog.ProductType{
		Type: "ORB", Subtype: "FINAL", Priority: 10,
		FilenameTemplate: "[type]_[yyyy][ddd].dat",
		PathTemplate:     "[yyyy]",
		Cadence:          cmn.CadenceDaily, SupplyCadence: 24 * time.Hour,
		Latency: time.Hour,
	}

	newReq := func() *resolver.Request {
		return &resolver.Request{
			JobID: "job1", Type: "ORB", Subtype: "FINAL",
			Start: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		}
	}

	noopStore := func(context.Context, *template.FileSpec, string) error { return nil }

	It("reports COMPLETED on the first candidate that fetches successfully", func() {
		a := &fakeArchive{name: "a", priority: 1}
		cands := []resolver.Candidate{{Archive: a, ProductType: pt}}
		req := newReq()
		now := req.Start.Add(48 * time.Hour)

		err := resolver.Fulfill(context.Background(), cands, req, noopStore, now)
		Expect(err).NotTo(HaveOccurred())
		Expect(req.Status).To(Equal(cmn.StatusCompleted))
		Expect(req.SuppliedSubtype).To(Equal("FINAL"))
	})

	It("reports PENDING when available_time is in the future", func() {
		a := &fakeArchive{name: "a", priority: 1}
		cands := []resolver.Candidate{{Archive: a, ProductType: pt}}
		req := newReq()
		now := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC) // long before availability

		err := resolver.Fulfill(context.Background(), cands, req, noopStore, now)
		Expect(err).NotTo(HaveOccurred())
		Expect(req.Status).To(Equal(cmn.StatusPending))
		Expect(req.AvailableDate).NotTo(BeNil())
	})

	It("reports DELAYED with a retryable fetch failure, continuing past it", func() {
		a := &fakeArchive{name: "a", priority: 1, fetchErr: cmn.NewRetryableError("a", context.DeadlineExceeded, time.Now())}
		cands := []resolver.Candidate{{Archive: a, ProductType: pt}}
		req := newReq()
		now := req.Start.Add(48 * time.Hour)

		err := resolver.Fulfill(context.Background(), cands, req, noopStore, now)
		Expect(err).NotTo(HaveOccurred())
		Expect(req.Status).To(Equal(cmn.StatusDelayed))
	})

	It("prefers COMPLETED over a later DELAYED candidate", func() {
		bad := &fakeArchive{name: "bad", priority: 10, fetchErr: cmn.NewRetryableError("bad", context.DeadlineExceeded, time.Now())}
		good := &fakeArchive{name: "good", priority: 1}
		cands := []resolver.Candidate{{Archive: bad, ProductType: pt}, {Archive: good, ProductType: pt}}
		req := newReq()
		now := req.Start.Add(48 * time.Hour)

		err := resolver.Fulfill(context.Background(), cands, req, noopStore, now)
		Expect(err).NotTo(HaveOccurred())
		Expect(req.Status).To(Equal(cmn.StatusCompleted))
	})

	It("reports UNAVAILABLE with no candidates", func() {
		req := newReq()
		err := resolver.Fulfill(context.Background(), nil, req, noopStore, time.Now())
		Expect(err).NotTo(HaveOccurred())
		Expect(req.Status).To(Equal(cmn.StatusUnavailable))
	})
})
