package cache_test

import (
	"context"
	"os"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/NVIDIA/gnssfetch/internal/archive"
	"github.com/NVIDIA/gnssfetch/internal/cache"
	"github.com/NVIDIA/gnssfetch/internal/catalog"
	"github.com/NVIDIA/gnssfetch/internal/cmn"
	"github.com/NVIDIA/gnssfetch/internal/resolver"
)

// fakeSourceArchive fetches a fixed content blob regardless of path/filename.
type fakeSourceArchive struct {
	*archive.Base
}

func newFakeSource() *fakeSourceArchive {
	return &fakeSourceArchive{Base: &archive.Base{ArchiveName: "src", ArchPriority: 1}}
}

func (a *fakeSourceArchive) List(context.Context, string) ([]string, error) { return nil, nil }
func (a *fakeSourceArchive) Fetch(context.Context, string, string) (string, error) {
	f, err := os.CreateTemp("", "cache-test-src-*.dat")
	if err != nil {
		return "", err
	}
	defer f.Close()
	f.WriteString("orbit data")
	return f.Name(), nil
}
func (a *fakeSourceArchive) Store(context.Context, string, string, string) error { return nil }
func (a *fakeSourceArchive) Exists(context.Context, string, string) (bool, error) {
	return true, nil
}
func (a *fakeSourceArchive) Connect(context.Context) error { return nil }
func (a *fakeSourceArchive) Disconnect() error             { return nil }

var _ archive.Archive = (*fakeSourceArchive)(nil)

var _ = Describe("Cache", func() {
	var (
		c       *cache.Cache
		cat     *catalog.Catalog
		backing *archive.FileArchive
		src     *fakeSourceArchive
		root    string
		epoch   time.Time
	)

	BeforeEach(func() {
		var err error
		root, err = os.MkdirTemp("", "gnssfetch-cache-test")
		Expect(err).NotTo(HaveOccurred())

		pt := &catalog.ProductType{
			Type: "ORB", Subtype: "FINAL", Priority: 10,
			FilenameTemplate: "[type]_[yyyy][ddd].dat",
			PathTemplate:     "[yyyy]",
			Cadence:          cmn.CadenceDaily, SupplyCadence: 24 * time.Hour,
			RetentionDays: 5,
		}
		cat, err = catalog.NewCatalog([]*catalog.ProductType{pt})
		Expect(err).NotTo(HaveOccurred())

		backing = archive.NewFileArchive(&archive.Base{ArchiveName: "cache", ArchPriority: 0}, root)
		src = newFakeSource()

		c, err = cache.New(cache.Config{
			IndexPath:    ":memory:",
			Backing:      backing,
			Catalog:      cat,
			Archives:     []archive.Archive{src},
			JobRetention: 24 * time.Hour,
			QueueLatency: time.Minute,
		})
		Expect(err).NotTo(HaveOccurred())

		epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	})

	AfterEach(func() {
		c.Close()
		os.RemoveAll(root)
	})

	It("queues a request as PENDING and fills it to COMPLETED", func() {
		req := &resolver.Request{JobID: "job1", Type: "ORB", Subtype: "FINAL", Start: epoch, End: epoch}
		now := epoch.Add(48 * time.Hour)

		rec, err := c.AddRequest(req, now)
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.Status).To(Equal(cmn.StatusPending))

		rec, err = c.FillRequest(rec, now)
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.Status).To(Equal(cmn.StatusCompleted))

		files, err := os.ReadDir(root)
		Expect(err).NotTo(HaveOccurred())
		Expect(files).NotTo(BeEmpty())
	})

	It("retrieves a completed request into a target archive and deletes it", func() {
		req := &resolver.Request{JobID: "job2", Type: "ORB", Subtype: "FINAL", Start: epoch, End: epoch}
		now := epoch.Add(48 * time.Hour)

		rec, err := c.AddRequest(req, now)
		Expect(err).NotTo(HaveOccurred())
		rec, err = c.FillRequest(rec, now)
		Expect(err).NotTo(HaveOccurred())

		targetDir, err := os.MkdirTemp("", "gnssfetch-cache-target")
		Expect(err).NotTo(HaveOccurred())
		defer os.RemoveAll(targetDir)
		target := archive.NewFileArchive(&archive.Base{ArchiveName: "target"}, targetDir)

		err = c.RetrieveRequest(context.Background(), target, rec)
		Expect(err).NotTo(HaveOccurred())

		requests, err := c.ListRequests("job2")
		Expect(err).NotTo(HaveOccurred())
		Expect(requests).To(BeEmpty())
	})

	It("purges expired jobs and their requests", func() {
		req := &resolver.Request{JobID: "job3", Type: "ORB", Subtype: "FINAL", Start: epoch, End: epoch}
		now := epoch.Add(48 * time.Hour)
		_, err := c.AddRequest(req, now)
		Expect(err).NotTo(HaveOccurred())

		err = c.Purge(now.Add(365 * 24 * time.Hour))
		Expect(err).NotTo(HaveOccurred())

		requests, err := c.ListRequests("job3")
		Expect(err).NotTo(HaveOccurred())
		Expect(requests).To(BeEmpty())
	})
})
