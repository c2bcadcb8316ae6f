package template

import (
	"testing"
	"time"

	"github.com/NVIDIA/gnssfetch/internal/catalog"
)

func TestBucketAlignsDown(t *testing.T) {
	e0 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	cadence := 24 * time.Hour
	mid := e0.Add(30 * time.Hour) // 1 day 6 hours in
	got := Bucket(mid, e0, cadence)
	want := e0.Add(24 * time.Hour)
	if !got.Equal(want) {
		t.Fatalf("Bucket = %v, want %v", got, want)
	}
}

func TestBucketHandlesTimeBeforeEpoch(t *testing.T) {
	e0 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	cadence := 24 * time.Hour
	before := e0.Add(-1 * time.Hour)
	got := Bucket(before, e0, cadence)
	want := e0.Add(-24 * time.Hour)
	if !got.Equal(want) {
		t.Fatalf("Bucket(before epoch) = %v, want %v", got, want)
	}
}

func TestBucketsSpansRange(t *testing.T) {
	e0 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	cadence := 24 * time.Hour
	start := e0.Add(25 * time.Hour)
	end := e0.Add(75 * time.Hour)
	buckets := Buckets(start, end, e0, cadence)
	if len(buckets) != 3 {
		t.Fatalf("expected 3 buckets, got %d: %v", len(buckets), buckets)
	}
	for i, want := range []time.Time{
		e0.Add(24 * time.Hour),
		e0.Add(48 * time.Hour),
		e0.Add(72 * time.Hour),
	} {
		if !buckets[i].Equal(want) {
			t.Errorf("bucket[%d] = %v, want %v", i, buckets[i], want)
		}
	}
}

func TestBucketsEmptyWhenEndBeforeStart(t *testing.T) {
	e0 := time.Now()
	if got := Buckets(e0, e0.Add(-time.Hour), e0, time.Hour); got != nil {
		t.Fatalf("expected nil when end precedes start, got %v", got)
	}
}

func TestExpandTokensAndCase(t *testing.T) {
	v := Vars{Time: time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC), Station: "brst", Type: "orbit", Subtype: "final", Job: "job1"}
	got, err := Expand("[type]_[yyyy][ddd]_[SSSS].sp3.gz", v)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	want := "orbit_2026063_BRST.sp3.gz"
	if got != want {
		t.Fatalf("Expand = %q, want %q", got, want)
	}
}

func TestExpandUnknownTokenPassesThrough(t *testing.T) {
	got, err := Expand("[bogus].txt", Vars{})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if got != "[bogus].txt" {
		t.Fatalf("Expand(unknown token) = %q, want unchanged", got)
	}
}

func TestExpandDayOffset(t *testing.T) {
	v := Vars{Time: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	got, err := Expand("[yyyy-1]", v)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if got != "2025" {
		t.Fatalf("Expand([yyyy-1]) = %q, want 2025", got)
	}
}

func TestCompileWildcardMatches(t *testing.T) {
	re, err := CompileWildcard("brst00*.20?.Z")
	if err != nil {
		t.Fatalf("CompileWildcard: %v", err)
	}
	if !re.MatchString("brst0010.20d.Z") {
		t.Fatalf("expected pattern to match a plausible RINEX filename")
	}
	if re.MatchString("other0010.20d.Z") {
		t.Fatalf("expected pattern not to match an unrelated filename")
	}
}

func TestHasWildcard(t *testing.T) {
	if !HasWildcard("brst*.Z") {
		t.Fatalf("expected '*' to be detected as a wildcard")
	}
	if HasWildcard("brst0010.20d.Z") {
		t.Fatalf("expected a literal filename to report no wildcard")
	}
}

func TestExpansionProducesOneSpecPerBucket(t *testing.T) {
	e0 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	pt := &catalog.ProductType{
		Type: "orbit", Subtype: "final",
		FilenameTemplate: "[type]_[yyyy][ddd].sp3.gz",
		PathTemplate:     "[yyyy]/[ddd]",
		Cadence:          "daily",
		RefEpoch:         e0,
	}
	start := e0.Add(24 * time.Hour)
	end := e0.Add(72 * time.Hour)
	specs, err := Expansion(pt, start, end, "", "job1")
	if err != nil {
		t.Fatalf("Expansion: %v", err)
	}
	if len(specs) != 3 {
		t.Fatalf("expected 3 FileSpecs, got %d", len(specs))
	}
	if specs[0].Filename != "orbit_2020002.sp3.gz" {
		t.Fatalf("unexpected filename: %q", specs[0].Filename)
	}
	if specs[0].FullPath() != "2020/002/orbit_2020002.sp3.gz" {
		t.Fatalf("unexpected full path: %q", specs[0].FullPath())
	}
}
