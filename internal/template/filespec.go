package template

import (
	"path"
	"time"

	"github.com/NVIDIA/gnssfetch/internal/catalog"
)

// FileSpec is a fully materialized file reference produced by expanding a
// ProductType's templates over a time bucket, station, and job (§3).
type FileSpec struct {
	ProductType string
	Subtype     string
	Path        string
	Filename    string
	Compression string
	Station     string
	Timestamp   time.Time
}

// Expansion expands pt's filename/path templates across every cadence
// bucket intersecting [start, end], for the given station and job id.
// Buckets are returned in ascending order, matching the order fetches are
// attempted in (§5 ordering guarantees).
func Expansion(pt *catalog.ProductType, start, end time.Time, station, job string) ([]*FileSpec, error) {
	cadence, err := pt.CadenceDuration()
	if err != nil {
		return nil, err
	}
	e0 := pt.RefEpoch
	if e0.IsZero() {
		e0 = time.Unix(0, 0).UTC()
	}
	buckets := Buckets(start, end, e0, cadence)

	specs := make([]*FileSpec, 0, len(buckets))
	for _, b := range buckets {
		v := Vars{Time: b, Station: station, Job: job, Type: pt.Type, Subtype: pt.Subtype}
		fname, err := Expand(pt.FilenameTemplate, v)
		if err != nil {
			return nil, err
		}
		dir, err := Expand(pt.PathTemplate, v)
		if err != nil {
			return nil, err
		}
		specs = append(specs, &FileSpec{
			ProductType: pt.Type,
			Subtype:     pt.Subtype,
			Path:        dir,
			Filename:    fname,
			Compression: pt.Compression,
			Station:     station,
			Timestamp:   b,
		})
	}
	return specs, nil
}

// FullPath joins Path and Filename using forward slashes, the convention
// every Archive variant (including the local file cache) uses for
// relative addressing.
func (fs *FileSpec) FullPath() string {
	return path.Join(fs.Path, fs.Filename)
}
