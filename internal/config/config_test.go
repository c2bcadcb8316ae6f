package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleConfig = `
hatanaka_compress /usr/bin/rnx2crx
hatanaka_decompress /usr/bin/crx2rnx

<compressiontypes>
	name bzip2
	compress /usr/bin/bzip2 -c
	uncompress /usr/bin/bunzip2 -c
	presuffix
	postsuffix .bz2
</compressiontypes>

<compressionsuffices>
	.gz gzip
	.bz2 bzip2
</compressionsuffices>

<datatypes>
	<type orbit>
		<subtype final>
			priority 10
			filename_template [type]_[yyyy][ddd].sp3.gz
			path_template [yyyy]/[ddd]
			cadence daily
			latency 1209600
			retry_interval 86400
			max_delay 2592000
			retention_days 365
			compression gzip
		</subtype>
		<subtype rapid>
			priority 20
			filename_template [type]r_[yyyy][ddd].sp3.gz
			cadence daily
			latency 86400
			retry_interval 3600
		</subtype>
	</type>
</datatypes>

<datacenters>
	<datacenter cddis>
		scheme ftp
		host gdc.cddis.eosdis.nasa.gov
		priority 20
		readonly true
		stations *
		excluded_stations ABMF
		username anonymous
		password user@example.com
		<override>
			type orbit
			subtype final
			filename_template [type]_[yyyy][ddd]_cddis.sp3.gz
		</override>
	</datacenter>
	<datacenter local_cache>
		scheme file
		root /data/gnss/cache
		priority 0
	</datacenter>
</datacenters>

<cache>
	datacenter local_cache
	job_retention 7
	queue_latency 300
</cache>
`

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "gnssfetch-config-test")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	path := filepath.Join(dir, "gnssfetch.conf")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeTempConfig(t, sampleConfig)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if _, ok := cfg.Compression.Codec("gzip"); !ok {
		t.Fatalf("expected builtin gzip codec registered")
	}
	if _, ok := cfg.Compression.Codec("bzip2"); !ok {
		t.Fatalf("expected configured bzip2 codec registered")
	}

	final, ok := cfg.Catalog.Lookup("orbit", "final")
	if !ok {
		t.Fatalf("expected orbit/final product type")
	}
	if final.FilenameTemplate != "[type]_[yyyy][ddd].sp3.gz" {
		t.Fatalf("filename template corrupted: %q", final.FilenameTemplate)
	}
	if final.Latency != 1209600*time.Second {
		t.Fatalf("latency = %v, want 1209600s", final.Latency)
	}

	if len(cfg.Archives) != 2 {
		t.Fatalf("len(Archives) = %d, want 2", len(cfg.Archives))
	}
	var cddis, local archiveByName
	for _, a := range cfg.Archives {
		switch a.Name() {
		case "cddis":
			cddis.found = true
			cddis.priority = a.Priority()
			matches, wildcardOnly, excluded := a.StationServed("ABMF")
			cddis.excluded = excluded
			_ = matches
			_ = wildcardOnly
			if ov, ok := a.Override("orbit", "final"); ok {
				cddis.overrideTemplate = ov.FilenameTemplate
			}
		case "local_cache":
			local.found = true
			local.priority = a.Priority()
		}
	}
	if !cddis.found || !local.found {
		t.Fatalf("expected both cddis and local_cache archives, got %+v", cfg.Archives)
	}
	if cddis.priority != 20 {
		t.Fatalf("cddis priority = %d, want 20", cddis.priority)
	}
	if !cddis.excluded {
		t.Fatalf("expected ABMF to be excluded on cddis")
	}
	if !strings.Contains(cddis.overrideTemplate, "_cddis.sp3.gz") {
		t.Fatalf("expected cddis override template, got %q", cddis.overrideTemplate)
	}

	if cfg.Cache.Datacenter != "local_cache" {
		t.Fatalf("Cache.Datacenter = %q, want local_cache", cfg.Cache.Datacenter)
	}
	if cfg.Cache.JobRetention != 7*24*time.Hour {
		t.Fatalf("Cache.JobRetention = %v, want 168h", cfg.Cache.JobRetention)
	}
	if cfg.Cache.QueueLatency != 300*time.Second {
		t.Fatalf("Cache.QueueLatency = %v, want 300s", cfg.Cache.QueueLatency)
	}
}

type archiveByName struct {
	found            bool
	priority         int
	excluded         bool
	overrideTemplate string
}

func TestLoadMissingCacheBlockFails(t *testing.T) {
	path := writeTempConfig(t, `
<datatypes>
	<type orbit>
		<subtype final>
			filename_template [type]_[yyyy][ddd].sp3.gz
			cadence daily
		</subtype>
	</type>
</datatypes>
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected missing <cache> block to fail Load")
	}
}

func TestLoadUnknownArchiveSchemeFails(t *testing.T) {
	path := writeTempConfig(t, `
<datacenters>
	<datacenter bogus>
		scheme carrier-pigeon
	</datacenter>
</datacenters>
<cache>
	datacenter bogus
	job_retention 1
	queue_latency 1
</cache>
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected unknown scheme to fail Load")
	}
}
