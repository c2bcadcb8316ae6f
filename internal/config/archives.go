package config

import (
	"strings"

	"github.com/NVIDIA/gnssfetch/internal/archive"
	"github.com/NVIDIA/gnssfetch/internal/catalog"
	"github.com/NVIDIA/gnssfetch/internal/cmn"
	"github.com/NVIDIA/gnssfetch/internal/config/block"
)

// buildArchives walks every `<datacenter>` section under `<datacenters>`
// (§6) into a concrete archive.Archive, dispatching on its `scheme` key
// across the five §6 URI schemes.
func buildArchives(root *block.Block, cat *catalog.Catalog) ([]archive.Archive, error) {
	dcs, ok := root.One("datacenters")
	if !ok {
		return nil, nil
	}

	var archives []archive.Archive
	for _, dc := range dcs.All("datacenter") {
		a, err := buildArchive(dc, cat)
		if err != nil {
			return nil, err
		}
		archives = append(archives, a)
	}
	return archives, nil
}

func buildArchive(dc *block.Block, cat *catalog.Catalog) (archive.Archive, error) {
	if dc.Name == "" {
		return nil, cmn.NewConfigError("datacenters", "<datacenter> block missing its name")
	}
	scheme, err := requireString(dc, "scheme")
	if err != nil {
		return nil, err
	}
	priority, err := getInt(dc, "priority", 0)
	if err != nil {
		return nil, err
	}
	readonly := strings.EqualFold(firstOr(dc, "readonly", "false"), "true")

	base := &archive.Base{
		ArchiveName:      dc.Name,
		ArchPriority:     priority,
		ReadonlyArchive:  readonly,
		Stations:         toSet(dc.GetAll("stations")),
		ExcludedStations: toSet(dc.GetAll("excluded_stations")),
	}

	overrides, err := buildOverrides(dc, cat)
	if err != nil {
		return nil, err
	}
	base.Overrides = overrides

	if md, err := getInt(dc, "max_downloads_per_connection", 0); err == nil {
		base.MaxDownloads = md
	}

	switch strings.ToLower(scheme) {
	case "file":
		root, err := requireString(dc, "root")
		if err != nil {
			return nil, err
		}
		return archive.NewFileArchive(base, root), nil

	case "ftp":
		host, err := requireString(dc, "host")
		if err != nil {
			return nil, err
		}
		creds, err := buildCredentials(dc)
		if err != nil {
			return nil, err
		}
		return archive.NewFtpArchive(base, host, creds), nil

	case "http", "https":
		baseURL, err := requireString(dc, "base_url")
		if err != nil {
			return nil, err
		}
		return archive.NewHttpArchive(base, baseURL), nil

	case "token-https", "token_https":
		baseURL, err := requireString(dc, "base_url")
		if err != nil {
			return nil, err
		}
		loginURL, err := requireString(dc, "login_url")
		if err != nil {
			return nil, err
		}
		creds, err := buildCredentials(dc)
		if err != nil {
			return nil, err
		}
		return archive.NewTokenHttpArchive(base, baseURL, loginURL, creds), nil

	case "s3":
		bucket, err := requireString(dc, "bucket")
		if err != nil {
			return nil, err
		}
		prefix, _ := dc.Get("prefix")
		region, _ := dc.Get("region")
		return archive.NewS3Archive(base, bucket, prefix, region), nil

	default:
		return nil, cmn.NewConfigError(dc.Name, "unknown archive scheme %q", scheme)
	}
}

func buildOverrides(dc *block.Block, cat *catalog.Catalog) (map[string]*catalog.ProductType, error) {
	overrides := map[string]*catalog.ProductType{}
	for _, ov := range dc.All("override") {
		typ, err := requireString(ov, "type")
		if err != nil {
			return nil, err
		}
		sub, err := requireString(ov, "subtype")
		if err != nil {
			return nil, err
		}
		base, ok := cat.Lookup(typ, sub)
		if !ok {
			return nil, cmn.NewConfigError(dc.Name, "override references unknown product type %s/%s", typ, sub)
		}
		clone := *base
		if v, ok := ov.Get("filename_template"); ok {
			clone.FilenameTemplate = v
		}
		if v, ok := ov.Get("path_template"); ok {
			clone.PathTemplate = v
		}
		overrides[typ+"/"+sub] = &clone
	}
	return overrides, nil
}

func buildCredentials(dc *block.Block) (*archive.Credentials, error) {
	if v, ok := dc.Get("credentials_file"); ok && v != "" {
		return archive.LoadCredentialsFile(v)
	}
	user, hasUser := dc.Get("username")
	pass, hasPass := dc.Get("password")
	if !hasUser && !hasPass {
		return nil, nil
	}
	return &archive.Credentials{Username: user, Password: pass}, nil
}

func toSet(values []string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	set := map[string]bool{}
	for _, v := range values {
		for _, tok := range strings.Fields(v) {
			set[tok] = true
		}
	}
	return set
}

func firstOr(b *block.Block, key, def string) string {
	if v, ok := b.Get(key); ok {
		return v
	}
	return def
}
