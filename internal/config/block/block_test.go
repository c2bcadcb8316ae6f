package block

import (
	"strings"
	"testing"
)

const sample = `
# sample configuration
<compressiontypes>
	name gzip
	compress gzip -c
	uncompress gzip -dc
	presuffix ""
	postsuffix .gz
</compressiontypes>

<compressiontypes>
	name hatanaka
	compress crx2rnx
	uncompress rnx2crx
</compressiontypes>

<datatypes>
	<type orbit>
		<subtype final>
			priority 10
			filename_template [type]_[yyyy][ddd].sp3.gz
			path_template [yyyy]/[ddd]
		</subtype>
	</type>
</datatypes>

<cache>
	datacenter local
	job_retention 7
	queue_latency 60
</cache>
`

func TestParseBasic(t *testing.T) {
	root, err := Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	ct := root.All("compressiontypes")
	if len(ct) != 2 {
		t.Fatalf("want 2 compressiontypes blocks, got %d", len(ct))
	}
	if name, _ := ct[0].Get("name"); name != "gzip" {
		t.Fatalf("want gzip, got %q", name)
	}
	if name, _ := ct[1].Get("name"); name != "hatanaka" {
		t.Fatalf("want hatanaka, got %q", name)
	}

	dt, ok := root.One("datatypes")
	if !ok {
		t.Fatal("missing datatypes block")
	}
	typ, ok := dt.One("type")
	if !ok || typ.Name != "orbit" {
		t.Fatalf("want type orbit, got %+v", typ)
	}
	sub, ok := typ.One("subtype")
	if !ok || sub.Name != "final" {
		t.Fatalf("want subtype final, got %+v", sub)
	}
	if ft, _ := sub.Get("filename_template"); ft != "[type]_[yyyy][ddd].sp3.gz" {
		t.Fatalf("template value corrupted: %q", ft)
	}

	cache, ok := root.One("cache")
	if !ok {
		t.Fatal("missing cache block")
	}
	if v, _ := cache.Get("job_retention"); v != "7" {
		t.Fatalf("want 7, got %q", v)
	}
}

func TestParseCaseInsensitiveKeysAndTags(t *testing.T) {
	doc := `
<Cache>
	DataCenter local
</Cache>
`
	root, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cache, ok := root.One("cache")
	if !ok {
		t.Fatal("expected case-insensitive tag match")
	}
	if v, _ := cache.Get("datacenter"); v != "local" {
		t.Fatalf("expected case-insensitive key match, got %q", v)
	}
}

func TestParseMismatchedCloseTag(t *testing.T) {
	doc := "<cache>\nx y\n</datacenters>\n"
	if _, err := Parse(strings.NewReader(doc)); err == nil {
		t.Fatal("expected a mismatched close-tag error")
	}
}

func TestParseUnterminatedBlock(t *testing.T) {
	doc := "<cache>\nx y\n"
	if _, err := Parse(strings.NewReader(doc)); err == nil {
		t.Fatal("expected an unterminated-block error")
	}
}

func TestParsePreservesHashInsideQuotes(t *testing.T) {
	doc := `<datacenters>
	comment "#not a comment"
</datacenters>
`
	root, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	dc, _ := root.One("datacenters")
	if v, _ := dc.Get("comment"); v != "#not a comment" {
		t.Fatalf("want literal %q, got %q", "#not a comment", v)
	}
}
