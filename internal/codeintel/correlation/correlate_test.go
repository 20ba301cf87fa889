package correlation

import (
	"bytes"
	"compress/gzip"
	"context"
	"strings"
	"testing"
)

// gzipLines compresses a sequence of raw LSIF JSON lines the way a real
// indexer's output is framed: one JSON object per line, gzip over the whole
// stream.
func gzipLines(t *testing.T, lines ...string) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write([]byte(strings.Join(lines, "\n") + "\n")); err != nil {
		t.Fatalf("unexpected error writing gzip stream: %s", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("unexpected error closing gzip writer: %s", err)
	}
	return &buf
}

// sampleDump is a minimal but complete LSIF graph: one document with one
// range that has a definition result, a hover result, and an exported
// moniker tied to package information.
var sampleDump = []string{
	`{"id":"1","type":"vertex","label":"metaData","version":"0.4.3","projectRoot":"file:///proj"}`,
	`{"id":"2","type":"vertex","label":"document","uri":"main.go"}`,
	`{"id":"3","type":"vertex","label":"range","start":{"line":1,"character":0},"end":{"line":1,"character":3}}`,
	`{"id":"4","type":"edge","label":"contains","outV":"2","inVs":["3"]}`,
	`{"id":"5","type":"vertex","label":"definitionResult"}`,
	`{"id":"6","type":"edge","label":"textDocument/definition","outV":"3","inV":"5"}`,
	`{"id":"7","type":"edge","label":"item","outV":"5","inVs":["3"],"document":"2"}`,
	`{"id":"8","type":"vertex","label":"hoverResult","result":{"contents":"some hover text"}}`,
	`{"id":"9","type":"edge","label":"textDocument/hover","outV":"3","inV":"8"}`,
	`{"id":"10","type":"vertex","label":"moniker","kind":"export","scheme":"gomod","identifier":"pkg.Foo"}`,
	`{"id":"11","type":"edge","label":"moniker","outV":"3","inV":"10"}`,
	`{"id":"12","type":"vertex","label":"packageInformation","name":"example.com/pkg","version":"v1.0.0"}`,
	`{"id":"13","type":"edge","label":"packageInformation","outV":"10","inV":"12"}`,
}

func TestCorrelateAndGroup(t *testing.T) {
	state, err := Correlate(context.Background(), gzipLines(t, sampleDump...))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if state.LSIFVersion != "0.4.3" {
		t.Errorf("unexpected lsif version: %q", state.LSIFVersion)
	}

	bundle, err := Group(state)
	if err != nil {
		t.Fatalf("unexpected error grouping: %s", err)
	}

	doc, ok := bundle.Documents["main.go"]
	if !ok {
		t.Fatal("expected main.go to be present in grouped documents")
	}
	if len(doc.Ranges) != 1 {
		t.Fatalf("expected exactly one range, got %d", len(doc.Ranges))
	}

	var moniker string
	for _, m := range doc.Monikers {
		moniker = m.Identifier
		if m.PackageInformationID == -1 {
			t.Error("expected moniker to carry a package information id")
		}
		pkg, ok := doc.PackageInformation[m.PackageInformationID]
		if !ok || pkg.Name != "example.com/pkg" || pkg.Version != "v1.0.0" {
			t.Errorf("unexpected package information: %+v (ok=%v)", pkg, ok)
		}
	}
	if moniker != "pkg.Foo" {
		t.Errorf("unexpected moniker identifier: %q", moniker)
	}

	if len(bundle.Packages) != 1 {
		t.Fatalf("expected exactly one exported package, got %+v", bundle.Packages)
	}
	if bundle.Packages[0].Name != "example.com/pkg" {
		t.Errorf("unexpected package: %+v", bundle.Packages[0])
	}
}

func TestCorrelateRejectsMissingMetaData(t *testing.T) {
	_, err := Correlate(context.Background(), gzipLines(t,
		`{"id":"1","type":"vertex","label":"document","uri":"main.go"}`,
	))
	if err == nil {
		t.Fatal("expected an error for a stream with no metaData vertex")
	}
}

func TestCorrelateRejectsUnsupportedVersion(t *testing.T) {
	_, err := Correlate(context.Background(), gzipLines(t,
		`{"id":"1","type":"vertex","label":"metaData","version":"0.3.0","projectRoot":"file:///proj"}`,
	))
	if err == nil {
		t.Fatal("expected an error for an unsupported lsif version")
	}
}

func TestCorrelateRejectsDanglingReference(t *testing.T) {
	_, err := Correlate(context.Background(), gzipLines(t,
		`{"id":"1","type":"vertex","label":"metaData","version":"0.4.3","projectRoot":"file:///proj"}`,
		`{"id":"2","type":"vertex","label":"range","start":{"line":0,"character":0},"end":{"line":0,"character":1}}`,
		`{"id":"3","type":"edge","label":"textDocument/definition","outV":"2","inV":"999"}`,
	))
	if err == nil {
		t.Fatal("expected an error for a range pointing at a result that was never declared")
	}
}

func TestCorrelateRejectsMalformedJSON(t *testing.T) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, _ = w.Write([]byte("not json\n"))
	_ = w.Close()

	_, err := Correlate(context.Background(), &buf)
	if err == nil {
		t.Fatal("expected an error for malformed input")
	}
}
