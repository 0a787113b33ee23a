package geojson

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/orb"
)

func writeDoc(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "features.geojson")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

// writePointCollection writes a FeatureCollection with n point features.
func writePointCollection(t *testing.T, n int) string {
	t.Helper()
	var sb strings.Builder
	sb.WriteString(`{"type":"FeatureCollection","features":[`)
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb,
			`{"type":"Feature","id":%d,"properties":{"name":"feature %d","amenity":"market"},"geometry":{"type":"Point","coordinates":[%f,%f]}}`,
			i+1, i+1, float64(i%180), float64(i%90))
	}
	sb.WriteString(`]}`)
	return writeDoc(t, sb.String())
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.geojson"))
	if !errors.Is(err, ErrSourceNotFound) {
		t.Errorf("Open error = %v, want ErrSourceNotFound", err)
	}
}

func TestOpenMalformedDocument(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", "this is not json"},
		{"not an object", `[1,2,3]`},
		{"no features array", `{"type":"FeatureCollection","count":3}`},
		{"features not an array at all", `{"features":{"type":"Point"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(writeDoc(t, tt.content))
			if !errors.Is(err, ErrMalformedDocument) {
				t.Errorf("Open error = %v, want ErrMalformedDocument", err)
			}
		})
	}
}

func TestForeignMembersSkipped(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantIDs []string
	}{
		{
			// ogr2ogr writes the layer name ahead of the features array
			"layer named features",
			`{"type":"FeatureCollection","name":"features","crs":{"type":"name","properties":{"name":"urn:ogc:def:crs:OGC:1.3:CRS84"}},"features":[
				{"type":"Feature","id":"p1","properties":{},"geometry":{"type":"Point","coordinates":[1,1]}}
			]}`,
			[]string{"p1"},
		},
		{
			"nested features member",
			`{"type":"FeatureCollection","metadata":{"features":[{"type":"Feature","id":"decoy","properties":{},"geometry":null}],"counts":[1,2,3]},"features":[
				{"type":"Feature","id":"a","properties":{},"geometry":{"type":"Point","coordinates":[1,1]}},
				{"type":"Feature","id":"b","properties":{},"geometry":{"type":"Point","coordinates":[2,2]}},
				{"type":"Feature","id":"c","properties":{},"geometry":{"type":"Point","coordinates":[3,3]}}
			]}`,
			[]string{"a", "b", "c"},
		},
		{
			"scalar and array members first",
			`{"type":"FeatureCollection","totalFeatures":1,"bbox":[0,0,2,2],"features":[
				{"type":"Feature","id":"z","properties":{},"geometry":{"type":"Point","coordinates":[2,2]}}
			]}`,
			[]string{"z"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Open(writeDoc(t, tt.content))
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			defer r.Close()

			var ids []string
			for r.Next() {
				ids = append(ids, r.Feature().SourceID)
			}
			if err := r.Err(); err != nil {
				t.Fatalf("reader error: %v", err)
			}

			if len(ids) != len(tt.wantIDs) {
				t.Fatalf("read ids %v, want %v", ids, tt.wantIDs)
			}
			for i, want := range tt.wantIDs {
				if ids[i] != want {
					t.Errorf("feature %d id = %q, want %q", i, ids[i], want)
				}
			}
		})
	}
}

func TestReadFeatures(t *testing.T) {
	path := writeDoc(t, `{"type":"FeatureCollection","features":[
		{"type":"Feature","id":"w101","properties":{"name":"central market","amenity":"marketplace"},"geometry":{"type":"Point","coordinates":[36.8,-1.28]}},
		{"type":"Feature","properties":{"name":"ring road","highway":"primary"},"geometry":{"type":"LineString","coordinates":[[36.8,-1.28],[36.9,-1.3]]}}
	]}`)

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer r.Close()

	var features []*RawFeature
	for r.Next() {
		features = append(features, r.Feature())
	}
	if err := r.Err(); err != nil {
		t.Fatalf("reader error: %v", err)
	}

	if len(features) != 2 {
		t.Fatalf("read %d features, want 2", len(features))
	}

	first := features[0]
	if first.SourceID != "w101" {
		t.Errorf("SourceID = %q, want %q", first.SourceID, "w101")
	}
	if _, ok := first.Geometry.(orb.Point); !ok {
		t.Errorf("first geometry is %T, want orb.Point", first.Geometry)
	}
	if got := first.Properties.MustString("amenity", ""); got != "marketplace" {
		t.Errorf("amenity = %q, want %q", got, "marketplace")
	}

	second := features[1]
	if _, ok := second.Geometry.(orb.LineString); !ok {
		t.Errorf("second geometry is %T, want orb.LineString", second.Geometry)
	}
	if second.SourceID != "" {
		t.Errorf("SourceID = %q, want empty", second.SourceID)
	}

	if r.BytesRead() == 0 {
		t.Error("BytesRead = 0 after reading the document")
	}
	if r.TotalBytes() == 0 {
		t.Error("TotalBytes = 0, want file size")
	}
}

func TestReadNumericID(t *testing.T) {
	path := writeDoc(t, `{"type":"FeatureCollection","features":[
		{"type":"Feature","id":4211,"properties":{},"geometry":{"type":"Point","coordinates":[0,0]}}
	]}`)

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer r.Close()

	if !r.Next() {
		t.Fatalf("Next returned false: %v", r.Err())
	}
	if got := r.Feature().SourceID; got != "4211" {
		t.Errorf("SourceID = %q, want %q", got, "4211")
	}
}

func TestUnknownGeometryYieldsNil(t *testing.T) {
	path := writeDoc(t, `{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"name":"odd"},"geometry":{"type":"Hypercube","coordinates":[]}},
		{"type":"Feature","properties":{},"geometry":null},
		{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[1,1]}}
	]}`)

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer r.Close()

	var geoms []orb.Geometry
	for r.Next() {
		geoms = append(geoms, r.Feature().Geometry)
	}
	if err := r.Err(); err != nil {
		t.Fatalf("reader error: %v", err)
	}

	if len(geoms) != 3 {
		t.Fatalf("read %d features, want 3", len(geoms))
	}
	if geoms[0] != nil {
		t.Errorf("unknown geometry type decoded to %T, want nil", geoms[0])
	}
	if geoms[1] != nil {
		t.Errorf("null geometry decoded to %T, want nil", geoms[1])
	}
	if geoms[2] == nil {
		t.Error("valid point decoded to nil")
	}
}

func TestTruncatedDocument(t *testing.T) {
	path := writeDoc(t, `{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[1,1]}},
		{"type":"Feature","properties":`)

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer r.Close()

	count := 0
	for r.Next() {
		count++
	}
	if !errors.Is(r.Err(), ErrMalformedDocument) {
		t.Errorf("Err = %v, want ErrMalformedDocument", r.Err())
	}
	if count != 1 {
		t.Errorf("read %d features before failure, want 1", count)
	}
}

func TestBatcherSplitsEvenly(t *testing.T) {
	path := writePointCollection(t, 1200)

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer r.Close()

	b := NewBatcher(r, 500)

	var sizes []int
	for {
		batch, err := b.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("batch error: %v", err)
		}
		sizes = append(sizes, len(batch))
	}

	want := []int{500, 500, 200}
	if len(sizes) != len(want) {
		t.Fatalf("got %d batches %v, want %v", len(sizes), sizes, want)
	}
	for i := range want {
		if sizes[i] != want[i] {
			t.Errorf("batch %d size = %d, want %d", i, sizes[i], want[i])
		}
	}
}

func TestBatcherShortFinalOnly(t *testing.T) {
	path := writePointCollection(t, 7)

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer r.Close()

	b := NewBatcher(r, 10)

	batch, err := b.Next()
	if err != nil {
		t.Fatalf("batch error: %v", err)
	}
	if len(batch) != 7 {
		t.Errorf("batch size = %d, want 7", len(batch))
	}

	if _, err := b.Next(); err != io.EOF {
		t.Errorf("second Next error = %v, want io.EOF", err)
	}
}

func TestReaderStreamsLargeCollection(t *testing.T) {
	const total, batchSize = 10000, 64

	path := writePointCollection(t, total)

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer r.Close()

	b := NewBatcher(r, batchSize)

	first, err := b.Next()
	if err != nil {
		t.Fatalf("batch error: %v", err)
	}
	if len(first) != batchSize {
		t.Fatalf("first batch size = %d, want %d", len(first), batchSize)
	}

	// A reader that materialized the document would have consumed the file
	// before handing back the first batch.
	if got, totalBytes := r.BytesRead(), r.TotalBytes(); got > totalBytes/2 {
		t.Errorf("BytesRead = %d of %d after one batch, want an early read position", got, totalBytes)
	}

	maxResident := len(first)
	count := len(first)
	for {
		batch, err := b.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("batch error: %v", err)
		}
		if len(batch) > maxResident {
			maxResident = len(batch)
		}
		count += len(batch)
	}

	if count != total {
		t.Errorf("read %d features, want %d", count, total)
	}
	if maxResident > batchSize {
		t.Errorf("largest materialized batch = %d features, want at most %d", maxResident, batchSize)
	}
}

func TestBatcherEmptyCollection(t *testing.T) {
	path := writeDoc(t, `{"type":"FeatureCollection","features":[]}`)

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer r.Close()

	if _, err := NewBatcher(r, 500).Next(); err != io.EOF {
		t.Errorf("Next on empty collection = %v, want io.EOF", err)
	}
}
