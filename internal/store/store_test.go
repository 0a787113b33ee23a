package store

import (
	"strings"
	"testing"

	"github.com/arcfield/geoimport-go/internal/mapper"
)

func TestTableFor(t *testing.T) {
	tests := []struct {
		category mapper.Category
		want     string
	}{
		{mapper.CategoryPointOfInterest, "poi_points"},
		{mapper.CategoryLandUseZone, "landuse_zones"},
		{mapper.CategoryHighway, "highway_segments"},
		{mapper.CategoryAdministrativeRegion, "admin_regions"},
	}

	for _, tt := range tests {
		if got := tableFor(tt.category); got != tt.want {
			t.Errorf("tableFor(%s) = %q, want %q", tt.category, got, tt.want)
		}
	}
}

func TestBuildInsertPoints(t *testing.T) {
	rows := []*mapper.TargetRow{
		{Slug: "cafe-one-1", Name: "Cafe One", Kind: "cafe", Category: mapper.CategoryPointOfInterest,
			GeomText: "POINT(1 2)", JobID: "job-a", SourceID: "1"},
		{Slug: "cafe-two-2", Name: "Cafe Two", Kind: "cafe", Category: mapper.CategoryPointOfInterest,
			GeomText: "POINT(3 4)", JobID: "job-a", SourceID: "2"},
	}

	sql, args := buildInsert("public.poi_points", insertColumns(mapper.CategoryPointOfInterest),
		mapper.CategoryPointOfInterest, rows)

	if !strings.HasPrefix(sql, "INSERT INTO public.poi_points (slug, name, kind, attrs, job_id, owner_id, source_id, geom) VALUES ") {
		t.Errorf("unexpected insert prefix: %s", sql)
	}
	if !strings.HasSuffix(sql, " RETURNING id") {
		t.Errorf("insert must return generated ids: %s", sql)
	}
	if !strings.Contains(sql, "ST_GeomFromText($8, 4326)") {
		t.Errorf("first row geometry placeholder missing: %s", sql)
	}
	if !strings.Contains(sql, "ST_GeomFromText($16, 4326)") {
		t.Errorf("second row geometry placeholder missing: %s", sql)
	}
	if len(args) != 16 {
		t.Fatalf("len(args) = %d, want 16", len(args))
	}
	if args[7] != "POINT(1 2)" {
		t.Errorf("args[7] = %v, want first geometry text", args[7])
	}
	if args[15] != "POINT(3 4)" {
		t.Errorf("args[15] = %v, want second geometry text", args[15])
	}
}

func TestBuildInsertHighwayColumns(t *testing.T) {
	rows := []*mapper.TargetRow{
		{Slug: "main-street-9", Name: "Main Street", Kind: "residential",
			Category: mapper.CategoryHighway, Surface: "asphalt", Lanes: 2,
			Distances: []float64{0, 111194.9}, GeomText: "LINESTRING(0 0,0 1)",
			JobID: "job-b", SourceID: "9"},
	}

	sql, args := buildInsert("public.highway_segments", insertColumns(mapper.CategoryHighway),
		mapper.CategoryHighway, rows)

	if !strings.Contains(sql, "surface, lanes, vertex_distances, geom") {
		t.Errorf("highway columns missing: %s", sql)
	}
	if len(args) != 11 {
		t.Fatalf("len(args) = %d, want 11", len(args))
	}
	if args[7] != "asphalt" || args[8] != 2 {
		t.Errorf("surface/lanes args wrong: %v %v", args[7], args[8])
	}
}

func TestBuildInsertAreaColumns(t *testing.T) {
	rows := []*mapper.TargetRow{
		{Slug: "park-7", Name: "Park", Kind: "park", Category: mapper.CategoryLandUseZone,
			CentroidLat: 1, CentroidLon: 1, HasCentroid: true,
			GeomText: "POLYGON((0 0,0 2,2 2,2 0,0 0))", JobID: "job-c", SourceID: "7"},
	}

	sql, args := buildInsert("public.landuse_zones", insertColumns(mapper.CategoryLandUseZone),
		mapper.CategoryLandUseZone, rows)

	if !strings.Contains(sql, "centroid_lat, centroid_lon, geom") {
		t.Errorf("centroid columns missing: %s", sql)
	}
	if len(args) != 10 {
		t.Fatalf("len(args) = %d, want 10", len(args))
	}
	if args[7] != 1.0 || args[8] != 1.0 {
		t.Errorf("centroid args wrong: %v %v", args[7], args[8])
	}
}

func TestAttrsJSON(t *testing.T) {
	if got := string(attrsJSON(nil)); got != "{}" {
		t.Errorf("attrsJSON(nil) = %s, want {}", got)
	}
	got := string(attrsJSON(map[string]string{"cuisine": "ramen"}))
	if got != `{"cuisine":"ramen"}` {
		t.Errorf("attrsJSON = %s", got)
	}
}
