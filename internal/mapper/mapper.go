package mapper

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	orbjson "github.com/paulmach/orb/geojson"

	"github.com/arcfield/geoimport-go/internal/config"
	"github.com/arcfield/geoimport-go/internal/geojson"
	"github.com/arcfield/geoimport-go/internal/geometry"
)

var (
	// ErrSkipRow marks a feature dropped for geometry policy or coordinate
	// reasons. It is counted against the job but never fails it.
	ErrSkipRow = errors.New("feature skipped")

	// ErrFiltered marks a feature outside the configured bounding box.
	ErrFiltered = errors.New("feature outside bounding box")
)

// TargetRow is the store-ready form of one feature. It is immutable once
// built; the loader consumes it exactly once.
type TargetRow struct {
	Slug     string
	Name     string
	Kind     string
	Category Category

	// Highway attributes
	Surface   string
	Lanes     int
	Distances []float64

	// Representative point for area rows
	CentroidLat float64
	CentroidLon float64
	HasCentroid bool

	Attrs    map[string]string
	GeomText string

	JobID    string
	OwnerID  string
	SourceID string
}

// Mapper builds TargetRows for one import job.
type Mapper struct {
	category Category
	jobID    string
	ownerID  string
	bbox     *config.BBox
}

// New creates a mapper bound to one job's category and context. A nil bbox
// disables geographic filtering.
func New(category Category, jobID, ownerID string, bbox *config.BBox) *Mapper {
	return &Mapper{
		category: category,
		jobID:    jobID,
		ownerID:  ownerID,
		bbox:     bbox,
	}
}

// Map produces zero or one TargetRow for a raw feature. ErrSkipRow and
// ErrFiltered identify features to drop; any other error is unexpected.
func (m *Mapper) Map(f *geojson.RawFeature) (*TargetRow, error) {
	if f.Geometry == nil {
		return nil, fmt.Errorf("%w: missing geometry", ErrSkipRow)
	}

	if m.bbox != nil && m.bbox.IsSet {
		bound := f.Geometry.Bound()
		if !m.bbox.Overlaps(bound.Min.Lon(), bound.Min.Lat(), bound.Max.Lon(), bound.Max.Lat()) {
			return nil, ErrFiltered
		}
	}

	if err := geometry.ValidateGeometry(f.Geometry); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSkipRow, err)
	}

	row := &TargetRow{
		Category: m.category,
		JobID:    m.jobID,
		OwnerID:  m.ownerID,
		SourceID: f.SourceID,
		Name:     stringProp(f.Properties, "name"),
		Kind:     kindOf(m.category, f.Properties),
		Attrs:    flattenProperties(f.Properties),
	}

	if err := m.applyGeometry(row, f.Geometry); err != nil {
		return nil, err
	}

	row.Slug = buildSlug(row.Name, m.category, f.SourceID)

	if m.category == CategoryHighway {
		row.Surface = stringProp(f.Properties, "surface")
		row.Lanes = intProp(f.Properties, "lanes")
	}

	return row, nil
}

// applyGeometry enforces the category's geometry policy and fills the
// geometry-derived fields.
func (m *Mapper) applyGeometry(row *TargetRow, g orb.Geometry) error {
	switch m.category.class() {
	case classPoint:
		switch g.(type) {
		case orb.Point:
		case orb.Polygon, orb.MultiPolygon:
			// point categories take the representative point of areas
		default:
			return m.skipGeometry(g)
		}
		pt, err := geometry.RepresentativePoint(g)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSkipRow, err)
		}
		text, err := geometry.CanonicalText(pt)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSkipRow, err)
		}
		row.GeomText = text
		row.CentroidLon = pt.Lon()
		row.CentroidLat = pt.Lat()
		row.HasCentroid = true

	case classArea:
		switch g.(type) {
		case orb.Polygon, orb.MultiPolygon:
		default:
			return m.skipGeometry(g)
		}
		text, err := geometry.CanonicalText(g)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSkipRow, err)
		}
		pt, err := geometry.RepresentativePoint(g)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSkipRow, err)
		}
		row.GeomText = text
		row.CentroidLon = pt.Lon()
		row.CentroidLat = pt.Lat()
		row.HasCentroid = true

	case classLine:
		line, ok := g.(orb.LineString)
		if !ok {
			return m.skipGeometry(g)
		}
		text, err := geometry.CanonicalText(line)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSkipRow, err)
		}
		row.GeomText = text
		row.Distances = geometry.CumulativeDistances(line)
	}

	return nil
}

func (m *Mapper) skipGeometry(g orb.Geometry) error {
	return fmt.Errorf("%w: geometry type %s not allowed for category %s",
		ErrSkipRow, g.GeoJSONType(), m.category)
}

// buildSlug derives the stable identifier: slugified name (or the category
// fallback), with the source id appended so same-named features in
// different places stay distinct.
func buildSlug(name string, category Category, sourceID string) string {
	base := name
	if base == "" {
		base = category.fallbackName()
	}

	slug := Slugify(base)
	if sourceID != "" {
		if suffix := Slugify(sourceID); suffix != "" {
			slug = slug + "-" + suffix
		}
	}
	return slug
}

// Slugify lowercases and collapses every non-alphanumeric run into a single
// dash, trimming dashes at both ends.
func Slugify(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	pendingDash := false
	for _, r := range strings.ToLower(s) {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !isAlnum {
			pendingDash = b.Len() > 0
			continue
		}
		if pendingDash {
			b.WriteByte('-')
			pendingDash = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// flattenProperties stringifies the feature's properties for the attrs
// column, dropping nested objects and arrays.
func flattenProperties(props orbjson.Properties) map[string]string {
	if len(props) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(props))
	for key, value := range props {
		if s := scalarString(value); s != "" {
			attrs[key] = s
		}
	}
	if len(attrs) == 0 {
		return nil
	}
	return attrs
}

func stringProp(props orbjson.Properties, key string) string {
	return scalarString(props[key])
}

func intProp(props orbjson.Properties, key string) int {
	switch v := props[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

func scalarString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		if val == math.Trunc(val) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return ""
	}
}
