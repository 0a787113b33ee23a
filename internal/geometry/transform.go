package geometry

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
)

// ErrUnsupportedGeometry marks geometry types the pipeline cannot persist.
// Callers treat it as a per-feature skip, not a failure.
var ErrUnsupportedGeometry = errors.New("unsupported geometry type")

// Mean Earth radius in meters, for great-circle distances
const earthRadius = 6371000.0

// CanonicalText converts a geometry to its WKT representation. Ring order
// and winding are preserved as given. Types other than Point, LineString,
// Polygon and MultiPolygon are not representable in the target tables.
func CanonicalText(g orb.Geometry) (string, error) {
	switch g.(type) {
	case orb.Point, orb.LineString, orb.Polygon, orb.MultiPolygon:
		return wkt.MarshalString(g), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedGeometry, typeName(g))
	}
}

// Centroid returns the arithmetic mean of the outer ring's vertices. This is
// a representative point, not an area-weighted centroid; a closed ring's
// duplicated end vertex is ignored so it does not bias the mean.
func Centroid(p orb.Polygon) (orb.Point, error) {
	if len(p) == 0 || len(p[0]) == 0 {
		return orb.Point{}, errors.New("polygon has no outer ring")
	}

	ring := []orb.Point(p[0])
	if len(ring) > 1 && ring[0] == ring[len(ring)-1] {
		ring = ring[:len(ring)-1]
	}

	var sumLon, sumLat float64
	for _, pt := range ring {
		sumLon += pt.Lon()
		sumLat += pt.Lat()
	}

	n := float64(len(ring))
	return orb.Point{sumLon / n, sumLat / n}, nil
}

// RepresentativePoint reduces a geometry to a single point: a Point is
// returned as is, a Polygon yields its outer-ring centroid, and a
// MultiPolygon the centroid of its first polygon.
func RepresentativePoint(g orb.Geometry) (orb.Point, error) {
	switch geom := g.(type) {
	case orb.Point:
		return geom, nil
	case orb.Polygon:
		return Centroid(geom)
	case orb.MultiPolygon:
		if len(geom) == 0 {
			return orb.Point{}, errors.New("multipolygon has no polygons")
		}
		return Centroid(geom[0])
	default:
		return orb.Point{}, fmt.Errorf("%w: %s", ErrUnsupportedGeometry, typeName(g))
	}
}

// CumulativeDistances returns the running great-circle distance in meters
// from the first vertex to each vertex of the line. The first entry is
// always 0.
func CumulativeDistances(line orb.LineString) []float64 {
	if len(line) == 0 {
		return nil
	}

	distances := make([]float64, len(line))
	var total float64
	for i := 1; i < len(line); i++ {
		total += Haversine(line[i-1], line[i])
		distances[i] = total
	}
	return distances
}

// Haversine returns the great-circle distance in meters between two points.
func Haversine(a, b orb.Point) float64 {
	lat1 := a.Lat() * math.Pi / 180
	lat2 := b.Lat() * math.Pi / 180
	dLat := (b.Lat() - a.Lat()) * math.Pi / 180
	dLon := (b.Lon() - a.Lon()) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)

	// Rounding can push h past 1 near antipodes; Asin needs [-1, 1].
	return 2 * earthRadius * math.Asin(math.Min(1, math.Sqrt(h)))
}

// ValidateCoordinates rejects latitudes outside [-90, 90] and longitudes
// outside [-180, 180]. NaN values are rejected as well.
func ValidateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return fmt.Errorf("coordinates are not numbers: (%f, %f)", lat, lon)
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude %f out of range [-90, 90]", lat)
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("longitude %f out of range [-180, 180]", lon)
	}
	return nil
}

// ValidateGeometry checks every coordinate of a supported geometry.
func ValidateGeometry(g orb.Geometry) error {
	switch geom := g.(type) {
	case orb.Point:
		return ValidateCoordinates(geom.Lat(), geom.Lon())
	case orb.LineString:
		return validatePoints(geom)
	case orb.Polygon:
		return validateRings(geom)
	case orb.MultiPolygon:
		for _, poly := range geom {
			if err := validateRings(poly); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedGeometry, typeName(g))
	}
}

func validatePoints(points []orb.Point) error {
	for _, pt := range points {
		if err := ValidateCoordinates(pt.Lat(), pt.Lon()); err != nil {
			return err
		}
	}
	return nil
}

func validateRings(poly orb.Polygon) error {
	for _, ring := range poly {
		if err := validatePoints(ring); err != nil {
			return err
		}
	}
	return nil
}

func typeName(g orb.Geometry) string {
	if g == nil {
		return "none"
	}
	return g.GeoJSONType()
}
