package mapper

import orbjson "github.com/paulmach/orb/geojson"

// KindOther is the catch-all for source tags outside the known vocabulary.
const KindOther = "other"

// Source tag values map onto a fixed target enumeration. Several source
// spellings can share one target value; anything unlisted becomes "other".
var amenityKinds = map[string]string{
	"marketplace":      "marketplace",
	"market":           "marketplace",
	"school":           "school",
	"kindergarten":     "school",
	"university":       "university",
	"college":          "university",
	"hospital":         "hospital",
	"clinic":           "clinic",
	"doctors":          "clinic",
	"pharmacy":         "pharmacy",
	"restaurant":       "restaurant",
	"fast_food":        "restaurant",
	"cafe":             "cafe",
	"bank":             "bank",
	"atm":              "bank",
	"fuel":             "fuel-station",
	"charging_station": "fuel-station",
	"place_of_worship": "place-of-worship",
	"police":           "police",
	"townhall":         "government-office",
	"courthouse":       "government-office",
}

var landUseKinds = map[string]string{
	"residential":       "residential",
	"commercial":        "commercial",
	"retail":            "commercial",
	"industrial":        "industrial",
	"quarry":            "industrial",
	"farmland":          "agricultural",
	"farm":              "agricultural",
	"farmyard":          "agricultural",
	"orchard":           "agricultural",
	"vineyard":          "agricultural",
	"forest":            "forest",
	"wood":              "forest",
	"meadow":            "grassland",
	"grass":             "grassland",
	"recreation_ground": "recreation",
	"park":              "recreation",
	"village_green":     "recreation",
	"cemetery":          "cemetery",
	"military":          "military",
}

var highwayKinds = map[string]string{
	"motorway":       "motorway",
	"motorway_link":  "motorway",
	"trunk":          "trunk",
	"trunk_link":     "trunk",
	"primary":        "primary",
	"primary_link":   "primary",
	"secondary":      "secondary",
	"secondary_link": "secondary",
	"tertiary":       "tertiary",
	"tertiary_link":  "tertiary",
	"residential":    "residential",
	"living_street":  "residential",
	"unclassified":   "minor",
	"service":        "service",
	"track":          "track",
	"path":           "path",
	"footway":        "path",
	"cycleway":       "cycleway",
}

// Administrative regions are classified by their admin_level value.
var adminKinds = map[string]string{
	"2":  "country",
	"4":  "state",
	"6":  "district",
	"8":  "municipality",
	"10": "suburb",
}

// kindOf classifies a feature into the category's target enumeration.
func kindOf(category Category, props orbjson.Properties) string {
	switch category {
	case CategoryPointOfInterest:
		if v := stringProp(props, "amenity"); v != "" {
			return lookup(amenityKinds, v)
		}
		if v := stringProp(props, "shop"); v != "" {
			return lookup(amenityKinds, v)
		}
		return KindOther
	case CategoryLandUseZone:
		if v := stringProp(props, "landuse"); v != "" {
			return lookup(landUseKinds, v)
		}
		if v := stringProp(props, "natural"); v != "" {
			return lookup(landUseKinds, v)
		}
		return KindOther
	case CategoryHighway:
		return lookup(highwayKinds, stringProp(props, "highway"))
	case CategoryAdministrativeRegion:
		return lookup(adminKinds, stringProp(props, "admin_level"))
	default:
		return KindOther
	}
}

func lookup(table map[string]string, value string) string {
	if kind, ok := table[value]; ok {
		return kind
	}
	return KindOther
}
