package mapper

import "fmt"

// Category is the import category selected for a job. It decides the target
// table, the tag vocabulary and the geometry policy.
type Category string

const (
	CategoryPointOfInterest      Category = "point-of-interest"
	CategoryLandUseZone          Category = "land-use-zone"
	CategoryHighway              Category = "highway"
	CategoryAdministrativeRegion Category = "administrative-region"
)

// Categories lists all valid import categories.
func Categories() []Category {
	return []Category{
		CategoryPointOfInterest,
		CategoryLandUseZone,
		CategoryHighway,
		CategoryAdministrativeRegion,
	}
}

// ParseCategory validates a category name from a flag or API request.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories() {
		if s == string(c) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown import category %q", s)
}

// geometryClass is the shape family a category persists.
type geometryClass int

const (
	classPoint geometryClass = iota
	classArea
	classLine
)

func (c Category) class() geometryClass {
	switch c {
	case CategoryLandUseZone, CategoryAdministrativeRegion:
		return classArea
	case CategoryHighway:
		return classLine
	default:
		return classPoint
	}
}

// fallbackName is used for identifier generation when a feature has no name.
func (c Category) fallbackName() string {
	switch c {
	case CategoryPointOfInterest:
		return "unnamed place"
	case CategoryLandUseZone:
		return "unnamed zone"
	case CategoryHighway:
		return "unnamed road"
	case CategoryAdministrativeRegion:
		return "unnamed region"
	default:
		return "unnamed feature"
	}
}
