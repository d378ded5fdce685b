// Package geo provides the geographic value types used by geo criteria:
// points, bounding boxes, and distances with unit handling.
package geo

import (
	"fmt"
	"math"
)

// EarthRadiusMeters is the mean radius of Earth used for Haversine distance.
const EarthRadiusMeters = 6_371_000.0

// Point is a geographic coordinate in degrees.
type Point struct {
	Lat float64
	Lon float64
}

// NewPoint validates and creates a Point.
func NewPoint(lat, lon float64) (Point, error) {
	if !ValidateCoordinates(lat, lon) {
		return Point{}, fmt.Errorf("invalid coordinates lat=%g lon=%g", lat, lon)
	}
	return Point{Lat: lat, Lon: lon}, nil
}

// Box is a geographic bounding box.
type Box struct {
	TopLeft     Point
	BottomRight Point
}

// Unit is a distance unit accepted by distance expressions.
type Unit string

const (
	// Kilometers distance unit.
	Kilometers Unit = "km"
	// Meters distance unit.
	Meters Unit = "m"
	// Miles distance unit.
	Miles Unit = "mi"
)

// Distance is a length with a unit.
type Distance struct {
	Value float64
	Unit  Unit
}

// DefaultWithinDistance is the distance substituted when a geo-point property
// is queried with a point but no explicit distance: 0.001 km (1 meter), which
// degenerates the within-query into an equality-like geo filter.
var DefaultWithinDistance = Distance{Value: 0.001, Unit: Kilometers}

// Meters returns the distance converted to meters.
func (d Distance) Meters() float64 {
	switch d.Unit {
	case Kilometers:
		return d.Value * 1000
	case Miles:
		return d.Value * 1609.344
	default:
		return d.Value
	}
}

// String renders the distance in the store's compact form, e.g. "0.001km".
func (d Distance) String() string {
	unit := d.Unit
	if unit == "" {
		unit = Meters
	}
	return fmt.Sprintf("%g%s", d.Value, unit)
}

// IsZero reports whether the distance is unset.
func (d Distance) IsZero() bool { return d.Value == 0 }

// ParseDistance parses the compact store form, e.g. "2.5km" or "300m".
// A bare number is taken as meters.
func ParseDistance(s string) (Distance, error) {
	for _, unit := range []Unit{Kilometers, Miles, Meters} {
		suffix := string(unit)
		if len(s) > len(suffix) && s[len(s)-len(suffix):] == suffix {
			var value float64
			if _, err := fmt.Sscanf(s[:len(s)-len(suffix)], "%g", &value); err != nil {
				return Distance{}, fmt.Errorf("parse distance %q: %w", s, err)
			}
			return Distance{Value: value, Unit: unit}, nil
		}
	}
	var value float64
	if _, err := fmt.Sscanf(s, "%g", &value); err != nil {
		return Distance{}, fmt.Errorf("parse distance %q: %w", s, err)
	}
	return Distance{Value: value, Unit: Meters}, nil
}

// Haversine returns the great-circle distance in meters between two points.
func Haversine(a, b Point) float64 {
	lat1r := a.Lat * math.Pi / 180
	lat2r := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1r)*math.Cos(lat2r)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}

// Contains reports whether the box contains the point.
func (b Box) Contains(p Point) bool {
	return p.Lat <= b.TopLeft.Lat && p.Lat >= b.BottomRight.Lat &&
		p.Lon >= b.TopLeft.Lon && p.Lon <= b.BottomRight.Lon
}

// ValidateCoordinates checks that latitude is in [-90,90] and longitude in [-180,180].
func ValidateCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
