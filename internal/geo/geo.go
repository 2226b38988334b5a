package geo

import (
	"math"

	"github.com/hack3rvirus/parcel-tracker/pkg/core"
)

const earthRadiusMeters = 6371000

// PROJECTION
// Markers are rendered on a stylized schematic plane, not a geographic map,
// so the projection is a plain equirectangular mapping normalized to a
// 0-100 plane. Both axes are clamped; the plane is cosmetic and an
// out-of-range input is a display detail, never an error.

// PlanePoint is a normalized position on the rendering plane.
// X and Y are percentages of the viewport in [0,100].
type PlanePoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Center is the fallback plane position for entities without a coordinate.
var Center = PlanePoint{X: 50, Y: 50}

// clamp constrains v to [0,100].
func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Project converts a geographic coordinate to a plane position.
// Longitude maps left-to-right, latitude top-to-bottom (north up).
func Project(g core.GeoPoint) PlanePoint {
	return PlanePoint{
		X: clamp((g.Lng + 180) / 360 * 100),
		Y: clamp((90 - g.Lat) / 180 * 100),
	}
}

// Unproject converts a plane position back to a geographic coordinate.
// It is the exact algebraic inverse of Project for in-range values.
func Unproject(p PlanePoint) core.GeoPoint {
	return core.GeoPoint{
		Lat: 90 - (clamp(p.Y)/100)*180,
		Lng: (clamp(p.X)/100)*360 - 180,
	}
}

// ClampPlane constrains both axes of a plane position to [0,100].
func ClampPlane(p PlanePoint) PlanePoint {
	return PlanePoint{X: clamp(p.X), Y: clamp(p.Y)}
}

// Offset shifts a plane position by dx/dy plane units, clamped.
func Offset(p PlanePoint, dx, dy float64) PlanePoint {
	return PlanePoint{X: clamp(p.X + dx), Y: clamp(p.Y + dy)}
}

// Distance returns the haversine distance between two coordinates in meters.
func Distance(a, b core.GeoPoint) float64 {
	latA := a.Lat * math.Pi / 180
	latB := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(latA)*math.Cos(latB)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}
