// Package marker derives render-ready map markers from backend entity
// state. Output is a fresh value on every build; consumers must not rely
// on identity between calls.
package marker

import (
	"github.com/hack3rvirus/parcel-tracker/internal/geo"
	"github.com/hack3rvirus/parcel-tracker/pkg/core"
)

// Plane offset applied to the synthetic destination marker when a focus
// parcel has no real destination coordinate. Purely presentational; it
// does not represent distance.
const (
	estimatedDestDX = 15
	estimatedDestDY = 10
)

// Marker is a single renderable point on the plane.
type Marker struct {
	ID          string           `json:"id"`
	Kind        core.EntityKind  `json:"kind"`
	Label       string           `json:"label"`
	Position    geo.PlanePoint   `json:"position"`
	Status      core.StatusClass `json:"status"`
	Route       string           `json:"route,omitempty"`       // drivers only
	Destination string           `json:"destination,omitempty"` // packages only
}

// Set groups markers by kind for rendering. Order within a group carries
// no meaning.
type Set struct {
	Drivers      []Marker `json:"drivers"`
	Packages     []Marker `json:"packages"`
	Destinations []Marker `json:"destinations"`
}

// position projects an entity coordinate, falling back to the plane
// center when the entity has none. Entities are never dropped for a
// missing coordinate, so output length always matches input length.
func position(g *core.GeoPoint) geo.PlanePoint {
	if g == nil {
		return geo.Center
	}
	return geo.Project(*g)
}

// routeLabel derives the cosmetic route tag shown on driver markers from
// the last character of the driver id. This mirrors the upstream display
// convention; it is not routing data and nothing may branch on it.
func routeLabel(id string) string {
	if id == "" {
		return "Route ?"
	}
	return "Route " + string(id[len(id)-1])
}

// BuildSet derives the full marker set from an entity snapshot.
//
// When focus is supplied and parcels is empty (single-parcel tracking
// view), the set contains that parcel plus a synthetic destination
// marker at a fixed plane offset, standing in for the unknown delivery
// point. The offset marker is an estimate for display only.
func BuildSet(drivers []core.Driver, parcels []core.Parcel, focus *core.Parcel) Set {
	set := Set{
		Drivers:      make([]Marker, 0, len(drivers)),
		Packages:     make([]Marker, 0, len(parcels)),
		Destinations: []Marker{},
	}

	for _, d := range drivers {
		set.Drivers = append(set.Drivers, Marker{
			ID:       d.ID,
			Kind:     core.KindDriver,
			Label:    d.Name,
			Position: position(d.CurrentLocation),
			Status:   core.ClassifyStatus(d.Status),
			Route:    routeLabel(d.ID),
		})
	}

	for _, p := range parcels {
		set.Packages = append(set.Packages, packageMarker(&p))
	}

	if focus != nil && len(parcels) == 0 {
		pm := packageMarker(focus)
		set.Packages = append(set.Packages, pm)

		destLabel := focus.Destination
		if destLabel == "" {
			destLabel = "Estimated delivery"
		}
		set.Destinations = append(set.Destinations, Marker{
			ID:       focus.TrackingID + "-dest",
			Kind:     core.KindDestination,
			Label:    destLabel,
			Position: geo.Offset(pm.Position, estimatedDestDX, estimatedDestDY),
			Status:   core.StatusActive,
		})
	}

	return set
}

func packageMarker(p *core.Parcel) Marker {
	return Marker{
		ID:          p.TrackingID,
		Kind:        core.KindParcel,
		Label:       p.TrackingID,
		Position:    position(p.Location),
		Status:      core.ClassifyStatus(p.Status),
		Destination: p.Destination,
	}
}
