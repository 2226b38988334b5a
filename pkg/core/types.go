// pkg/core/types.go
package core

// GeoPoint is a geographic coordinate as received from the backend.
// Lat is in [-90,90], Lng in [-180,180]; values outside that range are
// coerced by the projection layer, never rejected.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// EntityKind discriminates the tracked entity variants.
type EntityKind string

const (
	KindDriver      EntityKind = "driver"
	KindParcel      EntityKind = "package"
	KindDestination EntityKind = "destination"
)
