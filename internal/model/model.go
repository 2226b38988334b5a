// Package model defines the database schema for parcel history
// recording, plus converters from the wire-level types.
package model

import (
	"encoding/json"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"

	"github.com/hack3rvirus/parcel-tracker/internal/geo"
	"github.com/hack3rvirus/parcel-tracker/pkg/core"
)

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&TrackerInfo{},
	&Parcel{},
	&Driver{},
	&DriverPath{},
	&StatusChange{},
	&LocationUpdate{},
	&SnapshotStat{},
}

// TrackerInfo holds one-row deployment metadata.
type TrackerInfo struct {
	ID          uint   `json:"id" gorm:"primarykey"`
	ServiceName string `json:"serviceName"`
	Description string `json:"description"`
	Website     string `json:"website"`
}

// Parcel is the stored form of a parcel, positions in web mercator.
type Parcel struct {
	ID                uint           `json:"id" gorm:"primarykey"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
	TrackingID        string         `json:"trackingId" gorm:"uniqueIndex"`
	Status            string         `json:"status"`
	Sender            string         `json:"sender"`
	Receiver          string         `json:"receiver"`
	Origin            string         `json:"origin"`
	Destination       string         `json:"destination"`
	CurrentLocation   string         `json:"currentLocation"`
	EstimatedDelivery string         `json:"estimatedDelivery"`
	HasPosition       bool           `json:"hasPosition"`
	Position          geom.Point     `json:"position"`
	History           datatypes.JSON `json:"history"` // tracking events as received
}

// Driver is the stored form of a fleet driver.
type Driver struct {
	ID          uint       `json:"id" gorm:"primarykey"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	DriverID    string     `json:"driverId" gorm:"uniqueIndex"`
	Name        string     `json:"name"`
	Phone       string     `json:"phone"`
	VehicleType string     `json:"vehicleType"`
	Status      string     `json:"status"`
	HasPosition bool       `json:"hasPosition"`
	Position    geom.Point `json:"position"`
}

// DriverPath is the travelled path of a driver over a recording
// session, stored as a web mercator linestring.
type DriverPath struct {
	ID         uint            `json:"id" gorm:"primarykey"`
	UpdatedAt  time.Time       `json:"updatedAt"`
	DriverID   string          `json:"driverId" gorm:"uniqueIndex"`
	PointCount int             `json:"pointCount"`
	Path       geom.LineString `json:"path"`
}

// StatusChange is a parcel status transition.
type StatusChange struct {
	ID         uint      `json:"id" gorm:"primarykey"`
	Time       time.Time `json:"time" gorm:"index"`
	TrackingID string    `json:"trackingId" gorm:"index"`
	OldStatus  string    `json:"oldStatus"`
	NewStatus  string    `json:"newStatus"`
	Source     string    `json:"source"`
}

// LocationUpdate is an entity position change, position in web mercator.
type LocationUpdate struct {
	ID       uint       `json:"id" gorm:"primarykey"`
	Time     time.Time  `json:"time" gorm:"index"`
	EntityID string     `json:"entityId" gorm:"index"`
	Kind     string     `json:"kind"`
	Position geom.Point `json:"position"`
	Source   string     `json:"source"`
}

// SnapshotStat is a per-snapshot dashboard statistics row.
type SnapshotStat struct {
	ID              uint      `json:"id" gorm:"primarykey"`
	Time            time.Time `json:"time" gorm:"index"`
	Seq             uint64    `json:"seq"`
	TotalParcels    int       `json:"totalParcels"`
	InTransit       int       `json:"inTransit"`
	Delivered       int       `json:"delivered"`
	PendingPickups  int       `json:"pendingPickups"`
	ActiveDrivers   int       `json:"activeDrivers"`
	FetchDurationMs float32   `json:"fetchDurationMs"`
}

// ParcelFromCore converts a wire parcel to its stored form.
func ParcelFromCore(p core.Parcel) Parcel {
	row := Parcel{
		TrackingID:        p.TrackingID,
		Status:            p.Status,
		Sender:            p.Sender,
		Receiver:          p.Receiver,
		Origin:            p.Origin,
		Destination:       p.Destination,
		CurrentLocation:   p.CurrentLocation,
		EstimatedDelivery: p.EstimatedDelivery.Format(time.RFC3339),
	}
	if p.Location != nil {
		row.HasPosition = true
		row.Position = geo.MercatorPoint(*p.Location)
	}
	if len(p.History) > 0 {
		if data, err := json.Marshal(p.History); err == nil {
			row.History = datatypes.JSON(data)
		}
	}
	return row
}

// DriverFromCore converts a wire driver to its stored form.
func DriverFromCore(d core.Driver) Driver {
	row := Driver{
		DriverID:    d.ID,
		Name:        d.Name,
		Phone:       d.Phone,
		VehicleType: d.VehicleType,
		Status:      d.Status,
	}
	if d.CurrentLocation != nil {
		row.HasPosition = true
		row.Position = geo.MercatorPoint(*d.CurrentLocation)
	}
	return row
}

// DriverPathFromPoints builds a travelled-path row. Paths need at
// least two points to have any extent.
func DriverPathFromPoints(driverID string, points []core.GeoPoint) (DriverPath, error) {
	ls, err := geo.PathLineString(points)
	if err != nil {
		return DriverPath{}, err
	}
	return DriverPath{
		DriverID:   driverID,
		PointCount: len(points),
		Path:       ls,
	}, nil
}

// StatusChangeFromCore converts a history event to its stored form.
func StatusChangeFromCore(c core.StatusChange) StatusChange {
	return StatusChange{
		Time:       c.ChangedAt,
		TrackingID: c.TrackingID,
		OldStatus:  c.OldStatus,
		NewStatus:  c.NewStatus,
		Source:     c.Source,
	}
}

// LocationUpdateFromCore converts a history event to its stored form.
func LocationUpdateFromCore(u core.LocationUpdate) LocationUpdate {
	return LocationUpdate{
		Time:     u.UpdatedAt,
		EntityID: u.EntityID,
		Kind:     string(u.Kind),
		Position: geo.MercatorPoint(u.Location),
		Source:   u.Source,
	}
}

// SnapshotStatFromCore builds a stats row from an accepted snapshot.
func SnapshotStatFromCore(s core.Snapshot, fetchDuration time.Duration) SnapshotStat {
	stats := s.Stats()
	return SnapshotStat{
		Time:            s.FetchedAt,
		Seq:             s.Seq,
		TotalParcels:    stats.TotalParcels,
		InTransit:       stats.InTransit,
		Delivered:       stats.Delivered,
		PendingPickups:  stats.PendingPickups,
		ActiveDrivers:   stats.ActiveDrivers,
		FetchDurationMs: float32(fetchDuration.Milliseconds()),
	}
}
