// pkg/core/snapshot.go
package core

import (
	"strings"
	"time"
)

// Snapshot is one consistent view of the backend's entity state.
// Seq orders overlapping fetches; a snapshot with a lower Seq than the
// currently applied one must be discarded.
type Snapshot struct {
	Seq       uint64    `json:"seq"`
	FetchedAt time.Time `json:"fetchedAt"`
	Parcels   []Parcel  `json:"parcels"`
	Drivers   []Driver  `json:"drivers"`
}

// DashboardStats summarizes a snapshot for the dashboard surface.
type DashboardStats struct {
	TotalParcels   int `json:"totalParcels"`
	InTransit      int `json:"inTransit"`
	Delivered      int `json:"delivered"`
	ActiveDrivers  int `json:"activeDrivers"`
	PendingPickups int `json:"pendingPickups"`
}

// Stats computes dashboard counts from the snapshot.
func (s *Snapshot) Stats() DashboardStats {
	stats := DashboardStats{TotalParcels: len(s.Parcels)}
	for _, p := range s.Parcels {
		norm := ClassifyStatus(p.Status)
		switch {
		case strings.EqualFold(strings.TrimSpace(p.Status), "delivered"):
			stats.Delivered++
		case norm == StatusActive:
			stats.InTransit++
		case norm == StatusWarning:
			stats.PendingPickups++
		}
	}
	for _, d := range s.Drivers {
		if ClassifyStatus(d.Status) == StatusActive {
			stats.ActiveDrivers++
		}
	}
	return stats
}
