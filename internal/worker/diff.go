package worker

import (
	"github.com/hack3rvirus/parcel-tracker/pkg/core"
)

// diffSnapshots derives history events from two consecutive snapshots.
// With no previous snapshot there is nothing to diff; the initial state
// is captured by the snapshot record itself.
func diffSnapshots(prev, next *core.Snapshot) ([]core.StatusChange, []core.LocationUpdate) {
	if prev == nil {
		return nil, nil
	}

	prevParcels := make(map[string]core.Parcel, len(prev.Parcels))
	for _, p := range prev.Parcels {
		prevParcels[p.TrackingID] = p
	}
	prevDrivers := make(map[string]core.Driver, len(prev.Drivers))
	for _, d := range prev.Drivers {
		prevDrivers[d.ID] = d
	}

	var changes []core.StatusChange
	var moves []core.LocationUpdate

	for _, p := range next.Parcels {
		old, ok := prevParcels[p.TrackingID]
		if !ok {
			continue
		}
		if p.Status != old.Status {
			changes = append(changes, core.StatusChange{
				TrackingID: p.TrackingID,
				OldStatus:  old.Status,
				NewStatus:  p.Status,
				ChangedAt:  next.FetchedAt,
				Source:     core.SourcePoll,
			})
		}
		if moved(old.Location, p.Location) {
			moves = append(moves, core.LocationUpdate{
				EntityID:  p.TrackingID,
				Kind:      core.KindParcel,
				Location:  *p.Location,
				UpdatedAt: next.FetchedAt,
				Source:    core.SourcePoll,
			})
		}
	}

	for _, d := range next.Drivers {
		old, ok := prevDrivers[d.ID]
		if !ok {
			continue
		}
		if moved(old.CurrentLocation, d.CurrentLocation) {
			moves = append(moves, core.LocationUpdate{
				EntityID:  d.ID,
				Kind:      core.KindDriver,
				Location:  *d.CurrentLocation,
				UpdatedAt: next.FetchedAt,
				Source:    core.SourcePoll,
			})
		}
	}

	return changes, moves
}

// moved reports whether a position appeared or changed. A position
// disappearing is not a movement.
func moved(old, new *core.GeoPoint) bool {
	if new == nil {
		return false
	}
	if old == nil {
		return true
	}
	return old.Lat != new.Lat || old.Lng != new.Lng
}
