package memory

import (
	"sync"

	"github.com/hack3rvirus/parcel-tracker/internal/config"
	"github.com/hack3rvirus/parcel-tracker/pkg/core"
)

// ParcelRecord groups a parcel with all its recorded history
type ParcelRecord struct {
	Parcel          core.Parcel
	StatusChanges   []core.StatusChange
	LocationUpdates []core.LocationUpdate
}

// DriverRecord groups a driver with its recorded movement
type DriverRecord struct {
	Driver          core.Driver
	LocationUpdates []core.LocationUpdate
}

// Backend stores tracking history in memory and exports to JSON on Close
type Backend struct {
	cfg config.MemoryConfig

	parcels map[string]*ParcelRecord // keyed by tracking id
	drivers map[string]*DriverRecord // keyed by driver id
	stats   []core.DashboardStats

	lastSeq          uint64
	exportedFilePath string
	mu               sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:     cfg,
		parcels: make(map[string]*ParcelRecord),
		drivers: make(map[string]*DriverRecord),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close exports the recorded history to disk
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.exportJSON()
}

// RecordSnapshot folds a full snapshot into the record set. Stale
// snapshots are ignored.
func (b *Backend) RecordSnapshot(s *core.Snapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s.Seq < b.lastSeq {
		return nil
	}
	b.lastSeq = s.Seq

	for _, p := range s.Parcels {
		record, ok := b.parcels[p.TrackingID]
		if !ok {
			record = &ParcelRecord{}
			b.parcels[p.TrackingID] = record
		}
		record.Parcel = p
	}
	for _, d := range s.Drivers {
		record, ok := b.drivers[d.ID]
		if !ok {
			record = &DriverRecord{}
			b.drivers[d.ID] = record
		}
		record.Driver = d
	}
	b.stats = append(b.stats, s.Stats())

	return nil
}

// RecordStatusChange appends a status transition to the parcel's history
func (b *Backend) RecordStatusChange(c *core.StatusChange) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	record, ok := b.parcels[c.TrackingID]
	if !ok {
		record = &ParcelRecord{}
		b.parcels[c.TrackingID] = record
	}
	record.StatusChanges = append(record.StatusChanges, *c)
	return nil
}

// RecordLocationUpdate appends a movement record to the matching entity
func (b *Backend) RecordLocationUpdate(u *core.LocationUpdate) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch u.Kind {
	case core.KindDriver:
		record, ok := b.drivers[u.EntityID]
		if !ok {
			record = &DriverRecord{}
			b.drivers[u.EntityID] = record
		}
		record.LocationUpdates = append(record.LocationUpdates, *u)
	default:
		record, ok := b.parcels[u.EntityID]
		if !ok {
			record = &ParcelRecord{}
			b.parcels[u.EntityID] = record
		}
		record.LocationUpdates = append(record.LocationUpdates, *u)
	}
	return nil
}

// GetParcelRecord looks up a parcel's recorded history
func (b *Backend) GetParcelRecord(trackingID string) (*ParcelRecord, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if record, ok := b.parcels[trackingID]; ok {
		cp := *record
		return &cp, true
	}
	return nil, false
}

// GetDriverRecord looks up a driver's recorded history
func (b *Backend) GetDriverRecord(driverID string) (*DriverRecord, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if record, ok := b.drivers[driverID]; ok {
		cp := *record
		return &cp, true
	}
	return nil, false
}

// GetExportedFilePath returns the path of the last export, if any
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.exportedFilePath
}
