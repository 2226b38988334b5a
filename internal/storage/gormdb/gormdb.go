// Package gormdb records parcel history into a relational database
// through GORM, suitable for both Postgres and SQLite connections.
package gormdb

import (
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hack3rvirus/parcel-tracker/internal/model"
	"github.com/hack3rvirus/parcel-tracker/pkg/core"
)

// Backend writes tracking history to a database.
type Backend struct {
	db *gorm.DB

	mu                  sync.RWMutex
	lastSeq             uint64
	lastDBWriteDuration time.Duration
	paths               map[string][]core.GeoPoint
}

// New creates a database backend over an existing connection.
func New(db *gorm.DB) *Backend {
	return &Backend{
		db:    db,
		paths: make(map[string][]core.GeoPoint),
	}
}

// Init migrates the schema.
func (b *Backend) Init() error {
	if err := b.db.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Close flushes accumulated driver paths. The connection itself is
// owned by the database manager.
func (b *Backend) Close() error {
	b.mu.Lock()
	paths := b.paths
	b.paths = make(map[string][]core.GeoPoint)
	b.mu.Unlock()

	for driverID, points := range paths {
		row, err := model.DriverPathFromPoints(driverID, points)
		if err != nil {
			// Drivers with a single fix have no path to store.
			continue
		}
		err = b.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "driver_id"}},
			UpdateAll: true,
		}).Create(&row).Error
		if err != nil {
			return fmt.Errorf("failed to record driver path: %w", err)
		}
	}
	return nil
}

// RecordSnapshot upserts all entities and appends a stats row. Stale
// snapshots are ignored.
func (b *Backend) RecordSnapshot(s *core.Snapshot) error {
	b.mu.Lock()
	if s.Seq < b.lastSeq {
		b.mu.Unlock()
		return nil
	}
	b.lastSeq = s.Seq
	b.mu.Unlock()

	start := time.Now()

	parcels := make([]model.Parcel, 0, len(s.Parcels))
	for _, p := range s.Parcels {
		parcels = append(parcels, model.ParcelFromCore(p))
	}
	if len(parcels) > 0 {
		err := b.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tracking_id"}},
			UpdateAll: true,
		}).Create(&parcels).Error
		if err != nil {
			return fmt.Errorf("failed to upsert parcels: %w", err)
		}
	}

	drivers := make([]model.Driver, 0, len(s.Drivers))
	for _, d := range s.Drivers {
		drivers = append(drivers, model.DriverFromCore(d))
	}
	if len(drivers) > 0 {
		err := b.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "driver_id"}},
			UpdateAll: true,
		}).Create(&drivers).Error
		if err != nil {
			return fmt.Errorf("failed to upsert drivers: %w", err)
		}
	}

	stat := model.SnapshotStatFromCore(*s, time.Since(start))
	if err := b.db.Create(&stat).Error; err != nil {
		return fmt.Errorf("failed to record snapshot stats: %w", err)
	}

	b.mu.Lock()
	b.lastDBWriteDuration = time.Since(start)
	b.mu.Unlock()

	return nil
}

// RecordStatusChange appends a status transition row.
func (b *Backend) RecordStatusChange(c *core.StatusChange) error {
	row := model.StatusChangeFromCore(*c)
	if err := b.db.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to record status change: %w", err)
	}
	return nil
}

// RecordLocationUpdate appends a movement row. Driver movements also
// extend the travelled path written out on Close.
func (b *Backend) RecordLocationUpdate(u *core.LocationUpdate) error {
	row := model.LocationUpdateFromCore(*u)
	if err := b.db.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to record location update: %w", err)
	}

	if u.Kind == core.KindDriver {
		b.mu.Lock()
		b.paths[u.EntityID] = append(b.paths[u.EntityID], u.Location)
		b.mu.Unlock()
	}
	return nil
}

// GetLastDBWriteDuration returns the duration of the last snapshot write.
func (b *Backend) GetLastDBWriteDuration() time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastDBWriteDuration
}
