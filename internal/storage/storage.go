// Package storage defines the parcel history recording backends.
package storage

import "github.com/hack3rvirus/parcel-tracker/pkg/core"

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Snapshot recording
	RecordSnapshot(s *core.Snapshot) error

	// History recording
	RecordStatusChange(c *core.StatusChange) error
	RecordLocationUpdate(u *core.LocationUpdate) error
}

// Exportable is an optional interface for storage backends that produce
// history files on Close.
type Exportable interface {
	GetExportedFilePath() string
}
