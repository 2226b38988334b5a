package storage

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/hack3rvirus/parcel-tracker/internal/config"
	"github.com/hack3rvirus/parcel-tracker/internal/storage/gormdb"
	"github.com/hack3rvirus/parcel-tracker/internal/storage/memory"
)

// NewBackend creates a storage backend based on configuration. The db
// handle is only required for the database backend.
func NewBackend(cfg config.StorageConfig, db *gorm.DB) (Backend, error) {
	switch cfg.Type {
	case "database":
		if db == nil {
			return nil, fmt.Errorf("database backend requires a connected database")
		}
		return gormdb.New(db), nil
	case "memory":
		return memory.New(cfg.Memory), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
