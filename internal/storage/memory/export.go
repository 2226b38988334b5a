package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/hack3rvirus/parcel-tracker/pkg/core"
)

// HistoryExport is the root JSON structure written on Close.
type HistoryExport struct {
	GeneratedAt time.Time             `json:"generatedAt"`
	LastSeq     uint64                `json:"lastSeq"`
	Parcels     []ParcelJSON          `json:"parcels"`
	Drivers     []DriverJSON          `json:"drivers"`
	Stats       []core.DashboardStats `json:"stats"`
}

// ParcelJSON is one parcel with its recorded history.
type ParcelJSON struct {
	TrackingID      string                `json:"trackingId"`
	Status          string                `json:"status"`
	Destination     string                `json:"destination,omitempty"`
	Location        *core.GeoPoint        `json:"location,omitempty"`
	StatusChanges   []core.StatusChange   `json:"statusChanges"`
	LocationUpdates []core.LocationUpdate `json:"locationUpdates"`
}

// DriverJSON is one driver with its recorded movement.
type DriverJSON struct {
	ID              string                `json:"id"`
	Name            string                `json:"name"`
	Status          string                `json:"status"`
	Location        *core.GeoPoint        `json:"location,omitempty"`
	LocationUpdates []core.LocationUpdate `json:"locationUpdates"`
}

// exportJSON writes the recorded history to a JSON file, optionally
// gzipped. Caller must hold the lock.
func (b *Backend) exportJSON() error {
	export := b.buildExport()

	timestamp := export.GeneratedAt.Format("20060102_150405")
	var filename string
	if b.cfg.CompressOutput {
		filename = fmt.Sprintf("history_%s.json.gz", timestamp)
	} else {
		filename = fmt.Sprintf("history_%s.json", timestamp)
	}
	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if b.cfg.CompressOutput {
		if err := writeGzipJSON(outputPath, export); err != nil {
			return err
		}
	} else {
		if err := writeJSON(outputPath, export); err != nil {
			return err
		}
	}

	b.exportedFilePath = outputPath
	return nil
}

// buildExport assembles the export structure with deterministic order.
func (b *Backend) buildExport() HistoryExport {
	export := HistoryExport{
		GeneratedAt: time.Now(),
		LastSeq:     b.lastSeq,
		Parcels:     make([]ParcelJSON, 0, len(b.parcels)),
		Drivers:     make([]DriverJSON, 0, len(b.drivers)),
		Stats:       b.stats,
	}

	for id, record := range b.parcels {
		export.Parcels = append(export.Parcels, ParcelJSON{
			TrackingID:      id,
			Status:          record.Parcel.Status,
			Destination:     record.Parcel.Destination,
			Location:        record.Parcel.Location,
			StatusChanges:   record.StatusChanges,
			LocationUpdates: record.LocationUpdates,
		})
	}
	sort.Slice(export.Parcels, func(i, j int) bool {
		return export.Parcels[i].TrackingID < export.Parcels[j].TrackingID
	})

	for id, record := range b.drivers {
		export.Drivers = append(export.Drivers, DriverJSON{
			ID:              id,
			Name:            record.Driver.Name,
			Status:          record.Driver.Status,
			Location:        record.Driver.CurrentLocation,
			LocationUpdates: record.LocationUpdates,
		})
	}
	sort.Slice(export.Drivers, func(i, j int) bool {
		return export.Drivers[i].ID < export.Drivers[j].ID
	})

	return export
}

func writeJSON(path string, export HistoryExport) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	if err := encoder.Encode(export); err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return nil
}

func writeGzipJSON(path string, export HistoryExport) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer file.Close()

	gz := gzip.NewWriter(file)
	defer gz.Close()

	encoder := json.NewEncoder(gz)
	if err := encoder.Encode(export); err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return nil
}
