package memory

import (
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hack3rvirus/parcel-tracker/internal/config"
	"github.com/hack3rvirus/parcel-tracker/pkg/core"
)

func newTestBackend(t *testing.T, compress bool) *Backend {
	t.Helper()
	return New(config.MemoryConfig{
		OutputDir:      t.TempDir(),
		CompressOutput: compress,
	})
}

func TestRecordSnapshot(t *testing.T) {
	b := newTestBackend(t, false)

	err := b.RecordSnapshot(&core.Snapshot{
		Seq: 1,
		Parcels: []core.Parcel{
			{TrackingID: "RD001", Status: "In Transit"},
		},
		Drivers: []core.Driver{
			{ID: "d1", Name: "John Smith", Status: "active"},
		},
	})
	if err != nil {
		t.Fatalf("RecordSnapshot: %v", err)
	}

	record, ok := b.GetParcelRecord("RD001")
	if !ok {
		t.Fatal("expected parcel record")
	}
	if record.Parcel.Status != "In Transit" {
		t.Errorf("expected status 'In Transit', got %q", record.Parcel.Status)
	}

	driver, ok := b.GetDriverRecord("d1")
	if !ok {
		t.Fatal("expected driver record")
	}
	if driver.Driver.Name != "John Smith" {
		t.Errorf("unexpected driver: %+v", driver.Driver)
	}
}

func TestRecordSnapshot_StaleSeqIgnored(t *testing.T) {
	b := newTestBackend(t, false)

	b.RecordSnapshot(&core.Snapshot{Seq: 5, Parcels: []core.Parcel{{TrackingID: "RD001", Status: "Delivered"}}})
	b.RecordSnapshot(&core.Snapshot{Seq: 4, Parcels: []core.Parcel{{TrackingID: "RD001", Status: "Pending"}}})

	record, _ := b.GetParcelRecord("RD001")
	if record.Parcel.Status != "Delivered" {
		t.Errorf("stale snapshot overwrote newer state: %q", record.Parcel.Status)
	}
}

func TestRecordStatusChange(t *testing.T) {
	b := newTestBackend(t, false)

	b.RecordStatusChange(&core.StatusChange{
		TrackingID: "RD001",
		OldStatus:  "In Transit",
		NewStatus:  "Delivered",
		ChangedAt:  time.Now(),
		Source:     core.SourceStream,
	})

	record, ok := b.GetParcelRecord("RD001")
	if !ok {
		t.Fatal("status change should create the parcel record")
	}
	if len(record.StatusChanges) != 1 {
		t.Fatalf("expected 1 status change, got %d", len(record.StatusChanges))
	}
	if record.StatusChanges[0].NewStatus != "Delivered" {
		t.Errorf("unexpected change: %+v", record.StatusChanges[0])
	}
}

func TestRecordLocationUpdate_RoutesByKind(t *testing.T) {
	b := newTestBackend(t, false)

	b.RecordLocationUpdate(&core.LocationUpdate{
		EntityID: "d1",
		Kind:     core.KindDriver,
		Location: core.GeoPoint{Lat: 40.7, Lng: -74.0},
		Source:   core.SourceGPS,
	})
	b.RecordLocationUpdate(&core.LocationUpdate{
		EntityID: "RD001",
		Kind:     core.KindParcel,
		Location: core.GeoPoint{Lat: 41.0, Lng: -73.0},
		Source:   core.SourceEdit,
	})

	driver, ok := b.GetDriverRecord("d1")
	if !ok || len(driver.LocationUpdates) != 1 {
		t.Error("driver movement not recorded")
	}
	parcel, ok := b.GetParcelRecord("RD001")
	if !ok || len(parcel.LocationUpdates) != 1 {
		t.Error("parcel movement not recorded")
	}
}

func TestClose_ExportsJSON(t *testing.T) {
	b := newTestBackend(t, false)

	b.RecordSnapshot(&core.Snapshot{
		Seq:     3,
		Parcels: []core.Parcel{{TrackingID: "RD002"}, {TrackingID: "RD001"}},
	})
	b.RecordStatusChange(&core.StatusChange{TrackingID: "RD001", NewStatus: "Delivered"})

	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	path := b.GetExportedFilePath()
	if path == "" {
		t.Fatal("no exported file path")
	}
	if !strings.HasSuffix(path, ".json") {
		t.Errorf("expected plain .json export, got %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading export: %v", err)
	}

	var export HistoryExport
	if err := json.Unmarshal(data, &export); err != nil {
		t.Fatalf("parsing export: %v", err)
	}
	if export.LastSeq != 3 {
		t.Errorf("expected lastSeq 3, got %d", export.LastSeq)
	}
	if len(export.Parcels) != 2 {
		t.Fatalf("expected 2 parcels, got %d", len(export.Parcels))
	}
	// Deterministic order by tracking id.
	if export.Parcels[0].TrackingID != "RD001" || export.Parcels[1].TrackingID != "RD002" {
		t.Errorf("unexpected parcel order: %+v", export.Parcels)
	}
	if len(export.Parcels[0].StatusChanges) != 1 {
		t.Error("status change missing from export")
	}
}

func TestClose_ExportsGzip(t *testing.T) {
	b := newTestBackend(t, true)
	b.RecordSnapshot(&core.Snapshot{Seq: 1, Parcels: []core.Parcel{{TrackingID: "RD001"}}})

	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	path := b.GetExportedFilePath()
	if filepath.Ext(path) != ".gz" {
		t.Fatalf("expected gzipped export, got %s", path)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening export: %v", err)
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	defer gz.Close()

	var export HistoryExport
	if err := json.NewDecoder(gz).Decode(&export); err != nil {
		t.Fatalf("decoding export: %v", err)
	}
	if len(export.Parcels) != 1 {
		t.Errorf("expected 1 parcel in export, got %d", len(export.Parcels))
	}
}
