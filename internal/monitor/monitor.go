// Package monitor periodically writes a program status file and ships
// health metrics, so operators can see queue depths and feed liveness
// without attaching a debugger.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/hack3rvirus/parcel-tracker/internal/influx"
	"github.com/hack3rvirus/parcel-tracker/internal/logging"
	"github.com/hack3rvirus/parcel-tracker/internal/reconcile"
	"github.com/hack3rvirus/parcel-tracker/internal/worker"
)

const statusInterval = time.Second

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	LogManager    *logging.SlogManager
	Loop          *reconcile.Loop
	WorkerManager *worker.Manager
	Influx        *influx.Manager // optional
	StatusDir     string
}

// ProgramStatus is what gets serialized to the status file every tick.
type ProgramStatus struct {
	Time                time.Time      `json:"time"`
	SnapshotSeq         uint64         `json:"snapshotSeq"`
	SnapshotAgeSeconds  float64        `json:"snapshotAgeSeconds"`
	HeartbeatAgeSeconds float64        `json:"heartbeatAgeSeconds"`
	QueueLengths        map[string]int `json:"queueLengths"`
	LastWriteDurationMs float32        `json:"lastWriteDurationMs"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetProgramStatus returns the current program status
func (s *Service) GetProgramStatus() ProgramStatus {
	status := ProgramStatus{
		Time:                time.Now(),
		QueueLengths:        s.deps.WorkerManager.GetQueueLengths(),
		LastWriteDurationMs: float32(s.deps.WorkerManager.GetLastDBWriteDuration().Milliseconds()),
	}

	if snap, ok := s.deps.Loop.Current(); ok {
		status.SnapshotSeq = snap.Seq
		status.SnapshotAgeSeconds = time.Since(snap.FetchedAt).Seconds()
	}
	if hb := s.deps.Loop.LastHeartbeat(); !hb.IsZero() {
		status.HeartbeatAgeSeconds = time.Since(hb).Seconds()
	}

	return status
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger := s.deps.LogManager.Logger()
		logger.Debug("Starting status monitor goroutine")

		statusFile, err := os.Create(filepath.Join(s.deps.StatusDir, "status.txt"))
		if err != nil {
			logger.Error("Error creating status file", "error", err)
		}
		defer statusFile.Close()

		ticker := time.NewTicker(statusInterval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopChan:
				return
			case <-ticker.C:
				status := s.GetProgramStatus()

				if statusFile != nil {
					data, err := json.MarshalIndent(status, "", "  ")
					if err != nil {
						data = []byte(fmt.Sprintf(`{"error": %q}`, err.Error()))
					}
					statusFile.Truncate(0)
					statusFile.Seek(0, 0)
					statusFile.Write(append(data, '\n'))
				}

				if s.deps.Influx != nil {
					point := statusPoint(status)
					if err := s.deps.Influx.WritePoint(context.Background(), influx.BucketTrackerStats, point); err != nil {
						logger.Error("Error writing status point", "error", err)
					}
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		close(s.stopChan)
	}
}

func statusPoint(status ProgramStatus) *influxdb2_write.Point {
	point := influxdb2_write.NewPointWithMeasurement("program_status").
		AddField("snapshot_seq", int64(status.SnapshotSeq)).
		AddField("snapshot_age_s", status.SnapshotAgeSeconds).
		AddField("heartbeat_age_s", status.HeartbeatAgeSeconds).
		AddField("last_write_ms", float64(status.LastWriteDurationMs)).
		SetTime(status.Time)
	for name, length := range status.QueueLengths {
		point.AddField("queue_"+name, length)
	}
	return point
}
