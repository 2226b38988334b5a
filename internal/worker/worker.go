// Package worker turns accepted snapshots into history records. It
// subscribes to the reconciliation loop, diffs consecutive snapshots
// into status and movement events, and drains everything to the
// configured storage backend on an interval.
package worker

import (
	"sync"
	"time"

	"github.com/hack3rvirus/parcel-tracker/internal/channel"
	"github.com/hack3rvirus/parcel-tracker/internal/logging"
	"github.com/hack3rvirus/parcel-tracker/internal/queue"
	"github.com/hack3rvirus/parcel-tracker/internal/storage"
	"github.com/hack3rvirus/parcel-tracker/pkg/core"
)

const defaultFlushInterval = 2 * time.Second

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	LogManager *logging.SlogManager
}

// Queues buffers history records between ingestion and the writer.
type Queues struct {
	Snapshots       *queue.Queue[core.Snapshot]
	StatusChanges   *queue.Queue[core.StatusChange]
	LocationUpdates *queue.Queue[core.LocationUpdate]
}

// Manager manages worker goroutines
type Manager struct {
	deps    Dependencies
	backend storage.Backend
	queues  Queues

	flushInterval time.Duration

	mu        sync.Mutex
	prev      *core.Snapshot
	isRunning bool

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// Option configures the manager.
type Option func(*Manager)

// WithFlushInterval overrides how often queued records are written.
func WithFlushInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.flushInterval = d
		}
	}
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies, backend storage.Backend, opts ...Option) *Manager {
	m := &Manager{
		deps:    deps,
		backend: backend,
		queues: Queues{
			Snapshots:       queue.New[core.Snapshot](),
			StatusChanges:   queue.New[core.StatusChange](),
			LocationUpdates: queue.New[core.LocationUpdate](),
		},
		flushInterval: defaultFlushInterval,
		stopChan:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run consumes snapshots from the subscription and starts the writer.
// Returns immediately; call Stop to flush and shut down.
func (m *Manager) Run(sub channel.Receiver[core.Snapshot]) {
	m.mu.Lock()
	if m.isRunning {
		m.mu.Unlock()
		return
	}
	m.isRunning = true
	m.mu.Unlock()

	m.wg.Add(2)
	go m.consume(sub)
	go m.writeLoop()
}

// IsRunning reports whether the manager has been started and not stopped.
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isRunning
}

// Stop shuts down the goroutines and writes any remaining records.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.isRunning {
		m.mu.Unlock()
		return
	}
	m.isRunning = false
	m.mu.Unlock()

	close(m.stopChan)
	m.wg.Wait()
	m.flush()
}

func (m *Manager) consume(sub channel.Receiver[core.Snapshot]) {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopChan:
			return
		case snap, ok := <-sub.Receive():
			if !ok {
				return
			}
			m.Ingest(snap)
		}
	}
}

func (m *Manager) writeLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopChan:
			return
		case <-ticker.C:
			m.flush()
		}
	}
}

// Ingest diffs a snapshot against the previous one and queues the
// resulting history records.
func (m *Manager) Ingest(snap core.Snapshot) {
	m.mu.Lock()
	prev := m.prev
	if prev != nil && snap.Seq < prev.Seq {
		m.mu.Unlock()
		m.deps.LogManager.Logger().Debug("Skipping stale snapshot", "seq", snap.Seq)
		return
	}
	cp := snap
	m.prev = &cp
	m.mu.Unlock()

	changes, moves := diffSnapshots(prev, &snap)
	m.queues.Snapshots.Push(snap)
	m.queues.StatusChanges.Push(changes...)
	m.queues.LocationUpdates.Push(moves...)
}

// RecordStatusChange queues a status transition observed outside the
// snapshot diff, such as an operator edit.
func (m *Manager) RecordStatusChange(c core.StatusChange) {
	m.queues.StatusChanges.Push(c)
}

// RecordLocationUpdate queues a movement observed outside the snapshot
// diff, such as a GPS fix.
func (m *Manager) RecordLocationUpdate(u core.LocationUpdate) {
	m.queues.LocationUpdates.Push(u)
}

// flush drains all queues into the backend.
func (m *Manager) flush() {
	for _, snap := range m.queues.Snapshots.GetAndEmpty() {
		s := snap
		if err := m.backend.RecordSnapshot(&s); err != nil {
			m.deps.LogManager.Logger().Error("Failed to record snapshot", "error", err, "seq", s.Seq)
		}
	}
	for _, c := range m.queues.StatusChanges.GetAndEmpty() {
		change := c
		if err := m.backend.RecordStatusChange(&change); err != nil {
			m.deps.LogManager.Logger().Error("Failed to record status change", "error", err, "trackingId", change.TrackingID)
		}
	}
	for _, u := range m.queues.LocationUpdates.GetAndEmpty() {
		update := u
		if err := m.backend.RecordLocationUpdate(&update); err != nil {
			m.deps.LogManager.Logger().Error("Failed to record location update", "error", err, "entityId", update.EntityID)
		}
	}
}

// GetQueueLengths returns the pending record counts per queue.
func (m *Manager) GetQueueLengths() map[string]int {
	return map[string]int{
		"snapshots":       m.queues.Snapshots.Len(),
		"statusChanges":   m.queues.StatusChanges.Len(),
		"locationUpdates": m.queues.LocationUpdates.Len(),
	}
}

// DBWriteDurationProvider is an optional interface that backends can implement
// to expose their last DB write duration for monitoring.
type DBWriteDurationProvider interface {
	GetLastDBWriteDuration() time.Duration
}

// GetLastDBWriteDuration returns the duration of the last DB write cycle.
// Returns 0 if the backend doesn't support this metric.
func (m *Manager) GetLastDBWriteDuration() time.Duration {
	if p, ok := m.backend.(DBWriteDurationProvider); ok {
		return p.GetLastDBWriteDuration()
	}
	return 0
}
