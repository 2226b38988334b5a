// Package reconcile keeps the local view of parcels and drivers in sync
// with the backend. Stream messages never carry authoritative state;
// they only invalidate, and the loop refetches the full snapshot.
package reconcile

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hack3rvirus/parcel-tracker/internal/cache"
	"github.com/hack3rvirus/parcel-tracker/internal/channel"
	"github.com/hack3rvirus/parcel-tracker/internal/dispatcher"
	"github.com/hack3rvirus/parcel-tracker/internal/logging"
	"github.com/hack3rvirus/parcel-tracker/internal/marker"
	"github.com/hack3rvirus/parcel-tracker/pkg/core"
	"github.com/hack3rvirus/parcel-tracker/pkg/streaming"
)

const (
	defaultPollInterval = 30 * time.Second
	defaultFetchTimeout = 10 * time.Second
	subscriberBuffer    = 8
)

// Fetcher retrieves authoritative state from the backend.
type Fetcher interface {
	FetchParcels(ctx context.Context) ([]core.Parcel, error)
	FetchDrivers(ctx context.Context) ([]core.Driver, error)
}

// Dependencies holds all dependencies for the reconcile loop.
type Dependencies struct {
	Fetcher      Fetcher
	EntityCache  *cache.EntityCache
	MarkerCache  *cache.MarkerCache
	LogManager   *logging.SlogManager
	PollInterval time.Duration
	FetchTimeout time.Duration
}

// Loop periodically refetches the full entity snapshot and accepts it
// only if no newer snapshot has landed in the meantime. Every refetch
// is stamped with a monotonic sequence number; stale results lose.
type Loop struct {
	deps Dependencies

	seq atomic.Uint64

	mu            sync.RWMutex
	current       core.Snapshot
	hasCurrent    bool
	lastHeartbeat time.Time
	isRunning     bool

	subsMu      sync.Mutex
	subscribers []channel.Channel[core.Snapshot]
	subsClosed  bool

	kick     chan struct{}
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewLoop creates a reconcile loop. Zero durations fall back to defaults.
func NewLoop(deps Dependencies) *Loop {
	if deps.PollInterval <= 0 {
		deps.PollInterval = defaultPollInterval
	}
	if deps.FetchTimeout <= 0 {
		deps.FetchTimeout = defaultFetchTimeout
	}
	return &Loop{
		deps:     deps,
		kick:     make(chan struct{}, 1),
		stopChan: make(chan struct{}),
	}
}

// RegisterHandlers registers all stream message handlers with the dispatcher.
func (l *Loop) RegisterHandlers(d *dispatcher.Dispatcher) {
	d.Register(streaming.TypeParcelUpdate, l.handleInvalidate, dispatcher.Buffered(100), dispatcher.Logged())
	d.Register(streaming.TypeNewParcel, l.handleInvalidate, dispatcher.Buffered(100), dispatcher.Logged())
	d.Register(streaming.TypeHeartbeat, l.handleHeartbeat, dispatcher.Logged())
}

func (l *Loop) handleInvalidate(e dispatcher.Event) (any, error) {
	l.Invalidate()
	return nil, nil
}

func (l *Loop) handleHeartbeat(e dispatcher.Event) (any, error) {
	l.mu.Lock()
	l.lastHeartbeat = time.Now()
	l.mu.Unlock()
	return nil, nil
}

// Start launches the poll goroutine and performs an immediate refresh.
func (l *Loop) Start() error {
	l.mu.Lock()
	if l.isRunning {
		l.mu.Unlock()
		return nil
	}
	l.isRunning = true
	l.mu.Unlock()

	l.wg.Add(1)
	go l.run()

	return nil
}

func (l *Loop) run() {
	defer l.wg.Done()
	defer func() {
		l.mu.Lock()
		l.isRunning = false
		l.mu.Unlock()
	}()

	logger := l.deps.LogManager.Logger()
	logger.Debug("Starting reconcile loop", "pollInterval", l.deps.PollInterval)

	l.refresh()

	ticker := time.NewTicker(l.deps.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopChan:
			return
		case <-ticker.C:
			l.refresh()
		case <-l.kick:
			l.refresh()
		}
	}
}

// Invalidate schedules a refetch. Multiple invalidations while a fetch
// is in flight coalesce into one.
func (l *Loop) Invalidate() {
	select {
	case l.kick <- struct{}{}:
	default:
	}
}

// refresh fetches a fresh snapshot stamped with the next sequence number.
func (l *Loop) refresh() {
	logger := l.deps.LogManager.Logger()
	seq := l.seq.Add(1)

	ctx, cancel := context.WithTimeout(context.Background(), l.deps.FetchTimeout)
	defer cancel()

	parcels, err := l.deps.Fetcher.FetchParcels(ctx)
	if err != nil {
		logger.Warn("Parcel fetch failed", "seq", seq, "error", err)
		return
	}
	drivers, err := l.deps.Fetcher.FetchDrivers(ctx)
	if err != nil {
		logger.Warn("Driver fetch failed", "seq", seq, "error", err)
		return
	}

	l.commit(core.Snapshot{
		Seq:       seq,
		FetchedAt: time.Now(),
		Parcels:   parcels,
		Drivers:   drivers,
	})
}

// commit installs a snapshot unless a newer one already landed.
func (l *Loop) commit(snap core.Snapshot) bool {
	l.mu.Lock()
	if l.hasCurrent && snap.Seq < l.current.Seq {
		l.mu.Unlock()
		l.deps.LogManager.Logger().Debug("Dropping stale snapshot", "seq", snap.Seq, "current", l.current.Seq)
		return false
	}
	l.current = snap
	l.hasCurrent = true
	l.mu.Unlock()

	if l.deps.EntityCache != nil {
		l.deps.EntityCache.Replace(snap.Parcels, snap.Drivers)
	}
	if l.deps.MarkerCache != nil {
		l.deps.MarkerCache.Put(marker.BuildSet(snap.Drivers, snap.Parcels, nil), snap.Seq)
	}

	l.notify(snap)
	return true
}

func (l *Loop) notify(snap core.Snapshot) {
	l.subsMu.Lock()
	defer l.subsMu.Unlock()
	if l.subsClosed {
		return
	}
	for _, sub := range l.subscribers {
		// Best-effort delivery; a stalled subscriber misses snapshots
		// rather than blocking the loop.
		if sub.Len() >= subscriberBuffer {
			continue
		}
		sub.Send(snap)
	}
}

// Subscribe returns a receiver of accepted snapshots. The channel is
// closed when the loop stops.
func (l *Loop) Subscribe() channel.Receiver[core.Snapshot] {
	ch := channel.New[core.Snapshot](subscriberBuffer)

	l.subsMu.Lock()
	defer l.subsMu.Unlock()
	if l.subsClosed {
		ch.Close()
		return ch
	}
	l.subscribers = append(l.subscribers, ch)
	return ch
}

// Current returns the latest accepted snapshot, if any.
func (l *Loop) Current() (core.Snapshot, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current, l.hasCurrent
}

// LastHeartbeat returns the time of the last stream heartbeat.
func (l *Loop) LastHeartbeat() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastHeartbeat
}

// IsRunning returns whether the poll goroutine is active.
func (l *Loop) IsRunning() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.isRunning
}

// HandleDriverPosition folds a raw GPS fix into the cached view and
// rebuilds markers without bumping the snapshot sequence.
func (l *Loop) HandleDriverPosition(driverID string, pos core.GeoPoint) {
	if l.deps.EntityCache == nil {
		return
	}

	driver, ok := l.deps.EntityCache.GetDriver(driverID)
	if !ok {
		// Unknown driver; a later snapshot will introduce it.
		return
	}
	loc := pos
	driver.CurrentLocation = &loc
	l.deps.EntityCache.AddDriver(driver)

	if l.deps.MarkerCache != nil {
		l.mu.RLock()
		seq := l.current.Seq
		l.mu.RUnlock()
		l.deps.MarkerCache.Put(
			marker.BuildSet(l.deps.EntityCache.Drivers(), l.deps.EntityCache.Parcels(), nil),
			seq,
		)
	}
}

// Stop halts the loop and closes all subscriber channels. No snapshot
// is delivered after Stop returns.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.isRunning {
		l.mu.Unlock()
		return
	}
	l.mu.Unlock()

	close(l.stopChan)
	l.wg.Wait()

	l.subsMu.Lock()
	l.subsClosed = true
	for _, sub := range l.subscribers {
		sub.Close()
	}
	l.subscribers = nil
	l.subsMu.Unlock()
}
