// Package edit implements the interactive map edit session: converting
// screen gestures into parcel mutations against the backend.
package edit

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/hack3rvirus/parcel-tracker/internal/geo"
	"github.com/hack3rvirus/parcel-tracker/pkg/core"
)

var (
	// ErrForbidden is returned when the session lacks edit capability.
	ErrForbidden = errors.New("edit not permitted for this session")

	// ErrNotEditing is returned for gestures outside an active session.
	ErrNotEditing = errors.New("no active edit session")

	// ErrViewportUnavailable is returned when a gesture cannot be
	// resolved because the map viewport dimensions are unknown. The
	// gesture is aborted; no mutation is emitted.
	ErrViewportUnavailable = errors.New("viewport unavailable")

	// ErrNoDrag is returned when a drag completes without having begun.
	ErrNoDrag = errors.New("no drag in progress")
)

// ScreenPoint is a pixel coordinate within the map viewport.
type ScreenPoint struct {
	X float64
	Y float64
}

// Viewport is the rendered size of the map element in pixels.
type Viewport struct {
	Width  float64
	Height float64
}

// Capabilities gates entry into an edit session.
type Capabilities interface {
	CanEdit() bool
}

// MutationSink receives the update intents an edit session produces.
type MutationSink interface {
	UpdateParcelLocation(ctx context.Context, trackingID string, loc core.GeoPoint) error
	UpdateParcelStatus(ctx context.Context, trackingID, status string) error
}

// Session converts screen gestures to geographic mutations. All methods
// are safe for concurrent use. After Exit returns, no further intents
// reach the sink.
type Session struct {
	sink   MutationSink
	caps   Capabilities
	logger *slog.Logger

	mu       sync.Mutex
	active   bool
	viewport *Viewport
	dragID   string
}

// NewSession creates an inactive edit session.
func NewSession(sink MutationSink, caps Capabilities, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		sink:   sink,
		caps:   caps,
		logger: logger,
	}
}

// Enter activates the session. Fails unless the operator may edit.
func (s *Session) Enter() error {
	if s.caps != nil && !s.caps.CanEdit() {
		return ErrForbidden
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = true
	return nil
}

// Exit deactivates the session and abandons any drag in progress.
func (s *Session) Exit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
	s.dragID = ""
}

// Active reports whether the session is live.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// SetViewport records the current map dimensions.
func (s *Session) SetViewport(v Viewport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.Width <= 0 || v.Height <= 0 {
		s.viewport = nil
		return
	}
	s.viewport = &v
}

// ClearViewport marks the viewport as unknown, e.g. while the map is
// hidden or resizing.
func (s *Session) ClearViewport() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewport = nil
}

// ScreenToGeo resolves a pixel coordinate to a geographic one via the
// plane. Out-of-viewport points clamp to the plane edges.
func (s *Session) ScreenToGeo(p ScreenPoint) (core.GeoPoint, error) {
	s.mu.Lock()
	v := s.viewport
	s.mu.Unlock()

	if v == nil {
		return core.GeoPoint{}, ErrViewportUnavailable
	}

	plane := geo.ClampPlane(geo.PlanePoint{
		X: p.X / v.Width * 100,
		Y: p.Y / v.Height * 100,
	})
	return geo.Unproject(plane), nil
}

// BeginDrag starts moving the given parcel.
func (s *Session) BeginDrag(trackingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return ErrNotEditing
	}
	s.dragID = trackingID
	return nil
}

// Dragging returns the tracking id of the parcel being dragged, if any.
func (s *Session) Dragging() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dragID, s.dragID != ""
}

// CancelDrag abandons the drag without emitting a mutation.
func (s *Session) CancelDrag() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dragID = ""
}

// CompleteDrag resolves the drop point and emits a location update for
// the dragged parcel. The drag ends either way; an unavailable viewport
// aborts without a mutation.
func (s *Session) CompleteDrag(ctx context.Context, p ScreenPoint) error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return ErrNotEditing
	}
	trackingID := s.dragID
	s.dragID = ""
	s.mu.Unlock()

	if trackingID == "" {
		return ErrNoDrag
	}

	loc, err := s.ScreenToGeo(p)
	if err != nil {
		s.logger.Warn("Drag aborted", "parcel", trackingID, "error", err)
		return err
	}

	s.logger.Info("Moving parcel", "parcel", trackingID, "lat", loc.Lat, "lng", loc.Lng)
	return s.emitLocation(ctx, trackingID, loc)
}

// PlaceAt emits a location update for a parcel at the clicked point.
func (s *Session) PlaceAt(ctx context.Context, trackingID string, p ScreenPoint) error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return ErrNotEditing
	}
	s.mu.Unlock()

	loc, err := s.ScreenToGeo(p)
	if err != nil {
		return err
	}
	return s.emitLocation(ctx, trackingID, loc)
}

// SetStatus emits a status update for a parcel.
func (s *Session) SetStatus(ctx context.Context, trackingID, status string) error {
	if !s.Active() {
		return ErrNotEditing
	}
	return s.sink.UpdateParcelStatus(ctx, trackingID, status)
}

func (s *Session) emitLocation(ctx context.Context, trackingID string, loc core.GeoPoint) error {
	if !s.Active() {
		return ErrNotEditing
	}
	return s.sink.UpdateParcelLocation(ctx, trackingID, loc)
}
