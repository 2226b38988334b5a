package edit

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/hack3rvirus/parcel-tracker/internal/session"
	"github.com/hack3rvirus/parcel-tracker/pkg/core"
)

const epsilon = 1e-9

type recordedMutation struct {
	trackingID string
	loc        *core.GeoPoint
	status     string
}

type fakeSink struct {
	mu        sync.Mutex
	mutations []recordedMutation
}

func (f *fakeSink) UpdateParcelLocation(ctx context.Context, trackingID string, loc core.GeoPoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutations = append(f.mutations, recordedMutation{trackingID: trackingID, loc: &loc})
	return nil
}

func (f *fakeSink) UpdateParcelStatus(ctx context.Context, trackingID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutations = append(f.mutations, recordedMutation{trackingID: trackingID, status: status})
	return nil
}

func (f *fakeSink) all() []recordedMutation {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]recordedMutation, len(f.mutations))
	copy(cp, f.mutations)
	return cp
}

func newActiveSession(t *testing.T, sink MutationSink) *Session {
	t.Helper()
	s := NewSession(sink, session.NewContext(session.RoleAdmin, "key"), nil)
	if err := s.Enter(); err != nil {
		t.Fatalf("Enter: %v", err)
	}
	return s
}

func TestEnter_RequiresCapability(t *testing.T) {
	s := NewSession(&fakeSink{}, session.NewContext(session.RoleViewer, "key"), nil)

	if err := s.Enter(); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	if s.Active() {
		t.Error("session must stay inactive after refused Enter")
	}
}

func TestScreenToGeo_CenterOfViewport(t *testing.T) {
	s := newActiveSession(t, &fakeSink{})
	s.SetViewport(Viewport{Width: 200, Height: 200})

	g, err := s.ScreenToGeo(ScreenPoint{X: 100, Y: 100})
	if err != nil {
		t.Fatalf("ScreenToGeo: %v", err)
	}

	if math.Abs(g.Lat) > epsilon || math.Abs(g.Lng) > epsilon {
		t.Errorf("viewport center should map to (0,0), got (%f,%f)", g.Lat, g.Lng)
	}
}

func TestScreenToGeo_ClampsOutsideViewport(t *testing.T) {
	s := newActiveSession(t, &fakeSink{})
	s.SetViewport(Viewport{Width: 200, Height: 200})

	g, err := s.ScreenToGeo(ScreenPoint{X: -40, Y: 500})
	if err != nil {
		t.Fatalf("ScreenToGeo: %v", err)
	}

	if g.Lng != -180 {
		t.Errorf("expected lng clamped to -180, got %f", g.Lng)
	}
	if g.Lat != -90 {
		t.Errorf("expected lat clamped to -90, got %f", g.Lat)
	}
}

func TestScreenToGeo_NoViewport(t *testing.T) {
	s := newActiveSession(t, &fakeSink{})

	if _, err := s.ScreenToGeo(ScreenPoint{X: 1, Y: 1}); !errors.Is(err, ErrViewportUnavailable) {
		t.Errorf("expected ErrViewportUnavailable, got %v", err)
	}
}

func TestCompleteDrag_EmitsLocationIntent(t *testing.T) {
	sink := &fakeSink{}
	s := newActiveSession(t, sink)
	s.SetViewport(Viewport{Width: 200, Height: 200})

	if err := s.BeginDrag("RD001"); err != nil {
		t.Fatalf("BeginDrag: %v", err)
	}
	if err := s.CompleteDrag(context.Background(), ScreenPoint{X: 100, Y: 100}); err != nil {
		t.Fatalf("CompleteDrag: %v", err)
	}

	muts := sink.all()
	if len(muts) != 1 {
		t.Fatalf("expected 1 mutation, got %d", len(muts))
	}
	if muts[0].trackingID != "RD001" {
		t.Errorf("expected mutation for RD001, got %s", muts[0].trackingID)
	}
	if muts[0].loc == nil {
		t.Fatal("expected location mutation")
	}
	if math.Abs(muts[0].loc.Lat) > epsilon || math.Abs(muts[0].loc.Lng) > epsilon {
		t.Errorf("expected drop at (0,0), got (%f,%f)", muts[0].loc.Lat, muts[0].loc.Lng)
	}

	if _, dragging := s.Dragging(); dragging {
		t.Error("drag should end after CompleteDrag")
	}
}

func TestCompleteDrag_ViewportUnavailableAborts(t *testing.T) {
	sink := &fakeSink{}
	s := newActiveSession(t, sink)
	// No viewport set.

	if err := s.BeginDrag("RD001"); err != nil {
		t.Fatalf("BeginDrag: %v", err)
	}
	err := s.CompleteDrag(context.Background(), ScreenPoint{X: 100, Y: 100})
	if !errors.Is(err, ErrViewportUnavailable) {
		t.Fatalf("expected ErrViewportUnavailable, got %v", err)
	}

	if len(sink.all()) != 0 {
		t.Error("aborted drag must not emit a mutation")
	}
	if _, dragging := s.Dragging(); dragging {
		t.Error("aborted drag should still end")
	}
}

func TestCompleteDrag_WithoutBegin(t *testing.T) {
	s := newActiveSession(t, &fakeSink{})
	s.SetViewport(Viewport{Width: 200, Height: 200})

	if err := s.CompleteDrag(context.Background(), ScreenPoint{}); !errors.Is(err, ErrNoDrag) {
		t.Errorf("expected ErrNoDrag, got %v", err)
	}
}

func TestCancelDrag(t *testing.T) {
	sink := &fakeSink{}
	s := newActiveSession(t, sink)
	s.SetViewport(Viewport{Width: 200, Height: 200})

	s.BeginDrag("RD001")
	s.CancelDrag()

	if err := s.CompleteDrag(context.Background(), ScreenPoint{}); !errors.Is(err, ErrNoDrag) {
		t.Errorf("expected ErrNoDrag after cancel, got %v", err)
	}
	if len(sink.all()) != 0 {
		t.Error("canceled drag must not emit a mutation")
	}
}

func TestPlaceAt(t *testing.T) {
	sink := &fakeSink{}
	s := newActiveSession(t, sink)
	s.SetViewport(Viewport{Width: 400, Height: 400})

	if err := s.PlaceAt(context.Background(), "RD007", ScreenPoint{X: 200, Y: 200}); err != nil {
		t.Fatalf("PlaceAt: %v", err)
	}

	muts := sink.all()
	if len(muts) != 1 || muts[0].trackingID != "RD007" || muts[0].loc == nil {
		t.Fatalf("unexpected mutations: %+v", muts)
	}
}

func TestSetStatus(t *testing.T) {
	sink := &fakeSink{}
	s := newActiveSession(t, sink)

	if err := s.SetStatus(context.Background(), "RD001", "delivered"); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	muts := sink.all()
	if len(muts) != 1 || muts[0].status != "delivered" {
		t.Fatalf("unexpected mutations: %+v", muts)
	}
}

func TestExit_NoIntentsAfterTeardown(t *testing.T) {
	sink := &fakeSink{}
	s := newActiveSession(t, sink)
	s.SetViewport(Viewport{Width: 200, Height: 200})
	s.BeginDrag("RD001")

	s.Exit()

	if err := s.CompleteDrag(context.Background(), ScreenPoint{X: 100, Y: 100}); !errors.Is(err, ErrNotEditing) {
		t.Errorf("expected ErrNotEditing, got %v", err)
	}
	if err := s.PlaceAt(context.Background(), "RD001", ScreenPoint{}); !errors.Is(err, ErrNotEditing) {
		t.Errorf("expected ErrNotEditing, got %v", err)
	}
	if err := s.SetStatus(context.Background(), "RD001", "delivered"); !errors.Is(err, ErrNotEditing) {
		t.Errorf("expected ErrNotEditing, got %v", err)
	}

	if len(sink.all()) != 0 {
		t.Error("no mutation may be emitted after Exit")
	}
}

func TestSetViewport_RejectsDegenerate(t *testing.T) {
	s := newActiveSession(t, &fakeSink{})

	s.SetViewport(Viewport{Width: 0, Height: 100})
	if _, err := s.ScreenToGeo(ScreenPoint{}); !errors.Is(err, ErrViewportUnavailable) {
		t.Errorf("zero-width viewport should be unavailable, got %v", err)
	}
}
