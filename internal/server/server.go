// Package server exposes the tracking portal's HTTP and websocket
// surface: marker sets, dashboard stats, parcel lookups and
// nearest-driver queries.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/hack3rvirus/parcel-tracker/internal/cache"
	"github.com/hack3rvirus/parcel-tracker/internal/logging"
	"github.com/hack3rvirus/parcel-tracker/internal/marker"
	"github.com/hack3rvirus/parcel-tracker/internal/reconcile"
	"github.com/hack3rvirus/parcel-tracker/internal/session"
	"github.com/hack3rvirus/parcel-tracker/internal/spatial"
	"github.com/hack3rvirus/parcel-tracker/pkg/core"
	"github.com/hack3rvirus/parcel-tracker/pkg/edit"
)

// Dependencies holds all dependencies for the HTTP server.
type Dependencies struct {
	LogManager  *logging.SlogManager
	EntityCache *cache.EntityCache
	MarkerCache *cache.MarkerCache
	Loop        *reconcile.Loop
	Spatial     *spatial.Index

	// Mutator and Session enable the write endpoints; with either nil
	// the server is read-only.
	Mutator edit.MutationSink
	Session *session.Context
}

// Options configures the listener.
type Options struct {
	Listen         string
	AllowedOrigins []string
}

// Server is the portal's HTTP front.
type Server struct {
	deps Dependencies
	opts Options
	hub  *Hub
	srv  *http.Server
}

// New creates a server with all routes registered.
func New(deps Dependencies, opts Options) *Server {
	s := &Server{
		deps: deps,
		opts: opts,
	}
	s.hub = NewHub(deps.LogManager, deps.MarkerCache, s.checkOrigin)

	router := mux.NewRouter()
	router.HandleFunc("/healthcheck", s.handleHealthcheck).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/markers", s.handleMarkers).Methods(http.MethodGet)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	api.HandleFunc("/parcels", s.handleParcels).Methods(http.MethodGet)
	api.HandleFunc("/parcels/{id}", s.handleParcel).Methods(http.MethodGet)
	api.HandleFunc("/drivers/nearest", s.handleNearestDriver).Methods(http.MethodGet)
	if deps.Mutator != nil && deps.Session != nil {
		api.HandleFunc("/parcels/{id}/location", s.handleUpdateLocation).Methods(http.MethodPut)
		api.HandleFunc("/parcels/{id}/status", s.handleUpdateStatus).Methods(http.MethodPut)
	}

	router.HandleFunc("/ws", s.hub.ServeWS)

	cors := handlers.CORS(
		handlers.AllowedOrigins(opts.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPut, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)

	s.srv = &http.Server{
		Addr:         opts.Listen,
		Handler:      cors(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	return s
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Hub returns the websocket hub so it can be wired to a snapshot
// subscription.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	go func() {
		s.deps.LogManager.Logger().Info("HTTP server listening", "addr", s.opts.Listen)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.deps.LogManager.Logger().Error("HTTP server failed", "error", err)
		}
	}()
}

// Stop shuts down the listener and disconnects websocket clients.
func (s *Server) Stop(ctx context.Context) error {
	s.hub.Stop()
	return s.srv.Shutdown(ctx)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.opts.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.deps.LogManager.Logger().Error("Failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealthcheck(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// markersResponse pairs a marker set with the snapshot sequence it was
// derived from.
type markersResponse struct {
	Seq     uint64     `json:"seq"`
	Markers marker.Set `json:"markers"`
}

func (s *Server) handleMarkers(w http.ResponseWriter, r *http.Request) {
	if focus := r.URL.Query().Get("focus"); focus != "" {
		parcel, ok := s.deps.EntityCache.GetParcel(focus)
		if !ok {
			s.writeError(w, http.StatusNotFound, "parcel not found")
			return
		}
		_, seq, _ := s.deps.MarkerCache.Get()
		set := marker.BuildSet(s.deps.EntityCache.Drivers(), nil, &parcel)
		s.writeJSON(w, http.StatusOK, markersResponse{Seq: seq, Markers: set})
		return
	}

	set, seq, ok := s.deps.MarkerCache.Get()
	if !ok {
		s.writeError(w, http.StatusServiceUnavailable, "no snapshot yet")
		return
	}
	s.writeJSON(w, http.StatusOK, markersResponse{Seq: seq, Markers: set})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.deps.Loop.Current()
	if !ok {
		s.writeError(w, http.StatusServiceUnavailable, "no snapshot yet")
		return
	}
	s.writeJSON(w, http.StatusOK, snap.Stats())
}

func (s *Server) handleParcels(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.deps.EntityCache.Parcels())
}

func (s *Server) handleParcel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	parcel, ok := s.deps.EntityCache.GetParcel(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "parcel not found")
		return
	}
	s.writeJSON(w, http.StatusOK, parcel)
}

func (s *Server) handleNearestDriver(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	lat, errLat := strconv.ParseFloat(query.Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(query.Get("lng"), 64)
	if errLat != nil || errLng != nil {
		s.writeError(w, http.StatusBadRequest, "lat and lng are required")
		return
	}

	count := 1
	if raw := query.Get("count"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			s.writeError(w, http.StatusBadRequest, "invalid count")
			return
		}
		count = parsed
	}

	drivers := s.deps.Spatial.NearestDrivers(core.GeoPoint{Lat: lat, Lng: lng}, count)
	s.writeJSON(w, http.StatusOK, drivers)
}

func (s *Server) handleUpdateLocation(w http.ResponseWriter, r *http.Request) {
	if !s.deps.Session.CanEdit() {
		s.writeError(w, http.StatusForbidden, "editing not permitted")
		return
	}

	id := mux.Vars(r)["id"]
	if _, ok := s.deps.EntityCache.GetParcel(id); !ok {
		s.writeError(w, http.StatusNotFound, "parcel not found")
		return
	}

	var loc core.GeoPoint
	if err := json.NewDecoder(r.Body).Decode(&loc); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid location body")
		return
	}

	if err := s.deps.Mutator.UpdateParcelLocation(r.Context(), id, loc); err != nil {
		s.deps.LogManager.Logger().Error("Location update failed", "trackingId", id, "error", err)
		s.writeError(w, http.StatusBadGateway, "location update failed")
		return
	}

	// The edit is observed through the next snapshot, same as any other
	// backend mutation.
	s.deps.Loop.Invalidate()
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	if !s.deps.Session.CanEdit() {
		s.writeError(w, http.StatusForbidden, "editing not permitted")
		return
	}

	id := mux.Vars(r)["id"]
	if _, ok := s.deps.EntityCache.GetParcel(id); !ok {
		s.writeError(w, http.StatusNotFound, "parcel not found")
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Status == "" {
		s.writeError(w, http.StatusBadRequest, "invalid status body")
		return
	}

	if err := s.deps.Mutator.UpdateParcelStatus(r.Context(), id, body.Status); err != nil {
		s.deps.LogManager.Logger().Error("Status update failed", "trackingId", id, "error", err)
		s.writeError(w, http.StatusBadGateway, "status update failed")
		return
	}

	s.deps.Loop.Invalidate()
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}
