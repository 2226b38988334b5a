package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/hack3rvirus/parcel-tracker/internal/cache"
	"github.com/hack3rvirus/parcel-tracker/internal/channel"
	"github.com/hack3rvirus/parcel-tracker/internal/logging"
	"github.com/hack3rvirus/parcel-tracker/pkg/core"
	"github.com/hack3rvirus/parcel-tracker/pkg/streaming"
)

// Hub fans marker updates out to connected browser clients. New clients
// immediately receive the current marker set so the map renders without
// waiting for the next snapshot.
type Hub struct {
	logManager *logging.SlogManager
	markers    *cache.MarkerCache
	upgrader   websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewHub creates a hub serving marker sets from the given cache.
func NewHub(logManager *logging.SlogManager, markers *cache.MarkerCache, checkOrigin func(*http.Request) bool) *Hub {
	return &Hub{
		logManager: logManager,
		markers:    markers,
		upgrader:   websocket.Upgrader{CheckOrigin: checkOrigin},
		clients:    make(map[*websocket.Conn]struct{}),
		stopChan:   make(chan struct{}),
	}
}

// Run broadcasts a marker update for every accepted snapshot until the
// subscription closes or Stop is called.
func (h *Hub) Run(sub channel.Receiver[core.Snapshot]) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for {
			select {
			case <-h.stopChan:
				return
			case _, ok := <-sub.Receive():
				if !ok {
					return
				}
				if update, ok := h.currentUpdate(); ok {
					h.broadcast(update)
				}
			}
		}
	}()
}

// Stop disconnects all clients and stops the broadcast goroutine.
func (h *Hub) Stop() {
	close(h.stopChan)
	h.wg.Wait()

	h.mu.Lock()
	for c := range h.clients {
		c.Close()
	}
	h.clients = make(map[*websocket.Conn]struct{})
	h.mu.Unlock()
}

// ServeWS upgrades the request and registers the client. Registration
// and the initial send happen under the broadcast lock so no broadcast
// can write to the connection concurrently.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logManager.Logger().Error("Websocket upgrade failed", "error", err)
		return
	}

	update, ok := h.currentUpdate()

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	if ok {
		if err := conn.WriteJSON(update); err != nil {
			delete(h.clients, conn)
			h.mu.Unlock()
			conn.Close()
			return
		}
	}
	h.mu.Unlock()

	go h.readPump(conn)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) currentUpdate() (streaming.MarkerUpdate, bool) {
	set, seq, ok := h.markers.Get()
	if !ok {
		return streaming.MarkerUpdate{}, false
	}
	data, err := json.Marshal(set)
	if err != nil {
		h.logManager.Logger().Error("Failed to marshal marker set", "error", err)
		return streaming.MarkerUpdate{}, false
	}
	return streaming.MarkerUpdate{Type: "markers", Seq: seq, Data: data}, true
}

func (h *Hub) broadcast(update streaming.MarkerUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if err := c.WriteJSON(update); err != nil {
			c.Close()
			delete(h.clients, c)
		}
	}
}

func (h *Hub) remove(c *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.Close()
}

func (h *Hub) readPump(c *websocket.Conn) {
	defer h.remove(c)
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
	}
}
