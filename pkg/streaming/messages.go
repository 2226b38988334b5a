package streaming

import (
	"encoding/json"

	"github.com/hack3rvirus/parcel-tracker/pkg/core"
)

// Message type constants for the dashboard channel.
const (
	TypeNewParcel    = "new_parcel"
	TypeParcelUpdate = "parcel_update"
	TypeHeartbeat    = "heartbeat"
)

// Envelope wraps all messages received on the dashboard channel.
// Data is left raw so heartbeats (which carry no parcel) decode cleanly.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Parcel decodes the envelope payload as a parcel record.
func (e *Envelope) Parcel() (*core.Parcel, error) {
	var p core.Parcel
	if err := json.Unmarshal(e.Data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Heartbeat is the periodic keepalive sent by the dashboard endpoint.
type Heartbeat struct {
	Type              string `json:"type"` // always "heartbeat"
	Timestamp         string `json:"timestamp"`
	ActiveConnections int    `json:"active_connections"`
}

// MarkerUpdate is the message re-broadcast to browser clients whenever
// the rendered marker set changes.
type MarkerUpdate struct {
	Type string          `json:"type"` // always "markers"
	Seq  uint64          `json:"seq"`
	Data json.RawMessage `json:"data"`
}
