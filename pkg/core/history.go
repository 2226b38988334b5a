package core

import "time"

// Mutation sources recorded with history events.
const (
	SourceStream = "stream"
	SourcePoll   = "poll"
	SourceEdit   = "edit"
	SourceGPS    = "gps"
)

// StatusChange records a parcel moving from one status to another.
type StatusChange struct {
	TrackingID string    `json:"tracking_id"`
	OldStatus  string    `json:"old_status"`
	NewStatus  string    `json:"new_status"`
	ChangedAt  time.Time `json:"changed_at"`
	Source     string    `json:"source"`
}

// LocationUpdate records an entity position change.
type LocationUpdate struct {
	EntityID  string     `json:"entity_id"`
	Kind      EntityKind `json:"kind"`
	Location  GeoPoint   `json:"location"`
	UpdatedAt time.Time  `json:"updated_at"`
	Source    string     `json:"source"`
}
