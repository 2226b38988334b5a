// pkg/core/parcel.go
package core

import (
	"encoding/json"
	"time"
)

// TrackingEvent is one entry in a parcel's delivery history.
type TrackingEvent struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Location    string    `json:"location"`
	Description string    `json:"description,omitempty"`
}

// Parcel is a parcel record as served by the backend.
// Raw preserves the original JSON so update calls can pass the record
// through without re-deriving fields this package doesn't model.
type Parcel struct {
	ID                string          `json:"id"`
	TrackingID        string          `json:"tracking_id"`
	Status            string          `json:"status"`
	Location          *GeoPoint       `json:"location,omitempty"`
	Sender            string          `json:"sender,omitempty"`
	Receiver          string          `json:"receiver,omitempty"`
	Origin            string          `json:"origin,omitempty"`
	Destination       string          `json:"destination,omitempty"`
	CurrentLocation   string          `json:"current_location,omitempty"`
	EstimatedDelivery time.Time       `json:"estimated_delivery,omitempty"`
	History           []TrackingEvent `json:"history,omitempty"`
	Raw               json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes a parcel and keeps the raw record alongside it.
func (p *Parcel) UnmarshalJSON(data []byte) error {
	type alias Parcel
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*p = Parcel(a)
	p.Raw = append(p.Raw[:0], data...)
	return nil
}
