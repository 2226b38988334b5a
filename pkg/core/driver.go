// pkg/core/driver.go
package core

// Driver is a fleet driver record as served by the backend.
type Driver struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Phone           string    `json:"phone,omitempty"`
	VehicleType     string    `json:"vehicle_type,omitempty"`
	CurrentLocation *GeoPoint `json:"current_location,omitempty"`
	Status          string    `json:"status"`
}
