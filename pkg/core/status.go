// pkg/core/status.go
package core

import "strings"

// StatusClass is the closed classification of backend status strings.
// The backend sends free-form strings; they are decoded into this enum
// once at the ingestion boundary and everything downstream switches on
// the class, not the string.
type StatusClass string

const (
	StatusActive  StatusClass = "active"
	StatusWarning StatusClass = "warning"
	StatusError   StatusClass = "error"
	StatusUnknown StatusClass = "unknown"
)

// statusClasses maps normalized backend status strings to their class.
// Keys must be lower case with single spaces.
var statusClasses = map[string]StatusClass{
	"in transit":       StatusActive,
	"delivered":        StatusActive,
	"moving":           StatusActive,
	"on the way":       StatusActive,
	"active":           StatusActive,
	"available":        StatusActive,
	"out for delivery": StatusWarning,
	"processing":       StatusWarning,
	"pending":          StatusWarning,
	"busy":             StatusWarning,
	"failed":           StatusError,
	"cancelled":        StatusError,
	"lost":             StatusError,
}

// ClassifyStatus maps a backend status string to its StatusClass.
// Matching is case-insensitive and whitespace-normalized; anything
// unrecognized classifies as StatusUnknown.
func ClassifyStatus(status string) StatusClass {
	norm := strings.Join(strings.Fields(strings.ToLower(status)), " ")
	if class, ok := statusClasses[norm]; ok {
		return class
	}
	return StatusUnknown
}
