package model

import "time"

// Status is a health state announced by an adapter instance.
type Status string

// StatusOnline and StatusOffline are the only statuses ever emitted.
// An instance that has not been checked yet is implicitly unknown.
const (
	StatusOnline  Status = "ONLINE"
	StatusOffline Status = "OFFLINE"
)

// StatusEvent is a recorded ONLINE/OFFLINE emission.
type StatusEvent struct {
	// ID is the unique identifier for this event record.
	ID string `json:"id" db:"id"`

	// InstanceID identifies the adapter instance that emitted the event.
	InstanceID string `json:"instance_id" db:"instance_id"`

	Status Status `json:"status" db:"status"`

	// Message carries the failure text for OFFLINE events.
	Message string `json:"message" db:"message"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
