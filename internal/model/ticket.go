package model

import "time"

// ChangeTicket is the normalized representation of a ServiceNow change
// request. Each field is a rename of the corresponding source field; values
// are carried exactly as decoded from the response (usually strings, but a
// source that sends a bool or null keeps it).
type ChangeTicket struct {
	// Number is the human-facing ticket number (source field "number").
	Number any `json:"change_ticket_number"`

	Active any `json:"active"`

	Priority any `json:"priority"`

	Description any `json:"description"`

	WorkStart any `json:"work_start"`

	WorkEnd any `json:"work_end"`

	// Key is the opaque ServiceNow identifier (source field "sys_id").
	Key any `json:"change_ticket_key"`
}

// StoredTicket is a ChangeTicket as last fetched from an instance.
type StoredTicket struct {
	InstanceID string       `json:"instance_id"`
	Ticket     ChangeTicket `json:"ticket"`
	FetchedAt  time.Time    `json:"fetched_at"`
}
