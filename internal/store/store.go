package store

import (
	"context"
	"time"

	"github.com/nhle/change-adapter/internal/model"
)

// TicketFilter controls filtering and pagination for ticket queries.
type TicketFilter struct {
	InstanceID *string
	Query      *string // matches ticket number or description
	Limit      int
	Offset     int
}

// Store defines the persistence interface for fetched change tickets and
// the history of emitted status events.
type Store interface {
	// === Tickets ===

	UpsertTickets(
		ctx context.Context,
		instanceID string,
		tickets []model.ChangeTicket,
		fetchedAt time.Time,
	) error
	GetTickets(ctx context.Context, filter TicketFilter) ([]model.StoredTicket, error)
	CountTickets(ctx context.Context, instanceID string) (int, error)

	// === Status events ===

	RecordStatus(ctx context.Context, ev model.StatusEvent) error
	GetStatusEvents(
		ctx context.Context,
		instanceID string,
		limit int,
	) ([]model.StatusEvent, error)
}
