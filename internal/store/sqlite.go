package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/change-adapter/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// UpsertTickets inserts or replaces a batch of tickets fetched from one
// instance. Tickets are keyed by (instance, change_ticket_key), falling
// back to the ticket number when the key is empty. Tickets with neither
// are skipped.
func (s *SQLiteStore) UpsertTickets(
	ctx context.Context,
	instanceID string,
	tickets []model.ChangeTicket,
	fetchedAt time.Time,
) error {
	if len(tickets) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	const query = `
		INSERT OR REPLACE INTO change_tickets (
			instance_id, ticket_key, number, description, raw_data, fetched_at
		) VALUES (?, ?, ?, ?, ?, ?)`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing upsert statement: %w", err)
	}
	defer stmt.Close()

	for _, t := range tickets {
		key := ticketKey(t)
		if key == "" {
			continue
		}

		raw, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("marshaling ticket %v: %w", t.Number, err)
		}

		_, err = stmt.ExecContext(ctx,
			instanceID, key, text(t.Number), text(t.Description),
			string(raw), fetchedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("upserting ticket %v: %w", t.Key, err)
		}
	}

	return tx.Commit()
}

// ticketRow mirrors a change_tickets row.
type ticketRow struct {
	InstanceID  string    `db:"instance_id"`
	TicketKey   string    `db:"ticket_key"`
	Number      string    `db:"number"`
	Description string    `db:"description"`
	RawData     string    `db:"raw_data"`
	FetchedAt   time.Time `db:"fetched_at"`
}

// GetTickets retrieves tickets matching the filter, most recently fetched
// first, then by ticket number.
func (s *SQLiteStore) GetTickets(
	ctx context.Context,
	filter TicketFilter,
) ([]model.StoredTicket, error) {
	var conditions []string
	var args []interface{}

	if filter.InstanceID != nil {
		conditions = append(conditions, "instance_id = ?")
		args = append(args, *filter.InstanceID)
	}
	if filter.Query != nil && *filter.Query != "" {
		conditions = append(conditions, "(number LIKE ? OR description LIKE ?)")
		q := "%" + *filter.Query + "%"
		args = append(args, q, q)
	}

	query := "SELECT * FROM change_tickets"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY fetched_at DESC, number ASC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	var rows []ticketRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying tickets: %w", err)
	}

	tickets := make([]model.StoredTicket, 0, len(rows))
	for _, r := range rows {
		st, err := r.toStored()
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, st)
	}
	return tickets, nil
}

// CountTickets returns how many tickets are stored for an instance.
func (s *SQLiteStore) CountTickets(ctx context.Context, instanceID string) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		"SELECT COUNT(*) FROM change_tickets WHERE instance_id = ?", instanceID,
	)
	if err != nil {
		return 0, fmt.Errorf("counting tickets for %s: %w", instanceID, err)
	}
	return n, nil
}

// RecordStatus appends a status event. A missing ID is generated and a
// zero CreatedAt is set to now.
func (s *SQLiteStore) RecordStatus(ctx context.Context, ev model.StatusEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO status_events (id, instance_id, status, message, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		ev.ID, ev.InstanceID, string(ev.Status), ev.Message, ev.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording %s event for %s: %w", ev.Status, ev.InstanceID, err)
	}
	return nil
}

// GetStatusEvents returns the most recent status events of an instance,
// newest first. A non-positive limit returns all of them.
func (s *SQLiteStore) GetStatusEvents(
	ctx context.Context,
	instanceID string,
	limit int,
) ([]model.StatusEvent, error) {
	query := `SELECT id, instance_id, status, message, created_at
		FROM status_events WHERE instance_id = ?
		ORDER BY created_at DESC, rowid DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	var events []model.StatusEvent
	if err := s.db.SelectContext(ctx, &events, query, instanceID); err != nil {
		return nil, fmt.Errorf("querying status events for %s: %w", instanceID, err)
	}
	return events, nil
}

func (r ticketRow) toStored() (model.StoredTicket, error) {
	var t model.ChangeTicket
	dec := json.NewDecoder(strings.NewReader(r.RawData))
	dec.UseNumber()
	if err := dec.Decode(&t); err != nil {
		return model.StoredTicket{}, fmt.Errorf(
			"unmarshaling ticket %s/%s: %w", r.InstanceID, r.TicketKey, err,
		)
	}

	return model.StoredTicket{
		InstanceID: r.InstanceID,
		Ticket:     t,
		FetchedAt:  r.FetchedAt,
	}, nil
}

// text renders a pass-through field for an indexed TEXT column.
// ticketKey returns the row key of t: its sys_id, or its number prefixed
// with "number:" so it cannot collide with a real sys_id.
func ticketKey(t model.ChangeTicket) string {
	if key := text(t.Key); key != "" {
		return key
	}
	if number := text(t.Number); number != "" {
		return "number:" + number
	}
	return ""
}

func text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
