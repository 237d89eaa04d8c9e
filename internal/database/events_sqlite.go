package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/account-service/internal/models"
	"github.com/jmoiron/sqlx"
)

type eventRow struct {
	ID        string         `db:"id"`
	Type      string         `db:"type"`
	Level     string         `db:"level"`
	Message   string         `db:"message"`
	UserID    sql.NullString `db:"user_id"`
	CreatedAt string         `db:"created_at"`
}

// EventStore persists audit events in SQLite.
type EventStore struct {
	db *sqlx.DB
}

// NewEventStore creates an EventStore over an open, migrated database.
func NewEventStore(db *sqlx.DB) *EventStore {
	return &EventStore{db: db}
}

// Insert stores event, filling in its ID and timestamp when unset.
func (s *EventStore) Insert(ctx context.Context, event *models.Event) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO events (id, type, level, message, user_id, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		event.ID, event.Type, event.Level, event.Message, event.UserID, formatTime(event.CreatedAt))
	return err
}

// Recent returns up to limit events, newest first.
func (s *EventStore) Recent(ctx context.Context, limit int) ([]models.Event, error) {
	var rows []eventRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT id, type, level, message, user_id, created_at FROM events ORDER BY created_at DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}

	events := make([]models.Event, 0, len(rows))
	for _, r := range rows {
		event := models.Event{
			ID:        r.ID,
			Type:      r.Type,
			Level:     r.Level,
			Message:   r.Message,
			CreatedAt: parseTime(r.CreatedAt),
		}
		if r.UserID.Valid {
			uid := r.UserID.String
			event.UserID = &uid
		}
		events = append(events, event)
	}
	return events, nil
}

// DeleteBefore removes events created before cutoff and reports how many were removed.
func (s *EventStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM events WHERE created_at < ?", formatTime(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
