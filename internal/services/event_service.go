package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/isdelr/account-service/internal/models"
	"github.com/isdelr/account-service/internal/websocket"
	"github.com/rs/zerolog/log"
)

// EventServiceProvider defines the interface for event services.
type EventServiceProvider interface {
	CreateEvent(ctx context.Context, eventType, level, message string, userID *string)
	GetRecentEvents(ctx context.Context, limit int) ([]models.Event, error)
	PruneEvents(ctx context.Context, olderThan time.Duration) (int64, error)
}

// EventStore persists audit events.
type EventStore interface {
	Insert(ctx context.Context, event *models.Event) error
	Recent(ctx context.Context, limit int) ([]models.Event, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Publisher receives every recorded event, already encoded as JSON.
type Publisher interface {
	Publish(message []byte)
}

// EventService records account activity and fans it out to live subscribers.
type EventService struct {
	store     EventStore
	publisher Publisher
}

// NewEventService creates a new EventService. publisher may be nil.
func NewEventService(store EventStore, publisher Publisher) *EventService {
	return &EventService{store: store, publisher: publisher}
}

// CreateEvent stores a new event and broadcasts it. Failures are logged, not returned.
func (s *EventService) CreateEvent(ctx context.Context, eventType, level, message string, userID *string) {
	event := models.Event{
		Type:    eventType,
		Level:   level,
		Message: message,
		UserID:  userID,
	}
	if err := s.store.Insert(ctx, &event); err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("Failed to record event")
		return
	}

	if s.publisher == nil {
		return
	}
	payload, err := json.Marshal(websocket.Message{Action: "event", Payload: event})
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode event for broadcast")
		return
	}
	s.publisher.Publish(payload)
}

// GetRecentEvents retrieves the most recent events, newest first.
func (s *EventService) GetRecentEvents(ctx context.Context, limit int) ([]models.Event, error) {
	events, err := s.store.Recent(ctx, limit)
	if err != nil {
		return nil, newError(KindInternal, "failed to load events", err)
	}
	return events, nil
}

// PruneEvents deletes events older than olderThan.
func (s *EventService) PruneEvents(ctx context.Context, olderThan time.Duration) (int64, error) {
	return s.store.DeleteBefore(ctx, time.Now().Add(-olderThan))
}
