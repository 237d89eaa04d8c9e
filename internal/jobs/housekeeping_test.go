package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/isdelr/account-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEvents struct {
	olderThan []time.Duration
	err       error
}

func (f *fakeEvents) CreateEvent(context.Context, string, string, string, *string) {}

func (f *fakeEvents) GetRecentEvents(context.Context, int) ([]models.Event, error) {
	return nil, nil
}

func (f *fakeEvents) PruneEvents(_ context.Context, olderThan time.Duration) (int64, error) {
	f.olderThan = append(f.olderThan, olderThan)
	return 3, f.err
}

func TestNewHousekeeper_RejectsBadSchedule(t *testing.T) {
	_, err := NewHousekeeper("not a cron expression", time.Hour, &fakeEvents{})
	assert.Error(t, err)
}

func TestHousekeeper_PruneUsesRetention(t *testing.T) {
	events := &fakeEvents{}
	h, err := NewHousekeeper("0 3 * * *", 48*time.Hour, events)
	require.NoError(t, err)

	h.PruneEvents(context.Background())
	require.Len(t, events.olderThan, 1)
	assert.Equal(t, 48*time.Hour, events.olderThan[0])
}

func TestHousekeeper_PruneErrorIsLogged(t *testing.T) {
	events := &fakeEvents{err: errors.New("db down")}
	h, err := NewHousekeeper("@hourly", time.Hour, events)
	require.NoError(t, err)

	assert.NotPanics(t, func() { h.PruneEvents(context.Background()) })
}

func TestHousekeeper_StartStop(t *testing.T) {
	h, err := NewHousekeeper("@every 1h", time.Hour, &fakeEvents{})
	require.NoError(t, err)

	h.Start()
	require.Len(t, h.cron.Entries(), 1)
	assert.False(t, h.cron.Entries()[0].Next.IsZero())
	h.Stop()
}
