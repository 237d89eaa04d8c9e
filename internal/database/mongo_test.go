package database

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/isdelr/account-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
)

// Runs against a live server only when MONGO_TEST_URI is set.
func newTestMongo(t *testing.T) *mongo.Database {
	t.Helper()
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}
	ctx := context.Background()
	client, err := ConnectMongo(ctx, uri)
	require.NoError(t, err)

	db := client.Database(fmt.Sprintf("accounts_test_%d", time.Now().UnixNano()))
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	require.NoError(t, EnsureMongoIndexes(ctx, db))
	return db
}

func TestMongoUserStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMongoUserStore(newTestMongo(t))

	u := &models.User{Name: "Ada", Email: "ada@example.com", PasswordHash: "hash"}
	require.NoError(t, store.Create(ctx, u))
	assert.Len(t, u.ID, 24)

	err := store.Create(ctx, &models.User{Name: "Other", Email: "ada@example.com", PasswordHash: "h"})
	assert.ErrorIs(t, err, ErrDuplicate)

	got, err := store.FindByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "hash", got.PasswordHash)

	updated, err := store.Update(ctx, u.ID, models.UserUpdate{Name: strPtr("Ada L.")})
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", updated.Name)

	_, err = store.FindByID(ctx, "not-an-object-id")
	assert.ErrorIs(t, err, ErrNotFound)

	removed, err := store.Delete(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", removed.Name)

	_, err = store.Delete(ctx, u.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMongoEventStore_RecentAndPrune(t *testing.T) {
	ctx := context.Background()
	store := NewMongoEventStore(newTestMongo(t))
	now := time.Now().UTC()

	require.NoError(t, store.Insert(ctx, &models.Event{Type: "a", Level: "info", Message: "old", CreatedAt: now.Add(-48 * time.Hour)}))
	require.NoError(t, store.Insert(ctx, &models.Event{Type: "b", Level: "info", Message: "new", CreatedAt: now}))

	events, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "new", events[0].Message)

	n, err := store.DeleteBefore(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
