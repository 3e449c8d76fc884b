package postgres

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SkillSwapserver/internal/domain"
)

// Runs against a real database only when APP_TEST_DB_DSN is set.
func testStores(t *testing.T) (*UsersStore, *RequestsStore) {
	t.Helper()
	dsn := os.Getenv("APP_TEST_DB_DSN")
	if dsn == "" {
		t.Skip("APP_TEST_DB_DSN not set")
	}
	ctx := context.Background()
	pool, err := Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, Migrate(ctx, pool))
	return NewUsersStore(pool), NewRequestsStore(pool)
}

func TestRequestsStoreVersionedUpdate(t *testing.T) {
	users, requests := testStores(t)
	ctx := context.Background()
	suffix := uuid.NewString()[:8]
	alice, err := users.CreateUser(ctx, "alice-"+suffix+"@example.com", "Alice", "hash")
	require.NoError(t, err)
	bob, err := users.CreateUser(ctx, "bob-"+suffix+"@example.com", "Bob", "hash")
	require.NoError(t, err)

	_, err = users.CreateUser(ctx, alice.ID, "Again", "hash")
	assert.ErrorIs(t, err, domain.ErrEmailTaken)

	now := time.Now().UTC()
	r, err := requests.CreateRequest(ctx, domain.Request{
		RequesterID: alice.ID, Item: "ladder", Intent: domain.IntentRequest,
		Status: domain.StatusOpen, CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), r.Version)

	offered, err := r.Offer(bob.ID)
	require.NoError(t, err)
	r, err = requests.UpdateRequest(ctx, offered, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), r.Version)

	_, err = requests.UpdateRequest(ctx, offered, nil)
	assert.ErrorIs(t, err, domain.ErrConflict)

	accepted, err := r.Accept(alice.ID)
	require.NoError(t, err)
	r, err = requests.UpdateRequest(ctx, accepted, nil)
	require.NoError(t, err)

	done, err := r.Complete(alice.ID)
	require.NoError(t, err)
	award := &domain.KarmaAward{UserID: bob.ID, Amount: domain.CompletionKarmaBonus}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = requests.UpdateRequest(ctx, done, award)
		}()
	}
	wg.Wait()

	got, err := users.GetUserByID(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultKarma+domain.CompletionKarmaBonus, got.Karma)

	stored, err := requests.GetRequest(ctx, r.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.HelperID)
	assert.Equal(t, bob.ID, stored.CompletedBy)
	forBob, err := requests.ListRequestsForUser(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, forBob, 1)
	assert.Equal(t, r.ID, forBob[0].ID)

	_, err = requests.GetRequest(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, requests.DeleteRequest(ctx, uuid.NewString(), 1), domain.ErrNotFound)
}
