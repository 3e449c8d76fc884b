package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SkillSwapserver/internal/domain"
	"SkillSwapserver/internal/store/memory"
)

type sentNotification struct {
	userID string
	n      domain.Notification
}

type recordingNotifier struct {
	mu         sync.Mutex
	notified   []sentNotification
	broadcasts int
	users      UserDirectory
}

func (r *recordingNotifier) Notify(_ context.Context, userID string, n domain.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notified = append(r.notified, sentNotification{userID: userID, n: n})
}

func (r *recordingNotifier) Broadcast(ctx context.Context, actorID string, build func(domain.User) domain.Notification) error {
	r.mu.Lock()
	r.broadcasts++
	r.mu.Unlock()
	users, err := r.users.ListUsers(ctx)
	if err != nil {
		return err
	}
	for _, u := range users {
		if u.ID != actorID {
			r.Notify(ctx, u.ID, build(u))
		}
	}
	return nil
}

func (r *recordingNotifier) sent() []sentNotification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sentNotification(nil), r.notified...)
}

func (r *recordingNotifier) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notified = nil
}

type requestFixture struct {
	store    *memory.Store
	notifier *recordingNotifier
	svc      *RequestService
}

func newRequestFixture(t *testing.T, users ...string) requestFixture {
	t.Helper()
	store := memory.New()
	for _, u := range users {
		_, err := store.CreateUser(context.Background(), u+"@example.com", u, "hash")
		require.NoError(t, err)
	}
	notifier := &recordingNotifier{users: store}
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	svc := &RequestService{
		Requests: store,
		Users:    store,
		Notifier: notifier,
		Logger:   discardLogger(),
		Now:      func() time.Time { return now },
	}
	return requestFixture{store: store, notifier: notifier, svc: svc}
}

func (f requestFixture) create(t *testing.T, requester, item string) domain.Request {
	t.Helper()
	r, err := f.svc.Create(context.Background(), requester+"@example.com", domain.RequestDraft{Item: item, Category: "tools"})
	require.NoError(t, err)
	f.notifier.reset()
	return r
}

func karma(t *testing.T, store *memory.Store, user string) int {
	t.Helper()
	u, err := store.GetUserByID(context.Background(), user+"@example.com")
	require.NoError(t, err)
	return u.Karma
}

func TestRequestServiceCreateBroadcastsToOthers(t *testing.T) {
	f := newRequestFixture(t, "alice", "bob", "carol")

	r, err := f.svc.Create(context.Background(), "alice@example.com", domain.RequestDraft{Item: " ladder ", Category: "tools"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, r.Status)
	assert.Equal(t, int64(1), r.Version)
	assert.Equal(t, domain.IntentRequest, r.Intent)
	assert.Equal(t, "ladder", r.Item)
	assert.Empty(t, r.HelperID)

	sent := f.notifier.sent()
	require.Len(t, sent, 2)
	got := map[string]domain.Notification{}
	for _, s := range sent {
		got[s.userID] = s.n
	}
	require.Contains(t, got, "bob@example.com")
	require.Contains(t, got, "carol@example.com")
	assert.NotContains(t, got, "alice@example.com")

	bob := got["bob@example.com"]
	assert.Equal(t, "New Request: alice needs ladder", bob.Text)
	assert.Equal(t, "New Request: ladder", bob.Subject)
	assert.Equal(t, "Hi bob,\n\nalice is looking for ladder.\nLog in to SkillSwap to offer help!", bob.Body)
	assert.Equal(t, r.ID, bob.RequestID)
}

func TestRequestServiceCreateUnknownRequester(t *testing.T) {
	f := newRequestFixture(t, "alice")
	_, err := f.svc.Create(context.Background(), "ghost@example.com", domain.RequestDraft{Item: "x"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 0, f.notifier.broadcasts)
}

func TestRequestServiceCreateInvalidDraft(t *testing.T) {
	f := newRequestFixture(t, "alice")
	_, err := f.svc.Create(context.Background(), "alice@example.com", domain.RequestDraft{Item: "  "})
	assert.ErrorIs(t, err, domain.ErrValidation)
	open, _ := f.svc.ListOpen(context.Background())
	assert.Empty(t, open)
}

func TestRequestServiceSelfOfferLeavesRequestUnchanged(t *testing.T) {
	f := newRequestFixture(t, "alice")
	r := f.create(t, "alice", "ladder")

	_, err := f.svc.OfferHelp(context.Background(), r.ID, "alice@example.com")
	assert.ErrorIs(t, err, domain.ErrSelfReference)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	got, err := f.store.GetRequest(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, got.Status)
	assert.Empty(t, got.HelperID)
	assert.Equal(t, r.Version, got.Version)
	assert.Empty(t, f.notifier.sent())
}

func TestRequestServiceSequentialReassignment(t *testing.T) {
	f := newRequestFixture(t, "alice", "bob", "carol")
	ctx := context.Background()
	r := f.create(t, "alice", "ladder")

	r, err := f.svc.OfferHelp(ctx, r.ID, "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingApproval, r.Status)
	assert.Equal(t, "bob@example.com", r.HelperID)

	r, err = f.svc.RejectHelp(ctx, r.ID, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, r.Status)
	assert.Empty(t, r.HelperID)

	r, err = f.svc.OfferHelp(ctx, r.ID, "carol@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingApproval, r.Status)
	assert.Equal(t, "carol@example.com", r.HelperID)
	assert.Equal(t, int64(4), r.Version)

	sent := f.notifier.sent()
	require.Len(t, sent, 3)
	assert.Equal(t, "alice@example.com", sent[0].userID)
	assert.Equal(t, "User bob has offered to help with your request: ladder", sent[0].n.Text)
	assert.Equal(t, "bob@example.com", sent[1].userID)
	assert.Equal(t, "Your offer to help alice was declined.", sent[1].n.Text)
	assert.Equal(t, "alice@example.com", sent[2].userID)
	assert.Equal(t, "User carol has offered to help with your request: ladder", sent[2].n.Text)
}

func TestRequestServiceCompleteAwardsKarmaOnce(t *testing.T) {
	f := newRequestFixture(t, "alice", "bob")
	ctx := context.Background()
	r := f.create(t, "alice", "ladder")

	_, err := f.svc.OfferHelp(ctx, r.ID, "bob@example.com")
	require.NoError(t, err)
	_, err = f.svc.AcceptHelp(ctx, r.ID, "alice@example.com")
	require.NoError(t, err)
	before := karma(t, f.store, "bob")

	done, err := f.svc.Complete(ctx, r.ID, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, done.Status)
	assert.Empty(t, done.HelperID)
	assert.Equal(t, "bob@example.com", done.CompletedBy)
	assert.Equal(t, before+domain.CompletionKarmaBonus, karma(t, f.store, "bob"))

	_, err = f.svc.Complete(ctx, r.ID, "alice@example.com")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Equal(t, before+domain.CompletionKarmaBonus, karma(t, f.store, "bob"))

	sent := f.notifier.sent()
	last := sent[len(sent)-1]
	assert.Equal(t, "bob@example.com", last.userID)
	assert.Equal(t, "Request ladder marked as COMPLETED! You earned 10 Karma points!", last.n.Text)
}

func TestRequestServiceAcceptAndReopenNotifyHelper(t *testing.T) {
	f := newRequestFixture(t, "alice", "bob")
	ctx := context.Background()
	r := f.create(t, "alice", "drill")

	_, err := f.svc.OfferHelp(ctx, r.ID, "bob@example.com")
	require.NoError(t, err)
	_, err = f.svc.AcceptHelp(ctx, r.ID, "alice@example.com")
	require.NoError(t, err)
	reopened, err := f.svc.Reopen(ctx, r.ID, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, reopened.Status)
	assert.Empty(t, reopened.HelperID)

	sent := f.notifier.sent()
	require.Len(t, sent, 3)
	assert.Equal(t, "bob@example.com", sent[1].userID)
	assert.Equal(t, "Your offer to help alice was ACCEPTED!", sent[1].n.Text)
	assert.Equal(t, "bob@example.com", sent[2].userID)
	assert.Equal(t, "The request drill was reopened by the owner (incomplete).", sent[2].n.Text)
	for _, s := range sent {
		assert.NotEmpty(t, s.n.Subject)
		assert.NotEmpty(t, s.n.Body)
	}
}

func TestRequestServiceWrongActorIsForbidden(t *testing.T) {
	f := newRequestFixture(t, "alice", "bob", "carol")
	ctx := context.Background()
	r := f.create(t, "alice", "ladder")
	_, err := f.svc.OfferHelp(ctx, r.ID, "bob@example.com")
	require.NoError(t, err)

	_, err = f.svc.AcceptHelp(ctx, r.ID, "bob@example.com")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.svc.RejectHelp(ctx, r.ID, "carol@example.com")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.ErrorIs(t, f.svc.Delete(ctx, r.ID, "bob@example.com"), domain.ErrForbidden)
}

func TestRequestServiceUnknownIDs(t *testing.T) {
	f := newRequestFixture(t, "alice", "bob")
	ctx := context.Background()

	_, err := f.svc.OfferHelp(ctx, "missing", "bob@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.svc.Complete(ctx, "missing", "alice@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	r := f.create(t, "alice", "ladder")
	_, err = f.svc.OfferHelp(ctx, r.ID, "ghost@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRequestServiceDelete(t *testing.T) {
	f := newRequestFixture(t, "alice", "bob")
	ctx := context.Background()
	r := f.create(t, "alice", "ladder")

	_, err := f.svc.OfferHelp(ctx, r.ID, "bob@example.com")
	require.NoError(t, err)
	_, err = f.svc.AcceptHelp(ctx, r.ID, "alice@example.com")
	require.NoError(t, err)
	assert.ErrorIs(t, f.svc.Delete(ctx, r.ID, "alice@example.com"), domain.ErrInvalidState)

	_, err = f.svc.Complete(ctx, r.ID, "alice@example.com")
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(ctx, r.ID, "alice@example.com"))
	_, err = f.store.GetRequest(ctx, r.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRequestServiceListMineKeepsCompletedForHelper(t *testing.T) {
	f := newRequestFixture(t, "alice", "bob")
	ctx := context.Background()
	r := f.create(t, "alice", "ladder")

	_, err := f.svc.OfferHelp(ctx, r.ID, "bob@example.com")
	require.NoError(t, err)
	_, err = f.svc.AcceptHelp(ctx, r.ID, "alice@example.com")
	require.NoError(t, err)
	_, err = f.svc.Complete(ctx, r.ID, "alice@example.com")
	require.NoError(t, err)

	mine, err := f.svc.ListMine(ctx, "bob@example.com")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, r.ID, mine[0].ID)
	assert.Equal(t, domain.StatusCompleted, mine[0].Status)
	assert.Equal(t, "bob@example.com", mine[0].CompletedBy)
}

func TestRequestServiceListings(t *testing.T) {
	f := newRequestFixture(t, "alice", "bob")
	ctx := context.Background()
	first := f.create(t, "alice", "ladder")
	f.create(t, "alice", "drill")
	bobs := f.create(t, "bob", "saw")

	_, err := f.svc.OfferHelp(ctx, first.ID, "bob@example.com")
	require.NoError(t, err)

	open, err := f.svc.ListOpen(ctx)
	require.NoError(t, err)
	assert.Len(t, open, 2)
	for _, r := range open {
		assert.Equal(t, domain.StatusOpen, r.Status)
	}

	mine, err := f.svc.ListMine(ctx, "bob@example.com")
	require.NoError(t, err)
	ids := map[string]bool{}
	for _, r := range mine {
		ids[r.ID] = true
	}
	assert.True(t, ids[first.ID], "helper sees the request they offered on")
	assert.True(t, ids[bobs.ID], "requester sees their own request")
	assert.Len(t, mine, 2)

	n, err := f.svc.DeleteAllMine(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRequestServiceConcurrentOffersOneWins(t *testing.T) {
	helpers := make([]string, 0, 16)
	for i := 0; i < 16; i++ {
		helpers = append(helpers, fmt.Sprintf("helper%02d", i))
	}
	f := newRequestFixture(t, append([]string{"alice"}, helpers...)...)
	r := f.create(t, "alice", "ladder")

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		winner []string
	)
	start := make(chan struct{})
	for _, h := range helpers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.svc.OfferHelp(context.Background(), r.ID, h+"@example.com")
			switch {
			case err == nil:
				mu.Lock()
				winner = append(winner, h+"@example.com")
				mu.Unlock()
			case errors.Is(err, domain.ErrInvalidState), errors.Is(err, domain.ErrConflict):
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Len(t, winner, 1)
	got, err := f.store.GetRequest(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingApproval, got.Status)
	assert.Equal(t, winner[0], got.HelperID)
	assert.Equal(t, int64(2), got.Version)
	require.NoError(t, got.Validate())

	// Only the winner's offer is announced.
	sent := f.notifier.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "alice@example.com", sent[0].userID)
}

func TestRequestServiceConcurrentCompleteAwardsOnce(t *testing.T) {
	f := newRequestFixture(t, "alice", "bob")
	ctx := context.Background()
	r := f.create(t, "alice", "ladder")
	_, err := f.svc.OfferHelp(ctx, r.ID, "bob@example.com")
	require.NoError(t, err)
	_, err = f.svc.AcceptHelp(ctx, r.ID, "alice@example.com")
	require.NoError(t, err)
	before := karma(t, f.store, "bob")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.svc.Complete(ctx, r.ID, "alice@example.com")
		}()
	}
	wg.Wait()

	assert.Equal(t, before+domain.CompletionKarmaBonus, karma(t, f.store, "bob"))
}

func TestRequestServiceNotifyIsNotCalledOnFailedTransition(t *testing.T) {
	f := newRequestFixture(t, "alice", "bob")
	r := f.create(t, "alice", "ladder")

	_, err := f.svc.AcceptHelp(context.Background(), r.ID, "alice@example.com")
	var se *domain.StateError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, domain.StatusOpen, se.Status)
	assert.Empty(t, f.notifier.sent())
}
