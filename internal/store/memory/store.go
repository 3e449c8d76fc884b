// Package memory is a process-local implementation of every store interface. It backs the
// server when no database is configured and gives tests real concurrency semantics.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"SkillSwapserver/internal/domain"
)

type Store struct {
	// Now is used for session expiry checks. Defaults to time.Now.
	Now func() time.Time

	mu        sync.RWMutex
	seq       int64
	users     map[string]*userRow
	sessions  map[string]domain.Session
	requests  map[string]requestRow
	messages  []messageRow
	resources []domain.Resource
	tokens    map[string]map[string]domain.NotificationToken // user -> token -> row
}

type userRow struct {
	user         domain.User
	passwordHash string
	seq          int64
}

type requestRow struct {
	req domain.Request
	seq int64
}

type messageRow struct {
	msg domain.ChatMessage
	seq int64
}

func New() *Store {
	return &Store{
		users:    make(map[string]*userRow),
		sessions: make(map[string]domain.Session),
		requests: make(map[string]requestRow),
		tokens:   make(map[string]map[string]domain.NotificationToken),
	}
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Store) next() int64 {
	s.seq++
	return s.seq
}

// Users

func (s *Store) CreateUser(ctx context.Context, email, name, passwordHash string) (domain.User, error) {
	id := strings.ToLower(strings.TrimSpace(email))
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; ok {
		return domain.User{}, domain.ErrEmailTaken
	}
	now := s.now()
	u := domain.User{ID: id, Name: name, Karma: domain.DefaultKarma, CreatedAt: now, UpdatedAt: now}
	s.users[id] = &userRow{user: u, passwordHash: passwordHash, seq: s.next()}
	return u, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.users[strings.ToLower(id)]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return row.user, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (domain.UserWithPassword, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.users[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return domain.UserWithPassword{}, domain.ErrNotFound
	}
	return domain.UserWithPassword{User: row.user, PasswordHash: row.passwordHash}, nil
}

func (s *Store) SetLastLogin(ctx context.Context, userID string, when time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	t := when
	row.user.LastLoginAt = &t
	return nil
}

func (s *Store) SetPasswordHash(ctx context.Context, userID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	row.passwordHash = passwordHash
	return nil
}

// ListUsers returns users in registration order.
func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	s.mu.RLock()
	rows := make([]*userRow, 0, len(s.users))
	for _, row := range s.users {
		rows = append(rows, row)
	}
	s.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	out := make([]domain.User, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.user)
	}
	return out, nil
}

// Sessions

func (s *Store) CreateSession(ctx context.Context, userID string, expiresAt time.Time, ip, userAgent string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	s.sessions[id] = domain.Session{ID: id, UserID: userID, CreatedAt: s.now(), ExpiresAt: expiresAt}
	return id, nil
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok || sess.RevokedAt != nil || !sess.ExpiresAt.After(s.now()) {
		return domain.Session{}, domain.ErrNotFound
	}
	return sess, nil
}

func (s *Store) RevokeSession(ctx context.Context, sessionID string, when time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok || sess.RevokedAt != nil {
		return nil
	}
	t := when
	sess.RevokedAt = &t
	s.sessions[sessionID] = sess
	return nil
}

func (s *Store) DeleteExpiredSessions(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, sess := range s.sessions {
		if sess.ExpiresAt.Before(cutoff) || (sess.RevokedAt != nil && sess.RevokedAt.Before(cutoff)) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

// Requests

func (s *Store) CreateRequest(ctx context.Context, r domain.Request) (domain.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = uuid.NewString()
	r.Version = 1
	s.requests[r.ID] = requestRow{req: r, seq: s.next()}
	return r, nil
}

func (s *Store) GetRequest(ctx context.Context, id string) (domain.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.requests[id]
	if !ok {
		return domain.Request{}, domain.ErrNotFound
	}
	return row.req, nil
}

// UpdateRequest commits r if the stored version still equals r.Version, applying award in the
// same critical section.
func (s *Store) UpdateRequest(ctx context.Context, r domain.Request, award *domain.KarmaAward) (domain.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.requests[r.ID]
	if !ok {
		return domain.Request{}, domain.ErrNotFound
	}
	if row.req.Version != r.Version {
		return domain.Request{}, domain.ErrConflict
	}
	var helper *userRow
	if award != nil {
		helper, ok = s.users[award.UserID]
		if !ok {
			return domain.Request{}, domain.ErrNotFound
		}
	}

	r.Version++
	r.RequesterID = row.req.RequesterID
	r.CreatedAt = row.req.CreatedAt
	row.req = r
	s.requests[r.ID] = row
	if helper != nil {
		helper.user.Karma += award.Amount
		helper.user.UpdatedAt = r.UpdatedAt
	}
	return r, nil
}

func (s *Store) DeleteRequest(ctx context.Context, id string, version int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.requests[id]
	if !ok {
		return domain.ErrNotFound
	}
	if row.req.Version != version {
		return domain.ErrConflict
	}
	delete(s.requests, id)
	return nil
}

func (s *Store) ListRequestsByStatus(ctx context.Context, status domain.RequestStatus) ([]domain.Request, error) {
	return s.listRequests(func(r domain.Request) bool { return r.Status == status }), nil
}

func (s *Store) ListRequestsForUser(ctx context.Context, userID string) ([]domain.Request, error) {
	return s.listRequests(func(r domain.Request) bool {
		return r.RequesterID == userID || r.HelperID == userID || r.CompletedBy == userID
	}), nil
}

func (s *Store) DeleteRequestsByRequester(ctx context.Context, requesterID string, keep domain.RequestStatus) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, row := range s.requests {
		if row.req.RequesterID == requesterID && row.req.Status != keep {
			delete(s.requests, id)
			n++
		}
	}
	return n, nil
}

// listRequests returns matches newest first.
func (s *Store) listRequests(match func(domain.Request) bool) []domain.Request {
	s.mu.RLock()
	rows := make([]requestRow, 0)
	for _, row := range s.requests {
		if match(row.req) {
			rows = append(rows, row)
		}
	}
	s.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].req.CreatedAt.Equal(rows[j].req.CreatedAt) {
			return rows[i].req.CreatedAt.After(rows[j].req.CreatedAt)
		}
		return rows[i].seq > rows[j].seq
	})
	out := make([]domain.Request, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.req)
	}
	return out
}

// Chat

func (s *Store) SaveMessage(ctx context.Context, m domain.ChatMessage) (domain.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = uuid.NewString()
	s.messages = append(s.messages, messageRow{msg: m, seq: s.next()})
	return m, nil
}

// ListMessagesForUser returns messages the user sent or received, oldest first.
func (s *Store) ListMessagesForUser(ctx context.Context, userID string) ([]domain.ChatMessage, error) {
	s.mu.RLock()
	rows := make([]messageRow, 0)
	for _, row := range s.messages {
		if row.msg.SenderID == userID || row.msg.RecipientID == userID {
			rows = append(rows, row)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].msg.Timestamp.Equal(rows[j].msg.Timestamp) {
			return rows[i].msg.Timestamp.Before(rows[j].msg.Timestamp)
		}
		return rows[i].seq < rows[j].seq
	})
	out := make([]domain.ChatMessage, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.msg)
	}
	return out, nil
}

// Resources

func (s *Store) CreateResource(ctx context.Context, r domain.Resource) (domain.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = uuid.NewString()
	s.resources = append(s.resources, r)
	return r, nil
}

func (s *Store) ListResources(ctx context.Context) ([]domain.Resource, error) {
	return s.listResources(func(domain.Resource) bool { return true }), nil
}

func (s *Store) ListResourcesByOwner(ctx context.Context, ownerID string) ([]domain.Resource, error) {
	return s.listResources(func(r domain.Resource) bool { return r.OwnerID == ownerID }), nil
}

// listResources returns matches newest first.
func (s *Store) listResources(match func(domain.Resource) bool) []domain.Resource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Resource, 0)
	for i := len(s.resources) - 1; i >= 0; i-- {
		if match(s.resources[i]) {
			out = append(out, s.resources[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Notification tokens

func (s *Store) UpsertToken(ctx context.Context, userID, token, platform string, when time.Time) (domain.NotificationToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// A device token belongs to whoever registered it last.
	for owner, set := range s.tokens {
		if owner != userID {
			delete(set, token)
		}
	}
	set := s.tokens[userID]
	if set == nil {
		set = make(map[string]domain.NotificationToken)
		s.tokens[userID] = set
	}
	row, ok := set[token]
	if !ok {
		row = domain.NotificationToken{ID: uuid.NewString(), UserID: userID, Token: token, CreatedAt: when}
	}
	row.Platform = platform
	row.UpdatedAt = when
	set[token] = row
	return row, nil
}

func (s *Store) DeleteToken(ctx context.Context, userID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens[userID], token)
	return nil
}

func (s *Store) ListTokens(ctx context.Context, userID string) ([]domain.NotificationToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.NotificationToken, 0, len(s.tokens[userID]))
	for _, row := range s.tokens[userID] {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
