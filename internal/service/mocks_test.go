package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nrgiser71/tandemup-sub000/internal/model"
	"github.com/nrgiser71/tandemup-sub000/internal/profile"
	"github.com/nrgiser71/tandemup-sub000/internal/repository"
)

// In-memory session store for testing. Mutex-guarded so the
// conditional writes stay atomic under concurrent callers.
type memSessionStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*model.Session
	seq      int
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{sessions: make(map[uuid.UUID]*model.Session)}
}

func cloneSession(s *model.Session) *model.Session {
	c := *s
	if s.User2ID != nil {
		v := *s.User2ID
		c.User2ID = &v
	}
	if s.RoomToken != nil {
		v := *s.RoomToken
		c.RoomToken = &v
	}
	return &c
}

// add seeds a session bypassing the uniqueness check, assigning
// monotonically increasing creation times
func (m *memSessionStore) add(s *model.Session) *model.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Unix(int64(m.seq), 0)
	}
	s.UpdatedAt = s.CreatedAt
	m.sessions[s.ID] = cloneSession(s)
	return cloneSession(s)
}

func (m *memSessionStore) get(id uuid.UUID) *model.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil
	}
	return cloneSession(s)
}

func (m *memSessionStore) Create(ctx context.Context, session *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.sessions {
		if existing.User1ID == session.User1ID &&
			existing.StartTime.Equal(session.StartTime) &&
			existing.DurationMinutes == session.DurationMinutes &&
			existing.IsActive() {
			return repository.ErrDuplicate
		}
	}
	m.seq++
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Unix(int64(m.seq), 0)
	}
	session.UpdatedAt = session.CreatedAt
	m.sessions[session.ID] = cloneSession(session)
	return nil
}

func (m *memSessionStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	return m.get(id), nil
}

func (m *memSessionStore) ListWaiting(ctx context.Context) ([]*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Session
	for _, s := range m.sessions {
		if s.Status == model.SessionStatusWaiting && s.User2ID == nil {
			out = append(out, cloneSession(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memSessionStore) ListWaitingAt(ctx context.Context, start time.Time, durationMinutes int, excludeUserID int64) ([]*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Session
	for _, s := range m.sessions {
		if s.Status == model.SessionStatusWaiting && s.User2ID == nil &&
			s.StartTime.Equal(start) && s.DurationMinutes == durationMinutes &&
			s.User1ID != excludeUserID {
			out = append(out, cloneSession(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memSessionStore) ListByStartRange(ctx context.Context, from, to time.Time) ([]*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Session
	for _, s := range m.sessions {
		if !s.StartTime.Before(from) && s.StartTime.Before(to) {
			out = append(out, cloneSession(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (m *memSessionStore) ListUpcomingByUser(ctx context.Context, userID int64, from time.Time) ([]*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Session
	for _, s := range m.sessions {
		if s.HasParticipant(userID) && s.IsActive() && !s.StartTime.Before(from) {
			out = append(out, cloneSession(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (m *memSessionStore) ListNoShowCandidates(ctx context.Context, cutoff time.Time) ([]*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Session
	for _, s := range m.sessions {
		if s.Status == model.SessionStatusMatched && s.StartTime.Before(cutoff) &&
			(!s.User1Joined || !s.User2Joined) {
			out = append(out, cloneSession(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (m *memSessionStore) HasActiveAt(ctx context.Context, userID int64, start time.Time, durationMinutes int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.HasParticipant(userID) && s.StartTime.Equal(start) &&
			s.DurationMinutes == durationMinutes && s.IsActive() {
			return true, nil
		}
	}
	return false, nil
}

func (m *memSessionStore) Claim(ctx context.Context, id uuid.UUID, user2ID int64, roomToken string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.Status != model.SessionStatusWaiting || s.User2ID != nil || s.User1ID == user2ID {
		return false, nil
	}
	s.Status = model.SessionStatusMatched
	s.User2ID = &user2ID
	s.RoomToken = &roomToken
	s.UpdatedAt = time.Now()
	return true, nil
}

func (m *memSessionStore) MarkCancelled(ctx context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || !s.IsActive() {
		return false, nil
	}
	s.Status = model.SessionStatusCancelled
	return true, nil
}

func (m *memSessionStore) MarkNoShow(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.Status != model.SessionStatusMatched || (s.User1Joined && s.User2Joined) {
		return nil, nil
	}
	s.Status = model.SessionStatusNoShow
	return cloneSession(s), nil
}

func (m *memSessionStore) MarkCompleted(ctx context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.Status != model.SessionStatusMatched || !s.User1Joined || !s.User2Joined {
		return false, nil
	}
	s.Status = model.SessionStatusCompleted
	return true, nil
}

func (m *memSessionStore) SetJoined(ctx context.Context, id uuid.UUID, participant int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.Status != model.SessionStatusMatched {
		return false, nil
	}
	switch participant {
	case 1:
		s.User1Joined = true
	case 2:
		s.User2Joined = true
	default:
		return false, errors.New("invalid participant slot")
	}
	return true, nil
}

func (m *memSessionStore) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.Status != model.SessionStatusWaiting || s.User2ID != nil {
		return false, nil
	}
	delete(m.sessions, id)
	return true, nil
}

func (m *memSessionStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Profile resolver backed by a plain map; missing ids are unresolved.
type stubResolver struct {
	mu    sync.Mutex
	users map[int64]*model.User
}

func newStubResolver(users ...*model.User) *stubResolver {
	r := &stubResolver{users: make(map[int64]*model.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *stubResolver) Resolve(ctx context.Context, userID int64) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return nil, profile.ErrUnresolved
	}
	c := *u
	return &c, nil
}

type memBookingLog struct {
	mu      sync.Mutex
	entries []*model.BookingLogEntry
}

func (l *memBookingLog) Append(ctx context.Context, entry *model.BookingLogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	return nil
}

func (l *memBookingLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

type memStrikeStore struct {
	mu     sync.Mutex
	counts map[int64]int
}

func newMemStrikeStore() *memStrikeStore {
	return &memStrikeStore{counts: make(map[int64]int)}
}

func (s *memStrikeStore) IncrementNoShowCount(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[userID]++
	return nil
}

func (s *memStrikeStore) strikes(userID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[userID]
}

// Event sink that just counts emissions per type.
type stubEvents struct {
	mu        sync.Mutex
	booked    int
	matched   int
	cancelled int
	noShow    int
	completed int
}

func (e *stubEvents) SessionBooked(*model.Session) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.booked++
}

func (e *stubEvents) SessionMatched(*model.Session) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.matched++
}

func (e *stubEvents) SessionCancelled(*model.Session, int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelled++
}

func (e *stubEvents) SessionNoShow(*model.Session, []int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.noShow++
}

func (e *stubEvents) SessionCompleted(*model.Session) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.completed++
}

func englishUser(id int64, name string) *model.User {
	return &model.User{
		ID:          id,
		DisplayName: name,
		Language:    "en",
		Timezone:    "UTC",
		IsEligible:  true,
	}
}
