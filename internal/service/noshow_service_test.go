package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nrgiser71/tandemup-sub000/internal/model"
	"go.uber.org/zap"
)

func newTestNoShowService(store *memSessionStore) (*NoShowService, *memStrikeStore, *stubEvents) {
	strikes := newMemStrikeStore()
	events := &stubEvents{}
	svc := NewNoShowService(store, strikes, events, zap.NewNop())
	svc.now = func() time.Time { return testNow }
	return svc, strikes, events
}

func matchedSession(store *memSessionStore, start time.Time, user1Joined, user2Joined bool) *model.Session {
	user2 := int64(2)
	return store.add(&model.Session{
		StartTime:       start,
		DurationMinutes: model.DurationShort,
		User1ID:         1,
		User2ID:         &user2,
		User1Joined:     user1Joined,
		User2Joined:     user2Joined,
		Status:          model.SessionStatusMatched,
	})
}

func TestSweepMarksNoShowAndPenalizesAbsent(t *testing.T) {
	store := newMemSessionStore()
	svc, strikes, events := newTestNoShowService(store)

	// Started 6 minutes ago, user2 never joined
	session := matchedSession(store, testNow.Add(-6*time.Minute), true, false)

	if err := svc.SweepNoShows(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := store.get(session.ID); got.Status != model.SessionStatusNoShow {
		t.Errorf("expected no_show status, got %s", got.Status)
	}
	if strikes.strikes(2) != 1 {
		t.Errorf("expected user 2 strike count 1, got %d", strikes.strikes(2))
	}
	if strikes.strikes(1) != 0 {
		t.Errorf("participant who joined must not be penalized, got %d strikes", strikes.strikes(1))
	}
	if events.noShow != 1 {
		t.Errorf("expected 1 no-show event, got %d", events.noShow)
	}

	// A second pass is a no-op: the matched precondition no longer holds
	if err := svc.SweepNoShows(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strikes.strikes(2) != 1 {
		t.Errorf("repeat sweep must not increment again, got %d", strikes.strikes(2))
	}
	if events.noShow != 1 {
		t.Errorf("repeat sweep must not emit again, got %d events", events.noShow)
	}
}

func TestSweepPenalizesBothAbsentParticipants(t *testing.T) {
	store := newMemSessionStore()
	svc, strikes, _ := newTestNoShowService(store)

	matchedSession(store, testNow.Add(-10*time.Minute), false, false)

	if err := svc.SweepNoShows(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if strikes.strikes(1) != 1 || strikes.strikes(2) != 1 {
		t.Errorf("expected both participants penalized, got user1=%d user2=%d",
			strikes.strikes(1), strikes.strikes(2))
	}
}

func TestSweepRespectsGracePeriod(t *testing.T) {
	store := newMemSessionStore()
	svc, strikes, _ := newTestNoShowService(store)

	// Only 4 minutes past start: still inside the grace period
	session := matchedSession(store, testNow.Add(-4*time.Minute), false, false)

	if err := svc.SweepNoShows(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := store.get(session.ID); got.Status != model.SessionStatusMatched {
		t.Errorf("expected session to stay matched inside grace period, got %s", got.Status)
	}
	if strikes.strikes(1) != 0 || strikes.strikes(2) != 0 {
		t.Error("no strikes may be recorded inside the grace period")
	}
}

// Store where participants join right after the sweep has taken its
// candidate snapshot, so the scan results are already stale.
type lateJoinStore struct {
	*memSessionStore
	lateJoins map[uuid.UUID][]int
}

func (s *lateJoinStore) ListNoShowCandidates(ctx context.Context, cutoff time.Time) ([]*model.Session, error) {
	out, err := s.memSessionStore.ListNoShowCandidates(ctx, cutoff)
	for id, participants := range s.lateJoins {
		for _, p := range participants {
			s.memSessionStore.SetJoined(ctx, id, p)
		}
	}
	s.lateJoins = nil
	return out, err
}

func TestSweepSparesSessionFullyJoinedAfterScan(t *testing.T) {
	inner := newMemSessionStore()
	session := matchedSession(inner, testNow.Add(-10*time.Minute), false, false)

	store := &lateJoinStore{
		memSessionStore: inner,
		lateJoins:       map[uuid.UUID][]int{session.ID: {1, 2}},
	}
	strikes := newMemStrikeStore()
	events := &stubEvents{}
	svc := NewNoShowService(store, strikes, events, zap.NewNop())
	svc.now = func() time.Time { return testNow }

	if err := svc.SweepNoShows(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := inner.get(session.ID); got.Status != model.SessionStatusMatched {
		t.Errorf("session joined by both before the transition must stay matched, got %s", got.Status)
	}
	if strikes.strikes(1) != 0 || strikes.strikes(2) != 0 {
		t.Errorf("no strikes for participants who joined, got user1=%d user2=%d",
			strikes.strikes(1), strikes.strikes(2))
	}
	if events.noShow != 0 {
		t.Errorf("expected no no-show events, got %d", events.noShow)
	}
}

func TestSweepPenaltiesFollowCurrentRowNotScanSnapshot(t *testing.T) {
	inner := newMemSessionStore()
	// Neither joined at scan time; user2 joins before the transition lands
	session := matchedSession(inner, testNow.Add(-10*time.Minute), false, false)

	store := &lateJoinStore{
		memSessionStore: inner,
		lateJoins:       map[uuid.UUID][]int{session.ID: {2}},
	}
	strikes := newMemStrikeStore()
	events := &stubEvents{}
	svc := NewNoShowService(store, strikes, events, zap.NewNop())
	svc.now = func() time.Time { return testNow }

	if err := svc.SweepNoShows(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := inner.get(session.ID); got.Status != model.SessionStatusNoShow {
		t.Errorf("expected no_show status, got %s", got.Status)
	}
	if strikes.strikes(1) != 1 {
		t.Errorf("expected user 1 strike count 1, got %d", strikes.strikes(1))
	}
	if strikes.strikes(2) != 0 {
		t.Errorf("user who joined after the scan must not be penalized, got %d strikes", strikes.strikes(2))
	}
}

func TestSweepIgnoresFullyJoinedSessions(t *testing.T) {
	store := newMemSessionStore()
	svc, strikes, _ := newTestNoShowService(store)

	session := matchedSession(store, testNow.Add(-30*time.Minute), true, true)

	if err := svc.SweepNoShows(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := store.get(session.ID); got.Status != model.SessionStatusMatched {
		t.Errorf("fully joined session must not be touched, got %s", got.Status)
	}
	if strikes.strikes(1) != 0 || strikes.strikes(2) != 0 {
		t.Error("no strikes expected when both participants joined")
	}
}
