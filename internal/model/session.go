package model

import (
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	SessionStatusWaiting   SessionStatus = "waiting"   // Ожидает партнёра
	SessionStatusMatched   SessionStatus = "matched"   // Пара найдена
	SessionStatusCompleted SessionStatus = "completed" // Завершена
	SessionStatusCancelled SessionStatus = "cancelled" // Отменена
	SessionStatusNoShow    SessionStatus = "no_show"   // Кто-то не пришёл
)

// Session durations in minutes
const (
	DurationShort = 25
	DurationLong  = 50
)

// ValidDuration checks if the duration is one of the supported values
func ValidDuration(minutes int) bool {
	return minutes == DurationShort || minutes == DurationLong
}

type Session struct {
	ID              uuid.UUID     `json:"id"`
	StartTime       time.Time     `json:"start_time"`
	DurationMinutes int           `json:"duration_minutes"`
	User1ID         int64         `json:"user1_id"`
	User2ID         *int64        `json:"user2_id"` // указатель - nil пока пара не найдена
	User1Joined     bool          `json:"user1_joined"`
	User2Joined     bool          `json:"user2_joined"`
	Status          SessionStatus `json:"status"`
	RoomToken       *string       `json:"room_token,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// IsTerminal checks if the session reached a final status
func (s *Session) IsTerminal() bool {
	switch s.Status {
	case SessionStatusCompleted, SessionStatusCancelled, SessionStatusNoShow:
		return true
	}
	return false
}

// IsActive checks if the session still occupies its slot
func (s *Session) IsActive() bool {
	return s.Status == SessionStatusWaiting || s.Status == SessionStatusMatched
}

// HasParticipant checks if the user takes part in the session
func (s *Session) HasParticipant(userID int64) bool {
	if s.User1ID == userID {
		return true
	}
	return s.User2ID != nil && *s.User2ID == userID
}

// ParticipantSlot returns 1 or 2 for a participant, 0 otherwise
func (s *Session) ParticipantSlot(userID int64) int {
	if s.User1ID == userID {
		return 1
	}
	if s.User2ID != nil && *s.User2ID == userID {
		return 2
	}
	return 0
}

// JoinedBy checks if the given participant already marked themselves joined
func (s *Session) JoinedBy(userID int64) bool {
	switch s.ParticipantSlot(userID) {
	case 1:
		return s.User1Joined
	case 2:
		return s.User2Joined
	}
	return false
}
