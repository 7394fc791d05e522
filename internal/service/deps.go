package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nrgiser71/tandemup-sub000/internal/model"
)

// SessionStore - хранилище сессий, единственная точка синхронизации.
// Все переходы статусов выражены одиночными условными записями:
// false без ошибки означает что условие уже не выполняется.
// Реализуется repository.SessionRepository.
type SessionStore interface {
	Create(ctx context.Context, session *model.Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Session, error)
	ListWaiting(ctx context.Context) ([]*model.Session, error)
	ListWaitingAt(ctx context.Context, start time.Time, durationMinutes int, excludeUserID int64) ([]*model.Session, error)
	ListByStartRange(ctx context.Context, from, to time.Time) ([]*model.Session, error)
	ListUpcomingByUser(ctx context.Context, userID int64, from time.Time) ([]*model.Session, error)
	ListNoShowCandidates(ctx context.Context, cutoff time.Time) ([]*model.Session, error)
	HasActiveAt(ctx context.Context, userID int64, start time.Time, durationMinutes int) (bool, error)
	Claim(ctx context.Context, id uuid.UUID, user2ID int64, roomToken string) (bool, error)
	MarkCancelled(ctx context.Context, id uuid.UUID) (bool, error)
	MarkNoShow(ctx context.Context, id uuid.UUID) (*model.Session, error)
	MarkCompleted(ctx context.Context, id uuid.UUID) (bool, error)
	SetJoined(ctx context.Context, id uuid.UUID, participant int) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

// BookingLog - журнал аудита. Реализуется repository.BookingLogRepository.
type BookingLog interface {
	Append(ctx context.Context, entry *model.BookingLogEntry) error
}

// StrikeStore - счётчики пропусков. Реализуется repository.UserRepository.
type StrikeStore interface {
	IncrementNoShowCount(ctx context.Context, userID int64) error
}
