package service

import (
	"context"
	"fmt"
	"time"

	"github.com/nrgiser71/tandemup-sub000/internal/model"
	"github.com/nrgiser71/tandemup-sub000/internal/notify"
	"go.uber.org/zap"
)

// Льготный период после начала сессии до фиксации неявки
const noShowGrace = 5 * time.Minute

// NoShowService - периодический свип, который закрывает matched
// сессии, где кто-то не подключился, и штрафует отсутствовавших
type NoShowService struct {
	sessions SessionStore
	strikes  StrikeStore
	events   notify.Events
	logger   *zap.Logger
	now      func() time.Time
}

func NewNoShowService(
	sessions SessionStore,
	strikes StrikeStore,
	events notify.Events,
	logger *zap.Logger,
) *NoShowService {
	return &NoShowService{
		sessions: sessions,
		strikes:  strikes,
		events:   events,
		logger:   logger,
		now:      time.Now,
	}
}

// SweepNoShows переводит просроченные matched сессии в no_show.
// Ошибка на отдельной сессии не прерывает обработку остальных
func (s *NoShowService) SweepNoShows(ctx context.Context) error {
	cutoff := s.now().Add(-noShowGrace)

	candidates, err := s.sessions.ListNoShowCandidates(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("list no-show candidates: %w", err)
	}

	for _, session := range candidates {
		s.processCandidate(ctx, session)
	}

	return nil
}

func (s *NoShowService) processCandidate(ctx context.Context, candidate *model.Session) {
	// Условный переход в no_show делает инкременты счётчиков
	// однократными: повторный свип не пройдёт условие status = 'matched'.
	// Штрафы считаем по возвращённой строке, а не по снимку из выборки:
	// участник мог подключиться между выборкой и этим переходом
	session, err := s.sessions.MarkNoShow(ctx, candidate.ID)
	if err != nil {
		s.logger.Warn("Failed to mark no-show",
			zap.String("session_id", candidate.ID.String()),
			zap.Error(err),
		)
		return
	}
	if session == nil {
		// Сессию уже обработали (другой свип, отмена, завершение
		// или оба участника успели подключиться)
		return
	}

	// Штрафуем только тех кто не подключился
	var absent []int64
	if !session.User1Joined {
		absent = append(absent, session.User1ID)
	}
	if session.User2ID != nil && !session.User2Joined {
		absent = append(absent, *session.User2ID)
	}

	for _, userID := range absent {
		if err := s.strikes.IncrementNoShowCount(ctx, userID); err != nil {
			s.logger.Error("Failed to increment no-show count",
				zap.Int64("user_id", userID),
				zap.String("session_id", session.ID.String()),
				zap.Error(err),
			)
		}
	}

	s.events.SessionNoShow(session, absent)

	s.logger.Info("Session marked as no-show",
		zap.String("session_id", session.ID.String()),
		zap.Int64s("absent_user_ids", absent),
		zap.Time("start_time", session.StartTime),
	)
}
