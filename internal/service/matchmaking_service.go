package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/nrgiser71/tandemup-sub000/internal/model"
	"github.com/nrgiser71/tandemup-sub000/internal/notify"
	"github.com/nrgiser71/tandemup-sub000/internal/profile"
	"go.uber.org/zap"
)

// MatchmakingService - периодический свип, который спаривает ещё не
// сматченные ожидающие сессии. Страховка для гонок и для сессий,
// созданных без мгновенного матча
type MatchmakingService struct {
	sessions SessionStore
	profiles profile.Resolver
	audit    BookingLog
	events   notify.Events
	logger   *zap.Logger
}

func NewMatchmakingService(
	sessions SessionStore,
	profiles profile.Resolver,
	audit BookingLog,
	events notify.Events,
	logger *zap.Logger,
) *MatchmakingService {
	return &MatchmakingService{
		sessions: sessions,
		profiles: profiles,
		audit:    audit,
		events:   events,
		logger:   logger,
	}
}

// Ключ группировки: сессии матчатся только при точном совпадении
// времени, длительности и языка владельца
type matchGroup struct {
	startUnix       int64
	durationMinutes int
	language        string
}

// ReconcileMatches спаривает ожидающие сессии. Каждая мутация -
// одиночная условная запись, поэтому свип безопасно накладывается
// сам на себя и на Booking Coordinator
func (s *MatchmakingService) ReconcileMatches(ctx context.Context) error {
	waiting, err := s.sessions.ListWaiting(ctx)
	if err != nil {
		return fmt.Errorf("list waiting sessions: %w", err)
	}
	if len(waiting) < 2 {
		return nil
	}

	// Группируем с сохранением порядка created_at:
	// самый старый ожидающий матчится первым
	groups := make(map[matchGroup][]*model.Session)
	var order []matchGroup
	for _, session := range waiting {
		owner, err := s.profiles.Resolve(ctx, session.User1ID)
		if err != nil {
			// Сессия без владельца в матчинге не участвует
			if !errors.Is(err, profile.ErrUnresolved) {
				s.logger.Warn("Failed to resolve waiting session owner",
					zap.String("session_id", session.ID.String()),
					zap.Error(err),
				)
			}
			continue
		}

		key := matchGroup{
			startUnix:       session.StartTime.Unix(),
			durationMinutes: session.DurationMinutes,
			language:        owner.Language,
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], session)
	}

	merged := 0
	for _, key := range order {
		queue := groups[key]
		for len(queue) >= 2 {
			if s.mergePair(ctx, queue[0], queue[1]) {
				merged++
				queue = queue[2:]
			} else {
				// Первую сессию уже кто-то занял; вторая остаётся
				// ожидающей и пробует следующего кандидата
				queue = queue[1:]
			}
		}
	}

	if merged > 0 {
		s.logger.Info("Match reconcile completed", zap.Int("pairs_merged", merged))
	}

	return nil
}

// mergePair сливает две ожидающие сессии: занимает первую от имени
// владельца второй и только после успеха удаляет ставшую лишней
// вторую строку
func (s *MatchmakingService) mergePair(ctx context.Context, target, redundant *model.Session) bool {
	claimed, err := s.sessions.Claim(ctx, target.ID, redundant.User1ID, uuid.NewString())
	if err != nil {
		s.logger.Warn("Sweep claim failed",
			zap.String("session_id", target.ID.String()),
			zap.Error(err),
		)
		return false
	}
	if !claimed {
		// Гонка проиграна: вторую сессию не трогаем
		return false
	}

	// Удаление тоже условное: если вторую сессию между выборкой и
	// слиянием успел занять третий пользователь, её бронь остаётся жить
	deleted, err := s.sessions.Delete(ctx, redundant.ID)
	if err != nil {
		s.logger.Error("Failed to delete merged session",
			zap.String("session_id", redundant.ID.String()),
			zap.Error(err),
		)
	} else if !deleted {
		s.logger.Warn("Merged session no longer waiting, left intact",
			zap.String("session_id", redundant.ID.String()),
		)
	}

	entry := &model.BookingLogEntry{
		UserID:    redundant.User1ID,
		SessionID: target.ID,
		Action:    model.BookingActionBooked,
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		s.logger.Warn("Failed to append booking log", zap.Error(err))
	}

	session, err := s.sessions.GetByID(ctx, target.ID)
	if err == nil && session != nil {
		s.events.SessionMatched(session)
	}

	s.logger.Info("Sessions paired by sweep",
		zap.String("session_id", target.ID.String()),
		zap.Int64("user1_id", target.User1ID),
		zap.Int64("user2_id", redundant.User1ID),
		zap.Time("start_time", target.StartTime),
	)

	return true
}
