package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/nrgiser71/tandemup-sub000/internal/model"
	"github.com/nrgiser71/tandemup-sub000/internal/profile"
	"go.uber.org/zap"
)

// Сетка слотов: каждые 30 минут с 06:00 до 23:30
// в часовом поясе запрашивающего
const (
	gridStartHour = 6
	gridEndHour   = 23
	gridEndMinute = 30
	slotStep      = 30 * time.Minute
)

type SlotService struct {
	sessions SessionStore
	profiles profile.Resolver
	logger   *zap.Logger
	now      func() time.Time
}

func NewSlotService(sessions SessionStore, profiles profile.Resolver, logger *zap.Logger) *SlotService {
	return &SlotService{
		sessions: sessions,
		profiles: profiles,
		logger:   logger,
		now:      time.Now,
	}
}

// ResolveSlots строит сетку слотов на календарную дату. Чтение без
// побочных эффектов, повторный вызов безопасен
func (s *SlotService) ResolveSlots(ctx context.Context, date time.Time, requesterID int64) ([]*model.SlotDescriptor, error) {
	requester, err := s.profiles.Resolve(ctx, requesterID)
	if err != nil {
		if errors.Is(err, profile.ErrUnresolved) {
			return nil, ErrIneligible
		}
		return nil, fmt.Errorf("resolve requester: %w", err)
	}

	loc := requester.Location()
	year, month, day := date.Date()
	gridStart := time.Date(year, month, day, gridStartHour, 0, 0, 0, loc)
	gridEnd := time.Date(year, month, day, gridEndHour, gridEndMinute, 0, 0, loc)
	cellCount := int(gridEnd.Sub(gridStart)/slotStep) + 1

	// Загружаем все сессии дня одним запросом и раскладываем по ячейкам
	sessions, err := s.sessions.ListByStartRange(ctx, gridStart, gridEnd.Add(slotStep))
	if err != nil {
		return nil, fmt.Errorf("list sessions for grid: %w", err)
	}

	buckets := make([][]*model.Session, cellCount)
	for _, session := range sessions {
		idx := int(session.StartTime.Sub(gridStart) / slotStep)
		if idx < 0 || idx >= cellCount {
			continue
		}
		buckets[idx] = append(buckets[idx], session)
	}

	now := s.now()
	slots := make([]*model.SlotDescriptor, 0, cellCount)
	for i := 0; i < cellCount; i++ {
		cellStart := gridStart.Add(time.Duration(i) * slotStep)
		slots = append(slots, s.resolveCell(ctx, cellStart, buckets[i], requester, now))
	}

	return slots, nil
}

// resolveCell определяет состояние одной ячейки сетки
func (s *SlotService) resolveCell(ctx context.Context, cellStart time.Time, sessions []*model.Session, requester *model.User, now time.Time) *model.SlotDescriptor {
	// Слоты в прошлом недоступны независимо от содержимого
	if !cellStart.After(now) {
		return &model.SlotDescriptor{StartTime: cellStart, State: model.SlotStateUnavailable}
	}

	// Собственная незавершённая сессия: повторно бронировать нельзя
	for _, session := range sessions {
		if session.HasParticipant(requester.ID) && !session.IsTerminal() {
			return &model.SlotDescriptor{StartTime: cellStart, State: model.SlotStateUnavailable}
		}
	}

	// Чужая ожидающая сессия с совпадающим языком, старейшая первой.
	// Время берём из самой сессии, а не из границы ячейки, чтобы
	// расхождение часов не ломало точное совпадение при join
	waiting := waitingCandidates(sessions, requester.ID)
	for _, session := range waiting {
		owner, err := s.profiles.Resolve(ctx, session.User1ID)
		if err != nil {
			// Осиротевшая сессия без профиля владельца не показывается
			if !errors.Is(err, profile.ErrUnresolved) {
				s.logger.Warn("Failed to resolve waiting session owner",
					zap.String("session_id", session.ID.String()),
					zap.Error(err),
				)
			}
			continue
		}
		if owner.Language != requester.Language {
			continue
		}

		sessionID := session.ID
		return &model.SlotDescriptor{
			StartTime:       session.StartTime,
			State:           model.SlotStateWaiting,
			PartnerName:     owner.DisplayName,
			DurationMinutes: session.DurationMinutes,
			SessionID:       &sessionID,
		}
	}

	// Любая другая сессия в ячейке закрывает слот
	if len(sessions) > 0 {
		return &model.SlotDescriptor{StartTime: cellStart, State: model.SlotStateUnavailable}
	}

	return &model.SlotDescriptor{StartTime: cellStart, State: model.SlotStateAvailable}
}

func waitingCandidates(sessions []*model.Session, excludeUserID int64) []*model.Session {
	var waiting []*model.Session
	for _, session := range sessions {
		if session.Status == model.SessionStatusWaiting && session.User2ID == nil && session.User1ID != excludeUserID {
			waiting = append(waiting, session)
		}
	}
	sort.Slice(waiting, func(i, j int) bool {
		return waiting[i].CreatedAt.Before(waiting[j].CreatedAt)
	})
	return waiting
}
