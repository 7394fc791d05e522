package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nrgiser71/tandemup-sub000/internal/model"
	"github.com/nrgiser71/tandemup-sub000/internal/notify"
	"github.com/nrgiser71/tandemup-sub000/internal/profile"
	"github.com/nrgiser71/tandemup-sub000/internal/repository"
	"go.uber.org/zap"
)

const (
	// Окно отмены: отменить можно строго раньше чем за час до начала
	cancelWindow = time.Hour
	// Окно подключения открывается за 5 минут до начала
	joinWindow = 5 * time.Minute
)

type BookAction string

const (
	BookActionCreate BookAction = "create"
	BookActionJoin   BookAction = "join"
)

type BookRequest struct {
	StartTime       time.Time
	DurationMinutes int
	Action          BookAction
	TargetSessionID *uuid.UUID
}

type BookingService struct {
	sessions SessionStore
	profiles profile.Resolver
	audit    BookingLog
	events   notify.Events
	logger   *zap.Logger
	now      func() time.Time
}

func NewBookingService(
	sessions SessionStore,
	profiles profile.Resolver,
	audit BookingLog,
	events notify.Events,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		sessions: sessions,
		profiles: profiles,
		audit:    audit,
		events:   events,
		logger:   logger,
		now:      time.Now,
	}
}

// Book обрабатывает запрос пользователя на слот: либо создаёт новую
// ожидающую сессию, либо атомарно занимает существующую
func (s *BookingService) Book(ctx context.Context, requesterID int64, req BookRequest) (*model.Session, error) {
	// Допуск (trial/подписка/бан) - внешнее предусловие
	requester, err := s.profiles.Resolve(ctx, requesterID)
	if err != nil {
		if errors.Is(err, profile.ErrUnresolved) {
			return nil, ErrIneligible
		}
		return nil, fmt.Errorf("resolve requester: %w", err)
	}
	if !requester.IsEligible {
		return nil, ErrIneligible
	}

	switch req.Action {
	case BookActionJoin:
		return s.join(ctx, requester, req)
	case BookActionCreate:
		return s.create(ctx, requester, req)
	default:
		return nil, fmt.Errorf("unknown booking action: %q", req.Action)
	}
}

// join занимает чужую ожидающую сессию вторым участником
func (s *BookingService) join(ctx context.Context, requester *model.User, req BookRequest) (*model.Session, error) {
	if req.TargetSessionID == nil {
		return nil, fmt.Errorf("join requires a target session id")
	}

	target, err := s.sessions.GetByID(ctx, *req.TargetSessionID)
	if err != nil {
		return nil, fmt.Errorf("get target session: %w", err)
	}
	if target == nil {
		return nil, ErrNotFound
	}
	if target.Status != model.SessionStatusWaiting || target.User2ID != nil || target.User1ID == requester.ID {
		return nil, ErrConflict
	}
	if !target.StartTime.After(s.now()) {
		return nil, ErrInvalidTime
	}

	// Второй участник тоже не может занять слот дважды
	exists, err := s.sessions.HasActiveAt(ctx, requester.ID, target.StartTime, target.DurationMinutes)
	if err != nil {
		return nil, fmt.Errorf("check duplicate booking: %w", err)
	}
	if exists {
		return nil, ErrConflict
	}

	// Единственная условная запись; ноль затронутых строк означает
	// что сессию уже занял кто-то другой
	claimed, err := s.sessions.Claim(ctx, target.ID, requester.ID, uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("claim session: %w", err)
	}
	if !claimed {
		return nil, ErrConflict
	}

	session, err := s.sessions.GetByID(ctx, target.ID)
	if err != nil {
		return nil, fmt.Errorf("reload session: %w", err)
	}
	if session == nil {
		return nil, ErrNotFound
	}

	s.appendLog(ctx, requester.ID, session.ID, model.BookingActionBooked)
	s.events.SessionMatched(session)

	s.logger.Info("Session joined",
		zap.String("session_id", session.ID.String()),
		zap.Int64("user2_id", requester.ID),
		zap.Time("start_time", session.StartTime),
	)

	return session, nil
}

// create создаёт новую сессию, предварительно пытаясь мгновенно
// спарить запрос с подходящей ожидающей сессией
func (s *BookingService) create(ctx context.Context, requester *model.User, req BookRequest) (*model.Session, error) {
	start := req.StartTime.UTC()
	if !start.After(s.now()) {
		return nil, ErrInvalidTime
	}
	if !model.ValidDuration(req.DurationMinutes) {
		return nil, ErrInvalidDuration
	}

	// Проверка дубля сравнивает только точное совпадение времени и
	// длительности. Две пересекающиеся сессии с разным началом она
	// не ловит - известный пробел, сохранён сознательно.
	exists, err := s.sessions.HasActiveAt(ctx, requester.ID, start, req.DurationMinutes)
	if err != nil {
		return nil, fmt.Errorf("check duplicate booking: %w", err)
	}
	if exists {
		return nil, ErrConflict
	}

	if session, ok := s.tryInstantMatch(ctx, requester, start, req.DurationMinutes); ok {
		return session, nil
	}

	// Кандидата нет или гонка проиграна: создаём новую ожидающую сессию
	session := &model.Session{
		ID:              uuid.New(),
		StartTime:       start,
		DurationMinutes: req.DurationMinutes,
		User1ID:         requester.ID,
		Status:          model.SessionStatusWaiting,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.appendLog(ctx, requester.ID, session.ID, model.BookingActionBooked)
	s.events.SessionBooked(session)

	s.logger.Info("Session created",
		zap.String("session_id", session.ID.String()),
		zap.Int64("user1_id", requester.ID),
		zap.Time("start_time", session.StartTime),
		zap.Int("duration_minutes", session.DurationMinutes),
	)

	return session, nil
}

// tryInstantMatch пытается занять самую старую ожидающую сессию с тем
// же временем, длительностью и языком владельца. Проигранная гонка не
// ошибка: вызывающий создаст новую ожидающую сессию
func (s *BookingService) tryInstantMatch(ctx context.Context, requester *model.User, start time.Time, durationMinutes int) (*model.Session, bool) {
	candidates, err := s.sessions.ListWaitingAt(ctx, start, durationMinutes, requester.ID)
	if err != nil {
		s.logger.Warn("Instant match lookup failed", zap.Error(err))
		return nil, false
	}

	for _, candidate := range candidates {
		owner, err := s.profiles.Resolve(ctx, candidate.User1ID)
		if err != nil {
			// Сессия без владельца никогда не участвует в матчинге
			continue
		}
		if owner.Language != requester.Language {
			continue
		}

		claimed, err := s.sessions.Claim(ctx, candidate.ID, requester.ID, uuid.NewString())
		if err != nil {
			s.logger.Warn("Instant match claim failed",
				zap.String("session_id", candidate.ID.String()),
				zap.Error(err),
			)
			return nil, false
		}
		if !claimed {
			return nil, false
		}

		session, err := s.sessions.GetByID(ctx, candidate.ID)
		if err != nil || session == nil {
			s.logger.Warn("Instant match reload failed",
				zap.String("session_id", candidate.ID.String()),
				zap.Error(err),
			)
			return nil, false
		}

		s.appendLog(ctx, requester.ID, session.ID, model.BookingActionBooked)
		s.events.SessionMatched(session)

		s.logger.Info("Instant match",
			zap.String("session_id", session.ID.String()),
			zap.Int64("user1_id", session.User1ID),
			zap.Int64("user2_id", requester.ID),
		)

		return session, true
	}

	return nil, false
}

// Cancel отменяет сессию по запросу участника
func (s *BookingService) Cancel(ctx context.Context, requesterID int64, sessionID uuid.UUID) error {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}
	if session == nil {
		return ErrNotFound
	}
	if !session.HasParticipant(requesterID) {
		return ErrForbidden
	}
	if session.IsTerminal() {
		return ErrAlreadyTerminal
	}

	// Граница исключающая: ровно за час до начала отменить уже нельзя
	if !s.now().Before(session.StartTime.Add(-cancelWindow)) {
		return ErrTooLate
	}

	cancelled, err := s.sessions.MarkCancelled(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("cancel session: %w", err)
	}
	if !cancelled {
		return ErrConflict
	}

	session.Status = model.SessionStatusCancelled
	s.appendLog(ctx, requesterID, sessionID, model.BookingActionCancelled)
	s.events.SessionCancelled(session, requesterID)

	s.logger.Info("Session cancelled",
		zap.String("session_id", sessionID.String()),
		zap.Int64("user_id", requesterID),
	)

	return nil
}

// MarkJoined выставляет флаг подключения участника.
// Окно открывается за 5 минут до начала сессии
func (s *BookingService) MarkJoined(ctx context.Context, requesterID int64, sessionID uuid.UUID) error {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}
	if session == nil {
		return ErrNotFound
	}

	slot := session.ParticipantSlot(requesterID)
	if slot == 0 {
		return ErrForbidden
	}
	if session.IsTerminal() {
		return ErrAlreadyTerminal
	}
	if session.Status != model.SessionStatusMatched {
		return ErrConflict
	}
	if s.now().Before(session.StartTime.Add(-joinWindow)) {
		return ErrNotYetJoinable
	}

	joined, err := s.sessions.SetJoined(ctx, sessionID, slot)
	if err != nil {
		return fmt.Errorf("set joined: %w", err)
	}
	if !joined {
		return ErrConflict
	}

	s.logger.Info("Participant joined",
		zap.String("session_id", sessionID.String()),
		zap.Int64("user_id", requesterID),
	)

	return nil
}

// Complete завершает сессию по сигналу сервиса видеозвонков
func (s *BookingService) Complete(ctx context.Context, sessionID uuid.UUID) error {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}
	if session == nil {
		return ErrNotFound
	}

	completed, err := s.sessions.MarkCompleted(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("complete session: %w", err)
	}
	if !completed {
		return ErrConflict
	}

	session.Status = model.SessionStatusCompleted
	s.events.SessionCompleted(session)

	s.logger.Info("Session completed", zap.String("session_id", sessionID.String()))

	return nil
}

// UpcomingSessions получает активные сессии пользователя
func (s *BookingService) UpcomingSessions(ctx context.Context, userID int64) ([]*model.Session, error) {
	sessions, err := s.sessions.ListUpcomingByUser(ctx, userID, s.now())
	if err != nil {
		return nil, fmt.Errorf("list upcoming sessions: %w", err)
	}
	return sessions, nil
}

// appendLog пишет запись аудита. Ошибка записи не откатывает
// успешное бронирование
func (s *BookingService) appendLog(ctx context.Context, userID int64, sessionID uuid.UUID, action model.BookingAction) {
	entry := &model.BookingLogEntry{
		UserID:    userID,
		SessionID: sessionID,
		Action:    action,
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		s.logger.Warn("Failed to append booking log",
			zap.String("session_id", sessionID.String()),
			zap.Int64("user_id", userID),
			zap.String("action", string(action)),
			zap.Error(err),
		)
	}
}
