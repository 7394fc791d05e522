package notify

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nrgiser71/tandemup-sub000/internal/model"
	"go.uber.org/zap"
)

// SessionExchange is the fanout exchange the notification service
// consumes from.
const SessionExchange = "tandemup.sessions"

// Event types carried on the session exchange.
const (
	EventSessionBooked    = "session.booked"
	EventSessionMatched   = "session.matched"
	EventSessionCancelled = "session.cancelled"
	EventSessionNoShow    = "session.no_show"
	EventSessionCompleted = "session.completed"
)

// Event is the payload published for every session lifecycle change.
// The notification service turns these into emails/reminders; the
// engine itself never reads them back.
type Event struct {
	Type            string    `json:"type"`
	SessionID       uuid.UUID `json:"session_id"`
	StartTime       time.Time `json:"start_time"`
	DurationMinutes int       `json:"duration_minutes"`
	UserIDs         []int64   `json:"user_ids"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// Events is what the booking engine sees: fire-and-forget lifecycle
// notifications. A failed publish must never roll back or delay a
// state transition.
type Events interface {
	SessionBooked(s *model.Session)
	SessionMatched(s *model.Session)
	SessionCancelled(s *model.Session, cancelledBy int64)
	SessionNoShow(s *model.Session, absent []int64)
	SessionCompleted(s *model.Session)
}

type Notifier struct {
	publisher Publisher
	logger    *zap.Logger
}

func NewNotifier(publisher Publisher, logger *zap.Logger) *Notifier {
	return &Notifier{publisher: publisher, logger: logger}
}

func (n *Notifier) SessionBooked(s *model.Session) {
	n.emit(EventSessionBooked, s, participants(s))
}

func (n *Notifier) SessionMatched(s *model.Session) {
	n.emit(EventSessionMatched, s, participants(s))
}

func (n *Notifier) SessionCancelled(s *model.Session, cancelledBy int64) {
	n.emit(EventSessionCancelled, s, participants(s))
}

func (n *Notifier) SessionNoShow(s *model.Session, absent []int64) {
	n.emit(EventSessionNoShow, s, absent)
}

func (n *Notifier) SessionCompleted(s *model.Session) {
	n.emit(EventSessionCompleted, s, participants(s))
}

// emit publishes asynchronously so booking responses never wait on the
// broker
func (n *Notifier) emit(eventType string, s *model.Session, userIDs []int64) {
	event := Event{
		Type:            eventType,
		SessionID:       s.ID,
		StartTime:       s.StartTime,
		DurationMinutes: s.DurationMinutes,
		UserIDs:         userIDs,
		OccurredAt:      time.Now().UTC(),
	}

	body, err := json.Marshal(event)
	if err != nil {
		n.logger.Error("Failed to marshal event", zap.String("type", eventType), zap.Error(err))
		return
	}

	go func() {
		if err := n.publisher.Publish(SessionExchange, body); err != nil {
			n.logger.Warn("Failed to publish event",
				zap.String("type", eventType),
				zap.String("session_id", s.ID.String()),
				zap.Error(err),
			)
		}
	}()
}

func participants(s *model.Session) []int64 {
	ids := []int64{s.User1ID}
	if s.User2ID != nil {
		ids = append(ids, *s.User2ID)
	}
	return ids
}
