package controller

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nrgiser71/tandemup-sub000/internal/service"
	"go.uber.org/zap"
)

type SessionController struct {
	bookings    *service.BookingService
	slots       *service.SlotService
	matchmaking *service.MatchmakingService
	noShows     *service.NoShowService
	logger      *zap.Logger
}

func NewSessionController(
	bookings *service.BookingService,
	slots *service.SlotService,
	matchmaking *service.MatchmakingService,
	noShows *service.NoShowService,
	logger *zap.Logger,
) *SessionController {
	return &SessionController{
		bookings:    bookings,
		slots:       slots,
		matchmaking: matchmaking,
		noShows:     noShows,
		logger:      logger,
	}
}

type bookRequest struct {
	StartTime       time.Time `json:"start_time"`
	DurationMinutes int       `json:"duration_minutes"`
	Action          string    `json:"action" binding:"required,oneof=create join"`
	TargetSessionID string    `json:"target_session_id"`
}

// ResolveSlots handles GET /api/slots?date=YYYY-MM-DD
func (ctrl *SessionController) ResolveSlots(c *gin.Context) {
	date, err := time.Parse("2006-01-02", c.Query("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be formatted as YYYY-MM-DD"})
		return
	}

	slots, err := ctrl.slots.ResolveSlots(c.Request.Context(), date, currentUserID(c))
	if err != nil {
		ctrl.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"slots": slots})
}

// Book handles POST /api/sessions
func (ctrl *SessionController) Book(c *gin.Context) {
	var req bookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bookReq := service.BookRequest{
		StartTime:       req.StartTime,
		DurationMinutes: req.DurationMinutes,
		Action:          service.BookAction(req.Action),
	}
	if req.Action == string(service.BookActionJoin) {
		targetID, err := uuid.Parse(req.TargetSessionID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "join requires a valid target_session_id"})
			return
		}
		bookReq.TargetSessionID = &targetID
	} else {
		if req.StartTime.IsZero() || req.DurationMinutes == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "create requires start_time and duration_minutes"})
			return
		}
	}

	session, err := ctrl.bookings.Book(c.Request.Context(), currentUserID(c), bookReq)
	if err != nil {
		ctrl.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, session)
}

// Cancel handles DELETE /api/sessions/:id
func (ctrl *SessionController) Cancel(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	if err := ctrl.bookings.Cancel(c.Request.Context(), currentUserID(c), sessionID); err != nil {
		ctrl.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

// MarkJoined handles POST /api/sessions/:id/joined
func (ctrl *SessionController) MarkJoined(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	if err := ctrl.bookings.MarkJoined(c.Request.Context(), currentUserID(c), sessionID); err != nil {
		ctrl.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "joined"})
}

// Upcoming handles GET /api/sessions/upcoming
func (ctrl *SessionController) Upcoming(c *gin.Context) {
	sessions, err := ctrl.bookings.UpcomingSessions(c.Request.Context(), currentUserID(c))
	if err != nil {
		ctrl.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// Complete handles POST /internal/sessions/:id/complete, called by the
// conferencing service when the structured phases finish
func (ctrl *SessionController) Complete(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	if err := ctrl.bookings.Complete(c.Request.Context(), sessionID); err != nil {
		ctrl.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "completed"})
}

// SweepMatches handles POST /internal/sweep/matches for an external cron
func (ctrl *SessionController) SweepMatches(c *gin.Context) {
	if err := ctrl.matchmaking.ReconcileMatches(c.Request.Context()); err != nil {
		ctrl.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// SweepNoShows handles POST /internal/sweep/no-shows for an external cron
func (ctrl *SessionController) SweepNoShows(c *gin.Context) {
	if err := ctrl.noShows.SweepNoShows(c.Request.Context()); err != nil {
		ctrl.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Health handles GET /health
func (ctrl *SessionController) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// respondError maps engine errors to HTTP statuses
func (ctrl *SessionController) respondError(c *gin.Context, err error) {
	var status int
	switch {
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrConflict),
		errors.Is(err, service.ErrTooLate),
		errors.Is(err, service.ErrAlreadyTerminal),
		errors.Is(err, service.ErrNotYetJoinable):
		status = http.StatusConflict
	case errors.Is(err, service.ErrInvalidTime),
		errors.Is(err, service.ErrInvalidDuration):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrIneligible),
		errors.Is(err, service.ErrForbidden):
		status = http.StatusForbidden
	default:
		ctrl.logger.Error("Unhandled engine error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(status, gin.H{"error": err.Error()})
}
