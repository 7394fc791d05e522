package model

import (
	"time"

	"github.com/google/uuid"
)

type SlotState string

const (
	SlotStateAvailable   SlotState = "available"   // Свободно, можно создать сессию
	SlotStateWaiting     SlotState = "waiting"     // Кто-то уже ждёт партнёра
	SlotStateUnavailable SlotState = "unavailable" // Занято или в прошлом
)

// SlotDescriptor describes one cell of the daily booking grid.
// For a waiting slot StartTime carries the exact instant of the
// underlying session rather than the grid boundary.
type SlotDescriptor struct {
	StartTime       time.Time  `json:"start_time"`
	State           SlotState  `json:"state"`
	PartnerName     string     `json:"partner_name,omitempty"`
	DurationMinutes int        `json:"duration_minutes,omitempty"`
	SessionID       *uuid.UUID `json:"session_id,omitempty"`
}
