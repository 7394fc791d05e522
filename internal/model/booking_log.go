package model

import (
	"time"

	"github.com/google/uuid"
)

type BookingAction string

const (
	BookingActionBooked    BookingAction = "booked"
	BookingActionCancelled BookingAction = "cancelled"
)

// BookingLogEntry is an append-only audit record. The engine writes it
// alongside every booking/cancellation and never reads it back.
type BookingLogEntry struct {
	ID        int64         `json:"id"`
	UserID    int64         `json:"user_id"`
	SessionID uuid.UUID     `json:"session_id"`
	Action    BookingAction `json:"action"`
	CreatedAt time.Time     `json:"created_at"`
}
