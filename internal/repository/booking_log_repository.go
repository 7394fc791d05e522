package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nrgiser71/tandemup-sub000/internal/model"
)

type BookingLogRepository struct {
	pool *pgxpool.Pool
}

func NewBookingLogRepository(pool *pgxpool.Pool) *BookingLogRepository {
	return &BookingLogRepository{pool: pool}
}

// Append добавляет запись в журнал бронирований.
// Журнал только для аудита, движок его не читает
func (r *BookingLogRepository) Append(ctx context.Context, entry *model.BookingLogEntry) error {
	query := `
		INSERT INTO booking_log (user_id, session_id, action)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	err := r.pool.QueryRow(
		ctx, query,
		entry.UserID,
		entry.SessionID,
		entry.Action,
	).Scan(&entry.ID, &entry.CreatedAt)

	if err != nil {
		return fmt.Errorf("append booking log: %w", err)
	}

	return nil
}
