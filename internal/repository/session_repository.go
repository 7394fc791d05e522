package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nrgiser71/tandemup-sub000/internal/model"
)

// Код unique_violation в PostgreSQL
const pgUniqueViolation = "23505"

type SessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

const sessionColumns = `id, start_time, duration_minutes, user1_id, user2_id, user1_joined, user2_joined, status, room_token, created_at, updated_at`

func scanSession(row pgx.Row) (*model.Session, error) {
	var session model.Session
	err := row.Scan(
		&session.ID,
		&session.StartTime,
		&session.DurationMinutes,
		&session.User1ID,
		&session.User2ID,
		&session.User1Joined,
		&session.User2Joined,
		&session.Status,
		&session.RoomToken,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *SessionRepository) querySessions(ctx context.Context, query string, args ...interface{}) ([]*model.Session, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*model.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}

	return sessions, rows.Err()
}

// Create создаёт новую сессию в статусе waiting
func (r *SessionRepository) Create(ctx context.Context, session *model.Session) error {
	query := `
		INSERT INTO sessions (id, start_time, duration_minutes, user1_id, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`

	err := r.pool.QueryRow(
		ctx, query,
		session.ID,
		session.StartTime,
		session.DurationMinutes,
		session.User1ID,
		session.Status,
	).Scan(&session.CreatedAt, &session.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrDuplicate
		}
		return fmt.Errorf("create session: %w", err)
	}

	return nil
}

// GetByID получает сессию по ID
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`

	session, err := scanSession(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get session by id: %w", err)
	}

	return session, nil
}

// ListWaiting получает все ожидающие сессии (для свипа матчинга),
// старые первыми
func (r *SessionRepository) ListWaiting(ctx context.Context) ([]*model.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE status = 'waiting' AND user2_id IS NULL
		ORDER BY created_at ASC
	`

	sessions, err := r.querySessions(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list waiting sessions: %w", err)
	}
	return sessions, nil
}

// ListWaitingAt получает чужие ожидающие сессии на точное время и длительность
func (r *SessionRepository) ListWaitingAt(ctx context.Context, start time.Time, durationMinutes int, excludeUserID int64) ([]*model.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE status = 'waiting'
		  AND user2_id IS NULL
		  AND start_time = $1
		  AND duration_minutes = $2
		  AND user1_id <> $3
		ORDER BY created_at ASC
	`

	sessions, err := r.querySessions(ctx, query, start, durationMinutes, excludeUserID)
	if err != nil {
		return nil, fmt.Errorf("list waiting sessions at: %w", err)
	}
	return sessions, nil
}

// ListByStartRange получает все сессии с началом в диапазоне [from, to)
func (r *SessionRepository) ListByStartRange(ctx context.Context, from, to time.Time) ([]*model.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE start_time >= $1 AND start_time < $2
		ORDER BY start_time ASC
	`

	sessions, err := r.querySessions(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("list sessions by range: %w", err)
	}
	return sessions, nil
}

// ListUpcomingByUser получает активные сессии пользователя с началом после from
func (r *SessionRepository) ListUpcomingByUser(ctx context.Context, userID int64, from time.Time) ([]*model.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE (user1_id = $1 OR user2_id = $1)
		  AND status IN ('waiting', 'matched')
		  AND start_time >= $2
		ORDER BY start_time ASC
	`

	sessions, err := r.querySessions(ctx, query, userID, from)
	if err != nil {
		return nil, fmt.Errorf("list upcoming sessions: %w", err)
	}
	return sessions, nil
}

// ListNoShowCandidates получает matched сессии с началом до cutoff,
// где хотя бы один участник не подключился
func (r *SessionRepository) ListNoShowCandidates(ctx context.Context, cutoff time.Time) ([]*model.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE status = 'matched'
		  AND start_time < $1
		  AND (NOT user1_joined OR NOT user2_joined)
		ORDER BY start_time ASC
	`

	sessions, err := r.querySessions(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list no-show candidates: %w", err)
	}
	return sessions, nil
}

// HasActiveAt проверяет есть ли у пользователя активная сессия
// на точное время и длительность
func (r *SessionRepository) HasActiveAt(ctx context.Context, userID int64, start time.Time, durationMinutes int) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM sessions
			WHERE (user1_id = $1 OR user2_id = $1)
			  AND start_time = $2
			  AND duration_minutes = $3
			  AND status IN ('waiting', 'matched')
		)
	`

	var exists bool
	err := r.pool.QueryRow(ctx, query, userID, start, durationMinutes).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check active session: %w", err)
	}

	return exists, nil
}

// Claim атомарно занимает ожидающую сессию вторым участником.
// Условие в WHERE гарантирует что при гонке победит ровно один вызов:
// ноль затронутых строк означает что сессию уже кто-то занял.
func (r *SessionRepository) Claim(ctx context.Context, id uuid.UUID, user2ID int64, roomToken string) (bool, error) {
	query := `
		UPDATE sessions
		SET status = 'matched', user2_id = $1, room_token = $2, updated_at = now()
		WHERE id = $3 AND status = 'waiting' AND user2_id IS NULL AND user1_id <> $1
	`

	result, err := r.pool.Exec(ctx, query, user2ID, roomToken, id)
	if err != nil {
		return false, fmt.Errorf("claim session: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// MarkCancelled переводит активную сессию в cancelled
func (r *SessionRepository) MarkCancelled(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE sessions
		SET status = 'cancelled', updated_at = now()
		WHERE id = $1 AND status IN ('waiting', 'matched')
	`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("cancel session: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// MarkNoShow переводит matched сессию хотя бы с одной неявкой в no_show
// и возвращает строку на момент перехода: штрафовать можно только по
// флагам из этой строки, снимок до свипа мог устареть.
// nil без ошибки означает что условие уже не выполняется
func (r *SessionRepository) MarkNoShow(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	query := `
		UPDATE sessions
		SET status = 'no_show', updated_at = now()
		WHERE id = $1 AND status = 'matched' AND (NOT user1_joined OR NOT user2_joined)
		RETURNING ` + sessionColumns

	session, err := scanSession(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("mark no-show: %w", err)
	}

	return session, nil
}

// MarkCompleted завершает matched сессию где оба участника подключились
func (r *SessionRepository) MarkCompleted(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE sessions
		SET status = 'completed', updated_at = now()
		WHERE id = $1 AND status = 'matched' AND user1_joined AND user2_joined
	`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("mark completed: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// SetJoined выставляет флаг подключения участника (1 или 2).
// Флаг монотонный: обратно в false он не сбрасывается
func (r *SessionRepository) SetJoined(ctx context.Context, id uuid.UUID, participant int) (bool, error) {
	var query string
	switch participant {
	case 1:
		query = `UPDATE sessions SET user1_joined = true, updated_at = now() WHERE id = $1 AND status = 'matched'`
	case 2:
		query = `UPDATE sessions SET user2_joined = true, updated_at = now() WHERE id = $1 AND status = 'matched'`
	default:
		return false, fmt.Errorf("invalid participant slot: %d", participant)
	}

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("set joined: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// Delete удаляет ещё свободную ожидающую сессию. Используется только
// свипом матчинга для поглощённой при слиянии строки: если её
// тем временем заняли, удалять её уже нельзя
func (r *SessionRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `DELETE FROM sessions WHERE id = $1 AND status = 'waiting' AND user2_id IS NULL`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}

	return result.RowsAffected() > 0, nil
}
