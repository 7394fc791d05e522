package service

import "errors"

// Ошибки движка бронирования. Controller отображает их в HTTP статусы.
var (
	// ErrNotFound - сессия не существует
	ErrNotFound = errors.New("session not found")
	// ErrConflict - условие атомарной записи больше не выполняется.
	// Нормальный исход проигранной гонки, а не баг
	ErrConflict = errors.New("conflict: precondition no longer holds")
	// ErrInvalidTime - время начала не в будущем
	ErrInvalidTime = errors.New("start time must be in the future")
	// ErrInvalidDuration - длительность не 25 и не 50 минут
	ErrInvalidDuration = errors.New("unsupported session duration")
	// ErrIneligible - внешняя проверка допуска не пройдена
	ErrIneligible = errors.New("requester is not eligible to book")
	// ErrForbidden - пользователь не участник сессии
	ErrForbidden = errors.New("requester is not a participant")
	// ErrTooLate - окно отмены (1 час до начала) закрыто
	ErrTooLate = errors.New("cancellation window is closed")
	// ErrAlreadyTerminal - сессия уже в финальном статусе
	ErrAlreadyTerminal = errors.New("session is already terminal")
	// ErrNotYetJoinable - окно подключения ещё не открылось
	ErrNotYetJoinable = errors.New("join window is not open yet")
)
