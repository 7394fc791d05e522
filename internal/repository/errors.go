package repository

import "errors"

// ErrDuplicate возвращается при нарушении уникальности
// активного слота (user1_id, start_time, duration_minutes)
var ErrDuplicate = errors.New("duplicate active session for slot")
