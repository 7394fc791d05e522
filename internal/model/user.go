package model

import "time"

// User is the local projection of a participant profile. The identity
// service owns these rows; the engine only reads them, except for the
// no_show_count counter.
type User struct {
	ID          int64     `json:"id"`
	DisplayName string    `json:"display_name"`
	Language    string    `json:"language"`
	Timezone    string    `json:"timezone"`
	IsEligible  bool      `json:"is_eligible"` // Может ли бронировать (trial/подписка/бан)
	NoShowCount int       `json:"no_show_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Location resolves the user's IANA timezone, falling back to UTC
func (u *User) Location() *time.Location {
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil || loc == nil {
		return time.UTC
	}
	return loc
}
