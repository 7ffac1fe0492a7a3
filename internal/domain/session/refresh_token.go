package session

import (
	"errors"
	"time"
)

var ErrRefreshTokenNotFound = errors.New("refresh token not found")

// RefreshToken is a stored refresh-token record. Presence in the store means
// the token has not been revoked.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (t RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
