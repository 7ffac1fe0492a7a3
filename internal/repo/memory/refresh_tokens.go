package memory

import (
	"context"
	"sync"
	"time"

	"github.com/geocoder89/resumeforge/internal/domain/session"
)

type RefreshTokensRepo struct {
	mu     sync.Mutex
	byHash map[string]session.RefreshToken
}

func NewRefreshTokensRepo() *RefreshTokensRepo {
	return &RefreshTokensRepo{byHash: make(map[string]session.RefreshToken)}
}

func (r *RefreshTokensRepo) Create(_ context.Context, row session.RefreshToken) error {
	r.mu.Lock()
	r.byHash[row.TokenHash] = row
	r.mu.Unlock()
	return nil
}

func (r *RefreshTokensRepo) ReplaceForUser(_ context.Context, row session.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for hash, existing := range r.byHash {
		if existing.UserID == row.UserID {
			delete(r.byHash, hash)
		}
	}
	r.byHash[row.TokenHash] = row
	return nil
}

func (r *RefreshTokensRepo) GetByHash(_ context.Context, hash string) (session.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.byHash[hash]
	if !ok {
		return session.RefreshToken{}, session.ErrRefreshTokenNotFound
	}
	return row, nil
}

func (r *RefreshTokensRepo) Rotate(_ context.Context, oldHash string, next session.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byHash[oldHash]; !ok {
		return session.ErrRefreshTokenNotFound
	}
	delete(r.byHash, oldHash)
	r.byHash[next.TokenHash] = next
	return nil
}

func (r *RefreshTokensRepo) DeleteByHash(_ context.Context, hash string) error {
	r.mu.Lock()
	delete(r.byHash, hash)
	r.mu.Unlock()
	return nil
}

func (r *RefreshTokensRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for hash, row := range r.byHash {
		if row.Expired(now) {
			delete(r.byHash, hash)
			n++
		}
	}
	return n, nil
}

// CountForUser reports how many refresh tokens a user has stored.
func (r *RefreshTokensRepo) CountForUser(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, row := range r.byHash {
		if row.UserID == userID {
			n++
		}
	}
	return n
}

// Set overwrites a stored row, which lets tests age a token.
func (r *RefreshTokensRepo) Set(row session.RefreshToken) {
	r.mu.Lock()
	r.byHash[row.TokenHash] = row
	r.mu.Unlock()
}
