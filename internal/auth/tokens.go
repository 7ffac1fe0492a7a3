package auth

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/resumeforge/internal/apperr"
	"github.com/geocoder89/resumeforge/internal/domain/session"
	"github.com/geocoder89/resumeforge/internal/domain/user"
)

type UserFinder interface {
	GetByID(ctx context.Context, id string) (user.User, error)
}

type RefreshTokenStore interface {
	Create(ctx context.Context, row session.RefreshToken) error
	// ReplaceForUser deletes every stored token of row.UserID and inserts row.
	ReplaceForUser(ctx context.Context, row session.RefreshToken) error
	GetByHash(ctx context.Context, hash string) (session.RefreshToken, error)
	// Rotate deletes the row with oldHash and inserts next atomically. It
	// returns session.ErrRefreshTokenNotFound if oldHash is no longer stored.
	Rotate(ctx context.Context, oldHash string, next session.RefreshToken) error
	DeleteByHash(ctx context.Context, hash string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type TokenServiceConfig struct {
	// StoreTTL is the lifetime of the stored record, counted from issuance.
	StoreTTL time.Duration
	// SingleSession revokes every other refresh token of a user on issue.
	SingleSession bool
	Now           func() time.Time
}

var (
	errNoRefresh      = apperr.Unauthorized("no_refresh", "Missing refresh token")
	errInvalidRefresh = apperr.Unauthorized("invalid_refresh", "Invalid refresh token")
	errExpiredRefresh = apperr.Unauthorized("expired_refresh", "Refresh token expired")
)

// TokenService issues token pairs and owns the refresh-token lifecycle.
type TokenService struct {
	jwt    *Manager
	tokens RefreshTokenStore
	users  UserFinder
	cfg    TokenServiceConfig
}

func NewTokenService(jwtManager *Manager, tokens RefreshTokenStore, users UserFinder, cfg TokenServiceConfig) *TokenService {
	if cfg.StoreTTL <= 0 {
		cfg.StoreTTL = 7 * 24 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &TokenService{
		jwt:    jwtManager,
		tokens: tokens,
		users:  users,
		cfg:    cfg,
	}
}

func (s *TokenService) IssueTokenPair(id user.Identity) (TokenPair, error) {
	pair, err := s.jwt.IssuePair(id)
	if err != nil {
		return TokenPair{}, apperr.Internal("Could not generate tokens", err)
	}
	return pair, nil
}

func (s *TokenService) PersistRefreshToken(ctx context.Context, userID string, pair TokenPair) error {
	row := s.rowFor(userID, pair)

	var err error
	if s.cfg.SingleSession {
		err = s.tokens.ReplaceForUser(ctx, row)
	} else {
		err = s.tokens.Create(ctx, row)
	}

	if err != nil {
		return apperr.Internal("Could not create session", err)
	}
	return nil
}

// VerifyRefreshToken checks store presence first, then the signature and
// expiry, then that the subject still exists.
func (s *TokenService) VerifyRefreshToken(ctx context.Context, raw string) (user.User, session.RefreshToken, error) {
	if raw == "" {
		return user.User{}, session.RefreshToken{}, errNoRefresh
	}

	row, err := s.tokens.GetByHash(ctx, s.jwt.HashRefreshToken(raw))
	if err != nil {
		if errors.Is(err, session.ErrRefreshTokenNotFound) {
			return user.User{}, session.RefreshToken{}, errInvalidRefresh
		}
		return user.User{}, session.RefreshToken{}, apperr.Internal("Could not refresh session", err)
	}

	claims, err := s.jwt.VerifyRefreshToken(raw)
	if err != nil {
		return user.User{}, session.RefreshToken{}, errInvalidRefresh.Wrap(err)
	}

	if row.Expired(s.cfg.Now()) {
		return user.User{}, session.RefreshToken{}, errExpiredRefresh
	}

	if claims.Subject != row.UserID {
		return user.User{}, session.RefreshToken{}, errInvalidRefresh
	}

	u, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, session.RefreshToken{}, errInvalidRefresh.Wrap(err)
		}
		return user.User{}, session.RefreshToken{}, apperr.Internal("Could not refresh session", err)
	}

	return u, row, nil
}

// Rotate issues a fresh pair for u and swaps it in for the presented token.
// Losing a concurrent rotation of the same token fails as unauthorized.
func (s *TokenService) Rotate(ctx context.Context, presented session.RefreshToken, u user.User) (TokenPair, error) {
	pair, err := s.IssueTokenPair(u.Identity())
	if err != nil {
		return TokenPair{}, err
	}

	err = s.tokens.Rotate(ctx, presented.TokenHash, s.rowFor(u.ID, pair))
	if err != nil {
		if errors.Is(err, session.ErrRefreshTokenNotFound) {
			return TokenPair{}, errInvalidRefresh
		}
		return TokenPair{}, apperr.Internal("Could not refresh session", err)
	}

	return pair, nil
}

// Revoke removes a refresh token from the store. Unknown tokens are ignored.
func (s *TokenService) Revoke(ctx context.Context, raw string) error {
	if raw == "" {
		return nil
	}
	if err := s.tokens.DeleteByHash(ctx, s.jwt.HashRefreshToken(raw)); err != nil {
		return apperr.Internal("Could not end session", err)
	}
	return nil
}

func (s *TokenService) SweepExpired(ctx context.Context) (int64, error) {
	return s.tokens.DeleteExpired(ctx, s.cfg.Now().UTC())
}

func (s *TokenService) rowFor(userID string, pair TokenPair) session.RefreshToken {
	now := s.cfg.Now().UTC()

	return session.RefreshToken{
		ID:        pair.RefreshJTI,
		UserID:    userID,
		TokenHash: s.jwt.HashRefreshToken(pair.RefreshToken),
		ExpiresAt: now.Add(s.cfg.StoreTTL),
		CreatedAt: now,
	}
}
