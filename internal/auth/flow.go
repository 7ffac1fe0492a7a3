package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/geocoder89/resumeforge/internal/apperr"
	"github.com/geocoder89/resumeforge/internal/domain/user"
	"github.com/geocoder89/resumeforge/internal/security"
	"github.com/google/uuid"
)

type UserStore interface {
	UserFinder
	GetByEmail(ctx context.Context, email string) (user.User, error)
	Create(ctx context.Context, u user.User) (user.User, error)
}

// Observer receives auth outcomes; observability.Prom implements it.
type Observer interface {
	ObserveAuth(op, result string)
}

type LoginResult struct {
	User   user.User
	Tokens TokenPair
}

// Service orchestrates signup, login, refresh and logout.
type Service struct {
	users  UserStore
	tokens *TokenService
	log    *slog.Logger
	obs    Observer
}

func NewService(users UserStore, tokens *TokenService, log *slog.Logger, obs Observer) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{users: users, tokens: tokens, log: log, obs: obs}
}

func (s *Service) Tokens() *TokenService { return s.tokens }

func (s *Service) Signup(ctx context.Context, email, password string) (u user.User, err error) {
	defer func() { s.observe("signup", err) }()

	email = normalizeEmail(email)
	if email == "" || password == "" {
		return user.User{}, apperr.BadRequest("invalid_request", "Email and password are required")
	}

	_, err = s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return user.User{}, apperr.Conflict("email_taken", "User with this email already exists")
	case !errors.Is(err, user.ErrNotFound):
		return user.User{}, apperr.Internal("Could not create user", err)
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		return user.User{}, apperr.Internal("Could not create user", err)
	}

	now := time.Now().UTC()
	created, err := s.users.Create(ctx, user.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Role:         user.RoleUser,
		Plan:         user.PlanFree,
		ResumeLimit:  user.PlanFree.Quota(),
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		// lost a race with a concurrent signup for the same email
		if errors.Is(err, user.ErrEmailAlreadyUsed) {
			return user.User{}, apperr.Conflict("email_taken", "User with this email already exists")
		}
		return user.User{}, apperr.Internal("Could not create user", err)
	}

	s.log.InfoContext(ctx, "user signed up", "user_id", created.ID)

	return sanitize(created), nil
}

func (s *Service) Login(ctx context.Context, email, password string) (res LoginResult, err error) {
	defer func() { s.observe("login", err) }()

	invalid := apperr.Unauthorized("invalid_credentials", "Invalid email or password")

	found, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			security.BurnCompare(password)
			return LoginResult{}, invalid
		}
		return LoginResult{}, apperr.Internal("Could not log in", err)
	}

	if err := security.CheckPassword(found.PasswordHash, password); err != nil {
		return LoginResult{}, invalid
	}

	pair, err := s.tokens.IssueTokenPair(found.Identity())
	if err != nil {
		return LoginResult{}, err
	}

	if err := s.tokens.PersistRefreshToken(ctx, found.ID, pair); err != nil {
		return LoginResult{}, err
	}

	return LoginResult{User: sanitize(found), Tokens: pair}, nil
}

func (s *Service) Refresh(ctx context.Context, rawRefresh string) (pair TokenPair, err error) {
	defer func() { s.observe("refresh", err) }()

	u, row, err := s.tokens.VerifyRefreshToken(ctx, rawRefresh)
	if err != nil {
		return TokenPair{}, err
	}

	return s.tokens.Rotate(ctx, row, u)
}

func (s *Service) Logout(ctx context.Context, rawRefresh string) error {
	return s.tokens.Revoke(ctx, rawRefresh)
}

func (s *Service) observe(op string, err error) {
	if s.obs == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = apperr.KindOf(err).String()
	}
	s.obs.ObserveAuth(op, result)
}

func sanitize(u user.User) user.User {
	u.PasswordHash = ""
	return u
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
