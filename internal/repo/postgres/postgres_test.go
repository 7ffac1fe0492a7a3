package postgres_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/geocoder89/resumeforge/internal/db"
	"github.com/geocoder89/resumeforge/internal/domain/resume"
	"github.com/geocoder89/resumeforge/internal/domain/session"
	"github.com/geocoder89/resumeforge/internal/domain/user"
	"github.com/geocoder89/resumeforge/internal/observability"
	"github.com/geocoder89/resumeforge/internal/repo/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// setupPool connects to TEST_DB_DSN, applies migrations and empties the
// tables. Tests are skipped when no database is configured.
func setupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("Failed to create pgx pool: %v", err)
	}
	t.Cleanup(pool.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := db.Migrate(ctx, pool, logger); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	_, err = pool.Exec(ctx, `TRUNCATE resumes, refresh_tokens, users CASCADE`)
	if err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}

	return pool
}

func newProm() *observability.Prom {
	return observability.NewProm(prometheus.NewRegistry())
}

func createUser(t *testing.T, users *postgres.UsersRepo, email string, limit int) user.User {
	t.Helper()

	now := time.Now().UTC()
	u, err := users.Create(context.Background(), user.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: "hash",
		Role:         user.RoleUser,
		Plan:         user.PlanFree,
		ResumeLimit:  limit,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func countTokens(t *testing.T, pool *pgxpool.Pool, userID string) int {
	t.Helper()

	var n int
	err := pool.QueryRow(context.Background(), `SELECT COUNT(*) FROM refresh_tokens WHERE user_id = $1`, userID).Scan(&n)
	if err != nil {
		t.Fatalf("count tokens: %v", err)
	}
	return n
}

func tokenRow(userID, hash string, expiresAt time.Time) session.RefreshToken {
	return session.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: hash,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
}

func TestUsersCreateRejectsDuplicateEmail(t *testing.T) {
	pool := setupPool(t)
	users := postgres.NewUsersRepo(pool, newProm())

	createUser(t, users, "dup@example.com", 2)

	_, err := users.Create(context.Background(), user.User{
		ID:           uuid.NewString(),
		Email:        "dup@example.com",
		PasswordHash: "hash",
		Role:         user.RoleUser,
		Plan:         user.PlanFree,
		ResumeLimit:  2,
	})
	if !errors.Is(err, user.ErrEmailAlreadyUsed) {
		t.Fatalf("expected ErrEmailAlreadyUsed, got %v", err)
	}
}

func TestUsersUpdatePlanGuardsEventOrder(t *testing.T) {
	pool := setupPool(t)
	users := postgres.NewUsersRepo(pool, newProm())
	ctx := context.Background()

	u := createUser(t, users, "plan@example.com", 2)
	t1 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	got, err := users.UpdatePlan(ctx, u.ID, user.ChangeTo(user.PlanPro), t1)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got.Plan != user.PlanPro || got.ResumeLimit != 10 {
		t.Fatalf("unexpected plan %+v", got)
	}
	if got.PlanEventAt == nil || !got.PlanEventAt.Equal(t1) {
		t.Fatalf("plan_event_at = %v, want %v", got.PlanEventAt, t1)
	}

	// a redelivery of the same event time is applied again
	if _, err := users.UpdatePlan(ctx, u.ID, user.ChangeTo(user.PlanPro), t1); err != nil {
		t.Fatalf("same event time: %v", err)
	}

	_, err = users.UpdatePlan(ctx, u.ID, user.ChangeTo(user.PlanFree), t1.Add(-time.Minute))
	if !errors.Is(err, user.ErrStalePlanEvent) {
		t.Fatalf("expected ErrStalePlanEvent, got %v", err)
	}

	stored, err := users.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Plan != user.PlanPro {
		t.Fatalf("stale event overwrote plan: %+v", stored)
	}

	_, err = users.UpdatePlan(ctx, uuid.NewString(), user.ChangeTo(user.PlanPro), t1)
	if !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("unknown id: expected ErrNotFound, got %v", err)
	}

	_, err = users.UpdatePlan(ctx, "not-a-uuid", user.ChangeTo(user.PlanPro), t1)
	if !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("malformed id: expected ErrNotFound, got %v", err)
	}
}

func TestUsersSetStripeCustomerID(t *testing.T) {
	pool := setupPool(t)
	users := postgres.NewUsersRepo(pool, newProm())
	ctx := context.Background()

	u := createUser(t, users, "stripe@example.com", 2)

	if err := users.SetStripeCustomerID(ctx, u.ID, "cus_first"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := users.SetStripeCustomerID(ctx, u.ID, "cus_second"); err != nil {
		t.Fatalf("second set: %v", err)
	}

	stored, err := users.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.StripeCustomerID == nil || *stored.StripeCustomerID != "cus_first" {
		t.Fatalf("customer id must not be replaced, got %v", stored.StripeCustomerID)
	}

	tests := []struct {
		name string
		id   string
	}{
		{"unknown_id", uuid.NewString()},
		{"malformed_id", "user-42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := users.SetStripeCustomerID(ctx, tt.id, "cus_x"); !errors.Is(err, user.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestRefreshTokensRotateIsSingleUse(t *testing.T) {
	pool := setupPool(t)
	users := postgres.NewUsersRepo(pool, newProm())
	tokens := postgres.NewRefreshTokensRepo(pool, newProm())
	ctx := context.Background()

	u := createUser(t, users, "rotate@example.com", 2)
	exp := time.Now().UTC().Add(time.Hour)

	if err := tokens.Create(ctx, tokenRow(u.ID, "hash-old", exp)); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := tokens.Rotate(ctx, "hash-old", tokenRow(u.ID, "hash-new", exp)); err != nil {
		t.Fatalf("rotate: %v", err)
	}

	if _, err := tokens.GetByHash(ctx, "hash-old"); !errors.Is(err, session.ErrRefreshTokenNotFound) {
		t.Fatalf("old hash must be gone, got %v", err)
	}
	if _, err := tokens.GetByHash(ctx, "hash-new"); err != nil {
		t.Fatalf("new hash: %v", err)
	}

	err := tokens.Rotate(ctx, "hash-old", tokenRow(u.ID, "hash-other", exp))
	if !errors.Is(err, session.ErrRefreshTokenNotFound) {
		t.Fatalf("second rotation: expected ErrRefreshTokenNotFound, got %v", err)
	}
	if _, err := tokens.GetByHash(ctx, "hash-other"); !errors.Is(err, session.ErrRefreshTokenNotFound) {
		t.Fatalf("failed rotation must not insert a successor, got %v", err)
	}
	if n := countTokens(t, pool, u.ID); n != 1 {
		t.Fatalf("expected 1 stored token, got %d", n)
	}
}

func TestRefreshTokensReplaceForUserKeepsOneRow(t *testing.T) {
	pool := setupPool(t)
	users := postgres.NewUsersRepo(pool, newProm())
	tokens := postgres.NewRefreshTokensRepo(pool, newProm())
	ctx := context.Background()

	u := createUser(t, users, "single@example.com", 2)
	other := createUser(t, users, "other@example.com", 2)
	exp := time.Now().UTC().Add(time.Hour)

	for _, h := range []string{"h1", "h2"} {
		if err := tokens.Create(ctx, tokenRow(u.ID, h, exp)); err != nil {
			t.Fatalf("create %s: %v", h, err)
		}
	}
	if err := tokens.Create(ctx, tokenRow(other.ID, "other-h", exp)); err != nil {
		t.Fatalf("create other: %v", err)
	}

	if err := tokens.ReplaceForUser(ctx, tokenRow(u.ID, "h3", exp)); err != nil {
		t.Fatalf("replace: %v", err)
	}

	if n := countTokens(t, pool, u.ID); n != 1 {
		t.Fatalf("expected exactly 1 token, got %d", n)
	}
	if _, err := tokens.GetByHash(ctx, "h3"); err != nil {
		t.Fatalf("replacement token: %v", err)
	}
	if n := countTokens(t, pool, other.ID); n != 1 {
		t.Fatalf("other user's tokens must survive, got %d", n)
	}
}

func TestRefreshTokensDeleteExpired(t *testing.T) {
	pool := setupPool(t)
	users := postgres.NewUsersRepo(pool, newProm())
	tokens := postgres.NewRefreshTokensRepo(pool, newProm())
	ctx := context.Background()

	u := createUser(t, users, "sweep@example.com", 2)
	now := time.Now().UTC()

	if err := tokens.Create(ctx, tokenRow(u.ID, "expired", now.Add(-time.Minute))); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := tokens.Create(ctx, tokenRow(u.ID, "live", now.Add(time.Hour))); err != nil {
		t.Fatalf("create: %v", err)
	}

	n, err := tokens.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 deleted row, got %d", n)
	}
	if _, err := tokens.GetByHash(ctx, "live"); err != nil {
		t.Fatalf("live token: %v", err)
	}
}

func TestResumesCreateWithinQuota(t *testing.T) {
	pool := setupPool(t)
	users := postgres.NewUsersRepo(pool, newProm())
	resumes := postgres.NewResumesRepo(pool, newProm())
	ctx := context.Background()

	u := createUser(t, users, "quota@example.com", 2)

	for i := 0; i < 2; i++ {
		res := resume.NewFromCreateRequest(u.ID, resume.CreateResumeRequest{
			Title:  "Resume",
			Skills: []string{"go", "sql"},
			WorkExperience: []resume.WorkExperience{
				{Company: "Acme", JobTitle: "Engineer"},
			},
		})
		created, err := resumes.CreateWithinQuota(ctx, res)
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		if len(created.Skills) != 2 || created.WorkExperience[0].Company != "Acme" {
			t.Fatalf("documents not round-tripped: %+v", created)
		}
	}

	_, err := resumes.CreateWithinQuota(ctx, resume.NewFromCreateRequest(u.ID, resume.CreateResumeRequest{Title: "One too many"}))
	if !errors.Is(err, resume.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}

	// a plan upgrade raises the limit
	if _, err := users.UpdatePlan(ctx, u.ID, user.ChangeTo(user.PlanBasic), time.Now().UTC()); err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	if _, err := resumes.CreateWithinQuota(ctx, resume.NewFromCreateRequest(u.ID, resume.CreateResumeRequest{Title: "Third"})); err != nil {
		t.Fatalf("create after upgrade: %v", err)
	}

	_, err = resumes.CreateWithinQuota(ctx, resume.NewFromCreateRequest(uuid.NewString(), resume.CreateResumeRequest{Title: "Orphan"}))
	if !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("unknown owner: expected user.ErrNotFound, got %v", err)
	}
}

func TestResumesScopedToOwner(t *testing.T) {
	pool := setupPool(t)
	users := postgres.NewUsersRepo(pool, newProm())
	resumes := postgres.NewResumesRepo(pool, newProm())
	ctx := context.Background()

	owner := createUser(t, users, "owner@example.com", 5)
	stranger := createUser(t, users, "stranger@example.com", 5)

	created, err := resumes.CreateWithinQuota(ctx, resume.NewFromCreateRequest(owner.ID, resume.CreateResumeRequest{Title: "Mine"}))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := resumes.GetByID(ctx, stranger.ID, created.ID); !errors.Is(err, resume.ErrNotFound) {
		t.Fatalf("stranger get: expected ErrNotFound, got %v", err)
	}
	if err := resumes.Delete(ctx, stranger.ID, created.ID); !errors.Is(err, resume.ErrNotFound) {
		t.Fatalf("stranger delete: expected ErrNotFound, got %v", err)
	}

	title := "Renamed"
	updated, err := resumes.Update(ctx, owner.ID, created.ID, resume.UpdateResumeRequest{Title: &title})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "Renamed" {
		t.Fatalf("title = %q", updated.Title)
	}

	if err := resumes.Delete(ctx, owner.ID, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := resumes.GetByID(ctx, owner.ID, created.ID); !errors.Is(err, resume.ErrNotFound) {
		t.Fatalf("deleted resume: expected ErrNotFound, got %v", err)
	}
}

func TestResumesListKeysetPagination(t *testing.T) {
	pool := setupPool(t)
	users := postgres.NewUsersRepo(pool, newProm())
	resumes := postgres.NewResumesRepo(pool, newProm())
	ctx := context.Background()

	u := createUser(t, users, "pages@example.com", 10)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		res := resume.NewFromCreateRequest(u.ID, resume.CreateResumeRequest{Title: "R"})
		res.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		res.UpdatedAt = res.CreatedAt
		if _, err := resumes.CreateWithinQuota(ctx, res); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	first, err := resumes.List(ctx, resume.ListFilter{UserID: u.ID, Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(first) != 2 || !first[0].UpdatedAt.After(first[1].UpdatedAt) {
		t.Fatalf("expected newest first, got %+v", first)
	}

	last := first[len(first)-1]
	second, err := resumes.List(ctx, resume.ListFilter{UserID: u.ID, Limit: 2, AfterUpdated: &last.UpdatedAt, AfterID: last.ID})
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if len(second) != 1 || !second[0].UpdatedAt.Equal(base) {
		t.Fatalf("unexpected second page %+v", second)
	}
}
