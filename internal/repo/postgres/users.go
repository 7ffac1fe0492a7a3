package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/resumeforge/internal/domain/user"
	"github.com/geocoder89/resumeforge/internal/observability"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, email, password_hash, role, plan, resume_limit, stripe_customer_id, plan_event_at, created_at, updated_at`

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User
	var plan string

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Role,
		&plan,
		&u.ResumeLimit,
		&u.StripeCustomerID,
		&u.PlanEventAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}

	u.Plan = user.Plan(plan)
	return u, nil
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	var created user.User

	err := r.observe("users.create", func() error {
		var err error
		created, err = scanUser(r.pool.QueryRow(ctx, `
			INSERT INTO users (id, email, password_hash, role, plan, resume_limit, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			RETURNING `+userColumns,
			u.ID, u.Email, u.PasswordHash, u.Role, string(u.Plan), u.ResumeLimit, u.CreatedAt, u.UpdatedAt,
		))
		return err
	})

	if err != nil {
		if IsUniqueViolation(err) {
			return user.User{}, user.ErrEmailAlreadyUsed
		}
		return user.User{}, err
	}

	return created, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User

	err := r.observe("users.get_by_email", func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
		return err
	})

	return u, err
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	// ids are UUIDs; anything else cannot exist
	if _, err := uuid.Parse(id); err != nil {
		return user.User{}, user.ErrNotFound
	}

	var u user.User

	err := r.observe("users.get_by_id", func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
		return err
	})

	return u, err
}

func (r *UsersRepo) List(ctx context.Context) ([]user.User, error) {
	var out []user.User

	err := r.observe("users.list", func() error {
		rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at ASC`)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = make([]user.User, 0)
		for rows.Next() {
			u, err := scanUser(rows)
			if err != nil {
				return err
			}
			out = append(out, u)
		}
		return rows.Err()
	})

	return out, err
}

// UpdatePlan overwrites plan and quota unless a newer billing event was
// already applied. The comparison and the write happen in one statement.
func (r *UsersRepo) UpdatePlan(ctx context.Context, userID string, change user.PlanChange, eventAt time.Time) (user.User, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return user.User{}, user.ErrNotFound
	}

	var u user.User

	err := r.observe("users.update_plan", func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx, `
			UPDATE users
			SET plan = $2,
			    resume_limit = $3,
			    plan_event_at = $4,
			    updated_at = NOW()
			WHERE id = $1
			  AND (plan_event_at IS NULL OR plan_event_at <= $4)
			RETURNING `+userColumns,
			userID, string(change.Plan), change.ResumeLimit, eventAt.UTC(),
		))
		return err
	})

	if errors.Is(err, user.ErrNotFound) {
		var exists bool
		existsErr := r.observe("users.exists", func() error {
			return r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists)
		})
		if existsErr != nil {
			return user.User{}, existsErr
		}
		if exists {
			return user.User{}, user.ErrStalePlanEvent
		}
		return user.User{}, user.ErrNotFound
	}

	return u, err
}

// SetStripeCustomerID records the customer id only if none is stored yet. It
// returns user.ErrNotFound when the user does not exist.
func (r *UsersRepo) SetStripeCustomerID(ctx context.Context, userID, customerID string) error {
	if _, err := uuid.Parse(userID); err != nil {
		return user.ErrNotFound
	}

	return r.observe("users.set_stripe_customer", func() error {
		tag, err := r.pool.Exec(ctx, `
			UPDATE users
			SET stripe_customer_id = COALESCE(stripe_customer_id, $2),
			    updated_at = CASE WHEN stripe_customer_id IS NULL THEN NOW() ELSE updated_at END
			WHERE id = $1
		`, userID, customerID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return user.ErrNotFound
		}
		return nil
	})
}

func (r *UsersRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
