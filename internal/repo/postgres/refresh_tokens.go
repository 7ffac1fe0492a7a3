package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/resumeforge/internal/domain/session"
	"github.com/geocoder89/resumeforge/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RefreshTokensRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewRefreshTokensRepo(pool *pgxpool.Pool, prom *observability.Prom) *RefreshTokensRepo {
	return &RefreshTokensRepo{pool: pool, prom: prom}
}

func (r *RefreshTokensRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func insertRefreshToken(ctx context.Context, q pgx.Tx, row session.RefreshToken) error {
	_, err := q.Exec(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, row.ID, row.UserID, row.TokenHash, row.ExpiresAt, row.CreatedAt)
	return err
}

func (r *RefreshTokensRepo) Create(ctx context.Context, row session.RefreshToken) error {
	return r.observe("refresh_tokens.create", func() error {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at)
			VALUES ($1,$2,$3,$4,$5)
		`, row.ID, row.UserID, row.TokenHash, row.ExpiresAt, row.CreatedAt)
		return err
	})
}

func (r *RefreshTokensRepo) ReplaceForUser(ctx context.Context, row session.RefreshToken) error {
	return r.observe("refresh_tokens.replace_for_user", func() error {
		return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, row.UserID); err != nil {
				return err
			}
			return insertRefreshToken(ctx, tx, row)
		})
	})
}

func (r *RefreshTokensRepo) GetByHash(ctx context.Context, hash string) (session.RefreshToken, error) {
	var row session.RefreshToken

	err := r.observe("refresh_tokens.get_by_hash", func() error {
		err := r.pool.QueryRow(ctx, `
			SELECT id, user_id, token_hash, expires_at, created_at
			FROM refresh_tokens
			WHERE token_hash = $1
		`, hash).Scan(
			&row.ID,
			&row.UserID,
			&row.TokenHash,
			&row.ExpiresAt,
			&row.CreatedAt,
		)
		if errors.Is(err, pgx.ErrNoRows) {
			return session.ErrRefreshTokenNotFound
		}
		return err
	})

	return row, err
}

// Rotate deletes the presented row and inserts its successor in one
// transaction. The DELETE row lock makes a concurrent rotation of the same
// token observe zero deleted rows.
func (r *RefreshTokensRepo) Rotate(ctx context.Context, oldHash string, next session.RefreshToken) error {
	return r.observe("refresh_tokens.rotate", func() error {
		return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
			tag, err := tx.Exec(ctx, `DELETE FROM refresh_tokens WHERE token_hash = $1`, oldHash)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return session.ErrRefreshTokenNotFound
			}
			return insertRefreshToken(ctx, tx, next)
		})
	})
}

func (r *RefreshTokensRepo) DeleteByHash(ctx context.Context, hash string) error {
	return r.observe("refresh_tokens.delete_by_hash", func() error {
		_, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE token_hash = $1`, hash)
		return err
	})
}

func (r *RefreshTokensRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var n int64

	err := r.observe("refresh_tokens.delete_expired", func() error {
		tag, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= $1`, now)
		if err != nil {
			return err
		}
		n = tag.RowsAffected()
		return nil
	})

	return n, err
}
