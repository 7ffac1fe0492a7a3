package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/resumeforge/internal/domain/resume"
	"github.com/geocoder89/resumeforge/internal/domain/user"
	"github.com/geocoder89/resumeforge/internal/observability"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const resumeColumns = `id, user_id, title, professional_summary, work_experience, education, skills, template, created_at, updated_at`

type ResumesRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewResumesRepo(pool *pgxpool.Pool, prom *observability.Prom) *ResumesRepo {
	return &ResumesRepo{pool: pool, prom: prom}
}

func (r *ResumesRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

type resumeDocs struct {
	work      []byte
	education []byte
	skills    []byte
}

func encodeResumeDocs(res resume.Resume) (resumeDocs, error) {
	var (
		d   resumeDocs
		err error
	)
	if d.work, err = json.Marshal(res.WorkExperience); err != nil {
		return d, fmt.Errorf("encode work experience: %w", err)
	}
	if d.education, err = json.Marshal(res.Education); err != nil {
		return d, fmt.Errorf("encode education: %w", err)
	}
	if d.skills, err = json.Marshal(res.Skills); err != nil {
		return d, fmt.Errorf("encode skills: %w", err)
	}
	return d, nil
}

func scanResume(row pgx.Row) (resume.Resume, error) {
	var (
		res  resume.Resume
		docs resumeDocs
	)

	err := row.Scan(
		&res.ID,
		&res.UserID,
		&res.Title,
		&res.ProfessionalSummary,
		&docs.work,
		&docs.education,
		&docs.skills,
		&res.Template,
		&res.CreatedAt,
		&res.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return resume.Resume{}, resume.ErrNotFound
		}
		return resume.Resume{}, err
	}

	if err := json.Unmarshal(docs.work, &res.WorkExperience); err != nil {
		return resume.Resume{}, fmt.Errorf("decode work experience: %w", err)
	}
	if err := json.Unmarshal(docs.education, &res.Education); err != nil {
		return resume.Resume{}, fmt.Errorf("decode education: %w", err)
	}
	if err := json.Unmarshal(docs.skills, &res.Skills); err != nil {
		return resume.Resume{}, fmt.Errorf("decode skills: %w", err)
	}

	return res, nil
}

// CreateWithinQuota inserts res unless its owner already holds resume_limit
// resumes. The owner row is locked so concurrent creates cannot both pass the
// count.
func (r *ResumesRepo) CreateWithinQuota(ctx context.Context, res resume.Resume) (resume.Resume, error) {
	docs, err := encodeResumeDocs(res)
	if err != nil {
		return resume.Resume{}, err
	}

	var created resume.Resume

	err = r.observe("resumes.create", func() error {
		return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
			var limit int
			err := tx.QueryRow(ctx, `SELECT resume_limit FROM users WHERE id = $1 FOR UPDATE`, res.UserID).Scan(&limit)
			if errors.Is(err, pgx.ErrNoRows) {
				return user.ErrNotFound
			}
			if err != nil {
				return err
			}

			var count int
			if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM resumes WHERE user_id = $1`, res.UserID).Scan(&count); err != nil {
				return err
			}
			if count >= limit {
				return resume.ErrQuotaExceeded
			}

			created, err = scanResume(tx.QueryRow(ctx, `
				INSERT INTO resumes (`+resumeColumns+`)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
				RETURNING `+resumeColumns,
				res.ID, res.UserID, res.Title, res.ProfessionalSummary,
				docs.work, docs.education, docs.skills,
				res.Template, res.CreatedAt, res.UpdatedAt,
			))
			return err
		})
	})

	return created, err
}

func (r *ResumesRepo) GetByID(ctx context.Context, userID, id string) (resume.Resume, error) {
	if _, err := uuid.Parse(id); err != nil {
		return resume.Resume{}, resume.ErrNotFound
	}

	var res resume.Resume
	err := r.observe("resumes.get_by_id", func() error {
		var err error
		res, err = scanResume(r.pool.QueryRow(ctx, `
			SELECT `+resumeColumns+`
			FROM resumes
			WHERE id = $1 AND user_id = $2
		`, id, userID))
		return err
	})

	return res, err
}

func (r *ResumesRepo) Update(ctx context.Context, userID, id string, req resume.UpdateResumeRequest) (resume.Resume, error) {
	if _, err := uuid.Parse(id); err != nil {
		return resume.Resume{}, resume.ErrNotFound
	}

	var updated resume.Resume

	err := r.observe("resumes.update", func() error {
		return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
			current, err := scanResume(tx.QueryRow(ctx, `
				SELECT `+resumeColumns+`
				FROM resumes
				WHERE id = $1 AND user_id = $2
				FOR UPDATE
			`, id, userID))
			if err != nil {
				return err
			}

			current.Apply(req)
			docs, err := encodeResumeDocs(current)
			if err != nil {
				return err
			}

			updated, err = scanResume(tx.QueryRow(ctx, `
				UPDATE resumes
				SET title = $3,
					professional_summary = $4,
					work_experience = $5,
					education = $6,
					skills = $7,
					template = $8,
					updated_at = $9
				WHERE id = $1 AND user_id = $2
				RETURNING `+resumeColumns,
				id, userID, current.Title, current.ProfessionalSummary,
				docs.work, docs.education, docs.skills,
				current.Template, time.Now().UTC(),
			))
			return err
		})
	})

	return updated, err
}

func (r *ResumesRepo) Delete(ctx context.Context, userID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return resume.ErrNotFound
	}

	return r.observe("resumes.delete", func() error {
		tag, err := r.pool.Exec(ctx, `DELETE FROM resumes WHERE id = $1 AND user_id = $2`, id, userID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return resume.ErrNotFound
		}
		return nil
	})
}

// List returns the owner's resumes newest-first, keyset-paginated on
// (updated_at, id).
func (r *ResumesRepo) List(ctx context.Context, filter resume.ListFilter) ([]resume.Resume, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT ` + resumeColumns + `
		FROM resumes
		WHERE user_id = $1
	`
	args := []any{filter.UserID}

	if filter.AfterUpdated != nil {
		query += ` AND (updated_at, id) < ($2, $3)`
		args = append(args, *filter.AfterUpdated, filter.AfterID)
	}

	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY updated_at DESC, id DESC LIMIT $%d`, len(args))

	out := make([]resume.Resume, 0, limit)

	err := r.observe("resumes.list", func() error {
		rows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			res, err := scanResume(rows)
			if err != nil {
				return err
			}
			out = append(out, res)
		}
		return rows.Err()
	})

	return out, err
}
