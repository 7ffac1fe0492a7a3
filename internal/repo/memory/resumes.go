package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/geocoder89/resumeforge/internal/domain/resume"
)

type ResumesRepo struct {
	mu    sync.RWMutex
	users *UsersRepo
	items map[string]resume.Resume
}

func NewResumesRepo(users *UsersRepo) *ResumesRepo {
	return &ResumesRepo{
		users: users,
		items: make(map[string]resume.Resume),
	}
}

func (r *ResumesRepo) CreateWithinQuota(ctx context.Context, res resume.Resume) (resume.Resume, error) {
	owner, err := r.users.GetByID(ctx, res.UserID)
	if err != nil {
		return resume.Resume{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, existing := range r.items {
		if existing.UserID == res.UserID {
			count++
		}
	}
	if count >= owner.ResumeLimit {
		return resume.Resume{}, resume.ErrQuotaExceeded
	}

	r.items[res.ID] = res
	return res, nil
}

func (r *ResumesRepo) GetByID(_ context.Context, userID, id string) (resume.Resume, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.items[id]
	if !ok || res.UserID != userID {
		return resume.Resume{}, resume.ErrNotFound
	}
	return res, nil
}

func (r *ResumesRepo) Update(_ context.Context, userID, id string, req resume.UpdateResumeRequest) (resume.Resume, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, ok := r.items[id]
	if !ok || res.UserID != userID {
		return resume.Resume{}, resume.ErrNotFound
	}

	res.Apply(req)
	res.UpdatedAt = time.Now().UTC()
	r.items[id] = res

	return res, nil
}

func (r *ResumesRepo) Delete(_ context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, ok := r.items[id]
	if !ok || res.UserID != userID {
		return resume.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *ResumesRepo) List(_ context.Context, filter resume.ListFilter) ([]resume.Resume, error) {
	r.mu.RLock()
	out := make([]resume.Resume, 0)
	for _, res := range r.items {
		if res.UserID == filter.UserID {
			out = append(out, res)
		}
	}
	r.mu.RUnlock()

	// updated_at DESC, id DESC
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})

	if filter.AfterUpdated != nil {
		cut := 0
		for cut < len(out) && !isAfterCursor(out[cut], *filter.AfterUpdated, filter.AfterID) {
			cut++
		}
		out = out[cut:]
	}

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}

	return out, nil
}

// isAfterCursor reports whether res sorts strictly after the cursor position.
func isAfterCursor(res resume.Resume, updated time.Time, id string) bool {
	if res.UpdatedAt.Before(updated) {
		return true
	}
	return res.UpdatedAt.Equal(updated) && res.ID < id
}
