package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/geocoder89/resumeforge/internal/domain/user"
)

type UsersRepo struct {
	mu      sync.RWMutex
	items   map[string]user.User // id -> user
	byEmail map[string]string    // email -> id
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		items:   make(map[string]user.User),
		byEmail: make(map[string]string),
	}
}

func (r *UsersRepo) Create(_ context.Context, u user.User) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[u.Email]; taken {
		return user.User{}, user.ErrEmailAlreadyUsed
	}

	r.items[u.ID] = u
	r.byEmail[u.Email] = u.ID

	return u, nil
}

func (r *UsersRepo) GetByEmail(_ context.Context, email string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return r.items[id], nil
}

func (r *UsersRepo) GetByID(_ context.Context, id string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.items[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (r *UsersRepo) List(_ context.Context) ([]user.User, error) {
	r.mu.RLock()
	out := make([]user.User, 0, len(r.items))
	for _, u := range r.items {
		out = append(out, u)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })

	return out, nil
}

func (r *UsersRepo) UpdatePlan(_ context.Context, userID string, change user.PlanChange, eventAt time.Time) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[userID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}

	if u.PlanEventAt != nil && eventAt.Before(*u.PlanEventAt) {
		return user.User{}, user.ErrStalePlanEvent
	}

	at := eventAt.UTC()
	u.Plan = change.Plan
	u.ResumeLimit = change.ResumeLimit
	u.PlanEventAt = &at
	u.UpdatedAt = time.Now().UTC()
	r.items[userID] = u

	return u, nil
}

func (r *UsersRepo) SetStripeCustomerID(_ context.Context, userID, customerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[userID]
	if !ok {
		return user.ErrNotFound
	}
	if u.StripeCustomerID == nil {
		u.StripeCustomerID = &customerID
		u.UpdatedAt = time.Now().UTC()
		r.items[userID] = u
	}
	return nil
}

// Delete removes a user. Only tests use it; the API never hard-deletes users.
func (r *UsersRepo) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, ok := r.items[id]; ok {
		delete(r.byEmail, u.Email)
		delete(r.items, id)
	}
}

func (r *UsersRepo) Ping(context.Context) error { return nil }
