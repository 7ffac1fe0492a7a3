package billing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/geocoder89/resumeforge/internal/apperr"
	"github.com/geocoder89/resumeforge/internal/billing"
	"github.com/geocoder89/resumeforge/internal/domain/user"
	"github.com/geocoder89/resumeforge/internal/repo/memory"
)

const (
	basicPrice = "price_basic"
	proPrice   = "price_pro"
)

type fakePrices struct {
	getFn func(ctx context.Context, subscriptionID string) (string, error)
	calls int
}

func (f *fakePrices) CurrentPriceID(ctx context.Context, subscriptionID string) (string, error) {
	f.calls++
	return f.getFn(ctx, subscriptionID)
}

func fixedPrice(priceID string) *fakePrices {
	return &fakePrices{getFn: func(context.Context, string) (string, error) { return priceID, nil }}
}

func seedUser(t *testing.T, users *memory.UsersRepo, plan user.Plan) user.User {
	t.Helper()
	u, err := users.Create(context.Background(), user.User{
		ID:          "11111111-1111-1111-1111-111111111111",
		Email:       "a@x.com",
		Role:        user.RoleUser,
		Plan:        plan,
		ResumeLimit: plan.Quota(),
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func newReconciler(users *memory.UsersRepo, prices billing.PriceResolver) *billing.Reconciler {
	return billing.NewReconciler(
		users,
		prices,
		billing.NewPriceTable(basicPrice, proPrice),
		billing.NewMemoryDeduper(time.Hour),
		nil,
	)
}

func TestCheckoutCompletedSetsProPlanIdempotently(t *testing.T) {
	users := memory.NewUsersRepo()
	u := seedUser(t, users, user.PlanFree)
	prices := fixedPrice(proPrice)
	r := newReconciler(users, prices)

	ev := billing.Event{
		ID:             "evt_1",
		Kind:           billing.EventCheckoutCompleted,
		CreatedAt:      time.Unix(1700000000, 0),
		UserID:         u.ID,
		SubscriptionID: "sub_1",
		CustomerID:     "cus_1",
	}

	out, err := r.Handle(context.Background(), ev)
	if err != nil || out != billing.OutcomeApplied {
		t.Fatalf("first delivery: out=%s err=%v", out, err)
	}

	out, err = r.Handle(context.Background(), ev)
	if err != nil || out != billing.OutcomeDuplicate {
		t.Fatalf("redelivery: out=%s err=%v", out, err)
	}

	got, _ := users.GetByID(context.Background(), u.ID)
	if got.Plan != user.PlanPro || got.ResumeLimit != 10 {
		t.Fatalf("expected pro/10, got %s/%d", got.Plan, got.ResumeLimit)
	}
	if got.StripeCustomerID == nil || *got.StripeCustomerID != "cus_1" {
		t.Fatalf("expected customer id to be stored, got %v", got.StripeCustomerID)
	}
	if prices.calls != 1 {
		t.Fatalf("expected one subscription lookup, got %d", prices.calls)
	}

	// a fresh event id with the same content reapplies to the same result
	ev.ID = "evt_2"
	if out, err := r.Handle(context.Background(), ev); err != nil || out != billing.OutcomeApplied {
		t.Fatalf("reapply: out=%s err=%v", out, err)
	}
	got, _ = users.GetByID(context.Background(), u.ID)
	if got.Plan != user.PlanPro || got.ResumeLimit != 10 {
		t.Fatalf("expected pro/10 after reapply, got %s/%d", got.Plan, got.ResumeLimit)
	}
}

func TestSubscriptionDeletedDowngradesToFree(t *testing.T) {
	for _, prior := range []user.Plan{user.PlanFree, user.PlanBasic, user.PlanPro} {
		t.Run(string(prior), func(t *testing.T) {
			users := memory.NewUsersRepo()
			u := seedUser(t, users, prior)
			prices := fixedPrice(proPrice)
			r := newReconciler(users, prices)

			out, err := r.Handle(context.Background(), billing.Event{
				ID:             "evt_del",
				Kind:           billing.EventSubscriptionDeleted,
				CreatedAt:      time.Unix(1700000000, 0),
				UserID:         u.ID,
				SubscriptionID: "sub_1",
				Status:         "canceled",
			})
			if err != nil || out != billing.OutcomeApplied {
				t.Fatalf("out=%s err=%v", out, err)
			}

			got, _ := users.GetByID(context.Background(), u.ID)
			if got.Plan != user.PlanFree || got.ResumeLimit != 2 {
				t.Fatalf("expected free/2, got %s/%d", got.Plan, got.ResumeLimit)
			}
			if prices.calls != 0 {
				t.Fatalf("downgrade must not look up prices")
			}
		})
	}
}

func TestSubscriptionUpdatedActiveReappliesPrice(t *testing.T) {
	users := memory.NewUsersRepo()
	u := seedUser(t, users, user.PlanPro)
	r := newReconciler(users, fixedPrice(basicPrice))

	out, err := r.Handle(context.Background(), billing.Event{
		ID:             "evt_upd",
		Kind:           billing.EventSubscriptionUpdated,
		CreatedAt:      time.Unix(1700000000, 0),
		UserID:         u.ID,
		SubscriptionID: "sub_1",
		Status:         "active",
	})
	if err != nil || out != billing.OutcomeApplied {
		t.Fatalf("out=%s err=%v", out, err)
	}

	got, _ := users.GetByID(context.Background(), u.ID)
	if got.Plan != user.PlanBasic || got.ResumeLimit != 5 {
		t.Fatalf("expected basic/5, got %s/%d", got.Plan, got.ResumeLimit)
	}
}

func TestUnknownPriceIsNoop(t *testing.T) {
	users := memory.NewUsersRepo()
	u := seedUser(t, users, user.PlanBasic)
	r := newReconciler(users, fixedPrice("price_unknown"))

	out, err := r.Handle(context.Background(), billing.Event{
		ID:             "evt_x",
		Kind:           billing.EventCheckoutCompleted,
		CreatedAt:      time.Unix(1700000000, 0),
		UserID:         u.ID,
		SubscriptionID: "sub_1",
	})
	if err != nil || out != billing.OutcomeUnknownPrice {
		t.Fatalf("out=%s err=%v", out, err)
	}

	got, _ := users.GetByID(context.Background(), u.ID)
	if got.Plan != user.PlanBasic || got.ResumeLimit != 5 {
		t.Fatalf("plan must be untouched, got %s/%d", got.Plan, got.ResumeLimit)
	}
}

func TestStaleEventIsSkipped(t *testing.T) {
	users := memory.NewUsersRepo()
	u := seedUser(t, users, user.PlanFree)
	r := newReconciler(users, fixedPrice(proPrice))

	newer := billing.Event{
		ID:             "evt_new",
		Kind:           billing.EventSubscriptionUpdated,
		CreatedAt:      time.Unix(1700000100, 0),
		UserID:         u.ID,
		SubscriptionID: "sub_1",
		Status:         "active",
	}
	older := billing.Event{
		ID:             "evt_old",
		Kind:           billing.EventSubscriptionDeleted,
		CreatedAt:      time.Unix(1700000000, 0),
		UserID:         u.ID,
		SubscriptionID: "sub_1",
		Status:         "canceled",
	}

	if out, err := r.Handle(context.Background(), newer); err != nil || out != billing.OutcomeApplied {
		t.Fatalf("newer: out=%s err=%v", out, err)
	}
	if out, err := r.Handle(context.Background(), older); err != nil || out != billing.OutcomeStale {
		t.Fatalf("older: out=%s err=%v", out, err)
	}

	got, _ := users.GetByID(context.Background(), u.ID)
	if got.Plan != user.PlanPro {
		t.Fatalf("stale event must not downgrade, got %s", got.Plan)
	}
}

func TestMissingUserIDIsAcknowledged(t *testing.T) {
	users := memory.NewUsersRepo()
	r := newReconciler(users, fixedPrice(proPrice))

	out, err := r.Handle(context.Background(), billing.Event{
		ID:   "evt_nouser",
		Kind: billing.EventSubscriptionDeleted,
	})
	if err != nil || out != billing.OutcomeNoUser {
		t.Fatalf("out=%s err=%v", out, err)
	}
}

func TestIgnoredEvent(t *testing.T) {
	r := newReconciler(memory.NewUsersRepo(), fixedPrice(proPrice))

	out, err := r.Handle(context.Background(), billing.Event{ID: "evt_i", Type: "invoice.paid", Kind: billing.EventIgnored})
	if err != nil || out != billing.OutcomeIgnored {
		t.Fatalf("out=%s err=%v", out, err)
	}
}

func TestApplyPlanUpdateUnknownUser(t *testing.T) {
	r := newReconciler(memory.NewUsersRepo(), fixedPrice(proPrice))

	_, err := r.ApplyPlanUpdate(context.Background(), "missing", user.ChangeTo(user.PlanPro), time.Now())
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestFailedEventCanBeRetried(t *testing.T) {
	users := memory.NewUsersRepo()
	u := seedUser(t, users, user.PlanFree)

	down := errors.New("stripe down")
	prices := &fakePrices{getFn: func(context.Context, string) (string, error) { return "", down }}
	r := newReconciler(users, prices)

	ev := billing.Event{
		ID:             "evt_retry",
		Kind:           billing.EventCheckoutCompleted,
		CreatedAt:      time.Unix(1700000000, 0),
		UserID:         u.ID,
		SubscriptionID: "sub_1",
	}

	if _, err := r.Handle(context.Background(), ev); !errors.Is(err, down) {
		t.Fatalf("expected provider error, got %v", err)
	}

	prices.getFn = func(context.Context, string) (string, error) { return proPrice, nil }
	if out, err := r.Handle(context.Background(), ev); err != nil || out != billing.OutcomeApplied {
		t.Fatalf("retry: out=%s err=%v", out, err)
	}
}
