package billing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/geocoder89/resumeforge/internal/apperr"
	"github.com/geocoder89/resumeforge/internal/domain/user"
)

type Outcome string

const (
	OutcomeApplied      Outcome = "applied"
	OutcomeIgnored      Outcome = "ignored"
	OutcomeDuplicate    Outcome = "duplicate"
	OutcomeStale        Outcome = "stale"
	OutcomeUnknownPrice Outcome = "unknown_price"
	OutcomeNoUser       Outcome = "no_user_id"
)

type PlanStore interface {
	UpdatePlan(ctx context.Context, userID string, change user.PlanChange, eventAt time.Time) (user.User, error)
	SetStripeCustomerID(ctx context.Context, userID, customerID string) error
}

type PriceResolver interface {
	CurrentPriceID(ctx context.Context, subscriptionID string) (string, error)
}

// Reconciler applies billing events to user plans.
type Reconciler struct {
	users  PlanStore
	prices PriceResolver
	table  PriceTable
	dedupe Deduper
	log    *slog.Logger
}

func NewReconciler(users PlanStore, prices PriceResolver, table PriceTable, dedupe Deduper, log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{users: users, prices: prices, table: table, dedupe: dedupe, log: log}
}

// Handle processes one verified event. Redeliveries of an already processed
// event id are acknowledged without reapplying.
func (r *Reconciler) Handle(ctx context.Context, ev Event) (Outcome, error) {
	log := r.log.With("event_id", ev.ID, "event_type", ev.Type, "user_id", ev.UserID)

	if ev.Kind == EventIgnored {
		log.InfoContext(ctx, "billing event ignored")
		return OutcomeIgnored, nil
	}

	if r.dedupe != nil && ev.ID != "" {
		fresh, err := r.dedupe.Claim(ctx, ev.ID)
		switch {
		case err != nil:
			// processing is idempotent, so a dedupe outage only costs a reapply
			log.WarnContext(ctx, "billing dedupe unavailable", "err", err)
		case !fresh:
			log.InfoContext(ctx, "billing event duplicate")
			return OutcomeDuplicate, nil
		}
	}

	outcome, err := r.dispatch(ctx, ev)
	if err != nil {
		if r.dedupe != nil && ev.ID != "" {
			if relErr := r.dedupe.Release(ctx, ev.ID); relErr != nil {
				log.WarnContext(ctx, "billing dedupe release failed", "err", relErr)
			}
		}
		log.ErrorContext(ctx, "billing event failed", "err", err)
		return "", err
	}

	log.InfoContext(ctx, "billing event processed", "outcome", string(outcome))
	return outcome, nil
}

func (r *Reconciler) dispatch(ctx context.Context, ev Event) (Outcome, error) {
	if ev.UserID == "" {
		return OutcomeNoUser, nil
	}

	switch ev.Kind {
	case EventCheckoutCompleted:
		return r.checkoutCompleted(ctx, ev)
	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		return r.subscriptionChanged(ctx, ev)
	default:
		return OutcomeIgnored, nil
	}
}

func (r *Reconciler) checkoutCompleted(ctx context.Context, ev Event) (Outcome, error) {
	if ev.CustomerID != "" {
		if err := r.users.SetStripeCustomerID(ctx, ev.UserID, ev.CustomerID); err != nil {
			if errors.Is(err, user.ErrNotFound) {
				return "", apperr.NotFound("user_not_found", "User not found").Wrap(err)
			}
			return "", apperr.Internal("Could not store billing customer", err)
		}
	}
	if ev.SubscriptionID == "" {
		return OutcomeIgnored, nil
	}
	return r.applyCurrentPrice(ctx, ev)
}

func (r *Reconciler) subscriptionChanged(ctx context.Context, ev Event) (Outcome, error) {
	if ev.Status == "active" {
		return r.applyCurrentPrice(ctx, ev)
	}
	return r.ApplyPlanUpdate(ctx, ev.UserID, user.ChangeTo(user.PlanFree), ev.CreatedAt)
}

func (r *Reconciler) applyCurrentPrice(ctx context.Context, ev Event) (Outcome, error) {
	priceID, err := r.prices.CurrentPriceID(ctx, ev.SubscriptionID)
	if err != nil {
		return "", apperr.Unavailable("billing_unavailable", "Could not fetch subscription", err)
	}

	change, ok := r.table.Lookup(priceID)
	if !ok {
		r.log.WarnContext(ctx, "billing event with unknown price", "event_id", ev.ID, "price_id", priceID)
		return OutcomeUnknownPrice, nil
	}

	return r.ApplyPlanUpdate(ctx, ev.UserID, change, ev.CreatedAt)
}

// ApplyPlanUpdate overwrites plan and quota of userID. Events older than the
// last applied one are skipped as stale.
func (r *Reconciler) ApplyPlanUpdate(ctx context.Context, userID string, change user.PlanChange, eventAt time.Time) (Outcome, error) {
	_, err := r.users.UpdatePlan(ctx, userID, change, eventAt)
	switch {
	case err == nil:
		return OutcomeApplied, nil
	case errors.Is(err, user.ErrStalePlanEvent):
		return OutcomeStale, nil
	case errors.Is(err, user.ErrNotFound):
		return "", apperr.NotFound("user_not_found", "User not found").Wrap(err)
	default:
		return "", apperr.Internal("Could not update plan", err)
	}
}
