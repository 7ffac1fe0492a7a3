package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/geocoder89/resumeforge/internal/apperr"
	"github.com/geocoder89/resumeforge/internal/billing"
	"github.com/gin-gonic/gin"
)

const stripeSignatureHeader = "Stripe-Signature"

type EventVerifier interface {
	VerifyEvent(payload []byte, signature string) (billing.Event, error)
}

type BillingEventHandler interface {
	Handle(ctx context.Context, ev billing.Event) (billing.Outcome, error)
}

type WebhookObserver interface {
	ObserveWebhook(eventType, outcome string)
}

type WebhookHandler struct {
	verifier EventVerifier
	events   BillingEventHandler
	obs      WebhookObserver
	log      *slog.Logger
}

func NewWebhookHandler(verifier EventVerifier, events BillingEventHandler, obs WebhookObserver, log *slog.Logger) *WebhookHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WebhookHandler{verifier: verifier, events: events, obs: obs, log: log}
}

// Stripe retries any non-2xx delivery, so only failures a retry can fix
// answer 5xx.
func (h *WebhookHandler) Stripe(ctx *gin.Context) {
	payload, err := io.ReadAll(ctx.Request.Body)
	if err != nil {
		RespondBadRequest(ctx, "Could not read body", nil)
		return
	}

	ev, err := h.verifier.VerifyEvent(payload, ctx.GetHeader(stripeSignatureHeader))
	if err != nil {
		h.log.WarnContext(ctx.Request.Context(), "stripe webhook rejected", "err", err)
		h.observe("unknown", "invalid_signature")
		RespondError(ctx, http.StatusBadRequest, "invalid_signature", "Webhook signature verification failed", nil)
		return
	}

	outcome, err := h.events.Handle(ctx.Request.Context(), ev)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			h.log.WarnContext(ctx.Request.Context(), "stripe webhook for unknown user", "event_id", ev.ID, "user_id", ev.UserID)
			h.observe(ev.Type, "unknown_user")
			ctx.JSON(http.StatusOK, gin.H{"received": true})
			return
		}

		h.observe(ev.Type, "error")
		var appErr *apperr.Error
		if !errors.As(err, &appErr) {
			err = apperr.Internal("Webhook processing failed", err)
		}
		RespondErr(ctx, err)
		return
	}

	h.observe(ev.Type, string(outcome))
	ctx.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *WebhookHandler) observe(eventType, outcome string) {
	if h.obs != nil {
		h.obs.ObserveWebhook(eventType, outcome)
	}
}
