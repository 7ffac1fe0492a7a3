package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/resumeforge/internal/apperr"
	"github.com/geocoder89/resumeforge/internal/billing"
	"github.com/geocoder89/resumeforge/internal/domain/user"
	"github.com/gin-gonic/gin"
)

type CheckoutCreator interface {
	CreateCheckoutSession(ctx context.Context, req billing.CheckoutRequest) (billing.CheckoutSession, error)
}

type CustomerStore interface {
	GetByID(ctx context.Context, id string) (user.User, error)
	SetStripeCustomerID(ctx context.Context, userID, customerID string) error
}

type PaymentHandler struct {
	checkout CheckoutCreator
	users    CustomerStore
	prices   billing.PriceTable
	log      *slog.Logger
}

func NewPaymentHandler(checkout CheckoutCreator, users CustomerStore, prices billing.PriceTable, log *slog.Logger) *PaymentHandler {
	if log == nil {
		log = slog.Default()
	}
	return &PaymentHandler{checkout: checkout, users: users, prices: prices, log: log}
}

type CreateCheckoutSessionRequest struct {
	PriceID    string `json:"priceId" binding:"required"`
	SuccessURL string `json:"successUrl" binding:"required,url"`
	CancelURL  string `json:"cancelUrl" binding:"required,url"`
}

func (h *PaymentHandler) CreateCheckoutSession(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}

	var req CreateCheckoutSessionRequest
	if !BindJSON(ctx, &req) {
		return
	}

	if !h.prices.Contains(req.PriceID) {
		RespondErr(ctx, apperr.BadRequest("unknown_price", "Unknown price"))
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 10*time.Second)
	defer cancel()

	u, err := h.users.GetByID(cctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondErr(ctx, apperr.NotFound("user_not_found", "User not found"))
			return
		}
		RespondErr(ctx, apperr.Internal("Could not start checkout", err))
		return
	}

	checkoutReq := billing.CheckoutRequest{
		UserID:     u.ID,
		PriceID:    req.PriceID,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	}
	if u.StripeCustomerID != nil {
		checkoutReq.CustomerID = *u.StripeCustomerID
	}

	session, err := h.checkout.CreateCheckoutSession(cctx, checkoutReq)
	if err != nil {
		RespondErr(ctx, apperr.Upstream("checkout_failed", "Could not start checkout", err))
		return
	}

	// first checkout: remember the customer so later sessions reuse it
	if u.StripeCustomerID == nil && session.CustomerID != "" {
		if err := h.users.SetStripeCustomerID(cctx, u.ID, session.CustomerID); err != nil {
			h.log.WarnContext(cctx, "could not store stripe customer", "user_id", u.ID, "err", err)
		}
	}

	ctx.JSON(http.StatusOK, gin.H{"url": session.URL})
}
