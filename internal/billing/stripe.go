package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

var ErrInvalidSignature = errors.New("billing: invalid webhook signature")

type CheckoutRequest struct {
	UserID     string
	CustomerID string
	PriceID    string
	SuccessURL string
	CancelURL  string
}

type CheckoutSession struct {
	ID         string
	URL        string
	CustomerID string
}

// StripeGateway wraps the Stripe API calls this service makes.
type StripeGateway struct {
	sc            *client.API
	webhookSecret string
}

// NewStripeGateway builds a client bound to secretKey. httpClient may be nil.
func NewStripeGateway(secretKey, webhookSecret string, httpClient *http.Client) *StripeGateway {
	var backends *stripe.Backends
	if httpClient != nil {
		backends = stripe.NewBackends(httpClient)
	}

	sc := &client.API{}
	sc.Init(secretKey, backends)

	return &StripeGateway{sc: sc, webhookSecret: webhookSecret}
}

// VerifyEvent checks the Stripe-Signature header against the raw payload and
// returns the parsed event.
func (g *StripeGateway) VerifyEvent(payload []byte, signature string) (Event, error) {
	se, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return ParseEvent(se)
}

func (g *StripeGateway) CurrentPriceID(ctx context.Context, subscriptionID string) (string, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := g.sc.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return "", fmt.Errorf("billing: get subscription %s: %w", subscriptionID, err)
	}
	if sub.Items == nil || len(sub.Items.Data) == 0 || sub.Items.Data[0].Price == nil {
		return "", fmt.Errorf("billing: subscription %s has no price", subscriptionID)
	}
	return sub.Items.Data[0].Price.ID, nil
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (CheckoutSession, error) {
	meta := map[string]string{metadataUserID: req.UserID}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(req.PriceID), Quantity: stripe.Int64(1)},
		},
		AllowPromotionCodes: stripe.Bool(true),
		SuccessURL:          stripe.String(req.SuccessURL),
		CancelURL:           stripe.String(req.CancelURL),
		Metadata:            meta,
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: meta,
		},
	}
	if req.CustomerID != "" {
		params.Customer = stripe.String(req.CustomerID)
	}
	params.Context = ctx

	s, err := g.sc.CheckoutSessions.New(params)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("billing: create checkout session: %w", err)
	}

	out := CheckoutSession{ID: s.ID, URL: s.URL}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	return out, nil
}
