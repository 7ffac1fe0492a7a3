package billing

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82"
)

type EventKind int

const (
	EventIgnored EventKind = iota
	EventCheckoutCompleted
	EventSubscriptionUpdated
	EventSubscriptionDeleted
)

func (k EventKind) String() string {
	switch k {
	case EventCheckoutCompleted:
		return "checkout_completed"
	case EventSubscriptionUpdated:
		return "subscription_updated"
	case EventSubscriptionDeleted:
		return "subscription_deleted"
	default:
		return "ignored"
	}
}

const metadataUserID = "userId"

// Event is the provider-independent view of a billing webhook delivery.
type Event struct {
	ID             string
	Type           string
	Kind           EventKind
	CreatedAt      time.Time
	UserID         string
	SubscriptionID string
	CustomerID     string
	Status         string
	// PriceID is the first subscription item price carried by the payload, if any.
	PriceID string
}

// ParseEvent classifies a verified Stripe event and extracts the fields the
// reconciler needs.
func ParseEvent(se stripe.Event) (Event, error) {
	ev := Event{
		ID:        se.ID,
		Type:      string(se.Type),
		Kind:      EventIgnored,
		CreatedAt: time.Unix(se.Created, 0).UTC(),
	}

	if se.Data == nil {
		return ev, nil
	}

	switch se.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(se.Data.Raw, &cs); err != nil {
			return Event{}, fmt.Errorf("parse checkout session: %w", err)
		}
		ev.Kind = EventCheckoutCompleted
		ev.UserID = cs.Metadata[metadataUserID]
		if cs.Subscription != nil {
			ev.SubscriptionID = cs.Subscription.ID
		}
		if cs.Customer != nil {
			ev.CustomerID = cs.Customer.ID
		}

	case stripe.EventTypeCustomerSubscriptionUpdated, stripe.EventTypeCustomerSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(se.Data.Raw, &sub); err != nil {
			return Event{}, fmt.Errorf("parse subscription: %w", err)
		}
		ev.Kind = EventSubscriptionUpdated
		if se.Type == stripe.EventTypeCustomerSubscriptionDeleted {
			ev.Kind = EventSubscriptionDeleted
		}
		ev.UserID = sub.Metadata[metadataUserID]
		ev.SubscriptionID = sub.ID
		ev.Status = string(sub.Status)
		if sub.Customer != nil {
			ev.CustomerID = sub.Customer.ID
		}
		if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
			ev.PriceID = sub.Items.Data[0].Price.ID
		}
	}

	return ev, nil
}
