package billing

import (
	"errors"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v82/webhook"
)

func TestVerifyEvent(t *testing.T) {
	const secret = "whsec_test"
	g := NewStripeGateway("sk_test_unused", secret, nil)

	payload := []byte(`{
		"id": "evt_1",
		"object": "event",
		"type": "customer.subscription.deleted",
		"created": 1700000000,
		"data": {"object": {"id": "sub_1", "object": "subscription", "status": "canceled", "metadata": {"userId": "u-1"}}}
	}`)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	})

	ev, err := g.VerifyEvent(signed.Payload, signed.Header)
	if err != nil {
		t.Fatalf("VerifyEvent: %v", err)
	}
	if ev.Kind != EventSubscriptionDeleted || ev.UserID != "u-1" {
		t.Fatalf("unexpected event %+v", ev)
	}

	_, err = g.VerifyEvent(payload, "t=1,v1=deadbeef")
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}

	other := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    "whsec_other",
		Timestamp: time.Now(),
	})
	if _, err := g.VerifyEvent(other.Payload, other.Header); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected wrong secret to fail, got %v", err)
	}
}
