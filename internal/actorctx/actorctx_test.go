package actorctx

import (
	"context"
	"testing"

	"github.com/geocoder89/resumeforge/internal/domain/user"
)

func TestIdentityRoundTrip(t *testing.T) {
	if _, ok := UserIDFrom(context.Background()); ok {
		t.Fatalf("empty context must not carry an identity")
	}

	ctx := WithIdentity(context.Background(), user.Identity{UserID: "u-1", Email: "a@x.com", Role: user.RoleUser})

	id, ok := UserIDFrom(ctx)
	if !ok || id != "u-1" {
		t.Fatalf("got %q %v", id, ok)
	}

	if _, ok := UserIDFrom(WithIdentity(context.Background(), user.Identity{})); ok {
		t.Fatalf("blank identity must not count")
	}
}
