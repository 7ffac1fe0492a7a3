// Package actorctx carries the authenticated caller through context.Context
// so code below the HTTP layer can log and authorize without gin.
package actorctx

import (
	"context"

	"github.com/geocoder89/resumeforge/internal/domain/user"
)

type key struct{}

func WithIdentity(ctx context.Context, id user.Identity) context.Context {
	return context.WithValue(ctx, key{}, id)
}

func IdentityFrom(ctx context.Context) (user.Identity, bool) {
	id, ok := ctx.Value(key{}).(user.Identity)
	return id, ok && id.UserID != ""
}

func UserIDFrom(ctx context.Context) (string, bool) {
	id, ok := IdentityFrom(ctx)
	return id.UserID, ok
}
