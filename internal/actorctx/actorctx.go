// Package actorctx carries the authenticated caller on a context.Context so
// code below the HTTP layer can attribute audit logs.
package actorctx

import (
	"context"

	"github.com/DannyIGuesss/el-frijolito-site/internal/domain/user"
)

type ctxKey struct{}

func WithIdentity(ctx context.Context, id user.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func IdentityFrom(ctx context.Context) (user.Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(user.Identity)
	return id, ok && id.ID != ""
}

func UserIDFrom(ctx context.Context) (string, bool) {
	id, ok := IdentityFrom(ctx)
	return id.ID, ok
}
