package http

import (
	"context"

	"github.com/julienschmidt/httprouter"

	"github.com/example/booking-manager/internal/application"
)

type contextKey string

const (
	actorContextKey contextKey = "actor"
	tokenContextKey contextKey = "token"
)

// ContextWithActor returns a derived context containing the authenticated actor.
func ContextWithActor(ctx context.Context, actor application.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, actor)
}

// ActorFromContext extracts the authenticated actor from context if available.
func ActorFromContext(ctx context.Context) (application.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey).(application.Actor)
	return actor, ok
}

func contextWithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenContextKey, token)
}

func tokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenContextKey).(string)
	return token
}

// pathParam returns a named route parameter captured by the router.
func pathParam(ctx context.Context, name string) string {
	return httprouter.ParamsFromContext(ctx).ByName(name)
}
