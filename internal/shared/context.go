package shared

import "context"

type actorContextKey struct{}

// ContextWithActor stores the acting user's id in context. Handlers set it
// from the request header; engine calls still receive the actor as an
// explicit parameter and never read it from ambient state.
func ContextWithActor(ctx context.Context, actorID int64) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actorID)
}

// ActorFromContext extracts the actor id, zero when absent.
func ActorFromContext(ctx context.Context) int64 {
	actorID, _ := ctx.Value(actorContextKey{}).(int64)
	return actorID
}
