package shared

import "context"

// Actor identifies the employee performing a request. It is resolved by
// middleware from the employee directory and attached to the context.
type Actor struct {
	ID   int64
	Name string
	Role string
}

type actorContextKey struct{}

// ContextWithActor attaches the actor to the context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext returns the actor attached to the context, if any.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}
