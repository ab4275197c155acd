package digo

import "context"

type scopeContextKey struct{}

// ContextWithScope returns a copy of parent carrying scope. Request handlers
// use it to pass a per-request scope down the call chain.
func ContextWithScope(parent context.Context, scope *LifetimeScope) context.Context {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithValue(parent, scopeContextKey{}, scope)
}

// ScopeFromContext returns the scope stored by ContextWithScope.
func ScopeFromContext(ctx context.Context) (*LifetimeScope, bool) {
	if ctx == nil {
		return nil, false
	}
	scope, ok := ctx.Value(scopeContextKey{}).(*LifetimeScope)
	return scope, ok && scope != nil
}

// ResolveFromContext resolves T from the scope stored in ctx.
func ResolveFromContext[T any](ctx context.Context, params ...Parameter) (T, error) {
	scope, ok := ScopeFromContext(ctx)
	if !ok {
		var zero T
		return zero, &ArgumentError{Param: "ctx", Message: "context carries no lifetime scope"}
	}
	return Resolve[T](scope, params...)
}
