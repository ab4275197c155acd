package digo

import "context"

// ResolveRequest asks for one registration to be resolved as one service.
type ResolveRequest struct {
	Service      Service
	Registration *ComponentRegistration
	Parameters   Parameters

	// DecoratorTarget is set when the request resolves a decorator for the
	// registration being decorated.
	DecoratorTarget *ComponentRegistration
}

// ResolveRequestContext is the mutable state a pipeline works on. It is only
// valid on the goroutine running the resolve operation.
type ResolveRequestContext struct {
	operation *resolveOperation

	Service         Service
	Registration    *ComponentRegistration
	Parameters      Parameters
	DecoratorTarget *ComponentRegistration

	// ActivationScope starts as the requesting scope and is moved to the
	// owning scope by the sharing stage.
	ActivationScope *LifetimeScope

	// Instance is set once activation, a cache hit or a middleware produces it.
	Instance any

	// DecoratorContext is set when decorators were applied.
	DecoratorContext *DecoratorContext

	newInstance bool
	phase       PipelinePhase
}

// ComponentRegistry returns the registry of the activation scope.
func (c *ResolveRequestContext) ComponentRegistry() *ComponentRegistry {
	return c.ActivationScope.registry
}

// ResolveComponent resolves a dependency as part of the same operation, so
// circular dependencies are detected and activated handlers are batched.
func (c *ResolveRequestContext) ResolveComponent(req ResolveRequest) (any, error) {
	return c.operation.getOrCreateInstance(c.ActivationScope, req)
}

// Context returns the activation scope's context.
func (c *ResolveRequestContext) Context() context.Context {
	return c.ActivationScope.Context()
}

// ChangeParameters replaces the parameters seen by later stages.
func (c *ResolveRequestContext) ChangeParameters(p Parameters) {
	c.Parameters = p
}

// NewInstanceActivated reports whether this request created its instance
// rather than reading it from a sharing cache.
func (c *ResolveRequestContext) NewInstanceActivated() bool {
	return c.newInstance
}

// PhaseReached returns the innermost phase entered so far.
func (c *ResolveRequestContext) PhaseReached() PipelinePhase {
	return c.phase
}

// OnRequestCompleting queues fn until the outermost request of the operation
// completes. Queued callbacks run in the order they were queued.
func (c *ResolveRequestContext) OnRequestCompleting(fn func() error) {
	c.operation.enqueueCompletion(fn)
}

// Depth returns how many requests are in flight in the operation.
func (c *ResolveRequestContext) Depth() int {
	return len(c.operation.stack)
}
