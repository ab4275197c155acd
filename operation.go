package digo

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// DefaultMaxResolveDepth bounds nesting inside one resolve operation.
const DefaultMaxResolveDepth = 50

// maxPairOccurrences is how many times the same service/registration pair
// may already be in flight before another request for it is rejected. Two
// lets diamond-shaped graphs through.
const maxPairOccurrences = 2

type resolveFrame struct {
	service      Service
	registration *ComponentRegistration
}

// resolveOperation tracks one outermost call into a scope: the stack of
// in-flight requests and the callbacks deferred until the stack drains.
type resolveOperation struct {
	scope       *LifetimeScope
	maxDepth    int
	stack       []resolveFrame
	completions []func() error

	// waitingOn is the shared-instance slot another operation is creating
	// while this one waits for it.
	waitingOn atomic.Pointer[sharedEntry]
}

func newResolveOperation(scope *LifetimeScope) *resolveOperation {
	depth := scope.maxDepth
	if depth <= 0 {
		depth = DefaultMaxResolveDepth
	}
	return &resolveOperation{scope: scope, maxDepth: depth}
}

// waitCloses records that o is about to wait for entry and reports whether
// that wait would close a cycle: following the operations each creator is
// itself waiting on leads back to o. The record is cleared when it does.
func (o *resolveOperation) waitCloses(entry *sharedEntry) bool {
	o.waitingOn.Store(entry)
	visited := map[*resolveOperation]bool{}
	for owner := entry.owner; owner != nil && !visited[owner]; {
		if owner == o {
			o.waitingOn.Store(nil)
			return true
		}
		visited[owner] = true
		next := owner.waitingOn.Load()
		if next == nil || next.settled() {
			return false
		}
		owner = next.owner
	}
	return false
}

func (o *resolveOperation) execute(req ResolveRequest) (any, error) {
	return o.getOrCreateInstance(o.scope, req)
}

func (o *resolveOperation) getOrCreateInstance(scope *LifetimeScope, req ResolveRequest) (any, error) {
	if req.Registration == nil {
		return nil, &ArgumentError{Param: "Registration", Message: "resolve request has no registration"}
	}
	if req.Service == nil {
		return nil, &ArgumentError{Param: "Service", Message: "resolve request has no service"}
	}
	if scope.IsDisposed() {
		return nil, &DependencyResolutionError{
			Service: req.Service,
			Message: "cannot resolve from a disposed lifetime scope",
			Err:     ErrScopeDisposed,
		}
	}
	if err := o.enter(req); err != nil {
		return nil, err
	}

	ctx := &ResolveRequestContext{
		operation:       o,
		Service:         req.Service,
		Registration:    req.Registration,
		Parameters:      req.Parameters,
		DecoratorTarget: req.DecoratorTarget,
		ActivationScope: scope,
	}
	err := req.Registration.ResolvePipeline().Invoke(ctx)
	o.exit()
	if err != nil && !IsResolutionError(err) {
		err = &DependencyResolutionError{
			Service: req.Service,
			Message: "a resolve pipeline stage failed",
			Err:     err,
		}
	}

	if len(o.stack) == 0 {
		if err != nil {
			o.completions = nil
			return nil, err
		}
		if err := o.complete(); err != nil {
			return nil, err
		}
	}
	if err != nil {
		return nil, err
	}
	return ctx.Instance, nil
}

func (o *resolveOperation) enter(req ResolveRequest) error {
	if len(o.stack) >= o.maxDepth {
		return &DependencyResolutionError{
			Service: req.Service,
			Message: fmt.Sprintf("resolve depth exceeded %d, probable circular dependency between factory-scoped components; chain: %s",
				o.maxDepth, o.chain(req.Service)),
			Err: ErrMaxResolveDepth,
		}
	}
	seen := 0
	for _, f := range o.stack {
		if f.registration == req.Registration && f.service == req.Service {
			seen++
		}
	}
	if seen >= maxPairOccurrences {
		return &DependencyResolutionError{
			Service: req.Service,
			Message: "circular component dependency detected: " + o.chain(req.Service),
			Err:     ErrCircularDependency,
		}
	}
	o.stack = append(o.stack, resolveFrame{service: req.Service, registration: req.Registration})
	return nil
}

func (o *resolveOperation) exit() {
	o.stack = o.stack[:len(o.stack)-1]
}

// chain renders the in-flight services followed by next, e.g. "A -> B -> A".
func (o *resolveOperation) chain(next Service) string {
	parts := make([]string, 0, len(o.stack)+1)
	for _, f := range o.stack {
		parts = append(parts, describe(f.service))
	}
	parts = append(parts, describe(next))
	return strings.Join(parts, " -> ")
}

func (o *resolveOperation) enqueueCompletion(fn func() error) {
	o.completions = append(o.completions, fn)
}

// complete drains deferred callbacks. A callback that resolves more
// components drains their callbacks before it returns, so dependencies
// created from a handler are reported first.
func (o *resolveOperation) complete() error {
	for len(o.completions) > 0 {
		batch := o.completions
		o.completions = nil
		for _, fn := range batch {
			if err := fn(); err != nil {
				o.completions = nil
				if IsResolutionError(err) {
					return err
				}
				return &DependencyResolutionError{
					Message: "an activated handler failed after the resolve operation completed",
					Err:     err,
				}
			}
		}
	}
	return nil
}
