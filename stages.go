package digo

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"
)

// The core stages are built per pipeline. Package-level values would form an
// initialization cycle through decorateInstance and ResolvePipeline.
func sharingMiddleware() ResolveMiddleware {
	return NewMiddleware("Sharing", PhaseSharing, shareInstance)
}

func decorationMiddleware() ResolveMiddleware {
	return NewMiddleware("Decoration", PhaseDecoration, decorateInstance)
}

func disposalMiddleware() ResolveMiddleware {
	return NewMiddleware("Disposal", PhaseActivation, trackDisposal)
}

func activatorMiddleware() ResolveMiddleware {
	return NewMiddleware("Activator", PhaseActivation, activateInstance)
}

type sharedKey struct {
	registration uuid.UUID
	target       uuid.UUID
}

// shareInstance moves the request to the scope its lifetime selects and, for
// shared registrations, serves the cached instance instead of continuing.
func shareInstance(ctx *ResolveRequestContext, next func(*ResolveRequestContext) error) error {
	reg := ctx.Registration
	scope, err := reg.Lifetime().FindScope(ctx.ActivationScope)
	if err != nil {
		return withService(err, ctx.Service)
	}
	ctx.ActivationScope = scope

	if reg.Sharing() != SharingShared {
		return next(ctx)
	}
	key := sharedKey{registration: reg.ID()}
	if ctx.DecoratorTarget != nil {
		key.target = ctx.DecoratorTarget.ID()
	}
	instance, err := scope.sharedInstance(ctx.operation, key, ctx.Service, func() (any, error) {
		if err := next(ctx); err != nil {
			return nil, err
		}
		return ctx.Instance, nil
	})
	if err != nil {
		return err
	}
	ctx.Instance = instance
	return nil
}

// decorateInstance applies the decorators registered for the requested type
// once the inner stages produced an instance.
func decorateInstance(ctx *ResolveRequestContext, next func(*ResolveRequestContext) error) error {
	if err := next(ctx); err != nil {
		return err
	}
	if ctx.DecoratorTarget != nil {
		return nil
	}
	typed, ok := ctx.Service.(ServiceWithType)
	if !ok {
		return nil
	}
	if _, isDecorator := ctx.Service.(DecoratorService); isDecorator {
		return nil
	}
	serviceType := typed.ServiceType()
	decorators := ctx.ComponentRegistry().DecoratorsFor(serviceType)
	if len(decorators) == 0 {
		return nil
	}

	dc := &DecoratorContext{
		ImplementationType: ctx.Registration.limitType(),
		ServiceType:        serviceType,
		CurrentInstance:    ctx.Instance,
	}
	for _, d := range decorators {
		if d.decoratorCondition != nil && !d.decoratorCondition(dc) {
			continue
		}
		params := ctx.Parameters.With(decoratedParameter{context: dc})
		decorated, err := ctx.ResolveComponent(ResolveRequest{
			Service:         DecoratorService{Type: serviceType},
			Registration:    d,
			Parameters:      params,
			DecoratorTarget: ctx.Registration,
		})
		if err != nil {
			return err
		}
		dc = dc.apply(d.limitType(), decorated)
	}
	if len(dc.AppliedDecorators) > 0 {
		ctx.Instance = dc.CurrentInstance
		ctx.DecoratorContext = dc
	}
	return nil
}

// trackDisposal wraps the activating handlers and hands the instance they
// settled on to the activation scope's disposer.
func trackDisposal(ctx *ResolveRequestContext, next func(*ResolveRequestContext) error) error {
	err := next(ctx)
	if ctx.NewInstanceActivated() && !isNil(ctx.Instance) {
		ctx.ActivationScope.disposer.AddInstanceForDisposal(ctx.Instance)
	}
	return err
}

// activateInstance runs the activator.
func activateInstance(ctx *ResolveRequestContext, next func(*ResolveRequestContext) error) error {
	reg := ctx.Registration
	instance, err := callActivator(ctx)
	if err != nil {
		if IsResolutionError(err) {
			return err
		}
		return &DependencyResolutionError{
			Service: ctx.Service,
			Message: fmt.Sprintf("an error occurred during the activation of a particular registration (%s)", reg.Activator()),
			Err:     err,
		}
	}
	if isNil(instance) {
		return &DependencyResolutionError{
			Service: ctx.Service,
			Message: fmt.Sprintf("activator %s returned a nil instance", reg.Activator()),
		}
	}
	ctx.Instance = instance
	ctx.newInstance = true
	return next(ctx)
}

func callActivator(ctx *ResolveRequestContext) (instance any, err error) {
	defer func() {
		if r := recover(); r != nil {
			instance = nil
			err = fmt.Errorf("activator panicked: %v", r)
		}
	}()
	return ctx.Registration.Activator().Activate(ctx, ctx.Parameters)
}

// withService fills in the requested service on resolution errors raised
// before it was known.
func withService(err error, s Service) error {
	if dre, ok := err.(*DependencyResolutionError); ok && dre.Service == nil {
		return &DependencyResolutionError{Service: s, Message: dre.Message, Err: dre.Err}
	}
	return err
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
