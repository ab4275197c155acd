package digo

import (
	"context"
	"fmt"
	"reflect"

	"github.com/google/uuid"
)

// PreparingEvent is passed to OnPreparing handlers before activation.
// Handlers may replace Parameters.
type PreparingEvent struct {
	Context      ComponentContext
	Registration *ComponentRegistration
	Service      Service
	Parameters   Parameters
}

// ActivatingEvent is passed to OnActivating handlers right after a new
// instance was created, before it is cached or decorated.
type ActivatingEvent struct {
	Context      ComponentContext
	Registration *ComponentRegistration
	Parameters   Parameters
	Instance     any
}

// ReplaceInstance swaps the instance handed to the rest of the pipeline.
func (e *ActivatingEvent) ReplaceInstance(instance any) {
	e.Instance = instance
}

// ActivatedEvent is passed to OnActivated handlers once the outermost
// resolve request completed.
type ActivatedEvent struct {
	Context      ComponentContext
	Registration *ComponentRegistration
	Parameters   Parameters
	Instance     any
}

// RegistrationBuilder configures one registration.
type RegistrationBuilder struct {
	id        uuid.UUID
	activator Activator
	services  []Service
	lifetime  Lifetime
	sharing   Sharing
	ownership Ownership
	metadata  map[string]any
	options   RegistrationOptions
	pipeline  *PipelineBuilder
	released  bool

	preserveDefaults   bool
	decoratorCondition func(*DecoratorContext) bool

	errs  []error
	built *ComponentRegistration
}

// NewRegistrationBuilder starts a registration around activator. The default
// is a new instance per dependency, owned by the resolving scope.
func NewRegistrationBuilder(activator Activator) *RegistrationBuilder {
	return &RegistrationBuilder{
		id:        uuid.New(),
		activator: activator,
		lifetime:  CurrentScopeLifetime{},
		sharing:   SharingNone,
		ownership: OwnedByLifetimeScope,
		metadata:  make(map[string]any),
		pipeline:  NewPipelineBuilder(),
	}
}

// Register adds a factory for T to b. T is the default service.
func Register[T any](b *ContainerBuilder, factory func(c ComponentContext, p Parameters) (T, error)) *RegistrationBuilder {
	rb := NewRegistrationBuilder(NewDelegateActivator(TypeOf[T](), func(c ComponentContext, p Parameters) (any, error) {
		return factory(c, p)
	}))
	if b != nil {
		b.Register(rb)
	}
	return rb
}

// RegisterInstance adds a pre-built value as a single instance of T.
func RegisterInstance[T any](b *ContainerBuilder, instance T) *RegistrationBuilder {
	rb := NewRegistrationBuilder(NewProvidedInstanceActivator(instance, TypeOf[T]())).SingleInstance()
	if b != nil {
		b.Register(rb)
	}
	return rb
}

// ID returns the id the registration will carry.
func (rb *RegistrationBuilder) ID() uuid.UUID { return rb.id }

// As adds services. Without any, the activator's limit type is used.
func (rb *RegistrationBuilder) As(services ...Service) *RegistrationBuilder {
	rb.services = append(rb.services, services...)
	return rb
}

// Named exposes the component as its limit type under name.
func (rb *RegistrationBuilder) Named(name string) *RegistrationBuilder {
	if rb.activator == nil {
		rb.errs = append(rb.errs, &ArgumentError{Param: "Activator", Message: "registration requires an activator"})
		return rb
	}
	return rb.As(NamedService{Name: name, Type: rb.activator.LimitType()})
}

// Keyed exposes the component as its limit type under key.
func (rb *RegistrationBuilder) Keyed(key any) *RegistrationBuilder {
	if rb.activator == nil {
		rb.errs = append(rb.errs, &ArgumentError{Param: "Activator", Message: "registration requires an activator"})
		return rb
	}
	s, err := NewKeyedService(key, rb.activator.LimitType())
	if err != nil {
		rb.errs = append(rb.errs, err)
		return rb
	}
	return rb.As(s)
}

func (rb *RegistrationBuilder) InstancePerDependency() *RegistrationBuilder {
	rb.lifetime = CurrentScopeLifetime{}
	rb.sharing = SharingNone
	return rb
}

func (rb *RegistrationBuilder) SingleInstance() *RegistrationBuilder {
	rb.lifetime = RootScopeLifetime{}
	rb.sharing = SharingShared
	return rb
}

func (rb *RegistrationBuilder) InstancePerLifetimeScope() *RegistrationBuilder {
	rb.lifetime = CurrentScopeLifetime{}
	rb.sharing = SharingShared
	return rb
}

// InstancePerMatchingLifetimeScope shares one instance in the nearest scope
// tagged with one of tags.
func (rb *RegistrationBuilder) InstancePerMatchingLifetimeScope(tags ...any) *RegistrationBuilder {
	if len(tags) == 0 {
		rb.errs = append(rb.errs, &ArgumentError{Param: "tags", Message: "at least one scope tag is required"})
		return rb
	}
	for _, t := range tags {
		if t == nil || !reflect.TypeOf(t).Comparable() {
			rb.errs = append(rb.errs, &ArgumentError{Param: "tags", Message: fmt.Sprintf("scope tag %v is not comparable", t)})
			return rb
		}
	}
	rb.lifetime = MatchingScopeLifetime{Tags: append([]any(nil), tags...)}
	rb.sharing = SharingShared
	return rb
}

// InstancePerOwned shares one instance inside each Owned[T] resolved for
// owner.
func (rb *RegistrationBuilder) InstancePerOwned(owner Service) *RegistrationBuilder {
	return rb.InstancePerMatchingLifetimeScope(OwnedTag{Service: owner})
}

func (rb *RegistrationBuilder) ExternallyOwned() *RegistrationBuilder {
	rb.ownership = ExternallyOwned
	return rb
}

func (rb *RegistrationBuilder) OwnedByLifetimeScope() *RegistrationBuilder {
	rb.ownership = OwnedByLifetimeScope
	return rb
}

func (rb *RegistrationBuilder) WithMetadata(key string, value any) *RegistrationBuilder {
	rb.metadata[key] = value
	return rb
}

// PreserveExistingDefaults registers the component without replacing the
// current default of its services.
func (rb *RegistrationBuilder) PreserveExistingDefaults() *RegistrationBuilder {
	rb.preserveDefaults = true
	return rb
}

func (rb *RegistrationBuilder) ExcludeFromCollections() *RegistrationBuilder {
	rb.options |= OptionExcludeFromCollections
	return rb
}

func (rb *RegistrationBuilder) DisableDecoration() *RegistrationBuilder {
	rb.options |= OptionDisableDecoration
	return rb
}

// AutoActivate resolves the component as soon as the container is built.
func (rb *RegistrationBuilder) AutoActivate() *RegistrationBuilder {
	rb.options |= OptionAutoActivate
	return rb
}

// OnPreparing runs fn before every activation.
func (rb *RegistrationBuilder) OnPreparing(fn func(e *PreparingEvent) error) *RegistrationBuilder {
	rb.pipeline.UseFunc("OnPreparing", PhaseParameterSelection, InsertEndOfPhase,
		func(ctx *ResolveRequestContext, next func(*ResolveRequestContext) error) error {
			e := &PreparingEvent{Context: ctx, Registration: ctx.Registration, Service: ctx.Service, Parameters: ctx.Parameters}
			if err := fn(e); err != nil {
				return err
			}
			ctx.ChangeParameters(e.Parameters)
			return next(ctx)
		})
	return rb
}

// OnActivating runs fn for each new instance before it is shared or
// decorated. Handlers run in the order they were added.
func (rb *RegistrationBuilder) OnActivating(fn func(e *ActivatingEvent) error) *RegistrationBuilder {
	rb.pipeline.UseFunc("OnActivating", PhaseActivation, InsertStartOfPhase,
		func(ctx *ResolveRequestContext, next func(*ResolveRequestContext) error) error {
			if err := next(ctx); err != nil {
				return err
			}
			if !ctx.NewInstanceActivated() {
				return nil
			}
			e := &ActivatingEvent{Context: ctx, Registration: ctx.Registration, Parameters: ctx.Parameters, Instance: ctx.Instance}
			if err := fn(e); err != nil {
				return err
			}
			ctx.Instance = e.Instance
			return nil
		})
	return rb
}

// OnActivated runs fn for each new instance once the outermost request of
// the resolve operation completed, so every dependency is activated by then.
func (rb *RegistrationBuilder) OnActivated(fn func(e *ActivatedEvent) error) *RegistrationBuilder {
	rb.pipeline.UseFunc("OnActivated", PhaseActivation, InsertStartOfPhase,
		func(ctx *ResolveRequestContext, next func(*ResolveRequestContext) error) error {
			if err := next(ctx); err != nil {
				return err
			}
			if !ctx.NewInstanceActivated() {
				return nil
			}
			e := &ActivatedEvent{Context: ctx, Registration: ctx.Registration, Parameters: ctx.Parameters, Instance: ctx.Instance}
			ctx.OnRequestCompleting(func() error { return fn(e) })
			return nil
		})
	return rb
}

// OnRelease replaces automatic disposal: fn is called with the instance when
// its owning scope ends.
func (rb *RegistrationBuilder) OnRelease(fn func(instance any) error) *RegistrationBuilder {
	rb.released = true
	rb.pipeline.UseFunc("OnRelease", PhaseActivation, InsertStartOfPhase,
		func(ctx *ResolveRequestContext, next func(*ResolveRequestContext) error) error {
			if err := next(ctx); err != nil {
				return err
			}
			if !ctx.NewInstanceActivated() {
				return nil
			}
			instance := ctx.Instance
			ctx.ActivationScope.Disposer().AddDisposeFunc(fmt.Sprintf("%T", instance), func(context.Context) error {
				return fn(instance)
			})
			return nil
		})
	return rb
}

// WithPropertyInjector runs inject on each new instance. With allowCircular
// the call is deferred until the outermost request completed, so inject may
// resolve components that depend back on the instance.
func (rb *RegistrationBuilder) WithPropertyInjector(inject func(c ComponentContext, instance any) error, allowCircular bool) *RegistrationBuilder {
	rb.pipeline.UseFunc("PropertyInjection", PhaseActivation, InsertStartOfPhase,
		func(ctx *ResolveRequestContext, next func(*ResolveRequestContext) error) error {
			if err := next(ctx); err != nil {
				return err
			}
			if !ctx.NewInstanceActivated() {
				return nil
			}
			instance := ctx.Instance
			if allowCircular {
				ctx.OnRequestCompleting(func() error { return inject(ctx, instance) })
				return nil
			}
			return inject(ctx, instance)
		})
	return rb
}

// ConfigurePipeline gives direct access to the registration's middleware.
func (rb *RegistrationBuilder) ConfigurePipeline(fn func(*PipelineBuilder)) *RegistrationBuilder {
	fn(rb.pipeline)
	return rb
}

// CreateRegistration validates the configuration and creates the
// registration. It can be called once.
func (rb *RegistrationBuilder) CreateRegistration() (*ComponentRegistration, error) {
	if rb.built != nil {
		return nil, &ArgumentError{Param: "builder", Message: "registration was already created", Err: ErrAlreadyBuilt}
	}
	if len(rb.errs) > 0 {
		return nil, rb.errs[0]
	}
	ownership := rb.ownership
	if rb.released {
		ownership = ExternallyOwned
	}
	reg, err := NewComponentRegistration(RegistrationConfig{
		ID:                 rb.id,
		Activator:          rb.activator,
		Services:           rb.services,
		Lifetime:           rb.lifetime,
		Sharing:            rb.sharing,
		Ownership:          ownership,
		Metadata:           rb.metadata,
		Options:            rb.options,
		Pipeline:           rb.pipeline,
		decoratorCondition: rb.decoratorCondition,
	})
	if err != nil {
		return nil, err
	}
	rb.built = reg
	return reg, nil
}
