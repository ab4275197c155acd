package digo

import (
	"context"
	"reflect"

	"go.uber.org/zap"
)

// Option configures a ContainerBuilder.
type Option func(*buildOptions)

type buildOptions struct {
	logger     *zap.Logger
	maxDepth   int
	ctx        context.Context
	middleware []middlewareUse
}

// WithLogger sets the logger used by the container and its scopes.
func WithLogger(logger *zap.Logger) Option {
	return func(o *buildOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMaxResolveDepth bounds how deeply one resolve operation may nest.
func WithMaxResolveDepth(depth int) Option {
	return func(o *buildOptions) {
		if depth > 0 {
			o.maxDepth = depth
		}
	}
}

// WithContext sets the root scope's context.
func WithContext(ctx context.Context) Option {
	return func(o *buildOptions) {
		if ctx != nil {
			o.ctx = ctx
		}
	}
}

// WithMiddleware adds mw to every registration pipeline of the container.
func WithMiddleware(mw ResolveMiddleware, mode InsertionMode) Option {
	return func(o *buildOptions) {
		o.middleware = append(o.middleware, middlewareUse{middleware: mw, mode: mode})
	}
}

type componentEntry struct {
	registration     *ComponentRegistration
	preserveDefaults bool
}

// ContainerBuilder collects registrations and produces a Container. The same
// builder type configures child scopes.
type ContainerBuilder struct {
	opts buildOptions

	builders   []*RegistrationBuilder
	components []componentEntry
	sources    []RegistrationSource
	callbacks  []func(*LifetimeScope) error
	built      bool
}

// NewContainerBuilder returns an empty builder.
func NewContainerBuilder(opts ...Option) *ContainerBuilder {
	o := buildOptions{
		logger:   zap.NewNop(),
		maxDepth: DefaultMaxResolveDepth,
		ctx:      context.Background(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &ContainerBuilder{opts: o}
}

// Register adds rb; the registration is created when the builder is built.
func (b *ContainerBuilder) Register(rb *RegistrationBuilder) *RegistrationBuilder {
	b.builders = append(b.builders, rb)
	return rb
}

// RegisterComponent adds a ready-made registration.
func (b *ContainerBuilder) RegisterComponent(reg *ComponentRegistration, preserveDefaults bool) {
	b.components = append(b.components, componentEntry{registration: reg, preserveDefaults: preserveDefaults})
}

// RegisterSource adds a registration source.
func (b *ContainerBuilder) RegisterSource(src RegistrationSource) {
	b.sources = append(b.sources, src)
}

// UseMiddleware adds mw to every registration pipeline built by the container.
func (b *ContainerBuilder) UseMiddleware(mw ResolveMiddleware, mode InsertionMode) {
	b.opts.middleware = append(b.opts.middleware, middlewareUse{middleware: mw, mode: mode})
}

// OnBuild registers fn to run once the container, or the configured child
// scope, is ready and auto-activated components are started.
func (b *ContainerBuilder) OnBuild(fn func(*LifetimeScope) error) {
	b.callbacks = append(b.callbacks, fn)
}

// Build creates the container. A builder can only be built once.
func (b *ContainerBuilder) Build() (*Container, error) {
	if b.built {
		return nil, &ArgumentError{Param: "builder", Message: "container builder was already built", Err: ErrAlreadyBuilt}
	}
	b.built = true

	registry := NewComponentRegistry(b.opts.logger)
	for _, u := range b.opts.middleware {
		registry.UseMiddleware(u.middleware, u.mode)
	}
	if err := registry.Register(selfRegistration()); err != nil {
		return nil, err
	}
	for _, src := range defaultSources() {
		if err := registry.AddRegistrationSource(src); err != nil {
			return nil, err
		}
	}
	if err := b.populate(registry, nil); err != nil {
		return nil, err
	}

	root := newRootScope(registry, b.opts)
	container := &Container{LifetimeScope: root}
	if err := b.activate(root); err != nil {
		return nil, combineDispose(err, root)
	}
	b.opts.logger.Debug("container built", zap.Int("registrations", len(registry.Registrations())))
	return container, nil
}

// buildChildRegistry creates the registry of a configured child scope. It
// sees the parent's components through an external source and re-applies
// the parent's adapters so they also adapt the child's own components.
// Single instances the child registers itself are owned by scope.
func (b *ContainerBuilder) buildChildRegistry(parent *ComponentRegistry, scope *LifetimeScope) (*ComponentRegistry, error) {
	if b.built {
		return nil, &ArgumentError{Param: "builder", Message: "scope configuration was already built", Err: ErrAlreadyBuilt}
	}
	b.built = true

	registry := NewComponentRegistry(b.opts.logger)
	for _, u := range parent.pipelineMiddleware() {
		registry.UseMiddleware(u.middleware, u.mode)
	}
	for _, u := range b.opts.middleware {
		registry.UseMiddleware(u.middleware, u.mode)
	}
	if err := registry.AddRegistrationSource(&externalRegistrySource{registry: parent}); err != nil {
		return nil, err
	}
	for _, src := range parent.Sources() {
		if src.IsAdapterForIndividualComponents() {
			if err := registry.AddRegistrationSource(src); err != nil {
				return nil, err
			}
		}
	}
	if err := registry.AddRegistrationSource(collectionSource{}); err != nil {
		return nil, err
	}
	if err := b.populate(registry, scope); err != nil {
		return nil, err
	}
	return registry, nil
}

func (b *ContainerBuilder) populate(registry *ComponentRegistry, restrict *LifetimeScope) error {
	for _, rb := range b.builders {
		if _, root := rb.lifetime.(RootScopeLifetime); root && restrict != nil {
			rb.lifetime = scopeRestrictedLifetime{scope: restrict}
		}
		reg, err := rb.CreateRegistration()
		if err != nil {
			return err
		}
		if err := registry.register(reg, rb.preserveDefaults); err != nil {
			return err
		}
	}
	for _, c := range b.components {
		if err := registry.register(c.registration, c.preserveDefaults); err != nil {
			return err
		}
	}
	for _, src := range b.sources {
		if err := registry.AddRegistrationSource(src); err != nil {
			return err
		}
	}
	return nil
}

// activate resolves the builder's auto-activated components in scope, starts
// the Startable ones, then runs the build callbacks.
func (b *ContainerBuilder) activate(scope *LifetimeScope) error {
	var auto []*ComponentRegistration
	for _, rb := range b.builders {
		if rb.built != nil && rb.built.Options().Has(OptionAutoActivate) {
			auto = append(auto, rb.built)
		}
	}
	for _, c := range b.components {
		if c.registration.Options().Has(OptionAutoActivate) {
			auto = append(auto, c.registration)
		}
	}
	if err := startComponents(scope, auto); err != nil {
		return err
	}
	for _, cb := range b.callbacks {
		if err := cb(scope); err != nil {
			return err
		}
	}
	return nil
}

func selfRegistration() *ComponentRegistration {
	reg, err := NewComponentRegistration(RegistrationConfig{
		Activator: &scopeActivator{},
		Lifetime:  CurrentScopeLifetime{},
		Sharing:   SharingNone,
		Ownership: ExternallyOwned,
		Options:   OptionDisableDecoration | OptionExcludeFromCollections,
	})
	if err != nil {
		panic(err)
	}
	return reg
}

// scopeActivator hands out the scope a request runs in.
type scopeActivator struct{}

func (*scopeActivator) LimitType() reflect.Type { return TypeOf[*LifetimeScope]() }

func (*scopeActivator) Activate(ctx *ResolveRequestContext, _ Parameters) (any, error) {
	return ctx.ActivationScope, nil
}

func (*scopeActivator) String() string { return "LifetimeScope" }
