package digo

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MetadataRegistrationOrder is the metadata key holding the registration's
// position in the process-wide registration sequence.
const MetadataRegistrationOrder = "__RegistrationOrder"

// RegistrationOptions are flags that change how a registration is treated.
type RegistrationOptions uint

const (
	// OptionDisableDecoration keeps decorators away from the registration.
	OptionDisableDecoration RegistrationOptions = 1 << iota
	// OptionExcludeFromCollections hides the registration from []T resolution.
	OptionExcludeFromCollections
	// OptionAutoActivate resolves the registration when its container or
	// configured scope is built.
	OptionAutoActivate
	// OptionAdapterForIndividualComponent marks registrations that an adapter
	// source produced for one existing registration.
	OptionAdapterForIndividualComponent
)

// Has reports whether every flag in f is set.
func (o RegistrationOptions) Has(f RegistrationOptions) bool {
	return o&f == f
}

// RegistrationConfig describes a registration for NewComponentRegistration.
type RegistrationConfig struct {
	ID        uuid.UUID
	Activator Activator
	Services  []Service
	Lifetime  Lifetime
	Sharing   Sharing
	Ownership Ownership
	Metadata  map[string]any
	Options   RegistrationOptions
	Target    *ComponentRegistration
	Pipeline  *PipelineBuilder

	decoratorCondition func(*DecoratorContext) bool
}

// ComponentRegistration describes one constructible unit. Everything but the
// metadata is fixed once created.
type ComponentRegistration struct {
	id        uuid.UUID
	activator Activator
	lifetime  Lifetime
	sharing   Sharing
	ownership Ownership
	services  []Service
	options   RegistrationOptions
	target    *ComponentRegistration

	metaMu   sync.RWMutex
	metadata map[string]any

	decoratorCondition func(*DecoratorContext) bool

	ownerMu sync.Mutex
	owner   *ComponentRegistry

	pipelineBuilder *PipelineBuilder
	pipelineOnce    sync.Once
	pipeline        *ResolvePipeline
}

// NewComponentRegistration validates cfg and creates a registration. Every
// typed service must be assignable from the activator's limit type.
func NewComponentRegistration(cfg RegistrationConfig) (*ComponentRegistration, error) {
	if cfg.Activator == nil {
		return nil, &ArgumentError{Param: "Activator", Message: "registration requires an activator"}
	}
	limit := cfg.Activator.LimitType()
	if limit == nil {
		return nil, &ArgumentError{Param: "Activator", Message: "activator has no limit type"}
	}

	services := cfg.Services
	if len(services) == 0 {
		services = []Service{TypedService{Type: limit}}
	}
	seen := make(map[Service]struct{}, len(services))
	deduped := make([]Service, 0, len(services))
	for _, s := range services {
		if s == nil {
			return nil, &ArgumentError{Param: "Services", Message: "service must not be nil"}
		}
		if st, ok := s.(ServiceWithType); ok {
			t := st.ServiceType()
			if t == nil {
				return nil, &ArgumentError{Param: "Services", Message: "service " + s.Description() + " has no type"}
			}
			if !limit.AssignableTo(t) {
				return nil, &ArgumentError{
					Param:   "Services",
					Message: fmt.Sprintf("the type %s is not assignable to service %s", typeName(limit), s.Description()),
				}
			}
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		deduped = append(deduped, s)
	}

	lifetime := cfg.Lifetime
	if lifetime == nil {
		lifetime = CurrentScopeLifetime{}
	}
	id := cfg.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	metadata := make(map[string]any, len(cfg.Metadata)+1)
	for k, v := range cfg.Metadata {
		metadata[k] = v
	}
	if _, ok := metadata[MetadataRegistrationOrder]; !ok {
		metadata[MetadataRegistrationOrder] = nextRegistrationOrder()
	}
	pipeline := cfg.Pipeline
	if pipeline == nil {
		pipeline = NewPipelineBuilder()
	} else {
		pipeline = pipeline.Clone()
	}

	return &ComponentRegistration{
		id:                 id,
		activator:          cfg.Activator,
		lifetime:           lifetime,
		sharing:            cfg.Sharing,
		ownership:          cfg.Ownership,
		services:           deduped,
		options:            cfg.Options,
		target:             cfg.Target,
		metadata:           metadata,
		decoratorCondition: cfg.decoratorCondition,
		pipelineBuilder:    pipeline,
	}, nil
}

func (r *ComponentRegistration) ID() uuid.UUID { return r.id }

func (r *ComponentRegistration) Activator() Activator { return r.activator }

func (r *ComponentRegistration) Lifetime() Lifetime { return r.lifetime }

func (r *ComponentRegistration) Sharing() Sharing { return r.sharing }

func (r *ComponentRegistration) Ownership() Ownership { return r.ownership }

func (r *ComponentRegistration) Options() RegistrationOptions { return r.options }

// Services returns a copy of the provided services.
func (r *ComponentRegistration) Services() []Service {
	out := make([]Service, len(r.services))
	copy(out, r.services)
	return out
}

// Provides reports whether s is one of the registration's services.
func (r *ComponentRegistration) Provides(s Service) bool {
	for _, own := range r.services {
		if own == s {
			return true
		}
	}
	return false
}

// Target returns the registration this one adapts, following the chain to
// its origin, or r itself.
func (r *ComponentRegistration) Target() *ComponentRegistration {
	t := r
	for t.target != nil {
		t = t.target
	}
	return t
}

// IsAdapting reports whether the registration wraps another.
func (r *ComponentRegistration) IsAdapting() bool { return r.target != nil }

// Metadata returns a snapshot of the metadata.
func (r *ComponentRegistration) Metadata() map[string]any {
	r.metaMu.RLock()
	defer r.metaMu.RUnlock()
	out := make(map[string]any, len(r.metadata))
	for k, v := range r.metadata {
		out[k] = v
	}
	return out
}

// MetadataValue returns one metadata entry.
func (r *ComponentRegistration) MetadataValue(key string) (any, bool) {
	r.metaMu.RLock()
	defer r.metaMu.RUnlock()
	v, ok := r.metadata[key]
	return v, ok
}

// SetMetadata sets one metadata entry.
func (r *ComponentRegistration) SetMetadata(key string, value any) {
	r.metaMu.Lock()
	r.metadata[key] = value
	r.metaMu.Unlock()
}

// RegistrationOrder returns the sequence number assigned at creation.
func (r *ComponentRegistration) RegistrationOrder() int64 {
	v, _ := r.MetadataValue(MetadataRegistrationOrder)
	order, _ := v.(int64)
	return order
}

// Owner returns the registry the registration was registered with.
func (r *ComponentRegistration) Owner() *ComponentRegistry {
	r.ownerMu.Lock()
	defer r.ownerMu.Unlock()
	return r.owner
}

func (r *ComponentRegistration) claim(owner *ComponentRegistry) bool {
	r.ownerMu.Lock()
	defer r.ownerMu.Unlock()
	if r.owner == nil {
		r.owner = owner
		return true
	}
	return r.owner == owner
}

// ResolvePipeline returns the registration's pipeline, building it on first
// use against the owning registry.
func (r *ComponentRegistration) ResolvePipeline() *ResolvePipeline {
	r.pipelineOnce.Do(func() {
		b := r.pipelineBuilder.Clone()
		if owner := r.Owner(); owner != nil {
			for _, u := range owner.pipelineMiddleware() {
				b.Use(u.middleware, u.mode)
			}
		}
		b.Use(sharingMiddleware(), InsertStartOfPhase)
		if !r.options.Has(OptionDisableDecoration) {
			b.Use(decorationMiddleware(), InsertStartOfPhase)
		}
		if r.ownership == OwnedByLifetimeScope {
			b.Use(disposalMiddleware(), InsertStartOfPhase)
		}
		b.Use(activatorMiddleware(), InsertEndOfPhase)
		r.pipeline = b.Build()
	})
	return r.pipeline
}

func (r *ComponentRegistration) String() string {
	names := make([]string, len(r.services))
	for i, s := range r.services {
		names[i] = s.Description()
	}
	return fmt.Sprintf("Activator = %s, Services = [%s], Lifetime = %s, Sharing = %s, Ownership = %s",
		r.activator, strings.Join(names, ", "), r.lifetime, r.sharing, r.ownership)
}

// limitType is shorthand for the activator's limit type.
func (r *ComponentRegistration) limitType() reflect.Type {
	return r.activator.LimitType()
}
