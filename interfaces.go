package digo

import "context"

// Disposable is implemented by instances that release resources when their
// owning lifetime scope ends.
type Disposable interface {
	Dispose() error
}

// Shutdowner is the context-aware variant of Disposable. The scope's context
// is passed when the scope is disposed.
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

// Startable is implemented by auto-activated components that need work done
// once the container is built.
type Startable interface {
	Start(ctx context.Context) error
}

// RegistrationSource synthesizes registrations on demand for services that
// were not registered explicitly.
type RegistrationSource interface {
	// RegistrationsFor returns the registrations the source can provide for
	// service. lookup returns the known registrations of another service and
	// may trigger its initialization; it is the only registry access a source
	// may use while being queried.
	RegistrationsFor(service Service, lookup RegistrationLookup) []*ComponentRegistration

	// IsAdapterForIndividualComponents reports whether each registration the
	// source returns wraps exactly one existing registration. Such sources are
	// copied into configured child scopes.
	IsAdapterForIndividualComponents() bool
}

// RegistrationLookup returns every known registration for a service.
type RegistrationLookup func(service Service) []*ComponentRegistration

// RegistrationSourceFunc adapts a function into a non-adapter RegistrationSource.
type RegistrationSourceFunc func(service Service, lookup RegistrationLookup) []*ComponentRegistration

func (f RegistrationSourceFunc) RegistrationsFor(service Service, lookup RegistrationLookup) []*ComponentRegistration {
	return f(service, lookup)
}

func (f RegistrationSourceFunc) IsAdapterForIndividualComponents() bool { return false }

// ComponentContext is what activators and handlers resolve dependencies
// through. Requests made on it join the in-flight resolve operation.
type ComponentContext interface {
	ComponentRegistry() *ComponentRegistry
	ResolveComponent(req ResolveRequest) (any, error)
}
