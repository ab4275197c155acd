package digo

import (
	"fmt"
	"reflect"

	"go.uber.org/multierr"
)

// optionCollection marks the registrations the collection source creates.
// They are rebuilt per registry rather than inherited.
const optionCollection RegistrationOptions = 1 << 16

var (
	errorType      = reflect.TypeOf((*error)(nil)).Elem()
	parameterSlice = reflect.TypeOf([]Parameter(nil))
)

func defaultSources() []RegistrationSource {
	return []RegistrationSource{
		collectionSource{},
		lazySource{},
		funcSource{},
		ownedSource{},
		metaSource{},
	}
}

// adapterActivator is the activator of source-produced registrations. It
// needs the request context rather than a ComponentContext.
type adapterActivator struct {
	name  string
	limit reflect.Type
	fn    func(ctx *ResolveRequestContext, p Parameters) (any, error)
}

func (a *adapterActivator) LimitType() reflect.Type { return a.limit }

func (a *adapterActivator) Activate(ctx *ResolveRequestContext, p Parameters) (any, error) {
	return a.fn(ctx, p)
}

func (a *adapterActivator) String() string { return a.name + "(" + typeName(a.limit) + ")" }

// typedService unpacks a service carrying a type. Decorator services are
// never adapted.
func typedService(service Service) (ServiceWithType, reflect.Type, bool) {
	if _, ok := service.(DecoratorService); ok {
		return nil, nil, false
	}
	swt, ok := service.(ServiceWithType)
	if !ok || swt.ServiceType() == nil {
		return nil, nil, false
	}
	return swt, swt.ServiceType(), true
}

// adapt builds one adapter registration per target of the element service.
func adapt(service Service, elem Service, lookup RegistrationLookup, name string, limit reflect.Type,
	build func(target *ComponentRegistration) func(ctx *ResolveRequestContext, p Parameters) (any, error),
) []*ComponentRegistration {
	targets := lookup(elem)
	out := make([]*ComponentRegistration, 0, len(targets))
	for _, target := range targets {
		reg, err := NewComponentRegistration(RegistrationConfig{
			Activator: &adapterActivator{name: name, limit: limit, fn: build(target)},
			Services:  []Service{service},
			Lifetime:  CurrentScopeLifetime{},
			Sharing:   SharingNone,
			Ownership: ExternallyOwned,
			Metadata:  target.Metadata(),
			Options:   OptionAdapterForIndividualComponent | target.Options()&OptionExcludeFromCollections,
			Target:    target,
		})
		if err != nil {
			continue
		}
		out = append(out, reg)
	}
	return out
}

// collectionSource serves []T with every registration of T that is not
// excluded from collections, ordered by registration.
type collectionSource struct{}

func (collectionSource) RegistrationsFor(service Service, lookup RegistrationLookup) []*ComponentRegistration {
	swt, t, ok := typedService(service)
	if !ok || t.Kind() != reflect.Slice {
		return nil
	}
	elem := swt.ChangeType(t.Elem())
	act := &adapterActivator{name: "Collection", limit: t, fn: func(ctx *ResolveRequestContext, p Parameters) (any, error) {
		items := make([]*ComponentRegistration, 0)
		for _, reg := range ctx.ComponentRegistry().RegistrationsFor(elem) {
			if !reg.Options().Has(OptionExcludeFromCollections) {
				items = append(items, reg)
			}
		}
		sortByRegistrationOrder(items)

		out := reflect.MakeSlice(t, len(items), len(items))
		for i, reg := range items {
			v, err := ctx.ResolveComponent(ResolveRequest{Service: elem, Registration: reg, Parameters: p})
			if err != nil {
				return nil, err
			}
			rv := reflect.ValueOf(v)
			if !rv.Type().AssignableTo(t.Elem()) {
				return nil, &TypeMismatchError{Expected: typeName(t.Elem()), Got: rv.Type().String()}
			}
			out.Index(i).Set(rv)
		}
		return out.Interface(), nil
	}}
	reg, err := NewComponentRegistration(RegistrationConfig{
		Activator: act,
		Services:  []Service{service},
		Lifetime:  CurrentScopeLifetime{},
		Sharing:   SharingNone,
		Ownership: ExternallyOwned,
		Options:   optionCollection | OptionDisableDecoration,
	})
	if err != nil {
		return nil
	}
	return []*ComponentRegistration{reg}
}

func (collectionSource) IsAdapterForIndividualComponents() bool { return false }

func (collectionSource) String() string { return "CollectionSource" }

// lazySource serves *Lazy[T] for each registration of T.
type lazySource struct{}

func (lazySource) RegistrationsFor(service Service, lookup RegistrationLookup) []*ComponentRegistration {
	swt, t, ok := typedService(service)
	if !ok {
		return nil
	}
	sample, ok := newWrapper(t, lazyValueType)
	if !ok {
		return nil
	}
	elem := swt.ChangeType(sample.(lazyValue).elementType())
	return adapt(service, elem, lookup, "Lazy", t, func(target *ComponentRegistration) func(*ResolveRequestContext, Parameters) (any, error) {
		return func(ctx *ResolveRequestContext, p Parameters) (any, error) {
			w, _ := newWrapper(t, lazyValueType)
			scope := ctx.ActivationScope
			w.(lazyValue).setFactory(func() (any, error) {
				return scope.ResolveComponent(ResolveRequest{Service: elem, Registration: target, Parameters: p})
			})
			return w, nil
		}
	})
}

func (lazySource) IsAdapterForIndividualComponents() bool { return true }

func (lazySource) String() string { return "LazySource" }

// ownedSource serves *Owned[T], resolving T in a fresh child scope.
type ownedSource struct{}

func (ownedSource) RegistrationsFor(service Service, lookup RegistrationLookup) []*ComponentRegistration {
	swt, t, ok := typedService(service)
	if !ok {
		return nil
	}
	sample, ok := newWrapper(t, ownedValueType)
	if !ok {
		return nil
	}
	elem := swt.ChangeType(sample.(ownedValue).elementType())
	return adapt(service, elem, lookup, "Owned", t, func(target *ComponentRegistration) func(*ResolveRequestContext, Parameters) (any, error) {
		return func(ctx *ResolveRequestContext, p Parameters) (any, error) {
			scope, err := ctx.ActivationScope.BeginLifetimeScope(WithTag(OwnedTag{Service: elem}))
			if err != nil {
				return nil, err
			}
			v, err := scope.ResolveComponent(ResolveRequest{Service: elem, Registration: target, Parameters: p})
			if err != nil {
				return nil, multierr.Append(err, scope.Dispose())
			}
			w, _ := newWrapper(t, ownedValueType)
			if err := w.(ownedValue).bind(v, scope); err != nil {
				return nil, multierr.Append(err, scope.Dispose())
			}
			return w, nil
		}
	})
}

func (ownedSource) IsAdapterForIndividualComponents() bool { return true }

func (ownedSource) String() string { return "OwnedSource" }

// metaSource serves *Meta[T] within the same resolve operation.
type metaSource struct{}

func (metaSource) RegistrationsFor(service Service, lookup RegistrationLookup) []*ComponentRegistration {
	swt, t, ok := typedService(service)
	if !ok {
		return nil
	}
	sample, ok := newWrapper(t, metaValueType)
	if !ok {
		return nil
	}
	elem := swt.ChangeType(sample.(metaValue).elementType())
	return adapt(service, elem, lookup, "Meta", t, func(target *ComponentRegistration) func(*ResolveRequestContext, Parameters) (any, error) {
		return func(ctx *ResolveRequestContext, p Parameters) (any, error) {
			v, err := ctx.ResolveComponent(ResolveRequest{Service: elem, Registration: target, Parameters: p})
			if err != nil {
				return nil, err
			}
			w, _ := newWrapper(t, metaValueType)
			if err := w.(metaValue).bind(v, target.Metadata()); err != nil {
				return nil, err
			}
			return w, nil
		}
	})
}

func (metaSource) IsAdapterForIndividualComponents() bool { return true }

func (metaSource) String() string { return "MetaSource" }

// funcSource serves generated factories of the form func() (T, error) and
// func(...Parameter) (T, error). Each call resolves T from the scope the
// factory was resolved in.
type funcSource struct{}

func (funcSource) RegistrationsFor(service Service, lookup RegistrationLookup) []*ComponentRegistration {
	swt, t, ok := typedService(service)
	if !ok || !isFactoryType(t) {
		return nil
	}
	elemType := t.Out(0)
	elem := swt.ChangeType(elemType)
	return adapt(service, elem, lookup, "Func", t, func(target *ComponentRegistration) func(*ResolveRequestContext, Parameters) (any, error) {
		return func(ctx *ResolveRequestContext, _ Parameters) (any, error) {
			scope := ctx.ActivationScope
			fn := reflect.MakeFunc(t, func(args []reflect.Value) []reflect.Value {
				var params Parameters
				if len(args) == 1 {
					params = Parameters(args[0].Interface().([]Parameter))
				}
				v, err := scope.ResolveComponent(ResolveRequest{Service: elem, Registration: target, Parameters: params})
				if err == nil && !reflect.TypeOf(v).AssignableTo(elemType) {
					err = &TypeMismatchError{Expected: typeName(elemType), Got: fmt.Sprintf("%T", v)}
				}
				if err != nil {
					return []reflect.Value{reflect.Zero(elemType), reflect.ValueOf(&err).Elem()}
				}
				out := reflect.New(elemType).Elem()
				out.Set(reflect.ValueOf(v))
				return []reflect.Value{out, reflect.Zero(errorType)}
			})
			return fn.Interface(), nil
		}
	})
}

func (funcSource) IsAdapterForIndividualComponents() bool { return true }

func (funcSource) String() string { return "FuncSource" }

func isFactoryType(t reflect.Type) bool {
	if t.Kind() != reflect.Func || t.NumOut() != 2 || t.Out(1) != errorType || t.Out(0) == errorType {
		return false
	}
	switch t.NumIn() {
	case 0:
		return true
	case 1:
		return t.IsVariadic() && t.In(0) == parameterSlice
	}
	return false
}

// externalRegistrySource exposes the components of a parent registry to a
// configured child registry. Adapter and collection registrations are left
// out; the child builds its own so they also cover its components.
type externalRegistrySource struct {
	registry *ComponentRegistry
}

func (s *externalRegistrySource) RegistrationsFor(service Service, _ RegistrationLookup) []*ComponentRegistration {
	var out []*ComponentRegistration
	for _, reg := range s.registry.RegistrationsFor(service) {
		opts := reg.Options()
		if opts.Has(OptionAdapterForIndividualComponent) || opts.Has(optionCollection) {
			continue
		}
		out = append(out, reg)
	}
	return out
}

func (s *externalRegistrySource) IsAdapterForIndividualComponents() bool { return false }

func (s *externalRegistrySource) String() string { return "ExternalRegistrySource" }
