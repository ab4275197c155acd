// Package digo is a dependency injection container.
//
// Components are registered on a ContainerBuilder, each through a
// RegistrationBuilder that picks the services the component provides, how
// instances are shared and who disposes them:
//
//	b := digo.NewContainerBuilder(digo.WithLogger(logger))
//	digo.Register(b, func(c digo.ComponentContext, _ digo.Parameters) (*Repo, error) {
//		db, err := digo.Resolve[*sql.DB](c)
//		if err != nil {
//			return nil, err
//		}
//		return NewRepo(db), nil
//	}).As(digo.Typed[Store]()).InstancePerLifetimeScope()
//	container, err := b.Build()
//
// Every resolve request runs through the registration's pipeline: parameter
// selection, sharing, decoration and activation, in that nesting order.
// Middleware can be added per registration or for the whole container.
//
// Scopes nest. A shared instance lives in the scope its lifetime selects and
// is disposed, in reverse creation order, when that scope ends. Child scopes
// can carry registrations of their own:
//
//	scope, err := container.BeginLifetimeScope(
//		digo.WithTag("request"),
//		digo.WithConfiguration(func(b *digo.ContainerBuilder) {
//			digo.RegisterInstance(b, req)
//		}),
//	)
//	defer scope.Dispose()
//
// Besides registered components the container resolves []T, *Lazy[T],
// *Owned[T], *Meta[T], func() (T, error) and func(...Parameter) (T, error)
// for any resolvable T.
package digo
