package digo

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Container is the root lifetime scope produced by ContainerBuilder.Build.
type Container struct {
	*LifetimeScope
}

// Shutdown disposes the container with ctx, so a container can itself be
// owned by another scope.
func (c *Container) Shutdown(ctx context.Context) error {
	return c.DisposeContext(ctx)
}

// startComponents resolves each registration in scope and starts the
// instances implementing Startable with the scope's context.
func startComponents(scope *LifetimeScope, regs []*ComponentRegistration) error {
	for _, reg := range regs {
		service := reg.services[0]
		instance, err := scope.ResolveComponent(ResolveRequest{Service: service, Registration: reg})
		if err != nil {
			return err
		}
		scope.logger.Debug("auto-activated component", zap.String("service", service.Description()))

		startable, ok := instance.(Startable)
		if !ok {
			continue
		}
		if err := startable.Start(scope.ctx); err != nil {
			return &DependencyResolutionError{
				Service: service,
				Message: fmt.Sprintf("failed to start %T", instance),
				Err:     err,
			}
		}
	}
	return nil
}

func combineDispose(err error, scope *LifetimeScope) error {
	return multierr.Append(err, scope.Dispose())
}
