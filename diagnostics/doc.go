// Package diagnostics provides resolve pipeline middleware for metrics,
// tracing and logging. Add them with digo.WithMiddleware or
// ContainerBuilder.UseMiddleware, usually at digo.InsertStartOfPhase so they
// wrap everything else.
package diagnostics
