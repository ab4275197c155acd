package diagnostics

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/centraunit/digo"
)

// TracerName is the instrumentation name spans are recorded under.
const TracerName = "github.com/centraunit/digo"

// Tracing records one span per resolve request.
type Tracing struct {
	tracer trace.Tracer
}

// NewTracing uses tp, or the global provider when tp is nil.
func NewTracing(tp trace.TracerProvider) *Tracing {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Tracing{tracer: tp.Tracer(TracerName)}
}

func (t *Tracing) Middleware() digo.ResolveMiddleware {
	return digo.NewMiddleware("Tracing", digo.PhaseRequestStart,
		func(ctx *digo.ResolveRequestContext, next func(*digo.ResolveRequestContext) error) error {
			_, span := t.tracer.Start(ctx.Context(), "digo.resolve",
				trace.WithAttributes(
					attribute.String("digo.service", ctx.Service.Description()),
					attribute.String("digo.registration", ctx.Registration.ID().String()),
					attribute.Int("digo.depth", ctx.Depth()),
				),
			)
			defer span.End()

			err := next(ctx)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return err
			}
			span.SetAttributes(attribute.Bool("digo.new_instance", ctx.NewInstanceActivated()))
			return nil
		})
}
