package config

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/centraunit/digo"
	"github.com/centraunit/digo/diagnostics"
)

// Logger builds a production zap logger at the configured level.
func (c Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// Diagnostics carries the collaborators Options wires into the container.
// Nil fields fall back to the global Prometheus registerer and OpenTelemetry
// provider.
type Diagnostics struct {
	Logger         *zap.Logger
	Registerer     prometheus.Registerer
	TracerProvider trace.TracerProvider
}

// Options turns the configuration into container builder options.
func (c Config) Options(d Diagnostics) ([]digo.Option, error) {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []digo.Option{
		digo.WithLogger(logger),
		digo.WithMaxResolveDepth(c.MaxResolveDepth),
	}
	if c.Metrics.Enabled {
		reg := d.Registerer
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		m, err := diagnostics.NewMetrics(reg, c.Metrics.Namespace)
		if err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		opts = append(opts, digo.WithMiddleware(m.Middleware(), digo.InsertStartOfPhase))
	}
	if c.Tracing.Enabled {
		opts = append(opts, digo.WithMiddleware(diagnostics.NewTracing(d.TracerProvider).Middleware(), digo.InsertStartOfPhase))
	}
	if logger.Core().Enabled(zapcore.DebugLevel) {
		opts = append(opts, digo.WithMiddleware(diagnostics.Logging(logger), digo.InsertStartOfPhase))
	}
	return opts, nil
}
