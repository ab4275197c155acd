package diagnostics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/centraunit/digo"
	"github.com/centraunit/digo/diagnostics"
	"github.com/centraunit/digo/mock"
)

type DiagnosticsTestSuite struct {
	suite.Suite
	tracker *mock.Tracker
}

func (s *DiagnosticsTestSuite) SetupTest() {
	s.tracker = &mock.Tracker{}
}

func (s *DiagnosticsTestSuite) container(mw digo.ResolveMiddleware, failing bool) *digo.Container {
	b := digo.NewContainerBuilder(digo.WithMiddleware(mw, digo.InsertStartOfPhase))
	if failing {
		digo.Register(b, mock.NewFailingDB)
	} else {
		digo.Register(b, mock.NewMockDB("db", s.tracker)).SingleInstance()
	}
	digo.Register(b, mock.NewMockCache(s.tracker))
	c, err := b.Build()
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = c.Dispose() })
	return c
}

func (s *DiagnosticsTestSuite) TestMetrics() {
	reg := prometheus.NewRegistry()
	m, err := diagnostics.NewMetrics(reg, "test_digo")
	s.Require().NoError(err)
	c := s.container(m.Middleware(), false)

	for i := 0; i < 2; i++ {
		_, err := digo.Resolve[mock.Cache](c)
		s.Require().NoError(err)
	}

	s.Equal(2.0, testutil.ToFloat64(m.Resolves.WithLabelValues("mock.Cache", "success")))
	s.Equal(2.0, testutil.ToFloat64(m.Resolves.WithLabelValues("mock.Database", "success")))
	s.Equal(2.0, testutil.ToFloat64(m.Activations.WithLabelValues("mock.Cache")))
	s.Equal(1.0, testutil.ToFloat64(m.Activations.WithLabelValues("mock.Database")), "cache hits are not activations")
	s.Equal(2, testutil.CollectAndCount(m.Duration))

	_, err = diagnostics.NewMetrics(reg, "test_digo")
	s.Error(err, "collectors cannot be registered twice")
}

func (s *DiagnosticsTestSuite) TestMetricsRecordFailures() {
	m, err := diagnostics.NewMetrics(prometheus.NewRegistry(), "test_digo")
	s.Require().NoError(err)
	c := s.container(m.Middleware(), true)

	_, err = digo.Resolve[mock.Cache](c)
	s.Require().Error(err)
	s.Equal(1.0, testutil.ToFloat64(m.Resolves.WithLabelValues("mock.Cache", "error")))
	s.Equal(1.0, testutil.ToFloat64(m.Resolves.WithLabelValues("mock.Database", "error")))
}

func (s *DiagnosticsTestSuite) TestTracing() {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	c := s.container(diagnostics.NewTracing(tp).Middleware(), false)

	_, err := digo.Resolve[mock.Cache](c)
	s.Require().NoError(err)

	spans := sr.Ended()
	s.Require().Len(spans, 2)
	services := make([]string, 0, len(spans))
	for _, span := range spans {
		s.Equal("digo.resolve", span.Name())
		s.Equal(diagnostics.TracerName, span.InstrumentationScope().Name)
		for _, kv := range span.Attributes() {
			if kv.Key == attribute.Key("digo.service") {
				services = append(services, kv.Value.AsString())
			}
		}
	}
	s.Equal([]string{"mock.Database", "mock.Cache"}, services)
}

func (s *DiagnosticsTestSuite) TestTracingRecordsErrors() {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	c := s.container(diagnostics.NewTracing(tp).Middleware(), true)

	_, err := digo.Resolve[mock.Cache](c)
	s.Require().Error(err)

	for _, span := range sr.Ended() {
		s.Equal(codes.Error, span.Status().Code)
		s.NotEmpty(span.Events(), "the error is recorded as an event")
	}
}

func (s *DiagnosticsTestSuite) TestLogging() {
	core, logs := observer.New(zapcore.DebugLevel)
	c := s.container(diagnostics.Logging(zap.New(core)), false)

	_, err := digo.Resolve[mock.Cache](c)
	s.Require().NoError(err)

	resolved := logs.FilterMessage("resolved")
	s.Equal(2, resolved.Len())
	s.Zero(logs.FilterMessage("resolve failed").Len())
}

func (s *DiagnosticsTestSuite) TestLoggingReportsOutermostFailure() {
	core, logs := observer.New(zapcore.DebugLevel)
	c := s.container(diagnostics.Logging(zap.New(core)), true)

	_, err := digo.Resolve[mock.Cache](c)
	s.Require().Error(err)

	failed := logs.FilterMessage("resolve failed").All()
	s.Require().Len(failed, 1)
	s.Equal(zapcore.ErrorLevel, failed[0].Level)
	s.Equal("mock.Cache", failed[0].ContextMap()["service"])
}

func TestDiagnosticsSuite(t *testing.T) {
	suite.Run(t, new(DiagnosticsTestSuite))
}
