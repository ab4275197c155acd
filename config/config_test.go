package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/centraunit/digo"
	"github.com/centraunit/digo/config"
	"github.com/centraunit/digo/mock"
)

type ConfigTestSuite struct {
	suite.Suite
	dir string
}

func (s *ConfigTestSuite) SetupTest() {
	s.dir = s.T().TempDir()
	for _, key := range []string{
		config.EnvMaxResolveDepth,
		config.EnvLogLevel,
		config.EnvMetricsEnabled,
		config.EnvMetricsNamespace,
		config.EnvTracingEnabled,
	} {
		// Setenv restores the original value once the test ends.
		s.T().Setenv(key, "")
		s.Require().NoError(os.Unsetenv(key))
	}
}

func (s *ConfigTestSuite) writeFile(name, content string) string {
	path := filepath.Join(s.dir, name)
	s.Require().NoError(os.WriteFile(path, []byte(content), 0o600))
	return path
}

func (s *ConfigTestSuite) TestDefaults() {
	cfg, err := config.Load("")
	s.Require().NoError(err)
	s.Equal(config.Default(), cfg)
	s.Equal(digo.DefaultMaxResolveDepth, cfg.MaxResolveDepth)
}

func (s *ConfigTestSuite) TestLoadYAML() {
	path := s.writeFile("digo.yaml", `
max_resolve_depth: 20
log_level: debug
metrics:
  enabled: true
  namespace: app_di
tracing:
  enabled: true
`)
	cfg, err := config.Load(path)
	s.Require().NoError(err)
	s.Equal(20, cfg.MaxResolveDepth)
	s.Equal("debug", cfg.LogLevel)
	s.True(cfg.Metrics.Enabled)
	s.Equal("app_di", cfg.Metrics.Namespace)
	s.True(cfg.Tracing.Enabled)
}

func (s *ConfigTestSuite) TestEnvironmentOverridesFile() {
	path := s.writeFile("digo.yaml", "max_resolve_depth: 20\n")
	s.T().Setenv(config.EnvMaxResolveDepth, "7")
	s.T().Setenv(config.EnvLogLevel, " WARN ")

	cfg, err := config.Load(path)
	s.Require().NoError(err)
	s.Equal(7, cfg.MaxResolveDepth)
	s.Equal("warn", cfg.LogLevel)
}

func (s *ConfigTestSuite) TestEnvFiles() {
	env := s.writeFile(".env", "DIGO_METRICS_ENABLED=true\nDIGO_METRICS_NAMESPACE=from_env\n")

	cfg, err := config.Load("", filepath.Join(s.dir, "missing.env"), env)
	s.Require().NoError(err)
	s.True(cfg.Metrics.Enabled)
	s.Equal("from_env", cfg.Metrics.Namespace)
}

func (s *ConfigTestSuite) TestLoadErrors() {
	s.Run("missing file", func() {
		_, err := config.Load(filepath.Join(s.dir, "nope.yaml"))
		s.ErrorIs(err, os.ErrNotExist)
	})

	s.Run("malformed yaml", func() {
		_, err := config.Load(s.writeFile("bad.yaml", "max_resolve_depth: [1"))
		s.Error(err)
	})

	s.Run("malformed env value", func() {
		s.T().Setenv(config.EnvTracingEnabled, "maybe")
		_, err := config.Load("")
		s.Error(err)
		s.Contains(err.Error(), config.EnvTracingEnabled)
	})
}

func (s *ConfigTestSuite) TestValidation() {
	cases := map[string]struct {
		mutate func(*config.Config)
		field  string
	}{
		"depth too small":   {func(c *config.Config) { c.MaxResolveDepth = 0 }, "MaxResolveDepth"},
		"unknown log level": {func(c *config.Config) { c.LogLevel = "loud" }, "LogLevel"},
		"namespace required": {func(c *config.Config) {
			c.Metrics.Enabled = true
			c.Metrics.Namespace = ""
		}, "Namespace"},
		"namespace charset": {func(c *config.Config) { c.Metrics.Namespace = "my-app" }, "Namespace"},
	}
	for name, tc := range cases {
		s.Run(name, func() {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			s.Require().Error(err)
			s.Contains(err.Error(), tc.field)
		})
	}
}

func (s *ConfigTestSuite) TestNamespaceRuleIsRegistered() {
	cfg := config.Default()
	cfg.Metrics.Enabled = true
	cfg.Metrics.Namespace = "my_app_2"
	s.NoError(cfg.Validate(), "a namespace of letters, digits and underscores passes the custom rule")
}

func (s *ConfigTestSuite) TestLogger() {
	logger, err := config.Config{LogLevel: "debug"}.Logger()
	s.Require().NoError(err)
	s.True(logger.Core().Enabled(zapcore.DebugLevel))

	_, err = config.Config{LogLevel: "loud"}.Logger()
	s.Error(err)
}

func (s *ConfigTestSuite) TestOptionsWireDiagnostics() {
	cfg := config.Default()
	cfg.MaxResolveDepth = 2
	cfg.Metrics.Enabled = true
	cfg.Metrics.Namespace = "wired"
	cfg.Tracing.Enabled = true

	reg := prometheus.NewRegistry()
	opts, err := cfg.Options(config.Diagnostics{Logger: zap.NewNop(), Registerer: reg})
	s.Require().NoError(err)
	s.Len(opts, 4, "a logger without debug level gets no logging middleware")

	b := digo.NewContainerBuilder(opts...)
	tracker := &mock.Tracker{}
	digo.Register(b, mock.NewMockDB("db", tracker))
	digo.Register(b, mock.NewDeep3)
	digo.Register(b, mock.NewDeep2)
	digo.Register(b, mock.NewDeep1)
	c, err := b.Build()
	s.Require().NoError(err)
	defer func() { _ = c.Dispose() }()

	_, err = digo.Resolve[mock.Database](c)
	s.Require().NoError(err)
	_, err = digo.Resolve[mock.DeepService1](c)
	s.ErrorIs(err, digo.ErrMaxResolveDepth)

	count, err := testutil.GatherAndCount(reg, "wired_resolves_total")
	s.Require().NoError(err)
	s.Positive(count)

	_, err = cfg.Options(config.Diagnostics{Registerer: reg})
	s.Error(err, "metrics are registered once per registerer")
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}
