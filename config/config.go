// Package config loads container settings from a YAML file and DIGO_*
// environment variables and turns them into builder options.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables read by Load.
const (
	EnvMaxResolveDepth  = "DIGO_MAX_RESOLVE_DEPTH"
	EnvLogLevel         = "DIGO_LOG_LEVEL"
	EnvMetricsEnabled   = "DIGO_METRICS_ENABLED"
	EnvMetricsNamespace = "DIGO_METRICS_NAMESPACE"
	EnvTracingEnabled   = "DIGO_TRACING_ENABLED"
)

type Config struct {
	MaxResolveDepth int           `yaml:"max_resolve_depth" validate:"gte=1,lte=10000"`
	LogLevel        string        `yaml:"log_level" validate:"oneof=debug info warn error"`
	Metrics         MetricsConfig `yaml:"metrics"`
	Tracing         TracingConfig `yaml:"tracing"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace" validate:"required_if=Enabled true,alphanum_underscore"`
}

type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	err := v.RegisterValidation("alphanum_underscore", func(fl validator.FieldLevel) bool {
		for _, r := range fl.Field().String() {
			if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
				return false
			}
		}
		return true
	})
	if err != nil {
		panic(fmt.Sprintf("config: register namespace validation: %v", err))
	}
	return v
}

// Default returns the settings used when nothing overrides them.
func Default() Config {
	return Config{
		MaxResolveDepth: 50,
		LogLevel:        "info",
		Metrics:         MetricsConfig{Namespace: "digo"},
	}
}

// Load reads path on top of the defaults, loads envFiles into the process
// environment, then applies DIGO_* variables. An empty path skips the file;
// missing env files are ignored.
func Load(path string, envFiles ...string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := loadEnvFiles(envFiles); err != nil {
		return Config{}, err
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadEnvFiles(files []string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load env file %s: %w", f, err)
		}
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv(EnvMaxResolveDepth); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxResolveDepth, err)
		}
		c.MaxResolveDepth = n
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok {
		c.LogLevel = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := os.LookupEnv(EnvMetricsEnabled); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMetricsEnabled, err)
		}
		c.Metrics.Enabled = b
	}
	if v, ok := os.LookupEnv(EnvMetricsNamespace); ok {
		c.Metrics.Namespace = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv(EnvTracingEnabled); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTracingEnabled, err)
		}
		c.Tracing.Enabled = b
	}
	return nil
}

// Validate checks the field constraints and reports every violation.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
