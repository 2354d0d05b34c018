package store

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// UnobservedPolicy decides what happens to a dispatch that fails after
// Dispatch returned, when nobody looked at its outcome.
type UnobservedPolicy string

const (
	// UnobservedLog logs the failure at warn level and calls the
	// unobserved-failure handler, if one is set.
	UnobservedLog UnobservedPolicy = "log"

	// UnobservedIgnore drops the failure silently.
	UnobservedIgnore UnobservedPolicy = "ignore"
)

// ParseUnobservedPolicy parses a policy name.
func ParseUnobservedPolicy(s string) (UnobservedPolicy, error) {
	switch UnobservedPolicy(s) {
	case UnobservedLog, "":
		return UnobservedLog, nil
	case UnobservedIgnore:
		return UnobservedIgnore, nil
	default:
		return "", fmt.Errorf("unknown unobserved failure policy %q (must be log or ignore)", s)
	}
}

// Config holds store configuration options.
type Config struct {
	// RecoverFromPanic turns a panicking handler into a failed dispatch.
	// When false the panic propagates to the Dispatch caller.
	RecoverFromPanic bool

	// EnableMetrics enables dispatch and publish statistics.
	EnableMetrics bool

	// Unobserved is the policy for failures nobody observed.
	Unobserved UnobservedPolicy
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		RecoverFromPanic: true,
		EnableMetrics:    false,
		Unobserved:       UnobservedLog,
	}
}

// WithMetrics returns a copy of the config with metrics enabled.
func (c Config) WithMetrics() Config {
	c.EnableMetrics = true
	return c
}

// WithPanicRecovery returns a copy of the config with panic recovery set.
func (c Config) WithPanicRecovery(recover bool) Config {
	c.RecoverFromPanic = recover
	return c
}

// WithUnobservedPolicy returns a copy of the config with the unobserved failure policy set.
func (c Config) WithUnobservedPolicy(p UnobservedPolicy) Config {
	c.Unobserved = p
	return c
}

// Option configures a Store.
type Option func(*options)

type options struct {
	config       Config
	logger       *log.Logger
	tracer       trace.Tracer
	metrics      *Metrics
	onUnobserved func(*Completion, error)
}

func defaultOptions() options {
	return options{
		config: DefaultConfig(),
	}
}

// WithConfig sets the store configuration.
func WithConfig(c Config) Option {
	return func(o *options) {
		o.config = c
	}
}

// WithLogger sets the logger used for failures and subscriber panics.
func WithLogger(l *log.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTracer sets the tracer used to record one span per dispatch.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithMetricsCollector makes the store record into m, which may be shared
// between stores. It implies metrics are enabled.
func WithMetricsCollector(m *Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
			o.config.EnableMetrics = true
		}
	}
}

// WithUnobservedFailureHandler sets a callback for failures nobody observed.
// It runs on the goroutine that settled the dispatch.
func WithUnobservedFailureHandler(fn func(*Completion, error)) Option {
	return func(o *options) {
		o.onUnobserved = fn
	}
}

func (o *options) finish(kind string) {
	if o.logger == nil {
		o.logger = log.NewWithOptions(os.Stderr, log.Options{
			Prefix: "store",
			Level:  log.WarnLevel,
		})
	}
	if kind != "" {
		o.logger = o.logger.With("kind", kind)
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer("github.com/dshills/storekit/internal/store")
	}
	if o.config.EnableMetrics && o.metrics == nil {
		o.metrics = NewMetrics()
	}
	if o.config.Unobserved == "" {
		o.config.Unobserved = UnobservedLog
	}
}
