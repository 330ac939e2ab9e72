package db

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	// scope is the instrumentation scope name for OpenTelemetry.
	scope = "github.com/vela-labs/ledgercore/db"

	// defaultSlowQueryThreshold is the duration above which an operation
	// is logged as slow on the session trace path.
	defaultSlowQueryThreshold = 200 * time.Millisecond
)

// config holds the manager configuration assembled from options.
type config struct {
	// Logger receives connection lifecycle messages, the session query
	// trace, and emitted SQL capture blocks. Defaults to a no-op logger.
	Logger zerolog.Logger

	// Metrics receives one duration sample per operation timer scope.
	// Defaults to a Prometheus-backed collaborator on Registry.
	Metrics Metrics

	// Registry is where the default Prometheus collaborator registers its
	// histogram. Ignored when Metrics is set explicitly.
	Registry prometheus.Registerer

	// PoolSize is the connection pool size. Zero means the number of
	// available hardware execution units, computed once at Open.
	PoolSize int

	// AcquireTimeout bounds pool checkout. Zero means block until a slot
	// frees or the caller's context is done, matching the source behavior.
	AcquireTimeout time.Duration

	// TracerProvider is the tracer provider to use. If not set, uses the
	// global provider; with no global provider configured a no-op tracer
	// is used (safe, but no spans).
	TracerProvider trace.TracerProvider

	// Tracer is the tracer instance created from TracerProvider.
	Tracer trace.Tracer

	// QuerySanitizer sanitizes SQL text before it is attached to spans or
	// written to the trace sink. If nil, queries are recorded as-is.
	QuerySanitizer func(query string) string

	// DisableQuery omits SQL text from spans entirely.
	DisableQuery bool

	// SlowQueryThreshold is the duration above which operations are logged
	// as slow. Zero means the default threshold.
	SlowQueryThreshold time.Duration
}

func newConfig(opts ...Option) *config {
	cfg := &config{
		Logger:             zerolog.Nop(),
		Registry:           prometheus.DefaultRegisterer,
		TracerProvider:     otel.GetTracerProvider(),
		SlowQueryThreshold: defaultSlowQueryThreshold,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	cfg.Tracer = cfg.TracerProvider.Tracer(scope)

	if cfg.PoolSize <= 0 {
		cfg.PoolSize = runtime.NumCPU()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = newPromMetrics(cfg.Registry)
	}

	return cfg
}

// Option configures the manager.
type Option func(*config)

// WithLogger sets the logging collaborator. The manager tags its events
// with component=db.
func WithLogger(logger zerolog.Logger) Option {
	return func(cfg *config) {
		cfg.Logger = logger.With().Str("component", "db").Logger()
	}
}

// WithMetrics sets a custom metrics collaborator for operation timers.
func WithMetrics(m Metrics) Option {
	return func(cfg *config) {
		cfg.Metrics = m
	}
}

// WithRegistry sets the Prometheus registerer used by the default metrics
// collaborator. Useful for tests and multi-registry setups.
func WithRegistry(reg prometheus.Registerer) Option {
	return func(cfg *config) {
		cfg.Registry = reg
	}
}

// WithPoolSize overrides the connection pool size. Values below one fall
// back to the hardware parallelism default.
func WithPoolSize(n int) Option {
	return func(cfg *config) {
		cfg.PoolSize = n
	}
}

// WithAcquireTimeout bounds how long a pool checkout may block. The default
// is unbounded, matching the source behavior; this is a hardening knob.
func WithAcquireTimeout(d time.Duration) Option {
	return func(cfg *config) {
		cfg.AcquireTimeout = d
	}
}

// WithTracerProvider sets a custom tracer provider for per-query spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(cfg *config) {
		cfg.TracerProvider = tp
	}
}

// WithQuerySanitizer sets a sanitizer applied to SQL text before it reaches
// spans or the trace sink. Use DefaultQuerySanitizer to mask literals.
func WithQuerySanitizer(fn func(string) string) Option {
	return func(cfg *config) {
		cfg.QuerySanitizer = fn
	}
}

// WithDisableQuery omits SQL text from spans. The trace sink still sees
// queries; use a sanitizer if those must be masked too.
func WithDisableQuery() Option {
	return func(cfg *config) {
		cfg.DisableQuery = true
	}
}

// WithSlowQueryThreshold sets the duration above which operations are
// logged as slow.
func WithSlowQueryThreshold(d time.Duration) Option {
	return func(cfg *config) {
		cfg.SlowQueryThreshold = d
	}
}
