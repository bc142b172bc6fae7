package wrapper

import "go.uber.org/zap"

// DefaultParameterName names the parameter of a top-level trace unless
// WithParameterName says otherwise.
const DefaultParameterName = "arg"

// Option configures a single Wrap call.
type Option func(*config)

type config struct {
	name      string
	paramName string
	logger    *zap.Logger
	ids       IDGenerator
}

// WithName sets the computation's name.
func WithName(name string) Option {
	return func(c *config) { c.name = name }
}

// WithParameterName sets the name of the parameter placeholder. Nested
// traces default to a fresh generated name so they never shadow an
// enclosing parameter.
func WithParameterName(name string) Option {
	return func(c *config) { c.paramName = name }
}

// WithLogger overrides the package logger for this trace.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithTraceIDs sets the generator for trace IDs. Ignored by nested traces,
// which reuse the enclosing trace's ID.
func WithTraceIDs(g IDGenerator) Option {
	return func(c *config) { c.ids = g }
}

func newConfig(opts []Option) *config {
	c := &config{}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = Logger()
	}
	if c.ids == nil {
		c.ids = UUIDv7Generator{}
	}
	return c
}
