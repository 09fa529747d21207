package bungee

import "github.com/sirupsen/logrus"

// config holds construction-time settings, following the teacher's
// dsp/core.ProcessorConfig/ProcessorOption functional-options idiom
// (SPEC_FULL.md §10.3) rather than a single exported struct.
type config struct {
	log2SynthesisHopAdjust int
	logger                 *logrus.Logger
	instrumentation        bool
}

// Option mutates construction-time configuration for New.
type Option func(*config)

func defaultConfig() config {
	return config{
		log2SynthesisHopAdjust: 0,
		logger:                 logrus.New(),
	}
}

// WithLog2SynthesisHopAdjust sets the granular/latency tradeoff: -1 doubles
// granular frequency for lower latency, +1 halves it, benefiting dense
// tonal material. Values outside {-1,0,1} are accepted but discouraged.
func WithLog2SynthesisHopAdjust(adjust int) Option {
	return func(c *config) {
		c.log2SynthesisHopAdjust = adjust
	}
}

// WithLogger installs a *logrus.Logger for Instrumentation diagnostics and
// fatal-error reporting (SPEC_FULL.md §10.1). A nil logger is ignored.
func WithLogger(logger *logrus.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithInstrumentation enables Instrumentation (diagnostic logging plus the
// overlap contract check) at construction time, equivalent to calling
// EnableInstrumentation(true) immediately after New.
func WithInstrumentation(on bool) Option {
	return func(c *config) {
		c.instrumentation = on
	}
}

func applyOptions(opts ...Option) config {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}
