package docflow

import "github.com/randalmurphal/docflow/pkg/docflow/observability"

// engineConfig holds configuration for an Engine.
type engineConfig struct {
	maxIterations int
	// iterationsSet records an explicit WithMaxIterations.
	iterationsSet bool
	maxRetries    int
	metrics       observability.MetricsRecorder
	spans         observability.SpanManager
}

func defaultEngineConfig() engineConfig {
	return engineConfig{
		maxIterations: 100,
		maxRetries:    DefaultMaxRetries,
		metrics:       observability.NoopMetrics{},
		spans:         observability.NoopSpanManager{},
	}
}

// Option configures an Engine.
type Option func(*engineConfig)

// WithMaxIterations sets the maximum number of node executions per run.
// Default: 100, raised to the longest possible run when the retry budget
// needs more.
//
// The topology has a single bounded cycle, so this only trips on a
// misconfigured router or a limit set below the run length.
func WithMaxIterations(n int) Option {
	return func(c *engineConfig) {
		if n > 0 {
			c.maxIterations = n
			c.iterationsSet = true
		}
	}
}

// WithMaxRetries sets the retry budget of the document branch.
// Default: 3. Zero disables retries.
func WithMaxRetries(n int) Option {
	return func(c *engineConfig) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithMetrics enables metrics recording.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(c *engineConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithTracing enables span creation for runs and nodes.
func WithTracing(spans observability.SpanManager) Option {
	return func(c *engineConfig) {
		if spans != nil {
			c.spans = spans
		}
	}
}
