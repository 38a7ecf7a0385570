package engine

import (
	"time"

	"go.uber.org/zap"

	"github.com/ShayCichocki/quarry/internal/provider"
)

// DefaultMaxDepth is the expansion bound used when none is configured.
const DefaultMaxDepth = 2

// Timeouts bounds the expansion calls made by the engine. Zero means no
// per-call timeout beyond the run context.
type Timeouts struct {
	Decompose time.Duration
	Followups time.Duration
}

// Option configures an Engine. Use With* functions to create Options.
type Option func(*engineOptions)

type engineOptions struct {
	maxDepth       int
	maxConcurrency int
	decomposer     provider.Decomposer
	followups      provider.FollowupProposer
	timeouts       Timeouts
	logger         *zap.Logger
	observer       Observer
	metrics        Recorder
	newID          func() string
}

// WithMaxDepth sets the expansion bound. The root is at depth 0 and a
// question is expanded only while its depth is below the bound.
func WithMaxDepth(d int) Option {
	return func(o *engineOptions) {
		if d < 0 {
			d = 0
		}
		o.maxDepth = d
	}
}

// WithMaxConcurrency caps the number of questions resolved at once within a
// round. Zero means unbounded.
func WithMaxConcurrency(n int) Option {
	return func(o *engineOptions) { o.maxConcurrency = n }
}

// WithDecomposer sets the capability used to expand non-quantifiable questions.
func WithDecomposer(d provider.Decomposer) Option {
	return func(o *engineOptions) { o.decomposer = d }
}

// WithFollowups sets the capability used to expand quantifiable questions.
func WithFollowups(f provider.FollowupProposer) Option {
	return func(o *engineOptions) { o.followups = f }
}

// WithTimeouts sets per-call timeouts for expansion calls.
func WithTimeouts(t Timeouts) Option {
	return func(o *engineOptions) { o.timeouts = t }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *engineOptions) { o.logger = l }
}

// WithObserver sets a callback for progress events.
func WithObserver(fn Observer) Option {
	return func(o *engineOptions) { o.observer = fn }
}

// WithMetrics sets the recorder for run counters.
func WithMetrics(r Recorder) Option {
	return func(o *engineOptions) { o.metrics = r }
}

// WithIDGenerator overrides run ID generation (mainly for testing).
func WithIDGenerator(fn func() string) Option {
	return func(o *engineOptions) { o.newID = fn }
}
