package perf

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Default monitor configuration.
const (
	// DefaultInterval is the sampling period.
	DefaultInterval = time.Second

	// MaxCapacity is the largest ring buffer the monitor keeps
	// (one minute at the default interval).
	MaxCapacity = 60

	// DefaultMinSamples is the number of samples required before
	// thresholds are evaluated.
	DefaultMinSamples = 5
)

// Option configures a Monitor.
//
// Example:
//
//	m := perf.NewMonitor(
//	    perf.WithInterval(500*time.Millisecond),
//	    perf.WithThresholds(perf.Threshold{Metric: perf.MetricFPS, Trigger: 30, Action: perf.ActionReduceLOD}),
//	)
type Option func(*options)

type options struct {
	interval   time.Duration
	capacity   int
	minSamples int
	thresholds []Threshold
	clock      clock.Clock
	memory     MemorySource
	drawCalls  func() int
}

func defaultOptions() options {
	return options{
		interval:   DefaultInterval,
		capacity:   MaxCapacity,
		minSamples: DefaultMinSamples,
		thresholds: DefaultThresholds(),
		clock:      clock.New(),
		memory:     RuntimeMemory,
	}
}

// WithInterval sets the sampling period. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithCapacity sets the ring buffer size, clamped to [1, MaxCapacity].
func WithCapacity(n int) Option {
	return func(o *options) {
		o.capacity = max(1, min(n, MaxCapacity))
	}
}

// WithMinSamples sets how many samples must be retained before thresholds
// are evaluated. Values below 1 mean every sample is evaluated.
func WithMinSamples(n int) Option {
	return func(o *options) {
		o.minSamples = max(1, n)
	}
}

// WithThresholds replaces the threshold table. Thresholds are evaluated in
// the given order. Invalid entries are dropped.
func WithThresholds(ts ...Threshold) Option {
	return func(o *options) {
		o.thresholds = o.thresholds[:0:0]
		for _, t := range ts {
			if t.valid() {
				o.thresholds = append(o.thresholds, t)
			}
		}
	}
}

// WithClock sets the clock used for ticks and timestamps.
// Tests pass clock.NewMock().
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithMemorySource sets the memory reporter. nil disables memory reporting.
func WithMemorySource(src MemorySource) Option {
	return func(o *options) {
		if src == nil {
			src = NoMemory
		}
		o.memory = src
	}
}

// WithDrawCallSource sets the function polled for the draw-call count.
func WithDrawCallSource(fn func() int) Option {
	return func(o *options) {
		o.drawCalls = fn
	}
}
