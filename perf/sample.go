package perf

import (
	"fmt"
	"math"
)

// Sample is one frame-time measurement.
type Sample struct {
	// FrameTimeMs is the time per presented frame in milliseconds.
	FrameTimeMs float64

	// TimestampMs is the clock time of the measurement in Unix milliseconds.
	TimestampMs int64
}

// FPS returns the frame rate implied by the sample, or 0 for an invalid sample.
func (s Sample) FPS() float64 {
	if !s.valid() {
		return 0
	}
	return 1000 / s.FrameTimeMs
}

func (s Sample) valid() bool {
	return s.FrameTimeMs > 0 && !math.IsInf(s.FrameTimeMs, 0) && !math.IsNaN(s.FrameTimeMs)
}

// Metrics is the aggregate computed after every sample.
// Subscribers receive copies.
type Metrics struct {
	// InstantFPS is the frame rate of the most recent sample.
	InstantFPS float64

	// AverageFPS is the mean frame rate over the retained window.
	AverageFPS float64

	// FrameTimeMs is the frame time of the most recent sample.
	FrameTimeMs float64

	// AverageFrameTimeMs is the mean frame time over the retained window.
	AverageFrameTimeMs float64

	// MemoryMB is the memory in use as reported by the memory source,
	// or 0 when the host exposes none.
	MemoryMB float64

	// DrawCalls is the last value reported by the draw-call source.
	DrawCalls int

	// Samples is the number of samples in the window.
	Samples int

	// TimestampMs is the timestamp of the most recent sample.
	TimestampMs int64
}

// String returns a human-readable summary.
func (m Metrics) String() string {
	return fmt.Sprintf("Metrics[fps %.1f avg %.1f, frame %.2fms avg %.2fms, mem %.1f MB, draws %d, n=%d]",
		m.InstantFPS, m.AverageFPS, m.FrameTimeMs, m.AverageFrameTimeMs, m.MemoryMB, m.DrawCalls, m.Samples)
}

// Metric identifies the value a Threshold watches.
type Metric int

const (
	// MetricFPS fires when the average frame rate drops below the trigger.
	MetricFPS Metric = iota

	// MetricMemory fires when memory in use exceeds the trigger (MB).
	MetricMemory

	// MetricDrawCalls fires when draw calls exceed the trigger.
	MetricDrawCalls
)

// String returns the metric name.
func (m Metric) String() string {
	switch m {
	case MetricFPS:
		return "FPS"
	case MetricMemory:
		return "Memory"
	case MetricDrawCalls:
		return "DrawCalls"
	default:
		return "Unknown"
	}
}

// Action is a degradation signal. The monitor only raises actions; what
// they do is decided by the subscriber.
type Action int

const (
	// ActionReduceLOD switches objects to cheaper variants sooner.
	ActionReduceLOD Action = iota

	// ActionDisableShadows turns shadows off in the active profile.
	ActionDisableShadows

	// ActionDisablePostProcessing turns post-processing off in the active profile.
	ActionDisablePostProcessing

	// ActionFallbackToStatic abandons interactive rendering.
	ActionFallbackToStatic

	// ActionReduceQuality drops the active profile by one tier.
	ActionReduceQuality
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case ActionReduceLOD:
		return "ReduceLOD"
	case ActionDisableShadows:
		return "DisableShadows"
	case ActionDisablePostProcessing:
		return "DisablePostProcessing"
	case ActionFallbackToStatic:
		return "FallbackToStatic"
	case ActionReduceQuality:
		return "ReduceQuality"
	default:
		return "Unknown"
	}
}

// Actions lists every defined action.
func Actions() []Action {
	return []Action{
		ActionReduceLOD,
		ActionDisableShadows,
		ActionDisablePostProcessing,
		ActionFallbackToStatic,
		ActionReduceQuality,
	}
}

func (a Action) valid() bool {
	return a >= ActionReduceLOD && a <= ActionReduceQuality
}

// Threshold maps a metric condition to an action.
type Threshold struct {
	Metric  Metric
	Trigger float64
	Action  Action

	// Once limits the threshold to a single firing until Rearm.
	Once bool
}

// String returns a compact description of the threshold.
func (t Threshold) String() string {
	op := ">"
	if t.Metric == MetricFPS {
		op = "<"
	}
	return fmt.Sprintf("%s %s %g -> %s", t.Metric, op, t.Trigger, t.Action)
}

// Matches reports whether m crosses the threshold.
func (t Threshold) Matches(m Metrics) bool {
	switch t.Metric {
	case MetricFPS:
		return m.AverageFPS > 0 && m.AverageFPS < t.Trigger
	case MetricMemory:
		return m.MemoryMB > 0 && m.MemoryMB > t.Trigger
	case MetricDrawCalls:
		return float64(m.DrawCalls) > t.Trigger
	default:
		return false
	}
}

func (t Threshold) valid() bool {
	return t.Metric >= MetricFPS && t.Metric <= MetricDrawCalls && t.Action.valid() &&
		!math.IsNaN(t.Trigger)
}

// DefaultThresholds returns the default threshold table.
//
// The catastrophic fallback is declared first so it is never shadowed.
// The feature toggles are ordered mildest first and fire once, so a
// sustained slowdown walks down the list one step per evaluation.
func DefaultThresholds() []Threshold {
	return []Threshold{
		{Metric: MetricFPS, Trigger: 10, Action: ActionFallbackToStatic},
		{Metric: MetricMemory, Trigger: 2048, Action: ActionReduceLOD, Once: true},
		{Metric: MetricFPS, Trigger: 50, Action: ActionReduceLOD, Once: true},
		{Metric: MetricFPS, Trigger: 40, Action: ActionDisablePostProcessing, Once: true},
		{Metric: MetricFPS, Trigger: 30, Action: ActionDisableShadows, Once: true},
		{Metric: MetricFPS, Trigger: 24, Action: ActionReduceQuality},
	}
}
