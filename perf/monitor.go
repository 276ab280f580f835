package perf

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/gogpu/adaptive"
	"github.com/gogpu/adaptive/internal/observer"
)

// Monitor samples frame timing at a fixed cadence, keeps a rolling window,
// and raises degradation actions when thresholds are crossed.
//
// The monitor is Idle until Start and returns to Idle on Stop. While
// monitoring, a ticker goroutine takes one sample per interval. Hosts that
// prefer to sample on the render thread can skip Start and call Sample
// or Push themselves.
//
// Subscriber callbacks run on the goroutine that produced the sample and
// never under the monitor lock.
//
// Monitor is safe for concurrent use.
type Monitor struct {
	opts options

	mu       sync.Mutex
	running  bool
	ticker   *clock.Ticker
	done     chan struct{}
	lastTick time.Time
	window   *ring[Sample]
	fired    []bool // per threshold, for Once
	latest   Metrics

	frames atomic.Int64

	metricsSubs observer.List[Metrics]
	degradeSubs observer.List[Action]
}

// NewMonitor creates an idle monitor.
func NewMonitor(opts ...Option) *Monitor {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	o.thresholds = slices.Clone(o.thresholds)
	return &Monitor{
		opts:     o,
		window:   newRing[Sample](o.capacity),
		fired:    make([]bool, len(o.thresholds)),
		lastTick: o.clock.Now(),
	}
}

// Start begins periodic sampling. Calling Start while monitoring is a no-op.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	m.running = true
	m.lastTick = m.opts.clock.Now()
	m.frames.Store(0)
	m.ticker = m.opts.clock.Ticker(m.opts.interval)
	m.done = make(chan struct{})
	go m.loop(m.ticker, m.done)

	adaptive.Logger().Info("perf: monitoring started", "interval", m.opts.interval, "capacity", m.window.Cap())
}

// Stop ends periodic sampling and releases the ticker. Calling Stop while
// idle is a no-op. Stop may be called from a subscriber callback.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.running = false
	m.ticker.Stop()
	m.ticker = nil
	close(m.done)
	m.done = nil

	adaptive.Logger().Info("perf: monitoring stopped")
}

// Running reports whether the monitor is sampling.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) loop(t *clock.Ticker, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case now := <-t.C:
			m.sampleAt(now, true)
		}
	}
}

// FrameRendered counts one presented frame. When frames are counted, each
// tick derives the frame time from the frame count instead of the tick delta.
// FrameRendered is cheap and safe to call from the render loop.
func (m *Monitor) FrameRendered() {
	m.frames.Add(1)
}

// Sample takes one sample now, regardless of whether the monitor is running.
// It reports false if the sample was skipped.
func (m *Monitor) Sample() bool {
	return m.sampleAt(m.opts.clock.Now(), false)
}

// sampleAt turns the interval since the previous tick into a sample.
// A zero or negative delta is clock jitter and is skipped.
func (m *Monitor) sampleAt(now time.Time, requireRunning bool) bool {
	m.mu.Lock()
	if requireRunning && !m.running {
		m.mu.Unlock()
		return false
	}
	delta := now.Sub(m.lastTick)
	if delta <= 0 {
		m.mu.Unlock()
		return false
	}
	m.lastTick = now
	m.mu.Unlock()

	deltaMs := float64(delta) / float64(time.Millisecond)
	frameTime := deltaMs
	if frames := m.frames.Swap(0); frames > 0 {
		frameTime = deltaMs / float64(frames)
	}
	return m.Push(Sample{FrameTimeMs: frameTime, TimestampMs: now.UnixMilli()})
}

// Push appends an externally measured sample, notifies metrics subscribers,
// and evaluates thresholds. Only the first matching threshold fires.
// Invalid samples (non-positive frame time) are skipped and Push reports false.
func (m *Monitor) Push(s Sample) bool {
	if !s.valid() {
		return false
	}

	// Sources are polled outside the lock; they may be slow.
	memMB := m.opts.memory()
	draws := 0
	if m.opts.drawCalls != nil {
		draws = m.opts.drawCalls()
	}

	m.mu.Lock()
	m.window.Push(s)
	metrics := m.aggregateLocked(memMB, draws)
	m.latest = metrics
	action, fire := m.evaluateLocked(metrics)
	m.mu.Unlock()

	log := adaptive.Logger()
	log.Debug("perf: sample", "metrics", metrics.String())

	m.metricsSubs.Notify(metrics)
	if fire {
		log.Warn("perf: threshold crossed", "action", action, "avgFPS", metrics.AverageFPS, "memoryMB", metrics.MemoryMB)
		m.degradeSubs.Notify(action)
	}
	return true
}

// aggregateLocked computes metrics over the window. Caller must hold mu.
func (m *Monitor) aggregateLocked(memMB float64, draws int) Metrics {
	var sumFPS, sumFrame float64
	m.window.Each(func(s Sample) {
		sumFPS += s.FPS()
		sumFrame += s.FrameTimeMs
	})

	metrics := Metrics{
		MemoryMB:  memMB,
		DrawCalls: draws,
		Samples:   m.window.Len(),
	}
	if last, ok := m.window.Last(); ok {
		metrics.InstantFPS = last.FPS()
		metrics.FrameTimeMs = last.FrameTimeMs
		metrics.TimestampMs = last.TimestampMs
	}
	if n := m.window.Len(); n > 0 {
		metrics.AverageFPS = sumFPS / float64(n)
		metrics.AverageFrameTimeMs = sumFrame / float64(n)
	}
	return metrics
}

// evaluateLocked returns the action of the first matching threshold.
// Caller must hold mu.
func (m *Monitor) evaluateLocked(metrics Metrics) (Action, bool) {
	if metrics.Samples < m.opts.minSamples {
		return 0, false
	}
	for i, t := range m.opts.thresholds {
		if t.Once && m.fired[i] {
			continue
		}
		if t.Matches(metrics) {
			m.fired[i] = true
			return t.Action, true
		}
	}
	return 0, false
}

// Reset clears the sample window without stopping monitoring.
func (m *Monitor) Reset() {
	m.mu.Lock()
	m.window.Clear()
	m.latest = Metrics{}
	m.mu.Unlock()
}

// Rearm allows thresholds marked Once to fire again.
func (m *Monitor) Rearm() {
	m.mu.Lock()
	clear(m.fired)
	m.mu.Unlock()
}

// Snapshot returns the most recent metrics.
func (m *Monitor) Snapshot() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest
}

// Samples returns a copy of the window from oldest to newest.
func (m *Monitor) Samples() []Sample {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.window.Slice()
}

// Capacity returns the ring buffer size.
func (m *Monitor) Capacity() int {
	return m.window.Cap()
}

// Interval returns the sampling period.
func (m *Monitor) Interval() time.Duration {
	return m.opts.interval
}

// Thresholds returns a copy of the threshold table.
func (m *Monitor) Thresholds() []Threshold {
	return slices.Clone(m.opts.thresholds)
}

// SubscribeMetrics registers fn to receive metrics after every sample.
func (m *Monitor) SubscribeMetrics(fn func(Metrics)) adaptive.Token {
	return m.metricsSubs.Add(fn)
}

// SubscribeDegradation registers fn to receive fired actions.
func (m *Monitor) SubscribeDegradation(fn func(Action)) adaptive.Token {
	return m.degradeSubs.Add(fn)
}

// Unsubscribe removes a metrics or degradation subscription.
// It reports whether the token was found.
func (m *Monitor) Unsubscribe(tok adaptive.Token) bool {
	return m.metricsSubs.Remove(tok) || m.degradeSubs.Remove(tok)
}
