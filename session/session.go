// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package session wires the probe, quality, perf, lod and degrade packages
// into one object a host render loop can drive.
//
// The monitor samples on its own goroutine. Degradation actions it raises
// are queued and applied by Frame, so the active profile and the LOD
// registry only change between frames on the render thread.
package session

import (
	"sync"

	"github.com/gogpu/adaptive"
	"github.com/gogpu/adaptive/degrade"
	"github.com/gogpu/adaptive/lod"
	"github.com/gogpu/adaptive/perf"
	"github.com/gogpu/adaptive/probe"
	"github.com/gogpu/adaptive/quality"
)

// Option configures a Session.
type Option func(*options)

type options struct {
	apis      []probe.API
	prober    *probe.Prober
	policy    probe.ScoringPolicy
	quality   []quality.Option
	lod       []lod.Option
	perf      []perf.Option
	degrade   []degrade.Option
	immediate bool
}

// WithAPIs sets the graphics APIs to probe, newest first.
func WithAPIs(apis ...probe.API) Option {
	return func(o *options) {
		o.apis = append(o.apis, apis...)
	}
}

// WithProber uses an existing prober, typically shared with other
// sessions so the hardware is probed once per process. It takes
// precedence over WithAPIs.
func WithProber(p *probe.Prober) Option {
	return func(o *options) {
		o.prober = p
	}
}

// WithScoringPolicy replaces the capability scoring policy.
func WithScoringPolicy(p probe.ScoringPolicy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithQualityOptions passes options to the quality manager.
func WithQualityOptions(opts ...quality.Option) Option {
	return func(o *options) {
		o.quality = append(o.quality, opts...)
	}
}

// WithLODOptions passes options to the LOD manager.
func WithLODOptions(opts ...lod.Option) Option {
	return func(o *options) {
		o.lod = append(o.lod, opts...)
	}
}

// WithMonitorOptions passes options to the performance monitor.
func WithMonitorOptions(opts ...perf.Option) Option {
	return func(o *options) {
		o.perf = append(o.perf, opts...)
	}
}

// WithControllerOptions passes options to the degradation controller.
func WithControllerOptions(opts ...degrade.Option) Option {
	return func(o *options) {
		o.degrade = append(o.degrade, opts...)
	}
}

// WithImmediateApply applies degradation actions on the sampling goroutine
// instead of at the next Frame.
func WithImmediateApply() Option {
	return func(o *options) {
		o.immediate = true
	}
}

// Session owns one instance of every component.
type Session struct {
	caps     probe.Capabilities
	probeErr error

	profiles *quality.Manager
	lods     *lod.Manager
	mon      *perf.Monitor
	ctrl     *degrade.Controller

	mu     sync.Mutex
	last   lod.Statistics
	closed bool
}

// New probes the hardware, selects the initial quality tier, and attaches
// the degradation controller. Probe failure is not an error: the session
// falls back to the minimal profile and ProbeErr reports why.
func New(opts ...Option) *Session {
	o := options{policy: probe.DefaultScoringPolicy()}
	for _, opt := range opts {
		opt(&o)
	}

	prober := o.prober
	if prober == nil {
		prober = probe.NewProber(o.apis...)
	}
	caps, err := prober.Probe()

	s := &Session{
		caps:     caps,
		probeErr: err,
		profiles: quality.NewManager(o.quality...),
		lods:     lod.NewManager(o.lod...),
		mon:      perf.NewMonitor(o.perf...),
	}
	s.profiles.InitializeFromProbe(caps, err, o.policy)

	ctrlOpts := o.degrade
	if !o.immediate {
		ctrlOpts = append([]degrade.Option{degrade.WithDeferredApply()}, ctrlOpts...)
	}
	s.ctrl = degrade.New(ctrlOpts...)
	// Attach only fails on nil arguments.
	_ = s.ctrl.Attach(s.mon, s.profiles, s.lods)

	adaptive.Logger().Info("session: ready",
		"api", caps.API(), "renderer", caps.Renderer(),
		"score", s.profiles.Score(), "tier", s.profiles.Tier())
	return s
}

// Start begins performance monitoring. It is a no-op after Close or after
// the static fallback.
func (s *Session) Start() {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed || s.ctrl.FallenBack() {
		return
	}
	s.mon.Start()
}

// Frame runs the per-frame work: it applies queued degradation actions,
// counts the presented frame, and selects LOD variants for cam against the
// active profile. Call it once per frame from the render thread.
func (s *Session) Frame(cam lod.Camera) lod.Statistics {
	s.ctrl.Drain()
	s.mon.FrameRendered()
	stats := s.lods.Update(cam, s.profiles.ActiveProfile())

	s.mu.Lock()
	s.last = stats
	s.mu.Unlock()
	return stats
}

// Close stops monitoring and detaches the controller. Close is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.mon.Stop()
	s.ctrl.Detach()
	adaptive.Logger().Info("session: closed")
}

// Interactive reports whether the session is still rendering interactively,
// i.e. the static fallback has not been triggered and probing succeeded.
func (s *Session) Interactive() bool {
	return s.probeErr == nil && !s.ctrl.FallenBack()
}

// Capabilities returns the probe result.
func (s *Session) Capabilities() probe.Capabilities { return s.caps }

// ProbeErr returns the probe error, or nil if probing succeeded.
func (s *Session) ProbeErr() error { return s.probeErr }

// Profiles returns the quality manager.
func (s *Session) Profiles() *quality.Manager { return s.profiles }

// LOD returns the LOD manager.
func (s *Session) LOD() *lod.Manager { return s.lods }

// Monitor returns the performance monitor.
func (s *Session) Monitor() *perf.Monitor { return s.mon }

// Controller returns the degradation controller.
func (s *Session) Controller() *degrade.Controller { return s.ctrl }

// LastStatistics returns the statistics of the most recent Frame.
func (s *Session) LastStatistics() lod.Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
