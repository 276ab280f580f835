// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package degrade

import (
	"errors"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/gogpu/adaptive"
	"github.com/gogpu/adaptive/internal/observer"
	"github.com/gogpu/adaptive/lod"
	"github.com/gogpu/adaptive/perf"
	"github.com/gogpu/adaptive/quality"
)

// Attach errors.
var (
	ErrNilMonitor  = errors.New("degrade: nil monitor")
	ErrNilProfiles = errors.New("degrade: nil profile manager")
)

// Controller turns monitor actions into profile and LOD changes.
//
//   - ReduceLOD tightens LOD distances; the tier is unchanged.
//   - DisableShadows and DisablePostProcessing edit the active profile.
//   - ReduceQuality drops one tier, keeping features that were disabled.
//   - FallbackToStatic stops the monitor and notifies OnFallback
//     subscribers once. Every later action is ignored.
//
// After an action takes effect, the monitor window is reset so the next
// decision is made on samples from the degraded state.
//
// Controller is safe for concurrent use.
type Controller struct {
	opts options

	applyMu  sync.Mutex // serializes actions, recovery and attach
	mon      *perf.Monitor
	profiles *quality.Manager
	lods     *lod.Manager
	tokens   []adaptive.Token

	// Features disabled by actions. Re-applied after tier changes.
	shadowsOff bool
	postOff    bool

	good int // consecutive good samples for recovery

	fallenBack atomic.Bool

	mu         sync.Mutex // guards pending and recoverDue
	pending    []perf.Action
	recoverDue int

	fallbackSubs observer.List[perf.Metrics]
	appliedSubs  observer.List[perf.Action]
}

// New creates a detached controller.
func New(opts ...Option) *Controller {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Controller{opts: o}
}

// Attach subscribes the controller to mon and directs its actions at
// profiles and lods. lods may be nil, in which case ReduceLOD has no
// effect. Attaching again detaches from the previous monitor first.
func (c *Controller) Attach(mon *perf.Monitor, profiles *quality.Manager, lods *lod.Manager) error {
	if mon == nil {
		return ErrNilMonitor
	}
	if profiles == nil {
		return ErrNilProfiles
	}

	c.applyMu.Lock()
	defer c.applyMu.Unlock()
	c.detachLocked()

	c.mon, c.profiles, c.lods = mon, profiles, lods
	c.tokens = append(c.tokens, mon.SubscribeDegradation(c.onAction))
	if c.opts.recovery.Enabled() {
		c.tokens = append(c.tokens, mon.SubscribeMetrics(c.onMetrics))
	}

	adaptive.Logger().Info("degrade: attached",
		"tier", profiles.Tier(), "reduceFactor", c.opts.reduceFactor,
		"recovery", c.opts.recovery.String(), "deferred", c.opts.deferred)
	return nil
}

// Detach removes the controller's monitor subscriptions and drops queued
// actions. Detaching a detached controller is a no-op.
func (c *Controller) Detach() {
	c.applyMu.Lock()
	c.detachLocked()
	c.applyMu.Unlock()
}

func (c *Controller) detachLocked() {
	if c.mon == nil {
		return
	}
	for _, tok := range c.tokens {
		c.mon.Unsubscribe(tok)
	}
	c.tokens = c.tokens[:0]
	c.mon, c.profiles, c.lods = nil, nil, nil
	c.good = 0

	c.mu.Lock()
	c.pending = c.pending[:0]
	c.recoverDue = 0
	c.mu.Unlock()
}

// onAction applies a at once, or queues it for Drain. A queued action
// resets the window like an applied one, so samples taken before it lands
// cannot trigger a second action. While an action is queued, further
// actions other than FallbackToStatic are dropped.
func (c *Controller) onAction(a perf.Action) {
	if !c.opts.deferred {
		c.Apply(a)
		return
	}
	if c.fallenBack.Load() {
		return
	}

	c.mu.Lock()
	queued := len(c.pending) == 0 || (a == perf.ActionFallbackToStatic && !slices.Contains(c.pending, a))
	if queued {
		c.pending = append(c.pending, a)
	}
	c.mu.Unlock()

	if !queued {
		adaptive.Logger().Debug("degrade: action coalesced", "action", a)
		return
	}
	c.applyMu.Lock()
	if c.mon != nil {
		c.mon.Reset()
	}
	c.applyMu.Unlock()
}

func (c *Controller) onMetrics(m perf.Metrics) {
	if c.fallenBack.Load() {
		return
	}
	c.applyMu.Lock()
	due := c.mon != nil && c.observe(m)
	c.applyMu.Unlock()
	if !due {
		return
	}
	if c.opts.deferred {
		c.mu.Lock()
		c.recoverDue = 1
		c.mu.Unlock()
		return
	}
	c.Recover()
}

// Drain applies queued actions and recovery steps in arrival order.
// It returns the number of changes that took effect. Drain is only needed
// with WithDeferredApply.
func (c *Controller) Drain() int {
	c.mu.Lock()
	actions := c.pending
	c.pending = nil
	steps := c.recoverDue
	c.recoverDue = 0
	c.mu.Unlock()

	n := 0
	for _, a := range actions {
		if c.Apply(a) {
			n++
		}
	}
	for range steps {
		if c.Recover() {
			n++
		}
	}
	return n
}

// Pending returns the number of queued actions.
func (c *Controller) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Apply performs a single action and reports whether it changed anything.
// Actions are ignored while detached and after FallbackToStatic.
func (c *Controller) Apply(a perf.Action) bool {
	if c.fallenBack.Load() {
		return false
	}

	c.applyMu.Lock()
	if c.profiles == nil || c.fallenBack.Load() {
		c.applyMu.Unlock()
		return false
	}
	mon, profiles := c.mon, c.profiles
	applied := c.applyLocked(a)
	var snapshot perf.Metrics
	if applied {
		c.good = 0
		snapshot = mon.Snapshot()
		if a == perf.ActionFallbackToStatic {
			mon.Stop()
		}
		mon.Reset()
	}
	c.applyMu.Unlock()

	log := adaptive.Logger()
	if !applied {
		log.Debug("degrade: action had no effect", "action", a)
		return false
	}
	log.Warn("degrade: applied", "action", a, "tier", profiles.Tier())
	c.appliedSubs.Notify(a)
	if a == perf.ActionFallbackToStatic {
		c.fallbackSubs.Notify(snapshot)
	}
	return true
}

// applyLocked mutates profiles and LOD for a. Caller must hold applyMu.
func (c *Controller) applyLocked(a perf.Action) bool {
	switch a {
	case perf.ActionReduceLOD:
		if c.lods == nil {
			return false
		}
		before := c.lods.DistanceScale()
		return c.lods.TightenDistances(c.opts.reduceFactor) < before

	case perf.ActionDisableShadows:
		ok := c.disableLocked(func(p *quality.Profile) bool {
			was := p.ShadowsEnabled
			p.ShadowsEnabled = false
			return was
		})
		c.shadowsOff = c.shadowsOff || ok
		return ok

	case perf.ActionDisablePostProcessing:
		ok := c.disableLocked(func(p *quality.Profile) bool {
			was := p.PostProcessingEnabled
			p.PostProcessingEnabled = false
			return was
		})
		c.postOff = c.postOff || ok
		return ok

	case perf.ActionReduceQuality:
		_, ok := c.profiles.DowngradeWith(func(p *quality.Profile) {
			if c.shadowsOff {
				p.ShadowsEnabled = false
			}
			if c.postOff {
				p.PostProcessingEnabled = false
			}
		})
		return ok

	case perf.ActionFallbackToStatic:
		return c.fallenBack.CompareAndSwap(false, true)

	default:
		return false
	}
}

// disableLocked runs fn against the active profile and reports whether fn
// saw the feature enabled.
func (c *Controller) disableLocked(fn func(p *quality.Profile) bool) bool {
	changed := false
	c.profiles.Update(func(p *quality.Profile) {
		changed = fn(p)
	})
	return changed
}

// Recover performs one recovery step regardless of the recovery policy and
// reports whether anything changed. It is a no-op after FallbackToStatic.
func (c *Controller) Recover() bool {
	if c.fallenBack.Load() {
		return false
	}
	c.applyMu.Lock()
	if c.profiles == nil {
		c.applyMu.Unlock()
		return false
	}
	ok := c.recoverStep()
	if ok {
		c.mon.Reset()
		c.mon.Rearm()
	}
	c.applyMu.Unlock()
	return ok
}

// FallenBack reports whether FallbackToStatic has been applied.
func (c *Controller) FallenBack() bool {
	return c.fallenBack.Load()
}

// OnFallback subscribes fn to the static fallback. fn receives the metrics
// that triggered it and is called at most once per controller.
func (c *Controller) OnFallback(fn func(perf.Metrics)) adaptive.Token {
	return c.fallbackSubs.Add(fn)
}

// OnApplied subscribes fn to every action that took effect.
func (c *Controller) OnApplied(fn func(perf.Action)) adaptive.Token {
	return c.appliedSubs.Add(fn)
}

// Unsubscribe removes an OnFallback or OnApplied subscription.
func (c *Controller) Unsubscribe(tok adaptive.Token) bool {
	return c.fallbackSubs.Remove(tok) || c.appliedSubs.Remove(tok)
}

// ReduceFactor returns the LOD distance multiplier used by ReduceLOD.
func (c *Controller) ReduceFactor() float64 {
	return c.opts.reduceFactor
}
