package quality

import (
	"sync"
	"sync/atomic"

	"github.com/gogpu/adaptive"
	"github.com/gogpu/adaptive/internal/observer"
	"github.com/gogpu/adaptive/probe"
)

// Option configures a Manager.
type Option func(*options)

type options struct {
	table      Table
	thresholds Thresholds
	fallback   Profile
}

func defaultOptions() options {
	return options{
		table:      DefaultTable(),
		thresholds: DefaultThresholds(),
		fallback:   FallbackProfile(),
	}
}

// WithTable replaces the per-tier profile table.
// An invalid table is ignored and the default is kept.
func WithTable(t Table) Option {
	return func(o *options) {
		if t.Validate() == nil {
			o.table = t
		}
	}
}

// WithThresholds sets the score cut-offs between tiers.
func WithThresholds(th Thresholds) Option {
	return func(o *options) {
		o.thresholds = th
	}
}

// WithFallback replaces the fail-closed profile. The profile is always
// marked Fallback and keeps LOD enabled.
func WithFallback(p Profile) Option {
	return func(o *options) {
		p.Fallback = true
		p.LODEnabled = true
		if p.Validate() == nil {
			o.fallback = p
		}
	}
}

// Manager owns the active quality profile.
//
// Exactly one profile is active at any instant, including before Initialize
// is called: a new Manager starts on the fallback profile. Reads through
// ActiveProfile are lock-free; writers serialize on a mutex and publish a
// new copy.
//
// Manager is safe for concurrent use.
type Manager struct {
	opts options

	active atomic.Pointer[Profile]

	mu          sync.Mutex // serializes writers
	initialized bool
	initialTier Tier
	caps        probe.Capabilities
	score       int

	changes observer.List[Profile]
}

// NewManager creates a manager whose active profile is the fallback profile.
func NewManager(opts ...Option) *Manager {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	m := &Manager{opts: o, initialTier: TierLow}
	fb := o.fallback
	m.active.Store(&fb)
	return m
}

// Initialize selects the initial tier from a capability score and returns
// the resulting profile. Only the first call has an effect; later calls
// return the active profile unchanged.
func (m *Manager) Initialize(score int) Profile {
	m.mu.Lock()
	if m.initialized {
		m.mu.Unlock()
		return m.ActiveProfile()
	}
	m.initialized = true
	m.score = score
	tier := m.opts.thresholds.TierForScore(score)
	m.initialTier = tier
	p := m.opts.table.Profile(tier)
	m.publishLocked(p)
	m.mu.Unlock()

	adaptive.Logger().Info("quality: initial tier selected", "score", score, "tier", tier)
	m.changes.Notify(p)
	return p
}

// InitializeFromProbe initializes from a probe result. It fails closed: if
// probeErr is non-nil or caps is unsupported, the fallback profile stays
// active and is returned.
func (m *Manager) InitializeFromProbe(caps probe.Capabilities, probeErr error, policy probe.ScoringPolicy) Profile {
	if probeErr != nil || !caps.Supported() {
		m.mu.Lock()
		if !m.initialized {
			m.initialized = true
			m.initialTier = m.opts.fallback.Tier
			m.publishLocked(m.opts.fallback)
		}
		m.mu.Unlock()
		adaptive.Logger().Warn("quality: probe failed, using fallback profile", "err", probeErr)
		return m.ActiveProfile()
	}

	m.mu.Lock()
	if !m.initialized {
		m.caps = caps
	}
	m.mu.Unlock()

	b := probe.Breakdown(caps, policy)
	adaptive.Logger().Debug("quality: capability score", "breakdown", b.String())
	return m.Initialize(b.Total())
}

// ActiveProfile returns a copy of the active profile. It never blocks.
func (m *Manager) ActiveProfile() Profile {
	return *m.active.Load()
}

// Tier returns the active tier.
func (m *Manager) Tier() Tier {
	return m.active.Load().Tier
}

// InitialTier returns the tier chosen by Initialize.
func (m *Manager) InitialTier() Tier {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initialTier
}

// Capabilities returns the capabilities passed to InitializeFromProbe.
func (m *Manager) Capabilities() probe.Capabilities {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.caps
}

// Score returns the capability score used for initialization.
func (m *Manager) Score() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.score
}

// SetTier installs the table profile for tier, replacing any in-place edits.
// Out-of-range tiers are clamped.
func (m *Manager) SetTier(tier Tier) {
	m.SetTierWith(tier, nil)
}

// SetTierWith installs the table profile for tier after fn has edited it,
// and notifies subscribers once with the result. The tier cannot be changed
// through fn. An edit that leaves the profile invalid is discarded.
func (m *Manager) SetTierWith(tier Tier, fn func(p *Profile)) Profile {
	p := m.opts.table.Profile(tier)
	if fn != nil {
		edited := p
		fn(&edited)
		edited.Tier = p.Tier
		if edited.Validate() == nil {
			p = edited
		}
	}
	m.mu.Lock()
	m.publishLocked(p)
	m.mu.Unlock()

	adaptive.Logger().Info("quality: tier set", "tier", p.Tier)
	m.changes.Notify(p)
	return p
}

// Downgrade drops one tier. It reports false when already at TierLow.
func (m *Manager) Downgrade() (Tier, bool) {
	return m.DowngradeWith(nil)
}

// DowngradeWith drops one tier and applies fn to the new profile before it
// is published. It reports false when already at TierLow.
func (m *Manager) DowngradeWith(fn func(p *Profile)) (Tier, bool) {
	cur := m.Tier()
	if cur <= TierLow {
		return cur, false
	}
	m.SetTierWith(cur-1, fn)
	return cur - 1, true
}

// Upgrade raises one tier, never above ceiling. It reports false when the
// active tier is already at or above ceiling.
func (m *Manager) Upgrade(ceiling Tier) (Tier, bool) {
	cur := m.Tier()
	if cur >= ceiling || cur >= TierHigh {
		return cur, false
	}
	m.SetTier(cur + 1)
	return cur + 1, true
}

// TableProfile returns the unedited table profile for tier.
func (m *Manager) TableProfile(tier Tier) Profile {
	return m.opts.table.Profile(tier)
}

// Update edits the active profile in place. fn receives a private copy;
// the edited copy is published if it is valid. The tier cannot be changed
// through Update; use SetTier.
func (m *Manager) Update(fn func(p *Profile)) Profile {
	m.mu.Lock()
	cur := *m.active.Load()
	next := cur
	fn(&next)
	next.Tier = cur.Tier
	if next.Validate() != nil || next == cur {
		m.mu.Unlock()
		return cur
	}
	m.publishLocked(next)
	m.mu.Unlock()

	m.changes.Notify(next)
	return next
}

// OnChange subscribes fn to profile changes.
func (m *Manager) OnChange(fn func(Profile)) adaptive.Token {
	return m.changes.Add(fn)
}

// Unsubscribe removes a change subscription.
func (m *Manager) Unsubscribe(tok adaptive.Token) {
	m.changes.Remove(tok)
}

// publishLocked stores a copy of p as the active profile. Caller must hold mu.
func (m *Manager) publishLocked(p Profile) {
	m.active.Store(&p)
}
