package lod

import (
	"slices"
	"sync"

	"golang.org/x/image/math/f64"

	"github.com/gogpu/adaptive"
	"github.com/gogpu/adaptive/quality"
)

// DefaultMinDistanceScale is the lowest global distance scale
// TightenDistances will reach.
const DefaultMinDistanceScale = 0.25

// scaleEpsilon absorbs rounding when relaxing back to full scale.
const scaleEpsilon = 1e-9

// Camera is the viewpoint for one Update.
type Camera struct {
	Position f64.Vec3

	// Frustum enables frustum culling when non-nil.
	Frustum *Frustum
}

// OcclusionTester reports whether an object is hidden behind other
// geometry. It is host supplied, typically backed by last frame's
// occlusion queries. It is called during Update and must not call back
// into the Manager.
type OcclusionTester interface {
	Occluded(objectID string, center f64.Vec3, radius float64) bool
}

// OcclusionFunc adapts a function to OcclusionTester.
type OcclusionFunc func(objectID string, center f64.Vec3, radius float64) bool

// Occluded calls f.
func (f OcclusionFunc) Occluded(objectID string, center f64.Vec3, radius float64) bool {
	return f(objectID, center, radius)
}

// Option configures a Manager.
type Option func(*Manager)

// WithOcclusionTester enables occlusion culling.
func WithOcclusionTester(t OcclusionTester) Option {
	return func(m *Manager) {
		m.occlusion = t
	}
}

// WithMinDistanceScale sets the floor for TightenDistances.
// Values outside (0, 1] are ignored.
func WithMinDistanceScale(s float64) Option {
	return func(m *Manager) {
		if s > 0 && s <= 1 {
			m.minScale = s
		}
	}
}

type entry struct {
	reg      Registration
	state    RuntimeState
	selected bool // state.VariantIndex is from a previous Update
}

// Manager owns the object registry and selects a variant per object each
// frame.
//
// Distance thresholds are multiplied by a global scale, which starts at 1
// and is lowered by TightenDistances when the renderer needs to shed load.
//
// Manager is safe for concurrent use.
type Manager struct {
	mu        sync.Mutex
	objects   map[string]*entry
	scale     float64
	minScale  float64
	occlusion OcclusionTester
}

// NewManager creates an empty manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		objects:  make(map[string]*entry),
		scale:    1,
		minScale: DefaultMinDistanceScale,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register adds an object or replaces an existing one with the same ID.
// Replacement is total: the previous variants and runtime state are dropped.
// The variant slice is copied.
func (m *Manager) Register(reg Registration) error {
	if err := reg.validate(); err != nil {
		return err
	}
	reg.Variants = slices.Clone(reg.Variants)

	m.mu.Lock()
	_, replaced := m.objects[reg.ObjectID]
	m.objects[reg.ObjectID] = &entry{reg: reg}
	m.mu.Unlock()

	adaptive.Logger().Debug("lod: registered", "id", reg.ObjectID, "variants", len(reg.Variants), "replaced", replaced)
	return nil
}

// Unregister removes an object. Unknown IDs are ignored.
func (m *Manager) Unregister(id string) {
	m.mu.Lock()
	delete(m.objects, id)
	m.mu.Unlock()
}

// SetAnchor moves an object. It reports false for unknown IDs.
func (m *Manager) SetAnchor(id string, pos f64.Vec3) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.objects[id]
	if ok {
		e.reg.Anchor = pos
	}
	return ok
}

// Len returns the number of registered objects.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// State returns the runtime state computed by the last Update.
func (m *Manager) State(id string) (RuntimeState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.objects[id]
	if !ok {
		return RuntimeState{}, false
	}
	return e.state, true
}

// Variant returns the variant selected for id by the last Update.
func (m *Manager) Variant(id string) (Variant, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.objects[id]
	if !ok {
		return Variant{}, false
	}
	return e.reg.Variants[e.state.VariantIndex], true
}

// Update selects a variant for every object and returns aggregate
// statistics. Call it once per frame.
//
// The selected variant is the first whose MaxDistance, multiplied by the
// distance scale, is at least the camera distance; the last variant
// matches any distance. When the profile disables LOD, the most detailed
// variant is always selected. Culled objects keep their selection but are
// excluded from the visible count and complexity.
func (m *Manager) Update(cam Camera, profile quality.Profile) Statistics {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := Statistics{
		TotalObjects:     len(m.objects),
		ComplexityBudget: profile.MaxSceneComplexity,
	}
	for id, e := range m.objects {
		idx := 0
		if profile.LODEnabled {
			idx = selectVariant(e.reg.Variants, distance(cam.Position, e.reg.Anchor), m.scale)
		}
		if e.selected && e.state.VariantIndex != idx {
			stats.VariantSwitches++
		}

		st := RuntimeState{VariantIndex: idx}
		switch {
		case !cam.Frustum.IntersectsSphere(e.reg.Anchor, e.reg.Radius):
			st.FrustumCulled = true
			stats.FrustumCulledCount++
		case m.occlusion != nil && m.occlusion.Occluded(id, e.reg.Anchor, e.reg.Radius):
			st.OcclusionCulled = true
			stats.OcclusionCulledCount++
		default:
			st.Visible = true
			stats.VisibleObjects++
			stats.TotalComplexity += e.reg.Variants[idx].ComplexityCost
		}
		e.state = st
		e.selected = true
	}
	stats.OverBudget = stats.TotalComplexity > stats.ComplexityBudget
	return stats
}

// selectVariant returns the smallest index whose scaled MaxDistance covers
// dist, or the last index.
func selectVariant(vs []Variant, dist, scale float64) int {
	last := len(vs) - 1
	for i := range last {
		if dist <= vs[i].MaxDistance*scale {
			return i
		}
	}
	return last
}

// TightenDistances multiplies the distance scale by factor, so objects
// switch to cheaper variants closer to the camera. The scale never drops
// below the configured minimum. Factors outside (0, 1) are ignored.
// It returns the new scale.
func (m *Manager) TightenDistances(factor float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if factor > 0 && factor < 1 {
		m.scale = max(m.scale*factor, m.minScale)
		adaptive.Logger().Debug("lod: distances tightened", "scale", m.scale)
	}
	return m.scale
}

// RelaxDistances undoes a TightenDistances with the same factor. The scale
// never exceeds 1. Factors outside (0, 1) are ignored.
func (m *Manager) RelaxDistances(factor float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if factor > 0 && factor < 1 {
		m.scale = m.scale / factor
		if m.scale > 1-scaleEpsilon {
			m.scale = 1
		}
		adaptive.Logger().Debug("lod: distances relaxed", "scale", m.scale)
	}
	return m.scale
}

// ResetDistances restores the distance scale to 1.
func (m *Manager) ResetDistances() {
	m.mu.Lock()
	m.scale = 1
	m.mu.Unlock()
}

// DistanceScale returns the current distance scale.
func (m *Manager) DistanceScale() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scale
}

// MinDistanceScale returns the floor used by TightenDistances.
func (m *Manager) MinDistanceScale() float64 {
	return m.minScale
}
