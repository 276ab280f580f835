package lod

import (
	"errors"
	"testing"

	"golang.org/x/image/math/f64"

	"github.com/gogpu/adaptive/quality"
)

var lodOn = quality.Profile{Tier: quality.TierMedium, LODEnabled: true, MaxSceneComplexity: 1000}

func twoVariants(id string) Registration {
	return Registration{
		ObjectID: id,
		Variants: []Variant{
			{MaxDistance: 5, ComplexityCost: 100},
			{MaxDistance: 20, ComplexityCost: 10},
		},
	}
}

func at(z float64) Camera {
	return Camera{Position: f64.Vec3{0, 0, z}}
}

func TestUpdateSelectsByDistance(t *testing.T) {
	m := NewManager()
	if err := m.Register(twoVariants("A")); err != nil {
		t.Fatal(err)
	}

	stats := m.Update(at(3), lodOn)
	if st, _ := m.State("A"); st.VariantIndex != 0 {
		t.Errorf("distance 3: variant %d, want 0", st.VariantIndex)
	}
	if stats.TotalComplexity != 100 {
		t.Errorf("distance 3: complexity %d, want 100", stats.TotalComplexity)
	}

	stats = m.Update(at(12), lodOn)
	if st, _ := m.State("A"); st.VariantIndex != 1 {
		t.Errorf("distance 12: variant %d, want 1", st.VariantIndex)
	}
	if stats.TotalComplexity != 10 {
		t.Errorf("distance 12: complexity %d, want 10", stats.TotalComplexity)
	}
	if stats.VariantSwitches != 1 {
		t.Errorf("VariantSwitches = %d, want 1", stats.VariantSwitches)
	}
}

func TestSelectVariant(t *testing.T) {
	vs := []Variant{{MaxDistance: 5}, {MaxDistance: 20}, {MaxDistance: 50}}
	tests := []struct {
		dist  float64
		scale float64
		want  int
	}{
		{0, 1, 0},
		{5, 1, 0}, // boundary is inclusive
		{5.0001, 1, 1},
		{20, 1, 1},
		{49, 1, 2},
		{1e9, 1, 2}, // last variant is unbounded
		{4, 0.5, 1},
		{2.5, 0.5, 0},
	}
	for _, tt := range tests {
		if got := selectVariant(vs, tt.dist, tt.scale); got != tt.want {
			t.Errorf("selectVariant(%v, scale %v) = %d, want %d", tt.dist, tt.scale, got, tt.want)
		}
	}
}

func TestUpdateLODDisabled(t *testing.T) {
	m := NewManager()
	_ = m.Register(twoVariants("A"))

	off := lodOn
	off.LODEnabled = false
	stats := m.Update(at(100), off)

	if st, _ := m.State("A"); st.VariantIndex != 0 {
		t.Errorf("variant %d, want 0 with LOD disabled", st.VariantIndex)
	}
	if stats.TotalComplexity != 100 {
		t.Errorf("complexity %d, want 100", stats.TotalComplexity)
	}
}

func TestRegisterReplaces(t *testing.T) {
	m := NewManager()
	_ = m.Register(twoVariants("A"))
	_ = m.Register(Registration{
		ObjectID: "A",
		Variants: []Variant{{MaxDistance: 1, ComplexityCost: 7}},
	})

	if m.Len() != 1 {
		t.Fatalf("Len = %d, want 1", m.Len())
	}
	stats := m.Update(at(3), lodOn)
	if stats.TotalComplexity != 7 {
		t.Errorf("complexity %d, want 7 from the replacement", stats.TotalComplexity)
	}
	if v, _ := m.Variant("A"); v.ComplexityCost != 7 {
		t.Errorf("Variant = %+v", v)
	}
}

func TestRegisterCopiesVariants(t *testing.T) {
	m := NewManager()
	reg := twoVariants("A")
	_ = m.Register(reg)
	reg.Variants[0].ComplexityCost = 999

	if stats := m.Update(at(0), lodOn); stats.TotalComplexity != 100 {
		t.Errorf("complexity %d, caller mutation leaked in", stats.TotalComplexity)
	}
}

func TestRegisterRejects(t *testing.T) {
	tests := []struct {
		name string
		reg  Registration
		want error
	}{
		{"empty id", Registration{Variants: []Variant{{}}}, ErrEmptyObjectID},
		{"no variants", Registration{ObjectID: "A"}, ErrEmptyVariantList},
		{"unsorted", Registration{ObjectID: "A", Variants: []Variant{{MaxDistance: 10}, {MaxDistance: 5}}}, ErrUnsortedVariants},
		{"negative", Registration{ObjectID: "A", Variants: []Variant{{MaxDistance: -1}}}, ErrInvalidDistance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager()
			if err := m.Register(tt.reg); !errors.Is(err, tt.want) {
				t.Errorf("Register = %v, want %v", err, tt.want)
			}
			if m.Len() != 0 {
				t.Error("rejected registration was stored")
			}
		})
	}
}

func TestUnregister(t *testing.T) {
	m := NewManager()
	_ = m.Register(twoVariants("A"))
	m.Unregister("missing")
	m.Unregister("A")

	if m.Len() != 0 {
		t.Errorf("Len = %d, want 0", m.Len())
	}
	if _, ok := m.State("A"); ok {
		t.Error("State found an unregistered object")
	}
	if stats := m.Update(at(0), lodOn); stats.TotalObjects != 0 {
		t.Errorf("TotalObjects = %d", stats.TotalObjects)
	}
}

func TestSetAnchor(t *testing.T) {
	m := NewManager()
	_ = m.Register(twoVariants("A"))

	if !m.SetAnchor("A", f64.Vec3{0, 0, 10}) {
		t.Fatal("SetAnchor = false")
	}
	if m.SetAnchor("B", f64.Vec3{}) {
		t.Error("SetAnchor on unknown id = true")
	}
	m.Update(at(12), lodOn)
	if st, _ := m.State("A"); st.VariantIndex != 0 {
		t.Errorf("variant %d, want 0 at distance 2", st.VariantIndex)
	}
}

func TestFrustumCulling(t *testing.T) {
	m := NewManager()
	_ = m.Register(Registration{ObjectID: "in", Anchor: f64.Vec3{0, 0, -5}, Radius: 1, Variants: []Variant{{MaxDistance: 100, ComplexityCost: 3}}})
	_ = m.Register(Registration{ObjectID: "out", Anchor: f64.Vec3{50, 0, -5}, Radius: 1, Variants: []Variant{{MaxDistance: 100, ComplexityCost: 4}}})
	_ = m.Register(Registration{ObjectID: "edge", Anchor: f64.Vec3{10.5, 0, -5}, Radius: 1, Variants: []Variant{{MaxDistance: 100, ComplexityCost: 5}}})

	cam := Camera{Frustum: FrustumFromMatrix(Orthographic(-10, 10, -10, 10, 0.1, 100))}
	stats := m.Update(cam, lodOn)

	if stats.TotalObjects != 3 || stats.VisibleObjects != 2 || stats.FrustumCulledCount != 1 {
		t.Errorf("stats = %v", stats)
	}
	if stats.TotalComplexity != 8 {
		t.Errorf("complexity %d, want 8", stats.TotalComplexity)
	}
	if st, _ := m.State("out"); !st.FrustumCulled || st.Visible {
		t.Errorf("out state = %+v", st)
	}
}

func TestFrustumNearFar(t *testing.T) {
	f := FrustumFromMatrix(Orthographic(-1, 1, -1, 1, 1, 10))
	tests := []struct {
		z    float64
		want bool
	}{
		{-5, true},
		{-0.5, false}, // in front of the near plane
		{-11, false},  // beyond the far plane
		{5, false},    // behind the camera
	}
	for _, tt := range tests {
		if got := f.IntersectsSphere(f64.Vec3{0, 0, tt.z}, 0); got != tt.want {
			t.Errorf("z=%v: IntersectsSphere = %v, want %v", tt.z, got, tt.want)
		}
	}
	var nilFrustum *Frustum
	if !nilFrustum.IntersectsSphere(f64.Vec3{1e6, 0, 0}, 0) {
		t.Error("nil frustum culled a sphere")
	}
}

func TestOcclusionCulling(t *testing.T) {
	hidden := map[string]bool{"B": true}
	m := NewManager(WithOcclusionTester(OcclusionFunc(func(id string, _ f64.Vec3, _ float64) bool {
		return hidden[id]
	})))
	_ = m.Register(twoVariants("A"))
	_ = m.Register(twoVariants("B"))

	stats := m.Update(at(0), lodOn)

	if stats.VisibleObjects != 1 || stats.OcclusionCulledCount != 1 || stats.TotalComplexity != 100 {
		t.Errorf("stats = %v", stats)
	}
	if st, _ := m.State("B"); !st.OcclusionCulled {
		t.Errorf("B state = %+v", st)
	}
}

func TestOverBudget(t *testing.T) {
	m := NewManager()
	for _, id := range []string{"A", "B"} {
		_ = m.Register(twoVariants(id))
	}
	p := lodOn
	p.MaxSceneComplexity = 150

	stats := m.Update(at(0), p)
	if !stats.OverBudget || stats.ComplexityBudget != 150 {
		t.Errorf("stats = %v, want over budget", stats)
	}
}

func TestTightenRelaxDistances(t *testing.T) {
	m := NewManager(WithMinDistanceScale(0.5))
	_ = m.Register(twoVariants("A"))

	if got := m.TightenDistances(0.75); got != 0.75 {
		t.Errorf("scale = %v, want 0.75", got)
	}
	// Distance 4 now exceeds 5*0.75.
	m.Update(at(4), lodOn)
	if st, _ := m.State("A"); st.VariantIndex != 1 {
		t.Errorf("variant %d, want 1 after tightening", st.VariantIndex)
	}

	if got := m.TightenDistances(0.5); got != 0.5 {
		t.Errorf("scale = %v, want floor 0.5", got)
	}
	if got := m.TightenDistances(2); got != 0.5 {
		t.Errorf("invalid factor changed scale to %v", got)
	}

	m.RelaxDistances(0.5)
	if got := m.RelaxDistances(0.75); got != 1 {
		t.Errorf("relaxed scale = %v, want 1", got)
	}

	m.TightenDistances(0.75)
	m.ResetDistances()
	if got := m.DistanceScale(); got != 1 {
		t.Errorf("DistanceScale after reset = %v", got)
	}
}
