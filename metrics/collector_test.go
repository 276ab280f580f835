package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/gogpu/adaptive/perf"
	"github.com/gogpu/adaptive/probe"
	"github.com/gogpu/adaptive/session"
)

func newSession(t *testing.T) *session.Session {
	t.Helper()
	s := session.New(
		session.WithAPIs(&probe.StaticAPI{
			APIName:  "vulkan",
			IsModern: true,
			Limits:   probe.Limits{MaxTextureSize: 16384},
			Info:     &probe.DebugInfo{Renderer: "NVIDIA GeForce RTX 4090", Vendor: "NVIDIA"},
		}),
		session.WithImmediateApply(),
		session.WithMonitorOptions(perf.WithMemorySource(nil)),
	)
	t.Cleanup(s.Close)
	return s
}

func TestCollectorLint(t *testing.T) {
	c := NewCollector(newSession(t))
	defer c.Close()

	problems, err := testutil.CollectAndLint(c)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range problems {
		t.Errorf("lint: %s: %s", p.Metric, p.Text)
	}
}

func TestCollectorProfileGauges(t *testing.T) {
	s := newSession(t)
	c := NewCollector(s)
	defer c.Close()

	want := `
# HELP adaptive_quality_tier Active quality tier (0 low, 1 medium, 2 high).
# TYPE adaptive_quality_tier gauge
adaptive_quality_tier 2
# HELP adaptive_shadows_enabled 1 if shadows are enabled.
# TYPE adaptive_shadows_enabled gauge
adaptive_shadows_enabled 1
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(want),
		"adaptive_quality_tier", "adaptive_shadows_enabled"); err != nil {
		t.Error(err)
	}
}

func TestCollectorCountsActions(t *testing.T) {
	s := newSession(t)
	c := NewCollector(s)
	defer c.Close()

	s.Controller().Apply(perf.ActionReduceQuality)
	s.Controller().Apply(perf.ActionReduceQuality)
	s.Controller().Apply(perf.ActionReduceQuality) // already Low

	if got := testutil.ToFloat64(c.actions.WithLabelValues("ReduceQuality")); got != 2 {
		t.Errorf("ReduceQuality count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.actions.WithLabelValues("ReduceLOD")); got != 0 {
		t.Errorf("ReduceLOD count = %v, want 0", got)
	}
}

func TestCollectorRegisters(t *testing.T) {
	c := NewCollector(newSession(t))
	defer c.Close()

	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(c); err != nil {
		t.Fatal(err)
	}
	if n := testutil.CollectAndCount(c); n != 15+len(perf.Actions()) {
		t.Errorf("CollectAndCount = %d, want %d", n, 15+len(perf.Actions()))
	}
}
