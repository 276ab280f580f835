package degrade

import (
	"errors"
	"testing"

	"github.com/gogpu/adaptive/lod"
	"github.com/gogpu/adaptive/perf"
	"github.com/gogpu/adaptive/quality"
)

type rig struct {
	mon      *perf.Monitor
	profiles *quality.Manager
	lods     *lod.Manager
	ctrl     *Controller
}

func newRig(t *testing.T, thresholds []perf.Threshold, opts ...Option) *rig {
	t.Helper()
	r := &rig{
		mon: perf.NewMonitor(
			perf.WithMemorySource(nil),
			perf.WithMinSamples(1),
			perf.WithThresholds(thresholds...),
		),
		profiles: quality.NewManager(),
		lods:     lod.NewManager(),
		ctrl:     New(opts...),
	}
	r.profiles.Initialize(100)
	if err := r.ctrl.Attach(r.mon, r.profiles, r.lods); err != nil {
		t.Fatal(err)
	}
	return r
}

func (r *rig) push(n int, frameMs float64) {
	for range n {
		r.mon.Push(perf.Sample{FrameTimeMs: frameMs})
	}
}

func TestApplyReduceLOD(t *testing.T) {
	r := newRig(t, nil)

	if !r.ctrl.Apply(perf.ActionReduceLOD) {
		t.Fatal("ReduceLOD had no effect")
	}
	if got := r.lods.DistanceScale(); got != DefaultReduceFactor {
		t.Errorf("DistanceScale = %v, want %v", got, DefaultReduceFactor)
	}
	if r.profiles.Tier() != quality.TierHigh {
		t.Errorf("tier changed to %v", r.profiles.Tier())
	}
}

func TestApplyReduceLODFloor(t *testing.T) {
	r := newRig(t, nil, WithReduceFactor(0.1))

	if !r.ctrl.Apply(perf.ActionReduceLOD) {
		t.Fatal("first ReduceLOD had no effect")
	}
	if r.ctrl.Apply(perf.ActionReduceLOD) {
		t.Error("ReduceLOD at the floor reported an effect")
	}
	if got := r.lods.DistanceScale(); got != lod.DefaultMinDistanceScale {
		t.Errorf("DistanceScale = %v, want floor", got)
	}
}

func TestApplyDisableFeatures(t *testing.T) {
	r := newRig(t, nil)

	if !r.ctrl.Apply(perf.ActionDisableShadows) {
		t.Fatal("DisableShadows had no effect")
	}
	if r.ctrl.Apply(perf.ActionDisableShadows) {
		t.Error("second DisableShadows reported an effect")
	}
	if !r.ctrl.Apply(perf.ActionDisablePostProcessing) {
		t.Fatal("DisablePostProcessing had no effect")
	}

	p := r.profiles.ActiveProfile()
	if p.ShadowsEnabled || p.PostProcessingEnabled {
		t.Errorf("profile = %v, want shadows and post off", p)
	}
	if p.Tier != quality.TierHigh {
		t.Errorf("tier = %v, want High", p.Tier)
	}
}

func TestApplyReduceQualityKeepsDisabledFeatures(t *testing.T) {
	r := newRig(t, nil)
	r.ctrl.Apply(perf.ActionDisableShadows)

	if !r.ctrl.Apply(perf.ActionReduceQuality) {
		t.Fatal("ReduceQuality had no effect")
	}
	p := r.profiles.ActiveProfile()
	if p.Tier != quality.TierMedium {
		t.Errorf("tier = %v, want Medium", p.Tier)
	}
	if p.ShadowsEnabled {
		t.Error("shadows re-enabled by the tier change")
	}

	r.ctrl.Apply(perf.ActionReduceQuality)
	if r.ctrl.Apply(perf.ActionReduceQuality) {
		t.Error("ReduceQuality at Low reported an effect")
	}
}

func TestFallbackIsTerminal(t *testing.T) {
	r := newRig(t, nil)
	r.mon.Start()
	defer r.mon.Stop()

	calls := 0
	r.ctrl.OnFallback(func(perf.Metrics) { calls++ })

	if !r.ctrl.Apply(perf.ActionFallbackToStatic) {
		t.Fatal("FallbackToStatic had no effect")
	}
	if r.ctrl.Apply(perf.ActionFallbackToStatic) {
		t.Error("second FallbackToStatic reported an effect")
	}
	if r.ctrl.Apply(perf.ActionReduceLOD) {
		t.Error("action applied after fallback")
	}

	if !r.ctrl.FallenBack() {
		t.Error("FallenBack = false")
	}
	if r.mon.Running() {
		t.Error("monitor still running after fallback")
	}
	if calls != 1 {
		t.Errorf("fallback callbacks = %d, want 1", calls)
	}
	if r.lods.DistanceScale() != 1 {
		t.Error("LOD changed after fallback")
	}
}

func TestMonitorDrivesController(t *testing.T) {
	r := newRig(t, []perf.Threshold{
		{Metric: perf.MetricFPS, Trigger: 25, Action: perf.ActionReduceLOD},
		{Metric: perf.MetricFPS, Trigger: 15, Action: perf.ActionFallbackToStatic},
	})
	var applied []perf.Action
	r.ctrl.OnApplied(func(a perf.Action) { applied = append(applied, a) })

	r.push(1, 50)

	if len(applied) != 1 || applied[0] != perf.ActionReduceLOD {
		t.Fatalf("applied = %v, want [ReduceLOD]", applied)
	}
	if got := r.lods.DistanceScale(); got != DefaultReduceFactor {
		t.Errorf("DistanceScale = %v", got)
	}
	if n := len(r.mon.Samples()); n != 0 {
		t.Errorf("window has %d samples after an action, want 0", n)
	}
}

func TestDeferredApply(t *testing.T) {
	r := newRig(t, []perf.Threshold{
		{Metric: perf.MetricFPS, Trigger: 25, Action: perf.ActionReduceLOD},
	}, WithDeferredApply())

	r.push(1, 50)

	if r.ctrl.Pending() != 1 {
		t.Fatalf("Pending = %d, want 1", r.ctrl.Pending())
	}
	if r.lods.DistanceScale() != 1 {
		t.Fatal("deferred action applied on the sampling path")
	}
	if n := r.ctrl.Drain(); n != 1 {
		t.Errorf("Drain = %d, want 1", n)
	}
	if r.ctrl.Pending() != 0 {
		t.Error("queue not emptied")
	}
	if got := r.lods.DistanceScale(); got != DefaultReduceFactor {
		t.Errorf("DistanceScale = %v", got)
	}
}

func TestDeferredActionsCoalesce(t *testing.T) {
	mon := perf.NewMonitor(
		perf.WithMemorySource(nil),
		perf.WithMinSamples(5),
		perf.WithThresholds(perf.Threshold{Metric: perf.MetricFPS, Trigger: 24, Action: perf.ActionReduceQuality}),
	)
	profiles := quality.NewManager()
	profiles.Initialize(100)
	ctrl := New(WithDeferredApply())
	if err := ctrl.Attach(mon, profiles, nil); err != nil {
		t.Fatal(err)
	}

	// 20 FPS. The fifth sample queues an action and clears the window.
	for range 7 {
		mon.Push(perf.Sample{FrameTimeMs: 50})
	}
	if got := ctrl.Pending(); got != 1 {
		t.Fatalf("Pending = %d, want 1", got)
	}
	if n := len(mon.Samples()); n != 2 {
		t.Errorf("window has %d samples, want 2", n)
	}

	// A stalled render loop keeps sampling without draining.
	for range 20 {
		mon.Push(perf.Sample{FrameTimeMs: 50})
	}
	if got := ctrl.Pending(); got != 1 {
		t.Fatalf("Pending after stall = %d, want 1", got)
	}

	if n := ctrl.Drain(); n != 1 {
		t.Errorf("Drain = %d, want 1", n)
	}
	if got := profiles.Tier(); got != quality.TierMedium {
		t.Errorf("tier = %v, want Medium", got)
	}
}

func TestDeferredFallbackNotCoalesced(t *testing.T) {
	r := newRig(t, []perf.Threshold{
		{Metric: perf.MetricFPS, Trigger: 10, Action: perf.ActionFallbackToStatic},
		{Metric: perf.MetricFPS, Trigger: 24, Action: perf.ActionReduceQuality},
	}, WithDeferredApply())

	r.push(1, 50)  // 20 FPS
	r.push(1, 200) // 5 FPS
	r.push(1, 200)

	if got := r.ctrl.Pending(); got != 2 {
		t.Fatalf("Pending = %d, want 2", got)
	}
	if n := r.ctrl.Drain(); n != 2 {
		t.Errorf("Drain = %d, want 2", n)
	}
	if !r.ctrl.FallenBack() {
		t.Error("queued fallback was dropped")
	}
}

func TestReduceQualityPublishesOnce(t *testing.T) {
	r := newRig(t, nil)
	r.ctrl.Apply(perf.ActionDisableShadows)

	var shadows []bool
	r.profiles.OnChange(func(p quality.Profile) { shadows = append(shadows, p.ShadowsEnabled) })

	if !r.ctrl.Apply(perf.ActionReduceQuality) {
		t.Fatal("ReduceQuality had no effect")
	}
	if len(shadows) != 1 || shadows[0] {
		t.Errorf("published shadow states = %v, want [false]", shadows)
	}
}

func TestRecoverSkipsNoOpRestore(t *testing.T) {
	r := newRig(t, nil)
	r.ctrl.Apply(perf.ActionDisableShadows)
	r.ctrl.Apply(perf.ActionReduceQuality)
	r.ctrl.Apply(perf.ActionReduceQuality)

	before := r.profiles.ActiveProfile()
	if before.Tier != quality.TierLow {
		t.Fatalf("tier = %v, want Low", before.Tier)
	}

	// Low has shadows off in the table, so restoring them changes nothing
	// and the step moves on to the tier.
	if !r.ctrl.Recover() {
		t.Fatal("Recover reported no change")
	}
	after := r.profiles.ActiveProfile()
	if after == before || after.Tier != quality.TierMedium {
		t.Errorf("profile = %s, want Medium", after)
	}

	r.ctrl.Recover()
	if r.ctrl.Recover() {
		t.Error("Recover at the initial tier reported a change")
	}
}

func TestRecovery(t *testing.T) {
	r := newRig(t, nil, WithRecovery(RecoveryPolicy{UpgradeFPS: 55, ConsecutiveSamples: 3}))

	r.ctrl.Apply(perf.ActionReduceLOD)
	r.ctrl.Apply(perf.ActionDisableShadows)
	r.ctrl.Apply(perf.ActionReduceQuality)

	// 62.5 FPS, above the upgrade threshold.
	r.push(3, 16)
	if got := r.lods.DistanceScale(); got != 1 {
		t.Fatalf("step 1: DistanceScale = %v, want 1", got)
	}
	if r.profiles.ActiveProfile().ShadowsEnabled {
		t.Fatal("step 1 restored shadows early")
	}

	r.push(3, 16)
	p := r.profiles.ActiveProfile()
	if !p.ShadowsEnabled || p.Tier != quality.TierMedium {
		t.Fatalf("step 2: profile = %v, want Medium with shadows", p)
	}

	r.push(3, 16)
	if got := r.profiles.Tier(); got != quality.TierHigh {
		t.Fatalf("step 3: tier = %v, want High", got)
	}

	// Never above the initial tier.
	r.push(6, 16)
	if got := r.profiles.Tier(); got != quality.TierHigh {
		t.Errorf("tier = %v after extra samples", got)
	}
}

func TestRecoveryNeedsConsecutiveSamples(t *testing.T) {
	r := newRig(t, nil, WithRecovery(RecoveryPolicy{UpgradeFPS: 55, ConsecutiveSamples: 3}))
	r.ctrl.Apply(perf.ActionReduceLOD)

	r.push(2, 16)
	r.push(1, 40) // 25 FPS breaks the streak
	r.push(2, 16)

	if r.lods.DistanceScale() == 1 {
		t.Error("recovered without three consecutive good samples")
	}
}

func TestNoRecoveryByDefault(t *testing.T) {
	r := newRig(t, nil)
	r.ctrl.Apply(perf.ActionReduceQuality)

	r.push(30, 10)

	if got := r.profiles.Tier(); got != quality.TierMedium {
		t.Errorf("tier = %v, want Medium (monotonic)", got)
	}
}

func TestAttachErrors(t *testing.T) {
	c := New()
	if err := c.Attach(nil, quality.NewManager(), nil); !errors.Is(err, ErrNilMonitor) {
		t.Errorf("Attach(nil monitor) = %v", err)
	}
	if err := c.Attach(perf.NewMonitor(), nil, nil); !errors.Is(err, ErrNilProfiles) {
		t.Errorf("Attach(nil profiles) = %v", err)
	}
	if c.Apply(perf.ActionReduceQuality) {
		t.Error("detached controller applied an action")
	}
}

func TestDetach(t *testing.T) {
	r := newRig(t, []perf.Threshold{
		{Metric: perf.MetricFPS, Trigger: 25, Action: perf.ActionReduceLOD},
	})
	r.ctrl.Detach()
	r.ctrl.Detach()

	r.push(3, 50)

	if r.lods.DistanceScale() != 1 {
		t.Error("detached controller reacted to the monitor")
	}
}

func TestReattachMovesSubscription(t *testing.T) {
	r := newRig(t, []perf.Threshold{
		{Metric: perf.MetricFPS, Trigger: 25, Action: perf.ActionReduceLOD},
	})
	other := perf.NewMonitor(perf.WithMemorySource(nil), perf.WithMinSamples(1),
		perf.WithThresholds(perf.Threshold{Metric: perf.MetricFPS, Trigger: 25, Action: perf.ActionReduceLOD}))
	if err := r.ctrl.Attach(other, r.profiles, r.lods); err != nil {
		t.Fatal(err)
	}

	r.push(1, 50)
	if r.lods.DistanceScale() != 1 {
		t.Error("old monitor still drives the controller")
	}
	other.Push(perf.Sample{FrameTimeMs: 50})
	if r.lods.DistanceScale() == 1 {
		t.Error("new monitor does not drive the controller")
	}
}
