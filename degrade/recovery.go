package degrade

import (
	"fmt"

	"github.com/gogpu/adaptive"
	"github.com/gogpu/adaptive/perf"
	"github.com/gogpu/adaptive/quality"
)

// RecoveryPolicy controls upward recovery.
//
// After ConsecutiveSamples metrics in a row with AverageFPS at or above
// UpgradeFPS, the controller undoes one degradation step: LOD distances are
// relaxed first, then disabled features are restored, then the tier is
// raised one level up to the initial tier. UpgradeFPS should sit above
// every downgrade trigger so the controller does not oscillate.
//
// The zero value disables recovery.
type RecoveryPolicy struct {
	UpgradeFPS         float64
	ConsecutiveSamples int
}

// Enabled reports whether the policy allows recovery.
func (p RecoveryPolicy) Enabled() bool {
	return p.UpgradeFPS > 0 && p.ConsecutiveSamples > 0
}

// String returns a compact description of the policy.
func (p RecoveryPolicy) String() string {
	if !p.Enabled() {
		return "Recovery[off]"
	}
	return fmt.Sprintf("Recovery[fps >= %g for %d samples]", p.UpgradeFPS, p.ConsecutiveSamples)
}

// observe counts consecutive good samples and reports whether a recovery
// step is due. Caller must hold c.applyMu.
func (c *Controller) observe(m perf.Metrics) bool {
	p := c.opts.recovery
	if m.AverageFPS >= p.UpgradeFPS {
		c.good++
	} else {
		c.good = 0
	}
	if c.good < p.ConsecutiveSamples {
		return false
	}
	c.good = 0
	return true
}

// recoverStep undoes the most recent kind of degradation. It reports
// whether anything changed. Caller must hold c.applyMu.
func (c *Controller) recoverStep() bool {
	log := adaptive.Logger()

	if c.lods != nil && c.lods.DistanceScale() < 1 {
		scale := c.lods.RelaxDistances(c.opts.reduceFactor)
		log.Info("degrade: recovered LOD distances", "scale", scale)
		return true
	}

	// Shadows are disabled at a lower frame rate than post-processing,
	// so they come back first. A restore that leaves the profile unchanged,
	// because the current tier has the feature off anyway, is not a step.
	if c.shadowsOff {
		c.shadowsOff = false
		if c.restore(func(p *quality.Profile, table quality.Profile) { p.ShadowsEnabled = table.ShadowsEnabled }) {
			log.Info("degrade: restored shadows")
			return true
		}
	}
	if c.postOff {
		c.postOff = false
		if c.restore(func(p *quality.Profile, table quality.Profile) {
			p.PostProcessingEnabled = table.PostProcessingEnabled
		}) {
			log.Info("degrade: restored post-processing")
			return true
		}
	}

	if tier, ok := c.profiles.Upgrade(c.profiles.InitialTier()); ok {
		log.Info("degrade: upgraded tier", "tier", tier)
		return true
	}
	return false
}

// restore copies a feature from the table profile of the active tier and
// reports whether the active profile changed. Caller must hold c.applyMu.
func (c *Controller) restore(fn func(p *quality.Profile, table quality.Profile)) bool {
	before := c.profiles.ActiveProfile()
	table := c.profiles.TableProfile(before.Tier)
	return c.profiles.Update(func(p *quality.Profile) { fn(p, table) }) != before
}
