package quality

import "fmt"

// Profile is the bundle of feature flags and budgets for one quality level.
// Profiles are values; the Manager hands out copies.
type Profile struct {
	Tier Tier

	// MaxSceneComplexity is the scene budget in abstract complexity units.
	MaxSceneComplexity int

	ShadowsEnabled        bool
	PostProcessingEnabled bool

	// LODEnabled allows distance-based detail reduction. When false the
	// highest-detail variant is always used.
	LODEnabled bool

	MaxLightCount int

	// RenderScale is the resolution multiplier in (0, 1].
	RenderScale float64

	TargetFrameRateHz int

	// Fallback marks the fail-closed profile installed when probing failed.
	Fallback bool
}

// String returns a compact description of the profile.
func (p Profile) String() string {
	return fmt.Sprintf("Profile[%s complexity=%d shadows=%t post=%t lod=%t lights=%d scale=%.2f fps=%d fallback=%t]",
		p.Tier, p.MaxSceneComplexity, p.ShadowsEnabled, p.PostProcessingEnabled,
		p.LODEnabled, p.MaxLightCount, p.RenderScale, p.TargetFrameRateHz, p.Fallback)
}

// Validate reports whether the profile's numeric fields are in range.
func (p Profile) Validate() error {
	if !p.Tier.Valid() {
		return fmt.Errorf("quality: invalid tier %d", p.Tier)
	}
	if p.RenderScale <= 0 || p.RenderScale > 1 {
		return fmt.Errorf("quality: render scale %v outside (0, 1]", p.RenderScale)
	}
	if p.MaxSceneComplexity < 0 || p.MaxLightCount < 0 || p.TargetFrameRateHz <= 0 {
		return fmt.Errorf("quality: negative budget in %s", p)
	}
	return nil
}

// FallbackProfile is the minimal profile used when hardware probing failed.
// LOD stays enabled; every other feature is off.
func FallbackProfile() Profile {
	return Profile{
		Tier:                  TierLow,
		MaxSceneComplexity:    10_000,
		ShadowsEnabled:        false,
		PostProcessingEnabled: false,
		LODEnabled:            true,
		MaxLightCount:         1,
		RenderScale:           0.5,
		TargetFrameRateHz:     30,
		Fallback:              true,
	}
}

// Table maps each tier to its profile.
type Table [TierHigh + 1]Profile

// DefaultTable returns the hand-tuned per-tier profiles.
func DefaultTable() Table {
	return Table{
		TierLow: {
			Tier:                  TierLow,
			MaxSceneComplexity:    50_000,
			ShadowsEnabled:        false,
			PostProcessingEnabled: false,
			LODEnabled:            true,
			MaxLightCount:         2,
			RenderScale:           0.67,
			TargetFrameRateHz:     30,
		},
		TierMedium: {
			Tier:                  TierMedium,
			MaxSceneComplexity:    200_000,
			ShadowsEnabled:        true,
			PostProcessingEnabled: false,
			LODEnabled:            true,
			MaxLightCount:         4,
			RenderScale:           0.85,
			TargetFrameRateHz:     60,
		},
		TierHigh: {
			Tier:                  TierHigh,
			MaxSceneComplexity:    500_000,
			ShadowsEnabled:        true,
			PostProcessingEnabled: true,
			LODEnabled:            true,
			MaxLightCount:         8,
			RenderScale:           1.0,
			TargetFrameRateHz:     60,
		},
	}
}

// Profile returns the table entry for tier, clamping out-of-range tiers.
func (t *Table) Profile(tier Tier) Profile {
	tier = max(TierLow, min(tier, TierHigh))
	p := t[tier]
	p.Tier = tier
	return p
}

// Validate checks every entry of the table.
func (t *Table) Validate() error {
	for tier := TierLow; tier <= TierHigh; tier++ {
		p := t[tier]
		p.Tier = tier
		if err := p.Validate(); err != nil {
			return fmt.Errorf("tier %s: %w", tier, err)
		}
	}
	return nil
}
