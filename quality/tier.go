package quality

// Tier is a discrete quality level. Higher tiers compare greater.
type Tier int

const (
	// TierLow is the cheapest tier.
	TierLow Tier = iota

	// TierMedium balances detail and cost.
	TierMedium

	// TierHigh enables every feature.
	TierHigh
)

// String returns the tier name.
func (t Tier) String() string {
	switch t {
	case TierLow:
		return "Low"
	case TierMedium:
		return "Medium"
	case TierHigh:
		return "High"
	default:
		return "Unknown"
	}
}

// Valid reports whether t is one of the defined tiers.
func (t Tier) Valid() bool {
	return t >= TierLow && t <= TierHigh
}

// Thresholds are the capability-score cut-offs between tiers.
type Thresholds struct {
	// High is the minimum score for TierHigh.
	High int

	// Medium is the minimum score for TierMedium.
	Medium int
}

// DefaultThresholds returns the default cut-offs: 70 for High, 40 for Medium.
func DefaultThresholds() Thresholds {
	return Thresholds{High: 70, Medium: 40}
}

// TierForScore maps a capability score to a tier. Both cut-offs are
// inclusive: a score equal to High selects TierHigh.
func (th Thresholds) TierForScore(score int) Tier {
	switch {
	case score >= th.High:
		return TierHigh
	case score >= th.Medium:
		return TierMedium
	default:
		return TierLow
	}
}
