package probe

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// Step is one row of a scoring table. The first step whose Min is met wins,
// so steps must be ordered by descending Min.
type Step struct {
	Min    int
	Points int
}

// ScoringPolicy holds every tunable of the capability score.
//
// The score is a coarse heuristic. All thresholds live here so hosts can
// adjust them without touching the scoring code.
type ScoringPolicy struct {
	// ModernAPIPoints is added when the newer graphics API was acquired.
	ModernAPIPoints int

	// TextureSteps maps max texture size to points.
	TextureSteps []Step

	// HighEndKeywords, MidRangeKeywords and LowEndKeywords are matched
	// case-insensitively as substrings of the renderer string.
	HighEndKeywords  []string
	MidRangeKeywords []string
	LowEndKeywords   []string

	// HighEndPoints, MidRangePoints and LowEndPoints are awarded for the
	// first keyword class that matches.
	HighEndPoints  int
	MidRangePoints int
	LowEndPoints   int

	// ImportantExtensions are worth ExtensionPoints each.
	ImportantExtensions []string
	ExtensionPoints     int

	// VRAMSteps maps max texture size to a base VRAM estimate in MB.
	VRAMSteps []Step

	// DefaultVRAMMB is the estimate when no VRAMSteps entry matches.
	DefaultVRAMMB int

	// MobileKeywords identify mobile GPUs; the VRAM estimate is scaled
	// by MobileVRAMFactor for them and by HighEndVRAMFactor for high-end GPUs.
	MobileKeywords    []string
	HighEndVRAMFactor float64
	MobileVRAMFactor  float64

	// VRAMPointSteps maps the VRAM estimate in MB to points.
	VRAMPointSteps []Step

	// SoftwareKeywords identify CPU rasterizers. A matching renderer earns
	// no renderer points and its total is capped at SoftwareMaxScore.
	SoftwareKeywords []string
	SoftwareMaxScore int
}

// DefaultScoringPolicy returns the default scoring table.
func DefaultScoringPolicy() ScoringPolicy {
	return ScoringPolicy{
		ModernAPIPoints: 20,
		TextureSteps: []Step{
			{Min: 16384, Points: 30},
			{Min: 8192, Points: 20},
			{Min: 4096, Points: 10},
		},
		HighEndKeywords: []string{
			"rtx", "gtx", "quadro", "radeon rx", "radeon pro", "apple m", "arc a",
		},
		MidRangeKeywords: []string{
			"iris", "radeon vega", "radeon graphics", "apple gpu", "geforce mx",
		},
		LowEndKeywords: []string{
			"intel hd", "intel uhd", "mali", "adreno", "powervr", "videocore",
		},
		HighEndPoints:  25,
		MidRangePoints: 20,
		LowEndPoints:   10,
		ImportantExtensions: []string{
			"EXT_color_buffer_float",
			"EXT_texture_filter_anisotropic",
			"OES_texture_float_linear",
			"WEBGL_compressed_texture_s3tc",
			"wgsl",
		},
		ExtensionPoints: 5,
		VRAMSteps: []Step{
			{Min: 16384, Points: 4096},
			{Min: 8192, Points: 2048},
			{Min: 4096, Points: 1024},
		},
		DefaultVRAMMB:     512,
		MobileKeywords:    []string{"mali", "adreno", "powervr", "videocore", "apple a"},
		HighEndVRAMFactor: 2,
		MobileVRAMFactor:  0.5,
		VRAMPointSteps: []Step{
			{Min: 4096, Points: 15},
			{Min: 2048, Points: 10},
			{Min: 1024, Points: 5},
		},
		SoftwareKeywords: []string{
			"software", "llvmpipe", "lavapipe", "softpipe", "swiftshader", "basic render driver",
		},
		SoftwareMaxScore: 30,
	}
}

// ScoreBreakdown is the per-term contribution to a capability score.
type ScoreBreakdown struct {
	ModernAPI  int
	Texture    int
	Renderer   int
	Extensions int
	VRAM       int
	VRAMMB     int // estimate the VRAM term was computed from

	// Software is set for CPU rasterizers; Total never exceeds SoftwareCap.
	Software    bool
	SoftwareCap int
}

// Total returns the capability score.
func (b ScoreBreakdown) Total() int {
	sum := b.ModernAPI + b.Texture + b.Renderer + b.Extensions + b.VRAM
	if b.Software {
		return min(sum, b.SoftwareCap)
	}
	return sum
}

// String returns a human-readable breakdown.
func (b ScoreBreakdown) String() string {
	sw := ""
	if b.Software {
		sw = fmt.Sprintf(", software cap %d", b.SoftwareCap)
	}
	return fmt.Sprintf("Score[%d = api %d + tex %d + renderer %d + ext %d + vram %d (%d MB)%s]",
		b.Total(), b.ModernAPI, b.Texture, b.Renderer, b.Extensions, b.VRAM, b.VRAMMB, sw)
}

// Score returns the capability score of caps under policy.
// Unsupported capabilities score 0.
func Score(caps Capabilities, policy ScoringPolicy) int {
	return Breakdown(caps, policy).Total()
}

// Breakdown computes each term of the capability score.
func Breakdown(caps Capabilities, policy ScoringPolicy) ScoreBreakdown {
	var b ScoreBreakdown
	if !caps.Supported() {
		return b
	}

	if caps.SupportsModernAPI() {
		b.ModernAPI = policy.ModernAPIPoints
	}
	b.Texture = stepPoints(policy.TextureSteps, caps.MaxTextureSize(), 0)

	renderer := fold(caps.Renderer())
	switch {
	case matchAny(renderer, policy.SoftwareKeywords):
		b.Software = true
		b.SoftwareCap = policy.SoftwareMaxScore
	case matchAny(renderer, policy.HighEndKeywords):
		b.Renderer = policy.HighEndPoints
	case matchAny(renderer, policy.MidRangeKeywords):
		b.Renderer = policy.MidRangePoints
	case matchAny(renderer, policy.LowEndKeywords):
		b.Renderer = policy.LowEndPoints
	}

	matched := 0
	for _, ext := range policy.ImportantExtensions {
		if caps.HasExtension(ext) {
			matched++
		}
	}
	matched = min(matched, len(policy.ImportantExtensions))
	b.Extensions = matched * policy.ExtensionPoints

	b.VRAMMB = EstimateVRAM(caps, policy)
	b.VRAM = stepPoints(policy.VRAMPointSteps, b.VRAMMB, 0)
	return b
}

// EstimateVRAM returns a coarse video memory estimate in megabytes,
// derived from the max texture size and the renderer string.
func EstimateVRAM(caps Capabilities, policy ScoringPolicy) int {
	if !caps.Supported() {
		return 0
	}
	mb := float64(stepPoints(policy.VRAMSteps, caps.MaxTextureSize(), policy.DefaultVRAMMB))

	renderer := fold(caps.Renderer())
	switch {
	case matchAny(renderer, policy.MobileKeywords):
		if policy.MobileVRAMFactor > 0 {
			mb *= policy.MobileVRAMFactor
		}
	case matchAny(renderer, policy.HighEndKeywords):
		if policy.HighEndVRAMFactor > 0 {
			mb *= policy.HighEndVRAMFactor
		}
	}
	return int(mb)
}

// stepPoints returns the points of the first step whose Min is <= v.
func stepPoints(steps []Step, v, otherwise int) int {
	for _, s := range steps {
		if v >= s.Min {
			return s.Points
		}
	}
	return otherwise
}

// fold case-folds s. A Caser is stateful, so each call gets its own.
func fold(s string) string {
	return cases.Fold().String(s)
}

// matchAny reports whether any keyword is a substring of folded.
func matchAny(folded string, keywords []string) bool {
	for _, k := range keywords {
		if k != "" && strings.Contains(folded, fold(k)) {
			return true
		}
	}
	return false
}
