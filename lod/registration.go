package lod

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/image/math/f64"
)

// Registration errors.
var (
	// ErrEmptyVariantList is returned when a registration has no variants.
	ErrEmptyVariantList = errors.New("lod: empty variant list")

	// ErrUnsortedVariants is returned when variants are not sorted
	// ascending by MaxDistance.
	ErrUnsortedVariants = errors.New("lod: variants not sorted by max distance")

	// ErrEmptyObjectID is returned when a registration has no object ID.
	ErrEmptyObjectID = errors.New("lod: empty object id")

	// ErrInvalidDistance is returned for a negative or NaN MaxDistance.
	ErrInvalidDistance = errors.New("lod: invalid max distance")
)

// Variant is one representation of an object.
type Variant struct {
	// MaxDistance is the farthest camera distance at which the variant is
	// shown. The last variant of a registration matches any distance.
	MaxDistance float64

	// ComplexityCost is the relative render cost, e.g. a triangle count.
	ComplexityCost int

	// Payload is an opaque host handle (mesh, draw list). It is never
	// inspected.
	Payload any
}

// Registration describes a renderable object and its detail variants,
// ordered from most to least detailed.
type Registration struct {
	ObjectID string

	// Anchor is the world-space point distances are measured from.
	Anchor f64.Vec3

	// Radius is the bounding-sphere radius around Anchor used for culling.
	// Zero treats the object as a point.
	Radius float64

	Variants []Variant
}

// validate checks the registration invariants.
func (r *Registration) validate() error {
	if r.ObjectID == "" {
		return ErrEmptyObjectID
	}
	if len(r.Variants) == 0 {
		return fmt.Errorf("%w: object %q", ErrEmptyVariantList, r.ObjectID)
	}
	for i, v := range r.Variants {
		if math.IsNaN(v.MaxDistance) || v.MaxDistance < 0 {
			return fmt.Errorf("%w: object %q variant %d: %v", ErrInvalidDistance, r.ObjectID, i, v.MaxDistance)
		}
		if i > 0 && v.MaxDistance < r.Variants[i-1].MaxDistance {
			return fmt.Errorf("%w: object %q variant %d (%v < %v)",
				ErrUnsortedVariants, r.ObjectID, i, v.MaxDistance, r.Variants[i-1].MaxDistance)
		}
	}
	return nil
}

// RuntimeState is the per-frame result for one object. It is overwritten
// by every Update.
type RuntimeState struct {
	VariantIndex    int
	Visible         bool
	FrustumCulled   bool
	OcclusionCulled bool
}

// Statistics aggregates one Update over the whole registry.
type Statistics struct {
	TotalObjects   int
	VisibleObjects int

	// TotalComplexity is the sum of ComplexityCost over the selected
	// variants of visible objects.
	TotalComplexity int

	FrustumCulledCount   int
	OcclusionCulledCount int

	// VariantSwitches counts objects whose selected variant changed since
	// the previous Update.
	VariantSwitches int

	// ComplexityBudget is the active profile's MaxSceneComplexity.
	ComplexityBudget int

	// OverBudget reports TotalComplexity > ComplexityBudget.
	OverBudget bool
}

// String returns a human-readable summary.
func (s Statistics) String() string {
	return fmt.Sprintf("LOD[objects %d, visible %d, complexity %d/%d, culled %d frustum %d occlusion, switches %d]",
		s.TotalObjects, s.VisibleObjects, s.TotalComplexity, s.ComplexityBudget,
		s.FrustumCulledCount, s.OcclusionCulledCount, s.VariantSwitches)
}
