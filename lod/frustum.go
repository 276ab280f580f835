package lod

import (
	"math"

	"golang.org/x/image/math/f64"
)

// plane is a normalized plane n·p + d = 0 with the normal pointing inside.
type plane struct {
	n f64.Vec3
	d float64
}

func (p plane) distance(v f64.Vec3) float64 {
	return p.n[0]*v[0] + p.n[1]*v[1] + p.n[2]*v[2] + p.d
}

// Frustum is a camera view volume bounded by six planes.
type Frustum struct {
	planes [6]plane
}

// FrustumFromMatrix extracts the view frustum from a row-major
// view-projection matrix that maps column vectors to clip space
// (clip = m * [x y z 1]), with clip-space depth in [-w, w].
func FrustumFromMatrix(m f64.Mat4) *Frustum {
	row := func(i int) [4]float64 {
		return [4]float64{m[4*i], m[4*i+1], m[4*i+2], m[4*i+3]}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)

	combine := func(a [4]float64, b [4]float64, sign float64) plane {
		n := f64.Vec3{a[0] + sign*b[0], a[1] + sign*b[1], a[2] + sign*b[2]}
		d := a[3] + sign*b[3]
		l := math.Sqrt(n[0]*n[0] + n[1]*n[1] + n[2]*n[2])
		if l == 0 {
			return plane{d: d}
		}
		return plane{n: f64.Vec3{n[0] / l, n[1] / l, n[2] / l}, d: d / l}
	}

	return &Frustum{planes: [6]plane{
		combine(r3, r0, +1), // left
		combine(r3, r0, -1), // right
		combine(r3, r1, +1), // bottom
		combine(r3, r1, -1), // top
		combine(r3, r2, +1), // near
		combine(r3, r2, -1), // far
	}}
}

// IntersectsSphere reports whether any part of the sphere lies inside the
// frustum. A nil frustum contains everything.
func (f *Frustum) IntersectsSphere(center f64.Vec3, radius float64) bool {
	if f == nil {
		return true
	}
	for _, p := range f.planes {
		if p.distance(center) < -radius {
			return false
		}
	}
	return true
}

// Orthographic returns a row-major orthographic projection matrix for the
// box [left,right]x[bottom,top]x[-near,-far] looking down -Z.
// It is mostly useful for tests and headless hosts.
func Orthographic(left, right, bottom, top, near, far float64) f64.Mat4 {
	return f64.Mat4{
		2 / (right - left), 0, 0, -(right + left) / (right - left),
		0, 2 / (top - bottom), 0, -(top + bottom) / (top - bottom),
		0, 0, -2 / (far - near), -(far + near) / (far - near),
		0, 0, 0, 1,
	}
}

func distance(a, b f64.Vec3) float64 {
	dx, dy, dz := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
