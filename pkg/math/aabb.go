package math

import "github.com/chewxy/math32"

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min Vec3
	Max Vec3
}

// EmptyAABB returns a box that contains nothing; Include grows it.
func EmptyAABB() AABB {
	inf := math32.Inf(1)
	return AABB{
		Min: Vec3{inf, inf, inf},
		Max: Vec3{-inf, -inf, -inf},
	}
}

// Valid reports whether Min <= Max on every axis.
func (b AABB) Valid() bool {
	return b.Min[0] <= b.Max[0] && b.Min[1] <= b.Max[1] && b.Min[2] <= b.Max[2]
}

// Include grows the box to contain p.
func (b *AABB) Include(p Vec3) {
	for i := range 3 {
		b.Min[i] = math32.Min(b.Min[i], p[i])
		b.Max[i] = math32.Max(b.Max[i], p[i])
	}
}

// Center returns the center point of the box.
func (b AABB) Center() Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Corners returns the eight corners of the box.
func (b AABB) Corners() [8]Vec3 {
	return [8]Vec3{
		{b.Min[0], b.Min[1], b.Min[2]},
		{b.Max[0], b.Min[1], b.Min[2]},
		{b.Min[0], b.Max[1], b.Min[2]},
		{b.Max[0], b.Max[1], b.Min[2]},
		{b.Min[0], b.Min[1], b.Max[2]},
		{b.Max[0], b.Min[1], b.Max[2]},
		{b.Min[0], b.Max[1], b.Max[2]},
		{b.Max[0], b.Max[1], b.Max[2]},
	}
}

// Transform returns the world-space box enclosing b transformed by m.
func (b AABB) Transform(m Mat4) AABB {
	out := EmptyAABB()
	for _, c := range b.Corners() {
		out.Include(TransformPoint(m, c))
	}
	return out
}

// Clip-plane indices used by IntersectsClip.
const (
	clipLeft = iota
	clipRight
	clipBottom
	clipTop
	clipNear
	clipFar
)

// IntersectsClip reports whether box b, transformed by m (usually
// viewProj * model), touches the canonical clip volume
// -w <= x, y <= w, 0 <= z <= w.
//
// The test is done in homogeneous coordinates so corners behind the eye are
// handled without a divide. A box is rejected only when all eight corners are
// strictly outside the same plane; points lying on a plane count as inside.
func IntersectsClip(m Mat4, b AABB) bool {
	var outside [6]int
	for _, c := range b.Corners() {
		v := m.Mul4x1(c.Vec4(1))
		x, y, z, w := v[0], v[1], v[2], v[3]
		if x < -w {
			outside[clipLeft]++
		}
		if x > w {
			outside[clipRight]++
		}
		if y < -w {
			outside[clipBottom]++
		}
		if y > w {
			outside[clipTop]++
		}
		if z < 0 {
			outside[clipNear]++
		}
		if z > w {
			outside[clipFar]++
		}
	}
	for _, n := range outside {
		if n == 8 {
			return false
		}
	}
	return true
}
