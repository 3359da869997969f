// Package math provides the float32 linear algebra shared by the renderer.
//
// Matrices are column-major (mgl32 layout). Projections built here map view
// depth to [0, 1], so the canonical clip volume is -w <= x, y <= w and
// 0 <= z <= w.
package math

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Aliases keep call sites short and let every package share mgl32 types.
type (
	Vec2 = mgl32.Vec2
	Vec3 = mgl32.Vec3
	Vec4 = mgl32.Vec4
	Mat4 = mgl32.Mat4
)

// Identity returns an identity matrix.
func Identity() Mat4 {
	return mgl32.Ident4()
}

// Perspective returns a right-handed perspective projection with depth in [0, 1].
// fovY is in radians, aspect is width/height.
func Perspective(fovY, aspect, near, far float32) Mat4 {
	f := 1 / math32.Tan(fovY/2)
	nf := 1 / (near - far)

	return Mat4{
		f / aspect, 0, 0, 0,
		0, f, 0, 0,
		0, 0, far * nf, -1,
		0, 0, near * far * nf, 0,
	}
}

// Ortho returns a right-handed orthographic projection with depth in [0, 1].
func Ortho(left, right, bottom, top, near, far float32) Mat4 {
	rl := 1 / (right - left)
	tb := 1 / (top - bottom)
	fn := 1 / (far - near)

	return Mat4{
		2 * rl, 0, 0, 0,
		0, 2 * tb, 0, 0,
		0, 0, -fn, 0,
		-(right + left) * rl, -(top + bottom) * tb, -near * fn, 1,
	}
}

// LookAt returns a view matrix looking from eye to center.
func LookAt(eye, center, up Vec3) Mat4 {
	return mgl32.LookAtV(eye, center, up)
}

// Translate returns a translation matrix.
func Translate(x, y, z float32) Mat4 {
	return mgl32.Translate3D(x, y, z)
}

// Scale returns a scale matrix.
func Scale(x, y, z float32) Mat4 {
	return mgl32.Scale3D(x, y, z)
}

// RotateY returns a rotation around the Y axis, angle in radians.
func RotateY(angle float32) Mat4 {
	return mgl32.HomogRotate3DY(angle)
}

// TransformPoint transforms p by m and performs the perspective divide.
func TransformPoint(m Mat4, p Vec3) Vec3 {
	v := m.Mul4x1(p.Vec4(1))
	if v[3] != 0 && v[3] != 1 {
		return v.Vec3().Mul(1 / v[3])
	}
	return v.Vec3()
}

// Unproject maps a normalized device coordinate back through inverse
// view-projection inv.
func Unproject(inv Mat4, ndc Vec3) Vec3 {
	return TransformPoint(inv, ndc)
}

// NDCCorners are the eight corners of the canonical clip volume after the
// perspective divide, near plane first.
var NDCCorners = [8]Vec3{
	{-1, 1, 0},
	{1, 1, 0},
	{1, -1, 0},
	{-1, -1, 0},
	{-1, 1, 1},
	{1, 1, 1},
	{1, -1, 1},
	{-1, -1, 1},
}

// FrustumCorners unprojects NDCCorners through inv, the inverse of a
// view-projection matrix. Index i+4 is the far counterpart of near corner i.
func FrustumCorners(inv Mat4) [8]Vec3 {
	var out [8]Vec3
	for i, c := range NDCCorners {
		out[i] = Unproject(inv, c)
	}
	return out
}
