// Package picking casts rays from the screen into the scene.
package picking

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/vigil/internal/engine/gpu"
	"github.com/Faultbox/vigil/pkg/math"
)

// Ray is a half line with a unit direction.
type Ray struct {
	Origin math.Vec3
	Dir    math.Vec3
}

// At returns the point at distance t along the ray.
func (r Ray) At(t float32) math.Vec3 {
	return r.Origin.Add(r.Dir.Mul(t))
}

// ScreenToRay converts pixel coordinates to a world-space ray starting on the
// near plane. invViewProj is the inverse of a zero-to-one depth view
// projection.
func ScreenToRay(x, y float32, viewport gpu.Extent2D, invViewProj math.Mat4) Ray {
	ndcX := 2*x/float32(viewport.Width) - 1
	ndcY := 1 - 2*y/float32(viewport.Height) // Flip Y

	near := math.Unproject(invViewProj, math.Vec3{ndcX, ndcY, 0})
	far := math.Unproject(invViewProj, math.Vec3{ndcX, ndcY, 1})

	dir := far.Sub(near)
	if l := dir.Len(); l > 0 {
		dir = dir.Mul(1 / l)
	}
	return Ray{Origin: near, Dir: dir}
}

// IntersectPlaneY intersects the ray with the horizontal plane at height y.
func (r Ray) IntersectPlaneY(y float32) (t float32, ok bool) {
	if math32.Abs(r.Dir[1]) < 1e-6 {
		return 0, false
	}
	t = (y - r.Origin[1]) / r.Dir[1]
	return t, t >= 0
}

// IntersectAABB returns the distance to the first intersection with box.
// A ray starting inside the box hits it at its exit point.
func (r Ray) IntersectAABB(box math.AABB) (t float32, hit bool) {
	tmin := math32.Inf(-1)
	tmax := math32.Inf(1)

	for i := range 3 {
		if r.Dir[i] == 0 {
			if r.Origin[i] < box.Min[i] || r.Origin[i] > box.Max[i] {
				return 0, false
			}
			continue
		}
		t1 := (box.Min[i] - r.Origin[i]) / r.Dir[i]
		t2 := (box.Max[i] - r.Origin[i]) / r.Dir[i]
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = math32.Max(tmin, t1)
		tmax = math32.Min(tmax, t2)
	}

	if tmax < tmin || tmax < 0 {
		return 0, false
	}
	if tmin < 0 {
		return tmax, true
	}
	return tmin, true
}
