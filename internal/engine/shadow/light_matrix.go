package shadow

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/vigil/pkg/math"
)

// LightView returns the view matrix of a directional light looking at
// center from distance units towards the sun. sunDir points to the sun and
// need not be normalized; a zero direction is treated as straight up.
func LightView(center, sunDir math.Vec3, distance float32) math.Mat4 {
	dir := sunDirection(sunDir)
	eye := center.Add(dir.Mul(distance))
	return math.LookAt(eye, center, lightUp(dir))
}

// sunDirection normalizes d, falling back to +Y for degenerate input.
func sunDirection(d math.Vec3) math.Vec3 {
	l := d.Len()
	if !(l > 0) || math32.IsInf(l, 0) {
		return math.Vec3{0, 1, 0}
	}
	return d.Mul(1 / l)
}

// lightUp picks an up vector that is not parallel to the light direction.
func lightUp(dir math.Vec3) math.Vec3 {
	if math32.Abs(dir[1]) > 0.99 {
		return math.Vec3{0, 0, 1}
	}
	return math.Vec3{0, 1, 0}
}

// casterNear returns the near plane distance of a light view placed radius
// units from center that still contains every corner of bounds. It is zero
// when nothing in bounds lies behind the light.
func casterNear(center, dir math.Vec3, radius float32, bounds math.AABB) float32 {
	if !bounds.Valid() {
		return 0
	}
	var near float32
	for _, c := range bounds.Corners() {
		near = math32.Min(near, radius-c.Sub(center).Dot(dir))
	}
	return near
}

func finite(v math.Vec3) bool {
	for _, x := range v {
		if math32.IsNaN(x) || math32.IsInf(x, 0) {
			return false
		}
	}
	return true
}
