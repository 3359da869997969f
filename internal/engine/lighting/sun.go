// Package lighting provides the sun and point light data the lighting
// resolve consumes.
package lighting

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/vigil/pkg/math"
)

// SunDistance is how far from the origin the sun is placed. Cascade
// planning only uses the direction; shaders use the position for the
// global light.
const SunDistance = 10000

// SunPosition converts the sun angle (radians above the horizon, rotating
// in the YZ plane) to a world position.
func SunPosition(angle float32) math.Vec3 {
	return math.Vec3{0, math32.Sin(angle), math32.Cos(angle)}.Mul(SunDistance)
}

// SunDirection returns the normalized direction from the origin towards the
// sun.
func SunDirection(angle float32) math.Vec3 {
	return math.Vec3{0, math32.Sin(angle), math32.Cos(angle)}
}
