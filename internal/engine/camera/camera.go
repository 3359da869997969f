// Package camera provides the observer pose used for the main view.
package camera

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/vigil/pkg/math"
)

// Camera is a look-at camera pose with a perspective lens.
type Camera struct {
	Pos    math.Vec3
	LookAt math.Vec3
	Up     math.Vec3

	// FovY is the vertical field of view in degrees.
	FovY float32
	Near float32
	Far  float32

	// TargetDist is how far ahead of Pos LookAt is kept while turning.
	TargetDist float32
}

// Default returns the camera used when a scene has none.
func Default() Camera {
	return Camera{
		Pos:        math.Vec3{0, 0, 15},
		LookAt:     math.Vec3{0, 0, 0},
		Up:         math.Vec3{0, 1, 0},
		FovY:       60,
		Near:       0.1,
		Far:        1000,
		TargetDist: 100,
	}
}

// Forward returns the unit view direction.
func (c *Camera) Forward() math.Vec3 {
	return c.LookAt.Sub(c.Pos).Normalize()
}

// Right returns the unit right vector.
func (c *Camera) Right() math.Vec3 {
	return c.Forward().Cross(c.Up).Normalize()
}

// View returns the world-to-view matrix.
func (c *Camera) View() math.Mat4 {
	return math.LookAt(c.Pos, c.LookAt, c.Up)
}

// Proj returns the projection for the given aspect ratio (width/height),
// mapping depth to [0, 1].
func (c *Camera) Proj(aspect float32) math.Mat4 {
	return math.Perspective(mgl32.DegToRad(c.FovY), aspect, c.Near, c.Far)
}

// ViewProj returns Proj(aspect) * View().
func (c *Camera) ViewProj(aspect float32) math.Mat4 {
	return c.Proj(aspect).Mul4(c.View())
}

// OffsetOrientation pitches the camera by upAngle and yaws it around world Y
// by rightAngle, both in degrees.
func (c *Camera) OffsetOrientation(upAngle, rightAngle float32) {
	if upAngle != 0 {
		a := -mgl32.DegToRad(upAngle)
		dir := c.Forward().Mul(math32.Cos(a)).Add(c.Up.Mul(math32.Sin(a))).Normalize()
		c.Up = c.Right().Cross(dir).Normalize()
		c.LookAt = c.Pos.Add(dir.Mul(c.TargetDist))
	}
	if rightAngle != 0 {
		rot := mgl32.Rotate3DY(-mgl32.DegToRad(rightAngle))
		dir := rot.Mul3x1(c.Forward()).Normalize()
		c.Up = rot.Mul3x1(c.Up).Normalize()
		c.LookAt = c.Pos.Add(dir.Mul(c.TargetDist))
	}
}

// OffsetPosition moves the camera and its target by d.
func (c *Camera) OffsetPosition(d math.Vec3) {
	c.Pos = c.Pos.Add(d)
	c.LookAt = c.LookAt.Add(d)
}

// FlyController maps mouse and keyboard input to camera motion.
type FlyController struct {
	// Speed is in world units per second.
	Speed float32
	// Sensitivity is degrees per pixel of mouse drag.
	Sensitivity float32
	// Boost multiplies Speed while held.
	Boost float32
}

// NewFlyController returns a controller with default settings.
func NewFlyController() *FlyController {
	return &FlyController{
		Speed:       10,
		Sensitivity: 0.1,
		Boost:       10,
	}
}

// HandleDrag turns the camera by a mouse drag in pixels.
func (f *FlyController) HandleDrag(c *Camera, deltaX, deltaY float32) {
	c.OffsetOrientation(deltaY*f.Sensitivity, deltaX*f.Sensitivity)
}

// HandleMovement moves the camera along its own axes. forward, right and up
// are in [-1, 1]; dt is the frame time in seconds.
func (f *FlyController) HandleMovement(c *Camera, forward, right, up, dt float32, boost bool) {
	speed := f.Speed * dt
	if boost {
		speed *= f.Boost
	}
	d := c.Forward().Mul(forward).Add(c.Right().Mul(right)).Add(c.Up.Mul(up))
	if d.Len() == 0 {
		return
	}
	c.OffsetPosition(d.Mul(speed))
}
