package shadow

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/vigil/internal/config"
	"github.com/Faultbox/vigil/pkg/math"
)

// MaxCascades is the number of cascades the shadow uniform block holds.
const MaxCascades = config.MaxCascades

// Cascade is one depth slice of the main camera frustum and the light
// matrices that cover it.
type Cascade struct {
	View     math.Mat4
	Proj     math.Mat4
	ViewProj math.Mat4

	// SplitDepth is the far bound of the slice as a view space z value,
	// which is negative in front of the camera.
	SplitDepth float32

	Center math.Vec3
	Radius float32
}

// Planner fits the shadow cascades of a directional light to the main
// camera frustum.
type Planner struct {
	Count      int
	Lambda     float32
	RadiusStep float32

	// Casters bounds every shadow caster. When valid, light near planes are
	// pulled back so casters outside a slice's sphere still reach its map.
	Casters math.AABB
}

// NewPlanner returns a planner configured from the render settings.
func NewPlanner(cfg config.RenderConfig) *Planner {
	return &Planner{
		Count:      cfg.CascadeCount,
		Lambda:     cfg.CascadeSplitLambda,
		RadiusStep: cfg.CascadeRadiusStep,
		Casters:    math.EmptyAABB(),
	}
}

// Splits returns the far bound of every cascade as a fraction of the
// [near, far] clip range. Values increase strictly and the last one is 1.
//
// Each split blends a logarithmic and a uniform distribution by Lambda.
func (p *Planner) Splits(near, far float32) []float32 {
	splits := make([]float32, p.Count)
	span := far - near
	ratio := far / near
	for i := range splits {
		f := float32(i+1) / float32(p.Count)
		log := near * math32.Pow(ratio, f)
		uniform := near + span*f
		d := p.Lambda*(log-uniform) + uniform
		splits[i] = (d - near) / span
	}
	if len(splits) > 0 {
		splits[len(splits)-1] = 1
	}
	return splits
}

// Plan computes the cascades for a camera with inverse view-projection
// invViewProj and clip range [near, far], lit from sunDir.
func (p *Planner) Plan(invViewProj math.Mat4, near, far float32, sunDir math.Vec3) []Cascade {
	corners := math.FrustumCorners(invViewProj)
	dir := sunDirection(sunDir)

	out := make([]Cascade, p.Count)
	var last float32
	for i, split := range p.Splits(near, far) {
		var slice [8]math.Vec3
		for j := range 4 {
			ray := corners[j+4].Sub(corners[j])
			slice[j] = corners[j].Add(ray.Mul(last))
			slice[j+4] = corners[j].Add(ray.Mul(split))
		}
		out[i] = p.fit(slice, dir)
		out[i].SplitDepth = -(near + split*(far-near))
		last = split
	}
	return out
}

// fit builds the light matrices of the sphere around slice.
func (p *Planner) fit(slice [8]math.Vec3, dir math.Vec3) Cascade {
	var center math.Vec3
	for _, c := range slice {
		center = center.Add(c)
	}
	center = center.Mul(1.0 / 8)
	if !finite(center) {
		center = math.Vec3{}
	}

	var radius float32
	for _, c := range slice {
		radius = math32.Max(radius, c.Sub(center).Len())
	}
	radius = p.roundRadius(radius)

	near := casterNear(center, dir, radius, p.Casters)
	view := LightView(center, dir, radius)
	proj := math.Ortho(-radius, radius, -radius, radius, near, 2*radius)
	return Cascade{
		View:     view,
		Proj:     proj,
		ViewProj: proj.Mul4(view),
		Center:   center,
		Radius:   radius,
	}
}

// roundRadius rounds r up to a multiple of the radius step so that the
// projection does not change with every small camera motion. Zero and
// non-finite radii become one step.
func (p *Planner) roundRadius(r float32) float32 {
	step := p.RadiusStep
	if !(step > 0) {
		step = 1
	}
	if !(r > 0) || math32.IsInf(r, 0) {
		return step
	}
	return math32.Ceil(r/step) * step
}
