package renderer

import (
	"math/rand/v2"

	"github.com/chewxy/math32"

	"github.com/Faultbox/vigil/internal/config"
	"github.com/Faultbox/vigil/pkg/math"
)

// GraphicsPush is the push constant block of every graphics pipeline
// except the moments pass.
type GraphicsPush struct {
	Proj math.Mat4
	View math.Mat4
}

// GraphicsPushSize is the size of GraphicsPush in bytes.
const GraphicsPushSize = 128

// FrameUniforms is the std140 frame uniform block.
type FrameUniforms struct {
	BaseColor   [3]float32
	Time        float32
	SunPosition [3]float32
	Exposure    float32

	ScreenWidth     float32
	ScreenHeight    float32
	PostFXDownscale uint32
	Tonemapping     uint32

	LandscapeShadows uint32
	SSAO             uint32
	SSAORadius       float32
	SSAOKernelSize   uint32
}

// FrameUniformsSize is the size of FrameUniforms in bytes.
const FrameUniformsSize = 64

// Tone mapping operators.
const (
	TonemapNone = iota
	TonemapReinhard
	TonemapACES
)

// Exposure limits for runtime adjustment.
const (
	minExposure = 0.05
	maxExposure = 16
)

// SSAOKernelBufferSize is the size of the kernel uniform block: one vec4
// per sample up to the configurable maximum.
const SSAOKernelBufferSize = 16 * config.MaxSSAOKernel

func boolWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// ssaoKernel returns size hemisphere samples around +Z, packed as vec4.
// Samples cluster towards the origin.
func ssaoKernel(rng *rand.Rand, size int) [][4]float32 {
	out := make([][4]float32, size)
	for i := range out {
		v := math.Vec3{
			rng.Float32()*2 - 1,
			rng.Float32()*2 - 1,
			rng.Float32(),
		}
		if v.Len() == 0 {
			v = math.Vec3{0, 0, 1}
		}
		v = v.Normalize().Mul(rng.Float32())

		scale := float32(i) / float32(size)
		v = v.Mul(lerp(0.1, 1, scale*scale))
		out[i] = [4]float32{v[0], v[1], v[2], 0}
	}
	return out
}

// ssaoNoise returns dim*dim random rotation vectors in [-1, 1]^2.
func ssaoNoise(rng *rand.Rand, dim int) [][2]float32 {
	out := make([][2]float32, dim*dim)
	for i := range out {
		out[i] = [2]float32{rng.Float32()*2 - 1, rng.Float32()*2 - 1}
	}
	return out
}

func lerp(a, b, t float32) float32 { return a + t*(b-a) }

// aspect returns width/height, or 1 for a degenerate extent.
func aspect(w, h int) float32 {
	if w <= 0 || h <= 0 {
		return 1
	}
	return float32(w) / float32(h)
}

// clampAngle keeps the sun between the horizons.
func clampAngle(a float32) float32 {
	return math32.Max(0, math32.Min(math32.Pi, a))
}
