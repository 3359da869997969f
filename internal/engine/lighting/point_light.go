package lighting

import (
	"github.com/Faultbox/vigil/internal/engine/gpu"
	"github.com/Faultbox/vigil/pkg/math"
)

// MaxPointLights is the maximum number of point lights uploaded to the GPU.
const MaxPointLights = 4096

// DefaultRadius is used for lights without a positive radius.
const DefaultRadius = 100

// PointLight is a point light in world space. Light falls off between
// InnerRadius and Radius.
type PointLight struct {
	Position    math.Vec3
	Color       [3]float32 // RGB color (0-1 range)
	Radius      float32
	InnerRadius float32
}

// GPULight is the std430 layout of a point light in the lights buffer.
type GPULight struct {
	PositionAndOuterRadius [4]float32
	ColorAndInnerRadius    [4]float32
}

// GPULightSize is the size of GPULight in bytes.
const GPULightSize = 32

// Sanitize clamps the color to 0-1 and fixes up the radii.
func (l PointLight) Sanitize() PointLight {
	for i := 0; i < 3; i++ {
		if l.Color[i] > 1.0 {
			l.Color[i] = 1.0
		}
		if l.Color[i] < 0.0 {
			l.Color[i] = 0.0
		}
	}

	if l.Radius <= 0 {
		l.Radius = DefaultRadius
	}
	if l.InnerRadius < 0 || l.InnerRadius > l.Radius {
		l.InnerRadius = 0
	}
	return l
}

// Pack returns the GPU representation of l.
func (l PointLight) Pack() GPULight {
	return GPULight{
		PositionAndOuterRadius: [4]float32{l.Position[0], l.Position[1], l.Position[2], l.Radius},
		ColorAndInnerRadius:    [4]float32{l.Color[0], l.Color[1], l.Color[2], l.InnerRadius},
	}
}

// PointLightBuffer collects lights for GPU upload.
type PointLightBuffer struct {
	Lights []PointLight
}

// NewPointLightBuffer creates an empty point light buffer.
func NewPointLightBuffer() *PointLightBuffer {
	return &PointLightBuffer{}
}

// Len returns the number of lights.
func (b *PointLightBuffer) Len() int { return len(b.Lights) }

// Clear removes all lights from the buffer.
func (b *PointLightBuffer) Clear() {
	b.Lights = b.Lights[:0]
}

// AddLight adds a sanitized copy of light to the buffer.
// Returns false if buffer is full.
func (b *PointLightBuffer) AddLight(light PointLight) bool {
	if len(b.Lights) >= MaxPointLights {
		return false
	}
	b.Lights = append(b.Lights, light.Sanitize())
	return true
}

// Bytes returns the packed lights. An empty buffer still yields one zeroed
// light so the GPU buffer is never empty.
func (b *PointLightBuffer) Bytes() []byte {
	packed := make([]GPULight, max(len(b.Lights), 1))
	for i, l := range b.Lights {
		packed[i] = l.Pack()
	}
	return gpu.SliceBytes(packed)
}
