// Package shadow plans the cascaded shadow maps of the sun and owns their
// render targets.
//
// Every cascade renders depth into one layer of a depth array, then a
// fullscreen pass turns that layer into filtered depth moments for variance
// shadow mapping. Lighting samples the moments array.
package shadow

import (
	"fmt"

	"github.com/Faultbox/vigil/internal/engine/gpu"
	"github.com/Faultbox/vigil/pkg/math"
)

// Target formats.
const (
	DepthFormat   = gpu.D32f
	MomentsFormat = gpu.RG32f
)

// Shader names of the moments pass.
const (
	MomentsVertexShader   = "fullscreen.vert"
	MomentsFragmentShader = "vsm.frag"
)

// Passes are the render passes of one cascade.
type Passes struct {
	Depth   gpu.RenderPass
	Moments gpu.RenderPass
}

// NewPasses creates the shadow render passes. Both leave their target ready
// for sampling by the next stage.
func NewPasses(a *gpu.Arena) (*Passes, error) {
	depth, err := a.NewRenderPass(gpu.RenderPassDesc{
		Name: "shadow depth",
		Attachments: []gpu.Attachment{
			{Format: DepthFormat, Load: gpu.LoadClear, Store: gpu.StoreStore, Final: gpu.LShaderRead},
		},
		Subpasses: []gpu.Subpass{{Depth: 0}},
		Dependencies: []gpu.Dependency{{
			Src:       0,
			Dst:       gpu.External,
			SrcSync:   gpu.SEarlyFragmentTests | gpu.SLateFragmentTests,
			DstSync:   gpu.SFragmentShader,
			SrcAccess: gpu.ADepthWrite,
			DstAccess: gpu.AShaderRead,
		}},
	})
	if err != nil {
		return nil, err
	}
	moments, err := a.NewRenderPass(gpu.RenderPassDesc{
		Name: "shadow moments",
		Attachments: []gpu.Attachment{
			{Format: MomentsFormat, Load: gpu.LoadDontCare, Store: gpu.StoreStore, Final: gpu.LShaderRead},
		},
		Subpasses: []gpu.Subpass{{Color: []int{0}, Depth: gpu.Unused}},
		Dependencies: []gpu.Dependency{{
			Src:       0,
			Dst:       gpu.External,
			SrcSync:   gpu.SColorOutput,
			DstSync:   gpu.SFragmentShader,
			SrcAccess: gpu.AColorWrite,
			DstAccess: gpu.AShaderRead,
		}},
	})
	if err != nil {
		return nil, err
	}
	return &Passes{Depth: depth, Moments: moments}, nil
}

// Maps are the shadow render targets of every cascade.
type Maps struct {
	Resolution int

	Depth   gpu.Image
	Moments gpu.Image

	// DepthLayers are rendered by the depth pass and read by the moments
	// pass, one per cascade.
	DepthLayers   []gpu.ImageView
	MomentsLayers []gpu.ImageView
	// MomentsArray covers every cascade and is sampled by lighting.
	MomentsArray gpu.ImageView

	DepthTargets   []gpu.Framebuffer
	MomentsTargets []gpu.Framebuffer
}

// NewMaps creates square targets of the given resolution for cascades
// cascades in arena a.
func NewMaps(a *gpu.Arena, p *Passes, resolution, cascades int) (*Maps, error) {
	if cascades <= 0 || cascades > MaxCascades {
		return nil, fmt.Errorf("shadow: %d cascades, want 1 to %d", cascades, MaxCascades)
	}
	m := &Maps{Resolution: resolution}
	extent := m.Extent()

	var err error
	m.Depth, err = a.NewImage(gpu.ImageDesc{
		Name:   "shadow depth",
		Format: DepthFormat,
		Extent: extent,
		Layers: cascades,
		Usage:  gpu.UDepthTarget | gpu.USampled,
	})
	if err != nil {
		return nil, err
	}
	m.Moments, err = a.NewImage(gpu.ImageDesc{
		Name:   "shadow moments",
		Format: MomentsFormat,
		Extent: extent,
		Layers: cascades,
		Usage:  gpu.UColorTarget | gpu.USampled,
	})
	if err != nil {
		return nil, err
	}
	if m.MomentsArray, err = a.NewView(m.Moments, 0, cascades); err != nil {
		return nil, err
	}

	for i := range cascades {
		dv, err := a.NewView(m.Depth, i, 1)
		if err != nil {
			return nil, err
		}
		mv, err := a.NewView(m.Moments, i, 1)
		if err != nil {
			return nil, err
		}
		dfb, err := a.NewFramebuffer(p.Depth, []gpu.ImageView{dv}, extent)
		if err != nil {
			return nil, err
		}
		mfb, err := a.NewFramebuffer(p.Moments, []gpu.ImageView{mv}, extent)
		if err != nil {
			return nil, err
		}
		m.DepthLayers = append(m.DepthLayers, dv)
		m.MomentsLayers = append(m.MomentsLayers, mv)
		m.DepthTargets = append(m.DepthTargets, dfb)
		m.MomentsTargets = append(m.MomentsTargets, mfb)
	}
	return m, nil
}

// Extent returns the size of every cascade layer.
func (m *Maps) Extent() gpu.Extent2D {
	return gpu.Extent2D{Width: m.Resolution, Height: m.Resolution}
}

// Cascades returns the number of layers.
func (m *Maps) Cascades() int { return len(m.DepthLayers) }

// MomentsPush is the push constant block of the moments pass.
type MomentsPush struct {
	Radius uint32
	_      [3]uint32
}

// MomentsPushSize is the size of MomentsPush in bytes.
const MomentsPushSize = 16

// Uniforms is the std140 shadow uniform block read by the sun light.
type Uniforms struct {
	ViewProj [MaxCascades]math.Mat4
	// Splits packs the split depths four to a vec4.
	Splits [MaxCascades / 4][4]float32
	Count  uint32
	_      [3]uint32
}

// UniformsSize is the size of Uniforms in bytes.
const UniformsSize = 560

// NewUniforms packs cascades into the uniform block layout.
func NewUniforms(cascades []Cascade) Uniforms {
	var u Uniforms
	n := min(len(cascades), MaxCascades)
	for i := range n {
		u.ViewProj[i] = cascades[i].ViewProj
		u.Splits[i/4][i%4] = cascades[i].SplitDepth
	}
	u.Count = uint32(n)
	return u
}

// SplitDepth returns the packed split depth of cascade i.
func (u *Uniforms) SplitDepth(i int) float32 { return u.Splits[i/4][i%4] }
