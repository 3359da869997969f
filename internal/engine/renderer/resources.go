package renderer

import (
	"fmt"
	"math/rand/v2"

	"github.com/Faultbox/vigil/internal/config"
	"github.com/Faultbox/vigil/internal/engine/gpu"
	"github.com/Faultbox/vigil/internal/engine/shadow"
	"github.com/Faultbox/vigil/internal/engine/visibility"
)

// Stages that read the frame set.
const allGraphics = gpu.StVertex | gpu.StTessControl | gpu.StTessEval | gpu.StGeometry | gpu.StFragment

// Binding numbers of the renderer descriptor sets.
const (
	// Frame set, set 0 of every graphics pipeline but the moments pass.
	BindFrameUniforms    = 0
	BindInstanceMatrices = 1

	// Lighting set. The first four are the G-buffer input attachments.
	BindLightNormal   = 0
	BindLightTangent  = 1
	BindLightAlbedo   = 2
	BindLightDepth    = 3
	BindShadowMoments = 4
	BindShadowUBO     = 5
	BindLights        = 6

	// Moments set.
	BindMomentsDepth = 0

	// Fog set.
	BindFogDepth = 0

	// SSAO set.
	BindSSAODepth  = 0
	BindSSAONormal = 1
	BindSSAONoise  = 2
	BindSSAOKernel = 3

	// Tone mapping set.
	BindPostResolved = 0
	BindPostFog      = 1
	BindPostSSAO     = 2
)

// Layouts are the descriptor set and pipeline layouts of the frame graph.
type Layouts struct {
	Visibility *visibility.Layouts

	FrameSet    gpu.DescSetLayout
	LightingSet gpu.DescSetLayout
	MomentsSet  gpu.DescSetLayout
	FogSet      gpu.DescSetLayout
	SSAOSet     gpu.DescSetLayout
	PostSet     gpu.DescSetLayout

	// Geometry is shared by every mesh pipeline variant, Landscape by
	// every landscape and grass variant.
	Geometry  gpu.PipelineLayout
	Landscape gpu.PipelineLayout
	Lighting  gpu.PipelineLayout
	Moments   gpu.PipelineLayout
	Fog       gpu.PipelineLayout
	SSAO      gpu.PipelineLayout
	Tonemap   gpu.PipelineLayout
}

func newLayouts(a *gpu.Arena) (*Layouts, error) {
	l := &Layouts{}
	var err error
	if l.Visibility, err = visibility.NewLayouts(a); err != nil {
		return nil, err
	}

	sampled := func(nr int) gpu.Binding {
		return gpu.Binding{Nr: nr, Type: gpu.DSampledImage, Stages: gpu.StFragment}
	}
	input := func(nr int) gpu.Binding {
		return gpu.Binding{Nr: nr, Type: gpu.DInputAttachment, Stages: gpu.StFragment}
	}
	sets := []struct {
		dst      *gpu.DescSetLayout
		bindings []gpu.Binding
	}{
		{&l.FrameSet, []gpu.Binding{
			{Nr: BindFrameUniforms, Type: gpu.DUniform, Stages: allGraphics},
			{Nr: BindInstanceMatrices, Type: gpu.DStorage, Stages: gpu.StVertex, ReadOnly: true},
		}},
		{&l.LightingSet, []gpu.Binding{
			input(BindLightNormal),
			input(BindLightTangent),
			input(BindLightAlbedo),
			input(BindLightDepth),
			sampled(BindShadowMoments),
			{Nr: BindShadowUBO, Type: gpu.DUniform, Stages: gpu.StFragment},
			{Nr: BindLights, Type: gpu.DStorage, Stages: gpu.StVertex | gpu.StGeometry | gpu.StFragment, ReadOnly: true},
		}},
		{&l.MomentsSet, []gpu.Binding{sampled(BindMomentsDepth)}},
		{&l.FogSet, []gpu.Binding{sampled(BindFogDepth)}},
		{&l.SSAOSet, []gpu.Binding{
			sampled(BindSSAODepth),
			sampled(BindSSAONormal),
			sampled(BindSSAONoise),
			{Nr: BindSSAOKernel, Type: gpu.DUniform, Stages: gpu.StFragment},
		}},
		{&l.PostSet, []gpu.Binding{
			sampled(BindPostResolved),
			sampled(BindPostFog),
			sampled(BindPostSSAO),
		}},
	}
	for _, s := range sets {
		if *s.dst, err = a.NewDescSetLayout(s.bindings); err != nil {
			return nil, err
		}
	}

	pipelines := []struct {
		dst  *gpu.PipelineLayout
		sets []gpu.DescSetLayout
		push int
	}{
		{&l.Geometry, []gpu.DescSetLayout{l.FrameSet, l.Visibility.Visible}, GraphicsPushSize},
		{&l.Landscape, []gpu.DescSetLayout{l.FrameSet, l.Visibility.LandscapeVisible}, GraphicsPushSize},
		{&l.Lighting, []gpu.DescSetLayout{l.FrameSet, l.LightingSet}, GraphicsPushSize},
		{&l.Moments, []gpu.DescSetLayout{l.MomentsSet}, shadow.MomentsPushSize},
		{&l.Fog, []gpu.DescSetLayout{l.FrameSet, l.FogSet}, GraphicsPushSize},
		{&l.SSAO, []gpu.DescSetLayout{l.FrameSet, l.SSAOSet}, GraphicsPushSize},
		{&l.Tonemap, []gpu.DescSetLayout{l.FrameSet, l.PostSet}, GraphicsPushSize},
	}
	for _, p := range pipelines {
		if *p.dst, err = a.NewPipelineLayout(p.sets, p.push); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Passes are the render passes of the frame graph.
type Passes struct {
	Shadow  *shadow.Passes
	GBuffer gpu.RenderPass
	PostFX  gpu.RenderPass
	Present gpu.RenderPass
}

func newPasses(a *gpu.Arena, presentFormat gpu.Format) (*Passes, error) {
	p := &Passes{}
	var err error
	if p.Shadow, err = shadow.NewPasses(a); err != nil {
		return nil, err
	}
	if p.GBuffer, err = newGBufferPass(a); err != nil {
		return nil, err
	}
	if p.PostFX, err = newPostFXPass(a); err != nil {
		return nil, err
	}
	if p.Present, err = newPresentPass(a, presentFormat); err != nil {
		return nil, err
	}
	return p, nil
}

// ResourceManager owns the resources that live as long as the renderer:
// layouts, render passes, samplers, the SSAO kernel and noise, and the
// per-frame uniform buffers. Size dependent resources are rebuilt
// separately.
type ResourceManager struct {
	arena *gpu.Arena

	Layouts *Layouts
	Passes  *Passes

	Linear  gpu.Sampler
	Nearest gpu.Sampler
	Repeat  gpu.Sampler

	SSAOKernel    gpu.Buffer
	SSAONoise     gpu.Image
	SSAONoiseView gpu.ImageView
}

// ssaoSeed makes the SSAO kernel identical from run to run.
const ssaoSeed = 0x5eed

func newResourceManager(dev gpu.Device, cfg config.RenderConfig, presentFormat gpu.Format) (*ResourceManager, error) {
	rm := &ResourceManager{arena: gpu.NewArena(dev)}
	if err := rm.init(cfg, presentFormat); err != nil {
		rm.arena.Destroy()
		return nil, err
	}
	return rm, nil
}

func (rm *ResourceManager) init(cfg config.RenderConfig, presentFormat gpu.Format) error {
	a := rm.arena
	var err error
	if rm.Layouts, err = newLayouts(a); err != nil {
		return fmt.Errorf("layouts: %w", err)
	}
	if rm.Passes, err = newPasses(a, presentFormat); err != nil {
		return fmt.Errorf("render passes: %w", err)
	}
	if rm.Linear, err = a.NewSampler(gpu.SamplerDesc{Filter: gpu.FilterLinear, Addr: gpu.AddrClamp}); err != nil {
		return err
	}
	if rm.Nearest, err = a.NewSampler(gpu.SamplerDesc{Filter: gpu.FilterNearest, Addr: gpu.AddrClamp}); err != nil {
		return err
	}
	if rm.Repeat, err = a.NewSampler(gpu.SamplerDesc{Filter: gpu.FilterNearest, Addr: gpu.AddrRepeat}); err != nil {
		return err
	}

	rng := rand.New(rand.NewPCG(ssaoSeed, ssaoSeed))
	kernel := ssaoKernel(rng, cfg.SSAOKernelSize)
	rm.SSAOKernel, err = a.NewBuffer(gpu.BufferDesc{
		Name:  "ssao kernel",
		Size:  SSAOKernelBufferSize,
		Usage: gpu.UUniform | gpu.UTransferDst,
	})
	if err != nil {
		return err
	}
	if err := a.Device().WriteBuffer(rm.SSAOKernel, 0, gpu.SliceBytes(kernel)); err != nil {
		return fmt.Errorf("uploading ssao kernel: %w", err)
	}

	dim := cfg.SSAONoiseDim
	rm.SSAONoise, err = a.NewImage(gpu.ImageDesc{
		Name:   "ssao noise",
		Format: gpu.RG32f,
		Extent: gpu.Extent2D{Width: dim, Height: dim},
		Usage:  gpu.USampled | gpu.UTransferDst,
	})
	if err != nil {
		return err
	}
	if err := a.Device().WriteImage(rm.SSAONoise, gpu.SliceBytes(ssaoNoise(rng, dim))); err != nil {
		return fmt.Errorf("uploading ssao noise: %w", err)
	}
	rm.SSAONoiseView, err = a.NewView(rm.SSAONoise, 0, 1)
	return err
}

// Destroy releases every resource the manager owns.
func (rm *ResourceManager) Destroy() { rm.arena.Destroy() }
