package renderer

import (
	"fmt"

	"github.com/Faultbox/vigil/internal/config"
	"github.com/Faultbox/vigil/internal/engine/gpu"
	"github.com/Faultbox/vigil/internal/engine/scene"
	"github.com/Faultbox/vigil/internal/engine/shadow"
)

// frameData is the state of one frame in flight.
type frameData struct {
	cmd    gpu.CmdBuffer
	fence  gpu.Fence
	frame  gpu.Buffer
	shadow gpu.Buffer
}

func newFrameData(a *gpu.Arena, i int) (*frameData, error) {
	f := &frameData{}
	var err error
	if f.cmd, err = a.NewCmdBuffer(); err != nil {
		return nil, err
	}
	if f.fence, err = a.NewFence(true); err != nil {
		return nil, err
	}
	f.frame, err = a.NewBuffer(gpu.BufferDesc{
		Name:        fmt.Sprintf("frame %d uniforms", i),
		Size:        FrameUniformsSize,
		Usage:       gpu.UUniform,
		HostVisible: true,
	})
	if err != nil {
		return nil, err
	}
	f.shadow, err = a.NewBuffer(gpu.BufferDesc{
		Name:        fmt.Sprintf("frame %d shadow uniforms", i),
		Size:        shadow.UniformsSize,
		Usage:       gpu.UUniform,
		HostVisible: true,
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// targets is one size generation: every resource whose shape depends on the
// swapchain extent, the shadow settings or the loaded scene. A generation is
// destroyed as a whole and rebuilt when any of them changes.
type targets struct {
	arena *gpu.Arena

	extent       gpu.Extent2D
	postfxExtent gpu.Extent2D

	gbuffer      [gbufferAttachments]gpu.Image
	gbufferViews [gbufferAttachments]gpu.ImageView
	gbufferFB    gpu.Framebuffer

	postfx      [postfxAttachments]gpu.Image
	postfxViews [postfxAttachments]gpu.ImageView
	postfxFB    gpu.Framebuffer

	shadow *shadow.Maps

	// present has one framebuffer per swapchain image.
	present []gpu.Framebuffer

	momentsSets []gpu.DescSet
	fogSet      gpu.DescSet
	ssaoSet     gpu.DescSet
	postSet     gpu.DescSet

	// Indexed by frame in flight.
	frameSets    []gpu.DescSet
	lightingSets []gpu.DescSet
}

func (t *targets) destroy() { t.arena.Destroy() }

// newTargets builds a generation for the current swapchain.
func newTargets(dev gpu.Device, rm *ResourceManager, cfg config.RenderConfig, sc gpu.Swapchain, sg *scene.GPU, frames []*frameData) (*targets, error) {
	t := &targets{arena: gpu.NewArena(dev)}
	if err := t.build(rm, cfg, sc, sg, frames); err != nil {
		t.arena.Destroy()
		return nil, err
	}
	return t, nil
}

func (t *targets) build(rm *ResourceManager, cfg config.RenderConfig, sc gpu.Swapchain, sg *scene.GPU, frames []*frameData) error {
	a := t.arena
	p := rm.Passes
	t.extent = sc.Extent()
	t.postfxExtent = t.extent.Scale(cfg.PostFXDownscale)

	gbufferNames := [gbufferAttachments]string{"gbuffer normal", "gbuffer tangent", "gbuffer albedo", "gbuffer depth", "resolved"}
	for i, f := range gbufferFormats {
		usage := gpu.UColorTarget
		if f.IsDepth() {
			usage = gpu.UDepthTarget
		}
		img, err := a.NewImage(gpu.ImageDesc{
			Name:   gbufferNames[i],
			Format: f,
			Extent: t.extent,
			Usage:  usage | gpu.UInputAttachment | gpu.USampled,
		})
		if err != nil {
			return fmt.Errorf("creating %s: %w", gbufferNames[i], err)
		}
		if t.gbufferViews[i], err = a.NewView(img, 0, 1); err != nil {
			return err
		}
		t.gbuffer[i] = img
	}
	var err error
	if t.gbufferFB, err = a.NewFramebuffer(p.GBuffer, t.gbufferViews[:], t.extent); err != nil {
		return fmt.Errorf("gbuffer framebuffer: %w", err)
	}

	postfxNames := [postfxAttachments]string{"fog", "ssao"}
	for i, f := range postfxFormats {
		img, err := a.NewImage(gpu.ImageDesc{
			Name:   postfxNames[i],
			Format: f,
			Extent: t.postfxExtent,
			Usage:  gpu.UColorTarget | gpu.USampled,
		})
		if err != nil {
			return fmt.Errorf("creating %s target: %w", postfxNames[i], err)
		}
		if t.postfxViews[i], err = a.NewView(img, 0, 1); err != nil {
			return err
		}
		t.postfx[i] = img
	}
	if t.postfxFB, err = a.NewFramebuffer(p.PostFX, t.postfxViews[:], t.postfxExtent); err != nil {
		return fmt.Errorf("postfx framebuffer: %w", err)
	}

	if t.shadow, err = shadow.NewMaps(a, p.Shadow, cfg.ShadowMapResolution, cfg.CascadeCount); err != nil {
		return err
	}

	for i, v := range sc.Views() {
		fb, err := a.NewFramebuffer(p.Present, []gpu.ImageView{v}, t.extent)
		if err != nil {
			return fmt.Errorf("present framebuffer %d: %w", i, err)
		}
		t.present = append(t.present, fb)
	}

	return t.writeSets(rm, sg, frames)
}

func (t *targets) writeSets(rm *ResourceManager, sg *scene.GPU, frames []*frameData) error {
	a := t.arena
	l := rm.Layouts

	for _, layer := range t.shadow.DepthLayers {
		set, err := a.NewDescSet(l.MomentsSet)
		if err != nil {
			return err
		}
		set.SetImage(BindMomentsDepth, layer, rm.Nearest)
		t.momentsSets = append(t.momentsSets, set)
	}

	depth := t.gbufferViews[GBufferDepth]
	var err error
	if t.fogSet, err = a.NewDescSet(l.FogSet); err != nil {
		return err
	}
	t.fogSet.SetImage(BindFogDepth, depth, rm.Nearest)

	if t.ssaoSet, err = a.NewDescSet(l.SSAOSet); err != nil {
		return err
	}
	t.ssaoSet.SetImage(BindSSAODepth, depth, rm.Nearest)
	t.ssaoSet.SetImage(BindSSAONormal, t.gbufferViews[GBufferNormal], rm.Nearest)
	t.ssaoSet.SetImage(BindSSAONoise, rm.SSAONoiseView, rm.Repeat)
	t.ssaoSet.SetBuffer(BindSSAOKernel, rm.SSAOKernel, 0, 0)

	if t.postSet, err = a.NewDescSet(l.PostSet); err != nil {
		return err
	}
	t.postSet.SetImage(BindPostResolved, t.gbufferViews[GBufferResolved], rm.Linear)
	t.postSet.SetImage(BindPostFog, t.postfxViews[PostFXFog], rm.Linear)
	t.postSet.SetImage(BindPostSSAO, t.postfxViews[PostFXSSAO], rm.Linear)

	for _, f := range frames {
		fs, err := a.NewDescSet(l.FrameSet)
		if err != nil {
			return err
		}
		fs.SetBuffer(BindFrameUniforms, f.frame, 0, 0)
		fs.SetBuffer(BindInstanceMatrices, sg.InstanceMatrices, 0, 0)

		ls, err := a.NewDescSet(l.LightingSet)
		if err != nil {
			return err
		}
		ls.SetImage(BindLightNormal, t.gbufferViews[GBufferNormal], nil)
		ls.SetImage(BindLightTangent, t.gbufferViews[GBufferTangent], nil)
		ls.SetImage(BindLightAlbedo, t.gbufferViews[GBufferAlbedo], nil)
		ls.SetImage(BindLightDepth, depth, nil)
		ls.SetImage(BindShadowMoments, t.shadow.MomentsArray, rm.Linear)
		ls.SetBuffer(BindShadowUBO, f.shadow, 0, 0)
		ls.SetBuffer(BindLights, sg.Lights, 0, 0)

		t.frameSets = append(t.frameSets, fs)
		t.lightingSets = append(t.lightingSets, ls)
	}
	return nil
}
