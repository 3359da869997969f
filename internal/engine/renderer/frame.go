package renderer

import (
	"fmt"

	"github.com/Faultbox/vigil/internal/engine/gpu"
	"github.com/Faultbox/vigil/internal/engine/shadow"
	"github.com/Faultbox/vigil/internal/engine/visibility"
	"github.com/Faultbox/vigil/pkg/math"
)

// frameParams is everything the recording of one frame depends on besides
// the renderer's resources.
type frameParams struct {
	camera   GraphicsPush
	viewProj math.Mat4
	cascades []shadow.Cascade

	wireframe        bool
	ssao             bool
	landscapeShadows bool
	blurRadius       uint32

	// frame selects the per-frame descriptor sets, image the swapchain
	// framebuffer.
	frame int
	image int
}

// geometryDraw is one geometry recording: which observer, with which
// camera and which pipeline variants.
type geometryDraw struct {
	ctx        *visibility.Context
	push       GraphicsPush
	frameSet   gpu.DescSet
	depthOnly  bool
	wireframe  bool
	landscapes bool
}

// recordFrame records the whole frame graph into cb:
// shadow cascades, main culling, G-buffer with lighting, post effects and
// tone mapping.
func (r *Renderer) recordFrame(cb gpu.CmdBuffer, p *frameParams) error {
	if err := cb.Reset(); err != nil {
		return err
	}
	if err := cb.Begin(); err != nil {
		return err
	}

	for i := range p.cascades {
		r.recordCascade(cb, p, i)
	}

	ctx := r.vis.Main()
	cb.BeginRegion("main culling")
	r.vis.RecordCulling(cb, r.pipelines.Culling, ctx, p.viewProj)
	if r.scene.LandscapeNum() > 0 {
		r.vis.RecordLandscapeCulling(cb, r.pipelines.Culling, ctx, p.viewProj)
	}
	cb.EndRegion()

	r.recordGBuffer(cb, p)
	r.recordPostFX(cb, p)
	r.recordPresent(cb, p)

	if err := cb.End(); err != nil {
		return fmt.Errorf("recording frame: %w", err)
	}
	return nil
}

// recordCascade culls for cascade i, renders its depth and derives the
// moments the lighting samples.
func (r *Renderer) recordCascade(cb gpu.CmdBuffer, p *frameParams, i int) {
	c := &p.cascades[i]
	ctx := r.vis.Cascade(i)
	t := r.targets

	cb.BeginRegion(fmt.Sprintf("shadow cascade %d", i))
	defer cb.EndRegion()

	r.vis.RecordCulling(cb, r.pipelines.Culling, ctx, c.ViewProj)
	if p.landscapeShadows && r.scene.LandscapeNum() > 0 {
		r.vis.RecordLandscapeCulling(cb, r.pipelines.Culling, ctx, c.ViewProj)
	}

	extent := t.shadow.Extent()
	cb.BeginPass(r.rm.Passes.Shadow.Depth, t.shadow.DepthTargets[i], []gpu.ClearValue{{Depth: 1}})
	setViewport(cb, extent)
	r.recordGeometry(cb, geometryDraw{
		ctx:        ctx,
		push:       GraphicsPush{Proj: c.Proj, View: c.View},
		frameSet:   t.frameSets[p.frame],
		depthOnly:  true,
		landscapes: p.landscapeShadows,
	})
	cb.EndPass()

	push := shadow.MomentsPush{Radius: p.blurRadius}
	l := r.rm.Layouts.Moments
	cb.BeginPass(r.rm.Passes.Shadow.Moments, t.shadow.MomentsTargets[i], nil)
	setViewport(cb, extent)
	cb.SetPipeline(r.pipelines.Moments)
	cb.SetDescSets(l, gpu.BindGraphics, 0, []gpu.DescSet{t.momentsSets[i]}, nil)
	cb.PushConstants(l, gpu.StFragment, 0, gpu.Bytes(&push))
	cb.Draw(3, 1, 0, 0)
	cb.EndPass()
}

// recordGeometry records the static meshes and, when asked, the landscape
// bodies and grass of one observer. Only the pipeline differs between the
// shadow and main passes.
func (r *Renderer) recordGeometry(cb gpu.CmdBuffer, d geometryDraw) {
	pl := r.pipelines
	l := r.rm.Layouts
	sets := []gpu.DescSet{d.frameSet}

	if r.scene.MeshesNum() > 0 {
		cb.SetPipeline(pickGeometryPipeline(&pl.Mesh, d.depthOnly, d.wireframe))
		cb.SetDescSets(l.Geometry, gpu.BindGraphics, 0, sets, nil)
		cb.PushConstants(l.Geometry, allGraphics, 0, gpu.Bytes(&d.push))
		cb.SetVertexBuffer(r.scene.Vertices, 0)
		cb.SetIndexBuffer(r.scene.Indices, 0)
		r.vis.DrawMeshes(cb, l.Geometry, d.ctx)
	}

	if !d.landscapes || r.scene.LandscapeNum() == 0 {
		return
	}
	cb.SetPipeline(pickGeometryPipeline(&pl.Landscape, d.depthOnly, d.wireframe))
	cb.SetDescSets(l.Landscape, gpu.BindGraphics, 0, sets, nil)
	cb.PushConstants(l.Landscape, allGraphics, 0, gpu.Bytes(&d.push))
	r.vis.DrawLandscapes(cb, l.Landscape, d.ctx, false)

	cb.SetPipeline(pickGeometryPipeline(&pl.Grass, d.depthOnly, d.wireframe))
	r.vis.DrawLandscapes(cb, l.Landscape, d.ctx, true)
}

// recordGBuffer fills the G-buffer in subpass 0 and resolves lighting from
// it in subpass 1.
func (r *Renderer) recordGBuffer(cb gpu.CmdBuffer, p *frameParams) {
	t := r.targets
	frameSet := t.frameSets[p.frame]

	cb.BeginRegion("gbuffer")
	defer cb.EndRegion()

	clear := make([]gpu.ClearValue, gbufferAttachments)
	clear[GBufferDepth].Depth = 1
	cb.BeginPass(r.rm.Passes.GBuffer, t.gbufferFB, clear)
	setViewport(cb, t.extent)
	r.recordGeometry(cb, geometryDraw{
		ctx:        r.vis.Main(),
		push:       p.camera,
		frameSet:   frameSet,
		wireframe:  p.wireframe,
		landscapes: true,
	})

	cb.NextSubpass()
	l := r.rm.Layouts.Lighting
	cb.SetDescSets(l, gpu.BindGraphics, 0, []gpu.DescSet{frameSet, t.lightingSets[p.frame]}, nil)
	cb.PushConstants(l, allGraphics, 0, gpu.Bytes(&p.camera))
	if n := r.scene.LightsNum(); n > 0 {
		cb.SetPipeline(r.pipelines.PointLight)
		cb.Draw(1, n, 0, 0)
	}
	cb.SetPipeline(r.pipelines.GlobalLight)
	cb.Draw(3, 1, 0, 0)
	cb.EndPass()
}

// recordPostFX renders fog and, when enabled, SSAO at reduced resolution.
func (r *Renderer) recordPostFX(cb gpu.CmdBuffer, p *frameParams) {
	t := r.targets
	frameSet := t.frameSets[p.frame]

	cb.BeginRegion("postfx")
	defer cb.EndRegion()

	cb.BeginPass(r.rm.Passes.PostFX, t.postfxFB, make([]gpu.ClearValue, postfxAttachments))
	setViewport(cb, t.postfxExtent)

	l := r.rm.Layouts.Fog
	cb.SetPipeline(r.pipelines.Fog)
	cb.SetDescSets(l, gpu.BindGraphics, 0, []gpu.DescSet{frameSet, t.fogSet}, nil)
	cb.PushConstants(l, allGraphics, 0, gpu.Bytes(&p.camera))
	cb.Draw(3, 1, 0, 0)

	if p.ssao {
		l = r.rm.Layouts.SSAO
		cb.SetPipeline(r.pipelines.SSAO)
		cb.SetDescSets(l, gpu.BindGraphics, 0, []gpu.DescSet{frameSet, t.ssaoSet}, nil)
		cb.PushConstants(l, allGraphics, 0, gpu.Bytes(&p.camera))
		cb.Draw(3, 1, 0, 0)
	}
	cb.EndPass()
}

// recordPresent tone maps the resolved image into swapchain image
// p.image.
func (r *Renderer) recordPresent(cb gpu.CmdBuffer, p *frameParams) {
	t := r.targets

	cb.BeginRegion("tonemap")
	defer cb.EndRegion()

	cb.BeginPass(r.rm.Passes.Present, t.present[p.image], []gpu.ClearValue{{}})
	setViewport(cb, t.extent)
	l := r.rm.Layouts.Tonemap
	cb.SetPipeline(r.pipelines.Tonemap)
	cb.SetDescSets(l, gpu.BindGraphics, 0, []gpu.DescSet{t.frameSets[p.frame], t.postSet}, nil)
	cb.PushConstants(l, allGraphics, 0, gpu.Bytes(&p.camera))
	cb.Draw(3, 1, 0, 0)
	cb.EndPass()
}

func setViewport(cb gpu.CmdBuffer, extent gpu.Extent2D) {
	cb.SetViewport(gpu.FullViewport(extent))
	cb.SetScissor(gpu.FullScissor(extent))
}
