package renderer

import (
	"fmt"

	"github.com/Faultbox/vigil/internal/engine/gpu"
	"github.com/Faultbox/vigil/internal/engine/scene"
	"github.com/Faultbox/vigil/internal/engine/shader"
	"github.com/Faultbox/vigil/internal/engine/shadow"
	"github.com/Faultbox/vigil/internal/engine/visibility"
)

// GeometryPipelines are the variants of one kind of geometry. They share a
// pipeline layout and vertex input, so the same bindings and draws work
// with any of them.
type GeometryPipelines struct {
	Default   gpu.Pipeline
	Wireframe gpu.Pipeline
	Shadow    gpu.Pipeline
}

// pickGeometryPipeline selects the variant for a draw: depth only in shadow
// passes, otherwise wireframe when enabled.
func pickGeometryPipeline(p *GeometryPipelines, depthOnly, wireframe bool) gpu.Pipeline {
	switch {
	case depthOnly:
		return p.Shadow
	case wireframe:
		return p.Wireframe
	default:
		return p.Default
	}
}

// Pipelines are every pipeline the frame graph records with. They are
// recreated together when shaders reload.
type Pipelines struct {
	arena *gpu.Arena

	Culling *visibility.Pipelines

	Mesh      GeometryPipelines
	Landscape GeometryPipelines
	Grass     GeometryPipelines

	PointLight  gpu.Pipeline
	GlobalLight gpu.Pipeline
	Moments     gpu.Pipeline
	Fog         gpu.Pipeline
	SSAO        gpu.Pipeline
	Tonemap     gpu.Pipeline
}

// Destroy releases the pipelines.
func (p *Pipelines) Destroy() { p.arena.Destroy() }

// pipelineBuilder loads shaders and collects the first error.
type pipelineBuilder struct {
	arena *gpu.Arena
	lib   *shader.Library
	err   error
}

func (b *pipelineBuilder) shaders(names ...string) []gpu.Shader {
	out := make([]gpu.Shader, 0, len(names))
	for _, n := range names {
		s, err := b.lib.Load(n)
		if err != nil {
			if b.err == nil {
				b.err = err
			}
			continue
		}
		out = append(out, s)
	}
	return out
}

func (b *pipelineBuilder) graphics(desc gpu.GraphicsPipelineDesc) gpu.Pipeline {
	if b.err != nil {
		return nil
	}
	p, err := b.arena.NewGraphicsPipeline(desc)
	if err != nil {
		b.err = fmt.Errorf("pipeline %q: %w", desc.Name, err)
		return nil
	}
	return p
}

var (
	depthLess  = gpu.DepthState{Test: true, Write: true, Cmp: gpu.CmpLess}
	noDepth    = gpu.DepthState{}
	gbufferOut = []gpu.BlendMode{gpu.BlendNone, gpu.BlendNone, gpu.BlendNone}
)

// newPipelines builds every pipeline from lib in a fresh arena.
func newPipelines(dev gpu.Device, lib *shader.Library, l *Layouts, p *Passes) (*Pipelines, error) {
	pl := &Pipelines{arena: gpu.NewArena(dev)}
	if err := pl.build(lib, l, p); err != nil {
		pl.arena.Destroy()
		return nil, err
	}
	return pl, nil
}

func (pl *Pipelines) build(lib *shader.Library, l *Layouts, p *Passes) error {
	cull, err := lib.Load(visibility.CullShader)
	if err != nil {
		return err
	}
	landscapeCull, err := lib.Load(visibility.LandscapeCullShader)
	if err != nil {
		return err
	}
	if pl.Culling, err = visibility.NewPipelines(pl.arena, l.Visibility, cull, landscapeCull); err != nil {
		return err
	}

	b := &pipelineBuilder{arena: pl.arena, lib: lib}
	mesh := func(name string, shaders []string, pass gpu.RenderPass, raster gpu.RasterState, blend []gpu.BlendMode) gpu.Pipeline {
		return b.graphics(gpu.GraphicsPipelineDesc{
			Name:         name,
			Shaders:      b.shaders(shaders...),
			Layout:       l.Geometry,
			Pass:         pass,
			Subpass:      SubpassGeometry,
			Topology:     gpu.TTriangle,
			Vertex:       scene.VertexLayout,
			VertexStride: scene.VertexStride,
			Raster:       raster,
			Depth:        depthLess,
			Blend:        blend,
		})
	}
	pl.Mesh = GeometryPipelines{
		Default:   mesh("mesh", []string{"mesh.vert", "gbuffer.frag"}, p.GBuffer, gpu.RasterState{Cull: gpu.CullBack}, gbufferOut),
		Wireframe: mesh("mesh wireframe", []string{"mesh.vert", "wireframe.geom", "wireframe.frag"}, p.GBuffer, gpu.RasterState{}, gbufferOut),
		Shadow:    mesh("mesh shadow", []string{"mesh.vert", "shadow.frag"}, p.Shadow.Depth, gpu.RasterState{DepthBias: true}, nil),
	}

	patches := func(name string, shaders []string, pass gpu.RenderPass, vertices int, raster gpu.RasterState, blend []gpu.BlendMode) gpu.Pipeline {
		return b.graphics(gpu.GraphicsPipelineDesc{
			Name:          name,
			Shaders:       b.shaders(shaders...),
			Layout:        l.Landscape,
			Pass:          pass,
			Subpass:       SubpassGeometry,
			Topology:      gpu.TPatch,
			PatchVertices: vertices,
			Raster:        raster,
			Depth:         depthLess,
			Blend:         blend,
		})
	}
	lines := gpu.RasterState{Fill: gpu.FillLines}
	pl.Landscape = GeometryPipelines{
		Default: patches("landscape", []string{"landscape.vert", "landscape.tesc", "landscape.tese", "landscape.frag"},
			p.GBuffer, visibility.LandscapePatchVertices, gpu.RasterState{Cull: gpu.CullBack}, gbufferOut),
		Wireframe: patches("landscape wireframe", []string{"landscape.vert", "landscape.tesc", "landscape.tese", "landscape.frag"},
			p.GBuffer, visibility.LandscapePatchVertices, lines, gbufferOut),
		Shadow: patches("landscape shadow", []string{"landscape.vert", "landscape.tesc", "landscape.tese", "shadow.frag"},
			p.Shadow.Depth, visibility.LandscapePatchVertices, gpu.RasterState{DepthBias: true}, nil),
	}
	pl.Grass = GeometryPipelines{
		Default: patches("grass", []string{"grass.vert", "grass.tesc", "grass.tese", "grass.geom", "grass.frag"},
			p.GBuffer, visibility.GrassPatchVertices, gpu.RasterState{}, gbufferOut),
		Wireframe: patches("grass wireframe", []string{"grass.vert", "grass.tesc", "grass.tese", "grass.geom", "grass.frag"},
			p.GBuffer, visibility.GrassPatchVertices, lines, gbufferOut),
		Shadow: patches("grass shadow", []string{"grass.vert", "grass.tesc", "grass.tese", "grass.geom", "shadow.frag"},
			p.Shadow.Depth, visibility.GrassPatchVertices, gpu.RasterState{DepthBias: true}, nil),
	}

	additive := []gpu.BlendMode{gpu.BlendAdditive}
	pl.GlobalLight = b.graphics(gpu.GraphicsPipelineDesc{
		Name:    "global light",
		Shaders: b.shaders("fullscreen.vert", "global_light.frag"),
		Layout:  l.Lighting,
		Pass:    p.GBuffer,
		Subpass: SubpassLighting,
		Depth:   noDepth,
		Blend:   additive,
	})
	pl.PointLight = b.graphics(gpu.GraphicsPipelineDesc{
		Name:     "point lights",
		Shaders:  b.shaders("point_light.vert", "point_light.geom", "point_light.frag"),
		Layout:   l.Lighting,
		Pass:     p.GBuffer,
		Subpass:  SubpassLighting,
		Topology: gpu.TPoint,
		Depth:    noDepth,
		Blend:    additive,
	})

	pl.Moments = b.graphics(gpu.GraphicsPipelineDesc{
		Name:    "shadow moments",
		Shaders: b.shaders(shadow.MomentsVertexShader, shadow.MomentsFragmentShader),
		Layout:  l.Moments,
		Pass:    p.Shadow.Moments,
		Depth:   noDepth,
	})
	pl.Fog = b.graphics(gpu.GraphicsPipelineDesc{
		Name:    "fog",
		Shaders: b.shaders("fullscreen.vert", "fog.frag"),
		Layout:  l.Fog,
		Pass:    p.PostFX,
		Depth:   noDepth,
		Blend:   []gpu.BlendMode{gpu.BlendNone, gpu.BlendKeep},
	})
	pl.SSAO = b.graphics(gpu.GraphicsPipelineDesc{
		Name:    "ssao",
		Shaders: b.shaders("fullscreen.vert", "ssao.frag"),
		Layout:  l.SSAO,
		Pass:    p.PostFX,
		Depth:   noDepth,
		Blend:   []gpu.BlendMode{gpu.BlendKeep, gpu.BlendNone},
	})
	pl.Tonemap = b.graphics(gpu.GraphicsPipelineDesc{
		Name:    "tonemap",
		Shaders: b.shaders("fullscreen.vert", "tonemap.frag"),
		Layout:  l.Tonemap,
		Pass:    p.Present,
		Depth:   noDepth,
	})
	return b.err
}
