package visibility

import (
	"github.com/Faultbox/vigil/internal/engine/gpu"
	"github.com/Faultbox/vigil/pkg/math"
)

// Shader names of the culling programs.
const (
	CullShader          = "cull.comp"
	LandscapeCullShader = "landscape_cull.comp"
)

// CullPush is the push constant block of the culling shader.
type CullPush struct {
	ViewProj      math.Mat4
	InstanceCount uint32
	MeshCount     uint32
	_             [2]uint32
}

// LandscapeCullPush is the push constant block of the landscape culling
// shader.
type LandscapeCullPush struct {
	ViewProj math.Mat4
}

// Push constant block sizes.
const (
	CullPushSize          = 80
	LandscapeCullPushSize = 64
)

// Pipelines are the compute pipelines culling is recorded with.
type Pipelines struct {
	Cull          gpu.Pipeline
	LandscapeCull gpu.Pipeline
}

// NewPipelines creates the culling pipelines from the given shaders.
func NewPipelines(a *gpu.Arena, l *Layouts, cull, landscape gpu.Shader) (*Pipelines, error) {
	p := &Pipelines{}
	var err error
	p.Cull, err = a.NewComputePipeline(gpu.ComputePipelineDesc{Name: "culling", Shader: cull, Layout: l.Cull})
	if err != nil {
		return nil, err
	}
	p.LandscapeCull, err = a.NewComputePipeline(gpu.ComputePipelineDesc{Name: "landscape culling", Shader: landscape, Layout: l.LandscapeCull})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// RecordCulling records the static mesh culling of context c against
// viewProj: clear the visible counter, make the clear visible to the
// culling shader, cull one workgroup per mesh, then make the results visible
// to indirect draws and vertex shaders.
func (s *Set) RecordCulling(cb gpu.CmdBuffer, p *Pipelines, c *Context, viewProj math.Mat4) {
	s.recordClear(cb, c)
	s.recordDispatch(cb, p, c, viewProj)
	s.recordPublish(cb, c)
}

func (s *Set) recordClear(cb gpu.CmdBuffer, c *Context) {
	cb.FillBuffer(c.Mapping, 0, 4, 0)
	cb.Barrier(gpu.STransfer, gpu.SComputeShader, []gpu.BufferBarrier{{
		Buffer:       c.Mapping,
		Offset:       0,
		Size:         4,
		AccessBefore: gpu.ATransferWrite,
		AccessAfter:  gpu.AShaderRead | gpu.AShaderWrite,
	}}, nil)
}

func (s *Set) recordDispatch(cb gpu.CmdBuffer, p *Pipelines, c *Context, viewProj math.Mat4) {
	push := CullPush{
		ViewProj:      viewProj,
		InstanceCount: uint32(s.scene.InstancesNum()),
		MeshCount:     uint32(s.scene.MeshesNum()),
	}
	cb.SetPipeline(p.Cull)
	cb.SetDescSets(s.layouts.Cull, gpu.BindCompute, 0, []gpu.DescSet{s.cullScene, c.Output}, nil)
	cb.PushConstants(s.layouts.Cull, gpu.StCompute, 0, gpu.Bytes(&push))
	cb.Dispatch(s.scene.MeshesNum(), 1, 1)
}

func (s *Set) recordPublish(cb gpu.CmdBuffer, c *Context) {
	cb.Barrier(gpu.SComputeShader, gpu.SDrawIndirect|gpu.SVertexShader, []gpu.BufferBarrier{
		{Buffer: c.Indirect, AccessBefore: gpu.AShaderWrite, AccessAfter: gpu.AIndirectRead},
		{Buffer: c.Mapping, AccessBefore: gpu.AShaderWrite, AccessAfter: gpu.AShaderRead},
	}, nil)
}

// RecordLandscapeCulling records the tile culling of every landscape for
// context c. It is a no-op for scenes without landscapes.
func (s *Set) RecordLandscapeCulling(cb gpu.CmdBuffer, p *Pipelines, c *Context, viewProj math.Mat4) {
	if len(c.Tiles) == 0 {
		return
	}

	clears := make([]gpu.BufferBarrier, 0, len(c.Tiles))
	for _, tb := range c.Tiles {
		cb.FillBuffer(tb, 0, 4, 0)
		clears = append(clears, gpu.BufferBarrier{
			Buffer:       tb,
			Size:         4,
			AccessBefore: gpu.ATransferWrite,
			AccessAfter:  gpu.AShaderRead | gpu.AShaderWrite,
		})
	}
	cb.Barrier(gpu.STransfer, gpu.SComputeShader, clears, nil)

	push := LandscapeCullPush{ViewProj: viewProj}
	cb.SetPipeline(p.LandscapeCull)
	cb.PushConstants(s.layouts.LandscapeCull, gpu.StCompute, 0, gpu.Bytes(&push))
	for i := range c.Tiles {
		off := LandscapeOffset(i)
		cb.SetDescSets(s.layouts.LandscapeCull, gpu.BindCompute, 0,
			[]gpu.DescSet{s.landscapeScene[i], c.LandscapeOutput[i]},
			[]uint32{off, off})
		cb.Dispatch(1, 1, 1)
	}

	published := []gpu.BufferBarrier{
		{Buffer: c.LandscapeIndirect, AccessBefore: gpu.AShaderWrite, AccessAfter: gpu.AIndirectRead},
	}
	for _, tb := range c.Tiles {
		published = append(published, gpu.BufferBarrier{
			Buffer: tb, AccessBefore: gpu.AShaderWrite, AccessAfter: gpu.AShaderRead,
		})
	}
	cb.Barrier(gpu.SComputeShader, gpu.SDrawIndirect|gpu.STessControl|gpu.STessEval, published, nil)
}

// DrawMeshes records one indexed indirect draw per mesh from context c. The
// caller binds the pipeline, the set 0 resources and the vertex and index
// buffers; c.Visible goes to set 1.
func (s *Set) DrawMeshes(cb gpu.CmdBuffer, layout gpu.PipelineLayout, c *Context) {
	cb.SetDescSets(layout, gpu.BindGraphics, 1, []gpu.DescSet{c.Visible}, nil)
	cb.DrawIndexedIndirect(c.Indirect, 0, s.scene.MeshesNum(), gpu.DrawIndexedIndirectSize)
}

// DrawLandscapes records the body draw of every landscape from context c,
// or the grass draw when grass is set.
func (s *Set) DrawLandscapes(cb gpu.CmdBuffer, layout gpu.PipelineLayout, c *Context, grass bool) {
	for i := range c.LandscapeVisible {
		off := LandscapeOffset(i)
		cb.SetDescSets(layout, gpu.BindGraphics, 1, []gpu.DescSet{c.LandscapeVisible[i]}, []uint32{off})
		at := int64(i) * LandscapeIndirectStride
		if grass {
			at += GrassIndirectOffset
		}
		cb.DrawIndirect(c.LandscapeIndirect, at, 1, 0)
	}
}
