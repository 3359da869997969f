package glgpu

import (
	"fmt"

	"github.com/go-gl/gl/v4.6-core/gl"

	"github.com/Faultbox/vigil/internal/engine/gpu"
)

type cmdBuffer struct {
	dev       *Device
	ops       []func(*replay)
	recording bool
}

func (cb *cmdBuffer) Begin() error {
	if cb.recording {
		return fmt.Errorf("glgpu: Begin on a recording command buffer")
	}
	cb.ops = cb.ops[:0]
	cb.recording = true
	return nil
}

func (cb *cmdBuffer) End() error {
	if !cb.recording {
		return fmt.Errorf("glgpu: End without Begin")
	}
	cb.recording = false
	return nil
}

func (cb *cmdBuffer) Reset() error {
	cb.ops = cb.ops[:0]
	cb.recording = false
	return nil
}

func (cb *cmdBuffer) Destroy() { cb.ops = nil }

func (cb *cmdBuffer) add(op func(*replay)) { cb.ops = append(cb.ops, op) }

func (cb *cmdBuffer) BeginRegion(name string) {
	cb.add(func(*replay) {
		gl.PushDebugGroup(gl.DEBUG_SOURCE_APPLICATION, 0, -1, gl.Str(name+"\x00"))
	})
}

func (cb *cmdBuffer) EndRegion() {
	cb.add(func(*replay) { gl.PopDebugGroup() })
}

func (cb *cmdBuffer) FillBuffer(buf gpu.Buffer, off, size int64, value uint32) {
	b := buf.(*buffer)
	if size == 0 {
		size = b.desc.Size - off
	}
	cb.add(func(*replay) {
		v := value
		gl.ClearNamedBufferSubData(b.id, gl.R32UI, int(off), int(size), gl.RED_INTEGER, gl.UNSIGNED_INT, gl.Ptr(&v))
	})
}

func (cb *cmdBuffer) Barrier(before, after gpu.Sync, bufs []gpu.BufferBarrier, imgs []gpu.ImageBarrier) {
	var acc gpu.Access
	for _, b := range bufs {
		acc |= b.AccessAfter
	}
	for _, b := range imgs {
		acc |= b.AccessAfter
	}
	if len(bufs) == 0 && len(imgs) == 0 {
		acc = gpu.AShaderRead | gpu.AUniformRead | gpu.AIndirectRead
	}
	if after&gpu.SDrawIndirect != 0 {
		acc |= gpu.AIndirectRead
	}
	bits := barrierBits(acc)
	if bits == 0 {
		return
	}
	cb.add(func(*replay) { gl.MemoryBarrier(bits) })
}

func (cb *cmdBuffer) SetPipeline(pl gpu.Pipeline) {
	p := pl.(*pipeline)
	cb.add(func(r *replay) { r.setPipeline(p) })
}

func (cb *cmdBuffer) SetDescSets(layout gpu.PipelineLayout, bp gpu.BindPoint, first int, sets []gpu.DescSet, dynOffsets []uint32) {
	ss := make([]*descSet, len(sets))
	for i, s := range sets {
		ss[i] = s.(*descSet)
	}
	dyn := append([]uint32(nil), dynOffsets...)
	cb.add(func(r *replay) { r.bindSets(first, ss, dyn) })
}

func (cb *cmdBuffer) PushConstants(layout gpu.PipelineLayout, stages gpu.Stage, off int, data []byte) {
	buf := append([]byte(nil), data...)
	cb.add(func(r *replay) {
		gl.NamedBufferSubData(r.dev.push, off, len(buf), gl.Ptr(buf))
	})
}

func (cb *cmdBuffer) Dispatch(x, y, z int) {
	cb.add(func(*replay) { gl.DispatchCompute(uint32(x), uint32(y), uint32(z)) })
}

func (cb *cmdBuffer) BeginPass(rp gpu.RenderPass, fbuf gpu.Framebuffer, clear []gpu.ClearValue) {
	pass := rp.(*renderPass)
	fb := fbuf.(*framebuffer)
	cv := append([]gpu.ClearValue(nil), clear...)
	cb.add(func(r *replay) { r.beginPass(pass, fb, cv) })
}

func (cb *cmdBuffer) NextSubpass() {
	cb.add(func(r *replay) { r.nextSubpass() })
}

func (cb *cmdBuffer) EndPass() {
	cb.add(func(r *replay) { r.endPass() })
}

func (cb *cmdBuffer) SetViewport(vp gpu.Viewport) {
	cb.add(func(*replay) {
		gl.ViewportIndexedf(0, vp.X, vp.Y, vp.Width, vp.Height)
		gl.DepthRangeIndexed(0, float64(vp.MinDepth), float64(vp.MaxDepth))
	})
}

func (cb *cmdBuffer) SetScissor(sc gpu.Scissor) {
	cb.add(func(*replay) {
		gl.Enable(gl.SCISSOR_TEST)
		gl.Scissor(int32(sc.X), int32(sc.Y), int32(sc.Width), int32(sc.Height))
	})
}

func (cb *cmdBuffer) SetVertexBuffer(buf gpu.Buffer, off int64) {
	b := buf.(*buffer)
	cb.add(func(r *replay) { r.vertex, r.vertexOff = b, off })
}

func (cb *cmdBuffer) SetIndexBuffer(buf gpu.Buffer, off int64) {
	b := buf.(*buffer)
	cb.add(func(r *replay) { r.index, r.indexOff = b, off })
}

func (cb *cmdBuffer) Draw(vertCount, instCount, firstVert, firstInst int) {
	cb.add(func(r *replay) {
		mode := r.prepareDraw()
		gl.DrawArraysInstancedBaseInstance(mode, int32(firstVert), int32(vertCount), int32(instCount), uint32(firstInst))
	})
}

func (cb *cmdBuffer) DrawIndirect(buf gpu.Buffer, off int64, count, stride int) {
	b := buf.(*buffer)
	cb.add(func(r *replay) {
		mode := r.prepareDraw()
		gl.BindBuffer(gl.DRAW_INDIRECT_BUFFER, b.id)
		gl.MultiDrawArraysIndirect(mode, gl.PtrOffset(int(off)), int32(count), int32(stride))
	})
}

func (cb *cmdBuffer) DrawIndexedIndirect(buf gpu.Buffer, off int64, count, stride int) {
	b := buf.(*buffer)
	cb.add(func(r *replay) {
		mode := r.prepareDraw()
		gl.BindBuffer(gl.DRAW_INDIRECT_BUFFER, b.id)
		// The index buffer offset is ignored; commands carry first indices.
		gl.MultiDrawElementsIndirect(mode, gl.UNSIGNED_INT, gl.PtrOffset(int(off)), int32(count), int32(stride))
	})
}

// replay is the GL state tracked while a command buffer executes.
type replay struct {
	dev *Device

	graphics *pipeline

	pass    *renderPass
	fb      *framebuffer
	subpass int

	vertex    *buffer
	vertexOff int64
	index     *buffer
	indexOff  int64
}

func (r *replay) setPipeline(p *pipeline) {
	gl.UseProgram(p.program)
	if p.bp == gpu.BindCompute {
		return
	}
	r.graphics = p
	g := &p.graphics
	gl.BindVertexArray(p.vao)

	switch g.Raster.Cull {
	case gpu.CullNone:
		gl.Disable(gl.CULL_FACE)
	case gpu.CullBack:
		gl.Enable(gl.CULL_FACE)
		gl.CullFace(gl.BACK)
	case gpu.CullFront:
		gl.Enable(gl.CULL_FACE)
		gl.CullFace(gl.FRONT)
	}
	if g.Raster.Fill == gpu.FillLines {
		gl.PolygonMode(gl.FRONT_AND_BACK, gl.LINE)
	} else {
		gl.PolygonMode(gl.FRONT_AND_BACK, gl.FILL)
	}
	if g.Raster.DepthBias {
		gl.Enable(gl.POLYGON_OFFSET_FILL)
		gl.PolygonOffset(1.25, 1.75)
	} else {
		gl.Disable(gl.POLYGON_OFFSET_FILL)
	}

	if g.Depth.Test {
		gl.Enable(gl.DEPTH_TEST)
		gl.DepthFunc(compareFunc(g.Depth.Cmp))
	} else {
		gl.Disable(gl.DEPTH_TEST)
	}
	gl.DepthMask(g.Depth.Write)

	if g.Topology == gpu.TPatch {
		gl.PatchParameteri(gl.PATCH_VERTICES, int32(g.PatchVertices))
	}
	if g.Topology == gpu.TPoint {
		gl.Enable(gl.PROGRAM_POINT_SIZE)
	}

	if r.pass == nil {
		return
	}
	colors := len(r.pass.desc.Subpasses[r.subpass].Color)
	for i := range colors {
		mode := gpu.BlendNone
		if i < len(g.Blend) {
			mode = g.Blend[i]
		}
		at := uint32(i)
		switch mode {
		case gpu.BlendNone:
			gl.Disablei(gl.BLEND, at)
			gl.ColorMaski(at, true, true, true, true)
		case gpu.BlendAdditive:
			gl.Enablei(gl.BLEND, at)
			gl.BlendFunci(at, gl.SRC_ALPHA, gl.ONE)
			gl.ColorMaski(at, true, true, true, true)
		case gpu.BlendKeep:
			gl.Disablei(gl.BLEND, at)
			gl.ColorMaski(at, false, false, false, false)
		}
	}
}

func (r *replay) bindSets(first int, sets []*descSet, dyn []uint32) {
	di := 0
	for i, s := range sets {
		base := uint32((first + i) * bindingsPerSet)
		for _, b := range s.layout.bindings {
			d, ok := s.descs[b.Nr]
			if !ok {
				continue
			}
			at := base + uint32(b.Nr)
			off := d.off
			if b.Type.IsDynamic() {
				if di < len(dyn) {
					off += int64(dyn[di])
				}
				di++
			}
			switch b.Type {
			case gpu.DUniform, gpu.DUniformDynamic:
				gl.BindBufferRange(gl.UNIFORM_BUFFER, at, d.buf.id, int(off), int(d.size))
			case gpu.DStorage, gpu.DStorageDynamic:
				gl.BindBufferRange(gl.SHADER_STORAGE_BUFFER, at, d.buf.id, int(off), int(d.size))
			case gpu.DSampledImage, gpu.DInputAttachment:
				gl.BindTextureUnit(at, d.view.id)
				smpl := r.dev.inputSmpl
				if d.sampler != nil {
					smpl = d.sampler.id
				}
				gl.BindSampler(at, smpl)
			}
		}
	}
}

func (r *replay) beginPass(pass *renderPass, fb *framebuffer, clear []gpu.ClearValue) {
	r.pass, r.fb, r.subpass = pass, fb, 0
	for i, a := range pass.desc.Attachments {
		ct := fb.clears[i]
		if a.Load != gpu.LoadClear || !ct.used || i >= len(clear) {
			continue
		}
		c := clear[i]
		if ct.drawBuffer < 0 {
			gl.DepthMask(true)
			gl.ClearNamedFramebufferfv(ct.fbo, gl.DEPTH, 0, &c.Depth)
			continue
		}
		gl.ColorMaski(uint32(ct.drawBuffer), true, true, true, true)
		gl.ClearNamedFramebufferfv(ct.fbo, gl.COLOR, ct.drawBuffer, &c.Color[0])
	}
	gl.BindFramebuffer(gl.FRAMEBUFFER, fb.fbos[0])
}

func (r *replay) nextSubpass() {
	r.subpass++
	for _, dep := range r.pass.desc.Dependencies {
		if dep.Dst == r.subpass && dep.DstAccess&gpu.AInputAttachmentRead != 0 {
			gl.TextureBarrier()
			break
		}
	}
	gl.BindFramebuffer(gl.FRAMEBUFFER, r.fb.fbos[r.subpass])
}

func (r *replay) endPass() {
	for _, dep := range r.pass.desc.Dependencies {
		if dep.Dst == gpu.External {
			if bits := barrierBits(dep.DstAccess); bits != 0 {
				gl.MemoryBarrier(bits)
			}
		}
	}
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	r.pass, r.fb = nil, nil
}

// prepareDraw binds the vertex and index buffers to the pipeline's vertex
// array and returns the primitive mode.
func (r *replay) prepareDraw() uint32 {
	p := r.graphics
	if p == nil {
		return gl.TRIANGLES
	}
	g := &p.graphics
	if g.VertexStride > 0 && r.vertex != nil {
		gl.VertexArrayVertexBuffer(p.vao, 0, r.vertex.id, int(r.vertexOff), int32(g.VertexStride))
	}
	if r.index != nil {
		gl.VertexArrayElementBuffer(p.vao, r.index.id)
	}
	return primitive(g.Topology)
}

func (r *replay) finish() {
	gl.BindVertexArray(0)
	gl.UseProgram(0)
	gl.Disable(gl.SCISSOR_TEST)
	gl.PolygonMode(gl.FRONT_AND_BACK, gl.FILL)
}
