package soft

import (
	"fmt"

	"github.com/Faultbox/vigil/internal/engine/gpu"
)

type command struct {
	op  string
	run func(ex *executor, name string) error
}

type cmdBuffer struct {
	res
	dev       *Device
	recording bool
	cmds      []command
	regions   []string
	err       error
}

var _ gpu.CmdBuffer = (*cmdBuffer)(nil)

func (cb *cmdBuffer) Begin() error {
	if cb.recording {
		return fmt.Errorf("soft: Begin on recording command buffer")
	}
	cb.cmds = cb.cmds[:0]
	cb.regions = cb.regions[:0]
	cb.err = nil
	cb.recording = true
	return nil
}

func (cb *cmdBuffer) End() error {
	if !cb.recording {
		return fmt.Errorf("soft: End without Begin")
	}
	cb.recording = false
	if len(cb.regions) != 0 {
		return fmt.Errorf("soft: End with open region %q", cb.regions[len(cb.regions)-1])
	}
	return cb.err
}

func (cb *cmdBuffer) Reset() error {
	cb.cmds = cb.cmds[:0]
	cb.regions = cb.regions[:0]
	cb.recording = false
	cb.err = nil
	return nil
}

// add records a command. The command's display name carries the innermost
// debug region so hazards point at the stage that caused them.
func (cb *cmdBuffer) add(op string, run func(ex *executor, name string) error) {
	if !cb.recording {
		if cb.err == nil {
			cb.err = fmt.Errorf("soft: %s recorded outside Begin/End", op)
		}
		return
	}
	if n := len(cb.regions); n > 0 {
		op = op + " [" + cb.regions[n-1] + "]"
	}
	cb.cmds = append(cb.cmds, command{op: op, run: run})
}

func (cb *cmdBuffer) BeginRegion(name string) {
	cb.regions = append(cb.regions, name)
}

func (cb *cmdBuffer) EndRegion() {
	if len(cb.regions) == 0 {
		if cb.err == nil {
			cb.err = fmt.Errorf("soft: EndRegion without BeginRegion")
		}
		return
	}
	cb.regions = cb.regions[:len(cb.regions)-1]
}

func (cb *cmdBuffer) FillBuffer(buf gpu.Buffer, off, size int64, value uint32) {
	b := buf.(*buffer)
	cb.add("fill "+b.Name(), func(ex *executor, name string) error {
		return ex.fill(name, b, off, size, value)
	})
}

func (cb *cmdBuffer) Barrier(before, after gpu.Sync, bufs []gpu.BufferBarrier, imgs []gpu.ImageBarrier) {
	bufs = append([]gpu.BufferBarrier(nil), bufs...)
	imgs = append([]gpu.ImageBarrier(nil), imgs...)
	cb.add("barrier", func(ex *executor, name string) error {
		return ex.barrier(name, before, after, bufs, imgs)
	})
}

func (cb *cmdBuffer) SetPipeline(pl gpu.Pipeline) {
	p := pl.(*pipeline)
	cb.add("set pipeline "+p.name, func(ex *executor, _ string) error {
		ex.bind[p.bp].pipeline = p
		return nil
	})
}

func (cb *cmdBuffer) SetDescSets(layout gpu.PipelineLayout, bp gpu.BindPoint, first int, sets []gpu.DescSet, dynOffsets []uint32) {
	l := layout.(*pipelineLayout)
	ss := make([]*descSet, len(sets))
	for i, s := range sets {
		ss[i] = s.(*descSet)
	}
	dyn := append([]uint32(nil), dynOffsets...)
	cb.add("set descriptor sets", func(ex *executor, _ string) error {
		return ex.setDescSets(l, bp, first, ss, dyn)
	})
}

func (cb *cmdBuffer) PushConstants(layout gpu.PipelineLayout, stages gpu.Stage, off int, data []byte) {
	l := layout.(*pipelineLayout)
	data = append([]byte(nil), data...)
	cb.add("push constants", func(ex *executor, _ string) error {
		if off < 0 || off+len(data) > l.pushSize {
			return fmt.Errorf("soft: push constants [%d, %d) outside layout range %d", off, off+len(data), l.pushSize)
		}
		if len(ex.push) < l.pushSize {
			ex.push = append(ex.push, make([]byte, l.pushSize-len(ex.push))...)
		}
		copy(ex.push[off:], data)
		return nil
	})
}

func (cb *cmdBuffer) Dispatch(x, y, z int) {
	cb.add("dispatch", func(ex *executor, name string) error {
		return ex.dispatch(name, [3]int{x, y, z})
	})
}

func (cb *cmdBuffer) BeginPass(rp gpu.RenderPass, fb gpu.Framebuffer, clear []gpu.ClearValue) {
	pass := rp.(*renderPass)
	f := fb.(*framebuffer)
	cb.add("begin pass "+pass.desc.Name, func(ex *executor, name string) error {
		return ex.beginPass(name, pass, f)
	})
}

func (cb *cmdBuffer) NextSubpass() {
	cb.add("next subpass", func(ex *executor, name string) error {
		return ex.nextSubpass(name)
	})
}

func (cb *cmdBuffer) EndPass() {
	cb.add("end pass", func(ex *executor, name string) error {
		return ex.endPass(name)
	})
}

func (cb *cmdBuffer) SetViewport(vp gpu.Viewport) {
	cb.add("set viewport", func(ex *executor, _ string) error {
		if vp.Width <= 0 || vp.Height <= 0 {
			return fmt.Errorf("soft: empty viewport %vx%v", vp.Width, vp.Height)
		}
		ex.viewport = true
		return nil
	})
}

func (cb *cmdBuffer) SetScissor(sc gpu.Scissor) {
	cb.add("set scissor", func(ex *executor, _ string) error {
		ex.scissor = true
		return nil
	})
}

func (cb *cmdBuffer) SetVertexBuffer(buf gpu.Buffer, off int64) {
	b := buf.(*buffer)
	cb.add("set vertex buffer", func(ex *executor, _ string) error {
		ex.vertex = b
		ex.vertexOff = off
		return nil
	})
}

func (cb *cmdBuffer) SetIndexBuffer(buf gpu.Buffer, off int64) {
	b := buf.(*buffer)
	cb.add("set index buffer", func(ex *executor, _ string) error {
		ex.index = b
		ex.indexOff = off
		return nil
	})
}

func (cb *cmdBuffer) Draw(vertCount, instCount, firstVert, firstInst int) {
	cb.add("draw", func(ex *executor, name string) error {
		return ex.draw(name, drawArgs{count: vertCount, instances: instCount})
	})
}

func (cb *cmdBuffer) DrawIndirect(buf gpu.Buffer, off int64, count, stride int) {
	b := buf.(*buffer)
	cb.add("draw indirect", func(ex *executor, name string) error {
		return ex.draw(name, drawArgs{indirect: b, off: off, drawCount: count, stride: stride})
	})
}

func (cb *cmdBuffer) DrawIndexedIndirect(buf gpu.Buffer, off int64, count, stride int) {
	b := buf.(*buffer)
	cb.add("draw indexed indirect", func(ex *executor, name string) error {
		return ex.draw(name, drawArgs{indexed: true, indirect: b, off: off, drawCount: count, stride: stride})
	})
}
