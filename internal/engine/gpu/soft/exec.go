package soft

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Faultbox/vigil/internal/engine/gpu"
)

type bindState struct {
	pipeline *pipeline
	sets     []*descSet
	dyn      [][]uint32
}

type passState struct {
	pass    *renderPass
	fb      *framebuffer
	subpass int
	id      int
	name    string
}

type drawArgs struct {
	indexed   bool
	count     int
	instances int
	indirect  *buffer
	off       int64
	drawCount int
	stride    int
}

// executor replays command buffers of one submit.
type executor struct {
	dev  *Device
	cmd  int
	bind [2]bindState
	push []byte
	pass *passState

	viewport, scissor bool
	vertex, index     *buffer
	vertexOff         int64
	indexOff          int64

	stats Stats
}

func newExecutor(d *Device) *executor {
	return &executor{dev: d}
}

func herr(h *gpu.HazardError) error {
	if h == nil {
		return nil
	}
	return h
}

func (ex *executor) run(cb *cmdBuffer) error {
	for _, c := range cb.cmds {
		ex.cmd++
		if err := c.run(ex, c.op); err != nil {
			var h *gpu.HazardError
			if errors.As(err, &h) {
				return err
			}
			return fmt.Errorf("%s: %w", c.op, err)
		}
	}
	if ex.pass != nil {
		return fmt.Errorf("soft: command buffer ends inside render pass %q", ex.pass.pass.desc.Name)
	}
	return nil
}

func (ex *executor) at(sync gpu.Sync, acc gpu.Access, name string) access {
	return access{sync: sync, access: acc, cmd: ex.cmd, name: name}
}

func (ex *executor) fill(name string, b *buffer, off, size int64, value uint32) error {
	if ex.pass != nil {
		return fmt.Errorf("soft: fill inside render pass")
	}
	if size == 0 {
		size = b.Size() - off
	}
	if off%4 != 0 || size%4 != 0 {
		return fmt.Errorf("soft: fill of %q at %d+%d not 4-byte aligned", b.Name(), off, size)
	}
	if err := ex.dev.checkRange(b, off, size); err != nil {
		return err
	}
	a := ex.at(gpu.STransfer, gpu.ATransferWrite, name)
	if err := b.track.each(off, size, func(s *state) *gpu.HazardError { return s.checkWrite(b.Name(), a) }); err != nil {
		return err
	}
	for i := off; i < off+size; i += 4 {
		le.PutUint32(b.data[i:], value)
	}
	return nil
}

// global applies a memory dependency to every tracked resource.
func (ex *executor) global(before, after gpu.Sync, accBefore, accAfter gpu.Access) {
	for b := range ex.dev.buffers {
		b.track.each(0, b.Size(), func(s *state) *gpu.HazardError {
			s.barrier(before, after, accBefore, accAfter)
			return nil
		})
	}
	for img := range ex.dev.images {
		for i := range img.layers {
			img.layers[i].st.barrier(before, after, accBefore, accAfter)
		}
	}
}

func (ex *executor) barrier(name string, before, after gpu.Sync, bufs []gpu.BufferBarrier, imgs []gpu.ImageBarrier) error {
	if ex.pass != nil {
		return fmt.Errorf("soft: pipeline barrier inside render pass %q", ex.pass.pass.desc.Name)
	}
	ex.stats.Barriers++
	if len(bufs) == 0 && len(imgs) == 0 {
		// Execution only: orders reads and chains earlier dependencies
		// without making any write visible.
		ex.global(before, after, gpu.ANone, gpu.ANone)
		return nil
	}
	for _, bb := range bufs {
		b := bb.Buffer.(*buffer)
		off, size := bb.Range()
		if err := ex.dev.checkRange(b, off, size); err != nil {
			return err
		}
		b.track.each(off, size, func(s *state) *gpu.HazardError {
			s.barrier(before, after, bb.AccessBefore, bb.AccessAfter)
			return nil
		})
	}
	for _, ib := range imgs {
		img := ib.Image.(*image)
		for i := range img.layers {
			ls := &img.layers[i]
			if ib.LayoutBefore != gpu.LUndefined && ls.layout != ib.LayoutBefore {
				return &gpu.HazardError{
					Kind: gpu.BadLayout, Resource: layerName(img, i), Command: name, Prev: ls.layout.String(),
					Detail: "barrier expects " + ib.LayoutBefore.String(),
				}
			}
			ls.st.barrier(before, after, ib.AccessBefore, ib.AccessAfter)
			if ib.LayoutAfter != gpu.LUndefined {
				ls.layout = ib.LayoutAfter
			}
		}
	}
	return nil
}

func layerName(img *image, layer int) string {
	if len(img.layers) == 1 {
		return img.Name()
	}
	return fmt.Sprintf("%s[%d]", img.Name(), layer)
}

func (ex *executor) setDescSets(l *pipelineLayout, bp gpu.BindPoint, first int, sets []*descSet, dyn []uint32) error {
	if first < 0 || first+len(sets) > len(l.sets) {
		return fmt.Errorf("soft: sets [%d, %d) outside layout with %d sets", first, first+len(sets), len(l.sets))
	}
	want := 0
	for i, s := range sets {
		if s.layout != l.sets[first+i] {
			return fmt.Errorf("soft: set %d has incompatible layout", first+i)
		}
		want += s.layout.dynamic
	}
	if len(dyn) != want {
		return fmt.Errorf("soft: %d dynamic offsets, want %d", len(dyn), want)
	}
	bs := &ex.bind[bp]
	for len(bs.sets) < len(l.sets) {
		bs.sets = append(bs.sets, nil)
		bs.dyn = append(bs.dyn, nil)
	}
	for i, s := range sets {
		n := s.layout.dynamic
		bs.sets[first+i] = s
		bs.dyn[first+i] = dyn[:n]
		dyn = dyn[n:]
	}
	return nil
}

// boundDesc is a descriptor resolved against its binding and dynamic offset.
type boundDesc struct {
	set  int
	b    gpu.Binding
	d    *descriptor
	off  int64
	size int64
}

func (ex *executor) resolve(p *pipeline) ([]boundDesc, error) {
	bs := &ex.bind[p.bp]
	var out []boundDesc
	for si, sl := range p.layout.sets {
		if si >= len(bs.sets) || bs.sets[si] == nil {
			return nil, fmt.Errorf("soft: pipeline %q: set %d not bound", p.name, si)
		}
		set := bs.sets[si]
		if set.layout != sl {
			return nil, fmt.Errorf("soft: pipeline %q: set %d has incompatible layout", p.name, si)
		}
		bindings := append([]gpu.Binding(nil), sl.bindings...)
		sort.Slice(bindings, func(i, j int) bool { return bindings[i].Nr < bindings[j].Nr })
		dyn := bs.dyn[si]
		for _, b := range bindings {
			d := set.descs[b.Nr]
			if d == nil || !d.set {
				return nil, fmt.Errorf("soft: pipeline %q: binding %d.%d not written", p.name, si, b.Nr)
			}
			bd := boundDesc{set: si, b: b, d: d}
			if b.Type.IsBuffer() {
				if d.buf == nil {
					return nil, fmt.Errorf("soft: pipeline %q: binding %d.%d holds an image", p.name, si, b.Nr)
				}
				bd.off, bd.size = d.off, d.size
				if b.Type.IsDynamic() {
					bd.off += int64(dyn[0])
					dyn = dyn[1:]
				}
				if err := ex.dev.checkRange(d.buf, bd.off, bd.size); err != nil {
					return nil, fmt.Errorf("binding %d.%d: %w", si, b.Nr, err)
				}
			} else if d.view == nil {
				return nil, fmt.Errorf("soft: pipeline %q: binding %d.%d holds a buffer", p.name, si, b.Nr)
			}
			out = append(out, bd)
		}
	}
	return out, nil
}

// readView checks a shader read of every layer of a sampled view.
func (ex *executor) readView(v *view, a access) error {
	for l := v.layer; l < v.layer+v.layers; l++ {
		ls := &v.img.layers[l]
		if ls.layout != gpu.LShaderRead && ls.layout != gpu.LDepthRead && ls.layout != gpu.LGeneral {
			return &gpu.HazardError{
				Kind: gpu.BadLayout, Resource: layerName(v.img, l), Command: a.name, Prev: ls.layout.String(),
				Sync: a.sync, Access: a.access, Detail: "sampled image not in shader-read layout",
			}
		}
		if err := ls.st.checkRead(layerName(v.img, l), a); err != nil {
			return err
		}
	}
	return nil
}

func (ex *executor) dispatch(name string, groups [3]int) error {
	if ex.pass != nil {
		return fmt.Errorf("soft: dispatch inside render pass")
	}
	p := ex.bind[gpu.BindCompute].pipeline
	if p == nil {
		return fmt.Errorf("soft: dispatch without compute pipeline")
	}
	name = name + " " + p.name
	descs, err := ex.resolve(p)
	if err != nil {
		return err
	}
	inv := &Invocation{Groups: groups, windows: make(map[[2]int][]byte)}
	inv.Push = make([]byte, p.layout.pushSize)
	copy(inv.Push, ex.push)

	var writes []boundDesc
	for _, bd := range descs {
		switch bd.b.Type {
		case gpu.DUniform, gpu.DUniformDynamic:
			a := ex.at(gpu.SComputeShader, gpu.AUniformRead, name)
			if err := bd.d.buf.track.each(bd.off, bd.size, func(s *state) *gpu.HazardError { return s.checkRead(bd.d.buf.Name(), a) }); err != nil {
				return err
			}
		case gpu.DStorage, gpu.DStorageDynamic:
			a := ex.at(gpu.SComputeShader, gpu.AShaderRead, name)
			if err := bd.d.buf.track.each(bd.off, bd.size, func(s *state) *gpu.HazardError { return s.checkRead(bd.d.buf.Name(), a) }); err != nil {
				return err
			}
			if !bd.b.ReadOnly {
				writes = append(writes, bd)
			}
		case gpu.DSampledImage:
			if err := ex.readView(bd.d.view, ex.at(gpu.SComputeShader, gpu.AShaderRead, name)); err != nil {
				return err
			}
		}
		if bd.d.buf != nil {
			inv.windows[[2]int{bd.set, bd.b.Nr}] = bd.d.buf.data[bd.off : bd.off+bd.size]
		}
	}
	for _, bd := range writes {
		a := ex.at(gpu.SComputeShader, gpu.AShaderWrite, name)
		if err := bd.d.buf.track.each(bd.off, bd.size, func(s *state) *gpu.HazardError { return s.checkWrite(bd.d.buf.Name(), a) }); err != nil {
			return err
		}
	}

	for z := 0; z < groups[2]; z++ {
		for y := 0; y < groups[1]; y++ {
			for x := 0; x < groups[0]; x++ {
				inv.Group = [3]int{x, y, z}
				if err := p.kernel(inv); err != nil {
					return fmt.Errorf("soft: kernel %s group %v: %w", p.name, inv.Group, err)
				}
			}
		}
	}
	ex.stats.Dispatches++
	return nil
}

// attachmentAccess returns the stage and access of an attachment write or
// load.
func attachmentAccess(f gpu.Format, write bool) (gpu.Sync, gpu.Access) {
	if f.IsDepth() {
		if write {
			return gpu.SEarlyFragmentTests | gpu.SLateFragmentTests, gpu.ADepthWrite
		}
		return gpu.SEarlyFragmentTests | gpu.SLateFragmentTests, gpu.ADepthRead
	}
	if write {
		return gpu.SColorOutput, gpu.AColorWrite
	}
	return gpu.SColorOutput, gpu.AColorRead
}

func (ex *executor) eachLayer(v *view, fn func(name string, ls *layerState) error) error {
	for l := v.layer; l < v.layer+v.layers; l++ {
		if err := fn(layerName(v.img, l), &v.img.layers[l]); err != nil {
			return err
		}
	}
	return nil
}

func (ex *executor) beginPass(name string, pass *renderPass, fb *framebuffer) error {
	if ex.pass != nil {
		return fmt.Errorf("soft: nested render pass")
	}
	if fb.pass != pass {
		return fmt.Errorf("soft: framebuffer created for %q", fb.pass.desc.Name)
	}
	ps := &passState{pass: pass, fb: fb, id: ex.cmd, name: name}
	for i, att := range pass.desc.Attachments {
		err := ex.eachLayer(fb.views[i], func(res string, ls *layerState) error {
			if att.Initial != gpu.LUndefined && ls.layout != att.Initial {
				return &gpu.HazardError{
					Kind: gpu.BadLayout, Resource: res, Command: name, Prev: ls.layout.String(),
					Detail: "attachment expects " + att.Initial.String(),
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	for _, dep := range pass.desc.Dependencies {
		if dep.Src == gpu.External {
			ex.global(dep.SrcSync, dep.DstSync, dep.SrcAccess, dep.DstAccess)
		}
	}
	for i, att := range pass.desc.Attachments {
		write := att.Load != gpu.LoadLoad
		sync, acc := attachmentAccess(att.Format, write)
		a := access{sync: sync, access: acc, cmd: ps.id, name: name}
		target := gpu.LColorTarget
		if att.Format.IsDepth() {
			target = gpu.LDepthTarget
		}
		err := ex.eachLayer(fb.views[i], func(res string, ls *layerState) error {
			ls.layout = target
			if write {
				return herr(ls.st.checkWrite(res, a))
			}
			return herr(ls.st.checkRead(res, a))
		})
		if err != nil {
			return err
		}
	}
	ex.pass = ps
	return nil
}

// attachmentBarrier applies a subpass dependency to the attachments of the
// current pass.
func (ex *executor) attachmentBarrier(dep gpu.Dependency) {
	for _, v := range ex.pass.fb.views {
		ex.eachLayer(v, func(_ string, ls *layerState) error {
			ls.st.barrier(dep.SrcSync, dep.DstSync, dep.SrcAccess, dep.DstAccess)
			return nil
		})
	}
}

func (ex *executor) nextSubpass(name string) error {
	ps := ex.pass
	if ps == nil {
		return fmt.Errorf("soft: next subpass outside render pass")
	}
	next := ps.subpass + 1
	if next >= len(ps.pass.desc.Subpasses) {
		return fmt.Errorf("soft: render pass %q has no subpass %d", ps.pass.desc.Name, next)
	}
	for _, dep := range ps.pass.desc.Dependencies {
		if dep.Dst == next && dep.Src != gpu.External {
			ex.attachmentBarrier(dep)
		}
	}
	ps.subpass = next
	return nil
}

func (ex *executor) endPass(name string) error {
	ps := ex.pass
	if ps == nil {
		return fmt.Errorf("soft: end pass outside render pass")
	}
	if last := len(ps.pass.desc.Subpasses) - 1; ps.subpass != last {
		return fmt.Errorf("soft: render pass %q ended in subpass %d of %d", ps.pass.desc.Name, ps.subpass, last+1)
	}
	for i, att := range ps.pass.desc.Attachments {
		ex.eachLayer(ps.fb.views[i], func(_ string, ls *layerState) error {
			ls.layout = att.Final
			return nil
		})
	}
	for _, dep := range ps.pass.desc.Dependencies {
		if dep.Dst == gpu.External {
			ex.global(dep.SrcSync, dep.DstSync, dep.SrcAccess, dep.DstAccess)
		}
	}
	ex.stats.Passes = append(ex.stats.Passes, ps.pass.desc.Name)
	ex.pass = nil
	return nil
}

func (ex *executor) readBuffer(b *buffer, off, size int64, a access) error {
	if size <= 0 {
		size = b.Size() - off
	}
	if err := ex.dev.checkRange(b, off, size); err != nil {
		return err
	}
	return herr(b.track.each(off, size, func(s *state) *gpu.HazardError { return s.checkRead(b.Name(), a) }))
}

func (ex *executor) draw(name string, args drawArgs) error {
	ps := ex.pass
	if ps == nil {
		return fmt.Errorf("soft: draw outside render pass")
	}
	p := ex.bind[gpu.BindGraphics].pipeline
	if p == nil {
		return fmt.Errorf("soft: draw without graphics pipeline")
	}
	name = name + " " + p.name
	if rp, _ := p.graphics.Pass.(*renderPass); rp != ps.pass || p.graphics.Subpass != ps.subpass {
		return fmt.Errorf("soft: pipeline %q used in %q subpass %d", p.name, ps.pass.desc.Name, ps.subpass)
	}
	if !ex.viewport || !ex.scissor {
		return fmt.Errorf("soft: draw without viewport and scissor")
	}
	if p.graphics.VertexStride > 0 {
		if ex.vertex == nil {
			return fmt.Errorf("soft: pipeline %q needs a vertex buffer", p.name)
		}
		if err := ex.readBuffer(ex.vertex, ex.vertexOff, 0, ex.at(gpu.SVertexInput, gpu.AVertexAttribRead, name)); err != nil {
			return err
		}
	}
	if args.indexed {
		if ex.index == nil {
			return fmt.Errorf("soft: indexed draw without index buffer")
		}
		if err := ex.readBuffer(ex.index, ex.indexOff, 0, ex.at(gpu.SVertexInput, gpu.AIndexRead, name)); err != nil {
			return err
		}
	}
	if args.indirect != nil {
		size := int64(gpu.DrawIndirectSize)
		if args.indexed {
			size = gpu.DrawIndexedIndirectSize
		}
		if args.stride == 0 {
			args.stride = int(size)
		}
		if args.drawCount > 0 {
			span := int64(args.drawCount-1)*int64(args.stride) + size
			if err := ex.readBuffer(args.indirect, args.off, span, ex.at(gpu.SDrawIndirect, gpu.AIndirectRead, name)); err != nil {
				return err
			}
		}
	}

	descs, err := ex.resolve(p)
	if err != nil {
		return err
	}
	for _, bd := range descs {
		stages := bd.b.Stages & p.stages
		var err error
		stages.Each(func(st gpu.Stage) {
			if err != nil {
				return
			}
			switch bd.b.Type {
			case gpu.DUniform, gpu.DUniformDynamic:
				err = ex.readBuffer(bd.d.buf, bd.off, bd.size, ex.at(st.Sync(), gpu.AUniformRead, name))
			case gpu.DStorage, gpu.DStorageDynamic:
				err = ex.readBuffer(bd.d.buf, bd.off, bd.size, ex.at(st.Sync(), gpu.AShaderRead, name))
			case gpu.DSampledImage:
				err = ex.readView(bd.d.view, ex.at(st.Sync(), gpu.AShaderRead, name))
			}
		})
		if err != nil {
			return err
		}
	}

	sp := ps.pass.desc.Subpasses[ps.subpass]
	if p.stages&gpu.StFragment != 0 {
		for _, in := range sp.Input {
			a := access{sync: gpu.SFragmentShader, access: gpu.AInputAttachmentRead, cmd: ps.id, name: name, strict: true}
			err := ex.eachLayer(ps.fb.views[in], func(res string, ls *layerState) error {
				return herr(ls.st.checkRead(res, a))
			})
			if err != nil {
				return err
			}
		}
	}
	for _, c := range sp.Color {
		sync, acc := attachmentAccess(ps.pass.desc.Attachments[c].Format, true)
		a := access{sync: sync, access: acc, cmd: ps.id, name: name}
		if err := ex.eachLayer(ps.fb.views[c], func(res string, ls *layerState) error {
			return herr(ls.st.checkWrite(res, a))
		}); err != nil {
			return err
		}
	}
	if sp.Depth != gpu.Unused && p.graphics.Depth.Test {
		sync, acc := attachmentAccess(ps.pass.desc.Attachments[sp.Depth].Format, p.graphics.Depth.Write)
		a := access{sync: sync, access: acc, cmd: ps.id, name: name}
		if err := ex.eachLayer(ps.fb.views[sp.Depth], func(res string, ls *layerState) error {
			if p.graphics.Depth.Write {
				return herr(ls.st.checkWrite(res, a))
			}
			return herr(ls.st.checkRead(res, a))
		}); err != nil {
			return err
		}
	}

	return ex.recordDraw(p, ps, args)
}

func (ex *executor) recordDraw(p *pipeline, ps *passState, args drawArgs) error {
	stat := DrawStat{Pipeline: p.name, Pass: ps.pass.desc.Name, Subpass: ps.subpass, Indexed: args.indexed}
	if args.indirect == nil {
		stat.Count, stat.Instances = args.count, args.instances
		ex.stats.Draws = append(ex.stats.Draws, stat)
		return nil
	}
	stat.Indirect = true
	for i := 0; i < args.drawCount; i++ {
		at := args.off + int64(i*args.stride)
		if args.indexed {
			c := gpu.DecodeDrawIndexedIndirect(args.indirect.data[at:])
			if c.InstanceCount > 0 {
				n := (ex.index.Size() - ex.indexOff) / 4
				if int64(c.FirstIndex)+int64(c.IndexCount) > n {
					return fmt.Errorf("soft: indirect draw %d reads indices [%d, %d) of %d", i, c.FirstIndex, c.FirstIndex+c.IndexCount, n)
				}
			}
			stat.Count, stat.Instances = int(c.IndexCount), int(c.InstanceCount)
		} else {
			c := gpu.DecodeDrawIndirect(args.indirect.data[at:])
			stat.Count, stat.Instances = int(c.VertexCount), int(c.InstanceCount)
		}
		ex.stats.Draws = append(ex.stats.Draws, stat)
	}
	return nil
}
