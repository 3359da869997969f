package glgpu

import (
	"github.com/go-gl/gl/v4.6-core/gl"

	"github.com/Faultbox/vigil/internal/engine/gpu"
)

type buffer struct {
	id   uint32
	desc gpu.BufferDesc
}

func (b *buffer) Name() string     { return b.desc.Name }
func (b *buffer) Size() int64      { return b.desc.Size }
func (b *buffer) Usage() gpu.Usage { return b.desc.Usage }

func (b *buffer) Destroy() {
	if b.id != 0 {
		gl.DeleteBuffers(1, &b.id)
		b.id = 0
	}
}

type image struct {
	id     uint32
	target uint32
	desc   gpu.ImageDesc
	format glFormat
}

func (i *image) Name() string         { return i.desc.Name }
func (i *image) Format() gpu.Format   { return i.desc.Format }
func (i *image) Extent() gpu.Extent2D { return i.desc.Extent }
func (i *image) Layers() int          { return i.desc.Layers }

func (i *image) Destroy() {
	if i.id != 0 {
		gl.DeleteTextures(1, &i.id)
		i.id = 0
	}
}

// view is a GL texture view. Single layer views are 2D textures, so a
// cascade layer of a shadow array can be attached or sampled on its own.
type view struct {
	id            uint32
	img           *image
	layer, layers int
}

func (v *view) Image() gpu.Image { return v.img }
func (v *view) Layer() int       { return v.layer }
func (v *view) Layers() int      { return v.layers }

func (v *view) Destroy() {
	if v.id != 0 {
		gl.DeleteTextures(1, &v.id)
		v.id = 0
	}
}

type sampler struct {
	id uint32
}

func (s *sampler) Destroy() {
	if s.id != 0 {
		gl.DeleteSamplers(1, &s.id)
		s.id = 0
	}
}

type renderPass struct {
	desc gpu.RenderPassDesc
}

func (p *renderPass) Desc() *gpu.RenderPassDesc { return &p.desc }
func (p *renderPass) Destroy()                  {}

// clearTarget locates an attachment in the framebuffer object of the first
// subpass using it.
type clearTarget struct {
	fbo uint32
	// drawBuffer is the color draw buffer index, or -1 for depth.
	drawBuffer int32
	used       bool
}

// framebuffer holds one GL framebuffer object per subpass. GL has no
// subpasses; switching objects is what lets a later subpass sample the
// attachments an earlier one rendered.
type framebuffer struct {
	pass   *renderPass
	views  []gpu.ImageView
	extent gpu.Extent2D
	fbos   []uint32
	clears []clearTarget
}

func (f *framebuffer) Extent() gpu.Extent2D    { return f.extent }
func (f *framebuffer) Views() []gpu.ImageView { return f.views }

func (f *framebuffer) Destroy() {
	if len(f.fbos) > 0 {
		gl.DeleteFramebuffers(int32(len(f.fbos)), &f.fbos[0])
		f.fbos = nil
	}
}

type descSetLayout struct {
	bindings []gpu.Binding
}

func (l *descSetLayout) Bindings() []gpu.Binding { return l.bindings }
func (l *descSetLayout) Destroy()                {}

func (l *descSetLayout) binding(nr int) (gpu.Binding, bool) {
	for _, b := range l.bindings {
		if b.Nr == nr {
			return b, true
		}
	}
	return gpu.Binding{}, false
}

type descriptor struct {
	buf       *buffer
	off, size int64
	view      *view
	sampler   *sampler
}

type descSet struct {
	layout *descSetLayout
	descs  map[int]descriptor
}

func (s *descSet) Layout() gpu.DescSetLayout { return s.layout }
func (s *descSet) Destroy()                  {}

func (s *descSet) SetBuffer(nr int, buf gpu.Buffer, off, size int64) {
	b := buf.(*buffer)
	if size == 0 {
		size = b.desc.Size - off
	}
	s.descs[nr] = descriptor{buf: b, off: off, size: size}
}

func (s *descSet) SetImage(nr int, v gpu.ImageView, splr gpu.Sampler) {
	d := descriptor{view: v.(*view)}
	if splr != nil {
		d.sampler = splr.(*sampler)
	}
	s.descs[nr] = d
}

type pipelineLayout struct {
	sets     []gpu.DescSetLayout
	pushSize int
}

func (l *pipelineLayout) Sets() []gpu.DescSetLayout { return l.sets }
func (l *pipelineLayout) PushConstSize() int        { return l.pushSize }
func (l *pipelineLayout) Destroy()                  {}

type pipeline struct {
	name     string
	program  uint32
	vao      uint32
	layout   *pipelineLayout
	bp       gpu.BindPoint
	stages   gpu.Stage
	graphics gpu.GraphicsPipelineDesc
}

func (p *pipeline) Name() string                { return p.name }
func (p *pipeline) Layout() gpu.PipelineLayout { return p.layout }
func (p *pipeline) BindPoint() gpu.BindPoint   { return p.bp }
func (p *pipeline) Stages() gpu.Stage          { return p.stages }

func (p *pipeline) Destroy() {
	if p.program != 0 {
		gl.DeleteProgram(p.program)
		p.program = 0
	}
	if p.vao != 0 {
		gl.DeleteVertexArrays(1, &p.vao)
		p.vao = 0
	}
}

// fenceTimeout bounds one ClientWaitSync call in nanoseconds.
const fenceTimeout = 100_000_000

type fence struct {
	sync     uintptr
	signaled bool
}

func (f *fence) Wait() error {
	if f.signaled {
		return nil
	}
	if f.sync == 0 {
		return errWaitUnsignaled
	}
	for {
		switch gl.ClientWaitSync(f.sync, gl.SYNC_FLUSH_COMMANDS_BIT, fenceTimeout) {
		case gl.ALREADY_SIGNALED, gl.CONDITION_SATISFIED:
			f.release()
			f.signaled = true
			return nil
		case gl.WAIT_FAILED:
			return gpu.ErrDeviceLost
		}
	}
}

func (f *fence) Reset() error {
	f.release()
	f.signaled = false
	return nil
}

func (f *fence) release() {
	if f.sync != 0 {
		gl.DeleteSync(f.sync)
		f.sync = 0
	}
}

func (f *fence) Destroy() { f.release() }
