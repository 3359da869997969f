package soft

import (
	"github.com/Faultbox/vigil/internal/engine/gpu"
)

// res is embedded by every soft resource to keep the live count honest.
type res struct {
	dev       *Device
	destroyed bool
}

func (r *res) init(d *Device) {
	r.dev = d
	d.live++
}

func (r *res) Destroy() {
	if r.destroyed {
		return
	}
	r.destroyed = true
	r.dev.live--
}

type buffer struct {
	res
	desc  gpu.BufferDesc
	data  []byte
	track *spans
}

func (b *buffer) Name() string     { return b.desc.Name }
func (b *buffer) Size() int64      { return b.desc.Size }
func (b *buffer) Usage() gpu.Usage { return b.desc.Usage }

func (b *buffer) Destroy() {
	if !b.destroyed {
		delete(b.dev.buffers, b)
	}
	b.res.Destroy()
}

type image struct {
	res
	desc   gpu.ImageDesc
	layers []layerState
}

type layerState struct {
	layout gpu.Layout
	st     state
}

func (i *image) Name() string         { return i.desc.Name }
func (i *image) Format() gpu.Format   { return i.desc.Format }
func (i *image) Extent() gpu.Extent2D { return i.desc.Extent }
func (i *image) Layers() int          { return i.desc.Layers }

func (i *image) Destroy() {
	if !i.destroyed {
		delete(i.dev.images, i)
	}
	i.res.Destroy()
}

type view struct {
	res
	img           *image
	layer, layers int
}

func (v *view) Image() gpu.Image { return v.img }
func (v *view) Layer() int       { return v.layer }
func (v *view) Layers() int      { return v.layers }

type sampler struct {
	res
	desc gpu.SamplerDesc
}

type renderPass struct {
	res
	desc gpu.RenderPassDesc
}

func (p *renderPass) Desc() *gpu.RenderPassDesc { return &p.desc }

type framebuffer struct {
	res
	pass   *renderPass
	views  []*view
	extent gpu.Extent2D
}

func (f *framebuffer) Extent() gpu.Extent2D { return f.extent }

func (f *framebuffer) Views() []gpu.ImageView {
	out := make([]gpu.ImageView, len(f.views))
	for i, v := range f.views {
		out[i] = v
	}
	return out
}

type descSetLayout struct {
	res
	bindings []gpu.Binding
	dynamic  int
}

func (l *descSetLayout) Bindings() []gpu.Binding { return l.bindings }

func (l *descSetLayout) binding(nr int) (gpu.Binding, bool) {
	for _, b := range l.bindings {
		if b.Nr == nr {
			return b, true
		}
	}
	return gpu.Binding{}, false
}

type descriptor struct {
	set     bool
	buf     *buffer
	off     int64
	size    int64
	view    *view
	sampler *sampler
}

type descSet struct {
	res
	layout *descSetLayout
	descs  map[int]*descriptor
}

func (s *descSet) Layout() gpu.DescSetLayout { return s.layout }

func (s *descSet) SetBuffer(nr int, buf gpu.Buffer, off, size int64) {
	b := buf.(*buffer)
	if size == 0 {
		size = b.Size() - off
	}
	s.descs[nr] = &descriptor{set: true, buf: b, off: off, size: size}
}

func (s *descSet) SetImage(nr int, v gpu.ImageView, splr gpu.Sampler) {
	d := &descriptor{set: true, view: v.(*view)}
	if splr != nil {
		d.sampler = splr.(*sampler)
	}
	s.descs[nr] = d
}

type pipelineLayout struct {
	res
	sets     []*descSetLayout
	pushSize int
}

func (l *pipelineLayout) Sets() []gpu.DescSetLayout {
	out := make([]gpu.DescSetLayout, len(l.sets))
	for i, s := range l.sets {
		out[i] = s
	}
	return out
}

func (l *pipelineLayout) PushConstSize() int { return l.pushSize }

type pipeline struct {
	res
	name     string
	layout   *pipelineLayout
	bp       gpu.BindPoint
	stages   gpu.Stage
	kernel   Kernel
	graphics gpu.GraphicsPipelineDesc
}

func (p *pipeline) Name() string               { return p.name }
func (p *pipeline) Layout() gpu.PipelineLayout { return p.layout }
func (p *pipeline) BindPoint() gpu.BindPoint   { return p.bp }
func (p *pipeline) Stages() gpu.Stage          { return p.stages }

type fence struct {
	res
	signaled bool
}

func (f *fence) Wait() error {
	if !f.signaled {
		return errWaitUnsignaled
	}
	return nil
}

func (f *fence) Reset() error {
	f.signaled = false
	return nil
}
