// Package glgpu implements the gpu interfaces on OpenGL 4.6.
//
// Command buffers record closures that are replayed on the context thread at
// submit. Descriptor (set, binding) pairs map to GL binding points
// set*8+binding in every namespace, and push constants are a uniform block
// at binding 31. Every call must be made from the thread owning the context.
package glgpu

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/go-gl/gl/v4.6-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/vigil/internal/engine/gpu"
	"github.com/Faultbox/vigil/internal/logger"
)

// Binding layout shared with the GLSL sources.
const (
	bindingsPerSet = 8
	pushBinding    = 31
	maxPushSize    = 256
)

var errWaitUnsignaled = errors.New("glgpu: wait on a fence that was never submitted")

// Device is a gpu.Device on the current OpenGL context.
type Device struct {
	log    *zap.Logger
	limits gpu.Limits

	// push backs the push constant block.
	push uint32
	// inputSmpl samples input attachments, which come without a sampler.
	inputSmpl uint32
}

var _ gpu.Device = (*Device)(nil)

// New loads the GL entry points of the current context and returns a
// device using it.
func New() (*Device, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("initializing OpenGL: %w", err)
	}
	d := &Device{log: logger.Named("gpu.gl")}
	d.queryLimits()

	gl.CreateBuffers(1, &d.push)
	gl.NamedBufferStorage(d.push, maxPushSize, nil, gl.DYNAMIC_STORAGE_BIT)
	gl.BindBufferBase(gl.UNIFORM_BUFFER, pushBinding, d.push)

	gl.CreateSamplers(1, &d.inputSmpl)
	gl.SamplerParameteri(d.inputSmpl, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.SamplerParameteri(d.inputSmpl, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	gl.SamplerParameteri(d.inputSmpl, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.SamplerParameteri(d.inputSmpl, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)

	gl.Enable(gl.DEBUG_OUTPUT)
	gl.DebugMessageCallback(d.debugMessage, nil)
	// Depth is written in [0, 1] like the explicit APIs.
	gl.ClipControl(gl.LOWER_LEFT, gl.ZERO_TO_ONE)
	gl.Enable(gl.TEXTURE_CUBE_MAP_SEAMLESS)

	d.log.Info("OpenGL device created",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
		zap.Int64("ubo_align", d.limits.UniformOffsetAlign),
		zap.Int64("ssbo_align", d.limits.StorageOffsetAlign))
	return d, nil
}

func (d *Device) debugMessage(source, gltype, id, severity uint32, length int32, message string, userParam unsafe.Pointer) {
	switch severity {
	case gl.DEBUG_SEVERITY_HIGH:
		d.log.Error("gl", zap.Uint32("id", id), zap.String("message", message))
	case gl.DEBUG_SEVERITY_MEDIUM:
		d.log.Warn("gl", zap.Uint32("id", id), zap.String("message", message))
	}
}

func (d *Device) queryLimits() {
	geti := func(name uint32) int {
		var v int32
		gl.GetIntegerv(name, &v)
		return int(v)
	}
	getIndexed := func(name uint32, i uint32) int {
		var v int32
		gl.GetIntegeri_v(name, i, &v)
		return int(v)
	}
	d.limits = gpu.Limits{
		MaxPushConstSize: maxPushSize,
		MaxComputeGroups: [3]int{
			getIndexed(gl.MAX_COMPUTE_WORK_GROUP_COUNT, 0),
			getIndexed(gl.MAX_COMPUTE_WORK_GROUP_COUNT, 1),
			getIndexed(gl.MAX_COMPUTE_WORK_GROUP_COUNT, 2),
		},
		MaxImage2D:           geti(gl.MAX_TEXTURE_SIZE),
		MaxColorTargets:      geti(gl.MAX_DRAW_BUFFERS),
		UniformOffsetAlign:   int64(geti(gl.UNIFORM_BUFFER_OFFSET_ALIGNMENT)),
		StorageOffsetAlign:   int64(geti(gl.SHADER_STORAGE_BUFFER_OFFSET_ALIGNMENT)),
		MaxDrawIndirectCount: 1 << 20,
	}
}

// Backend implements gpu.Device.
func (d *Device) Backend() string { return "opengl" }

// Limits implements gpu.Device.
func (d *Device) Limits() gpu.Limits { return d.limits }

// Destroy implements gpu.Device.
func (d *Device) Destroy() {
	if d.push != 0 {
		gl.DeleteBuffers(1, &d.push)
		d.push = 0
	}
	if d.inputSmpl != 0 {
		gl.DeleteSamplers(1, &d.inputSmpl)
		d.inputSmpl = 0
	}
}

// NewBuffer implements gpu.Device.
func (d *Device) NewBuffer(desc gpu.BufferDesc) (gpu.Buffer, error) {
	if desc.Size <= 0 {
		return nil, fmt.Errorf("glgpu: buffer %q: size %d", desc.Name, desc.Size)
	}
	b := &buffer{desc: desc}
	gl.CreateBuffers(1, &b.id)
	gl.NamedBufferStorage(b.id, int(desc.Size), nil, gl.DYNAMIC_STORAGE_BIT)
	gl.ObjectLabel(gl.BUFFER, b.id, -1, gl.Str(desc.Name+"\x00"))
	return b, nil
}

func checkRange(b *buffer, off int64, n int) error {
	if off < 0 || off+int64(n) > b.desc.Size {
		return fmt.Errorf("glgpu: buffer %q: range [%d, %d) out of bounds %d", b.desc.Name, off, off+int64(n), b.desc.Size)
	}
	return nil
}

// WriteBuffer implements gpu.Device.
func (d *Device) WriteBuffer(buf gpu.Buffer, off int64, data []byte) error {
	b := buf.(*buffer)
	if err := checkRange(b, off, len(data)); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	gl.NamedBufferSubData(b.id, int(off), len(data), gl.Ptr(data))
	return nil
}

// ReadBuffer implements gpu.Device.
func (d *Device) ReadBuffer(buf gpu.Buffer, off int64, data []byte) error {
	b := buf.(*buffer)
	if err := checkRange(b, off, len(data)); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	gl.MemoryBarrier(gl.BUFFER_UPDATE_BARRIER_BIT)
	gl.GetNamedBufferSubData(b.id, int(off), len(data), gl.Ptr(data))
	return nil
}

// NewImage implements gpu.Device.
func (d *Device) NewImage(desc gpu.ImageDesc) (gpu.Image, error) {
	f, err := lookupFormat(desc.Format)
	if err != nil {
		return nil, err
	}
	if desc.Layers <= 0 {
		desc.Layers = 1
	}
	if desc.Extent.Width <= 0 || desc.Extent.Height <= 0 {
		return nil, fmt.Errorf("glgpu: image %q: extent %v", desc.Name, desc.Extent)
	}
	img := &image{desc: desc, format: f, target: gl.TEXTURE_2D}
	if desc.Layers > 1 {
		img.target = gl.TEXTURE_2D_ARRAY
	}
	gl.CreateTextures(img.target, 1, &img.id)
	w, h := int32(desc.Extent.Width), int32(desc.Extent.Height)
	if img.target == gl.TEXTURE_2D_ARRAY {
		gl.TextureStorage3D(img.id, 1, f.internal, w, h, int32(desc.Layers))
	} else {
		gl.TextureStorage2D(img.id, 1, f.internal, w, h)
	}
	gl.ObjectLabel(gl.TEXTURE, img.id, -1, gl.Str(desc.Name+"\x00"))
	return img, nil
}

// WriteImage implements gpu.Device.
func (d *Device) WriteImage(im gpu.Image, data []byte) error {
	img := im.(*image)
	e := img.desc.Extent
	want := e.Width * e.Height * img.desc.Layers * img.desc.Format.Size()
	if len(data) != want {
		return fmt.Errorf("glgpu: image %q: %d bytes, want %d", img.desc.Name, len(data), want)
	}
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	w, h := int32(e.Width), int32(e.Height)
	if img.target == gl.TEXTURE_2D_ARRAY {
		gl.TextureSubImage3D(img.id, 0, 0, 0, 0, w, h, int32(img.desc.Layers), img.format.format, img.format.xtype, gl.Ptr(data))
	} else {
		gl.TextureSubImage2D(img.id, 0, 0, 0, w, h, img.format.format, img.format.xtype, gl.Ptr(data))
	}
	return nil
}

// NewView implements gpu.Device.
func (d *Device) NewView(im gpu.Image, layer, layers int) (gpu.ImageView, error) {
	img := im.(*image)
	if layer < 0 || layers <= 0 || layer+layers > img.desc.Layers {
		return nil, fmt.Errorf("glgpu: view of %q: layers [%d, %d) out of %d", img.desc.Name, layer, layer+layers, img.desc.Layers)
	}
	v := &view{img: img, layer: layer, layers: layers}
	target := uint32(gl.TEXTURE_2D)
	if layers > 1 {
		target = gl.TEXTURE_2D_ARRAY
	}
	gl.GenTextures(1, &v.id)
	gl.TextureView(v.id, target, img.id, img.format.internal, 0, 1, uint32(layer), uint32(layers))
	return v, nil
}

// NewSampler implements gpu.Device.
func (d *Device) NewSampler(desc gpu.SamplerDesc) (gpu.Sampler, error) {
	s := &sampler{}
	gl.CreateSamplers(1, &s.id)
	filter := int32(gl.NEAREST)
	if desc.Filter == gpu.FilterLinear {
		filter = gl.LINEAR
	}
	wrap := int32(gl.CLAMP_TO_EDGE)
	if desc.Addr == gpu.AddrRepeat {
		wrap = gl.REPEAT
	}
	gl.SamplerParameteri(s.id, gl.TEXTURE_MIN_FILTER, filter)
	gl.SamplerParameteri(s.id, gl.TEXTURE_MAG_FILTER, filter)
	gl.SamplerParameteri(s.id, gl.TEXTURE_WRAP_S, wrap)
	gl.SamplerParameteri(s.id, gl.TEXTURE_WRAP_T, wrap)
	return s, nil
}

// NewRenderPass implements gpu.Device.
func (d *Device) NewRenderPass(desc gpu.RenderPassDesc) (gpu.RenderPass, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	return &renderPass{desc: desc}, nil
}

// NewFramebuffer implements gpu.Device.
func (d *Device) NewFramebuffer(rp gpu.RenderPass, views []gpu.ImageView, extent gpu.Extent2D) (gpu.Framebuffer, error) {
	pass := rp.(*renderPass)
	if len(views) != len(pass.desc.Attachments) {
		return nil, fmt.Errorf("glgpu: framebuffer for %q: %d views, want %d", pass.desc.Name, len(views), len(pass.desc.Attachments))
	}
	fb := &framebuffer{
		pass:   pass,
		views:  views,
		extent: extent,
		fbos:   make([]uint32, len(pass.desc.Subpasses)),
		clears: make([]clearTarget, len(views)),
	}
	gl.CreateFramebuffers(int32(len(fb.fbos)), &fb.fbos[0])

	for si, sp := range pass.desc.Subpasses {
		fbo := fb.fbos[si]
		drawBuffers := make([]uint32, len(sp.Color))
		for i, a := range sp.Color {
			attach := uint32(gl.COLOR_ATTACHMENT0 + i)
			gl.NamedFramebufferTexture(fbo, attach, views[a].(*view).id, 0)
			drawBuffers[i] = attach
			if !fb.clears[a].used {
				fb.clears[a] = clearTarget{fbo: fbo, drawBuffer: int32(i), used: true}
			}
		}
		if sp.Depth != gpu.Unused {
			v := views[sp.Depth].(*view)
			gl.NamedFramebufferTexture(fbo, depthAttachment(v.img.desc.Format), v.id, 0)
			if !fb.clears[sp.Depth].used {
				fb.clears[sp.Depth] = clearTarget{fbo: fbo, drawBuffer: -1, used: true}
			}
		}
		if len(drawBuffers) > 0 {
			gl.NamedFramebufferDrawBuffers(fbo, int32(len(drawBuffers)), &drawBuffers[0])
		} else {
			gl.NamedFramebufferDrawBuffer(fbo, gl.NONE)
		}

		if status := gl.CheckNamedFramebufferStatus(fbo, gl.FRAMEBUFFER); status != gl.FRAMEBUFFER_COMPLETE {
			fb.Destroy()
			return nil, fmt.Errorf("glgpu: framebuffer for %q subpass %d incomplete: 0x%x", pass.desc.Name, si, status)
		}
	}
	return fb, nil
}

// NewDescSetLayout implements gpu.Device.
func (d *Device) NewDescSetLayout(bindings []gpu.Binding) (gpu.DescSetLayout, error) {
	for _, b := range bindings {
		if b.Nr < 0 || b.Nr >= bindingsPerSet {
			return nil, fmt.Errorf("glgpu: binding %d outside [0, %d)", b.Nr, bindingsPerSet)
		}
	}
	return &descSetLayout{bindings: append([]gpu.Binding(nil), bindings...)}, nil
}

// NewDescSet implements gpu.Device.
func (d *Device) NewDescSet(layout gpu.DescSetLayout) (gpu.DescSet, error) {
	return &descSet{layout: layout.(*descSetLayout), descs: map[int]descriptor{}}, nil
}

// NewPipelineLayout implements gpu.Device.
func (d *Device) NewPipelineLayout(sets []gpu.DescSetLayout, pushConstSize int) (gpu.PipelineLayout, error) {
	if pushConstSize > maxPushSize {
		return nil, fmt.Errorf("glgpu: push constants of %d bytes exceed %d", pushConstSize, maxPushSize)
	}
	if len(sets)*bindingsPerSet > pushBinding {
		return nil, fmt.Errorf("glgpu: %d descriptor sets overlap the push constant binding", len(sets))
	}
	return &pipelineLayout{sets: append([]gpu.DescSetLayout(nil), sets...), pushSize: pushConstSize}, nil
}

// NewComputePipeline implements gpu.Device.
func (d *Device) NewComputePipeline(desc gpu.ComputePipelineDesc) (gpu.Pipeline, error) {
	prog, err := linkProgram(desc.Name, []gpu.Shader{desc.Shader})
	if err != nil {
		return nil, err
	}
	return &pipeline{
		name:    desc.Name,
		program: prog,
		layout:  desc.Layout.(*pipelineLayout),
		bp:      gpu.BindCompute,
		stages:  gpu.StCompute,
	}, nil
}

// NewGraphicsPipeline implements gpu.Device.
func (d *Device) NewGraphicsPipeline(desc gpu.GraphicsPipelineDesc) (gpu.Pipeline, error) {
	prog, err := linkProgram(desc.Name, desc.Shaders)
	if err != nil {
		return nil, err
	}
	p := &pipeline{
		name:     desc.Name,
		program:  prog,
		layout:   desc.Layout.(*pipelineLayout),
		bp:       gpu.BindGraphics,
		stages:   desc.Stages(),
		graphics: desc,
	}
	gl.CreateVertexArrays(1, &p.vao)
	for _, a := range desc.Vertex {
		loc := uint32(a.Location)
		gl.EnableVertexArrayAttrib(p.vao, loc)
		gl.VertexArrayAttribFormat(p.vao, loc, int32(a.Components), gl.FLOAT, false, uint32(a.Offset))
		gl.VertexArrayAttribBinding(p.vao, loc, 0)
	}
	return p, nil
}

// NewCmdBuffer implements gpu.Device.
func (d *Device) NewCmdBuffer() (gpu.CmdBuffer, error) {
	return &cmdBuffer{dev: d}, nil
}

// NewFence implements gpu.Device.
func (d *Device) NewFence(signaled bool) (gpu.Fence, error) {
	return &fence{signaled: signaled}, nil
}

// Submit implements gpu.Device.
func (d *Device) Submit(cbs []gpu.CmdBuffer, fn gpu.Fence) error {
	var f *fence
	if fn != nil {
		f = fn.(*fence)
		if f.signaled || f.sync != 0 {
			return fmt.Errorf("glgpu: submit with signaled fence")
		}
	}
	for _, c := range cbs {
		cb := c.(*cmdBuffer)
		if cb.recording {
			return fmt.Errorf("glgpu: submit of command buffer still recording")
		}
		st := &replay{dev: d}
		for _, op := range cb.ops {
			op(st)
		}
		st.finish()
	}
	if f != nil {
		f.sync = gl.FenceSync(gl.SYNC_GPU_COMMANDS_COMPLETE, 0)
	}
	gl.Flush()
	if code := gl.GetError(); code == gl.OUT_OF_MEMORY {
		return gpu.ErrOutOfMemory
	}
	return nil
}

// WaitIdle implements gpu.Device.
func (d *Device) WaitIdle() error {
	gl.Finish()
	return nil
}
