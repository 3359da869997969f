// Package soft is a CPU reference implementation of the gpu interfaces.
//
// Command buffers are replayed in order at Submit. Compute pipelines run Go
// kernels registered by shader name, one workgroup at a time, so results are
// deterministic. Images carry no texels; only their layouts are tracked.
//
// Every command is checked against the barriers and subpass dependencies
// recorded before it. An access that is not ordered after a conflicting
// earlier access fails the submit with a *gpu.HazardError.
package soft

import (
	"encoding/binary"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/vigil/internal/engine/gpu"
	"github.com/Faultbox/vigil/internal/logger"
)

var le = binary.LittleEndian

var errWaitUnsignaled = errors.New("soft: wait on unsignaled fence with no pending work")

// Device is a soft gpu.Device.
type Device struct {
	kernels map[string]Kernel
	buffers map[*buffer]struct{}
	images  map[*image]struct{}
	live    int
	stats   Stats
	log     *zap.Logger
}

var _ gpu.Device = (*Device)(nil)

// New creates a soft device.
func New() *Device {
	return &Device{
		kernels: make(map[string]Kernel),
		buffers: make(map[*buffer]struct{}),
		images:  make(map[*image]struct{}),
		log:     logger.Named("gpu.soft"),
	}
}

// RegisterKernel makes fn the implementation of compute shaders named name.
// Kernels must be registered before pipelines using them are created.
func (d *Device) RegisterKernel(name string, fn Kernel) {
	d.kernels[name] = fn
}

// Live returns the number of resources created and not yet destroyed.
func (d *Device) Live() int { return d.live }

// Stats returns what the last successful Submit executed.
func (d *Device) Stats() Stats { return d.stats }

// Backend implements gpu.Device.
func (d *Device) Backend() string { return "soft" }

// Limits implements gpu.Device.
func (d *Device) Limits() gpu.Limits {
	return gpu.Limits{
		MaxPushConstSize:     128,
		MaxComputeGroups:     [3]int{65535, 65535, 65535},
		MaxImage2D:           16384,
		MaxColorTargets:      8,
		UniformOffsetAlign:   256,
		StorageOffsetAlign:   16,
		MaxDrawIndirectCount: 1 << 20,
	}
}

// Destroy implements gpu.Device.
func (d *Device) Destroy() {
	if d.live != 0 {
		d.log.Warn("device destroyed with live resources", zap.Int("live", d.live))
	}
}

// NewBuffer implements gpu.Device.
func (d *Device) NewBuffer(desc gpu.BufferDesc) (gpu.Buffer, error) {
	if desc.Size <= 0 {
		return nil, fmt.Errorf("soft: buffer %q: size %d", desc.Name, desc.Size)
	}
	b := &buffer{desc: desc, data: make([]byte, desc.Size), track: newSpans(desc.Size)}
	b.init(d)
	d.buffers[b] = struct{}{}
	return b, nil
}

func (d *Device) checkRange(b *buffer, off, n int64) error {
	if off < 0 || n < 0 || off+n > b.Size() {
		return fmt.Errorf("soft: buffer %q: range [%d, %d) out of bounds (size %d)", b.Name(), off, off+n, b.Size())
	}
	return nil
}

// WriteBuffer implements gpu.Device.
func (d *Device) WriteBuffer(buf gpu.Buffer, off int64, data []byte) error {
	b := buf.(*buffer)
	if err := d.checkRange(b, off, int64(len(data))); err != nil {
		return err
	}
	copy(b.data[off:], data)
	return nil
}

// ReadBuffer implements gpu.Device.
func (d *Device) ReadBuffer(buf gpu.Buffer, off int64, data []byte) error {
	b := buf.(*buffer)
	if err := d.checkRange(b, off, int64(len(data))); err != nil {
		return err
	}
	copy(data, b.data[off:])
	return nil
}

// NewImage implements gpu.Device.
func (d *Device) NewImage(desc gpu.ImageDesc) (gpu.Image, error) {
	if desc.Layers == 0 {
		desc.Layers = 1
	}
	if desc.Extent.Width <= 0 || desc.Extent.Height <= 0 {
		return nil, fmt.Errorf("soft: image %q: extent %dx%d", desc.Name, desc.Extent.Width, desc.Extent.Height)
	}
	if desc.Format == gpu.FormatUndefined {
		return nil, fmt.Errorf("soft: image %q: undefined format", desc.Name)
	}
	img := &image{desc: desc, layers: make([]layerState, desc.Layers)}
	img.init(d)
	d.images[img] = struct{}{}
	return img, nil
}

// WriteImage implements gpu.Device.
func (d *Device) WriteImage(im gpu.Image, data []byte) error {
	img := im.(*image)
	e := img.desc.Extent
	want := e.Width * e.Height * img.desc.Layers * img.desc.Format.Size()
	if len(data) != want {
		return fmt.Errorf("soft: image %q: %d bytes of texel data, want %d", img.Name(), len(data), want)
	}
	for i := range img.layers {
		img.layers[i] = layerState{layout: gpu.LShaderRead}
	}
	return nil
}

// NewView implements gpu.Device.
func (d *Device) NewView(im gpu.Image, layer, layers int) (gpu.ImageView, error) {
	img := im.(*image)
	if layers == 0 {
		layers = img.Layers() - layer
	}
	if layer < 0 || layers <= 0 || layer+layers > img.Layers() {
		return nil, fmt.Errorf("soft: image %q: view of layers [%d, %d) out of %d", img.Name(), layer, layer+layers, img.Layers())
	}
	v := &view{img: img, layer: layer, layers: layers}
	v.init(d)
	return v, nil
}

// NewSampler implements gpu.Device.
func (d *Device) NewSampler(desc gpu.SamplerDesc) (gpu.Sampler, error) {
	s := &sampler{desc: desc}
	s.init(d)
	return s, nil
}

// NewRenderPass implements gpu.Device.
func (d *Device) NewRenderPass(desc gpu.RenderPassDesc) (gpu.RenderPass, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	p := &renderPass{desc: desc}
	p.init(d)
	return p, nil
}

// NewFramebuffer implements gpu.Device.
func (d *Device) NewFramebuffer(rp gpu.RenderPass, views []gpu.ImageView, extent gpu.Extent2D) (gpu.Framebuffer, error) {
	pass := rp.(*renderPass)
	if len(views) != len(pass.desc.Attachments) {
		return nil, fmt.Errorf("soft: framebuffer for %q: %d views, want %d", pass.desc.Name, len(views), len(pass.desc.Attachments))
	}
	fb := &framebuffer{pass: pass, extent: extent}
	for i, iv := range views {
		v := iv.(*view)
		att := pass.desc.Attachments[i]
		if v.img.Format() != att.Format {
			return nil, fmt.Errorf("soft: framebuffer for %q: attachment %d is %s, want %s", pass.desc.Name, i, v.img.Format(), att.Format)
		}
		if v.img.Extent() != extent {
			return nil, fmt.Errorf("soft: framebuffer for %q: attachment %d is %v, want %v", pass.desc.Name, i, v.img.Extent(), extent)
		}
		fb.views = append(fb.views, v)
	}
	fb.init(d)
	return fb, nil
}

// NewDescSetLayout implements gpu.Device.
func (d *Device) NewDescSetLayout(bindings []gpu.Binding) (gpu.DescSetLayout, error) {
	l := &descSetLayout{bindings: append([]gpu.Binding(nil), bindings...)}
	seen := make(map[int]bool)
	for _, b := range bindings {
		if seen[b.Nr] {
			return nil, fmt.Errorf("soft: descriptor set layout: duplicate binding %d", b.Nr)
		}
		seen[b.Nr] = true
		if b.Type.IsDynamic() {
			l.dynamic++
		}
	}
	l.init(d)
	return l, nil
}

// NewDescSet implements gpu.Device.
func (d *Device) NewDescSet(layout gpu.DescSetLayout) (gpu.DescSet, error) {
	s := &descSet{layout: layout.(*descSetLayout), descs: make(map[int]*descriptor)}
	s.init(d)
	return s, nil
}

// NewPipelineLayout implements gpu.Device.
func (d *Device) NewPipelineLayout(sets []gpu.DescSetLayout, pushConstSize int) (gpu.PipelineLayout, error) {
	if pushConstSize > d.Limits().MaxPushConstSize {
		return nil, fmt.Errorf("soft: push constant size %d exceeds %d", pushConstSize, d.Limits().MaxPushConstSize)
	}
	l := &pipelineLayout{pushSize: pushConstSize}
	for _, s := range sets {
		l.sets = append(l.sets, s.(*descSetLayout))
	}
	l.init(d)
	return l, nil
}

// NewComputePipeline implements gpu.Device.
func (d *Device) NewComputePipeline(desc gpu.ComputePipelineDesc) (gpu.Pipeline, error) {
	k, ok := d.kernels[desc.Shader.Name]
	if !ok {
		return nil, fmt.Errorf("soft: pipeline %q: %w: no kernel for shader %q", desc.Name, gpu.ErrUnsupported, desc.Shader.Name)
	}
	p := &pipeline{
		name:   desc.Name,
		layout: desc.Layout.(*pipelineLayout),
		bp:     gpu.BindCompute,
		stages: gpu.StCompute,
		kernel: k,
	}
	p.init(d)
	return p, nil
}

// NewGraphicsPipeline implements gpu.Device.
func (d *Device) NewGraphicsPipeline(desc gpu.GraphicsPipelineDesc) (gpu.Pipeline, error) {
	pass, ok := desc.Pass.(*renderPass)
	if !ok {
		return nil, fmt.Errorf("soft: pipeline %q: no render pass", desc.Name)
	}
	if desc.Subpass < 0 || desc.Subpass >= len(pass.desc.Subpasses) {
		return nil, fmt.Errorf("soft: pipeline %q: subpass %d out of range", desc.Name, desc.Subpass)
	}
	stages := desc.Stages()
	if stages&gpu.StVertex == 0 {
		return nil, fmt.Errorf("soft: pipeline %q: no vertex shader", desc.Name)
	}
	if desc.Topology == gpu.TPatch && stages&(gpu.StTessControl|gpu.StTessEval) != gpu.StTessControl|gpu.StTessEval {
		return nil, fmt.Errorf("soft: pipeline %q: patch topology without tessellation shaders", desc.Name)
	}
	p := &pipeline{
		name:     desc.Name,
		layout:   desc.Layout.(*pipelineLayout),
		bp:       gpu.BindGraphics,
		stages:   stages,
		graphics: desc,
	}
	p.init(d)
	return p, nil
}

// NewCmdBuffer implements gpu.Device.
func (d *Device) NewCmdBuffer() (gpu.CmdBuffer, error) {
	cb := &cmdBuffer{dev: d}
	cb.init(d)
	return cb, nil
}

// NewFence implements gpu.Device.
func (d *Device) NewFence(signaled bool) (gpu.Fence, error) {
	f := &fence{signaled: signaled}
	f.init(d)
	return f, nil
}

// Submit implements gpu.Device. Command buffers execute synchronously; the
// fence is signaled before Submit returns. On error nothing is signaled.
func (d *Device) Submit(cbs []gpu.CmdBuffer, fn gpu.Fence) error {
	var f *fence
	if fn != nil {
		f = fn.(*fence)
		if f.signaled {
			return fmt.Errorf("soft: submit with signaled fence")
		}
	}
	ex := newExecutor(d)
	defer d.resetTracking()
	for _, c := range cbs {
		cb := c.(*cmdBuffer)
		if cb.recording {
			return fmt.Errorf("soft: submit of command buffer still recording")
		}
		if err := ex.run(cb); err != nil {
			return err
		}
	}
	d.stats = ex.stats
	if f != nil {
		f.signaled = true
	}
	return nil
}

// WaitIdle implements gpu.Device.
func (d *Device) WaitIdle() error { return nil }

// resetTracking forgets all synchronization state. Nothing is in flight
// after Submit returns, so every access of the next submit starts clean.
func (d *Device) resetTracking() {
	for b := range d.buffers {
		b.track.reset()
	}
	for img := range d.images {
		for i := range img.layers {
			img.layers[i].st = state{}
		}
	}
}
