// Package gpu defines the explicit graphics API the renderer is written
// against.
//
// The model follows modern explicit APIs: resources are created through a
// Device, commands are recorded into a CmdBuffer and only take effect when the
// buffer is submitted, and every hand-off between GPU stages must be made
// explicit with a pipeline barrier or a render pass subpass dependency.
//
// Two backends implement the interfaces: gpu/soft, a deterministic CPU
// reference that validates synchronization, and gpu/glgpu on OpenGL 4.6.
package gpu

// Destroyer is implemented by every resource that owns backend memory.
// Destroy must be called explicitly; resources are not released by the GC.
type Destroyer interface {
	Destroy()
}

// Device creates resources and executes command buffers.
type Device interface {
	Destroyer

	// Backend returns a short backend name for logging.
	Backend() string

	// Limits returns implementation limits. They never change.
	Limits() Limits

	NewBuffer(desc BufferDesc) (Buffer, error)

	// WriteBuffer copies data from the host into buf at off. It takes effect
	// before any command submitted afterwards.
	WriteBuffer(buf Buffer, off int64, data []byte) error

	// ReadBuffer copies buf contents at off into data. It waits for all
	// submitted work that may write buf.
	ReadBuffer(buf Buffer, off int64, data []byte) error

	NewImage(desc ImageDesc) (Image, error)

	// WriteImage uploads texel data for every layer of img and leaves the
	// image in the LShaderRead layout.
	WriteImage(img Image, data []byte) error

	NewView(img Image, layer, layers int) (ImageView, error)
	NewSampler(desc SamplerDesc) (Sampler, error)

	NewRenderPass(desc RenderPassDesc) (RenderPass, error)
	NewFramebuffer(pass RenderPass, views []ImageView, extent Extent2D) (Framebuffer, error)

	NewDescSetLayout(bindings []Binding) (DescSetLayout, error)
	NewDescSet(layout DescSetLayout) (DescSet, error)
	NewPipelineLayout(sets []DescSetLayout, pushConstSize int) (PipelineLayout, error)
	NewComputePipeline(desc ComputePipelineDesc) (Pipeline, error)
	NewGraphicsPipeline(desc GraphicsPipelineDesc) (Pipeline, error)

	NewCmdBuffer() (CmdBuffer, error)

	// NewFence creates a fence, optionally already signaled so that the
	// first wait on it returns immediately.
	NewFence(signaled bool) (Fence, error)

	// Submit executes cbs in order and signals fence, if not nil, when
	// they complete.
	Submit(cbs []CmdBuffer, fence Fence) error

	// WaitIdle blocks until all submitted work completes.
	WaitIdle() error
}

// Limits describes implementation limits.
type Limits struct {
	MaxPushConstSize     int
	MaxComputeGroups     [3]int
	MaxImage2D           int
	MaxColorTargets      int
	UniformOffsetAlign   int64
	StorageOffsetAlign   int64
	MaxDrawIndirectCount int
}

// Extent2D is a two-dimensional size in pixels.
type Extent2D struct {
	Width, Height int
}

// Scale divides both dimensions by factor, never going below one pixel.
func (e Extent2D) Scale(factor int) Extent2D {
	w, h := e.Width/factor, e.Height/factor
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return Extent2D{Width: w, Height: h}
}

// Usage is a mask of valid uses for a resource.
type Usage int

// Usage flags.
const (
	UStorage Usage = 1 << iota
	UUniform
	UIndirect
	UVertex
	UIndex
	UTransferDst
	UColorTarget
	UDepthTarget
	USampled
	UInputAttachment
)

// BufferDesc describes a buffer.
type BufferDesc struct {
	Name  string
	Size  int64
	Usage Usage
	// HostVisible buffers are written every frame from the CPU.
	HostVisible bool
}

// Buffer is a linear block of GPU memory.
type Buffer interface {
	Destroyer
	Name() string
	Size() int64
	Usage() Usage
}

// ImageDesc describes a 2D (array) image.
type ImageDesc struct {
	Name   string
	Format Format
	Extent Extent2D
	Layers int
	Usage  Usage
}

// Image is a 2D image with one or more array layers.
type Image interface {
	Destroyer
	Name() string
	Format() Format
	Extent() Extent2D
	Layers() int
}

// ImageView selects a layer range of an image.
type ImageView interface {
	Destroyer
	Image() Image
	Layer() int
	Layers() int
}

// Filter is a sampler filter.
type Filter int

// Filters.
const (
	FilterNearest Filter = iota
	FilterLinear
)

// AddrMode is a sampler address mode.
type AddrMode int

// Address modes.
const (
	AddrClamp AddrMode = iota
	AddrRepeat
)

// SamplerDesc describes sampler state.
type SamplerDesc struct {
	Filter Filter
	Addr   AddrMode
}

// Sampler is an image sampler.
type Sampler interface {
	Destroyer
}

// Fence signals the host when submitted work completes.
type Fence interface {
	Destroyer

	// Wait blocks until the fence is signaled.
	Wait() error

	// Reset unsignals the fence.
	Reset() error
}

// Swapchain is an n-buffered set of presentable images.
//
// Acquire and Present return ErrOutOfDate or ErrSuboptimal when the surface
// changed; the caller must Recreate the swapchain and every resource whose
// size depends on it. A zero extent passed to Recreate means the current
// size of the surface.
type Swapchain interface {
	Destroyer
	Acquire() (int, error)
	Present(index int) error
	Views() []ImageView
	Format() Format
	Extent() Extent2D
	Recreate(extent Extent2D) error
}
