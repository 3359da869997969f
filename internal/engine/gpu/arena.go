package gpu

// Arena owns a group of resources with a common lifetime.
//
// Resources created through the arena are destroyed together, in reverse
// order of creation, so a resource may depend on anything created before it.
// The renderer keeps one arena for scene lifetime objects and one for
// everything sized by the swapchain.
type Arena struct {
	dev   Device
	items []Destroyer
}

// NewArena returns an empty arena creating resources on dev.
func NewArena(dev Device) *Arena {
	return &Arena{dev: dev}
}

// Device returns the device the arena creates resources on.
func (a *Arena) Device() Device { return a.dev }

// Add takes ownership of d.
func (a *Arena) Add(d Destroyer) {
	a.items = append(a.items, d)
}

// Len returns the number of owned resources.
func (a *Arena) Len() int { return len(a.items) }

// Destroy releases every owned resource. The arena can be reused afterwards.
func (a *Arena) Destroy() {
	for i := len(a.items) - 1; i >= 0; i-- {
		a.items[i].Destroy()
	}
	a.items = a.items[:0]
}

func own[T Destroyer](a *Arena, v T, err error) (T, error) {
	if err != nil {
		return v, err
	}
	a.Add(v)
	return v, nil
}

// NewBuffer creates an owned buffer.
func (a *Arena) NewBuffer(desc BufferDesc) (Buffer, error) {
	b, err := a.dev.NewBuffer(desc)
	return own(a, b, err)
}

// NewImage creates an owned image.
func (a *Arena) NewImage(desc ImageDesc) (Image, error) {
	img, err := a.dev.NewImage(desc)
	return own(a, img, err)
}

// NewView creates an owned image view.
func (a *Arena) NewView(img Image, layer, layers int) (ImageView, error) {
	v, err := a.dev.NewView(img, layer, layers)
	return own(a, v, err)
}

// NewSampler creates an owned sampler.
func (a *Arena) NewSampler(desc SamplerDesc) (Sampler, error) {
	s, err := a.dev.NewSampler(desc)
	return own(a, s, err)
}

// NewRenderPass creates an owned render pass.
func (a *Arena) NewRenderPass(desc RenderPassDesc) (RenderPass, error) {
	p, err := a.dev.NewRenderPass(desc)
	return own(a, p, err)
}

// NewFramebuffer creates an owned framebuffer.
func (a *Arena) NewFramebuffer(pass RenderPass, views []ImageView, extent Extent2D) (Framebuffer, error) {
	fb, err := a.dev.NewFramebuffer(pass, views, extent)
	return own(a, fb, err)
}

// NewDescSetLayout creates an owned descriptor set layout.
func (a *Arena) NewDescSetLayout(bindings []Binding) (DescSetLayout, error) {
	l, err := a.dev.NewDescSetLayout(bindings)
	return own(a, l, err)
}

// NewDescSet creates an owned descriptor set.
func (a *Arena) NewDescSet(layout DescSetLayout) (DescSet, error) {
	s, err := a.dev.NewDescSet(layout)
	return own(a, s, err)
}

// NewPipelineLayout creates an owned pipeline layout.
func (a *Arena) NewPipelineLayout(sets []DescSetLayout, pushConstSize int) (PipelineLayout, error) {
	l, err := a.dev.NewPipelineLayout(sets, pushConstSize)
	return own(a, l, err)
}

// NewComputePipeline creates an owned compute pipeline.
func (a *Arena) NewComputePipeline(desc ComputePipelineDesc) (Pipeline, error) {
	p, err := a.dev.NewComputePipeline(desc)
	return own(a, p, err)
}

// NewGraphicsPipeline creates an owned graphics pipeline.
func (a *Arena) NewGraphicsPipeline(desc GraphicsPipelineDesc) (Pipeline, error) {
	p, err := a.dev.NewGraphicsPipeline(desc)
	return own(a, p, err)
}

// NewCmdBuffer creates an owned command buffer.
func (a *Arena) NewCmdBuffer() (CmdBuffer, error) {
	cb, err := a.dev.NewCmdBuffer()
	return own(a, cb, err)
}

// NewFence creates an owned fence.
func (a *Arena) NewFence(signaled bool) (Fence, error) {
	f, err := a.dev.NewFence(signaled)
	return own(a, f, err)
}
