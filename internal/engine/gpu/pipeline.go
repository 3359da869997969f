package gpu

// DescType is a descriptor type.
type DescType int

// Descriptor types.
const (
	DUniform DescType = iota
	DUniformDynamic
	DStorage
	DStorageDynamic
	DSampledImage
	DInputAttachment
)

// IsBuffer reports whether t binds a buffer range.
func (t DescType) IsBuffer() bool {
	return t <= DStorageDynamic
}

// IsDynamic reports whether t takes a dynamic offset at bind time.
func (t DescType) IsDynamic() bool {
	return t == DUniformDynamic || t == DStorageDynamic
}

// Binding describes one slot of a descriptor set layout.
type Binding struct {
	Nr     int
	Type   DescType
	Stages Stage
	// ReadOnly storage buffers are never written by the shaders using them.
	ReadOnly bool
}

// DescSetLayout is the shape of a descriptor set.
type DescSetLayout interface {
	Destroyer
	Bindings() []Binding
}

// DescSet holds the resources bound to each slot of a layout.
type DescSet interface {
	Destroyer
	Layout() DescSetLayout

	// SetBuffer binds a buffer range. For dynamic descriptors off is the base
	// offset and the dynamic offset given at bind time is added to it. A zero
	// size covers the buffer from off to its end.
	SetBuffer(nr int, buf Buffer, off, size int64)

	// SetImage binds an image view. splr is nil for input attachments.
	SetImage(nr int, view ImageView, splr Sampler)
}

// PipelineLayout is the set layouts and push constant range a pipeline uses.
type PipelineLayout interface {
	Destroyer
	Sets() []DescSetLayout
	PushConstSize() int
}

// Shader names one shader stage. Name identifies the program for kernels
// and error messages; Source is the program text for backends that compile.
type Shader struct {
	Stage  Stage
	Name   string
	Source []byte
}

// ComputePipelineDesc describes a compute pipeline.
type ComputePipelineDesc struct {
	Name   string
	Shader Shader
	Layout PipelineLayout
}

// Topology is a primitive topology.
type Topology int

// Topologies.
const (
	TTriangle Topology = iota
	TPoint
	TPatch
)

// CullMode selects which triangles are discarded.
type CullMode int

// Cull modes.
const (
	CullNone CullMode = iota
	CullBack
	CullFront
)

// FillMode selects triangle rasterization.
type FillMode int

// Fill modes.
const (
	FillSolid FillMode = iota
	FillLines
)

// RasterState is the rasterization state.
type RasterState struct {
	Cull      CullMode
	Fill      FillMode
	DepthBias bool
}

// CmpFunc is a depth comparison function.
type CmpFunc int

// Comparison functions.
const (
	CmpLess CmpFunc = iota
	CmpLessEqual
	CmpAlways
)

// DepthState is the depth test state.
type DepthState struct {
	Test  bool
	Write bool
	Cmp   CmpFunc
}

// BlendMode is the blend state of one color target.
type BlendMode int

// Blend modes.
const (
	BlendNone BlendMode = iota
	// BlendAdditive computes src*srcAlpha + dst.
	BlendAdditive
	// BlendKeep masks all writes to the target.
	BlendKeep
)

// VertexAttr describes one attribute of the interleaved vertex buffer.
type VertexAttr struct {
	Location   int
	Components int
	Offset     int
}

// GraphicsPipelineDesc describes a graphics pipeline. The pipeline is only
// valid inside Subpass of Pass.
type GraphicsPipelineDesc struct {
	Name          string
	Shaders       []Shader
	Layout        PipelineLayout
	Pass          RenderPass
	Subpass       int
	Topology      Topology
	PatchVertices int
	Vertex        []VertexAttr
	VertexStride  int
	Raster        RasterState
	Depth         DepthState
	// Blend has one entry per color attachment of the subpass; missing
	// entries default to BlendNone.
	Blend []BlendMode
}

// Stages returns the union of the shader stages.
func (d *GraphicsPipelineDesc) Stages() Stage {
	var s Stage
	for _, sh := range d.Shaders {
		s |= sh.Stage
	}
	return s
}

// BindPoint selects the graphics or compute binding state.
type BindPoint int

// Bind points.
const (
	BindGraphics BindPoint = iota
	BindCompute
)

// Pipeline is a compiled graphics or compute pipeline.
type Pipeline interface {
	Destroyer
	Name() string
	Layout() PipelineLayout
	BindPoint() BindPoint
	Stages() Stage
}
