package gpu

import "fmt"

// LoadOp is an attachment load operation.
type LoadOp int

// Load operations.
const (
	LoadDontCare LoadOp = iota
	LoadClear
	LoadLoad
)

// StoreOp is an attachment store operation.
type StoreOp int

// Store operations.
const (
	StoreDontCare StoreOp = iota
	StoreStore
)

// Attachment describes one render target of a render pass.
// The attachment is expected in Initial layout when the pass begins, unless
// Initial is LUndefined, and is left in Final layout when it ends.
type Attachment struct {
	Format  Format
	Load    LoadOp
	Store   StoreOp
	Initial Layout
	Final   Layout
}

// Unused marks an absent attachment reference.
const Unused = -1

// Subpass lists the attachments a subpass uses by index into the render
// pass attachment list. Depth is Unused for subpasses without depth.
type Subpass struct {
	Color []int
	Depth int
	Input []int
}

// External refers to commands outside the render pass in a Dependency.
const External = -1

// Dependency orders the memory accesses of two subpasses, or of a subpass and
// the commands recorded outside the render pass.
type Dependency struct {
	Src, Dst             int
	SrcSync, DstSync     Sync
	SrcAccess, DstAccess Access
	ByRegion             bool
}

// RenderPassDesc describes a render pass.
type RenderPassDesc struct {
	Name         string
	Attachments  []Attachment
	Subpasses    []Subpass
	Dependencies []Dependency
}

// Validate checks attachment references and dependency indices.
func (d *RenderPassDesc) Validate() error {
	n := len(d.Attachments)
	ref := func(i int) bool { return i >= 0 && i < n }
	if len(d.Subpasses) == 0 {
		return fmt.Errorf("render pass %q: no subpasses", d.Name)
	}
	for si, sp := range d.Subpasses {
		for _, c := range sp.Color {
			if !ref(c) || d.Attachments[c].Format.IsDepth() {
				return fmt.Errorf("render pass %q: subpass %d: bad color attachment %d", d.Name, si, c)
			}
		}
		if sp.Depth != Unused && (!ref(sp.Depth) || !d.Attachments[sp.Depth].Format.IsDepth()) {
			return fmt.Errorf("render pass %q: subpass %d: bad depth attachment %d", d.Name, si, sp.Depth)
		}
		for _, in := range sp.Input {
			if !ref(in) {
				return fmt.Errorf("render pass %q: subpass %d: bad input attachment %d", d.Name, si, in)
			}
		}
	}
	for i, dep := range d.Dependencies {
		sub := func(s int) bool { return s == External || (s >= 0 && s < len(d.Subpasses)) }
		if !sub(dep.Src) || !sub(dep.Dst) || (dep.Src == External && dep.Dst == External) {
			return fmt.Errorf("render pass %q: dependency %d: bad subpass pair %d -> %d", d.Name, i, dep.Src, dep.Dst)
		}
		if dep.Src != External && dep.Dst != External && dep.Src > dep.Dst {
			return fmt.Errorf("render pass %q: dependency %d: backwards %d -> %d", d.Name, i, dep.Src, dep.Dst)
		}
	}
	return nil
}

// RenderPass is a compiled render pass description.
type RenderPass interface {
	Destroyer
	Desc() *RenderPassDesc
}

// Framebuffer binds image views to the attachments of a render pass.
type Framebuffer interface {
	Destroyer
	Extent() Extent2D
	Views() []ImageView
}

// ClearValue holds the clear color or depth for one attachment.
type ClearValue struct {
	Color [4]float32
	Depth float32
}

// Viewport is a viewport rectangle with a depth range.
type Viewport struct {
	X, Y, Width, Height, MinDepth, MaxDepth float32
}

// FullViewport covers extent with the [0, 1] depth range.
func FullViewport(extent Extent2D) Viewport {
	return Viewport{Width: float32(extent.Width), Height: float32(extent.Height), MaxDepth: 1}
}

// Scissor is a scissor rectangle.
type Scissor struct {
	X, Y, Width, Height int
}

// FullScissor covers extent.
func FullScissor(extent Extent2D) Scissor {
	return Scissor{Width: extent.Width, Height: extent.Height}
}
