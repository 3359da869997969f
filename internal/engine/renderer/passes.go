package renderer

import (
	"github.com/Faultbox/vigil/internal/engine/gpu"
)

// G-buffer attachment indices.
const (
	GBufferNormal = iota
	GBufferTangent
	GBufferAlbedo
	GBufferDepth
	GBufferResolved
	gbufferAttachments
)

// G-buffer formats, indexed like the attachments.
var gbufferFormats = [gbufferAttachments]gpu.Format{
	GBufferNormal:   gpu.RGBA16f,
	GBufferTangent:  gpu.RGBA16f,
	GBufferAlbedo:   gpu.RGBA8un,
	GBufferDepth:    gpu.D32f,
	GBufferResolved: gpu.RGBA16f,
}

// Post-processing attachment indices.
const (
	PostFXFog = iota
	PostFXSSAO
	postfxAttachments
)

var postfxFormats = [postfxAttachments]gpu.Format{
	PostFXFog:  gpu.RGBA8un,
	PostFXSSAO: gpu.R8un,
}

// Geometry and lighting subpasses of the G-buffer pass.
const (
	SubpassGeometry = 0
	SubpassLighting = 1
)

// newGBufferPass creates the deferred pass. Subpass 0 fills the G-buffer,
// subpass 1 reads it as input attachments and accumulates lighting into
// the resolved target. Every attachment ends up sampled by later passes.
func newGBufferPass(a *gpu.Arena) (gpu.RenderPass, error) {
	atts := make([]gpu.Attachment, gbufferAttachments)
	for i, f := range gbufferFormats {
		atts[i] = gpu.Attachment{Format: f, Load: gpu.LoadClear, Store: gpu.StoreStore, Final: gpu.LShaderRead}
	}
	return a.NewRenderPass(gpu.RenderPassDesc{
		Name:        "gbuffer",
		Attachments: atts,
		Subpasses: []gpu.Subpass{
			{Color: []int{GBufferNormal, GBufferTangent, GBufferAlbedo}, Depth: GBufferDepth},
			{
				Color: []int{GBufferResolved},
				Depth: gpu.Unused,
				Input: []int{GBufferNormal, GBufferTangent, GBufferAlbedo, GBufferDepth},
			},
		},
		Dependencies: []gpu.Dependency{
			{
				Src:       SubpassGeometry,
				Dst:       SubpassLighting,
				SrcSync:   gpu.SColorOutput | gpu.SLateFragmentTests,
				DstSync:   gpu.SFragmentShader,
				SrcAccess: gpu.AColorWrite | gpu.ADepthWrite,
				DstAccess: gpu.AInputAttachmentRead,
				ByRegion:  true,
			},
			{
				// Fog and SSAO sample depth and normals after the pass.
				Src:       SubpassLighting,
				Dst:       gpu.External,
				SrcSync:   gpu.SColorOutput | gpu.SLateFragmentTests,
				DstSync:   gpu.SFragmentShader,
				SrcAccess: gpu.AColorWrite | gpu.ADepthWrite,
				DstAccess: gpu.AShaderRead,
			},
		},
	})
}

// newPostFXPass creates the reduced resolution fog and SSAO pass.
func newPostFXPass(a *gpu.Arena) (gpu.RenderPass, error) {
	atts := make([]gpu.Attachment, postfxAttachments)
	for i, f := range postfxFormats {
		atts[i] = gpu.Attachment{Format: f, Load: gpu.LoadDontCare, Store: gpu.StoreStore, Final: gpu.LShaderRead}
	}
	return a.NewRenderPass(gpu.RenderPassDesc{
		Name:        "postfx",
		Attachments: atts,
		Subpasses:   []gpu.Subpass{{Color: []int{PostFXFog, PostFXSSAO}, Depth: gpu.Unused}},
		Dependencies: []gpu.Dependency{{
			Src:       0,
			Dst:       gpu.External,
			SrcSync:   gpu.SColorOutput,
			DstSync:   gpu.SFragmentShader,
			SrcAccess: gpu.AColorWrite,
			DstAccess: gpu.AShaderRead,
		}},
	})
}

// newPresentPass creates the tone mapping pass writing a swapchain image.
func newPresentPass(a *gpu.Arena, format gpu.Format) (gpu.RenderPass, error) {
	return a.NewRenderPass(gpu.RenderPassDesc{
		Name: "present",
		Attachments: []gpu.Attachment{
			{Format: format, Load: gpu.LoadDontCare, Store: gpu.StoreStore, Final: gpu.LPresent},
		},
		Subpasses: []gpu.Subpass{{Color: []int{0}, Depth: gpu.Unused}},
		Dependencies: []gpu.Dependency{{
			Src:       gpu.External,
			Dst:       0,
			SrcSync:   gpu.SColorOutput,
			DstSync:   gpu.SColorOutput,
			SrcAccess: gpu.ANone,
			DstAccess: gpu.AColorWrite,
		}},
	})
}
