package glgpu

import (
	"fmt"

	"github.com/go-gl/gl/v4.6-core/gl"

	"github.com/Faultbox/vigil/internal/engine/gpu"
)

// glFormat is the GL description of a gpu.Format: the sized internal format
// used for storage and the pixel format and type used for uploads.
type glFormat struct {
	internal uint32
	format   uint32
	xtype    uint32
}

var formats = map[gpu.Format]glFormat{
	gpu.RGBA8un:   {gl.RGBA8, gl.RGBA, gl.UNSIGNED_BYTE},
	gpu.BGRA8un:   {gl.RGBA8, gl.BGRA, gl.UNSIGNED_BYTE},
	gpu.R8un:      {gl.R8, gl.RED, gl.UNSIGNED_BYTE},
	gpu.RGBA16f:   {gl.RGBA16F, gl.RGBA, gl.HALF_FLOAT},
	gpu.RG16f:     {gl.RG16F, gl.RG, gl.HALF_FLOAT},
	gpu.R16f:      {gl.R16F, gl.RED, gl.HALF_FLOAT},
	gpu.RGBA32f:   {gl.RGBA32F, gl.RGBA, gl.FLOAT},
	gpu.RG32f:     {gl.RG32F, gl.RG, gl.FLOAT},
	gpu.R32f:      {gl.R32F, gl.RED, gl.FLOAT},
	gpu.D32f:      {gl.DEPTH_COMPONENT32F, gl.DEPTH_COMPONENT, gl.FLOAT},
	gpu.D24unS8ui: {gl.DEPTH24_STENCIL8, gl.DEPTH_STENCIL, gl.UNSIGNED_INT_24_8},
}

func lookupFormat(f gpu.Format) (glFormat, error) {
	gf, ok := formats[f]
	if !ok {
		return glFormat{}, fmt.Errorf("glgpu: format %s: %w", f, gpu.ErrUnsupported)
	}
	return gf, nil
}

// depthAttachment returns the framebuffer attachment point of a depth format.
func depthAttachment(f gpu.Format) uint32 {
	if f == gpu.D24unS8ui {
		return gl.DEPTH_STENCIL_ATTACHMENT
	}
	return gl.DEPTH_ATTACHMENT
}

func shaderType(s gpu.Stage) (uint32, error) {
	switch s {
	case gpu.StVertex:
		return gl.VERTEX_SHADER, nil
	case gpu.StTessControl:
		return gl.TESS_CONTROL_SHADER, nil
	case gpu.StTessEval:
		return gl.TESS_EVALUATION_SHADER, nil
	case gpu.StGeometry:
		return gl.GEOMETRY_SHADER, nil
	case gpu.StFragment:
		return gl.FRAGMENT_SHADER, nil
	case gpu.StCompute:
		return gl.COMPUTE_SHADER, nil
	}
	return 0, fmt.Errorf("glgpu: shader stage %d: %w", s, gpu.ErrUnsupported)
}

func primitive(t gpu.Topology) uint32 {
	switch t {
	case gpu.TPoint:
		return gl.POINTS
	case gpu.TPatch:
		return gl.PATCHES
	}
	return gl.TRIANGLES
}

func compareFunc(c gpu.CmpFunc) uint32 {
	switch c {
	case gpu.CmpLessEqual:
		return gl.LEQUAL
	case gpu.CmpAlways:
		return gl.ALWAYS
	}
	return gl.LESS
}

// barrierBits maps the accesses made after a barrier to glMemoryBarrier
// bits. GL orders ordinary reads and writes by itself; only incoherent
// shader writes need explicit barriers, so the destination accesses are
// all that matters.
func barrierBits(after gpu.Access) uint32 {
	var bits uint32
	if after&gpu.AIndirectRead != 0 {
		bits |= gl.COMMAND_BARRIER_BIT
	}
	if after&gpu.AIndexRead != 0 {
		bits |= gl.ELEMENT_ARRAY_BARRIER_BIT
	}
	if after&gpu.AVertexAttribRead != 0 {
		bits |= gl.VERTEX_ATTRIB_ARRAY_BARRIER_BIT
	}
	if after&gpu.AUniformRead != 0 {
		bits |= gl.UNIFORM_BARRIER_BIT
	}
	if after&(gpu.AShaderRead|gpu.AShaderWrite) != 0 {
		bits |= gl.SHADER_STORAGE_BARRIER_BIT | gl.TEXTURE_FETCH_BARRIER_BIT
	}
	if after&(gpu.ATransferRead|gpu.ATransferWrite) != 0 {
		bits |= gl.BUFFER_UPDATE_BARRIER_BIT
	}
	if after&(gpu.AHostRead|gpu.AHostWrite) != 0 {
		bits |= gl.BUFFER_UPDATE_BARRIER_BIT | gl.CLIENT_MAPPED_BUFFER_BARRIER_BIT
	}
	if after&(gpu.AColorRead|gpu.AColorWrite|gpu.ADepthRead|gpu.ADepthWrite) != 0 {
		bits |= gl.FRAMEBUFFER_BARRIER_BIT
	}
	return bits
}
