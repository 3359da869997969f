package gpu

import "strings"

// Sync is a mask of pipeline stages, the execution scope of a barrier.
type Sync int

// Pipeline stages.
const (
	SHost Sync = 1 << iota
	STransfer
	SDrawIndirect
	SVertexInput
	SVertexShader
	STessControl
	STessEval
	SGeometryShader
	SFragmentShader
	SEarlyFragmentTests
	SLateFragmentTests
	SColorOutput
	SComputeShader
	SAll Sync = 1<<iota - 1
	SNone Sync = 0
)

var syncNames = [...]string{
	"host", "transfer", "draw-indirect", "vertex-input", "vertex-shader",
	"tess-control", "tess-eval", "geometry-shader", "fragment-shader",
	"early-fragment-tests", "late-fragment-tests", "color-output", "compute-shader",
}

func (s Sync) String() string {
	if s == SNone {
		return "none"
	}
	if s == SAll {
		return "all"
	}
	return maskString(int(s), syncNames[:])
}

// Access is a mask of memory accesses, the memory scope of a barrier.
type Access int

// Memory accesses.
const (
	AIndirectRead Access = 1 << iota
	AIndexRead
	AVertexAttribRead
	AUniformRead
	AInputAttachmentRead
	AShaderRead
	AShaderWrite
	AColorRead
	AColorWrite
	ADepthRead
	ADepthWrite
	ATransferRead
	ATransferWrite
	AHostRead
	AHostWrite
	ANone Access = 0
)

var accessNames = [...]string{
	"indirect-read", "index-read", "vertex-attrib-read", "uniform-read",
	"input-attachment-read", "shader-read", "shader-write", "color-read",
	"color-write", "depth-read", "depth-write", "transfer-read",
	"transfer-write", "host-read", "host-write",
}

func (a Access) String() string {
	if a == ANone {
		return "none"
	}
	return maskString(int(a), accessNames[:])
}

// Writes reports the write bits of a.
func (a Access) Writes() Access {
	return a & (AShaderWrite | AColorWrite | ADepthWrite | ATransferWrite | AHostWrite)
}

func maskString(m int, names []string) string {
	var parts []string
	for i, n := range names {
		if m&(1<<i) != 0 {
			parts = append(parts, n)
		}
	}
	return strings.Join(parts, "|")
}

// Layout is an image layout.
type Layout int

// Image layouts.
const (
	LUndefined Layout = iota
	LGeneral
	LColorTarget
	LDepthTarget
	LDepthRead
	LShaderRead
	LTransferDst
	LPresent
)

var layoutNames = [...]string{
	"undefined", "general", "color-target", "depth-target", "depth-read",
	"shader-read", "transfer-dst", "present",
}

func (l Layout) String() string {
	if int(l) < len(layoutNames) {
		return layoutNames[l]
	}
	return "layout(?)"
}

// BufferBarrier is a memory barrier restricted to a buffer range.
// A zero Size covers the buffer from Offset to its end.
type BufferBarrier struct {
	Buffer       Buffer
	Offset       int64
	Size         int64
	AccessBefore Access
	AccessAfter  Access
}

// Range returns the byte range covered by the barrier.
func (b BufferBarrier) Range() (off, size int64) {
	size = b.Size
	if size == 0 {
		size = b.Buffer.Size() - b.Offset
	}
	return b.Offset, size
}

// ImageBarrier is a memory barrier on every layer of an image, with an
// optional layout transition.
type ImageBarrier struct {
	Image        Image
	AccessBefore Access
	AccessAfter  Access
	LayoutBefore Layout
	LayoutAfter  Layout
}

// Stage is a mask of programmable shader stages.
type Stage int

// Shader stages.
const (
	StVertex Stage = 1 << iota
	StTessControl
	StTessEval
	StGeometry
	StFragment
	StCompute
)

// Sync returns the pipeline stages executing the shader stages in s.
func (s Stage) Sync() Sync {
	var out Sync
	if s&StVertex != 0 {
		out |= SVertexShader
	}
	if s&StTessControl != 0 {
		out |= STessControl
	}
	if s&StTessEval != 0 {
		out |= STessEval
	}
	if s&StGeometry != 0 {
		out |= SGeometryShader
	}
	if s&StFragment != 0 {
		out |= SFragmentShader
	}
	if s&StCompute != 0 {
		out |= SComputeShader
	}
	return out
}

// Each calls fn for every single stage set in s, lowest bit first.
func (s Stage) Each(fn func(Stage)) {
	for b := StVertex; b <= StCompute; b <<= 1 {
		if s&b != 0 {
			fn(b)
		}
	}
}
