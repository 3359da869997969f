package gpu

import "encoding/binary"

// CmdBuffer records commands for later submission.
//
// Recording starts with Begin and ends with End. Render pass commands go
// between BeginPass and EndPass; Dispatch, FillBuffer and Barrier go outside
// of render passes.
type CmdBuffer interface {
	Destroyer

	Begin() error
	End() error
	Reset() error

	// BeginRegion and EndRegion bracket commands in a named debug region.
	BeginRegion(name string)
	EndRegion()

	// FillBuffer writes the 32-bit value repeatedly to a buffer range.
	// It executes in the STransfer stage with ATransferWrite access.
	FillBuffer(buf Buffer, off, size int64, value uint32)

	// Barrier orders the commands recorded before it in stages before with
	// the commands recorded after it in stages after, and makes the listed
	// memory accesses available and visible.
	Barrier(before, after Sync, bufs []BufferBarrier, imgs []ImageBarrier)

	SetPipeline(pl Pipeline)
	SetDescSets(layout PipelineLayout, bp BindPoint, first int, sets []DescSet, dynOffsets []uint32)
	PushConstants(layout PipelineLayout, stages Stage, off int, data []byte)

	Dispatch(x, y, z int)

	BeginPass(pass RenderPass, fb Framebuffer, clear []ClearValue)
	NextSubpass()
	EndPass()

	SetViewport(vp Viewport)
	SetScissor(sc Scissor)
	SetVertexBuffer(buf Buffer, off int64)
	// SetIndexBuffer binds buf as a buffer of uint32 indices.
	SetIndexBuffer(buf Buffer, off int64)

	Draw(vertCount, instCount, firstVert, firstInst int)
	DrawIndirect(buf Buffer, off int64, count, stride int)
	DrawIndexedIndirect(buf Buffer, off int64, count, stride int)
}

// DrawIndexedIndirectCommand is the layout of one indexed indirect draw.
type DrawIndexedIndirectCommand struct {
	IndexCount    uint32
	InstanceCount uint32
	FirstIndex    uint32
	VertexOffset  int32
	FirstInstance uint32
}

// DrawIndexedIndirectSize is the size of DrawIndexedIndirectCommand in bytes.
const DrawIndexedIndirectSize = 20

// Put encodes c into b.
func (c DrawIndexedIndirectCommand) Put(b []byte) {
	le := binary.LittleEndian
	le.PutUint32(b[0:], c.IndexCount)
	le.PutUint32(b[4:], c.InstanceCount)
	le.PutUint32(b[8:], c.FirstIndex)
	le.PutUint32(b[12:], uint32(c.VertexOffset))
	le.PutUint32(b[16:], c.FirstInstance)
}

// DecodeDrawIndexedIndirect decodes a command from b.
func DecodeDrawIndexedIndirect(b []byte) DrawIndexedIndirectCommand {
	le := binary.LittleEndian
	return DrawIndexedIndirectCommand{
		IndexCount:    le.Uint32(b[0:]),
		InstanceCount: le.Uint32(b[4:]),
		FirstIndex:    le.Uint32(b[8:]),
		VertexOffset:  int32(le.Uint32(b[12:])),
		FirstInstance: le.Uint32(b[16:]),
	}
}

// DrawIndirectCommand is the layout of one non-indexed indirect draw.
type DrawIndirectCommand struct {
	VertexCount   uint32
	InstanceCount uint32
	FirstVertex   uint32
	FirstInstance uint32
}

// DrawIndirectSize is the size of DrawIndirectCommand in bytes.
const DrawIndirectSize = 16

// Put encodes c into b.
func (c DrawIndirectCommand) Put(b []byte) {
	le := binary.LittleEndian
	le.PutUint32(b[0:], c.VertexCount)
	le.PutUint32(b[4:], c.InstanceCount)
	le.PutUint32(b[8:], c.FirstVertex)
	le.PutUint32(b[12:], c.FirstInstance)
}

// DecodeDrawIndirect decodes a command from b.
func DecodeDrawIndirect(b []byte) DrawIndirectCommand {
	le := binary.LittleEndian
	return DrawIndirectCommand{
		VertexCount:   le.Uint32(b[0:]),
		InstanceCount: le.Uint32(b[4:]),
		FirstVertex:   le.Uint32(b[8:]),
		FirstInstance: le.Uint32(b[12:]),
	}
}
