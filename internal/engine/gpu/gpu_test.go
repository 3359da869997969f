package gpu

import (
	"errors"
	"fmt"
	"testing"
)

type recorder struct {
	name string
	log  *[]string
}

func (r recorder) Destroy() { *r.log = append(*r.log, r.name) }

func TestArenaDestroyOrder(t *testing.T) {
	var log []string
	a := NewArena(nil)
	for _, n := range []string{"buffer", "view", "framebuffer"} {
		a.Add(recorder{n, &log})
	}
	if a.Len() != 3 {
		t.Fatalf("Len = %d, want 3", a.Len())
	}
	a.Destroy()

	want := []string{"framebuffer", "view", "buffer"}
	if fmt.Sprint(log) != fmt.Sprint(want) {
		t.Errorf("destroy order = %v, want %v", log, want)
	}
	if a.Len() != 0 {
		t.Errorf("Len after Destroy = %d, want 0", a.Len())
	}

	// Reuse after destroy.
	a.Add(recorder{"again", &log})
	a.Destroy()
	if log[len(log)-1] != "again" {
		t.Errorf("arena not reusable, log = %v", log)
	}
}

func TestExtentScale(t *testing.T) {
	tests := []struct {
		in     Extent2D
		factor int
		want   Extent2D
	}{
		{Extent2D{1920, 1080}, 4, Extent2D{480, 270}},
		{Extent2D{1280, 720}, 1, Extent2D{1280, 720}},
		{Extent2D{3, 2}, 4, Extent2D{1, 1}},
	}
	for _, tt := range tests {
		if got := tt.in.Scale(tt.factor); got != tt.want {
			t.Errorf("%v.Scale(%d) = %v, want %v", tt.in, tt.factor, got, tt.want)
		}
	}
}

func TestDrawIndexedIndirectNegativeOffset(t *testing.T) {
	cmd := DrawIndexedIndirectCommand{IndexCount: 36, InstanceCount: 6, FirstIndex: 72, VertexOffset: -8, FirstInstance: 10}
	b := make([]byte, DrawIndexedIndirectSize)
	cmd.Put(b)
	if got := DecodeDrawIndexedIndirect(b); got != cmd {
		t.Errorf("decoded %+v, want %+v", got, cmd)
	}
	if n := len(Bytes(&cmd)); n != DrawIndexedIndirectSize {
		t.Errorf("struct size = %d, want %d", n, DrawIndexedIndirectSize)
	}
	var dc DrawIndirectCommand
	if n := len(Bytes(&dc)); n != DrawIndirectSize {
		t.Errorf("DrawIndirectCommand size = %d, want %d", n, DrawIndirectSize)
	}
}

func TestBytesAliases(t *testing.T) {
	v := struct{ A, B uint32 }{1, 2}
	b := Bytes(&v)
	b[4] = 7
	if v.B != 7 {
		t.Errorf("Bytes does not alias the value, B = %d", v.B)
	}
	s := []uint32{1, 2, 3}
	if n := len(SliceBytes(s)); n != 12 {
		t.Errorf("SliceBytes len = %d, want 12", n)
	}
	if SliceBytes([]uint32(nil)) != nil {
		t.Error("SliceBytes(nil) should be nil")
	}
	got := FromBytes[struct{ A, B uint32 }](b)
	if got != v {
		t.Errorf("FromBytes = %+v, want %+v", got, v)
	}
}

func TestRenderPassValidate(t *testing.T) {
	gbuf := RenderPassDesc{
		Name: "gbuffer",
		Attachments: []Attachment{
			{Format: RGBA16f}, {Format: RGBA8un}, {Format: D32f}, {Format: RGBA16f},
		},
		Subpasses: []Subpass{
			{Color: []int{0, 1}, Depth: 2},
			{Color: []int{3}, Depth: Unused, Input: []int{0, 1, 2}},
		},
		Dependencies: []Dependency{
			{Src: 0, Dst: 1, SrcSync: SColorOutput, DstSync: SFragmentShader, SrcAccess: AColorWrite, DstAccess: AInputAttachmentRead, ByRegion: true},
			{Src: 1, Dst: External, SrcSync: SColorOutput, DstSync: SFragmentShader, SrcAccess: AColorWrite, DstAccess: AShaderRead},
		},
	}
	if err := gbuf.Validate(); err != nil {
		t.Fatalf("valid pass rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(d *RenderPassDesc)
	}{
		{"depth as color", func(d *RenderPassDesc) { d.Subpasses[0].Color = []int{2} }},
		{"color as depth", func(d *RenderPassDesc) { d.Subpasses[0].Depth = 0 }},
		{"input out of range", func(d *RenderPassDesc) { d.Subpasses[1].Input = []int{9} }},
		{"backwards dependency", func(d *RenderPassDesc) { d.Dependencies[0].Src, d.Dependencies[0].Dst = 1, 0 }},
		{"external to external", func(d *RenderPassDesc) { d.Dependencies[1].Src = External }},
		{"no subpasses", func(d *RenderPassDesc) { d.Subpasses = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := gbuf
			d.Subpasses = append([]Subpass(nil), gbuf.Subpasses...)
			d.Dependencies = append([]Dependency(nil), gbuf.Dependencies...)
			tt.mutate(&d)
			if err := d.Validate(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestHazardErrorUnwrap(t *testing.T) {
	var err error = &HazardError{Kind: ReadAfterWrite, Resource: "indirect", Command: "draw", Prev: "dispatch"}
	err = fmt.Errorf("submit: %w", err)
	if !errors.Is(err, ErrHazard) {
		t.Error("HazardError does not match ErrHazard")
	}
	var he *HazardError
	if !errors.As(err, &he) || he.Resource != "indirect" {
		t.Errorf("errors.As failed: %v", err)
	}
	if IsSwapchainStale(err) {
		t.Error("hazard reported as stale swapchain")
	}
	if !IsSwapchainStale(fmt.Errorf("acquire: %w", ErrOutOfDate)) {
		t.Error("wrapped ErrOutOfDate not stale")
	}
}

func TestMaskStrings(t *testing.T) {
	if got := (SComputeShader | SDrawIndirect).String(); got != "draw-indirect|compute-shader" {
		t.Errorf("Sync.String = %q", got)
	}
	if got := (AShaderRead | AShaderWrite).String(); got != "shader-read|shader-write" {
		t.Errorf("Access.String = %q", got)
	}
	if (AShaderRead | AIndirectRead).Writes() != ANone {
		t.Error("read mask reports writes")
	}
	if got := (StVertex | StTessEval).Sync(); got != SVertexShader|STessEval {
		t.Errorf("Stage.Sync = %v", got)
	}
}
