package soft

import (
	"errors"
	"testing"

	"github.com/Faultbox/vigil/internal/engine/gpu"
)

// computeRig is a device with one compute pipeline that stores every word of
// binding 0 plus one into binding 1.
type computeRig struct {
	dev    *Device
	arena  *gpu.Arena
	in     gpu.Buffer
	out    gpu.Buffer
	pl     gpu.Pipeline
	layout gpu.PipelineLayout
	set    gpu.DescSet
}

func newComputeRig(t *testing.T) *computeRig {
	t.Helper()
	r := &computeRig{dev: New()}
	r.arena = gpu.NewArena(r.dev)
	r.dev.RegisterKernel("test.inc", func(inv *Invocation) error {
		n := len(inv.Buffer(0, 0)) / 4
		for i := 0; i < n; i++ {
			v, err := inv.Word(0, 0, i)
			if err != nil {
				return err
			}
			if err := inv.SetWord(0, 1, i, v+1); err != nil {
				return err
			}
		}
		return nil
	})

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	var err error
	r.in, err = r.arena.NewBuffer(gpu.BufferDesc{Name: "in", Size: 16, Usage: gpu.UStorage})
	must(err)
	r.out, err = r.arena.NewBuffer(gpu.BufferDesc{Name: "out", Size: 16, Usage: gpu.UStorage | gpu.UTransferDst})
	must(err)
	dsl, err := r.arena.NewDescSetLayout([]gpu.Binding{
		{Nr: 0, Type: gpu.DStorage, Stages: gpu.StCompute, ReadOnly: true},
		{Nr: 1, Type: gpu.DStorage, Stages: gpu.StCompute},
	})
	must(err)
	r.layout, err = r.arena.NewPipelineLayout([]gpu.DescSetLayout{dsl}, 16)
	must(err)
	r.set, err = r.arena.NewDescSet(dsl)
	must(err)
	r.set.SetBuffer(0, r.in, 0, 0)
	r.set.SetBuffer(1, r.out, 0, 0)
	r.pl, err = r.arena.NewComputePipeline(gpu.ComputePipelineDesc{
		Name:   "inc",
		Shader: gpu.Shader{Stage: gpu.StCompute, Name: "test.inc"},
		Layout: r.layout,
	})
	must(err)
	return r
}

func (r *computeRig) record(t *testing.T, fn func(cb gpu.CmdBuffer)) error {
	t.Helper()
	cb, err := r.arena.NewCmdBuffer()
	if err != nil {
		t.Fatal(err)
	}
	if err := cb.Begin(); err != nil {
		t.Fatal(err)
	}
	fn(cb)
	if err := cb.End(); err != nil {
		t.Fatal(err)
	}
	return r.dev.Submit([]gpu.CmdBuffer{cb}, nil)
}

func (r *computeRig) dispatch(cb gpu.CmdBuffer) {
	cb.SetPipeline(r.pl)
	cb.SetDescSets(r.layout, gpu.BindCompute, 0, []gpu.DescSet{r.set}, nil)
	cb.Dispatch(1, 1, 1)
}

func hazardKind(t *testing.T, err error) gpu.HazardKind {
	t.Helper()
	var h *gpu.HazardError
	if !errors.As(err, &h) {
		t.Fatalf("expected hazard, got %v", err)
	}
	return h.Kind
}

func TestFillThenDispatch(t *testing.T) {
	r := newComputeRig(t)
	defer r.arena.Destroy()
	if err := r.dev.WriteBuffer(r.in, 0, gpu.SliceBytes([]uint32{1, 2, 3, 4})); err != nil {
		t.Fatal(err)
	}

	err := r.record(t, func(cb gpu.CmdBuffer) {
		cb.FillBuffer(r.out, 0, 0, 0)
		cb.Barrier(gpu.STransfer, gpu.SComputeShader, []gpu.BufferBarrier{
			{Buffer: r.out, AccessBefore: gpu.ATransferWrite, AccessAfter: gpu.AShaderRead | gpu.AShaderWrite},
		}, nil)
		r.dispatch(cb)
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	got := make([]uint32, 4)
	if err := r.dev.ReadBuffer(r.out, 0, gpu.SliceBytes(got)); err != nil {
		t.Fatal(err)
	}
	for i, v := range got {
		if v != uint32(i+2) {
			t.Errorf("out[%d] = %d, want %d", i, v, i+2)
		}
	}
	if s := r.dev.Stats(); s.Dispatches != 1 || s.Barriers != 1 {
		t.Errorf("stats = %+v", s)
	}
}

func TestFillWithoutBarrier(t *testing.T) {
	r := newComputeRig(t)
	defer r.arena.Destroy()

	err := r.record(t, func(cb gpu.CmdBuffer) {
		cb.FillBuffer(r.out, 0, 0, 0)
		r.dispatch(cb)
	})
	if k := hazardKind(t, err); k != gpu.ReadAfterWrite {
		t.Errorf("kind = %v, want read-after-write", k)
	}
}

func TestBarrierWrongAccess(t *testing.T) {
	r := newComputeRig(t)
	defer r.arena.Destroy()

	// The barrier targets the vertex stage, so the compute read is not
	// covered.
	err := r.record(t, func(cb gpu.CmdBuffer) {
		cb.FillBuffer(r.out, 0, 0, 0)
		cb.Barrier(gpu.STransfer, gpu.SVertexShader, []gpu.BufferBarrier{
			{Buffer: r.out, AccessBefore: gpu.ATransferWrite, AccessAfter: gpu.AShaderRead | gpu.AShaderWrite},
		}, nil)
		r.dispatch(cb)
	})
	if k := hazardKind(t, err); k != gpu.ReadAfterWrite {
		t.Errorf("kind = %v, want read-after-write", k)
	}
}

func TestWriteAfterReadNeedsBarrier(t *testing.T) {
	r := newComputeRig(t)
	defer r.arena.Destroy()

	// The dispatch reads "in"; filling it again right after is a WAR hazard.
	err := r.record(t, func(cb gpu.CmdBuffer) {
		r.dispatch(cb)
		cb.FillBuffer(r.in, 0, 0, 7)
	})
	if k := hazardKind(t, err); k != gpu.WriteAfterRead {
		t.Errorf("kind = %v, want write-after-read", k)
	}

	// An execution dependency is enough for WAR.
	err = r.record(t, func(cb gpu.CmdBuffer) {
		r.dispatch(cb)
		cb.Barrier(gpu.SComputeShader, gpu.STransfer, nil, nil)
		cb.FillBuffer(r.in, 0, 0, 7)
	})
	if err != nil {
		t.Errorf("Submit: %v", err)
	}
}

func TestDisjointRangesTrackedSeparately(t *testing.T) {
	r := newComputeRig(t)
	defer r.arena.Destroy()
	big, err := r.arena.NewBuffer(gpu.BufferDesc{Name: "tiles", Size: 64, Usage: gpu.UStorage})
	if err != nil {
		t.Fatal(err)
	}

	// Two fills of disjoint ranges need no barrier between them, but a
	// barrier on one range does not cover the other.
	err = r.record(t, func(cb gpu.CmdBuffer) {
		cb.FillBuffer(big, 0, 4, 0)
		cb.FillBuffer(big, 32, 4, 0)
		cb.Barrier(gpu.STransfer, gpu.SComputeShader, []gpu.BufferBarrier{
			{Buffer: big, Offset: 0, Size: 4, AccessBefore: gpu.ATransferWrite, AccessAfter: gpu.AShaderRead},
		}, nil)
		r.set.SetBuffer(0, big, 32, 16)
		r.dispatch(cb)
	})
	if k := hazardKind(t, err); k != gpu.ReadAfterWrite {
		t.Errorf("kind = %v, want read-after-write", k)
	}
}

func TestMissingKernel(t *testing.T) {
	d := New()
	l, _ := d.NewPipelineLayout(nil, 0)
	_, err := d.NewComputePipeline(gpu.ComputePipelineDesc{Name: "x", Shader: gpu.Shader{Stage: gpu.StCompute, Name: "nope"}, Layout: l})
	if !errors.Is(err, gpu.ErrUnsupported) {
		t.Errorf("err = %v, want ErrUnsupported", err)
	}
}

func TestFenceSemantics(t *testing.T) {
	d := New()
	f, _ := d.NewFence(true)
	if err := f.Wait(); err != nil {
		t.Fatalf("signaled wait: %v", err)
	}
	f.Reset()
	if err := f.Wait(); err == nil {
		t.Fatal("wait on unsignaled fence with nothing submitted should fail")
	}
	cb, _ := d.NewCmdBuffer()
	cb.Begin()
	cb.End()
	if err := d.Submit([]gpu.CmdBuffer{cb}, f); err != nil {
		t.Fatal(err)
	}
	if err := f.Wait(); err != nil {
		t.Errorf("wait after submit: %v", err)
	}
	if err := d.Submit([]gpu.CmdBuffer{cb}, f); err == nil {
		t.Error("submit with signaled fence should fail")
	}
}

func TestArenaReleasesEverything(t *testing.T) {
	r := newComputeRig(t)
	if r.dev.Live() == 0 {
		t.Fatal("no live resources")
	}
	r.arena.Destroy()
	if n := r.dev.Live(); n != 0 {
		t.Errorf("Live = %d after arena destroy", n)
	}
}

// passRig is a two-subpass render pass: subpass 0 writes color and depth,
// subpass 1 reads both as input attachments and writes a resolved target.
type passRig struct {
	dev   *Device
	arena *gpu.Arena
	pass  gpu.RenderPass
	fb    gpu.Framebuffer
	write gpu.Pipeline
	read  gpu.Pipeline
	color gpu.Image
	out   gpu.Image
}

func newPassRig(t *testing.T, deps []gpu.Dependency) *passRig {
	t.Helper()
	r := &passRig{dev: New()}
	r.arena = gpu.NewArena(r.dev)
	ext := gpu.Extent2D{Width: 8, Height: 8}
	mk := func(name string, f gpu.Format) gpu.ImageView {
		img, err := r.arena.NewImage(gpu.ImageDesc{Name: name, Format: f, Extent: ext, Layers: 1, Usage: gpu.UColorTarget | gpu.UInputAttachment | gpu.USampled})
		if err != nil {
			t.Fatal(err)
		}
		if name == "color" {
			r.color = img
		}
		if name == "resolved" {
			r.out = img
		}
		v, err := r.arena.NewView(img, 0, 1)
		if err != nil {
			t.Fatal(err)
		}
		return v
	}
	views := []gpu.ImageView{mk("color", gpu.RGBA8un), mk("depth", gpu.D32f), mk("resolved", gpu.RGBA16f)}
	var err error
	r.pass, err = r.arena.NewRenderPass(gpu.RenderPassDesc{
		Name: "test",
		Attachments: []gpu.Attachment{
			{Format: gpu.RGBA8un, Load: gpu.LoadClear, Final: gpu.LShaderRead},
			{Format: gpu.D32f, Load: gpu.LoadClear, Final: gpu.LDepthRead},
			{Format: gpu.RGBA16f, Load: gpu.LoadDontCare, Store: gpu.StoreStore, Final: gpu.LShaderRead},
		},
		Subpasses: []gpu.Subpass{
			{Color: []int{0}, Depth: 1},
			{Color: []int{2}, Depth: gpu.Unused, Input: []int{0, 1}},
		},
		Dependencies: deps,
	})
	if err != nil {
		t.Fatal(err)
	}
	r.fb, err = r.arena.NewFramebuffer(r.pass, views, ext)
	if err != nil {
		t.Fatal(err)
	}
	layout, _ := r.arena.NewPipelineLayout(nil, 0)
	shaders := []gpu.Shader{{Stage: gpu.StVertex, Name: "v"}, {Stage: gpu.StFragment, Name: "f"}}
	r.write, err = r.arena.NewGraphicsPipeline(gpu.GraphicsPipelineDesc{
		Name: "write", Shaders: shaders, Layout: layout, Pass: r.pass, Subpass: 0,
		Depth: gpu.DepthState{Test: true, Write: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	r.read, err = r.arena.NewGraphicsPipeline(gpu.GraphicsPipelineDesc{
		Name: "read", Shaders: shaders, Layout: layout, Pass: r.pass, Subpass: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func (r *passRig) frame(t *testing.T) error {
	t.Helper()
	cb, _ := r.arena.NewCmdBuffer()
	cb.Begin()
	cb.BeginPass(r.pass, r.fb, nil)
	cb.SetViewport(gpu.FullViewport(r.fb.Extent()))
	cb.SetScissor(gpu.FullScissor(r.fb.Extent()))
	cb.SetPipeline(r.write)
	cb.Draw(3, 1, 0, 0)
	cb.Draw(3, 1, 0, 0)
	cb.NextSubpass()
	cb.SetPipeline(r.read)
	cb.Draw(3, 1, 0, 0)
	cb.EndPass()
	if err := cb.End(); err != nil {
		t.Fatal(err)
	}
	return r.dev.Submit([]gpu.CmdBuffer{cb}, nil)
}

var gbufferDep = gpu.Dependency{
	Src: 0, Dst: 1,
	SrcSync:   gpu.SColorOutput | gpu.SLateFragmentTests,
	DstSync:   gpu.SFragmentShader,
	SrcAccess: gpu.AColorWrite | gpu.ADepthWrite,
	DstAccess: gpu.AInputAttachmentRead,
	ByRegion:  true,
}

func TestSubpassDependency(t *testing.T) {
	r := newPassRig(t, []gpu.Dependency{gbufferDep})
	defer r.arena.Destroy()
	if err := r.frame(t); err != nil {
		t.Fatalf("frame: %v", err)
	}
	s := r.dev.Stats()
	if len(s.Draws) != 3 || len(s.Passes) != 1 {
		t.Errorf("stats = %+v", s)
	}
	if got := r.color.(*image).layers[0].layout; got != gpu.LShaderRead {
		t.Errorf("final layout = %v, want shader-read", got)
	}
}

func TestSubpassDependencyMissing(t *testing.T) {
	r := newPassRig(t, nil)
	defer r.arena.Destroy()
	if k := hazardKind(t, r.frame(t)); k != gpu.ReadAfterWrite {
		t.Errorf("kind = %v, want read-after-write", k)
	}
}

func TestSubpassDependencyColorOnly(t *testing.T) {
	dep := gbufferDep
	dep.SrcSync = gpu.SColorOutput
	dep.SrcAccess = gpu.AColorWrite
	r := newPassRig(t, []gpu.Dependency{dep})
	defer r.arena.Destroy()

	err := r.frame(t)
	var h *gpu.HazardError
	if !errors.As(err, &h) || h.Resource != "depth" {
		t.Errorf("expected hazard on depth, got %v", err)
	}
}

func TestSwapchainOutOfDate(t *testing.T) {
	d := New()
	sc, err := d.NewSwapchain(gpu.Extent2D{Width: 64, Height: 32}, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer sc.Destroy()

	i, err := sc.Acquire()
	if err != nil {
		t.Fatal(err)
	}
	var h *gpu.HazardError
	if err := sc.Present(i); !errors.As(err, &h) || h.Kind != gpu.BadLayout {
		t.Errorf("present of undefined image: %v", err)
	}

	sc.Resize(gpu.Extent2D{Width: 32, Height: 32})
	if _, err := sc.Acquire(); !errors.Is(err, gpu.ErrOutOfDate) {
		t.Fatalf("Acquire after resize: %v", err)
	}
	if err := sc.Recreate(gpu.Extent2D{}); err != nil {
		t.Fatal(err)
	}
	if got := sc.Extent(); got != (gpu.Extent2D{Width: 32, Height: 32}) {
		t.Errorf("extent = %v", got)
	}
	if _, err := sc.Acquire(); err != nil {
		t.Errorf("Acquire after recreate: %v", err)
	}
}
