// Package renderer orchestrates the frame graph.
//
// Every frame is one command buffer: per shadow cascade a culling dispatch,
// a depth pass and a moments pass; then main culling, a two-subpass G-buffer
// pass that fills the G-buffer and resolves lighting from it, a reduced
// resolution fog and SSAO pass, and tone mapping into the swapchain image.
package renderer

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"go.uber.org/zap"

	"github.com/Faultbox/vigil/internal/config"
	"github.com/Faultbox/vigil/internal/engine/camera"
	"github.com/Faultbox/vigil/internal/engine/gpu"
	"github.com/Faultbox/vigil/internal/engine/lighting"
	"github.com/Faultbox/vigil/internal/engine/scene"
	"github.com/Faultbox/vigil/internal/engine/shader"
	"github.com/Faultbox/vigil/internal/engine/shadow"
	"github.com/Faultbox/vigil/internal/engine/visibility"
	"github.com/Faultbox/vigil/internal/logger"
)

// ErrNoScene is returned by DrawFrame before a scene is loaded.
var ErrNoScene = errors.New("renderer: no scene loaded")

// Albedo of meshes without material.
var baseColor = [3]float32{0.8, 0.8, 0.8}

// Renderer records and submits frames.
type Renderer struct {
	log *zap.Logger
	dev gpu.Device
	sc  gpu.Swapchain
	lib *shader.Library
	cfg config.RenderConfig

	// arena owns the per-frame command buffers, fences and uniforms.
	arena     *gpu.Arena
	frames    []*frameData
	frame     int
	rm        *ResourceManager
	pipelines *Pipelines
	planner   *shadow.Planner

	sceneArena *gpu.Arena
	mgr        *scene.Manager
	scene      *scene.GPU
	vis        *visibility.Set

	targets *targets

	camera    camera.Camera
	sunAngle  float32
	wireframe bool
	ssao      bool
}

// New creates a renderer drawing to sc. framesInFlight command buffers are
// recorded round robin; each waits for its previous submission.
func New(dev gpu.Device, sc gpu.Swapchain, lib *shader.Library, cfg config.RenderConfig, framesInFlight int) (*Renderer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("render config: %w", err)
	}
	if framesInFlight <= 0 {
		return nil, fmt.Errorf("frames in flight must be positive, got %d", framesInFlight)
	}

	r := &Renderer{
		log:        logger.Named("renderer"),
		dev:        dev,
		sc:         sc,
		lib:        lib,
		cfg:        cfg,
		arena:      gpu.NewArena(dev),
		sceneArena: gpu.NewArena(dev),
		planner:    shadow.NewPlanner(cfg),
		sunAngle:   clampAngle(cfg.SunAngle),
		wireframe:  cfg.Wireframe,
		ssao:       cfg.SSAO,
	}
	r.SetCamera(camera.Default())

	if err := r.init(framesInFlight); err != nil {
		r.Close()
		return nil, err
	}
	r.log.Info("renderer created",
		zap.String("backend", dev.Backend()),
		zap.Int("frames_in_flight", framesInFlight),
		zap.Int("cascades", cfg.CascadeCount),
		zap.Int("shadow_resolution", cfg.ShadowMapResolution))
	return r, nil
}

func (r *Renderer) init(framesInFlight int) error {
	for i := range framesInFlight {
		f, err := newFrameData(r.arena, i)
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		r.frames = append(r.frames, f)
	}

	var err error
	if r.rm, err = newResourceManager(r.dev, r.cfg, r.sc.Format()); err != nil {
		return err
	}
	if r.pipelines, err = newPipelines(r.dev, r.lib, r.rm.Layouts, r.rm.Passes); err != nil {
		return fmt.Errorf("creating pipelines: %w", err)
	}
	return nil
}

// LoadScene uploads mgr and builds everything sized by it. A previously
// loaded scene is released first.
func (r *Renderer) LoadScene(mgr *scene.Manager) error {
	if err := r.dev.WaitIdle(); err != nil {
		return err
	}
	r.releaseScene()

	g, err := mgr.Upload(r.sceneArena)
	if err != nil {
		r.sceneArena.Destroy()
		return fmt.Errorf("uploading scene: %w", err)
	}
	vis, err := visibility.NewSet(r.sceneArena, r.rm.Layouts.Visibility, g, r.cfg.CascadeCount)
	if err != nil {
		r.sceneArena.Destroy()
		mgr.Release()
		return fmt.Errorf("creating visibility contexts: %w", err)
	}
	r.mgr, r.scene, r.vis = mgr, g, vis
	r.planner.Casters = mgr.Bounds()

	if err := r.rebuildTargets(); err != nil {
		return err
	}
	r.log.Info("scene loaded",
		zap.Int("meshes", g.MeshesNum()),
		zap.Int("instances", g.InstancesNum()),
		zap.Int("landscapes", g.LandscapeNum()),
		zap.Int("lights", g.LightsNum()),
		zap.Int("contexts", vis.Len()))
	return nil
}

func (r *Renderer) releaseScene() {
	if r.targets != nil {
		r.targets.destroy()
		r.targets = nil
	}
	r.sceneArena.Destroy()
	if r.mgr != nil {
		r.mgr.Release()
	}
	r.mgr, r.scene, r.vis = nil, nil, nil
}

func (r *Renderer) rebuildTargets() error {
	if r.targets != nil {
		r.targets.destroy()
		r.targets = nil
	}
	t, err := newTargets(r.dev, r.rm, r.cfg, r.sc, r.scene, r.frames)
	if err != nil {
		return fmt.Errorf("creating render targets: %w", err)
	}
	r.targets = t
	return nil
}

// rebuildSwapchain recreates the swapchain at the surface size and every
// target sized by it.
func (r *Renderer) rebuildSwapchain() error {
	if err := r.dev.WaitIdle(); err != nil {
		return err
	}
	if err := r.sc.Recreate(gpu.Extent2D{}); err != nil {
		return fmt.Errorf("recreating swapchain: %w", err)
	}
	if err := r.rebuildTargets(); err != nil {
		return err
	}
	ext := r.sc.Extent()
	r.log.Info("swapchain rebuilt", zap.Int("width", ext.Width), zap.Int("height", ext.Height))
	return nil
}

// Camera returns the main camera for in-place updates.
func (r *Renderer) Camera() *camera.Camera { return &r.camera }

// SetCamera replaces the main camera. The clip range always comes from the
// render settings so cascades split the same range every frame.
func (r *Renderer) SetCamera(c camera.Camera) {
	c.Near, c.Far = r.cfg.NearClip, r.cfg.FarClip
	r.camera = c
}

// SunAngle returns the sun angle in radians above the horizon.
func (r *Renderer) SunAngle() float32 { return r.sunAngle }

// SetSunAngle moves the sun. The angle is clamped to [0, pi].
func (r *Renderer) SetSunAngle(a float32) { r.sunAngle = clampAngle(a) }

// Wireframe reports whether geometry is drawn as wireframe.
func (r *Renderer) Wireframe() bool { return r.wireframe }

// SetWireframe toggles wireframe geometry. Only the pipelines bound for the
// G-buffer draws change.
func (r *Renderer) SetWireframe(on bool) { r.wireframe = on }

// SSAO reports whether ambient occlusion is rendered.
func (r *Renderer) SSAO() bool { return r.ssao }

// SetSSAO toggles ambient occlusion.
func (r *Renderer) SetSSAO(on bool) { r.ssao = on }

// Exposure returns the tone mapping exposure.
func (r *Renderer) Exposure() float32 { return r.cfg.Exposure }

// SetExposure sets the tone mapping exposure, clamped to
// [minExposure, maxExposure].
func (r *Renderer) SetExposure(e float32) {
	r.cfg.Exposure = math32.Max(minExposure, math32.Min(maxExposure, e))
}

// Tonemapping returns the tone mapping operator.
func (r *Renderer) Tonemapping() int { return r.cfg.Tonemapping }

// SetTonemapping selects the tone mapping operator. Out of range values wrap
// around so a key can cycle through them.
func (r *Renderer) SetTonemapping(op int) {
	n := TonemapACES + 1
	r.cfg.Tonemapping = (op%n + n) % n
}

// Extent returns the size of the G-buffer.
func (r *Renderer) Extent() gpu.Extent2D {
	if r.targets == nil {
		return r.sc.Extent()
	}
	return r.targets.extent
}

// Cascades plans the shadow cascades for the current camera and sun.
func (r *Renderer) Cascades() []shadow.Cascade {
	ext := r.Extent()
	vp := r.camera.ViewProj(aspect(ext.Width, ext.Height))
	return r.planner.Plan(vp.Inv(), r.camera.Near, r.camera.Far, lighting.SunDirection(r.sunAngle))
}

// DrawFrame renders and presents one frame. An out of date swapchain is
// rebuilt and the frame skipped; any other error is fatal to the renderer.
func (r *Renderer) DrawFrame(time float32) error {
	if r.scene == nil {
		return ErrNoScene
	}
	f := r.frames[r.frame]
	if err := f.fence.Wait(); err != nil {
		return fmt.Errorf("waiting for frame %d: %w", r.frame, err)
	}

	image, err := r.sc.Acquire()
	if gpu.IsSwapchainStale(err) {
		return r.rebuildSwapchain()
	}
	if err != nil {
		return fmt.Errorf("acquiring swapchain image: %w", err)
	}

	p := r.prepare(image)
	if err := r.writeUniforms(f, p, time); err != nil {
		return err
	}
	if err := r.recordFrame(f.cmd, p); err != nil {
		return err
	}
	if err := f.fence.Reset(); err != nil {
		return err
	}
	if err := r.dev.Submit([]gpu.CmdBuffer{f.cmd}, f.fence); err != nil {
		return fmt.Errorf("submitting frame: %w", err)
	}

	err = r.sc.Present(image)
	switch {
	case gpu.IsSwapchainStale(err):
		if err := r.rebuildSwapchain(); err != nil {
			return err
		}
	case err != nil:
		return fmt.Errorf("presenting: %w", err)
	}

	if r.cfg.QueueWaitIdle {
		if err := r.dev.WaitIdle(); err != nil {
			return err
		}
	}
	r.frame = (r.frame + 1) % len(r.frames)
	return nil
}

// prepare computes the camera and cascade state of the next frame.
func (r *Renderer) prepare(image int) *frameParams {
	ext := r.targets.extent
	proj := r.camera.Proj(aspect(ext.Width, ext.Height))
	view := r.camera.View()
	vp := proj.Mul4(view)
	return &frameParams{
		camera:           GraphicsPush{Proj: proj, View: view},
		viewProj:         vp,
		cascades:         r.planner.Plan(vp.Inv(), r.camera.Near, r.camera.Far, lighting.SunDirection(r.sunAngle)),
		wireframe:        r.wireframe,
		ssao:             r.ssao,
		landscapeShadows: r.cfg.LandscapeShadows,
		blurRadius:       uint32(r.cfg.VSMBlurRadius),
		frame:            r.frame,
		image:            image,
	}
}

func (r *Renderer) writeUniforms(f *frameData, p *frameParams, time float32) error {
	ext := r.targets.extent
	u := FrameUniforms{
		BaseColor:        baseColor,
		Time:             time,
		SunPosition:      lighting.SunPosition(r.sunAngle),
		Exposure:         r.cfg.Exposure,
		ScreenWidth:      float32(ext.Width),
		ScreenHeight:     float32(ext.Height),
		PostFXDownscale:  uint32(r.cfg.PostFXDownscale),
		Tonemapping:      uint32(r.cfg.Tonemapping),
		LandscapeShadows: boolWord(p.landscapeShadows),
		SSAO:             boolWord(p.ssao),
		SSAORadius:       r.cfg.SSAORadius,
		SSAOKernelSize:   uint32(r.cfg.SSAOKernelSize),
	}
	if err := r.dev.WriteBuffer(f.frame, 0, gpu.Bytes(&u)); err != nil {
		return fmt.Errorf("writing frame uniforms: %w", err)
	}
	su := shadow.NewUniforms(p.cascades)
	if err := r.dev.WriteBuffer(f.shadow, 0, gpu.Bytes(&su)); err != nil {
		return fmt.Errorf("writing shadow uniforms: %w", err)
	}
	return nil
}

// ReloadShaders rebuilds every pipeline from the shader library. On error
// the previous pipelines stay in use.
func (r *Renderer) ReloadShaders() error {
	pl, err := newPipelines(r.dev, r.lib, r.rm.Layouts, r.rm.Passes)
	if err != nil {
		r.log.Warn("shader reload failed", zap.Error(err))
		return err
	}
	if err := r.dev.WaitIdle(); err != nil {
		pl.Destroy()
		return err
	}
	r.pipelines.Destroy()
	r.pipelines = pl
	r.log.Info("shaders reloaded")
	return nil
}

// Close waits for the device and releases every resource.
func (r *Renderer) Close() {
	if err := r.dev.WaitIdle(); err != nil {
		r.log.Warn("wait idle on close", zap.Error(err))
	}
	r.releaseScene()
	if r.pipelines != nil {
		r.pipelines.Destroy()
		r.pipelines = nil
	}
	if r.rm != nil {
		r.rm.Destroy()
		r.rm = nil
	}
	r.arena.Destroy()
	r.frames = nil
}
