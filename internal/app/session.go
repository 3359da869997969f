// Package app drives the renderer independently of the window system. A
// Session owns the loaded scene and the shader library, and steps frames on
// whatever device and swapchain it is given.
package app

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/vigil/internal/config"
	"github.com/Faultbox/vigil/internal/engine/gpu"
	"github.com/Faultbox/vigil/internal/engine/picking"
	"github.com/Faultbox/vigil/internal/engine/renderer"
	"github.com/Faultbox/vigil/internal/engine/scene"
	"github.com/Faultbox/vigil/internal/engine/shader"
	"github.com/Faultbox/vigil/internal/logger"
)

// Session is a renderer with a loaded scene.
type Session struct {
	log      *zap.Logger
	cfg      *config.Config
	lib      *shader.Library
	watcher  *shader.Watcher
	renderer *renderer.Renderer
	scene    *scene.Manager
	cameraID int
	frames   uint64
}

// NewSession creates a renderer on dev and sc and loads cfg.Scene into it.
func NewSession(dev gpu.Device, sc gpu.Swapchain, cfg *config.Config) (*Session, error) {
	s := &Session{
		log: logger.Named("app"),
		cfg: cfg,
		lib: shader.NewLibrary(cfg.Shaders.Dir),
	}

	var err error
	s.renderer, err = renderer.New(dev, sc, s.lib, cfg.Render, cfg.Graphics.FramesInFlight)
	if err != nil {
		return nil, fmt.Errorf("creating renderer: %w", err)
	}

	if err := s.loadScene(cfg.Scene.Path); err != nil {
		s.renderer.Close()
		return nil, err
	}
	s.SelectCamera(cfg.Scene.CameraIndex)

	if cfg.Shaders.HotReload {
		if s.watcher, err = s.lib.Watch(); err != nil {
			s.log.Warn("shader hot reload disabled", zap.Error(err))
		}
	}

	s.log.Info("session ready", zap.String("backend", dev.Backend()))
	return s, nil
}

func (s *Session) loadScene(path string) error {
	mgr, err := scene.Load(path)
	if err != nil {
		return fmt.Errorf("loading scene: %w", err)
	}
	if err := s.renderer.LoadScene(mgr); err != nil {
		return err
	}
	s.scene = mgr
	s.log.Info("scene opened", zap.String("path", path), zap.Int("cameras", mgr.CamerasNum()))
	return nil
}

// OpenScene replaces the loaded scene and moves to its first camera. A file
// that fails to parse leaves the previous scene loaded.
func (s *Session) OpenScene(path string) error {
	if err := s.loadScene(path); err != nil {
		return err
	}
	s.SelectCamera(0)
	return nil
}

// Renderer returns the session renderer.
func (s *Session) Renderer() *renderer.Renderer { return s.renderer }

// Scene returns the loaded scene.
func (s *Session) Scene() *scene.Manager { return s.scene }

// Frames returns the number of frames drawn.
func (s *Session) Frames() uint64 { return s.frames }

// SelectCamera moves the view to scene camera i. Unknown indices fall back
// to the default camera.
func (s *Session) SelectCamera(i int) {
	s.cameraID = i
	s.renderer.SetCamera(s.scene.GetCamera(i))
}

// NextCamera cycles through the scene cameras.
func (s *Session) NextCamera() {
	n := s.scene.CamerasNum()
	if n == 0 {
		s.SelectCamera(0)
		return
	}
	s.SelectCamera((s.cameraID + 1) % n)
}

// HideAt excludes the marked instance under pixel (x, y) from culling and
// returns its id.
func (s *Session) HideAt(x, y float32) (int, bool) {
	cam := s.renderer.Camera()
	extent := s.renderer.Extent()
	aspect := float32(extent.Width) / float32(extent.Height)
	ray := picking.ScreenToRay(x, y, extent, cam.ViewProj(aspect).Inv())

	hit, ok := picking.PickInstance(s.scene, ray, false)
	if !ok {
		return -1, false
	}
	if err := s.scene.UnmarkInstance(hit.Instance); err != nil {
		s.log.Warn("hide instance", zap.Int("instance", hit.Instance), zap.Error(err))
		return -1, false
	}
	s.log.Debug("instance hidden", zap.Int("instance", hit.Instance), zap.Float32("distance", hit.Distance))
	return hit.Instance, true
}

// ShowAll marks every instance again.
func (s *Session) ShowAll() {
	for id := range s.scene.InstancesNum() {
		if err := s.scene.MarkInstance(id); err != nil {
			s.log.Warn("show instance", zap.Int("instance", id), zap.Error(err))
			return
		}
	}
}

// ReloadShaders rebuilds the pipelines. A failed reload keeps the previous
// pipelines and is only logged.
func (s *Session) ReloadShaders() {
	if err := s.renderer.ReloadShaders(); err != nil {
		s.log.Error("shader reload", zap.Error(err))
	}
}

// Frame draws one frame at time t in seconds, reloading shaders first if
// their sources changed.
func (s *Session) Frame(t float32) error {
	if s.watcher != nil && s.watcher.Changed() {
		s.ReloadShaders()
	}
	if err := s.renderer.DrawFrame(t); err != nil {
		return err
	}
	s.frames++
	return nil
}

// Close releases the renderer and stops watching shaders.
func (s *Session) Close() {
	if s.watcher != nil {
		if err := s.watcher.Close(); err != nil {
			s.log.Warn("closing shader watcher", zap.Error(err))
		}
		s.watcher = nil
	}
	if s.renderer != nil {
		s.renderer.Close()
		s.renderer = nil
	}
}
