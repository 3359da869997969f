package app

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/Faultbox/vigil/internal/config"
	"github.com/Faultbox/vigil/internal/engine/gpu"
	"github.com/Faultbox/vigil/internal/engine/gpu/soft"
	"github.com/Faultbox/vigil/internal/engine/visibility"
)

const testScene = `
meshes:
  - name: cube
    primitive: cube
instances:
  - mesh: cube
    position: [0, 0, 0]
  - mesh: cube
    position: [3, 0, 0]
landscapes:
  - seed: 3
    width: 64
    height: 64
    tile_size: 16
lights:
  - position: [0, 2, 0]
    color: [1, 1, 1]
    radius: 5
cameras:
  - position: [0, 4, 12]
  - position: [10, 10, 10]
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scene.yaml")
	if err := os.WriteFile(path, []byte(testScene), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Graphics.Width, cfg.Graphics.Height = 64, 48
	cfg.Render.CascadeCount = 2
	cfg.Render.ShadowMapResolution = 64
	cfg.Render.SSAOKernelSize = 8
	cfg.Render.SSAONoiseDim = 4
	cfg.Scene.Path = path
	cfg.Shaders.Dir = ""
	return cfg
}

func newSession(t *testing.T, cfg *config.Config) (*Session, *soft.Device) {
	t.Helper()
	dev := soft.New()
	visibility.RegisterKernels(dev)
	sc, err := dev.NewSwapchain(gpu.Extent2D{Width: 64, Height: 48}, 3)
	if err != nil {
		t.Fatal(err)
	}
	s, err := NewSession(dev, sc, cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		s.Close()
		sc.Destroy()
	})
	return s, dev
}

func TestSessionLoadsScene(t *testing.T) {
	s, _ := newSession(t, testConfig(t))
	if n := s.Scene().InstancesNum(); n != 2 {
		t.Errorf("instances = %d, want 2", n)
	}
	if n := s.Scene().LandscapeNum(); n != 1 {
		t.Errorf("landscapes = %d, want 1", n)
	}
	if got := s.Renderer().Camera().Pos; got != [3]float32{0, 4, 12} {
		t.Errorf("camera position = %v, want first scene camera", got)
	}
}

func TestSessionMissingScene(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scene.Path = filepath.Join(t.TempDir(), "missing.yaml")
	dev := soft.New()
	visibility.RegisterKernels(dev)
	sc, err := dev.NewSwapchain(gpu.Extent2D{Width: 64, Height: 48}, 3)
	if err != nil {
		t.Fatal(err)
	}
	defer sc.Destroy()
	if _, err := NewSession(dev, sc, cfg); err == nil {
		t.Fatal("NewSession with a missing scene should fail")
	}
}

func TestSessionCameraFallback(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scene.CameraIndex = 9
	s, _ := newSession(t, cfg)
	if got := s.Renderer().Camera().Pos; got != [3]float32{0, 0, 15} {
		t.Errorf("camera position = %v, want the default camera", got)
	}
}

func TestNextCameraCycles(t *testing.T) {
	s, _ := newSession(t, testConfig(t))
	s.NextCamera()
	if got := s.Renderer().Camera().Pos; got != [3]float32{10, 10, 10} {
		t.Errorf("after one step camera = %v, want second scene camera", got)
	}
	s.NextCamera()
	if got := s.Renderer().Camera().Pos; got != [3]float32{0, 4, 12} {
		t.Errorf("after two steps camera = %v, want first scene camera", got)
	}
}

func TestSessionFrames(t *testing.T) {
	s, dev := newSession(t, testConfig(t))
	for i := range 3 {
		if err := s.Frame(float32(i)); err != nil {
			t.Fatal(err)
		}
	}
	if s.Frames() != 3 {
		t.Errorf("frames = %d, want 3", s.Frames())
	}
	if p := dev.Stats().Passes; !slices.Contains(p, "present") {
		t.Errorf("passes = %v, want a present pass", p)
	}
}

func TestSessionHotReloadWithoutDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.Shaders.HotReload = true
	s, _ := newSession(t, cfg)
	if s.watcher != nil {
		t.Error("watcher started without a shader directory")
	}
	if err := s.Frame(0); err != nil {
		t.Fatal(err)
	}
}

func TestRunHeadless(t *testing.T) {
	r, err := RunHeadless(testConfig(t), 4)
	if err != nil {
		t.Fatal(err)
	}
	if r.Frames != 4 || r.Presents != 4 {
		t.Errorf("frames = %d, presents = %d, want 4 and 4", r.Frames, r.Presents)
	}
	if r.Last.Dispatches == 0 {
		t.Error("last frame recorded no culling dispatches")
	}
}

func TestRunHeadlessRejectsZeroFrames(t *testing.T) {
	if _, err := RunHeadless(testConfig(t), 0); err == nil {
		t.Fatal("RunHeadless(0) should fail")
	}
}

func TestHideAtAndShowAll(t *testing.T) {
	s, _ := newSession(t, testConfig(t))

	// The first scene camera looks at the cube at the origin.
	id, ok := s.HideAt(32, 24)
	if !ok || id != 0 {
		t.Fatalf("HideAt(center) = %d, %v, want 0, true", id, ok)
	}
	if s.Scene().Instance(0).Marked {
		t.Error("picked instance is still marked")
	}
	if err := s.Frame(0); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.HideAt(0, 0); ok {
		t.Error("corner pixel should not hit an instance")
	}

	s.ShowAll()
	if !s.Scene().Instance(0).Marked {
		t.Error("ShowAll left the instance unmarked")
	}
}

func TestOpenScene(t *testing.T) {
	s, _ := newSession(t, testConfig(t))

	path := filepath.Join(t.TempDir(), "other.yaml")
	doc := "meshes:\n  - name: ball\n    primitive: sphere\ninstances:\n  - mesh: ball\nlights:\n  - position: [0, 2, 0]\n    radius: 4\ncameras:\n  - position: [1, 2, 3]\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.OpenScene(path); err != nil {
		t.Fatal(err)
	}
	if n := s.Scene().InstancesNum(); n != 1 {
		t.Errorf("instances = %d, want 1", n)
	}
	if got := s.Renderer().Camera().Pos; got != [3]float32{1, 2, 3} {
		t.Errorf("camera = %v, want the new scene camera", got)
	}
	if err := s.Frame(0); err != nil {
		t.Fatal(err)
	}

	if err := s.OpenScene(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("opening a missing scene should fail")
	}
	if n := s.Scene().InstancesNum(); n != 1 {
		t.Errorf("after a failed open instances = %d, want the previous scene", n)
	}
	if err := s.Frame(1); err != nil {
		t.Fatal(err)
	}
}
