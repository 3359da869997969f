// Package viewer implements the interactive main loop: SDL window, OpenGL
// device and a fly camera over the loaded scene.
package viewer

import (
	"fmt"
	"time"

	"github.com/chewxy/math32"
	"github.com/sqweek/dialog"
	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/Faultbox/vigil/internal/app"
	"github.com/Faultbox/vigil/internal/config"
	"github.com/Faultbox/vigil/internal/engine/camera"
	"github.com/Faultbox/vigil/internal/engine/debug"
	"github.com/Faultbox/vigil/internal/engine/gpu/glgpu"
	"github.com/Faultbox/vigil/internal/engine/input"
	"github.com/Faultbox/vigil/internal/engine/window"
	"github.com/Faultbox/vigil/internal/logger"
)

// Radians per second the sun turns while an arrow key is held.
const sunSpeed = 0.5

// Exposure change per second while +/- is held, as a factor.
const exposureRate = 2

// Viewer is the interactive renderer instance.
type Viewer struct {
	log     *zap.Logger
	running bool
	window  *window.Window
	dev     *glgpu.Device
	sc      *glgpu.Swapchain
	session *app.Session
	input   *input.Input
	fly     *camera.FlyController
	shots   *debug.ScreenshotCapture
	// scenes receives paths picked in the open dialog.
	scenes  chan string
}

// New opens the window and loads the configured scene.
func New(cfg *config.Config) (*Viewer, error) {
	v := &Viewer{
		log:    logger.Named("viewer"),
		input:  input.New(),
		fly:    camera.NewFlyController(),
		shots:  debug.NewScreenshotCapture("screenshots", "vigil"),
		scenes: make(chan string, 1),
	}
	v.log.Info("initializing viewer",
		zap.Int("width", cfg.Graphics.Width),
		zap.Int("height", cfg.Graphics.Height),
	)

	// Create window (this also creates OpenGL context)
	var err error
	v.window, err = window.New(window.Config{
		Title:      "vigil",
		Width:      cfg.Graphics.Width,
		Height:     cfg.Graphics.Height,
		Fullscreen: cfg.Graphics.Fullscreen,
		VSync:      cfg.Graphics.VSync,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	// The device needs a current context.
	if v.dev, err = glgpu.New(); err != nil {
		v.Close()
		return nil, fmt.Errorf("failed to create device: %w", err)
	}
	if v.sc, err = v.dev.NewSwapchain(v.window, cfg.Graphics.FramesInFlight+1); err != nil {
		v.Close()
		return nil, fmt.Errorf("failed to create swapchain: %w", err)
	}
	if v.session, err = app.NewSession(v.dev, v.sc, cfg); err != nil {
		v.Close()
		return nil, err
	}

	v.log.Info("viewer initialized")
	return v, nil
}

// Run starts the main loop and returns when the window is closed.
func (v *Viewer) Run() error {
	v.running = true

	start := time.Now()
	lastTime := start
	frameCount := 0
	fpsTimer := start

	v.log.Info("starting main loop")

	for v.running {
		now := time.Now()
		dt := float32(now.Sub(lastTime).Seconds())
		lastTime = now

		if v.input.Update() {
			v.running = false
			break
		}
		for _, event := range v.input.Events() {
			switch event.Type {
			case input.EventKeyDown:
				v.handleKey(event.Key)
			case input.EventMouseDown:
				if event.Button == sdl.BUTTON_LEFT {
					v.pick(event.MouseX, event.MouseY)
				}
			}
		}
		select {
		case path := <-v.scenes:
			if err := v.session.OpenScene(path); err != nil {
				v.log.Error("open scene", zap.String("path", path), zap.Error(err))
			}
		default:
		}
		v.update(dt)

		if err := v.session.Frame(float32(now.Sub(start).Seconds())); err != nil {
			return fmt.Errorf("render error: %w", err)
		}

		frameCount++
		if time.Since(fpsTimer) >= time.Second {
			v.log.Debug("fps", zap.Int("count", frameCount), zap.Float32("dt_ms", dt*1000))
			v.window.SetTitle(fmt.Sprintf("vigil - %d fps", frameCount))
			frameCount = 0
			fpsTimer = time.Now()
		}
	}

	return nil
}

func (v *Viewer) handleKey(key sdl.Scancode) {
	r := v.session.Renderer()
	switch key {
	case sdl.SCANCODE_ESCAPE:
		v.running = false
	case sdl.SCANCODE_F:
		r.SetWireframe(!r.Wireframe())
		v.log.Info("wireframe", zap.Bool("on", r.Wireframe()))
	case sdl.SCANCODE_O:
		r.SetSSAO(!r.SSAO())
		v.log.Info("ssao", zap.Bool("on", r.SSAO()))
	case sdl.SCANCODE_R:
		v.session.ReloadShaders()
	case sdl.SCANCODE_C:
		v.session.NextCamera()
	case sdl.SCANCODE_H:
		v.session.ShowAll()
	case sdl.SCANCODE_T:
		r.SetTonemapping(r.Tonemapping() + 1)
		v.log.Info("tonemapping", zap.Int("operator", r.Tonemapping()))
	case sdl.SCANCODE_F12:
		v.screenshot()
	case sdl.SCANCODE_L:
		v.openSceneDialog()
	}
}

// openSceneDialog shows a native file dialog. The picked scene is opened on
// the main thread by Run since the GL context is bound to it.
func (v *Viewer) openSceneDialog() {
	go func() {
		filename, err := dialog.File().
			Filter("Scene descriptions", "yaml", "yml", "toml").
			Filter("All Files", "*").
			Title("Open scene").
			Load()
		if err != nil {
			if err != dialog.ErrCancelled {
				v.log.Warn("file dialog", zap.Error(err))
			}
			return
		}
		select {
		case v.scenes <- filename:
		default:
			v.log.Warn("scene already pending", zap.String("path", filename))
		}
	}()
}

func (v *Viewer) screenshot() {
	pixels, extent, err := v.sc.ReadPresented()
	if err != nil {
		v.log.Warn("screenshot", zap.Error(err))
		return
	}
	img, err := debug.FromBGRA(pixels, extent, true)
	if err != nil {
		v.log.Warn("screenshot", zap.Error(err))
		return
	}
	name, err := v.shots.Capture(img)
	if err != nil {
		v.log.Warn("screenshot", zap.Error(err))
		return
	}
	v.log.Info("screenshot saved", zap.String("file", name))
}

// pick hides the instance under the cursor. Mouse positions are in window
// coordinates, which differ from pixels on high DPI displays.
func (v *Viewer) pick(x, y int) {
	w, h := v.window.Size()
	px := v.window.DrawableSize()
	sx := float32(px.Width) / float32(w)
	sy := float32(px.Height) / float32(h)
	if id, ok := v.session.HideAt(float32(x)*sx, float32(y)*sy); ok {
		v.log.Info("instance hidden", zap.Int("instance", id))
	}
}

// update moves the camera and the sun from held keys.
func (v *Viewer) update(dt float32) {
	r := v.session.Renderer()
	cam := r.Camera()

	if dx, dy := v.input.Drag(); dx != 0 || dy != 0 {
		v.fly.HandleDrag(cam, dx, dy)
	}
	v.fly.HandleMovement(cam,
		v.input.Axis(sdl.SCANCODE_S, sdl.SCANCODE_W),
		v.input.Axis(sdl.SCANCODE_A, sdl.SCANCODE_D),
		v.input.Axis(sdl.SCANCODE_Q, sdl.SCANCODE_E),
		dt,
		v.input.IsKeyHeld(sdl.SCANCODE_LSHIFT),
	)

	if sun := v.input.Axis(sdl.SCANCODE_DOWN, sdl.SCANCODE_UP); sun != 0 {
		r.SetSunAngle(r.SunAngle() + sun*sunSpeed*dt)
	}
	if e := v.input.Axis(sdl.SCANCODE_MINUS, sdl.SCANCODE_EQUALS); e != 0 {
		r.SetExposure(r.Exposure() * math32.Pow(exposureRate, e*dt))
	}
}

// Close releases the session, the device and the window.
func (v *Viewer) Close() {
	v.log.Info("closing viewer")

	if v.session != nil {
		v.session.Close()
		v.session = nil
	}
	if v.sc != nil {
		v.sc.Destroy()
		v.sc = nil
	}
	if v.dev != nil {
		v.dev.Destroy()
		v.dev = nil
	}
	if v.window != nil {
		v.window.Close()
		v.window = nil
	}
}
