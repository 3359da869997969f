package config

import "flag"

var (
	flagConfig     = flag.String("config", "", "Path to config file (.yaml or .toml)")
	flagDebug      = flag.Bool("debug", false, "Enable debug logging")
	flagScene      = flag.String("scene", "", "Path to scene description")
	flagCamera     = flag.Int("camera", -1, "Scene camera index")
	flagWindowed   = flag.Bool("windowed", false, "Run in windowed mode")
	flagFullscreen = flag.Bool("fullscreen", false, "Run in fullscreen mode")
	flagWidth      = flag.Int("width", 0, "Window width")
	flagHeight     = flag.Int("height", 0, "Window height")
	flagWireframe  = flag.Bool("wireframe", false, "Start in wireframe mode")
	flagNoSSAO     = flag.Bool("no-ssao", false, "Disable screen-space ambient occlusion")
	flagCascades   = flag.Int("cascades", 0, "Number of shadow cascades")
	flagShaders    = flag.String("shaders", "", "Shader source directory")
	flagHotReload  = flag.Bool("hot-reload", false, "Reload shaders when their files change")
	flagHeadless   = flag.Int("headless", 0, "Render N frames on the software device and exit")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// HeadlessFrames returns the number of frames requested with --headless,
// zero for a windowed run.
func HeadlessFrames() int {
	return *flagHeadless
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagScene != "" {
		cfg.Scene.Path = *flagScene
	}
	if *flagCamera >= 0 {
		cfg.Scene.CameraIndex = *flagCamera
	}
	if *flagWindowed {
		cfg.Graphics.Fullscreen = false
	}
	if *flagFullscreen {
		cfg.Graphics.Fullscreen = true
	}
	if *flagWidth > 0 {
		cfg.Graphics.Width = *flagWidth
	}
	if *flagHeight > 0 {
		cfg.Graphics.Height = *flagHeight
	}
	if *flagWireframe {
		cfg.Render.Wireframe = true
	}
	if *flagNoSSAO {
		cfg.Render.SSAO = false
	}
	if *flagCascades > 0 {
		cfg.Render.CascadeCount = *flagCascades
	}
	if *flagShaders != "" {
		cfg.Shaders.Dir = *flagShaders
	}
	if *flagHotReload {
		cfg.Shaders.HotReload = true
	}
}
