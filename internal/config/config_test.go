package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mitchellh/go-homedir"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Test graphics defaults
	if cfg.Graphics.Width != 1280 {
		t.Errorf("expected width 1280, got %d", cfg.Graphics.Width)
	}
	if cfg.Graphics.Height != 720 {
		t.Errorf("expected height 720, got %d", cfg.Graphics.Height)
	}
	if cfg.Graphics.Fullscreen {
		t.Error("expected fullscreen to be false by default")
	}
	if !cfg.Graphics.VSync {
		t.Error("expected vsync to be true by default")
	}

	// Test render defaults
	r := cfg.Render
	if r.CascadeCount != 4 {
		t.Errorf("expected 4 cascades, got %d", r.CascadeCount)
	}
	if r.ShadowMapResolution != 2048 {
		t.Errorf("expected shadow map resolution 2048, got %d", r.ShadowMapResolution)
	}
	if r.CascadeSplitLambda != 0.95 {
		t.Errorf("expected split lambda 0.95, got %f", r.CascadeSplitLambda)
	}
	if r.SSAOKernelSize != 64 {
		t.Errorf("expected ssao kernel size 64, got %d", r.SSAOKernelSize)
	}
	if r.PostFXDownscale != 4 {
		t.Errorf("expected postfx downscale 4, got %d", r.PostFXDownscale)
	}
	if !r.QueueWaitIdle {
		t.Error("expected queue_wait_idle to be true by default")
	}
	if r.Wireframe {
		t.Error("expected wireframe to be false by default")
	}

	// Test logging defaults
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "" {
		t.Errorf("expected empty log file, got %s", cfg.Logging.LogFile)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
graphics:
  width: 1920
  height: 1080
  fullscreen: true
  vsync: false

render:
  cascade_count: 3
  shadow_map_resolution: 1024
  cascade_split_lambda: 0.5
  ssao: false
  wireframe: true
  queue_wait_idle: false

scene:
  path: "scenes/sponza.yaml"
  camera_index: 2

logging:
  level: "debug"
  log_file: "vigil.log"
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	// Load config
	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Verify values were loaded
	if cfg.Graphics.Width != 1920 {
		t.Errorf("expected width 1920, got %d", cfg.Graphics.Width)
	}
	if cfg.Graphics.Height != 1080 {
		t.Errorf("expected height 1080, got %d", cfg.Graphics.Height)
	}
	if !cfg.Graphics.Fullscreen {
		t.Error("expected fullscreen to be true")
	}
	if cfg.Graphics.VSync {
		t.Error("expected vsync to be false")
	}

	if cfg.Render.CascadeCount != 3 {
		t.Errorf("expected 3 cascades, got %d", cfg.Render.CascadeCount)
	}
	if cfg.Render.ShadowMapResolution != 1024 {
		t.Errorf("expected shadow map resolution 1024, got %d", cfg.Render.ShadowMapResolution)
	}
	if cfg.Render.SSAO {
		t.Error("expected ssao to be false")
	}
	if !cfg.Render.Wireframe {
		t.Error("expected wireframe to be true")
	}
	if cfg.Render.QueueWaitIdle {
		t.Error("expected queue_wait_idle to be false")
	}
	// Untouched keys keep their defaults
	if cfg.Render.PostFXDownscale != 4 {
		t.Errorf("expected postfx downscale 4, got %d", cfg.Render.PostFXDownscale)
	}

	if cfg.Scene.Path != "scenes/sponza.yaml" {
		t.Errorf("expected scene path scenes/sponza.yaml, got %s", cfg.Scene.Path)
	}
	if cfg.Scene.CameraIndex != 2 {
		t.Errorf("expected camera index 2, got %d", cfg.Scene.CameraIndex)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "vigil.log" {
		t.Errorf("expected log file 'vigil.log', got %s", cfg.Logging.LogFile)
	}
}

func TestLoadFromTOMLFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	tomlContent := `
[graphics]
width = 800
height = 600

[render]
cascade_count = 2
exposure = 1.5
landscape_shadows = true

[shaders]
dir = "assets/shaders"
hot_reload = true
`

	if err := os.WriteFile(configPath, []byte(tomlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Graphics.Width != 800 || cfg.Graphics.Height != 600 {
		t.Errorf("expected 800x600, got %dx%d", cfg.Graphics.Width, cfg.Graphics.Height)
	}
	if cfg.Render.CascadeCount != 2 {
		t.Errorf("expected 2 cascades, got %d", cfg.Render.CascadeCount)
	}
	if cfg.Render.Exposure != 1.5 {
		t.Errorf("expected exposure 1.5, got %f", cfg.Render.Exposure)
	}
	if !cfg.Render.LandscapeShadows {
		t.Error("expected landscape shadows to be true")
	}
	if cfg.Shaders.Dir != "assets/shaders" || !cfg.Shaders.HotReload {
		t.Errorf("unexpected shader config %+v", cfg.Shaders)
	}
	if cfg.Render.ShadowMapResolution != 2048 {
		t.Errorf("expected default shadow map resolution, got %d", cfg.Render.ShadowMapResolution)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	// Create temporary config file with invalid YAML
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `
graphics:
  width: not a number
  invalid syntax here
`

	if err := os.WriteFile(configPath, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	// Try to load - should error
	cfg := Default()
	err := loadFromFile(cfg, configPath)
	if err == nil {
		t.Error("expected error loading invalid YAML, got nil")
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := Default()
	err := loadFromFile(cfg, "/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error loading missing file, got nil")
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()

	// Just verify it returns a non-empty path
	// Actual path depends on OS
	if dir == "" {
		t.Error("ConfigDir returned empty string")
	}

	// Verify path is absolute
	if !filepath.IsAbs(dir) {
		t.Errorf("ConfigDir should return absolute path, got %s", dir)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := homedir.Dir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}

	if got := ExpandPath("~/scenes/a.yaml"); got != filepath.Join(home, "scenes", "a.yaml") {
		t.Errorf("unexpected expansion %s", got)
	}
	if got := ExpandPath("relative/a.yaml"); got != "relative/a.yaml" {
		t.Errorf("relative path should be unchanged, got %s", got)
	}
}

func TestFindConfigFile(t *testing.T) {
	// Save current directory
	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)

	// Create temp directory and change to it
	tmpDir := t.TempDir()
	os.Chdir(tmpDir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "xdg"))

	// No config file exists - should return empty
	path := findConfigFile()
	if path != "" {
		t.Errorf("expected empty path when no config exists, got %s", path)
	}

	// Create config.toml in current directory
	configPath := filepath.Join(tmpDir, "config.toml")
	if err := os.WriteFile(configPath, []byte("[graphics]\nwidth = 800\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	// Should find it now
	path = findConfigFile()
	if filepath.Base(path) != "config.toml" {
		t.Errorf("expected to find config.toml in current directory, got %q", path)
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name     string
		setup    func()
		verify   func(*Config)
		teardown func()
	}{
		{
			name: "debug flag",
			setup: func() {
				*flagDebug = true
			},
			verify: func(cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
				}
			},
			teardown: func() {
				*flagDebug = false
			},
		},
		{
			name: "scene and camera flags",
			setup: func() {
				*flagScene = "other.yaml"
				*flagCamera = 3
			},
			verify: func(cfg *Config) {
				if cfg.Scene.Path != "other.yaml" {
					t.Errorf("expected scene other.yaml, got %s", cfg.Scene.Path)
				}
				if cfg.Scene.CameraIndex != 3 {
					t.Errorf("expected camera 3, got %d", cfg.Scene.CameraIndex)
				}
			},
			teardown: func() {
				*flagScene = ""
				*flagCamera = -1
			},
		},
		{
			name: "fullscreen flag",
			setup: func() {
				*flagFullscreen = true
			},
			verify: func(cfg *Config) {
				if !cfg.Graphics.Fullscreen {
					t.Error("expected fullscreen to be true with fullscreen flag")
				}
			},
			teardown: func() {
				*flagFullscreen = false
			},
		},
		{
			name: "render toggles",
			setup: func() {
				*flagWireframe = true
				*flagNoSSAO = true
				*flagCascades = 2
			},
			verify: func(cfg *Config) {
				if !cfg.Render.Wireframe {
					t.Error("expected wireframe with wireframe flag")
				}
				if cfg.Render.SSAO {
					t.Error("expected ssao disabled with no-ssao flag")
				}
				if cfg.Render.CascadeCount != 2 {
					t.Errorf("expected 2 cascades, got %d", cfg.Render.CascadeCount)
				}
			},
			teardown: func() {
				*flagWireframe = false
				*flagNoSSAO = false
				*flagCascades = 0
			},
		},
		{
			name: "width and height flags",
			setup: func() {
				*flagWidth = 2560
				*flagHeight = 1440
			},
			verify: func(cfg *Config) {
				if cfg.Graphics.Width != 2560 {
					t.Errorf("expected width 2560, got %d", cfg.Graphics.Width)
				}
				if cfg.Graphics.Height != 1440 {
					t.Errorf("expected height 1440, got %d", cfg.Graphics.Height)
				}
			},
			teardown: func() {
				*flagWidth = 0
				*flagHeight = 0
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			defer tt.teardown()

			cfg := Default()
			applyFlags(cfg)

			tt.verify(cfg)
		})
	}
}

func TestLoadPriority(t *testing.T) {
	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
graphics:
  width: 1600
  height: 900
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	// Set flag to override config file
	*flagConfig = configPath
	*flagWidth = 1920
	defer func() {
		*flagConfig = ""
		*flagWidth = 0
	}()

	// Load config
	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Width should be from flag (1920), not file (1600)
	if cfg.Graphics.Width != 1920 {
		t.Errorf("expected width 1920 from flag, got %d", cfg.Graphics.Width)
	}

	// Height should be from file (900) since no flag override
	if cfg.Graphics.Height != 900 {
		t.Errorf("expected height 900 from file, got %d", cfg.Graphics.Height)
	}
}

func TestLoadRejectsInvalidRender(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("render:\n  cascade_split_lambda: 1.5\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	*flagConfig = configPath
	defer func() { *flagConfig = "" }()

	if _, err := Load(); err == nil {
		t.Error("expected validation error for lambda outside [0, 1]")
	}
}

func TestRenderValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RenderConfig)
	}{
		{"zero cascades", func(r *RenderConfig) { r.CascadeCount = 0 }},
		{"too many cascades", func(r *RenderConfig) { r.CascadeCount = MaxCascades + 1 }},
		{"oversized ssao kernel", func(r *RenderConfig) { r.SSAOKernelSize = MaxSSAOKernel + 1 }},
		{"zero resolution", func(r *RenderConfig) { r.ShadowMapResolution = 0 }},
		{"negative lambda", func(r *RenderConfig) { r.CascadeSplitLambda = -0.1 }},
		{"zero downscale", func(r *RenderConfig) { r.PostFXDownscale = 0 }},
		{"inverted clip range", func(r *RenderConfig) { r.FarClip = r.NearClip }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Default().Render
			tt.mutate(&r)
			if err := r.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestSaveToRoundTrip(t *testing.T) {
	for _, name := range []string{"out.yaml", "out.toml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)

			cfg := Default()
			cfg.Render.CascadeCount = 6
			cfg.Scene.Path = "saved.yaml"
			if err := cfg.SaveTo(path); err != nil {
				t.Fatalf("SaveTo failed: %v", err)
			}

			loaded := Default()
			if err := loadFromFile(loaded, path); err != nil {
				t.Fatalf("failed to reload: %v", err)
			}
			if loaded.Render.CascadeCount != 6 || loaded.Scene.Path != "saved.yaml" {
				t.Errorf("saved values not preserved: %+v %+v", loaded.Render, loaded.Scene)
			}
		})
	}
}
