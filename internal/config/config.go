// Package config handles renderer configuration loading and management.
package config

import "fmt"

// Config holds all renderer settings.
type Config struct {
	Graphics GraphicsConfig `yaml:"graphics" toml:"graphics"`
	Render   RenderConfig   `yaml:"render" toml:"render"`
	Scene    SceneConfig    `yaml:"scene" toml:"scene"`
	Shaders  ShaderConfig   `yaml:"shaders" toml:"shaders"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
}

// GraphicsConfig holds display settings.
type GraphicsConfig struct {
	Width          int  `yaml:"width" toml:"width"`
	Height         int  `yaml:"height" toml:"height"`
	Fullscreen     bool `yaml:"fullscreen" toml:"fullscreen"`
	VSync          bool `yaml:"vsync" toml:"vsync"`
	FramesInFlight int  `yaml:"frames_in_flight" toml:"frames_in_flight"`
}

// RenderConfig holds the frame graph parameters.
type RenderConfig struct {
	CascadeCount        int     `yaml:"cascade_count" toml:"cascade_count"`
	ShadowMapResolution int     `yaml:"shadow_map_resolution" toml:"shadow_map_resolution"`
	CascadeSplitLambda  float32 `yaml:"cascade_split_lambda" toml:"cascade_split_lambda"`
	CascadeRadiusStep   float32 `yaml:"cascade_radius_step" toml:"cascade_radius_step"`
	NearClip            float32 `yaml:"near_clip" toml:"near_clip"`
	FarClip             float32 `yaml:"far_clip" toml:"far_clip"`
	VSMBlurRadius       int     `yaml:"vsm_blur_radius" toml:"vsm_blur_radius"`

	SSAOKernelSize int     `yaml:"ssao_kernel_size" toml:"ssao_kernel_size"`
	SSAORadius     float32 `yaml:"ssao_radius" toml:"ssao_radius"`
	SSAONoiseDim   int     `yaml:"ssao_noise_dim" toml:"ssao_noise_dim"`

	PostFXDownscale  int  `yaml:"postfx_downscale" toml:"postfx_downscale"`
	SSAO             bool `yaml:"ssao" toml:"ssao"`
	LandscapeShadows bool `yaml:"landscape_shadows" toml:"landscape_shadows"`
	Wireframe        bool `yaml:"wireframe" toml:"wireframe"`

	Tonemapping int     `yaml:"tonemapping" toml:"tonemapping"` // 0 = none, 1 = Reinhard, 2 = ACES
	Exposure    float32 `yaml:"exposure" toml:"exposure"`
	SunAngle    float32 `yaml:"sun_angle" toml:"sun_angle"` // radians above the horizon

	// Wait for the queue to drain at the end of every frame.
	QueueWaitIdle bool `yaml:"queue_wait_idle" toml:"queue_wait_idle"`
}

// SceneConfig selects the scene description and starting camera.
type SceneConfig struct {
	Path        string `yaml:"path" toml:"path"`
	CameraIndex int    `yaml:"camera_index" toml:"camera_index"`
}

// ShaderConfig holds shader source settings.
type ShaderConfig struct {
	Dir       string `yaml:"dir" toml:"dir"`
	HotReload bool   `yaml:"hot_reload" toml:"hot_reload"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level" toml:"level"`
	LogFile string `yaml:"log_file" toml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Graphics: GraphicsConfig{
			Width:          1280,
			Height:         720,
			Fullscreen:     false,
			VSync:          true,
			FramesInFlight: 2,
		},
		Render: RenderConfig{
			CascadeCount:        4,
			ShadowMapResolution: 2048,
			CascadeSplitLambda:  0.95,
			CascadeRadiusStep:   16,
			NearClip:            0.1,
			FarClip:             1000,
			VSMBlurRadius:       3,
			SSAOKernelSize:      64,
			SSAORadius:          0.5,
			SSAONoiseDim:        8,
			PostFXDownscale:     4,
			SSAO:                true,
			LandscapeShadows:    false,
			Wireframe:           false,
			Tonemapping:         2,
			Exposure:            1.0,
			SunAngle:            0.5,
			QueueWaitIdle:       true,
		},
		Scene: SceneConfig{
			Path:        "scene.yaml",
			CameraIndex: 0,
		},
		Shaders: ShaderConfig{
			Dir:       "shaders",
			HotReload: false,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Upper bounds fixed by the shader interface.
const (
	MaxCascades   = 8
	MaxSSAOKernel = 64
)

// Validate rejects render settings the frame graph cannot be built with.
func (r RenderConfig) Validate() error {
	switch {
	case r.CascadeCount <= 0 || r.CascadeCount > MaxCascades:
		return fmt.Errorf("cascade_count must be in [1, %d], got %d", MaxCascades, r.CascadeCount)
	case r.ShadowMapResolution <= 0:
		return fmt.Errorf("shadow_map_resolution must be positive, got %d", r.ShadowMapResolution)
	case r.CascadeSplitLambda < 0 || r.CascadeSplitLambda > 1:
		return fmt.Errorf("cascade_split_lambda must be in [0, 1], got %g", r.CascadeSplitLambda)
	case r.CascadeRadiusStep <= 0:
		return fmt.Errorf("cascade_radius_step must be positive, got %g", r.CascadeRadiusStep)
	case r.NearClip <= 0 || r.FarClip <= r.NearClip:
		return fmt.Errorf("clip range must satisfy 0 < near < far, got [%g, %g]", r.NearClip, r.FarClip)
	case r.PostFXDownscale <= 0:
		return fmt.Errorf("postfx_downscale must be positive, got %d", r.PostFXDownscale)
	case r.SSAOKernelSize <= 0 || r.SSAONoiseDim <= 0:
		return fmt.Errorf("ssao kernel size and noise dimension must be positive")
	case r.SSAOKernelSize > MaxSSAOKernel:
		return fmt.Errorf("ssao_kernel_size must be at most %d, got %d", MaxSSAOKernel, r.SSAOKernelSize)
	case r.VSMBlurRadius < 0:
		return fmt.Errorf("vsm_blur_radius must not be negative, got %d", r.VSMBlurRadius)
	}
	return nil
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	if c.Graphics.Width <= 0 || c.Graphics.Height <= 0 {
		return fmt.Errorf("window size must be positive, got %dx%d", c.Graphics.Width, c.Graphics.Height)
	}
	if c.Graphics.FramesInFlight <= 0 {
		return fmt.Errorf("frames_in_flight must be positive, got %d", c.Graphics.FramesInFlight)
	}
	if err := c.Render.Validate(); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	return nil
}
