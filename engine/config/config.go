package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/talos/engine/core"
)

const (
	DefaultEnginePath = "assets/engine.toml"
	DefaultPassesPath = "assets/passes.toml"
)

type WindowConfig struct {
	// The application name used in windowing.
	Name string `toml:"name"`
	// Window starting position x axis.
	X uint32 `toml:"x"`
	// Window starting position y axis.
	Y uint32 `toml:"y"`
	// Window starting width.
	Width uint32 `toml:"width"`
	// Window starting height.
	Height uint32 `toml:"height"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type RendererConfig struct {
	// Workers is the size of the asset loading pool. 0 picks NumCPU-1.
	Workers    int        `toml:"workers"`
	FarPlane   float32    `toml:"far_plane"`
	ClearColor [4]float32 `toml:"clear_color"`
	// Passes is the path of the render pass description file.
	Passes string `toml:"passes"`
	// Validation enables the Vulkan validation layers.
	Validation bool `toml:"validation"`
}

type SceneConfig struct {
	// Path of the scene file. Empty uses the built-in scene.
	Path string `toml:"path"`
	// Watch reloads the scene when its file changes.
	Watch bool `toml:"watch"`
}

// Config is the content of engine.toml.
type Config struct {
	Window   WindowConfig   `toml:"window"`
	Log      LogConfig      `toml:"log"`
	Renderer RendererConfig `toml:"renderer"`
	Scene    SceneConfig    `toml:"scene"`
}

func Default() *Config {
	return &Config{
		Window: WindowConfig{
			Name:   "Talos",
			X:      100,
			Y:      100,
			Width:  1280,
			Height: 720,
		},
		Log: LogConfig{Level: "info"},
		Renderer: RendererConfig{
			FarPlane:   10,
			ClearColor: [4]float32{1.0, 0.5, 0.25, 1.0},
			Passes:     DefaultPassesPath,
		},
	}
}

// Load reads an engine.toml on top of Default. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		core.LogWarn("config %s not found, using defaults", path)
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Window.Width == 0 || c.Window.Height == 0 {
		return fmt.Errorf("window size %dx%d must not be empty", c.Window.Width, c.Window.Height)
	}
	if c.Renderer.Workers < 0 {
		return fmt.Errorf("renderer.workers must not be negative, got %d", c.Renderer.Workers)
	}
	if c.Renderer.FarPlane <= 0.1 {
		return fmt.Errorf("renderer.far_plane must be beyond the near plane, got %g", c.Renderer.FarPlane)
	}
	return nil
}

func (c *Config) LogLevel() core.LogLevel {
	return core.ParseLogLevel(c.Log.Level)
}
