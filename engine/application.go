package engine

import (
	"github.com/spaghettifunk/talos/engine/config"
	"github.com/spaghettifunk/talos/engine/core"
)

type ApplicationConfig struct {
	// Window starting position x axis, if applicable.
	StartPosX uint32
	// Window starting position y axis, if applicable.
	StartPosY uint32
	// Window starting width, if applicable.
	StartWidth uint32
	// Window starting height, if applicable.
	StartHeight uint32
	// The application name used in windowing, if applicable.
	Name     string
	LogLevel core.LogLevel
	Renderer config.RendererConfig
	Scene    config.SceneConfig
	Passes   *config.PassesConfig
}

// LoadApplicationConfig reads engine.toml and the pass description it points
// to. Paths in both files are relative to the working directory.
func LoadApplicationConfig(path string) (*ApplicationConfig, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	passes := config.DefaultPasses()
	if cfg.Renderer.Passes != "" {
		if passes, err = config.LoadPasses(cfg.Renderer.Passes); err != nil {
			return nil, err
		}
	}
	return NewApplicationConfig(cfg, passes), nil
}

func NewApplicationConfig(cfg *config.Config, passes *config.PassesConfig) *ApplicationConfig {
	return &ApplicationConfig{
		StartPosX:   cfg.Window.X,
		StartPosY:   cfg.Window.Y,
		StartWidth:  cfg.Window.Width,
		StartHeight: cfg.Window.Height,
		Name:        cfg.Window.Name,
		LogLevel:    cfg.LogLevel(),
		Renderer:    cfg.Renderer,
		Scene:       cfg.Scene,
		Passes:      passes,
	}
}

func (a *ApplicationConfig) window() config.WindowConfig {
	return config.WindowConfig{
		Name:   a.Name,
		X:      a.StartPosX,
		Y:      a.StartPosY,
		Width:  a.StartWidth,
		Height: a.StartHeight,
	}
}
