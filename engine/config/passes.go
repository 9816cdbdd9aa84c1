package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/talos/engine/core"
	"github.com/spaghettifunk/talos/engine/renderer/metadata"
)

// ColorTargetConfig is one color attachment of a pass.
type ColorTargetConfig struct {
	Target  string `toml:"target"`
	Initial string `toml:"initial"`
	Final   string `toml:"final"`
}

// ColorTarget is a resolved ColorTargetConfig.
type ColorTarget struct {
	Target  metadata.Target
	Initial metadata.ImageLayout
	Final   metadata.ImageLayout
}

// PassConfig is the declarative description of one render pass. Descriptor
// set layouts are fixed per pass and not configurable.
type PassConfig struct {
	VertexShader   string              `toml:"vertex_shader"`
	FragmentShader string              `toml:"fragment_shader"`
	VertexInput    bool                `toml:"vertex_input"`
	Colors         []ColorTargetConfig `toml:"color"`
	Depth          string              `toml:"depth"`
	DepthTest      bool                `toml:"depth_test"`
	OverwriteColor bool                `toml:"overwrite_color"`
}

func (p *PassConfig) ColorTargets() ([]ColorTarget, error) {
	out := make([]ColorTarget, 0, len(p.Colors))
	for _, c := range p.Colors {
		target, err := metadata.ParseTarget(c.Target)
		if err != nil {
			return nil, err
		}
		if target == metadata.TargetDepth || target == metadata.TargetPrepassDepth {
			return nil, fmt.Errorf("%s is not a color target", c.Target)
		}
		initial, err := metadata.ParseImageLayout(c.Initial)
		if err != nil {
			return nil, err
		}
		final, err := metadata.ParseImageLayout(c.Final)
		if err != nil {
			return nil, err
		}
		out = append(out, ColorTarget{Target: target, Initial: initial, Final: final})
	}
	return out, nil
}

// DepthTarget returns the depth attachment of the pass, if any.
func (p *PassConfig) DepthTarget() (metadata.Target, bool, error) {
	if p.Depth == "" {
		return 0, false, nil
	}
	target, err := metadata.ParseTarget(p.Depth)
	if err != nil {
		return 0, false, err
	}
	if target != metadata.TargetDepth && target != metadata.TargetPrepassDepth {
		return 0, false, fmt.Errorf("%s is not a depth target", p.Depth)
	}
	return target, true, nil
}

func (p *PassConfig) validate() error {
	if p.VertexShader == "" || p.FragmentShader == "" {
		return errors.New("vertex_shader and fragment_shader are required")
	}
	if len(p.Colors) == 0 {
		return errors.New("at least one color target is required")
	}
	if _, err := p.ColorTargets(); err != nil {
		return err
	}
	_, hasDepth, err := p.DepthTarget()
	if err != nil {
		return err
	}
	if p.DepthTest && !hasDepth {
		return errors.New("depth_test needs a depth target")
	}
	return nil
}

// PassesConfig is the content of passes.toml.
type PassesConfig struct {
	Sky      PassConfig `toml:"sky"`
	Forward  PassConfig `toml:"forward"`
	Prepass  PassConfig `toml:"prepass"`
	Deferred PassConfig `toml:"deferred"`
}

func (p *PassesConfig) Get(t metadata.RenderPassType) *PassConfig {
	switch t {
	case metadata.RenderPassSky:
		return &p.Sky
	case metadata.RenderPassForward:
		return &p.Forward
	case metadata.RenderPassPrepass:
		return &p.Prepass
	case metadata.RenderPassDeferred:
		return &p.Deferred
	default:
		return nil
	}
}

func (p *PassesConfig) Validate() error {
	for _, t := range metadata.RenderPassTypes() {
		if err := p.Get(t).validate(); err != nil {
			return fmt.Errorf("pass %s: %w", t, err)
		}
	}
	return nil
}

func DefaultPasses() *PassesConfig {
	present := ColorTargetConfig{Target: "swapchain", Initial: "present_src", Final: "present_src"}
	gbuffer := func(target string) ColorTargetConfig {
		return ColorTargetConfig{Target: target, Initial: "undefined", Final: "color_attachment"}
	}
	return &PassesConfig{
		Sky: PassConfig{
			VertexShader:   "assets/shaders/sky.vert.spv",
			FragmentShader: "assets/shaders/sky.frag.spv",
			Colors:         []ColorTargetConfig{{Target: "swapchain", Initial: "undefined", Final: "present_src"}},
			OverwriteColor: true,
		},
		Forward: PassConfig{
			VertexShader:   "assets/shaders/forward.vert.spv",
			FragmentShader: "assets/shaders/forward.frag.spv",
			VertexInput:    true,
			Colors:         []ColorTargetConfig{present},
			Depth:          "depth",
			DepthTest:      true,
		},
		Prepass: PassConfig{
			VertexShader:   "assets/shaders/prepass.vert.spv",
			FragmentShader: "assets/shaders/prepass.frag.spv",
			VertexInput:    true,
			Colors:         []ColorTargetConfig{gbuffer("albedo"), gbuffer("normal")},
			Depth:          "prepass_depth",
			DepthTest:      true,
			OverwriteColor: true,
		},
		Deferred: PassConfig{
			VertexShader:   "assets/shaders/deferred.vert.spv",
			FragmentShader: "assets/shaders/deferred.frag.spv",
			Colors:         []ColorTargetConfig{present},
		},
	}
}

// LoadPasses reads passes.toml. A pass table missing from the file, or a
// missing file, takes the value of DefaultPasses.
func LoadPasses(path string) (*PassesConfig, error) {
	defaults := DefaultPasses()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		core.LogWarn("pass description %s not found, using defaults", path)
		return defaults, nil
	}
	if err != nil {
		return nil, err
	}
	cfg := &PassesConfig{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	for _, t := range metadata.RenderPassTypes() {
		if p := cfg.Get(t); p.VertexShader == "" && p.FragmentShader == "" && len(p.Colors) == 0 {
			*p = *defaults.Get(t)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}
