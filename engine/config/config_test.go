package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/talos/engine/core"
	"github.com/spaghettifunk/talos/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadEngineConfig(t *testing.T) {
	path := write(t, "engine.toml", `
[window]
name = "demo"
width = 800
height = 600

[log]
level = "debug"

[renderer]
workers = 3
far_plane = 50.0

[scene]
path = "assets/scenes/demo.txt"
watch = true
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", cfg.Window.Name)
	assert.Equal(t, uint32(800), cfg.Window.Width)
	assert.Equal(t, uint32(100), cfg.Window.X, "unset keys keep defaults")
	assert.Equal(t, core.DebugLevel, cfg.LogLevel())
	assert.Equal(t, 3, cfg.Renderer.Workers)
	assert.Equal(t, float32(50), cfg.Renderer.FarPlane)
	assert.Equal(t, [4]float32{1.0, 0.5, 0.25, 1.0}, cfg.Renderer.ClearColor)
	assert.Equal(t, DefaultPassesPath, cfg.Renderer.Passes)
	assert.True(t, cfg.Scene.Watch)
}

func TestLoadEngineConfigMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "none.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestEngineConfigValidate(t *testing.T) {
	_, err := Load(write(t, "engine.toml", "[renderer]\nworkers = -1\n"))
	assert.ErrorContains(t, err, "workers")

	_, err = Load(write(t, "engine.toml", "[window]\nwidth = 0\n"))
	assert.ErrorContains(t, err, "window size")

	_, err = Load(write(t, "engine.toml", "[renderer]\nfar_plane = 0.05\n"))
	assert.ErrorContains(t, err, "far_plane")

	_, err = Load(write(t, "engine.toml", "[window\n"))
	assert.Error(t, err)
}

func TestDefaultPassesAreValid(t *testing.T) {
	p := DefaultPasses()
	require.NoError(t, p.Validate())

	colors, err := p.Prepass.ColorTargets()
	require.NoError(t, err)
	require.Len(t, colors, 2)
	assert.Equal(t, metadata.TargetNormal, colors[1].Target)
	assert.Equal(t, metadata.ImageLayoutColorAttachmentOptimal, colors[1].Final)

	depth, ok, err := p.Prepass.DepthTarget()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, metadata.TargetPrepassDepth, depth)

	_, ok, err = p.Deferred.DepthTarget()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoadPassesOverridesOneTable(t *testing.T) {
	path := write(t, "passes.toml", `
[forward]
vertex_shader = "custom.vert.spv"
fragment_shader = "custom.frag.spv"
vertex_input = true
depth = "depth"
depth_test = true

[[forward.color]]
target = "swapchain"
initial = "undefined"
final = "present_src"
`)
	p, err := LoadPasses(path)
	require.NoError(t, err)
	assert.Equal(t, "custom.vert.spv", p.Forward.VertexShader)
	require.Len(t, p.Forward.Colors, 1)
	assert.Equal(t, "undefined", p.Forward.Colors[0].Initial)
	assert.Equal(t, DefaultPasses().Sky, p.Sky)
}

func TestLoadPassesRejectsBadTables(t *testing.T) {
	for name, src := range map[string]string{
		"unknown target": "[sky]\nvertex_shader = \"a\"\nfragment_shader = \"b\"\n[[sky.color]]\ntarget = \"gbuffer\"\ninitial = \"undefined\"\nfinal = \"present_src\"\n",
		"depth as color": "[sky]\nvertex_shader = \"a\"\nfragment_shader = \"b\"\n[[sky.color]]\ntarget = \"depth\"\ninitial = \"undefined\"\nfinal = \"present_src\"\n",
		"bad layout":     "[sky]\nvertex_shader = \"a\"\nfragment_shader = \"b\"\n[[sky.color]]\ntarget = \"swapchain\"\ninitial = \"general\"\nfinal = \"present_src\"\n",
		"test no depth":  "[sky]\nvertex_shader = \"a\"\nfragment_shader = \"b\"\ndepth_test = true\n[[sky.color]]\ntarget = \"swapchain\"\ninitial = \"undefined\"\nfinal = \"present_src\"\n",
		"no shaders":     "[sky]\n[[sky.color]]\ntarget = \"swapchain\"\ninitial = \"undefined\"\nfinal = \"present_src\"\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := LoadPasses(write(t, "passes.toml", src))
			assert.ErrorContains(t, err, "pass sky")
		})
	}
}

func TestPassesGet(t *testing.T) {
	p := DefaultPasses()
	assert.Same(t, &p.Deferred, p.Get(metadata.RenderPassDeferred))
	assert.Nil(t, p.Get(metadata.RenderPassTypeCount))
}
