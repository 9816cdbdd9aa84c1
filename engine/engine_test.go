package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/talos/engine/config"
	"github.com/spaghettifunk/talos/engine/core"
	"github.com/spaghettifunk/talos/engine/platform"
	"github.com/spaghettifunk/talos/engine/renderer/metadata"
)

func newTestGame(t *testing.T) *Game {
	t.Helper()
	return &Game{ApplicationConfig: NewApplicationConfig(config.Default(), config.DefaultPasses())}
}

func TestBootUsesBuiltinScene(t *testing.T) {
	booted := false
	g := newTestGame(t)
	g.FnBoot = func() error {
		booted = true
		return nil
	}

	e, err := New(g)
	require.NoError(t, err)
	require.NotNil(t, g.Camera)
	assert.Equal(t, float32(10), g.Camera.Far)

	require.NoError(t, e.Boot())
	assert.True(t, booted)
	assert.Equal(t, EngineStageBootComplete, e.Stage())
	require.NotNil(t, e.scene)
	assert.True(t, e.scene.Requires(metadata.RenderPassPrepass))

	assert.ErrorIs(t, e.Boot(), ErrWrongStage)
	assert.ErrorIs(t, e.Run(), ErrWrongStage)
}

func TestBootFailsOnMissingScene(t *testing.T) {
	g := newTestGame(t)
	g.ApplicationConfig.Scene.Path = filepath.Join(t.TempDir(), "missing.scene")

	e, err := New(g)
	require.NoError(t, err)
	err = e.Boot()
	require.Error(t, err)
	assert.Equal(t, core.KindAsset, core.KindOf(err))
}

func TestReloadKeepsSceneOnParseFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.scene")
	require.NoError(t, os.WriteFile(path, []byte("light 0 10 0 1 1 1\n"), 0o644))

	g := newTestGame(t)
	g.ApplicationConfig.Scene.Path = path
	e, err := New(g)
	require.NoError(t, err)
	require.NoError(t, e.Boot())
	current := e.scene
	require.Len(t, current.Lights, 1)

	require.NoError(t, os.Remove(path))
	require.NoError(t, e.reloadScene())
	assert.Same(t, current, e.scene)
}

func TestResizeSuspendsAndResumes(t *testing.T) {
	require.True(t, core.EventInitialize())
	defer core.EventShutdown()

	var resized [][2]uint32
	g := newTestGame(t)
	g.FnOnResize = func(width, height uint32) error {
		resized = append(resized, [2]uint32{width, height})
		return nil
	}
	e, err := New(g)
	require.NoError(t, err)
	require.True(t, core.EventRegister(core.EVENT_CODE_RESIZED, e, e.onResized))

	fire := func(width, height uint32) {
		ctx := core.EventContext{}
		ctx.Data.U32[0] = width
		ctx.Data.U32[1] = height
		core.EventFire(core.EVENT_CODE_RESIZED, nil, ctx)
	}

	fire(0, 0)
	assert.True(t, e.isSuspended)
	assert.Empty(t, resized)

	fire(800, 600)
	assert.False(t, e.isSuspended)
	assert.Equal(t, [][2]uint32{{800, 600}}, resized)

	// Same size again is not a resize.
	fire(800, 600)
	assert.Len(t, resized, 1)
	w, h := e.GetFramebufferSize()
	assert.Equal(t, uint32(800), w)
	assert.Equal(t, uint32(600), h)
}

func TestEscapeQuits(t *testing.T) {
	require.True(t, core.EventInitialize())
	defer core.EventShutdown()

	e, err := New(newTestGame(t))
	require.NoError(t, err)
	require.True(t, core.EventRegister(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent))
	require.True(t, core.EventRegister(core.EVENT_CODE_KEY_PRESSED, e, e.onKey))
	require.True(t, core.EventRegister(core.EVENT_CODE_SCENE_CHANGED, e, e.onSceneChanged))
	e.isRunning.Store(true)

	ctx := core.EventContext{}
	ctx.Data.U16[0] = 'A'
	assert.False(t, core.EventFire(core.EVENT_CODE_KEY_PRESSED, nil, ctx))
	assert.True(t, e.isRunning.Load())

	ctx.Data.U16[0] = platform.KeyEscape
	assert.True(t, core.EventFire(core.EVENT_CODE_KEY_PRESSED, nil, ctx))
	assert.False(t, e.isRunning.Load())

	core.EventFire(core.EVENT_CODE_SCENE_CHANGED, nil, core.EventContext{})
	assert.True(t, e.sceneChanged.Load())
}

func TestLoadApplicationConfig(t *testing.T) {
	dir := t.TempDir()
	enginePath := filepath.Join(dir, "engine.toml")
	content := `
[window]
name = "test"
width = 640
height = 480

[log]
level = "warn"

[renderer]
workers = 2
far_plane = 50.0
passes = ""

[scene]
path = "assets/scenes/main.scene"
watch = true
`
	require.NoError(t, os.WriteFile(enginePath, []byte(content), 0o644))

	app, err := LoadApplicationConfig(enginePath)
	require.NoError(t, err)
	assert.Equal(t, "test", app.Name)
	assert.Equal(t, uint32(640), app.StartWidth)
	assert.Equal(t, uint32(480), app.StartHeight)
	assert.Equal(t, core.WarnLevel, app.LogLevel)
	assert.Equal(t, 2, app.Renderer.Workers)
	assert.True(t, app.Scene.Watch)
	require.NotNil(t, app.Passes)
	assert.Equal(t, config.DefaultPasses(), app.Passes)
	assert.Equal(t, "test", app.window().Name)
}
