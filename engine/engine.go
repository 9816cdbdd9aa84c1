package engine

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/spaghettifunk/talos/engine/assets"
	"github.com/spaghettifunk/talos/engine/core"
	"github.com/spaghettifunk/talos/engine/platform"
	"github.com/spaghettifunk/talos/engine/renderer"
	"github.com/spaghettifunk/talos/engine/renderer/vulkan"
	"github.com/spaghettifunk/talos/engine/scene"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently booting up
	EngineStageBooting
	// Engine completed boot process and is ready to be initialized
	EngineStageBootComplete
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

func (s Stage) String() string {
	switch s {
	case EngineStageUninitialized:
		return "uninitialized"
	case EngineStageBooting:
		return "booting"
	case EngineStageBootComplete:
		return "boot complete"
	case EngineStageInitializing:
		return "initializing"
	case EngineStageInitialized:
		return "initialized"
	case EngineStageRunning:
		return "running"
	case EngineStageShuttingDown:
		return "shutting down"
	}
	return fmt.Sprintf("stage(%d)", uint8(s))
}

// Scene file writes are coalesced over this window before a reload.
const sceneReloadDebounce = 200 * time.Millisecond

var ErrWrongStage = errors.New("engine is not in the expected stage")

type Engine struct {
	currentStage Stage
	gameInstance *Game
	isRunning    atomic.Bool
	isSuspended  bool
	platform     *platform.Platform
	backend      *vulkan.Backend
	renderer     *renderer.Renderer
	width        uint32
	height       uint32
	clock        *core.Clock
	metrics      *core.Metrics
	lastTime     float64
	lastReport   float64

	scene        *scene.Scene
	camera       *scene.Camera
	watcher      *assets.Watcher
	sceneChanged atomic.Bool
}

func New(g *Game) (*Engine, error) {
	if g == nil || g.ApplicationConfig == nil {
		return nil, fmt.Errorf("a game with an application config is required")
	}
	core.SetLogLevel(g.ApplicationConfig.LogLevel)

	camera := scene.NewCamera()
	camera.Far = g.ApplicationConfig.Renderer.FarPlane
	g.Camera = camera

	return &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		clock:        core.NewClock(),
		metrics:      core.NewMetrics(),
		platform:     platform.New(),
		camera:       camera,
		width:        g.ApplicationConfig.StartWidth,
		height:       g.ApplicationConfig.StartHeight,
		lastTime:     0,
	}, nil
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}

// Boot loads the scene description and runs the game's boot hook. Nothing
// touches the window or the GPU yet.
func (e *Engine) Boot() error {
	if e.currentStage != EngineStageUninitialized {
		return fmt.Errorf("boot in stage %s: %w", e.currentStage, ErrWrongStage)
	}
	e.currentStage = EngineStageBooting

	s, err := e.loadScene()
	if err != nil {
		return err
	}
	e.scene = s

	if e.gameInstance.FnBoot != nil {
		if err := e.gameInstance.FnBoot(); err != nil {
			core.LogError("game boot failed: %s", err)
			return err
		}
	}
	e.currentStage = EngineStageBootComplete
	return nil
}

func (e *Engine) loadScene() (*scene.Scene, error) {
	path := e.gameInstance.ApplicationConfig.Scene.Path
	if path == "" {
		core.LogInfo("no scene configured, using the built-in scene")
		return scene.Default(), nil
	}
	s, err := scene.Load(path)
	if err != nil {
		core.LogError(err.Error())
		return nil, core.NewError(core.KindAsset, "load scene", err)
	}
	return s, nil
}

func (e *Engine) Initialize() error {
	if e.currentStage != EngineStageBootComplete {
		return fmt.Errorf("initialize in stage %s: %w", e.currentStage, ErrWrongStage)
	}
	e.currentStage = EngineStageInitializing
	config := e.gameInstance.ApplicationConfig

	// initialize events
	if !core.EventInitialize() {
		return fmt.Errorf("failed to initialize the event system")
	}

	// register some events
	core.EventRegister(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	core.EventRegister(core.EVENT_CODE_KEY_PRESSED, e, e.onKey)
	core.EventRegister(core.EVENT_CODE_RESIZED, e, e.onResized)
	core.EventRegister(core.EVENT_CODE_SCENE_CHANGED, e, e.onSceneChanged)

	if err := e.platform.Startup(config.window()); err != nil {
		return err
	}
	e.width, e.height = e.platform.FramebufferSize()
	e.isSuspended = e.width == 0 || e.height == 0

	backend, err := vulkan.New(e.platform.Window, vulkan.Options{
		AppName:    config.Name,
		Validation: config.Renderer.Validation,
	})
	if err != nil {
		return core.NewError(core.KindSetup, "create vulkan backend", err)
	}
	e.backend = backend

	r, err := renderer.New(backend, renderer.Options{
		ClearColor: config.Renderer.ClearColor,
		Workers:    config.Renderer.Workers,
		Passes:     config.Passes,
	}, e.width, e.height)
	if err != nil {
		return err
	}
	e.renderer = r

	if config.Scene.Watch && config.Scene.Path != "" {
		if err := e.watchScene(config.Scene.Path); err != nil {
			// Hot reload is a convenience; the engine runs without it.
			core.LogWarn("scene hot reload disabled: %s", err)
		}
	}

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(); err != nil {
			return err
		}
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
			return err
		}
	}

	e.currentStage = EngineStageInitialized
	return nil
}

func (e *Engine) watchScene(path string) error {
	watcher, err := assets.NewWatcher(sceneReloadDebounce, func(name string) {
		core.EventFire(core.EVENT_CODE_SCENE_CHANGED, nil, core.EventContext{})
	})
	if err != nil {
		return err
	}
	if err := watcher.Add(path); err != nil {
		_ = watcher.Close()
		return err
	}
	e.watcher = watcher
	core.LogInfo("watching %s for changes", path)
	return nil
}

// Stop asks the run loop to exit after the current frame. Safe to call from
// any goroutine.
func (e *Engine) Stop() {
	if e.isRunning.Swap(false) && e.platform.Window != nil {
		e.platform.Wake()
	}
}

func (e *Engine) Run() error {
	if e.currentStage != EngineStageInitialized {
		return fmt.Errorf("run in stage %s: %w", e.currentStage, ErrWrongStage)
	}
	e.currentStage = EngineStageRunning
	e.isRunning.Store(true)

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	for e.isRunning.Load() {
		if e.isSuspended {
			// Nothing to draw into; sleep until the window changes.
			if !e.platform.WaitMessages() {
				e.isRunning.Store(false)
			}
			e.clock.Update()
			e.lastTime = e.clock.Elapsed()
			continue
		}
		if !e.platform.PumpMessages() {
			e.isRunning.Store(false)
			break
		}

		if e.sceneChanged.Swap(false) {
			if err := e.reloadScene(); err != nil {
				return err
			}
		}

		// Update clock and get delta time.
		e.clock.Update()
		var currentTime float64 = e.clock.Elapsed()
		var delta float64 = (currentTime - e.lastTime)
		var frameStartTime float64 = platform.GetAbsoluteTime()

		if e.gameInstance.FnUpdate != nil {
			if err := e.gameInstance.FnUpdate(delta); err != nil {
				core.LogError("Game update failed, shutting down.")
				e.isRunning.Store(false)
				return err
			}
		}

		result := e.renderer.Render(e.scene, e.camera)
		switch {
		case result.Fatal():
			core.LogError("render failed: %s", result.Err)
			e.isRunning.Store(false)
			return result.Err
		case !result.OK():
			core.LogDebug("frame skipped (%s): %s", result.Kind, result.Err)
		}

		var frameEndTime float64 = platform.GetAbsoluteTime()
		e.metrics.Update(frameEndTime - frameStartTime)
		if currentTime-e.lastReport >= 1 {
			fps, frameTime := e.metrics.Frame()
			core.LogDebug("fps: %.0f, frame time: %.3fms", fps, frameTime)
			e.lastReport = currentTime
		}

		// Update last time
		e.lastTime = currentTime
	}

	return nil
}

// reloadScene swaps in the scene file's new content. A file that fails to
// parse keeps the current scene on screen.
func (e *Engine) reloadScene() error {
	s, err := e.loadScene()
	if err != nil {
		core.LogWarn("scene reload skipped: %s", err)
		return nil
	}
	if err := e.renderer.ReleaseScene(); err != nil {
		return err
	}
	e.scene = s
	core.LogInfo("scene %s reloaded", s.Path)
	return nil
}

func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	e.isRunning.Store(false)

	var errs []error
	if e.watcher != nil {
		if err := e.watcher.Close(); err != nil && !errors.Is(err, assets.ErrWatcherClosed) {
			errs = append(errs, err)
		}
		e.watcher = nil
	}
	if e.renderer != nil {
		e.renderer.Shutdown()
		e.renderer = nil
	}
	if e.backend != nil {
		e.backend.Destroy()
		e.backend = nil
	}
	if e.gameInstance.FnShutdown != nil {
		if err := e.gameInstance.FnShutdown(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := e.platform.Shutdown(); err != nil {
		errs = append(errs, err)
	}
	if err := core.EventShutdown(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// GetFramebufferSize returns the width and height (in this order)
// of the application Framebuffer
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) onEvent(code core.SystemEventCode, sender interface{}, listener interface{}, context core.EventContext) bool {
	if code == core.EVENT_CODE_APPLICATION_QUIT {
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning.Store(false)
		return true
	}
	return false
}

func (e *Engine) onKey(code core.SystemEventCode, sender interface{}, listener interface{}, context core.EventContext) bool {
	if code == core.EVENT_CODE_KEY_PRESSED && context.Data.U16[0] == platform.KeyEscape {
		// NOTE: Technically firing an event to itself, but there may be other listeners.
		core.EventFire(core.EVENT_CODE_APPLICATION_QUIT, e, core.EventContext{})
		// Block anything else from processing this.
		return true
	}
	return false
}

func (e *Engine) onResized(code core.SystemEventCode, sender interface{}, listener interface{}, context core.EventContext) bool {
	if code != core.EVENT_CODE_RESIZED {
		return false
	}
	width := context.Data.U32[0]
	height := context.Data.U32[1]

	// Check if different. If so, trigger a resize event.
	if width == e.width && height == e.height {
		return false
	}
	e.width = width
	e.height = height
	core.LogDebug("Window resize: %d, %d", width, height)

	if e.renderer != nil {
		e.renderer.Resize(width, height)
	}

	// Handle minimization
	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return true
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(width, height); err != nil {
			core.LogError(err.Error())
		}
	}
	return false
}

func (e *Engine) onSceneChanged(code core.SystemEventCode, sender interface{}, listener interface{}, context core.EventContext) bool {
	e.sceneChanged.Store(true)
	return true
}
