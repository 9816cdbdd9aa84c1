package engine

import "github.com/spaghettifunk/talos/engine/scene"

// Game is the set of hooks the engine calls during its lifetime. Camera is
// set by the engine before FnInitialize runs.
type Game struct {
	ApplicationConfig *ApplicationConfig
	Camera            *scene.Camera
	State             interface{}
	FnBoot            Boot
	FnInitialize      Initialize
	FnUpdate          Update
	FnOnResize        OnResize
	FnShutdown        Shutdown
}

type Boot func() error
type Initialize func() error
type Update func(deltaTime float64) error
type OnResize func(width uint32, height uint32) error
type Shutdown func() error
