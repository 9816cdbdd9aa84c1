package testbed

import (
	"github.com/spaghettifunk/talos/engine"
	"github.com/spaghettifunk/talos/engine/core"
	"github.com/spaghettifunk/talos/engine/math"
)

// Radians per second the camera travels around the scene origin.
const orbitSpeed = 0.5

type TestGame struct {
	*engine.Game
}

type gameState struct {
	width  uint32
	height uint32
	// Total orbit angle, kept for logging.
	angle float64
}

func NewTestGame(config *engine.ApplicationConfig) *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: config,
			State:             &gameState{},
		},
	}

	tg.FnBoot = tg.Boot
	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg
}

func (g *TestGame) Boot() error {
	core.LogInfo("booting testbed...")
	return nil
}

func (g *TestGame) Initialize() error {
	core.LogDebug("TestGame Initialize fn....")
	g.Camera.Reset()
	g.Camera.Far = g.ApplicationConfig.Renderer.FarPlane
	g.Camera.SetPosition(math.NewVec3(0, 1.5, -5))
	return nil
}

// Update orbits the camera around the origin.
func (g *TestGame) Update(deltaTime float64) error {
	state := g.State.(*gameState)
	step := orbitSpeed * deltaTime
	state.angle += step
	g.Camera.Orbit(float32(step))
	return nil
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	state := g.State.(*gameState)
	state.width = width
	state.height = height
	return nil
}

func (g *TestGame) Shutdown() error {
	state := g.State.(*gameState)
	core.LogInfo("testbed shutting down after orbiting %.2f radians", state.angle)
	return nil
}
