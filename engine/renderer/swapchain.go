package renderer

import (
	"fmt"

	"github.com/spaghettifunk/talos/engine/core"
	"github.com/spaghettifunk/talos/engine/renderer/metadata"
)

type SwapchainState uint8

const (
	// SwapchainValid can be rendered to.
	SwapchainValid SwapchainState = iota
	// SwapchainSuspended has a zero-sized surface. Nothing is rendered until a
	// non-zero size arrives.
	SwapchainSuspended
	// SwapchainRebuilding is being torn down and recreated.
	SwapchainRebuilding
)

func (s SwapchainState) String() string {
	switch s {
	case SwapchainValid:
		return "valid"
	case SwapchainSuspended:
		return "suspended"
	case SwapchainRebuilding:
		return "rebuilding"
	default:
		return fmt.Sprintf("SwapchainState(%d)", uint8(s))
	}
}

// Swapchain tracks the surface size and the swapchain built for it. A resize
// bumps the size generation; a mismatch with the generation the swapchain was
// built at means a rebuild is due.
type Swapchain struct {
	state SwapchainState
	info  SwapchainInfo
	built bool

	width, height  uint32
	generation     uint64
	lastGeneration uint64
}

func NewSwapchain(width, height uint32) *Swapchain {
	s := &Swapchain{width: width, height: height, state: SwapchainRebuilding}
	if width == 0 || height == 0 {
		s.state = SwapchainSuspended
	}
	return s
}

func (s *Swapchain) State() SwapchainState {
	return s.state
}

func (s *Swapchain) Info() SwapchainInfo {
	return s.info
}

func (s *Swapchain) Extent() metadata.Extent {
	return s.info.Extent
}

// Resize records a new surface size. A zero dimension suspends rendering.
func (s *Swapchain) Resize(width, height uint32) {
	if width == s.width && height == s.height && s.state != SwapchainSuspended {
		return
	}
	s.width, s.height = width, height
	s.generation++
	if width == 0 || height == 0 {
		s.state = SwapchainSuspended
		core.LogDebug("swapchain suspended, surface is %dx%d", width, height)
		return
	}
	s.state = SwapchainRebuilding
}

// Invalidate marks the swapchain out of date.
func (s *Swapchain) Invalidate() {
	if s.state == SwapchainValid {
		s.state = SwapchainRebuilding
	}
}

// NeedsRebuild reports whether the swapchain must be rebuilt before the next
// frame.
func (s *Swapchain) NeedsRebuild() bool {
	if s.state == SwapchainSuspended {
		return false
	}
	return s.state == SwapchainRebuilding || s.generation != s.lastGeneration || !s.built
}

// rebuild destroys the old swapchain, if any, and creates one at the current
// size. The caller tears down everything that referenced the old images first.
func (s *Swapchain) rebuild(backend Backend) error {
	if s.width == 0 || s.height == 0 {
		s.state = SwapchainSuspended
		return nil
	}
	s.state = SwapchainRebuilding
	s.destroy(backend)

	info, err := backend.CreateSwapchain(s.width, s.height)
	if err != nil {
		return err
	}
	s.info = info
	s.built = true
	s.lastGeneration = s.generation
	s.state = SwapchainValid
	core.LogInfo("swapchain built: %d images, %dx%d", len(info.Images), info.Extent.Width, info.Extent.Height)
	return nil
}

func (s *Swapchain) destroy(backend Backend) {
	if s.built {
		backend.DestroySwapchain()
		s.built = false
		s.info = SwapchainInfo{}
	}
}
