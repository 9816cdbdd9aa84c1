package renderer

import (
	"errors"
	"math"

	"github.com/spaghettifunk/talos/engine/config"
	"github.com/spaghettifunk/talos/engine/core"
	"github.com/spaghettifunk/talos/engine/renderer/metadata"
	"github.com/spaghettifunk/talos/engine/scene"
)

// MaxFramesInFlight caps how many frames the CPU records ahead of the GPU.
const MaxFramesInFlight = 2

// Options are the renderer settings taken from engine.toml and passes.toml.
type Options struct {
	ClearColor [4]float32
	// Workers is the asset loading pool size. 0 picks one per spare core.
	Workers int
	Passes  *config.PassesConfig
}

/**
 * @brief The frame orchestrator. It owns the swapchain, the per-image frame
 * resources, the per-slot synchronization objects and the assets of the scene
 * being rendered. All methods run on the render goroutine.
 */
type Renderer struct {
	backend  Backend
	options  Options
	registry *PassRegistry

	swapchain      *Swapchain
	frames         []*FrameResources
	syncs          []*FrameSync
	imagesInFlight []metadata.Fence
	framesInFlight uint64
	frameNumber    uint64
	passesBuilt    bool

	assets   *SceneAssets
	uniforms FrameUniforms
}

// New builds the swapchain, the render passes and the frame resources for a
// surface of the given size.
func New(backend Backend, options Options, width, height uint32) (*Renderer, error) {
	if options.Passes == nil {
		options.Passes = config.DefaultPasses()
	}
	r := &Renderer{
		backend:   backend,
		options:   options,
		registry:  NewPassRegistry(),
		swapchain: NewSwapchain(width, height),
	}
	if r.swapchain.State() == SwapchainSuspended {
		core.LogWarn("renderer created with a %dx%d surface, waiting for a resize", width, height)
		return r, nil
	}
	if err := r.Rebuild(); err != nil {
		r.Shutdown()
		return nil, err
	}
	core.LogInfo("renderer initialized successfully")
	return r, nil
}

func (r *Renderer) State() SwapchainState {
	return r.swapchain.State()
}

func (r *Renderer) Extent() metadata.Extent {
	return r.swapchain.Extent()
}

// FrameNumber is the current frame slot.
func (r *Renderer) FrameNumber() uint64 {
	return r.frameNumber
}

func (r *Renderer) FramesInFlight() uint64 {
	return r.framesInFlight
}

// Resize records a new surface size. The swapchain is rebuilt on the next
// Render; a zero dimension suspends rendering.
func (r *Renderer) Resize(width, height uint32) {
	r.swapchain.Resize(width, height)
}

// Rebuild waits for the device, destroys every frame resource and the
// swapchain, then recreates them at the current surface size. Failures are
// setup errors.
func (r *Renderer) Rebuild() error {
	if err := r.backend.WaitIdle(); err != nil {
		return core.NewError(core.KindSetup, "wait device idle", err)
	}
	r.destroyFrames()
	if err := r.swapchain.rebuild(r.backend); err != nil {
		core.LogError("failed to rebuild the swapchain: %s", err.Error())
		return core.NewError(core.KindSetup, "rebuild swapchain", err)
	}
	if r.swapchain.State() == SwapchainSuspended {
		return nil
	}

	info := r.swapchain.Info()
	if !r.passesBuilt {
		if err := r.registry.Build(r.backend, r.options.Passes, info.Format); err != nil {
			return err
		}
		r.passesBuilt = true
	}
	if err := r.createFrames(info); err != nil {
		r.destroyFrames()
		core.LogError(err.Error())
		return core.NewError(core.KindSetup, "create frame resources", err)
	}
	return nil
}

func (r *Renderer) createFrames(info SwapchainInfo) error {
	r.frames = make([]*FrameResources, 0, len(info.Images))
	for _, img := range info.Images {
		f, err := NewFrameResources(r.backend, r.registry, img, info.Extent)
		if err != nil {
			return err
		}
		r.frames = append(r.frames, f)
	}

	r.framesInFlight = uint64(max(1, min(MaxFramesInFlight, len(info.Images))))
	r.syncs = make([]*FrameSync, 0, r.framesInFlight)
	for i := uint64(0); i < r.framesInFlight; i++ {
		s, err := NewFrameSync(r.backend)
		if err != nil {
			return err
		}
		r.syncs = append(r.syncs, s)
	}
	r.imagesInFlight = make([]metadata.Fence, len(info.Images))
	r.frameNumber = 0
	return nil
}

func (r *Renderer) destroyFrames() {
	for _, f := range r.frames {
		f.Destroy()
	}
	for _, s := range r.syncs {
		s.Destroy()
	}
	r.frames, r.syncs, r.imagesInFlight = nil, nil, nil
}

// prepare makes sure the assets of s are on the device. A different scene
// replaces the previous one after the device is idle.
func (r *Renderer) prepare(s *scene.Scene) error {
	if r.assets != nil && r.assets.Scene == s {
		return nil
	}
	if r.assets != nil {
		if err := r.backend.WaitIdle(); err != nil {
			return core.NewError(core.KindSetup, "wait device idle", err)
		}
		r.assets.Destroy()
		r.assets = nil
	}
	if n := len(s.Lights); n > metadata.MaxLights {
		core.LogWarn("scene has %d lights, only the first %d are used", n, metadata.MaxLights)
	}
	if n := s.InstanceCount(); n > metadata.MaxInstances {
		core.LogError("scene has %d instances: %s", n, core.ErrTooManyInstances)
	}

	prepared, err := PrepareScene(r.backend, r.registry, s, r.options.Workers)
	if err != nil {
		return err
	}
	r.assets = prepared
	core.LogInfo("scene prepared: %d groups, %d instances, passes %s", len(s.Groups), s.InstanceCount(), s.Passes)
	return nil
}

// ReleaseScene drops the assets of the current scene so the next Render
// prepares again, used when the scene file changes on disk.
func (r *Renderer) ReleaseScene() error {
	if r.assets == nil {
		return nil
	}
	if err := r.backend.WaitIdle(); err != nil {
		return core.NewError(core.KindSetup, "wait device idle", err)
	}
	r.assets.Destroy()
	r.assets = nil
	return nil
}

// Render records and submits one frame of s seen through camera.
func (r *Renderer) Render(s *scene.Scene, camera *scene.Camera) core.FrameResult {
	switch {
	case r.swapchain.State() == SwapchainSuspended:
		return core.FrameFailed(core.KindSwapchainRebuild, "render", core.ErrSwapchainBooting)
	case r.swapchain.NeedsRebuild():
		if err := r.Rebuild(); err != nil {
			return core.FrameResult{Kind: core.KindSetup, Err: err}
		}
		return core.FrameFailed(core.KindSwapchainRebuild, "render", core.ErrSwapchainBooting)
	}

	if err := r.prepare(s); err != nil {
		return core.FrameResult{Kind: core.KindOf(err), Err: err}
	}

	slot := r.syncs[r.frameNumber%r.framesInFlight]
	if err := slot.InFlight.Wait(math.MaxUint64); err != nil {
		core.LogError("in-flight fence wait failure: %s", err.Error())
		return core.FrameFailed(core.KindSetup, "wait in-flight fence", err)
	}

	imageIndex, err := r.backend.AcquireNextImage(slot.RenderStart)
	if err != nil {
		return r.swapchainFailure("acquire next image", err)
	}

	// Make sure no other slot is still rendering into this image.
	if guard := r.imagesInFlight[imageIndex]; guard != nil && guard != slot.InFlight {
		if err := guard.Wait(math.MaxUint64); err != nil {
			return core.FrameFailed(core.KindSetup, "wait image fence", err)
		}
	}
	r.imagesInFlight[imageIndex] = slot.InFlight
	if err := slot.InFlight.Reset(); err != nil {
		return r.transient(slot, true, "reset in-flight fence", err)
	}

	frame := r.frames[imageIndex]
	r.fillUniforms(s, camera)
	if err := frame.WriteUniforms(&r.uniforms); err != nil && !errors.Is(err, core.ErrTooManyInstances) {
		return r.transient(slot, true, "write uniforms", err)
	}

	if res := r.record(s, frame, slot); !res.OK() {
		return res
	}

	if err := r.backend.Present(imageIndex, slot.PresentReady); err != nil {
		r.frameNumber = (r.frameNumber + 1) % r.framesInFlight
		return r.swapchainFailure("present", err)
	}
	r.frameNumber = (r.frameNumber + 1) % r.framesInFlight
	return core.FrameOK()
}

func (r *Renderer) fillUniforms(s *scene.Scene, camera *scene.Camera) {
	aspect := r.swapchain.Extent().AspectRatio()
	r.uniforms.Camera = camera.Matrices(aspect)
	r.uniforms.Vectors = camera.Vectors()
	r.uniforms.Transforms = s.Transforms()
	r.uniforms.Lights = metadata.NewLightData(r.uniforms.Camera.View, s.Lights)
}

// record submits the two segments of a frame. The first holds the passes the
// rest of the frame reads from and is waited on by the CPU before the second
// is recorded into the same command buffer.
func (r *Renderer) record(s *scene.Scene, frame *FrameResources, slot *FrameSync) core.FrameResult {
	assets := r.assets
	sky := s.Requires(metadata.RenderPassSky) && assets.Skybox != nil
	prepass := s.Requires(metadata.RenderPassPrepass)
	forward := s.Requires(metadata.RenderPassForward)
	deferred := s.Requires(metadata.RenderPassDeferred)

	recorded := metadata.PassSet(0)
	for _, t := range recordOrder {
		if s.Requires(t) && (t != metadata.RenderPassSky || sky) {
			recorded = recorded.With(t)
		}
	}
	layout, writes := r.registry.FirstSwapchainLayout(recorded)
	presentTransition := !writes || layout == metadata.ImageLayoutPresentSrc

	cmd := slot.Command
	extent := r.swapchain.Extent()
	wait := slot.RenderStart

	if sky || prepass {
		if err := begin(cmd); err != nil {
			return r.transient(slot, true, "begin command buffer", err)
		}
		if presentTransition {
			cmd.Transition(metadata.Transition{Image: frame.Swapchain, OldLayout: metadata.ImageLayoutUndefined, NewLayout: metadata.ImageLayoutPresentSrc})
			presentTransition = false
		}
		if sky {
			if err := r.recordPass(cmd, metadata.RenderPassSky, frame, extent, func(pass metadata.Pass) {
				cmd.BindDescriptorSets(pass, skyCubemapSet, assets.Skybox.Set)
				cmd.Draw(6, 1, 0, 0)
			}); err != nil {
				return r.transient(slot, true, "record sky pass", err)
			}
		}
		if prepass {
			if err := r.recordPass(cmd, metadata.RenderPassPrepass, frame, extent, func(pass metadata.Pass) {
				assets.Vertices.Bind(cmd)
				r.drawGroups(cmd, pass, metadata.RenderPassPrepass, prepassTextureSet, s)
			}); err != nil {
				return r.transient(slot, true, "record prepass", err)
			}
		}
		if err := cmd.End(); err != nil {
			return r.transient(slot, true, "end command buffer", err)
		}
		if err := r.backend.Submit(cmd, wait, nil, slot.Prepass); err != nil {
			return r.transient(slot, true, "submit prepass", err)
		}
		wait = nil
		if err := slot.Prepass.Wait(math.MaxUint64); err != nil {
			return core.FrameFailed(core.KindSetup, "wait prepass fence", err)
		}
		if err := slot.Prepass.Reset(); err != nil {
			return r.transient(slot, false, "reset prepass fence", err)
		}
	}

	if err := begin(cmd); err != nil {
		return r.transient(slot, wait != nil, "begin command buffer", err)
	}
	if presentTransition {
		cmd.Transition(metadata.Transition{Image: frame.Swapchain, OldLayout: metadata.ImageLayoutUndefined, NewLayout: metadata.ImageLayoutPresentSrc})
	}
	if prepass {
		cmd.Transition(
			metadata.Transition{Image: frame.Albedo, OldLayout: metadata.ImageLayoutColorAttachmentOptimal, NewLayout: metadata.ImageLayoutShaderReadOnlyOptimal},
			metadata.Transition{Image: frame.Normal, OldLayout: metadata.ImageLayoutColorAttachmentOptimal, NewLayout: metadata.ImageLayoutShaderReadOnlyOptimal},
			metadata.Transition{Image: frame.PrepassDepth, OldLayout: metadata.ImageLayoutDepthStencilAttachmentOptimal, NewLayout: metadata.ImageLayoutShaderReadOnlyOptimal},
		)
	}
	if forward {
		if err := r.recordPass(cmd, metadata.RenderPassForward, frame, extent, func(pass metadata.Pass) {
			assets.Vertices.Bind(cmd)
			r.drawGroups(cmd, pass, metadata.RenderPassForward, forwardTextureSet, s)
		}); err != nil {
			return r.transient(slot, wait != nil, "record forward pass", err)
		}
	}
	if deferred {
		if err := r.recordPass(cmd, metadata.RenderPassDeferred, frame, extent, func(pass metadata.Pass) {
			cmd.BindDescriptorSets(pass, deferredGBufferSet, frame.GBuffer)
			cmd.Draw(6, 1, 0, 0)
		}); err != nil {
			return r.transient(slot, wait != nil, "record deferred pass", err)
		}
	}
	if err := cmd.End(); err != nil {
		return r.transient(slot, wait != nil, "end command buffer", err)
	}
	if err := r.backend.Submit(cmd, wait, slot.PresentReady, slot.InFlight); err != nil {
		return r.transient(slot, wait != nil, "submit frame", err)
	}
	return core.FrameOK()
}

func begin(cmd metadata.CommandBuffer) error {
	if err := cmd.Reset(); err != nil {
		return err
	}
	return cmd.Begin(false)
}

// recordPass wraps draw in the render pass t with its per-frame sets bound.
func (r *Renderer) recordPass(cmd metadata.CommandBuffer, t metadata.RenderPassType, frame *FrameResources, extent metadata.Extent, draw func(pass metadata.Pass)) error {
	pass := r.registry.Pass(t)
	if pass == nil {
		return core.ErrNilPipeline
	}
	cmd.BeginRenderPass(pass, frame.Framebuffers[t], extent, r.options.ClearColor)
	cmd.BindPipeline(pass)
	cmd.BindDescriptorSets(pass, 0, frame.Sets[t]...)
	draw(pass)
	cmd.EndRenderPass()
	return nil
}

// drawGroups issues one instanced draw per group that pass t draws. Every
// group advances the instance offset, drawn or not, so instance ids index the
// transform buffer in group order.
func (r *Renderer) drawGroups(cmd metadata.CommandBuffer, pass metadata.Pass, t metadata.RenderPassType, textureSet uint32, s *scene.Scene) {
	var instanceStart uint32
	for _, g := range s.Groups {
		if instanceStart >= metadata.MaxInstances {
			return
		}
		count := min(uint32(g.Len()), metadata.MaxInstances-instanceStart)
		if metadata.DrawsTag(t, g.Tag) {
			rng, ok := r.assets.Vertices.Range(g.Key)
			tex := r.assets.Textures[g.Key]
			if ok && rng.IndexCount > 0 && tex != nil && tex.Set != nil {
				cmd.BindDescriptorSets(pass, textureSet, tex.Set)
				cmd.DrawIndexed(rng.IndexCount, count, rng.FirstIndex, 0, instanceStart)
			}
		}
		instanceStart += count
	}
}

// transient aborts the tick. The in-flight fence was reset without a submit
// that signals it, so an empty batch re-arms it; it also consumes the
// render-start semaphore when nothing waited on it yet.
func (r *Renderer) transient(slot *FrameSync, renderStartPending bool, op string, err error) core.FrameResult {
	core.LogError("%s: %s", op, err.Error())
	var wait metadata.Semaphore
	if renderStartPending {
		wait = slot.RenderStart
	}
	if rerr := r.backend.Submit(nil, wait, nil, slot.InFlight); rerr != nil {
		core.LogError("failed to re-arm the in-flight fence: %s", rerr.Error())
		return core.FrameFailed(core.KindSetup, "re-arm in-flight fence", rerr)
	}
	return core.FrameFailed(core.KindTransient, op, err)
}

// swapchainFailure rebuilds on an out-of-date swapchain. Anything else means
// the surface or device is gone.
func (r *Renderer) swapchainFailure(op string, err error) core.FrameResult {
	if !errors.Is(err, core.ErrSwapchainOutOfDate) {
		core.LogError("%s: %s", op, err.Error())
		return core.FrameFailed(core.KindSetup, op, err)
	}
	r.swapchain.Invalidate()
	if rerr := r.Rebuild(); rerr != nil {
		return core.FrameResult{Kind: core.KindSetup, Err: rerr}
	}
	return core.FrameFailed(core.KindSwapchainRebuild, op, err)
}

// Shutdown releases everything in reverse creation order after the device
// is idle.
func (r *Renderer) Shutdown() {
	if err := r.backend.WaitIdle(); err != nil {
		core.LogWarn("wait idle on shutdown: %s", err.Error())
	}
	if r.assets != nil {
		r.assets.Destroy()
		r.assets = nil
	}
	r.destroyFrames()
	r.swapchain.destroy(r.backend)
	r.registry.Destroy()
	r.passesBuilt = false
	core.LogDebug("renderer shut down")
}
