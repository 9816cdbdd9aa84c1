package renderer

import (
	"fmt"

	"github.com/spaghettifunk/talos/engine/core"
	"github.com/spaghettifunk/talos/engine/math"
	"github.com/spaghettifunk/talos/engine/renderer/metadata"
)

/**
 * @brief Everything one swapchain image renders with: its attachments, the
 * per-frame uniform and storage buffers (mapped once, rewritten every frame),
 * the descriptor sets of every pass and one framebuffer per pass.
 */
type FrameResources struct {
	/** @brief The swapchain image. Owned by the swapchain. */
	Swapchain    metadata.Image
	Depth        metadata.Image
	Albedo       metadata.Image
	Normal       metadata.Image
	PrepassDepth metadata.Image

	CameraMatrices metadata.Buffer
	CameraVectors  metadata.Buffer
	Models         metadata.Buffer
	Lights         metadata.Buffer

	/** @brief Per pass sets in set order, starting at set 0. */
	Sets [metadata.RenderPassTypeCount][]metadata.DescriptorSet
	/** @brief Albedo, normal and prepass depth for the deferred pass. */
	GBuffer metadata.DescriptorSet

	Framebuffers [metadata.RenderPassTypeCount]metadata.Framebuffer

	pool           metadata.DescriptorPool
	gbufferSampler metadata.Sampler
}

// std140 and std430 blocks are sized in whole vec4s.
const blockAlignment = 16

// frameDescriptorPool sizes a pool for the per-frame sets of every pass plus
// the G-buffer set.
var frameDescriptorPool = metadata.DescriptorPoolInfo{
	MaxSets: 6,
	Sizes: map[metadata.DescriptorKind]uint32{
		metadata.DescriptorUniformBuffer:        6,
		metadata.DescriptorStorageBuffer:        2,
		metadata.DescriptorCombinedImageSampler: 3,
	},
}

// NewFrameResources builds the resources of one swapchain image. On failure
// everything created so far is released.
func NewFrameResources(backend Backend, registry *PassRegistry, swapchainImage metadata.Image, extent metadata.Extent) (*FrameResources, error) {
	f := &FrameResources{Swapchain: swapchainImage}
	if err := f.create(backend, registry, extent); err != nil {
		f.Destroy()
		return nil, err
	}
	return f, nil
}

func (f *FrameResources) create(backend Backend, registry *PassRegistry, extent metadata.Extent) error {
	var err error
	image := func(format metadata.Format, usage metadata.ImageUsage) metadata.Image {
		if err != nil {
			return nil
		}
		var img metadata.Image
		img, err = backend.CreateImage(metadata.ImageInfo{Extent: extent, Format: format, Usage: usage})
		return img
	}
	f.Depth = image(backend.DepthFormat(), metadata.ImageUsageDepthAttachment)
	f.Albedo = image(metadata.AlbedoFormat, metadata.ImageUsageColorAttachment|metadata.ImageUsageSampled)
	f.Normal = image(metadata.NormalFormat, metadata.ImageUsageColorAttachment|metadata.ImageUsageSampled)
	f.PrepassDepth = image(backend.DepthFormat(), metadata.ImageUsageDepthAttachment|metadata.ImageUsageSampled)
	if err != nil {
		return fmt.Errorf("create frame images: %w", err)
	}

	buffer := func(size uint64, usage metadata.BufferUsage) metadata.Buffer {
		if err != nil {
			return nil
		}
		var buf metadata.Buffer
		size = metadata.GetAligned(size, blockAlignment)
		buf, err = backend.CreateBuffer(metadata.BufferInfo{Size: size, Usage: usage, HostVisible: true})
		return buf
	}
	f.CameraMatrices = buffer(metadata.CameraMatricesSize, metadata.BufferUsageUniform)
	f.CameraVectors = buffer(metadata.CameraVectorsSize, metadata.BufferUsageUniform)
	f.Models = buffer(metadata.ModelTransformsSize, metadata.BufferUsageStorage)
	f.Lights = buffer(metadata.LightDataSize, metadata.BufferUsageUniform)
	if err != nil {
		return fmt.Errorf("create frame buffers: %w", err)
	}

	if err := f.createDescriptors(backend, registry); err != nil {
		return fmt.Errorf("create frame descriptors: %w", err)
	}

	for _, t := range metadata.RenderPassTypes() {
		attachments := make([]metadata.Image, 0, len(registry.Targets(t)))
		for _, target := range registry.Targets(t) {
			attachments = append(attachments, f.Image(target))
		}
		fb, err := backend.CreateFramebuffer(registry.Pass(t), attachments, extent)
		if err != nil {
			return fmt.Errorf("create %s framebuffer: %w", t, err)
		}
		f.Framebuffers[t] = fb
	}
	return nil
}

func (f *FrameResources) createDescriptors(backend Backend, registry *PassRegistry) error {
	pool, err := backend.CreateDescriptorPool(frameDescriptorPool)
	if err != nil {
		return err
	}
	f.pool = pool

	for _, t := range metadata.RenderPassTypes() {
		f.Sets[t] = nil
		for _, layout := range registry.FrameLayouts(t) {
			set, err := pool.Allocate(layout)
			if err != nil {
				return fmt.Errorf("allocate %s set: %w", t, err)
			}
			f.Sets[t] = append(f.Sets[t], set)
		}
	}
	if f.GBuffer, err = pool.Allocate(registry.GBufferLayout()); err != nil {
		return fmt.Errorf("allocate gbuffer set: %w", err)
	}
	if f.gbufferSampler, err = backend.CreateSampler(false); err != nil {
		return err
	}
	f.writeDescriptors()
	return nil
}

// writeDescriptors points every set at this frame's buffers and G-buffer.
// The handles never change during the lifetime of the frame, so this runs once.
func (f *FrameResources) writeDescriptors() {
	sky := f.Sets[metadata.RenderPassSky]
	sky[0].WriteBuffer(0, metadata.DescriptorUniformBuffer, f.CameraVectors)

	forward := f.Sets[metadata.RenderPassForward]
	forward[0].WriteBuffer(0, metadata.DescriptorUniformBuffer, f.CameraMatrices)
	forward[0].WriteBuffer(1, metadata.DescriptorStorageBuffer, f.Models)
	forward[1].WriteBuffer(0, metadata.DescriptorUniformBuffer, f.Lights)

	prepass := f.Sets[metadata.RenderPassPrepass]
	prepass[0].WriteBuffer(0, metadata.DescriptorUniformBuffer, f.CameraMatrices)
	prepass[0].WriteBuffer(1, metadata.DescriptorStorageBuffer, f.Models)

	deferred := f.Sets[metadata.RenderPassDeferred]
	deferred[0].WriteBuffer(0, metadata.DescriptorUniformBuffer, f.CameraMatrices)
	deferred[0].WriteBuffer(1, metadata.DescriptorUniformBuffer, f.Lights)

	f.GBuffer.WriteImage(0, f.Albedo, f.gbufferSampler)
	f.GBuffer.WriteImage(1, f.Normal, f.gbufferSampler)
	f.GBuffer.WriteImage(2, f.PrepassDepth, f.gbufferSampler)
}

// Image returns the image bound to target.
func (f *FrameResources) Image(target metadata.Target) metadata.Image {
	switch target {
	case metadata.TargetSwapchain:
		return f.Swapchain
	case metadata.TargetDepth:
		return f.Depth
	case metadata.TargetAlbedo:
		return f.Albedo
	case metadata.TargetNormal:
		return f.Normal
	case metadata.TargetPrepassDepth:
		return f.PrepassDepth
	default:
		return nil
	}
}

// FrameUniforms is the CPU state written into a frame before recording.
type FrameUniforms struct {
	Camera     metadata.CameraMatrices
	Vectors    metadata.CameraVectors
	Transforms []math.Mat4
	Lights     metadata.LightData
}

// WriteUniforms copies u into the mapped buffers. Transforms past the buffer
// capacity are not written and core.ErrTooManyInstances is returned after
// everything else has been written.
func (f *FrameResources) WriteUniforms(u *FrameUniforms) error {
	if err := metadata.EncodeUniform(f.CameraMatrices.Bytes(), &u.Camera); err != nil {
		return err
	}
	if err := metadata.EncodeUniform(f.CameraVectors.Bytes(), &u.Vectors); err != nil {
		return err
	}
	if err := metadata.EncodeUniform(f.Lights.Bytes(), &u.Lights); err != nil {
		return err
	}
	n, err := metadata.EncodeTransforms(f.Models.Bytes(), u.Transforms)
	if err != nil {
		return err
	}
	if n < len(u.Transforms) {
		return fmt.Errorf("%d of %d transforms written: %w", n, len(u.Transforms), core.ErrTooManyInstances)
	}
	return nil
}

// Destroy releases every handle the frame owns. The swapchain image is left
// to the swapchain.
func (f *FrameResources) Destroy() {
	for i, fb := range f.Framebuffers {
		if fb != nil {
			fb.Destroy()
			f.Framebuffers[i] = nil
		}
	}
	if f.pool != nil {
		f.pool.Destroy()
		f.pool = nil
	}
	f.Sets = [metadata.RenderPassTypeCount][]metadata.DescriptorSet{}
	f.GBuffer = nil
	destroyAll(f.gbufferSampler, f.CameraMatrices, f.CameraVectors, f.Models, f.Lights,
		f.Depth, f.Albedo, f.Normal, f.PrepassDepth)
	f.gbufferSampler = nil
	f.CameraMatrices, f.CameraVectors, f.Models, f.Lights = nil, nil, nil, nil
	f.Depth, f.Albedo, f.Normal, f.PrepassDepth = nil, nil, nil, nil
}

/**
 * @brief Synchronization objects and the command buffer of one frame slot.
 * Slot f is used by frame number f modulo the frames in flight.
 */
type FrameSync struct {
	Command metadata.CommandBuffer
	/** @brief Signaled when the slot's last submission completes. Created signaled. */
	InFlight metadata.Fence
	/** @brief Signaled by the first submission of a frame. */
	Prepass metadata.Fence
	/** @brief Signaled by image acquisition. */
	RenderStart metadata.Semaphore
	/** @brief Signaled by the last submission, waited by present. */
	PresentReady metadata.Semaphore
}

func NewFrameSync(backend Backend) (*FrameSync, error) {
	s := &FrameSync{}
	var err error
	if s.Command, err = backend.CreateCommandBuffer(); err != nil {
		return nil, err
	}
	if s.InFlight, err = backend.CreateFence(true); err != nil {
		s.Destroy()
		return nil, err
	}
	if s.Prepass, err = backend.CreateFence(false); err != nil {
		s.Destroy()
		return nil, err
	}
	if s.RenderStart, err = backend.CreateSemaphore(); err != nil {
		s.Destroy()
		return nil, err
	}
	if s.PresentReady, err = backend.CreateSemaphore(); err != nil {
		s.Destroy()
		return nil, err
	}
	return s, nil
}

func (s *FrameSync) Destroy() {
	destroyAll(s.Command, s.InFlight, s.Prepass, s.RenderStart, s.PresentReady)
	s.Command, s.InFlight, s.Prepass, s.RenderStart, s.PresentReady = nil, nil, nil, nil, nil
}

// destroyAll destroys every non-nil handle.
func destroyAll(handles ...metadata.Destroyer) {
	for _, h := range handles {
		if h != nil {
			h.Destroy()
		}
	}
}
