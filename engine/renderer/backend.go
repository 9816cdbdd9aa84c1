package renderer

import "github.com/spaghettifunk/talos/engine/renderer/metadata"

// SwapchainInfo describes the presentable images of a freshly built swapchain.
// The images belong to the swapchain; Destroy on them is a no-op.
type SwapchainInfo struct {
	Images []metadata.Image
	Format metadata.Format
	Extent metadata.Extent
}

/**
 * @brief The boundary between the frame orchestration and the device layer.
 * Every Create* call returns a handle the caller owns and must Destroy.
 * Submissions are serialized internally so workers can upload while the
 * render loop records.
 */
type Backend interface {
	// CreateSwapchain builds a swapchain of the requested size. The extent of
	// the result may differ from the request when the surface dictates it.
	CreateSwapchain(width, height uint32) (SwapchainInfo, error)
	DestroySwapchain()
	WaitIdle() error
	// AcquireNextImage returns core.ErrSwapchainOutOfDate when the swapchain
	// must be rebuilt.
	AcquireNextImage(signal metadata.Semaphore) (uint32, error)
	// Present returns core.ErrSwapchainOutOfDate when the swapchain is out of
	// date or suboptimal.
	Present(imageIndex uint32, wait metadata.Semaphore) error
	// Submit queues cmd. A nil cmd submits an empty batch, which still signals
	// fence. A nil wait or signal is skipped.
	Submit(cmd metadata.CommandBuffer, wait, signal metadata.Semaphore, fence metadata.Fence) error
	// SubmitWait queues cmd and blocks until the queue is idle.
	SubmitWait(cmd metadata.CommandBuffer) error

	CreateFence(signaled bool) (metadata.Fence, error)
	CreateSemaphore() (metadata.Semaphore, error)
	CreateImage(info metadata.ImageInfo) (metadata.Image, error)
	CreateBuffer(info metadata.BufferInfo) (metadata.Buffer, error)
	CreateCommandBuffer() (metadata.CommandBuffer, error)
	CreateDescriptorLayout(info metadata.DescriptorLayoutInfo) (metadata.DescriptorLayout, error)
	CreateDescriptorPool(info metadata.DescriptorPoolInfo) (metadata.DescriptorPool, error)
	CreateSampler(cube bool) (metadata.Sampler, error)
	CreateShaderModule(path string) (metadata.ShaderModule, error)
	CreatePass(info metadata.PipelineInfo) (metadata.Pass, error)
	CreateFramebuffer(pass metadata.Pass, attachments []metadata.Image, extent metadata.Extent) (metadata.Framebuffer, error)

	// DepthFormat is the depth format the device supports, picked once at
	// device creation.
	DepthFormat() metadata.Format
}
