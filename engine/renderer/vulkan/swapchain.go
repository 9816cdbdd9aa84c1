package vulkan

import (
	"math"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/talos/engine/core"
	kmath "github.com/spaghettifunk/talos/engine/math"
	"github.com/spaghettifunk/talos/engine/renderer/metadata"
)

type VulkanSwapchain struct {
	context     *VulkanContext
	ImageFormat vk.SurfaceFormat
	Handle      vk.Swapchain
	Extent      metadata.Extent
	Images      []*VulkanImage
}

type VulkanSwapchainSupportInfo struct {
	Capabilities vk.SurfaceCapabilities
	Formats      []vk.SurfaceFormat
	PresentModes []vk.PresentMode
}

func SwapchainCreate(context *VulkanContext, width, height uint32) (*VulkanSwapchain, error) {
	device := context.Device
	// The surface capabilities follow the window, refresh them first.
	if err := DeviceQuerySwapchainSupport(device.PhysicalDevice, context.Surface, &device.SwapchainSupport); err != nil {
		core.LogError("Failed to query swapchain support: %s", err)
		return nil, err
	}
	support := &device.SwapchainSupport

	swapchain := &VulkanSwapchain{context: context}

	// Choose a swap surface format.
	swapchain.ImageFormat = support.Formats[0]
	for _, format := range support.Formats {
		if (format.Format == vk.FormatB8g8r8a8Unorm || format.Format == vk.FormatB8g8r8a8Srgb) &&
			format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			swapchain.ImageFormat = format
			break
		}
	}

	presentMode := vk.PresentModeFifo
	for _, mode := range support.PresentModes {
		if mode == vk.PresentModeMailbox {
			presentMode = mode
			break
		}
	}

	swapchainExtent := vk.Extent2D{Width: width, Height: height}
	if support.Capabilities.CurrentExtent.Width != math.MaxUint32 {
		swapchainExtent = support.Capabilities.CurrentExtent
	}

	// Clamp to the value allowed by the GPU.
	minExtent := support.Capabilities.MinImageExtent
	maxExtent := support.Capabilities.MaxImageExtent
	swapchainExtent.Width = kmath.Clamp(swapchainExtent.Width, minExtent.Width, maxExtent.Width)
	swapchainExtent.Height = kmath.Clamp(swapchainExtent.Height, minExtent.Height, maxExtent.Height)

	imageCount := support.Capabilities.MinImageCount + 1
	if support.Capabilities.MaxImageCount > 0 && imageCount > support.Capabilities.MaxImageCount {
		imageCount = support.Capabilities.MaxImageCount
	}

	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          context.Surface,
		MinImageCount:    imageCount,
		ImageFormat:      swapchain.ImageFormat.Format,
		ImageColorSpace:  swapchain.ImageFormat.ColorSpace,
		ImageExtent:      swapchainExtent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     support.Capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      presentMode,
		Clipped:          vk.True,
		OldSwapchain:     vk.NullSwapchain,
	}

	// Setup the queue family indices
	if device.GraphicsQueueIndex != device.PresentQueueIndex {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeConcurrent
		swapchainCreateInfo.QueueFamilyIndexCount = 2
		swapchainCreateInfo.PQueueFamilyIndices = []uint32{
			uint32(device.GraphicsQueueIndex),
			uint32(device.PresentQueueIndex),
		}
	} else {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	if res := vk.CreateSwapchain(device.LogicalDevice, &swapchainCreateInfo, context.Allocator, &swapchain.Handle); res != vk.Success {
		err := resultError("create swapchain", res)
		core.LogError(err.Error())
		return nil, err
	}
	swapchain.Extent = metadata.Extent{Width: swapchainExtent.Width, Height: swapchainExtent.Height}

	var count uint32
	if res := vk.GetSwapchainImages(device.LogicalDevice, swapchain.Handle, &count, nil); res != vk.Success {
		swapchain.Destroy()
		return nil, resultError("get swapchain images", res)
	}
	handles := make([]vk.Image, count)
	if res := vk.GetSwapchainImages(device.LogicalDevice, swapchain.Handle, &count, handles); res != vk.Success {
		swapchain.Destroy()
		return nil, resultError("get swapchain images", res)
	}

	swapchain.Images = make([]*VulkanImage, 0, count)
	for _, handle := range handles {
		image, err := newSwapchainImage(context, handle, swapchain.ImageFormat.Format, swapchain.Extent)
		if err != nil {
			swapchain.Destroy()
			return nil, err
		}
		swapchain.Images = append(swapchain.Images, image)
	}

	core.LogInfo("Swapchain created: %dx%d, %d images.", swapchain.Extent.Width, swapchain.Extent.Height, count)
	return swapchain, nil
}

func (vs *VulkanSwapchain) Destroy() {
	for _, image := range vs.Images {
		image.destroy()
	}
	vs.Images = nil
	if vs.Handle != vk.NullSwapchain {
		vk.DestroySwapchain(vs.context.Device.LogicalDevice, vs.Handle, vs.context.Allocator)
		vs.Handle = vk.NullSwapchain
	}
}

// AcquireNextImageIndex signals semaphore once the image is ready. A
// suboptimal swapchain still hands out an image and signals semaphore, so
// only an out-of-date one reports core.ErrSwapchainOutOfDate.
func (vs *VulkanSwapchain) AcquireNextImageIndex(timeoutNs uint64, semaphore vk.Semaphore) (uint32, error) {
	var index uint32
	result := vk.AcquireNextImage(vs.context.Device.LogicalDevice, vs.Handle, timeoutNs, semaphore, vk.NullFence, &index)
	if result == vk.Suboptimal {
		return index, nil
	}
	if err := resultError("acquire swapchain image", result); err != nil {
		return 0, err
	}
	return index, nil
}

func (vs *VulkanSwapchain) Present(presentQueue vk.Queue, renderCompleteSemaphore vk.Semaphore, presentImageIndex uint32) error {
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{renderCompleteSemaphore},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{vs.Handle},
		PImageIndices:      []uint32{presentImageIndex},
	}
	return resultError("present swapchain image", vk.QueuePresent(presentQueue, &presentInfo))
}
