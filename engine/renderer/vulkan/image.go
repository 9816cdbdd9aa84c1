package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/talos/engine/core"
	"github.com/spaghettifunk/talos/engine/renderer/metadata"
)

type VulkanImage struct {
	context *VulkanContext
	Handle  vk.Image
	Memory  vk.DeviceMemory
	View    vk.ImageView

	format metadata.Format
	extent metadata.Extent
	layers uint32
	// Swapchain images are owned by the swapchain, which also destroys
	// their views.
	owned bool
}

func NewImage(context *VulkanContext, info metadata.ImageInfo) (*VulkanImage, error) {
	image := &VulkanImage{
		context: context,
		format:  info.Format,
		extent:  info.Extent,
		layers:  1,
		owned:   true,
	}
	var flags vk.ImageCreateFlags
	if info.Cube {
		image.layers = 6
		flags = vk.ImageCreateFlags(vk.ImageCreateCubeCompatibleBit)
	}

	imageCreateInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		Flags:     flags,
		ImageType: vk.ImageType2d,
		Format:    toVkFormat(info.Format),
		Extent: vk.Extent3D{
			Width:  info.Extent.Width,
			Height: info.Extent.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   image.layers,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         toVkImageUsage(info.Usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}

	device := context.Device.LogicalDevice
	if res := vk.CreateImage(device, &imageCreateInfo, context.Allocator, &image.Handle); res != vk.Success {
		err := resultError("create image", res)
		core.LogError(err.Error())
		return nil, err
	}

	var memoryRequirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(device, image.Handle, &memoryRequirements)
	memory, err := context.allocateMemory(memoryRequirements, vk.MemoryPropertyDeviceLocalBit)
	if err != nil {
		core.LogError("Failed to allocate memory for image: %s", err)
		image.Destroy()
		return nil, err
	}
	image.Memory = memory

	if res := vk.BindImageMemory(device, image.Handle, image.Memory, 0); res != vk.Success {
		image.Destroy()
		return nil, resultError("bind image memory", res)
	}

	if err := image.createView(toVkFormat(info.Format), info.Cube); err != nil {
		image.Destroy()
		return nil, err
	}
	return image, nil
}

// newSwapchainImage wraps an image owned by the swapchain and gives it a view.
func newSwapchainImage(context *VulkanContext, handle vk.Image, format vk.Format, extent metadata.Extent) (*VulkanImage, error) {
	image := &VulkanImage{
		context: context,
		Handle:  handle,
		format:  fromVkFormat(format),
		extent:  extent,
		layers:  1,
	}
	if err := image.createView(format, false); err != nil {
		return nil, err
	}
	return image, nil
}

func (vi *VulkanImage) createView(format vk.Format, cube bool) error {
	viewType := vk.ImageViewType2d
	if cube {
		viewType = vk.ImageViewTypeCube
	}
	viewCreateInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    vi.Handle,
		ViewType: viewType,
		Format:   format,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vi.subresourceRange(),
	}
	if res := vk.CreateImageView(vi.context.Device.LogicalDevice, &viewCreateInfo, vi.context.Allocator, &vi.View); res != vk.Success {
		err := resultError("create image view", res)
		core.LogError(err.Error())
		return err
	}
	return nil
}

func (vi *VulkanImage) subresourceRange() vk.ImageSubresourceRange {
	return vk.ImageSubresourceRange{
		AspectMask:     aspectOf(vi.format),
		BaseMipLevel:   0,
		LevelCount:     1,
		BaseArrayLayer: 0,
		LayerCount:     vi.layers,
	}
}

func (vi *VulkanImage) Format() metadata.Format { return vi.format }

func (vi *VulkanImage) Extent() metadata.Extent { return vi.extent }

func (vi *VulkanImage) Layers() uint32 { return vi.layers }

func (vi *VulkanImage) Destroy() {
	if !vi.owned {
		return
	}
	vi.destroy()
}

func (vi *VulkanImage) destroy() {
	device := vi.context.Device.LogicalDevice
	if vi.View != vk.NullImageView {
		vk.DestroyImageView(device, vi.View, vi.context.Allocator)
		vi.View = vk.NullImageView
	}
	if !vi.owned {
		return
	}
	if vi.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(device, vi.Memory, vi.context.Allocator)
		vi.Memory = vk.NullDeviceMemory
	}
	if vi.Handle != vk.NullImage {
		vk.DestroyImage(device, vi.Handle, vi.context.Allocator)
		vi.Handle = vk.NullImage
	}
}

func toVkImageUsage(usage metadata.ImageUsage) vk.ImageUsageFlags {
	var flags vk.ImageUsageFlagBits
	if usage&metadata.ImageUsageColorAttachment != 0 {
		flags |= vk.ImageUsageColorAttachmentBit
	}
	if usage&metadata.ImageUsageDepthAttachment != 0 {
		flags |= vk.ImageUsageDepthStencilAttachmentBit
	}
	if usage&metadata.ImageUsageSampled != 0 {
		flags |= vk.ImageUsageSampledBit
	}
	if usage&metadata.ImageUsageTransferDst != 0 {
		flags |= vk.ImageUsageTransferDstBit
	}
	return vk.ImageUsageFlags(flags)
}
