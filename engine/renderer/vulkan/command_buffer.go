package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/talos/engine/core"
	"github.com/spaghettifunk/talos/engine/renderer/metadata"
)

type VulkanCommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY VulkanCommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_IN_RENDER_PASS
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_SUBMITTED
	COMMAND_BUFFER_STATE_NOT_ALLOCATED
)

/**
 * @brief A primary command buffer allocated from a pool it owns alone, so
 * workers can record uploads while the render loop records frames without
 * sharing a pool.
 */
type VulkanCommandBuffer struct {
	context *VulkanContext
	pool    vk.CommandPool
	Handle  vk.CommandBuffer
	// Command buffer state.
	State VulkanCommandBufferState
}

func NewVulkanCommandBuffer(context *VulkanContext) (*VulkanCommandBuffer, error) {
	v := &VulkanCommandBuffer{
		context: context,
		State:   COMMAND_BUFFER_STATE_NOT_ALLOCATED,
	}
	device := context.Device.LogicalDevice

	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: uint32(context.Device.GraphicsQueueIndex),
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	err := context.Locks.SafeCall(CommandPoolManagement, func() error {
		return resultError("create command pool", vk.CreateCommandPool(device, &poolCreateInfo, context.Allocator, &v.pool))
	})
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        v.pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	handles := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(device, &allocateInfo, handles); res != vk.Success {
		err := resultError("allocate command buffer", res)
		core.LogError(err.Error())
		v.Destroy()
		return nil, err
	}
	v.Handle = handles[0]
	v.State = COMMAND_BUFFER_STATE_READY
	return v, nil
}

func (v *VulkanCommandBuffer) Destroy() {
	device := v.context.Device.LogicalDevice
	if v.Handle != vk.NullCommandBuffer {
		vk.FreeCommandBuffers(device, v.pool, 1, []vk.CommandBuffer{v.Handle})
		v.Handle = vk.NullCommandBuffer
	}
	if v.pool != vk.NullCommandPool {
		_ = v.context.Locks.SafeCall(CommandPoolManagement, func() error {
			vk.DestroyCommandPool(device, v.pool, v.context.Allocator)
			return nil
		})
		v.pool = vk.NullCommandPool
	}
	v.State = COMMAND_BUFFER_STATE_NOT_ALLOCATED
}

func (v *VulkanCommandBuffer) Reset() error {
	if res := vk.ResetCommandBuffer(v.Handle, 0); res != vk.Success {
		err := resultError("reset command buffer", res)
		core.LogError(err.Error())
		return err
	}
	v.State = COMMAND_BUFFER_STATE_READY
	return nil
}

func (v *VulkanCommandBuffer) Begin(isSingleUse bool) error {
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if isSingleUse {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}

	if res := vk.BeginCommandBuffer(v.Handle, &beginInfo); res != vk.Success {
		err := resultError("begin command buffer", res)
		core.LogError(err.Error())
		return err
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING
	return nil
}

func (v *VulkanCommandBuffer) End() error {
	if res := vk.EndCommandBuffer(v.Handle); res != vk.Success {
		err := resultError("end command buffer", res)
		core.LogError(err.Error())
		return err
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING_ENDED
	return nil
}

func (v *VulkanCommandBuffer) UpdateSubmitted() {
	v.State = COMMAND_BUFFER_STATE_SUBMITTED
}

func (v *VulkanCommandBuffer) BeginRenderPass(pass metadata.Pass, framebuffer metadata.Framebuffer, extent metadata.Extent, clearColor [4]float32) {
	vp := pass.(*VulkanPass)
	vp.Renderpass.Begin(v, framebuffer.(*VulkanFramebuffer), extent, clearColor)

	vk.CmdSetViewport(v.Handle, 0, 1, []vk.Viewport{{
		X:        0,
		Y:        0,
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0.0,
		MaxDepth: 1.0,
	}})
	vk.CmdSetScissor(v.Handle, 0, 1, []vk.Rect2D{{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: vk.Extent2D{Width: extent.Width, Height: extent.Height},
	}})
}

func (v *VulkanCommandBuffer) EndRenderPass() {
	vk.CmdEndRenderPass(v.Handle)
	v.State = COMMAND_BUFFER_STATE_RECORDING
}

func (v *VulkanCommandBuffer) BindPipeline(pass metadata.Pass) {
	vp := pass.(*VulkanPass)
	vk.CmdBindPipeline(v.Handle, vk.PipelineBindPointGraphics, vp.Pipeline.Handle)
}

func (v *VulkanCommandBuffer) BindDescriptorSets(pass metadata.Pass, firstSet uint32, sets ...metadata.DescriptorSet) {
	if len(sets) == 0 {
		return
	}
	vp := pass.(*VulkanPass)
	handles := make([]vk.DescriptorSet, len(sets))
	for i, s := range sets {
		handles[i] = s.(*VulkanDescriptorSet).Handle
	}
	vk.CmdBindDescriptorSets(v.Handle, vk.PipelineBindPointGraphics, vp.Pipeline.PipelineLayout, firstSet, uint32(len(handles)), handles, 0, nil)
}

func (v *VulkanCommandBuffer) BindVertexBuffer(buffer metadata.Buffer) {
	vb := buffer.(*VulkanBuffer)
	vk.CmdBindVertexBuffers(v.Handle, 0, 1, []vk.Buffer{vb.Handle}, []vk.DeviceSize{0})
}

func (v *VulkanCommandBuffer) BindIndexBuffer(buffer metadata.Buffer) {
	vb := buffer.(*VulkanBuffer)
	vk.CmdBindIndexBuffer(v.Handle, vb.Handle, 0, vk.IndexTypeUint32)
}

func (v *VulkanCommandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	vk.CmdDraw(v.Handle, vertexCount, instanceCount, firstVertex, firstInstance)
}

func (v *VulkanCommandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	vk.CmdDrawIndexed(v.Handle, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}

// Transition records one pipeline barrier per transition. Access masks and
// stages are derived from the layouts on both sides.
func (v *VulkanCommandBuffer) Transition(transitions ...metadata.Transition) {
	for _, t := range transitions {
		image := t.Image.(*VulkanImage)
		oldLayout := toVkLayout(t.OldLayout)
		newLayout := toVkLayout(t.NewLayout)
		srcAccess, srcStage := layoutAccess(oldLayout)
		dstAccess, dstStage := layoutAccess(newLayout)
		if newLayout == vk.ImageLayoutPresentSrc {
			dstStage = vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit)
		}

		barrier := vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       srcAccess,
			DstAccessMask:       dstAccess,
			OldLayout:           oldLayout,
			NewLayout:           newLayout,
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               image.Handle,
			SubresourceRange:    image.subresourceRange(),
		}
		vk.CmdPipelineBarrier(v.Handle, srcStage, dstStage, 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
	}
}

func (v *VulkanCommandBuffer) CopyBuffer(src, dst metadata.Buffer, size uint64) {
	vk.CmdCopyBuffer(v.Handle, src.(*VulkanBuffer).Handle, dst.(*VulkanBuffer).Handle, 1, []vk.BufferCopy{{
		SrcOffset: 0,
		DstOffset: 0,
		Size:      vk.DeviceSize(size),
	}})
}

// CopyBufferToImage expects dst in the transfer destination layout and src
// holding the layers back to back.
func (v *VulkanCommandBuffer) CopyBufferToImage(src metadata.Buffer, dst metadata.Image) {
	image := dst.(*VulkanImage)
	extent := image.Extent()
	region := vk.BufferImageCopy{
		BufferOffset:      0,
		BufferRowLength:   0,
		BufferImageHeight: 0,
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			MipLevel:       0,
			BaseArrayLayer: 0,
			LayerCount:     image.Layers(),
		},
		ImageOffset: vk.Offset3D{X: 0, Y: 0, Z: 0},
		ImageExtent: vk.Extent3D{Width: extent.Width, Height: extent.Height, Depth: 1},
	}
	vk.CmdCopyBufferToImage(v.Handle, src.(*VulkanBuffer).Handle, image.Handle, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
}
