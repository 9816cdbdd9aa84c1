package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/talos/engine/core"
	"github.com/spaghettifunk/talos/engine/renderer/metadata"
)

type VulkanRenderpass struct {
	context *VulkanContext
	Handle  vk.RenderPass
	// ClearValues holds one entry per attachment. Color entries are filled
	// at begin time, the depth entry is fixed.
	ClearValues []vk.ClearValue
	colorCount  int
	hasDepth    bool
}

// RenderpassCreate builds a single-subpass render pass from attachments,
// whose depth attachment, if any, is last.
func RenderpassCreate(context *VulkanContext, attachments []metadata.AttachmentInfo, hasDepth bool) (*VulkanRenderpass, error) {
	outRenderpass := &VulkanRenderpass{
		context:     context,
		hasDepth:    hasDepth,
		ClearValues: make([]vk.ClearValue, len(attachments)),
	}

	attachmentDescriptions := make([]vk.AttachmentDescription, len(attachments))
	colorAttachmentReferences := []vk.AttachmentReference{}
	var depthAttachmentReference *vk.AttachmentReference

	for i, a := range attachments {
		attachmentDescriptions[i] = vk.AttachmentDescription{
			Format:         toVkFormat(a.Format),
			Samples:        vk.SampleCount1Bit,
			LoadOp:         toVkLoadOp(a.LoadOp),
			StoreOp:        toVkStoreOp(a.StoreOp),
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  toVkLayout(a.InitialLayout),
			FinalLayout:    toVkLayout(a.FinalLayout),
		}

		if hasDepth && i == len(attachments)-1 {
			depthAttachmentReference = &vk.AttachmentReference{
				Attachment: uint32(i),
				Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
			}
			outRenderpass.ClearValues[i] = vk.NewClearDepthStencil(1.0, 0)
			continue
		}
		colorAttachmentReferences = append(colorAttachmentReferences, vk.AttachmentReference{
			Attachment: uint32(i),
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		})
	}
	outRenderpass.colorCount = len(colorAttachmentReferences)

	subpass := vk.SubpassDescription{
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		ColorAttachmentCount:    uint32(len(colorAttachmentReferences)),
		PColorAttachments:       colorAttachmentReferences,
		PDepthStencilAttachment: depthAttachmentReference,
	}

	attachmentStages := vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit | vk.PipelineStageLateFragmentTestsBit)
	attachmentAccess := vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit |
		vk.AccessDepthStencilAttachmentReadBit | vk.AccessDepthStencilAttachmentWriteBit)

	dependencies := []vk.SubpassDependency{
		{
			// Wait for earlier writes to the same attachments.
			SrcSubpass:    vk.SubpassExternal,
			DstSubpass:    0,
			SrcStageMask:  attachmentStages,
			SrcAccessMask: 0,
			DstStageMask:  attachmentStages,
			DstAccessMask: attachmentAccess,
		},
		{
			// Make the results visible to later passes sampling them.
			SrcSubpass:    0,
			DstSubpass:    vk.SubpassExternal,
			SrcStageMask:  attachmentStages,
			SrcAccessMask: attachmentAccess,
			DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
			DstAccessMask: vk.AccessFlags(vk.AccessShaderReadBit),
		},
	}

	renderpassCreateInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachmentDescriptions)),
		PAttachments:    attachmentDescriptions,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: uint32(len(dependencies)),
		PDependencies:   dependencies,
	}

	if res := vk.CreateRenderPass(context.Device.LogicalDevice, &renderpassCreateInfo, context.Allocator, &outRenderpass.Handle); res != vk.Success {
		err := resultError("create render pass", res)
		core.LogError(err.Error())
		return nil, err
	}
	return outRenderpass, nil
}

func (vr *VulkanRenderpass) Destroy() {
	if vr.Handle != vk.NullRenderPass {
		vk.DestroyRenderPass(vr.context.Device.LogicalDevice, vr.Handle, vr.context.Allocator)
		vr.Handle = vk.NullRenderPass
	}
}

func (vr *VulkanRenderpass) Begin(commandBuffer *VulkanCommandBuffer, framebuffer *VulkanFramebuffer, extent metadata.Extent, clearColor [4]float32) {
	for i := 0; i < vr.colorCount; i++ {
		vr.ClearValues[i] = vk.NewClearValue(clearColor[:])
	}

	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  vr.Handle,
		Framebuffer: framebuffer.Handle,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: vk.Extent2D{
				Width:  extent.Width,
				Height: extent.Height,
			},
		},
		ClearValueCount: uint32(len(vr.ClearValues)),
		PClearValues:    vr.ClearValues,
	}

	vk.CmdBeginRenderPass(commandBuffer.Handle, &beginInfo, vk.SubpassContentsInline)
	commandBuffer.State = COMMAND_BUFFER_STATE_IN_RENDER_PASS
}

func (vr *VulkanRenderpass) End(commandBuffer *VulkanCommandBuffer) {
	vk.CmdEndRenderPass(commandBuffer.Handle)
	commandBuffer.State = COMMAND_BUFFER_STATE_RECORDING
}
