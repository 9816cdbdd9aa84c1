package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/talos/engine/renderer/metadata"
)

var formats = map[metadata.Format]vk.Format{
	metadata.FormatUndefined:          vk.FormatUndefined,
	metadata.FormatB8G8R8A8Unorm:      vk.FormatB8g8r8a8Unorm,
	metadata.FormatB8G8R8A8Srgb:       vk.FormatB8g8r8a8Srgb,
	metadata.FormatR8G8B8A8Unorm:      vk.FormatR8g8b8a8Unorm,
	metadata.FormatR8G8B8A8Srgb:       vk.FormatR8g8b8a8Srgb,
	metadata.FormatR16G16B16A16Sfloat: vk.FormatR16g16b16a16Sfloat,
	metadata.FormatD32Sfloat:          vk.FormatD32Sfloat,
	metadata.FormatD24UnormS8Uint:     vk.FormatD24UnormS8Uint,
}

func toVkFormat(f metadata.Format) vk.Format {
	return formats[f]
}

func fromVkFormat(f vk.Format) metadata.Format {
	for mf, vf := range formats {
		if vf == f {
			return mf
		}
	}
	return metadata.FormatUndefined
}

func toVkLayout(l metadata.ImageLayout) vk.ImageLayout {
	switch l {
	case metadata.ImageLayoutColorAttachmentOptimal:
		return vk.ImageLayoutColorAttachmentOptimal
	case metadata.ImageLayoutDepthStencilAttachmentOptimal:
		return vk.ImageLayoutDepthStencilAttachmentOptimal
	case metadata.ImageLayoutShaderReadOnlyOptimal:
		return vk.ImageLayoutShaderReadOnlyOptimal
	case metadata.ImageLayoutTransferDstOptimal:
		return vk.ImageLayoutTransferDstOptimal
	case metadata.ImageLayoutPresentSrc:
		return vk.ImageLayoutPresentSrc
	}
	return vk.ImageLayoutUndefined
}

func toVkLoadOp(op metadata.LoadOp) vk.AttachmentLoadOp {
	switch op {
	case metadata.LoadOpLoad:
		return vk.AttachmentLoadOpLoad
	case metadata.LoadOpClear:
		return vk.AttachmentLoadOpClear
	}
	return vk.AttachmentLoadOpDontCare
}

func toVkStoreOp(op metadata.StoreOp) vk.AttachmentStoreOp {
	if op == metadata.StoreOpDontCare {
		return vk.AttachmentStoreOpDontCare
	}
	return vk.AttachmentStoreOpStore
}

func toVkDescriptorType(kind metadata.DescriptorKind) vk.DescriptorType {
	switch kind {
	case metadata.DescriptorStorageBuffer:
		return vk.DescriptorTypeStorageBuffer
	case metadata.DescriptorCombinedImageSampler:
		return vk.DescriptorTypeCombinedImageSampler
	}
	return vk.DescriptorTypeUniformBuffer
}

func toVkShaderStages(stages metadata.ShaderStage) vk.ShaderStageFlags {
	var flags vk.ShaderStageFlagBits
	if stages&metadata.ShaderStageVertex != 0 {
		flags |= vk.ShaderStageVertexBit
	}
	if stages&metadata.ShaderStageFragment != 0 {
		flags |= vk.ShaderStageFragmentBit
	}
	return vk.ShaderStageFlags(flags)
}

func aspectOf(f metadata.Format) vk.ImageAspectFlags {
	if !f.IsDepth() {
		return vk.ImageAspectFlags(vk.ImageAspectColorBit)
	}
	aspect := vk.ImageAspectDepthBit
	if f.HasStencil() {
		aspect |= vk.ImageAspectStencilBit
	}
	return vk.ImageAspectFlags(aspect)
}

// layoutAccess returns the access mask and pipeline stage that own an image
// in layout.
func layoutAccess(l vk.ImageLayout) (vk.AccessFlags, vk.PipelineStageFlags) {
	switch l {
	case vk.ImageLayoutColorAttachmentOptimal:
		return vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit),
			vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
	case vk.ImageLayoutDepthStencilAttachmentOptimal:
		return vk.AccessFlags(vk.AccessDepthStencilAttachmentReadBit | vk.AccessDepthStencilAttachmentWriteBit),
			vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit | vk.PipelineStageLateFragmentTestsBit)
	case vk.ImageLayoutShaderReadOnlyOptimal:
		return vk.AccessFlags(vk.AccessShaderReadBit), vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit)
	case vk.ImageLayoutTransferDstOptimal:
		return vk.AccessFlags(vk.AccessTransferWriteBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case vk.ImageLayoutPresentSrc:
		return 0, vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
	}
	return 0, vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
}
