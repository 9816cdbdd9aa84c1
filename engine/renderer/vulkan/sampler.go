package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/talos/engine/core"
)

type VulkanSampler struct {
	context *VulkanContext
	Handle  vk.Sampler
}

// NewSampler creates a linear sampler. Cube samplers clamp to the edge so
// the seams between faces do not bleed.
func NewSampler(context *VulkanContext, cube bool) (*VulkanSampler, error) {
	addressMode := vk.SamplerAddressModeRepeat
	if cube {
		addressMode = vk.SamplerAddressModeClampToEdge
	}

	samplerInfo := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.FilterLinear,
		MinFilter:               vk.FilterLinear,
		AddressModeU:            addressMode,
		AddressModeV:            addressMode,
		AddressModeW:            addressMode,
		AnisotropyEnable:        vk.False,
		MaxAnisotropy:           1,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MipmapMode:              vk.SamplerMipmapModeLinear,
	}
	if context.Device.Features.SamplerAnisotropy == vk.True {
		samplerInfo.AnisotropyEnable = vk.True
		samplerInfo.MaxAnisotropy = 16
	}

	sampler := &VulkanSampler{context: context}
	if res := vk.CreateSampler(context.Device.LogicalDevice, &samplerInfo, context.Allocator, &sampler.Handle); res != vk.Success {
		err := resultError("create sampler", res)
		core.LogError(err.Error())
		return nil, err
	}
	return sampler, nil
}

func (s *VulkanSampler) Destroy() {
	if s.Handle != vk.NullSampler {
		vk.DestroySampler(s.context.Device.LogicalDevice, s.Handle, s.context.Allocator)
		s.Handle = vk.NullSampler
	}
}
