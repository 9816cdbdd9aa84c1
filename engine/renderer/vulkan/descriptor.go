package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/talos/engine/core"
	"github.com/spaghettifunk/talos/engine/renderer/metadata"
)

type VulkanDescriptorSetLayout struct {
	context  *VulkanContext
	Handle   vk.DescriptorSetLayout
	bindings []metadata.DescriptorBinding
}

func NewDescriptorSetLayout(context *VulkanContext, info metadata.DescriptorLayoutInfo) (*VulkanDescriptorSetLayout, error) {
	bindings := make([]vk.DescriptorSetLayoutBinding, len(info.Bindings))
	for i, b := range info.Bindings {
		bindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  toVkDescriptorType(b.Kind),
			DescriptorCount: 1,
			StageFlags:      toVkShaderStages(b.Stages),
		}
	}

	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	layout := &VulkanDescriptorSetLayout{
		context:  context,
		bindings: append([]metadata.DescriptorBinding(nil), info.Bindings...),
	}
	if res := vk.CreateDescriptorSetLayout(context.Device.LogicalDevice, &layoutInfo, context.Allocator, &layout.Handle); res != vk.Success {
		err := resultError("create descriptor set layout", res)
		core.LogError(err.Error())
		return nil, err
	}
	return layout, nil
}

func (l *VulkanDescriptorSetLayout) Bindings() []metadata.DescriptorBinding {
	return l.bindings
}

func (l *VulkanDescriptorSetLayout) Destroy() {
	if l.Handle != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(l.context.Device.LogicalDevice, l.Handle, l.context.Allocator)
		l.Handle = vk.NullDescriptorSetLayout
	}
}

/**
 * @brief A descriptor pool. Sets allocated from it are freed when the pool
 * is destroyed. Allocation is serialized because workers allocate texture
 * sets while the render loop allocates frame sets.
 */
type VulkanDescriptorPool struct {
	context *VulkanContext
	Handle  vk.DescriptorPool
}

func NewDescriptorPool(context *VulkanContext, info metadata.DescriptorPoolInfo) (*VulkanDescriptorPool, error) {
	sizes := make([]vk.DescriptorPoolSize, 0, len(info.Sizes))
	for kind, count := range info.Sizes {
		if count == 0 {
			continue
		}
		sizes = append(sizes, vk.DescriptorPoolSize{
			Type:            toVkDescriptorType(kind),
			DescriptorCount: count,
		})
	}

	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       info.MaxSets,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	pool := &VulkanDescriptorPool{context: context}
	if res := vk.CreateDescriptorPool(context.Device.LogicalDevice, &poolInfo, context.Allocator, &pool.Handle); res != vk.Success {
		err := resultError("create descriptor pool", res)
		core.LogError(err.Error())
		return nil, err
	}
	return pool, nil
}

func (p *VulkanDescriptorPool) Allocate(layout metadata.DescriptorLayout) (metadata.DescriptorSet, error) {
	vl, ok := layout.(*VulkanDescriptorSetLayout)
	if !ok {
		return nil, fmt.Errorf("descriptor layout %T does not belong to this backend", layout)
	}

	allocateInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     p.Handle,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{vl.Handle},
	}
	set := &VulkanDescriptorSet{context: p.context}
	err := p.context.Locks.SafeCall(DescriptorManagement, func() error {
		return resultError("allocate descriptor set", vk.AllocateDescriptorSets(p.context.Device.LogicalDevice, &allocateInfo, &set.Handle))
	})
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	return set, nil
}

func (p *VulkanDescriptorPool) Destroy() {
	if p.Handle != vk.NullDescriptorPool {
		vk.DestroyDescriptorPool(p.context.Device.LogicalDevice, p.Handle, p.context.Allocator)
		p.Handle = vk.NullDescriptorPool
	}
}

type VulkanDescriptorSet struct {
	context *VulkanContext
	Handle  vk.DescriptorSet
}

func (s *VulkanDescriptorSet) WriteBuffer(binding uint32, kind metadata.DescriptorKind, buffer metadata.Buffer) {
	vb := buffer.(*VulkanBuffer)
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          s.Handle,
		DstBinding:      binding,
		DescriptorCount: 1,
		DescriptorType:  toVkDescriptorType(kind),
		PBufferInfo: []vk.DescriptorBufferInfo{{
			Buffer: vb.Handle,
			Offset: 0,
			Range:  vk.DeviceSize(vb.Size()),
		}},
	}
	vk.UpdateDescriptorSets(s.context.Device.LogicalDevice, 1, []vk.WriteDescriptorSet{write}, 0, nil)
}

func (s *VulkanDescriptorSet) WriteImage(binding uint32, image metadata.Image, sampler metadata.Sampler) {
	vi := image.(*VulkanImage)
	vs := sampler.(*VulkanSampler)
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          s.Handle,
		DstBinding:      binding,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
		PImageInfo: []vk.DescriptorImageInfo{{
			ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
			ImageView:   vi.View,
			Sampler:     vs.Handle,
		}},
	}
	vk.UpdateDescriptorSets(s.context.Device.LogicalDevice, 1, []vk.WriteDescriptorSet{write}, 0, nil)
}
