package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/talos/engine/core"
	"github.com/spaghettifunk/talos/engine/renderer/metadata"
)

/**
 * @brief A device buffer with its own allocation. Host-visible buffers are
 * mapped once at creation and stay mapped until Destroy.
 */
type VulkanBuffer struct {
	context *VulkanContext
	Handle  vk.Buffer
	Memory  vk.DeviceMemory
	size    uint64
	mapped  []byte
}

func NewBuffer(context *VulkanContext, info metadata.BufferInfo) (*VulkanBuffer, error) {
	buffer := &VulkanBuffer{context: context, size: info.Size}
	device := context.Device.LogicalDevice

	bufferCreateInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(info.Size),
		Usage:       toVkBufferUsage(info.Usage),
		SharingMode: vk.SharingModeExclusive,
	}
	if res := vk.CreateBuffer(device, &bufferCreateInfo, context.Allocator, &buffer.Handle); res != vk.Success {
		err := resultError("create buffer", res)
		core.LogError(err.Error())
		return nil, err
	}

	properties := vk.MemoryPropertyDeviceLocalBit
	if info.HostVisible {
		properties = vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit
	}

	var memoryRequirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(device, buffer.Handle, &memoryRequirements)
	memory, err := context.allocateMemory(memoryRequirements, properties)
	if err != nil {
		core.LogError("Unable to create vulkan buffer because the required memory type index was not found: %s", err)
		buffer.Destroy()
		return nil, err
	}
	buffer.Memory = memory

	if res := vk.BindBufferMemory(device, buffer.Handle, buffer.Memory, 0); res != vk.Success {
		buffer.Destroy()
		return nil, resultError("bind buffer memory", res)
	}

	if info.HostVisible {
		var data unsafe.Pointer
		if res := vk.MapMemory(device, buffer.Memory, 0, vk.DeviceSize(info.Size), 0, &data); res != vk.Success {
			buffer.Destroy()
			return nil, resultError("map buffer memory", res)
		}
		buffer.mapped = unsafe.Slice((*byte)(data), info.Size)
	}
	return buffer, nil
}

func (vb *VulkanBuffer) Size() uint64 { return vb.size }

func (vb *VulkanBuffer) Bytes() []byte { return vb.mapped }

func (vb *VulkanBuffer) Destroy() {
	device := vb.context.Device.LogicalDevice
	if vb.mapped != nil {
		vk.UnmapMemory(device, vb.Memory)
		vb.mapped = nil
	}
	if vb.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(device, vb.Memory, vb.context.Allocator)
		vb.Memory = vk.NullDeviceMemory
	}
	if vb.Handle != vk.NullBuffer {
		vk.DestroyBuffer(device, vb.Handle, vb.context.Allocator)
		vb.Handle = vk.NullBuffer
	}
}

func toVkBufferUsage(usage metadata.BufferUsage) vk.BufferUsageFlags {
	var flags vk.BufferUsageFlagBits
	if usage&metadata.BufferUsageVertex != 0 {
		flags |= vk.BufferUsageVertexBufferBit
	}
	if usage&metadata.BufferUsageIndex != 0 {
		flags |= vk.BufferUsageIndexBufferBit
	}
	if usage&metadata.BufferUsageUniform != 0 {
		flags |= vk.BufferUsageUniformBufferBit
	}
	if usage&metadata.BufferUsageStorage != 0 {
		flags |= vk.BufferUsageStorageBufferBit
	}
	if usage&metadata.BufferUsageTransferSrc != 0 {
		flags |= vk.BufferUsageTransferSrcBit
	}
	if usage&metadata.BufferUsageTransferDst != 0 {
		flags |= vk.BufferUsageTransferDstBit
	}
	return vk.BufferUsageFlags(flags)
}
