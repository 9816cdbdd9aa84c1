package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/talos/engine/assets/loaders"
	"github.com/spaghettifunk/talos/engine/core"
)

// VulkanShaderModule is one compiled SPIR-V stage. Pipelines keep no
// reference to it, so it is destroyed right after pipeline creation.
type VulkanShaderModule struct {
	context *VulkanContext
	Handle  vk.ShaderModule
	Path    string
}

func NewShaderModule(context *VulkanContext, path string) (*VulkanShaderModule, error) {
	code, err := loaders.LoadSPIRV(path)
	if err != nil {
		err = fmt.Errorf("unable to read shader module %s: %w", path, err)
		core.LogError(err.Error())
		return nil, err
	}

	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code) * 4),
		PCode:    code,
	}
	module := &VulkanShaderModule{context: context, Path: path}
	if res := vk.CreateShaderModule(context.Device.LogicalDevice, &createInfo, context.Allocator, &module.Handle); res != vk.Success {
		err := resultError(fmt.Sprintf("create shader module %s", path), res)
		core.LogError(err.Error())
		return nil, err
	}
	return module, nil
}

func (m *VulkanShaderModule) stageInfo(stage vk.ShaderStageFlagBits) vk.PipelineShaderStageCreateInfo {
	return vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  stage,
		Module: m.Handle,
		PName:  VulkanSafeString("main"),
	}
}

func (m *VulkanShaderModule) Destroy() {
	if m.Handle != vk.NullShaderModule {
		vk.DestroyShaderModule(m.context.Device.LogicalDevice, m.Handle, m.context.Allocator)
		m.Handle = vk.NullShaderModule
	}
}
