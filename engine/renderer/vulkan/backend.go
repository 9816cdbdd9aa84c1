package vulkan

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/talos/engine/core"
	"github.com/spaghettifunk/talos/engine/renderer"
	"github.com/spaghettifunk/talos/engine/renderer/metadata"
)

// Window is the part of the platform window the backend needs. A
// *glfw.Window satisfies it.
type Window interface {
	GetRequiredInstanceExtensions() []string
	CreateWindowSurface(instance interface{}, allocCallbacks unsafe.Pointer) (uintptr, error)
}

type Options struct {
	AppName string
	// Validation enables VK_LAYER_KHRONOS_validation and the debug report
	// callback.
	Validation bool
}

var errForeignHandle = errors.New("handle does not belong to the vulkan backend")

/**
 * @brief The goki/vulkan implementation of renderer.Backend. It owns the
 * instance, the surface, the logical device and the swapchain; every other
 * handle is owned by whoever created it.
 */
type Backend struct {
	context   *VulkanContext
	swapchain *VulkanSwapchain
	options   Options
	// debugReport is set once the debug report callback exists.
	debugReport bool
}

var _ renderer.Backend = (*Backend)(nil)

// New creates the instance, the surface of window and the logical device.
// glfw must be initialized before calling it.
func New(window Window, options Options) (*Backend, error) {
	b := &Backend{
		context: &VulkanContext{Locks: NewVulkanLockPool()},
		options: options,
	}

	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		err := errors.New("GetInstanceProcAddress is nil")
		core.LogError(err.Error())
		return nil, err
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		core.LogError("failed to initialize vk: %s", err)
		return nil, err
	}

	if err := b.createInstance(window.GetRequiredInstanceExtensions()); err != nil {
		b.Destroy()
		return nil, err
	}

	core.LogDebug("Creating Vulkan surface...")
	surface, err := window.CreateWindowSurface(b.context.Instance, nil)
	if err != nil {
		core.LogError("Vulkan surface creation failed: %s", err)
		b.Destroy()
		return nil, err
	}
	b.context.Surface = vk.SurfaceFromPointer(surface)
	core.LogDebug("Vulkan surface created.")

	if err := DeviceCreate(b.context); err != nil {
		core.LogError("Failed to create device!")
		b.Destroy()
		return nil, err
	}
	return b, nil
}

func (b *Backend) createInstance(windowExtensions []string) error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(b.options.AppName),
		PEngineName:        VulkanSafeString("Talos Engine"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	requiredExtensions := append([]string{"VK_KHR_surface"}, windowExtensions...)
	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}

	requiredLayers := []string{}
	if b.options.Validation {
		requiredExtensions = append(requiredExtensions, vk.ExtDebugReportExtensionName)
		requiredLayers = append(requiredLayers, "VK_LAYER_KHRONOS_validation")
		if err := checkValidationLayers(requiredLayers); err != nil {
			return err
		}
	}
	core.LogDebug("Required extensions: %v", requiredExtensions)

	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)
	createInfo.EnabledLayerCount = uint32(len(requiredLayers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(requiredLayers)

	if res := vk.CreateInstance(&createInfo, b.context.Allocator, &b.context.Instance); res != vk.Success {
		err := fmt.Errorf("failed in creating the Vulkan Instance with error `%s`", VulkanResultString(res))
		core.LogError(err.Error())
		return err
	}
	if err := vk.InitInstance(b.context.Instance); err != nil {
		core.LogError(err.Error())
		return err
	}
	core.LogInfo("Vulkan Instance created.")

	if b.options.Validation {
		core.LogDebug("Creating Vulkan debugger...")
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if err := vk.Error(vk.CreateDebugReportCallback(b.context.Instance, &debugCreateInfo, nil, &dbg)); err != nil {
			core.LogError("vk.CreateDebugReportCallback failed with %s", err)
			return err
		}
		b.context.debugMessenger = dbg
		b.debugReport = true
		core.LogDebug("Vulkan debugger created.")
	}
	return nil
}

func checkValidationLayers(required []string) error {
	core.LogInfo("Validation layers enabled. Enumerating...")
	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success {
		return resultError("enumerate instance layers", res)
	}
	available := make([]vk.LayerProperties, count)
	if res := vk.EnumerateInstanceLayerProperties(&count, available); res != vk.Success {
		return resultError("enumerate instance layers", res)
	}

	for _, name := range required {
		found := false
		for i := range available {
			available[i].Deref()
			if vk.ToString(available[i].LayerName[:]) == name {
				found = true
				break
			}
		}
		if !found {
			err := fmt.Errorf("required validation layer is missing: %s", name)
			core.LogError(err.Error())
			return err
		}
	}
	core.LogInfo("All required validation layers are present.")
	return nil
}

// Destroy releases the swapchain, the device, the surface and the instance.
// Every other handle must be destroyed first.
func (b *Backend) Destroy() {
	if b.context.Device != nil && b.context.Device.LogicalDevice != nil {
		_ = b.WaitIdle()
	}
	b.DestroySwapchain()
	DeviceDestroy(b.context)

	if b.context.Surface != vk.NullSurface {
		vk.DestroySurface(b.context.Instance, b.context.Surface, b.context.Allocator)
		b.context.Surface = vk.NullSurface
	}
	if b.debugReport {
		vk.DestroyDebugReportCallback(b.context.Instance, b.context.debugMessenger, b.context.Allocator)
		b.debugReport = false
	}
	if b.context.Instance != nil {
		vk.DestroyInstance(b.context.Instance, b.context.Allocator)
		b.context.Instance = nil
	}
	core.LogInfo("Vulkan backend destroyed.")
}

func (b *Backend) CreateSwapchain(width, height uint32) (renderer.SwapchainInfo, error) {
	var info renderer.SwapchainInfo
	err := b.context.Locks.SafeCall(SwapchainManagement, func() error {
		if b.swapchain != nil {
			return errors.New("a swapchain already exists")
		}
		sc, err := SwapchainCreate(b.context, width, height)
		if err != nil {
			return err
		}
		b.swapchain = sc

		info.Format = fromVkFormat(sc.ImageFormat.Format)
		info.Extent = sc.Extent
		info.Images = make([]metadata.Image, len(sc.Images))
		for i, image := range sc.Images {
			info.Images[i] = image
		}
		return nil
	})
	return info, err
}

func (b *Backend) DestroySwapchain() {
	_ = b.context.Locks.SafeCall(SwapchainManagement, func() error {
		if b.swapchain != nil {
			b.swapchain.Destroy()
			b.swapchain = nil
		}
		return nil
	})
}

func (b *Backend) graphicsFamily() uint32 {
	return uint32(b.context.Device.GraphicsQueueIndex)
}

func (b *Backend) presentFamily() uint32 {
	return uint32(b.context.Device.PresentQueueIndex)
}

// WaitIdle holds every queue lock, as vkDeviceWaitIdle requires.
func (b *Backend) WaitIdle() error {
	wait := func() error {
		return resultError("device wait idle", vk.DeviceWaitIdle(b.context.Device.LogicalDevice))
	}
	return b.context.Locks.SafeQueueCall(b.graphicsFamily(), func() error {
		if b.presentFamily() == b.graphicsFamily() {
			return wait()
		}
		return b.context.Locks.SafeQueueCall(b.presentFamily(), wait)
	})
}

func (b *Backend) AcquireNextImage(signal metadata.Semaphore) (uint32, error) {
	if b.swapchain == nil {
		return 0, fmt.Errorf("acquire swapchain image: %w", core.ErrSwapchainOutOfDate)
	}
	semaphore, err := semaphoreHandle(signal)
	if err != nil {
		return 0, err
	}
	return b.swapchain.AcquireNextImageIndex(math.MaxUint64, semaphore)
}

func (b *Backend) Present(imageIndex uint32, wait metadata.Semaphore) error {
	if b.swapchain == nil {
		return fmt.Errorf("present swapchain image: %w", core.ErrSwapchainOutOfDate)
	}
	semaphore, err := semaphoreHandle(wait)
	if err != nil {
		return err
	}
	return b.context.Locks.SafeQueueCall(b.presentFamily(), func() error {
		return b.swapchain.Present(b.context.Device.PresentQueue, semaphore, imageIndex)
	})
}

func (b *Backend) Submit(cmd metadata.CommandBuffer, wait, signal metadata.Semaphore, fence metadata.Fence) error {
	submitInfo := vk.SubmitInfo{
		SType: vk.StructureTypeSubmitInfo,
	}

	var vcmd *VulkanCommandBuffer
	if cmd != nil {
		var ok bool
		if vcmd, ok = cmd.(*VulkanCommandBuffer); !ok {
			return errForeignHandle
		}
		submitInfo.CommandBufferCount = 1
		submitInfo.PCommandBuffers = []vk.CommandBuffer{vcmd.Handle}
	}
	if wait != nil {
		semaphore, err := semaphoreHandle(wait)
		if err != nil {
			return err
		}
		submitInfo.WaitSemaphoreCount = 1
		submitInfo.PWaitSemaphores = []vk.Semaphore{semaphore}
		submitInfo.PWaitDstStageMask = []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)}
	}
	if signal != nil {
		semaphore, err := semaphoreHandle(signal)
		if err != nil {
			return err
		}
		submitInfo.SignalSemaphoreCount = 1
		submitInfo.PSignalSemaphores = []vk.Semaphore{semaphore}
	}

	fenceHandle := vk.NullFence
	if fence != nil {
		vf, ok := fence.(*VulkanFence)
		if !ok {
			return errForeignHandle
		}
		fenceHandle = vf.Handle
	}

	err := b.context.Locks.SafeQueueCall(b.graphicsFamily(), func() error {
		return resultError("queue submit", vk.QueueSubmit(b.context.Device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, fenceHandle))
	})
	if err != nil {
		core.LogError(err.Error())
		return err
	}
	if vcmd != nil {
		vcmd.UpdateSubmitted()
	}
	return nil
}

// SubmitWait submits cmd and waits for the graphics queue to drain, the way
// single use upload buffers are finished.
func (b *Backend) SubmitWait(cmd metadata.CommandBuffer) error {
	vcmd, ok := cmd.(*VulkanCommandBuffer)
	if !ok {
		return errForeignHandle
	}
	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{vcmd.Handle},
	}
	queue := b.context.Device.GraphicsQueue
	err := b.context.Locks.SafeQueueCall(b.graphicsFamily(), func() error {
		if err := resultError("queue submit", vk.QueueSubmit(queue, 1, []vk.SubmitInfo{submitInfo}, vk.NullFence)); err != nil {
			return err
		}
		return resultError("queue wait idle", vk.QueueWaitIdle(queue))
	})
	if err != nil {
		core.LogError(err.Error())
		return err
	}
	vcmd.State = COMMAND_BUFFER_STATE_READY
	return nil
}

func (b *Backend) CreateFence(signaled bool) (metadata.Fence, error) {
	return asHandle[metadata.Fence](NewFence(b.context, signaled))
}

func (b *Backend) CreateSemaphore() (metadata.Semaphore, error) {
	return asHandle[metadata.Semaphore](NewSemaphore(b.context))
}

func (b *Backend) CreateImage(info metadata.ImageInfo) (metadata.Image, error) {
	return asHandle[metadata.Image](NewImage(b.context, info))
}

func (b *Backend) CreateBuffer(info metadata.BufferInfo) (metadata.Buffer, error) {
	return asHandle[metadata.Buffer](NewBuffer(b.context, info))
}

func (b *Backend) CreateCommandBuffer() (metadata.CommandBuffer, error) {
	return asHandle[metadata.CommandBuffer](NewVulkanCommandBuffer(b.context))
}

func (b *Backend) CreateDescriptorLayout(info metadata.DescriptorLayoutInfo) (metadata.DescriptorLayout, error) {
	return asHandle[metadata.DescriptorLayout](NewDescriptorSetLayout(b.context, info))
}

func (b *Backend) CreateDescriptorPool(info metadata.DescriptorPoolInfo) (metadata.DescriptorPool, error) {
	return asHandle[metadata.DescriptorPool](NewDescriptorPool(b.context, info))
}

func (b *Backend) CreateSampler(cube bool) (metadata.Sampler, error) {
	var sampler *VulkanSampler
	err := b.context.Locks.SafeCall(SamplerManagement, func() error {
		var err error
		sampler, err = NewSampler(b.context, cube)
		return err
	})
	return asHandle[metadata.Sampler](sampler, err)
}

func (b *Backend) CreateShaderModule(path string) (metadata.ShaderModule, error) {
	return asHandle[metadata.ShaderModule](NewShaderModule(b.context, path))
}

func (b *Backend) CreatePass(info metadata.PipelineInfo) (metadata.Pass, error) {
	return asHandle[metadata.Pass](NewPass(b.context, info))
}

func (b *Backend) CreateFramebuffer(pass metadata.Pass, attachments []metadata.Image, extent metadata.Extent) (metadata.Framebuffer, error) {
	vp, ok := pass.(*VulkanPass)
	if !ok {
		return nil, errForeignHandle
	}
	return asHandle[metadata.Framebuffer](FramebufferCreate(b.context, vp.Renderpass, extent, attachments))
}

func (b *Backend) DepthFormat() metadata.Format {
	return fromVkFormat(b.context.Device.DepthFormat)
}

// asHandle keeps a failed constructor from leaking a typed nil pointer into a
// non-nil interface.
func asHandle[I any, H any](h H, err error) (I, error) {
	var zero I
	if err != nil {
		return zero, err
	}
	return any(h).(I), nil
}

func semaphoreHandle(s metadata.Semaphore) (vk.Semaphore, error) {
	if s == nil {
		return vk.NullSemaphore, nil
	}
	vs, ok := s.(*VulkanSemaphore)
	if !ok {
		return vk.NullSemaphore, errForeignHandle
	}
	return vs.Handle, nil
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("INFORMATION: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
