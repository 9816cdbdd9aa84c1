package renderer

import (
	"github.com/spaghettifunk/talos/engine/config"
	"github.com/spaghettifunk/talos/engine/core"
	"github.com/spaghettifunk/talos/engine/renderer/metadata"
)

// Descriptor set indices the draw loop binds textures at.
const (
	skyCubemapSet      uint32 = 1
	forwardTextureSet  uint32 = 2
	prepassTextureSet  uint32 = 1
	deferredGBufferSet uint32 = 1
)

/**
 * @brief Holds the four render passes, their attachment targets and the
 * descriptor layouts of each pass. Layouts are created once and never change.
 */
type PassRegistry struct {
	passes  [metadata.RenderPassTypeCount]metadata.Pass
	targets [metadata.RenderPassTypeCount][]metadata.Target
	// frameLayouts are the sets allocated once per frame resource set.
	frameLayouts  [metadata.RenderPassTypeCount][]metadata.DescriptorLayout
	samplerLayout metadata.DescriptorLayout
	gbufferLayout metadata.DescriptorLayout
	owned         []metadata.DescriptorLayout

	builder *PipelineBuilder
}

func NewPassRegistry() *PassRegistry {
	return &PassRegistry{builder: NewPipelineBuilder()}
}

var (
	cameraAndModels = metadata.DescriptorLayoutInfo{Bindings: []metadata.DescriptorBinding{
		{Binding: 0, Kind: metadata.DescriptorUniformBuffer, Stages: metadata.ShaderStageVertex},
		{Binding: 1, Kind: metadata.DescriptorStorageBuffer, Stages: metadata.ShaderStageVertex},
	}}
	cameraVectors = metadata.DescriptorLayoutInfo{Bindings: []metadata.DescriptorBinding{
		{Binding: 0, Kind: metadata.DescriptorUniformBuffer, Stages: metadata.ShaderStageVertex},
	}}
	lights = metadata.DescriptorLayoutInfo{Bindings: []metadata.DescriptorBinding{
		{Binding: 0, Kind: metadata.DescriptorUniformBuffer, Stages: metadata.ShaderStageFragment},
	}}
	cameraAndLights = metadata.DescriptorLayoutInfo{Bindings: []metadata.DescriptorBinding{
		{Binding: 0, Kind: metadata.DescriptorUniformBuffer, Stages: metadata.ShaderStageFragment},
		{Binding: 1, Kind: metadata.DescriptorUniformBuffer, Stages: metadata.ShaderStageFragment},
	}}
	singleSampler = metadata.DescriptorLayoutInfo{Bindings: []metadata.DescriptorBinding{
		{Binding: 0, Kind: metadata.DescriptorCombinedImageSampler, Stages: metadata.ShaderStageFragment},
	}}
	gbufferSamplers = metadata.DescriptorLayoutInfo{Bindings: []metadata.DescriptorBinding{
		{Binding: 0, Kind: metadata.DescriptorCombinedImageSampler, Stages: metadata.ShaderStageFragment},
		{Binding: 1, Kind: metadata.DescriptorCombinedImageSampler, Stages: metadata.ShaderStageFragment},
		{Binding: 2, Kind: metadata.DescriptorCombinedImageSampler, Stages: metadata.ShaderStageFragment},
	}}
)

// Build creates every pass from its configuration. Any failure is a setup
// error; the failed pass stays nil.
func (r *PassRegistry) Build(backend Backend, passes *config.PassesConfig, swapchainFormat metadata.Format) error {
	if err := r.createLayouts(backend); err != nil {
		core.LogError(err.Error())
		return core.NewError(core.KindSetup, "create descriptor layouts", err)
	}

	for _, t := range metadata.RenderPassTypes() {
		pass, targets, err := r.buildPass(backend, t, passes.Get(t), swapchainFormat)
		r.builder.Reset()
		if err != nil {
			core.LogError("failed to build %s pass: %s", t, err.Error())
			return core.NewError(core.KindSetup, "build "+t.String()+" pass", err)
		}
		r.passes[t] = pass
		r.targets[t] = targets
		core.LogDebug("%s pass created with %d attachments", t, len(targets))
	}
	return nil
}

func (r *PassRegistry) createLayouts(backend Backend) error {
	create := func(info metadata.DescriptorLayoutInfo) (metadata.DescriptorLayout, error) {
		l, err := backend.CreateDescriptorLayout(info)
		if err != nil {
			return nil, err
		}
		r.owned = append(r.owned, l)
		return l, nil
	}

	var err error
	if r.samplerLayout, err = create(singleSampler); err != nil {
		return err
	}
	if r.gbufferLayout, err = create(gbufferSamplers); err != nil {
		return err
	}
	families := [metadata.RenderPassTypeCount][]metadata.DescriptorLayoutInfo{
		metadata.RenderPassSky:      {cameraVectors},
		metadata.RenderPassForward:  {cameraAndModels, lights},
		metadata.RenderPassPrepass:  {cameraAndModels},
		metadata.RenderPassDeferred: {cameraAndLights},
	}
	for t, infos := range families {
		r.frameLayouts[t] = nil
		for _, info := range infos {
			l, err := create(info)
			if err != nil {
				return err
			}
			r.frameLayouts[t] = append(r.frameLayouts[t], l)
		}
	}
	return nil
}

// pipelineLayouts lists every set a pass's pipeline layout declares, in set order.
func (r *PassRegistry) pipelineLayouts(t metadata.RenderPassType) []metadata.DescriptorLayout {
	layouts := append([]metadata.DescriptorLayout(nil), r.frameLayouts[t]...)
	switch t {
	case metadata.RenderPassSky, metadata.RenderPassForward, metadata.RenderPassPrepass:
		layouts = append(layouts, r.samplerLayout)
	case metadata.RenderPassDeferred:
		layouts = append(layouts, r.gbufferLayout)
	}
	return layouts
}

func (r *PassRegistry) buildPass(backend Backend, t metadata.RenderPassType, cfg *config.PassConfig, swapchainFormat metadata.Format) (metadata.Pass, []metadata.Target, error) {
	colors, err := cfg.ColorTargets()
	if err != nil {
		return nil, nil, err
	}
	depth, hasDepth, err := cfg.DepthTarget()
	if err != nil {
		return nil, nil, err
	}

	vert, err := backend.CreateShaderModule(cfg.VertexShader)
	if err != nil {
		return nil, nil, err
	}
	frag, err := backend.CreateShaderModule(cfg.FragmentShader)
	if err != nil {
		vert.Destroy()
		return nil, nil, err
	}
	r.builder.SetShaders(vert, frag)

	if cfg.VertexInput {
		r.builder.SetVertexFormat(metadata.StandardVertexFormat)
	}
	r.builder.SetOverwriteColor(cfg.OverwriteColor)
	r.builder.SetDepthTest(cfg.DepthTest)

	targets := make([]metadata.Target, 0, len(colors)+1)
	for i, c := range colors {
		r.builder.AddColorAttachment(targetFormat(c.Target, swapchainFormat, backend.DepthFormat()), uint32(i), c.Initial, c.Final)
		targets = append(targets, c.Target)
	}
	if hasDepth {
		r.builder.SetDepthAttachment(backend.DepthFormat(), uint32(len(colors)))
		targets = append(targets, depth)
	}
	for _, l := range r.pipelineLayouts(t) {
		r.builder.AddDescriptorLayout(l)
	}

	pass, err := r.builder.Build(backend, t)
	if err != nil {
		return nil, nil, err
	}
	return pass, targets, nil
}

func targetFormat(t metadata.Target, swapchain, depth metadata.Format) metadata.Format {
	switch t {
	case metadata.TargetSwapchain:
		return swapchain
	case metadata.TargetAlbedo:
		return metadata.AlbedoFormat
	case metadata.TargetNormal:
		return metadata.NormalFormat
	default:
		return depth
	}
}

func (r *PassRegistry) Pass(t metadata.RenderPassType) metadata.Pass {
	return r.passes[t]
}

// Targets lists the images a pass's framebuffer binds, in attachment order.
func (r *PassRegistry) Targets(t metadata.RenderPassType) []metadata.Target {
	return r.targets[t]
}

func (r *PassRegistry) FrameLayouts(t metadata.RenderPassType) []metadata.DescriptorLayout {
	return r.frameLayouts[t]
}

// SamplerLayout is the single combined image sampler layout shared by mesh
// textures and the sky cubemap.
func (r *PassRegistry) SamplerLayout() metadata.DescriptorLayout {
	return r.samplerLayout
}

func (r *PassRegistry) GBufferLayout() metadata.DescriptorLayout {
	return r.gbufferLayout
}

// recordOrder is the order passes are recorded in within a frame.
var recordOrder = [metadata.RenderPassTypeCount]metadata.RenderPassType{
	metadata.RenderPassSky,
	metadata.RenderPassPrepass,
	metadata.RenderPassForward,
	metadata.RenderPassDeferred,
}

// FirstSwapchainLayout returns the initial layout the first recorded pass in
// set that renders to the swapchain expects.
func (r *PassRegistry) FirstSwapchainLayout(set metadata.PassSet) (metadata.ImageLayout, bool) {
	for _, t := range recordOrder {
		if !set.Has(t) || r.passes[t] == nil {
			continue
		}
		for i, target := range r.targets[t] {
			if target == metadata.TargetSwapchain {
				return r.passes[t].Attachments()[i].InitialLayout, true
			}
		}
	}
	return metadata.ImageLayoutUndefined, false
}

func (r *PassRegistry) Destroy() {
	for i, p := range r.passes {
		if p != nil {
			p.Destroy()
			r.passes[i] = nil
		}
	}
	for _, l := range r.owned {
		l.Destroy()
	}
	r.owned = nil
	r.frameLayouts = [metadata.RenderPassTypeCount][]metadata.DescriptorLayout{}
	r.samplerLayout = nil
	r.gbufferLayout = nil
	r.builder.Reset()
}
