package renderer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/talos/engine/config"
	"github.com/spaghettifunk/talos/engine/core"
	"github.com/spaghettifunk/talos/engine/renderer/metadata"
)

func TestPipelineBuilderNeedsShaders(t *testing.T) {
	b := NewPipelineBuilder()
	b.AddColorAttachment(metadata.FormatB8G8R8A8Srgb, 0, metadata.ImageLayoutUndefined, metadata.ImageLayoutPresentSrc)
	_, err := b.Info(metadata.RenderPassSky)
	assert.ErrorIs(t, err, ErrNoShaders)
}

func TestPipelineBuilderAttachments(t *testing.T) {
	backend := newFakeBackend()
	vert, _ := backend.CreateShaderModule("v")
	frag, _ := backend.CreateShaderModule("f")

	b := NewPipelineBuilder()
	b.SetShaders(vert, frag)
	b.SetOverwriteColor(true)
	b.SetDepthTest(true)
	b.SetDepthAttachment(metadata.FormatD32Sfloat, 0)
	b.AddColorAttachment(metadata.AlbedoFormat, 0, metadata.ImageLayoutUndefined, metadata.ImageLayoutColorAttachmentOptimal)
	b.AddColorAttachment(metadata.NormalFormat, 1, metadata.ImageLayoutUndefined, metadata.ImageLayoutColorAttachmentOptimal)

	info, err := b.Info(metadata.RenderPassPrepass)
	require.NoError(t, err)
	require.Len(t, info.Attachments, 3)
	assert.Equal(t, uint32(2), info.BlendAttachments)
	assert.True(t, info.HasDepth)
	assert.True(t, info.DepthTest)

	depth := info.Attachments[2]
	assert.Equal(t, metadata.FormatD32Sfloat, depth.Format)
	assert.Equal(t, uint32(2), depth.Index)
	assert.Equal(t, metadata.LoadOpClear, depth.LoadOp)
	assert.Equal(t, metadata.StoreOpStore, depth.StoreOp)
	assert.Equal(t, metadata.ImageLayoutDepthStencilAttachmentOptimal, depth.FinalLayout)
	assert.Equal(t, metadata.LoadOpClear, info.Attachments[0].LoadOp)

	b.Reset()
	assert.Zero(t, backend.snapshot()["shader"])
	_, err = b.Info(metadata.RenderPassPrepass)
	assert.ErrorIs(t, err, ErrNoShaders)
}

func TestPipelineBuilderLoadOps(t *testing.T) {
	backend := newFakeBackend()
	vert, _ := backend.CreateShaderModule("v")
	frag, _ := backend.CreateShaderModule("f")
	b := NewPipelineBuilder()
	defer b.Reset()
	b.SetShaders(vert, frag)

	b.AddColorAttachment(metadata.FormatB8G8R8A8Srgb, 0, metadata.ImageLayoutPresentSrc, metadata.ImageLayoutPresentSrc)
	b.AddColorAttachment(metadata.FormatB8G8R8A8Srgb, 1, metadata.ImageLayoutUndefined, metadata.ImageLayoutPresentSrc)
	b.SetOverwriteColor(true)
	b.AddColorAttachment(metadata.FormatB8G8R8A8Srgb, 2, metadata.ImageLayoutPresentSrc, metadata.ImageLayoutPresentSrc)
	b.AddColorAttachment(metadata.FormatB8G8R8A8Srgb, 3, metadata.ImageLayoutUndefined, metadata.ImageLayoutPresentSrc)

	info, err := b.Info(metadata.RenderPassForward)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), info.BlendAttachments)
	assert.False(t, info.HasDepth)
	assert.Equal(t, []metadata.LoadOp{
		metadata.LoadOpLoad, metadata.LoadOpDontCare, metadata.LoadOpLoad, metadata.LoadOpClear,
	}, []metadata.LoadOp{
		info.Attachments[0].LoadOp, info.Attachments[1].LoadOp, info.Attachments[2].LoadOp, info.Attachments[3].LoadOp,
	})
}

func TestPassRegistryDefaultPasses(t *testing.T) {
	backend := newFakeBackend()
	r := NewPassRegistry()
	require.NoError(t, r.Build(backend, config.DefaultPasses(), metadata.FormatB8G8R8A8Srgb))

	info := func(pt metadata.RenderPassType) metadata.PipelineInfo {
		p := r.Pass(pt)
		require.NotNil(t, p)
		return p.(*fakePass).info
	}

	sky := info(metadata.RenderPassSky)
	require.Len(t, sky.Attachments, 1)
	assert.Equal(t, metadata.LoadOpClear, sky.Attachments[0].LoadOp)
	assert.Equal(t, metadata.ImageLayoutPresentSrc, sky.Attachments[0].FinalLayout)
	assert.False(t, sky.HasDepth)
	assert.Nil(t, sky.VertexFormat)
	assert.Len(t, sky.DescriptorLayouts, 2)

	forward := info(metadata.RenderPassForward)
	require.Len(t, forward.Attachments, 2)
	assert.Equal(t, metadata.FormatB8G8R8A8Srgb, forward.Attachments[0].Format)
	assert.Equal(t, metadata.LoadOpLoad, forward.Attachments[0].LoadOp)
	assert.Equal(t, metadata.FormatD32Sfloat, forward.Attachments[1].Format)
	assert.Equal(t, uint32(1), forward.BlendAttachments)
	assert.True(t, forward.DepthTest)
	assert.NotNil(t, forward.VertexFormat)
	assert.Len(t, forward.DescriptorLayouts, 3)
	assert.Equal(t, []metadata.Target{metadata.TargetSwapchain, metadata.TargetDepth}, r.Targets(metadata.RenderPassForward))

	prepass := info(metadata.RenderPassPrepass)
	require.Len(t, prepass.Attachments, 3)
	assert.Equal(t, metadata.AlbedoFormat, prepass.Attachments[0].Format)
	assert.Equal(t, metadata.NormalFormat, prepass.Attachments[1].Format)
	assert.Equal(t, uint32(2), prepass.BlendAttachments)
	assert.Len(t, prepass.DescriptorLayouts, 2)
	assert.Equal(t, metadata.TargetPrepassDepth, r.Targets(metadata.RenderPassPrepass)[2])

	deferred := info(metadata.RenderPassDeferred)
	require.Len(t, deferred.Attachments, 1)
	assert.False(t, deferred.HasDepth)
	assert.Nil(t, deferred.VertexFormat)
	assert.Len(t, deferred.DescriptorLayouts, 2)
	assert.Same(t, r.GBufferLayout(), deferred.DescriptorLayouts[1])

	// Texture sets share one layout across passes.
	assert.Same(t, r.SamplerLayout(), forward.DescriptorLayouts[forwardTextureSet])
	assert.Same(t, r.SamplerLayout(), prepass.DescriptorLayouts[prepassTextureSet])
	assert.Same(t, r.SamplerLayout(), sky.DescriptorLayouts[skyCubemapSet])

	assert.Len(t, backend.shaders, 8)
	assert.Zero(t, backend.snapshot()["shader"], "shader modules are released after the pipelines exist")

	r.Destroy()
	assert.Zero(t, backend.liveTotal())
}

func TestPassRegistryShaderFailureIsSetupError(t *testing.T) {
	backend := newFakeBackend()
	backend.shaderErr = errInjected
	r := NewPassRegistry()
	err := r.Build(backend, config.DefaultPasses(), metadata.FormatB8G8R8A8Srgb)
	require.Error(t, err)
	assert.Equal(t, core.KindSetup, core.KindOf(err))
	assert.ErrorIs(t, err, errInjected)
	assert.Nil(t, r.Pass(metadata.RenderPassSky))
	r.Destroy()
}

func TestFirstSwapchainLayout(t *testing.T) {
	backend := newFakeBackend()
	r := NewPassRegistry()
	require.NoError(t, r.Build(backend, config.DefaultPasses(), metadata.FormatB8G8R8A8Srgb))
	defer r.Destroy()

	layout, ok := r.FirstSwapchainLayout(metadata.NewPassSet(metadata.RenderPassSky, metadata.RenderPassForward))
	assert.True(t, ok)
	assert.Equal(t, metadata.ImageLayoutUndefined, layout)

	layout, ok = r.FirstSwapchainLayout(metadata.NewPassSet(metadata.RenderPassPrepass, metadata.RenderPassDeferred))
	assert.True(t, ok)
	assert.Equal(t, metadata.ImageLayoutPresentSrc, layout)

	_, ok = r.FirstSwapchainLayout(metadata.NewPassSet(metadata.RenderPassPrepass))
	assert.False(t, ok)
}
