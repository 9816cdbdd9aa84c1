package renderer

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/talos/engine/renderer/metadata"
)

var (
	ErrNoShaders    = errors.New("pipeline has no shader modules")
	ErrNoAttachment = errors.New("pipeline has no attachments")
)

/**
 * @brief Accumulates the description of one pass. The builder owns the
 * shader modules handed to SetShaders and destroys them on Reset, after the
 * pipeline that used them exists.
 */
type PipelineBuilder struct {
	vertexFormat     *metadata.VertexFormat
	vertexShader     metadata.ShaderModule
	fragmentShader   metadata.ShaderModule
	attachments      []metadata.AttachmentInfo
	depth            *metadata.AttachmentInfo
	depthTest        bool
	overwriteColor   bool
	descriptorLayout []metadata.DescriptorLayout
}

func NewPipelineBuilder() *PipelineBuilder {
	return &PipelineBuilder{}
}

// Reset clears every setting and destroys the shader modules.
func (b *PipelineBuilder) Reset() {
	if b.vertexShader != nil {
		b.vertexShader.Destroy()
	}
	if b.fragmentShader != nil {
		b.fragmentShader.Destroy()
	}
	*b = PipelineBuilder{}
}

func (b *PipelineBuilder) SetVertexFormat(format metadata.VertexFormat) {
	b.vertexFormat = &format
}

func (b *PipelineBuilder) SetShaders(vertex, fragment metadata.ShaderModule) {
	b.vertexShader = vertex
	b.fragmentShader = fragment
}

// SetOverwriteColor makes color attachments that are not loaded from a
// presented image clear on load.
func (b *PipelineBuilder) SetOverwriteColor(overwrite bool) {
	b.overwriteColor = overwrite
}

func (b *PipelineBuilder) SetDepthTest(enabled bool) {
	b.depthTest = enabled
}

// AddColorAttachment appends a color attachment. A presentable initial layout
// loads the previous content so passes can stack on the swapchain image.
func (b *PipelineBuilder) AddColorAttachment(format metadata.Format, index uint32, initial, final metadata.ImageLayout) {
	b.attachments = append(b.attachments, metadata.AttachmentInfo{
		Format:        format,
		Index:         index,
		LoadOp:        b.colorLoadOp(initial),
		StoreOp:       metadata.StoreOpStore,
		InitialLayout: initial,
		FinalLayout:   final,
	})
}

func (b *PipelineBuilder) colorLoadOp(initial metadata.ImageLayout) metadata.LoadOp {
	switch {
	case initial == metadata.ImageLayoutPresentSrc:
		return metadata.LoadOpLoad
	case b.overwriteColor:
		return metadata.LoadOpClear
	default:
		return metadata.LoadOpDontCare
	}
}

// SetDepthAttachment sets the depth attachment. It is always placed after the
// color attachments, whatever index it is given. Depth is stored because the
// prepass depth is sampled later in the frame.
func (b *PipelineBuilder) SetDepthAttachment(format metadata.Format, index uint32) {
	b.depth = &metadata.AttachmentInfo{
		Format:        format,
		Index:         index,
		LoadOp:        metadata.LoadOpClear,
		StoreOp:       metadata.StoreOpStore,
		InitialLayout: metadata.ImageLayoutUndefined,
		FinalLayout:   metadata.ImageLayoutDepthStencilAttachmentOptimal,
	}
}

func (b *PipelineBuilder) AddDescriptorLayout(layout metadata.DescriptorLayout) {
	b.descriptorLayout = append(b.descriptorLayout, layout)
}

// Info assembles the PipelineInfo for pass type t without creating anything.
func (b *PipelineBuilder) Info(t metadata.RenderPassType) (metadata.PipelineInfo, error) {
	if b.vertexShader == nil || b.fragmentShader == nil {
		return metadata.PipelineInfo{}, ErrNoShaders
	}
	if len(b.attachments) == 0 && b.depth == nil {
		return metadata.PipelineInfo{}, ErrNoAttachment
	}

	attachments := make([]metadata.AttachmentInfo, 0, len(b.attachments)+1)
	attachments = append(attachments, b.attachments...)
	if b.depth != nil {
		depth := *b.depth
		depth.Index = uint32(len(attachments))
		attachments = append(attachments, depth)
	}

	blend := uint32(len(attachments))
	if b.depth != nil {
		blend--
	}

	return metadata.PipelineInfo{
		Type:              t,
		VertexShader:      b.vertexShader,
		FragmentShader:    b.fragmentShader,
		VertexFormat:      b.vertexFormat,
		Attachments:       attachments,
		HasDepth:          b.depth != nil,
		DepthTest:         b.depthTest && b.depth != nil,
		BlendAttachments:  blend,
		DescriptorLayouts: append([]metadata.DescriptorLayout(nil), b.descriptorLayout...),
	}, nil
}

// Build creates the render pass and pipeline for t.
func (b *PipelineBuilder) Build(backend Backend, t metadata.RenderPassType) (metadata.Pass, error) {
	info, err := b.Info(t)
	if err != nil {
		return nil, fmt.Errorf("build %s pipeline: %w", t, err)
	}
	pass, err := backend.CreatePass(info)
	if err != nil {
		return nil, fmt.Errorf("build %s pipeline: %w", t, err)
	}
	return pass, nil
}
