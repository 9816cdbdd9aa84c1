package metadata

// Extent is a 2D size in pixels.
type Extent struct {
	Width, Height uint32
}

func (e Extent) Empty() bool {
	return e.Width == 0 || e.Height == 0
}

// AspectRatio returns width over height, or 1 for an empty extent.
func (e Extent) AspectRatio() float32 {
	if e.Height == 0 {
		return 1
	}
	return float32(e.Width) / float32(e.Height)
}

// Destroyer is implemented by every device handle. Destroy releases the
// handle and everything it owns; calling it twice is a no-op.
type Destroyer interface {
	Destroy()
}

type ImageUsage uint8

const (
	ImageUsageColorAttachment ImageUsage = 1 << iota
	ImageUsageDepthAttachment
	ImageUsageSampled
	ImageUsageTransferDst
)

type ImageInfo struct {
	Extent Extent
	Format Format
	Usage  ImageUsage
	// Cube creates a six-layer cube-compatible image with a cube view.
	Cube bool
}

// Image owns a device image, its view and its backing memory.
type Image interface {
	Destroyer
	Format() Format
	Extent() Extent
	Layers() uint32
}

type BufferUsage uint8

const (
	BufferUsageVertex BufferUsage = 1 << iota
	BufferUsageIndex
	BufferUsageUniform
	BufferUsageStorage
	BufferUsageTransferSrc
	BufferUsageTransferDst
)

type BufferInfo struct {
	Size  uint64
	Usage BufferUsage
	// HostVisible buffers are mapped once at creation and stay mapped.
	HostVisible bool
}

type Buffer interface {
	Destroyer
	Size() uint64
	// Bytes returns the persistently mapped memory of a host-visible buffer,
	// nil otherwise.
	Bytes() []byte
}

type Fence interface {
	Destroyer
	// Wait blocks until the fence is signaled or timeout nanoseconds pass.
	Wait(timeout uint64) error
	Reset() error
}

type Semaphore interface {
	Destroyer
}

type Sampler interface {
	Destroyer
}

type ShaderModule interface {
	Destroyer
}

type Framebuffer interface {
	Destroyer
}

type DescriptorKind uint8

const (
	DescriptorUniformBuffer DescriptorKind = iota
	DescriptorStorageBuffer
	DescriptorCombinedImageSampler
)

type ShaderStage uint8

const (
	ShaderStageVertex ShaderStage = 1 << iota
	ShaderStageFragment
)

type DescriptorBinding struct {
	Binding uint32
	Kind    DescriptorKind
	Stages  ShaderStage
}

type DescriptorLayoutInfo struct {
	Bindings []DescriptorBinding
}

type DescriptorLayout interface {
	Destroyer
	Bindings() []DescriptorBinding
}

type DescriptorPoolInfo struct {
	MaxSets uint32
	// Sizes counts the descriptors of each kind the pool can hand out.
	Sizes map[DescriptorKind]uint32
}

type DescriptorPool interface {
	Destroyer
	Allocate(layout DescriptorLayout) (DescriptorSet, error)
}

// DescriptorSet is freed together with its pool.
type DescriptorSet interface {
	WriteBuffer(binding uint32, kind DescriptorKind, buffer Buffer)
	WriteImage(binding uint32, image Image, sampler Sampler)
}

type LoadOp uint8

const (
	LoadOpDontCare LoadOp = iota
	LoadOpLoad
	LoadOpClear
)

type StoreOp uint8

const (
	StoreOpStore StoreOp = iota
	StoreOpDontCare
)

type AttachmentInfo struct {
	Format        Format
	Index         uint32
	LoadOp        LoadOp
	StoreOp       StoreOp
	InitialLayout ImageLayout
	FinalLayout   ImageLayout
}

type VertexAttribute struct {
	Location   uint32
	Offset     uint32
	Components uint32
}

type VertexFormat struct {
	Stride     uint32
	Attributes []VertexAttribute
}

// PipelineInfo is everything needed to create a render pass together with its
// graphics pipeline and pipeline layout.
type PipelineInfo struct {
	Type           RenderPassType
	VertexShader   ShaderModule
	FragmentShader ShaderModule
	// VertexFormat is nil for passes that generate their vertices.
	VertexFormat *VertexFormat
	// Attachments are ordered by Index. A depth attachment is always last.
	Attachments       []AttachmentInfo
	HasDepth          bool
	DepthTest         bool
	BlendAttachments  uint32
	DescriptorLayouts []DescriptorLayout
}

// Pass bundles a render pass, its pipeline layout and its pipeline.
type Pass interface {
	Destroyer
	Type() RenderPassType
	Attachments() []AttachmentInfo
}

type CommandBuffer interface {
	Destroyer
	Reset() error
	Begin(singleUse bool) error
	End() error
	// BeginRenderPass also sets the viewport and scissor to extent.
	BeginRenderPass(pass Pass, framebuffer Framebuffer, extent Extent, clearColor [4]float32)
	EndRenderPass()
	BindPipeline(pass Pass)
	BindDescriptorSets(pass Pass, firstSet uint32, sets ...DescriptorSet)
	BindVertexBuffer(buffer Buffer)
	BindIndexBuffer(buffer Buffer)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)
	Transition(transitions ...Transition)
	CopyBuffer(src, dst Buffer, size uint64)
	// CopyBufferToImage copies tightly packed RGBA8 pixels into every layer of dst.
	CopyBufferToImage(src Buffer, dst Image)
}
