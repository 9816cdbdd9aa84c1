package renderer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/spaghettifunk/talos/engine/renderer/metadata"
)

// fakeBackend records every call and counts live handles per kind so tests
// can check ordering and leaks without a device.
type fakeBackend struct {
	mu     sync.Mutex
	live   map[string]int
	events []string

	images     int
	nextImage  uint32
	extent     metadata.Extent
	swapchains int

	submits []fakeSubmit
	shaders []string
	fences  int

	acquireErr  error
	presentErr  error
	submitErr   error
	shaderErr   error
	imageErr    error
	waitIdleErr error

	// commandBudget > 0 makes every command buffer past the budget fail.
	commandBudget  int
	commandBuffers int
}

type fakeSubmit struct {
	ops         []string
	draws       []drawCall
	transitions []metadata.Transition
	wait        metadata.Semaphore
	signal      metadata.Semaphore
	fence       metadata.Fence
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{live: make(map[string]int), images: 3}
}

func (b *fakeBackend) track(kind string) fakeHandle {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.live[kind]++
	return fakeHandle{b: b, kind: kind}
}

func (b *fakeBackend) event(format string, args ...any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, fmt.Sprintf(format, args...))
}

// liveTotal sums every live handle, swapchains included.
func (b *fakeBackend) liveTotal() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.live {
		n += c
	}
	return n
}

func (b *fakeBackend) snapshot() map[string]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]int, len(b.live))
	for k, v := range b.live {
		out[k] = v
	}
	return out
}

type fakeHandle struct {
	b         *fakeBackend
	kind      string
	destroyed bool
}

func (h *fakeHandle) Destroy() {
	if h.destroyed {
		return
	}
	h.destroyed = true
	h.b.mu.Lock()
	h.b.live[h.kind]--
	h.b.mu.Unlock()
}

type fakeImage struct {
	fakeHandle
	name string
	info metadata.ImageInfo
}

func (i *fakeImage) Format() metadata.Format { return i.info.Format }
func (i *fakeImage) Extent() metadata.Extent { return i.info.Extent }
func (i *fakeImage) Layers() uint32 {
	if i.info.Cube {
		return 6
	}
	return 1
}

// swapchainImage belongs to the swapchain, so Destroy does nothing.
type swapchainImage struct {
	name   string
	format metadata.Format
	extent metadata.Extent
}

func (i *swapchainImage) Destroy()                {}
func (i *swapchainImage) Format() metadata.Format { return i.format }
func (i *swapchainImage) Extent() metadata.Extent { return i.extent }
func (i *swapchainImage) Layers() uint32          { return 1 }

type fakeBuffer struct {
	fakeHandle
	info metadata.BufferInfo
	data []byte
}

func (f *fakeBuffer) Size() uint64  { return f.info.Size }
func (f *fakeBuffer) Bytes() []byte { return f.data }

type fakeFence struct {
	fakeHandle
	name     string
	signaled bool
}

func (f *fakeFence) Wait(uint64) error {
	f.b.event("wait %s", f.name)
	if !f.signaled {
		return fmt.Errorf("%s waited while unsignaled, this would block forever", f.name)
	}
	return nil
}

func (f *fakeFence) Reset() error {
	f.b.event("reset %s", f.name)
	f.signaled = false
	return nil
}

type fakeLayout struct {
	fakeHandle
	info metadata.DescriptorLayoutInfo
}

func (l *fakeLayout) Bindings() []metadata.DescriptorBinding { return l.info.Bindings }

type fakePool struct {
	fakeHandle
	sets []*fakeSet
}

func (p *fakePool) Allocate(layout metadata.DescriptorLayout) (metadata.DescriptorSet, error) {
	s := &fakeSet{layout: layout, writes: make(map[uint32]any)}
	p.sets = append(p.sets, s)
	return s, nil
}

type fakeSet struct {
	layout metadata.DescriptorLayout
	writes map[uint32]any
}

func (s *fakeSet) WriteBuffer(binding uint32, kind metadata.DescriptorKind, buffer metadata.Buffer) {
	s.writes[binding] = buffer
}

func (s *fakeSet) WriteImage(binding uint32, image metadata.Image, sampler metadata.Sampler) {
	s.writes[binding] = image
}

type fakePass struct {
	fakeHandle
	info metadata.PipelineInfo
}

func (p *fakePass) Type() metadata.RenderPassType          { return p.info.Type }
func (p *fakePass) Attachments() []metadata.AttachmentInfo { return p.info.Attachments }

type fakeFramebuffer struct {
	fakeHandle
	attachments []metadata.Image
}

type drawCall struct {
	pass                                            metadata.RenderPassType
	indexCount, instanceCount, first, firstInstance uint32
}

type fakeCommandBuffer struct {
	fakeHandle
	ops         []string
	draws       []drawCall
	transitions []metadata.Transition
	current     metadata.RenderPassType
	beginErr    error
}

func (c *fakeCommandBuffer) Reset() error {
	c.ops, c.draws, c.transitions = nil, nil, nil
	return nil
}

func (c *fakeCommandBuffer) Begin(singleUse bool) error {
	if c.beginErr != nil {
		return c.beginErr
	}
	c.ops = append(c.ops, "begin")
	return nil
}

func (c *fakeCommandBuffer) End() error {
	c.ops = append(c.ops, "end")
	return nil
}

func (c *fakeCommandBuffer) BeginRenderPass(pass metadata.Pass, fb metadata.Framebuffer, extent metadata.Extent, clear [4]float32) {
	c.current = pass.Type()
	c.ops = append(c.ops, "begin-pass "+pass.Type().String())
}

func (c *fakeCommandBuffer) EndRenderPass() {
	c.ops = append(c.ops, "end-pass")
}

func (c *fakeCommandBuffer) BindPipeline(pass metadata.Pass) {
	c.ops = append(c.ops, "bind-pipeline "+pass.Type().String())
}

func (c *fakeCommandBuffer) BindDescriptorSets(pass metadata.Pass, firstSet uint32, sets ...metadata.DescriptorSet) {
	c.ops = append(c.ops, fmt.Sprintf("bind-sets %s %d %d", pass.Type(), firstSet, len(sets)))
}

func (c *fakeCommandBuffer) BindVertexBuffer(metadata.Buffer) {
	c.ops = append(c.ops, "bind-vertex")
}

func (c *fakeCommandBuffer) BindIndexBuffer(metadata.Buffer) {
	c.ops = append(c.ops, "bind-index")
}

func (c *fakeCommandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	c.ops = append(c.ops, fmt.Sprintf("draw %d %d", vertexCount, instanceCount))
	c.draws = append(c.draws, drawCall{c.current, vertexCount, instanceCount, firstVertex, firstInstance})
}

func (c *fakeCommandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	c.ops = append(c.ops, fmt.Sprintf("draw-indexed %d %d %d %d", indexCount, instanceCount, firstIndex, firstInstance))
	c.draws = append(c.draws, drawCall{c.current, indexCount, instanceCount, firstIndex, firstInstance})
}

func (c *fakeCommandBuffer) Transition(transitions ...metadata.Transition) {
	for _, t := range transitions {
		c.ops = append(c.ops, fmt.Sprintf("transition %d->%d", t.OldLayout, t.NewLayout))
	}
	c.transitions = append(c.transitions, transitions...)
}

func (c *fakeCommandBuffer) CopyBuffer(src, dst metadata.Buffer, size uint64) {
	copy(dst.Bytes(), src.Bytes()[:size])
	c.ops = append(c.ops, "copy-buffer")
}

func (c *fakeCommandBuffer) CopyBufferToImage(src metadata.Buffer, dst metadata.Image) {
	c.ops = append(c.ops, "copy-image")
}

func (b *fakeBackend) CreateSwapchain(width, height uint32) (SwapchainInfo, error) {
	b.track("swapchain")
	b.swapchains++
	b.extent = metadata.Extent{Width: width, Height: height}
	info := SwapchainInfo{Format: metadata.FormatB8G8R8A8Srgb, Extent: b.extent}
	for i := 0; i < b.images; i++ {
		info.Images = append(info.Images, &swapchainImage{name: fmt.Sprintf("swapchain%d", i), format: info.Format, extent: info.Extent})
	}
	b.nextImage = 0
	return info, nil
}

func (b *fakeBackend) DestroySwapchain() {
	b.mu.Lock()
	b.live["swapchain"]--
	b.mu.Unlock()
}

func (b *fakeBackend) WaitIdle() error {
	b.event("wait-idle")
	return b.waitIdleErr
}

func (b *fakeBackend) AcquireNextImage(signal metadata.Semaphore) (uint32, error) {
	if err := b.acquireErr; err != nil {
		b.acquireErr = nil
		return 0, err
	}
	idx := b.nextImage
	b.nextImage = (b.nextImage + 1) % uint32(b.images)
	b.event("acquire %d", idx)
	return idx, nil
}

func (b *fakeBackend) Present(imageIndex uint32, wait metadata.Semaphore) error {
	if err := b.presentErr; err != nil {
		b.presentErr = nil
		return err
	}
	b.event("present %d", imageIndex)
	return nil
}

func (b *fakeBackend) Submit(cmd metadata.CommandBuffer, wait, signal metadata.Semaphore, fence metadata.Fence) error {
	if cmd != nil {
		if err := b.submitErr; err != nil {
			b.submitErr = nil
			return err
		}
	}
	s := fakeSubmit{wait: wait, signal: signal, fence: fence}
	name := "none"
	if cmd != nil {
		c := cmd.(*fakeCommandBuffer)
		s.ops = append([]string(nil), c.ops...)
		s.draws = append([]drawCall(nil), c.draws...)
		s.transitions = append([]metadata.Transition(nil), c.transitions...)
	}
	if f, ok := fence.(*fakeFence); ok {
		f.signaled = true
		name = f.name
	}
	b.mu.Lock()
	b.submits = append(b.submits, s)
	b.mu.Unlock()
	b.event("submit %s", name)
	return nil
}

func (b *fakeBackend) SubmitWait(cmd metadata.CommandBuffer) error {
	b.event("submit-wait")
	return nil
}

func (b *fakeBackend) CreateFence(signaled bool) (metadata.Fence, error) {
	h := b.track("fence")
	b.mu.Lock()
	b.fences++
	name := fmt.Sprintf("fence%d", b.fences)
	b.mu.Unlock()
	return &fakeFence{fakeHandle: h, name: name, signaled: signaled}, nil
}

func (b *fakeBackend) CreateSemaphore() (metadata.Semaphore, error) {
	h := b.track("semaphore")
	return &h, nil
}

func (b *fakeBackend) CreateImage(info metadata.ImageInfo) (metadata.Image, error) {
	if b.imageErr != nil {
		return nil, b.imageErr
	}
	return &fakeImage{fakeHandle: b.track("image"), info: info}, nil
}

func (b *fakeBackend) CreateBuffer(info metadata.BufferInfo) (metadata.Buffer, error) {
	return &fakeBuffer{fakeHandle: b.track("buffer"), info: info, data: make([]byte, info.Size)}, nil
}

func (b *fakeBackend) CreateCommandBuffer() (metadata.CommandBuffer, error) {
	b.mu.Lock()
	b.commandBuffers++
	over := b.commandBudget > 0 && b.commandBuffers > b.commandBudget
	b.mu.Unlock()
	if over {
		return nil, errInjected
	}
	return &fakeCommandBuffer{fakeHandle: b.track("command")}, nil
}

func (b *fakeBackend) CreateDescriptorLayout(info metadata.DescriptorLayoutInfo) (metadata.DescriptorLayout, error) {
	return &fakeLayout{fakeHandle: b.track("layout"), info: info}, nil
}

func (b *fakeBackend) CreateDescriptorPool(info metadata.DescriptorPoolInfo) (metadata.DescriptorPool, error) {
	return &fakePool{fakeHandle: b.track("pool")}, nil
}

func (b *fakeBackend) CreateSampler(cube bool) (metadata.Sampler, error) {
	h := b.track("sampler")
	return &h, nil
}

func (b *fakeBackend) CreateShaderModule(path string) (metadata.ShaderModule, error) {
	if b.shaderErr != nil {
		return nil, b.shaderErr
	}
	b.mu.Lock()
	b.shaders = append(b.shaders, path)
	b.mu.Unlock()
	h := b.track("shader")
	return &h, nil
}

func (b *fakeBackend) CreatePass(info metadata.PipelineInfo) (metadata.Pass, error) {
	return &fakePass{fakeHandle: b.track("pass"), info: info}, nil
}

func (b *fakeBackend) CreateFramebuffer(pass metadata.Pass, attachments []metadata.Image, extent metadata.Extent) (metadata.Framebuffer, error) {
	for i, a := range attachments {
		if a == nil {
			return nil, fmt.Errorf("framebuffer attachment %d is nil", i)
		}
	}
	return &fakeFramebuffer{fakeHandle: b.track("framebuffer"), attachments: attachments}, nil
}

func (b *fakeBackend) DepthFormat() metadata.Format {
	return metadata.FormatD32Sfloat
}

var errInjected = errors.New("injected failure")
