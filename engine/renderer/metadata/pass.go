package metadata

import (
	"fmt"
	"strings"
)

/** @brief The closed set of render passes the engine can record. */
type RenderPassType uint8

const (
	/** @brief Screen-space sky drawn from a cubemap. */
	RenderPassSky RenderPassType = iota
	/** @brief Lit geometry drawn straight into the swapchain image. */
	RenderPassForward
	/** @brief Writes albedo, normals and depth into the G-buffer. */
	RenderPassPrepass
	/** @brief Full-screen composite that lights the G-buffer. */
	RenderPassDeferred

	RenderPassTypeCount
)

var renderPassNames = [RenderPassTypeCount]string{"sky", "forward", "prepass", "deferred"}

func (t RenderPassType) String() string {
	if t < RenderPassTypeCount {
		return renderPassNames[t]
	}
	return fmt.Sprintf("RenderPassType(%d)", uint8(t))
}

// ParseRenderPassType accepts the lower-case names used in passes.toml.
func ParseRenderPassType(name string) (RenderPassType, error) {
	for i, n := range renderPassNames {
		if strings.EqualFold(n, name) {
			return RenderPassType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown render pass %q", name)
}

// RenderPassTypes lists every pass in declaration order.
func RenderPassTypes() [RenderPassTypeCount]RenderPassType {
	return [RenderPassTypeCount]RenderPassType{RenderPassSky, RenderPassForward, RenderPassPrepass, RenderPassDeferred}
}

// PassSet is the set of passes a scene requires.
type PassSet uint8

func NewPassSet(passes ...RenderPassType) PassSet {
	var s PassSet
	for _, p := range passes {
		s = s.With(p)
	}
	return s
}

func (s PassSet) With(p RenderPassType) PassSet {
	return s | 1<<p
}

func (s PassSet) Has(p RenderPassType) bool {
	return s&(1<<p) != 0
}

func (s PassSet) Union(other PassSet) PassSet {
	return s | other
}

func (s PassSet) Empty() bool {
	return s == 0
}

func (s PassSet) String() string {
	var names []string
	for _, p := range RenderPassTypes() {
		if s.Has(p) {
			names = append(names, p.String())
		}
	}
	return "{" + strings.Join(names, ",") + "}"
}

// Pipeline tags used by scene files.
const (
	TagSky      = "SKY"
	TagForward  = "FORWARD"
	TagPrepass  = "PREPASS"
	TagDeferred = "DEFERRED"
)

// PassesForTag maps a scene tag to the passes it needs. Unknown tags map to
// an empty set.
func PassesForTag(tag string) PassSet {
	switch strings.ToUpper(tag) {
	case TagSky:
		return NewPassSet(RenderPassSky)
	case TagForward:
		return NewPassSet(RenderPassForward)
	case TagPrepass, TagDeferred:
		return NewPassSet(RenderPassPrepass, RenderPassDeferred)
	default:
		return 0
	}
}

// DrawsTag reports whether geometry tagged with tag is drawn by pass p.
// The deferred pass only composites, so it draws no tagged geometry.
func DrawsTag(p RenderPassType, tag string) bool {
	switch p {
	case RenderPassForward:
		return strings.EqualFold(tag, TagForward)
	case RenderPassPrepass:
		return strings.EqualFold(tag, TagPrepass) || strings.EqualFold(tag, TagDeferred)
	default:
		return false
	}
}

type ImageLayout uint8

const (
	ImageLayoutUndefined ImageLayout = iota
	ImageLayoutColorAttachmentOptimal
	ImageLayoutDepthStencilAttachmentOptimal
	ImageLayoutShaderReadOnlyOptimal
	ImageLayoutTransferDstOptimal
	ImageLayoutPresentSrc
)

var imageLayoutNames = map[string]ImageLayout{
	"undefined":        ImageLayoutUndefined,
	"color_attachment": ImageLayoutColorAttachmentOptimal,
	"depth_attachment": ImageLayoutDepthStencilAttachmentOptimal,
	"shader_read_only": ImageLayoutShaderReadOnlyOptimal,
	"transfer_dst":     ImageLayoutTransferDstOptimal,
	"present_src":      ImageLayoutPresentSrc,
}

func ParseImageLayout(name string) (ImageLayout, error) {
	l, ok := imageLayoutNames[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("unknown image layout %q", name)
	}
	return l, nil
}

type Format uint8

const (
	FormatUndefined Format = iota
	FormatB8G8R8A8Unorm
	FormatB8G8R8A8Srgb
	FormatR8G8B8A8Unorm
	FormatR8G8B8A8Srgb
	FormatR16G16B16A16Sfloat
	FormatD32Sfloat
	FormatD24UnormS8Uint
)

// Formats of the G-buffer targets.
const (
	AlbedoFormat = FormatR8G8B8A8Unorm
	NormalFormat = FormatR16G16B16A16Sfloat
)

func (f Format) IsDepth() bool {
	return f == FormatD32Sfloat || f == FormatD24UnormS8Uint
}

func (f Format) HasStencil() bool {
	return f == FormatD24UnormS8Uint
}

// Target names a per-frame image a pass renders into or samples from.
type Target uint8

const (
	TargetSwapchain Target = iota
	TargetDepth
	TargetAlbedo
	TargetNormal
	TargetPrepassDepth

	TargetCount
)

var targetNames = [TargetCount]string{"swapchain", "depth", "albedo", "normal", "prepass_depth"}

func (t Target) String() string {
	if t < TargetCount {
		return targetNames[t]
	}
	return fmt.Sprintf("Target(%d)", uint8(t))
}

func ParseTarget(name string) (Target, error) {
	for i, n := range targetNames {
		if strings.EqualFold(n, name) {
			return Target(i), nil
		}
	}
	return 0, fmt.Errorf("unknown render target %q", name)
}

// Transition moves an image between layouts inside a command buffer.
type Transition struct {
	Image     Image
	OldLayout ImageLayout
	NewLayout ImageLayout
}
