package metadata

import (
	"encoding/binary"
	gomath "math"
	"testing"

	"github.com/spaghettifunk/talos/engine/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPassesForTag(t *testing.T) {
	assert.Equal(t, NewPassSet(RenderPassSky), PassesForTag("SKY"))
	assert.Equal(t, NewPassSet(RenderPassForward), PassesForTag("FORWARD"))
	assert.Equal(t, NewPassSet(RenderPassPrepass, RenderPassDeferred), PassesForTag("PREPASS"))
	assert.Equal(t, NewPassSet(RenderPassPrepass, RenderPassDeferred), PassesForTag("deferred"))
	assert.True(t, PassesForTag("WATER").Empty())

	set := PassesForTag("FORWARD").Union(PassesForTag("SKY"))
	assert.True(t, set.Has(RenderPassSky))
	assert.False(t, set.Has(RenderPassDeferred))
	assert.Equal(t, "{sky,forward}", set.String())
}

func TestDrawsTag(t *testing.T) {
	assert.True(t, DrawsTag(RenderPassForward, TagForward))
	assert.True(t, DrawsTag(RenderPassPrepass, TagDeferred))
	assert.False(t, DrawsTag(RenderPassDeferred, TagDeferred))
	assert.False(t, DrawsTag(RenderPassSky, TagForward))
}

func TestParseNames(t *testing.T) {
	p, err := ParseRenderPassType("Prepass")
	require.NoError(t, err)
	assert.Equal(t, RenderPassPrepass, p)

	_, err = ParseRenderPassType("ui")
	assert.Error(t, err)

	l, err := ParseImageLayout("present_src")
	require.NoError(t, err)
	assert.Equal(t, ImageLayoutPresentSrc, l)

	target, err := ParseTarget("prepass_depth")
	require.NoError(t, err)
	assert.Equal(t, TargetPrepassDepth, target)
}

func TestNewLightDataCapsAndTransforms(t *testing.T) {
	lights := make([]Light, 20)
	for i := range lights {
		lights[i] = Light{Position: math.NewVec3(float32(i), 0, 0), Color: math.NewVec3(1, 1, 1)}
	}
	view := math.NewMat4Translation(math.NewVec3(0, 0, -5))

	data := NewLightData(view, lights)
	assert.Equal(t, float32(16), data.NumLights.X)
	assert.Equal(t, math.NewVec4(15, 0, -5, 0), data.Positions[15])
	assert.Equal(t, math.NewVec4(1, 1, 1, 0), data.Colors[0])
}

func TestEncodeUniform(t *testing.T) {
	assert.Equal(t, uint64(192), CameraMatricesSize)
	assert.Equal(t, uint64(48), CameraVectorsSize)
	assert.Equal(t, uint64(528), LightDataSize)
	assert.Equal(t, uint64(65536), ModelTransformsSize)

	buf := make([]byte, LightDataSize)
	data := LightData{NumLights: math.NewVec4(3, 0, 0, 0)}
	require.NoError(t, EncodeUniform(buf, &data))
	assert.Equal(t, float32(3), gomath.Float32frombits(binary.LittleEndian.Uint32(buf)))

	assert.Error(t, EncodeUniform(buf[:10], &data))
}

func TestEncodeTransformsStopsAtCapacity(t *testing.T) {
	transforms := []math.Mat4{
		math.NewMat4Translation(math.NewVec3(1, 0, 0)),
		math.NewMat4Translation(math.NewVec3(2, 0, 0)),
		math.NewMat4Translation(math.NewVec3(3, 0, 0)),
	}
	buf := make([]byte, 2*64)
	n, err := EncodeTransforms(buf, transforms)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	// translation x of the second matrix lives at element 12
	assert.Equal(t, float32(2), gomath.Float32frombits(binary.LittleEndian.Uint32(buf[64+12*4:])))
}

func TestFallbackTexture(t *testing.T) {
	cube := NewFallbackTexture("sky", TextureTypeCube)
	assert.Len(t, cube.Pixels, 6)
	assert.Equal(t, []byte{255, 0, 255, 255}, cube.Pixels[5])
	assert.False(t, cube.Uploaded())
	cube.Destroy()
}

func TestGetAligned(t *testing.T) {
	assert.Equal(t, uint64(0), GetAligned(0, 16))
	assert.Equal(t, uint64(16), GetAligned(1, 16))
	assert.Equal(t, uint64(208), GetAligned(196, 16))
	assert.Equal(t, uint64(256), GetAligned(256, 16))
	assert.Equal(t, uint64(7), GetAligned(7, 0))
}
