package metadata

import (
	"encoding/binary"
	"fmt"

	"github.com/spaghettifunk/talos/engine/math"
)

const (
	/** @brief Lights beyond this count are dropped. */
	MaxLights = 16
	/** @brief Capacity of the per-frame model transform buffer. */
	MaxInstances = 1024
)

/** @brief Vertex-stage camera uniform. */
type CameraMatrices struct {
	View           math.Mat4
	Projection     math.Mat4
	ViewProjection math.Mat4
}

/** @brief Basis vectors the sky pass uses to rebuild view directions. */
type CameraVectors struct {
	Forward math.Vec4
	Right   math.Vec4
	Up      math.Vec4
}

/** @brief Fragment-stage light uniform. NumLights.X holds the count. */
type LightData struct {
	NumLights math.Vec4
	Positions [MaxLights]math.Vec4
	Colors    [MaxLights]math.Vec4
}

var (
	CameraMatricesSize  = uint64(binary.Size(CameraMatrices{}))
	CameraVectorsSize   = uint64(binary.Size(CameraVectors{}))
	LightDataSize       = uint64(binary.Size(LightData{}))
	ModelTransformsSize = uint64(binary.Size(math.Mat4{})) * MaxInstances
)

// Light is a point light in world space.
type Light struct {
	Position math.Vec3
	Color    math.Vec3
}

// NewLightData moves lights into camera space. Lights past MaxLights are dropped.
func NewLightData(view math.Mat4, lights []Light) LightData {
	var data LightData
	n := min(len(lights), MaxLights)
	data.NumLights.X = float32(n)
	for i := 0; i < n; i++ {
		p := view.MulVec4(lights[i].Position.ToVec4(1))
		data.Positions[i] = math.NewVec4(p.X, p.Y, p.Z, 0)
		data.Colors[i] = lights[i].Color.ToVec4(0)
	}
	return data
}

// EncodeUniform writes v into dst in the little-endian layout the shaders read.
func EncodeUniform(dst []byte, v any) error {
	if _, err := binary.Encode(dst, binary.LittleEndian, v); err != nil {
		return fmt.Errorf("encode uniform %T: %w", v, err)
	}
	return nil
}

// EncodeTransforms writes as many transforms as fit in dst and returns how many
// were written.
func EncodeTransforms(dst []byte, transforms []math.Mat4) (int, error) {
	n := min(len(transforms), len(dst)/64)
	if _, err := binary.Encode(dst, binary.LittleEndian, transforms[:n]); err != nil {
		return 0, fmt.Errorf("encode transforms: %w", err)
	}
	return n, nil
}
