package scene

import (
	"github.com/spaghettifunk/talos/engine/math"
	"github.com/spaghettifunk/talos/engine/renderer/metadata"
)

const (
	FieldOfView = 45.0
	NearClip    = 0.1
	DefaultFar  = 10.0
)

/**
 * @brief A look-at camera. The view matrix is rebuilt lazily when
 * the eye or target moves.
 */
type Camera struct {
	/** @brief The eye position. Use SetPosition so the view is rebuilt. */
	Position math.Vec3
	/** @brief The point the camera looks at. */
	Target math.Vec3
	Up     math.Vec3
	/** @brief The far clip plane distance. */
	Far float32

	isDirty    bool
	viewMatrix math.Mat4
}

func NewCamera() *Camera {
	camera := &Camera{}
	camera.Reset()
	return camera
}

// Reset puts the camera at (0, 0, -5) looking at the origin.
func (c *Camera) Reset() {
	c.Position = math.NewVec3(0, 0, -5)
	c.Target = math.NewVec3Zero()
	c.Up = math.NewVec3Up()
	c.Far = DefaultFar
	c.isDirty = true
}

func (c *Camera) SetPosition(position math.Vec3) {
	c.Position = position
	c.isDirty = true
}

func (c *Camera) SetTarget(target math.Vec3) {
	c.Target = target
	c.isDirty = true
}

func (c *Camera) View() math.Mat4 {
	if c.isDirty {
		c.viewMatrix = math.NewMat4LookAt(c.Position, c.Target, c.Up)
		c.isDirty = false
	}
	return c.viewMatrix
}

// Projection is a 45 degree perspective with the Y axis flipped for Vulkan's
// downward clip space.
func (c *Camera) Projection(aspect float32) math.Mat4 {
	far := c.Far
	if far <= NearClip {
		far = DefaultFar
	}
	proj := math.NewMat4Perspective(math.DegToRad(FieldOfView), aspect, NearClip, far)
	proj.Data[5] *= -1
	return proj
}

func (c *Camera) Matrices(aspect float32) metadata.CameraMatrices {
	view := c.View()
	proj := c.Projection(aspect)
	return metadata.CameraMatrices{
		View:           view,
		Projection:     proj,
		ViewProjection: view.Mul(proj),
	}
}

// Vectors returns the camera basis with w set to 1.
func (c *Camera) Vectors() metadata.CameraVectors {
	forward := c.Target.Sub(c.Position).Normalized()
	right := forward.Cross(c.Up).Normalized()
	return metadata.CameraVectors{
		Forward: forward.ToVec4(1),
		Right:   right.ToVec4(1),
		Up:      c.Up.ToVec4(1),
	}
}

// Orbit rotates the eye around the target about the Y axis.
func (c *Camera) Orbit(angle float32) {
	offset := c.Position.Sub(c.Target)
	rotated := math.NewMat4EulerY(angle).MulVec4(offset.ToVec4(1))
	c.SetPosition(c.Target.Add(rotated.ToVec3()))
}
