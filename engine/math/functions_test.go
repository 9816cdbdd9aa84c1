package math

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const eps = 1e-5

func TestMat4MulOrder(t *testing.T) {
	translate := NewMat4Translation(NewVec3(1, 2, 3))
	rotate := NewMat4EulerY(DegToRad(90))

	// translate first, then rotate around the origin
	p := translate.Mul(rotate).MulVec4(Vec4{0, 0, 0, 1})
	assert.True(t, p.Compare(Vec4{3, 2, -1, 1}, eps), "got %v", p)
}

func TestLookAtMapsEyeToOrigin(t *testing.T) {
	eye := NewVec3(0, 0, -5)
	view := NewMat4LookAt(eye, NewVec3Zero(), NewVec3Up())

	assert.True(t, view.MulVec4(eye.ToVec4(1)).Compare(Vec4{0, 0, 0, 1}, eps))
	// the target sits straight ahead, down the negative z axis
	target := view.MulVec4(Vec4{0, 0, 0, 1})
	assert.True(t, target.Compare(Vec4{0, 0, -5, 1}, eps), "got %v", target)
}

func TestPerspectiveDepthRange(t *testing.T) {
	proj := NewMat4Perspective(DegToRad(45), 1, 0.1, 10)

	near := proj.MulVec4(Vec4{0, 0, -0.1, 1})
	far := proj.MulVec4(Vec4{0, 0, -10, 1})
	assert.InDelta(t, 0, near.Z/near.W, eps)
	assert.InDelta(t, 1, far.Z/far.W, eps)
}

func TestVec3(t *testing.T) {
	assert.Equal(t, NewVec3(0, 0, 1), NewVec3(1, 0, 0).Cross(NewVec3(0, 1, 0)))
	assert.InDelta(t, 1, NewVec3(3, 4, 0).Normalized().Length(), eps)
	assert.Equal(t, NewVec3Zero(), NewVec3Zero().Normalized())
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 5, Clamp(9, 0, 5))
	assert.Equal(t, float32(-1), Clamp(float32(-3), -1, 1))
	assert.Equal(t, "b", Clamp("b", "a", "c"))
}
