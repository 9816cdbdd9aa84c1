package scene

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spaghettifunk/talos/engine/math"
	"github.com/spaghettifunk/talos/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `# two forward actors, a deferred one and a sky
meshActor assets/a.toml FORWARD 0 0 0 1 0 0 2 0 0
meshActor assets/b.toml deferred 0 1 0 0 2 0

light 0 10 0 1 1 1
skybox assets/sky.toml
teapot assets/t.toml
`

func TestParse(t *testing.T) {
	s, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	require.Len(t, s.Groups, 2)
	assert.Equal(t, "assets/a.toml", s.Groups[0].Key)
	assert.Equal(t, 3, s.Groups[0].Len())
	assert.Equal(t, "DEFERRED", s.Groups[1].Tag)
	assert.Equal(t, math.NewVec3(0, 2, 0), s.Groups[1].Positions[1])

	require.Len(t, s.Lights, 1)
	assert.Equal(t, math.NewVec3(0, 10, 0), s.Lights[0].Position)
	assert.Equal(t, []string{"assets/sky.toml"}, s.Skyboxes)

	for _, p := range metadata.RenderPassTypes() {
		assert.True(t, s.Requires(p), p.String())
	}
	assert.Equal(t, 5, s.InstanceCount())
	assert.Equal(t, []string{"assets/a.toml", "assets/b.toml", "assets/sky.toml"}, s.Keys())
}

func TestParsePassGating(t *testing.T) {
	s, err := Parse(strings.NewReader("meshActor a FORWARD 0 0 0\n"))
	require.NoError(t, err)
	assert.Equal(t, metadata.NewPassSet(metadata.RenderPassForward), s.Passes)
}

func TestParseErrors(t *testing.T) {
	for name, src := range map[string]string{
		"partial position": "meshActor a FORWARD 0 0\n",
		"bad number":       "meshActor a FORWARD 0 x 0\n",
		"short light":      "light 0 0 0 1 1\n",
		"no tag":           "meshActor a\n",
		"skybox no asset":  "skybox\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(src))
			assert.ErrorContains(t, err, "line 1")
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.txt")
	require.NoError(t, os.WriteFile(path, []byte("light 1 2 3 1 0 0\n"), 0o644))
	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, s.Path)
	assert.True(t, s.Passes.Empty())

	_, err = Load(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestDefaultScene(t *testing.T) {
	s := Default()
	require.Len(t, s.Groups, 1)
	assert.Equal(t, DefaultModel, s.Groups[0].Key)
	assert.Equal(t, metadata.NewPassSet(metadata.RenderPassPrepass, metadata.RenderPassDeferred), s.Passes)
	assert.Equal(t, math.NewVec3(0, 10, 0), s.Lights[0].Position)
}

func TestAddActorsMergesGroups(t *testing.T) {
	s := New()
	s.AddActors("a", metadata.TagForward, math.NewVec3(1, 0, 0))
	s.AddActors("b", metadata.TagForward, math.NewVec3(2, 0, 0))
	s.AddActors("a", metadata.TagPrepass, math.NewVec3(3, 0, 0))

	require.Len(t, s.Groups, 2)
	assert.Equal(t, metadata.TagForward, s.Group("a").Tag)

	transforms := s.Transforms()
	require.Len(t, transforms, 3)
	// group order, not insertion order of instances
	assert.Equal(t, float32(3), transforms[1].Data[12])
	assert.Equal(t, float32(2), transforms[2].Data[12])
}

func TestCamera(t *testing.T) {
	c := NewCamera()
	v := c.Vectors()
	assert.Equal(t, math.NewVec4(0, 0, 1, 1), v.Forward)
	assert.Equal(t, math.NewVec4(-1, 0, 0, 1), v.Right)
	assert.Equal(t, math.NewVec4(0, 1, 0, 1), v.Up)

	m := c.Matrices(1)
	plain := math.NewMat4Perspective(math.DegToRad(FieldOfView), 1, NearClip, DefaultFar)
	assert.Equal(t, -plain.Data[5], m.Projection.Data[5])
	assert.Equal(t, m.View.Mul(m.Projection), m.ViewProjection)

	c.Orbit(math.DegToRad(90))
	assert.True(t, c.Position.Compare(math.NewVec3(-5, 0, 0), 1e-5), "got %v", c.Position)
	origin := c.View().MulVec4(math.NewVec4(0, 0, 0, 1))
	assert.InDelta(t, -5, origin.Z, 1e-5)
}
