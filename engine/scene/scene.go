package scene

import (
	"golang.org/x/exp/slices"

	"github.com/spaghettifunk/talos/engine/core"
	"github.com/spaghettifunk/talos/engine/math"
	"github.com/spaghettifunk/talos/engine/renderer/metadata"
)

// DefaultModel is the actor placed in a scene when no scene file is configured.
const DefaultModel = "assets/models/cyndaquil.asset.toml"

// ActorGroup holds every instance of one asset. All instances share the
// asset's tag, mesh and texture.
type ActorGroup struct {
	Key       string
	Tag       string
	Positions []math.Vec3
}

func (g *ActorGroup) Len() int {
	return len(g.Positions)
}

// Scene is the renderer's input. Groups keep insertion order, which is also
// the order instance transforms are written and drawn in.
type Scene struct {
	Path     string
	Groups   []*ActorGroup
	Lights   []metadata.Light
	Skyboxes []string
	Passes   metadata.PassSet
}

func New() *Scene {
	return &Scene{}
}

// Default returns the built-in scene: one prepass actor at the origin lit by a
// white light above it.
func Default() *Scene {
	s := New()
	s.AddActors(DefaultModel, metadata.TagPrepass, math.NewVec3Zero())
	s.AddLight(metadata.Light{Position: math.NewVec3(0, 10, 0), Color: math.NewVec3(1, 1, 1)})
	return s
}

// Group returns the group for key, or nil.
func (s *Scene) Group(key string) *ActorGroup {
	i := slices.IndexFunc(s.Groups, func(g *ActorGroup) bool { return g.Key == key })
	if i < 0 {
		return nil
	}
	return s.Groups[i]
}

// AddActors appends instances of key. A key keeps the tag it was first added with.
func (s *Scene) AddActors(key, tag string, positions ...math.Vec3) {
	g := s.Group(key)
	if g == nil {
		g = &ActorGroup{Key: key, Tag: tag}
		s.Groups = append(s.Groups, g)
	} else if g.Tag != tag {
		core.LogWarn("asset %s already tagged %s, ignoring tag %s", key, g.Tag, tag)
	}
	g.Positions = append(g.Positions, positions...)

	passes := metadata.PassesForTag(tag)
	if passes.Empty() {
		core.LogWarn("asset %s has unknown tag %q and will not be drawn", key, tag)
	}
	s.Passes = s.Passes.Union(passes)
}

func (s *Scene) AddLight(light metadata.Light) {
	s.Lights = append(s.Lights, light)
}

func (s *Scene) AddSkybox(key string) {
	s.Skyboxes = append(s.Skyboxes, key)
	s.Passes = s.Passes.With(metadata.RenderPassSky)
}

func (s *Scene) Requires(pass metadata.RenderPassType) bool {
	return s.Passes.Has(pass)
}

func (s *Scene) InstanceCount() int {
	n := 0
	for _, g := range s.Groups {
		n += g.Len()
	}
	return n
}

// Transforms returns one translation per instance in group order.
func (s *Scene) Transforms() []math.Mat4 {
	out := make([]math.Mat4, 0, s.InstanceCount())
	for _, g := range s.Groups {
		for _, p := range g.Positions {
			out = append(out, math.NewMat4Translation(p))
		}
	}
	return out
}

// Keys lists the asset keys of every group plus every skybox, in order.
func (s *Scene) Keys() []string {
	keys := make([]string, 0, len(s.Groups)+len(s.Skyboxes))
	for _, g := range s.Groups {
		keys = append(keys, g.Key)
	}
	return append(keys, s.Skyboxes...)
}
