package renderer

import (
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/talos/engine/config"
	"github.com/spaghettifunk/talos/engine/core"
	"github.com/spaghettifunk/talos/engine/math"
	"github.com/spaghettifunk/talos/engine/renderer/metadata"
	"github.com/spaghettifunk/talos/engine/scene"
)

func newTestRenderer(t *testing.T, width, height uint32) (*Renderer, *fakeBackend) {
	t.Helper()
	backend := newFakeBackend()
	r, err := New(backend, Options{Workers: 2}, width, height)
	require.NoError(t, err)
	t.Cleanup(r.Shutdown)
	return r, backend
}

// withAssets installs device assets for s without touching the filesystem.
// Every group gets the mesh in meshes (or none) and a fallback texture.
func withAssets(t *testing.T, r *Renderer, backend *fakeBackend, s *scene.Scene, meshes map[string]*metadata.MeshData) {
	t.Helper()
	ctx, err := newUploadContext(backend, r.registry.SamplerLayout())
	require.NoError(t, err)
	defer ctx.Release()

	a := &SceneAssets{Scene: s, Vertices: NewVertexCollection(), Textures: make(map[string]*metadata.Texture)}
	for _, g := range s.Groups {
		tex := metadata.NewFallbackTexture(g.Key, metadata.TextureType2d)
		require.NoError(t, ctx.UploadTexture(tex))
		a.Textures[g.Key] = tex
		require.NoError(t, a.Vertices.Consume(g.Key, meshes[g.Key]))
	}
	if len(s.Skyboxes) > 0 {
		sky := metadata.NewFallbackTexture(s.Skyboxes[0], metadata.TextureTypeCube)
		require.NoError(t, ctx.UploadTexture(sky))
		a.Skybox = sky
	}
	require.NoError(t, a.Vertices.Finalize(backend, ctx.cmd))
	r.assets = a
}

func forwardScene(key string, instances int) *scene.Scene {
	s := scene.New()
	positions := make([]math.Vec3, instances)
	for i := range positions {
		positions[i] = math.NewVec3(float32(i), 0, 0)
	}
	s.AddActors(key, metadata.TagForward, positions...)
	return s
}

func TestFrameSlotFenceDiscipline(t *testing.T) {
	r, backend := newTestRenderer(t, 800, 600)
	s := scene.New()
	s.AddActors("p", metadata.TagPrepass, math.NewVec3Zero())
	withAssets(t, r, backend, s, map[string]*metadata.MeshData{"p": testMesh(4, 6)})
	camera := scene.NewCamera()

	require.Equal(t, uint64(2), r.FramesInFlight())
	backend.events = nil

	res := r.Render(s, camera)
	require.True(t, res.OK(), "%v", res.Err)
	assert.Equal(t, []string{
		"wait fence1", "acquire 0", "reset fence1",
		"submit fence2", "wait fence2", "reset fence2",
		"submit fence1", "present 0",
	}, backend.events)
	assert.Equal(t, uint64(1), r.FrameNumber())

	backend.events = nil
	require.True(t, r.Render(s, camera).OK())
	assert.Equal(t, []string{"wait fence3", "acquire 1", "reset fence3"}, backend.events[:3])

	for i := 0; i < 6; i++ {
		require.True(t, r.Render(s, camera).OK())
		assert.Equal(t, uint64(i+1)%2, r.FrameNumber())
	}
}

func TestForwardOnlyFrameTransitionsSwapchain(t *testing.T) {
	r, backend := newTestRenderer(t, 800, 600)
	s := forwardScene("f", 1)
	withAssets(t, r, backend, s, map[string]*metadata.MeshData{"f": testMesh(3, 3)})

	require.True(t, r.Render(s, scene.NewCamera()).OK())
	require.Len(t, backend.submits, 1)
	sub := backend.submits[0]

	require.NotEmpty(t, sub.transitions)
	first := sub.transitions[0]
	assert.Same(t, r.frames[0].Swapchain, first.Image)
	assert.Equal(t, metadata.ImageLayoutUndefined, first.OldLayout)
	assert.Equal(t, metadata.ImageLayoutPresentSrc, first.NewLayout)

	assert.Equal(t, []drawCall{{metadata.RenderPassForward, 3, 1, 0, 0}}, sub.draws)
	assert.Same(t, r.syncs[0].RenderStart, sub.wait)
	assert.Same(t, r.syncs[0].PresentReady, sub.signal)
	assert.Same(t, r.syncs[0].InFlight, sub.fence)
	assert.Contains(t, sub.ops, "bind-sets forward 0 2")
	assert.Contains(t, sub.ops, "bind-sets forward 2 1")
}

func TestDeferredFrameWithSkybox(t *testing.T) {
	r, backend := newTestRenderer(t, 800, 600)
	s := scene.New()
	s.AddActors("p", metadata.TagPrepass, math.NewVec3Zero())
	s.AddSkybox("sky")
	withAssets(t, r, backend, s, map[string]*metadata.MeshData{"p": testMesh(4, 6)})

	require.True(t, r.Render(s, scene.NewCamera()).OK())
	require.Len(t, backend.submits, 2)

	first := backend.submits[0]
	assert.Equal(t, []drawCall{
		{metadata.RenderPassSky, 6, 1, 0, 0},
		{metadata.RenderPassPrepass, 6, 1, 0, 0},
	}, first.draws)
	assert.Same(t, r.syncs[0].RenderStart, first.wait)
	assert.Nil(t, first.signal)
	assert.Same(t, r.syncs[0].Prepass, first.fence)
	assert.Empty(t, first.transitions, "the sky pass clears the swapchain image itself")

	second := backend.submits[1]
	require.Len(t, second.transitions, 3)
	for _, tr := range second.transitions {
		assert.Equal(t, metadata.ImageLayoutShaderReadOnlyOptimal, tr.NewLayout)
	}
	assert.Same(t, r.frames[0].PrepassDepth, second.transitions[2].Image)
	assert.Equal(t, []drawCall{{metadata.RenderPassDeferred, 6, 1, 0, 0}}, second.draws)
	assert.Contains(t, second.ops, "bind-sets deferred 1 1")
	assert.Nil(t, second.wait)
	assert.Same(t, r.syncs[0].InFlight, second.fence)
}

func TestSkyTagWithoutSkyboxSkipsSky(t *testing.T) {
	r, backend := newTestRenderer(t, 800, 600)
	s := forwardScene("f", 1)
	s.Passes = s.Passes.With(metadata.RenderPassSky)
	withAssets(t, r, backend, s, map[string]*metadata.MeshData{"f": testMesh(3, 3)})

	require.True(t, r.Render(s, scene.NewCamera()).OK())
	require.Len(t, backend.submits, 1)
	assert.NotContains(t, backend.submits[0].ops, "begin-pass sky")
}

func TestInstancesFollowGroupOrder(t *testing.T) {
	r, backend := newTestRenderer(t, 800, 600)
	s := scene.New()
	s.AddActors("a", metadata.TagForward, math.NewVec3(1, 0, 0), math.NewVec3(2, 0, 0), math.NewVec3(3, 0, 0))
	s.AddActors("p", metadata.TagPrepass, math.NewVec3(0, 5, 0))
	s.AddActors("b", metadata.TagForward, math.NewVec3(7, 0, 0), math.NewVec3(8, 0, 0))
	withAssets(t, r, backend, s, map[string]*metadata.MeshData{
		"a": testMesh(10, 15),
		"p": testMesh(4, 6),
		"b": testMesh(3, 9),
	})

	require.True(t, r.Render(s, scene.NewCamera()).OK())
	require.Len(t, backend.submits, 2)
	assert.Equal(t, []drawCall{{metadata.RenderPassPrepass, 6, 1, 15, 3}}, backend.submits[0].draws)
	assert.Equal(t, []drawCall{
		{metadata.RenderPassForward, 15, 3, 0, 0},
		{metadata.RenderPassForward, 9, 2, 21, 4},
		{metadata.RenderPassDeferred, 6, 1, 0, 0},
	}, backend.submits[1].draws)

	transforms := make([]math.Mat4, 6)
	_, err := binary.Decode(r.frames[0].Models.Bytes(), binary.LittleEndian, transforms)
	require.NoError(t, err)
	assert.Equal(t, math.NewMat4Translation(math.NewVec3(0, 5, 0)), transforms[3])
	assert.Equal(t, math.NewMat4Translation(math.NewVec3(8, 0, 0)), transforms[5])
}

func TestLightsAreCapped(t *testing.T) {
	r, backend := newTestRenderer(t, 800, 600)
	s := forwardScene("f", 1)
	for i := 0; i < 20; i++ {
		s.AddLight(metadata.Light{Position: math.NewVec3(float32(i), 1, 0), Color: math.NewVec3(1, 1, 1)})
	}
	withAssets(t, r, backend, s, map[string]*metadata.MeshData{"f": testMesh(3, 3)})

	require.True(t, r.Render(s, scene.NewCamera()).OK())
	var lights metadata.LightData
	_, err := binary.Decode(r.frames[0].Lights.Bytes(), binary.LittleEndian, &lights)
	require.NoError(t, err)
	assert.Equal(t, float32(metadata.MaxLights), lights.NumLights.X)
}

func TestInstanceOverflowIsCapped(t *testing.T) {
	r, backend := newTestRenderer(t, 800, 600)
	s := forwardScene("f", metadata.MaxInstances+6)
	withAssets(t, r, backend, s, map[string]*metadata.MeshData{"f": testMesh(3, 3)})

	res := r.Render(s, scene.NewCamera())
	require.True(t, res.OK(), "%v", res.Err)
	assert.Equal(t, []drawCall{{metadata.RenderPassForward, 3, metadata.MaxInstances, 0, 0}}, backend.submits[0].draws)
}

func TestRebuildIsIdempotent(t *testing.T) {
	r, backend := newTestRenderer(t, 800, 600)
	before := backend.snapshot()

	require.NoError(t, r.Rebuild())
	require.NoError(t, r.Rebuild())
	assert.Equal(t, before, backend.snapshot())
	assert.Len(t, r.frames, 3)
	assert.Len(t, r.syncs, 2)
	assert.Equal(t, 3, backend.swapchains)
	assert.Len(t, backend.shaders, 8, "passes are built once")

	r.Shutdown()
	assert.Zero(t, backend.liveTotal())
	r.Shutdown()
}

func TestSingleImageSwapchainUsesOneSlot(t *testing.T) {
	backend := newFakeBackend()
	backend.images = 1
	r, err := New(backend, Options{}, 640, 480)
	require.NoError(t, err)
	defer r.Shutdown()
	assert.Equal(t, uint64(1), r.FramesInFlight())

	s := forwardScene("f", 1)
	withAssets(t, r, backend, s, map[string]*metadata.MeshData{"f": testMesh(3, 3)})
	for i := 0; i < 3; i++ {
		require.True(t, r.Render(s, scene.NewCamera()).OK())
		assert.Zero(t, r.FrameNumber())
	}
}

func TestOutOfDateAcquireRebuilds(t *testing.T) {
	r, backend := newTestRenderer(t, 800, 600)
	s := forwardScene("f", 1)
	withAssets(t, r, backend, s, map[string]*metadata.MeshData{"f": testMesh(3, 3)})

	backend.acquireErr = core.ErrSwapchainOutOfDate
	res := r.Render(s, scene.NewCamera())
	assert.Equal(t, core.KindSwapchainRebuild, res.Kind)
	assert.ErrorIs(t, res.Err, core.ErrSwapchainOutOfDate)
	assert.Equal(t, 2, backend.swapchains)
	assert.Empty(t, backend.submits)

	assert.True(t, r.Render(s, scene.NewCamera()).OK())
}

func TestOutOfDatePresentRebuilds(t *testing.T) {
	r, backend := newTestRenderer(t, 800, 600)
	s := forwardScene("f", 1)
	withAssets(t, r, backend, s, map[string]*metadata.MeshData{"f": testMesh(3, 3)})

	backend.presentErr = core.ErrSwapchainOutOfDate
	res := r.Render(s, scene.NewCamera())
	assert.Equal(t, core.KindSwapchainRebuild, res.Kind)
	assert.Equal(t, 2, backend.swapchains)
	assert.Zero(t, r.FrameNumber())

	assert.True(t, r.Render(s, scene.NewCamera()).OK())
}

func TestLostSurfaceIsFatal(t *testing.T) {
	r, backend := newTestRenderer(t, 800, 600)
	s := forwardScene("f", 1)
	withAssets(t, r, backend, s, map[string]*metadata.MeshData{"f": testMesh(3, 3)})

	backend.presentErr = core.ErrDeviceLost
	res := r.Render(s, scene.NewCamera())
	assert.True(t, res.Fatal())
	assert.ErrorIs(t, res.Err, core.ErrDeviceLost)
}

func TestTransientSubmitFailureRearmsFence(t *testing.T) {
	r, backend := newTestRenderer(t, 800, 600)
	s := forwardScene("f", 1)
	withAssets(t, r, backend, s, map[string]*metadata.MeshData{"f": testMesh(3, 3)})

	backend.submitErr = errInjected
	res := r.Render(s, scene.NewCamera())
	assert.Equal(t, core.KindTransient, res.Kind)
	assert.ErrorIs(t, res.Err, errInjected)
	assert.Zero(t, r.FrameNumber())

	require.Len(t, backend.submits, 1)
	rearm := backend.submits[0]
	assert.Nil(t, rearm.ops)
	assert.Same(t, r.syncs[0].RenderStart, rearm.wait)
	assert.Same(t, r.syncs[0].InFlight, rearm.fence)

	assert.True(t, r.Render(s, scene.NewCamera()).OK(), "the slot fence is signaled again")
}

func TestTransientBeginFailureRearmsFence(t *testing.T) {
	r, backend := newTestRenderer(t, 800, 600)
	s := scene.New()
	s.AddActors("p", metadata.TagPrepass, math.NewVec3Zero())
	withAssets(t, r, backend, s, map[string]*metadata.MeshData{"p": testMesh(3, 3)})

	cmd := r.syncs[0].Command.(*fakeCommandBuffer)
	cmd.beginErr = errInjected
	res := r.Render(s, scene.NewCamera())
	assert.Equal(t, core.KindTransient, res.Kind)
	assert.Zero(t, r.FrameNumber())
	require.Len(t, backend.submits, 1)
	assert.Same(t, r.syncs[0].InFlight, backend.submits[0].fence)

	cmd.beginErr = nil
	assert.True(t, r.Render(s, scene.NewCamera()).OK())
}

func TestSuspendAndResume(t *testing.T) {
	backend := newFakeBackend()
	r, err := New(backend, Options{}, 0, 0)
	require.NoError(t, err)
	defer r.Shutdown()
	assert.Equal(t, SwapchainSuspended, r.State())
	assert.Zero(t, backend.swapchains)

	s := forwardScene("f", 1)
	res := r.Render(s, scene.NewCamera())
	assert.Equal(t, core.KindSwapchainRebuild, res.Kind)
	assert.ErrorIs(t, res.Err, core.ErrSwapchainBooting)

	r.Resize(800, 600)
	res = r.Render(s, scene.NewCamera())
	assert.Equal(t, core.KindSwapchainRebuild, res.Kind)
	assert.Equal(t, SwapchainValid, r.State())
	assert.Equal(t, 1, backend.swapchains)

	withAssets(t, r, backend, s, map[string]*metadata.MeshData{"f": testMesh(3, 3)})
	assert.True(t, r.Render(s, scene.NewCamera()).OK())

	r.Resize(0, 600)
	backend.events = nil
	res = r.Render(s, scene.NewCamera())
	assert.Equal(t, core.KindSwapchainRebuild, res.Kind)
	assert.Empty(t, backend.events, "a suspended renderer touches nothing")
}

func TestSceneChangeReleasesAssets(t *testing.T) {
	r, backend := newTestRenderer(t, 800, 600)
	s1 := forwardScene("a", 1)
	withAssets(t, r, backend, s1, map[string]*metadata.MeshData{"a": testMesh(3, 3)})
	require.True(t, r.Render(s1, scene.NewCamera()).OK())
	oldImage := r.assets.Textures["a"].Image.(*fakeImage)

	s2 := forwardScene(filepath.Join(t.TempDir(), "missing.asset.toml"), 1)
	backend.events = nil
	backend.submits = nil
	require.True(t, r.Render(s2, scene.NewCamera()).OK())

	assert.Contains(t, backend.events, "wait-idle")
	assert.True(t, oldImage.destroyed)
	assert.Same(t, s2, r.assets.Scene)
	assert.True(t, r.assets.Textures[s2.Groups[0].Key].Uploaded(), "a missing asset still gets a texture")
	assert.Empty(t, backend.submits[len(backend.submits)-1].draws, "an empty mesh is not drawn")

	require.NoError(t, r.ReleaseScene())
	assert.Nil(t, r.assets)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestPrepareSceneFromFiles(t *testing.T) {
	backend := newFakeBackend()
	registry := NewPassRegistry()
	require.NoError(t, registry.Build(backend, config.DefaultPasses(), metadata.FormatB8G8R8A8Srgb))

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "tri.obj"), "v 0 0 0\nv 1 0 0\nv 0 1 0\nvn 0 0 1\nf 1//1 2//1 3//1\n")
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for i := 0; i < 4; i++ {
		img.Set(i%2, i/2, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	}
	f, err := os.Create(filepath.Join(dir, "tri.png"))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	manifest := filepath.Join(dir, "tri.asset.toml")
	writeFile(t, manifest, "model = \"tri.obj\"\ntextures = [\"tri.png\"]\n")
	missing := filepath.Join(dir, "missing.asset.toml")

	s := scene.New()
	s.AddActors(manifest, metadata.TagForward, math.NewVec3Zero())
	s.AddActors(missing, metadata.TagPrepass, math.NewVec3Zero())
	s.AddSkybox(filepath.Join(dir, "sky.asset.toml"))

	prepared, err := PrepareScene(backend, registry, s, 2)
	require.NoError(t, err)

	tri, ok := prepared.Vertices.Range(manifest)
	require.True(t, ok)
	assert.Equal(t, MeshRange{FirstIndex: 0, IndexCount: 3}, tri)
	assert.Equal(t, uint32(2), prepared.Textures[manifest].Width)

	empty, ok := prepared.Vertices.Range(missing)
	require.True(t, ok)
	assert.Zero(t, empty.IndexCount)
	assert.Equal(t, uint32(1), prepared.Textures[missing].Width, "magenta fallback")
	assert.True(t, prepared.Textures[missing].Uploaded())

	require.NotNil(t, prepared.Skybox)
	assert.Len(t, prepared.Skybox.Pixels, 6)
	assert.Equal(t, uint32(6), prepared.Skybox.Image.Layers())

	prepared.Destroy()
	registry.Destroy()
	assert.Zero(t, backend.liveTotal(), "worker upload contexts are released")
}

func TestPrepareSceneFailsWhenNoWorkerStarts(t *testing.T) {
	backend := newFakeBackend()
	registry := NewPassRegistry()
	require.NoError(t, registry.Build(backend, config.DefaultPasses(), metadata.FormatB8G8R8A8Srgb))
	t.Cleanup(registry.Destroy)

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "tri.obj"), "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n")
	manifest := filepath.Join(dir, "tri.asset.toml")
	writeFile(t, manifest, "model = \"tri.obj\"\n")
	s := scene.New()
	s.AddActors(manifest, metadata.TagForward, math.NewVec3Zero())

	// The calling goroutine's upload context gets the only command buffer.
	backend.commandBudget = 1
	prepared, err := PrepareScene(backend, registry, s, 2)
	require.Error(t, err)
	assert.Nil(t, prepared)
	assert.Equal(t, core.KindSetup, core.KindOf(err))
	assert.ErrorIs(t, err, errInjected)
}
