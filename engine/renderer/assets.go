package renderer

import (
	"fmt"

	"github.com/spaghettifunk/talos/engine/assets"
	"github.com/spaghettifunk/talos/engine/assets/loaders"
	"github.com/spaghettifunk/talos/engine/core"
	"github.com/spaghettifunk/talos/engine/jobs"
	"github.com/spaghettifunk/talos/engine/renderer/metadata"
	"github.com/spaghettifunk/talos/engine/scene"
)

// uploadContext is a worker's handle on the device: a private command buffer
// used for one-shot copies on the shared graphics queue.
type uploadContext struct {
	backend Backend
	layout  metadata.DescriptorLayout
	cmd     metadata.CommandBuffer
}

func newUploadContext(backend Backend, layout metadata.DescriptorLayout) (*uploadContext, error) {
	cmd, err := backend.CreateCommandBuffer()
	if err != nil {
		return nil, fmt.Errorf("create upload command buffer: %w", err)
	}
	return &uploadContext{backend: backend, layout: layout, cmd: cmd}, nil
}

// UploadTexture creates the sampled image of tex, copies every layer into it
// and allocates the descriptor set that binds it.
func (u *uploadContext) UploadTexture(tex *metadata.Texture) error {
	layerSize := uint64(tex.Width) * uint64(tex.Height) * 4
	layers := tex.TextureType.Layers()
	if len(tex.Pixels) != layers {
		return fmt.Errorf("texture %s has %d layers, want %d", tex.Name, len(tex.Pixels), layers)
	}

	staging, err := u.backend.CreateBuffer(metadata.BufferInfo{
		Size:        layerSize * uint64(layers),
		Usage:       metadata.BufferUsageTransferSrc,
		HostVisible: true,
	})
	if err != nil {
		return err
	}
	defer staging.Destroy()
	dst := staging.Bytes()
	for i, layer := range tex.Pixels {
		if uint64(len(layer)) != layerSize {
			return fmt.Errorf("texture %s layer %d has %d bytes, want %d", tex.Name, i, len(layer), layerSize)
		}
		copy(dst[uint64(i)*layerSize:], layer)
	}

	img, err := u.backend.CreateImage(metadata.ImageInfo{
		Extent: metadata.Extent{Width: tex.Width, Height: tex.Height},
		Format: metadata.FormatR8G8B8A8Srgb,
		Usage:  metadata.ImageUsageSampled | metadata.ImageUsageTransferDst,
		Cube:   tex.TextureType == metadata.TextureTypeCube,
	})
	if err != nil {
		return err
	}
	tex.Image = img

	if err := u.copyToImage(staging, img); err != nil {
		tex.Destroy()
		return err
	}

	if tex.Sampler, err = u.backend.CreateSampler(tex.TextureType == metadata.TextureTypeCube); err != nil {
		tex.Destroy()
		return err
	}
	if tex.Pool, err = u.backend.CreateDescriptorPool(metadata.DescriptorPoolInfo{
		MaxSets: 1,
		Sizes:   map[metadata.DescriptorKind]uint32{metadata.DescriptorCombinedImageSampler: 1},
	}); err != nil {
		tex.Destroy()
		return err
	}
	if tex.Set, err = tex.Pool.Allocate(u.layout); err != nil {
		tex.Destroy()
		return err
	}
	tex.Set.WriteImage(0, tex.Image, tex.Sampler)
	return nil
}

func (u *uploadContext) copyToImage(src metadata.Buffer, img metadata.Image) error {
	if err := u.cmd.Reset(); err != nil {
		return err
	}
	if err := u.cmd.Begin(true); err != nil {
		return err
	}
	u.cmd.Transition(metadata.Transition{Image: img, OldLayout: metadata.ImageLayoutUndefined, NewLayout: metadata.ImageLayoutTransferDstOptimal})
	u.cmd.CopyBufferToImage(src, img)
	u.cmd.Transition(metadata.Transition{Image: img, OldLayout: metadata.ImageLayoutTransferDstOptimal, NewLayout: metadata.ImageLayoutShaderReadOnlyOptimal})
	if err := u.cmd.End(); err != nil {
		return err
	}
	return u.backend.SubmitWait(u.cmd)
}

func (u *uploadContext) Release() {
	if u.cmd != nil {
		u.cmd.Destroy()
		u.cmd = nil
	}
}

/**
 * @brief The device-side assets of a prepared scene: one consolidated
 * vertex collection, one texture per actor group and the sky cubemap.
 */
type SceneAssets struct {
	Scene    *scene.Scene
	Vertices *VertexCollection
	Textures map[string]*metadata.Texture
	Skybox   *metadata.Texture
}

// PrepareScene loads every asset the scene references. Meshes and textures are
// decoded on a pool of workers; the skybox is loaded on the calling goroutine
// while they run. Broken assets are logged and replaced by their defaults, so
// only device failures are returned.
func PrepareScene(backend Backend, registry *PassRegistry, s *scene.Scene, workers int) (*SceneAssets, error) {
	if workers <= 0 {
		workers = jobs.DefaultWorkers()
	}
	prepared := &SceneAssets{
		Scene:    s,
		Vertices: NewVertexCollection(),
		Textures: make(map[string]*metadata.Texture, len(s.Groups)),
	}
	meshes := make(map[string]*metadata.MeshData, len(s.Groups))

	queue := jobs.NewJobQueue()
	for _, g := range s.Groups {
		mesh := &metadata.MeshData{}
		tex := &metadata.Texture{Name: g.Key}
		meshes[g.Key] = mesh
		prepared.Textures[g.Key] = tex

		var textures []string
		m, err := assets.LoadManifest(g.Key)
		if err != nil {
			core.LogWarn("%s", core.NewError(core.KindAsset, "load manifest", err))
		} else {
			textures = m.Textures
			if m.HasModel() {
				queue.Add(jobs.NewLoadModelJob(g.Key, m.Model, m.Material, mesh))
			}
		}
		queue.Add(jobs.NewLoadTextureJob(g.Key, textures, metadata.TextureType2d, tex))
	}

	layout := registry.SamplerLayout()
	pool, err := jobs.NewWorkerPool(queue, workers, func(int) (jobs.ExecContext, error) {
		return newUploadContext(backend, layout)
	})
	if err != nil {
		return nil, core.NewError(core.KindSetup, "create worker pool", err)
	}

	mainCtx, err := newUploadContext(backend, layout)
	if err != nil {
		return nil, core.NewError(core.KindSetup, "prepare scene", err)
	}
	defer mainCtx.Release()

	core.LogInfo("preparing scene: %d jobs on %d workers", queue.Len(), workers)
	pool.Start()
	prepared.Skybox, err = loadSkybox(mainCtx, s)
	joinErr := pool.Join()
	if failed := pool.Failed(); len(failed) > 0 {
		core.LogWarn("%d asset jobs failed, defaults are used in their place", len(failed))
	}
	if err != nil {
		prepared.Destroy()
		return nil, core.NewError(core.KindSetup, "upload skybox", err)
	}
	if joinErr != nil {
		core.LogError("asset workers: %s", joinErr.Error())
		prepared.Destroy()
		return nil, core.NewError(core.KindSetup, "prepare scene", joinErr)
	}

	for _, g := range s.Groups {
		if err := prepared.Vertices.Consume(g.Key, meshes[g.Key]); err != nil {
			prepared.Destroy()
			return nil, core.NewError(core.KindSetup, "consume mesh "+g.Key, err)
		}
	}
	if err := prepared.Vertices.Finalize(backend, mainCtx.cmd); err != nil {
		prepared.Destroy()
		return nil, core.NewError(core.KindSetup, "finalize vertices", err)
	}
	return prepared, nil
}

// loadSkybox uploads the first skybox of s, or returns nil when there is none.
// A skybox that cannot be decoded is replaced by the fallback cube.
func loadSkybox(ctx *uploadContext, s *scene.Scene) (*metadata.Texture, error) {
	if len(s.Skyboxes) == 0 {
		return nil, nil
	}
	key := s.Skyboxes[0]
	if len(s.Skyboxes) > 1 {
		core.LogWarn("scene has %d skyboxes, only %s is used", len(s.Skyboxes), key)
	}

	var tex *metadata.Texture
	m, err := assets.LoadManifest(key)
	if err == nil {
		tex, err = loaders.LoadTexture(key, m.Textures, metadata.TextureTypeCube)
	}
	if err != nil {
		core.LogWarn("%s", core.NewError(core.KindAsset, "load skybox", err))
		tex = metadata.NewFallbackTexture(key, metadata.TextureTypeCube)
	}
	if err := ctx.UploadTexture(tex); err != nil {
		return nil, err
	}
	return tex, nil
}

// Destroy releases every device handle. The caller waits for the device to
// be idle first.
func (a *SceneAssets) Destroy() {
	for _, t := range a.Textures {
		t.Destroy()
	}
	if a.Skybox != nil {
		a.Skybox.Destroy()
	}
	a.Vertices.Destroy()
}
