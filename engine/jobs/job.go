package jobs

import (
	"errors"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/spaghettifunk/talos/engine/assets/loaders"
	"github.com/spaghettifunk/talos/engine/core"
	"github.com/spaghettifunk/talos/engine/renderer/metadata"
)

/** @brief Lifecycle of a job. */
type Status int32

const (
	StatusPending Status = iota
	StatusInProgress
	StatusFinished
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusInProgress:
		return "in-progress"
	case StatusFinished:
		return "finished"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ExecContext is the per-worker view of the device. Each worker owns one, so
// implementations do not need to be safe for concurrent use.
type ExecContext interface {
	// UploadTexture creates the device image, sampler and descriptor set of tex
	// from its pixels.
	UploadTexture(tex *metadata.Texture) error
	// Release frees the worker's resources after the pool drains.
	Release()
}

// Job is a unit of asset work. A job owns its target until Execute returns.
type Job interface {
	ID() uuid.UUID
	Kind() string
	Status() Status
	// Execute does the work. Failures leave the target in its default state.
	Execute(ctx ExecContext) error
}

type base struct {
	id     uuid.UUID
	status atomic.Int32
}

func (b *base) init() {
	b.id = uuid.New()
}

func (b *base) ID() uuid.UUID {
	return b.id
}

func (b *base) Status() Status {
	return Status(b.status.Load())
}

func (b *base) setStatus(s Status) {
	b.status.Store(int32(s))
}

var ErrNoTarget = errors.New("job has no target")

// LoadModelJob decodes an OBJ/MTL pair into Target.
type LoadModelJob struct {
	base
	Key     string
	ObjPath string
	MtlPath string
	Target  *metadata.MeshData
}

func NewLoadModelJob(key, objPath, mtlPath string, target *metadata.MeshData) *LoadModelJob {
	j := &LoadModelJob{Key: key, ObjPath: objPath, MtlPath: mtlPath, Target: target}
	j.init()
	return j
}

func (j *LoadModelJob) Kind() string {
	return "model"
}

func (j *LoadModelJob) Execute(ctx ExecContext) error {
	j.setStatus(StatusInProgress)
	if j.Target == nil {
		j.setStatus(StatusFailed)
		return core.NewError(core.KindAsset, "load model "+j.Key, ErrNoTarget)
	}
	mesh, err := loaders.LoadOBJ(j.ObjPath, j.MtlPath)
	if err != nil {
		*j.Target = metadata.MeshData{}
		j.setStatus(StatusFailed)
		return core.NewError(core.KindAsset, "load model "+j.Key, err)
	}
	*j.Target = *mesh
	j.setStatus(StatusFinished)
	return nil
}

// LoadTextureJob decodes image files into Target and uploads it. When the
// files cannot be decoded the magenta fallback is uploaded instead, so the
// texture is always drawable.
type LoadTextureJob struct {
	base
	Key         string
	Paths       []string
	TextureType metadata.TextureType
	Target      *metadata.Texture
}

func NewLoadTextureJob(key string, paths []string, textureType metadata.TextureType, target *metadata.Texture) *LoadTextureJob {
	j := &LoadTextureJob{Key: key, Paths: paths, TextureType: textureType, Target: target}
	j.init()
	return j
}

func (j *LoadTextureJob) Kind() string {
	return "texture"
}

func (j *LoadTextureJob) Execute(ctx ExecContext) error {
	j.setStatus(StatusInProgress)
	if j.Target == nil {
		j.setStatus(StatusFailed)
		return core.NewError(core.KindAsset, "load texture "+j.Key, ErrNoTarget)
	}

	tex, loadErr := loaders.LoadTexture(j.Key, j.Paths, j.TextureType)
	if loadErr != nil {
		tex = metadata.NewFallbackTexture(j.Key, j.TextureType)
	}
	*j.Target = *tex

	if err := ctx.UploadTexture(j.Target); err != nil {
		j.setStatus(StatusFailed)
		return core.NewError(core.KindAsset, "upload texture "+j.Key, err)
	}
	if loadErr != nil {
		j.setStatus(StatusFailed)
		return core.NewError(core.KindAsset, "load texture "+j.Key, loadErr)
	}
	j.setStatus(StatusFinished)
	return nil
}
