package renderer

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/spaghettifunk/talos/engine/core"
	"github.com/spaghettifunk/talos/engine/renderer/metadata"
)

var ErrCollectionFinalized = errors.New("vertex collection already finalized")

// MeshRange locates one mesh inside the shared index buffer.
type MeshRange struct {
	FirstIndex uint32
	IndexCount uint32
}

/**
 * @brief Concatenates every mesh of a scene into one vertex and one index
 * buffer. Indices are rebased by the number of vertices consumed before them,
 * so every mesh draws with a zero vertex offset.
 */
type VertexCollection struct {
	vertices    []float32
	indices     []uint32
	vertexCount uint32
	ranges      map[string]MeshRange

	VertexBuffer metadata.Buffer
	IndexBuffer  metadata.Buffer
	finalized    bool
}

func NewVertexCollection() *VertexCollection {
	return &VertexCollection{ranges: make(map[string]MeshRange)}
}

// Consume appends mesh under key. A key already consumed is ignored.
func (c *VertexCollection) Consume(key string, mesh *metadata.MeshData) error {
	if c.finalized {
		return ErrCollectionFinalized
	}
	if _, ok := c.ranges[key]; ok {
		return nil
	}
	r := MeshRange{FirstIndex: uint32(len(c.indices))}
	if mesh != nil {
		c.vertices = append(c.vertices, mesh.Vertices...)
		for _, i := range mesh.Indices {
			c.indices = append(c.indices, i+c.vertexCount)
		}
		c.vertexCount += mesh.VertexCount()
		r.IndexCount = uint32(len(mesh.Indices))
	}
	c.ranges[key] = r
	return nil
}

func (c *VertexCollection) Range(key string) (MeshRange, bool) {
	r, ok := c.ranges[key]
	return r, ok
}

func (c *VertexCollection) VertexCount() uint32 {
	return c.vertexCount
}

func (c *VertexCollection) Indices() []uint32 {
	return c.indices
}

func (c *VertexCollection) Empty() bool {
	return len(c.indices) == 0
}

// Finalize uploads the collection into device-local buffers through a
// staging buffer. The CPU copies are dropped afterwards.
func (c *VertexCollection) Finalize(backend Backend, cmd metadata.CommandBuffer) error {
	if c.finalized {
		return ErrCollectionFinalized
	}
	c.finalized = true
	if c.Empty() {
		core.LogWarn("vertex collection is empty, nothing to upload")
		return nil
	}

	var err error
	if c.VertexBuffer, err = upload(backend, cmd, c.vertices, metadata.BufferUsageVertex); err != nil {
		return fmt.Errorf("upload vertices: %w", err)
	}
	if c.IndexBuffer, err = upload(backend, cmd, c.indices, metadata.BufferUsageIndex); err != nil {
		return fmt.Errorf("upload indices: %w", err)
	}
	core.LogDebug("vertex collection uploaded: %d vertices, %d indices, %d meshes", c.vertexCount, len(c.indices), len(c.ranges))
	c.vertices, c.indices = nil, nil
	return nil
}

// upload copies data into a new device-local buffer of the given usage.
func upload(backend Backend, cmd metadata.CommandBuffer, data any, usage metadata.BufferUsage) (metadata.Buffer, error) {
	size := uint64(binary.Size(data))
	staging, err := backend.CreateBuffer(metadata.BufferInfo{Size: size, Usage: metadata.BufferUsageTransferSrc, HostVisible: true})
	if err != nil {
		return nil, err
	}
	defer staging.Destroy()
	if _, err := binary.Encode(staging.Bytes(), binary.LittleEndian, data); err != nil {
		return nil, err
	}

	dst, err := backend.CreateBuffer(metadata.BufferInfo{Size: size, Usage: usage | metadata.BufferUsageTransferDst})
	if err != nil {
		return nil, err
	}
	if err := cmd.Reset(); err != nil {
		dst.Destroy()
		return nil, err
	}
	if err := cmd.Begin(true); err != nil {
		dst.Destroy()
		return nil, err
	}
	cmd.CopyBuffer(staging, dst, size)
	if err := cmd.End(); err != nil {
		dst.Destroy()
		return nil, err
	}
	if err := backend.SubmitWait(cmd); err != nil {
		dst.Destroy()
		return nil, err
	}
	return dst, nil
}

// Bind binds both buffers. An empty collection binds nothing.
func (c *VertexCollection) Bind(cmd metadata.CommandBuffer) {
	if c.VertexBuffer == nil || c.IndexBuffer == nil {
		return
	}
	cmd.BindVertexBuffer(c.VertexBuffer)
	cmd.BindIndexBuffer(c.IndexBuffer)
}

func (c *VertexCollection) Destroy() {
	destroyAll(c.VertexBuffer, c.IndexBuffer)
	c.VertexBuffer, c.IndexBuffer = nil, nil
}
