package metadata

// Floats per vertex: position(3) Ka(3) Kd(3) Ks(3) e(1) uv(2) normal(3).
const VertexFloats = 18

// StandardVertexFormat describes the interleaved layout produced by the OBJ loader.
var StandardVertexFormat = VertexFormat{
	Stride: VertexFloats * 4,
	Attributes: []VertexAttribute{
		{Location: 0, Offset: 0, Components: 3},  // position
		{Location: 1, Offset: 12, Components: 3}, // ambient
		{Location: 2, Offset: 24, Components: 3}, // diffuse
		{Location: 3, Offset: 36, Components: 3}, // specular
		{Location: 4, Offset: 48, Components: 1}, // exponent
		{Location: 5, Offset: 52, Components: 2}, // uv
		{Location: 6, Offset: 60, Components: 3}, // normal
	},
}

// MeshData is the CPU side of a loaded model.
type MeshData struct {
	Vertices []float32
	Indices  []uint32
}

func (m *MeshData) VertexCount() uint32 {
	return uint32(len(m.Vertices) / VertexFloats)
}

func (m *MeshData) Empty() bool {
	return len(m.Indices) == 0
}
