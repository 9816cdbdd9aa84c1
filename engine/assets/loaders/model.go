package loaders

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spaghettifunk/talos/engine/math"
	"github.com/spaghettifunk/talos/engine/renderer/metadata"
)

// Material is the flat colour a face is painted with.
type Material struct {
	Name     string
	Ambient  math.Vec3
	Diffuse  math.Vec3
	Specular math.Vec3
	Exponent float32
}

// objDecoder turns a Wavefront OBJ plus its MTL library into the interleaved
// vertex layout of metadata.StandardVertexFormat. Faces are fan-triangulated
// and corners with the same "v/vt/vn" text share a vertex.
type objDecoder struct {
	materials  map[string]*Material
	brush      Material
	matCurrent *Material

	positions []math.Vec3
	uvs       []math.Vec2
	normals   []math.Vec3

	history map[string]uint32
	mesh    *metadata.MeshData

	line uint
}

// LoadOBJ decodes objPath, colouring faces from the materials in mtlPath.
// mtlPath may be empty.
func LoadOBJ(objPath, mtlPath string) (*metadata.MeshData, error) {
	var mtl io.Reader
	if mtlPath != "" {
		f, err := os.Open(mtlPath)
		if err != nil {
			return nil, fmt.Errorf("open material %s: %w", mtlPath, err)
		}
		defer f.Close()
		mtl = f
	}

	f, err := os.Open(objPath)
	if err != nil {
		return nil, fmt.Errorf("open model %s: %w", objPath, err)
	}
	defer f.Close()

	mesh, err := DecodeOBJ(f, mtl)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", objPath, err)
	}
	return mesh, nil
}

// DecodeOBJ is LoadOBJ over readers. mtl may be nil.
func DecodeOBJ(obj, mtl io.Reader) (*metadata.MeshData, error) {
	dec := &objDecoder{
		materials: make(map[string]*Material),
		history:   make(map[string]uint32),
		mesh:      &metadata.MeshData{},
	}
	if mtl != nil {
		if err := dec.parse(mtl, dec.parseMtlLine); err != nil {
			return nil, err
		}
	}
	if err := dec.parse(obj, dec.parseObjLine); err != nil {
		return nil, err
	}
	return dec.mesh, nil
}

func (dec *objDecoder) parse(reader io.Reader, parseLine func([]string) error) error {
	scanner := bufio.NewScanner(reader)
	dec.line = 0
	for scanner.Scan() {
		dec.line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		if err := parseLine(fields); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func (dec *objDecoder) parseObjLine(fields []string) error {
	switch fields[0] {
	case "v":
		v, err := dec.parseVec3(fields[1:])
		if err != nil {
			return err
		}
		dec.positions = append(dec.positions, v)
	case "vt":
		if len(fields) < 3 {
			return dec.formatError("vt with less than 2 fields")
		}
		u, err := dec.parseFloat(fields[1])
		if err != nil {
			return err
		}
		v, err := dec.parseFloat(fields[2])
		if err != nil {
			return err
		}
		dec.uvs = append(dec.uvs, math.Vec2{X: u, Y: v})
	case "vn":
		n, err := dec.parseVec3(fields[1:])
		if err != nil {
			return err
		}
		dec.normals = append(dec.normals, n)
	case "usemtl":
		dec.brush = Material{}
		if len(fields) > 1 {
			if m, ok := dec.materials[fields[1]]; ok {
				dec.brush = *m
			}
		}
	case "f":
		return dec.parseFace(fields[1:])
	}
	return nil
}

// parseFace emits the triangle fan (c0, ci, ci+1).
func (dec *objDecoder) parseFace(corners []string) error {
	if len(corners) < 3 {
		return dec.formatError("face with less than 3 vertices")
	}
	for i := 0; i+2 < len(corners); i++ {
		for _, c := range [3]string{corners[0], corners[1+i], corners[2+i]} {
			if err := dec.readCorner(c); err != nil {
				return err
			}
		}
	}
	return nil
}

func (dec *objDecoder) readCorner(desc string) error {
	if idx, ok := dec.history[desc]; ok {
		dec.mesh.Indices = append(dec.mesh.Indices, idx)
		return nil
	}

	parts := strings.Split(desc, "/")
	pi, err := dec.resolveIndex(parts[0], len(dec.positions))
	if err != nil {
		return err
	}
	pos := dec.positions[pi]

	var uv math.Vec2
	if len(parts) > 1 && parts[1] != "" {
		ti, err := dec.resolveIndex(parts[1], len(dec.uvs))
		if err != nil {
			return err
		}
		uv = dec.uvs[ti]
	}

	var normal math.Vec3
	if len(parts) > 2 && parts[2] != "" {
		ni, err := dec.resolveIndex(parts[2], len(dec.normals))
		if err != nil {
			return err
		}
		normal = dec.normals[ni]
	}

	idx := uint32(len(dec.history))
	dec.history[desc] = idx
	dec.mesh.Indices = append(dec.mesh.Indices, idx)

	b := dec.brush
	dec.mesh.Vertices = append(dec.mesh.Vertices,
		pos.X, pos.Y, pos.Z,
		b.Ambient.X, b.Ambient.Y, b.Ambient.Z,
		b.Diffuse.X, b.Diffuse.Y, b.Diffuse.Z,
		b.Specular.X, b.Specular.Y, b.Specular.Z,
		b.Exponent,
		uv.X, 1-uv.Y,
		normal.X, normal.Y, normal.Z,
	)
	return nil
}

// resolveIndex converts a 1-based (or negative, relative) OBJ index.
func (dec *objDecoder) resolveIndex(field string, count int) (int, error) {
	i, err := strconv.Atoi(field)
	if err != nil {
		return 0, dec.formatError(fmt.Sprintf("bad index %q", field))
	}
	if i < 0 {
		i = count + i
	} else {
		i--
	}
	if i < 0 || i >= count {
		return 0, dec.formatError(fmt.Sprintf("index %s out of range (%d)", field, count))
	}
	return i, nil
}

func (dec *objDecoder) parseMtlLine(fields []string) error {
	if fields[0] == "newmtl" {
		if len(fields) < 2 {
			return dec.formatError("newmtl with no fields")
		}
		name := fields[1]
		mat := dec.materials[name]
		if mat == nil {
			mat = &Material{Name: name}
			dec.materials[name] = mat
		}
		dec.matCurrent = mat
		return nil
	}
	if dec.matCurrent == nil {
		return nil
	}

	var err error
	switch fields[0] {
	case "Ka":
		dec.matCurrent.Ambient, err = dec.parseVec3(fields[1:])
	case "Kd":
		dec.matCurrent.Diffuse, err = dec.parseVec3(fields[1:])
	case "Ks":
		dec.matCurrent.Specular, err = dec.parseVec3(fields[1:])
	case "Ni":
		if len(fields) < 2 {
			return dec.formatError("Ni with no fields")
		}
		dec.matCurrent.Exponent, err = dec.parseFloat(fields[1])
	}
	return err
}

func (dec *objDecoder) parseVec3(fields []string) (math.Vec3, error) {
	if len(fields) < 3 {
		return math.Vec3{}, dec.formatError("less than 3 components")
	}
	var out [3]float32
	for i := range out {
		f, err := dec.parseFloat(fields[i])
		if err != nil {
			return math.Vec3{}, err
		}
		out[i] = f
	}
	return math.NewVec3(out[0], out[1], out[2]), nil
}

func (dec *objDecoder) parseFloat(field string) (float32, error) {
	f, err := strconv.ParseFloat(field, 32)
	if err != nil {
		return 0, dec.formatError(fmt.Sprintf("bad number %q", field))
	}
	return float32(f), nil
}

func (dec *objDecoder) formatError(msg string) error {
	return fmt.Errorf("%s in line:%d", msg, dec.line)
}
