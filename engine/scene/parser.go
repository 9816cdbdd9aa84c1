package scene

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spaghettifunk/talos/engine/core"
	"github.com/spaghettifunk/talos/engine/math"
	"github.com/spaghettifunk/talos/engine/renderer/metadata"
)

// Load parses a scene file.
func Load(path string) (*Scene, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scene: %w", err)
	}
	defer f.Close()

	s, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("scene %s: %w", path, err)
	}
	s.Path = path
	return s, nil
}

// Parse reads one object per line:
//
//	meshActor <asset> <TAG> x y z [x y z ...]
//	light px py pz r g b
//	skybox <asset>
//
// Blank lines and lines starting with # are ignored. Unknown object types are
// logged and skipped.
func Parse(r io.Reader) (*Scene, error) {
	s := New()
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}

		var err error
		switch fields[0] {
		case "meshActor":
			err = parseMeshActor(s, fields[1:])
		case "light":
			err = parseLight(s, fields[1:])
		case "skybox":
			if len(fields) < 2 {
				err = fmt.Errorf("skybox needs an asset")
			} else {
				s.AddSkybox(fields[1])
			}
		default:
			core.LogWarn("scene line %d: unknown object type %q", line, fields[0])
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return s, nil
}

func parseMeshActor(s *Scene, fields []string) error {
	if len(fields) < 2 {
		return fmt.Errorf("meshActor needs an asset and a tag")
	}
	key, tag := fields[0], strings.ToUpper(fields[1])
	coords := fields[2:]
	if len(coords)%3 != 0 {
		return fmt.Errorf("meshActor %s: %d coordinates is not a list of positions", key, len(coords))
	}
	if len(coords) == 0 {
		core.LogWarn("meshActor %s has no instances", key)
	}

	positions := make([]math.Vec3, 0, len(coords)/3)
	for i := 0; i < len(coords); i += 3 {
		p, err := parseVec3(coords[i : i+3])
		if err != nil {
			return fmt.Errorf("meshActor %s: %w", key, err)
		}
		positions = append(positions, p)
	}
	s.AddActors(key, tag, positions...)
	return nil
}

func parseLight(s *Scene, fields []string) error {
	if len(fields) != 6 {
		return fmt.Errorf("light needs 6 numbers, got %d", len(fields))
	}
	pos, err := parseVec3(fields[0:3])
	if err != nil {
		return fmt.Errorf("light position: %w", err)
	}
	color, err := parseVec3(fields[3:6])
	if err != nil {
		return fmt.Errorf("light color: %w", err)
	}
	s.AddLight(metadata.Light{Position: pos, Color: color})
	return nil
}

func parseVec3(fields []string) (math.Vec3, error) {
	var out [3]float32
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return math.Vec3{}, fmt.Errorf("bad number %q", f)
		}
		out[i] = float32(v)
	}
	return math.NewVec3(out[0], out[1], out[2]), nil
}
