package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/smazurov/viewsynth/internal/media"
	"github.com/smazurov/viewsynth/internal/visibility"
)

var (
	ErrNoCameras       = errors.New("scene has no cameras")
	ErrMissingPath     = errors.New("stream path is required")
	ErrDuplicateCamera = errors.New("duplicate camera name")
	ErrInvalidInputs   = errors.New("max_inputs must not be negative")
)

// SceneCamera is one [[cameras]] entry of a scene file.
type SceneCamera struct {
	Name       string          `toml:"name" json:"name"`
	Codec      string          `toml:"codec" json:"codec"`
	Color      string          `toml:"color" json:"color"`
	Depth      string          `toml:"depth" json:"depth"`
	DepthCodec string          `toml:"depth_codec,omitempty" json:"depth_codec,omitempty"`
	Position   visibility.Vec3 `toml:"position" json:"position"`
}

// Scene describes the input cameras of a capture.
//
//	max_inputs = 4
//
//	[[cameras]]
//	name = "cam0"
//	codec = "h265"
//	color = "cam0_color.h265"
//	depth = "cam0_depth.h265"
//	position = { x = 0.0, y = 1.5, z = -2.0 }
//
// Relative stream paths are resolved against the scene file's directory.
type Scene struct {
	// MaxInputs caps the cameras used per frame. Zero means all cameras.
	MaxInputs int           `toml:"max_inputs" json:"max_inputs"`
	Cameras   []SceneCamera `toml:"cameras" json:"cameras"`

	dir string
}

// LoadScene reads and validates a scene file.
func LoadScene(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scene: %w", err)
	}

	var scene Scene
	if err := toml.Unmarshal(data, &scene); err != nil {
		return nil, fmt.Errorf("parse scene %s: %w", path, err)
	}
	scene.dir = filepath.Dir(path)

	if err := scene.Validate(); err != nil {
		return nil, fmt.Errorf("scene %s: %w", path, err)
	}
	return &scene, nil
}

// Validate checks camera entries and fills in default names.
func (s *Scene) Validate() error {
	if len(s.Cameras) == 0 {
		return ErrNoCameras
	}
	if s.MaxInputs < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidInputs, s.MaxInputs)
	}

	seen := make(map[string]bool, len(s.Cameras))
	for i := range s.Cameras {
		cam := &s.Cameras[i]
		if cam.Name == "" {
			cam.Name = fmt.Sprintf("cam%d", i)
		}
		if seen[cam.Name] {
			return fmt.Errorf("%w: %s", ErrDuplicateCamera, cam.Name)
		}
		seen[cam.Name] = true

		if cam.Color == "" {
			return fmt.Errorf("camera %s color: %w", cam.Name, ErrMissingPath)
		}
		if cam.Depth == "" {
			return fmt.Errorf("camera %s depth: %w", cam.Name, ErrMissingPath)
		}
		if _, err := media.ParseCodec(cam.Codec); err != nil {
			return fmt.Errorf("camera %s: %w", cam.Name, err)
		}
		if cam.DepthCodec != "" {
			if _, err := media.ParseCodec(cam.DepthCodec); err != nil {
				return fmt.Errorf("camera %s depth: %w", cam.Name, err)
			}
		}
	}
	return nil
}

// InputLimit returns the effective max inputs.
func (s *Scene) InputLimit() int {
	if s.MaxInputs == 0 || s.MaxInputs > len(s.Cameras) {
		return len(s.Cameras)
	}
	return s.MaxInputs
}

// CameraSpecs converts the scene into media stream descriptions.
func (s *Scene) CameraSpecs() ([]media.CameraSpec, error) {
	specs := make([]media.CameraSpec, len(s.Cameras))
	for i, cam := range s.Cameras {
		colorCodec, err := media.ParseCodec(cam.Codec)
		if err != nil {
			return nil, fmt.Errorf("camera %s: %w", cam.Name, err)
		}
		depthCodec := colorCodec
		if cam.DepthCodec != "" {
			if depthCodec, err = media.ParseCodec(cam.DepthCodec); err != nil {
				return nil, fmt.Errorf("camera %s depth: %w", cam.Name, err)
			}
		}
		specs[i] = media.CameraSpec{
			Name:  cam.Name,
			Color: media.StreamSpec{Path: s.resolve(cam.Color), Codec: colorCodec},
			Depth: media.StreamSpec{Path: s.resolve(cam.Depth), Codec: depthCodec},
		}
	}
	return specs, nil
}

// Positions returns camera positions in camera order.
func (s *Scene) Positions() []visibility.Vec3 {
	out := make([]visibility.Vec3, len(s.Cameras))
	for i, cam := range s.Cameras {
		out[i] = cam.Position
	}
	return out
}

func (s *Scene) resolve(p string) string {
	if filepath.IsAbs(p) || s.dir == "" {
		return p
	}
	return filepath.Join(s.dir, p)
}

// Viewport is the output camera file, reloaded while the renderer runs.
//
//	position = { x = 0.0, y = 1.6, z = 0.0 }
type Viewport struct {
	Position visibility.Vec3 `toml:"position" json:"position"`
}

// LoadViewport reads a viewport file and returns the output camera position.
func LoadViewport(path string) (visibility.Vec3, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return visibility.Vec3{}, fmt.Errorf("read viewport: %w", err)
	}
	var vp Viewport
	if err := toml.Unmarshal(data, &vp); err != nil {
		return visibility.Vec3{}, fmt.Errorf("parse viewport %s: %w", path, err)
	}
	return vp.Position, nil
}

// SaveViewport writes pos to path, replacing the file atomically.
func SaveViewport(path string, pos visibility.Vec3) error {
	data, err := toml.Marshal(Viewport{Position: pos})
	if err != nil {
		return fmt.Errorf("encode viewport: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write viewport: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace viewport: %w", err)
	}
	return nil
}
