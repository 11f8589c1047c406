package media

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/smazurov/viewsynth/internal/decode"
)

// PrimeIterations is the number of fetch and decode cycles every stream
// needs before its first picture is available.
const PrimeIterations = 2

// StreamSpec locates one elementary stream file.
type StreamSpec struct {
	Path  string
	Codec Codec
}

// CameraSpec pairs the color and depth streams of one camera.
type CameraSpec struct {
	Name  string
	Color StreamSpec
	Depth StreamSpec
}

// SetOptions configures OpenSet.
type SetOptions struct {
	// Surfaces is the decoded picture ring size per stream.
	Surfaces int

	// Logger for demux and decode operations. If nil, uses slog.Default().
	Logger *slog.Logger
}

type stream struct {
	name    string
	demuxer *AnnexBDemuxer
	decoder *SurfaceDecoder
	texture *Texture
}

// Set owns the demuxer, decoder and texture of every stream and serves them
// to the decode scheduler. Stream 2*i is camera i's color half and 2*i+1 its
// depth half.
type Set struct {
	cameras []CameraSpec
	streams []*stream
	logger  *slog.Logger
}

var _ decode.Source = (*Set)(nil)

// OpenSet opens every stream file of cameras.
func OpenSet(cameras []CameraSpec, opts SetOptions) (*Set, error) {
	if len(cameras) == 0 {
		return nil, decode.ErrNoCameras
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Set{cameras: cameras, logger: logger}
	for i, cam := range cameras {
		for _, half := range []struct {
			kind string
			spec StreamSpec
		}{{"color", cam.Color}, {"depth", cam.Depth}} {
			d, err := OpenAnnexB(half.spec.Path, half.spec.Codec, logger)
			if err != nil {
				s.Close()
				return nil, fmt.Errorf("camera %d (%s) %s: %w", i, cam.Name, half.kind, err)
			}
			s.streams = append(s.streams, &stream{
				name:    fmt.Sprintf("%s/%s", cam.Name, half.kind),
				demuxer: d,
				decoder: NewSurfaceDecoder(half.spec.Codec, opts.Surfaces),
				texture: NewTexture(),
			})
		}
	}

	logger.Info("Opened stream set", "cameras", len(cameras), "streams", len(s.streams))
	return s, nil
}

func (s *Set) Cameras() int { return len(s.cameras) }

func (s *Set) Camera(i int) CameraSpec { return s.cameras[i] }

func (s *Set) lookup(i int) (*stream, error) {
	if i < 0 || i >= len(s.streams) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStream, i)
	}
	return s.streams[i], nil
}

// Fetch returns the next access unit of a stream.
func (s *Set) Fetch(i int) ([]byte, error) {
	st, err := s.lookup(i)
	if err != nil {
		return nil, err
	}
	return st.demuxer.Next()
}

// Decode feeds unit to the stream's decoder.
func (s *Set) Decode(i int, unit []byte) (int, error) {
	st, err := s.lookup(i)
	if err != nil {
		return decode.NoPicture, err
	}
	picture, err := st.decoder.Decode(unit)
	if err != nil {
		return decode.NoPicture, fmt.Errorf("%s: %w", st.name, err)
	}
	return picture, nil
}

// Present copies both halves of a decoded camera frame into their textures.
func (s *Set) Present(color, depth decode.FrameHandle) error {
	var errs []error
	for _, h := range []decode.FrameHandle{color, depth} {
		st, err := s.lookup(h.Stream)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := st.decoder.Present(h.Picture, st.texture); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", st.name, err))
		}
	}
	return errors.Join(errs...)
}

// Textures returns the render-ready textures of a camera.
func (s *Set) Textures(camera int) (color, depth *Texture) {
	return s.streams[decode.ColorStream(camera)].texture, s.streams[decode.DepthStream(camera)].texture
}

// Prime decodes every stream sequentially up to startingFrame and presents
// the result, so each texture holds a picture before the pool starts.
func (s *Set) Prime(startingFrame int) error {
	if startingFrame < 0 {
		startingFrame = 0
	}
	start := time.Now()
	if startingFrame > 0 {
		s.logger.Info("Decoding up to starting frame", "frame", startingFrame)
	}

	for i, st := range s.streams {
		for j := 0; j < startingFrame+PrimeIterations; j++ {
			unit, err := st.demuxer.Next()
			if err != nil {
				return fmt.Errorf("%w: demux %s: %w", ErrPrimeFailed, st.name, err)
			}
			if _, err := st.decoder.Decode(unit); err != nil {
				return fmt.Errorf("%w: decode %s: %w", ErrPrimeFailed, st.name, err)
			}
		}
		if err := st.decoder.Present(st.decoder.LastPicture(), st.texture); err != nil {
			return fmt.Errorf("%w: present %s: %w", ErrPrimeFailed, st.name, err)
		}
		s.logger.Debug("Primed stream", "stream", i, "name", st.name, "texture_frame", st.texture.Frame())
	}

	s.logger.Info("Streams primed", "streams", len(s.streams), "duration", time.Since(start))
	return nil
}

// StreamStats describes one stream for status reporting.
type StreamStats struct {
	Name         string `json:"name"`
	Codec        Codec  `json:"codec"`
	Units        uint64 `json:"units"`
	Loops        int    `json:"loops"`
	Decoded      int    `json:"decoded"`
	TextureFrame int    `json:"texture_frame"`
}

func (s *Set) Stats() []StreamStats {
	out := make([]StreamStats, len(s.streams))
	for i, st := range s.streams {
		out[i] = StreamStats{
			Name:         st.name,
			Codec:        st.demuxer.Codec(),
			Units:        st.demuxer.Units(),
			Loops:        st.demuxer.Loops(),
			Decoded:      st.decoder.Decoded(),
			TextureFrame: st.texture.Frame(),
		}
	}
	return out
}

// Close closes every demuxer.
func (s *Set) Close() error {
	var errs []error
	for _, st := range s.streams {
		if err := st.demuxer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
