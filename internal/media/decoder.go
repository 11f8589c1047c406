package media

import (
	"fmt"
	"sync"

	"github.com/smazurov/viewsynth/internal/decode"
)

// DefaultSurfaces is the decoded picture ring size per stream.
const DefaultSurfaces = 4

type surface struct {
	data  []byte
	frame int
}

// SurfaceDecoder holds decoded pictures in a fixed ring of surfaces and
// returns the surface slot as the picture index. Nothing is produced until
// the first keyframe, like a hardware decoder joining mid-stream.
type SurfaceDecoder struct {
	codec Codec

	mu        sync.Mutex
	surfaces  []surface
	next      int
	decoded   int
	keyframed bool
	last      int
}

func NewSurfaceDecoder(codec Codec, surfaces int) *SurfaceDecoder {
	if surfaces < 2 {
		surfaces = DefaultSurfaces
	}
	return &SurfaceDecoder{
		codec:    codec,
		surfaces: make([]surface, surfaces),
		last:     decode.NoPicture,
	}
}

// Decode consumes one access unit and returns the surface that received
// the picture, or decode.NoPicture when no picture became available.
func (d *SurfaceDecoder) Decode(unit []byte) (int, error) {
	var slice []byte
	keyframe := false
	for _, nal := range splitAnnexB(unit) {
		if len(nal) == 0 {
			continue
		}
		if nal[0]&0x80 != 0 {
			return decode.NoPicture, fmt.Errorf("%w: forbidden_zero_bit set", ErrCorruptUnit)
		}
		if d.codec.IsVCL(nal) {
			slice = nal
			keyframe = d.codec.IsKeyframe(nal)
		}
	}
	if slice == nil {
		return decode.NoPicture, fmt.Errorf("%w: no slice data", ErrCorruptUnit)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	seq := d.decoded
	d.decoded++
	if keyframe {
		d.keyframed = true
	}
	if !d.keyframed {
		return decode.NoPicture, nil
	}

	slot := d.next
	d.next = (d.next + 1) % len(d.surfaces)
	s := &d.surfaces[slot]
	s.data = append(s.data[:0], slice...)
	s.frame = seq
	d.last = slot
	return slot, nil
}

// LastPicture returns the most recently filled surface.
func (d *SurfaceDecoder) LastPicture() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// Decoded returns the number of access units consumed.
func (d *SurfaceDecoder) Decoded() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.decoded
}

// Present copies a surface into tex. NoPicture leaves tex untouched.
func (d *SurfaceDecoder) Present(picture int, tex *Texture) error {
	if picture == decode.NoPicture {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if picture < 0 || picture >= len(d.surfaces) {
		return fmt.Errorf("%w: %d", ErrInvalidPicture, picture)
	}
	s := d.surfaces[picture]
	tex.Upload(s.data, s.frame)
	return nil
}
