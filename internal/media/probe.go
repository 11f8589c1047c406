package media

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/nareix/joy4/codec/h264parser"
)

// ProbeResult summarizes one pass over a stream file.
type ProbeResult struct {
	Path        string `json:"path"`
	Codec       Codec  `json:"codec"`
	NALUnits    int    `json:"nal_units"`
	AccessUnits int    `json:"access_units"`
	Keyframes   int    `json:"keyframes"`
	ConfigNALs  int    `json:"config_nals"`
	Bytes       int64  `json:"bytes"`

	// Coded picture size and profile from the first parseable H.264 SPS.
	Width   int `json:"width,omitempty"`
	Height  int `json:"height,omitempty"`
	Profile int `json:"profile,omitempty"`
	Level   int `json:"level,omitempty"`
}

// Probe reads path once, without looping, and counts its NAL units.
func Probe(path string, codec Codec) (ProbeResult, error) {
	res := ProbeResult{Path: path, Codec: codec}

	f, err := os.Open(path)
	if err != nil {
		return res, fmt.Errorf("open stream %s: %w", path, err)
	}
	defer f.Close()

	r, err := newNALReader(codec, f)
	if err != nil {
		return res, fmt.Errorf("create %s reader for %s: %w", codec, path, err)
	}

	for {
		nal, err := r.NextNAL()
		if len(nal) > 0 {
			res.NALUnits++
			res.Bytes += int64(len(nal))
			switch {
			case codec.IsConfig(nal):
				res.ConfigNALs++
				if res.Width == 0 && codec == CodecH264 && codec.NALType(nal) == h264NALSPS {
					res.parseSPS(nal)
				}
			case codec.IsVCL(nal):
				res.AccessUnits++
				if codec.IsKeyframe(nal) {
					res.Keyframes++
				}
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, fmt.Errorf("demux %s: %w", path, err)
		}
	}

	if res.AccessUnits == 0 {
		return res, fmt.Errorf("%w: %s", ErrNoAccessUnits, path)
	}
	return res, nil
}

const h264NALSPS = 7

// parseSPS fills the picture size. Truncated or unusual parameter sets are
// skipped; the counts stay valid without them.
func (r *ProbeResult) parseSPS(nal []byte) {
	info, err := h264parser.ParseSPS(nal)
	if err != nil || info.Width == 0 || info.Height == 0 {
		return
	}
	r.Width = int(info.Width)
	r.Height = int(info.Height)
	r.Profile = int(info.ProfileIdc)
	r.Level = int(info.LevelIdc)
}
