package media

import (
	"fmt"
	"strings"
)

// Codec identifies the bitstream format of an Annex-B stream file.
type Codec string

const (
	CodecH264 Codec = "h264"
	CodecH265 Codec = "h265"
)

// ParseCodec accepts the names used in scene files.
func ParseCodec(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "h264", "avc", "":
		return CodecH264, nil
	case "h265", "hevc":
		return CodecH265, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

// NALType extracts the nal_unit_type from the first header byte.
func (c Codec) NALType(nal []byte) uint8 {
	if len(nal) == 0 {
		return 0
	}
	if c == CodecH265 {
		return (nal[0] >> 1) & 0x3F
	}
	return nal[0] & 0x1F
}

// IsConfig reports parameter sets (SPS/PPS, plus VPS for H.265).
func (c Codec) IsConfig(nal []byte) bool {
	t := c.NALType(nal)
	if c == CodecH265 {
		return t >= 32 && t <= 34
	}
	return t == 7 || t == 8
}

// IsVCL reports NAL units carrying slice data.
func (c Codec) IsVCL(nal []byte) bool {
	if len(nal) == 0 {
		return false
	}
	t := c.NALType(nal)
	if c == CodecH265 {
		return t < 32
	}
	return t >= 1 && t <= 5
}

// IsKeyframe reports IDR slices (IDR_W_RADL, IDR_N_LP and CRA for H.265).
func (c Codec) IsKeyframe(nal []byte) bool {
	t := c.NALType(nal)
	if c == CodecH265 {
		return t >= 19 && t <= 21
	}
	return t == 5
}

var startCode = []byte{0x00, 0x00, 0x00, 0x01}

// joinAnnexB serializes NAL units with 4-byte start codes.
func joinAnnexB(nals [][]byte) []byte {
	size := 0
	for _, nal := range nals {
		size += len(startCode) + len(nal)
	}
	out := make([]byte, 0, size)
	for _, nal := range nals {
		out = append(out, startCode...)
		out = append(out, nal...)
	}
	return out
}

// splitAnnexB returns the NAL units of an Annex-B buffer. Both 3 and 4 byte
// start codes are accepted.
func splitAnnexB(buf []byte) [][]byte {
	var nals [][]byte
	start := -1
	i := 0
	for i+2 < len(buf) {
		if buf[i] == 0 && buf[i+1] == 0 && buf[i+2] == 1 {
			if start >= 0 {
				end := i
				if end > start && buf[end-1] == 0 {
					end--
				}
				nals = append(nals, buf[start:end])
			}
			i += 3
			start = i
			continue
		}
		i++
	}
	if start >= 0 && start < len(buf) {
		nals = append(nals, buf[start:])
	}
	return nals
}
