package media

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smazurov/viewsynth/internal/decode"
)

var (
	h264SPS = []byte{0x67, 0x42, 0xc0, 0x1e}
	h264PPS = []byte{0x68, 0xce, 0x3c, 0x80}
	h264IDR = []byte{0x65, 0x88, 0x84, 0x21}
	h264P1  = []byte{0x41, 0x9a, 0x24, 0x6c}
	h264P2  = []byte{0x41, 0x9a, 0x48, 0x3f}

	h265VPS = []byte{0x40, 0x01, 0x0c, 0x01}
	h265SPS = []byte{0x42, 0x01, 0x01, 0x60}
	h265PPS = []byte{0x44, 0x01, 0xc1, 0x72}
	h265IDR = []byte{0x26, 0x01, 0xaf, 0x1d}
	h265TR  = []byte{0x02, 0x01, 0xd0, 0x2a}
)

func mediaTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeStream(t *testing.T, name string, nals ...[]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, joinAnnexB(nals), 0o644))
	return path
}

func h264Stream(t *testing.T, name string) string {
	return writeStream(t, name, h264SPS, h264PPS, h264IDR, h264P1, h264P2)
}

func TestParseCodec(t *testing.T) {
	tests := []struct {
		in      string
		want    Codec
		wantErr bool
	}{
		{"h264", CodecH264, false},
		{"AVC", CodecH264, false},
		{"", CodecH264, false},
		{"hevc", CodecH265, false},
		{" H265 ", CodecH265, false},
		{"vp9", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCodec(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownCodec)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCodecClassification(t *testing.T) {
	assert.True(t, CodecH264.IsConfig(h264SPS))
	assert.True(t, CodecH264.IsConfig(h264PPS))
	assert.True(t, CodecH264.IsVCL(h264IDR))
	assert.True(t, CodecH264.IsKeyframe(h264IDR))
	assert.True(t, CodecH264.IsVCL(h264P1))
	assert.False(t, CodecH264.IsKeyframe(h264P1))
	assert.False(t, CodecH264.IsVCL([]byte{0x06, 0x05})) // SEI

	assert.True(t, CodecH265.IsConfig(h265VPS))
	assert.True(t, CodecH265.IsConfig(h265PPS))
	assert.True(t, CodecH265.IsKeyframe(h265IDR))
	assert.True(t, CodecH265.IsVCL(h265TR))
	assert.False(t, CodecH265.IsVCL(h265SPS))
}

func TestSplitAnnexB(t *testing.T) {
	buf := append(joinAnnexB([][]byte{h264SPS, h264PPS}), 0x00, 0x00, 0x01)
	buf = append(buf, h264IDR...)

	nals := splitAnnexB(buf)
	require.Len(t, nals, 3)
	assert.Equal(t, h264SPS, nals[0])
	assert.Equal(t, h264PPS, nals[1])
	assert.Equal(t, h264IDR, nals[2])
}

func TestDemuxerGroupsAccessUnitsAndLoops(t *testing.T) {
	path := h264Stream(t, "color.h264")
	d, err := OpenAnnexB(path, CodecH264, mediaTestLogger())
	require.NoError(t, err)
	defer d.Close()

	first, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, [][]byte{h264SPS, h264PPS, h264IDR}, splitAnnexB(first))

	second, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, [][]byte{h264P1}, splitAnnexB(second))

	third, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, [][]byte{h264P2}, splitAnnexB(third))
	assert.Equal(t, 0, d.Loops())

	looped, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, first, looped, "end of file should restart at the first unit")
	assert.Equal(t, 1, d.Loops())
	assert.Equal(t, uint64(4), d.Units())
}

func TestDemuxerH265(t *testing.T) {
	path := writeStream(t, "depth.h265", h265VPS, h265SPS, h265PPS, h265IDR, h265TR)
	d, err := OpenAnnexB(path, CodecH265, mediaTestLogger())
	require.NoError(t, err)
	defer d.Close()

	unit, err := d.Next()
	require.NoError(t, err)
	assert.Len(t, splitAnnexB(unit), 4)

	unit, err = d.Next()
	require.NoError(t, err)
	assert.Equal(t, [][]byte{h265TR}, splitAnnexB(unit))
}

func TestDemuxerWithoutSlices(t *testing.T) {
	path := writeStream(t, "config-only.h264", h264SPS, h264PPS)
	d, err := OpenAnnexB(path, CodecH264, mediaTestLogger())
	require.NoError(t, err)
	defer d.Close()

	_, err = d.Next()
	assert.ErrorIs(t, err, ErrNoAccessUnits)
}

func TestDemuxerOpenErrors(t *testing.T) {
	_, err := OpenAnnexB("", CodecH264, nil)
	assert.ErrorIs(t, err, ErrMissingStreamURI)

	_, err = OpenAnnexB(filepath.Join(t.TempDir(), "missing.h264"), CodecH264, nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDemuxerClosed(t *testing.T) {
	d, err := OpenAnnexB(h264Stream(t, "s.h264"), CodecH264, mediaTestLogger())
	require.NoError(t, err)
	require.NoError(t, d.Close())
	require.NoError(t, d.Close())

	_, err = d.Next()
	assert.ErrorIs(t, err, ErrDemuxerClosed)
}

func TestDemuxerRewindFailure(t *testing.T) {
	path := writeStream(t, "gone.h264", h264SPS, h264PPS, h264IDR)
	d, err := OpenAnnexB(path, CodecH264, mediaTestLogger())
	require.NoError(t, err)

	_, err = d.Next()
	require.NoError(t, err)
	require.NoError(t, os.Remove(path))

	_, err = d.Next()
	require.Error(t, err, "rewind must fail once the file is gone")
	_, err = d.Next()
	require.Error(t, err)

	assert.NoError(t, d.Close())
}

func TestSurfaceDecoderRing(t *testing.T) {
	dec := NewSurfaceDecoder(CodecH264, 2)

	// No picture before the first keyframe.
	pic, err := dec.Decode(joinAnnexB([][]byte{h264P1}))
	require.NoError(t, err)
	assert.Equal(t, decode.NoPicture, pic)

	pic, err = dec.Decode(joinAnnexB([][]byte{h264SPS, h264PPS, h264IDR}))
	require.NoError(t, err)
	assert.Equal(t, 0, pic)

	pic, err = dec.Decode(joinAnnexB([][]byte{h264P1}))
	require.NoError(t, err)
	assert.Equal(t, 1, pic)

	pic, err = dec.Decode(joinAnnexB([][]byte{h264P2}))
	require.NoError(t, err)
	assert.Equal(t, 0, pic, "ring wraps")
	assert.Equal(t, 4, dec.Decoded())

	tex := NewTexture()
	require.NoError(t, dec.Present(pic, tex))
	assert.Equal(t, h264P2, tex.Bytes())
	assert.Equal(t, 3, tex.Frame())
	assert.Equal(t, uint64(1), tex.Generation())

	require.NoError(t, dec.Present(decode.NoPicture, tex))
	assert.Equal(t, uint64(1), tex.Generation(), "NoPicture leaves the texture alone")

	assert.ErrorIs(t, dec.Present(5, tex), ErrInvalidPicture)
}

func TestSurfaceDecoderRejectsCorruptUnits(t *testing.T) {
	dec := NewSurfaceDecoder(CodecH264, 0)

	_, err := dec.Decode(joinAnnexB([][]byte{h264SPS, h264PPS}))
	assert.ErrorIs(t, err, ErrCorruptUnit)

	_, err = dec.Decode(joinAnnexB([][]byte{{0xe5, 0x11}}))
	assert.ErrorIs(t, err, ErrCorruptUnit)
}

func openTestSet(t *testing.T, cameras int) *Set {
	t.Helper()
	specs := make([]CameraSpec, cameras)
	for i := range specs {
		specs[i] = CameraSpec{
			Name:  "cam" + string(rune('a'+i)),
			Color: StreamSpec{Path: h264Stream(t, "color.h264"), Codec: CodecH264},
			Depth: StreamSpec{
				Path:  writeStream(t, "depth.h265", h265VPS, h265SPS, h265PPS, h265IDR, h265TR),
				Codec: CodecH265,
			},
		}
	}
	s, err := OpenSet(specs, SetOptions{Logger: mediaTestLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSetPrime(t *testing.T) {
	s := openTestSet(t, 2)
	require.NoError(t, s.Prime(1))

	for cam := 0; cam < s.Cameras(); cam++ {
		color, depth := s.Textures(cam)
		assert.Equal(t, 2, color.Frame(), "camera %d color", cam)
		assert.Equal(t, h264P2, color.Bytes())
		// The depth file holds two units, so the third decode wrapped.
		assert.Equal(t, 2, depth.Frame(), "camera %d depth", cam)
		assert.Equal(t, h265IDR, depth.Bytes())
	}

	for _, st := range s.Stats() {
		assert.Equal(t, 3, st.Decoded)
	}
}

func TestSetSourceRoundTrip(t *testing.T) {
	s := openTestSet(t, 1)

	var handles [2]decode.FrameHandle
	for i := range handles {
		unit, err := s.Fetch(i)
		require.NoError(t, err)
		pic, err := s.Decode(i, unit)
		require.NoError(t, err)
		handles[i] = decode.FrameHandle{Stream: i, Frame: 0, Picture: pic}
	}
	require.NoError(t, s.Present(handles[0], handles[1]))

	color, depth := s.Textures(0)
	assert.Equal(t, h264IDR, color.Bytes())
	assert.Equal(t, h265IDR, depth.Bytes())

	_, err := s.Fetch(2)
	assert.ErrorIs(t, err, ErrInvalidStream)

	err = s.Present(decode.FrameHandle{Stream: 0, Picture: 9}, decode.FrameHandle{Stream: 1, Picture: decode.NoPicture})
	assert.ErrorIs(t, err, ErrInvalidPicture)
}

func TestOpenSetFailsOnMissingFile(t *testing.T) {
	_, err := OpenSet([]CameraSpec{{
		Name:  "broken",
		Color: StreamSpec{Path: h264Stream(t, "ok.h264"), Codec: CodecH264},
		Depth: StreamSpec{Path: filepath.Join(t.TempDir(), "nope.h264"), Codec: CodecH264},
	}}, SetOptions{Logger: mediaTestLogger()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")

	_, err = OpenSet(nil, SetOptions{})
	assert.ErrorIs(t, err, decode.ErrNoCameras)
}

func TestProbe(t *testing.T) {
	res, err := Probe(h264Stream(t, "p.h264"), CodecH264)
	require.NoError(t, err)
	assert.Equal(t, 5, res.NALUnits)
	assert.Equal(t, 3, res.AccessUnits)
	assert.Equal(t, 1, res.Keyframes)
	assert.Equal(t, 2, res.ConfigNALs)
	assert.Equal(t, int64(20), res.Bytes)

	assert.Zero(t, res.Width, "truncated SPS is skipped")

	_, err = Probe(writeStream(t, "cfg.h264", h264SPS), CodecH264)
	assert.ErrorIs(t, err, ErrNoAccessUnits)
}

func TestProbeReadsSPSSize(t *testing.T) {
	// Baseline, level 3.0, 20x15 macroblocks, frame_mbs_only, no cropping.
	sps := []byte{0x67, 0x42, 0xc0, 0x1e, 0xda, 0x05, 0x07, 0xe4}
	res, err := Probe(writeStream(t, "qvga.h264", sps, h264PPS, h264IDR), CodecH264)
	require.NoError(t, err)
	assert.Equal(t, 320, res.Width)
	assert.Equal(t, 240, res.Height)
	assert.Equal(t, 66, res.Profile)
	assert.Equal(t, 30, res.Level)
}
