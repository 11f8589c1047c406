package media

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/pion/webrtc/v4/pkg/media/h264reader"
	"github.com/pion/webrtc/v4/pkg/media/h265reader"
)

type nalReader interface {
	NextNAL() ([]byte, error)
}

type h264NALReader struct {
	*h264reader.H264Reader
}

func (r *h264NALReader) NextNAL() ([]byte, error) {
	nal, err := r.H264Reader.NextNAL()
	if nal == nil {
		return nil, err
	}
	return nal.Data, err
}

type h265NALReader struct {
	*h265reader.H265Reader
}

func (r *h265NALReader) NextNAL() ([]byte, error) {
	nal, err := r.H265Reader.NextNAL()
	if nal == nil {
		return nil, err
	}
	return nal.Data, err
}

func newNALReader(codec Codec, in io.Reader) (nalReader, error) {
	if codec == CodecH265 {
		r, err := h265reader.NewReader(in)
		if err != nil {
			return nil, err
		}
		return &h265NALReader{r}, nil
	}
	r, err := h264reader.NewReader(in)
	if err != nil {
		return nil, err
	}
	return &h264NALReader{r}, nil
}

// AnnexBDemuxer reads access units from an Annex-B elementary stream file.
// At end of file it reopens the file and continues from the first unit.
type AnnexBDemuxer struct {
	path   string
	codec  Codec
	logger *slog.Logger

	mu      sync.Mutex
	file    *os.File
	reader  nalReader
	pending [][]byte
	units   int
	total   uint64
	loops   int
	closed  bool
}

// OpenAnnexB opens path for demuxing.
func OpenAnnexB(path string, codec Codec, logger *slog.Logger) (*AnnexBDemuxer, error) {
	if path == "" {
		return nil, ErrMissingStreamURI
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &AnnexBDemuxer{path: path, codec: codec, logger: logger}
	if err := d.open(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *AnnexBDemuxer) open() error {
	f, err := os.Open(d.path)
	if err != nil {
		return fmt.Errorf("open stream %s: %w", d.path, err)
	}
	r, err := newNALReader(d.codec, f)
	if err != nil {
		f.Close()
		return fmt.Errorf("create %s reader for %s: %w", d.codec, d.path, err)
	}
	d.file = f
	d.reader = r
	d.pending = d.pending[:0]
	d.units = 0
	return nil
}

// Next returns the next access unit: any parameter sets and SEI that
// precede a slice, followed by the slice, in Annex-B form.
func (d *AnnexBDemuxer) Next() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrDemuxerClosed
	}
	// A failed rewind leaves no file open; retry the reopen.
	if d.reader == nil {
		if err := d.open(); err != nil {
			return nil, err
		}
	}

	for {
		nal, err := d.reader.NextNAL()
		if len(nal) > 0 {
			d.pending = append(d.pending, append([]byte(nil), nal...))
			if d.codec.IsVCL(nal) {
				unit := joinAnnexB(d.pending)
				d.pending = d.pending[:0]
				d.units++
				d.total++
				return unit, nil
			}
		}
		if err == nil {
			continue
		}
		if !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("demux %s: %w", d.path, err)
		}
		if d.units == 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoAccessUnits, d.path)
		}
		if err := d.rewind(); err != nil {
			return nil, err
		}
	}
}

func (d *AnnexBDemuxer) rewind() error {
	d.file.Close()
	d.file = nil
	d.reader = nil
	d.loops++
	d.logger.Debug("Looping stream", "path", d.path, "loops", d.loops, "units", d.units)
	return d.open()
}

// Loops returns how many times the file wrapped around.
func (d *AnnexBDemuxer) Loops() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loops
}

// Units returns the number of access units returned since open.
func (d *AnnexBDemuxer) Units() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.total
}

func (d *AnnexBDemuxer) Codec() Codec { return d.codec }

func (d *AnnexBDemuxer) Path() string { return d.path }

func (d *AnnexBDemuxer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if d.file == nil {
		return nil
	}
	return d.file.Close()
}
