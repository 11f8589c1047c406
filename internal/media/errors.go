package media

import "errors"

var (
	ErrUnknownCodec     = errors.New("unknown codec")
	ErrNoAccessUnits    = errors.New("stream contains no access units")
	ErrCorruptUnit      = errors.New("corrupt access unit")
	ErrInvalidStream    = errors.New("stream index out of range")
	ErrInvalidPicture   = errors.New("picture index out of range")
	ErrDemuxerClosed    = errors.New("demuxer closed")
	ErrPrimeFailed      = errors.New("priming failed")
	ErrMissingStreamURI = errors.New("stream path is empty")
)
