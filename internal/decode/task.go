package decode

import "fmt"

// NoPicture marks a decode that produced no new picture (empty access unit).
const NoPicture = -1

// Task is a pending demux and decode request for one stream.
type Task struct {
	Stream int
	Frame  int
	Wanted bool
}

func (t Task) String() string {
	return fmt.Sprintf("%s/%d@%d", StreamKind(t.Stream), CameraOf(t.Stream), t.Frame)
}

// FrameHandle identifies a decoded picture held by the Source until it is presented.
type FrameHandle struct {
	Stream  int
	Frame   int
	Picture int
}

// HasPicture reports whether the decode produced a picture.
func (h FrameHandle) HasPicture() bool {
	return h.Picture != NoPicture
}

// ColorStream returns the color stream index of a camera.
func ColorStream(camera int) int { return 2 * camera }

// DepthStream returns the depth stream index of a camera.
func DepthStream(camera int) int { return 2*camera + 1 }

// CameraOf returns the camera a stream belongs to.
func CameraOf(stream int) int { return stream / 2 }

// IsDepth reports whether a stream is the depth half of its camera.
func IsDepth(stream int) bool { return stream%2 == 1 }

// StreamKind returns "color" or "depth".
func StreamKind(stream int) string {
	if IsDepth(stream) {
		return "depth"
	}
	return "color"
}
