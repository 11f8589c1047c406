// Package decode schedules demux and decode work for paired color and depth
// video streams across a fixed pool of worker goroutines.
//
// Each camera contributes two streams: the color half at index 2*camera and
// the depth half at index 2*camera+1. The driver enqueues one task per stream
// for the next frame while it is still consuming the current one, and workers
// pick tasks off a shared queue.
//
// Three pieces of shared state keep the pool honest:
//
// Order gate, a per-stream counter:
//   - a worker may only demux frame f of stream s once the gate reads f
//   - the gate advances by one after every decode, wanted or not
//
// Decode gate, a per-stream flag:
//   - claimed by a worker before it decodes a frame that will be rendered
//   - reopened by Consume after the frame has been presented
//   - bounds every stream to one decoded-but-unconsumed frame
//
// Completion set, the unordered list of decoded frames waiting for the driver:
//   - AwaitAndTakePair blocks until both halves of a camera are present
//
// Example usage:
//
//	sched, err := decode.New(decode.Options{Workers: 4, Cameras: 8, Source: src})
//	if err != nil {
//	    return err
//	}
//	sched.Start()
//	defer sched.Shutdown()
//
//	sched.SeedInitialFrames(wanted)
//	sched.EnqueueNextFrame(cam, 1, true)
//	color, depth, err := sched.AwaitAndTakePair(cam)
//	if err == nil {
//	    err = sched.Consume(color, depth)
//	}
package decode
