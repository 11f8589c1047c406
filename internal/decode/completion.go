package decode

import "sync"

// completionSet holds decoded frames waiting for the driver.
// Entries put before close stay takeable; puts after close are rejected.
type completionSet struct {
	mu      sync.Mutex
	cond    *sync.Cond
	entries []FrameHandle
	closed  bool
}

func newCompletionSet() *completionSet {
	c := &completionSet{}
	c.cond = sync.NewCond(&c.mu)
	return c
}

func (c *completionSet) put(h FrameHandle) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.entries = append(c.entries, h)
	c.mu.Unlock()
	c.cond.Broadcast()
	return true
}

// findPair returns the indexes of the oldest complete color and depth pair
// of a camera. Both entries always carry the same frame number.
func (c *completionSet) findPair(camera int) (int, int, bool) {
	colorStream, depthStream := ColorStream(camera), DepthStream(camera)
	ci, di := -1, -1
	for i, color := range c.entries {
		if color.Stream != colorStream || (ci >= 0 && color.Frame >= c.entries[ci].Frame) {
			continue
		}
		for j, depth := range c.entries {
			if depth.Stream == depthStream && depth.Frame == color.Frame {
				ci, di = i, j
				break
			}
		}
	}
	return ci, di, ci >= 0
}

// takePair blocks until both halves of a camera frame are present and removes
// them together. Returns false once closed with no complete pair left.
func (c *completionSet) takePair(camera int) (FrameHandle, FrameHandle, bool) {
	c.mu.Lock()
	var ci, di int
	var ok bool
	for {
		if ci, di, ok = c.findPair(camera); ok || c.closed {
			break
		}
		c.cond.Wait()
	}
	if !ok {
		c.mu.Unlock()
		return FrameHandle{}, FrameHandle{}, false
	}
	color, depth := c.entries[ci], c.entries[di]
	hi, lo := ci, di
	if lo > hi {
		hi, lo = lo, hi
	}
	c.entries = append(c.entries[:hi], c.entries[hi+1:]...)
	c.entries = append(c.entries[:lo], c.entries[lo+1:]...)
	c.mu.Unlock()
	c.cond.Broadcast()
	return color, depth, true
}

func (c *completionSet) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *completionSet) close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cond.Broadcast()
}
