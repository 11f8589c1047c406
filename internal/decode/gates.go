package decode

import "sync"

// orderGate holds the next frame each stream is allowed to demux.
// One lock covers the whole array so wait predicates stay simple.
type orderGate struct {
	mu     sync.Mutex
	cond   *sync.Cond
	next   []int
	closed bool
}

func newOrderGate(streams int) *orderGate {
	g := &orderGate{next: make([]int, streams)}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// wait blocks until stream may act on frame. Returns false if closed first.
func (g *orderGate) wait(stream, frame int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for g.next[stream] != frame && !g.closed {
		g.cond.Wait()
	}
	return !g.closed
}

// advance increments the stream's counter by one.
func (g *orderGate) advance(stream int) {
	g.mu.Lock()
	g.next[stream]++
	g.mu.Unlock()
	g.cond.Broadcast()
}

func (g *orderGate) snapshot() []int {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]int, len(g.next))
	copy(out, g.next)
	return out
}

func (g *orderGate) close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
	g.cond.Broadcast()
}

// decodeGate allows at most one decoded-but-unconsumed frame per stream.
// true means the stream's surface is free.
type decodeGate struct {
	mu     sync.Mutex
	cond   *sync.Cond
	free   []bool
	closed bool
}

func newDecodeGate(streams int) *decodeGate {
	g := &decodeGate{free: make([]bool, streams)}
	for i := range g.free {
		g.free[i] = true
	}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// claim blocks until the stream is free and takes it. Returns false if closed first.
func (g *decodeGate) claim(stream int) bool {
	g.mu.Lock()
	for !g.free[stream] && !g.closed {
		g.cond.Wait()
	}
	if g.closed {
		g.mu.Unlock()
		return false
	}
	g.free[stream] = false
	g.mu.Unlock()
	g.cond.Broadcast()
	return true
}

// release frees the given streams and wakes claimers.
func (g *decodeGate) release(streams ...int) {
	g.mu.Lock()
	for _, s := range streams {
		g.free[s] = true
	}
	g.mu.Unlock()
	g.cond.Broadcast()
}

func (g *decodeGate) isFree(stream int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.free[stream]
}

func (g *decodeGate) close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
	g.cond.Broadcast()
}
