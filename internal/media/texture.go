package media

import "sync"

// Texture is the render-ready copy of one stream's most recent picture.
type Texture struct {
	mu         sync.RWMutex
	data       []byte
	frame      int
	generation uint64
}

func NewTexture() *Texture {
	return &Texture{frame: -1}
}

// Upload replaces the texture contents with a copy of data.
func (t *Texture) Upload(data []byte, frame int) {
	t.mu.Lock()
	t.data = append(t.data[:0], data...)
	t.frame = frame
	t.generation++
	t.mu.Unlock()
}

// Frame returns the decode sequence number of the current contents, or -1
// before the first upload.
func (t *Texture) Frame() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.frame
}

// Generation counts uploads.
func (t *Texture) Generation() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.generation
}

func (t *Texture) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.data)
}

// Bytes returns a copy of the contents.
func (t *Texture) Bytes() []byte {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]byte(nil), t.data...)
}
