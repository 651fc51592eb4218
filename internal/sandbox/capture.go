package sandbox

import "sync"

// defaultCaptureLimit bounds each captured stream of a run.
const defaultCaptureLimit = 64 * 1024

// outputBuffer is a fixed-size ring that keeps the most recent bytes written
// to it. A snippet that prints forever costs at most limit bytes per stream.
type outputBuffer struct {
	mu      sync.Mutex
	buf     []byte
	head    int
	full    bool
	dropped int
}

func newOutputBuffer(limit int) *outputBuffer {
	if limit <= 0 {
		limit = defaultCaptureLimit
	}
	return &outputBuffer{buf: make([]byte, limit)}
}

// Write implements io.Writer. It never fails; overflow evicts the oldest bytes.
func (b *outputBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(p)
	size := len(b.buf)
	if n >= size {
		b.dropped += b.lenLocked() + n - size
		copy(b.buf, p[n-size:])
		b.head = 0
		b.full = true
		return n, nil
	}

	for _, c := range p {
		if b.full {
			b.dropped++
		}
		b.buf[b.head] = c
		b.head = (b.head + 1) % size
		if b.head == 0 {
			b.full = true
		}
	}
	return n, nil
}

// String returns the retained bytes in write order.
func (b *outputBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.full {
		return string(b.buf[:b.head])
	}
	return string(b.buf[b.head:]) + string(b.buf[:b.head])
}

// Truncated reports whether older output was discarded.
func (b *outputBuffer) Truncated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped > 0
}

func (b *outputBuffer) lenLocked() int {
	if b.full {
		return len(b.buf)
	}
	return b.head
}
