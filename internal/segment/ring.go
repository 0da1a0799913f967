package segment

import "github.com/MrWong99/parley/pkg/audio"

// ClassifiedFrame pairs a frame with the classifier's verdict for it.
type ClassifiedFrame struct {
	Frame  audio.Frame
	Speech bool
}

// ring is a fixed-capacity FIFO of classified frames that evicts the oldest
// entry on overflow and keeps a running count of speech frames.
type ring struct {
	buf    []ClassifiedFrame
	head   int // index of the oldest entry
	n      int
	voiced int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]ClassifiedFrame, capacity)}
}

func (r *ring) push(cf ClassifiedFrame) {
	if r.n == len(r.buf) {
		if r.buf[r.head].Speech {
			r.voiced--
		}
		r.buf[r.head] = cf
		r.head = (r.head + 1) % len(r.buf)
	} else {
		r.buf[(r.head+r.n)%len(r.buf)] = cf
		r.n++
	}
	if cf.Speech {
		r.voiced++
	}
}

func (r *ring) len() int      { return r.n }
func (r *ring) capacity() int { return len(r.buf) }
func (r *ring) speech() int   { return r.voiced }
func (r *ring) silence() int  { return r.n - r.voiced }

// frames returns the buffered frames, oldest first.
func (r *ring) frames() []ClassifiedFrame {
	out := make([]ClassifiedFrame, r.n)
	for i := range r.n {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	return out
}

func (r *ring) clear() {
	clear(r.buf)
	r.head, r.n, r.voiced = 0, 0, 0
}
