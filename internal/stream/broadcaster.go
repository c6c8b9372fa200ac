package stream

import (
	"sync"

	"github.com/waveforge/waveforge/internal/audio"
)

// Broadcaster regroups the device's played samples into fixed 20ms int16
// frames and fans them out to N listeners. Push is fed from the audio
// device's tap, so frames arrive at real-time rate.
type Broadcaster struct {
	mu        sync.RWMutex
	listeners map[*Listener]struct{}
	pending   []float32 // partial frame carried between pushes
}

// Listener receives PCM frames from the broadcaster.
type Listener struct {
	C    chan []int16 // buffered channel of 20ms PCM frames
	done chan struct{}
}

// NewBroadcaster creates a broadcaster with no listeners.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		listeners: make(map[*Listener]struct{}),
	}
}

// Subscribe registers a new listener. Returns a Listener that receives frames.
func (b *Broadcaster) Subscribe() *Listener {
	l := &Listener{
		C:    make(chan []int16, 150), // ~3 seconds of buffer at 20ms/frame
		done: make(chan struct{}),
	}
	b.mu.Lock()
	b.listeners[l] = struct{}{}
	b.mu.Unlock()
	return l
}

// Unsubscribe removes a listener and signals it to stop.
func (b *Broadcaster) Unsubscribe(l *Listener) {
	b.mu.Lock()
	delete(b.listeners, l)
	b.mu.Unlock()
	close(l.done)
}

// ListenerCount returns the number of active listeners.
func (b *Broadcaster) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Done signals that a listener was unsubscribed.
func (l *Listener) Done() <-chan struct{} { return l.done }

// Push accepts interleaved stereo float32 samples of any length, cuts them
// into whole frames, and delivers each frame to every listener. Slow
// listeners get frames dropped rather than blocking the device tap.
func (b *Broadcaster) Push(samples []float32) {
	b.mu.Lock()
	b.pending = append(b.pending, samples...)
	var frames [][]int16
	for len(b.pending) >= audio.FrameSamples {
		frames = append(frames, audio.ToInt16(b.pending[:audio.FrameSamples]))
		b.pending = b.pending[audio.FrameSamples:]
	}
	if len(frames) == 0 {
		b.mu.Unlock()
		return
	}
	// Compact so the pending slice doesn't grow without bound.
	b.pending = append([]float32(nil), b.pending...)
	b.mu.Unlock()

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, frame := range frames {
		for l := range b.listeners {
			select {
			case l.C <- frame:
			default:
				// listener too slow, drop the frame to keep the tap moving
			}
		}
	}
}
