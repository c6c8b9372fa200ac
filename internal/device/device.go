// Package device abstracts the audio output the engine schedules against:
// a monotonic sample clock plus start-at-time playback of sample buffers.
package device

// Output is a stereo audio sink with a monotonic clock. Implementations
// must be safe for concurrent use.
type Output interface {
	// Now is the device clock in seconds. It starts at 0 and only advances
	// while the device is consuming audio.
	Now() float64

	// Schedule queues interleaved stereo samples to begin playing at start
	// (device-clock seconds). The device takes ownership of the slice.
	// onDone fires once the buffer has fully played; it is not called for
	// units halted early.
	Schedule(samples []float32, rate int, start float64, onDone func()) (Handle, error)

	// Resume unblocks the device's consumption of scheduled audio.
	Resume() error

	Close() error
}

// Handle refers to one scheduled buffer.
type Handle interface {
	// Stop halts the unit early and silences any unplayed remainder.
	Stop()
}
