package audio

import "time"

const (
	SampleRate    = 48000
	Channels      = 2
	FrameDuration = 20 * time.Millisecond
	FrameSize     = 960                  // samples per channel per 20ms frame
	FrameSamples  = FrameSize * Channels // total interleaved samples per frame
	FrameBytes    = FrameSamples * 2     // bytes per frame (int16 = 2 bytes)
)

// Duration returns the play time of interleaved stereo samples at rate.
func Duration(interleaved int, rate int) time.Duration {
	frames := interleaved / Channels
	return time.Duration(frames) * time.Second / time.Duration(rate)
}

// Seconds returns the play time in seconds of frames sample frames at rate.
func Seconds(frames int, rate int) float64 {
	return float64(frames) / float64(rate)
}
