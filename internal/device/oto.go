package device

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/ebitengine/oto/v3"
)

// ringSeconds is how far ahead of the playhead the timeline ring can hold.
const ringSeconds = 30

// Oto plays scheduled buffers through ebitengine/oto. Scheduled samples are
// mixed into a timeline ring indexed by absolute frame number; the oto
// player pulls from the ring at the device rate, which is what advances the
// clock.
type Oto struct {
	ctx    *oto.Context
	player *oto.Player
	rate   int

	mu     sync.Mutex
	ring   []float32 // interleaved stereo, ringFrames frames
	head   int64     // absolute frame index of the playhead
	units  []*otoUnit
	tap    func([]float32)
	closed bool
}

type otoUnit struct {
	out        *Oto
	start, end int64     // absolute frame indexes
	samples    []float32 // this unit's own contribution to the ring
	onDone     func()
	done       bool
}

// NewOto opens the default audio device at the given sample rate.
func NewOto(rate int) (*Oto, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   rate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
	})
	if err != nil {
		return nil, fmt.Errorf("open audio device: %w", err)
	}
	<-ready

	o := &Oto{
		ctx:  ctx,
		rate: rate,
		ring: make([]float32, rate*ringSeconds*2),
	}
	o.player = ctx.NewPlayer(o)
	return o, nil
}

// SetTap registers a sink that receives every played batch of interleaved
// samples. Called from the device's own read path; the callback must not
// block.
func (o *Oto) SetTap(fn func([]float32)) {
	o.mu.Lock()
	o.tap = fn
	o.mu.Unlock()
}

func (o *Oto) Now() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return float64(o.head) / float64(o.rate)
}

func (o *Oto) Schedule(samples []float32, rate int, start float64, onDone func()) (Handle, error) {
	if rate != o.rate {
		return nil, fmt.Errorf("sample rate %d does not match device rate %d", rate, o.rate)
	}
	frames := int64(len(samples) / 2)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil, errors.New("device closed")
	}

	startFrame := int64(math.Round(start * float64(o.rate)))
	if startFrame < o.head {
		startFrame = o.head
	}
	ringFrames := int64(len(o.ring) / 2)
	if startFrame+frames-o.head > ringFrames {
		return nil, fmt.Errorf("schedule %d frames at %.3fs exceeds %ds timeline window", frames, start, ringSeconds)
	}

	for i := int64(0); i < frames; i++ {
		slot := ((startFrame + i) % ringFrames) * 2
		o.ring[slot] += samples[i*2]
		o.ring[slot+1] += samples[i*2+1]
	}

	u := &otoUnit{out: o, start: startFrame, end: startFrame + frames, samples: samples, onDone: onDone}
	o.units = append(o.units, u)
	return u, nil
}

// Read feeds the oto player. Consumed ring slots are zeroed so the ring can
// wrap, and completion callbacks fire as the playhead passes unit ends.
func (o *Oto) Read(p []byte) (int, error) {
	frames := len(p) / 8
	played := make([]float32, frames*2)

	o.mu.Lock()
	ringFrames := int64(len(o.ring) / 2)
	for i := 0; i < frames; i++ {
		slot := ((o.head + int64(i)) % ringFrames) * 2
		played[i*2] = o.ring[slot]
		played[i*2+1] = o.ring[slot+1]
		o.ring[slot] = 0
		o.ring[slot+1] = 0
	}
	o.head += int64(frames)

	var finished []func()
	kept := o.units[:0]
	for _, u := range o.units {
		if u.end <= o.head {
			u.done = true
			if u.onDone != nil {
				finished = append(finished, u.onDone)
			}
			continue
		}
		kept = append(kept, u)
	}
	o.units = kept
	tap := o.tap
	o.mu.Unlock()

	for _, fn := range finished {
		fn()
	}
	if tap != nil {
		tap(played)
	}

	for i, s := range played {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(s))
	}
	return frames * 8, nil
}

func (o *Oto) Resume() error {
	o.mu.Lock()
	closed := o.closed
	o.mu.Unlock()
	if closed {
		return errors.New("device closed")
	}
	o.player.Play()
	return nil
}

func (o *Oto) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	o.units = nil
	o.mu.Unlock()
	return o.player.Close()
}

// Stop silences the unplayed remainder of the unit by subtracting its own
// contribution from the ring, leaving any overlapping unit's samples in
// place. Its completion callback never fires.
func (u *otoUnit) Stop() {
	o := u.out
	o.mu.Lock()
	defer o.mu.Unlock()
	if u.done {
		return
	}
	u.done = true

	ringFrames := int64(len(o.ring) / 2)
	from := u.start
	if from < o.head {
		from = o.head
	}
	for i := from; i < u.end; i++ {
		slot := (i % ringFrames) * 2
		j := (i - u.start) * 2
		o.ring[slot] -= u.samples[j]
		o.ring[slot+1] -= u.samples[j+1]
	}
	for i, other := range o.units {
		if other == u {
			o.units = append(o.units[:i], o.units[i+1:]...)
			break
		}
	}
}
