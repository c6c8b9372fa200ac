package device

import (
	"errors"
	"sync"
)

// Fake is an Output with a manually advanced clock, for tests and headless
// runs. Schedule calls are recorded; Advance moves the clock and fires
// completion callbacks as units finish.
type Fake struct {
	mu     sync.Mutex
	now    float64
	units  []*FakeUnit
	all    []*FakeUnit
	closed bool
	tap    func([]float32)
}

// FakeUnit records one Schedule call.
type FakeUnit struct {
	fake       *Fake
	Start, End float64
	Samples    []float32
	Rate       int
	onDone     func()
	Stopped    bool
	finished   bool
}

func NewFake() *Fake {
	return &Fake{}
}

func (f *Fake) Now() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) Schedule(samples []float32, rate int, start float64, onDone func()) (Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, errors.New("device closed")
	}
	u := &FakeUnit{
		fake:    f,
		Start:   start,
		End:     start + float64(len(samples)/2)/float64(rate),
		Samples: samples,
		Rate:    rate,
		onDone:  onDone,
	}
	f.units = append(f.units, u)
	f.all = append(f.all, u)
	return u, nil
}

func (f *Fake) Resume() error { return nil }

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *Fake) SetTap(fn func([]float32)) {
	f.mu.Lock()
	f.tap = fn
	f.mu.Unlock()
}

// Advance moves the clock forward by dt seconds and completes every unit
// whose end has passed, feeding its samples to the tap if one is set.
func (f *Fake) Advance(dt float64) {
	f.mu.Lock()
	f.now += dt
	var finished []*FakeUnit
	kept := f.units[:0]
	for _, u := range f.units {
		if u.End <= f.now {
			u.finished = true
			finished = append(finished, u)
			continue
		}
		kept = append(kept, u)
	}
	f.units = kept
	tap := f.tap
	f.mu.Unlock()

	for _, u := range finished {
		if tap != nil {
			tap(u.Samples)
		}
		if u.onDone != nil {
			u.onDone()
		}
	}
}

// Active returns the units scheduled but not yet finished or stopped.
func (f *Fake) Active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.units)
}

// All returns every unit ever scheduled, in schedule order.
func (f *Fake) All() []*FakeUnit {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*FakeUnit, len(f.all))
	copy(out, f.all)
	return out
}

func (u *FakeUnit) Stop() {
	f := u.fake
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.finished || u.Stopped {
		return
	}
	u.Stopped = true
	for i, other := range f.units {
		if other == u {
			f.units = append(f.units[:i], f.units[i+1:]...)
			break
		}
	}
}
