package device

import (
	"encoding/binary"
	"math"
	"testing"
)

// ringOto builds an Oto around its timeline ring only, so the mixing and
// Stop paths can be driven through Read without opening a sound card.
func ringOto(rate int) *Oto {
	return &Oto{rate: rate, ring: make([]float32, rate*ringSeconds*2)}
}

func constChunk(frames int, v float32) []float32 {
	s := make([]float32, frames*2)
	for i := range s {
		s[i] = v
	}
	return s
}

func readFrames(t *testing.T, o *Oto, frames int) []float32 {
	t.Helper()
	p := make([]byte, frames*8)
	n, err := o.Read(p)
	if err != nil || n != len(p) {
		t.Fatalf("Read = %d, %v", n, err)
	}
	out := make([]float32, frames*2)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(p[i*4:]))
	}
	return out
}

func TestOtoMixesOverlappingUnits(t *testing.T) {
	o := ringOto(48000)
	if _, err := o.Schedule(constChunk(4, 0.25), 48000, 0, nil); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if _, err := o.Schedule(constChunk(4, 0.5), 48000, 0, nil); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	for i, s := range readFrames(t, o, 4) {
		if s != 0.75 {
			t.Fatalf("sample %d = %v, want mixed 0.75", i, s)
		}
	}
}

func TestOtoStopPreservesOverlappingUnit(t *testing.T) {
	o := ringOto(48000)
	h, err := o.Schedule(constChunk(4, 0.25), 48000, 0, nil)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if _, err := o.Schedule(constChunk(4, 0.5), 48000, 0, nil); err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	h.Stop()
	for i, s := range readFrames(t, o, 4) {
		if s != 0.5 {
			t.Fatalf("sample %d = %v after Stop, want surviving unit's 0.5", i, s)
		}
	}
}

func TestOtoStopOnlySilencesUnplayedRemainder(t *testing.T) {
	o := ringOto(48000)
	h, err := o.Schedule(constChunk(4, 0.25), 48000, 0, nil)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	// Two frames play, then the unit is halted.
	first := readFrames(t, o, 2)
	h.Stop()
	rest := readFrames(t, o, 2)

	for i, s := range first {
		if s != 0.25 {
			t.Fatalf("played sample %d = %v, want 0.25", i, s)
		}
	}
	for i, s := range rest {
		if s != 0 {
			t.Fatalf("post-Stop sample %d = %v, want silence", i, s)
		}
	}
}

func TestOtoReadFiresCompletion(t *testing.T) {
	o := ringOto(48000)
	fired := false
	if _, err := o.Schedule(constChunk(4, 0.1), 48000, 0, func() { fired = true }); err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	readFrames(t, o, 3)
	if fired {
		t.Fatal("completion fired before the unit finished playing")
	}
	readFrames(t, o, 1)
	if !fired {
		t.Fatal("completion did not fire once the playhead passed the unit")
	}
}
