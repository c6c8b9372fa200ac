package device

import "testing"

func TestFakeClockStartsAtZero(t *testing.T) {
	f := NewFake()
	if f.Now() != 0 {
		t.Errorf("Now = %v, want 0", f.Now())
	}
}

func TestFakeScheduleAndComplete(t *testing.T) {
	f := NewFake()
	done := false
	// 4800 frames at 48kHz = 0.1s
	_, err := f.Schedule(make([]float32, 9600), 48000, 0.5, func() { done = true })
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if f.Active() != 1 {
		t.Fatalf("Active = %d, want 1", f.Active())
	}

	f.Advance(0.5)
	if done {
		t.Fatal("completed before unit end")
	}
	f.Advance(0.11)
	if !done {
		t.Fatal("onDone not fired after unit end")
	}
	if f.Active() != 0 {
		t.Errorf("Active = %d, want 0", f.Active())
	}
}

func TestFakeUnitEnd(t *testing.T) {
	f := NewFake()
	h, _ := f.Schedule(make([]float32, 9600), 48000, 1.0, nil)
	u := h.(*FakeUnit)
	if u.End != 1.1 {
		t.Errorf("End = %v, want 1.1", u.End)
	}
}

func TestFakeStopSuppressesCompletion(t *testing.T) {
	f := NewFake()
	done := false
	h, _ := f.Schedule(make([]float32, 9600), 48000, 0, func() { done = true })
	h.Stop()
	f.Advance(1)
	if done {
		t.Error("onDone fired for stopped unit")
	}
	if f.Active() != 0 {
		t.Errorf("Active = %d, want 0", f.Active())
	}
}

func TestFakeScheduleAfterClose(t *testing.T) {
	f := NewFake()
	f.Close()
	if _, err := f.Schedule(make([]float32, 2), 48000, 0, nil); err == nil {
		t.Error("Schedule after Close succeeded")
	}
}

func TestFakeTapReceivesPlayedSamples(t *testing.T) {
	f := NewFake()
	var got int
	f.SetTap(func(s []float32) { got += len(s) })
	f.Schedule(make([]float32, 9600), 48000, 0, nil)
	f.Advance(0.2)
	if got != 9600 {
		t.Errorf("tap received %d samples, want 9600", got)
	}
}
