package pacer

import (
	"math"
	"testing"
	"time"
)

type fakeClock struct {
	now   time.Time
	slept []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(d time.Duration) {
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
}

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func TestSleepDuration(t *testing.T) {
	const interval = 33 * time.Millisecond
	tests := []struct {
		cost time.Duration
		want time.Duration
	}{
		{10 * time.Millisecond, 23 * time.Millisecond},
		{0, interval},
		{33 * time.Millisecond, 0},
		{40 * time.Millisecond, 0},
	}
	for _, tt := range tests {
		if got := SleepDuration(interval, tt.cost); got != tt.want {
			t.Errorf("SleepDuration(%s) = %s, want %s", tt.cost, got, tt.want)
		}
	}
}

func TestPacerCountsDelayAndProcessing(t *testing.T) {
	clock := newFakeClock()
	p := NewWithClock(33*time.Millisecond, clock)

	// First frame has no previous end and never sleeps.
	if slept := p.End(p.Begin()); slept != 0 {
		t.Fatalf("first frame slept %s", slept)
	}

	clock.advance(4 * time.Millisecond)
	f := p.Begin()
	clock.advance(6 * time.Millisecond)
	if slept := p.End(f); slept != 23*time.Millisecond {
		t.Fatalf("10ms frame: slept %s, want 23ms", slept)
	}

	clock.advance(15 * time.Millisecond)
	f = p.Begin()
	clock.advance(25 * time.Millisecond)
	if slept := p.End(f); slept != 0 {
		t.Fatalf("40ms frame: slept %s, want 0", slept)
	}

	if len(clock.slept) != 1 {
		t.Fatalf("sleeps: %v", clock.slept)
	}
	st := p.Stats()
	if st.Frames != 3 || st.Delay != 15*time.Millisecond || st.Processing != 25*time.Millisecond {
		t.Fatalf("stats: %+v", st)
	}
}

func TestPacerHoldsInterval(t *testing.T) {
	clock := newFakeClock()
	p := NewWithClock(Interval30FPS, clock)

	for i := 0; i < 100; i++ {
		f := p.Begin()
		clock.advance(5 * time.Millisecond)
		p.End(f)
		clock.advance(time.Millisecond)
	}

	fps := p.Stats().FPS
	if math.Abs(fps-30) > 0.5 {
		t.Fatalf("fps: got %.2f want ~30", fps)
	}
}

func TestDefaultInterval(t *testing.T) {
	if got := New(0).Interval(); got != Interval30FPS {
		t.Fatalf("got %s", got)
	}
}
