// Package pacer throttles a cooperative render loop to a fixed frame
// interval by sleeping out whatever the previous idle time and the current
// frame's work left of it.
package pacer

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"camera-preview/pkg/utils"
)

const (
	Interval30FPS = time.Second / 30
	Interval15FPS = Interval30FPS * 2

	DefaultInterval = Interval30FPS
)

var logger *zap.SugaredLogger

func init() {
	logger = utils.GetLogger()
}

type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

type Stats struct {
	Frames     uint64        `json:"frames"`
	FPS        float64       `json:"fps"`
	Processing time.Duration `json:"processing"`
	Delay      time.Duration `json:"delay"`
	Sleep      time.Duration `json:"sleep"`
}

// Pacer is used from the render goroutine only; Stats may be read from
// anywhere.
type Pacer struct {
	interval time.Duration
	clock    Clock

	lastEnd time.Time

	windowStart  time.Time
	windowFrames int

	mu    sync.Mutex
	stats Stats
}

// Frame is the pacing record of one draw, from Begin to End.
type Frame struct {
	start time.Time
	delay time.Duration
	first bool
}

func New(interval time.Duration) *Pacer {
	return NewWithClock(interval, realClock{})
}

func NewWithClock(interval time.Duration, clock Clock) *Pacer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Pacer{interval: interval, clock: clock}
}

func (p *Pacer) Interval() time.Duration {
	return p.interval
}

// Begin records the frame start and the idle time since the previous
// frame ended.
func (p *Pacer) Begin() Frame {
	start := p.clock.Now()
	if p.lastEnd.IsZero() {
		return Frame{start: start, first: true}
	}
	return Frame{start: start, delay: start.Sub(p.lastEnd)}
}

// End blocks for the rest of the interval, if any is left, and returns
// how long it slept. The first frame never sleeps.
func (p *Pacer) End(f Frame) time.Duration {
	end := p.clock.Now()
	processing := end.Sub(f.start)

	var sleep time.Duration
	if !f.first {
		sleep = SleepDuration(p.interval, processing+f.delay)
	}
	if sleep > 0 {
		p.clock.Sleep(sleep)
	}

	p.record(end, processing, f.delay, sleep)
	p.lastEnd = p.clock.Now()

	return sleep
}

// SleepDuration is what remains of interval after cost. It is never
// negative; a frame over budget is not compensated later.
func SleepDuration(interval, cost time.Duration) time.Duration {
	if cost >= interval {
		return 0
	}
	return interval - cost
}

func (p *Pacer) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

func (p *Pacer) record(end time.Time, processing, delay, sleep time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.Frames++
	p.stats.Processing = processing
	p.stats.Delay = delay
	p.stats.Sleep = sleep

	if p.windowStart.IsZero() {
		p.windowStart = end
		return
	}
	p.windowFrames++
	if elapsed := end.Sub(p.windowStart); elapsed > time.Second {
		p.stats.FPS = float64(p.windowFrames) / elapsed.Seconds()
		logger.Debugf("fps: %.2f, frames: %d, window: %s, process: %s, delay: %s",
			p.stats.FPS, p.windowFrames, elapsed, processing, delay)
		p.windowStart = end
		p.windowFrames = 0
	}
}
