// Package frames keeps a smoothed frames-per-second estimate from present calls.
package frames

import (
	"log/slog"
	"sync"
	"time"
)

// Smoothing is the weight given to the previous average on every tick.
const Smoothing = 0.9

// Clock reports wall-clock time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads time.Now.
var SystemClock Clock = ClockFunc(time.Now)

// Tick is emitted once per wall-clock second that saw a present.
type Tick struct {
	Frames  int
	Elapsed int64
	FPS     float64
	Average float64
}

// Labels decorate the tick log line.
type Labels struct {
	Mode      string
	Emulation bool
}

// Counter counts presents in whole wall-clock seconds.
type Counter struct {
	clock Clock
	log   *slog.Logger

	mu       sync.Mutex
	frames   int
	lastTick int64
	seeded   bool
	avg      float64
}

// NewCounter returns a Counter reading clock. Nil arguments select the system clock
// and a discarding logger.
func NewCounter(clock Clock, log *slog.Logger) *Counter {
	if clock == nil {
		clock = SystemClock
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Counter{clock: clock, log: log}
}

// Present counts one frame. When the second has changed since the last tick the
// finished window is folded into the average, logged, and returned; the current
// frame then opens the next window.
//
// The first call only opens the window.
func (c *Counter) Present(labels Labels) (Tick, bool) {
	now := c.clock.Now().Unix()

	c.mu.Lock()
	if !c.seeded {
		c.seeded = true
		c.lastTick = now
		c.frames = 1
		c.mu.Unlock()
		return Tick{}, false
	}
	if now == c.lastTick {
		c.frames++
		c.mu.Unlock()
		return Tick{}, false
	}

	elapsed := now - c.lastTick
	if elapsed < 0 {
		// Clock stepped backwards; restart the window without a sample.
		c.lastTick = now
		c.frames = 1
		c.mu.Unlock()
		return Tick{}, false
	}
	tick := Tick{
		Frames:  c.frames,
		Elapsed: elapsed,
		FPS:     float64(c.frames) / float64(elapsed),
	}
	c.avg = c.avg*Smoothing + tick.FPS*(1-Smoothing)
	tick.Average = c.avg
	c.frames = 1
	c.lastTick = now
	c.mu.Unlock()

	c.log.Info("frame rate",
		"fps", round1(tick.FPS),
		"avg", round1(tick.Average),
		"mode", labels.Mode,
		"emulation", onOff(labels.Emulation),
	)
	return tick, true
}

// Average returns the smoothed frame rate.
func (c *Counter) Average() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.avg
}

// Frames returns the number of frames counted in the open window.
func (c *Counter) Frames() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames
}

func round1(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}
