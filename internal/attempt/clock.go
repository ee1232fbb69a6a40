package attempt

import (
	"sync"
	"time"
)

// TimeSource abstracts wall-clock time so tests can drive expiry.
type TimeSource interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type systemTime struct{}

func (systemTime) Now() time.Time { return time.Now() }

func (systemTime) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// SystemTime is the TimeSource backed by the runtime timer.
var SystemTime TimeSource = systemTime{}

type clockState int

const (
	clockIdle clockState = iota
	clockRunning
	clockStopped
	clockExpired
)

// Clock owns the time budget of one attempt. The channel returned by
// Expired is closed at most once, when the budget runs out; it is never
// closed for an untimed clock or after Stop.
type Clock struct {
	ts     TimeSource
	start  time.Time
	budget time.Duration
	timed  bool

	mu      sync.Mutex
	state   clockState
	timer   Timer
	expired chan struct{}
}

// NewClock builds a clock measuring from start. When timed is false the
// clock only tracks elapsed time.
func NewClock(ts TimeSource, start time.Time, budget time.Duration, timed bool) *Clock {
	if ts == nil {
		ts = SystemTime
	}
	return &Clock{
		ts:      ts,
		start:   start,
		budget:  budget,
		timed:   timed,
		expired: make(chan struct{}),
	}
}

// Start arms the expiry timer. A deadline already in the past fires right away.
func (c *Clock) Start() {
	c.mu.Lock()
	if c.state != clockIdle {
		c.mu.Unlock()
		return
	}
	c.state = clockRunning
	c.mu.Unlock()

	if !c.timed {
		return
	}
	d := c.start.Add(c.budget).Sub(c.ts.Now())
	if d < 0 {
		d = 0
	}
	t := c.ts.AfterFunc(d, c.fire)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == clockRunning {
		c.timer = t
		return
	}
	t.Stop()
}

func (c *Clock) fire() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != clockRunning {
		return
	}
	c.state = clockExpired
	close(c.expired)
}

// Stop cancels the clock. Stopping a stopped or expired clock returns
// ErrClockAlreadyStopped and changes nothing.
func (c *Clock) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == clockStopped || c.state == clockExpired {
		return ErrClockAlreadyStopped
	}
	c.state = clockStopped
	if c.timer != nil {
		c.timer.Stop()
	}
	return nil
}

func (c *Clock) Expired() <-chan struct{} { return c.expired }

// Deadline returns the instant the budget runs out; ok is false for an untimed clock.
func (c *Clock) Deadline() (deadline time.Time, ok bool) {
	if !c.timed {
		return time.Time{}, false
	}
	return c.start.Add(c.budget), true
}

// Remaining returns the time left, clamped at zero; ok is false for an untimed clock.
func (c *Clock) Remaining() (time.Duration, bool) {
	deadline, ok := c.Deadline()
	if !ok {
		return 0, false
	}
	r := deadline.Sub(c.ts.Now())
	if r < 0 {
		r = 0
	}
	return r, true
}

func (c *Clock) Elapsed() time.Duration {
	return c.ts.Now().Sub(c.start)
}
