package attempt

import (
	"errors"
	"testing"
	"time"
)

func expired(c *Clock) bool {
	select {
	case <-c.Expired():
		return true
	default:
		return false
	}
}

func TestClockExpiresAtBudget(t *testing.T) {
	ft := newFakeTime(t0)
	c := NewClock(ft, t0, 10*time.Minute, true)
	c.Start()

	ft.Advance(10*time.Minute - time.Second)
	if expired(c) {
		t.Fatal("clock expired early")
	}
	if r, ok := c.Remaining(); !ok || r != time.Second {
		t.Fatalf("remaining = %v, %v", r, ok)
	}

	ft.Advance(time.Second)
	if !expired(c) {
		t.Fatal("clock did not expire at the deadline")
	}
	if r, _ := c.Remaining(); r != 0 {
		t.Fatalf("remaining after expiry = %v", r)
	}
	if !errors.Is(c.Stop(), ErrClockAlreadyStopped) {
		t.Fatal("Stop after expiry should report already stopped")
	}
}

func TestClockStopPreventsExpiry(t *testing.T) {
	ft := newFakeTime(t0)
	c := NewClock(ft, t0, time.Minute, true)
	c.Start()

	if err := c.Stop(); err != nil {
		t.Fatalf("first stop: %v", err)
	}
	if err := c.Stop(); !errors.Is(err, ErrClockAlreadyStopped) {
		t.Fatalf("second stop = %v", err)
	}
	ft.Advance(time.Hour)
	if expired(c) {
		t.Fatal("stopped clock expired")
	}
}

func TestClockResumedPastDeadline(t *testing.T) {
	ft := newFakeTime(t0.Add(time.Hour))
	c := NewClock(ft, t0, 10*time.Minute, true)
	c.Start()
	ft.Advance(0)
	if !expired(c) {
		t.Fatal("clock started past its deadline should expire immediately")
	}
	if d, _ := c.Deadline(); !d.Equal(t0.Add(10 * time.Minute)) {
		t.Fatalf("deadline = %v", d)
	}
}

func TestClockUntimed(t *testing.T) {
	ft := newFakeTime(t0)
	c := NewClock(ft, t0, 0, false)
	c.Start()
	ft.Advance(24 * time.Hour)
	if expired(c) {
		t.Fatal("untimed clock expired")
	}
	if _, ok := c.Remaining(); ok {
		t.Fatal("untimed clock reports remaining time")
	}
	if c.Elapsed() != 24*time.Hour {
		t.Fatalf("elapsed = %v", c.Elapsed())
	}
}

func TestClockSystemTime(t *testing.T) {
	c := NewClock(SystemTime, time.Now(), 20*time.Millisecond, true)
	c.Start()
	select {
	case <-c.Expired():
	case <-time.After(2 * time.Second):
		t.Fatal("clock on system time never expired")
	}
}
