// Package pool recycles the timers behind the driver's bounded waits.
package pool

import (
	"sync"
	"time"
)

var timerPool sync.Pool

// GetTimer returns a running timer that fires after d.
//
// Return it to the pool with PutTimer.
func GetTimer(d time.Duration) *time.Timer {
	if t, ok := timerPool.Get().(*time.Timer); ok {
		// since Go 1.23 Reset discards a pending expiry
		t.Reset(d)
		return t
	}

	return time.NewTimer(d)
}

// PutTimer stops t and returns it to the pool.
//
// t cannot be accessed after returning to the pool.
func PutTimer(t *time.Timer) {
	t.Stop()
	timerPool.Put(t)
}

// Deadline returns a channel that receives once d has elapsed and a function
// that releases the underlying timer. A non-positive d means no deadline: the
// channel is nil and never becomes ready in a select.
func Deadline(d time.Duration) (<-chan time.Time, func()) {
	if d <= 0 {
		return nil, func() {}
	}

	t := GetTimer(d)

	return t.C, func() { PutTimer(t) }
}
