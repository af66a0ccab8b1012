package office

import "time"

// Timer is a pending callback. Stop on a fired or stopped timer is a no-op.
type Timer interface {
	Stop() bool
}

// Clock abstracts time for testing.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// realClock uses the system clock.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// RealClock returns the system clock.
func RealClock() Clock { return realClock{} }

// stopTimer stops t if set. Safe on nil.
func stopTimer(t Timer) {
	if t != nil {
		t.Stop()
	}
}
