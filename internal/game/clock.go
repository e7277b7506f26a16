package game

import "time"

// Scheduler abstracts delayed execution so session tests can fire timers
// deterministically. The returned cancel is safe to call more than once.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) (cancel func())
}

type realScheduler struct{}

// NewScheduler returns the wall-clock Scheduler backed by time.AfterFunc.
func NewScheduler() Scheduler { return realScheduler{} }

func (realScheduler) AfterFunc(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}
