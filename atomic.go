package rxkit

import (
	"sync/atomic"
)

// AtomicBool implements a safe atomic boolean.
type AtomicBool struct {
	flag int32
}

// IsTrue returns true/false if giving atomic bool is in true state.
func (a *AtomicBool) IsTrue() bool {
	return atomic.LoadInt32(&a.flag) == 1
}

// On sets the atomic bool as true.
func (a *AtomicBool) On() {
	atomic.StoreInt32(&a.flag, 1)
}

// Off sets the atomic bool as false.
func (a *AtomicBool) Off() {
	atomic.StoreInt32(&a.flag, 0)
}

// FlipOn attempts to move the atomic bool from false to true, returning
// true only for the single caller that performed the transition.
func (a *AtomicBool) FlipOn() bool {
	return atomic.CompareAndSwapInt32(&a.flag, 0, 1)
}

// AtomicCounter implements a wrapper around an int64 counter.
type AtomicCounter struct {
	count int64
}

// Inc increments the counter by one, returning the new value.
func (a *AtomicCounter) Inc() int64 {
	return atomic.AddInt64(&a.count, 1)
}

// Get returns giving counter count value.
func (a *AtomicCounter) Get() int64 {
	return atomic.LoadInt64(&a.count)
}

// Set sets counter to value.
func (a *AtomicCounter) Set(n int64) {
	atomic.StoreInt64(&a.count, n)
}
