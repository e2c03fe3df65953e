package rxkit

import (
	"sync"

	"github.com/gokit/xid"
)

//***************************************************************************
// Subscription
//***************************************************************************

// Subscription is the live relationship between one observer and one run
// of a source. Stop is idempotent and safe to invoke from any termination
// path: consumer cancellation, upstream completion, upstream error or the
// teardown of a retry loop.
type Subscription interface {
	ID() xid.ID
	IsActive() bool
	Stop()
}

//***************************************************************************
// Handle
//***************************************************************************

// Handle implements the Subscription interface as a cancellable token
// with release hooks. Hooks registered through Defer run exactly once
// when the handle stops, in reverse registration order; registering a
// hook on an already stopped handle runs it immediately.
type Handle struct {
	id   xid.ID
	off  AtomicBool
	ml   sync.Mutex
	rels []func()
	done chan struct{}
}

// NewHandle returns a new active Handle.
func NewHandle() *Handle {
	return &Handle{id: xid.New(), done: make(chan struct{})}
}

// ID returns the unique id of the handle.
func (h *Handle) ID() xid.ID {
	return h.id
}

// IsActive returns true/false if the handle has not yet been stopped.
func (h *Handle) IsActive() bool {
	return !h.off.IsTrue()
}

// Done returns a channel closed once the handle stops.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Defer registers a release hook to be run when the handle stops. If the
// handle has already stopped the hook runs immediately on the caller's
// goroutine.
func (h *Handle) Defer(fn func()) {
	if fn == nil {
		return
	}
	h.ml.Lock()
	if h.off.IsTrue() {
		h.ml.Unlock()
		fn()
		return
	}
	h.rels = append(h.rels, fn)
	h.ml.Unlock()
}

// Stop cancels the handle, running all registered release hooks in
// reverse registration order. Only the first call has any effect.
func (h *Handle) Stop() {
	h.ml.Lock()
	if h.off.IsTrue() {
		h.ml.Unlock()
		return
	}
	h.off.On()
	rels := h.rels
	h.rels = nil
	close(h.done)
	h.ml.Unlock()

	for i := len(rels) - 1; i >= 0; i-- {
		rels[i]()
	}
}

//***************************************************************************
// gate
//***************************************************************************

// gate relays signals to a downstream observer, serializing delivery and
// enforcing the terminal contract: after an Error, Complete or seal, no
// further signal passes. Operators share one gate per outer subscription
// so a fallback or retry attempt can never double-terminate downstream.
type gate struct {
	ml     sync.Mutex
	done   AtomicBool
	target Observer
}

func newGate(target Observer) *gate {
	return &gate{target: target}
}

// seal shuts the gate without delivering a terminal signal. Used on
// cancellation, where the consumer must see nothing further.
func (g *gate) seal() {
	g.done.On()
}

// Next implements the Observer interface.
func (g *gate) Next(v interface{}) {
	g.ml.Lock()
	defer g.ml.Unlock()
	if g.done.IsTrue() {
		return
	}
	g.target.Next(v)
}

// Error implements the Observer interface.
func (g *gate) Error(err error) {
	g.ml.Lock()
	defer g.ml.Unlock()
	if g.done.IsTrue() {
		return
	}
	g.done.On()
	g.target.Error(err)
}

// Complete implements the Observer interface.
func (g *gate) Complete() {
	g.ml.Lock()
	defer g.ml.Unlock()
	if g.done.IsTrue() {
		return
	}
	g.done.On()
	g.target.Complete()
}

//***************************************************************************
// bound
//***************************************************************************

// bound couples a gate with its owning handle, stopping the handle once
// a terminal signal has been delivered downstream. Release hooks on the
// handle therefore run after the terminal is observed but before the
// subscription reports inactive.
type bound struct {
	g *gate
	h *Handle
}

// Next implements the Observer interface.
func (b bound) Next(v interface{}) {
	b.g.Next(v)
}

// Error implements the Observer interface.
func (b bound) Error(err error) {
	b.g.Error(err)
	b.h.Stop()
}

// Complete implements the Observer interface.
func (b bound) Complete() {
	b.g.Complete()
	b.h.Stop()
}

// Guard wraps a downstream observer for delivery through the provided
// handle: signals are serialized, nothing is delivered after a terminal
// signal or after the handle stops, and a terminal signal stops the
// handle once delivered. Producers and source bridges should push their
// signals through the observer returned here.
func Guard(h *Handle, target Observer) Observer {
	g := newGate(target)
	h.Defer(g.seal)
	return bound{g: g, h: h}
}
