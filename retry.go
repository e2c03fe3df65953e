package rxkit

import (
	"sync"
)

//***************************************************************************
// Retry
//***************************************************************************

// Retry returns an Observable resubscribing to its source every time it
// fails, without bound. Each resubscription is a fresh run of the
// source's producer and side effects; nothing emitted before the failure
// is replayed.
func (o Observable) Retry() Observable {
	return o.retrying(0)
}

// RetryMax returns an Observable retrying a failed source until the
// giving total attempt budget is spent, at which point the last error is
// forwarded to the consumer. A budget of one or below disables retrying:
// the first failure propagates immediately.
func (o Observable) RetryMax(max int) Observable {
	if max < 1 {
		max = 1
	}
	return o.retrying(max)
}

func (o Observable) retrying(max int) Observable {
	src := o.src
	log, events := o.log, o.events
	return o.derive(SourceFunc(func(down Observer) Subscription {
		h := NewHandle()
		g := newGate(down)
		run := &attemptRun{src: src, h: h}
		h.Defer(run.stopCurrent)
		h.Defer(g.seal)

		go retryLoop(run, g, max, log, events)
		return h
	}))
}

// retryLoop drives the attempt state machine on its own goroutine, so
// resubscription is iterative rather than recursive and a new attempt
// never starts before the previous one has been torn down.
func retryLoop(run *attemptRun, g *gate, max int, log Logs, events *Eventer) {
	terms := make(chan terminal, 1)
	obs := attemptObserver{g: g, terms: terms}

	for attempt := 1; ; attempt++ {
		if !run.begin(obs) {
			return
		}

		select {
		case <-run.h.Done():
			return
		case t := <-terms:
			if t.complete {
				g.Complete()
				run.h.Stop()
				return
			}
			run.stopCurrent()
			if max > 0 && attempt >= max {
				g.Error(t.err)
				run.h.Stop()
				return
			}
			log.Emit(DEBUG, LogMsg("retrying failed stream").
				Int("attempt", attempt).Err("error", t.err).Write())
			if events != nil {
				events.Publish(RetryAttempted{Ref: run.h.ID(), Attempt: int64(attempt), Err: t.err})
			}
		}
	}
}

//***************************************************************************
// attempt plumbing
//***************************************************************************

// terminal carries the end signal of one source attempt.
type terminal struct {
	err      error
	complete bool
}

// attemptObserver forwards values straight through the shared downstream
// gate while handing terminals over to the controlling loop.
type attemptObserver struct {
	g     *gate
	terms chan terminal
}

// Next implements the Observer interface.
func (a attemptObserver) Next(v interface{}) {
	a.g.Next(v)
}

// Error implements the Observer interface.
func (a attemptObserver) Error(err error) {
	a.terms <- terminal{err: err}
}

// Complete implements the Observer interface.
func (a attemptObserver) Complete() {
	a.terms <- terminal{complete: true}
}

// attemptRun owns the single active inner subscription across retry
// attempts, dropping ownership of a prior attempt before the next one
// subscribes.
type attemptRun struct {
	src ObservableSource
	h   *Handle

	ml      sync.Mutex
	stopped bool
	current Subscription
}

// begin subscribes the next attempt, returning false without
// subscribing if the outer subscription has ended.
func (r *attemptRun) begin(obs Observer) bool {
	r.ml.Lock()
	if r.stopped || !r.h.IsActive() {
		r.ml.Unlock()
		return false
	}
	r.ml.Unlock()

	sub := r.src.Subscribe(obs)

	r.ml.Lock()
	if r.stopped {
		r.ml.Unlock()
		sub.Stop()
		return false
	}
	r.current = sub
	r.ml.Unlock()
	return true
}

func (r *attemptRun) stopCurrent() {
	r.ml.Lock()
	cur := r.current
	r.current = nil
	if !r.h.IsActive() {
		r.stopped = true
	}
	r.ml.Unlock()
	if cur != nil {
		cur.Stop()
	}
}
