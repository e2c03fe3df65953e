package rxkit

import (
	"github.com/gokit/errors"
	"github.com/gokit/es"
)

//***************************************************************************
// RetryWhen
//***************************************************************************

// RetryHandler builds the control stream of a RetryWhen operation from
// the stream of errors the source encounters. The values the control
// stream emits are discarded; only its event kinds matter: an emission
// grants a resubscription, an error terminates the operation with that
// error, completion terminates the operation successfully.
type RetryHandler func(failures Observable) ObservableSource

// RetryWhen returns an Observable delegating the retry/stop decision to
// a control stream built once, on subscribe, by the giving handler.
// Every source failure is published to the handler's error stream
// instead of propagating; the operation then holds until the control
// stream reacts. Note the documented consequence: a control stream which
// completes after a failure ends the operation with Complete, so the
// final error is never seen by the consumer.
func (o Observable) RetryWhen(handler RetryHandler) Observable {
	src := o.src
	log, events := o.log, o.events
	return o.derive(SourceFunc(func(down Observer) Subscription {
		h := NewHandle()
		g := newGate(down)

		failures := newFailureSubject()
		var control ObservableSource
		err := guarded(ErrHandlerFailure, func() error {
			control = handler(New(failures))
			return nil
		})
		if err == nil && control == nil {
			err = errors.Wrap(ErrHandlerFailure, "retry handler returned no control source")
		}
		if err != nil {
			Guard(h, down).Error(err)
			return h
		}

		run := &attemptRun{src: src, h: h}
		w := &retryWhenLoop{
			run:      run,
			g:        g,
			failures: failures,
			ctrl:     make(chan ctrlEvent, 4),
			log:      log,
			events:   events,
		}

		// The control stream is subscribed once for the lifetime of the
		// whole operation, before the first attempt.
		csub := control.Subscribe(controlObserver{events: w.ctrl})

		h.Defer(csub.Stop)
		h.Defer(run.stopCurrent)
		h.Defer(g.seal)

		go w.loop()
		return h
	}))
}

//***************************************************************************
// control plumbing
//***************************************************************************

// ctrlEvent is one decision of the control stream: a resubscription
// grant, or its terminal.
type ctrlEvent struct {
	grant bool
	term  terminal
}

// controlObserver folds the control stream's signals into one ordered
// event channel, so a grant emitted just ahead of the control terminal
// is always consumed first. Sends never block; a control stream emits at
// most one decision per published failure and extra emissions are
// dropped.
type controlObserver struct {
	events chan ctrlEvent
}

// Next implements the Observer interface. The emitted value is
// discarded; it serves purely as a resubscription grant.
func (c controlObserver) Next(_ interface{}) {
	select {
	case c.events <- ctrlEvent{grant: true}:
	default:
	}
}

// Error implements the Observer interface.
func (c controlObserver) Error(err error) {
	select {
	case c.events <- ctrlEvent{term: terminal{err: err}}:
	default:
	}
}

// Complete implements the Observer interface.
func (c controlObserver) Complete() {
	select {
	case c.events <- ctrlEvent{term: terminal{complete: true}}:
	default:
	}
}

// retryWhenLoop runs the outer retry state machine. It cooperates with
// the control stream's listener purely through the ctrl channel, keeping
// all resubscription and termination decisions on one goroutine.
type retryWhenLoop struct {
	run      *attemptRun
	g        *gate
	failures *failureSubject
	ctrl     chan ctrlEvent
	log      Logs
	events   *Eventer
}

func (w *retryWhenLoop) loop() {
	terms := make(chan terminal, 1)
	obs := attemptObserver{g: w.g, terms: terms}

	for attempt := 1; ; attempt++ {
		if !w.run.begin(obs) {
			return
		}

	running:
		for {
			select {
			case <-w.run.h.Done():
				return
			case ev := <-w.ctrl:
				// A grant with no failure awaiting a decision is dropped;
				// a control terminal wins over the running attempt.
				if ev.grant {
					continue
				}
				w.run.stopCurrent()
				w.finish(ev.term)
				return
			case t := <-terms:
				if t.complete {
					w.g.Complete()
					w.run.h.Stop()
					return
				}
				w.run.stopCurrent()
				if !w.await(t.err, attempt) {
					return
				}
				break running
			}
		}
	}
}

// await publishes the giving failure to the control chain and blocks
// until the control stream grants another attempt, terminates the
// operation, or the outer subscription stops. It returns true only when
// another attempt was granted.
func (w *retryWhenLoop) await(cause error, attempt int) bool {
	// Grants left over from earlier rounds are discarded; a control
	// terminal queued ahead of this failure still decides it.
stale:
	for {
		select {
		case ev := <-w.ctrl:
			if ev.grant {
				continue
			}
			w.finish(ev.term)
			return false
		default:
			break stale
		}
	}

	w.failures.publish(cause)

	select {
	case ev := <-w.ctrl:
		if !ev.grant {
			w.finish(ev.term)
			return false
		}
	case <-w.run.h.Done():
		return false
	}

	w.log.Emit(DEBUG, LogMsg("control stream granted stream retry").
		Int("attempt", attempt).Err("error", cause).Write())
	if w.events != nil {
		w.events.Publish(RetryAttempted{Ref: w.run.h.ID(), Attempt: int64(attempt), Err: cause})
	}
	return true
}

func (w *retryWhenLoop) finish(c terminal) {
	if c.complete {
		w.g.Complete()
	} else {
		w.g.Error(c.err)
	}
	w.run.h.Stop()
}

//***************************************************************************
// failureSubject
//***************************************************************************

// failureSubject feeds encountered source failures to the control chain
// over a gokit es event stream. It is single-producer (the retry loop)
// and single-consumer (the handler's control chain) for the life of one
// RetryWhen operation, and never terminates on its own; the control
// chain bounds it.
type failureSubject struct {
	es es.EventStream
}

func newFailureSubject() *failureSubject {
	return &failureSubject{es: es.New()}
}

func (f *failureSubject) publish(err error) {
	f.es.Publish(err)
}

// Subscribe implements the ObservableSource interface.
func (f *failureSubject) Subscribe(o Observer) Subscription {
	h := NewHandle()
	out := Guard(h, o)
	sub := f.es.Subscribe(func(m interface{}) {
		if err, ok := m.(error); ok {
			out.Next(err)
		}
	})
	// A control chain exhausting its budget stops this subscription from
	// inside a publish of the same es stream, whose lock is not
	// reentrant. The sealed gate already makes the handler inert, so the
	// es unsubscribe itself runs on its own goroutine.
	h.Defer(func() {
		go sub.Stop()
	})
	return h
}
