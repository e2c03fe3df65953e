package rxkit

import (
	"sync"
	"time"
)

//***************************************************************************
// Relay operators
//
// Small synchronous relays used to compose retry policies over the
// error-notification stream (bounded counting, delay insertion) and to
// shape bridge payloads. They run on whatever goroutine delivers the
// source's signals.
//***************************************************************************

// Map returns an Observable applying fn to every value. A panic in fn
// terminates the stream with a tagged handler failure.
func (o Observable) Map(fn func(interface{}) interface{}) Observable {
	return o.relay(func(out Observer, v interface{}) {
		var mapped interface{}
		if err := guarded(ErrHandlerFailure, func() error {
			mapped = fn(v)
			return nil
		}); err != nil {
			out.Error(err)
			return
		}
		out.Next(mapped)
	})
}

// Filter returns an Observable dropping values fn rejects.
func (o Observable) Filter(fn func(interface{}) bool) Observable {
	return o.relay(func(out Observer, v interface{}) {
		var keep bool
		if err := guarded(ErrHandlerFailure, func() error {
			keep = fn(v)
			return nil
		}); err != nil {
			out.Error(err)
			return
		}
		if keep {
			out.Next(v)
		}
	})
}

// relay builds a value-relaying operator forwarding terminals verbatim.
// The observer handed to fn stops the upstream subscription once it
// delivers a terminal.
func (o Observable) relay(fn func(Observer, interface{})) Observable {
	src := o.src
	return o.derive(SourceFunc(func(down Observer) Subscription {
		h := NewHandle()
		out := Guard(h, down)
		h.Defer(src.Subscribe(relayObserver{out: out, fn: fn}).Stop)
		return h
	}))
}

type relayObserver struct {
	out Observer
	fn  func(Observer, interface{})
}

// Next implements the Observer interface.
func (r relayObserver) Next(v interface{}) {
	r.fn(r.out, v)
}

// Error implements the Observer interface.
func (r relayObserver) Error(err error) {
	r.out.Error(err)
}

// Complete implements the Observer interface.
func (r relayObserver) Complete() {
	r.out.Complete()
}

//***************************************************************************
// Take
//***************************************************************************

// Take returns an Observable forwarding at most max values before
// completing and stopping its upstream subscription. A max of zero or
// below completes immediately on subscribe.
func (o Observable) Take(max int) Observable {
	src := o.src
	return o.derive(SourceFunc(func(down Observer) Subscription {
		h := NewHandle()
		out := Guard(h, down)
		if max <= 0 {
			out.Complete()
			return h
		}
		tk := &takeObserver{out: out, max: int64(max)}
		h.Defer(src.Subscribe(tk).Stop)
		return h
	}))
}

type takeObserver struct {
	out   Observer
	max   int64
	count AtomicCounter
}

// Next implements the Observer interface.
func (t *takeObserver) Next(v interface{}) {
	seen := t.count.Inc()
	if seen > t.max {
		return
	}
	t.out.Next(v)
	if seen == t.max {
		t.out.Complete()
	}
}

// Error implements the Observer interface.
func (t *takeObserver) Error(err error) {
	t.out.Error(err)
}

// Complete implements the Observer interface.
func (t *takeObserver) Complete() {
	t.out.Complete()
}

//***************************************************************************
// Delay
//***************************************************************************

// Delay returns an Observable shifting every value by the giving
// duration. Completion waits for all pending values; errors pass through
// undelayed.
func (o Observable) Delay(d time.Duration) Observable {
	return o.DelayEach(func(int64) time.Duration { return d })
}

// DelayEach returns an Observable shifting the i-th value (zero based)
// by the duration the giving function yields for it. Completion is held
// until every pending value has been delivered; errors pass through
// undelayed and cut pending values off.
func (o Observable) DelayEach(durFn func(int64) time.Duration) Observable {
	src := o.src
	return o.derive(SourceFunc(func(down Observer) Subscription {
		h := NewHandle()
		out := Guard(h, down)
		dl := &delayObserver{out: out, h: h, durFn: durFn}
		h.Defer(src.Subscribe(dl).Stop)
		return h
	}))
}

type delayObserver struct {
	out   Observer
	h     *Handle
	durFn func(int64) time.Duration

	ml        sync.Mutex
	index     int64
	pending   int
	completed bool
}

// Next implements the Observer interface.
func (d *delayObserver) Next(v interface{}) {
	d.ml.Lock()
	i := d.index
	d.index++
	d.pending++
	d.ml.Unlock()

	t := time.AfterFunc(d.durFn(i), func() {
		d.out.Next(v)

		d.ml.Lock()
		d.pending--
		fire := d.completed && d.pending == 0
		d.ml.Unlock()
		if fire {
			d.out.Complete()
		}
	})
	d.h.Defer(func() {
		t.Stop()
	})
}

// Error implements the Observer interface.
func (d *delayObserver) Error(err error) {
	d.out.Error(err)
}

// Complete implements the Observer interface.
func (d *delayObserver) Complete() {
	d.ml.Lock()
	d.completed = true
	fire := d.pending == 0
	d.ml.Unlock()
	if fire {
		d.out.Complete()
	}
}
