package rxkit

import (
	"time"

	"github.com/gokit/errors"
)

//***************************************************************************
// Source constructors
//***************************************************************************

// Create returns an Observable whose producer function runs once per
// subscription. Signals pushed through the provided observer are
// serialized and cut off once the subscription stops; the producer may
// consult the subscription to stop early or to register cleanup through
// a Handle. A panic escaping the producer surfaces as a terminal error
// tagged ErrSourcePanic.
func Create(producer func(Observer, *Handle), ops ...Option) Observable {
	return New(SourceFunc(func(o Observer) Subscription {
		h := NewHandle()
		out := Guard(h, o)
		if err := guarded(ErrSourcePanic, func() error {
			producer(out, h)
			return nil
		}); err != nil {
			out.Error(err)
		}
		return h
	}), ops...)
}

// Just returns an Observable which emits the giving values then
// completes.
func Just(values ...interface{}) Observable {
	return Create(func(o Observer, _ *Handle) {
		for _, v := range values {
			o.Next(v)
		}
		o.Complete()
	})
}

// Throw returns an Observable which terminates immediately with the
// giving error.
func Throw(err error) Observable {
	return Create(func(o Observer, _ *Handle) {
		o.Error(err)
	})
}

// Empty returns an Observable which completes immediately without
// emitting.
func Empty() Observable {
	return Create(func(o Observer, _ *Handle) {
		o.Complete()
	})
}

// Never returns an Observable which emits nothing and never terminates.
// Its subscriptions end only through Stop.
func Never() Observable {
	return New(SourceFunc(func(o Observer) Subscription {
		return NewHandle()
	}))
}

// DeferSource builds a fresh source through the factory for every
// subscription, so producer side effects are deferred until subscribe
// time. A factory error or panic surfaces as a terminal error.
func DeferSource(factory func() (ObservableSource, error)) Observable {
	return New(SourceFunc(func(o Observer) Subscription {
		var src ObservableSource
		err := guarded(ErrHandlerFailure, func() (ferr error) {
			src, ferr = factory()
			return
		})
		if err == nil && src == nil {
			err = errors.Wrap(ErrHandlerFailure, "source factory returned no source")
		}
		if err != nil {
			h := NewHandle()
			Guard(h, o).Error(err)
			return h
		}
		return src.Subscribe(o)
	}))
}

// FromChan adapts a receive channel into an Observable. Each
// subscription drains the channel until it closes, which completes the
// stream. Note multiple concurrent subscriptions will race for the
// channel's values.
func FromChan(in <-chan interface{}) Observable {
	return New(SourceFunc(func(o Observer) Subscription {
		h := NewHandle()
		out := Guard(h, o)
		go func() {
			for {
				select {
				case v, ok := <-in:
					if !ok {
						out.Complete()
						return
					}
					out.Next(v)
				case <-h.Done():
					return
				}
			}
		}()
		return h
	}))
}

// Timer returns an Observable which emits the elapsed duration once
// after giving delay, then completes.
func Timer(d time.Duration) Observable {
	return New(SourceFunc(func(o Observer) Subscription {
		h := NewHandle()
		out := Guard(h, o)
		t := time.AfterFunc(d, func() {
			out.Next(d)
			out.Complete()
		})
		h.Defer(func() {
			t.Stop()
		})
		return h
	}))
}

// Interval returns an Observable which emits an increasing counter every
// giving period until its subscription stops.
func Interval(d time.Duration) Observable {
	return New(SourceFunc(func(o Observer) Subscription {
		h := NewHandle()
		out := Guard(h, o)
		go func() {
			tick := time.NewTicker(d)
			defer tick.Stop()

			var count int64
			for {
				select {
				case <-tick.C:
					out.Next(count)
					count++
				case <-h.Done():
					return
				}
			}
		}()
		return h
	}))
}
