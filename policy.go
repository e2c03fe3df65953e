package rxkit

import (
	"time"

	"github.com/gokit/rxkit/retries"
)

//***************************************************************************
// Retry policies
//***************************************************************************

// LimitedPolicy returns a RetryHandler granting up to the giving number
// of resubscriptions immediately, after which the control stream
// completes and the retrying operation ends successfully, discarding the
// final error.
func LimitedPolicy(grants int) RetryHandler {
	return func(failures Observable) ObservableSource {
		return failures.Take(grants)
	}
}

// BackOffPolicy returns a RetryHandler granting up to the giving number
// of resubscriptions, holding each grant for the duration the back off
// yields for its attempt index. Like LimitedPolicy, exhausting the
// budget completes the control stream rather than forwarding the last
// error.
func BackOffPolicy(grants int, backoff retries.BackOff) RetryHandler {
	return func(failures Observable) ObservableSource {
		return failures.Take(grants).DelayEach(func(i int64) time.Duration {
			return backoff(i)
		})
	}
}

// EscalatingPolicy returns a RetryHandler granting up to the giving
// number of immediate resubscriptions, then terminating the operation
// with the last encountered error instead of completing silently.
func EscalatingPolicy(grants int) RetryHandler {
	return func(failures Observable) ObservableSource {
		return New(SourceFunc(func(o Observer) Subscription {
			var seen AtomicCounter
			return failures.Subscribe(Callbacks{
				OnNext: func(v interface{}) {
					if seen.Inc() > int64(grants) {
						if err, ok := v.(error); ok {
							o.Error(err)
							return
						}
						o.Complete()
						return
					}
					o.Next(v)
				},
				OnError:    o.Error,
				OnComplete: o.Complete,
			})
		}))
	}
}
