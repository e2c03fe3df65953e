package rxkit_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gokit/rxkit"
)

// recorder collects every signal a stream delivers for later assertions,
// counting terminals to catch contract violations.
type recorder struct {
	ml        sync.Mutex
	values    []interface{}
	err       error
	completed bool
	terminals int
	done      chan struct{}
}

func newRecorder() *recorder {
	return &recorder{done: make(chan struct{})}
}

func (r *recorder) Next(v interface{}) {
	r.ml.Lock()
	r.values = append(r.values, v)
	r.ml.Unlock()
}

func (r *recorder) Error(err error) {
	r.ml.Lock()
	r.err = err
	r.terminals++
	first := r.terminals == 1
	r.ml.Unlock()
	if first {
		close(r.done)
	}
}

func (r *recorder) Complete() {
	r.ml.Lock()
	r.completed = true
	r.terminals++
	first := r.terminals == 1
	r.ml.Unlock()
	if first {
		close(r.done)
	}
}

func (r *recorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for stream terminal")
	}
}

func (r *recorder) Values() []interface{} {
	r.ml.Lock()
	defer r.ml.Unlock()
	out := make([]interface{}, len(r.values))
	copy(out, r.values)
	return out
}

func (r *recorder) Err() error {
	r.ml.Lock()
	defer r.ml.Unlock()
	return r.err
}

func (r *recorder) Completed() bool {
	r.ml.Lock()
	defer r.ml.Unlock()
	return r.completed
}

func (r *recorder) Terminals() int {
	r.ml.Lock()
	defer r.ml.Unlock()
	return r.terminals
}

// assertInactive waits for an asynchronously torn down subscription to
// report inactive.
func assertInactive(t *testing.T, sub rxkit.Subscription) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if !sub.IsActive() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("subscription still reports active")
}

// flaky returns a source which emits the giving prefix on every
// subscription, failing the first failures attempts with failErr and
// completing on later ones.
func flaky(prefix []interface{}, failures int, failErr error) rxkit.ObservableSource {
	var attempts int64
	return rxkit.SourceFunc(func(o rxkit.Observer) rxkit.Subscription {
		h := rxkit.NewHandle()
		out := rxkit.Guard(h, o)
		n := atomic.AddInt64(&attempts, 1)
		for _, v := range prefix {
			out.Next(v)
		}
		if n <= int64(failures) {
			out.Error(failErr)
			return h
		}
		out.Complete()
		return h
	})
}

func repeated(prefix []interface{}, times int) []interface{} {
	var out []interface{}
	for i := 0; i < times; i++ {
		out = append(out, prefix...)
	}
	return out
}
