package dispatch

import (
	"context"
	"sync"
)

// JoinHandle resolves with the outcome of one sent Task. It is safe to share;
// all readers observe the same settlement.
type JoinHandle struct {
	done chan struct{}
	once sync.Once

	result any
	err    error
}

func newJoinHandle() *JoinHandle {
	return &JoinHandle{done: make(chan struct{})}
}

func (h *JoinHandle) settle(result any, err error) {
	h.once.Do(func() {
		h.result = result
		h.err = err
		close(h.done)
	})
}

// Join blocks until the task settles and returns its outcome. A task that
// never executed because the instance shut down yields a channel_closed
// error, never a hang.
func (h *JoinHandle) Join() (any, error) {
	<-h.done
	return h.result, h.err
}

// JoinContext is Join with a deadline. On context expiry the task keeps its
// place in the queue; only the wait is abandoned.
func (h *JoinHandle) JoinContext(ctx context.Context) (any, error) {
	select {
	case <-h.done:
		return h.result, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done returns a channel closed when the task settles, for use in select
// statements.
func (h *JoinHandle) Done() <-chan struct{} {
	return h.done
}
