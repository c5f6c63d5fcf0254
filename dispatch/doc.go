// Package dispatch moves work from arbitrary goroutines onto an instance's
// script thread.
//
// A Channel is created on the script thread and then cloned and carried
// anywhere. Send enqueues a Task and never blocks; the engine signaler wakes
// the script thread, which drains one task per tick inside a failure
// boundary that catches both Go panics and script exceptions:
//
//	ch, err := dispatch.New(env)
//	...
//	go func() {
//	    n := crunch()
//	    h := ch.Send(func(cx *dispatch.Context) (any, error) {
//	        return publish(cx.Env(), n)
//	    })
//	    out, err := h.Join()
//	    ...
//	}()
//
// Send returns a JoinHandle for callers that want the task's outcome; Post is
// the fire-and-forget variant, routing failures to the engine's
// uncaught-failure path instead.
//
// Once the owning instance begins shutting down, sends still enqueue but the
// items are discarded without executing: JoinHandles reject with a
// channel_closed error, so no waiter ever hangs on a dead instance.
package dispatch
