package dispatch

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	scriptbridge "github.com/wippyai/script-bridge"
	"github.com/wippyai/script-bridge/errors"
	"github.com/wippyai/script-bridge/instance"
)

// DefaultDropBudget bounds how many drop-queue references one drain tick
// disposes before yielding back to the engine.
const DefaultDropBudget = 32

// Options tunes a Channel.
type Options struct {
	// DropBudget caps drop-queue disposals per drain tick. Zero means
	// DefaultDropBudget; negative means unbounded.
	DropBudget int
}

// Channel sends tasks to the script thread of the instance that created it.
// Clone it freely; all clones share one queue and one engine signaler. The
// Channel methods are safe to call from any goroutine.
type Channel struct {
	state  *channelState
	closed atomic.Bool
}

// channelState is shared by every clone of one channel.
type channelState struct {
	inst       *instance.Data
	sig        scriptbridge.Signaler
	dropBudget int

	mu    sync.Mutex
	queue []item

	sent      atomic.Uint64
	completed atomic.Uint64
	discarded atomic.Uint64
}

type item struct {
	task Task
	sink *JoinHandle // nil for Post
}

// New creates a channel for env's instance. Must be called on the script
// thread; signaler registration is an engine call.
func New(env scriptbridge.Env) (*Channel, error) {
	return NewWithOptions(env, Options{})
}

// NewWithOptions is New with tuning knobs.
func NewWithOptions(env scriptbridge.Env, opts Options) (*Channel, error) {
	d := instance.Get(env)

	budget := opts.DropBudget
	if budget == 0 {
		budget = DefaultDropBudget
	}

	s := &channelState{inst: d, dropBudget: budget}

	sig, err := env.NewSignaler(s.drain)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseDispatch, errors.KindNotInitialized, err, "register channel signaler")
	}
	s.sig = sig

	// When the instance tears down, anything still queued is discarded so no
	// JoinHandle waits forever.
	d.OnTeardown(func(scriptbridge.Env) {
		s.discardAll()
	})

	d.RetainChannel()
	Logger().Debug("channel created", zap.Uint32("instance", uint32(d.ID())))
	return &Channel{state: s}, nil
}

// Clone returns a new handle on the same channel, safe to move to another
// goroutine.
func (c *Channel) Clone() *Channel {
	if c.closed.Load() {
		panic("scriptbridge: Clone on a closed Channel")
	}
	c.state.inst.RetainChannel()
	return &Channel{state: c.state}
}

// Close releases this clone for instance diagnostics. Optional; a channel
// works without it, Close only keeps the instance's clone count honest.
// Idempotent per clone.
func (c *Channel) Close() {
	if !c.closed.Swap(true) {
		c.state.inst.ReleaseChannel()
	}
}

// InstanceID returns the id of the owning instance.
func (c *Channel) InstanceID() instance.ID {
	return c.state.inst.ID()
}

// Send enqueues task and returns a JoinHandle resolving with its outcome.
// Send never blocks. If the instance has begun shutting down, the handle
// rejects with a channel_closed error instead of hanging.
func (c *Channel) Send(task Task) *JoinHandle {
	h := newJoinHandle()
	c.enqueue(item{task: task, sink: h})
	return h
}

// Post enqueues task fire-and-forget. Failures go to the engine's
// uncaught-failure path; post-shutdown items are silently discarded.
func (c *Channel) Post(task Task) {
	c.enqueue(item{task: task})
}

// Stats is a point-in-time snapshot of channel activity.
type Stats struct {
	Queued    int
	Sent      uint64
	Completed uint64
	Discarded uint64
}

// Stats snapshots the shared queue. Safe from any goroutine.
func (c *Channel) Stats() Stats {
	s := c.state
	s.mu.Lock()
	queued := len(s.queue)
	s.mu.Unlock()
	return Stats{
		Queued:    queued,
		Sent:      s.sent.Load(),
		Completed: s.completed.Load(),
		Discarded: s.discarded.Load(),
	}
}

func (c *Channel) enqueue(it item) {
	s := c.state
	s.mu.Lock()
	s.queue = append(s.queue, it)
	s.mu.Unlock()
	s.sent.Add(1)

	// Items enqueue even during shutdown; they are then immediately rejected
	// here rather than left for a drain tick that will never come.
	if !s.inst.Running() {
		s.discardAll()
		return
	}
	if err := s.sig.Signal(); err != nil {
		s.discardAll()
	}
}

// drain runs on the script thread: execute one task, dispose a bounded batch
// of parked references, and re-signal if work remains. One item per tick
// keeps a busy channel from starving the engine.
func (s *channelState) drain(env scriptbridge.Env) {
	if !s.inst.Running() {
		s.discardAll()
		return
	}

	s.mu.Lock()
	var (
		next item
		ok   bool
	)
	if len(s.queue) > 0 {
		next, ok = s.queue[0], true
		s.queue = s.queue[1:]
	}
	remaining := len(s.queue)
	s.mu.Unlock()

	if ok {
		s.execute(env, next)
	}

	instance.DrainDrops(env, s.inst.ID(), s.dropBudget)

	if remaining > 0 || instance.PendingDrops(s.inst.ID()) > 0 {
		_ = s.sig.Signal()
	}
}

func (s *channelState) execute(env scriptbridge.Env, it item) {
	cx := &Context{env: env, inst: s.inst}
	result, err := runBoundary(cx, it.task)
	s.completed.Add(1)

	if it.sink != nil {
		it.sink.settle(result, err)
		return
	}
	if err != nil {
		f := err.(*errors.Error)
		env.ReportUncaught(failureObject(env, f))
		Logger().Warn("dispatched task failed with no waiter",
			zap.Uint32("instance", uint32(s.inst.ID())),
			zap.String("kind", string(f.Kind)))
	}
}

// discardAll rejects every queued item with channel_closed. Pure Go, safe
// from any goroutine; used on the send path after shutdown and from the
// teardown hook.
func (s *channelState) discardAll() {
	s.mu.Lock()
	dead := s.queue
	s.queue = nil
	s.mu.Unlock()

	for _, it := range dead {
		s.discarded.Add(1)
		if it.sink != nil {
			it.sink.settle(nil, errors.ChannelClosed(errors.PhaseDispatch))
		}
	}
	if len(dead) > 0 {
		Logger().Debug("discarded queued tasks after shutdown",
			zap.Uint32("instance", uint32(s.inst.ID())),
			zap.Int("count", len(dead)))
	}
}
