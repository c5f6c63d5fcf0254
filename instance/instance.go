package instance

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	scriptbridge "github.com/wippyai/script-bridge"
)

// ID uniquely identifies one loaded instance of the bridge within the
// process. IDs are never zero and never reused while the process lives.
//
// Since Data is created lazily, the order of ids may not reflect the order
// that environments were created.
type ID uint32

var nextID atomic.Uint32

func mintID() ID {
	id := nextID.Add(1)
	if id == 0 {
		panic("scriptbridge: instance id counter overflowed")
	}
	return ID(id)
}

// State is the shutdown state of one instance. Transitions are monotonic:
// running -> draining -> stopped, never backward.
type State int32

const (
	StateRunning State = iota
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Data holds bridge state associated with a particular environment. If an
// engine is embedded multiple times in one process, each environment gets its
// own Data.
type Data struct {
	id      ID
	state   atomic.Int32
	dropSig scriptbridge.Signaler

	mu    sync.Mutex
	hooks []func(scriptbridge.Env)

	locals   LocalTable
	channels atomic.Int64
}

// process-wide registry of live instances, used by the drop queue to find
// the signaler that nudges an instance's script thread.
var (
	registryMu sync.Mutex
	registry   = map[ID]*Data{}
)

func lookup(id ID) *Data {
	registryMu.Lock()
	defer registryMu.Unlock()
	return registry[id]
}

// Get returns the Data for env, minting an id and registering the teardown
// finalizer on first use. Must be called on the script thread; holding an Env
// serializes access, so no locking is needed around the lazy init.
//
// Get panics if the engine cannot register the drop-queue signaler; without
// it no off-thread Root release could ever be honored.
func Get(env scriptbridge.Env) *Data {
	if d, ok := env.InstanceData().(*Data); ok {
		return d
	}

	d := &Data{id: mintID()}

	sig, err := env.NewSignaler(func(env scriptbridge.Env) {
		DrainDrops(env, d.id, 0)
	})
	if err != nil {
		panic("scriptbridge: register drop-queue signaler: " + err.Error())
	}
	d.dropSig = sig

	registryMu.Lock()
	registry[d.id] = d
	registryMu.Unlock()

	env.SetInstanceData(d, d.teardown)

	Logger().Debug("instance initialized", zap.Uint32("instance", uint32(d.id)))
	return d
}

// ID returns the unique identifier for this instance.
func (d *Data) ID() ID {
	return d.id
}

// State returns the current shutdown state.
func (d *Data) State() State {
	return State(d.state.Load())
}

// Running reports whether the instance still executes queued work.
func (d *Data) Running() bool {
	return d.State() == StateRunning
}

// Locals returns the instance-local cell table.
func (d *Data) Locals() *LocalTable {
	return &d.locals
}

// OnTeardown registers fn to run on the script thread when the environment
// begins tearing down, after the state advances to draining. Hooks run in
// registration order.
func (d *Data) OnTeardown(fn func(scriptbridge.Env)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hooks = append(d.hooks, fn)
}

// RetainChannel and ReleaseChannel track outstanding Channel clones for this
// instance, for diagnostics and shutdown reporting.
func (d *Data) RetainChannel()  { d.channels.Add(1) }
func (d *Data) ReleaseChannel() { d.channels.Add(-1) }

// Channels returns the number of outstanding Channel clones.
func (d *Data) Channels() int64 {
	return d.channels.Load()
}

// Stats is a point-in-time snapshot of one instance, safe to read from any
// goroutine.
type Stats struct {
	ID           ID
	State        State
	Channels     int64
	PendingDrops int
}

// Stats snapshots the instance.
func (d *Data) Stats() Stats {
	return Stats{
		ID:           d.id,
		State:        d.State(),
		Channels:     d.Channels(),
		PendingDrops: PendingDrops(d.id),
	}
}

// advance moves the state machine forward. Returns false if the state had
// already passed from.
func (d *Data) advance(from, to State) bool {
	return d.state.CompareAndSwap(int32(from), int32(to))
}

// teardown is the slot-storage finalizer. It runs once, on the script
// thread, while the environment is still minimally alive.
func (d *Data) teardown(env scriptbridge.Env) {
	if !d.advance(StateRunning, StateDraining) {
		return
	}

	Logger().Debug("instance tearing down",
		zap.Uint32("instance", uint32(d.id)),
		zap.Int64("channels", d.Channels()),
		zap.Int("pending_drops", PendingDrops(d.id)))

	d.mu.Lock()
	hooks := d.hooks
	d.hooks = nil
	d.mu.Unlock()

	for _, fn := range hooks {
		fn(env)
	}

	// Release everything still parked for this instance while the engine can
	// still dispose references. Anything queued after this point is simply
	// discarded; the engine is tearing down its own heap regardless.
	DrainDrops(env, d.id, 0)

	d.dropSig.Release()

	registryMu.Lock()
	delete(registry, d.id)
	registryMu.Unlock()

	d.advance(StateDraining, StateStopped)

	// A QueueDrop racing the drain above can park a ref while the state is
	// still draining; nothing will ever dispose it now, so sweep the map once
	// more after the stopped state is visible.
	dropMu.Lock()
	stranded := len(pendingRefs[d.id])
	delete(pendingRefs, d.id)
	dropMu.Unlock()
	if stranded > 0 {
		Logger().Debug("discarded refs parked during teardown",
			zap.Uint32("instance", uint32(d.id)),
			zap.Int("count", stranded))
	}

	Logger().Debug("instance stopped", zap.Uint32("instance", uint32(d.id)))
}
