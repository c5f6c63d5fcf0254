package instance

import (
	"sync"

	"go.uber.org/zap"

	scriptbridge "github.com/wippyai/script-bridge"
)

// The drop queue parks persistent references whose release was requested off
// the script thread. Worker goroutines must never call engine disposal APIs
// directly; they enqueue here instead and the owning instance's script thread
// disposes the references during a later tick or at teardown.
var (
	dropMu      sync.Mutex
	pendingRefs = map[ID][]scriptbridge.Ref{}
)

// QueueDrop parks ref for deferred disposal by the instance that created it
// and nudges that instance's script thread. Safe to call from any goroutine.
//
// If the instance has already stopped, the reference is discarded: its
// environment is tearing down the whole heap anyway.
func QueueDrop(id ID, ref scriptbridge.Ref) {
	d := lookup(id)
	if d == nil {
		Logger().Debug("dropping ref for stopped instance", zap.Uint32("instance", uint32(id)))
		return
	}

	// The state check happens under dropMu so it orders against teardown's
	// final purge: either we park before the purge and it sweeps us, or we
	// observe the stopped state and discard.
	dropMu.Lock()
	if d.State() == StateStopped {
		dropMu.Unlock()
		Logger().Debug("dropping ref for stopped instance", zap.Uint32("instance", uint32(id)))
		return
	}
	pendingRefs[id] = append(pendingRefs[id], ref)
	dropMu.Unlock()

	// Best effort: a failed signal means teardown is racing us, and teardown
	// drains the queue itself.
	_ = d.dropSig.Signal()
}

// DrainDrops disposes up to max parked references for one instance, on the
// script thread. max <= 0 drains everything. Returns the number disposed.
//
// The batch is detached under the lock and disposed outside it, so no other
// goroutine can observe or touch a reference once drained.
func DrainDrops(env scriptbridge.Env, id ID, max int) int {
	dropMu.Lock()
	refs := pendingRefs[id]
	var batch []scriptbridge.Ref
	if max <= 0 || max >= len(refs) {
		batch = refs
		delete(pendingRefs, id)
	} else {
		batch = refs[:max]
		pendingRefs[id] = refs[max:]
	}
	dropMu.Unlock()

	for _, ref := range batch {
		env.DisposeRef(ref)
	}
	return len(batch)
}

// PendingDrops returns the number of references currently parked for one
// instance. Safe to call from any goroutine.
func PendingDrops(id ID) int {
	dropMu.Lock()
	defer dropMu.Unlock()
	return len(pendingRefs[id])
}
