// Package instance tracks per-environment identity and lifecycle for the
// bridge.
//
// Every engine environment gets exactly one Data record, stored in the
// engine's per-environment slot storage and created lazily by Get. The record
// carries the process-unique instance id that tags every Root and Channel,
// the shutdown state machine, and the instance-local cell table.
//
// The package also owns the process-wide drop queue: persistent references
// whose release was requested off the script thread are parked here, keyed by
// instance id, until a script-thread tick (or teardown) disposes them.
//
//	data := instance.Get(env)   // module-init hook; mints the id on first use
//	id := data.ID()
//
// Teardown is driven by the engine's slot finalizer: the state advances
// running -> draining -> stopped, registered hooks run (channels discard
// their queues), and any references still parked in the drop queue are
// released while the environment is alive enough to do so.
package instance
