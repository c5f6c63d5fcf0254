package instance

import "sync/atomic"

// LocalKey addresses one cell in every instance's LocalTable. Allocate keys
// once at package init with NewLocalKey.
type LocalKey int

var nextLocalKey atomic.Int32

// NewLocalKey allocates a fresh cell index, valid across all instances.
func NewLocalKey() LocalKey {
	return LocalKey(nextLocalKey.Add(1) - 1)
}

// LocalTable holds user-defined instance-local cells. Access is script-thread
// only; holding an Env serializes callers, so the table is unsynchronized.
type LocalTable struct {
	cells []any
}

// Get returns the cell value, or nil if the cell was never initialized.
func (t *LocalTable) Get(key LocalKey) any {
	if int(key) >= len(t.cells) {
		return nil
	}
	return t.cells[int(key)]
}

// GetOrInit returns the cell value, initializing it with init on first use.
func (t *LocalTable) GetOrInit(key LocalKey, init func() any) any {
	if int(key) >= len(t.cells) {
		grown := make([]any, int(key)+1)
		copy(grown, t.cells)
		t.cells = grown
	}
	if t.cells[int(key)] == nil {
		t.cells[int(key)] = init()
	}
	return t.cells[int(key)]
}

// Set stores a cell value unconditionally.
func (t *LocalTable) Set(key LocalKey, v any) {
	if int(key) >= len(t.cells) {
		grown := make([]any, int(key)+1)
		copy(grown, t.cells)
		t.cells = grown
	}
	t.cells[int(key)] = v
}
