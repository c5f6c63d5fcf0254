// Package reftable provides the handle table engine implementations use to
// back persistent references. Handles are stable small integers; slots are
// recycled through a free list once released.
package reftable

import "sync"

// Handle is an opaque reference to an entry in a Table.
// Handle 0 is reserved and always invalid.
type Handle uint32

type entry struct {
	value any
	valid bool
}

// Table is a handle-indexed value store. It is safe for concurrent use,
// although engines are expected to confine mutation to their script thread.
type Table struct {
	entries  []entry
	freeList []Handle
	mu       sync.Mutex
}

// New creates an empty table.
func New() *Table {
	return &Table{
		entries:  make([]entry, 0, 64),
		freeList: make([]Handle, 0, 16),
	}
}

// Create stores a value and returns its handle.
func (t *Table) Create(value any) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := entry{value: value, valid: true}

	if len(t.freeList) > 0 {
		h := t.freeList[len(t.freeList)-1]
		t.freeList = t.freeList[:len(t.freeList)-1]
		t.entries[h-1] = e
		return h
	}

	t.entries = append(t.entries, e)
	return Handle(len(t.entries))
}

// Get retrieves the value for a live handle.
func (t *Table) Get(h Handle) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.at(h)
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Release removes a live handle, recycling its slot, and returns the stored
// value. Releasing a dead handle returns ok=false.
func (t *Table) Release(h Handle) (value any, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, live := t.at(h)
	if !live {
		return nil, false
	}

	value = e.value
	*e = entry{}
	t.freeList = append(t.freeList, h)
	return value, true
}

// Len returns the number of live entries.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for i := range t.entries {
		if t.entries[i].valid {
			n++
		}
	}
	return n
}

// Clear drops every live entry, the engine-teardown path where the whole
// value heap goes away at once. Returns the number of entries dropped.
func (t *Table) Clear() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for i := range t.entries {
		if t.entries[i].valid {
			t.entries[i] = entry{}
			t.freeList = append(t.freeList, Handle(i+1))
			n++
		}
	}
	return n
}

// at returns a pointer into entries for a live handle. Caller holds t.mu.
func (t *Table) at(h Handle) (*entry, bool) {
	if h == 0 || int(h) > len(t.entries) {
		return nil, false
	}
	e := &t.entries[h-1]
	if !e.valid {
		return nil, false
	}
	return e, true
}
