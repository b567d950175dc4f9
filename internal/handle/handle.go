// Package handle tracks open files: a fixed-capacity table mapping small
// integer descriptors to (directory slot, cursor) pairs.
package handle

import (
	"errors"
	"fmt"
)

// MaxOpen is the maximum number of simultaneously open handles.
const MaxOpen = 32

var (
	// ErrTooManyOpen is returned when every slot is in use.
	ErrTooManyOpen = errors.New("too many open files")
	// ErrBadHandle is returned for descriptors that are out of range or not
	// currently open.
	ErrBadHandle = errors.New("bad file handle")
)

// Handle is one open file. Entry is a directory slot index, not a copy of the
// entry: size and chain-head mutations are visible through every handle on
// the same file. Cursor stays within [0, file size].
type Handle struct {
	Entry  int
	Cursor uint32
}

// Table is the open-file table.
type Table struct {
	slots [MaxOpen]*Handle
}

// New creates an empty table.
func New() *Table { return &Table{} }

// Open claims the lowest free descriptor for the given directory slot, with
// the cursor at 0. Opening the same file twice yields two independent
// handles.
func (t *Table) Open(entry int) (int, error) {
	for i := range t.slots {
		if t.slots[i] == nil {
			t.slots[i] = &Handle{Entry: entry}
			return i, nil
		}
	}
	return 0, ErrTooManyOpen
}

// Close releases descriptor id.
func (t *Table) Close(id int) error {
	if _, err := t.Get(id); err != nil {
		return err
	}
	t.slots[id] = nil
	return nil
}

// Get returns the handle for descriptor id.
func (t *Table) Get(id int) (*Handle, error) {
	if id < 0 || id >= MaxOpen || t.slots[id] == nil {
		return nil, fmt.Errorf("%w: %d", ErrBadHandle, id)
	}
	return t.slots[id], nil
}

// OpenCount reports how many handles reference the given directory slot.
// Delete uses it to refuse removing a file that is still open.
func (t *Table) OpenCount(entry int) int {
	n := 0
	for i := range t.slots {
		if t.slots[i] != nil && t.slots[i].Entry == entry {
			n++
		}
	}
	return n
}

// CloseAll releases every handle, for unmount teardown.
func (t *Table) CloseAll() {
	for i := range t.slots {
		t.slots[i] = nil
	}
}
