// Package dir implements the flat root directory: a fixed array of 32-byte
// entries packed into a single block, indexed by slot and keyed by filename.
package dir

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/hupe1980/blockfs/blockdev"
	"github.com/hupe1980/blockfs/internal/fat"
	"github.com/hupe1980/blockfs/internal/layout"
)

const (
	// MaxEntries is the directory capacity, the maximum number of files.
	MaxEntries = 128
	// NameLen is the maximum filename length in bytes, excluding the
	// terminating NUL of the on-disk record.
	NameLen = 15

	// entrySize is the on-disk size of one directory record:
	// name[16] + size uint32 + firstBlock uint16 + padding[10].
	entrySize = 32
)

var (
	// ErrNotFound is returned when no entry carries the given name.
	ErrNotFound = errors.New("file not found")
	// ErrExists is returned when a created name is already taken.
	ErrExists = errors.New("file already exists")
	// ErrInvalidName is returned for empty or oversized names.
	ErrInvalidName = errors.New("invalid filename")
	// ErrFull is returned when no empty slot remains.
	ErrFull = errors.New("directory full")
)

// Entry is one directory slot. A slot is empty when Name is "".
type Entry struct {
	Name       string
	Size       uint32
	FirstBlock uint16
}

// Empty reports whether the slot is unused.
func (e *Entry) Empty() bool { return e.Name == "" }

// Table is the in-memory directory, loaded at mount and flushed at unmount.
type Table struct {
	entries [MaxEntries]Entry
}

// New creates an empty directory.
func New() *Table { return &Table{} }

// ValidName reports whether name can be stored: non-empty, at most NameLen
// bytes, no NUL byte.
func ValidName(name string) bool {
	return name != "" && len(name) <= NameLen && !bytes.ContainsRune([]byte(name), 0)
}

// Load reads the directory from its block.
func Load(dev blockdev.Device, sb *layout.Superblock) (*Table, error) {
	buf := make([]byte, blockdev.BlockSize)
	if err := dev.ReadBlock(int(sb.DirBlock), buf); err != nil {
		return nil, err
	}
	t := &Table{}
	for i := 0; i < MaxEntries; i++ {
		rec := buf[i*entrySize : (i+1)*entrySize]
		if rec[0] == 0 {
			continue // empty slot: first name byte is NUL
		}
		name := rec[:16]
		if j := bytes.IndexByte(name, 0); j >= 0 {
			name = name[:j]
		}
		t.entries[i] = Entry{
			Name:       string(name),
			Size:       binary.LittleEndian.Uint32(rec[16:20]),
			FirstBlock: binary.LittleEndian.Uint16(rec[20:22]),
		}
	}
	return t, nil
}

// Flush writes the directory back to its block.
func (t *Table) Flush(dev blockdev.Device, sb *layout.Superblock) error {
	buf := make([]byte, blockdev.BlockSize)
	for i := 0; i < MaxEntries; i++ {
		e := &t.entries[i]
		if e.Empty() {
			continue
		}
		rec := buf[i*entrySize : (i+1)*entrySize]
		copy(rec[:16], e.Name)
		binary.LittleEndian.PutUint32(rec[16:20], e.Size)
		binary.LittleEndian.PutUint16(rec[20:22], e.FirstBlock)
	}
	return dev.WriteBlock(int(sb.DirBlock), buf)
}

// Find returns the slot index of name.
func (t *Table) Find(name string) (int, error) {
	for i := range t.entries {
		if !t.entries[i].Empty() && t.entries[i].Name == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrNotFound, name)
}

// Create claims the first empty slot for name with size 0 and no chain.
func (t *Table) Create(name string) (int, error) {
	if !ValidName(name) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if _, err := t.Find(name); err == nil {
		return 0, fmt.Errorf("%w: %q", ErrExists, name)
	}
	for i := range t.entries {
		if t.entries[i].Empty() {
			t.entries[i] = Entry{Name: name, Size: 0, FirstBlock: fat.EOC}
			return i, nil
		}
	}
	return 0, ErrFull
}

// Remove clears slot i.
func (t *Table) Remove(i int) {
	t.entries[i] = Entry{}
}

// Get returns the entry at slot i. Mutations through the pointer are visible
// to every holder of the slot index, which is what open handles rely on.
func (t *Table) Get(i int) *Entry {
	return &t.entries[i]
}

// List returns the non-empty entries in slot order.
func (t *Table) List() []Entry {
	var out []Entry
	for i := range t.entries {
		if !t.entries[i].Empty() {
			out = append(out, t.entries[i])
		}
	}
	return out
}

// Capacity reports the maximum number of files.
func (t *Table) Capacity() int { return MaxEntries }

// FreeCount reports the number of empty slots.
func (t *Table) FreeCount() int {
	n := 0
	for i := range t.entries {
		if t.entries[i].Empty() {
			n++
		}
	}
	return n
}

// Heads returns the chain heads of every non-empty entry, for table integrity
// checks.
func (t *Table) Heads() []uint16 {
	var heads []uint16
	for i := range t.entries {
		if !t.entries[i].Empty() {
			heads = append(heads, t.entries[i].FirstBlock)
		}
	}
	return heads
}
