// Package fat implements the allocation table: a flat array of 16-bit
// entries, one per data block, forming singly-linked chains of blocks.
package fat

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/hupe1980/blockfs/blockdev"
	"github.com/hupe1980/blockfs/internal/layout"
)

const (
	// Free marks an unused data block.
	Free uint16 = 0x0000
	// EOC is the end-of-chain sentinel: the last block of a file, or the chain
	// head of a zero-length file.
	EOC uint16 = 0xFFFF
)

var (
	// ErrOutOfSpace is returned when no free entry remains.
	ErrOutOfSpace = errors.New("allocation table exhausted")
	// ErrBadChain is returned when a chain walk leaves the table's bounds or
	// runs past the table size without reaching the end-of-chain sentinel.
	ErrBadChain = errors.New("corrupt allocation chain")
)

// Table is the in-memory allocation table. It is loaded wholesale at mount,
// mutated in place, and flushed wholesale at unmount.
type Table struct {
	entries []uint16
}

// New creates a table for n data blocks with every entry free except entry 0,
// which is reserved by convention.
func New(n int) *Table {
	t := &Table{entries: make([]uint16, n)}
	if n > 0 {
		t.entries[0] = EOC
	}
	return t
}

// Load reads the table from the device blocks described by sb.
func Load(dev blockdev.Device, sb *layout.Superblock) (*Table, error) {
	entries := make([]uint16, sb.DataBlocks)
	buf := make([]byte, blockdev.BlockSize)
	for b := 0; b < int(sb.FATBlocks); b++ {
		if err := dev.ReadBlock(layout.FATStart+b, buf); err != nil {
			return nil, err
		}
		base := b * layout.EntriesPerFATBlock
		for i := 0; i < layout.EntriesPerFATBlock && base+i < len(entries); i++ {
			entries[base+i] = binary.LittleEndian.Uint16(buf[2*i : 2*i+2])
		}
	}
	return &Table{entries: entries}, nil
}

// Flush writes the table back to its device blocks. Slack entries in the last
// block are zeroed.
func (t *Table) Flush(dev blockdev.Device, sb *layout.Superblock) error {
	buf := make([]byte, blockdev.BlockSize)
	for b := 0; b < int(sb.FATBlocks); b++ {
		for i := range buf {
			buf[i] = 0
		}
		base := b * layout.EntriesPerFATBlock
		for i := 0; i < layout.EntriesPerFATBlock && base+i < len(t.entries); i++ {
			binary.LittleEndian.PutUint16(buf[2*i:2*i+2], t.entries[base+i])
		}
		if err := dev.WriteBlock(layout.FATStart+b, buf); err != nil {
			return err
		}
	}
	return nil
}

// Len reports the number of entries (addressable data blocks).
func (t *Table) Len() int { return len(t.entries) }

// Alloc claims the first free entry in index order and marks it end-of-chain.
func (t *Table) Alloc() (uint16, error) {
	for i := 1; i < len(t.entries); i++ {
		if t.entries[i] == Free {
			t.entries[i] = EOC
			return uint16(i), nil
		}
	}
	return 0, ErrOutOfSpace
}

// Extend allocates a new block and links it after tail, which must currently
// be the last block of its chain.
func (t *Table) Extend(tail uint16) (uint16, error) {
	if int(tail) >= len(t.entries) || t.entries[tail] != EOC {
		return 0, fmt.Errorf("%w: extend at %d which is not a chain tail", ErrBadChain, tail)
	}
	next, err := t.Alloc()
	if err != nil {
		return 0, err
	}
	t.entries[tail] = next
	return next, nil
}

// Next returns the entry following i in its chain.
func (t *Table) Next(i uint16) (uint16, error) {
	if int(i) >= len(t.entries) {
		return 0, fmt.Errorf("%w: index %d out of %d", ErrBadChain, i, len(t.entries))
	}
	return t.entries[i], nil
}

// Nth walks n links from head. Callers must not reach past the chain's length
// without extending it first.
func (t *Table) Nth(head uint16, n int) (uint16, error) {
	cur := head
	for step := 0; step < n; step++ {
		if cur == EOC || int(cur) >= len(t.entries) {
			return 0, fmt.Errorf("%w: walk from %d ended after %d of %d hops", ErrBadChain, head, step, n)
		}
		cur = t.entries[cur]
	}
	if cur == EOC || int(cur) >= len(t.entries) {
		return 0, fmt.Errorf("%w: walk from %d ended at %d hops", ErrBadChain, head, n)
	}
	return cur, nil
}

// FreeChain releases every block of the chain starting at head. A no-op when
// head is the end-of-chain sentinel (zero-length file).
func (t *Table) FreeChain(head uint16) error {
	cur := head
	for hops := 0; cur != EOC; hops++ {
		if int(cur) >= len(t.entries) || hops > len(t.entries) {
			return fmt.Errorf("%w: free from %d", ErrBadChain, head)
		}
		next := t.entries[cur]
		t.entries[cur] = Free
		cur = next
	}
	return nil
}

// TruncateAfter frees every block after i in its chain and makes i the tail.
func (t *Table) TruncateAfter(i uint16) error {
	if int(i) >= len(t.entries) {
		return fmt.Errorf("%w: truncate at %d", ErrBadChain, i)
	}
	next := t.entries[i]
	t.entries[i] = EOC
	if next == EOC {
		return nil
	}
	return t.FreeChain(next)
}

// ChainLen reports the number of blocks in the chain starting at head.
func (t *Table) ChainLen(head uint16) (int, error) {
	n := 0
	cur := head
	for cur != EOC {
		if int(cur) >= len(t.entries) || n > len(t.entries) {
			return 0, fmt.Errorf("%w: length from %d", ErrBadChain, head)
		}
		n++
		cur = t.entries[cur]
	}
	return n, nil
}

// FreeCount reports the number of free entries.
func (t *Table) FreeCount() int {
	n := 0
	for _, e := range t.entries {
		if e == Free {
			n++
		}
	}
	return n
}

// CheckIntegrity verifies that the chains rooted at heads are acyclic, stay in
// bounds, terminate in the end-of-chain sentinel, and never share a block.
// Every allocated entry must be owned by exactly one chain (entry 0 is
// reserved and exempt).
func (t *Table) CheckIntegrity(heads []uint16) error {
	owner := make(map[uint16]int, len(t.entries))
	for fi, head := range heads {
		cur := head
		for hops := 0; cur != EOC; hops++ {
			if int(cur) >= len(t.entries) {
				return fmt.Errorf("%w: chain %d leaves the table at %d", ErrBadChain, fi, cur)
			}
			if hops >= len(t.entries) {
				return fmt.Errorf("%w: chain %d exceeds %d hops", ErrBadChain, fi, len(t.entries))
			}
			if prev, taken := owner[cur]; taken {
				return fmt.Errorf("%w: block %d owned by chains %d and %d", ErrBadChain, cur, prev, fi)
			}
			owner[cur] = fi
			cur = t.entries[cur]
		}
	}
	for i := 1; i < len(t.entries); i++ {
		if _, taken := owner[uint16(i)]; t.entries[i] != Free && !taken {
			return fmt.Errorf("%w: block %d allocated but unowned", ErrBadChain, i)
		}
	}
	return nil
}
