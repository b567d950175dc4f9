package blockfs

import (
	"errors"

	"github.com/hupe1980/blockfs/blockdev"
	"github.com/hupe1980/blockfs/internal/dir"
	"github.com/hupe1980/blockfs/internal/fat"
)

// Read reads from the cursor of fd into buf, clamped to end-of-file, and
// advances the cursor. It returns the number of bytes read; 0 with a nil
// error when the cursor is already at end-of-file.
//
// Partial blocks are staged through a bounce buffer: the first block may
// start mid-block and the last may end mid-block.
func (v *Volume) Read(fd int, buf []byte) (int, error) {
	if !v.mounted {
		return 0, ErrNotMounted
	}
	h, err := v.handles.Get(fd)
	if err != nil {
		return 0, err
	}
	e := v.dir.Get(h.Entry)

	cursor := int(h.Cursor)
	size := int(e.Size)
	if cursor >= size || len(buf) == 0 {
		return 0, nil
	}
	want := len(buf)
	if want > size-cursor {
		want = size - cursor
	}

	cur, err := v.fat.Nth(e.FirstBlock, cursor/blockdev.BlockSize)
	if err != nil {
		return 0, err
	}

	total := 0
	for total < want {
		off := cursor % blockdev.BlockSize
		chunk := blockdev.BlockSize - off
		if chunk > want-total {
			chunk = want - total
		}
		phys := v.sb.DataBlockIndex(cur)
		if err := v.dev.ReadBlock(phys, v.bounce); err != nil {
			h.Cursor = uint32(cursor)
			v.logger.LogIO("read", fd, total, err)
			return total, deviceErr("read", phys, err)
		}
		copy(buf[total:], v.bounce[off:off+chunk])
		total += chunk
		cursor += chunk

		if total < want {
			if cur, err = v.fat.Next(cur); err != nil {
				h.Cursor = uint32(cursor)
				return total, err
			}
		}
	}
	h.Cursor = uint32(cursor)
	v.logger.LogIO("read", fd, total, nil)
	return total, nil
}

// Write writes data at the cursor of fd, growing the file's chain one block
// at a time as the write crosses the allocated range. Partial blocks go
// through a read-modify-write bounce buffer so untouched bytes survive;
// aligned full blocks are written directly.
//
// If the allocation table fills up mid-write, Write stops and reports the
// bytes written so far with a nil error; a CapacityError is returned only
// when the very first needed allocation fails and nothing was written.
// Afterwards the file size is max(old size, cursor) and a newly allocated
// chain head is recorded in the directory entry.
func (v *Volume) Write(fd int, data []byte) (int, error) {
	if !v.mounted {
		return 0, ErrNotMounted
	}
	h, err := v.handles.Get(fd)
	if err != nil {
		return 0, err
	}
	e := v.dir.Get(h.Entry)
	if len(data) == 0 {
		return 0, nil
	}

	chainLen, err := v.fat.ChainLen(e.FirstBlock)
	if err != nil {
		return 0, err
	}

	var (
		cursor  = int(h.Cursor)
		written = 0
		cur     uint16 // table index of the block under the cursor
		outOf   bool
	)

	finish := func(failure error) (int, error) {
		h.Cursor = uint32(cursor)
		if uint32(cursor) > e.Size {
			e.Size = uint32(cursor)
		}
		if failure == nil && outOf && written == 0 {
			failure = &CapacityError{Resource: ResourceBlocks, cause: fat.ErrOutOfSpace}
		}
		v.logger.LogIO("write", fd, written, failure)
		return written, failure
	}

	for written < len(data) {
		blockIdx := cursor / blockdev.BlockSize
		fresh := false

		switch {
		case blockIdx >= chainLen:
			// The cursor moved past the last allocated block: grow the chain
			// by one. The cursor can never be more than one block ahead,
			// since it is bounded by the file size.
			var idx uint16
			if chainLen == 0 {
				idx, err = v.fat.Alloc()
			} else {
				if written == 0 {
					// Entering the loop right at the chain tail.
					if cur, err = v.fat.Nth(e.FirstBlock, chainLen-1); err != nil {
						return finish(err)
					}
				}
				idx, err = v.fat.Extend(cur)
			}
			if errors.Is(err, fat.ErrOutOfSpace) {
				outOf = true
				return finish(nil)
			}
			if err != nil {
				return finish(err)
			}
			if chainLen == 0 {
				e.FirstBlock = idx
			}
			chainLen++
			cur = idx
			fresh = true
		case written == 0:
			if cur, err = v.fat.Nth(e.FirstBlock, blockIdx); err != nil {
				return finish(err)
			}
		default:
			if cur, err = v.fat.Next(cur); err != nil {
				return finish(err)
			}
		}

		off := cursor % blockdev.BlockSize
		chunk := blockdev.BlockSize - off
		if chunk > len(data)-written {
			chunk = len(data) - written
		}
		phys := v.sb.DataBlockIndex(cur)

		if chunk == blockdev.BlockSize {
			err = v.dev.WriteBlock(phys, data[written:written+blockdev.BlockSize])
		} else {
			if fresh {
				for i := range v.bounce {
					v.bounce[i] = 0
				}
			} else if err = v.dev.ReadBlock(phys, v.bounce); err != nil {
				v.rollback(fresh, e, &chainLen)
				return finish(deviceErr("read", phys, err))
			}
			copy(v.bounce[off:off+chunk], data[written:written+chunk])
			err = v.dev.WriteBlock(phys, v.bounce)
		}
		if err != nil {
			v.rollback(fresh, e, &chainLen)
			return finish(deviceErr("write", phys, err))
		}

		written += chunk
		cursor += chunk
	}
	return finish(nil)
}

// rollback undoes a chain extension whose data write failed, so no chain ends
// with a trailing block the file size cannot account for.
func (v *Volume) rollback(fresh bool, e *dir.Entry, chainLen *int) {
	if !fresh {
		return
	}
	if *chainLen == 1 {
		_ = v.fat.FreeChain(e.FirstBlock)
		e.FirstBlock = fat.EOC
	} else if tail, err := v.fat.Nth(e.FirstBlock, *chainLen-2); err == nil {
		_ = v.fat.TruncateAfter(tail)
	}
	*chainLen--
}
