package blockfs

import (
	"errors"
	"fmt"

	"github.com/hupe1980/blockfs/blockdev"
	"github.com/hupe1980/blockfs/internal/dir"
	"github.com/hupe1980/blockfs/internal/fat"
	"github.com/hupe1980/blockfs/internal/handle"
	"github.com/hupe1980/blockfs/internal/layout"
)

// Volume is a mounted file system session. Its lifetime spans mount to
// unmount: the allocation table and directory are loaded into memory at
// mount, mutated in place by every operation, and flushed back only at
// unmount. A crash in between loses uncommitted metadata.
//
// A Volume is not safe for concurrent use. There is no internal locking;
// callers must serialize access.
type Volume struct {
	dev     blockdev.Device
	sb      *layout.Superblock
	fat     *fat.Table
	dir     *dir.Table
	handles *handle.Table
	logger  *Logger
	bounce  []byte
	mounted bool
}

// Mount reads and validates block 0 of dev, loads the allocation table and
// directory, and returns the session. On any failure no mounted state
// remains and dev is left open; the caller owns it until Mount succeeds.
func Mount(dev blockdev.Device, optFns ...Option) (*Volume, error) {
	opts := options{logger: NoopLogger()}
	for _, fn := range optFns {
		fn(&opts)
	}

	buf := make([]byte, blockdev.BlockSize)
	if err := dev.ReadBlock(layout.SuperblockIndex, buf); err != nil {
		return nil, deviceErr("read", layout.SuperblockIndex, err)
	}
	sb, err := layout.Unmarshal(buf)
	if err != nil {
		return nil, &FormatError{cause: err}
	}
	if err := sb.Validate(dev.BlockCount()); err != nil {
		return nil, &FormatError{cause: err}
	}

	ft, err := fat.Load(dev, sb)
	if err != nil {
		return nil, deviceErr("read", -1, err)
	}
	dt, err := dir.Load(dev, sb)
	if err != nil {
		return nil, deviceErr("read", int(sb.DirBlock), err)
	}

	v := &Volume{
		dev:     dev,
		sb:      sb,
		fat:     ft,
		dir:     dt,
		handles: handle.New(),
		logger:  opts.logger,
		bounce:  make([]byte, blockdev.BlockSize),
		mounted: true,
	}
	v.logger.LogMount(dev.BlockCount(), nil)
	return v, nil
}

// MountFile opens the disk image at path and mounts it.
func MountFile(path string, optFns ...Option) (*Volume, error) {
	dev, err := blockdev.OpenFile(path)
	if err != nil {
		return nil, deviceErr("open", -1, err)
	}
	v, err := Mount(dev, optFns...)
	if err != nil {
		_ = dev.Close()
		return nil, err
	}
	return v, nil
}

// Unmount persists the directory and allocation table, then closes the
// device. Both writes complete before close is attempted; if either fails
// the volume stays mounted so the caller can retry. Open handles are
// released.
func (v *Volume) Unmount() error {
	if !v.mounted {
		return ErrNotMounted
	}
	if err := v.dir.Flush(v.dev, v.sb); err != nil {
		return deviceErr("write", int(v.sb.DirBlock), err)
	}
	if err := v.fat.Flush(v.dev, v.sb); err != nil {
		return deviceErr("write", -1, err)
	}

	v.handles.CloseAll()
	v.mounted = false
	err := v.dev.Close()
	if err != nil {
		err = deviceErr("close", -1, err)
	}
	v.logger.LogUnmount(err)
	return err
}

// Create adds an empty file named name to the directory.
func (v *Volume) Create(name string) error {
	if !v.mounted {
		return ErrNotMounted
	}
	_, err := v.dir.Create(name)
	switch {
	case errors.Is(err, dir.ErrInvalidName), errors.Is(err, dir.ErrExists):
		return &NameError{Name: name, cause: err}
	case errors.Is(err, dir.ErrFull):
		return &CapacityError{Resource: ResourceDirectory, cause: err}
	case err != nil:
		return err
	}
	v.logger.WithFile(name).Debug("file created")
	return nil
}

// Delete removes name, freeing its block chain. It refuses files with open
// handles.
func (v *Volume) Delete(name string) error {
	if !v.mounted {
		return ErrNotMounted
	}
	slot, err := v.dir.Find(name)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if n := v.handles.OpenCount(slot); n > 0 {
		return &BusyError{Name: name, Handles: n}
	}
	if err := v.fat.FreeChain(v.dir.Get(slot).FirstBlock); err != nil {
		return err
	}
	v.dir.Remove(slot)
	v.logger.WithFile(name).Debug("file deleted")
	return nil
}

// Open returns a descriptor for name with the cursor at 0. Opening the same
// file repeatedly yields distinct handles over the same directory entry.
func (v *Volume) Open(name string) (int, error) {
	if !v.mounted {
		return 0, ErrNotMounted
	}
	slot, err := v.dir.Find(name)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	fd, err := v.handles.Open(slot)
	if errors.Is(err, handle.ErrTooManyOpen) {
		return 0, &CapacityError{Resource: ResourceHandles, cause: err}
	}
	return fd, err
}

// Close releases descriptor fd.
func (v *Volume) Close(fd int) error {
	if !v.mounted {
		return ErrNotMounted
	}
	return v.handles.Close(fd)
}

// Stat reports the current size of the file fd refers to.
func (v *Volume) Stat(fd int) (int, error) {
	if !v.mounted {
		return 0, ErrNotMounted
	}
	h, err := v.handles.Get(fd)
	if err != nil {
		return 0, err
	}
	return int(v.dir.Get(h.Entry).Size), nil
}

// Seek moves the cursor of fd to offset. Offsets beyond the current file
// size are rejected; append by seeking to Stat(fd).
func (v *Volume) Seek(fd, offset int) error {
	if !v.mounted {
		return ErrNotMounted
	}
	h, err := v.handles.Get(fd)
	if err != nil {
		return err
	}
	size := int(v.dir.Get(h.Entry).Size)
	if offset < 0 || offset > size {
		return &BoundsError{Offset: offset, Size: size}
	}
	h.Cursor = uint32(offset)
	return nil
}

// List returns the volume's files in directory slot order.
func (v *Volume) List() ([]FileInfo, error) {
	if !v.mounted {
		return nil, ErrNotMounted
	}
	entries := v.dir.List()
	out := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, FileInfo{Name: e.Name, Size: int(e.Size), FirstBlock: e.FirstBlock})
	}
	return out, nil
}

// CheckIntegrity verifies the allocation invariants: every chain reachable
// from the directory is acyclic and in bounds, no block belongs to two
// chains, no allocated block is orphaned, and every file's chain is exactly
// long enough for its size.
func (v *Volume) CheckIntegrity() error {
	if !v.mounted {
		return ErrNotMounted
	}
	if err := v.fat.CheckIntegrity(v.dir.Heads()); err != nil {
		return err
	}
	for _, e := range v.dir.List() {
		n, err := v.fat.ChainLen(e.FirstBlock)
		if err != nil {
			return err
		}
		if int(e.Size) > n*blockdev.BlockSize || (n > 0 && int(e.Size) <= (n-1)*blockdev.BlockSize) {
			return fmt.Errorf("file %q: size %d does not fit %d block(s)", e.Name, e.Size, n)
		}
	}
	return nil
}
