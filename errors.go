package blockfs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotMounted is returned by any operation attempted without an active
	// volume.
	ErrNotMounted = errors.New("volume not mounted")
	// ErrNotFound is returned for unknown filenames and stale handles.
	ErrNotFound = errors.New("not found")
)

// Resource identifies which fixed-capacity resource a CapacityError refers to.
type Resource string

const (
	ResourceDirectory Resource = "directory"
	ResourceHandles   Resource = "open-file table"
	ResourceBlocks    Resource = "data blocks"
)

// DeviceError indicates a failure at the block-device boundary. It is fatal
// to the current call and not recovered internally.
//
// The underlying device error can be accessed via errors.Unwrap.
type DeviceError struct {
	Op    string
	Block int
	cause error
}

func (e *DeviceError) Error() string {
	if e.Block >= 0 {
		return fmt.Sprintf("device %s of block %d failed: %v", e.Op, e.Block, e.cause)
	}
	return fmt.Sprintf("device %s failed: %v", e.Op, e.cause)
}

func (e *DeviceError) Unwrap() error { return e.cause }

func deviceErr(op string, block int, cause error) error {
	return &DeviceError{Op: op, Block: block, cause: cause}
}

// FormatError indicates a signature or geometry mismatch at mount time. The
// volume is refused and no mounted state remains.
//
// The underlying validation error can be accessed via errors.Unwrap.
type FormatError struct {
	cause error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid volume format: %v", e.cause)
}

func (e *FormatError) Unwrap() error { return e.cause }

// NameError indicates an empty, oversized, or duplicate filename.
//
// The underlying directory error can be accessed via errors.Unwrap.
type NameError struct {
	Name  string
	cause error
}

func (e *NameError) Error() string {
	return fmt.Sprintf("bad filename %q: %v", e.Name, e.cause)
}

func (e *NameError) Unwrap() error { return e.cause }

// CapacityError indicates an exhausted fixed-capacity resource: the
// directory, the open-file table, or the allocation table.
type CapacityError struct {
	Resource Resource
	cause    error
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%s exhausted", e.Resource)
}

func (e *CapacityError) Unwrap() error { return e.cause }

// BoundsError indicates a seek offset beyond the current file size.
type BoundsError struct {
	Offset int
	Size   int
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("offset %d beyond file size %d", e.Offset, e.Size)
}

// BusyError indicates a delete attempted on a file with open handles.
type BusyError struct {
	Name    string
	Handles int
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("file %q is open (%d handle(s))", e.Name, e.Handles)
}
