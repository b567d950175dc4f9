package blockdev

import (
	"errors"
	"fmt"
)

// BlockSize is the fixed size of every block, in bytes.
const BlockSize = 4096

var (
	// ErrOutOfRange is returned when a block index is negative or beyond the device.
	ErrOutOfRange = errors.New("block index out of range")
	// ErrBadBuffer is returned when a buffer is not exactly BlockSize bytes.
	ErrBadBuffer = errors.New("buffer must be exactly one block")
	// ErrClosed is returned when the device has already been closed.
	ErrClosed = errors.New("device closed")
)

// Device is a fixed-geometry block device. Blocks are addressed by zero-based
// index and are always transferred whole; buffers passed to ReadBlock and
// WriteBlock must be exactly BlockSize bytes.
//
// Implementations are not required to be safe for concurrent use.
type Device interface {
	// Close releases the device. Further calls fail with ErrClosed.
	Close() error

	// BlockCount reports the total number of blocks on the device.
	BlockCount() int

	// ReadBlock reads block index into buf.
	ReadBlock(index int, buf []byte) error

	// WriteBlock writes buf to block index.
	WriteBlock(index int, buf []byte) error
}

func checkTransfer(index, count int, buf []byte) error {
	if index < 0 || index >= count {
		return fmt.Errorf("%w: block %d of %d", ErrOutOfRange, index, count)
	}
	if len(buf) != BlockSize {
		return fmt.Errorf("%w: got %d bytes", ErrBadBuffer, len(buf))
	}
	return nil
}
