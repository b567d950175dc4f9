package blockdev

import (
	"fmt"
	"os"
)

// FileDevice is a Device backed by a disk image file. Blocks map to
// consecutive BlockSize regions of the file, accessed via ReadAt/WriteAt.
type FileDevice struct {
	f      *os.File
	blocks int
	closed bool
}

// OpenFile opens an existing disk image. The file size must be an exact
// multiple of BlockSize.
func OpenFile(path string) (*FileDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644) //nolint:gosec // G304: path is caller-provided
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if st.Size()%BlockSize != 0 {
		_ = f.Close()
		return nil, fmt.Errorf("disk image size %d is not a multiple of %d", st.Size(), BlockSize)
	}
	return &FileDevice{f: f, blocks: int(st.Size() / BlockSize)}, nil
}

// CreateFile creates a zero-filled disk image with the given number of blocks,
// truncating any existing file at path.
func CreateFile(path string, blocks int) (*FileDevice, error) {
	if blocks <= 0 {
		return nil, fmt.Errorf("block count must be positive, got %d", blocks)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644) //nolint:gosec // G304: path is caller-provided
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(int64(blocks) * BlockSize); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, err
	}
	return &FileDevice{f: f, blocks: blocks}, nil
}

// Close syncs and closes the underlying file.
func (d *FileDevice) Close() error {
	if d.closed {
		return ErrClosed
	}
	d.closed = true
	if err := d.f.Sync(); err != nil {
		_ = d.f.Close()
		return err
	}
	return d.f.Close()
}

// BlockCount reports the number of blocks in the image.
func (d *FileDevice) BlockCount() int { return d.blocks }

// ReadBlock reads block index into buf.
func (d *FileDevice) ReadBlock(index int, buf []byte) error {
	if d.closed {
		return ErrClosed
	}
	if err := checkTransfer(index, d.blocks, buf); err != nil {
		return err
	}
	_, err := d.f.ReadAt(buf, int64(index)*BlockSize)
	return err
}

// WriteBlock writes buf to block index.
func (d *FileDevice) WriteBlock(index int, buf []byte) error {
	if d.closed {
		return ErrClosed
	}
	if err := checkTransfer(index, d.blocks, buf); err != nil {
		return err
	}
	_, err := d.f.WriteAt(buf, int64(index)*BlockSize)
	return err
}
