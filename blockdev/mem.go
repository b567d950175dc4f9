package blockdev

// MemDevice is an in-memory Device, primarily for tests.
type MemDevice struct {
	data   []byte
	blocks int
	closed bool
}

// NewMem creates a zero-filled in-memory device with the given block count.
func NewMem(blocks int) *MemDevice {
	return &MemDevice{
		data:   make([]byte, blocks*BlockSize),
		blocks: blocks,
	}
}

// Close marks the device closed. The contents survive, so a MemDevice can be
// "reopened" with Reopen to simulate an unmount/mount cycle in tests.
func (d *MemDevice) Close() error {
	if d.closed {
		return ErrClosed
	}
	d.closed = true
	return nil
}

// Reopen clears the closed flag.
func (d *MemDevice) Reopen() { d.closed = false }

// BlockCount reports the number of blocks.
func (d *MemDevice) BlockCount() int { return d.blocks }

// ReadBlock reads block index into buf.
func (d *MemDevice) ReadBlock(index int, buf []byte) error {
	if d.closed {
		return ErrClosed
	}
	if err := checkTransfer(index, d.blocks, buf); err != nil {
		return err
	}
	copy(buf, d.data[index*BlockSize:(index+1)*BlockSize])
	return nil
}

// WriteBlock writes buf to block index.
func (d *MemDevice) WriteBlock(index int, buf []byte) error {
	if d.closed {
		return ErrClosed
	}
	if err := checkTransfer(index, d.blocks, buf); err != nil {
		return err
	}
	copy(d.data[index*BlockSize:(index+1)*BlockSize], buf)
	return nil
}
