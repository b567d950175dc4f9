package blockdev

import "fmt"

// Fault defines specific failure behavior for a FaultyDevice.
type Fault struct {
	FailReadAt  int // Fail the Nth read (1-based). 0 to disable.
	FailWriteAt int // Fail the Nth write (1-based). 0 to disable.
	FailOnClose bool
	Err         error
}

// FaultyDevice is a Device wrapper that can inject errors, for testing the
// error paths at the device boundary.
type FaultyDevice struct {
	Dev   Device
	Fault Fault

	reads  int
	writes int
}

// NewFaulty wraps dev with fault injection. With a zero Fault it is
// pass-through.
func NewFaulty(dev Device, fault Fault) *FaultyDevice {
	if fault.Err == nil {
		fault.Err = fmt.Errorf("injected device error")
	}
	return &FaultyDevice{Dev: dev, Fault: fault}
}

// Reads reports the number of reads attempted so far.
func (d *FaultyDevice) Reads() int { return d.reads }

// Writes reports the number of writes attempted so far.
func (d *FaultyDevice) Writes() int { return d.writes }

func (d *FaultyDevice) Close() error {
	if d.Fault.FailOnClose {
		_ = d.Dev.Close()
		return d.Fault.Err
	}
	return d.Dev.Close()
}

func (d *FaultyDevice) BlockCount() int { return d.Dev.BlockCount() }

func (d *FaultyDevice) ReadBlock(index int, buf []byte) error {
	d.reads++
	if d.Fault.FailReadAt > 0 && d.reads >= d.Fault.FailReadAt {
		return d.Fault.Err
	}
	return d.Dev.ReadBlock(index, buf)
}

func (d *FaultyDevice) WriteBlock(index int, buf []byte) error {
	d.writes++
	if d.Fault.FailWriteAt > 0 && d.writes >= d.Fault.FailWriteAt {
		return d.Fault.Err
	}
	return d.Dev.WriteBlock(index, buf)
}
