package blockfs

import (
	"github.com/hupe1980/blockfs/blockdev"
	"github.com/hupe1980/blockfs/internal/dir"
	"github.com/hupe1980/blockfs/internal/fat"
	"github.com/hupe1980/blockfs/internal/layout"
)

// Format writes a fresh, empty volume onto dev: superblock, allocation table
// with every entry free (entry 0 reserved), and an empty directory. Any
// previous contents are no longer reachable. The device is left open.
func Format(dev blockdev.Device) error {
	sb, err := layout.Compute(dev.BlockCount())
	if err != nil {
		return &FormatError{cause: err}
	}

	buf := make([]byte, blockdev.BlockSize)
	sb.Marshal(buf)
	if err := dev.WriteBlock(layout.SuperblockIndex, buf); err != nil {
		return deviceErr("write", layout.SuperblockIndex, err)
	}
	if err := fat.New(int(sb.DataBlocks)).Flush(dev, sb); err != nil {
		return deviceErr("write", -1, err)
	}
	if err := dir.New().Flush(dev, sb); err != nil {
		return deviceErr("write", int(sb.DirBlock), err)
	}
	return nil
}
