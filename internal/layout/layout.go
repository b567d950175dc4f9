// Package layout defines the on-disk superblock and the volume geometry
// derived from it. The binary format is a stable contract: all multi-byte
// fields are little-endian and block-exact, independent of the in-memory
// representation.
package layout

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/hupe1980/blockfs/blockdev"
)

// Signature identifies a formatted volume. It occupies the first 8 bytes of
// block 0.
const Signature = "ECS150FS"

const (
	// SuperblockIndex is the block holding the superblock.
	SuperblockIndex = 0
	// FATStart is the first allocation table block. The table always starts
	// immediately after the superblock.
	FATStart = 1

	// EntriesPerFATBlock is the number of 16-bit table entries per block.
	EntriesPerFATBlock = blockdev.BlockSize / 2

	// MaxDataBlocks is the largest addressable data region: table entries are
	// 16-bit with 0xFFFF reserved as the end-of-chain sentinel.
	MaxDataBlocks = 0xFFFE
)

var (
	// ErrBadSignature is returned when block 0 does not carry Signature.
	ErrBadSignature = errors.New("bad volume signature")
	// ErrGeometry is returned when the superblock's indices are inconsistent
	// with each other or with the device.
	ErrGeometry = errors.New("inconsistent volume geometry")
	// ErrTooSmall is returned when a device cannot hold even a minimal volume.
	ErrTooSmall = errors.New("device too small")
	// ErrTooLarge is returned when a device exceeds the 16-bit geometry fields.
	ErrTooLarge = errors.New("device too large")
)

// Superblock describes the volume geometry.
//
// On-disk layout of block 0:
//
//	offset 0   signature, 8 bytes
//	offset 8   total block count, uint16
//	offset 10  directory block index, uint16
//	offset 12  first data block index, uint16
//	offset 14  data block count, uint16
//	offset 16  table block count, uint8
//	offset 17  zero padding to the end of the block
type Superblock struct {
	TotalBlocks uint16
	DirBlock    uint16
	DataStart   uint16
	DataBlocks  uint16
	FATBlocks   uint8
}

// fatBlocksFor returns the number of table blocks needed to address n data
// blocks, one 16-bit entry each.
func fatBlocksFor(n int) int {
	return (n + EntriesPerFATBlock - 1) / EntriesPerFATBlock
}

// Compute derives the geometry for a device of totalBlocks blocks, giving the
// data region every block not needed for metadata. The minimal volume is one
// superblock, one table block, one directory block and one data block.
func Compute(totalBlocks int) (*Superblock, error) {
	// The superblock requires its total to equal the device's block count, so
	// a device beyond the 16-bit total field cannot be described at all.
	if totalBlocks > 0xFFFF {
		return nil, fmt.Errorf("%w: %d blocks", ErrTooLarge, totalBlocks)
	}
	data := totalBlocks - 3 // superblock + at least one table block + directory
	for data > 0 && 2+fatBlocksFor(data)+data > totalBlocks {
		data--
	}
	if data < 1 {
		return nil, fmt.Errorf("%w: %d blocks", ErrTooSmall, totalBlocks)
	}
	// A handful of geometries have no exact fit (adding one data block would
	// need a second table block); the trailing blocks stay unaddressed.
	fat := fatBlocksFor(data)
	return &Superblock{
		TotalBlocks: uint16(totalBlocks),
		DirBlock:    uint16(FATStart + fat),
		DataStart:   uint16(FATStart + fat + 1),
		DataBlocks:  uint16(data),
		FATBlocks:   uint8(fat),
	}, nil
}

// Marshal serializes the superblock into buf, which must be one block.
func (sb *Superblock) Marshal(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
	copy(buf[0:8], Signature)
	binary.LittleEndian.PutUint16(buf[8:10], sb.TotalBlocks)
	binary.LittleEndian.PutUint16(buf[10:12], sb.DirBlock)
	binary.LittleEndian.PutUint16(buf[12:14], sb.DataStart)
	binary.LittleEndian.PutUint16(buf[14:16], sb.DataBlocks)
	buf[16] = sb.FATBlocks
}

// Unmarshal parses block 0. It verifies the signature but not the geometry;
// call Validate with the device's block count for that.
func Unmarshal(buf []byte) (*Superblock, error) {
	if !bytes.Equal(buf[0:8], []byte(Signature)) {
		return nil, fmt.Errorf("%w: %q", ErrBadSignature, buf[0:8])
	}
	return &Superblock{
		TotalBlocks: binary.LittleEndian.Uint16(buf[8:10]),
		DirBlock:    binary.LittleEndian.Uint16(buf[10:12]),
		DataStart:   binary.LittleEndian.Uint16(buf[12:14]),
		DataBlocks:  binary.LittleEndian.Uint16(buf[14:16]),
		FATBlocks:   buf[16],
	}, nil
}

// Validate checks the geometry invariants against the device's block count:
// the table is sized to address every data block, the directory block
// immediately follows the table, the data region immediately follows the
// directory, and no region extends past the device.
func (sb *Superblock) Validate(deviceBlocks int) error {
	if int(sb.TotalBlocks) != deviceBlocks {
		return fmt.Errorf("%w: superblock says %d blocks, device has %d",
			ErrGeometry, sb.TotalBlocks, deviceBlocks)
	}
	if sb.DataBlocks == 0 {
		return fmt.Errorf("%w: empty data region", ErrGeometry)
	}
	if int(sb.FATBlocks) != fatBlocksFor(int(sb.DataBlocks)) {
		return fmt.Errorf("%w: %d table blocks cannot address %d data blocks",
			ErrGeometry, sb.FATBlocks, sb.DataBlocks)
	}
	if int(sb.DirBlock) != FATStart+int(sb.FATBlocks) {
		return fmt.Errorf("%w: directory block %d does not follow the table",
			ErrGeometry, sb.DirBlock)
	}
	if int(sb.DataStart) != int(sb.DirBlock)+1 {
		return fmt.Errorf("%w: data region %d does not follow the directory",
			ErrGeometry, sb.DataStart)
	}
	if int(sb.DataStart)+int(sb.DataBlocks) > int(sb.TotalBlocks) {
		return fmt.Errorf("%w: data region extends past the device", ErrGeometry)
	}
	return nil
}

// DataBlockIndex maps a table index to its physical block on the device.
func (sb *Superblock) DataBlockIndex(fatIndex uint16) int {
	return int(sb.DataStart) + int(fatIndex)
}
