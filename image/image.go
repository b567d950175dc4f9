// Package image exports and imports whole-volume disk images as compressed
// streams. An image is a fixed header followed by a zstd-compressed stream
// of all blocks in order; the header carries a CRC32 of the raw block data.
//
// Uses CRC32 (IEEE polynomial): fast, good at detecting storage corruption,
// not cryptographically secure.
package image

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/hupe1980/blockfs/blockdev"
	"github.com/klauspost/compress/zstd"
)

const (
	// MagicNumber identifies blockfs image streams (ASCII: "BFSI").
	MagicNumber = 0x42465349
	// Version is the current image format version.
	Version = 1

	headerSize = 20
)

var (
	ErrInvalidMagic     = errors.New("invalid image magic number")
	ErrInvalidVersion   = errors.New("unsupported image version")
	ErrGeometryMismatch = errors.New("image geometry does not match device")
	ErrChecksum         = errors.New("image checksum mismatch")
)

// Header is the uncompressed 20-byte prefix of every image stream.
type Header struct {
	Magic      uint32
	Version    uint32
	BlockSize  uint32
	BlockCount uint32
	Checksum   uint32 // CRC32 of the uncompressed block data
}

func writeHeader(w io.Writer, h Header) error {
	buf := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	binary.LittleEndian.PutUint32(buf[8:12], h.BlockSize)
	binary.LittleEndian.PutUint32(buf[12:16], h.BlockCount)
	binary.LittleEndian.PutUint32(buf[16:20], h.Checksum)
	_, err := w.Write(buf)
	return err
}

// ReadHeader reads and validates an image header from r.
func ReadHeader(r io.Reader) (Header, error) {
	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Header{}, err
	}
	h := Header{
		Magic:      binary.LittleEndian.Uint32(buf[0:4]),
		Version:    binary.LittleEndian.Uint32(buf[4:8]),
		BlockSize:  binary.LittleEndian.Uint32(buf[8:12]),
		BlockCount: binary.LittleEndian.Uint32(buf[12:16]),
		Checksum:   binary.LittleEndian.Uint32(buf[16:20]),
	}
	if h.Magic != MagicNumber {
		return Header{}, fmt.Errorf("%w: got 0x%08x", ErrInvalidMagic, h.Magic)
	}
	if h.Version != Version {
		return Header{}, fmt.Errorf("%w: got %d", ErrInvalidVersion, h.Version)
	}
	return h, nil
}

// Export streams every block of dev into w as a compressed image. The blocks
// are read twice: once to checksum, once to compress, so the checksum can
// live in the header. The device should not be mounted while exporting, or
// the session's in-memory metadata will be missing from the image.
func Export(dev blockdev.Device, w io.Writer) error {
	crc := crc32.NewIEEE()
	buf := make([]byte, blockdev.BlockSize)
	for i := 0; i < dev.BlockCount(); i++ {
		if err := dev.ReadBlock(i, buf); err != nil {
			return err
		}
		crc.Write(buf)
	}

	if err := writeHeader(w, Header{
		Magic:      MagicNumber,
		Version:    Version,
		BlockSize:  blockdev.BlockSize,
		BlockCount: uint32(dev.BlockCount()),
		Checksum:   crc.Sum32(),
	}); err != nil {
		return err
	}

	enc, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	for i := 0; i < dev.BlockCount(); i++ {
		if err := dev.ReadBlock(i, buf); err != nil {
			_ = enc.Close()
			return err
		}
		if _, err := enc.Write(buf); err != nil {
			_ = enc.Close()
			return err
		}
	}
	return enc.Close()
}

// Import restores an image from r onto dev. The device geometry must match
// the image exactly. The checksum is verified over the decompressed data;
// on mismatch the device contents are undefined and the caller should
// reformat or re-import.
func Import(dev blockdev.Device, r io.Reader) error {
	h, err := ReadHeader(r)
	if err != nil {
		return err
	}
	if h.BlockSize != blockdev.BlockSize || int(h.BlockCount) != dev.BlockCount() {
		return fmt.Errorf("%w: image %dx%d, device %dx%d",
			ErrGeometryMismatch, h.BlockCount, h.BlockSize, dev.BlockCount(), blockdev.BlockSize)
	}

	dec, err := zstd.NewReader(r)
	if err != nil {
		return err
	}
	defer dec.Close()

	crc := crc32.NewIEEE()
	buf := make([]byte, blockdev.BlockSize)
	for i := 0; i < int(h.BlockCount); i++ {
		if _, err := io.ReadFull(dec, buf); err != nil {
			return err
		}
		crc.Write(buf)
		if err := dev.WriteBlock(i, buf); err != nil {
			return err
		}
	}
	if crc.Sum32() != h.Checksum {
		return fmt.Errorf("%w: expected 0x%08x, got 0x%08x", ErrChecksum, h.Checksum, crc.Sum32())
	}
	return nil
}
