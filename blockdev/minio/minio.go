// Package minio implements a blockdev.Device over MinIO and S3-compatible
// object storage: one object per block plus a small geometry object. Blocks
// never written read back as zeros, so a freshly created device behaves like
// a zero-filled disk image.
//
// Object layout under the configured prefix:
//
//	meta          geometry marker: "BFSD" + block count (uint32, little-endian)
//	blk/00000042  block 42, exactly blockdev.BlockSize bytes
//
// The blockdev.Device contract has no context parameters, so the device
// carries the context it was created with; cancel it to abort in-flight
// transfers.
package minio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/minio/minio-go/v7"

	"github.com/hupe1980/blockfs/blockdev"
)

const metaSize = 8

var (
	// ErrNoVolume is returned by Open when no geometry object exists under
	// the prefix.
	ErrNoVolume = errors.New("no volume at prefix")
	// ErrBadMeta is returned when the geometry object is malformed.
	ErrBadMeta = errors.New("malformed geometry object")
)

// Device is an object-storage-backed block device.
type Device struct {
	client *minio.Client
	bucket string
	prefix string
	blocks int
	ctx    context.Context
	closed bool
}

// Create initializes a new device of the given block count under
// bucket/prefix, overwriting any previous geometry object. Existing block
// objects are not touched; Format overwrites the metadata blocks anyway.
func Create(ctx context.Context, client *minio.Client, bucket, prefix string, blocks int) (*Device, error) {
	if blocks <= 0 {
		return nil, fmt.Errorf("block count must be positive, got %d", blocks)
	}
	d := &Device{client: client, bucket: bucket, prefix: prefix, blocks: blocks, ctx: ctx}

	meta := make([]byte, metaSize)
	copy(meta[0:4], "BFSD")
	binary.LittleEndian.PutUint32(meta[4:8], uint32(blocks))
	_, err := client.PutObject(ctx, bucket, d.key("meta"), bytes.NewReader(meta), metaSize, minio.PutObjectOptions{})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Open connects to an existing device under bucket/prefix.
func Open(ctx context.Context, client *minio.Client, bucket, prefix string) (*Device, error) {
	d := &Device{client: client, bucket: bucket, prefix: prefix, ctx: ctx}

	obj, err := client.GetObject(ctx, bucket, d.key("meta"), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	meta := make([]byte, metaSize)
	if _, err := io.ReadFull(obj, meta); err != nil {
		if isNotFound(err) {
			return nil, ErrNoVolume
		}
		return nil, fmt.Errorf("%w: %w", ErrBadMeta, err)
	}
	if !bytes.Equal(meta[0:4], []byte("BFSD")) {
		return nil, fmt.Errorf("%w: bad marker %q", ErrBadMeta, meta[0:4])
	}
	d.blocks = int(binary.LittleEndian.Uint32(meta[4:8]))
	if d.blocks <= 0 {
		return nil, fmt.Errorf("%w: block count %d", ErrBadMeta, d.blocks)
	}
	return d, nil
}

func (d *Device) key(name string) string {
	return path.Join(d.prefix, name)
}

func (d *Device) blockKey(index int) string {
	return d.key(fmt.Sprintf("blk/%08d", index))
}

// Close marks the device closed. The client is owned by the caller and is
// not shut down.
func (d *Device) Close() error {
	if d.closed {
		return blockdev.ErrClosed
	}
	d.closed = true
	return nil
}

// BlockCount reports the geometry recorded at Create time.
func (d *Device) BlockCount() int { return d.blocks }

// ReadBlock fetches block index into buf. A block object that was never
// written reads as zeros.
func (d *Device) ReadBlock(index int, buf []byte) error {
	if err := d.check(index, buf); err != nil {
		return err
	}
	obj, err := d.client.GetObject(d.ctx, d.bucket, d.blockKey(index), minio.GetObjectOptions{})
	if err != nil {
		return err
	}
	defer obj.Close()

	if _, err := io.ReadFull(obj, buf); err != nil {
		if isNotFound(err) {
			for i := range buf {
				buf[i] = 0
			}
			return nil
		}
		return err
	}
	return nil
}

// WriteBlock uploads buf as block index.
func (d *Device) WriteBlock(index int, buf []byte) error {
	if err := d.check(index, buf); err != nil {
		return err
	}
	_, err := d.client.PutObject(d.ctx, d.bucket, d.blockKey(index), bytes.NewReader(buf),
		blockdev.BlockSize, minio.PutObjectOptions{})
	return err
}

func (d *Device) check(index int, buf []byte) error {
	if d.closed {
		return blockdev.ErrClosed
	}
	if index < 0 || index >= d.blocks {
		return fmt.Errorf("%w: block %d of %d", blockdev.ErrOutOfRange, index, d.blocks)
	}
	if len(buf) != blockdev.BlockSize {
		return fmt.Errorf("%w: got %d bytes", blockdev.ErrBadBuffer, len(buf))
	}
	return nil
}

func isNotFound(err error) bool {
	errResp := minio.ToErrorResponse(err)
	return errResp.Code == "NoSuchKey" || errResp.Code == "NotFound"
}
