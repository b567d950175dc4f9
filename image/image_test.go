package image

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/blockfs"
	"github.com/hupe1980/blockfs/blockdev"
	"github.com/hupe1980/blockfs/testutil"
)

func newFormattedDevice(t *testing.T, blocks int) *blockdev.MemDevice {
	t.Helper()
	dev := blockdev.NewMem(blocks)
	require.NoError(t, blockfs.Format(dev))
	return dev
}

func TestExportImportRoundTrip(t *testing.T) {
	rng := testutil.NewRNG(99)
	src := newFormattedDevice(t, 64)

	// put a file on the source volume so the image carries real data
	v, err := blockfs.Mount(src)
	require.NoError(t, err)
	require.NoError(t, v.Create("payload.bin"))
	fd, err := v.Open("payload.bin")
	require.NoError(t, err)
	payload := rng.Bytes(2*blockdev.BlockSize + 17)
	_, err = v.Write(fd, payload)
	require.NoError(t, err)
	require.NoError(t, v.Close(fd))
	require.NoError(t, v.Unmount())
	src.Reopen()

	var buf bytes.Buffer
	require.NoError(t, Export(src, &buf))

	dst := blockdev.NewMem(64)
	require.NoError(t, Import(dst, &buf))

	// the restored volume mounts and serves the file
	v, err = blockfs.Mount(dst)
	require.NoError(t, err)
	fd, err = v.Open("payload.bin")
	require.NoError(t, err)
	got := make([]byte, len(payload))
	n, err := v.Read(fd, got)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	assert.Equal(t, payload, got)
	require.NoError(t, v.Unmount())
}

func TestImportRejectsCorruptHeader(t *testing.T) {
	src := newFormattedDevice(t, 16)
	var buf bytes.Buffer
	require.NoError(t, Export(src, &buf))

	t.Run("bad magic", func(t *testing.T) {
		img := append([]byte{}, buf.Bytes()...)
		img[0] ^= 0xFF
		err := Import(blockdev.NewMem(16), bytes.NewReader(img))
		assert.ErrorIs(t, err, ErrInvalidMagic)
	})

	t.Run("bad version", func(t *testing.T) {
		img := append([]byte{}, buf.Bytes()...)
		img[4] = 0xEE
		err := Import(blockdev.NewMem(16), bytes.NewReader(img))
		assert.ErrorIs(t, err, ErrInvalidVersion)
	})

	t.Run("geometry mismatch", func(t *testing.T) {
		err := Import(blockdev.NewMem(32), bytes.NewReader(buf.Bytes()))
		assert.ErrorIs(t, err, ErrGeometryMismatch)
	})

	t.Run("checksum mismatch", func(t *testing.T) {
		img := append([]byte{}, buf.Bytes()...)
		img[16] ^= 0xFF // stored checksum
		err := Import(blockdev.NewMem(16), bytes.NewReader(img))
		assert.ErrorIs(t, err, ErrChecksum)
	})

	t.Run("truncated stream", func(t *testing.T) {
		img := buf.Bytes()[:buf.Len()/2]
		err := Import(blockdev.NewMem(16), bytes.NewReader(img))
		assert.Error(t, err)
	})
}

func TestReadHeader(t *testing.T) {
	src := newFormattedDevice(t, 16)
	var buf bytes.Buffer
	require.NoError(t, Export(src, &buf))

	h, err := ReadHeader(&buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(MagicNumber), h.Magic)
	assert.Equal(t, uint32(Version), h.Version)
	assert.Equal(t, uint32(blockdev.BlockSize), h.BlockSize)
	assert.Equal(t, uint32(16), h.BlockCount)
}
