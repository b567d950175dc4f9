package blockdev

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileDevice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")

	dev, err := CreateFile(path, 8)
	require.NoError(t, err)
	assert.Equal(t, 8, dev.BlockCount())

	buf := make([]byte, BlockSize)
	for i := range buf {
		buf[i] = 0xAB
	}
	require.NoError(t, dev.WriteBlock(3, buf))
	require.NoError(t, dev.Close())

	dev, err = OpenFile(path)
	require.NoError(t, err)
	assert.Equal(t, 8, dev.BlockCount())

	got := make([]byte, BlockSize)
	require.NoError(t, dev.ReadBlock(3, got))
	assert.Equal(t, buf, got)

	// untouched blocks read as zeros
	require.NoError(t, dev.ReadBlock(0, got))
	assert.Equal(t, make([]byte, BlockSize), got)

	require.NoError(t, dev.Close())
	assert.ErrorIs(t, dev.Close(), ErrClosed)
	assert.ErrorIs(t, dev.ReadBlock(0, got), ErrClosed)
}

func TestFileDeviceRejectsBadGeometry(t *testing.T) {
	_, err := OpenFile(filepath.Join(t.TempDir(), "missing.img"))
	assert.Error(t, err)

	_, err = CreateFile(filepath.Join(t.TempDir(), "disk.img"), 0)
	assert.Error(t, err)
}

func TestMemDevice(t *testing.T) {
	dev := NewMem(4)

	buf := make([]byte, BlockSize)
	buf[0] = 1
	require.NoError(t, dev.WriteBlock(0, buf))

	got := make([]byte, BlockSize)
	require.NoError(t, dev.ReadBlock(0, got))
	assert.Equal(t, buf, got)

	assert.ErrorIs(t, dev.ReadBlock(4, got), ErrOutOfRange)
	assert.ErrorIs(t, dev.ReadBlock(-1, got), ErrOutOfRange)
	assert.ErrorIs(t, dev.ReadBlock(0, got[:10]), ErrBadBuffer)

	require.NoError(t, dev.Close())
	assert.ErrorIs(t, dev.WriteBlock(0, buf), ErrClosed)

	// contents survive a reopen, like a real disk
	dev.Reopen()
	require.NoError(t, dev.ReadBlock(0, got))
	assert.Equal(t, buf, got)
}

func TestFaultyDevice(t *testing.T) {
	buf := make([]byte, BlockSize)

	t.Run("pass-through", func(t *testing.T) {
		dev := NewFaulty(NewMem(4), Fault{})
		require.NoError(t, dev.WriteBlock(0, buf))
		require.NoError(t, dev.ReadBlock(0, buf))
		assert.Equal(t, 1, dev.Reads())
		assert.Equal(t, 1, dev.Writes())
	})

	t.Run("fail nth write", func(t *testing.T) {
		dev := NewFaulty(NewMem(4), Fault{FailWriteAt: 2})
		require.NoError(t, dev.WriteBlock(0, buf))
		assert.Error(t, dev.WriteBlock(1, buf))
		assert.Error(t, dev.WriteBlock(2, buf), "stays failed once tripped")
	})

	t.Run("fail nth read", func(t *testing.T) {
		dev := NewFaulty(NewMem(4), Fault{FailReadAt: 1})
		assert.Error(t, dev.ReadBlock(0, buf))
	})

	t.Run("fail close", func(t *testing.T) {
		dev := NewFaulty(NewMem(4), Fault{FailOnClose: true})
		assert.Error(t, dev.Close())
	})
}
