package blockfs

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/blockfs/blockdev"
	"github.com/hupe1980/blockfs/internal/dir"
)

// newVolume formats a fresh volume of the given block count onto a MemDevice
// and mounts it.
func newVolume(t *testing.T, blocks int) (*Volume, *blockdev.MemDevice) {
	t.Helper()
	dev := blockdev.NewMem(blocks)
	require.NoError(t, Format(dev))
	v, err := Mount(dev)
	require.NoError(t, err)
	return v, dev
}

// remount cycles the volume through unmount and a fresh mount on the same
// device.
func remount(t *testing.T, v *Volume, dev *blockdev.MemDevice) *Volume {
	t.Helper()
	require.NoError(t, v.Unmount())
	dev.Reopen()
	v2, err := Mount(dev)
	require.NoError(t, err)
	return v2
}

func TestMountRejectsUnformattedDevice(t *testing.T) {
	_, err := Mount(blockdev.NewMem(64))
	var fe *FormatError
	assert.ErrorAs(t, err, &fe)
}

func TestMountRejectsForeignGeometry(t *testing.T) {
	small := blockdev.NewMem(64)
	require.NoError(t, Format(small))

	// replay the superblock of the small volume onto a larger device
	buf := make([]byte, blockdev.BlockSize)
	require.NoError(t, small.ReadBlock(0, buf))
	big := blockdev.NewMem(128)
	require.NoError(t, big.WriteBlock(0, buf))

	_, err := Mount(big)
	var fe *FormatError
	assert.ErrorAs(t, err, &fe)
}

func TestMountDeviceError(t *testing.T) {
	dev := blockdev.NewFaulty(blockdev.NewMem(64), blockdev.Fault{FailReadAt: 1})
	_, err := Mount(dev)
	var de *DeviceError
	assert.ErrorAs(t, err, &de)
}

func TestOperationsAfterUnmount(t *testing.T) {
	v, _ := newVolume(t, 64)
	require.NoError(t, v.Unmount())

	assert.ErrorIs(t, v.Create("a"), ErrNotMounted)
	assert.ErrorIs(t, v.Delete("a"), ErrNotMounted)
	_, err := v.Open("a")
	assert.ErrorIs(t, err, ErrNotMounted)
	assert.ErrorIs(t, v.Unmount(), ErrNotMounted)
	_, err = v.Read(0, make([]byte, 1))
	assert.ErrorIs(t, err, ErrNotMounted)
	_, err = v.Write(0, []byte("x"))
	assert.ErrorIs(t, err, ErrNotMounted)
	_, err = v.Info()
	assert.ErrorIs(t, err, ErrNotMounted)
}

func TestUnmountStaysMountedOnFlushFailure(t *testing.T) {
	mem := blockdev.NewMem(64)
	require.NoError(t, Format(mem))
	faulty := blockdev.NewFaulty(mem, blockdev.Fault{})
	v, err := Mount(faulty)
	require.NoError(t, err)

	faulty.Fault.FailWriteAt = faulty.Writes() + 1
	var de *DeviceError
	assert.ErrorAs(t, v.Unmount(), &de)

	// the flush failed before close, so the session is still usable
	faulty.Fault.FailWriteAt = 0
	assert.NoError(t, v.Create("retry.txt"))
	assert.NoError(t, v.Unmount())
}

func TestCreateDelete(t *testing.T) {
	v, _ := newVolume(t, 64)

	require.NoError(t, v.Create("a.txt"))

	var ne *NameError
	assert.ErrorAs(t, v.Create("a.txt"), &ne, "duplicate")
	assert.ErrorAs(t, v.Create(""), &ne, "empty name")
	assert.ErrorAs(t, v.Create("a-very-long-filename.txt"), &ne, "oversized name")

	assert.ErrorIs(t, v.Delete("missing"), ErrNotFound)
	require.NoError(t, v.Delete("a.txt"))
	assert.ErrorIs(t, v.Delete("a.txt"), ErrNotFound)
}

func TestDirectoryCapacity(t *testing.T) {
	v, _ := newVolume(t, 64)
	for i := 0; i < dir.MaxEntries; i++ {
		require.NoError(t, v.Create(fmt.Sprintf("f%03d", i)))
	}

	err := v.Create("straw")
	var ce *CapacityError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ResourceDirectory, ce.Resource)

	files, err := v.List()
	require.NoError(t, err)
	assert.Len(t, files, dir.MaxEntries, "failed create leaves the directory unchanged")
}

func TestDeleteBusyFile(t *testing.T) {
	v, _ := newVolume(t, 64)
	require.NoError(t, v.Create("busy.txt"))

	fd, err := v.Open("busy.txt")
	require.NoError(t, err)
	_, err = v.Write(fd, []byte("data"))
	require.NoError(t, err)

	var be *BusyError
	require.ErrorAs(t, v.Delete("busy.txt"), &be)
	assert.Equal(t, 1, be.Handles)

	// the file and its data are intact
	size, err := v.Stat(fd)
	require.NoError(t, err)
	assert.Equal(t, 4, size)

	require.NoError(t, v.Close(fd))
	assert.NoError(t, v.Delete("busy.txt"))
}

func TestDeleteFreesBlocks(t *testing.T) {
	v, _ := newVolume(t, 64)
	info, err := v.Info()
	require.NoError(t, err)
	before := info.FreeBlocks

	require.NoError(t, v.Create("big.bin"))
	fd, err := v.Open("big.bin")
	require.NoError(t, err)
	_, err = v.Write(fd, make([]byte, 3*blockdev.BlockSize))
	require.NoError(t, err)
	require.NoError(t, v.Close(fd))

	info, err = v.Info()
	require.NoError(t, err)
	assert.Equal(t, before-3, info.FreeBlocks)

	require.NoError(t, v.Delete("big.bin"))
	info, err = v.Info()
	require.NoError(t, err)
	assert.Equal(t, before, info.FreeBlocks)
	assert.NoError(t, v.CheckIntegrity())
}

func TestSeekBounds(t *testing.T) {
	v, _ := newVolume(t, 64)
	require.NoError(t, v.Create("s.txt"))
	fd, err := v.Open("s.txt")
	require.NoError(t, err)
	_, err = v.Write(fd, []byte("hello"))
	require.NoError(t, err)

	var oob *BoundsError
	assert.ErrorAs(t, v.Seek(fd, 6), &oob)
	assert.ErrorAs(t, v.Seek(fd, -1), &oob)

	// seeking exactly to end-of-file is allowed; the next read returns 0
	require.NoError(t, v.Seek(fd, 5))
	n, err := v.Read(fd, make([]byte, 10))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestHandlesShareEntryButNotCursor(t *testing.T) {
	v, _ := newVolume(t, 64)
	require.NoError(t, v.Create("shared.txt"))

	w, err := v.Open("shared.txt")
	require.NoError(t, err)
	r, err := v.Open("shared.txt")
	require.NoError(t, err)
	assert.NotEqual(t, w, r)

	_, err = v.Write(w, []byte("hello"))
	require.NoError(t, err)

	// the size change is visible through the other handle, the cursor is not
	size, err := v.Stat(r)
	require.NoError(t, err)
	assert.Equal(t, 5, size)

	buf := make([]byte, 5)
	n, err := v.Read(r, buf)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(buf))
}

func TestStatAfterAppend(t *testing.T) {
	v, _ := newVolume(t, 64)
	require.NoError(t, v.Create("a.txt"))
	fd, err := v.Open("a.txt")
	require.NoError(t, err)

	_, err = v.Write(fd, make([]byte, 100))
	require.NoError(t, err)

	size, err := v.Stat(fd)
	require.NoError(t, err)
	require.NoError(t, v.Seek(fd, size))
	n, err := v.Write(fd, make([]byte, 37))
	require.NoError(t, err)
	require.Equal(t, 37, n)

	got, err := v.Stat(fd)
	require.NoError(t, err)
	assert.Equal(t, size+37, got)
}

func TestInfo(t *testing.T) {
	v, _ := newVolume(t, 64)
	info, err := v.Info()
	require.NoError(t, err)

	assert.Equal(t, 64, info.TotalBlocks)
	assert.Equal(t, 1, info.FATBlocks)
	assert.Equal(t, 2, info.DirBlock)
	assert.Equal(t, 3, info.DataStart)
	assert.Equal(t, 61, info.DataBlocks)
	assert.Equal(t, 60, info.FreeBlocks, "entry 0 is reserved")
	assert.Equal(t, dir.MaxEntries, info.FreeDirEntries)
}

func TestScenario(t *testing.T) {
	// mount a freshly formatted volume, create, write, remount, read back
	v, dev := newVolume(t, 64)

	files, err := v.List()
	require.NoError(t, err)
	assert.Empty(t, files)

	require.NoError(t, v.Create("a.txt"))
	fd, err := v.Open("a.txt")
	require.NoError(t, err)
	assert.Equal(t, 0, fd)

	n, err := v.Write(fd, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	size, err := v.Stat(fd)
	require.NoError(t, err)
	assert.Equal(t, 5, size)

	require.NoError(t, v.Close(fd))

	v = remount(t, v, dev)

	fd, err = v.Open("a.txt")
	require.NoError(t, err)
	buf := make([]byte, 5)
	n, err = v.Read(fd, buf)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(buf))

	files, err = v.List()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "a.txt", files[0].Name)
	assert.Equal(t, 5, files[0].Size)
}
