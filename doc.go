// Package blockfs implements a minimal single-volume file system layered on
// a fixed-size block device: a FAT-style linked-block allocator, a flat
// 128-entry directory, a bounded open-file table, and byte-range file I/O
// translated onto whole-block device operations.
//
// A [Volume] is an explicit session object spanning mount to unmount:
//
//	dev := blockdev.NewMem(1024)
//	if err := blockfs.Format(dev); err != nil { ... }
//
//	v, err := blockfs.Mount(dev)
//	if err != nil { ... }
//	defer v.Unmount()
//
//	_ = v.Create("hello.txt")
//	fd, _ := v.Open("hello.txt")
//	_, _ = v.Write(fd, []byte("hello"))
//	_ = v.Close(fd)
//
// Metadata (allocation table and directory) lives in memory for the whole
// session and is flushed to the device only at unmount. There is no
// journaling: a crash before unmount loses uncommitted metadata.
//
// Volumes are single-threaded by contract. No operation on a mounted volume
// may run concurrently with another; the package exposes no locks.
package blockfs
