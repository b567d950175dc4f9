// Package blockdev defines the fixed-size block device contract the file
// system is layered on, plus concrete devices:
//
//   - [FileDevice]: disk image file on the local file system
//   - [MemDevice]: in-memory device for tests
//   - [FaultyDevice]: fault-injecting wrapper for testing error paths
//
// An object-storage-backed device lives in the minio subpackage.
//
// All devices share one geometry: [BlockSize]-byte blocks addressed by
// zero-based index, transferred whole. Devices are not safe for concurrent
// use; the file system above them is single-threaded by contract.
package blockdev
