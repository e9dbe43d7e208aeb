// Package mmap maps input matrices into memory read-only, so that large trajectory
// files are paged in on demand instead of being read up front.
//
//	m, err := mmap.Open("traj.npy")
//	if err != nil { ... }
//	defer m.Close()
//
//	body, _ := m.Region(headerLen, m.Size()-headerLen)
//	_ = body.Advise(mmap.AccessSequential)
//
// On Unix the file is mapped with mmap(2). Elsewhere it is read into memory, and
// Advise is a no-op.
//
// Callers must not touch Bytes after Close returns.
package mmap
