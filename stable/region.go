// SPDX-License-Identifier: ISC
// Copyright (c) 2022-2023 Slide Computer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package stable - cursors over a flat durable memory region
//
// The region is byte addressable, grows in fixed size pages and
// survives process restarts.  The reader and writer are forward only
// cursors; the only positioning allowed is the initial offset.
package stable

import (
	"os"

	"github.com/slide-computer/slided/fault"
)

// PageSize - number of bytes in one page of the region
const PageSize = 65536

// Region - a growable flat persistent byte region
type Region interface {
	// Size - current capacity in pages
	Size() uint64

	// Grow - extend the region by added pages, returns the previous
	// page count
	Grow(pages uint64) (uint64, error)

	// ReadAt - fill p from the region starting at off; the caller
	// guarantees the range is within capacity
	ReadAt(p []byte, off uint64) error

	// WriteAt - store p into the region starting at off; the caller
	// guarantees the range is within capacity
	WriteAt(p []byte, off uint64) error

	// Sync - force written data onto the durable medium
	Sync() error
}

// FileRegion - a region backed by a single flat file
type FileRegion struct {
	file  *os.File
	pages uint64
}

// OpenFile - open or create the file backing a region
//
// an existing file keeps its content; a trailing partial page is
// counted as a full page so no stored byte is ever out of capacity
func OpenFile(path string) (*FileRegion, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if nil != err {
		return nil, err
	}
	info, err := file.Stat()
	if nil != err {
		file.Close()
		return nil, err
	}
	pages := uint64(info.Size()) / PageSize
	if 0 != uint64(info.Size())%PageSize {
		pages += 1
	}
	return &FileRegion{
		file:  file,
		pages: pages,
	}, nil
}

// Size - current capacity in pages
func (region *FileRegion) Size() uint64 {
	return region.pages
}

// Grow - extend the backing file by whole pages
func (region *FileRegion) Grow(pages uint64) (uint64, error) {
	previous := region.pages
	err := region.file.Truncate(int64((previous + pages) * PageSize))
	if nil != err {
		return 0, err
	}
	region.pages = previous + pages
	return previous, nil
}

// ReadAt - read bytes from the backing file
func (region *FileRegion) ReadAt(p []byte, off uint64) error {
	_, err := region.file.ReadAt(p, int64(off))
	return err
}

// WriteAt - write bytes to the backing file
func (region *FileRegion) WriteAt(p []byte, off uint64) error {
	_, err := region.file.WriteAt(p, int64(off))
	return err
}

// Sync - flush the backing file to disk
func (region *FileRegion) Sync() error {
	return region.file.Sync()
}

// Close - close the backing file
func (region *FileRegion) Close() error {
	return region.file.Close()
}

// MemoryRegion - a purely in memory region for testing
type MemoryRegion struct {
	data []byte
}

// NewMemoryRegion - create an empty in memory region
func NewMemoryRegion() *MemoryRegion {
	return &MemoryRegion{}
}

// Size - current capacity in pages
func (region *MemoryRegion) Size() uint64 {
	return uint64(len(region.data)) / PageSize
}

// Grow - extend the in memory buffer by whole pages
func (region *MemoryRegion) Grow(pages uint64) (uint64, error) {
	previous := region.Size()
	region.data = append(region.data, make([]byte, pages*PageSize)...)
	return previous, nil
}

// ReadAt - copy bytes out of the buffer
func (region *MemoryRegion) ReadAt(p []byte, off uint64) error {
	if off+uint64(len(p)) > uint64(len(region.data)) {
		return fault.ErrOutOfBounds
	}
	copy(p, region.data[off:])
	return nil
}

// WriteAt - copy bytes into the buffer
func (region *MemoryRegion) WriteAt(p []byte, off uint64) error {
	if off+uint64(len(p)) > uint64(len(region.data)) {
		return fault.ErrOutOfBounds
	}
	copy(region.data[off:], p)
	return nil
}

// Sync - nothing to do for memory
func (region *MemoryRegion) Sync() error {
	return nil
}
