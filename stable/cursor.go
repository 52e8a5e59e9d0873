// SPDX-License-Identifier: ISC
// Copyright (c) 2022-2023 Slide Computer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package stable

import (
	"github.com/slide-computer/slided/fault"
)

// Writer - a forward only writer into a region
//
// grows the region as it writes and keeps the offset and the capacity
type Writer struct {
	region Region
	offset uint64
}

// NewWriter - create a writer positioned at offset
func NewWriter(region Region, offset uint64) *Writer {
	return &Writer{
		region: region,
		offset: offset,
	}
}

// Write - append bytes at the current offset, growing to fit
//
// the only error condition is a region that cannot be extended; a
// failed grow leaves nothing written
func (w *Writer) Write(p []byte) (int, error) {
	end := w.offset + uint64(len(p))
	capacity := w.region.Size() * PageSize
	if end > capacity {
		needed := end / PageSize
		if 0 != end%PageSize {
			needed += 1
		}
		_, err := w.region.Grow(needed - w.region.Size())
		if nil != err {
			return 0, err
		}
	}
	err := w.region.WriteAt(p, w.offset)
	if nil != err {
		return 0, err
	}
	w.offset = end
	return len(p), nil
}

// Offset - the offset of the next write
func (w *Writer) Offset() uint64 {
	return w.offset
}

// Reader - a forward only reader over a region
type Reader struct {
	region Region
	offset uint64
}

// NewReader - create a reader positioned at offset
func NewReader(region Region, offset uint64) *Reader {
	return &Reader{
		region: region,
		offset: offset,
	}
}

// Read - fill p from the current offset
//
// a request past the capacity reads only the in bounds portion and
// returns the produced byte count; a request entirely past the end is
// an out of bounds error, not a silent zero fill
func (r *Reader) Read(p []byte) (int, error) {
	capacity := r.region.Size() * PageSize
	if r.offset >= capacity {
		return 0, fault.ErrOutOfBounds
	}
	n := uint64(len(p))
	if r.offset+n > capacity {
		n = capacity - r.offset
	}
	err := r.region.ReadAt(p[:n], r.offset)
	if nil != err {
		return 0, err
	}
	r.offset += n
	return int(n), nil
}

// Offset - the offset of the next read
func (r *Reader) Offset() uint64 {
	return r.offset
}
