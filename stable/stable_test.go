// SPDX-License-Identifier: ISC
// Copyright (c) 2022-2023 Slide Computer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package stable_test

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slide-computer/slided/fault"
	"github.com/slide-computer/slided/stable"
)

func TestWriterGrowsOnDemand(t *testing.T) {
	region := stable.NewMemoryRegion()
	w := stable.NewWriter(region, 0)

	n, err := w.Write([]byte("hello"))
	if nil != err {
		t.Fatalf("write error: %s", err)
	}
	assert.Equal(t, 5, n, "wrong write length")
	assert.Equal(t, uint64(1), region.Size(), "one page expected")

	// force a write spanning the first page boundary
	big := make([]byte, stable.PageSize)
	_, err = w.Write(big)
	if nil != err {
		t.Fatalf("write error: %s", err)
	}
	assert.Equal(t, uint64(2), region.Size(), "two pages expected")
	assert.Equal(t, uint64(5+stable.PageSize), w.Offset(), "wrong offset")
}

func TestReaderPartialAndOutOfBounds(t *testing.T) {
	region := stable.NewMemoryRegion()
	w := stable.NewWriter(region, 0)
	payload := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	_, err := w.Write(payload)
	if nil != err {
		t.Fatalf("write error: %s", err)
	}

	// a read crossing the capacity yields only the in bounds portion
	r := stable.NewReader(region, stable.PageSize-4)
	buffer := make([]byte, 16)
	n, err := r.Read(buffer)
	if nil != err {
		t.Fatalf("read error: %s", err)
	}
	assert.Equal(t, 4, n, "wrong clipped length")

	// entirely past the end is an error
	_, err = r.Read(buffer)
	assert.Equal(t, fault.ErrOutOfBounds, err, "expected out of bounds")
}

func TestReadBackWritten(t *testing.T) {
	region := stable.NewMemoryRegion()
	payload := []byte("the quick brown fox")

	w := stable.NewWriter(region, 100)
	_, err := w.Write(payload)
	if nil != err {
		t.Fatalf("write error: %s", err)
	}

	r := stable.NewReader(region, 100)
	buffer := make([]byte, len(payload))
	n, err := r.Read(buffer)
	if nil != err {
		t.Fatalf("read error: %s", err)
	}
	if n != len(payload) || !bytes.Equal(buffer, payload) {
		t.Fatalf("read back: %x  expected: %x", buffer[:n], payload)
	}
}

func TestFileRegionPersistence(t *testing.T) {
	dir, err := ioutil.TempDir("", "stable-test")
	if nil != err {
		t.Fatalf("tempdir error: %s", err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "region.dat")

	region, err := stable.OpenFile(path)
	if nil != err {
		t.Fatalf("open error: %s", err)
	}
	payload := []byte("survives restart")
	w := stable.NewWriter(region, 0)
	_, err = w.Write(payload)
	if nil != err {
		t.Fatalf("write error: %s", err)
	}
	if err := region.Sync(); nil != err {
		t.Fatalf("sync error: %s", err)
	}
	if err := region.Close(); nil != err {
		t.Fatalf("close error: %s", err)
	}

	// reopen and verify capacity and contents
	region, err = stable.OpenFile(path)
	if nil != err {
		t.Fatalf("reopen error: %s", err)
	}
	defer region.Close()
	assert.Equal(t, uint64(1), region.Size(), "one page expected after reopen")

	buffer := make([]byte, len(payload))
	r := stable.NewReader(region, 0)
	_, err = r.Read(buffer)
	if nil != err {
		t.Fatalf("read error: %s", err)
	}
	assert.Equal(t, payload, buffer, "content lost across reopen")
}
