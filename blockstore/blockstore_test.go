// SPDX-License-Identifier: ISC
// Copyright (c) 2022-2023 Slide Computer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockstore_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bitmark-inc/logger"

	"github.com/slide-computer/slided/account"
	"github.com/slide-computer/slided/blockstore"
	"github.com/slide-computer/slided/fault"
	"github.com/slide-computer/slided/merkle"
	"github.com/slide-computer/slided/stable"
	"github.com/slide-computer/slided/transaction"
)

const testBlockSize = 4

var (
	minter = account.NewAccount(account.Identity{0x00, 0x00, 0x00, 0x00, 0x00, 0x30, 0x01, 0x01}, nil)
	alice  = account.NewAccount(account.Identity{0xa1, 0x1c, 0xe0}, nil)
	bob    = account.NewAccount(account.Identity{0xb0, 0xb0}, nil)
)

func TestMain(m *testing.M) {
	curPath, err := os.Getwd()
	if nil != err {
		panic(err)
	}
	testDir := filepath.Join(curPath, "testing")
	_ = os.MkdirAll(testDir, 0700)
	err = logger.Initialise(logger.Configuration{
		Directory: testDir,
		File:      "testing.log",
		Size:      1048576,
		Count:     10,
		Console:   false,
		Levels: map[string]string{
			logger.DefaultTag: "critical",
		},
	})
	if nil != err {
		panic(err)
	}
	rc := m.Run()
	logger.Finalise()
	_ = os.RemoveAll(testDir)
	os.Exit(rc)
}

func newTestStore(t *testing.T) (*blockstore.Store, stable.Region) {
	region := stable.NewMemoryRegion()
	store, err := blockstore.New(region, testBlockSize, minter)
	if nil != err {
		t.Fatalf("new store error: %s", err)
	}
	return store, region
}

func ownershipTx(tokenId uint64, owner account.Account, timestamp uint64, fromOffset uint64) (*transaction.Event, *transaction.HistoryEntry) {
	entry := &transaction.HistoryEntry{
		TokenId:    tokenId,
		Account:    owner,
		Time:       timestamp,
		FromOffset: fromOffset,
	}
	return entry.Event(minter), entry
}

func TestNewRejectsBadBlockSize(t *testing.T) {
	region := stable.NewMemoryRegion()
	_, err := blockstore.New(region, 0, minter)
	assert.Equal(t, fault.ErrBlockSizeOutOfRange, err, "zero block size")
	_, err = blockstore.New(region, blockstore.MaximumBlockSize+1, minter)
	assert.Equal(t, fault.ErrBlockSizeOutOfRange, err, "oversized block size")
}

func TestWriteTxAssignsSequentialIds(t *testing.T) {
	store, _ := newTestStore(t)

	for i := uint64(0); i < testBlockSize-1; i += 1 {
		event, entry := ownershipTx(i, alice, 100+i, 0)
		txId, flushed, err := store.WriteTx(event, entry)
		if nil != err {
			t.Fatalf("write error: %s", err)
		}
		assert.Equal(t, i, txId, "transaction id")
		assert.Nil(t, flushed, "no flush before the block is full")
	}
	assert.Equal(t, uint64(testBlockSize-1), store.TxTotal(), "transaction total")
	assert.Equal(t, uint64(0), store.Flushed(), "nothing durable yet")
	assert.Equal(t, uint64(1), store.BlockCount(), "only the open block")
}

func TestFlushAtBlockBoundary(t *testing.T) {
	store, _ := newTestStore(t)

	expected := make([]byte, 0, testBlockSize*transaction.HistoryEntryBytes)
	var flushed *blockstore.FlushedBlock
	for i := uint64(0); i < testBlockSize; i += 1 {
		event, entry := ownershipTx(i+1, alice, 100+i, 0)
		packed, err := entry.Pack()
		if nil != err {
			t.Fatalf("pack error: %s", err)
		}
		expected = append(expected, packed...)
		_, flushed, err = store.WriteTx(event, entry)
		if nil != err {
			t.Fatalf("write error: %s", err)
		}
	}

	if nil == flushed {
		t.Fatal("block must flush when full")
	}
	assert.Equal(t, uint64(0), flushed.BlockId, "first flushed block id")
	assert.Equal(t, merkle.NewDigest(expected), flushed.Digest, "block digest")
	assert.Equal(t, uint64(testBlockSize), store.Flushed(), "records durable")
	assert.Equal(t, uint64(testBlockSize), store.TxTotal(), "transaction total")
	assert.Equal(t, uint64(2), store.BlockCount(), "flushed plus open")
}

// a fresh store over the same region, with the flushed blocks adopted
// but no cache and no open block
func restartStore(t *testing.T, region stable.Region, flushed uint64) *blockstore.Store {
	restarted, err := blockstore.New(region, testBlockSize, minter)
	if nil != err {
		t.Fatalf("new store error: %s", err)
	}
	err = restarted.Restore(flushed, nil, nil)
	if nil != err {
		t.Fatalf("restore error: %s", err)
	}
	return restarted
}

func TestReadTxOpenAndDurable(t *testing.T) {
	store, region := newTestStore(t)

	// fill one block so those events only survive as durable records
	for i := uint64(0); i < testBlockSize; i += 1 {
		event, entry := ownershipTx(i+1, alice, 100+i, 0)
		_, _, err := store.WriteTx(event, entry)
		if nil != err {
			t.Fatalf("write error: %s", err)
		}
	}
	// one more lands in the fresh open block
	event, entry := ownershipTx(9, bob, 200, 3)
	openId, _, err := store.WriteTx(event, entry)
	if nil != err {
		t.Fatalf("write error: %s", err)
	}

	open, err := store.ReadTx(openId)
	if nil != err {
		t.Fatalf("read error: %s", err)
	}
	assert.Equal(t, event, open, "open block event comes back verbatim")

	missing, err := store.ReadTx(store.TxTotal())
	if nil != err {
		t.Fatalf("read error: %s", err)
	}
	assert.Nil(t, missing, "unknown id yields nil")

	// a restarted store has no cache: the read falls back to the
	// durable record reconstruction
	restarted := restartStore(t, region, testBlockSize)
	durable, err := restarted.ReadTx(0)
	if nil != err {
		t.Fatalf("read error: %s", err)
	}
	if nil == durable {
		t.Fatal("durable event missing")
	}
	assert.Equal(t, transaction.OpMint, durable.Operation, "reconstructed operation")
	assert.Equal(t, uint64(100), durable.Time, "reconstructed time")
	if nil == durable.Details["token_id"].Nat || 1 != *durable.Details["token_id"].Nat {
		t.Fatal("missing token_id detail")
	}
}

func TestReadTxNilProjectionPagesOutAsNothing(t *testing.T) {
	store, region := newTestStore(t)

	approval := &transaction.Event{
		Caller:    alice.Owner,
		Operation: transaction.OpApprove,
		Time:      100,
		Details: map[string]transaction.Value{
			"token_id": transaction.Nat(1),
		},
	}
	approvalId, _, err := store.WriteTx(approval, nil)
	if nil != err {
		t.Fatalf("write error: %s", err)
	}

	// still in the open block: verbatim
	got, err := store.ReadTx(approvalId)
	if nil != err {
		t.Fatalf("read error: %s", err)
	}
	assert.Equal(t, approval, got, "open block event")

	for i := uint64(1); i < testBlockSize; i += 1 {
		event, entry := ownershipTx(i, alice, 100+i, 0)
		_, _, err = store.WriteTx(event, entry)
		if nil != err {
			t.Fatalf("write error: %s", err)
		}
	}

	// flushed but still cached: verbatim
	got, err = store.ReadTx(approvalId)
	if nil != err {
		t.Fatalf("read error: %s", err)
	}
	assert.Equal(t, approval, got, "cached block event")

	// after a restart only the durable records remain and the approval
	// paged out as nothing
	restarted := restartStore(t, region, testBlockSize)
	got, err = restarted.ReadTx(approvalId)
	if nil != err {
		t.Fatalf("read error: %s", err)
	}
	assert.Nil(t, got, "nil projection must page out as nothing")
}

func TestReadTxServesCachedBlockVerbatim(t *testing.T) {
	store, region := newTestStore(t)

	// a delegate transfer whose durable record alone cannot name the
	// delegate: the reconstruction degrades to a plain transfer
	delegated := &transaction.Event{
		Caller:    bob.Owner,
		Operation: transaction.OpTransferFrom,
		Time:      300,
		Details: map[string]transaction.Value{
			"token_id": transaction.Nat(5),
			"from_tx":  transaction.Nat(1),
		},
	}
	entry := &transaction.HistoryEntry{
		TokenId:    5,
		Account:    bob,
		Time:       300,
		FromOffset: 1,
	}
	delegatedId, _, err := store.WriteTx(delegated, entry)
	if nil != err {
		t.Fatalf("write error: %s", err)
	}
	for i := uint64(1); i < testBlockSize; i += 1 {
		event, fill := ownershipTx(i, alice, 100+i, 0)
		_, _, err = store.WriteTx(event, fill)
		if nil != err {
			t.Fatalf("write error: %s", err)
		}
	}

	cached, err := store.ReadTx(delegatedId)
	if nil != err {
		t.Fatalf("read error: %s", err)
	}
	assert.Equal(t, delegated, cached, "flushed event still verbatim from cache")

	restarted := restartStore(t, region, testBlockSize)
	rebuilt, err := restarted.ReadTx(delegatedId)
	if nil != err {
		t.Fatalf("read error: %s", err)
	}
	if nil == rebuilt {
		t.Fatal("durable event missing")
	}
	assert.Equal(t, transaction.OpTransfer, rebuilt.Operation, "reconstructed operation")
}

func TestReadBlock(t *testing.T) {
	store, region := newTestStore(t)

	events := make([]transaction.Event, 0, testBlockSize+1)
	for i := uint64(0); i < testBlockSize+1; i += 1 {
		event, entry := ownershipTx(i+1, alice, 100+i, 0)
		events = append(events, *event)
		_, _, err := store.WriteTx(event, entry)
		if nil != err {
			t.Fatalf("write error: %s", err)
		}
	}

	// block 0 flushed but still cached
	cached, pointer, err := store.ReadBlock(0)
	if nil != err {
		t.Fatalf("read error: %s", err)
	}
	assert.Nil(t, pointer, "cached block must not be a pointer")
	assert.Equal(t, events[:testBlockSize], cached, "cached block events")

	// block 1 is the open block
	open, pointer, err := store.ReadBlock(1)
	if nil != err {
		t.Fatalf("read error: %s", err)
	}
	assert.Nil(t, pointer, "open block must not be a pointer")
	assert.Equal(t, events[testBlockSize:], open, "open block events")

	// block 2 does not exist yet
	none, pointer, err := store.ReadBlock(2)
	if nil != err {
		t.Fatalf("read error: %s", err)
	}
	assert.Nil(t, none, "absent block")
	assert.Nil(t, pointer, "absent block")

	// a fresh store over the same region has no cache: pointer
	restarted, err := blockstore.New(region, testBlockSize, minter)
	if nil != err {
		t.Fatalf("new store error: %s", err)
	}
	err = restarted.Restore(testBlockSize, nil, nil)
	if nil != err {
		t.Fatalf("restore error: %s", err)
	}
	_, pointer, err = restarted.ReadBlock(0)
	if nil != err {
		t.Fatalf("read error: %s", err)
	}
	if nil == pointer {
		t.Fatal("non resident block must be a pointer")
	}
	assert.Equal(t, uint64(0), pointer.Offset, "pointer offset")
}

func TestReadEntry(t *testing.T) {
	store, _ := newTestStore(t)

	entries := make([]transaction.HistoryEntry, 0, testBlockSize)
	for i := uint64(0); i < testBlockSize; i += 1 {
		event, entry := ownershipTx(i+1, alice, 100+i, 0)
		entries = append(entries, *entry)
		_, _, err := store.WriteTx(event, entry)
		if nil != err {
			t.Fatalf("write error: %s", err)
		}
	}

	durable, err := store.ReadEntry(2)
	if nil != err {
		t.Fatalf("read error: %s", err)
	}
	assert.Equal(t, entries[2], *durable, "durable entry")

	_, err = store.ReadEntry(testBlockSize)
	assert.Equal(t, fault.ErrOutOfBounds, err, "open block ids are not durable")
}

func TestRestoreValidation(t *testing.T) {
	store, _ := newTestStore(t)

	err := store.Restore(testBlockSize-1, nil, nil)
	assert.Equal(t, fault.ErrBlockSizeOutOfRange, err, "flushed count off a block boundary")

	event, entry := ownershipTx(1, alice, 100, 0)
	full := make([]transaction.Event, testBlockSize)
	fullEntries := make([]transaction.HistoryEntry, testBlockSize)
	for i := range full {
		full[i] = *event
		fullEntries[i] = *entry
	}
	err = store.Restore(0, full, fullEntries)
	assert.Equal(t, fault.ErrBlockSizeOutOfRange, err, "restored open block may not be full")

	err = store.Restore(0, full[:1], nil)
	assert.Equal(t, fault.ErrBlockSizeOutOfRange, err, "mismatched open block slices")

	err = store.Restore(testBlockSize, nil, nil)
	assert.Equal(t, fault.ErrOutOfBounds, err, "flushed count past the region")
}

func TestRestoreRoundTrip(t *testing.T) {
	store, region := newTestStore(t)

	for i := uint64(0); i < testBlockSize; i += 1 {
		event, entry := ownershipTx(i+1, alice, 100+i, 0)
		_, _, err := store.WriteTx(event, entry)
		if nil != err {
			t.Fatalf("write error: %s", err)
		}
	}
	openEvent, openEntry := ownershipTx(9, bob, 200, 2)
	_, _, err := store.WriteTx(openEvent, openEntry)
	if nil != err {
		t.Fatalf("write error: %s", err)
	}

	events, entries := store.Pending()
	restarted, err := blockstore.New(region, testBlockSize, minter)
	if nil != err {
		t.Fatalf("new store error: %s", err)
	}
	err = restarted.Restore(store.Flushed(), events, entries)
	if nil != err {
		t.Fatalf("restore error: %s", err)
	}

	assert.Equal(t, store.TxTotal(), restarted.TxTotal(), "transaction total")
	got, err := restarted.ReadTx(testBlockSize)
	if nil != err {
		t.Fatalf("read error: %s", err)
	}
	assert.Equal(t, openEvent, got, "open block event survives restart")
}
