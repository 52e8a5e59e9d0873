// SPDX-License-Identifier: ISC
// Copyright (c) 2022-2023 Slide Computer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package blockstore - append only transaction log with block paging
//
// Committed events accumulate in one open block.  When the open block
// reaches the configured size its history records are packed and
// appended to the durable region, the block digest is reported to the
// caller for certification and a fresh open block starts.  Block
// boundaries are uniform so a transaction id maps to its block by
// integer division.
package blockstore

import (
	"strconv"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"

	"github.com/bitmark-inc/logger"

	"github.com/slide-computer/slided/account"
	"github.com/slide-computer/slided/fault"
	"github.com/slide-computer/slided/merkle"
	"github.com/slide-computer/slided/stable"
	"github.com/slide-computer/slided/transaction"
)

// DefaultBlockSize - events per block unless configured otherwise
const DefaultBlockSize = 512

// MaximumBlockSize - upper bound on the configurable block size
const MaximumBlockSize = 100000

// cache of recently flushed blocks, so a fetch right after paging out
// does not need the region
const (
	cacheExpiry  = 5 * time.Minute
	cacheCleanup = 10 * time.Minute
)

// FlushedBlock - result of paging an open block out to the region
type FlushedBlock struct {
	BlockId uint64
	Digest  merkle.Digest
}

// Pointer - locator for a block that is no longer resident
type Pointer struct {
	Offset uint64 `cbor:"offset" json:"offset"`
}

type pendingTx struct {
	event *transaction.Event
	entry *transaction.HistoryEntry
}

// Store - the transaction log
type Store struct {
	sync.RWMutex

	log       *logger.L
	region    stable.Region
	blockSize uint64
	minter    account.Account

	pending []pendingTx // the open block
	flushed uint64      // records already in the region

	committed *cache.Cache // recently flushed blocks
}

// New - create a store over a region
//
// the region is assumed empty or restored separately; use Restore to
// adopt records already present
func New(region stable.Region, blockSize uint64, minter account.Account) (*Store, error) {
	if blockSize < 1 || blockSize > MaximumBlockSize {
		return nil, fault.ErrBlockSizeOutOfRange
	}
	return &Store{
		log:       logger.New("blockstore"),
		region:    region,
		blockSize: blockSize,
		minter:    minter,
		pending:   make([]pendingTx, 0, blockSize),
		committed: cache.New(cacheExpiry, cacheCleanup),
	}, nil
}

// WriteTx - append one committed operation to the open block
//
// the entry is the durable projection of the event and may be nil for
// operations that change no ownership and page out as nothing.  When
// the append fills the open block the block is flushed to the region
// and its digest returned; a flush failure removes the failed append
// again so the whole operation aborts with nothing committed
func (store *Store) WriteTx(event *transaction.Event, entry *transaction.HistoryEntry) (uint64, *FlushedBlock, error) {
	store.Lock()
	defer store.Unlock()

	txId := store.flushed + uint64(len(store.pending))
	store.pending = append(store.pending, pendingTx{
		event: event,
		entry: entry,
	})

	if uint64(len(store.pending)) < store.blockSize {
		return txId, nil, nil
	}

	flushed, err := store.flush()
	if nil != err {
		store.pending = store.pending[:len(store.pending)-1]
		store.log.Errorf("flush failed: %s", err)
		return 0, nil, err
	}
	return txId, flushed, nil
}

// page the full open block out to the region
func (store *Store) flush() (*FlushedBlock, error) {
	buffer := make([]byte, 0, store.blockSize*transaction.HistoryEntryBytes)
	events := make([]transaction.Event, 0, store.blockSize)
	for _, tx := range store.pending {
		entry := tx.entry
		if nil == entry {
			entry = &transaction.HistoryEntry{}
		}
		packed, err := entry.Pack()
		if nil != err {
			return nil, err
		}
		buffer = append(buffer, packed...)
		events = append(events, *tx.event)
	}

	writer := stable.NewWriter(store.region, store.flushed*transaction.HistoryEntryBytes)
	_, err := writer.Write(buffer)
	if nil != err {
		return nil, fault.ErrStableWriteFailed
	}
	err = store.region.Sync()
	if nil != err {
		return nil, fault.ErrStableWriteFailed
	}

	blockId := store.flushed / store.blockSize
	store.committed.Set(blockKey(blockId), events, cache.DefaultExpiration)
	store.flushed += store.blockSize
	store.pending = make([]pendingTx, 0, store.blockSize)
	store.log.Debugf("flushed block: %d", blockId)

	return &FlushedBlock{
		BlockId: blockId,
		Digest:  merkle.NewDigest(buffer),
	}, nil
}

// ReadTx - fetch one committed event by transaction id
//
// open block and recently flushed events come back verbatim; older
// events are reconstructed from their durable records.  An unknown id
// or an id whose record paged out as nothing and is no longer cached
// yields nil without error
func (store *Store) ReadTx(txId uint64) (*transaction.Event, error) {
	store.RLock()
	defer store.RUnlock()

	if txId >= store.flushed+uint64(len(store.pending)) {
		return nil, nil
	}
	if txId >= store.flushed {
		return store.pending[txId-store.flushed].event, nil
	}
	if cached, ok := store.committed.Get(blockKey(txId / store.blockSize)); ok {
		event := cached.([]transaction.Event)[txId%store.blockSize]
		return &event, nil
	}

	packed, err := store.readRecord(txId)
	if nil != err {
		return nil, err
	}
	if packed.IsZero() {
		return nil, nil
	}
	entry, err := packed.Unpack()
	if nil != err {
		return nil, err
	}
	return entry.Event(store.minter), nil
}

// ReadBlock - fetch a block of events by block id
//
// the open block and recently flushed blocks are returned as events; a
// paged out block that is no longer resident is answered with a
// pointer into the region instead.  A block id past the open block is
// absent and yields neither
func (store *Store) ReadBlock(blockId uint64) ([]transaction.Event, *Pointer, error) {
	store.RLock()
	defer store.RUnlock()

	openBlockId := store.flushed / store.blockSize
	if blockId > openBlockId {
		return nil, nil, nil
	}
	if blockId == openBlockId {
		events := make([]transaction.Event, 0, len(store.pending))
		for _, tx := range store.pending {
			events = append(events, *tx.event)
		}
		return events, nil, nil
	}
	if cached, ok := store.committed.Get(blockKey(blockId)); ok {
		return cached.([]transaction.Event), nil, nil
	}
	return nil, &Pointer{
		Offset: blockId * store.blockSize * transaction.HistoryEntryBytes,
	}, nil
}

// ReadEntry - fetch one durable record by transaction id
//
// only paged out records are durable; an id still in the open block or
// past the log yields out of bounds.  A record that paged out as
// nothing yields nil without error
func (store *Store) ReadEntry(txId uint64) (*transaction.HistoryEntry, error) {
	store.RLock()
	defer store.RUnlock()

	if txId >= store.flushed {
		return nil, fault.ErrOutOfBounds
	}
	packed, err := store.readRecord(txId)
	if nil != err {
		return nil, err
	}
	if packed.IsZero() {
		return nil, nil
	}
	return packed.Unpack()
}

// read one fixed length record out of the region; caller holds a lock
func (store *Store) readRecord(txId uint64) (transaction.Packed, error) {
	reader := stable.NewReader(store.region, txId*transaction.HistoryEntryBytes)
	record := make(transaction.Packed, transaction.HistoryEntryBytes)
	n, err := reader.Read(record)
	if nil != err {
		return nil, err
	}
	if transaction.HistoryEntryBytes != n {
		return nil, fault.ErrNotHistoryRecord
	}
	return record, nil
}

// TxTotal - committed transaction count, flushed plus open
func (store *Store) TxTotal() uint64 {
	store.RLock()
	defer store.RUnlock()
	return store.flushed + uint64(len(store.pending))
}

// Flushed - count of records already paged out to the region
func (store *Store) Flushed() uint64 {
	store.RLock()
	defer store.RUnlock()
	return store.flushed
}

// BlockSize - events per block
func (store *Store) BlockSize() uint64 {
	return store.blockSize
}

// BlockCount - number of blocks including the open one
func (store *Store) BlockCount() uint64 {
	store.RLock()
	defer store.RUnlock()
	return store.flushed/store.blockSize + 1
}

// Pending - snapshot of the open block for persisting across restarts
func (store *Store) Pending() ([]transaction.Event, []transaction.HistoryEntry) {
	store.RLock()
	defer store.RUnlock()

	events := make([]transaction.Event, 0, len(store.pending))
	entries := make([]transaction.HistoryEntry, 0, len(store.pending))
	for _, tx := range store.pending {
		events = append(events, *tx.event)
		entry := tx.entry
		if nil == entry {
			entry = &transaction.HistoryEntry{}
		}
		entries = append(entries, *entry)
	}
	return events, entries
}

// Restore - adopt a flushed count and an open block saved earlier
//
// the flushed count must land on a block boundary and the open block
// must not already be full
func (store *Store) Restore(flushed uint64, events []transaction.Event, entries []transaction.HistoryEntry) error {
	store.Lock()
	defer store.Unlock()

	if 0 != flushed%store.blockSize {
		return fault.ErrBlockSizeOutOfRange
	}
	if len(events) != len(entries) || uint64(len(events)) >= store.blockSize {
		return fault.ErrBlockSizeOutOfRange
	}
	capacity := store.region.Size() * stable.PageSize
	if flushed*transaction.HistoryEntryBytes > capacity {
		return fault.ErrOutOfBounds
	}

	store.flushed = flushed
	store.pending = make([]pendingTx, 0, store.blockSize)
	for i := range events {
		event := events[i]
		entry := entries[i]
		tx := pendingTx{event: &event}
		if !isZeroEntry(&entry) {
			tx.entry = &entry
		}
		store.pending = append(store.pending, tx)
	}
	store.log.Infof("restored: %d flushed, %d open", flushed, len(events))
	return nil
}

// a zero entry is the saved form of a nil projection
func isZeroEntry(entry *transaction.HistoryEntry) bool {
	return 0 == entry.TokenId &&
		0 == entry.Time &&
		0 == entry.FromOffset &&
		0 == len(entry.Account.Owner) &&
		nil == entry.Account.Subaccount
}

func blockKey(blockId uint64) string {
	return strconv.FormatUint(blockId, 10)
}
