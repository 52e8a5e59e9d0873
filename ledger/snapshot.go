// SPDX-License-Identifier: ISC
// Copyright (c) 2022-2023 Slide Computer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger

import (
	"strconv"

	"github.com/fxamacker/cbor/v2"

	"github.com/slide-computer/slided/account"
	"github.com/slide-computer/slided/fault"
	"github.com/slide-computer/slided/merkle"
	"github.com/slide-computer/slided/stable"
	"github.com/slide-computer/slided/storage"
	"github.com/slide-computer/slided/transaction"
)

// snapshot database keys
var (
	snapshotKey = []byte("ledger")
	flushedKey  = []byte("flushed")
)

// the saved form of one token
type tokenSnapshot struct {
	Owner      account.Identity   `cbor:"owner"`
	Subaccount []byte             `cbor:"subaccount,omitempty"`
	TxId       uint64             `cbor:"tx_id"`
	Approved   []account.Identity `cbor:"approved,omitempty"`
}

// the saved form of the whole live state
//
// the paged out history is not part of the snapshot, it already lives
// in the stable region
type snapshot struct {
	Name         string                       `cbor:"name"`
	Symbol       string                       `cbor:"symbol"`
	Metadata     map[string]transaction.Value `cbor:"metadata,omitempty"`
	Tokens       map[uint64]tokenSnapshot     `cbor:"tokens"`
	Custodians   []account.Identity           `cbor:"custodians"`
	CustodiansTx uint64                       `cbor:"custodians_tx"`
	Flushed      uint64                       `cbor:"flushed"`
	OpenEvents   []transaction.Event          `cbor:"open_events"`
	OpenEntries  []transaction.HistoryEntry   `cbor:"open_entries"`
}

// Snapshot - persist the live state to the snapshot store
//
// called at shutdown; the registry restarts from this plus the stable
// region
func (l *Ledger) Snapshot() error {
	l.RLock()
	defer l.RUnlock()

	if !l.initialised {
		return nil
	}

	s := snapshot{
		Name:         l.name,
		Symbol:       l.symbol,
		Metadata:     l.metadata,
		Tokens:       make(map[uint64]tokenSnapshot, len(l.tokens)),
		Custodians:   make([]account.Identity, 0, len(l.custodians)),
		CustodiansTx: l.custodiansTx,
		Flushed:      l.store.Flushed(),
	}
	for tokenId, token := range l.tokens {
		saved := tokenSnapshot{
			Owner:    token.account.Owner,
			TxId:     token.txId,
			Approved: make([]account.Identity, 0, len(token.approved)),
		}
		if nil != token.account.Subaccount {
			saved.Subaccount = token.account.Subaccount[:]
		}
		for _, id := range token.approved {
			saved.Approved = append(saved.Approved, id)
		}
		s.Tokens[tokenId] = saved
	}
	for _, id := range l.custodians {
		s.Custodians = append(s.Custodians, id)
	}
	s.OpenEvents, s.OpenEntries = l.store.Pending()

	blob, err := cborEncMode.Marshal(s)
	if nil != err {
		return err
	}
	storage.Pool.Snapshots.Put(snapshotKey, blob)
	storage.Pool.Metadata.PutN(flushedKey, s.Flushed)
	l.log.Infof("snapshot saved: %d tokens, %d open events", len(s.Tokens), len(s.OpenEvents))
	return nil
}

// Restore - rebuild the live state from the snapshot store
//
// returns false when no snapshot exists.  When the stable region holds
// more flushed history than the snapshot recorded, the shutdown never
// completed; the durable records win and the index is rebuilt from
// them
func (l *Ledger) Restore() (bool, error) {
	l.Lock()
	defer l.Unlock()

	blob := storage.Pool.Snapshots.Get(snapshotKey)
	if nil == blob {
		return false, nil
	}

	s := snapshot{}
	err := cbor.Unmarshal(blob, &s)
	if nil != err {
		return false, err
	}

	l.name = s.Name
	l.symbol = s.Symbol
	l.metadata = s.Metadata
	if nil == l.metadata {
		l.metadata = make(map[string]transaction.Value)
	}
	l.custodians = make(map[string]account.Identity, len(s.Custodians))
	for _, id := range s.Custodians {
		l.custodians[string(id)] = id
	}
	l.custodiansTx = s.CustodiansTx

	l.tokens = make(map[uint64]*tokenState, len(s.Tokens))
	for tokenId, saved := range s.Tokens {
		token := &tokenState{
			txId:     saved.TxId,
			approved: make(map[string]account.Identity, len(saved.Approved)),
		}
		var subaccount *account.Subaccount
		if nil != saved.Subaccount {
			if account.SubaccountLength != len(saved.Subaccount) {
				return false, fault.ErrInvalidSubaccount
			}
			sub := account.Subaccount{}
			copy(sub[:], saved.Subaccount)
			subaccount = &sub
		}
		token.account = account.NewAccount(saved.Owner, subaccount)
		for _, id := range saved.Approved {
			token.approved[string(id)] = id
		}
		l.tokens[tokenId] = token
	}

	// the separately stored flushed counter cross checks the blob
	flushed := s.Flushed
	metaFlushed, ok := storage.Pool.Metadata.GetN(flushedKey)
	if ok && metaFlushed != flushed {
		l.log.Warnf("snapshot flushed counter mismatch: %d != %d, reindexing", metaFlushed, flushed)
		return true, l.reindex()
	}

	// the durable region may be ahead of the snapshot
	durable := l.scanDurable()
	if durable > flushed {
		l.log.Warnf("stable region ahead of snapshot: %d > %d, reindexing", durable, flushed)
		return true, l.reindex()
	}

	err = l.store.Restore(flushed, s.OpenEvents, s.OpenEntries)
	if nil != err {
		return false, err
	}

	l.rebuildCertification()
	l.initialised = true
	l.log.Infof("restored: %d tokens, %d custodians, %d transactions", len(l.tokens), len(l.custodians), l.store.TxTotal())
	return true, nil
}

// Reindex - rebuild token ownership from the durable records alone
//
// used when no usable snapshot exists.  Approval sets and the
// custodian set are not part of the durable format and come back
// empty; the custodian chain pointer is recovered from the sentinel
// records
func (l *Ledger) Reindex() error {
	l.Lock()
	defer l.Unlock()
	return l.reindex()
}

// caller holds the write lock
func (l *Ledger) reindex() error {
	flushed := l.scanDurable()

	l.tokens = make(map[uint64]*tokenState)
	for txId := uint64(0); txId < flushed; txId += 1 {
		record, err := l.readRecord(txId)
		if nil != err {
			return err
		}
		if record.IsZero() {
			continue
		}
		entry, err := record.Unpack()
		if nil != err {
			return err
		}
		if transaction.CustodianTokenId == entry.TokenId {
			l.custodiansTx = txId
			continue
		}
		token, ok := l.tokens[entry.TokenId]
		if !ok {
			token = &tokenState{
				approved: make(map[string]account.Identity),
			}
			l.tokens[entry.TokenId] = token
		}
		token.account = entry.Account
		token.txId = txId
	}

	err := l.store.Restore(flushed, nil, nil)
	if nil != err {
		return err
	}

	l.rebuildCertification()
	l.initialised = true
	l.log.Infof("reindexed: %d tokens from %d durable records", len(l.tokens), flushed)
	return nil
}

// DurableRecords - count of history records already flushed to the
// region, rounded down to a whole block
//
// a non zero count on a registry with no snapshot means the region
// holds live history and must be reindexed, never bootstrapped over
func (l *Ledger) DurableRecords() uint64 {
	l.RLock()
	defer l.RUnlock()
	return l.scanDurable()
}

// count the durable records, rounded down to a whole block
//
// blocks are only ever flushed whole, so the count of leading non zero
// records rounds down to the last complete block boundary
func (l *Ledger) scanDurable() uint64 {
	blockSize := l.store.BlockSize()
	count := uint64(0)
	for {
		record, err := l.readRecord(count)
		if nil != err || record.IsZero() {
			break
		}
		count += 1
	}
	return count - count%blockSize
}

// read one fixed record straight from the region
func (l *Ledger) readRecord(txId uint64) (transaction.Packed, error) {
	reader := stable.NewReader(l.region, txId*transaction.HistoryEntryBytes)
	record := make(transaction.Packed, transaction.HistoryEntryBytes)
	n, err := reader.Read(record)
	if nil != err {
		return nil, err
	}
	return record[:n], nil
}

// recompute every certification key from the restored state; caller
// holds the write lock
func (l *Ledger) rebuildCertification() {
	l.tree = merkle.New()
	l.tree.Update("/name", contentDigest(l.name))
	l.tree.Update("/symbol", contentDigest(l.symbol))
	l.tree.Update("/tx_total", contentDigest(l.store.TxTotal()))
	for tokenId, token := range l.tokens {
		l.certifyToken(tokenId, token)
	}
	l.tree.Update("/total_supply", contentDigest(l.totalSupply()))

	// digest every flushed block from its durable bytes
	blockSize := l.store.BlockSize()
	blockBytes := blockSize * transaction.HistoryEntryBytes
	for blockId := uint64(0); blockId < l.store.Flushed()/blockSize; blockId += 1 {
		reader := stable.NewReader(l.region, blockId*blockBytes)
		buffer := make([]byte, blockBytes)
		n, err := reader.Read(buffer)
		if nil != err || uint64(n) != blockBytes {
			l.log.Criticalf("block %d unreadable during restore", blockId)
			continue
		}
		l.tree.Update("/history/"+strconv.FormatUint(blockId, 10), merkle.NewDigest(buffer))
	}
	l.certifyRoot()
}
