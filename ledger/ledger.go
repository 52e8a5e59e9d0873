// SPDX-License-Identifier: ISC
// Copyright (c) 2022-2023 Slide Computer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package ledger - the token registry state machine
//
// One Ledger owns the live token map, per-token approval sets and the
// custodian set.  Every mutating operation validates against current
// state, commits exactly one event to the transaction log, updates the
// certification tree and finally announces the event on the message
// bus.  Validation failures are pure rejections; a durable flush
// failure aborts the whole operation with nothing committed.
//
// The ledger is a single logical writer.  The mutex only upholds that
// contract for dispatch layers that call from multiple goroutines.
package ledger

import (
	"strconv"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/bitmark-inc/logger"

	"github.com/slide-computer/slided/account"
	"github.com/slide-computer/slided/blockstore"
	"github.com/slide-computer/slided/fault"
	"github.com/slide-computer/slided/merkle"
	"github.com/slide-computer/slided/messagebus"
	"github.com/slide-computer/slided/stable"
	"github.com/slide-computer/slided/transaction"
)

// capacity limits fixed by the standard
const (
	maximumApprovals  = 256
	maximumCustodians = 256
)

// listing page size
const listPageSize = 100000

// Certifier - receives the new tree root after every commit
type Certifier func(root merkle.Digest)

// live per-token state
type tokenState struct {
	account  account.Account
	txId     uint64
	approved map[string]account.Identity
}

// Ledger - the registry state machine
type Ledger struct {
	sync.RWMutex

	log    *logger.L
	store  *blockstore.Store
	region stable.Region
	tree   *merkle.Tree

	registry account.Account // the minter account

	initialised  bool
	name         string
	symbol       string
	metadata     map[string]transaction.Value
	tokens       map[uint64]*tokenState
	custodians   map[string]account.Identity
	custodiansTx uint64

	certify Certifier
	now     func() uint64
}

// canonical encoder for certification content hashing
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if nil != err {
		panic("ledger: cbor encoder: " + err.Error())
	}
	cborEncMode = em
}

// New - create a ledger over a transaction log
//
// the region is the same one backing the store; it is read directly
// when certification digests or the index must be rebuilt.  A nil
// certifier drops roots, a nil clock uses wall time in nanoseconds
func New(store *blockstore.Store, region stable.Region, registry account.Account, certify Certifier, now func() uint64) *Ledger {
	if nil == now {
		now = func() uint64 {
			return uint64(time.Now().UnixNano())
		}
	}
	return &Ledger{
		log:        logger.New("ledger"),
		store:      store,
		region:     region,
		tree:       merkle.New(),
		registry:   registry,
		metadata:   make(map[string]transaction.Value),
		tokens:     make(map[uint64]*tokenState),
		custodians: make(map[string]account.Identity),
		certify:    certify,
		now:        now,
	}
}

// Init - bootstrap an empty registry
//
// the first event is the initial custodian adding itself; the add is
// authorized because the set is seeded before the event is written
func (l *Ledger) Init(name string, symbol string, custodian account.Identity) (uint64, error) {
	l.Lock()
	defer l.Unlock()

	if l.initialised {
		return 0, fault.ErrAlreadyInitialised
	}
	l.name = name
	l.symbol = symbol
	l.custodians[string(custodian)] = custodian
	l.initialised = true

	txId, err := l.setCustodian(custodian, custodian, true)
	if nil != err {
		l.initialised = false
		delete(l.custodians, string(custodian))
		return 0, err
	}

	l.tree.Update("/name", contentDigest(l.name))
	l.tree.Update("/symbol", contentDigest(l.symbol))
	l.tree.Update("/total_supply", contentDigest(uint64(0)))
	l.certifyRoot()

	l.log.Infof("initialised registry: %q (%s)", name, symbol)
	return txId, nil
}

// commit one event, surfacing a flush failure as fatal
//
// on success the caller must finish with certification updates and a
// call to announce; caller holds the write lock
func (l *Ledger) commit(event *transaction.Event, entry *transaction.HistoryEntry) (uint64, *blockstore.FlushedBlock, error) {
	txId, flushed, err := l.store.WriteTx(event, entry)
	if nil != err {
		l.log.Criticalf("commit failed: %s", err)
		return 0, nil, err
	}
	return txId, flushed, nil
}

// post-commit bookkeeping shared by every mutating operation
//
// caller holds the write lock and has already updated the cert keys
// specific to the operation
func (l *Ledger) finish(txId uint64, flushed *blockstore.FlushedBlock, event *transaction.Event) {
	if nil != flushed {
		l.tree.Update("/history/"+strconv.FormatUint(flushed.BlockId, 10), flushed.Digest)
	}
	l.tree.Update("/tx_total", contentDigest(l.store.TxTotal()))
	l.certifyRoot()
	messagebus.Notify(txId, event)
}

// hand the current root to the host certifier
func (l *Ledger) certifyRoot() {
	if nil != l.certify {
		l.certify(l.tree.RootHash())
	}
}

// the certified view of one token
type tokenView struct {
	Owner    string   `cbor:"owner"`
	TxId     uint64   `cbor:"tx_id"`
	Approved []string `cbor:"approved"`
}

// refresh the certification keys a token change touches; caller holds
// the write lock
func (l *Ledger) certifyToken(tokenId uint64, token *tokenState) {
	view := tokenView{
		Owner:    token.account.String(),
		TxId:     token.txId,
		Approved: approvedStrings(token.approved),
	}
	l.tree.Update("/token/"+strconv.FormatUint(tokenId, 10), contentDigest(view))
	l.tree.Update("/total_supply", contentDigest(l.totalSupply()))
}

// hash the canonical CBOR encoding of certified content
func contentDigest(content interface{}) merkle.Digest {
	data, err := cborEncMode.Marshal(content)
	if nil != err {
		logger.Panicf("ledger: content encode failed: %s", err)
	}
	return merkle.NewDigest(data)
}

// build the event skeleton common to the mutating operations
func (l *Ledger) newEvent(caller account.Identity, operation string, details map[string]transaction.Value) *transaction.Event {
	return &transaction.Event{
		Caller:    caller,
		Operation: operation,
		Time:      l.now(),
		Details:   details,
	}
}

// attach the optional memo and caller supplied creation time
//
// a creation time replaces the "time" detail, matching the recorded
// history format
func attachOptions(event *transaction.Event, memo []byte, createdAtTime *uint64) {
	if nil != memo {
		event.Details["memo"] = transaction.Blob(memo)
	}
	if nil != createdAtTime {
		event.Details["time"] = transaction.Nat(*createdAtTime)
	}
}

func (l *Ledger) isCustodian(caller account.Identity) bool {
	_, ok := l.custodians[string(caller)]
	return ok
}

// caller holds at least a read lock
func (l *Ledger) totalSupply() uint64 {
	n := uint64(0)
	for _, token := range l.tokens {
		if !token.account.Equal(l.registry) {
			n += 1
		}
	}
	return n
}
