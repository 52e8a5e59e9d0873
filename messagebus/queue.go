// SPDX-License-Identifier: ISC
// Copyright (c) 2022-2023 Slide Computer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package messagebus - best effort fan out of committed ledger events
//
// The ledger announces every committed transaction here.  Delivery is
// advisory: a slow or absent consumer never blocks a commit, the
// announcement is dropped instead and the drop is counted.
package messagebus

import (
	"github.com/slide-computer/slided/counter"
	"github.com/slide-computer/slided/transaction"
)

// internal constants
const (
	queueSize = 1000
)

// Message - one committed transaction announcement
type Message struct {
	TxId  uint64
	Event *transaction.Event
}

var (
	// for queueing data
	queue = make(chan Message, queueSize)

	// announcements discarded because the queue was full
	dropped counter.Counter
)

// Notify - announce a committed transaction, never blocking
func Notify(txId uint64, event *transaction.Event) {
	select {
	case queue <- Message{
		TxId:  txId,
		Event: event,
	}:
	default:
		dropped.Increment()
	}
}

// Chan - channel to read from
func Chan() <-chan Message {
	return queue
}

// Dropped - count of announcements discarded so far
func Dropped() uint64 {
	return dropped.Uint64()
}
