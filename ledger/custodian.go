// SPDX-License-Identifier: ISC
// Copyright (c) 2022-2023 Slide Computer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger

import (
	"sort"

	"github.com/slide-computer/slided/account"
	"github.com/slide-computer/slided/fault"
	"github.com/slide-computer/slided/transaction"
)

// SetCustodian - add or remove a member of the administrative set
//
// removal is idempotent and removing the last custodian is permitted;
// the resulting registry can no longer mint or burn
func (l *Ledger) SetCustodian(caller account.Identity, custodian account.Identity, approved bool) (uint64, error) {
	l.Lock()
	defer l.Unlock()

	if !l.initialised {
		return 0, fault.ErrNotInitialised
	}
	return l.setCustodian(caller, custodian, approved)
}

// caller holds the write lock
func (l *Ledger) setCustodian(caller account.Identity, custodian account.Identity, approved bool) (uint64, error) {
	if !l.isCustodian(caller) {
		return 0, fault.ErrNotAllowed
	}
	if approved && maximumCustodians == len(l.custodians) {
		return 0, fault.MaxCustodiansError(maximumCustodians)
	}

	approvedFlag := uint64(0)
	if approved {
		approvedFlag = 1
	}
	event := l.newEvent(caller, transaction.OpSetCustodian, map[string]transaction.Value{
		"custodian": transaction.Text(custodian.String()),
		"approved":  transaction.Nat(approvedFlag),
		"from_tx":   transaction.Nat(l.custodiansTx),
	})

	// custodian changes chain on a ledger level pointer and page out
	// under the sentinel token id
	entry := &transaction.HistoryEntry{
		TokenId:    transaction.CustodianTokenId,
		Account:    account.NewAccount(custodian, nil),
		Time:       event.Time,
		FromOffset: l.custodiansTx,
	}

	txId, flushed, err := l.commit(event, entry)
	if nil != err {
		return 0, err
	}

	if approved {
		l.custodians[string(custodian)] = custodian
	} else {
		delete(l.custodians, string(custodian))
	}
	l.custodiansTx = txId

	l.finish(txId, flushed, event)
	return txId, nil
}

// GetCustodians - the administrative set, sorted by identity text
func (l *Ledger) GetCustodians() []account.Identity {
	l.RLock()
	defer l.RUnlock()

	custodians := make([]account.Identity, 0, len(l.custodians))
	for _, id := range l.custodians {
		custodians = append(custodians, id)
	}
	sort.Slice(custodians, func(i int, j int) bool {
		return string(custodians[i]) < string(custodians[j])
	})
	return custodians
}

// sorted textual identities for the certified token view
func approvedStrings(approved map[string]account.Identity) []string {
	list := make([]string, 0, len(approved))
	for _, id := range approved {
		list = append(list, id.String())
	}
	sort.Strings(list)
	return list
}
