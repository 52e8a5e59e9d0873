// SPDX-License-Identifier: ISC
// Copyright (c) 2022-2023 Slide Computer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger

import (
	"github.com/slide-computer/slided/account"
	"github.com/slide-computer/slided/fault"
	"github.com/slide-computer/slided/transaction"
)

// TransferFrom - move a token between accounts, minting and burning
// included
//
// the validation order is part of the contract: ownership is checked
// before delegate approval, burn permission before approval, and the
// self-transfer guard last.  Swapping any two changes which error a
// caller observes for the same invalid request
func (l *Ledger) TransferFrom(caller account.Identity, from account.Account, to account.Account, tokenId uint64, memo []byte, createdAtTime *uint64) (uint64, error) {
	l.Lock()
	defer l.Unlock()

	if !l.initialised {
		return 0, fault.ErrNotInitialised
	}

	callerIsCustodian := l.isCustodian(caller)
	transferIsBurn := to.Equal(l.registry)
	transferIsMint := false

	token, ok := l.tokens[tokenId]
	if !ok {
		if !callerIsCustodian {
			return 0, fault.ErrTokenNotFound
		}
		if tokenId >= transaction.CustodianTokenId {
			return 0, fault.ErrTokenIdTooBig
		}
		transferIsMint = true
		token = &tokenState{
			account:  l.registry,
			txId:     0,
			approved: make(map[string]account.Identity),
		}
	}

	callerIsFrom := from.Owner.Equal(caller)
	fromIsOwner := token.account.Equal(from) ||
		(callerIsCustodian && token.account.Equal(l.registry))
	_, callerIsApproved := token.approved[string(caller)]

	if !fromIsOwner {
		return 0, fault.ErrNotOwner
	}
	if transferIsBurn && !callerIsCustodian {
		return 0, fault.GenericError{
			Code:    403,
			Message: "Caller is not custodian",
		}
	}
	// a custodian minting or burning acts on the minter account and is
	// neither the from principal nor a delegate
	custodianAction := callerIsCustodian && (transferIsMint || transferIsBurn)
	if !callerIsFrom && !callerIsApproved && !custodianAction {
		return 0, fault.ErrNotApproved
	}
	if to.Equal(token.account) {
		return 0, fault.ErrNotSelf
	}

	operation := transaction.OpTransferFrom
	switch {
	case transferIsMint:
		operation = transaction.OpMint
	case transferIsBurn:
		operation = transaction.OpBurn
	case callerIsFrom:
		operation = transaction.OpTransfer
	}

	event := l.newEvent(caller, operation, map[string]transaction.Value{
		"token_id": transaction.Nat(tokenId),
		"time":     transaction.Nat(l.now()),
		"from_tx":  transaction.Nat(token.txId),
	})
	attachOptions(event, memo, createdAtTime)

	entry := &transaction.HistoryEntry{
		TokenId:    tokenId,
		Account:    to,
		Time:       event.Time,
		FromOffset: token.txId,
	}

	txId, flushed, err := l.commit(event, entry)
	if nil != err {
		return 0, err
	}

	token.account = to
	token.txId = txId
	token.approved = make(map[string]account.Identity)
	l.tokens[tokenId] = token

	l.certifyToken(tokenId, token)
	l.finish(txId, flushed, event)
	return txId, nil
}

// Transfer - owner initiated transfer
//
// a thin wrapper around TransferFrom with the source account derived
// from the caller; a NotApproved outcome is impossible for the owner
// surface and maps to a generic forbidden error instead
func (l *Ledger) Transfer(caller account.Identity, fromSubaccount *account.Subaccount, to account.Account, tokenId uint64, memo []byte, createdAtTime *uint64) (uint64, error) {
	from := account.NewAccount(caller, fromSubaccount)
	txId, err := l.TransferFrom(caller, from, to, tokenId, memo, createdAtTime)
	if fault.ErrNotApproved == err {
		return 0, fault.GenericError{
			Code:    403,
			Message: "Caller is not approved",
		}
	}
	return txId, err
}

// Approve - grant or revoke a delegate for one token
//
// removal is idempotent; removing a spender that is not present still
// commits an event
func (l *Ledger) Approve(caller account.Identity, fromSubaccount *account.Subaccount, spender account.Identity, tokenId uint64, approved bool, memo []byte, createdAtTime *uint64) (uint64, error) {
	l.Lock()
	defer l.Unlock()

	if !l.initialised {
		return 0, fault.ErrNotInitialised
	}
	if spender.Equal(caller) {
		return 0, fault.ErrNotSelf
	}
	token, ok := l.tokens[tokenId]
	if !ok {
		return 0, fault.ErrTokenNotFound
	}
	from := account.NewAccount(caller, fromSubaccount)
	if !token.account.Equal(from) {
		return 0, fault.ErrNotOwner
	}
	if approved && maximumApprovals == len(token.approved) {
		return 0, fault.MaxApprovalsError(maximumApprovals)
	}

	approvedFlag := uint64(0)
	if approved {
		approvedFlag = 1
	}
	event := l.newEvent(caller, transaction.OpApprove, map[string]transaction.Value{
		"token_id": transaction.Nat(tokenId),
		"spender":  transaction.Text(spender.String()),
		"approved": transaction.Nat(approvedFlag),
		"from_tx":  transaction.Nat(token.txId),
	})
	attachOptions(event, memo, createdAtTime)

	// approvals page out as the owner's unchanged position
	entry := &transaction.HistoryEntry{
		TokenId:    tokenId,
		Account:    token.account,
		Time:       event.Time,
		FromOffset: token.txId,
	}

	txId, flushed, err := l.commit(event, entry)
	if nil != err {
		return 0, err
	}

	if approved {
		token.approved[string(spender)] = spender
	} else {
		delete(token.approved, string(spender))
	}
	token.txId = txId

	l.certifyToken(tokenId, token)
	l.finish(txId, flushed, event)
	return txId, nil
}
