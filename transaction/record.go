// SPDX-License-Identifier: ISC
// Copyright (c) 2022-2023 Slide Computer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package transaction

import (
	"encoding/binary"

	"github.com/slide-computer/slided/account"
	"github.com/slide-computer/slided/fault"
)

// HistoryEntryBytes - fixed size of one history record
const HistoryEntryBytes = 78

// CustodianTokenId - sentinel token id used by custodian change
// records; real tokens must stay below this value
const CustodianTokenId = 0xffffffff

// history record layout, all integers little endian:
//   [ 0: 4]  token id
//   [ 4   ]  owner id length
//   [ 5:34]  owner id payload, zero padded to the 29 byte slot
//   [34:66]  subaccount
//   [66:74]  timestamp
//   [74:78]  from offset, 0 for a fresh mint
const (
	tokenIdOffset    = 0
	ownerLengthByte  = 4
	ownerSlotOffset  = 5
	subaccountOffset = 34
	timeOffset       = 66
	fromOffsetOffset = 74
)

// HistoryEntry - the durable projection of one ownership change
//
// a token is (pre-)minted when the from offset is 0; it is a mint or a
// pre-mint depending on the receiving account, a pre-mint if that is
// the minter account.  A burn occurs when the from offset is not 0 and
// the account is the minter account.
type HistoryEntry struct {
	TokenId    uint64          `cbor:"token_id" json:"token_id"`
	Account    account.Account `cbor:"account" json:"account"`
	Time       uint64          `cbor:"time" json:"time"`
	FromOffset uint64          `cbor:"from_offset" json:"from_offset"`
}

// Packed - a packed history record is just a byte slice
type Packed []byte

// Pack - convert an entry to its fixed length record form
func (entry *HistoryEntry) Pack() (Packed, error) {
	if entry.TokenId > CustodianTokenId {
		return nil, fault.ErrTokenIdTooBig
	}
	if entry.FromOffset > 0xffffffff {
		return nil, fault.ErrTxIdTooBig
	}
	if len(entry.Account.Owner) > account.MaxIdentityLength {
		return nil, fault.ErrIdentityTooLong
	}

	record := make(Packed, HistoryEntryBytes)
	binary.LittleEndian.PutUint32(record[tokenIdOffset:], uint32(entry.TokenId))
	record[ownerLengthByte] = byte(len(entry.Account.Owner))
	copy(record[ownerSlotOffset:subaccountOffset], entry.Account.Owner)
	subaccount := entry.Account.SubaccountBytes()
	copy(record[subaccountOffset:timeOffset], subaccount[:])
	binary.LittleEndian.PutUint64(record[timeOffset:], entry.Time)
	binary.LittleEndian.PutUint32(record[fromOffsetOffset:], uint32(entry.FromOffset))
	return record, nil
}

// Unpack - convert a fixed length record back to an entry
func (record Packed) Unpack() (*HistoryEntry, error) {
	if len(record) < HistoryEntryBytes {
		return nil, fault.ErrNotHistoryRecord
	}
	length := int(record[ownerLengthByte])
	if length > account.MaxIdentityLength {
		return nil, fault.ErrNotHistoryRecord
	}

	owner := make(account.Identity, length)
	copy(owner, record[ownerSlotOffset:ownerSlotOffset+length])

	subaccount := account.Subaccount{}
	copy(subaccount[:], record[subaccountOffset:timeOffset])

	return &HistoryEntry{
		TokenId:    uint64(binary.LittleEndian.Uint32(record[tokenIdOffset:])),
		Account:    account.NewAccount(owner, &subaccount),
		Time:       binary.LittleEndian.Uint64(record[timeOffset:]),
		FromOffset: uint64(binary.LittleEndian.Uint32(record[fromOffsetOffset:])),
	}, nil
}

// IsZero - true for an all zero record slot
func (record Packed) IsZero() bool {
	for _, b := range record {
		if 0 != b {
			return false
		}
	}
	return true
}

// Operation - infer the operation an entry records
//
// the minter account disambiguates mint, pre-mint and burn
func (entry *HistoryEntry) Operation(minter account.Account) string {
	switch {
	case CustodianTokenId == entry.TokenId:
		return OpSetCustodian
	case 0 == entry.FromOffset && entry.Account.Equal(minter):
		return OpPreMint
	case 0 == entry.FromOffset:
		return OpMint
	case entry.Account.Equal(minter):
		return OpBurn
	default:
		return OpTransfer
	}
}

// Event - reconstruct an event from a paged out entry
//
// records carry less than live events: the caller collapses to the
// recorded account owner and approval details are not recoverable
func (entry *HistoryEntry) Event(minter account.Account) *Event {
	details := map[string]Value{
		"from_tx": Nat(entry.FromOffset),
		"time":    Nat(entry.Time),
	}
	if CustodianTokenId != entry.TokenId {
		details["token_id"] = Nat(entry.TokenId)
	} else {
		details["custodian"] = Text(entry.Account.Owner.String())
	}
	return &Event{
		Caller:    entry.Account.Owner,
		Operation: entry.Operation(minter),
		Time:      entry.Time,
		Details:   details,
	}
}
