// SPDX-License-Identifier: ISC
// Copyright (c) 2022-2023 Slide Computer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package transaction - ledger events and their durable record form
//
// An event is the immutable in memory form of one committed operation.
// Events that change token ownership also have a fixed 78 byte record
// form which is the durable wire format; the record layout is bit
// exact so persisted state interoperates across implementations.
package transaction

import (
	"github.com/slide-computer/slided/account"
)

// operation labels carried by events
const (
	OpMint         = "sld1:mint"
	OpBurn         = "sld1:burn"
	OpTransfer     = "sld1:transfer"
	OpPreMint      = "sld1:pre_mint"
	OpApprove      = "sld2:approve"
	OpTransferFrom = "sld2:transfer_from"
	OpSetCustodian = "sld4:set_custodian"
)

// Value - one typed event detail
//
// exactly one field is set; the zero Value is invalid
type Value struct {
	Nat  *uint64 `cbor:"nat,omitempty" json:"nat,omitempty"`
	Int  *int64  `cbor:"int,omitempty" json:"int,omitempty"`
	Text *string `cbor:"text,omitempty" json:"text,omitempty"`
	Blob []byte  `cbor:"blob,omitempty" json:"blob,omitempty"`
}

// Nat - an unsigned integer detail
func Nat(n uint64) Value {
	return Value{Nat: &n}
}

// Int - a signed integer detail
func Int(i int64) Value {
	return Value{Int: &i}
}

// Text - a text detail
func Text(s string) Value {
	return Value{Text: &s}
}

// Blob - a byte blob detail
func Blob(b []byte) Value {
	return Value{Blob: b}
}

// Event - one committed ledger operation
//
// immutable once recorded; detail ordering is irrelevant
type Event struct {
	Caller    account.Identity `cbor:"caller" json:"caller"`
	Operation string           `cbor:"operation" json:"operation"`
	Time      uint64           `cbor:"time" json:"time"`
	Details   map[string]Value `cbor:"details" json:"details"`
}
