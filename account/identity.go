// SPDX-License-Identifier: ISC
// Copyright (c) 2022-2023 Slide Computer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package account

import (
	"bytes"
	"encoding/binary"

	"github.com/slide-computer/slided/fault"
)

// MaxIdentityLength - longest owner id that fits the durable history record
const MaxIdentityLength = 29

// Identity - opaque byte string identifying a principal
//
// the registry treats this as abstract bytes; the only structure it
// relies on is the mint-index suffix of ids created by MintIdentity
type Identity []byte

// mint identity layout:
//   domain tag | registry id | big endian mint number | opaque marker
const (
	mintTag    = "\x0asld"
	mintMarker = 0x01
)

// number of trailing bytes carrying the mint number plus marker
const mintSuffixLength = 5

// IdentityFromString - decode the checksummed textual form of an identity
func IdentityFromString(s string) (Identity, error) {
	account, err := AccountFromString(s)
	if nil != err {
		return nil, err
	}
	if nil != account.Subaccount {
		return nil, fault.ErrInvalidIdentity
	}
	return account.Owner, nil
}

// MintIdentity - derive the opaque owner id for a mint slot
//
// concatenates the domain tag, the registry's own identity, the big
// endian mint sequence number and the opaque marker byte
func MintIdentity(registry Identity, mint uint32) (Identity, error) {
	id := make([]byte, 0, len(mintTag)+len(registry)+mintSuffixLength)
	id = append(id, mintTag...)
	id = append(id, registry...)

	mintBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(mintBytes, mint)
	id = append(id, mintBytes...)
	id = append(id, mintMarker)

	if len(id) > MaxIdentityLength {
		return nil, fault.ErrIdentityTooLong
	}
	return id, nil
}

// MintIndex - extract the mint sequence number from an id produced by
// MintIdentity
//
// reads the last 5 bytes minus the marker, so the next mint number is
// derivable in O(1) from the most recently minted id
func (id Identity) MintIndex() (uint32, error) {
	if len(id) < mintSuffixLength || mintMarker != id[len(id)-1] {
		return 0, fault.ErrInvalidIdentity
	}
	mintBytes := id[len(id)-mintSuffixLength : len(id)-1]
	return binary.BigEndian.Uint32(mintBytes), nil
}

// IsMintIdentity - check an id carries the mint domain tag
func (id Identity) IsMintIdentity() bool {
	return len(id) >= len(mintTag)+mintSuffixLength &&
		bytes.HasPrefix(id, []byte(mintTag)) &&
		mintMarker == id[len(id)-1]
}

// Equal - byte equality of two identities
func (id Identity) Equal(other Identity) bool {
	return bytes.Equal(id, other)
}

// String - checksummed textual form of a bare identity
func (id Identity) String() string {
	return Account{Owner: id}.String()
}

// MarshalText - convert an identity to its textual JSON form
func (id Identity) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText - decode an identity from its textual JSON form
func (id *Identity) UnmarshalText(s []byte) error {
	decoded, err := IdentityFromString(string(s))
	if nil != err {
		return err
	}
	*id = decoded
	return nil
}
