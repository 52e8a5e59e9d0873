// SPDX-License-Identifier: ISC
// Copyright (c) 2022-2023 Slide Computer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package account - owner identities and accounts
//
// An account combines an opaque owner identity with an optional 32 byte
// subaccount.  The all zero subaccount is the default and is normalised
// away, so an account carrying it compares equal to one without any
// subaccount.  The textual codec is the checksummed base32 form with a
// separator every five characters.
package account

import (
	"encoding/base32"
	"encoding/binary"
	"hash/crc32"
	"strings"

	"github.com/slide-computer/slided/fault"
)

// SubaccountLength - fixed number of bytes in a subaccount
const SubaccountLength = 32

// miscellaneous constants
const (
	checksumLength    = 4
	subaccountMarker  = 127 // terminates the subaccount suffix
	groupLength       = 5   // characters between separators
	separender        = '-' // the separator character
	minAccountDecoded = checksumLength
)

// unpadded base32 for the textual form
var base32NoPad = base32.StdEncoding.WithPadding(base32.NoPadding)

// Subaccount - an arbitrary 32 byte discriminator under one owner
type Subaccount [SubaccountLength]byte

// IsDefault - true for the all zero subaccount
func (subaccount Subaccount) IsDefault() bool {
	return Subaccount{} == subaccount
}

// Account - an owner identity with a normalised optional subaccount
//
// Subaccount is nil when absent or when it was the default
type Account struct {
	Owner      Identity    `cbor:"owner" json:"owner"`
	Subaccount *Subaccount `cbor:"subaccount,omitempty" json:"subaccount,omitempty"`
}

// NewAccount - create an account, dropping a default subaccount
func NewAccount(owner Identity, subaccount *Subaccount) Account {
	if nil != subaccount && subaccount.IsDefault() {
		subaccount = nil
	}
	return Account{
		Owner:      owner,
		Subaccount: subaccount,
	}
}

// Equal - compare accounts after subaccount normalisation
func (account Account) Equal(other Account) bool {
	if !account.Owner.Equal(other.Owner) {
		return false
	}
	left := Subaccount{}
	if nil != account.Subaccount {
		left = *account.Subaccount
	}
	right := Subaccount{}
	if nil != other.Subaccount {
		right = *other.Subaccount
	}
	return left == right
}

// Key - normalised form for use as a map key
func (account Account) Key() string {
	if nil == account.Subaccount || account.Subaccount.IsDefault() {
		return string(account.Owner)
	}
	return string(account.Owner) + string(account.Subaccount[:])
}

// String - the checksummed textual form
//
// layout before encoding:
//   owner id bytes
//   significant subaccount bytes (leading zeros stripped)
//   significant byte count
//   marker byte (127)
// the big endian CRC-32 of the above is prepended, the whole buffer is
// encoded as lowercase unpadded base32 and a separator is inserted
// every five characters
func (account Account) String() string {
	buffer := make([]byte, 0, len(account.Owner)+SubaccountLength+2)
	buffer = append(buffer, account.Owner...)

	if nil != account.Subaccount {
		count := 0
		for _, b := range account.Subaccount {
			if 0 != b || count > 0 {
				count += 1
				buffer = append(buffer, b)
			}
		}
		if count > 0 {
			buffer = append(buffer, byte(count))
			buffer = append(buffer, subaccountMarker)
		}
	}

	checksum := make([]byte, checksumLength)
	binary.BigEndian.PutUint32(checksum, crc32.ChecksumIEEE(buffer))

	encoded := strings.ToLower(base32NoPad.EncodeToString(append(checksum, buffer...)))

	separated := make([]byte, 0, len(encoded)+len(encoded)/groupLength)
	for len(encoded) > groupLength {
		separated = append(separated, encoded[:groupLength]...)
		separated = append(separated, separender)
		encoded = encoded[groupLength:]
	}
	separated = append(separated, encoded...)
	return string(separated)
}

// AccountFromString - decode the checksummed textual form
//
// exact inverse of String, verifying the checksum and the subaccount
// marker
func AccountFromString(s string) (Account, error) {
	stripped := strings.ReplaceAll(s, string(separender), "")
	decoded, err := base32NoPad.DecodeString(strings.ToUpper(stripped))
	if nil != err {
		return Account{}, fault.ErrInvalidIdentity
	}
	if len(decoded) < minAccountDecoded {
		return Account{}, fault.ErrInvalidIdentity
	}

	checksum := binary.BigEndian.Uint32(decoded[:checksumLength])
	payload := decoded[checksumLength:]
	if checksum != crc32.ChecksumIEEE(payload) {
		return Account{}, fault.ErrChecksumMismatch
	}

	// bare owner id when the marker is absent
	if 0 == len(payload) || subaccountMarker != payload[len(payload)-1] {
		if len(payload) > MaxIdentityLength {
			return Account{}, fault.ErrIdentityTooLong
		}
		owner := make(Identity, len(payload))
		copy(owner, payload)
		return Account{Owner: owner}, nil
	}

	if len(payload) < 3 {
		return Account{}, fault.ErrInvalidSubaccount
	}
	count := int(payload[len(payload)-2])
	if count < 1 || count > SubaccountLength {
		return Account{}, fault.ErrInvalidSubaccount
	}
	ownerLength := len(payload) - count - 2
	if ownerLength < 0 || ownerLength > MaxIdentityLength {
		return Account{}, fault.ErrInvalidSubaccount
	}

	subaccountBytes := payload[ownerLength : ownerLength+count]
	if 0 == subaccountBytes[0] {
		// leading zeros must have been stripped
		return Account{}, fault.ErrInvalidSubaccount
	}
	subaccount := Subaccount{}
	copy(subaccount[SubaccountLength-count:], subaccountBytes)

	owner := make(Identity, ownerLength)
	copy(owner, payload[:ownerLength])
	return NewAccount(owner, &subaccount), nil
}

// MarshalText - convert an account to its textual JSON form
func (account Account) MarshalText() ([]byte, error) {
	return []byte(account.String()), nil
}

// UnmarshalText - decode an account from its textual JSON form
func (account *Account) UnmarshalText(s []byte) error {
	a, err := AccountFromString(string(s))
	if nil != err {
		return err
	}
	*account = a
	return nil
}

// SubaccountBytes - the subaccount padded to its fixed length
//
// absent subaccounts yield the default all zero form
func (account Account) SubaccountBytes() [SubaccountLength]byte {
	if nil == account.Subaccount {
		return Subaccount{}
	}
	return *account.Subaccount
}
