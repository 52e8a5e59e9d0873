// SPDX-License-Identifier: ISC
// Copyright (c) 2022-2023 Slide Computer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package merkle - authenticated map over logical state keys
//
// Keys map to content hashes; the tree produces one root hash that
// certifies every entry, and witnesses that prove either the inclusion
// of a key or its absence.  Absence has a proof of its own so a client
// can tell a denied path from a suppressed response.
package merkle

import (
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// DigestLength - number of bytes in a digest
const DigestLength = 32

// Digest - a SHA3-256 content or node hash
type Digest [DigestLength]byte

// NewDigest - create a digest from a byte slice
func NewDigest(record []byte) Digest {
	return sha3.Sum256(record)
}

// String - hex form for use by the fmt package (for %s)
func (digest Digest) String() string {
	return hex.EncodeToString(digest[:])
}

// GoString - hex form for use by the fmt package (for %#v)
func (digest Digest) GoString() string {
	return "<SHA3-256:" + hex.EncodeToString(digest[:]) + ">"
}

// MarshalText - convert a digest to its hex JSON form
func (digest Digest) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(digest[:])), nil
}

// IsEmpty - true for the zero digest, which marks an absent leaf
func (digest Digest) IsEmpty() bool {
	return Digest{} == digest
}
