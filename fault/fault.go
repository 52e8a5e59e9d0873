// SPDX-License-Identifier: ISC
// Copyright (c) 2022-2023 Slide Computer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package fault

import (
	"fmt"
)

// to allow for different classes of errors
type (
	// ExistsError - something exists that should not
	ExistsError string
	// InvalidError - caller supplied data failed validation
	InvalidError string
	// NotFoundError - referenced item does not exist
	NotFoundError string
	// ProcessError - operation failed for an internal reason
	ProcessError string
)

// common errors - keep in alphabetic order
var (
	ErrAlreadyInitialised     = ExistsError("already initialised")
	ErrBlockSizeOutOfRange    = InvalidError("block size out of range")
	ErrChecksumMismatch       = InvalidError("checksum mismatch")
	ErrIdentityTooLong        = InvalidError("identity too long")
	ErrInvalidIdentity        = InvalidError("invalid identity")
	ErrInvalidLoggerChannel   = InvalidError("invalid logger channel")
	ErrInvalidSubaccount      = InvalidError("invalid subaccount")
	ErrNotAllowed             = InvalidError("caller is not a custodian")
	ErrNotApproved            = InvalidError("caller is not owner or approved")
	ErrNotHistoryRecord       = InvalidError("not a history record")
	ErrNotInitialised         = ProcessError("not initialised")
	ErrNotOwner               = InvalidError("from account is not the owner")
	ErrNotSelf                = InvalidError("self reference is not permitted")
	ErrOutOfBounds            = ProcessError("read out of bounds")
	ErrStableWriteFailed      = ProcessError("stable region write failed")
	ErrTemporarilyUnavailable = ProcessError("temporarily unavailable")
	ErrTokenIdTooBig          = InvalidError("token id exceeds record range")
	ErrTokenNotFound          = NotFoundError("token does not exist")
	ErrTxIdTooBig             = InvalidError("tx id exceeds record range")
)

// the error interface methods
func (e ExistsError) Error() string   { return string(e) }
func (e InvalidError) Error() string  { return string(e) }
func (e NotFoundError) Error() string { return string(e) }
func (e ProcessError) Error() string  { return string(e) }

// determine the class of an error
func IsErrExists(e error) bool   { _, ok := e.(ExistsError); return ok }
func IsErrInvalid(e error) bool  { _, ok := e.(InvalidError); return ok }
func IsErrNotFound(e error) bool { _, ok := e.(NotFoundError); return ok }
func IsErrProcess(e error) bool  { _, ok := e.(ProcessError); return ok }

// MaxApprovalsError - the fixed approval capacity was reached
// the value is the limit that was hit
type MaxApprovalsError int

func (e MaxApprovalsError) Error() string {
	return fmt.Sprintf("maximum of %d approvals reached", int(e))
}

// MaxCustodiansError - the fixed custodian capacity was reached
// the value is the limit that was hit
type MaxCustodiansError int

func (e MaxCustodiansError) Error() string {
	return fmt.Sprintf("maximum of %d custodians reached", int(e))
}

// GenericError - catch-all error carrying a numeric code and a message
type GenericError struct {
	Code    uint64
	Message string
}

func (e GenericError) Error() string {
	return fmt.Sprintf("error %d: %s", e.Code, e.Message)
}
