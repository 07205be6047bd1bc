// Copyright (c) 2025 The zecsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import "fmt"

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific WalletError.
const (
	// ErrReorgInProgress indicates that a write was attempted after a
	// rollback failed partway. The store still holds its pre-rollback
	// state, but the chain view it reflects is known to be invalid, so
	// only another rollback attempt is accepted.
	ErrReorgInProgress ErrorCode = iota

	// ErrNonSequentialBlocks indicates that an ingested batch of blocks
	// is not a contiguous ascending run of heights.
	ErrNonSequentialBlocks

	// ErrInvalidConfig indicates that the wallet configuration is
	// incomplete or inconsistent.
	ErrInvalidConfig
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrReorgInProgress:     "ErrReorgInProgress",
	ErrNonSequentialBlocks: "ErrNonSequentialBlocks",
	ErrInvalidConfig:       "ErrInvalidConfig",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// WalletError provides a single type for errors raised by the wallet facade
// itself. Errors from the sub-stores pass through unwrapped.
type WalletError struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
	Err         error     // Underlying error
}

// Error satisfies the error interface and prints human-readable errors.
func (e WalletError) Error() string {
	if e.Err != nil {
		return e.Description + ": " + e.Err.Error()
	}
	return e.Description
}

// walletError creates a WalletError given a set of arguments.
func walletError(c ErrorCode, desc string, err error) WalletError {
	return WalletError{ErrorCode: c, Description: desc, Err: err}
}

// IsError returns whether the error is a WalletError with a matching error
// code.
func IsError(err error, code ErrorCode) bool {
	werr, ok := err.(WalletError)
	return ok && werr.ErrorCode == code
}
