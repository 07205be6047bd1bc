// Copyright (c) 2025 The zecsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wtxmgr

import "fmt"

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific StoreError.
const (
	// ErrUnknownTransaction indicates that the requested transaction id
	// is not known to the store.
	ErrUnknownTransaction ErrorCode = iota

	// ErrUnknownBlock indicates that no block record exists at the
	// requested height.
	ErrUnknownBlock

	// ErrUnknownOutput indicates that the requested outpoint is not a
	// transparent output known to the store.
	ErrUnknownOutput

	// ErrAlreadySpent indicates that a conflicting spend record already
	// exists for the output.
	ErrAlreadySpent

	// ErrConflictingLocator indicates that a (height, index) locator
	// slot is already bound to a different transaction id.
	ErrConflictingLocator

	// ErrInvalidStatus indicates an inconsistent status update, such as
	// StatusMined without a mined height.
	ErrInvalidStatus
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrUnknownTransaction: "ErrUnknownTransaction",
	ErrUnknownBlock:       "ErrUnknownBlock",
	ErrUnknownOutput:      "ErrUnknownOutput",
	ErrAlreadySpent:       "ErrAlreadySpent",
	ErrConflictingLocator: "ErrConflictingLocator",
	ErrInvalidStatus:      "ErrInvalidStatus",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// StoreError provides a single type for errors that can happen during
// transaction store operation.
type StoreError struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
	Err         error     // Underlying error
}

// Error satisfies the error interface and prints human-readable errors.
func (e StoreError) Error() string {
	if e.Err != nil {
		return e.Description + ": " + e.Err.Error()
	}
	return e.Description
}

// storeError creates a StoreError given a set of arguments.
func storeError(c ErrorCode, desc string, err error) StoreError {
	return StoreError{ErrorCode: c, Description: desc, Err: err}
}

// IsError returns whether the error is a StoreError with a matching error
// code.
func IsError(err error, code ErrorCode) bool {
	serr, ok := err.(StoreError)
	return ok && serr.ErrorCode == code
}
