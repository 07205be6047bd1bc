// Copyright (c) 2025 The zecsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package waddrmgr

import "fmt"

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific ManagerError.
const (
	// ErrUnknownAccount indicates that the requested account id is not
	// known to the manager.
	ErrUnknownAccount ErrorCode = iota

	// ErrInvalidBirthday indicates that an account birthday is
	// inconsistent with prior chain state, such as a birthday below the
	// network's shielded activation height.
	ErrInvalidBirthday

	// ErrDerivationRequired indicates that a derived account was created
	// without a seed fingerprint and HD index, or that an imported
	// account carried them.
	ErrDerivationRequired

	// ErrGapLimit indicates that reserving another ephemeral address
	// index would exceed the unused-address gap limit.
	ErrGapLimit

	// ErrDuplicateEphemeralIndex indicates that an ephemeral address
	// index is already populated for the account.
	ErrDuplicateEphemeralIndex
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrUnknownAccount:          "ErrUnknownAccount",
	ErrInvalidBirthday:         "ErrInvalidBirthday",
	ErrDerivationRequired:      "ErrDerivationRequired",
	ErrGapLimit:                "ErrGapLimit",
	ErrDuplicateEphemeralIndex: "ErrDuplicateEphemeralIndex",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// ManagerError provides a single type for errors that can happen during
// account manager operation.
type ManagerError struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
	Err         error     // Underlying error
}

// Error satisfies the error interface and prints human-readable errors.
func (e ManagerError) Error() string {
	if e.Err != nil {
		return e.Description + ": " + e.Err.Error()
	}
	return e.Description
}

// managerError creates a ManagerError given a set of arguments.
func managerError(c ErrorCode, desc string, err error) ManagerError {
	return ManagerError{ErrorCode: c, Description: desc, Err: err}
}

// IsError returns whether the error is a ManagerError with a matching error
// code.
func IsError(err error, code ErrorCode) bool {
	merr, ok := err.(ManagerError)
	return ok && merr.ErrorCode == code
}
