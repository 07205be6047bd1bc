// Copyright (c) 2025 The zecsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wnotemgr

import "fmt"

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific NoteStoreError.
const (
	// ErrUnknownNote indicates that the requested note id is not known
	// to the store.
	ErrUnknownNote ErrorCode = iota

	// ErrUnknownNullifier indicates that no note owns the requested
	// nullifier.
	ErrUnknownNullifier

	// ErrNullifierConflict indicates an attempt to bind a nullifier that
	// is already bound to a different note. Two notes of the same
	// protocol can never share a nullifier; this is a consistency
	// violation.
	ErrNullifierConflict

	// ErrAlreadySpent indicates that a conflicting spend record already
	// exists for the note.
	ErrAlreadySpent
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrUnknownNote:       "ErrUnknownNote",
	ErrUnknownNullifier:  "ErrUnknownNullifier",
	ErrNullifierConflict: "ErrNullifierConflict",
	ErrAlreadySpent:      "ErrAlreadySpent",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// NoteStoreError provides a single type for errors that can happen during
// note store operation.
type NoteStoreError struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
	Err         error     // Underlying error
}

// Error satisfies the error interface and prints human-readable errors.
func (e NoteStoreError) Error() string {
	if e.Err != nil {
		return e.Description + ": " + e.Err.Error()
	}
	return e.Description
}

// noteStoreError creates a NoteStoreError given a set of arguments.
func noteStoreError(c ErrorCode, desc string, err error) NoteStoreError {
	return NoteStoreError{ErrorCode: c, Description: desc, Err: err}
}

// IsError returns whether the error is a NoteStoreError with a matching
// error code.
func IsError(err error, code ErrorCode) bool {
	nerr, ok := err.(NoteStoreError)
	return ok && nerr.ErrorCode == code
}
