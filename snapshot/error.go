// Copyright (c) 2025 The zecsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package snapshot

import "fmt"

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific SnapshotError.
const (
	// ErrUnsupportedVersion indicates that the snapshot was written by a
	// newer serialization version than this code understands.
	ErrUnsupportedVersion ErrorCode = iota

	// ErrCorruptSnapshot indicates that the snapshot data is malformed
	// or internally inconsistent.
	ErrCorruptSnapshot
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrUnsupportedVersion: "ErrUnsupportedVersion",
	ErrCorruptSnapshot:    "ErrCorruptSnapshot",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// SnapshotError provides a single type for errors that can happen during
// snapshot encoding or decoding.
type SnapshotError struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
	Err         error     // Underlying error
}

// Error satisfies the error interface and prints human-readable errors.
func (e SnapshotError) Error() string {
	if e.Err != nil {
		return e.Description + ": " + e.Err.Error()
	}
	return e.Description
}

// snapshotError creates a SnapshotError given a set of arguments.
func snapshotError(c ErrorCode, desc string, err error) SnapshotError {
	return SnapshotError{ErrorCode: c, Description: desc, Err: err}
}

// IsError returns whether the error is a SnapshotError with a matching error
// code.
func IsError(err error, code ErrorCode) bool {
	serr, ok := err.(SnapshotError)
	return ok && serr.ErrorCode == code
}
