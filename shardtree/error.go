// Copyright (c) 2025 The zecsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package shardtree

import "fmt"

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific TreeError.
const (
	// ErrConflictingTreeState indicates that an append contradicts
	// previously stored tree shape, such as re-appending a different
	// commitment at an already-filled position. This is fatal to the
	// protocol's tree: it means a reorg was not rolled back first.
	ErrConflictingTreeState ErrorCode = iota

	// ErrUnknownCheckpoint indicates that the requested checkpoint id
	// does not exist.
	ErrUnknownCheckpoint
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrConflictingTreeState: "ErrConflictingTreeState",
	ErrUnknownCheckpoint:    "ErrUnknownCheckpoint",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// TreeError provides a single type for errors that can happen during shard
// tree operation.
type TreeError struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
	Err         error     // Underlying error
}

// Error satisfies the error interface and prints human-readable errors.
func (e TreeError) Error() string {
	if e.Err != nil {
		return e.Description + ": " + e.Err.Error()
	}
	return e.Description
}

// treeError creates a TreeError given a set of arguments.
func treeError(c ErrorCode, desc string, err error) TreeError {
	return TreeError{ErrorCode: c, Description: desc, Err: err}
}

// IsError returns whether the error is a TreeError with a matching error
// code.
func IsError(err error, code ErrorCode) bool {
	terr, ok := err.(TreeError)
	return ok && terr.ErrorCode == code
}

// ConflictError constructs the error a TreeEngine implementation must
// return when an append contradicts stored tree shape.
func ConflictError(desc string) error {
	return treeError(ErrConflictingTreeState, desc, nil)
}
