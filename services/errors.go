package services

import (
	"errors"
	"fmt"
)

// ErrDisposed is returned by a Roster after Dispose.
var ErrDisposed = errors.New("roster disposed")

// ValidationError means a field was empty or not acceptable; nothing was
// sent to the store. Value is set only for the second case.
type ValidationError struct {
	Field string
	Value string
}

func (e *ValidationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("%s %q is not valid", e.Field, e.Value)
	}
	return fmt.Sprintf("%s is required", e.Field)
}

// Alert is the message shown to the user for this failure.
func (e *ValidationError) Alert() string {
	if e.Field == "type" {
		return MsgChooseCategory
	}
	return MsgFillAllFields
}

// RemoteOperationError wraps a failed select, insert or delete.
type RemoteOperationError struct {
	Op  string
	Err error
}

func (e *RemoteOperationError) Error() string {
	return fmt.Sprintf("%s dishes: %v", e.Op, e.Err)
}

func (e *RemoteOperationError) Unwrap() error { return e.Err }

// user-facing messages, one per failing operation
const (
	MsgFillAllFields  = "Please fill in all fields!"
	MsgChooseCategory = "Please choose savory or sweet!"
	MsgAddFailed      = "Failed to add dish. Please try again."
	MsgRemoveFailed   = "Failed to remove dish. Please try again."
)
