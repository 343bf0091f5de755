// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrLockCapacity is returned by a mailbox lock when the number of parked
	// waiters already equals the configured maximum. The caller is not queued.
	ErrLockCapacity = errors.New("mailbox lock: too many waiters")

	// ErrLockTimeout is returned by a mailbox lock configured with a timeout when
	// the lock could not be acquired in time.
	ErrLockTimeout = errors.New("mailbox lock: acquisition timed out")

	// ErrLockUpgrade is returned when an owner holding only a shared lock asks for
	// the exclusive lock without releasing first. It is a programming error.
	ErrLockUpgrade = errors.New("mailbox lock: cannot upgrade shared hold to exclusive")

	// ErrNotLockOwner is returned when an owner releases a lock it does not hold.
	ErrNotLockOwner = errors.New("mailbox lock: caller does not hold the lock")

	// ErrOwnerRequired is returned when a lock operation is attempted with a context
	// that does not carry a lock owner.
	ErrOwnerRequired = errors.New("mailbox lock: context carries no lock owner")

	// ErrSchedulerClosed is returned by a scheduler that has been closed.
	ErrSchedulerClosed = errors.New("scheduler is closed")

	// ErrNotQueued is returned when an item is expected to be waiting in a queue but is not.
	ErrNotQueued = errors.New("work item is not queued")

	// ErrItemInUse is returned when a work item that was already submitted is
	// submitted again.
	ErrItemInUse = errors.New("work item was already submitted")

	// ErrNilSignal is returned by the non-blocking submission when no signal is given.
	ErrNilSignal = errors.New("signal function is required")

	// ErrNotAdmitted is reported when a work item is completed without having been admitted.
	ErrNotAdmitted = errors.New("work item was not admitted")

	// ErrInvalidParams is returned when scheduler parameters are rejected.
	ErrInvalidParams = errors.New("invalid scheduler parameters")

	// ErrInvalidLoadSpec is returned when an operation load specification is rejected.
	ErrInvalidLoadSpec = errors.New("invalid load specification")

	// ErrInvalidTunable is returned when a tunable value cannot be parsed.
	ErrInvalidTunable = errors.New("invalid tunable")

	// ErrInvalidPriority is returned for an out of range priority level.
	ErrInvalidPriority = errors.New("invalid priority")

	// ErrMailboxBusy is returned when a resident mailbox cannot be evicted because
	// its lock is held or contended.
	ErrMailboxBusy = errors.New("mailbox is busy")

	// ErrMailboxEvicted is returned by the lock of an evicted mailbox. Callers
	// fetch the mailbox again to get its current lock.
	ErrMailboxEvicted = errors.New("mailbox lock: mailbox was evicted")

	// ErrUndefinedOperation is returned when an operation has no callback to run.
	ErrUndefinedOperation = errors.New("operation is not defined")
)

// LockError carries the mailbox a lock failure happened on. It unwraps to one of
// the lock sentinels so callers can match it with errors.Is.
type LockError struct {
	mailboxID int
	err       error
}

// enforce compilation error
var _ error = (*LockError)(nil)

// NewLockError returns an instance of LockError
func NewLockError(mailboxID int, err error) *LockError {
	return &LockError{
		mailboxID: mailboxID,
		err:       err,
	}
}

// MailboxID returns the mailbox the lock belongs to
func (e *LockError) MailboxID() int {
	return e.mailboxID
}

// Error implements the standard error interface
func (e *LockError) Error() string {
	return fmt.Sprintf("mailbox %d: %v", e.mailboxID, e.err)
}

func (e *LockError) Unwrap() error {
	return e.err
}

// OperationError is returned by the operation adapters when the callback fails.
type OperationError struct {
	operation string
	err       error
}

// enforce compilation error
var _ error = (*OperationError)(nil)

// NewOperationError returns an instance of OperationError
func NewOperationError(operation string, err error) *OperationError {
	return &OperationError{
		operation: operation,
		err:       fmt.Errorf("operation %s: %w", operation, err),
	}
}

// Operation returns the failed operation type
func (e *OperationError) Operation() string {
	return e.operation
}

// Error implements the standard error interface
func (e *OperationError) Error() string {
	return e.err.Error()
}

func (e *OperationError) Unwrap() error {
	return e.err
}

// PanicError wraps a value recovered from a panicking operation callback.
type PanicError struct {
	value any
}

// enforce compilation error
var _ error = (*PanicError)(nil)

// NewPanicError returns an instance of PanicError
func NewPanicError(value any) *PanicError {
	return &PanicError{value: value}
}

// Value returns the recovered panic value
func (e *PanicError) Value() any {
	return e.value
}

// Error implements the standard error interface
func (e *PanicError) Error() string {
	if err, ok := e.value.(error); ok {
		return fmt.Sprintf("panic: %v", err)
	}
	return fmt.Sprintf("panic: %v", e.value)
}

func (e *PanicError) Unwrap() error {
	if err, ok := e.value.(error); ok {
		return err
	}
	return nil
}
