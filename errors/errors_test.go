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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrors(t *testing.T) {
	lockErr := NewLockError(42, ErrLockCapacity)
	require.Error(t, lockErr)
	require.EqualError(t, lockErr, "mailbox 42: mailbox lock: too many waiters")
	assert.ErrorIs(t, lockErr, ErrLockCapacity)
	assert.Equal(t, 42, lockErr.MailboxID())

	err := errors.New("store unavailable")
	opErr := NewOperationError("Search", err)
	require.EqualError(t, opErr, "operation Search: store unavailable")
	assert.ErrorIs(t, opErr, err)
	assert.Equal(t, "Search", opErr.Operation())

	panicErr := NewPanicError("boom")
	require.EqualError(t, panicErr, "panic: boom")
	assert.Nil(t, panicErr.Unwrap())

	panicErr = NewPanicError(err)
	require.EqualError(t, panicErr, "panic: store unavailable")
	assert.ErrorIs(t, panicErr, err)
	assert.Equal(t, err, panicErr.Value())
}

func TestSentinels(t *testing.T) {
	sentinels := []error{
		ErrLockCapacity, ErrLockTimeout, ErrLockUpgrade, ErrNotLockOwner, ErrOwnerRequired,
		ErrSchedulerClosed, ErrNotQueued, ErrItemInUse, ErrNilSignal, ErrNotAdmitted,
		ErrInvalidParams, ErrInvalidLoadSpec, ErrInvalidTunable, ErrInvalidPriority,
		ErrMailboxBusy, ErrMailboxEvicted, ErrUndefinedOperation,
	}
	for i, sentinel := range sentinels {
		for j, other := range sentinels {
			if i != j {
				assert.NotErrorIs(t, sentinel, other)
			}
		}
	}

	lockErr := NewLockError(7, ErrLockTimeout)
	var target *LockError
	require.ErrorAs(t, error(lockErr), &target)
	assert.Equal(t, 7, target.MailboxID())
	assert.NotErrorIs(t, lockErr, ErrLockCapacity)
}
