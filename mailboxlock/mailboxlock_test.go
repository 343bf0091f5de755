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

package mailboxlock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/atomic"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	mboxerrors "github.com/Zimbra/zm-mailbox-sub090/errors"
	"github.com/Zimbra/zm-mailbox-sub090/internal/metric"
	"github.com/Zimbra/zm-mailbox-sub090/log"
)

func newTestLock(opts ...Option) *Lock {
	return New(7, append([]Option{WithLogger(log.DiscardLogger)}, opts...)...)
}

// lockAsync starts a Lock call and returns the channel receiving its result.
func lockAsync(ctx context.Context, l *Lock, exclusive bool) <-chan error {
	result := make(chan error, 1)
	go func() { result <- l.Lock(ctx, exclusive) }()
	return result
}

func waitForQueue(t *testing.T, l *Lock, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return l.QueueLength() == n }, 2*time.Second, time.Millisecond)
}

func TestOwner(t *testing.T) {
	_, ok := OwnerFromContext(context.Background())
	assert.False(t, ok)

	_, ok = OwnerFromContext(WithOwner(context.Background(), ""))
	assert.False(t, ok)

	ctx1 := NewOwnerContext(context.Background())
	ctx2 := NewOwnerContext(context.Background())
	owner1, ok := OwnerFromContext(ctx1)
	require.True(t, ok)
	owner2, ok := OwnerFromContext(ctx2)
	require.True(t, ok)
	assert.NotEqual(t, owner1, owner2)

	owner, ok := OwnerFromContext(WithOwner(context.Background(), "alice"))
	require.True(t, ok)
	assert.Equal(t, Owner("alice"), owner)
}

func TestLock(t *testing.T) {
	t.Run("owner is required", func(t *testing.T) {
		l := newTestLock()
		err := l.Lock(context.Background(), true)
		require.ErrorIs(t, err, mboxerrors.ErrOwnerRequired)
		var lockErr *mboxerrors.LockError
		require.True(t, errors.As(err, &lockErr))
		assert.Equal(t, 7, lockErr.MailboxID())
		require.ErrorIs(t, l.Release(context.Background()), mboxerrors.ErrOwnerRequired)
		assert.Zero(t, l.HoldCount(context.Background()))
		assert.False(t, l.IsExclusivelyHeldBy(context.Background()))
	})
	t.Run("nested acquisitions are symmetric", func(t *testing.T) {
		l := newTestLock()
		ctx := NewOwnerContext(context.Background())
		for _, exclusive := range []bool{true, false, true, false, true, true, true} {
			require.NoError(t, l.Lock(ctx, exclusive))
		}
		assert.Equal(t, 7, l.HoldCount(ctx))
		assert.True(t, l.IsExclusivelyHeldBy(ctx))
		for i := 6; i >= 0; i-- {
			require.NoError(t, l.Release(ctx))
			assert.Equal(t, i, l.HoldCount(ctx))
		}
		assert.True(t, l.IsUnlocked())
		assert.False(t, l.IsExclusivelyHeldBy(ctx))
		require.ErrorIs(t, l.Release(ctx), mboxerrors.ErrNotLockOwner)
	})
	t.Run("shared holders coexist", func(t *testing.T) {
		l := newTestLock()
		reader1 := NewOwnerContext(context.Background())
		reader2 := NewOwnerContext(context.Background())
		require.NoError(t, l.Lock(reader1, false))
		require.NoError(t, l.Lock(reader2, false))
		require.NoError(t, l.Lock(reader2, false))
		assert.Equal(t, 1, l.HoldCount(reader1))
		assert.Equal(t, 2, l.HoldCount(reader2))
		assert.False(t, l.IsUnlocked())
		assert.False(t, l.IsExclusivelyHeldBy(reader1))

		require.NoError(t, l.Release(reader1))
		require.NoError(t, l.Release(reader2))
		require.NoError(t, l.Release(reader2))
		assert.True(t, l.IsUnlocked())
		assert.True(t, l.IsIdle())
	})
	t.Run("exclusive hold blocks others until released", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		l := newTestLock()
		writer := NewOwnerContext(context.Background())
		other := NewOwnerContext(context.Background())
		require.NoError(t, l.Lock(writer, true))

		result := lockAsync(other, l, false)
		waitForQueue(t, l, 1)
		assert.True(t, l.HasQueuedWaiters())
		assert.False(t, l.IsIdle())

		require.NoError(t, l.Release(writer))
		require.NoError(t, <-result)
		assert.Equal(t, 1, l.HoldCount(other))
		assert.False(t, l.HasQueuedWaiters())
		require.NoError(t, l.Release(other))
	})
	t.Run("release wakes every shared waiter", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		l := newTestLock()
		writer := NewOwnerContext(context.Background())
		require.NoError(t, l.Lock(writer, true))

		readers := make([]context.Context, 3)
		results := make([]<-chan error, 3)
		for i := range readers {
			readers[i] = NewOwnerContext(context.Background())
			results[i] = lockAsync(readers[i], l, false)
			waitForQueue(t, l, i+1)
		}

		require.NoError(t, l.Release(writer))
		for i := range readers {
			require.NoError(t, <-results[i])
			require.NoError(t, l.Release(readers[i]))
		}
		assert.True(t, l.IsIdle())
	})
	t.Run("waiting writer holds back new readers", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		l := newTestLock()
		reader := NewOwnerContext(context.Background())
		writer := NewOwnerContext(context.Background())
		lateReader := NewOwnerContext(context.Background())

		require.NoError(t, l.Lock(reader, false))
		writerResult := lockAsync(writer, l, true)
		waitForQueue(t, l, 1)

		lateResult := lockAsync(lateReader, l, false)
		waitForQueue(t, l, 2)

		// the existing reader may still nest
		require.NoError(t, l.Lock(reader, false))
		require.NoError(t, l.Release(reader))
		require.NoError(t, l.Release(reader))

		require.NoError(t, <-writerResult)
		assert.True(t, l.IsExclusivelyHeldBy(writer))
		assert.Equal(t, 1, l.QueueLength())

		require.NoError(t, l.Release(writer))
		require.NoError(t, <-lateResult)
		require.NoError(t, l.Release(lateReader))
		assert.True(t, l.IsIdle())
	})
	t.Run("waiter cap rejects at once and recovers after drain", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		l := newTestLock(WithMaxWaiters(2))
		assert.Equal(t, 2, l.MaxWaiters())
		holder := NewOwnerContext(context.Background())
		require.NoError(t, l.Lock(holder, true))

		waiter1 := NewOwnerContext(context.Background())
		waiter2 := NewOwnerContext(context.Background())
		result1 := lockAsync(waiter1, l, true)
		waitForQueue(t, l, 1)
		result2 := lockAsync(waiter2, l, true)
		waitForQueue(t, l, 2)

		rejected := NewOwnerContext(context.Background())
		start := time.Now()
		err := l.Lock(rejected, false)
		require.ErrorIs(t, err, mboxerrors.ErrLockCapacity)
		assert.Less(t, time.Since(start), time.Second)
		assert.Zero(t, l.HoldCount(rejected))

		require.NoError(t, l.Release(holder))
		require.NoError(t, <-result1)
		require.NoError(t, l.Release(waiter1))
		require.NoError(t, <-result2)
		require.NoError(t, l.Release(waiter2))

		require.NoError(t, l.Lock(rejected, false))
		require.NoError(t, l.Release(rejected))
	})
	t.Run("timeout never hangs", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		l := newTestLock(WithTimeout(20 * time.Millisecond))
		holder := NewOwnerContext(context.Background())
		require.NoError(t, l.Lock(holder, false))

		writer := NewOwnerContext(context.Background())
		start := time.Now()
		err := l.Lock(writer, true)
		require.ErrorIs(t, err, mboxerrors.ErrLockTimeout)
		assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
		assert.Zero(t, l.QueueLength())

		// the abandoned writer no longer blocks readers
		reader := NewOwnerContext(context.Background())
		require.NoError(t, l.Lock(reader, false))
		require.NoError(t, l.Release(reader))
		require.NoError(t, l.Release(holder))
	})
	t.Run("abandoned writer releases queued readers", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		l := newTestLock()
		holder := NewOwnerContext(context.Background())
		require.NoError(t, l.Lock(holder, false))

		writerCtx, cancel := context.WithCancel(NewOwnerContext(context.Background()))
		writerResult := lockAsync(writerCtx, l, true)
		waitForQueue(t, l, 1)

		reader := NewOwnerContext(context.Background())
		readerResult := lockAsync(reader, l, false)
		waitForQueue(t, l, 2)

		cancel()
		require.ErrorIs(t, <-writerResult, context.Canceled)
		require.NoError(t, <-readerResult)
		assert.Zero(t, l.QueueLength())
		require.NoError(t, l.Release(reader))
		require.NoError(t, l.Release(holder))
	})
	t.Run("promotion turns fresh shared requests exclusive", func(t *testing.T) {
		pending := atomic.NewBool(true)
		l := newTestLock(WithPromotion(pending.Load))
		ctx := NewOwnerContext(context.Background())
		require.NoError(t, l.Lock(ctx, false))
		assert.True(t, l.IsExclusivelyHeldBy(ctx))
		require.NoError(t, l.Release(ctx))

		pending.Store(false)
		require.NoError(t, l.Lock(ctx, false))
		assert.False(t, l.IsExclusivelyHeldBy(ctx))

		// reentrant shared requests are never promoted
		pending.Store(true)
		require.NoError(t, l.Lock(ctx, false))
		assert.False(t, l.IsExclusivelyHeldBy(ctx))
		assert.Equal(t, 2, l.HoldCount(ctx))
		require.NoError(t, l.Release(ctx))
		require.NoError(t, l.Release(ctx))
	})
	t.Run("promotion predicate may query the lock", func(t *testing.T) {
		var l *Lock
		l = newTestLock(WithPromotion(func() bool { return l.IsIdle() }))
		ctx := NewOwnerContext(context.Background())
		select {
		case err := <-lockAsync(ctx, l, false):
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("lock deadlocked in the promotion predicate")
		}
		assert.True(t, l.IsExclusivelyHeldBy(ctx))
		require.NoError(t, l.Release(ctx))
	})
	t.Run("retired lock refuses every request", func(t *testing.T) {
		l := newTestLock()
		holder := NewOwnerContext(context.Background())
		require.NoError(t, l.Lock(holder, false))
		assert.False(t, l.Retire())
		assert.False(t, l.IsRetired())

		waiter := NewOwnerContext(context.Background())
		result := lockAsync(waiter, l, true)
		waitForQueue(t, l, 1)
		require.NoError(t, l.Release(holder))
		require.NoError(t, <-result)
		assert.False(t, l.Retire())
		require.NoError(t, l.Release(waiter))

		require.True(t, l.Retire())
		assert.True(t, l.IsRetired())
		assert.True(t, l.Retire())
		for _, exclusive := range []bool{true, false} {
			err := l.Lock(holder, exclusive)
			require.ErrorIs(t, err, mboxerrors.ErrMailboxEvicted)
			var lockErr *mboxerrors.LockError
			require.ErrorAs(t, err, &lockErr)
			assert.Equal(t, 7, lockErr.MailboxID())
		}
		require.ErrorIs(t, l.With(waiter, true, func(context.Context) error {
			t.Error("ran under a retired lock")
			return nil
		}), mboxerrors.ErrMailboxEvicted)
		assert.True(t, l.IsUnlocked())
	})
	t.Run("with releases on every exit path", func(t *testing.T) {
		l := newTestLock()
		ctx := NewOwnerContext(context.Background())
		failure := errors.New("store unavailable")

		err := l.With(ctx, true, func(ctx context.Context) error {
			assert.True(t, l.IsExclusivelyHeldBy(ctx))
			return failure
		})
		require.ErrorIs(t, err, failure)
		assert.True(t, l.IsUnlocked())

		assert.Panics(t, func() {
			_ = l.With(ctx, false, func(context.Context) error { panic("boom") })
		})
		assert.True(t, l.IsUnlocked())

		require.ErrorIs(t, l.With(context.Background(), true, func(context.Context) error { return nil }), mboxerrors.ErrOwnerRequired)
	})
	t.Run("records metrics", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		instruments, err := metric.NewLockMetric(noop.NewMeterProvider().Meter("test"))
		require.NoError(t, err)

		timed := newTestLock(WithMetric(instruments), WithTimeout(10*time.Millisecond))
		holder := NewOwnerContext(context.Background())
		require.NoError(t, timed.Lock(holder, true))
		require.ErrorIs(t, timed.Lock(NewOwnerContext(context.Background()), true), mboxerrors.ErrLockTimeout)
		require.NoError(t, timed.Release(holder))

		bounded := newTestLock(WithMetric(instruments), WithMaxWaiters(1))
		require.NoError(t, bounded.Lock(holder, true))
		waiter := NewOwnerContext(context.Background())
		result := lockAsync(waiter, bounded, true)
		waitForQueue(t, bounded, 1)
		require.ErrorIs(t, bounded.Lock(NewOwnerContext(context.Background()), true), mboxerrors.ErrLockCapacity)
		require.NoError(t, bounded.Release(holder))
		require.NoError(t, <-result)
		require.NoError(t, bounded.Release(waiter))
	})
	t.Run("concurrent owners keep exclusive holds exclusive", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		l := newTestLock(WithMaxWaiters(64))
		inside := atomic.NewInt32(0)
		readersInside := atomic.NewInt32(0)

		var eg errgroup.Group
		for i := range 32 {
			eg.Go(func() error {
				ctx := NewOwnerContext(context.Background())
				exclusive := i%4 == 0
				return l.With(ctx, exclusive, func(context.Context) error {
					if exclusive {
						if n := inside.Inc(); n != 1 || readersInside.Load() != 0 {
							t.Errorf("exclusive hold shared with %d writers and %d readers", n, readersInside.Load())
						}
						time.Sleep(time.Millisecond)
						inside.Dec()
						return nil
					}
					readersInside.Inc()
					if inside.Load() != 0 {
						t.Error("shared hold granted during an exclusive hold")
					}
					time.Sleep(time.Millisecond)
					readersInside.Dec()
					return nil
				})
			})
		}
		require.NoError(t, eg.Wait())
		assert.True(t, l.IsIdle())
	})
}
