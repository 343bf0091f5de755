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

package operation

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/Zimbra/zm-mailbox-sub090/config"
	mboxerrors "github.com/Zimbra/zm-mailbox-sub090/errors"
	"github.com/Zimbra/zm-mailbox-sub090/log"
	"github.com/Zimbra/zm-mailbox-sub090/mailboxlock"
	"github.com/Zimbra/zm-mailbox-sub090/priority"
	"github.com/Zimbra/zm-mailbox-sub090/scheduler"
)

const testOperations = `<operations>
  <op name="Search" load="5" maxLoad="50" scale="1"/>
  <op name="Deliver" load="4"/>
</operations>`

func newTestExecutor(t *testing.T, targetLoad int, opts ...Option) (*Executor, *scheduler.Registry) {
	t.Helper()
	cfg, err := config.ParseXML(strings.NewReader(testOperations), log.DiscardLogger)
	require.NoError(t, err)

	params := scheduler.DefaultParams()
	params.TargetLoad = targetLoad
	registry := scheduler.NewRegistry(1, params, scheduler.WithLogger(log.DiscardLogger))
	t.Cleanup(func() { _ = registry.Close() })

	opts = append([]Option{WithLogger(log.DiscardLogger)}, opts...)
	return NewExecutor(registry, config.NewCatalog(cfg, log.DiscardLogger), opts...), registry
}

func waitForQueued(t *testing.T, registry *scheduler.Registry, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return registry.Shard(0).Snapshot().TotalQueued() == n }, 2*time.Second, time.Millisecond)
}

// blockingOp returns an op whose Run waits for release to be closed.
func blockingOp(opType string, requester Requester, started chan<- struct{}, release <-chan struct{}) *Op {
	return &Op{
		Type:      opType,
		Requester: requester,
		Run: func(context.Context) error {
			if started != nil {
				close(started)
			}
			<-release
			return nil
		},
	}
}

func TestExecute(t *testing.T) {
	t.Run("runs under the lock and releases everything", func(t *testing.T) {
		executor, registry := newTestExecutor(t, 100)
		lock := mailboxlock.New(1, mailboxlock.WithLogger(log.DiscardLogger))
		ctx := mailboxlock.NewOwnerContext(context.Background())

		op := &Op{
			Type:      "Search",
			MailboxID: 1,
			Requester: RequesterSOAP,
			BatchSize: 10,
			Lock:      lock,
			Exclusive: true,
			Run: func(ctx context.Context) error {
				assert.True(t, lock.IsExclusivelyHeldBy(ctx))
				snapshot := registry.For(1).Snapshot()
				assert.Equal(t, 15, snapshot.CurrentLoad)
				assert.Equal(t, 1, snapshot.Running[priority.InteractiveHigh])
				return nil
			},
		}
		require.NoError(t, executor.Execute(ctx, op))
		assert.True(t, lock.IsUnlocked())
		assert.Zero(t, registry.For(1).Snapshot().CurrentLoad)
	})
	t.Run("mints a lock owner when the context has none", func(t *testing.T) {
		executor, _ := newTestExecutor(t, 100)
		lock := mailboxlock.New(1, mailboxlock.WithLogger(log.DiscardLogger))
		err := executor.Execute(context.Background(), &Op{
			Type: "Tag",
			Lock: lock,
			Run: func(ctx context.Context) error {
				assert.Equal(t, 1, lock.HoldCount(ctx))
				return nil
			},
		})
		require.NoError(t, err)
	})
	t.Run("run errors are wrapped", func(t *testing.T) {
		executor, registry := newTestExecutor(t, 100)
		failure := errors.New("store unavailable")
		err := executor.Execute(context.Background(), &Op{
			Type: "Deliver",
			Run:  func(context.Context) error { return failure },
		})
		require.ErrorIs(t, err, failure)
		var opErr *mboxerrors.OperationError
		require.True(t, errors.As(err, &opErr))
		assert.Equal(t, "Deliver", opErr.Operation())
		assert.Zero(t, registry.Shard(0).Snapshot().TotalRunning)
	})
	t.Run("panics are recovered and completion is reported", func(t *testing.T) {
		executor, registry := newTestExecutor(t, 100)
		lock := mailboxlock.New(1, mailboxlock.WithLogger(log.DiscardLogger))
		err := executor.Execute(context.Background(), &Op{
			Type: "Deliver",
			Lock: lock,
			Run:  func(context.Context) error { panic("boom") },
		})
		var panicErr *mboxerrors.PanicError
		require.True(t, errors.As(err, &panicErr))
		assert.Equal(t, "boom", panicErr.Value())
		assert.True(t, lock.IsUnlocked())
		assert.Zero(t, registry.Shard(0).Snapshot().CurrentLoad)
	})
	t.Run("undefined operation", func(t *testing.T) {
		executor, _ := newTestExecutor(t, 100)
		require.ErrorIs(t, executor.Execute(context.Background(), &Op{Type: "Nothing"}), mboxerrors.ErrUndefinedOperation)
	})
	t.Run("waits for admission", func(t *testing.T) {
		executor, registry := newTestExecutor(t, 2)

		started := make(chan struct{})
		release := make(chan struct{})
		first := make(chan error, 1)
		go func() { first <- executor.Execute(context.Background(), blockingOp("Deliver", RequesterIMAP, started, release)) }()
		<-started

		ran := atomic.NewBool(false)
		second := make(chan error, 1)
		go func() {
			second <- executor.Execute(context.Background(), &Op{
				Type:      "Deliver",
				Requester: RequesterIMAP,
				Run:       func(context.Context) error { ran.Store(true); return nil },
			})
		}()
		waitForQueued(t, registry, 1)
		assert.False(t, ran.Load())

		close(release)
		require.NoError(t, <-first)
		require.NoError(t, <-second)
		assert.True(t, ran.Load())
	})
	t.Run("cancelled while queued never runs", func(t *testing.T) {
		executor, registry := newTestExecutor(t, 2)
		started := make(chan struct{})
		release := make(chan struct{})
		defer close(release)
		go func() { _ = executor.Execute(context.Background(), blockingOp("Deliver", RequesterIMAP, started, release)) }()
		<-started

		ctx, cancel := context.WithCancel(context.Background())
		result := make(chan error, 1)
		go func() {
			result <- executor.Execute(ctx, &Op{
				Type:      "Deliver",
				Requester: RequesterIMAP,
				Run: func(context.Context) error {
					t.Error("cancelled operation ran")
					return nil
				},
			})
		}()
		waitForQueued(t, registry, 1)
		cancel()
		require.ErrorIs(t, <-result, context.Canceled)
	})
	t.Run("sessions record admitted operations only", func(t *testing.T) {
		executor, registry := newTestExecutor(t, 2)
		session := NewSession(3)
		started := make(chan struct{})
		release := make(chan struct{})
		first := make(chan error, 1)
		go func() { first <- executor.Execute(context.Background(), blockingOp("Deliver", RequesterIMAP, started, release)) }()
		<-started

		ctx, cancel := context.WithCancel(context.Background())
		result := make(chan error, 1)
		go func() {
			result <- executor.Execute(ctx, &Op{
				Type:      "Search",
				Requester: RequesterIMAP,
				Session:   session,
				Run:       func(context.Context) error { return nil },
			})
		}()
		waitForQueued(t, registry, 1)
		cancel()
		require.ErrorIs(t, <-result, context.Canceled)
		assert.Zero(t, session.Count("Search"))

		close(release)
		require.NoError(t, <-first)
		require.NoError(t, executor.Execute(context.Background(), &Op{
			Type:      "Search",
			Requester: RequesterIMAP,
			Session:   session,
			Run:       func(context.Context) error { return nil },
		}))
		assert.Equal(t, 1, session.Count("Search"))

		require.NoError(t, registry.Close())
		err := executor.Execute(context.Background(), &Op{
			Type:    "Search",
			Session: session,
			Run:     func(context.Context) error { return nil },
		})
		require.ErrorIs(t, err, mboxerrors.ErrSchedulerClosed)
		assert.Equal(t, 1, session.Count("Search"))
	})
	t.Run("timing is logged at the configured level", func(t *testing.T) {
		buffer := new(bytes.Buffer)
		logger := log.NewZap(log.InfoLevel, buffer)
		executor, _ := newTestExecutor(t, 100, WithLogger(logger), WithTimingLevel(log.InfoLevel))
		require.NoError(t, executor.Execute(context.Background(), &Op{
			Type:      "Search",
			MailboxID: 3,
			Requester: RequesterREST,
			Run:       func(context.Context) error { return nil },
		}))
		require.NoError(t, logger.Flush())
		assert.Contains(t, buffer.String(), "operation Search mailbox=3 priority=INTERACTIVE_LOW load=5")
	})
}

func TestExecuteAsync(t *testing.T) {
	t.Run("runs inline when admitted at once", func(t *testing.T) {
		executor, _ := newTestExecutor(t, 100)
		var outcome error = errors.New("not called")
		executor.ExecuteAsync(context.Background(), &Op{
			Type: "Tag",
			Run:  func(context.Context) error { return nil },
		}, func(err error) { outcome = err })
		require.NoError(t, outcome)
	})
	t.Run("runs once admitted", func(t *testing.T) {
		executor, registry := newTestExecutor(t, 2)
		started := make(chan struct{})
		release := make(chan struct{})
		first := make(chan error, 1)
		go func() { first <- executor.Execute(context.Background(), blockingOp("Deliver", RequesterPOP, started, release)) }()
		<-started

		done := make(chan error, 1)
		executor.ExecuteAsync(context.Background(), &Op{
			Type:      "Deliver",
			Requester: RequesterPOP,
			Run:       func(context.Context) error { return nil },
		}, func(err error) { done <- err })
		waitForQueued(t, registry, 1)

		close(release)
		require.NoError(t, <-first)
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("queued operation never ran")
		}
		require.Eventually(t, func() bool { return registry.Shard(0).Snapshot().TotalRunning == 0 }, time.Second, time.Millisecond)
	})
	t.Run("cancelled while queued", func(t *testing.T) {
		executor, registry := newTestExecutor(t, 2)
		started := make(chan struct{})
		release := make(chan struct{})
		defer close(release)
		go func() { _ = executor.Execute(context.Background(), blockingOp("Deliver", RequesterPOP, started, release)) }()
		<-started

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		executor.ExecuteAsync(ctx, &Op{
			Type:      "Deliver",
			Requester: RequesterPOP,
			Run: func(context.Context) error {
				t.Error("cancelled operation ran")
				return nil
			},
		}, func(err error) { done <- err })
		waitForQueued(t, registry, 1)

		cancel()
		require.ErrorIs(t, <-done, context.Canceled)
		waitForQueued(t, registry, 0)
	})
	t.Run("undefined operation", func(t *testing.T) {
		executor, _ := newTestExecutor(t, 100)
		var outcome error
		executor.ExecuteAsync(context.Background(), &Op{Type: "Nothing"}, func(err error) { outcome = err })
		require.ErrorIs(t, outcome, mboxerrors.ErrUndefinedOperation)
		executor.ExecuteAsync(context.Background(), &Op{Type: "Nothing"}, nil)
	})
}
