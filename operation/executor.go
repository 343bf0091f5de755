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

// Package operation adapts mailbox work to the admission scheduler and the
// mailbox lock.
//
// Execute blocks until the operation is admitted, runs it under the mailbox
// lock when one is given and always reports completion. ExecuteAsync does the
// same without blocking the caller.
package operation

import (
	"context"
	"sync"
	"time"

	"github.com/Zimbra/zm-mailbox-sub090/config"
	"github.com/Zimbra/zm-mailbox-sub090/errors"
	"github.com/Zimbra/zm-mailbox-sub090/log"
	"github.com/Zimbra/zm-mailbox-sub090/mailboxlock"
	"github.com/Zimbra/zm-mailbox-sub090/scheduler"
)

// Executor runs operations through the scheduler of their mailbox shard.
type Executor struct {
	registry    *scheduler.Registry
	catalog     *config.Catalog
	logger      log.Logger
	timingLevel log.Level
}

// NewExecutor creates an Executor. A nil catalog serves the default load of 1.
func NewExecutor(registry *scheduler.Registry, catalog *config.Catalog, opts ...Option) *Executor {
	x := &Executor{
		registry:    registry,
		catalog:     catalog,
		logger:      log.DefaultLogger,
		timingLevel: log.DebugLevel,
	}
	for _, opt := range opts {
		opt.Apply(x)
	}
	if x.catalog == nil {
		x.catalog = config.NewCatalog(nil, x.logger)
	}
	return x
}

// Execute schedules op, blocking until it is admitted, runs it and reports
// its completion on every exit path. Errors from Run are returned as
// *errors.OperationError and panics as *errors.PanicError.
func (x *Executor) Execute(ctx context.Context, op *Op) error {
	if op.Run == nil {
		return errors.ErrUndefinedOperation
	}

	item := x.newItem(op)
	sched := x.registry.For(op.MailboxID)
	submitted := time.Now()
	if err := sched.Schedule(ctx, item); err != nil {
		x.logTiming(op, item, submitted, time.Now(), err)
		return err
	}

	admitted := time.Now()
	op.admitted()
	err := x.run(ctx, op)
	sched.Completed(item)
	x.logTiming(op, item, submitted, admitted, err)
	return err
}

// ExecuteAsync schedules op without blocking. When op is admitted at once it
// runs on the calling goroutine; otherwise it runs on its own goroutine once
// admitted. done, when not nil, receives the outcome after completion has
// been reported. When ctx is done before admission, op is withdrawn and done
// receives ctx.Err().
func (x *Executor) ExecuteAsync(ctx context.Context, op *Op, done func(error)) {
	if done == nil {
		done = func(error) {}
	}
	if op.Run == nil {
		done(errors.ErrUndefinedOperation)
		return
	}

	item := x.newItem(op)
	sched := x.registry.For(op.MailboxID)
	submitted := time.Now()

	finish := func() {
		admitted := time.Now()
		op.admitted()
		err := x.run(ctx, op)
		sched.Completed(item)
		x.logTiming(op, item, submitted, admitted, err)
		done(err)
	}

	var watch cancelWatch
	admitted, err := sched.ScheduleAsync(item, func(item *scheduler.Item) {
		watch.stop()
		if err := item.Err(); err != nil {
			x.logTiming(op, item, submitted, time.Now(), err)
			done(err)
			return
		}
		go finish()
	})
	switch {
	case err != nil:
		done(err)
	case admitted:
		finish()
	default:
		watch.start(ctx, func() { sched.Fail(item, ctx.Err()) })
	}
}

// cancelWatch withdraws a queued item when its context is done. The admission
// signal may race with start, so whichever comes second cleans up.
type cancelWatch struct {
	mu       sync.Mutex
	cancel   func() bool
	signaled bool
}

func (w *cancelWatch) start(ctx context.Context, fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.signaled {
		w.cancel = context.AfterFunc(ctx, fn)
	}
}

func (w *cancelWatch) stop() {
	w.mu.Lock()
	w.signaled = true
	cancel := w.cancel
	w.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (x *Executor) newItem(op *Op) *scheduler.Item {
	level := op.EffectivePriority()
	load := x.catalog.Load(op.Type, op.BatchSize)
	return scheduler.NewItem(op.Type, level, load)
}

// run executes op under its lock. The lock owner of ctx is kept; a fresh one
// is minted when ctx carries none.
func (x *Executor) run(ctx context.Context, op *Op) (err error) {
	if _, ok := mailboxlock.OwnerFromContext(ctx); !ok {
		ctx = mailboxlock.NewOwnerContext(ctx)
	}

	defer func() {
		if r := recover(); r != nil {
			x.logger.Errorf("operation %s on mailbox %d panicked: %v", op.Type, op.MailboxID, r)
			err = errors.NewPanicError(r)
		}
	}()

	body := func(ctx context.Context) error {
		if err := op.Run(ctx); err != nil {
			return errors.NewOperationError(op.Type, err)
		}
		return nil
	}

	if op.Lock != nil {
		return op.Lock.With(ctx, op.Exclusive, body)
	}
	return body(ctx)
}

func (x *Executor) logTiming(op *Op, item *scheduler.Item, submitted, admitted time.Time, err error) {
	if !x.logger.Enabled(x.timingLevel) {
		return
	}
	log.Log(x.logger, x.timingLevel,
		"operation %s mailbox=%d priority=%s load=%d queued=%s ran=%s err=%v",
		op.Type, op.MailboxID, item.Priority(), item.Load(),
		admitted.Sub(submitted), time.Since(admitted), err)
}
