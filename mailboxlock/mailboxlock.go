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

// Package mailboxlock provides the per-mailbox reader/writer lock.
//
// The lock is reentrant per Owner, bounded in the number of parked requests
// and optionally time limited. A waiting exclusive request holds back new
// shared requests so writers are not starved. A shared hold cannot be
// upgraded in place: release it and acquire the exclusive lock instead.
package mailboxlock

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.uber.org/multierr"

	"github.com/Zimbra/zm-mailbox-sub090/errors"
	"github.com/Zimbra/zm-mailbox-sub090/internal/assert"
	"github.com/Zimbra/zm-mailbox-sub090/internal/metric"
	"github.com/Zimbra/zm-mailbox-sub090/log"
)

var (
	capacityAttrs = otelmetric.WithAttributes(attribute.String("reason", metric.ReasonCapacity))
	timeoutAttrs  = otelmetric.WithAttributes(attribute.String("reason", metric.ReasonTimeout))
)

type waiter struct {
	owner     Owner
	exclusive bool
	ready     chan struct{}
	granted   bool
}

// Lock is the lock of one mailbox.
type Lock struct {
	mailboxID  int
	maxWaiters int
	timeout    time.Duration
	promote    func() bool
	logger     log.Logger
	metric     *metric.LockMetric

	mu          sync.Mutex
	writer      Owner
	writerHolds int
	readers     map[Owner]int
	waiters     []*waiter
	retired     bool
}

// New creates the lock of mailboxID.
func New(mailboxID int, opts ...Option) *Lock {
	l := &Lock{
		mailboxID:  mailboxID,
		maxWaiters: DefaultMaxWaiters,
		logger:     log.DefaultLogger,
		readers:    make(map[Owner]int),
	}
	for _, opt := range opts {
		opt.Apply(l)
	}
	return l
}

// MailboxID returns the mailbox the lock protects.
func (l *Lock) MailboxID() int {
	return l.mailboxID
}

// MaxWaiters returns the waiter cap.
func (l *Lock) MaxWaiters() int {
	return l.maxWaiters
}

// Lock acquires the lock for the owner carried by ctx, in exclusive or
// shared mode. An owner already holding the lock in any mode acquires it
// again without waiting, except that a shared holder asking for exclusive
// gets errors.ErrLockUpgrade. When the request must wait and the waiter cap
// is reached, errors.ErrLockCapacity is returned at once. A request that
// times out gets errors.ErrLockTimeout; a request whose ctx is done gets
// ctx.Err(). A retired lock fails every request with
// errors.ErrMailboxEvicted.
func (l *Lock) Lock(ctx context.Context, exclusive bool) error {
	owner, ok := OwnerFromContext(ctx)
	if !ok {
		return errors.NewLockError(l.mailboxID, errors.ErrOwnerRequired)
	}

	// consulted before taking the mutex: the predicate may call back into the lock
	promoted := !exclusive && l.promote != nil && l.promote()

	l.mu.Lock()
	if l.retired {
		l.mu.Unlock()
		return errors.NewLockError(l.mailboxID, errors.ErrMailboxEvicted)
	}

	if l.writer == owner {
		l.writerHolds++
		l.mu.Unlock()
		return nil
	}

	if holds := l.readers[owner]; holds > 0 {
		if exclusive {
			l.mu.Unlock()
			assert.That(false, fmt.Sprintf("mailbox %d: owner %s upgrading a shared hold", l.mailboxID, owner))
			l.logger.Warnf("mailbox %d: owner %s asked for the exclusive lock while holding it shared", l.mailboxID, owner)
			return errors.NewLockError(l.mailboxID, errors.ErrLockUpgrade)
		}
		l.readers[owner] = holds + 1
		l.mu.Unlock()
		return nil
	}

	if promoted {
		exclusive = true
	}

	if l.grantable(exclusive) {
		l.grant(owner, exclusive)
		l.mu.Unlock()
		return nil
	}

	if len(l.waiters) >= l.maxWaiters {
		waiting := len(l.waiters)
		l.mu.Unlock()
		l.logger.Debugf("mailbox %d: lock rejected, %d waiters", l.mailboxID, waiting)
		l.reject(ctx, capacityAttrs)
		return errors.NewLockError(l.mailboxID, errors.ErrLockCapacity)
	}

	w := &waiter{owner: owner, exclusive: exclusive, ready: make(chan struct{})}
	l.waiters = append(l.waiters, w)
	l.mu.Unlock()

	start := time.Now()
	var expired <-chan time.Time
	if l.timeout > 0 {
		timer := time.NewTimer(l.timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-w.ready:
		l.recordWait(ctx, start)
		return nil
	case <-expired:
		if l.abandon(w) {
			l.reject(ctx, timeoutAttrs)
			return errors.NewLockError(l.mailboxID, errors.ErrLockTimeout)
		}
	case <-ctx.Done():
		if l.abandon(w) {
			return ctx.Err()
		}
	}
	// granted while giving up
	l.recordWait(ctx, start)
	return nil
}

// Release drops one hold of the owner carried by ctx. When the owner's hold
// count reaches zero the lock passes to the first waiting exclusive request
// or, when there is none, to every waiting shared request.
func (l *Lock) Release(ctx context.Context) error {
	owner, ok := OwnerFromContext(ctx)
	if !ok {
		return errors.NewLockError(l.mailboxID, errors.ErrOwnerRequired)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.writer == owner {
		l.writerHolds--
		if l.writerHolds == 0 {
			l.writer = ""
			l.dispatch()
		}
		return nil
	}

	holds := l.readers[owner]
	if holds == 0 {
		return errors.NewLockError(l.mailboxID, errors.ErrNotLockOwner)
	}
	if holds == 1 {
		delete(l.readers, owner)
		l.dispatch()
		return nil
	}
	l.readers[owner] = holds - 1
	return nil
}

// With runs fn while holding the lock and releases it on every exit path.
func (l *Lock) With(ctx context.Context, exclusive bool, fn func(ctx context.Context) error) (err error) {
	if err := l.Lock(ctx, exclusive); err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, l.Release(ctx))
	}()
	return fn(ctx)
}

// HoldCount returns the number of holds of the owner carried by ctx.
func (l *Lock) HoldCount(ctx context.Context) int {
	owner, ok := OwnerFromContext(ctx)
	if !ok {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.writer == owner {
		return l.writerHolds
	}
	return l.readers[owner]
}

// IsExclusivelyHeldBy reports whether the owner carried by ctx holds the
// lock in exclusive mode.
func (l *Lock) IsExclusivelyHeldBy(ctx context.Context) bool {
	owner, ok := OwnerFromContext(ctx)
	if !ok {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writer == owner
}

// IsUnlocked reports whether no owner holds the lock.
func (l *Lock) IsUnlocked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writer == "" && len(l.readers) == 0
}

// HasQueuedWaiters reports whether any request is parked.
func (l *Lock) HasQueuedWaiters() bool {
	return l.QueueLength() > 0
}

// QueueLength returns the number of parked requests.
func (l *Lock) QueueLength() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.waiters)
}

// IsIdle reports whether the lock is neither held nor waited on.
func (l *Lock) IsIdle() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.idle()
}

// Retire makes an idle lock refuse every later request with
// errors.ErrMailboxEvicted. It returns false and changes nothing when the
// lock is held or waited on. Retiring twice succeeds.
func (l *Lock) Retire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.idle() {
		return false
	}
	l.retired = true
	return true
}

// IsRetired reports whether Retire succeeded on the lock.
func (l *Lock) IsRetired() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.retired
}

func (l *Lock) idle() bool {
	return l.writer == "" && len(l.readers) == 0 && len(l.waiters) == 0
}

// grantable must be called with the mutex held. Fresh requests never pass
// parked ones of the kind that would block them.
func (l *Lock) grantable(exclusive bool) bool {
	if l.writer != "" {
		return false
	}
	if exclusive {
		return len(l.readers) == 0 && len(l.waiters) == 0
	}
	return !l.hasExclusiveWaiter()
}

func (l *Lock) hasExclusiveWaiter() bool {
	return slices.ContainsFunc(l.waiters, func(w *waiter) bool { return w.exclusive })
}

func (l *Lock) grant(owner Owner, exclusive bool) {
	if exclusive {
		l.writer = owner
		l.writerHolds = 1
		return
	}
	l.readers[owner]++
}

// dispatch hands the lock to parked requests after a release or an
// abandoned wait. It must be called with the mutex held.
func (l *Lock) dispatch() {
	if l.writer != "" || len(l.waiters) == 0 {
		return
	}

	if index := slices.IndexFunc(l.waiters, func(w *waiter) bool { return w.exclusive }); index >= 0 {
		if len(l.readers) == 0 {
			w := l.waiters[index]
			l.waiters = slices.Delete(l.waiters, index, index+1)
			l.wake(w)
		}
		return
	}

	for _, w := range l.waiters {
		l.wake(w)
	}
	l.waiters = l.waiters[:0]
}

func (l *Lock) wake(w *waiter) {
	l.grant(w.owner, w.exclusive)
	w.granted = true
	close(w.ready)
}

// abandon withdraws a parked request. It returns false when the request was
// granted in the meantime, in which case the caller holds the lock.
func (l *Lock) abandon(w *waiter) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if w.granted {
		return false
	}
	if index := slices.Index(l.waiters, w); index >= 0 {
		l.waiters = slices.Delete(l.waiters, index, index+1)
	}
	// a withdrawn exclusive request may have been holding back shared ones
	l.dispatch()
	return true
}

func (l *Lock) reject(ctx context.Context, attrs otelmetric.MeasurementOption) {
	if l.metric != nil {
		l.metric.Rejected().Add(context.WithoutCancel(ctx), 1, attrs)
	}
}

func (l *Lock) recordWait(ctx context.Context, start time.Time) {
	if l.metric != nil {
		l.metric.Wait().Record(context.WithoutCancel(ctx), float64(time.Since(start))/float64(time.Millisecond))
	}
}
