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

// Package scheduler implements load based admission control for mailbox work.
//
// A Scheduler admits work items immediately while the load budget of their
// priority level allows it and queues them otherwise. Every admitted item
// must be reported through Completed, which releases its load and admits
// queued items, most urgent level first and FIFO within a level.
//
// The budget of a level is TargetLoad * 2^(distance from Low), so with a
// TargetLoad of 10 Low may run 10 units of load and Admin 160. Admin items are
// always admitted, and any item is admitted on an idle scheduler regardless of
// its load.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.uber.org/atomic"

	"github.com/Zimbra/zm-mailbox-sub090/config"
	"github.com/Zimbra/zm-mailbox-sub090/errors"
	"github.com/Zimbra/zm-mailbox-sub090/internal/assert"
	"github.com/Zimbra/zm-mailbox-sub090/internal/metric"
	"github.com/Zimbra/zm-mailbox-sub090/internal/queue"
	"github.com/Zimbra/zm-mailbox-sub090/internal/workerpool"
	"github.com/Zimbra/zm-mailbox-sub090/log"
	"github.com/Zimbra/zm-mailbox-sub090/priority"
)

// Snapshot is a diagnostic copy of a scheduler state.
type Snapshot struct {
	Shard        int
	Params       Params
	CurrentLoad  int
	TotalRunning int
	Running      [priority.Count]int
	Queued       [priority.Count]int
	// SignalsPending counts admission signals handed to the signal workers
	// and not yet delivered.
	SignalsPending int
	// SignalsDelivered counts admission signals delivered so far.
	SignalsDelivered uint64
}

// TotalQueued returns the number of waiting items across levels.
func (s Snapshot) TotalQueued() int {
	total := 0
	for _, n := range s.Queued {
		total += n
	}
	return total
}

// Scheduler is the admission controller of one shard.
type Scheduler struct {
	shard         int
	logger        log.Logger
	signalWorkers int
	meterProvider otelmetric.MeterProvider

	params *atomic.Pointer[Params]

	mu           sync.Mutex
	queues       [priority.Count]*queue.Queue[*Item]
	currentLoad  int
	running      [priority.Count]int
	totalRunning int
	closed       bool

	pool         *workerpool.WorkerPool
	metrics      *metric.SchedulerMetric
	registration otelmetric.Registration
	attrs        [priority.Count]otelmetric.MeasurementOption
}

// New creates a Scheduler. A malformed concurrency table or target load is
// replaced by its default with a warning.
func New(params Params, opts ...Option) *Scheduler {
	x := &Scheduler{
		logger:        log.DefaultLogger,
		signalWorkers: 1,
	}
	for _, opt := range opts {
		opt.Apply(x)
	}

	x.params = atomic.NewPointer(x.sanitize(params))
	for i := range x.queues {
		x.queues[i] = queue.New[*Item]()
	}

	x.pool = workerpool.New(
		workerpool.WithSize(x.signalWorkers),
		workerpool.WithPanicHandler(func(v any) {
			x.logger.Errorf("shard %d: admission signal panicked: %v", x.shard, v)
		}))
	x.pool.Start()

	x.setupMetrics()
	return x
}

// Shard returns the shard number.
func (x *Scheduler) Shard() int {
	return x.shard
}

// Params returns the parameters in effect.
func (x *Scheduler) Params() Params {
	return *x.params.Load()
}

// Schedule admits item or blocks until it is admitted. On a nil return the
// item is running and the caller must call Completed once done. When the
// item is failed while queued, the failure error is returned and Completed
// is not required. When ctx is done while the item is queued, the item is
// withdrawn and ctx.Err() is returned; an item admitted at the same time
// stays admitted and nil is returned.
func (x *Scheduler) Schedule(ctx context.Context, item *Item) error {
	x.mu.Lock()
	if err := x.checkSubmit(item); err != nil {
		x.mu.Unlock()
		return err
	}
	if x.isAdmittable(item) {
		x.admit(item)
		x.mu.Unlock()
		return nil
	}
	x.enqueue(item)
	x.mu.Unlock()

	select {
	case <-item.wake:
		return item.Err()
	case <-ctx.Done():
	}

	x.mu.Lock()
	if item.State() == StateQueued {
		x.queues[item.priority.Index()].Remove(func(it *Item) bool { return it == item })
		x.failLocked(item, ctx.Err())
		// the head of the queue may have changed
		x.scan()
		x.mu.Unlock()
		return ctx.Err()
	}
	x.mu.Unlock()
	<-item.wake
	return item.Err()
}

// ScheduleAsync is the non-blocking variant of Schedule. When admitted is
// true the item is running and the caller proceeds synchronously. Otherwise
// the item is queued and signal is later called on a scheduler goroutine,
// either once the item is admitted or with item.Err() set when it was failed.
// The signal must be safe to call from another goroutine and must arrange for
// Completed to be called on an admitted item.
func (x *Scheduler) ScheduleAsync(item *Item, signal func(*Item)) (admitted bool, err error) {
	if signal == nil {
		return false, errors.ErrNilSignal
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.checkSubmit(item); err != nil {
		return false, err
	}
	if x.isAdmittable(item) {
		x.admit(item)
		return true, nil
	}
	item.signal = signal
	x.enqueue(item)
	return false, nil
}

// Completed releases an admitted item and admits queued items as the budget
// allows. Only the head of the most urgent non-empty queue is considered at
// each step; the scan stops at the first head that does not fit.
//
// Completing a failed item does nothing. Completing an item that was never
// admitted, or twice, is a programming error.
func (x *Scheduler) Completed(item *Item) {
	x.mu.Lock()
	defer x.mu.Unlock()

	switch state := item.State(); state {
	case StateRunning:
		level := item.priority.Index()
		x.currentLoad -= item.load
		x.running[level]--
		x.totalRunning--
		assert.That(x.currentLoad >= 0, "current load went negative")
		item.setState(StateDone)
		x.scan()
	case StateFailed:
	default:
		assert.That(false, fmt.Sprintf("completed %s in state %s", item, state))
		x.logger.Warnf("shard %d: ignoring completion of %s in state %s", x.shard, item, state)
	}
}

// Fail wakes a queued item with err instead of admitting it. It returns false
// when the item was not queued.
func (x *Scheduler) Fail(item *Item, err error) bool {
	if err == nil {
		err = errors.ErrNotAdmitted
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if item.State() != StateQueued {
		return false
	}
	x.queues[item.priority.Index()].Remove(func(it *Item) bool { return it == item })
	x.failLocked(item, err)
	x.scan()
	return true
}

// UpdateParams validates and installs params, then admits the queued items
// the new budget allows.
func (x *Scheduler) UpdateParams(params Params) error {
	if err := params.Validate(); err != nil {
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.params.Store(&params)
	x.logger.Infof("shard %d: target load %d, max concurrent %v", x.shard, params.TargetLoad, params.MaxConcurrent)
	x.scan()
	return nil
}

// Snapshot returns a copy of the counters, queue lengths and params.
func (x *Scheduler) Snapshot() Snapshot {
	x.mu.Lock()
	defer x.mu.Unlock()
	snapshot := Snapshot{
		Shard:        x.shard,
		Params:       *x.params.Load(),
		CurrentLoad:  x.currentLoad,
		TotalRunning: x.totalRunning,
		Running:      x.running,
		SignalsPending:   x.pool.Pending(),
		SignalsDelivered: x.pool.Executed(),
	}
	for i, q := range x.queues {
		snapshot.Queued[i] = q.Len()
	}
	return snapshot
}

// Close fails every queued item with errors.ErrSchedulerClosed and waits for
// pending signals to be delivered. Running items may still be completed.
// Close must not be called from a signal.
func (x *Scheduler) Close() error {
	x.mu.Lock()
	if x.closed {
		x.mu.Unlock()
		return nil
	}
	x.closed = true
	for _, q := range x.queues {
		for _, item := range q.Drain() {
			x.failLocked(item, errors.ErrSchedulerClosed)
		}
	}
	x.mu.Unlock()

	x.pool.Stop()
	if x.registration != nil {
		return x.registration.Unregister()
	}
	return nil
}

func (x *Scheduler) checkSubmit(item *Item) error {
	if x.closed {
		return errors.ErrSchedulerClosed
	}
	if state := item.State(); state != StateNew {
		assert.That(false, fmt.Sprintf("submitted %s in state %s", item, state))
		return errors.ErrItemInUse
	}
	return nil
}

// isAdmittable must be called with the mutex held.
func (x *Scheduler) isAdmittable(item *Item) bool {
	if x.currentLoad == 0 {
		return true
	}
	if item.priority == priority.Admin {
		return true
	}
	params := x.params.Load()
	level := item.priority
	return x.totalRunning+1 < params.MaxConcurrent[level.Index()] &&
		item.load < params.TargetLoadFor(level)-x.currentLoad
}

func (x *Scheduler) admit(item *Item) {
	level := item.priority.Index()
	x.currentLoad += item.load
	x.running[level]++
	x.totalRunning++
	item.setState(StateRunning)
	if x.metrics != nil {
		x.metrics.Admitted().Add(context.Background(), 1, x.attrs[level])
	}
}

func (x *Scheduler) enqueue(item *Item) {
	level := item.priority.Index()
	item.setState(StateQueued)
	x.queues[level].Push(item)
	x.logger.Debugf("shard %d: queued %s, load %d/%d, running %d",
		x.shard, item, x.currentLoad, x.params.Load().TargetLoadFor(item.priority), x.totalRunning)
	if x.metrics != nil {
		x.metrics.QueuedTotal().Add(context.Background(), 1, x.attrs[level])
	}
}

// failLocked marks an item that already left its queue as failed and wakes it.
func (x *Scheduler) failLocked(item *Item, err error) {
	item.err.Store(err)
	item.setState(StateFailed)
	if x.metrics != nil {
		x.metrics.Failed().Add(context.Background(), 1, x.attrs[item.priority.Index()])
	}
	x.notify(item)
}

// scan admits queue heads, most urgent level first, until the head of the
// first non-empty queue does not fit or every queue is empty.
func (x *Scheduler) scan() {
	for {
		q := x.firstNonEmpty()
		if q == nil {
			return
		}
		head, _ := q.Peek()
		if !x.isAdmittable(head) {
			return
		}
		q.Pop()
		x.admit(head)
		x.logger.Debugf("shard %d: admitted queued %s", x.shard, head)
		x.notify(head)
	}
}

func (x *Scheduler) firstNonEmpty() *queue.Queue[*Item] {
	for _, q := range x.queues {
		if !q.IsEmpty() {
			return q
		}
	}
	return nil
}

// notify wakes a blocked submitter or hands a non-blocking one to the
// signal workers.
func (x *Scheduler) notify(item *Item) {
	close(item.wake)
	if signal := item.signal; signal != nil {
		item.signal = nil
		if !x.pool.SubmitWork(func() { signal(item) }) {
			go signal(item)
		}
	}
}

func (x *Scheduler) sanitize(params Params) *Params {
	defaults := DefaultParams()
	if params.TargetLoad <= 0 || params.TargetLoad > config.MaxTargetLoad {
		x.logger.Warnf("shard %d: invalid target load %d, using %d", x.shard, params.TargetLoad, defaults.TargetLoad)
		params.TargetLoad = defaults.TargetLoad
	}
	if !params.validTable() {
		x.logger.Warnf("shard %d: invalid max concurrent table %v, using %v", x.shard, params.MaxConcurrent, defaults.MaxConcurrent)
		params.MaxConcurrent = defaults.MaxConcurrent
	}
	return &params
}

func (x *Scheduler) setupMetrics() {
	provider := metric.New(metric.WithMeterProvider(x.meterProvider))
	meter := provider.Meter()

	metrics, err := metric.NewSchedulerMetric(meter)
	if err != nil {
		x.logger.Warnf("shard %d: scheduler metrics disabled: %v", x.shard, err)
		return
	}

	shardAttr := attribute.Int("shard", x.shard)
	for _, level := range priority.All() {
		x.attrs[level.Index()] = otelmetric.WithAttributes(shardAttr, attribute.String("priority", level.String()))
	}

	registration, err := meter.RegisterCallback(func(_ context.Context, observer otelmetric.Observer) error {
		snapshot := x.Snapshot()
		observer.ObserveInt64(metrics.Load(), int64(snapshot.CurrentLoad), otelmetric.WithAttributes(shardAttr))
		for i := range priority.Count {
			observer.ObserveInt64(metrics.Running(), int64(snapshot.Running[i]), x.attrs[i])
			observer.ObserveInt64(metrics.Queued(), int64(snapshot.Queued[i]), x.attrs[i])
		}
		return nil
	}, metrics.Observables()...)
	if err != nil {
		x.logger.Warnf("shard %d: scheduler metrics disabled: %v", x.shard, err)
		return
	}

	x.metrics = metrics
	x.registration = registration
}
