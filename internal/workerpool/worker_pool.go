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

// Package workerpool runs submitted tasks on a fixed set of goroutines.
// Submission never blocks: tasks are buffered in an unbounded FIFO until a
// worker picks them up.
package workerpool

import (
	"sync"

	"go.uber.org/atomic"

	"github.com/Zimbra/zm-mailbox-sub090/internal/queue"
)

const maxWorkers = 128

// WorkerPool executes tasks in submission order across its workers.
type WorkerPool struct {
	size         int
	panicHandler func(any)

	mu      sync.Mutex
	cond    *sync.Cond
	tasks   *queue.Queue[func()]
	started bool
	stopped bool
	wg      sync.WaitGroup

	executed *atomic.Uint64
	pending  *atomic.Int64
}

// New creates a new worker pool with the given options.
func New(opts ...Option) *WorkerPool {
	wp := &WorkerPool{
		size:     1,
		tasks:    queue.New[func()](),
		executed: atomic.NewUint64(0),
		pending:  atomic.NewInt64(0),
	}

	for _, opt := range opts {
		opt.Apply(wp)
	}

	if wp.size < 1 {
		wp.size = 1
	}

	wp.cond = sync.NewCond(&wp.mu)
	return wp
}

// Start spawns the workers. It's safe to call Start multiple times.
func (wp *WorkerPool) Start() {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if wp.started || wp.stopped {
		return
	}
	wp.started = true
	wp.wg.Add(wp.size)
	for range wp.size {
		go wp.work()
	}
}

// Stop prevents new submissions, lets the workers finish every task already
// submitted and waits for them to exit. Stop must not be called from a task.
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	if !wp.started || wp.stopped {
		wp.stopped = true
		wp.mu.Unlock()
		return
	}
	wp.stopped = true
	wp.cond.Broadcast()
	wp.mu.Unlock()
	wp.wg.Wait()
}

// SubmitWork queues a task for execution. It returns false, discarding the
// task, when the pool has not been started or is stopped.
func (wp *WorkerPool) SubmitWork(task func()) bool {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if !wp.started || wp.stopped {
		return false
	}
	wp.tasks.Push(task)
	wp.pending.Inc()
	wp.cond.Signal()
	return true
}

// Executed returns the number of tasks run so far.
func (wp *WorkerPool) Executed() uint64 {
	return wp.executed.Load()
}

// Pending returns the number of submitted tasks not yet run.
func (wp *WorkerPool) Pending() int {
	return int(wp.pending.Load())
}

// Size returns the number of workers.
func (wp *WorkerPool) Size() int {
	return wp.size
}

func (wp *WorkerPool) work() {
	defer wp.wg.Done()
	for {
		wp.mu.Lock()
		for wp.tasks.IsEmpty() && !wp.stopped {
			wp.cond.Wait()
		}
		task, ok := wp.tasks.Pop()
		wp.mu.Unlock()
		if !ok {
			// stopped and drained
			return
		}
		wp.run(task)
	}
}

func (wp *WorkerPool) run(task func()) {
	defer func() {
		wp.pending.Dec()
		wp.executed.Inc()
		if r := recover(); r != nil && wp.panicHandler != nil {
			wp.panicHandler(r)
		}
	}()
	task()
}
