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

package scheduler

import (
	"fmt"

	"go.uber.org/atomic"

	"github.com/Zimbra/zm-mailbox-sub090/internal/assert"
	"github.com/Zimbra/zm-mailbox-sub090/priority"
)

// State is the lifecycle stage of an Item.
type State int32

const (
	// StateNew is an item not yet submitted.
	StateNew State = iota
	// StateQueued is an item waiting for admission.
	StateQueued
	// StateRunning is an admitted item. It counts against the load budget
	// until Completed is called.
	StateRunning
	// StateFailed is an item woken with an error instead of being admitted.
	StateFailed
	// StateDone is a completed item.
	StateDone
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateQueued:
		return "queued"
	case StateRunning:
		return "running"
	case StateFailed:
		return "failed"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Item is one unit of work submitted to a Scheduler. An Item is used for a
// single submission and discarded after completion.
type Item struct {
	name     string
	priority priority.Priority
	load     int

	state *atomic.Int32
	err   *atomic.Error
	wake  chan struct{}

	// signal is set by ScheduleAsync. Guarded by the scheduler mutex.
	signal func(*Item)
}

// NewItem creates an item. A load below 1 counts as 1.
func NewItem(name string, level priority.Priority, load int) *Item {
	assert.That(level.IsValid(), "item priority out of range")
	if !level.IsValid() {
		level = priority.Low
	}
	if load < 1 {
		load = 1
	}
	return &Item{
		name:     name,
		priority: level,
		load:     load,
		state:    atomic.NewInt32(int32(StateNew)),
		err:      atomic.NewError(nil),
		wake:     make(chan struct{}),
	}
}

// Name returns the item name used in logs.
func (x *Item) Name() string {
	return x.name
}

// Priority returns the item priority.
func (x *Item) Priority() priority.Priority {
	return x.priority
}

// Load returns the item cost.
func (x *Item) Load() int {
	return x.load
}

// State returns the current lifecycle stage.
func (x *Item) State() State {
	return State(x.state.Load())
}

// Err returns the error the item was failed with, if any.
func (x *Item) Err() error {
	return x.err.Load()
}

// Done is closed once the item leaves the queue, admitted or failed.
func (x *Item) Done() <-chan struct{} {
	return x.wake
}

func (x *Item) String() string {
	return fmt.Sprintf("%s[%s load=%d]", x.name, x.priority, x.load)
}

func (x *Item) setState(s State) {
	x.state.Store(int32(s))
}
