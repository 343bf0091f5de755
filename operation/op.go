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
	"context"

	"github.com/Zimbra/zm-mailbox-sub090/mailboxlock"
	"github.com/Zimbra/zm-mailbox-sub090/priority"
)

// Op packages one mailbox mutation or query behind a priority and a cost.
type Op struct {
	// Type names the operation, e.g. "Search". It selects the load spec.
	Type string
	// MailboxID selects the scheduler shard.
	MailboxID int
	// Requester gives the base priority.
	Requester Requester
	// Session, when set, applies the repeat penalty.
	Session *Session
	// BatchSize is the number of entries the operation touches.
	BatchSize int
	// Priority, when set, replaces the requester priority.
	Priority *priority.Priority
	// Lock, when set, is held around Run.
	Lock *mailboxlock.Lock
	// Exclusive selects the lock mode.
	Exclusive bool
	// Run does the work.
	Run func(ctx context.Context) error
}

// PriorityOf returns a pointer suitable for Op.Priority.
func PriorityOf(p priority.Priority) *priority.Priority {
	return &p
}

// EffectivePriority returns the priority the op is scheduled at, including
// the repeat penalty of its session.
func (o *Op) EffectivePriority() priority.Priority {
	base := o.Requester.Priority()
	if o.Priority != nil && o.Priority.IsValid() {
		base = *o.Priority
	}
	if o.Session != nil {
		return o.Session.Adjust(o.Type, base)
	}
	return base
}

// admitted records the op in its session once the scheduler let it run.
func (o *Op) admitted() {
	if o.Session != nil {
		o.Session.Record(o.Type)
	}
}
