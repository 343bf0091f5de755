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
	"time"

	"github.com/Zimbra/zm-mailbox-sub090/internal/metric"
	"github.com/Zimbra/zm-mailbox-sub090/log"
)

// DefaultMaxWaiters is the waiter cap used when none is configured.
const DefaultMaxWaiters = 15

// Option is the interface that applies a Lock option.
type Option interface {
	// Apply sets the Option value of a Lock.
	Apply(l *Lock)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(l *Lock)

// Apply applies the Lock's option
func (f OptionFunc) Apply(l *Lock) {
	f(l)
}

// WithMaxWaiters caps the number of parked requests. Values below 1 are
// ignored.
func WithMaxWaiters(n int) Option {
	return OptionFunc(func(l *Lock) {
		if n > 0 {
			l.maxWaiters = n
		}
	})
}

// WithTimeout bounds how long a request waits. Zero waits indefinitely.
func WithTimeout(timeout time.Duration) Option {
	return OptionFunc(func(l *Lock) {
		if timeout >= 0 {
			l.timeout = timeout
		}
	})
}

// WithPromotion installs the predicate consulted for every shared request;
// while it reports true a fresh request is treated as exclusive. The
// predicate runs without the lock mutex held, so it may query the lock.
func WithPromotion(pending func() bool) Option {
	return OptionFunc(func(l *Lock) {
		l.promote = pending
	})
}

// WithLogger sets the lock logger
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(l *Lock) {
		if logger != nil {
			l.logger = logger
		}
	})
}

// WithMetric records waits and rejections on the given instruments
func WithMetric(m *metric.LockMetric) Option {
	return OptionFunc(func(l *Lock) {
		l.metric = m
	})
}
