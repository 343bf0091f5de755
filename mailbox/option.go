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

package mailbox

import (
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/Zimbra/zm-mailbox-sub090/config"
	"github.com/Zimbra/zm-mailbox-sub090/log"
	"github.com/Zimbra/zm-mailbox-sub090/operation"
)

// Option is the interface that applies a Manager option.
type Option interface {
	// Apply sets the Option value of a Manager.
	Apply(m *Manager)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(m *Manager)

// Apply applies the Manager's option
func (f OptionFunc) Apply(m *Manager) {
	f(m)
}

// WithLogger sets the logger shared by the manager and what it creates
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	})
}

// WithConfig sets the initial operation configuration
func WithConfig(cfg *config.Config) Option {
	return OptionFunc(func(m *Manager) {
		m.config = cfg
	})
}

// WithMeterProvider sets the OpenTelemetry meter provider
func WithMeterProvider(mp otelmetric.MeterProvider) Option {
	return OptionFunc(func(m *Manager) {
		m.meterProvider = mp
	})
}

// WithPromotion installs the predicate telling whether a mailbox has pending
// exclusive intent. Fresh shared lock requests on that mailbox are then
// promoted to exclusive.
func WithPromotion(pending func(mailboxID int) bool) Option {
	return OptionFunc(func(m *Manager) {
		m.promote = pending
	})
}

// WithExecutorOptions passes options to the operation executor
func WithExecutorOptions(opts ...operation.Option) Option {
	return OptionFunc(func(m *Manager) {
		m.executorOpts = append(m.executorOpts, opts...)
	})
}
