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

package metric

import "go.opentelemetry.io/otel/metric"

// Rejection reasons recorded on mailbox.lock.rejected.
const (
	ReasonCapacity = "capacity"
	ReasonTimeout  = "timeout"
)

// LockMetric groups the mailbox lock instruments.
type LockMetric struct {
	rejected metric.Int64Counter
	wait     metric.Float64Histogram
}

// NewLockMetric creates the lock instruments using the provided Meter.
func NewLockMetric(meter metric.Meter) (*LockMetric, error) {
	var instruments LockMetric
	var err error

	if instruments.rejected, err = meter.Int64Counter(
		"mailbox.lock.rejected",
		metric.WithDescription("Lock requests rejected for capacity or timeout"),
	); err != nil {
		return nil, err
	}

	if instruments.wait, err = meter.Float64Histogram(
		"mailbox.lock.wait",
		metric.WithDescription("Time spent waiting for a mailbox lock"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	return &instruments, nil
}

// Rejected returns the rejection counter. Record it with a "reason" attribute.
func (x *LockMetric) Rejected() metric.Int64Counter {
	return x.rejected
}

// Wait returns the wait time histogram.
func (x *LockMetric) Wait() metric.Float64Histogram {
	return x.wait
}
