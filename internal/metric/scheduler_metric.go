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

// SchedulerMetric groups the instruments describing admission control.
//
// Instruments:
//   - mailbox.scheduler.load          (Int64ObservableGauge)
//   - mailbox.scheduler.running       (Int64ObservableGauge, per priority)
//   - mailbox.scheduler.queued        (Int64ObservableGauge, per priority)
//   - mailbox.scheduler.admitted      (Int64Counter)
//   - mailbox.scheduler.queued.total  (Int64Counter)
//   - mailbox.scheduler.failed        (Int64Counter)
type SchedulerMetric struct {
	load        metric.Int64ObservableGauge
	running     metric.Int64ObservableGauge
	queued      metric.Int64ObservableGauge
	admitted    metric.Int64Counter
	queuedTotal metric.Int64Counter
	failed      metric.Int64Counter
}

// NewSchedulerMetric creates the scheduler instruments using the provided
// Meter. It returns an error if any instrument cannot be created.
func NewSchedulerMetric(meter metric.Meter) (*SchedulerMetric, error) {
	var instruments SchedulerMetric
	var err error

	if instruments.load, err = meter.Int64ObservableGauge(
		"mailbox.scheduler.load",
		metric.WithDescription("Sum of the load of running work items"),
	); err != nil {
		return nil, err
	}

	if instruments.running, err = meter.Int64ObservableGauge(
		"mailbox.scheduler.running",
		metric.WithDescription("Number of running work items"),
	); err != nil {
		return nil, err
	}

	if instruments.queued, err = meter.Int64ObservableGauge(
		"mailbox.scheduler.queued",
		metric.WithDescription("Number of work items waiting for admission"),
	); err != nil {
		return nil, err
	}

	if instruments.admitted, err = meter.Int64Counter(
		"mailbox.scheduler.admitted",
		metric.WithDescription("Total number of admitted work items"),
	); err != nil {
		return nil, err
	}

	if instruments.queuedTotal, err = meter.Int64Counter(
		"mailbox.scheduler.queued.total",
		metric.WithDescription("Total number of work items that had to wait"),
	); err != nil {
		return nil, err
	}

	if instruments.failed, err = meter.Int64Counter(
		"mailbox.scheduler.failed",
		metric.WithDescription("Total number of queued work items failed before running"),
	); err != nil {
		return nil, err
	}

	return &instruments, nil
}

// Load returns the gauge observing the current load.
//
// Use with Meter.RegisterCallback to observe the current value periodically.
func (x *SchedulerMetric) Load() metric.Int64ObservableGauge {
	return x.load
}

// Running returns the gauge observing running items per priority.
func (x *SchedulerMetric) Running() metric.Int64ObservableGauge {
	return x.running
}

// Queued returns the gauge observing waiting items per priority.
func (x *SchedulerMetric) Queued() metric.Int64ObservableGauge {
	return x.queued
}

// Admitted returns the admission counter.
func (x *SchedulerMetric) Admitted() metric.Int64Counter {
	return x.admitted
}

// QueuedTotal returns the counter of items that were queued.
func (x *SchedulerMetric) QueuedTotal() metric.Int64Counter {
	return x.queuedTotal
}

// Failed returns the counter of queued items woken with an error.
func (x *SchedulerMetric) Failed() metric.Int64Counter {
	return x.failed
}

// Observables lists the instruments to pass to Meter.RegisterCallback.
func (x *SchedulerMetric) Observables() []metric.Observable {
	return []metric.Observable{x.load, x.running, x.queued}
}
