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

package priority

import (
	"fmt"
	"strings"

	"github.com/Zimbra/zm-mailbox-sub090/errors"
)

// Priority is the urgency class of a unit of mailbox work.
//
// Lower values are more urgent: Admin is the most urgent level and Low the
// least. Ordering across levels is strict; within a level work is served in
// FIFO order.
type Priority int

const (
	// Admin is reserved for administrative requests. Admin work is always
	// admitted by the scheduler.
	Admin Priority = iota
	// InteractiveHigh is used by latency sensitive interactive clients.
	InteractiveHigh
	// InteractiveLow is used by interactive clients that tolerate some delay.
	InteractiveLow
	// Batch is used by synchronous batch protocols.
	Batch
	// Low is used for background work.
	Low
)

// Count is the number of priority levels.
const Count = 5

// MostUrgent and LeastUrgent bound the valid range.
const (
	MostUrgent  = Admin
	LeastUrgent = Low
)

var names = [Count]string{
	Admin:           "ADMIN",
	InteractiveHigh: "INTERACTIVE_HIGH",
	InteractiveLow:  "INTERACTIVE_LOW",
	Batch:           "BATCH",
	Low:             "LOW",
}

// All returns every level, most urgent first.
func All() []Priority {
	return []Priority{Admin, InteractiveHigh, InteractiveLow, Batch, Low}
}

// Parse returns the Priority matching name. Matching ignores case and accepts
// '-' in place of '_'.
func Parse(name string) (Priority, error) {
	normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(name), "-", "_"))
	for i, n := range names {
		if n == normalized {
			return Priority(i), nil
		}
	}
	return Low, fmt.Errorf("%w: unknown priority %q", errors.ErrInvalidPriority, name)
}

// IsValid reports whether p is one of the five levels.
func (p Priority) IsValid() bool {
	return p >= MostUrgent && p <= LeastUrgent
}

// Index returns the position of p in a [Count]-sized table, most urgent first.
func (p Priority) Index() int {
	return int(p)
}

// DistanceFromLow is the number of steps between p and Low.
func (p Priority) DistanceFromLow() int {
	return int(LeastUrgent - p)
}

// Increment returns the next more urgent level, saturating at Admin.
func (p Priority) Increment() Priority {
	if p <= MostUrgent {
		return MostUrgent
	}
	return p - 1
}

// Decrement returns the next less urgent level, saturating at Low.
func (p Priority) Decrement() Priority {
	if p >= LeastUrgent {
		return LeastUrgent
	}
	return p + 1
}

// MoreUrgentThan reports whether p is served ahead of other.
func (p Priority) MoreUrgentThan(other Priority) bool {
	return p < other
}

// String returns the level name.
func (p Priority) String() string {
	if !p.IsValid() {
		return fmt.Sprintf("Priority(%d)", int(p))
	}
	return names[p]
}

// MarshalText encodes the level by name.
func (p Priority) MarshalText() ([]byte, error) {
	if !p.IsValid() {
		return nil, fmt.Errorf("%w: %d", errors.ErrInvalidPriority, int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText decodes a level name.
func (p *Priority) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
