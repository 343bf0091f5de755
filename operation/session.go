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
	"sync"

	"github.com/google/uuid"

	"github.com/Zimbra/zm-mailbox-sub090/config"
	"github.com/Zimbra/zm-mailbox-sub090/priority"
)

// Session remembers the last operation types a client executed. A client
// repeating the same operation back to back is served one level less
// urgently so it cannot monopolize its priority level.
type Session struct {
	id   string
	size int

	mu      sync.Mutex
	history []string
	next    int
}

// NewSession creates a session remembering the last size operations.
// A size of zero or less uses the default of 5; the minimum is 3.
func NewSession(size int) *Session {
	if size <= 0 {
		size = config.DefaultSessionHistory
	}
	if size < config.MinSessionHistory {
		size = config.MinSessionHistory
	}
	return &Session{
		id:      uuid.NewString(),
		size:    size,
		history: make([]string, 0, size),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Size returns the history length.
func (s *Session) Size() int {
	return s.size
}

// Record appends an executed opType to the history, evicting the oldest
// entry when full.
func (s *Session) Record(opType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(opType)
}

// Count returns how many times opType appears in the history.
func (s *Session) Count(opType string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count(opType)
}

// History returns the remembered operation types, oldest first.
func (s *Session) History() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.history))
	if len(s.history) < s.size {
		return append(out, s.history...)
	}
	out = append(out, s.history[s.next:]...)
	return append(out, s.history[:s.next]...)
}

// Adjust returns base stepped one level less urgent when opType appears at
// least size-2 times in the history. It does not record opType; executors
// record an operation once it is admitted.
func (s *Session) Adjust(opType string, base priority.Priority) priority.Priority {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count(opType) >= s.size-2 {
		return base.Decrement()
	}
	return base
}

func (s *Session) record(opType string) {
	if len(s.history) < s.size {
		s.history = append(s.history, opType)
		return
	}
	s.history[s.next] = opType
	s.next = (s.next + 1) % s.size
}

func (s *Session) count(opType string) int {
	n := 0
	for _, t := range s.history {
		if t == opType {
			n++
		}
	}
	return n
}
