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

// Package queue provides the ring buffer backing the scheduler wait queues.
package queue

// minQueueLen is the smallest capacity that queue may have.
// Must be power of 2 for bitwise modulus: x % n == x & (n - 1).
const minQueueLen = 16

// Queue is a FIFO ring buffer. It is not safe for concurrent use: the
// scheduler owns one Queue per priority level and guards all of them with its
// own mutex.
// reference: https://blog.dubbelboer.com/2015/04/25/go-faster-queue.html
type Queue[T any] struct {
	nodes []T
	head  int
	tail  int
	count int
}

// New creates an empty Queue
func New[T any]() *Queue[T] {
	return &Queue[T]{
		nodes: make([]T, minQueueLen),
	}
}

// Push adds an item to the back of the queue
func (q *Queue[T]) Push(item T) {
	if q.count == len(q.nodes) {
		q.resize(q.count << 1)
	}
	q.nodes[q.tail] = item
	// bitwise modulus
	q.tail = (q.tail + 1) & (len(q.nodes) - 1)
	q.count++
}

// Peek returns the item at the front of the queue without removing it
func (q *Queue[T]) Peek() (T, bool) {
	if q.count == 0 {
		var zero T
		return zero, false
	}
	return q.nodes[q.head], true
}

// Pop removes the item from the front of the queue
func (q *Queue[T]) Pop() (T, bool) {
	var zero T
	if q.count == 0 {
		return zero, false
	}
	item := q.nodes[q.head]
	q.nodes[q.head] = zero
	q.head = (q.head + 1) & (len(q.nodes) - 1)
	q.count--
	q.shrink()
	return item, true
}

// Remove deletes the first item matching pred and keeps the order of the
// remaining items. It returns false when nothing matched.
func (q *Queue[T]) Remove(pred func(T) bool) bool {
	mask := len(q.nodes) - 1
	for k := 0; k < q.count; k++ {
		if !pred(q.nodes[(q.head+k)&mask]) {
			continue
		}
		for j := k; j < q.count-1; j++ {
			q.nodes[(q.head+j)&mask] = q.nodes[(q.head+j+1)&mask]
		}
		var zero T
		q.tail = (q.tail - 1) & mask
		q.nodes[q.tail] = zero
		q.count--
		q.shrink()
		return true
	}
	return false
}

// Drain removes and returns every item, front first.
func (q *Queue[T]) Drain() []T {
	items := make([]T, 0, q.count)
	for q.count > 0 {
		item, _ := q.Pop()
		items = append(items, item)
	}
	return items
}

// Len returns the current length of the queue.
func (q *Queue[T]) Len() int {
	return q.count
}

// IsEmpty returns true when the queue is empty
func (q *Queue[T]) IsEmpty() bool {
	return q.count == 0
}

// Cap returns the capacity of the ring
func (q *Queue[T]) Cap() int {
	return len(q.nodes)
}

// shrink resizes down when the buffer is 1/4 full.
func (q *Queue[T]) shrink() {
	if len(q.nodes) > minQueueLen && (q.count<<2) == len(q.nodes) {
		q.resize(q.count << 1)
	}
}

func (q *Queue[T]) resize(size int) {
	nodes := make([]T, size)
	if q.tail > q.head {
		copy(nodes, q.nodes[q.head:q.tail])
	} else if q.count > 0 {
		n := copy(nodes, q.nodes[q.head:])
		copy(nodes[n:], q.nodes[:q.tail])
	}

	q.tail = q.count & (size - 1)
	q.head = 0
	q.nodes = nodes
}
