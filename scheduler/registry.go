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
	"golang.org/x/sync/errgroup"
)

// Registry holds the schedulers of every shard. It is built once at startup
// and passed by reference to the components that submit work.
type Registry struct {
	shards []*Scheduler
}

// NewRegistry creates shards schedulers sharing params and opts. A shard
// count below 1 is treated as 1.
func NewRegistry(shards int, params Params, opts ...Option) *Registry {
	if shards < 1 {
		shards = 1
	}
	registry := &Registry{shards: make([]*Scheduler, shards)}
	for i := range shards {
		shardOpts := append(append([]Option{}, opts...), WithShardID(i))
		registry.shards[i] = New(params, shardOpts...)
	}
	return registry
}

// For returns the scheduler owning mailboxID.
func (r *Registry) For(mailboxID int) *Scheduler {
	index := mailboxID % len(r.shards)
	if index < 0 {
		index = -index
	}
	return r.shards[index]
}

// Shards returns the number of shards.
func (r *Registry) Shards() int {
	return len(r.shards)
}

// Shard returns the scheduler of shard i.
func (r *Registry) Shard(i int) *Scheduler {
	return r.shards[i]
}

// UpdateParams installs params on every shard. Invalid params are rejected
// before any shard changes.
func (r *Registry) UpdateParams(params Params) error {
	if err := params.Validate(); err != nil {
		return err
	}
	for _, shard := range r.shards {
		if err := shard.UpdateParams(params); err != nil {
			return err
		}
	}
	return nil
}

// Snapshots returns the snapshot of every shard, in shard order.
func (r *Registry) Snapshots() []Snapshot {
	snapshots := make([]Snapshot, len(r.shards))
	for i, shard := range r.shards {
		snapshots[i] = shard.Snapshot()
	}
	return snapshots
}

// Close closes every shard concurrently.
func (r *Registry) Close() error {
	var eg errgroup.Group
	for _, shard := range r.shards {
		eg.Go(shard.Close)
	}
	return eg.Wait()
}
