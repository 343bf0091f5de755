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

package config

import (
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
	"go.uber.org/atomic"

	"github.com/Zimbra/zm-mailbox-sub090/log"
)

// Diff lists the operation types added and removed by a catalog update.
type Diff struct {
	Added   []string
	Removed []string
}

// IsEmpty reports whether the update changed the set of operation types.
func (d Diff) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

// Catalog answers load lookups from the current configuration snapshot.
// Readers never block; Update swaps the snapshot whole.
type Catalog struct {
	snapshot *atomic.Pointer[Config]
	logger   log.Logger
}

// NewCatalog creates a Catalog serving cfg. A nil cfg serves Default().
func NewCatalog(cfg *Config, logger log.Logger) *Catalog {
	if cfg == nil {
		cfg = Default()
	}
	if logger == nil {
		logger = log.DiscardLogger
	}
	return &Catalog{
		snapshot: atomic.NewPointer(cfg),
		logger:   logger,
	}
}

// Config returns the current snapshot. Callers must not modify it.
func (c *Catalog) Config() *Config {
	return c.snapshot.Load()
}

// Load returns the load of opType for the given batch size.
func (c *Catalog) Load(opType string, batchSize int) int {
	return c.snapshot.Load().LoadSpec(opType).Compute(batchSize)
}

// Update installs cfg and logs the operation types it adds or removes.
func (c *Catalog) Update(cfg *Config) Diff {
	if cfg == nil {
		return Diff{}
	}
	previous := c.snapshot.Swap(cfg)

	before := mapset.NewThreadUnsafeSet(previous.OpNames()...)
	after := mapset.NewThreadUnsafeSet(cfg.OpNames()...)

	diff := Diff{
		Added:   after.Difference(before).ToSlice(),
		Removed: before.Difference(after).ToSlice(),
	}
	slices.Sort(diff.Added)
	slices.Sort(diff.Removed)

	if !diff.IsEmpty() {
		c.logger.Infof("operation catalog reloaded: added=%v removed=%v", diff.Added, diff.Removed)
	}
	return diff
}
