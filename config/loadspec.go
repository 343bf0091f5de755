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
	"github.com/Zimbra/zm-mailbox-sub090/errors"
	"github.com/Zimbra/zm-mailbox-sub090/internal/validation"
)

// DefaultLoadSpec applies to operation types without an override.
var DefaultLoadSpec = LoadSpec{Load: 1}

// LoadSpec describes the cost of an operation type. The cost grows with the
// number of entries the operation touches.
type LoadSpec struct {
	// Load is the base cost.
	Load int
	// MaxLoad caps the computed cost. Zero means no cap.
	MaxLoad int
	// Scale is the cost added per batch entry.
	Scale int
}

// Compute returns the load of one execution touching batchSize entries.
// The result is never below 1.
func (s LoadSpec) Compute(batchSize int) int {
	if batchSize < 0 {
		batchSize = 0
	}
	load := s.Load + s.Scale*batchSize
	if s.MaxLoad > 0 && load > s.MaxLoad {
		load = s.MaxLoad
	}
	if load < 1 {
		load = 1
	}
	return load
}

// Validate checks the spec for negative or inconsistent values.
func (s LoadSpec) Validate() error {
	return validation.New(errors.ErrInvalidLoadSpec).
		AddValidator(validation.NewPositiveValidator("load", s.Load)).
		AddValidator(validation.NewRangeValidator("maxLoad", s.MaxLoad, 0, 0)).
		AddValidator(validation.NewRangeValidator("scale", s.Scale, 0, 0)).
		AddAssertion(s.MaxLoad == 0 || s.MaxLoad >= s.Load, "the [maxLoad] must not be below [load]").
		Validate()
}
