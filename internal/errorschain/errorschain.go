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

// Package errorschain runs shutdown steps in order and reports their
// failures as one error.
package errorschain

import (
	"fmt"

	"go.uber.org/multierr"
)

// Chain is an ordered list of steps. Steps run when Error is called.
type Chain struct {
	returnFirst bool
	steps       []step
}

type step struct {
	name string
	fn   func() error
}

// ChainOption configures an error chain at creation time.
type ChainOption func(*Chain)

// New creates an empty chain that runs every step.
func New(opts ...ChainOption) *Chain {
	chain := &Chain{}
	for _, opt := range opts {
		opt(chain)
	}
	return chain
}

// ReturnFirst stops the chain at the first failing step; later steps do not run.
func ReturnFirst() ChainOption {
	return func(c *Chain) { c.returnFirst = true }
}

// AddError adds an error that was already computed.
func (c *Chain) AddError(err error) *Chain {
	return c.AddStep("", func() error { return err })
}

// AddStep adds a named step. A failure is reported as "name: err".
func (c *Chain) AddStep(name string, fn func() error) *Chain {
	c.steps = append(c.steps, step{name: name, fn: fn})
	return c
}

// Error runs the steps and returns their combined failures.
func (c *Chain) Error() error {
	var err error
	for _, s := range c.steps {
		stepErr := s.fn()
		if stepErr == nil {
			continue
		}
		if s.name != "" {
			stepErr = fmt.Errorf("%s: %w", s.name, stepErr)
		}
		if c.returnFirst {
			return stepErr
		}
		err = multierr.Append(err, stepErr)
	}
	return err
}
