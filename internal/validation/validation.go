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

// Package validation accumulates configuration checks into a single error.
package validation

import (
	"fmt"

	"go.uber.org/multierr"
)

// Validator checks one value.
type Validator interface {
	Validate() error
}

// Chain runs validators in order and reports their violations as one *Error.
type Chain struct {
	sentinel   error
	failFast   bool
	validators []Validator
}

// ChainOption configures a validation chain at creation time.
type ChainOption func(*Chain)

// FailFast stops the chain at the first violation.
func FailFast() ChainOption {
	return func(c *Chain) { c.failFast = true }
}

// New creates a chain whose error matches sentinel with errors.Is. The
// sentinel may be nil.
func New(sentinel error, opts ...ChainOption) *Chain {
	chain := &Chain{sentinel: sentinel}
	for _, opt := range opts {
		opt(chain)
	}
	return chain
}

// AddValidator appends validators to the chain.
func (c *Chain) AddValidator(validators ...Validator) *Chain {
	c.validators = append(c.validators, validators...)
	return c
}

// AddAssertion appends a check that fails with the formatted message when ok
// is false.
func (c *Chain) AddAssertion(ok bool, format string, args ...any) *Chain {
	return c.AddValidator(assertion{ok: ok, format: format, args: args})
}

// Validate runs the chain. It returns nil or an *Error.
func (c *Chain) Validate() error {
	var violations []error
	for _, v := range c.validators {
		if err := v.Validate(); err != nil {
			violations = append(violations, err)
			if c.failFast {
				break
			}
		}
	}
	if len(violations) == 0 {
		return nil
	}
	return &Error{sentinel: c.sentinel, violations: violations}
}

// Error lists the violations found by a chain.
type Error struct {
	sentinel   error
	violations []error
}

// enforce compilation error
var _ error = (*Error)(nil)

// Violations returns the individual violations in chain order.
func (e *Error) Violations() []error {
	return e.violations
}

// Error implements the standard error interface
func (e *Error) Error() string {
	msg := multierr.Combine(e.violations...).Error()
	if e.sentinel == nil {
		return msg
	}
	return fmt.Sprintf("%v: %s", e.sentinel, msg)
}

func (e *Error) Unwrap() []error {
	if e.sentinel == nil {
		return e.violations
	}
	return append([]error{e.sentinel}, e.violations...)
}

type assertion struct {
	ok     bool
	format string
	args   []any
}

func (a assertion) Validate() error {
	if a.ok {
		return nil
	}
	return fmt.Errorf(a.format, a.args...)
}
