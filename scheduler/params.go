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
	"github.com/Zimbra/zm-mailbox-sub090/config"
	"github.com/Zimbra/zm-mailbox-sub090/errors"
	"github.com/Zimbra/zm-mailbox-sub090/internal/validation"
	"github.com/Zimbra/zm-mailbox-sub090/priority"
)

// Params is an immutable snapshot of the admission parameters. Schedulers
// swap it whole on reload.
type Params struct {
	// TargetLoad is the load budget of the Low level. Every step toward Admin
	// doubles it.
	TargetLoad int
	// MaxConcurrent bounds the number of running items when an item of the
	// given level is considered, most urgent level first.
	MaxConcurrent [priority.Count]int
}

// DefaultParams returns the built-in parameters.
func DefaultParams() Params {
	return Params{
		TargetLoad:    config.DefaultTargetLoad,
		MaxConcurrent: config.DefaultMaxConcurrent,
	}
}

// ParamsFromTunables builds the parameters from operator tunables.
func ParamsFromTunables(t config.Tunables) Params {
	return Params{
		TargetLoad:    t.TargetLoad,
		MaxConcurrent: t.MaxConcurrent,
	}
}

// Apply overrides p with the values set in an operation configuration.
func (p Params) Apply(cfg *config.Config) Params {
	if cfg == nil {
		return p
	}
	if cfg.TargetLoad > 0 {
		p.TargetLoad = cfg.TargetLoad
	}
	if cfg.HasMaxConcurrent() {
		p.MaxConcurrent = cfg.MaxConcurrent
	}
	return p
}

// TargetLoadFor returns the budget of level: TargetLoad * 2^(distance from Low).
func (p Params) TargetLoadFor(level priority.Priority) int {
	return p.TargetLoad << level.DistanceFromLow()
}

// TargetLoads returns the budget of every level, most urgent first.
func (p Params) TargetLoads() [priority.Count]int {
	var loads [priority.Count]int
	for _, level := range priority.All() {
		loads[level.Index()] = p.TargetLoadFor(level)
	}
	return loads
}

// Validate checks that every value is positive and that the Admin budget
// does not overflow.
func (p Params) Validate() error {
	chain := validation.New(errors.ErrInvalidParams).
		AddValidator(validation.NewRangeValidator("targetLoad", p.TargetLoad, 1, config.MaxTargetLoad))
	for _, level := range priority.All() {
		chain.AddValidator(validation.NewPositiveValidator("maxConcurrent."+level.String(), p.MaxConcurrent[level.Index()]))
	}
	return chain.Validate()
}

func (p Params) validTable() bool {
	for _, n := range p.MaxConcurrent {
		if n <= 0 {
			return false
		}
	}
	return true
}
