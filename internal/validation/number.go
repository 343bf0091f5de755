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

package validation

import "fmt"

// intRange checks min <= value <= max. A max of zero means unbounded.
type intRange struct {
	field string
	value int
	min   int
	max   int
}

// NewRangeValidator checks an integer field against [min, max]. A max of zero
// leaves the range open above.
func NewRangeValidator(field string, value, min, max int) Validator {
	return intRange{field: field, value: value, min: min, max: max}
}

// NewPositiveValidator requires value > 0.
func NewPositiveValidator(field string, value int) Validator {
	return intRange{field: field, value: value, min: 1}
}

func (r intRange) Validate() error {
	switch {
	case r.value < r.min:
		return fmt.Errorf("the [%s] must be at least %d, got %d", r.field, r.min, r.value)
	case r.max > 0 && r.value > r.max:
		return fmt.Errorf("the [%s] must be at most %d, got %d", r.field, r.max, r.value)
	}
	return nil
}
