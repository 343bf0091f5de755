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
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zimbra/zm-mailbox-sub090/errors"
	"github.com/Zimbra/zm-mailbox-sub090/log"
)

func TestLoadSpec(t *testing.T) {
	t.Run("default spec", func(t *testing.T) {
		assert.Equal(t, 1, DefaultLoadSpec.Compute(0))
		assert.Equal(t, 1, DefaultLoadSpec.Compute(500))
	})
	t.Run("scale and cap", func(t *testing.T) {
		spec := LoadSpec{Load: 5, MaxLoad: 50, Scale: 1}
		assert.Equal(t, 5, spec.Compute(0))
		assert.Equal(t, 15, spec.Compute(10))
		assert.Equal(t, 50, spec.Compute(1000))
		assert.Equal(t, 5, spec.Compute(-3))
	})
	t.Run("uncapped", func(t *testing.T) {
		spec := LoadSpec{Load: 2, Scale: 3}
		assert.Equal(t, 302, spec.Compute(100))
	})
	t.Run("never below one", func(t *testing.T) {
		assert.Equal(t, 1, LoadSpec{}.Compute(0))
	})
	t.Run("validate", func(t *testing.T) {
		require.NoError(t, LoadSpec{Load: 5, MaxLoad: 50, Scale: 1}.Validate())
		require.ErrorIs(t, LoadSpec{Load: 0}.Validate(), errors.ErrInvalidLoadSpec)
		require.ErrorIs(t, LoadSpec{Load: 1, Scale: -1}.Validate(), errors.ErrInvalidLoadSpec)
		err := LoadSpec{Load: 10, MaxLoad: 5}.Validate()
		require.ErrorIs(t, err, errors.ErrInvalidLoadSpec)
		assert.Contains(t, err.Error(), "maxLoad")
	})
}

func TestParseXML(t *testing.T) {
	t.Run("full document", func(t *testing.T) {
		doc := `<operations targetLoad="10" maxConcurrent="1000,1000,500,200,100">
  <default load="2" maxLoad="0" scale="0"/>
  <op name="Search" load="5" maxLoad="50" scale="1"/>
  <op name="Deliver" load="3" unknown="x"/>
</operations>`
		cfg, err := ParseXML(strings.NewReader(doc), log.DiscardLogger)
		require.NoError(t, err)
		assert.Empty(t, cfg.Warnings)
		assert.Equal(t, 10, cfg.TargetLoad)
		assert.True(t, cfg.HasMaxConcurrent())
		assert.Equal(t, [5]int{1000, 1000, 500, 200, 100}, cfg.MaxConcurrent)
		assert.Equal(t, LoadSpec{Load: 2}, cfg.Default)
		assert.Equal(t, LoadSpec{Load: 5, MaxLoad: 50, Scale: 1}, cfg.LoadSpec("Search"))
		assert.Equal(t, LoadSpec{Load: 3}, cfg.LoadSpec("Deliver"))
		assert.Equal(t, LoadSpec{Load: 2}, cfg.LoadSpec("Tag"))
		assert.Equal(t, []string{"Deliver", "Search"}, cfg.OpNames())
	})
	t.Run("empty document uses defaults", func(t *testing.T) {
		cfg, err := ParseXML(strings.NewReader(`<operations/>`), nil)
		require.NoError(t, err)
		assert.Zero(t, cfg.TargetLoad)
		assert.False(t, cfg.HasMaxConcurrent())
		assert.Equal(t, DefaultLoadSpec, cfg.Default)
		assert.Empty(t, cfg.Ops)
	})
	t.Run("malformed values are defaulted with warnings", func(t *testing.T) {
		doc := `<operations targetLoad="lots" maxConcurrent="1,2,3">
  <op name="Search" load="five" scale="1"/>
  <op name="Move" load="4" maxLoad="2"/>
  <op load="3"/>
</operations>`
		cfg, err := ParseXML(strings.NewReader(doc), log.DiscardLogger)
		require.NoError(t, err)
		assert.Equal(t, DefaultTargetLoad, cfg.TargetLoad)
		assert.Equal(t, DefaultMaxConcurrent, cfg.MaxConcurrent)
		assert.Equal(t, LoadSpec{Load: 1, Scale: 1}, cfg.LoadSpec("Search"))
		assert.Equal(t, DefaultLoadSpec, cfg.LoadSpec("Move"))
		assert.Len(t, cfg.Warnings, 5)
	})
	t.Run("target load that would overflow the admin budget", func(t *testing.T) {
		doc := fmt.Sprintf(`<operations targetLoad="%d"/>`, MaxTargetLoad+1)
		cfg, err := ParseXML(strings.NewReader(doc), log.DiscardLogger)
		require.NoError(t, err)
		assert.Equal(t, DefaultTargetLoad, cfg.TargetLoad)
		assert.Len(t, cfg.Warnings, 1)

		doc = fmt.Sprintf(`<operations targetLoad="%d"/>`, MaxTargetLoad)
		cfg, err = ParseXML(strings.NewReader(doc), log.DiscardLogger)
		require.NoError(t, err)
		assert.Equal(t, MaxTargetLoad, cfg.TargetLoad)
	})
	t.Run("broken document", func(t *testing.T) {
		_, err := ParseXML(strings.NewReader(`<operations><op`), log.DiscardLogger)
		require.Error(t, err)
	})
	t.Run("wrong root element", func(t *testing.T) {
		_, err := ParseXML(strings.NewReader(`<ops/>`), log.DiscardLogger)
		require.Error(t, err)
	})
}

func TestParseMaxConcurrent(t *testing.T) {
	table, err := ParseMaxConcurrent(" 5, 4 ,3,2,1")
	require.NoError(t, err)
	assert.Equal(t, [5]int{5, 4, 3, 2, 1}, table)
	assert.Equal(t, "5,4,3,2,1", FormatMaxConcurrent(table))

	for _, value := range []string{"", "1,2,3,4", "1,2,3,4,5,6", "1,2,x,4,5", "1,2,0,4,5", "1,2,-3,4,5"} {
		_, err := ParseMaxConcurrent(value)
		assert.ErrorIs(t, err, errors.ErrInvalidTunable, value)
	}
}
