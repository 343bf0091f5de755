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
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/Zimbra/zm-mailbox-sub090/errors"
	"github.com/Zimbra/zm-mailbox-sub090/log"
	"github.com/Zimbra/zm-mailbox-sub090/priority"
)

const (
	// DefaultTargetLoad is the load budget of the least urgent level.
	DefaultTargetLoad = 100
	// MaxTargetLoad is the largest base budget whose Admin budget, doubled
	// once per level, still fits an int.
	MaxTargetLoad = math.MaxInt >> (priority.Count - 1)
)

// DefaultMaxConcurrent is the concurrency table used when none is configured
// or the configured one is malformed.
var DefaultMaxConcurrent = [priority.Count]int{1000, 1000, 1000, 1000, 1000}

// Config is the parsed operation configuration.
type Config struct {
	// TargetLoad is the base budget. Zero when the document does not set it.
	TargetLoad int
	// MaxConcurrent is the per-level table, most urgent first. All zeros when
	// the document does not set it.
	MaxConcurrent [priority.Count]int
	// Default applies to operation types without an override.
	Default LoadSpec
	// Ops holds per operation type overrides.
	Ops map[string]LoadSpec
	// Warnings lists the malformed values that were replaced by defaults.
	Warnings []string
}

// Default returns a Config with no overrides.
func Default() *Config {
	return &Config{
		Default: DefaultLoadSpec,
		Ops:     make(map[string]LoadSpec),
	}
}

// LoadSpec returns the spec of the given operation type.
func (c *Config) LoadSpec(opType string) LoadSpec {
	if spec, ok := c.Ops[opType]; ok {
		return spec
	}
	return c.Default
}

// HasMaxConcurrent reports whether the document set a concurrency table.
func (c *Config) HasMaxConcurrent() bool {
	return c.MaxConcurrent != [priority.Count]int{}
}

// OpNames returns the overridden operation types, sorted.
func (c *Config) OpNames() []string {
	names := make([]string, 0, len(c.Ops))
	for name := range c.Ops {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

type xmlLoadSpec struct {
	Load    string `xml:"load,attr"`
	MaxLoad string `xml:"maxLoad,attr"`
	Scale   string `xml:"scale,attr"`
}

type xmlOp struct {
	Name string `xml:"name,attr"`
	xmlLoadSpec
}

type xmlOperations struct {
	XMLName       xml.Name     `xml:"operations"`
	TargetLoad    string       `xml:"targetLoad,attr"`
	MaxConcurrent string       `xml:"maxConcurrent,attr"`
	Default       *xmlLoadSpec `xml:"default"`
	Ops           []xmlOp      `xml:"op"`
}

// LoadFile reads and parses the operation configuration at path.
func LoadFile(path string, logger log.Logger) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ParseXML(file, logger)
}

// ParseXML parses an operation configuration document. Malformed values are
// logged, recorded in Config.Warnings and replaced by their defaults; only a
// document that is not well formed is an error.
func ParseXML(r io.Reader, logger log.Logger) (*Config, error) {
	if logger == nil {
		logger = log.DiscardLogger
	}

	var doc xmlOperations
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse operations config: %w", err)
	}

	p := &parser{logger: logger}
	cfg := Default()

	if doc.TargetLoad != "" {
		cfg.TargetLoad = p.boundedInt("targetLoad", doc.TargetLoad, DefaultTargetLoad, 1, MaxTargetLoad)
	}

	if doc.MaxConcurrent != "" {
		table, err := ParseMaxConcurrent(doc.MaxConcurrent)
		if err != nil {
			p.warn("%v, using default table %v", err, DefaultMaxConcurrent)
			table = DefaultMaxConcurrent
		}
		cfg.MaxConcurrent = table
	}

	if doc.Default != nil {
		cfg.Default = p.loadSpec("default", *doc.Default, DefaultLoadSpec)
	}

	for _, op := range doc.Ops {
		name := strings.TrimSpace(op.Name)
		if name == "" {
			p.warn("operation without a name ignored")
			continue
		}
		cfg.Ops[name] = p.loadSpec(name, op.xmlLoadSpec, cfg.Default)
	}

	cfg.Warnings = p.warnings
	return cfg, nil
}

// ParseMaxConcurrent parses a comma separated list of five positive integers,
// most urgent level first.
func ParseMaxConcurrent(value string) ([priority.Count]int, error) {
	var table [priority.Count]int
	parts := strings.Split(value, ",")
	if len(parts) != priority.Count {
		return table, fmt.Errorf("%w: max concurrent %q needs %d values", errors.ErrInvalidTunable, value, priority.Count)
	}
	for i, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n <= 0 {
			return table, fmt.Errorf("%w: max concurrent %q has a bad value at position %d", errors.ErrInvalidTunable, value, i)
		}
		table[i] = n
	}
	return table, nil
}

// FormatMaxConcurrent is the inverse of ParseMaxConcurrent.
func FormatMaxConcurrent(table [priority.Count]int) string {
	parts := make([]string, len(table))
	for i, n := range table {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}

type parser struct {
	logger   log.Logger
	warnings []string
}

func (p *parser) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	p.warnings = append(p.warnings, msg)
	p.logger.Warn(msg)
}

func (p *parser) loadSpec(name string, raw xmlLoadSpec, fallback LoadSpec) LoadSpec {
	spec := LoadSpec{
		Load:    p.parseInt(name+".load", raw.Load, fallback.Load, 1),
		MaxLoad: p.parseInt(name+".maxLoad", raw.MaxLoad, fallback.MaxLoad, 0),
		Scale:   p.parseInt(name+".scale", raw.Scale, fallback.Scale, 0),
	}
	if err := spec.Validate(); err != nil {
		p.warn("%s: %v, using %+v", name, err, fallback)
		return fallback
	}
	return spec
}

func (p *parser) positiveInt(name, raw string, fallback int) int {
	return p.parseInt(name, raw, fallback, 1)
}

// parseInt parses raw, falling back when it is absent, not a number or below minimum.
func (p *parser) parseInt(name, raw string, fallback, minimum int) int {
	return p.boundedInt(name, raw, fallback, minimum, math.MaxInt)
}

func (p *parser) boundedInt(name, raw string, fallback, minimum, maximum int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < minimum || n > maximum {
		p.warn("invalid value %q for %s, using %d", raw, name, fallback)
		return fallback
	}
	return n
}
