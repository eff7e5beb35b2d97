// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package extract

import (
	"errors"

	"github.com/poiesic/docq/core"
)

// Config holds engine-wide extraction defaults. Per-job
// core.ExtractionOptions override individual fields for one call.
type Config struct {
	// Margins are the page trim margins in points.
	Margins core.Margins

	// HeaderMaxLevels caps how many distinct header levels the
	// heuristic strategy may assign. Default: 4
	HeaderMaxLevels int

	// HeaderBodyLimit is the maximum word count a line may have and
	// still be considered a header by the heuristic strategy. Default: 10
	HeaderBodyLimit int
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithMargins sets the page trim margins.
func WithMargins(m core.Margins) ConfigOption {
	return func(c *Config) {
		c.Margins = m
	}
}

// WithHeaderMaxLevels sets the heuristic header level cap.
func WithHeaderMaxLevels(levels int) ConfigOption {
	return func(c *Config) {
		c.HeaderMaxLevels = levels
	}
}

// WithHeaderBodyLimit sets the heuristic header word-count limit.
func WithHeaderBodyLimit(limit int) ConfigOption {
	return func(c *Config) {
		c.HeaderBodyLimit = limit
	}
}

// DefaultConfig returns a Config with the service defaults.
func DefaultConfig() *Config {
	return &Config{
		Margins:         core.DefaultMargins(),
		HeaderMaxLevels: 4,
		HeaderBodyLimit: 10,
	}
}

// NewConfig creates a Config with defaults and applies the options.
func NewConfig(opts ...ConfigOption) *Config {
	c := DefaultConfig()
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Validate checks that the configuration is valid and complete.
func (c *Config) Validate() error {
	if c.HeaderMaxLevels < 1 || c.HeaderMaxLevels > 6 {
		return errors.New("extract config: HeaderMaxLevels must be between 1 and 6")
	}
	if c.HeaderBodyLimit < 1 {
		return errors.New("extract config: HeaderBodyLimit must be at least 1")
	}
	return nil
}

// Resolve merges per-job options over the configured defaults.
func (c *Config) Resolve(opts core.ExtractionOptions) Config {
	resolved := *c
	if opts.Margins != nil {
		resolved.Margins = *opts.Margins
	}
	if opts.HeaderMaxLevels > 0 {
		resolved.HeaderMaxLevels = opts.HeaderMaxLevels
	}
	if opts.HeaderBodyLimit > 0 {
		resolved.HeaderBodyLimit = opts.HeaderBodyLimit
	}
	return resolved
}
