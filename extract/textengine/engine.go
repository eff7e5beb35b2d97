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


package textengine

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/poiesic/docq/core"
	"github.com/poiesic/docq/extract"
)

var (
	markdownHeader = regexp.MustCompile(`^(#+)[ \t]+\S`)
	numberedHeader = regexp.MustCompile(`^(\d+(?:\.\d+)*)[.)]?[ \t]+(\S.*)$`)
)

// Engine implements extract.Engine for plain-text and markdown payloads.
//
// Documents that already carry heading markup are handled by the outline
// strategy, which trusts the embedded structure. Everything else goes
// through the heuristic strategy, which infers headers from typographic
// cues (numbered section lines, short all-caps lines) and rewrites them
// as marker-prefixed headers so downstream chunking sees one format.
type Engine struct {
	config *extract.Config
	logger *slog.Logger
}

var _ extract.Engine = (*Engine)(nil)

// newEngine is an internal constructor that returns the concrete type.
func newEngine(config *extract.Config) (*Engine, error) {
	if config == nil {
		config = extract.DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		config: config,
		logger: slog.Default().With("component", "textengine"),
	}, nil
}

// NewEngine creates a text engine using the provided configuration.
//
// Returns extract.Engine interface to enforce abstraction.
func NewEngine(config *extract.Config) (extract.Engine, error) {
	return newEngine(config)
}

// Extract converts the payload into text plus structural metadata.
func (e *Engine) Extract(ctx context.Context, payload []byte, filename string, opts core.ExtractionOptions) (*core.ExtractionResult, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: %w", extract.ErrExtraction, extract.ErrEmptyDocument)
	}
	if !utf8.Valid(payload) {
		return nil, fmt.Errorf("%w: payload of %q is not valid UTF-8 text", extract.ErrExtraction, filename)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", extract.ErrExtraction, err)
	}

	cfg := e.config.Resolve(opts)
	text := string(payload)
	pages := strings.Count(text, "\f") + 1
	text = strings.ReplaceAll(text, "\f", "\n")

	var (
		strategy string
		levels   int
	)
	if markdownHeaderCount(text) > 0 {
		strategy = extract.StrategyOutline
		levels = distinctMarkdownLevels(text)
	} else {
		strategy = extract.StrategyHeuristic
		text, levels = e.identifyHeaders(text, cfg)
	}

	e.logger.Debug("extracted document",
		"filename", filename, "strategy", strategy, "pages", pages, "levels", levels)

	return &core.ExtractionResult{
		Text: text,
		Metadata: core.ExtractionMetadata{
			Pages:           pages,
			HeadersStrategy: strategy,
			HeaderLevels:    levels,
			Margins:         cfg.Margins,
			OutputSizeChars: len(text),
		},
	}, nil
}

// markdownHeaderCount counts lines with explicit heading markup.
func markdownHeaderCount(text string) int {
	count := 0
	for _, line := range strings.Split(text, "\n") {
		if markdownHeader.MatchString(line) {
			count++
		}
	}
	return count
}

// distinctMarkdownLevels counts the distinct heading depths present.
func distinctMarkdownLevels(text string) int {
	seen := make(map[int]bool)
	for _, line := range strings.Split(text, "\n") {
		if m := markdownHeader.FindStringSubmatch(line); m != nil {
			seen[len(m[1])] = true
		}
	}
	return len(seen)
}

// identifyHeaders rewrites inferred header lines as marker-prefixed
// headers and returns the rewritten text with the distinct level count.
func (e *Engine) identifyHeaders(text string, cfg extract.Config) (string, int) {
	lines := strings.Split(text, "\n")
	seen := make(map[int]bool)

	for i, line := range lines {
		level := headerLevel(line, cfg)
		if level == 0 {
			continue
		}
		if level > cfg.HeaderMaxLevels {
			level = cfg.HeaderMaxLevels
		}
		seen[level] = true
		lines[i] = strings.Repeat("#", level) + " " + strings.TrimSpace(line)
	}

	return strings.Join(lines, "\n"), len(seen)
}

// headerLevel infers the heading depth of a line from typographic cues.
// Returns 0 for body lines.
func headerLevel(line string, cfg extract.Config) int {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return 0
	}
	if len(strings.Fields(trimmed)) > cfg.HeaderBodyLimit {
		return 0
	}

	// Numbered section lines: depth follows the dotted numbering.
	if m := numberedHeader.FindStringSubmatch(trimmed); m != nil {
		return strings.Count(m[1], ".") + 1
	}

	// Short all-caps lines read as top-level headings.
	hasLetter := false
	for _, r := range trimmed {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return 0
			}
		}
	}
	if hasLetter {
		return 1
	}
	return 0
}
