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


package chunk

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/docq/core"
)

// headerLine matches one or more leading marker characters, whitespace,
// then title text.
var headerLine = regexp.MustCompile(`^(#+)[ \t]+(.+)$`)

// HeaderSplitter splits text at marker-prefixed header lines. Content
// before the first header is accumulated under a null header. Sections
// whose trimmed body falls below the minimum length are dropped, not
// merged into a neighbor.
type HeaderSplitter struct {
	minLength int
}

var _ Splitter = (*HeaderSplitter)(nil)

// NewHeaderSplitter creates a header splitter from the options.
// A zero MinLength means DefaultMinLength.
func NewHeaderSplitter(opts core.ChunkOptions) (*HeaderSplitter, error) {
	if opts.MinLength < 0 {
		return nil, errNegative("min_length", opts.MinLength)
	}
	minLength := opts.MinLength
	if minLength == 0 {
		minLength = DefaultMinLength
	}
	return &HeaderSplitter{minLength: minLength}, nil
}

// Split scans the text line by line, closing the accumulated section
// whenever a header line starts a new one, and flushes the final open
// section at end of input under the same minimum-length rule.
func (s *HeaderSplitter) Split(text, filename string) ([]core.Chunk, error) {
	lines := strings.Split(text, "\n")

	var (
		chunks    []core.Chunk
		body      []string
		header    string
		level     int
		startLine int
		ordinal   int
	)

	flush := func(endLine int) {
		trimmed := strings.TrimSpace(strings.Join(body, "\n"))
		if utf8.RuneCountInString(trimmed) < s.minLength {
			// Dropped, not merged into a neighbor.
			return
		}
		chunks = append(chunks, core.Chunk{
			Text:        trimmed,
			Ordinal:     ordinal,
			Header:      header,
			HeaderLevel: level,
			StartLine:   startLine,
			EndLine:     endLine,
			Filename:    filename,
		})
		ordinal++
	}

	for i, line := range lines {
		if m := headerLine.FindStringSubmatch(line); m != nil {
			flush(i - 1)
			header = strings.TrimSpace(m[2])
			level = len(m[1])
			startLine = i
			body = body[:0]
			continue
		}
		body = append(body, line)
	}
	flush(len(lines) - 1)

	return chunks, nil
}
