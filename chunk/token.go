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
	"fmt"
	"strings"
	"unicode"

	"github.com/poiesic/docq/core"
)

// TokenSplitter emits deterministic fixed-size sliding windows with
// overlap. Overlap regions intentionally duplicate content across
// consecutive chunks.
type TokenSplitter struct {
	size    int
	overlap int
}

var _ Splitter = (*TokenSplitter)(nil)

func errNegative(field string, value int) error {
	return fmt.Errorf("%w: %s must not be negative, got %d", ErrConfig, field, value)
}

// NewTokenSplitter creates a token-window splitter from the options.
// Zero size and overlap take the package defaults; the overlap must be
// strictly smaller than the window size.
func NewTokenSplitter(opts core.ChunkOptions) (*TokenSplitter, error) {
	if opts.Size < 0 {
		return nil, errNegative("chunk_size", opts.Size)
	}
	if opts.Overlap < 0 {
		return nil, errNegative("chunk_overlap", opts.Overlap)
	}

	size := opts.Size
	if size == 0 {
		size = DefaultTokenSize
	}
	overlap := opts.Overlap
	if overlap == 0 && opts.Size == 0 {
		overlap = DefaultOverlap
	}

	if overlap >= size {
		return nil, fmt.Errorf("%w: overlap %d must be smaller than chunk size %d", ErrConfig, overlap, size)
	}

	return &TokenSplitter{size: size, overlap: overlap}, nil
}

// Split walks the text with a window of the configured size. Window ends
// falling inside a word are snapped back to the nearest whitespace after
// the window start, with the hard cut as fallback. When the overlap step
// would stall, the start is forced to the previous end so progress is
// guaranteed; this shrinks the effective overlap near the end of text.
func (s *TokenSplitter) Split(text, filename string) ([]core.Chunk, error) {
	runes := []rune(text)
	length := len(runes)

	var chunks []core.Chunk
	ordinal := 0
	start := 0

	emit := func(from, to int) {
		trimmed := strings.TrimSpace(string(runes[from:to]))
		if trimmed == "" {
			return
		}
		chunks = append(chunks, core.Chunk{
			Text:      trimmed,
			Ordinal:   ordinal,
			StartChar: from,
			EndChar:   to,
			Filename:  filename,
		})
		ordinal++
	}

	for start < length {
		end := start + s.size
		if end >= length {
			emit(start, length)
			break
		}

		// Avoid splitting a word: snap the end back to the nearest
		// whitespace after the start, falling back to the hard cut.
		cut := end
		for i := end; i > start; i-- {
			if unicode.IsSpace(runes[i-1]) {
				cut = i
				break
			}
		}
		emit(start, cut)

		next := cut - s.overlap
		if next <= start {
			// Stalled; force forward progress.
			next = cut
		}
		start = next
	}

	return chunks, nil
}
