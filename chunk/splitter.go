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

	"github.com/poiesic/docq/core"
)

// Default tuning values applied when options leave fields at zero.
const (
	DefaultMinLength = 100
	DefaultTokenSize = 512
	DefaultOverlap   = 64
)

// Splitter splits extracted text into ordered chunks.
// Implementations must be deterministic: the same input always produces
// the same chunks.
type Splitter interface {
	// Split chunks the text. The filename is attached to every emitted
	// chunk for downstream attribution.
	Split(text, filename string) ([]core.Chunk, error)
}

// New constructs the splitter selected by the options, validating the
// configuration up front. Returns ErrConfig for inconsistent token
// window settings and ErrUnknownStrategy for unrecognized strategies.
func New(opts core.ChunkOptions) (Splitter, error) {
	switch opts.Strategy {
	case core.ChunkHeader:
		return NewHeaderSplitter(opts)
	case core.ChunkToken:
		return NewTokenSplitter(opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, opts.Strategy)
	}
}
