package extract

import (
	"context"

	"github.com/poiesic/docq/core"
)

// Engine converts raw document bytes into extracted text with structural
// metadata. Implementations must be thread-safe for concurrent use.
type Engine interface {
	// Extract converts the payload into text and structural metadata.
	// The filename is advisory (format detection, attribution). The
	// options override the engine's configured defaults for one call.
	//
	// Fails with an error wrapping ErrExtraction when the payload is
	// empty, malformed, or the underlying engine reports an internal
	// error.
	Extract(ctx context.Context, payload []byte, filename string, opts core.ExtractionOptions) (*core.ExtractionResult, error)
}

// Header-detection strategy names reported in extraction metadata.
const (
	// StrategyOutline is used when the document carries embedded
	// navigation metadata (explicit heading markup).
	StrategyOutline = "outline"
	// StrategyHeuristic is used when header structure must be inferred
	// from visual and typographic cues.
	StrategyHeuristic = "heuristic"
)
