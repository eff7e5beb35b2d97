package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/poiesic/docq/core"
	"github.com/poiesic/docq/extract"
)

// MockEngine is a test double for extract.Engine.
// It allows custom behavior injection via function fields.
type MockEngine struct {
	// ExtractFunc is called by Extract if set.
	// If nil, uses default deterministic behavior.
	ExtractFunc func(ctx context.Context, payload []byte, filename string, opts core.ExtractionOptions) (*core.ExtractionResult, error)

	mu        sync.Mutex
	callCount int
}

var _ extract.Engine = (*MockEngine)(nil)

// NewMockEngine creates a mock engine with default deterministic behavior.
// Note: Returns concrete type to allow test assertions via CallCount().
func NewMockEngine() *MockEngine {
	return &MockEngine{}
}

// Extract treats the payload as UTF-8 text and echoes it back with
// heuristic metadata, honoring the empty-payload contract.
func (m *MockEngine) Extract(ctx context.Context, payload []byte, filename string, opts core.ExtractionOptions) (*core.ExtractionResult, error) {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()

	if m.ExtractFunc != nil {
		return m.ExtractFunc(ctx, payload, filename, opts)
	}

	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: %w", extract.ErrExtraction, extract.ErrEmptyDocument)
	}

	text := string(payload)
	margins := core.DefaultMargins()
	if opts.Margins != nil {
		margins = *opts.Margins
	}

	return &core.ExtractionResult{
		Text: text,
		Metadata: core.ExtractionMetadata{
			Pages:           1,
			HeadersStrategy: extract.StrategyHeuristic,
			HeaderLevels:    0,
			Margins:         margins,
			OutputSizeChars: len(text),
		},
	}, nil
}

// CallCount returns how many times Extract has been called.
func (m *MockEngine) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}
