package textengine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/docq/core"
	"github.com/poiesic/docq/extract"
)

func newTestEngine(t *testing.T) extract.Engine {
	t.Helper()
	engine, err := NewEngine(extract.DefaultConfig())
	require.NoError(t, err)
	return engine
}

func TestExtractEmptyPayload(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.Extract(context.Background(), nil, "empty.txt", core.ExtractionOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, extract.ErrExtraction))
	assert.True(t, errors.Is(err, extract.ErrEmptyDocument))
}

func TestExtractInvalidUTF8(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.Extract(context.Background(), []byte{0xff, 0xfe, 0xfd}, "binary.bin", core.ExtractionOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, extract.ErrExtraction))
}

func TestExtractOutlineStrategy(t *testing.T) {
	engine := newTestEngine(t)

	doc := "# Title\n\nSome body text.\n\n## Section\n\nMore body.\n\n## Another Section\n\nEven more.\n"
	result, err := engine.Extract(context.Background(), []byte(doc), "doc.md", core.ExtractionOptions{})
	require.NoError(t, err)

	assert.Equal(t, extract.StrategyOutline, result.Metadata.HeadersStrategy)
	assert.Equal(t, 2, result.Metadata.HeaderLevels)
	assert.Equal(t, 1, result.Metadata.Pages)
	assert.Equal(t, doc, result.Text)
	assert.Equal(t, len(doc), result.Metadata.OutputSizeChars)
}

func TestExtractHeuristicNumberedHeaders(t *testing.T) {
	engine := newTestEngine(t)

	doc := strings.Join([]string{
		"1. Introduction",
		"This report covers the quarterly results in detail across regions.",
		"1.1 Scope",
		"The scope is limited to the retail segment of the business only.",
		"2. Findings",
		"Revenue grew substantially over the prior comparable fiscal period.",
	}, "\n")

	result, err := engine.Extract(context.Background(), []byte(doc), "report.txt", core.ExtractionOptions{})
	require.NoError(t, err)

	assert.Equal(t, extract.StrategyHeuristic, result.Metadata.HeadersStrategy)
	assert.Equal(t, 2, result.Metadata.HeaderLevels)
	assert.Contains(t, result.Text, "# 1. Introduction")
	assert.Contains(t, result.Text, "## 1.1 Scope")
	assert.Contains(t, result.Text, "# 2. Findings")
}

func TestExtractHeuristicAllCapsHeaders(t *testing.T) {
	engine := newTestEngine(t)

	doc := strings.Join([]string{
		"EXECUTIVE SUMMARY",
		"The project finished on time and slightly under the agreed budget.",
		"RISKS",
		"No material risks remain open at the time of writing this report.",
	}, "\n")

	result, err := engine.Extract(context.Background(), []byte(doc), "summary.txt", core.ExtractionOptions{})
	require.NoError(t, err)

	assert.Equal(t, extract.StrategyHeuristic, result.Metadata.HeadersStrategy)
	assert.Equal(t, 1, result.Metadata.HeaderLevels)
	assert.Contains(t, result.Text, "# EXECUTIVE SUMMARY")
	assert.Contains(t, result.Text, "# RISKS")
}

func TestExtractHeaderLevelCap(t *testing.T) {
	engine, err := NewEngine(extract.NewConfig(extract.WithHeaderMaxLevels(2)))
	require.NoError(t, err)

	doc := "1.2.3.4 Deeply Nested Section\nBody text follows the heading here.\n"
	result, err := engine.Extract(context.Background(), []byte(doc), "deep.txt", core.ExtractionOptions{})
	require.NoError(t, err)

	assert.Contains(t, result.Text, "## 1.2.3.4 Deeply Nested Section")
	assert.NotContains(t, result.Text, "### ")
}

func TestExtractLongLinesAreBody(t *testing.T) {
	engine := newTestEngine(t)

	doc := "THIS LINE IS ENTIRELY UPPERCASE BUT FAR TOO LONG TO READ AS A SECTION HEADING IN ANY DOCUMENT\nbody\n"
	result, err := engine.Extract(context.Background(), []byte(doc), "long.txt", core.ExtractionOptions{})
	require.NoError(t, err)

	assert.Equal(t, 0, result.Metadata.HeaderLevels)
	assert.NotContains(t, result.Text, "#")
}

func TestExtractPageCount(t *testing.T) {
	engine := newTestEngine(t)

	doc := "page one text\fpage two text\fpage three text"
	result, err := engine.Extract(context.Background(), []byte(doc), "paged.txt", core.ExtractionOptions{})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Metadata.Pages)
	assert.NotContains(t, result.Text, "\f")
}

func TestExtractMarginOverride(t *testing.T) {
	engine := newTestEngine(t)

	custom := core.Margins{Top: 10, Bottom: 20, Left: 5, Right: 5}
	result, err := engine.Extract(context.Background(), []byte("plain body text"), "doc.txt", core.ExtractionOptions{
		Margins: &custom,
	})
	require.NoError(t, err)

	assert.Equal(t, custom, result.Metadata.Margins)
}

func TestExtractDefaultMargins(t *testing.T) {
	engine := newTestEngine(t)

	result, err := engine.Extract(context.Background(), []byte("plain body text"), "doc.txt", core.ExtractionOptions{})
	require.NoError(t, err)

	assert.Equal(t, core.DefaultMargins(), result.Metadata.Margins)
}
