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


// Package openai provides a completion hook that embeds the chunks of
// finished jobs through an OpenAI-compatible embedding API and hands
// the vectors to a caller-supplied sink.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/poiesic/docq/core"
	"github.com/poiesic/docq/hook"
)

var (
	// ErrHostRequired is returned when the embedding host is missing.
	ErrHostRequired = errors.New("embedding host is required")

	// ErrModelRequired is returned when the embedding model is missing.
	ErrModelRequired = errors.New("embedding model is required")

	// ErrSinkRequired is returned when no vector sink is provided.
	ErrSinkRequired = errors.New("vector sink is required")
)

// Config holds the embedding API settings.
type Config struct {
	// EmbeddingHost is the base URL of an OpenAI-compatible API.
	EmbeddingHost string

	// EmbeddingModel is the embedding model name.
	EmbeddingModel string
}

// Validate checks that the configuration is complete.
func (c *Config) Validate() error {
	if c.EmbeddingHost == "" {
		return ErrHostRequired
	}
	if c.EmbeddingModel == "" {
		return ErrModelRequired
	}
	return nil
}

// ChunkVector pairs a chunk with its embedding.
type ChunkVector struct {
	Chunk  core.Chunk
	Vector []float32
}

// Sink receives the embedded chunks of one finished job.
type Sink interface {
	Store(ctx context.Context, jobID string, vectors []ChunkVector) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, jobID string, vectors []ChunkVector) error

// Store implements Sink.
func (f SinkFunc) Store(ctx context.Context, jobID string, vectors []ChunkVector) error {
	return f(ctx, jobID, vectors)
}

// EmbeddingHook implements hook.Hook by embedding result chunks.
type EmbeddingHook struct {
	embedder embeddings.Embedder
	sink     Sink
	logger   *slog.Logger
}

var _ hook.Hook = (*EmbeddingHook)(nil)

// newEmbeddingHook is an internal constructor around an existing
// embedder. Used by tests to inject fakes.
func newEmbeddingHook(embedder embeddings.Embedder, sink Sink) (*EmbeddingHook, error) {
	if sink == nil {
		return nil, ErrSinkRequired
	}
	return &EmbeddingHook{
		embedder: embedder,
		sink:     sink,
		logger:   slog.Default().With("component", "openai-hook"),
	}, nil
}

// NewEmbeddingHook creates a hook using the provided configuration.
//
// Returns hook.Hook interface to enforce abstraction.
func NewEmbeddingHook(config *Config, sink Sink) (hook.Hook, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Use "none" as token for local OpenAI-compatible services that
	// don't require authentication.
	client, err := openai.New(
		openai.WithBaseURL(config.EmbeddingHost),
		openai.WithToken("none"),
		openai.WithEmbeddingModel(config.EmbeddingModel),
	)
	if err != nil {
		return nil, err
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, err
	}

	return newEmbeddingHook(embedder, sink)
}

// Completed embeds every chunk of the result and stores the vectors.
// Results without chunks are skipped. Batch results contribute the
// chunks of their successful files.
func (h *EmbeddingHook) Completed(ctx context.Context, jobID string, result *core.JobResult) error {
	chunks := collectChunks(result)
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	h.logger.Debug("embedding finished job", "job_id", jobID, "chunks", len(chunks))

	vectors, err := h.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding chunks of job %s: %w", jobID, err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks of job %s",
			len(vectors), len(chunks), jobID)
	}

	paired := make([]ChunkVector, len(chunks))
	for i := range chunks {
		paired[i] = ChunkVector{Chunk: chunks[i], Vector: vectors[i]}
	}

	return h.sink.Store(ctx, jobID, paired)
}

// collectChunks flattens the chunks of a result, including those of
// successful batch files.
func collectChunks(result *core.JobResult) []core.Chunk {
	if result == nil {
		return nil
	}
	chunks := append([]core.Chunk(nil), result.Chunks...)
	if result.Batch != nil {
		for _, outcome := range result.Batch.Outcomes {
			if outcome.Success {
				chunks = append(chunks, outcome.Chunks...)
			}
		}
	}
	return chunks
}
