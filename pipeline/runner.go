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


package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/docq/chunk"
	"github.com/poiesic/docq/core"
	"github.com/poiesic/docq/extract"
)

// Runner executes job descriptors against an extraction engine.
type Runner struct {
	engine extract.Engine
	logger *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner creates a runner backed by the given engine.
func NewRunner(engine extract.Engine, opts ...Option) (*Runner, error) {
	if engine == nil {
		return nil, ErrEngineRequired
	}
	r := &Runner{
		engine: engine,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Execute dispatches a descriptor to the handler for its kind.
func (r *Runner) Execute(ctx context.Context, desc *core.JobDescriptor) (*core.JobResult, error) {
	switch desc.Kind {
	case core.KindSingle:
		return r.Run(ctx, desc)
	case core.KindBatch:
		return r.RunBatch(ctx, desc)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, desc.Kind)
	}
}

// Run processes a single-document descriptor: extract, then chunk when
// a chunking strategy is configured.
func (r *Runner) Run(ctx context.Context, desc *core.JobDescriptor) (*core.JobResult, error) {
	started := time.Now()

	extracted, err := r.engine.Extract(ctx, desc.Payload, desc.Filename, desc.Options.Extraction)
	if err != nil {
		return nil, fmt.Errorf("extracting %q: %w", desc.Filename, err)
	}

	chunks, err := r.maybeChunk(extracted.Text, desc.Filename, desc.Options.Chunking)
	if err != nil {
		return nil, err
	}

	result := &core.JobResult{
		Text:           extracted.Text,
		Metadata:       extracted.Metadata,
		Chunks:         chunks,
		Filename:       desc.Filename,
		ProcessingTime: time.Since(started).Seconds(),
	}

	r.logger.Debug("processed document",
		"job_id", desc.ID, "filename", desc.Filename,
		"chunks", len(chunks), "seconds", result.ProcessingTime)

	return result, nil
}

// RunBatch processes every file of a batch descriptor in submission
// order. A file failure is recorded in its outcome and processing
// continues with the next file. An empty file list is a batch-level
// failure: Ok is false and no outcomes are produced.
func (r *Runner) RunBatch(ctx context.Context, desc *core.JobDescriptor) (*core.JobResult, error) {
	started := time.Now()

	batch := &core.BatchResult{
		BatchID:    desc.ID,
		TotalFiles: len(desc.Files),
	}

	if len(desc.Files) == 0 {
		batch.Ok = false
		batch.Error = ErrEmptyBatch.Error()
		return &core.JobResult{
			Batch:          batch,
			ProcessingTime: time.Since(started).Seconds(),
		}, nil
	}

	batch.Outcomes = make([]core.BatchOutcome, 0, len(desc.Files))
	for i, file := range desc.Files {
		outcome := r.runFile(ctx, i, file, desc.Options)
		if outcome.Success {
			batch.Successful++
		} else {
			batch.Failed++
		}
		batch.TotalTime += outcome.ProcessingTime
		batch.Outcomes = append(batch.Outcomes, outcome)
	}

	batch.Ok = true
	batch.AverageTime = batch.TotalTime / float64(len(desc.Files))

	result := &core.JobResult{
		Batch:          batch,
		ProcessingTime: time.Since(started).Seconds(),
	}

	r.logger.Info("processed batch",
		"batch_id", desc.ID, "total", batch.TotalFiles,
		"successful", batch.Successful, "failed", batch.Failed)

	return result, nil
}

// runFile processes one batch entry, containing any failure in the
// returned outcome.
func (r *Runner) runFile(ctx context.Context, index int, file core.BatchFile, opts core.ProcessOptions) core.BatchOutcome {
	started := time.Now()
	outcome := core.BatchOutcome{
		Index:    index,
		Filename: file.Filename,
	}

	extracted, err := r.engine.Extract(ctx, file.Payload, file.Filename, opts.Extraction)
	if err != nil {
		outcome.Error = err.Error()
		outcome.ProcessingTime = time.Since(started).Seconds()
		r.logger.Warn("batch file failed",
			"index", index, "filename", file.Filename, "error", err)
		return outcome
	}

	chunks, err := r.maybeChunk(extracted.Text, file.Filename, opts.Chunking)
	if err != nil {
		outcome.Error = err.Error()
		outcome.ProcessingTime = time.Since(started).Seconds()
		return outcome
	}

	outcome.Success = true
	outcome.Text = extracted.Text
	outcome.Chunks = chunks
	outcome.ProcessingTime = time.Since(started).Seconds()
	return outcome
}

// maybeChunk splits text when a strategy is configured.
func (r *Runner) maybeChunk(text, filename string, opts core.ChunkOptions) ([]core.Chunk, error) {
	if opts.Strategy == core.ChunkNone {
		return nil, nil
	}
	splitter, err := chunk.New(opts)
	if err != nil {
		return nil, fmt.Errorf("configuring chunker for %q: %w", filename, err)
	}
	chunks, err := splitter.Split(text, filename)
	if err != nil {
		return nil, fmt.Errorf("chunking %q: %w", filename, err)
	}
	return chunks, nil
}
