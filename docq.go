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


// Package docq is an embedded document-processing job service. A
// Service owns the queue broker and the extraction engine; submissions
// go onto priority lanes and are consumed by a worker pool the caller
// starts. Job state is explicit: no globals, all state lives in the
// Service instance.
package docq

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/docq/core"
	"github.com/poiesic/docq/extract"
	"github.com/poiesic/docq/extract/textengine"
	"github.com/poiesic/docq/pipeline"
	"github.com/poiesic/docq/queue"
	"github.com/poiesic/docq/queue/badger"
	"github.com/poiesic/docq/worker"
)

// Submission is one document handed to Submit.
type Submission struct {
	// Payload is the raw document. Required.
	Payload []byte

	// Filename labels the document in results and chunks.
	Filename string

	// Priority label: "high", "normal" or "low". Empty means normal.
	Priority string

	// Options tunes extraction and chunking for this job.
	Options core.ProcessOptions
}

// BatchSubmission is an ordered set of documents processed as one job.
type BatchSubmission struct {
	Files    []core.BatchFile
	Priority string
	Options  core.ProcessOptions
}

// Service is the embedded job service. Create with NewService, close
// with Close.
type Service struct {
	broker queue.Broker
	engine extract.Engine
	runner *pipeline.Runner
	logger *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	engine        extract.Engine
	extractConfig *extract.Config
	retention     queue.Retention
	inMemory      bool
	logger        *slog.Logger
}

// WithEngine replaces the built-in text engine.
func WithEngine(engine extract.Engine) ServiceOption {
	return func(o *serviceOptions) {
		o.engine = engine
	}
}

// WithExtractConfig sets the defaults for the built-in text engine.
// Ignored when WithEngine is used.
func WithExtractConfig(config *extract.Config) ServiceOption {
	return func(o *serviceOptions) {
		o.extractConfig = config
	}
}

// WithRetention overrides how long terminal job records are kept.
func WithRetention(r queue.Retention) ServiceOption {
	return func(o *serviceOptions) {
		o.retention = r
	}
}

// WithInMemory keeps all queue state in memory. Intended for tests.
func WithInMemory() ServiceOption {
	return func(o *serviceOptions) {
		o.inMemory = true
	}
}

// WithServiceLogger sets a custom logger.
// Default is slog.Default().
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewService opens the queue at filePath and wires the processing
// pipeline around it.
func NewService(filePath string, opts ...ServiceOption) (*Service, error) {
	options := &serviceOptions{
		extractConfig: extract.DefaultConfig(),
		retention:     queue.DefaultRetention(),
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	brokerOpts := []badger.Option{
		badger.WithRetention(options.retention),
		badger.WithLogger(options.logger),
	}
	var (
		broker queue.Broker
		err    error
	)
	if options.inMemory {
		broker, err = badger.NewMemoryBroker(brokerOpts...)
	} else {
		broker, err = badger.NewBroker(filePath, brokerOpts...)
	}
	if err != nil {
		return nil, err
	}

	engine := options.engine
	if engine == nil {
		engine, err = textengine.NewEngine(options.extractConfig)
		if err != nil {
			broker.Close()
			return nil, err
		}
	}

	runner, err := pipeline.NewRunner(engine, pipeline.WithLogger(options.logger))
	if err != nil {
		broker.Close()
		return nil, err
	}

	return &Service{
		broker: broker,
		engine: engine,
		runner: runner,
		logger: options.logger,
	}, nil
}

// Submit validates and enqueues one document. Returns the job id.
func (s *Service) Submit(ctx context.Context, sub Submission) (string, error) {
	if len(sub.Payload) == 0 {
		return "", fmt.Errorf("%w: %w", core.ErrInvalidSubmission, core.ErrEmptyPayload)
	}
	priority, err := resolvePriority(sub.Priority)
	if err != nil {
		return "", err
	}

	desc := &core.JobDescriptor{
		Kind:        core.KindSingle,
		Payload:     sub.Payload,
		Filename:    sub.Filename,
		Fingerprint: core.FingerprintPayload(sub.Payload),
		Priority:    priority,
		Lane:        priority.Lane(),
		Options:     sub.Options,
	}
	if err := core.ValidateDescriptor(desc); err != nil {
		return "", err
	}

	id, err := s.broker.Enqueue(ctx, desc)
	if err != nil {
		return "", err
	}
	s.logger.Info("job submitted",
		"job_id", id, "filename", sub.Filename, "priority", priority.String())
	return id, nil
}

// SubmitBatch validates and enqueues a batch of documents as one job.
// Returns the batch job id.
func (s *Service) SubmitBatch(ctx context.Context, sub BatchSubmission) (string, error) {
	if len(sub.Files) == 0 {
		return "", fmt.Errorf("%w: %w", core.ErrInvalidSubmission, core.ErrEmptyBatch)
	}
	priority, err := resolvePriority(sub.Priority)
	if err != nil {
		return "", err
	}

	desc := &core.JobDescriptor{
		Kind:     core.KindBatch,
		Files:    sub.Files,
		Priority: priority,
		Lane:     priority.Lane(),
		Options:  sub.Options,
	}
	if err := core.ValidateDescriptor(desc); err != nil {
		return "", err
	}

	id, err := s.broker.Enqueue(ctx, desc)
	if err != nil {
		return "", err
	}
	s.logger.Info("batch submitted",
		"batch_id", id, "files", len(sub.Files), "priority", priority.String())
	return id, nil
}

// Status returns a snapshot of the job record. Returns queue.ErrNotFound
// for unknown or expired ids.
func (s *Service) Status(ctx context.Context, id string) (*queue.Snapshot, error) {
	return s.broker.Status(ctx, id)
}

// Broker exposes the underlying broker, mainly for worker wiring.
func (s *Service) Broker() queue.Broker {
	return s.broker
}

// NewWorkerPool creates a worker pool bound to this service's broker
// and pipeline. The caller starts and stops it.
func (s *Service) NewWorkerPool(opts ...worker.Option) (*worker.Pool, error) {
	return worker.NewPool(s.broker, s.runner, opts...)
}

// HealthCheck reports whether the queue storage is reachable.
func (s *Service) HealthCheck(ctx context.Context) error {
	return s.broker.HealthCheck(ctx)
}

// Close releases the queue storage. Stop any worker pools first.
func (s *Service) Close() error {
	if err := s.broker.Close(); err != nil {
		s.logger.Error("error closing broker", "err", err)
		return err
	}
	return nil
}

func resolvePriority(label string) (core.Priority, error) {
	if label == "" {
		return core.PriorityNormal, nil
	}
	return core.ParsePriority(label)
}
