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


package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/docq/core"
	"github.com/poiesic/docq/hook"
	"github.com/poiesic/docq/pipeline"
	"github.com/poiesic/docq/queue"
)

var (
	// ErrBrokerRequired is returned when a Pool is created without a broker.
	ErrBrokerRequired = errors.New("broker is required")

	// ErrRunnerRequired is returned when a Pool is created without a runner.
	ErrRunnerRequired = errors.New("pipeline runner is required")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("worker pool already started")
)

const (
	// defaultJobTimeout bounds how long a started job may run before
	// the reaper declares its worker dead.
	defaultJobTimeout = 10 * time.Minute

	defaultReapInterval = 30 * time.Second
)

// Pool consumes jobs from a broker with a fixed number of workers.
type Pool struct {
	broker       queue.Broker
	runner       *pipeline.Runner
	pool         *ants.Pool
	size         int
	name         string
	jobTimeout   time.Duration
	reapInterval time.Duration
	hooks        []hook.Hook
	logger       *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    sync.WaitGroup
	started bool
}

// Option configures a Pool.
type Option func(*Pool)

// WithSize sets the number of concurrent workers.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithSize(size int) Option {
	return func(p *Pool) {
		if size >= 1 {
			p.size = size
		}
	}
}

// WithName overrides the worker identity recorded on claimed jobs.
// Default is hostname-pid.
func WithName(name string) Option {
	return func(p *Pool) {
		if name != "" {
			p.name = name
		}
	}
}

// WithJobTimeout sets how long a started job may run before the reaper
// fails it. Default is 10 minutes.
func WithJobTimeout(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.jobTimeout = d
		}
	}
}

// WithReapInterval sets how often the orphan reaper runs.
// Default is 30 seconds.
func WithReapInterval(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.reapInterval = d
		}
	}
}

// WithHooks registers completion hooks, invoked in order after a job
// finishes. A hook error is logged and never changes the job's status.
func WithHooks(hooks ...hook.Hook) Option {
	return func(p *Pool) {
		p.hooks = append(p.hooks, hooks...)
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPool creates a worker pool. Call Start to begin consuming.
func NewPool(broker queue.Broker, runner *pipeline.Runner, opts ...Option) (*Pool, error) {
	if broker == nil {
		return nil, ErrBrokerRequired
	}
	if runner == nil {
		return nil, ErrRunnerRequired
	}

	size := runtime.NumCPU() / 2
	if size < 1 {
		size = 1
	}

	p := &Pool{
		broker:       broker,
		runner:       runner,
		size:         size,
		name:         defaultName(),
		jobTimeout:   defaultJobTimeout,
		reapInterval: defaultReapInterval,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("worker", p.name)
	return p, nil
}

func defaultName() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "docq"
	}
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}

// Start launches the worker loops and the orphan reaper. It returns
// once all loops are running; Stop shuts them down.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return ErrAlreadyStarted
	}

	antsPool, err := ants.NewPool(p.size)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	p.pool = antsPool
	p.cancel = cancel
	p.started = true

	for i := 0; i < p.size; i++ {
		p.done.Add(1)
		if err := antsPool.Submit(func() {
			defer p.done.Done()
			p.loop(ctx)
		}); err != nil {
			p.done.Done()
			cancel()
			antsPool.Release()
			p.started = false
			return err
		}
	}

	p.done.Add(1)
	go func() {
		defer p.done.Done()
		p.reapLoop(ctx)
	}()

	p.logger.Info("worker pool started", "size", p.size)
	return nil
}

// Stop cancels the loops and waits for in-flight jobs to report.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.cancel()
	p.started = false
	p.mu.Unlock()

	p.done.Wait()
	p.pool.Release()
	p.logger.Info("worker pool stopped")
}

// loop is one worker: dequeue, process, repeat until the context ends.
func (p *Pool) loop(ctx context.Context) {
	for {
		desc, lease, err := p.broker.Dequeue(ctx, p.name)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Error("dequeue failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		p.process(ctx, desc, lease)
	}
}

// process runs one job and reports its outcome. Failures and panics
// are contained: the job is marked failed and the loop keeps going.
func (p *Pool) process(ctx context.Context, desc *core.JobDescriptor, lease *queue.Lease) {
	if err := p.broker.MarkStarted(ctx, lease); err != nil {
		p.logger.Error("mark started failed", "job_id", desc.ID, "error", err)
		// The descriptor is already off the lane; without a terminal
		// record the job would linger queued with no TTL and beyond the
		// reaper's reach.
		p.fail(lease, desc.ID, fmt.Sprintf("could not mark job started: %v", err))
		return
	}

	defer func() {
		if r := recover(); r != nil {
			p.fail(lease, desc.ID, fmt.Sprintf("worker panic: %v", r))
		}
	}()

	jobCtx, cancel := context.WithTimeout(ctx, p.jobTimeout)
	defer cancel()

	result, err := p.runner.Execute(jobCtx, desc)
	if err != nil {
		p.fail(lease, desc.ID, err.Error())
		return
	}

	if err := p.broker.MarkFinished(context.Background(), lease, result); err != nil {
		p.logger.Error("mark finished failed", "job_id", desc.ID, "error", err)
		return
	}
	p.logger.Info("job finished", "job_id", desc.ID, "kind", desc.Kind)

	for _, h := range p.hooks {
		if err := h.Completed(ctx, desc.ID, result); err != nil {
			p.logger.Error("completion hook failed", "job_id", desc.ID, "error", err)
		}
	}
}

// fail reports a job failure outside the job context, which may
// already be cancelled.
func (p *Pool) fail(lease *queue.Lease, jobID, message string) {
	if err := p.broker.MarkFailed(context.Background(), lease, message); err != nil {
		p.logger.Error("mark failed failed", "job_id", jobID, "error", err)
		return
	}
	p.logger.Warn("job failed", "job_id", jobID, "error", message)
}

// reapLoop periodically fails started jobs whose workers went silent.
func (p *Pool) reapLoop(ctx context.Context) {
	ticker := time.NewTicker(p.reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reaped, err := p.broker.ReapOrphans(ctx, p.jobTimeout)
			if err != nil {
				p.logger.Error("orphan reap failed", "error", err)
				continue
			}
			if reaped > 0 {
				p.logger.Warn("reaped orphaned jobs", "count", reaped)
			}
		}
	}
}
