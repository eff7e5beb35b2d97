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


package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/poiesic/docq/core"
	"github.com/poiesic/docq/queue"
)

const (
	defaultPollInterval = 250 * time.Millisecond
	maxTxRetries        = 8
)

// errNoJob signals that every lane was empty during a dequeue attempt.
var errNoJob = errors.New("no job available")

// Broker implements queue.Broker on BadgerDB. Lanes are FIFO via
// zero-padded sequence keys; job records live under their own prefix and
// terminal records carry a badger entry TTL so expiry needs no sweeper.
type Broker struct {
	backend      *Backend
	retention    queue.Retention
	pollInterval time.Duration
	notify       chan struct{}
	logger       *slog.Logger

	seqMu sync.Mutex
	seqs  map[string]*badger.Sequence
}

var _ queue.Broker = (*Broker)(nil)

// Option configures a Broker.
type Option func(*Broker)

// WithRetention sets the TTLs applied to finished and failed records.
func WithRetention(r queue.Retention) Option {
	return func(b *Broker) {
		if r.ResultTTL > 0 {
			b.retention.ResultTTL = r.ResultTTL
		}
		if r.FailureTTL > 0 {
			b.retention.FailureTTL = r.FailureTTL
		}
	}
}

// WithPollInterval sets the liveness wake-up interval for blocked
// Dequeue callers. Workers never spin; they sleep between scans.
func WithPollInterval(d time.Duration) Option {
	return func(b *Broker) {
		if d > 0 {
			b.pollInterval = d
		}
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Broker) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBroker opens a broker backed by a BadgerDB database at filePath.
//
// Returns queue.Broker interface to enforce abstraction.
func NewBroker(filePath string, opts ...Option) (queue.Broker, error) {
	backend, err := OpenBackend(filePath, false)
	if err != nil {
		return nil, err
	}
	return newBroker(backend, opts...), nil
}

// newBroker wires a broker onto an open backend.
func newBroker(backend *Backend, opts ...Option) *Broker {
	b := &Broker{
		backend:      backend,
		retention:    queue.DefaultRetention(),
		pollInterval: defaultPollInterval,
		notify:       make(chan struct{}, 1),
		logger:       slog.Default().With("component", "broker"),
		seqs:         make(map[string]*badger.Sequence),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Close releases lane sequences and closes the underlying database.
func (b *Broker) Close() error {
	b.seqMu.Lock()
	for lane, seq := range b.seqs {
		if err := seq.Release(); err != nil {
			b.logger.Error("error releasing lane sequence", "lane", lane, "err", err)
		}
	}
	b.seqs = make(map[string]*badger.Sequence)
	b.seqMu.Unlock()
	return b.backend.Close()
}

// HealthCheck reports whether the broker storage is reachable.
func (b *Broker) HealthCheck(ctx context.Context) error {
	if b.backend.IsClosed() {
		return queue.ErrUnavailable
	}
	return nil
}

// laneSequence returns the cached sequence for a lane, creating it on
// first use.
func (b *Broker) laneSequence(lane string) (*badger.Sequence, error) {
	b.seqMu.Lock()
	defer b.seqMu.Unlock()

	if seq, ok := b.seqs[lane]; ok {
		return seq, nil
	}
	seq, err := b.backend.GetSequence(makeLaneSeqKey(lane))
	if err != nil {
		return nil, err
	}
	b.seqs[lane] = seq
	return seq, nil
}

// withWriteRetry runs a write transaction, retrying on commit conflicts.
// The callback must commit the transaction itself.
func (b *Broker) withWriteRetry(fn func(tx *badger.Txn) error) error {
	var err error
	for i := 0; i < maxTxRetries; i++ {
		err = b.backend.WithTx(fn, true)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("%w: transaction conflicts persisted: %w", queue.ErrUnavailable, err)
}

// Enqueue atomically appends the descriptor to its lane and creates the
// queued JobRecord in the same transaction.
func (b *Broker) Enqueue(ctx context.Context, d *core.JobDescriptor) (string, error) {
	if b.backend.IsClosed() {
		return "", queue.ErrUnavailable
	}
	if err := core.ValidateDescriptor(d); err != nil {
		return "", err
	}

	if d.ID == "" {
		d.ID = core.NewJobID()
	}
	if d.SubmittedAt.IsZero() {
		d.SubmittedAt = time.Now().UTC()
	}

	seq, err := b.laneSequence(d.Lane)
	if err != nil {
		return "", fmt.Errorf("%w: %w", queue.ErrUnavailable, err)
	}
	pos, err := seq.Next()
	if err != nil {
		return "", fmt.Errorf("%w: %w", queue.ErrUnavailable, err)
	}

	descriptorValue, err := queue.MarshalDescriptor(d)
	if err != nil {
		return "", err
	}

	record := &queue.StoredRecord{
		ID:          d.ID,
		Status:      core.StatusQueued,
		Lane:        d.Lane,
		Filename:    d.Filename,
		Fingerprint: d.Fingerprint,
		EnqueuedAt:  d.SubmittedAt,
	}
	recordValue, err := queue.MarshalRecord(record)
	if err != nil {
		return "", err
	}

	err = b.withWriteRetry(func(tx *badger.Txn) error {
		if err := tx.Set(makeLaneItemKey(d.Lane, pos), descriptorValue); err != nil {
			return err
		}
		if err := tx.Set(makeRecordKey(d.ID), recordValue); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return "", err
	}

	b.logger.Debug("enqueued job", "id", d.ID, "lane", d.Lane, "kind", d.Kind)

	// Wake one blocked dequeuer. Non-blocking: a pending signal is enough.
	select {
	case b.notify <- struct{}{}:
	default:
	}

	return d.ID, nil
}

// Dequeue blocks until a descriptor is available on any lane. Lanes are
// scanned in fixed precedence order on every attempt, so a waiting
// higher-priority job always wins the next free worker. In-flight work
// is never preempted.
func (b *Broker) Dequeue(ctx context.Context, worker string) (*core.JobDescriptor, *queue.Lease, error) {
	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	for {
		d, lease, err := b.tryDequeue(worker)
		if err == nil {
			return d, lease, nil
		}
		if !errors.Is(err, errNoJob) {
			return nil, nil, err
		}

		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-b.notify:
		case <-ticker.C:
			// Bounded liveness wake-up; also covers jobs enqueued by
			// another process sharing the database.
		}
	}
}

// tryDequeue performs one atomic scan over the lanes. Removing the lane
// item and stamping ownership happen in a single transaction, so a
// descriptor is consumed by at most one worker.
func (b *Broker) tryDequeue(worker string) (*core.JobDescriptor, *queue.Lease, error) {
	if b.backend.IsClosed() {
		return nil, nil, queue.ErrUnavailable
	}

	var (
		descriptor *core.JobDescriptor
		lease      *queue.Lease
	)

	err := b.withWriteRetry(func(tx *badger.Txn) error {
		descriptor, lease = nil, nil

		for _, lane := range core.Lanes() {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = makeLaneScanPrefix(lane)
			opts.PrefetchValues = true

			iter := tx.NewIterator(opts)
			found := false
			var itemKey []byte
			var itemValue []byte

			for iter.Rewind(); iter.Valid(); iter.Next() {
				item := iter.Item()
				itemKey = item.KeyCopy(nil)
				value, err := item.ValueCopy(nil)
				if err != nil {
					iter.Close()
					return err
				}
				itemValue = value
				found = true
				break
			}
			iter.Close()

			if !found {
				continue
			}

			d, err := queue.UnmarshalDescriptor(itemValue)
			if err != nil {
				return err
			}
			if err := tx.Delete(itemKey); err != nil {
				return err
			}

			token := uuid.NewString()
			record, err := b.readRecord(tx, d.ID)
			if err != nil {
				return err
			}
			record.Owner = token
			record.Worker = worker
			recordValue, err := queue.MarshalRecord(record)
			if err != nil {
				return err
			}
			if err := tx.Set(makeRecordKey(d.ID), recordValue); err != nil {
				return err
			}

			descriptor = d
			lease = &queue.Lease{JobID: d.ID, Worker: worker, Token: token}
			return tx.Commit()
		}

		return errNoJob
	})
	if err != nil {
		return nil, nil, err
	}
	return descriptor, lease, nil
}

// readRecord loads a stored record within a transaction.
func (b *Broker) readRecord(tx *badger.Txn, id string) (*queue.StoredRecord, error) {
	item, err := tx.Get(makeRecordKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", queue.ErrNotFound, id)
		}
		return nil, err
	}
	var record *queue.StoredRecord
	err = item.Value(func(val []byte) error {
		var err error
		record, err = queue.UnmarshalRecord(val)
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// updateRecord applies a mutation to a leased record. The lease token is
// checked inside the transaction, so only the worker that dequeued the
// job can move it forward.
func (b *Broker) updateRecord(lease *queue.Lease, ttl time.Duration, mutate func(r *queue.StoredRecord) error) error {
	if b.backend.IsClosed() {
		return queue.ErrUnavailable
	}
	if lease == nil {
		return queue.ErrNotOwner
	}

	return b.withWriteRetry(func(tx *badger.Txn) error {
		record, err := b.readRecord(tx, lease.JobID)
		if err != nil {
			return err
		}
		if record.Owner != lease.Token {
			return fmt.Errorf("%w: job %s", queue.ErrNotOwner, lease.JobID)
		}

		if err := mutate(record); err != nil {
			return err
		}
		if err := record.Validate(); err != nil {
			return err
		}

		value, err := queue.MarshalRecord(record)
		if err != nil {
			return err
		}

		key := makeRecordKey(lease.JobID)
		if ttl > 0 {
			if err := tx.SetEntry(badger.NewEntry(key, value).WithTTL(ttl)); err != nil {
				return err
			}
		} else {
			if err := tx.Set(key, value); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

// MarkStarted transitions the leased job to started.
func (b *Broker) MarkStarted(ctx context.Context, lease *queue.Lease) error {
	return b.updateRecord(lease, 0, func(r *queue.StoredRecord) error {
		if err := core.ValidateTransition(r.Status, core.StatusStarted); err != nil {
			return err
		}
		now := time.Now().UTC()
		r.Status = core.StatusStarted
		r.StartedAt = &now
		return nil
	})
}

// MarkFinished transitions the leased job to finished and stores its
// result with the result TTL.
func (b *Broker) MarkFinished(ctx context.Context, lease *queue.Lease, result *core.JobResult) error {
	raw, err := queue.EncodeResult(result)
	if err != nil {
		return err
	}
	return b.updateRecord(lease, b.retention.ResultTTL, func(r *queue.StoredRecord) error {
		if err := core.ValidateTransition(r.Status, core.StatusFinished); err != nil {
			return err
		}
		now := time.Now().UTC()
		r.Status = core.StatusFinished
		r.EndedAt = &now
		r.Result = raw
		r.Error = ""
		return nil
	})
}

// MarkFailed transitions the leased job to failed and stores the error
// message with the failure TTL. The message stays readable until expiry.
func (b *Broker) MarkFailed(ctx context.Context, lease *queue.Lease, jobErr string) error {
	if jobErr == "" {
		jobErr = "unknown error"
	}
	return b.updateRecord(lease, b.retention.FailureTTL, func(r *queue.StoredRecord) error {
		if err := core.ValidateTransition(r.Status, core.StatusFailed); err != nil {
			return err
		}
		now := time.Now().UTC()
		r.Status = core.StatusFailed
		r.EndedAt = &now
		r.Result = nil
		r.Error = jobErr
		return nil
	})
}

// Status returns a snapshot of the job record, or ErrNotFound for ids
// that never existed or whose TTL elapsed.
func (b *Broker) Status(ctx context.Context, id string) (*queue.Snapshot, error) {
	if b.backend.IsClosed() {
		return nil, queue.ErrUnavailable
	}

	var record *queue.StoredRecord
	err := b.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		record, err = b.readRecord(tx, id)
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	return record.ToSnapshot(), nil
}

// ReapOrphans marks started jobs whose workers have not reported within
// bound as failed. This is the coarse broker-enforced timeout; there is
// no cooperative mid-execution cancellation.
func (b *Broker) ReapOrphans(ctx context.Context, bound time.Duration) (int, error) {
	if b.backend.IsClosed() {
		return 0, queue.ErrUnavailable
	}

	cutoff := time.Now().UTC().Add(-bound)
	reaped := 0

	type overdue struct {
		key    []byte
		record *queue.StoredRecord
	}

	err := b.withWriteRetry(func(tx *badger.Txn) error {
		reaped = 0

		// Collect first, mutate after: the iterator must be closed
		// before the transaction writes or commits.
		var stale []overdue

		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeRecordScanPrefix()
		iter := tx.NewIterator(opts)
		for iter.Rewind(); iter.Valid(); iter.Next() {
			item := iter.Item()
			var record *queue.StoredRecord
			err := item.Value(func(val []byte) error {
				var err error
				record, err = queue.UnmarshalRecord(val)
				return err
			})
			if err != nil {
				iter.Close()
				return err
			}

			if record.Status != core.StatusStarted {
				continue
			}
			if record.StartedAt == nil || record.StartedAt.After(cutoff) {
				continue
			}

			stale = append(stale, overdue{key: item.KeyCopy(nil), record: record})
		}
		iter.Close()

		for _, o := range stale {
			now := time.Now().UTC()
			o.record.Status = core.StatusFailed
			o.record.EndedAt = &now
			o.record.Result = nil
			o.record.Error = fmt.Sprintf("job timed out after %s without worker report", bound)
			o.record.Owner = ""

			value, err := queue.MarshalRecord(o.record)
			if err != nil {
				return err
			}
			entry := badger.NewEntry(o.key, value).WithTTL(b.retention.FailureTTL)
			if err := tx.SetEntry(entry); err != nil {
				return err
			}
			reaped++
		}

		return tx.Commit()
	})
	if err != nil {
		return 0, err
	}

	if reaped > 0 {
		b.logger.Warn("reaped orphaned jobs", "count", reaped, "bound", bound)
	}
	return reaped, nil
}
