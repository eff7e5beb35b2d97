package queue

import (
	"context"
	"time"

	"github.com/poiesic/docq/core"
)

// Lease proves ownership of a dequeued job. Only the holder of a job's
// lease may update its record; the broker rejects updates carrying a
// stale or foreign lease.
type Lease struct {
	JobID  string
	Worker string
	Token  string
}

// Retention controls how long terminal job records are kept before the
// broker purges them.
type Retention struct {
	// ResultTTL applies to finished records. Default one hour.
	ResultTTL time.Duration
	// FailureTTL applies to failed records. Failures are kept longer so
	// they stay observable. Default 24 hours.
	FailureTTL time.Duration
}

// DefaultRetention mirrors the service defaults of one hour for results
// and one day for failures.
func DefaultRetention() Retention {
	return Retention{
		ResultTTL:  time.Hour,
		FailureTTL: 24 * time.Hour,
	}
}

// Snapshot is a point-in-time view of a job record as returned by the
// status query.
type Snapshot struct {
	core.JobRecord

	// ResultParseError is set when a finished job's stored result could
	// not be decoded into the expected shape. The finished status is
	// preserved; it is never downgraded to failed.
	ResultParseError string `json:"result_parse_error,omitempty"`
}

// Broker owns lane contents and job-record storage with atomic mutation
// primitives. Implementations must be safe for concurrent use.
type Broker interface {
	// Enqueue atomically appends a descriptor to its lane and creates
	// the corresponding queued JobRecord. Returns the job id.
	Enqueue(ctx context.Context, d *core.JobDescriptor) (string, error)

	// Dequeue blocks until a job is available on any lane, scanning
	// lanes in fixed precedence order (high, normal, low) each time the
	// caller becomes free. Returns the descriptor and an ownership
	// lease. Returns ctx.Err() when the context is cancelled.
	Dequeue(ctx context.Context, worker string) (*core.JobDescriptor, *Lease, error)

	// MarkStarted atomically transitions the leased job to started and
	// records the start time.
	MarkStarted(ctx context.Context, lease *Lease) error

	// MarkFinished atomically transitions the leased job to finished
	// and stores its result with the result TTL.
	MarkFinished(ctx context.Context, lease *Lease, result *core.JobResult) error

	// MarkFailed atomically transitions the leased job to failed and
	// stores the error message with the failure TTL.
	MarkFailed(ctx context.Context, lease *Lease, jobErr string) error

	// Status returns a snapshot of the job record. Returns ErrNotFound
	// for unknown or expired ids.
	Status(ctx context.Context, id string) (*Snapshot, error)

	// ReapOrphans marks started jobs whose workers have not reported
	// completion within bound as failed. Returns the number reaped.
	ReapOrphans(ctx context.Context, bound time.Duration) (int, error)

	// HealthCheck reports whether the broker storage is reachable.
	HealthCheck(ctx context.Context) error

	// Close closes the broker and releases resources.
	Close() error
}
