package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/docq/core"
	"github.com/poiesic/docq/extract/mock"
	"github.com/poiesic/docq/hook"
	"github.com/poiesic/docq/pipeline"
	"github.com/poiesic/docq/queue"
	badgerqueue "github.com/poiesic/docq/queue/badger"
)

func newTestPool(t *testing.T, engine *mock.MockEngine) (*Pool, queue.Broker) {
	t.Helper()

	broker, err := badgerqueue.NewMemoryBroker()
	if err != nil {
		t.Fatalf("creating broker: %v", err)
	}
	t.Cleanup(func() { broker.Close() })

	runner, err := pipeline.NewRunner(engine)
	if err != nil {
		t.Fatalf("creating runner: %v", err)
	}

	pool, err := NewPool(broker, runner, WithSize(2), WithName("test-worker-1"))
	if err != nil {
		t.Fatalf("creating pool: %v", err)
	}
	return pool, broker
}

func waitForTerminal(t *testing.T, broker queue.Broker, id string) *queue.Snapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := broker.Status(context.Background(), id)
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		if snap.Status.Terminal() {
			return snap
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("job %s never reached a terminal status", id)
	return nil
}

func TestNewPoolValidation(t *testing.T) {
	engine := mock.NewMockEngine()
	runner, err := pipeline.NewRunner(engine)
	if err != nil {
		t.Fatalf("creating runner: %v", err)
	}

	if _, err := NewPool(nil, runner); !errors.Is(err, ErrBrokerRequired) {
		t.Errorf("expected ErrBrokerRequired, got %v", err)
	}

	broker, err := badgerqueue.NewMemoryBroker()
	if err != nil {
		t.Fatalf("creating broker: %v", err)
	}
	defer broker.Close()

	if _, err := NewPool(broker, nil); !errors.Is(err, ErrRunnerRequired) {
		t.Errorf("expected ErrRunnerRequired, got %v", err)
	}
}

func TestPoolProcessesJob(t *testing.T) {
	pool, broker := newTestPool(t, mock.NewMockEngine())

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("starting pool: %v", err)
	}
	defer pool.Stop()

	id, err := broker.Enqueue(context.Background(), &core.JobDescriptor{
		Kind:     core.KindSingle,
		Payload:  []byte("document body"),
		Filename: "doc.txt",
		Priority: core.PriorityNormal,
		Lane:     core.PriorityNormal.Lane(),
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	snap := waitForTerminal(t, broker, id)
	if snap.Status != core.StatusFinished {
		t.Fatalf("expected finished, got %s (error %q)", snap.Status, snap.Error)
	}
	if snap.Result == nil {
		t.Fatal("finished record has no result")
	}
	if snap.Result.Text != "document body" {
		t.Errorf("unexpected result text %q", snap.Result.Text)
	}
	if snap.Worker != "test-worker-1" {
		t.Errorf("unexpected worker identity %q", snap.Worker)
	}
}

func TestPoolContainsJobFailure(t *testing.T) {
	engine := mock.NewMockEngine()
	engine.ExtractFunc = func(ctx context.Context, payload []byte, filename string, opts core.ExtractionOptions) (*core.ExtractionResult, error) {
		if filename == "bad.txt" {
			return nil, errors.New("corrupt document")
		}
		return &core.ExtractionResult{Text: string(payload)}, nil
	}
	pool, broker := newTestPool(t, engine)

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("starting pool: %v", err)
	}
	defer pool.Stop()

	badID, err := broker.Enqueue(context.Background(), &core.JobDescriptor{
		Kind: core.KindSingle, Payload: []byte("x"), Filename: "bad.txt",
		Priority: core.PriorityNormal, Lane: core.PriorityNormal.Lane(),
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	badSnap := waitForTerminal(t, broker, badID)
	if badSnap.Status != core.StatusFailed {
		t.Fatalf("expected failed, got %s", badSnap.Status)
	}
	if badSnap.Error == "" {
		t.Error("failed record has no error message")
	}

	// The pool keeps consuming after a failure.
	goodID, err := broker.Enqueue(context.Background(), &core.JobDescriptor{
		Kind: core.KindSingle, Payload: []byte("fine"), Filename: "good.txt",
		Priority: core.PriorityNormal, Lane: core.PriorityNormal.Lane(),
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	goodSnap := waitForTerminal(t, broker, goodID)
	if goodSnap.Status != core.StatusFinished {
		t.Fatalf("expected finished, got %s (error %q)", goodSnap.Status, goodSnap.Error)
	}
}

func TestPoolContainsPanic(t *testing.T) {
	engine := mock.NewMockEngine()
	engine.ExtractFunc = func(ctx context.Context, payload []byte, filename string, opts core.ExtractionOptions) (*core.ExtractionResult, error) {
		panic("engine bug")
	}
	pool, broker := newTestPool(t, engine)

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("starting pool: %v", err)
	}
	defer pool.Stop()

	id, err := broker.Enqueue(context.Background(), &core.JobDescriptor{
		Kind: core.KindSingle, Payload: []byte("x"), Filename: "doc.txt",
		Priority: core.PriorityHigh, Lane: core.PriorityHigh.Lane(),
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	snap := waitForTerminal(t, broker, id)
	if snap.Status != core.StatusFailed {
		t.Fatalf("expected failed, got %s", snap.Status)
	}
}

func TestPoolStartTwice(t *testing.T) {
	pool, _ := newTestPool(t, mock.NewMockEngine())

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("starting pool: %v", err)
	}
	defer pool.Stop()

	if err := pool.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}
}

// startFailBroker refuses the started transition while letting every
// other broker operation through.
type startFailBroker struct {
	queue.Broker
}

func (b *startFailBroker) MarkStarted(ctx context.Context, lease *queue.Lease) error {
	return errors.New("store hiccup")
}

func TestPoolFailsRecordWhenStartReportFails(t *testing.T) {
	inner, err := badgerqueue.NewMemoryBroker()
	if err != nil {
		t.Fatalf("creating broker: %v", err)
	}
	t.Cleanup(func() { inner.Close() })
	broker := &startFailBroker{Broker: inner}

	runner, err := pipeline.NewRunner(mock.NewMockEngine())
	if err != nil {
		t.Fatalf("creating runner: %v", err)
	}
	pool, err := NewPool(broker, runner, WithSize(1))
	if err != nil {
		t.Fatalf("creating pool: %v", err)
	}
	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("starting pool: %v", err)
	}
	defer pool.Stop()

	id, err := broker.Enqueue(context.Background(), &core.JobDescriptor{
		Kind: core.KindSingle, Payload: []byte("body"), Filename: "doc.txt",
		Priority: core.PriorityNormal, Lane: core.PriorityNormal.Lane(),
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	// The descriptor is consumed at dequeue; the record must still end
	// terminal instead of lingering queued forever.
	snap := waitForTerminal(t, broker, id)
	if snap.Status != core.StatusFailed {
		t.Fatalf("expected failed, got %s", snap.Status)
	}
	if snap.Error == "" {
		t.Error("failed record has no error message")
	}
}

func TestPoolInvokesHooks(t *testing.T) {
	broker, err := badgerqueue.NewMemoryBroker()
	if err != nil {
		t.Fatalf("creating broker: %v", err)
	}
	t.Cleanup(func() { broker.Close() })

	runner, err := pipeline.NewRunner(mock.NewMockEngine())
	if err != nil {
		t.Fatalf("creating runner: %v", err)
	}

	seen := make(chan string, 1)
	completed := hook.Func(func(ctx context.Context, jobID string, result *core.JobResult) error {
		seen <- jobID
		return nil
	})

	pool, err := NewPool(broker, runner, WithSize(1), WithHooks(completed))
	if err != nil {
		t.Fatalf("creating pool: %v", err)
	}
	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("starting pool: %v", err)
	}
	defer pool.Stop()

	id, err := broker.Enqueue(context.Background(), &core.JobDescriptor{
		Kind: core.KindSingle, Payload: []byte("body"), Filename: "doc.txt",
		Priority: core.PriorityNormal, Lane: core.PriorityNormal.Lane(),
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	select {
	case got := <-seen:
		if got != id {
			t.Errorf("hook saw job %q, want %q", got, id)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("hook was never invoked")
	}
}

func TestPoolStopIsIdempotent(t *testing.T) {
	pool, _ := newTestPool(t, mock.NewMockEngine())

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("starting pool: %v", err)
	}
	pool.Stop()
	pool.Stop()
}
