package docq

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/docq/core"
	"github.com/poiesic/docq/queue"
	"github.com/poiesic/docq/worker"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	service, err := NewService("", WithInMemory())
	require.NoError(t, err)
	t.Cleanup(func() { service.Close() })
	return service
}

func startWorkers(t *testing.T, service *Service) {
	t.Helper()
	pool, err := service.NewWorkerPool(worker.WithSize(2))
	require.NoError(t, err)
	require.NoError(t, pool.Start(context.Background()))
	t.Cleanup(pool.Stop)
}

func awaitTerminal(t *testing.T, service *Service, id string) *queue.Snapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := service.Status(context.Background(), id)
		require.NoError(t, err)
		if snap.Status.Terminal() {
			return snap
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("job %s never reached a terminal status", id)
	return nil
}

func TestSubmitRejectsEmptyPayload(t *testing.T) {
	service := newTestService(t)

	_, err := service.Submit(context.Background(), Submission{Filename: "empty.txt"})
	assert.ErrorIs(t, err, core.ErrEmptyPayload)
}

func TestSubmitRejectsUnknownPriority(t *testing.T) {
	service := newTestService(t)

	_, err := service.Submit(context.Background(), Submission{
		Payload:  []byte("body"),
		Priority: "urgent",
	})
	assert.ErrorIs(t, err, core.ErrInvalidPriority)
}

func TestSubmitBatchRejectsEmptyList(t *testing.T) {
	service := newTestService(t)

	_, err := service.SubmitBatch(context.Background(), BatchSubmission{})
	assert.ErrorIs(t, err, core.ErrEmptyBatch)
}

func TestSingleJobEndToEnd(t *testing.T) {
	service := newTestService(t)
	startWorkers(t, service)

	doc := "# Findings\n\n" +
		"The review covered every subsystem and found the error budget intact. " +
		"Latency stayed within the agreed bounds for the entire quarter."

	id, err := service.Submit(context.Background(), Submission{
		Payload:  []byte(doc),
		Filename: "findings.md",
		Priority: "high",
		Options: core.ProcessOptions{
			Chunking: core.ChunkOptions{Strategy: core.ChunkHeader},
		},
	})
	require.NoError(t, err)

	snap := awaitTerminal(t, service, id)
	require.Equal(t, core.StatusFinished, snap.Status)
	require.NotNil(t, snap.Result)
	assert.Equal(t, "findings.md", snap.Result.Filename)
	assert.Equal(t, "outline", snap.Result.Metadata.HeadersStrategy)
	require.Len(t, snap.Result.Chunks, 1)
	assert.Equal(t, "Findings", snap.Result.Chunks[0].Header)
	assert.Empty(t, snap.ResultParseError)
}

func TestBatchJobEndToEnd(t *testing.T) {
	service := newTestService(t)
	startWorkers(t, service)

	id, err := service.SubmitBatch(context.Background(), BatchSubmission{
		Files: []core.BatchFile{
			{Payload: []byte("first document body text"), Filename: "a.txt"},
			{Payload: []byte{0xff, 0xfe}, Filename: "broken.bin"},
			{Payload: []byte("third document body text"), Filename: "c.txt"},
		},
	})
	require.NoError(t, err)

	snap := awaitTerminal(t, service, id)
	require.Equal(t, core.StatusFinished, snap.Status)
	require.NotNil(t, snap.Result)
	require.NotNil(t, snap.Result.Batch)

	batch := snap.Result.Batch
	assert.True(t, batch.Ok)
	assert.Equal(t, 3, batch.TotalFiles)
	assert.Equal(t, 2, batch.Successful)
	assert.Equal(t, 1, batch.Failed)
	require.Len(t, batch.Outcomes, 3)
	assert.Equal(t, "broken.bin", batch.Outcomes[1].Filename)
	assert.False(t, batch.Outcomes[1].Success)
}

func TestStatusUnknownJob(t *testing.T) {
	service := newTestService(t)

	_, err := service.Status(context.Background(), core.NewJobID())
	assert.ErrorIs(t, err, queue.ErrNotFound)
}

func TestHealthCheck(t *testing.T) {
	service := newTestService(t)
	assert.NoError(t, service.HealthCheck(context.Background()))
}
