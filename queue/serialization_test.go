package queue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/poiesic/docq/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptorRoundTrip(t *testing.T) {
	d := &core.JobDescriptor{
		ID:          core.NewJobID(),
		Kind:        core.KindSingle,
		Payload:     []byte("payload bytes"),
		Filename:    "paper.pdf",
		Fingerprint: core.FingerprintPayload([]byte("payload bytes")),
		Priority:    core.PriorityHigh,
		Lane:        core.PriorityHigh.Lane(),
		Options: core.ProcessOptions{
			Chunking: core.ChunkOptions{Strategy: core.ChunkToken, Size: 512, Overlap: 64},
			Extra:    map[string]string{"source": "upload"},
		},
		SubmittedAt: time.Now().UTC().Truncate(time.Millisecond),
	}

	data, err := MarshalDescriptor(d)
	require.NoError(t, err)

	got, err := UnmarshalDescriptor(data)
	require.NoError(t, err)
	assert.Equal(t, d.ID, got.ID)
	assert.Equal(t, d.Payload, got.Payload)
	assert.Equal(t, d.Options.Chunking, got.Options.Chunking)
	assert.Equal(t, d.Options.Extra, got.Options.Extra)
	assert.True(t, d.SubmittedAt.Equal(got.SubmittedAt))
}

func TestSnapshotDecodesStoredResult(t *testing.T) {
	raw, err := EncodeResult(&core.JobResult{
		Text:           "body",
		Filename:       "doc.md",
		ProcessingTime: 1.25,
		Metadata:       core.ExtractionMetadata{Pages: 3, HeadersStrategy: "outline"},
	})
	require.NoError(t, err)

	now := time.Now().UTC()
	stored := &StoredRecord{
		ID:         "job-1",
		Status:     core.StatusFinished,
		EnqueuedAt: now,
		EndedAt:    &now,
		Result:     raw,
	}

	snap := stored.ToSnapshot()
	require.NotNil(t, snap.Result)
	assert.Equal(t, core.StatusFinished, snap.Status)
	assert.Equal(t, "body", snap.Result.Text)
	assert.Equal(t, 3, snap.Result.Metadata.Pages)
	assert.Empty(t, snap.ResultParseError)
}

func TestSnapshotPreservesFinishedOnMalformedResult(t *testing.T) {
	now := time.Now().UTC()
	stored := &StoredRecord{
		ID:         "job-2",
		Status:     core.StatusFinished,
		EnqueuedAt: now,
		EndedAt:    &now,
		// Not the expected result shape.
		Result: json.RawMessage(`"just a string"`),
	}

	snap := stored.ToSnapshot()
	// The parse problem is reported, the status is never downgraded.
	assert.Equal(t, core.StatusFinished, snap.Status)
	assert.Nil(t, snap.Result)
	assert.NotEmpty(t, snap.ResultParseError)
	assert.Contains(t, snap.ResultParseError, "unexpected shape")
}

func TestSnapshotOmitsOwnerToken(t *testing.T) {
	stored := &StoredRecord{
		ID:     "job-3",
		Status: core.StatusStarted,
		Worker: "worker-1",
		Owner:  "secret-lease-token",
	}

	snap := stored.ToSnapshot()
	data, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret-lease-token")
	assert.Equal(t, "worker-1", snap.Worker)
}

func TestStoredRecordValidate(t *testing.T) {
	result := json.RawMessage(`{"text":"body","processing_time":0.1}`)

	tests := []struct {
		name    string
		record  StoredRecord
		wantErr bool
	}{
		{"queued without result or error", StoredRecord{ID: "j1", Status: core.StatusQueued}, false},
		{"started without result or error", StoredRecord{ID: "j2", Status: core.StatusStarted}, false},
		{"finished with result", StoredRecord{ID: "j3", Status: core.StatusFinished, Result: result}, false},
		{"failed with error", StoredRecord{ID: "j4", Status: core.StatusFailed, Error: "boom"}, false},
		{"finished without result", StoredRecord{ID: "j5", Status: core.StatusFinished}, true},
		{"failed without error", StoredRecord{ID: "j6", Status: core.StatusFailed}, true},
		{"result and error together", StoredRecord{ID: "j7", Status: core.StatusFinished, Result: result, Error: "boom"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
