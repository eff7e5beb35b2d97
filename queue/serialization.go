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


package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/poiesic/docq/core"
)

// StoredRecord is the persisted form of a JobRecord. The result is kept
// as raw JSON so the status query can surface decode problems without
// touching the stored status, and so the stored bytes are exactly the
// stable wire shape handed to downstream hooks.
type StoredRecord struct {
	ID          string          `json:"job_id"`
	Status      core.Status     `json:"status"`
	Lane        string          `json:"lane"`
	Filename    string          `json:"filename,omitempty"`
	Fingerprint string          `json:"fingerprint,omitempty"`
	Worker      string          `json:"worker,omitempty"`
	Owner       string          `json:"owner,omitempty"`
	EnqueuedAt  time.Time       `json:"enqueued_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	EndedAt     *time.Time      `json:"ended_at,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// MarshalDescriptor serializes a JobDescriptor to bytes.
func MarshalDescriptor(d *core.JobDescriptor) ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("%w: descriptor %s: %w", ErrSerializationFailed, d.ID, err)
	}
	return data, nil
}

// UnmarshalDescriptor deserializes a JobDescriptor from bytes.
func UnmarshalDescriptor(data []byte) (*core.JobDescriptor, error) {
	var d core.JobDescriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &d, nil
}

// MarshalRecord serializes a StoredRecord to bytes.
func MarshalRecord(r *StoredRecord) ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("%w: record %s: %w", ErrSerializationFailed, r.ID, err)
	}
	return data, nil
}

// UnmarshalRecord deserializes a StoredRecord from bytes.
func UnmarshalRecord(data []byte) (*StoredRecord, error) {
	var r StoredRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &r, nil
}

// EncodeResult serializes a JobResult into the stable wire shape.
func EncodeResult(result *core.JobResult) (json.RawMessage, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

// DecodeResult deserializes a stored result. Returns ErrResultShape when
// the bytes cannot be interpreted as a JobResult.
func DecodeResult(raw json.RawMessage) (*core.JobResult, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var result core.JobResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResultShape, err)
	}
	return &result, nil
}

// Validate checks the record-level invariants of the stored form:
// result and error stay mutually exclusive, finished implies a result,
// failed implies an error. Presence of the stored bytes is what the
// invariant is about; the shape is checked at read time.
func (r *StoredRecord) Validate() error {
	rec := &core.JobRecord{ID: r.ID, Status: r.Status, Error: r.Error}
	if len(r.Result) > 0 {
		rec.Result = &core.JobResult{}
	}
	return core.ValidateRecord(rec)
}

// ToSnapshot converts a stored record into a status-query snapshot,
// decoding the result lazily. A decode failure on a finished record sets
// ResultParseError without downgrading the status.
func (r *StoredRecord) ToSnapshot() *Snapshot {
	snap := &Snapshot{
		JobRecord: core.JobRecord{
			ID:          r.ID,
			Status:      r.Status,
			Lane:        r.Lane,
			Filename:    r.Filename,
			Fingerprint: r.Fingerprint,
			Worker:      r.Worker,
			EnqueuedAt:  r.EnqueuedAt,
			StartedAt:   r.StartedAt,
			EndedAt:     r.EndedAt,
			Error:       r.Error,
		},
	}

	result, err := DecodeResult(r.Result)
	if err != nil {
		snap.ResultParseError = err.Error()
		return snap
	}
	snap.Result = result
	return snap
}
