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


package core

import "fmt"

// ValidateDescriptor validates a JobDescriptor according to domain rules.
//
// Validation rules:
//   - Priority must be a valid value
//   - Lane must match the priority mapping
//   - Single jobs must carry a non-empty payload
//   - Batch jobs must carry at least one file
//
// NOT validated (checked later by the chunker when the job runs):
//   - Chunk size/overlap consistency
func ValidateDescriptor(d *JobDescriptor) error {
	if d == nil {
		return fmt.Errorf("%w: descriptor is nil", ErrInvalidSubmission)
	}

	switch d.Priority {
	case PriorityHigh, PriorityNormal, PriorityLow:
	default:
		return fmt.Errorf("%w: %w", ErrInvalidSubmission, ErrInvalidPriority)
	}

	if d.Lane != d.Priority.Lane() {
		return fmt.Errorf("%w: lane %q does not match priority %q", ErrInvalidSubmission, d.Lane, d.Priority)
	}

	switch d.Kind {
	case KindSingle:
		if len(d.Payload) == 0 {
			return fmt.Errorf("%w: %w", ErrInvalidSubmission, ErrEmptyPayload)
		}
	case KindBatch:
		if len(d.Files) == 0 {
			return fmt.Errorf("%w: %w", ErrInvalidSubmission, ErrEmptyBatch)
		}
	default:
		return fmt.Errorf("%w: unknown job kind %q", ErrInvalidSubmission, d.Kind)
	}

	return nil
}

// ValidateTransition enforces the monotonic job lifecycle.
// queued -> started -> finished|failed; equal-rank or backwards moves fail.
func ValidateTransition(from, to Status) error {
	if from.rank() < 0 || to.rank() < 0 {
		return fmt.Errorf("unknown status in transition %q -> %q", from, to)
	}
	if to.rank() <= from.rank() {
		return fmt.Errorf("%w: %q -> %q", ErrStatusRegression, from, to)
	}
	return nil
}

// ValidateRecord checks the result/error exclusivity invariant for a
// record that has left the queued/started states.
func ValidateRecord(r *JobRecord) error {
	if r == nil {
		return fmt.Errorf("record is nil")
	}
	if r.Result != nil && r.Error != "" {
		return fmt.Errorf("%w: job %s", ErrResultErrorConflict, r.ID)
	}
	if r.Status == StatusFinished && r.Result == nil {
		return fmt.Errorf("finished job %s has no result", r.ID)
	}
	if r.Status == StatusFailed && r.Error == "" {
		return fmt.Errorf("failed job %s has no error", r.ID)
	}
	return nil
}
