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

import "errors"

var (
	// ErrNotFound indicates that no record exists for the requested job id,
	// either because it never existed or because its TTL elapsed.
	ErrNotFound = errors.New("job not found")

	// ErrUnavailable indicates the broker storage is unreachable or closed.
	// This is a service-level failure distinct from job content failures.
	ErrUnavailable = errors.New("queue unavailable")

	// ErrNotOwner indicates an update carrying a lease that does not own the job.
	ErrNotOwner = errors.New("job owned by another worker")

	// ErrResultShape indicates a stored result that could not be decoded
	// into the stable result shape.
	ErrResultShape = errors.New("stored result has unexpected shape")

	// ErrSerializationFailed indicates a serialization/deserialization failure.
	ErrSerializationFailed = errors.New("serialization failed")
)
