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


package pipeline

import "errors"

var (
	// ErrEngineRequired is returned when a Runner is created without an engine.
	ErrEngineRequired = errors.New("extraction engine is required")

	// ErrUnknownKind is returned for a descriptor whose kind the runner
	// cannot dispatch.
	ErrUnknownKind = errors.New("unknown job kind")

	// ErrEmptyBatch is returned for a batch descriptor with no files.
	ErrEmptyBatch = errors.New("batch contains no files")
)
