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

import "errors"

// Domain validation errors
var (
	// ErrInvalidPriority indicates a priority label outside {high, normal, low}.
	ErrInvalidPriority = errors.New("invalid priority")

	// ErrInvalidSubmission indicates a submission failed validation before enqueue.
	ErrInvalidSubmission = errors.New("invalid submission")

	// ErrEmptyPayload indicates the document payload is empty.
	ErrEmptyPayload = errors.New("empty document payload")

	// ErrEmptyBatch indicates a batch submission contains no files.
	ErrEmptyBatch = errors.New("batch contains no files")

	// ErrStatusRegression indicates an attempted backwards status transition.
	ErrStatusRegression = errors.New("status transition would regress")

	// ErrResultErrorConflict indicates a record carries both a result and an error.
	ErrResultErrorConflict = errors.New("result and error are mutually exclusive")
)
