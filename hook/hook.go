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


// Package hook defines the downstream notification point for finished
// jobs. Hooks receive the stable result shape after the broker records
// completion; a hook error never changes the job's status.
package hook

import (
	"context"

	"github.com/poiesic/docq/core"
)

// Hook consumes the result of a successfully finished job.
// Implementations must be safe for concurrent use.
type Hook interface {
	// Completed is invoked once per finished job with its final result.
	Completed(ctx context.Context, jobID string, result *core.JobResult) error
}

// Func adapts a function to the Hook interface.
type Func func(ctx context.Context, jobID string, result *core.JobResult) error

// Completed implements Hook.
func (f Func) Completed(ctx context.Context, jobID string, result *core.JobResult) error {
	return f(ctx, jobID, result)
}
