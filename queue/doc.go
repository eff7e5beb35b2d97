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


// Package queue provides the broker abstraction layer for docq.
//
// This package defines the Broker interface that decouples queue
// implementation from job orchestration. It allows different broker
// backends (BadgerDB, in-memory, etc.) to be used interchangeably.
//
// # Constructor Return Type Pattern
//
// Backend packages follow a "return interface" pattern for public
// constructors to enforce abstraction:
//
//	broker, err := badger.NewBroker(path)  // returns queue.Broker interface
//
// # Architecture
//
// The broker owns two kinds of state:
//
//   - Lanes: per-priority FIFO queues of JobDescriptors. A descriptor
//     is consumed exactly once by one worker via an atomic dequeue.
//   - Records: mutable JobRecords tracking lifecycle status, guarded by
//     an ownership lease issued at dequeue time. Finished and failed
//     records are retained for their configured TTL and then purged.
//
// # Thread Safety
//
// All broker implementations must be thread-safe and support concurrent
// access from multiple worker goroutines. Enqueue, Dequeue and Update
// are atomic with respect to each other.
package queue
