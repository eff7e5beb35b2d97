// Package worker runs the consuming side of the job queue. A Pool owns
// a fixed set of long-lived worker loops that dequeue descriptors,
// execute them through a pipeline runner, and report the outcome back
// to the broker under the job's lease. The pool also reaps jobs whose
// workers died mid-flight.
package worker
