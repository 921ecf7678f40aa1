// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package policy implements EASY-backfill job scheduling over the
// free-space list maintained by internal/freespace.
package policy

// JobLookup resolves the static attributes of a job the workload loader
// preloaded at startup. A policy never invents resource/walltime
// requirements itself — it only learns of a job id through a submission
// event and must already know its shape.
type JobLookup interface {
	// Job returns the requested resource count and walltime for jobID, and
	// false if jobID was never present in the loaded workload.
	Job(jobID int) (resources int, walltime float64, ok bool)
}

// Emitter receives the scheduling decisions a Policy produces so its
// owner (internal/protocol.Session) can batch, sort, and encode them
// without the policy reaching back into session internals.
type Emitter interface {
	EmitAllocation(now float64, jobID int, resources []int)
	EmitRejection(now float64, jobID int)
	EmitPStateChange(now float64, rangesAndState string)
	EmitEnergyRequest(now float64)
	EmitWakeRequest(now float64, at float64)
	EmitNOP(now float64)
}

// FreeRange mirrors one free-space node for snapshot consumers outside
// this package.
type FreeRange struct {
	First, Last int
	Length      float64
}

// RunningJob mirrors one running job's allocation for snapshot consumers.
type RunningJob struct {
	ID         int
	Resources  int
	Alloc      []int
	FinishTime float64
}

// Snapshot is a read-only copy of a policy's state at a stable
// observation point (between exchanges, never mid-backfill).
type Snapshot struct {
	NbRes   int
	Free    []FreeRange
	Running []RunningJob
	Waiting []int
}

// Inspectable is implemented by policies that can report their state for
// invariant checking or live observation.
type Inspectable interface {
	Snapshot() Snapshot
}

// Policy is the general scheduling callback interface; EasyBackfill is
// the only implementation built out, but filler/FCFS/random policies
// (explicitly out of scope) would plug in here, as would
// internal/validate's invariant-checking decorator.
type Policy interface {
	OnSubmission(now float64, jobID int)
	OnCompletion(now float64, jobID int)
	OnRejection(now float64, jobID int)
	OnNOP(now float64)
	OnPStateChanged(now float64, payload string)
	OnEnergyConsumed(now float64, joules float64)
}
