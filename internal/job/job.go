// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package job holds the scheduling record exchanged between the
// protocol session and the scheduling policy.
package job

// Job is a single workload submission. The submission attributes are set
// once when the job is loaded and never change; the scheduling attributes
// are mutated by the policy as the job moves from waiting to running to
// complete.
type Job struct {
	// ID is the identifier used on the wire and in the workload descriptor.
	ID int

	// SubmitTime is the time the job was declared to the scheduler, in
	// simulated seconds.
	SubmitTime float64

	// Walltime is the requested maximum duration.
	Walltime float64

	// Resources is the number of machines requested. Always positive.
	Resources int

	// Profile is an opaque tag passed through from the workload descriptor;
	// batsched never interprets it.
	Profile string

	// SubmitIndex records arrival order among all jobs ever submitted, used
	// to break ties when two running jobs share a finish time. (Ties between
	// outbound decisions are broken by the session's own emission order.)
	SubmitIndex int

	// Alloc is the ordered, contiguous range of machine indices assigned to
	// this job. Populated once the job starts running; len(Alloc) ==
	// Resources whenever StartTime is set.
	Alloc []int

	// StartTime is set when the job is placed on the free-space list.
	StartTime float64

	// FinishTime is StartTime+Walltime while the job is running, and is
	// overwritten with the actual completion time once the simulator
	// reports onJobCompletion.
	FinishTime float64

	// started records whether StartTime/FinishTime/Alloc are meaningful.
	started bool
}

// Start records the scheduling decision for job at the given simulated
// time, on the given contiguous allocation.
func (j *Job) Start(now float64, alloc []int) {
	j.Alloc = alloc
	j.StartTime = now
	j.FinishTime = now + j.Walltime
	j.started = true
}

// Started reports whether the job has been placed on the machines.
func (j *Job) Started() bool {
	return j.started
}

// FirstResource returns the lowest machine index in the job's allocation.
func (j *Job) FirstResource() int {
	return j.Alloc[0]
}

// LastResource returns the highest machine index in the job's allocation.
func (j *Job) LastResource() int {
	return j.Alloc[len(j.Alloc)-1]
}
