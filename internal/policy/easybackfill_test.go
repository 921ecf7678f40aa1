// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type job_spec struct {
	resources int
	walltime  float64
}

type fakeLookup map[int]job_spec

func (f fakeLookup) Job(jobID int) (int, float64, bool) {
	s, ok := f[jobID]
	return s.resources, s.walltime, ok
}

type allocation struct {
	jobID     int
	resources []int
	now       float64
}

type recordingEmitter struct {
	allocs []allocation
}

func (r *recordingEmitter) EmitAllocation(now float64, jobID int, resources []int) {
	r.allocs = append(r.allocs, allocation{jobID: jobID, resources: resources, now: now})
}
func (r *recordingEmitter) EmitRejection(now float64, jobID int)        {}
func (r *recordingEmitter) EmitPStateChange(now float64, payload string) {}
func (r *recordingEmitter) EmitEnergyRequest(now float64)                {}
func (r *recordingEmitter) EmitWakeRequest(now float64, at float64)      {}
func (r *recordingEmitter) EmitNOP(now float64)                          {}

func (r *recordingEmitter) allocFor(jobID int) (allocation, bool) {
	for _, a := range r.allocs {
		if a.jobID == jobID {
			return a, true
		}
	}
	return allocation{}, false
}

func TestEasyBackfill_SingleJobExactFit(t *testing.T) {
	lookup := fakeLookup{0: {resources: 4, walltime: 10}}
	emit := &recordingEmitter{}
	p := NewEasyBackfill(4, lookup, emit)

	p.OnSubmission(0, 0)

	alloc, ok := emit.allocFor(0)
	require.True(t, ok)
	assert.Equal(t, []int{0, 1, 2, 3}, alloc.resources)

	p.OnCompletion(10, 0)
	assert.Empty(t, p.running)
	assert.Equal(t, 0, p.space.Head().First)
	assert.Equal(t, 3, p.space.Head().Last)
	assert.Nil(t, p.space.Head().Next())
}

func TestEasyBackfill_BackfillWins(t *testing.T) {
	lookup := fakeLookup{
		0: {resources: 3, walltime: 100},
		1: {resources: 4, walltime: 10},
		2: {resources: 1, walltime: 5},
	}
	emit := &recordingEmitter{}
	p := NewEasyBackfill(4, lookup, emit)

	p.OnSubmission(0, 0)
	p.OnSubmission(0, 1)
	p.OnSubmission(0, 2)

	a0, ok := emit.allocFor(0)
	require.True(t, ok)
	assert.Equal(t, []int{0, 1, 2}, a0.resources)

	_, ok = emit.allocFor(1)
	assert.False(t, ok, "J1 must wait for its reservation")

	a2, ok := emit.allocFor(2)
	require.True(t, ok, "J2 should backfill since its walltime fits before J1's reservation")
	assert.Equal(t, []int{3}, a2.resources)
	assert.Equal(t, 0.0, a2.now)
}

func TestEasyBackfill_BackfillRejectedByWalltime(t *testing.T) {
	lookup := fakeLookup{
		0: {resources: 3, walltime: 100},
		1: {resources: 4, walltime: 10},
		2: {resources: 1, walltime: 200},
	}
	emit := &recordingEmitter{}
	p := NewEasyBackfill(4, lookup, emit)

	p.OnSubmission(0, 0)
	p.OnSubmission(0, 1)
	p.OnSubmission(0, 2)

	_, ok := emit.allocFor(2)
	assert.False(t, ok, "J2's walltime would delay J1's reservation and must not backfill")

	require.Len(t, emit.allocs, 1)
	assert.Equal(t, 0, emit.allocs[0].jobID)
}

func TestEasyBackfill_AdjacentMergeOnUnassign(t *testing.T) {
	lookup := fakeLookup{
		0: {resources: 3, walltime: 10},
		1: {resources: 3, walltime: 10},
	}
	emit := &recordingEmitter{}
	p := NewEasyBackfill(6, lookup, emit)

	p.OnSubmission(0, 0)
	p.OnSubmission(0, 1)

	p.OnCompletion(10, 0)
	p.OnCompletion(10, 1)

	assert.Equal(t, 0, p.space.Head().First)
	assert.Equal(t, 5, p.space.Head().Last)
	assert.Nil(t, p.space.Head().Next())
}

func TestEasyBackfill_UnknownJobPanics(t *testing.T) {
	lookup := fakeLookup{}
	emit := &recordingEmitter{}
	p := NewEasyBackfill(4, lookup, emit)

	assert.Panics(t, func() { p.OnSubmission(0, 99) })
}

func TestEasyBackfill_UnknownRunningJobPanics(t *testing.T) {
	lookup := fakeLookup{0: {resources: 1, walltime: 1}}
	emit := &recordingEmitter{}
	p := NewEasyBackfill(4, lookup, emit)

	assert.Panics(t, func() { p.OnCompletion(0, 0) })
}
