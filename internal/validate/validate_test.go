// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jontk/batsched/internal/freespace"
	"github.com/jontk/batsched/internal/policy"
)

func TestCheck_HealthySnapshot(t *testing.T) {
	snap := policy.Snapshot{
		NbRes:   4,
		Free:    []policy.FreeRange{{First: 2, Last: 3, Length: freespace.Infinity}},
		Running: []policy.RunningJob{{ID: 0, Resources: 2, Alloc: []int{0, 1}, FinishTime: 10}},
	}
	assert.NoError(t, Check(snap))
}

func TestCheck_DetectsAdjacentFreeRanges(t *testing.T) {
	snap := policy.Snapshot{
		NbRes: 4,
		Free:  []policy.FreeRange{{First: 0, Last: 1}, {First: 2, Last: 3}},
	}
	require.Error(t, Check(snap))
}

func TestCheck_DetectsOverlap(t *testing.T) {
	snap := policy.Snapshot{
		NbRes:   4,
		Free:    []policy.FreeRange{{First: 2, Last: 3}},
		Running: []policy.RunningJob{{ID: 0, Resources: 2, Alloc: []int{2, 3}}},
	}
	require.Error(t, Check(snap))
}

func TestCheck_DetectsResourceCountMismatch(t *testing.T) {
	snap := policy.Snapshot{
		NbRes: 4,
		Free:  []policy.FreeRange{{First: 0, Last: 1}},
	}
	require.Error(t, Check(snap))
}

func TestCheck_DetectsAllocationLengthMismatch(t *testing.T) {
	snap := policy.Snapshot{
		NbRes:   4,
		Free:    []policy.FreeRange{{First: 2, Last: 3}},
		Running: []policy.RunningJob{{ID: 0, Resources: 3, Alloc: []int{0, 1}}},
	}
	require.Error(t, Check(snap))
}

type fakePolicy struct {
	snap policy.Snapshot
}

func (f *fakePolicy) OnSubmission(now float64, jobID int)          {}
func (f *fakePolicy) OnCompletion(now float64, jobID int)          {}
func (f *fakePolicy) OnRejection(now float64, jobID int)           {}
func (f *fakePolicy) OnNOP(now float64)                            {}
func (f *fakePolicy) OnPStateChanged(now float64, payload string)  {}
func (f *fakePolicy) OnEnergyConsumed(now float64, joules float64) {}
func (f *fakePolicy) Snapshot() policy.Snapshot                    { return f.snap }

func TestValidatingMachine_PanicsOnViolation(t *testing.T) {
	fp := &fakePolicy{snap: policy.Snapshot{
		NbRes: 4,
		Free:  []policy.FreeRange{{First: 0, Last: 0}, {First: 1, Last: 1}},
	}}
	vm := New(fp, fp)
	assert.Panics(t, func() { vm.OnNOP(0) })
}

func TestValidatingMachine_PassesThroughWhenHealthy(t *testing.T) {
	fp := &fakePolicy{snap: policy.Snapshot{
		NbRes: 2,
		Free:  []policy.FreeRange{{First: 0, Last: 1}},
	}}
	vm := New(fp, fp)
	assert.NotPanics(t, func() { vm.OnNOP(0) })
}
