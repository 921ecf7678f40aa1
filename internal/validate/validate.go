// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package validate wraps a policy.Policy with the continuous invariant
// checks spec.md §8 names, re-verified at every stable observation point
// (after a callback returns, never mid-backfill).
package validate

import (
	"fmt"

	"github.com/jontk/batsched/internal/policy"
	apperrors "github.com/jontk/batsched/pkg/errors"
)

// ValidatingMachine decorates an Inspectable policy.Policy, re-checking
// its invariants after each callback and panicking with a structured
// error the moment one breaks. Bound to the CLI's --validate flag; an
// unwrapped policy pays none of this cost.
type ValidatingMachine struct {
	inner policy.Policy
	snap  policy.Inspectable
}

// New wraps inner. inner must also implement policy.Inspectable; callers
// normally pass the same *policy.EasyBackfill value twice.
func New(inner policy.Policy, snap policy.Inspectable) *ValidatingMachine {
	return &ValidatingMachine{inner: inner, snap: snap}
}

func (m *ValidatingMachine) OnSubmission(now float64, jobID int) {
	m.inner.OnSubmission(now, jobID)
	m.checkAfter()
}

func (m *ValidatingMachine) OnCompletion(now float64, jobID int) {
	m.inner.OnCompletion(now, jobID)
	m.checkAfter()
}

func (m *ValidatingMachine) OnRejection(now float64, jobID int) {
	m.inner.OnRejection(now, jobID)
	m.checkAfter()
}

func (m *ValidatingMachine) OnNOP(now float64) {
	m.inner.OnNOP(now)
	m.checkAfter()
}

func (m *ValidatingMachine) OnPStateChanged(now float64, payload string) {
	m.inner.OnPStateChanged(now, payload)
	m.checkAfter()
}

func (m *ValidatingMachine) OnEnergyConsumed(now float64, joules float64) {
	m.inner.OnEnergyConsumed(now, joules)
	m.checkAfter()
}

func (m *ValidatingMachine) checkAfter() {
	snap := m.snap.Snapshot()
	if err := Check(snap); err != nil {
		panic(err)
	}
}

// Check re-verifies spec.md §8's continuous invariants against a single
// snapshot, returning the first violation found.
func Check(snap policy.Snapshot) error {
	if err := checkFreeListSorted(snap.Free); err != nil {
		return err
	}
	if err := checkResourceConservation(snap); err != nil {
		return err
	}
	if err := checkAllocationLengths(snap.Running); err != nil {
		return err
	}
	return nil
}

// checkFreeListSorted verifies the free-space list is sorted by First,
// disjoint, and non-adjacent — the relaxation spec.md §9 documents for
// mid-backfill virtual splits does not apply at a stable observation
// point, so any shared or overlapping endpoint here is a real bug.
func checkFreeListSorted(free []policy.FreeRange) error {
	for i, f := range free {
		if f.Last < f.First {
			return apperrors.New(apperrors.CodeInvariantViolation, fmt.Sprintf("free range %d has last < first (%d,%d)", i, f.First, f.Last))
		}
		if i == 0 {
			continue
		}
		prev := free[i-1]
		if f.First <= prev.Last+1 {
			return apperrors.New(apperrors.CodeInvariantViolation, fmt.Sprintf("free list not disjoint/non-adjacent at index %d: [%d,%d] then [%d,%d]", i, prev.First, prev.Last, f.First, f.Last))
		}
	}
	return nil
}

// checkResourceConservation verifies running allocations plus free
// ranges account for exactly NbRes machines, with no overlap.
func checkResourceConservation(snap policy.Snapshot) error {
	used := make(map[int]int)
	total := 0

	for _, r := range snap.Running {
		for _, m := range r.Alloc {
			used[m]++
			if used[m] > 1 {
				return apperrors.New(apperrors.CodeInvariantViolation, fmt.Sprintf("machine %d allocated to more than one running job", m))
			}
		}
		total += len(r.Alloc)
	}

	for _, f := range snap.Free {
		for m := f.First; m <= f.Last; m++ {
			if used[m] > 0 {
				return apperrors.New(apperrors.CodeInvariantViolation, fmt.Sprintf("machine %d is both free and allocated", m))
			}
		}
		total += f.Last - f.First + 1
	}

	if total != snap.NbRes {
		return apperrors.New(apperrors.CodeInvariantViolation, fmt.Sprintf("running+free machine count %d does not equal nb_res %d", total, snap.NbRes))
	}
	return nil
}

// checkAllocationLengths verifies every running job's allocation matches
// the resource count it was granted.
func checkAllocationLengths(running []policy.RunningJob) error {
	for _, r := range running {
		if len(r.Alloc) != r.Resources {
			return apperrors.New(apperrors.CodeInvariantViolation, fmt.Sprintf("job %d allocation length %d does not match requested resources %d", r.ID, len(r.Alloc), r.Resources))
		}
	}
	return nil
}
