// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"fmt"
	"sort"

	apperrors "github.com/jontk/batsched/pkg/errors"

	"github.com/jontk/batsched/internal/freespace"
	"github.com/jontk/batsched/internal/job"
)

// EasyBackfill implements the EASY-backfill scheduling discipline: the
// head of the waiting queue gets an absolute reservation, and any job
// behind it may backfill as long as it does not delay that reservation: a
// job placed on free space the reservation needs must finish before the
// reservation's projected start time.
type EasyBackfill struct {
	nbRes           int
	space           *freespace.List
	waiting         []*job.Job
	running         []*job.Job
	lookup          JobLookup
	emit            Emitter
	nextSubmitIndex int
}

// NewEasyBackfill constructs an EasyBackfill over a cluster of nbRes
// machines, resolving job shape via lookup and reporting decisions to
// emit.
func NewEasyBackfill(nbRes int, lookup JobLookup, emit Emitter) *EasyBackfill {
	return &EasyBackfill{
		nbRes:  nbRes,
		space:  freespace.New(nbRes),
		lookup: lookup,
		emit:   emit,
	}
}

func (p *EasyBackfill) OnSubmission(now float64, jobID int) {
	resources, walltime, ok := p.lookup.Job(jobID)
	if !ok {
		panic(apperrors.New(apperrors.CodeUnknownJobID, fmt.Sprintf("submission of job %d not present in workload", jobID)))
	}

	j := &job.Job{
		ID:          jobID,
		SubmitTime:  now,
		Walltime:    walltime,
		Resources:   resources,
		SubmitIndex: p.nextSubmitIndex,
	}
	p.nextSubmitIndex++

	p.waiting = append(p.waiting, j)
	p.schedule(now)
}

func (p *EasyBackfill) OnCompletion(now float64, jobID int) {
	idx := p.runningIndex(jobID)
	if idx == -1 {
		panic(apperrors.New(apperrors.CodeUnknownRunningJob, fmt.Sprintf("completion of job %d not in running set", jobID)))
	}

	r := p.running[idx]
	p.space.Unassign(r.FirstResource(), r.LastResource(), r.Resources)
	p.running = append(p.running[:idx], p.running[idx+1:]...)
	r.FinishTime = now

	p.schedule(now)
}

// Snapshot returns a read-only view of the scheduler's current state, for
// internal/validate's invariant checks and pkg/observer's live feed. It
// never blocks the protocol loop and never exposes mutable internals.
func (p *EasyBackfill) Snapshot() Snapshot {
	free := make([]FreeRange, 0)
	p.space.Nodes(func(n *freespace.Node) bool {
		free = append(free, FreeRange{First: n.First, Last: n.Last, Length: n.Length})
		return true
	})

	running := make([]RunningJob, len(p.running))
	for i, r := range p.running {
		alloc := make([]int, len(r.Alloc))
		copy(alloc, r.Alloc)
		running[i] = RunningJob{ID: r.ID, Resources: r.Resources, Alloc: alloc, FinishTime: r.FinishTime}
	}

	waiting := make([]int, len(p.waiting))
	for i, w := range p.waiting {
		waiting[i] = w.ID
	}

	return Snapshot{NbRes: p.nbRes, Free: free, Running: running, Waiting: waiting}
}

// OnRejection, OnNOP, OnPStateChanged and OnEnergyConsumed carry no
// scheduling consequence for EASY-backfill; the simulator is free to
// send them at any time and they never perturb the waiting queue, the
// running set, or the free-space list.
func (p *EasyBackfill) OnRejection(now float64, jobID int)           {}
func (p *EasyBackfill) OnNOP(now float64)                            {}
func (p *EasyBackfill) OnPStateChanged(now float64, payload string)  {}
func (p *EasyBackfill) OnEnergyConsumed(now float64, joules float64) {}

func (p *EasyBackfill) runningIndex(jobID int) int {
	for i, r := range p.running {
		if r.ID == jobID {
			return i
		}
	}
	return -1
}

// schedule re-evaluates the waiting queue after any event that may have
// freed or consumed resources.
func (p *EasyBackfill) schedule(now float64) {
	p.drainHead(now)
	if len(p.waiting) > 1 {
		p.backfill(now)
	}
}

// drainHead greedily places the front of the waiting queue, ignoring
// walltime, stopping at the first job that doesn't fit anywhere.
func (p *EasyBackfill) drainHead(now float64) {
	for len(p.waiting) > 0 {
		h := p.waiting[0]
		node := p.firstFit(h.Resources)
		if node == nil {
			return
		}
		alloc := p.space.Assign(node, h.Resources)
		p.place(h, now, alloc)
		p.waiting = p.waiting[1:]
	}
}

// backfill protects the new waiting head's reservation, then lets later
// jobs fill in around it without delaying it.
func (p *EasyBackfill) backfill(now float64) {
	h := p.waiting[0]
	p.waiting = p.waiting[1:]

	hFirst, hLast, hStart := p.projectReservation(h, now)
	virtual := p.carveVirtualSpace(hFirst, hLast, hStart, now)

	rest := p.waiting
	p.waiting = nil
	for _, j := range rest {
		node := p.firstFitWithTime(j.Resources, j.Walltime)
		if node == nil {
			p.waiting = append(p.waiting, j)
			continue
		}
		alloc := p.space.Assign(node, j.Resources)
		p.place(j, now, alloc)
	}

	p.restoreVirtualSpace(virtual)

	p.waiting = append([]*job.Job{h}, p.waiting...)
}

func (p *EasyBackfill) place(j *job.Job, now float64, alloc []int) {
	j.Start(now, alloc)
	p.running = append(p.running, j)
	p.emit.EmitAllocation(now, j.ID, alloc)
}

// firstFit returns the first free-space node with room for resources
// machines, ignoring length.
func (p *EasyBackfill) firstFit(resources int) *freespace.Node {
	var found *freespace.Node
	p.space.Nodes(func(n *freespace.Node) bool {
		if resources <= n.Res() {
			found = n
			return false
		}
		return true
	})
	return found
}

// firstFitWithTime additionally requires the node be long enough not to
// delay whatever reservation it's currently carved around.
func (p *EasyBackfill) firstFitWithTime(resources int, walltime float64) *freespace.Node {
	var found *freespace.Node
	p.space.Nodes(func(n *freespace.Node) bool {
		if resources <= n.Res() && walltime <= n.Length {
			found = n
			return false
		}
		return true
	})
	return found
}

// projectReservation simulates completions, in ascending finish-time
// order, on a deep copy of the free-space list until h fits, returning
// the allocation it would receive and the time it would start.
func (p *EasyBackfill) projectReservation(h *job.Job, now float64) (first, last int, start float64) {
	clone := p.space.Clone()

	running := make([]*job.Job, len(p.running))
	copy(running, p.running)
	sort.Slice(running, func(i, j int) bool {
		if running[i].FinishTime != running[j].FinishTime {
			return running[i].FinishTime < running[j].FinishTime
		}
		return running[i].SubmitIndex < running[j].SubmitIndex
	})

	for _, r := range running {
		node := clone.Unassign(r.FirstResource(), r.LastResource(), r.Resources)
		if h.Resources <= node.Res() {
			alloc := clone.Assign(node, h.Resources)
			return alloc[0], alloc[len(alloc)-1], r.FinishTime
		}
	}

	panic(apperrors.New(apperrors.CodeUnplaceableJob, fmt.Sprintf("job %d can never fit in the cluster", h.ID)))
}

// virtualSpace records a change carveVirtualSpace made so
// restoreVirtualSpace can undo it exactly.
type virtualSpace struct {
	inserted  *freespace.Node
	shortened *freespace.Node
}

// carveVirtualSpace walks the live free-space list and shortens or
// splits every node touching [hFirst, hLast] so no later backfill
// decision can delay the reservation starting at hStart. See the
// geometry table this implements: a node whose edge aligns with the
// reservation, or that starts inside it, is shortened in place; a node the
// reservation cuts through is split into an infinite-length remainder and
// a shortened remainder.
func (p *EasyBackfill) carveVirtualSpace(hFirst, hLast int, hStart, now float64) []virtualSpace {
	var changes []virtualSpace

	// Unlike every other traversal in this package, this one does NOT
	// stop at the first structural match: a real free-space node may
	// only partially overlap [hFirst, hLast] (the rest of the range
	// still belongs to a running job), so several disjoint nodes can
	// each need their length capped. Iteration only terminates once the
	// node containing hLast's far edge has been processed.
	stop := false
	p.space.Nodes(func(n *freespace.Node) bool {
		// n's own [First,Last] is deliberately left untouched: only its
		// Length is tightened. The freshly inserted sibling covers the
		// non-overlapping remainder at full length, so two consecutive
		// nodes may legitimately share a First or Last while this
		// reservation is being protected.
		switch {
		case n.First == hFirst:
			n.Length = hStart - now
			changes = append(changes, virtualSpace{shortened: n})
		case n.First < hFirst && hFirst <= n.Last:
			ins := p.space.InsertBefore(n.First, hFirst-1, freespace.Infinity, n)
			n.Length = hStart - now
			changes = append(changes, virtualSpace{inserted: ins, shortened: n})
		case hFirst < n.First && n.First <= hLast:
			n.Length = hStart - now
			changes = append(changes, virtualSpace{shortened: n})
		}

		switch {
		case n.Last == hLast:
			n.Length = hStart - now
			changes = append(changes, virtualSpace{shortened: n})
		case n.First <= hLast && hLast < n.Last:
			ins := p.space.InsertBefore(hLast+1, n.Last, freespace.Infinity, n)
			n.Length = hStart - now
			changes = append(changes, virtualSpace{inserted: ins, shortened: n})
			stop = true
		}

		return !stop
	})

	return changes
}

// restoreVirtualSpace removes every node carveVirtualSpace inserted and
// restores every node it shortened back to an unconstrained length.
func (p *EasyBackfill) restoreVirtualSpace(changes []virtualSpace) {
	for _, c := range changes {
		if c.inserted != nil {
			p.space.Remove(c.inserted)
		}
		if c.shortened != nil {
			c.shortened.Length = freespace.Infinity
		}
	}
}
