// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/jontk/batsched/internal/policy"
	"github.com/jontk/batsched/internal/transport"
	apperrors "github.com/jontk/batsched/pkg/errors"
	"github.com/jontk/batsched/pkg/logging"
)

// Session owns current_time, the pending decisions buffer, and the
// connection to the simulator, dispatching each inbound sub-event to a
// policy.Policy in order and replying with the decisions it produced.
type Session struct {
	framer transport.Framer
	policy policy.Policy
	log    logging.Logger
	runID  string
	ctx    context.Context

	currentTime float64
	emitter     *sessionEmitter
	snapshot    func()
}

// New constructs a Session around framer, with its own decision emitter
// already live. The caller must construct the policy against Emitter()
// and register it with SetPolicy before calling Run — this is the seam
// that avoids the policy ever reaching back into Session internals: the
// policy only ever sees the narrow Emitter interface.
func New(framer transport.Framer, log logging.Logger) *Session {
	runID := uuid.NewString()
	ctx := logging.WithRunID(context.Background(), runID)
	return &Session{
		framer:  framer,
		log:     log.WithContext(ctx),
		runID:   runID,
		ctx:     ctx,
		emitter: &sessionEmitter{},
	}
}

// Emitter returns the policy.Emitter handle the policy under construction
// should be given.
func (s *Session) Emitter() policy.Emitter {
	return s.emitter
}

// SetPolicy registers the policy that will handle every dispatched
// sub-event. Must be called before Run.
func (s *Session) SetPolicy(p policy.Policy) {
	s.policy = p
}

// OnSnapshot registers a callback invoked after each reply is sent,
// receiving no arguments; it exists for internal/stats and pkg/observer
// to pull a read-only snapshot without the protocol loop depending on
// them directly. Nil disables snapshotting.
func (s *Session) OnSnapshot(fn func()) {
	s.snapshot = fn
}

// RunID returns the correlation id stamped on every log line for this
// session's run.
func (s *Session) RunID() string {
	return s.runID
}

// CurrentTime returns the simulated time of the exchange most recently
// handled, for snapshot callbacks that want to timestamp what they see.
func (s *Session) CurrentTime() float64 {
	return s.currentTime
}

// Run loops: read a frame, parse it, dispatch its sub-events, reply with
// the resulting decisions, until the simulator closes the connection.
func (s *Session) Run() error {
	for {
		raw, err := s.framer.Read()
		if err != nil {
			if err == transport.ErrClosed {
				s.log.Info("simulator closed connection")
				return nil
			}
			return err
		}

		if err := s.handleFrame(raw); err != nil {
			return err
		}

		if s.snapshot != nil {
			s.snapshot()
		}
	}
}

func (s *Session) handleFrame(raw string) error {
	msg, err := ParseInbound(raw)
	if err != nil {
		return err
	}
	s.currentTime = msg.Now

	s.emitter.reset()
	for _, event := range msg.SubEvents {
		s.dispatch(event)
	}

	reply := EncodeOutbound(s.currentTime, s.emitter.commands())
	s.log.Debug("replying", "now", s.currentTime, "reply", reply)
	return s.framer.Write(reply)
}

func (s *Session) dispatch(event SubEvent) {
	switch event.Kind {
	case KindSubmission:
		jobID := mustParseJobID(event.Payload)
		s.policy.OnSubmission(event.Time, jobID)
	case KindCompletion:
		jobID := mustParseJobID(event.Payload)
		s.policy.OnCompletion(event.Time, jobID)
	case KindRejection:
		s.policy.OnRejection(event.Time, 0)
	case KindNOP:
		s.policy.OnNOP(event.Time)
	case KindPStateChange:
		s.policy.OnPStateChanged(event.Time, event.Payload)
	case KindEnergyReport:
		s.policy.OnEnergyConsumed(event.Time, mustParseFloat(event.Payload))
	}
}

func mustParseJobID(payload string) int {
	id, err := strconv.Atoi(payload)
	if err != nil {
		panic(apperrors.Wrap(apperrors.CodeMalformedField, fmt.Sprintf("malformed job id payload %q", payload), err))
	}
	return id
}

func mustParseFloat(payload string) float64 {
	v, err := strconv.ParseFloat(payload, 64)
	if err != nil {
		panic(apperrors.Wrap(apperrors.CodeMalformedField, fmt.Sprintf("malformed numeric payload %q", payload), err))
	}
	return v
}

// sessionEmitter implements policy.Emitter, buffering one exchange's
// worth of decisions so Session can sort and batch them before replying.
type sessionEmitter struct {
	seq      int
	allocsAt map[float64][]jobAlloc
	allocSeq map[float64]int
	others   []OutboundCommand
	times    []float64
}

type jobAlloc struct {
	jobID     int
	resources []int
}

func (e *sessionEmitter) reset() {
	e.seq = 0
	e.allocsAt = make(map[float64][]jobAlloc)
	e.allocSeq = make(map[float64]int)
	e.others = nil
	e.times = nil
}

func (e *sessionEmitter) EmitAllocation(now float64, jobID int, resources []int) {
	if _, ok := e.allocsAt[now]; !ok {
		e.times = append(e.times, now)
		e.allocSeq[now] = e.next()
	}
	e.allocsAt[now] = append(e.allocsAt[now], jobAlloc{jobID: jobID, resources: resources})
}

func (e *sessionEmitter) EmitRejection(now float64, jobID int) {
	e.others = append(e.others, OutboundCommand{Time: now, Text: "N", InsertionSeq: e.next()})
}

func (e *sessionEmitter) EmitPStateChange(now float64, rangesAndState string) {
	e.others = append(e.others, OutboundCommand{Time: now, Text: "P:" + rangesAndState, InsertionSeq: e.next()})
}

func (e *sessionEmitter) EmitEnergyRequest(now float64) {
	e.others = append(e.others, OutboundCommand{Time: now, Text: "E", InsertionSeq: e.next()})
}

func (e *sessionEmitter) EmitWakeRequest(now float64, at float64) {
	e.others = append(e.others, OutboundCommand{Time: now, Text: fmt.Sprintf("n:%s", formatTime(at)), InsertionSeq: e.next()})
}

func (e *sessionEmitter) EmitNOP(now float64) {
	e.others = append(e.others, OutboundCommand{Time: now, Text: "N", InsertionSeq: e.next()})
}

func (e *sessionEmitter) next() int {
	e.seq++
	return e.seq
}

// commands merges every timestamp's job allocations into a single J:
// command (semicolon-separated, trailing separator stripped) and
// combines that with whatever other decisions were emitted.
func (e *sessionEmitter) commands() []OutboundCommand {
	out := make([]OutboundCommand, 0, len(e.times)+len(e.others))

	sort.Float64s(e.times)
	for _, t := range e.times {
		allocs := e.allocsAt[t]
		parts := make([]string, len(allocs))
		for i, a := range allocs {
			parts[i] = formatJobAlloc(a.jobID, a.resources)
		}
		out = append(out, OutboundCommand{Time: t, Text: "J:" + strings.Join(parts, ";"), InsertionSeq: e.allocSeq[t]})
	}

	out = append(out, e.others...)
	return out
}
