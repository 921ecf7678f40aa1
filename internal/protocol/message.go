// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package protocol implements the pipe-and-colon text grammar batsched
// exchanges with the simulator, and the session loop that dispatches it
// to a scheduling policy.
package protocol

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	apperrors "github.com/jontk/batsched/pkg/errors"
)

// protocolVersion is the only inbound/outbound version batsched speaks.
const protocolVersion = "0"

// SubEventKind identifies the kind of an inbound sub-message.
type SubEventKind byte

const (
	KindSubmission  SubEventKind = 'S'
	KindCompletion  SubEventKind = 'C'
	KindRejection   SubEventKind = 'R'
	KindNOP         SubEventKind = 'N'
	KindPStateChange SubEventKind = 'p'
	KindEnergyReport SubEventKind = 'e'
)

// SubEvent is one parsed inbound sub-message.
type SubEvent struct {
	Time    float64
	Kind    SubEventKind
	Payload string
}

// InboundMessage is a fully parsed inbound frame.
type InboundMessage struct {
	Now       float64
	SubEvents []SubEvent
}

// ParseInbound parses a raw frame payload of the form
// "<version>:<now>(|<event_time>:<kind>[:<payload>])*".
func ParseInbound(raw string) (InboundMessage, error) {
	parts := strings.Split(raw, "|")
	if len(parts) == 0 {
		return InboundMessage{}, apperrors.New(apperrors.CodeMalformedFrame, "empty inbound frame")
	}

	header := strings.SplitN(parts[0], ":", 2)
	if len(header) != 2 {
		return InboundMessage{}, apperrors.New(apperrors.CodeMalformedFrame, "missing version/now header")
	}
	if header[0] != protocolVersion {
		return InboundMessage{}, apperrors.New(apperrors.CodeBadVersion, fmt.Sprintf("unsupported protocol version %q", header[0]))
	}

	now, err := strconv.ParseFloat(header[1], 64)
	if err != nil {
		return InboundMessage{}, apperrors.Wrap(apperrors.CodeMalformedField, "malformed now timestamp", err)
	}

	msg := InboundMessage{Now: now}
	for _, sub := range parts[1:] {
		event, err := parseSubEvent(sub)
		if err != nil {
			return InboundMessage{}, err
		}
		msg.SubEvents = append(msg.SubEvents, event)
	}
	return msg, nil
}

func parseSubEvent(raw string) (SubEvent, error) {
	fields := strings.SplitN(raw, ":", 3)
	if len(fields) < 2 {
		return SubEvent{}, apperrors.New(apperrors.CodeMalformedFrame, fmt.Sprintf("malformed sub-event %q", raw))
	}

	eventTime, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return SubEvent{}, apperrors.Wrap(apperrors.CodeMalformedField, "malformed event_time", err)
	}

	kind := SubEventKind(fields[1][0])
	switch kind {
	case KindSubmission, KindCompletion, KindRejection, KindNOP, KindPStateChange, KindEnergyReport:
	default:
		return SubEvent{}, apperrors.New(apperrors.CodeUnknownKind, fmt.Sprintf("unknown sub-event kind %q", fields[1]))
	}

	payload := ""
	if len(fields) == 3 {
		payload = fields[2]
	}
	return SubEvent{Time: eventTime, Kind: kind, Payload: payload}, nil
}

// OutboundCommand is one scheduling decision ready to be encoded.
type OutboundCommand struct {
	Time         float64
	Text         string
	InsertionSeq int
}

// EncodeOutbound renders commands into the wire grammar
// "0:<now>|<t1>:<cmd1>|<t2>:<cmd2>|…", sorting by Time ascending with
// ties broken by insertion order. When commands is empty, a single
// no-op is emitted instead.
func EncodeOutbound(now float64, commands []OutboundCommand) string {
	sorted := make([]OutboundCommand, len(commands))
	copy(sorted, commands)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Time != sorted[j].Time {
			return sorted[i].Time < sorted[j].Time
		}
		return sorted[i].InsertionSeq < sorted[j].InsertionSeq
	})

	var b strings.Builder
	b.WriteString(protocolVersion)
	b.WriteByte(':')
	b.WriteString(formatTime(now))

	if len(sorted) == 0 {
		b.WriteByte('|')
		b.WriteString(formatTime(now))
		b.WriteString(":N")
		return b.String()
	}

	for _, cmd := range sorted {
		b.WriteByte('|')
		b.WriteString(formatTime(cmd.Time))
		b.WriteByte(':')
		b.WriteString(cmd.Text)
	}
	return b.String()
}

// formatTime renders a simulated timestamp with six decimal digits, per
// spec.md §6's numeric formatting rule.
func formatTime(t float64) string {
	return strconv.FormatFloat(t, 'f', 6, 64)
}

// formatJobAlloc renders one job's allocation as "id=r1,r2,…", the unit
// that sessionEmitter.commands joins with ';' into one J: command across
// jobs sharing a timestamp.
func formatJobAlloc(jobID int, resources []int) string {
	parts := make([]string, len(resources))
	for i, r := range resources {
		parts[i] = strconv.Itoa(r)
	}
	return fmt.Sprintf("%d=%s", jobID, strings.Join(parts, ","))
}
