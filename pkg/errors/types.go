// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package errors provides the structured error taxonomy used throughout
// batsched: every fatal condition is categorized so the CLI can log and
// exit consistently, matching spec.md's error handling design (§7).
package errors

import (
	"fmt"
	"time"
)

// Code identifies a specific fatal condition.
type Code string

const (
	// Protocol: framing mismatch, bad version, unknown submessage kind,
	// malformed numeric field.
	CodeBadVersion     Code = "BAD_VERSION"
	CodeMalformedFrame Code = "MALFORMED_FRAME"
	CodeUnknownKind    Code = "UNKNOWN_SUBMESSAGE_KIND"
	CodeMalformedField Code = "MALFORMED_NUMERIC_FIELD"

	// Workload: descriptor references a job id the loader never saw.
	CodeUnknownJobID    Code = "UNKNOWN_JOB_ID"
	CodeInvalidWorkload Code = "INVALID_WORKLOAD"

	// Policy: invariant violations that indicate a programming error or a
	// mis-specified workload the simulator could not have produced.
	CodeInsufficientResources Code = "INSUFFICIENT_RESOURCES"
	CodeUnknownRunningJob     Code = "UNKNOWN_RUNNING_JOB"
	CodeUnplaceableJob        Code = "UNPLACEABLE_JOB"
	CodeInvariantViolation    Code = "INVARIANT_VIOLATION"

	// Transport: anything other than a clean peer close.
	CodeTransportFailure Code = "TRANSPORT_FAILURE"

	// Config: CLI/flag/config errors, not part of spec.md's own taxonomy
	// but needed for a runnable binary.
	CodeInvalidConfig Code = "INVALID_CONFIG"
)

// Category groups codes the way spec.md §7 groups them.
type Category string

const (
	CategoryProtocol  Category = "PROTOCOL"
	CategoryWorkload  Category = "WORKLOAD"
	CategoryPolicy    Category = "POLICY"
	CategoryTransport Category = "TRANSPORT"
	CategoryConfig    Category = "CONFIG"
)

var codeCategory = map[Code]Category{
	CodeBadVersion:            CategoryProtocol,
	CodeMalformedFrame:        CategoryProtocol,
	CodeUnknownKind:           CategoryProtocol,
	CodeMalformedField:        CategoryProtocol,
	CodeUnknownJobID:          CategoryWorkload,
	CodeInvalidWorkload:       CategoryWorkload,
	CodeInsufficientResources: CategoryPolicy,
	CodeUnknownRunningJob:     CategoryPolicy,
	CodeUnplaceableJob:        CategoryPolicy,
	CodeInvariantViolation:    CategoryPolicy,
	CodeTransportFailure:      CategoryTransport,
	CodeInvalidConfig:         CategoryConfig,
}

// Error is a structured, fatal batsched error. Every one of spec.md §7's
// error categories (other than the "clean peer close" transport case,
// which is not an error at all — see transport.ErrClosed) is represented
// as an *Error, so main can log and exit(1) uniformly.
type Error struct {
	Code      Code
	Category  Category
	Message   string
	Timestamp time.Time
	Cause     error
}

// New creates a structured error for the given code.
func New(code Code, message string) *Error {
	return &Error{Code: code, Category: codeCategory[code], Message: message, Timestamp: time.Now()}
}

// Wrap creates a structured error for the given code, carrying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Category: codeCategory[code], Message: message, Timestamp: time.Now(), Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s/%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s/%s] %s", e.Category, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is match on Code alone, ignoring Message/Cause/Timestamp.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}
