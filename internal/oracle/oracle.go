// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package oracle defines the generative-text boundary used by generation,
// evaluation, and refinement, plus an OpenRouter-compatible client.
// Implements: prd008-ideation (R5); docs/ARCHITECTURE § Oracle.
package oracle

import (
	"context"
	"errors"
	"fmt"
)

// Backend abstracts the generative-text API so tests can supply a mock.
// Implementations return the raw completion text for a structured prompt.
type Backend interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Request is a structured prompt for one oracle call.
type Request struct {
	// System sets the role instruction for the call.
	System string

	// Prompt is the user-turn content.
	Prompt string

	// TaskType labels the call for logging ("generation", "novelty",
	// "feasibility", "revision").
	TaskType string
}

// ErrorKind classifies an oracle failure for retry decisions.
type ErrorKind string

const (
	// KindTimeout and KindRateLimit are transient and retried.
	KindTimeout   ErrorKind = "timeout"
	KindRateLimit ErrorKind = "rate-limit"

	// KindRefusal and KindMalformed are permanent per-item failures.
	KindRefusal   ErrorKind = "refusal"
	KindMalformed ErrorKind = "malformed"

	// KindOther covers transport and protocol failures; treated as
	// transient since they usually clear on retry.
	KindOther ErrorKind = "other"
)

// Error is the typed failure returned by oracle backends.
type Error struct {
	Kind ErrorKind

	// Status is the HTTP status code when the failure came from the API.
	Status int

	Msg string
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("oracle %s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("oracle %s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Transient reports whether the failure class is worth retrying.
func (e *Error) Transient() bool {
	switch e.Kind {
	case KindTimeout, KindRateLimit, KindOther:
		return true
	}
	return false
}

// IsTransient reports whether err is a retryable oracle failure.
// Context cancellation is never transient.
func IsTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Transient()
	}
	return false
}
