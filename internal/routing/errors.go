// Copyright 2026 The switchroute Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package routing

import "fmt"

// The gateway's error taxonomy. Each kind is a distinct type, not a subclass;
// the HTTP layer maps them with errors.As. The classifiers never swallow
// errors: the policy decides which kinds it may downgrade.

// ValidationError reports a malformed or contradictory request. It is never
// retried and surfaces as HTTP 400.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// ExternalDependencyError reports a failure of the embedding backend or the
// difficulty scorer. The policy downgrades a semantic failure to the
// difficulty step; a difficulty failure aborts the request (HTTP 502).
type ExternalDependencyError struct {
	// Dependency names the failed collaborator, e.g. "embedding" or "difficulty".
	Dependency string
	Err        error
}

func (e *ExternalDependencyError) Error() string {
	return fmt.Sprintf("external dependency %s: %v", e.Dependency, e.Err)
}

func (e *ExternalDependencyError) Unwrap() error { return e.Err }

// UpstreamError reports a chat-completion backend returning a non-success
// status or an unparseable body. Surfaces as HTTP 502 with the originating
// backend identified; in availability mode the driver retries once before
// surfacing it.
type UpstreamError struct {
	// Backend is the wire id of the backend that failed.
	Backend string

	// StatusCode is the upstream HTTP status, zero for transport errors.
	StatusCode int

	Err error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream %s: status %d: %v", e.Backend, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("upstream %s: %v", e.Backend, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
