package service

import (
	"errors"
	"fmt"
)

// Failure kinds surfaced to callers. Every error returned by a service wraps
// exactly one of them; handlers map them to HTTP statuses with errors.Is.
var (
	// ErrNotFound: a referenced subject, test or question does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation: the submitted payload is malformed or references unknown tests.
	ErrValidation = errors.New("validation failed")
	// ErrIntegrity: stored data violates an invariant, e.g. a stale option index.
	ErrIntegrity = errors.New("data integrity violation")
	// ErrUpstream: storage or the rendering service failed or was unreachable.
	ErrUpstream = errors.New("upstream failure")
	// ErrSubjectBusy: another submission for the same subject holds the lock.
	ErrSubjectBusy = errors.New("subject has a submission in progress")
)

// ErrNotAssigned: the test is not assigned to the subject.
var ErrNotAssigned = fmt.Errorf("%w: test not assigned", ErrNotFound)

func notFound(kind, id string) error {
	return fmt.Errorf("%w: %s %q", ErrNotFound, kind, id)
}

func upstream(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUpstream, op, err)
}
