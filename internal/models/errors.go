package models

import (
	"errors"
	"fmt"
)

// ContentResolutionError reports that content behind an identifier could not
// be resolved, or resolved into something unusable.
type ContentResolutionError struct {
	Resource string
	ID       int64
	Err      error
}

func (e *ContentResolutionError) Error() string {
	if e.ID != 0 {
		return fmt.Sprintf("resolving %s %d: %v", e.Resource, e.ID, e.Err)
	}
	return fmt.Sprintf("resolving %s: %v", e.Resource, e.Err)
}

func (e *ContentResolutionError) Unwrap() error { return e.Err }

func NewContentError(resource string, id int64, err error) error {
	return &ContentResolutionError{Resource: resource, ID: id, Err: err}
}

// ValidationError reports an inbound event that is missing required fields.
type ValidationError struct {
	Event  EventName
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s %s", e.Event, e.Field, e.Reason)
}

// ConnectionError is a transport failure on a topic. It is retried by the
// channel session and never reaches display state.
type ConnectionError struct {
	Topic string
	Err   error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("topic %s: %v", e.Topic, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func IsContentError(err error) bool {
	var ce *ContentResolutionError
	return errors.As(err, &ce)
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
