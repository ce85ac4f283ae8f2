// SPDX-License-Identifier: MIT

// Package apperr defines the error taxonomy shared across AirWave components.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for policy decisions (retry, drop, abort boot).
type Kind string

const (
	KindValidation         Kind = "validation"
	KindNotFound           Kind = "not_found"
	KindServiceUnavailable Kind = "service_unavailable"
	KindUnauthorized       Kind = "unauthorized"
	KindConflict           Kind = "conflict"
	KindTransient          Kind = "transient"
	KindFatal              Kind = "fatal"
)

// Error carries a kind, a stable id, a human message and optional details.
// Operational errors are expected runtime conditions (upstream down, rate
// limit); non-operational ones indicate bugs or unrecoverable state.
type Error struct {
	Kind        Kind
	ID          string
	Message     string
	Details     map[string]any
	Operational bool
	Err         error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.ID, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.ID, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an operational error of the given kind.
func New(kind Kind, id, message string) *Error {
	return &Error{Kind: kind, ID: id, Message: message, Operational: true}
}

// Wrap annotates err with a kind and id. A nil err returns nil.
func Wrap(kind Kind, id string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, ID: id, Message: err.Error(), Operational: true, Err: err}
}

// WithDetail attaches a detail key/value and returns the error for chaining.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any, 2)
	}
	e.Details[key] = value
	return e
}

// KindOf returns the Kind of err, or an empty Kind for foreign errors.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	return KindOf(err) == KindTransient || KindOf(err) == KindServiceUnavailable
}

// IsFatal reports whether err must abort boot with a non-zero exit.
func IsFatal(err error) bool {
	return KindOf(err) == KindFatal
}
