/*
Copyright The CodePush Server Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package errs provides the kinded errors shared by every component. Each
// kind maps to exactly one HTTP status; the HTTP adapter is the only place
// where that mapping happens.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error for transport mapping.
type Kind int

const (
	// Internal is anything unclassified.
	Internal Kind = iota
	// NotFound indicates the resource is absent or the caller may not see it.
	NotFound
	// AlreadyExists indicates a unique-constraint violation (name, hash).
	AlreadyExists
	// Invalid indicates malformed input.
	Invalid
	// Expired indicates an access key past its deadline.
	Expired
	// Unauthorized indicates missing or invalid credentials.
	Unauthorized
	// Forbidden indicates an authenticated caller with the wrong permission.
	Forbidden
	// Conflict indicates an invariant violation (rollout, version mismatch,
	// duplicate release).
	Conflict
	// TooLarge indicates a payload over the configured limit.
	TooLarge
	// ConnectionFailed indicates a transient object-store or database failure.
	ConnectionFailed
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not found"
	case AlreadyExists:
		return "already exists"
	case Invalid:
		return "invalid"
	case Expired:
		return "expired"
	case Unauthorized:
		return "unauthorized"
	case Forbidden:
		return "forbidden"
	case Conflict:
		return "conflict"
	case TooLarge:
		return "too large"
	case ConnectionFailed:
		return "connection failed"
	}
	return "internal"
}

// Error carries a kind alongside the message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an error of the given kind.
func New(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying cause.
func Wrap(err error, kind Kind, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// ErrNotFound creates a new NotFound error.
func ErrNotFound(format string, args ...interface{}) error {
	return New(NotFound, format, args...)
}

// ErrAlreadyExists creates a new AlreadyExists error.
func ErrAlreadyExists(format string, args ...interface{}) error {
	return New(AlreadyExists, format, args...)
}

// ErrInvalid creates a new Invalid error.
func ErrInvalid(format string, args ...interface{}) error {
	return New(Invalid, format, args...)
}

// ErrConflict creates a new Conflict error.
func ErrConflict(format string, args ...interface{}) error {
	return New(Conflict, format, args...)
}

// ErrForbidden creates a new Forbidden error.
func ErrForbidden(format string, args ...interface{}) error {
	return New(Forbidden, format, args...)
}

// ErrUnauthorized creates a new Unauthorized error.
func ErrUnauthorized(format string, args ...interface{}) error {
	return New(Unauthorized, format, args...)
}

// ErrExpired creates a new Expired error.
func ErrExpired(format string, args ...interface{}) error {
	return New(Expired, format, args...)
}

// ErrConnectionFailed creates a new ConnectionFailed error.
func ErrConnectionFailed(format string, args ...interface{}) error {
	return New(ConnectionFailed, format, args...)
}

// KindOf reports the kind of err, or Internal when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// IsNotFound reports whether err is a NotFound error.
func IsNotFound(err error) bool { return IsKind(err, NotFound) }

// IsAlreadyExists reports whether err is an AlreadyExists error.
func IsAlreadyExists(err error) bool { return IsKind(err, AlreadyExists) }

// IsConflict reports whether err is a Conflict error.
func IsConflict(err error) bool { return IsKind(err, Conflict) }

// IsConnectionFailed reports whether err is a ConnectionFailed error.
func IsConnectionFailed(err error) bool { return IsKind(err, ConnectionFailed) }
