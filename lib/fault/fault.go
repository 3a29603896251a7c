// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package fault

import (
	"errors"
	"fmt"
)

// Kind is the category of a failure. Kinds are comparable sentinel
// errors: errors.Is(err, fault.IO) is true for any [*Error] of kind IO.
type Kind uint8

const (
	// InvalidArgument indicates a required input was empty or
	// malformed. Retrying with the same input will not help.
	InvalidArgument Kind = iota + 1

	// ChecksumMismatch indicates a CRC-32 or digest disagreed with the
	// expected value. The bytes may already have been written.
	ChecksumMismatch

	// IO indicates a filesystem, network or stream failure, including
	// a stream that ended before a decoder expected it to.
	IO

	// Cancelled indicates cooperative cancellation was observed.
	// Partial output is left in place for the caller to clean up.
	Cancelled

	// KeyDerivation indicates key material could not be loaded or was
	// missing the required entry. Package creation cannot proceed.
	KeyDerivation

	// Registration indicates a content storage or metadata database
	// call failed after the archives were built.
	Registration
)

// String returns the snake_case name of the kind.
func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid_argument"
	case ChecksumMismatch:
		return "checksum_mismatch"
	case IO:
		return "io"
	case Cancelled:
		return "cancelled"
	case KeyDerivation:
		return "key_derivation"
	case Registration:
		return "registration"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Error makes Kind usable as an errors.Is target.
func (k Kind) Error() string { return k.String() }

// Error is a classified error. Err holds the human-readable message
// and the wrapped cause.
type Error struct {
	Kind Kind
	Err  error
}

// Error returns the underlying message. The kind travels separately.
func (e *Error) Error() string { return e.Err.Error() }

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is this error's kind.
func (e *Error) Is(target error) bool {
	kind, ok := target.(Kind)
	return ok && kind == e.Kind
}

// New creates a classified error with a formatted message. A %w verb
// in format wraps its argument as usual.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Wrap classifies err as kind, leaving its message unchanged. An err
// that is already classified keeps its original kind. Wrap returns
// nil for a nil err.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return err
	}
	return &Error{Kind: kind, Err: err}
}

// KindOf returns the kind of the first classified error in err's
// chain, or 0 when err is nil or unclassified.
func KindOf(err error) Kind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	return 0
}
