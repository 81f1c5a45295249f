// BSD 2-Clause License
//
// Copyright (c) 2020, Andrea Giacomo Baldan
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are met:
//
// * Redistributions of source code must retain the above copyright notice, this
//   list of conditions and the following disclaimer.
//
// * Redistributions in binary form must reproduce the above copyright notice,
//   this list of conditions and the following disclaimer in the documentation
//   and/or other materials provided with the distribution.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE LIABLE
// FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR CONSEQUENTIAL
// DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS INTERRUPTION) HOWEVER
// CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT LIABILITY,
// OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH DAMAGE.

// Package model holds the wire types, identifiers and error taxonomy shared
// by every component of the orchestration core: sources, dispatchers,
// reactions and the host registry all speak this package, never each
// other's internal types directly.
package model

import (
	"fmt"

	"github.com/pkg/errors"
)

// Class is the error taxonomy of spec §7.
type Class int

const (
	// ClassConfig is a malformed input, fatal at construction.
	ClassConfig Class = iota
	// ClassState is a command invalid for the current state; the
	// component's state is left unchanged.
	ClassState
	// ClassTransport is a network/IO failure in a dispatcher or handler.
	ClassTransport
	// ClassInternal is an invariant violation that drives a component to Error.
	ClassInternal
	// ClassFatal means the host cannot proceed at all.
	ClassFatal
)

func (c Class) String() string {
	switch c {
	case ClassConfig:
		return "config"
	case ClassState:
		return "state"
	case ClassTransport:
		return "transport"
	case ClassInternal:
		return "internal"
	case ClassFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is the taxonomy-tagged error type propagated across the control
// surface. Callers that need to recover the class use errors.As.
type Error struct {
	Class Class
	// State, when non-empty, is the component's state at the time the
	// error was raised, so a caller sees both the outcome and what to do
	// next (spec §7 propagation policy).
	State string
	cause error
}

func (e *Error) Error() string {
	if e.State != "" {
		return fmt.Sprintf("%s: %s (state=%s)", e.Class, e.cause, e.State)
	}
	return fmt.Sprintf("%s: %s", e.Class, e.cause)
}

func (e *Error) Unwrap() error { return e.cause }

// NewError wraps cause with the given class and, optionally, the
// component's current state.
func NewError(class Class, state string, cause error) *Error {
	return &Error{Class: class, State: state, cause: errors.WithStack(cause)}
}

// Errorf is a convenience constructor mirroring fmt.Errorf.
func Errorf(class Class, state, format string, args ...interface{}) *Error {
	return NewError(class, state, fmt.Errorf(format, args...))
}

// IsClass reports whether err is a *Error of the given class.
func IsClass(err error, class Class) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == class
	}
	return false
}
