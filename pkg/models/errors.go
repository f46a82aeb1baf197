/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package models

import (
	"context"
	"errors"
	"net"
	"os"
	"syscall"
)

// ErrorClass partitions failures into the retry taxonomy shared by every
// component: transient failures may be retried, permanent failures are
// surfaced immediately, and not-found is a valid empty result.
type ErrorClass string

const (
	ClassTransient ErrorClass = "transient"
	ClassPermanent ErrorClass = "permanent"
	ClassNotFound  ErrorClass = "not_found"
)

var (
	// ErrNotFound means a query matched nothing. Callers treat it as an
	// empty result, not a failure.
	ErrNotFound = errors.New("not found")

	// ErrTimeout is reported by the deadline wrapper when an operation
	// exceeds its wall-clock budget.
	ErrTimeout = errors.New("operation timed out")

	// ErrUnreachable marks a probe target that did not answer.
	ErrUnreachable = errors.New("host unreachable")

	// ErrProtocol marks a malformed or unexpected transport response.
	ErrProtocol = errors.New("protocol error")

	// ErrAuthFailed marks a credential rejection. Never retried.
	ErrAuthFailed = errors.New("authentication failed")
)

// transientError marks a wrapped error as retryable regardless of its
// underlying type.
type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// MarkTransient wraps err so that Classify reports it as transient.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}

	return &transientError{err: err}
}

// Classify maps an error onto the retry taxonomy. Connection refused,
// timeouts and unreachable hosts are transient; not-found sentinels are
// not-found; everything else, including auth and protocol errors, is
// permanent.
func Classify(err error) ErrorClass {
	if err == nil {
		return ""
	}

	if errors.Is(err, ErrNotFound) {
		return ClassNotFound
	}

	var marked *transientError
	if errors.As(err, &marked) {
		return ClassTransient
	}

	if errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrUnreachable) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, os.ErrDeadlineExceeded) {
		return ClassTransient
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.ETIMEDOUT) {
		return ClassTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassTransient
	}

	return ClassPermanent
}
