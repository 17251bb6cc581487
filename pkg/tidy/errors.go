// Copyright 2024 The Docker Tidy Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tidy

import (
	"errors"
	"fmt"

	"github.com/ZanzyTHEbar/errbuilder-go"
)

// ErrInspectMiss is returned by an Inventory when an inspect call finds no
// record, usually because another actor removed the resource after it was
// listed. It is never treated as a failure.
var ErrInspectMiss = errors.New("resource not found")

// PolicyError is returned when the retention policy cannot be built, for
// example because an age expression or a glob pattern is malformed. It aborts
// the run before any removal happens.
type PolicyError struct {
	Field string
	Value string
	Err   error
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Err)
}

func (e *PolicyError) Unwrap() error {
	return e.Err
}

// TransportError is a timeout or connectivity failure on a single call.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "transport: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// APIError is a rejection by the daemon (conflict, not found, ...).
type APIError struct {
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("api (%d): %s", e.StatusCode, e.Err)
	}
	return "api: " + e.Err.Error()
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// ErrorClass returns the short class name used in logs and metrics labels.
func ErrorClass(err error) string {
	var terr *TransportError
	var aerr *APIError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &terr):
		return "transport"
	case errors.As(err, &aerr):
		return "api"
	default:
		return "unknown"
	}
}

// InventoryError wraps a failed listing or version call on the inventory. The
// caller decides whether it is fatal.
func InventoryError(op string, err error) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg("failed to " + op).
		WithCause(err)
}

// warnCallFailure logs a recoverable per-item failure and returns its class.
func warnCallFailure(logger *Logger, name, params string, err error) string {
	class := ErrorClass(err)
	msg := "error calling operation"
	if class == "transport" {
		msg = "failed to call operation"
	}
	logger.Warn(msg,
		"operation", name,
		"params", params,
		"error", err)
	return class
}
