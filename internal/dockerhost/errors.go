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

package dockerhost

import (
	"context"
	"errors"
	"net"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/client"

	"github.com/GoogleCloudPlatform/docker-tidy/pkg/tidy"
)

// classify maps a docker client error onto the tidy error taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if isTransport(err) {
		return &tidy.TransportError{Err: err}
	}
	return &tidy.APIError{StatusCode: statusCode(err), Err: err}
}

// classifyInspect is classify for inspect calls, where a missing resource is
// not an error.
func classifyInspect(err error) error {
	if err != nil && cerrdefs.IsNotFound(err) {
		return tidy.ErrInspectMiss
	}
	return classify(err)
}

func isTransport(err error) bool {
	if client.IsErrConnectionFailed(err) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

// statusCode recovers the HTTP status of a daemon error from its class. The
// client does not expose the raw status.
func statusCode(err error) int {
	switch {
	case cerrdefs.IsInvalidArgument(err):
		return 400
	case cerrdefs.IsPermissionDenied(err):
		return 403
	case cerrdefs.IsNotFound(err):
		return 404
	case cerrdefs.IsConflict(err):
		return 409
	case cerrdefs.IsUnavailable(err):
		return 503
	case cerrdefs.IsInternal(err):
		return 500
	default:
		return 0
	}
}
