// Copyright 2025 BINARY Members
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logmap

import (
	"errors"
	"fmt"
)

// ErrConnectionClosed reports a stream that ended before the expected
// reply.
var ErrConnectionClosed = errors.New("connection closed")

// ConflictError reports an exhausted write-retry budget.
type ConflictError struct {
	// Retries is the number of rejected attempts.
	Retries int
	// Reason carries the last server response error text.
	Reason string
}

func (e *ConflictError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("write conflict after %d retries: %s", e.Retries, e.Reason)
	}
	return fmt.Sprintf("write conflict after %d retries", e.Retries)
}

// RemoteError reports a structured failure from the server, as opposed to
// a transport failure.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return "remote error: " + e.Message
}
