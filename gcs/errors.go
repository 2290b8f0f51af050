// Copyright 2024 Google LLC
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

package gcs

import (
	"errors"
	"fmt"
)

var (
	// ErrTooManyComponents is returned when a compose would have more than MaxComponents sources.
	ErrTooManyComponents = fmt.Errorf("the number of components to compose must be at most %d", MaxComponents)
	// ErrBucketMismatch is returned when compose sources and destination are not in one bucket.
	ErrBucketMismatch = errors.New("all components must be in the destination bucket")
	// ErrNoMatch is returned when a compose source pattern matches no object.
	ErrNoMatch = errors.New("no matching objects")
	// ErrNoRawClient is returned by raw HTTP operations on a Client without one.
	ErrNoRawClient = errors.New("raw HTTP operations are not available with this backend")
)

// ValidationError is a failed precondition detected before any request that changes state.
type ValidationError struct {
	// Pattern is the offending argument, if any.
	Pattern string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Pattern == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v: %q", e.Err, e.Pattern)
}

func (e *ValidationError) Unwrap() error { return e.Err }
