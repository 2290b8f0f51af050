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
	"context"
	"errors"
)

var (
	// ErrNoContext is returned by operations that need a gcs.Context when the given context does
	// not have one.
	ErrNoContext = errors.New("context does not have gcs.Context")
	// ErrNoProject is returned when a project is required but none is configured.
	ErrNoProject = errors.New("no project configured")
)

// Context carries the client and defaults that commands operate with.
type Context struct {
	Client *Client
	// Project owns new buckets and is listed when no bucket is named.
	Project string
}

type contextKeyType struct{}

var contextKey contextKeyType

// NewContext returns a context extended with a given gcs.Context.
func NewContext(ctx context.Context, c *Context) context.Context {
	return context.WithValue(ctx, contextKey, c)
}

// FromContext returns the context's gcs.Context if it exists.
func FromContext(ctx context.Context) (*Context, error) {
	v := ctx.Value(contextKey)
	if v == nil {
		return nil, ErrNoContext
	}
	return v.(*Context), nil
}

// RequireProject returns the configured project or ErrNoProject.
func (c *Context) RequireProject() (string, error) {
	if c.Project == "" {
		return "", ErrNoProject
	}
	return c.Project, nil
}
