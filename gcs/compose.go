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

	"github.com/google/gcsutil/cmd/output"
	"github.com/google/gcsutil/locator"
	"google.golang.org/api/iterator"
	storage "google.golang.org/api/storage/v1"
)

// MaxComponents is the largest number of source objects one compose request accepts.
const MaxComponents = 32

// ComposeOptions describe the composed object.
type ComposeOptions struct {
	ContentType     string
	ContentEncoding string
}

// composeSet is an insertion-ordered set of object names.
type composeSet struct {
	names []string
	seen  map[string]bool
}

func (s *composeSet) add(name string) {
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	if !s.seen[name] {
		s.seen[name] = true
		s.names = append(s.names, name)
	}
}

// ComposeObject concatenates the objects matched by each glob pattern, in pattern order, into dst.
// Every pattern must be in dst's bucket and match at least one object, and the union of matches
// must not exceed MaxComponents names. An object matched by several patterns is used once. These
// conditions are checked before the compose request and reported as *ValidationError.
func (c *Client) ComposeObject(ctx context.Context, patterns []string, dst locator.Locator, opts ComposeOptions) (*storage.Object, error) {
	if len(patterns) > MaxComponents {
		return nil, &ValidationError{Err: ErrTooManyComponents}
	}
	var sources composeSet
	bucket := ""
	for _, pattern := range patterns {
		loc := locator.Parse(pattern)
		if bucket == "" {
			bucket = loc.Bucket
		}
		if loc.Bucket != bucket || loc.Bucket != dst.Bucket {
			return nil, &ValidationError{Pattern: pattern, Err: ErrBucketMismatch}
		}
		matched := 0
		it := c.Glob(ctx, loc)
		for {
			obj, err := it.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				return nil, err
			}
			matched++
			sources.add(obj.Name)
			if len(sources.names) > MaxComponents {
				return nil, &ValidationError{Pattern: pattern, Err: ErrTooManyComponents}
			}
		}
		if matched == 0 {
			return nil, &ValidationError{Pattern: pattern, Err: ErrNoMatch}
		}
	}
	req := &storage.ComposeRequest{
		Destination: &storage.Object{
			Bucket:          dst.Bucket,
			Name:            dst.Object,
			ContentType:     opts.ContentType,
			ContentEncoding: opts.ContentEncoding,
		},
	}
	for _, name := range sources.names {
		req.SourceObjects = append(req.SourceObjects, &storage.ComposeRequestSourceObjects{Name: name})
	}
	output.Debugf(ctx, "composing %d objects into %s", len(sources.names), dst)
	return c.API.ComposeObject(ctx, dst.Bucket, dst.Object, req)
}
