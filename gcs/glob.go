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
	"fmt"
	"strings"

	"github.com/gobwas/glob"
	"github.com/google/gcsutil/locator"
	"github.com/google/gcsutil/storage/storagei"
	"google.golang.org/api/iterator"
	storage "google.golang.org/api/storage/v1"
)

const globMeta = "*?["

// literalBraces escapes the characters gobwas/glob reads as alternatives so that "{", "}" and ","
// match themselves, as they do for fnmatch. Character classes are copied unchanged.
func literalBraces(pattern string) string {
	var b strings.Builder
	inClass := false
	for i := 0; i < len(pattern); i++ {
		ch := pattern[i]
		switch {
		case inClass:
			inClass = ch != ']'
		case ch == '\\' && i+1 < len(pattern):
			b.WriteByte(ch)
			i++
			ch = pattern[i]
		case ch == '[':
			inClass = true
		case ch == '{' || ch == '}' || ch == ',':
			b.WriteByte('\\')
		}
		b.WriteByte(ch)
	}
	return b.String()
}

// literalPrefix returns the part of pattern before its first unescaped wildcard, unescaped.
func literalPrefix(pattern string) string {
	var b strings.Builder
	for i := 0; i < len(pattern); i++ {
		ch := pattern[i]
		if ch == '\\' && i+1 < len(pattern) {
			i++
			b.WriteByte(pattern[i])
			continue
		}
		if strings.IndexByte(globMeta, ch) >= 0 {
			break
		}
		b.WriteByte(ch)
	}
	return b.String()
}

// ObjectIterator yields the objects whose names match a glob pattern, fetching listing pages as
// needed.
type ObjectIterator struct {
	ctx     context.Context
	api     storagei.Client
	bucket  string
	q       storagei.Query
	matcher glob.Glob
	buf     []*storage.Object
	last    bool
	err     error
}

// Next returns the next matching object, or iterator.Done when there are no more.
func (it *ObjectIterator) Next() (*storage.Object, error) {
	for len(it.buf) == 0 {
		if it.err != nil {
			return nil, it.err
		}
		if it.last {
			return nil, iterator.Done
		}
		it.fetch()
	}
	obj := it.buf[0]
	it.buf = it.buf[1:]
	return obj, nil
}

func (it *ObjectIterator) fetch() {
	page, err := it.api.ListObjects(it.ctx, it.bucket, &it.q)
	if err != nil {
		it.err = err
		return
	}
	for _, obj := range page.Items {
		if it.matcher.Match(obj.Name) {
			it.buf = append(it.buf, obj)
		}
	}
	if page.NextPageToken == "" {
		it.last = true
	}
	it.q.PageToken = page.NextPageToken
}

// Glob returns an iterator over the objects in loc.Bucket whose names match the shell pattern
// loc.Object. "*" matches any run of characters including "/", "?" matches one character, and
// "[...]" and "[!...]" are character classes. A backslash escapes the next character. Braces have
// no special meaning.
func (c *Client) Glob(ctx context.Context, loc locator.Locator) *ObjectIterator {
	it := &ObjectIterator{
		ctx:    ctx,
		api:    c.API,
		bucket: loc.Bucket,
		q:      storagei.Query{Prefix: literalPrefix(loc.Object)},
	}
	m, err := glob.Compile(literalBraces(loc.Object))
	if err != nil {
		it.err = fmt.Errorf("bad pattern %q: %w", loc.Object, err)
		return it
	}
	it.matcher = m
	return it
}

// GlobAll returns every object matched by Glob.
func (c *Client) GlobAll(ctx context.Context, loc locator.Locator) ([]*storage.Object, error) {
	var result []*storage.Object
	it := c.Glob(ctx, loc)
	for {
		obj, err := it.Next()
		if err == iterator.Done {
			return result, nil
		}
		if err != nil {
			return nil, err
		}
		result = append(result, obj)
	}
}
