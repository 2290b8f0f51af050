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

// Package ops provides common operations on a storagei.Client and helpers for implementing one.
package ops

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/gcsutil/storage/storagei"
	storage "google.golang.org/api/storage/v1"
)

// WriteFile writes (over) contents of object `name` in `bucket` with `contents`. Creates the file
// if it doesn't already exist.
func WriteFile(ctx context.Context, s storagei.Client, bucket, name string, contents []byte, contentType string) (*storage.Object, error) {
	obj, err := s.InsertObject(ctx, &storagei.InsertRequest{
		Bucket: bucket,
		Object: &storage.Object{Name: name, ContentType: contentType},
		Media:  bytes.NewReader(contents),
	})
	if err != nil {
		return nil, fmt.Errorf("could not write file %q: %w", name, err)
	}
	return obj, nil
}

// ReadFile returns the file's contents.
func ReadFile(ctx context.Context, s storagei.Client, bucket, name string) ([]byte, error) {
	var buf bytes.Buffer
	err := s.DownloadObject(ctx, bucket, name, 0, &buf)
	if s.IsNotFound(err) {
		return nil, fmt.Errorf("file \"%s/%s\" does not exist", bucket, name)
	}
	if err != nil {
		return nil, fmt.Errorf("could not read file %q: %w", name, err)
	}
	return buf.Bytes(), nil
}

// ForEachPage lists every page matching q, starting at q.PageToken, and calls fn on each. It
// stops at the first error.
func ForEachPage(ctx context.Context, s storagei.Client, bucket string, q storagei.Query, fn func(*storage.Objects) error) error {
	for {
		page, err := s.ListObjects(ctx, bucket, &q)
		if err != nil {
			return err
		}
		if err := fn(page); err != nil {
			return err
		}
		if page.NextPageToken == "" {
			return nil
		}
		q.PageToken = page.NextPageToken
	}
}

// Page is one window of a name listing computed by ListNames.
type Page struct {
	Items         []string
	Prefixes      []string
	NextPageToken string
}

// ListNames computes a listing page over a complete set of object names for storage
// implementations that hold all names locally. Names are filtered by q.Prefix and, with a
// delimiter, names that continue past it are folded into prefixes. Items and prefixes share the
// q.MaxResults budget. A page token is the last name or prefix of the previous page, so deleting
// listed objects between pages does not skip any.
func ListNames(names []string, q storagei.Query) *Page {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	type entry struct {
		name     string
		isPrefix bool
	}
	var entries []entry
	seen := make(map[string]bool)
	for _, name := range sorted {
		if !strings.HasPrefix(name, q.Prefix) {
			continue
		}
		if q.Delimiter != "" {
			rest := name[len(q.Prefix):]
			if i := strings.Index(rest, q.Delimiter); i >= 0 {
				p := q.Prefix + rest[:i+len(q.Delimiter)]
				if !seen[p] {
					seen[p] = true
					entries = append(entries, entry{name: p, isPrefix: true})
				}
				continue
			}
		}
		entries = append(entries, entry{name: name})
	}
	// Entries are in name order: all names under a prefix sort next to each other.
	start := 0
	if q.PageToken != "" {
		start = sort.Search(len(entries), func(i int) bool { return entries[i].name > q.PageToken })
	}
	end := len(entries)
	page := &Page{}
	if q.MaxResults > 0 && start+int(q.MaxResults) < end {
		end = start + int(q.MaxResults)
		page.NextPageToken = entries[end-1].name
	}
	for _, e := range entries[start:end] {
		if e.isPrefix {
			page.Prefixes = append(page.Prefixes, e.name)
		} else {
			page.Items = append(page.Items, e.name)
		}
	}
	return page
}

// Window returns the [start, end) range of at most n of total entries beginning at the offset
// encoded in token, and the token of the following window if any remain. n <= 0 means unbounded.
func Window(total int, token string, n int) (start, end int, next string, err error) {
	if token != "" {
		if start, err = strconv.Atoi(token); err != nil || start < 0 || start > total {
			return 0, 0, "", fmt.Errorf("invalid page token %q", token)
		}
	}
	end = total
	if n > 0 && start+n < total {
		end = start + n
		next = strconv.Itoa(end)
	}
	return start, end, next, nil
}
