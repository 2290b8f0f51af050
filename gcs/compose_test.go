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
	"fmt"
	"testing"

	"github.com/google/gcsutil/locator"
	"github.com/google/gcsutil/storage/ops"
	tstorage "github.com/google/gcsutil/testing/storage"
	"github.com/google/go-cmp/cmp"
)

func composeFixture(n int) *tstorage.Mock {
	contents := make(map[string][]byte)
	for i := 1; i <= n; i++ {
		contents[fmt.Sprintf("part-%02d", i)] = []byte(fmt.Sprint(i % 10))
	}
	return tstorage.WithInitialContents(contents, "b")
}

func TestComposeObject(t *testing.T) {
	ctx := context.Background()
	m := composeFixture(3)
	c := &Client{API: m}
	obj, err := c.ComposeObject(ctx, []string{"gs://b/part-02", "gs://b/part-*"}, locator.Parse("gs://b/all"), ComposeOptions{
		ContentType:     "text/plain",
		ContentEncoding: "identity",
	})
	if err != nil {
		t.Fatal(err)
	}
	if obj.ContentType != "text/plain" || obj.ContentEncoding != "identity" {
		t.Errorf("ComposeObject() = type %q encoding %q, want text/plain identity", obj.ContentType, obj.ContentEncoding)
	}
	if len(m.Composes) != 1 {
		t.Fatalf("ComposeObject calls = %d, want 1", len(m.Composes))
	}
	var sources []string
	for _, so := range m.Composes[0].SourceObjects {
		sources = append(sources, so.Name)
	}
	if diff := cmp.Diff([]string{"part-02", "part-01", "part-03"}, sources); diff != "" {
		t.Errorf("compose sources mismatch (-want +got):\n%s", diff)
	}
	data, err := ops.ReadFile(ctx, m, "b", "all")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "213" {
		t.Errorf("composed contents = %q, want \"213\"", data)
	}
}

func TestComposeObjectLimit(t *testing.T) {
	ctx := context.Background()
	m := composeFixture(MaxComponents)
	c := &Client{API: m}
	// Overlapping patterns count each object once.
	if _, err := c.ComposeObject(ctx, []string{"gs://b/part-*", "gs://b/part-01"}, locator.Parse("gs://b/all"), ComposeOptions{}); err != nil {
		t.Errorf("ComposeObject(%d distinct sources) = %v, want nil", MaxComponents, err)
	}
}

func TestComposeObjectValidation(t *testing.T) {
	ctx := context.Background()
	many := make([]string, MaxComponents+1)
	for i := range many {
		many[i] = fmt.Sprintf("gs://b/part-%02d", i+1)
	}
	tcs := []struct {
		name        string
		objects     int
		patterns    []string
		dst         string
		want        error
		wantPattern string
		wantLists   int
	}{
		{
			name:     "too many patterns",
			objects:  MaxComponents + 1,
			patterns: many,
			dst:      "gs://b/all",
			want:     ErrTooManyComponents,
		},
		{
			name:        "too many matches",
			objects:     MaxComponents + 1,
			patterns:    []string{"gs://b/part-*"},
			dst:         "gs://b/all",
			want:        ErrTooManyComponents,
			wantPattern: "gs://b/part-*",
			wantLists:   1,
		},
		{
			name:        "source bucket differs",
			objects:     2,
			patterns:    []string{"gs://b/part-01", "gs://c/part-02"},
			dst:         "gs://b/all",
			want:        ErrBucketMismatch,
			wantPattern: "gs://c/part-02",
			wantLists:   1,
		},
		{
			name:        "destination bucket differs",
			objects:     2,
			patterns:    []string{"gs://b/part-01"},
			dst:         "gs://c/all",
			want:        ErrBucketMismatch,
			wantPattern: "gs://b/part-01",
		},
		{
			name:        "no match",
			objects:     2,
			patterns:    []string{"gs://b/part-01", "gs://b/nothing*"},
			dst:         "gs://b/all",
			want:        ErrNoMatch,
			wantPattern: "gs://b/nothing*",
			wantLists:   2,
		},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			m := composeFixture(tc.objects)
			c := &Client{API: m}
			_, err := c.ComposeObject(ctx, tc.patterns, locator.Parse(tc.dst), ComposeOptions{})
			var verr *ValidationError
			if !errors.As(err, &verr) || !errors.Is(err, tc.want) {
				t.Fatalf("ComposeObject() = %v, want validation error %v", err, tc.want)
			}
			if verr.Pattern != tc.wantPattern {
				t.Errorf("ComposeObject() pattern = %q, want %q", verr.Pattern, tc.wantPattern)
			}
			if m.Calls["ComposeObject"] != 0 {
				t.Errorf("ComposeObject calls = %d, want 0", m.Calls["ComposeObject"])
			}
			if m.Calls["ListObjects"] != tc.wantLists {
				t.Errorf("ListObjects calls = %d, want %d", m.Calls["ListObjects"], tc.wantLists)
			}
		})
	}
}
