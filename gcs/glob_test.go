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
	"testing"

	"github.com/google/gcsutil/locator"
	"github.com/google/gcsutil/testing/match"
	tstorage "github.com/google/gcsutil/testing/storage"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"google.golang.org/api/iterator"
)

func TestLiteralPrefix(t *testing.T) {
	tcs := []struct {
		pattern string
		want    string
	}{
		{pattern: "logs/2024-*.gz", want: "logs/2024-"},
		{pattern: "logs/file?.txt", want: "logs/file"},
		{pattern: "logs/[ab]*", want: "logs/"},
		{pattern: "logs/{a,b}*", want: "logs/{a,b}"},
		{pattern: `a\*b/*`, want: "a*b/"},
		{pattern: "plain/name", want: "plain/name"},
		{pattern: "*", want: ""},
	}
	for _, tc := range tcs {
		if got := literalPrefix(tc.pattern); got != tc.want {
			t.Errorf("literalPrefix(%q) = %q, want %q", tc.pattern, got, tc.want)
		}
	}
}

var globNames = []string{
	"a.txt",
	"data1",
	"data{1,2}",
	"data{1}",
	"dir/a.txt",
	"dir/b.csv",
	"dir/sub/c.txt",
	"dir/x1",
	"dir/x2",
	"dir/y1",
	"other/a.txt",
	"star*name",
	"starXname",
}

func globFixture(pageSize int) *Client {
	contents := make(map[string][]byte)
	for _, name := range globNames {
		contents[name] = nil
	}
	m := tstorage.WithInitialContents(contents, "b")
	m.PageSize = pageSize
	return &Client{API: m}
}

func TestLiteralBraces(t *testing.T) {
	tcs := []struct {
		pattern string
		want    string
	}{
		{pattern: "a{b,c}", want: `a\{b\,c\}`},
		{pattern: `a\{b`, want: `a\{b`},
		{pattern: "[{,}]x{", want: `[{,}]x\{`},
		{pattern: "plain*", want: "plain*"},
	}
	for _, tc := range tcs {
		if got := literalBraces(tc.pattern); got != tc.want {
			t.Errorf("literalBraces(%q) = %q, want %q", tc.pattern, got, tc.want)
		}
	}
}

func TestGlob(t *testing.T) {
	ctx := context.Background()
	tcs := []struct {
		pattern string
		want    []string
	}{
		{pattern: "dir/*.txt", want: []string{"dir/a.txt", "dir/sub/c.txt"}},
		{pattern: "*.txt", want: []string{"a.txt", "dir/a.txt", "dir/sub/c.txt", "other/a.txt"}},
		{pattern: "dir/x?", want: []string{"dir/x1", "dir/x2"}},
		{pattern: "dir/[xy]1", want: []string{"dir/x1", "dir/y1"}},
		{pattern: "dir/[!x]1", want: []string{"dir/y1"}},
		{pattern: "dir/{a.txt,b.csv}"},
		{pattern: "data{1}", want: []string{"data{1}"}},
		{pattern: "data{1,2}", want: []string{"data{1,2}"}},
		{pattern: `data\{1\}`, want: []string{"data{1}"}},
		{pattern: "data[{]*", want: []string{"data{1,2}", "data{1}"}},
		{pattern: "data?", want: []string{"data1"}},
		{pattern: `star\*name`, want: []string{"star*name"}},
		{pattern: "dir/a.txt", want: []string{"dir/a.txt"}},
		{pattern: "nothing*"},
	}
	for _, tc := range tcs {
		t.Run(tc.pattern, func(t *testing.T) {
			var first []string
			for _, pageSize := range []int{0, 1, 2, 3} {
				c := globFixture(pageSize)
				objs, err := c.GlobAll(ctx, locator.Locator{Bucket: "b", Object: tc.pattern})
				if err != nil {
					t.Fatal(err)
				}
				got := match.Names(objs)
				if diff := cmp.Diff(tc.want, got, cmpopts.EquateEmpty()); diff != "" {
					t.Errorf("GlobAll(%q) with page size %d mismatch (-want +got):\n%s", tc.pattern, pageSize, diff)
				}
				if pageSize == 0 {
					first = got
				} else if diff := cmp.Diff(first, got, cmpopts.EquateEmpty()); diff != "" {
					t.Errorf("GlobAll(%q) depends on page size %d (-unpaged +paged):\n%s", tc.pattern, pageSize, diff)
				}
			}
		})
	}
}

func TestGlobIterator(t *testing.T) {
	ctx := context.Background()
	c := globFixture(1)
	it := c.Glob(ctx, locator.Parse("gs://b/dir/x*"))
	for _, want := range []string{"dir/x1", "dir/x2"} {
		obj, err := it.Next()
		if err != nil {
			t.Fatal(err)
		}
		if obj.Name != want {
			t.Errorf("Next() = %q, want %q", obj.Name, want)
		}
	}
	for i := 0; i < 2; i++ {
		if _, err := it.Next(); err != iterator.Done {
			t.Errorf("Next() at end = %v, want iterator.Done", err)
		}
	}
}

func TestGlobErrors(t *testing.T) {
	ctx := context.Background()
	if _, err := globFixture(0).GlobAll(ctx, locator.Parse("gs://b/dir/[x")); !match.Error(err, "bad pattern") {
		t.Errorf("GlobAll(unterminated class) = %v, want bad pattern", err)
	}
	wantErr := errors.New("listing failed")
	c := &Client{API: tstorage.WithError(wantErr)}
	if _, err := c.GlobAll(ctx, locator.Parse("gs://b/*")); !errors.Is(err, wantErr) {
		t.Errorf("GlobAll() = %v, want %v", err, wantErr)
	}
}
