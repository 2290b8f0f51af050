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

package ops_test

import (
	"context"
	"testing"

	"github.com/google/gcsutil/storage/ops"
	"github.com/google/gcsutil/storage/storagei"
	tstorage "github.com/google/gcsutil/testing/storage"
	"github.com/google/go-cmp/cmp"
	storage "google.golang.org/api/storage/v1"
)

func TestListNames(t *testing.T) {
	names := []string{"z", "a/2", "a/1", "a/b/3", "a/b/4", "a/c/5", "ab"}
	tcs := []struct {
		name string
		q    storagei.Query
		want *ops.Page
	}{
		{
			name: "flat",
			q:    storagei.Query{Prefix: "a/"},
			want: &ops.Page{Items: []string{"a/1", "a/2", "a/b/3", "a/b/4", "a/c/5"}},
		},
		{
			name: "hierarchical",
			q:    storagei.Query{Prefix: "a/", Delimiter: "/"},
			want: &ops.Page{Items: []string{"a/1", "a/2"}, Prefixes: []string{"a/b/", "a/c/"}},
		},
		{
			name: "root",
			q:    storagei.Query{Delimiter: "/"},
			want: &ops.Page{Items: []string{"ab", "z"}, Prefixes: []string{"a/"}},
		},
		{
			name: "first page",
			q:    storagei.Query{Prefix: "a/", Delimiter: "/", MaxResults: 3},
			want: &ops.Page{Items: []string{"a/1", "a/2"}, Prefixes: []string{"a/b/"}, NextPageToken: "a/b/"},
		},
		{
			name: "last page",
			q:    storagei.Query{Prefix: "a/", Delimiter: "/", MaxResults: 3, PageToken: "a/b/"},
			want: &ops.Page{Prefixes: []string{"a/c/"}},
		},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			got := ops.ListNames(names, tc.q)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("ListNames() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWindowBadToken(t *testing.T) {
	if _, _, _, err := ops.Window(3, "7", 1); err == nil {
		t.Error("Window(3, \"7\", 1) = nil error, want invalid token")
	}
}

func TestReadWriteFile(t *testing.T) {
	ctx := context.Background()
	m := tstorage.WithInitialContents(nil, "test")
	obj, err := ops.WriteFile(ctx, m, "test", "dir/a.txt", []byte("hello"), "text/plain")
	if err != nil {
		t.Fatal(err)
	}
	if obj.ContentType != "text/plain" {
		t.Errorf("WriteFile().ContentType = %q, want text/plain", obj.ContentType)
	}
	got, err := ops.ReadFile(ctx, m, "test", "dir/a.txt")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello" {
		t.Errorf("ReadFile() = %q, want \"hello\"", got)
	}
	if _, err := ops.ReadFile(ctx, m, "test", "missing"); err == nil {
		t.Error("ReadFile(missing) = nil error, want error")
	}
}

func TestForEachPage(t *testing.T) {
	ctx := context.Background()
	m := tstorage.WithInitialContents(map[string][]byte{"1": nil, "2": nil, "3": nil, "4": nil, "5": nil}, "test")
	m.PageSize = 2
	var got []string
	err := ops.ForEachPage(ctx, m, "test", storagei.Query{}, func(page *storage.Objects) error {
		for _, o := range page.Items {
			got = append(got, o.Name)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"1", "2", "3", "4", "5"}, got); diff != "" {
		t.Errorf("ForEachPage() names mismatch (-want +got):\n%s", diff)
	}
	if m.Calls["ListObjects"] != 3 {
		t.Errorf("ListObjects calls = %d, want 3", m.Calls["ListObjects"])
	}
}
