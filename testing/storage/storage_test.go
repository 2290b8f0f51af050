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

package storage

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/gcsutil/storage/storagei"
	"github.com/google/go-cmp/cmp"
	gcs "google.golang.org/api/storage/v1"
)

var _ storagei.Client = (*Mock)(nil)

func TestReadAfterInsert(t *testing.T) {
	ctx := context.Background()
	want := []byte(`a contents`)
	m := WithInitialContents(nil, "test")
	obj, err := m.InsertObject(ctx, &storagei.InsertRequest{
		Bucket: "test",
		Object: &gcs.Object{Name: "a", ContentType: "text/plain"},
		Media:  bytes.NewReader(want),
	})
	if err != nil {
		t.Fatal(err)
	}
	if obj.ContentType != "text/plain" || obj.Size != uint64(len(want)) {
		t.Errorf("InsertObject() = %+v, want text/plain of size %d", obj, len(want))
	}
	var got bytes.Buffer
	if err := m.DownloadObject(ctx, "test", "a", obj.Generation, &got); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got.Bytes(), want) {
		t.Errorf("read after insert got %q, want %q", got.Bytes(), want)
	}
}

func TestInsertPrecondition(t *testing.T) {
	ctx := context.Background()
	m := WithInitialContents(map[string][]byte{"a": []byte(`previous`)}, "test")
	zero := int64(0)
	_, err := m.InsertObject(ctx, &storagei.InsertRequest{Bucket: "test", Object: &gcs.Object{Name: "a"}, IfGenerationMatch: &zero})
	if !errors.Is(err, ErrPreconditionFailed) {
		t.Errorf("InsertObject(ifGenerationMatch=0) on existing object = %v, want %v", err, ErrPreconditionFailed)
	}
}

func TestListObjectsPaging(t *testing.T) {
	ctx := context.Background()
	m := WithInitialContents(map[string][]byte{
		"a/1": nil, "a/2": nil, "a/b/3": nil, "a/c/4": nil, "z": nil,
	}, "test")
	m.PageSize = 2
	var items, prefixes []string
	q := &storagei.Query{Prefix: "a/", Delimiter: "/"}
	pages := 0
	for {
		res, err := m.ListObjects(ctx, "test", q)
		if err != nil {
			t.Fatal(err)
		}
		pages++
		for _, o := range res.Items {
			items = append(items, o.Name)
		}
		prefixes = append(prefixes, res.Prefixes...)
		if res.NextPageToken == "" {
			break
		}
		q.PageToken = res.NextPageToken
	}
	if pages != 2 {
		t.Errorf("listing took %d pages, want 2", pages)
	}
	if diff := cmp.Diff([]string{"a/1", "a/2"}, items); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a/b/", "a/c/"}, prefixes); diff != "" {
		t.Errorf("prefixes mismatch (-want +got):\n%s", diff)
	}
}

func TestMissing(t *testing.T) {
	ctx := context.Background()
	m := WithInitialContents(nil, "test")
	if _, err := m.GetObject(ctx, "test", "nope"); !m.IsNotFound(err) {
		t.Errorf("GetObject(missing) = %v, want not found", err)
	}
	if _, err := m.ListObjects(ctx, "nobucket", nil); !m.IsNotFound(err) {
		t.Errorf("ListObjects(missing bucket) = %v, want not found", err)
	}
}

func TestRewriteRounds(t *testing.T) {
	ctx := context.Background()
	m := WithInitialContents(map[string][]byte{"src": []byte(`data`)}, "test")
	m.RewriteRounds = 1
	req := &storagei.RewriteRequest{SrcBucket: "test", SrcObject: "src", DstBucket: "test", DstObject: "dst"}
	res, err := m.RewriteObject(ctx, req)
	if err != nil || res.Done {
		t.Fatalf("first RewriteObject() = %+v, %v, want unfinished", res, err)
	}
	req.RewriteToken = res.RewriteToken
	res, err = m.RewriteObject(ctx, req)
	if err != nil || !res.Done {
		t.Fatalf("second RewriteObject() = %+v, %v, want done", res, err)
	}
	if got := m.Names("test"); !cmp.Equal(got, []string{"dst", "src"}) {
		t.Errorf("names after rewrite = %v, want [dst src]", got)
	}
}

func TestWithError(t *testing.T) {
	want := errors.New("boom")
	m := WithError(want)
	if _, err := m.GetBucket(context.Background(), "any"); !errors.Is(err, want) {
		t.Errorf("GetBucket() = %v, want %v", err, want)
	}
	if m.Calls["GetBucket"] != 1 {
		t.Errorf("Calls[GetBucket] = %d, want 1", m.Calls["GetBucket"])
	}
}
