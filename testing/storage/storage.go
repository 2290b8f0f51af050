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

// Package storage provides an in-memory storagei.Client for tests.
package storage

import (
	"bytes"
	"errors"
	"fmt"
	"golang.org/x/net/context"
	"io"
	"net/http"
	"os"
	"sort"

	"github.com/google/gcsutil/storage/ops"
	"github.com/google/gcsutil/storage/storagei"
	"google.golang.org/api/googleapi"
	gcs "google.golang.org/api/storage/v1"
)

// ErrPreconditionFailed is returned when an ifGenerationMatch precondition does not hold.
var ErrPreconditionFailed = &googleapi.Error{Code: http.StatusPreconditionFailed, Message: "precondition failed"}

// FakeObject is an object's metadata and contents.
type FakeObject struct {
	Meta gcs.Object
	Data []byte
}

// FakeBucket is a bucket's metadata and objects by name.
type FakeBucket struct {
	Meta    gcs.Bucket
	Objects map[string]*FakeObject
}

// Mock implements storagei.Client over in-memory buckets. It is not safe for concurrent use.
type Mock struct {
	Buckets map[string]*FakeBucket
	// PageSize caps every listing page when positive, regardless of the requested MaxResults.
	PageSize int
	// RewriteRounds is how many unfinished responses a rewrite returns before it is done.
	RewriteRounds int
	// Errs holds errors to return from the named operation, e.g. "ComposeObject".
	Errs map[string]error
	// DeleteErrs holds per-object errors reported by deletes.
	DeleteErrs map[string]error

	// Calls counts invocations per operation name.
	Calls map[string]int
	// Rewrites records every rewrite request in order.
	Rewrites []storagei.RewriteRequest
	// Composes records every compose request in order.
	Composes []*gcs.ComposeRequest
	// BatchSizes records the size of every DeleteObjects batch.
	BatchSizes []int

	generation int64
	rewriting  map[string]int
	// Return this error from all operations for simple error specification.
	err error
}

// WithInitialContents returns a Mock holding one bucket with the given object contents.
func WithInitialContents(initialContents map[string][]byte, bucket string) *Mock {
	m := &Mock{}
	m.AddBucket(bucket)
	for name, data := range initialContents {
		m.Put(bucket, name, data)
	}
	return m
}

// WithError returns a Mock that returns err from every operation.
func WithError(err error) *Mock {
	return &Mock{err: err}
}

// AddBucket creates an empty bucket if it does not exist yet.
func (m *Mock) AddBucket(name string) *FakeBucket {
	if m.Buckets == nil {
		m.Buckets = make(map[string]*FakeBucket)
	}
	if b, ok := m.Buckets[name]; ok {
		return b
	}
	b := &FakeBucket{Meta: gcs.Bucket{Name: name}, Objects: make(map[string]*FakeObject)}
	m.Buckets[name] = b
	return b
}

// Put stores data as a new generation of the named object, creating the bucket if needed.
func (m *Mock) Put(bucket, name string, data []byte) *FakeObject {
	m.generation++
	o := &FakeObject{
		Meta: gcs.Object{Bucket: bucket, Name: name, Generation: m.generation, Size: uint64(len(data))},
		Data: bytes.Clone(data),
	}
	m.AddBucket(bucket).Objects[name] = o
	return o
}

// Names returns the sorted object names in bucket.
func (m *Mock) Names(bucket string) []string {
	b, ok := m.Buckets[bucket]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(b.Objects))
	for name := range b.Objects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Mock) record(op string) error {
	if m.Calls == nil {
		m.Calls = make(map[string]int)
	}
	m.Calls[op]++
	if m.err != nil {
		return m.err
	}
	return m.Errs[op]
}

func notFound(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), os.ErrNotExist)
}

// IsNotFound returns whether an error returned from Mock represents a missing bucket or object.
func (m *Mock) IsNotFound(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusNotFound
	}
	return errors.Is(err, os.ErrNotExist)
}

func (m *Mock) bucket(name string) (*FakeBucket, error) {
	b, ok := m.Buckets[name]
	if !ok {
		return nil, notFound("bucket %q", name)
	}
	return b, nil
}

func (m *Mock) object(bucket, name string) (*FakeObject, error) {
	b, err := m.bucket(bucket)
	if err != nil {
		return nil, err
	}
	o, ok := b.Objects[name]
	if !ok {
		return nil, notFound("object %q in bucket %q", name, bucket)
	}
	return o, nil
}

func checkGeneration(o *FakeObject, ifGenerationMatch *int64) error {
	if ifGenerationMatch == nil {
		return nil
	}
	var gen int64
	if o != nil {
		gen = o.Meta.Generation
	}
	if gen != *ifGenerationMatch {
		return ErrPreconditionFailed
	}
	return nil
}

func (m *Mock) pageSize(maxResults int64) int {
	n := int(maxResults)
	if m.PageSize > 0 && (n <= 0 || n > m.PageSize) {
		n = m.PageSize
	}
	return n
}

// ListBuckets returns the buckets in name order. The project is ignored.
func (m *Mock) ListBuckets(ctx context.Context, project, pageToken string, maxResults int64) (*gcs.Buckets, error) {
	if err := m.record("ListBuckets"); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(m.Buckets))
	for name := range m.Buckets {
		names = append(names, name)
	}
	sort.Strings(names)
	start, end, next, err := ops.Window(len(names), pageToken, m.pageSize(maxResults))
	if err != nil {
		return nil, err
	}
	result := &gcs.Buckets{NextPageToken: next}
	for _, name := range names[start:end] {
		meta := m.Buckets[name].Meta
		result.Items = append(result.Items, &meta)
	}
	return result, nil
}

// GetBucket returns a copy of the bucket metadata.
func (m *Mock) GetBucket(ctx context.Context, bucket string) (*gcs.Bucket, error) {
	if err := m.record("GetBucket"); err != nil {
		return nil, err
	}
	b, err := m.bucket(bucket)
	if err != nil {
		return nil, err
	}
	meta := b.Meta
	return &meta, nil
}

// InsertBucket creates a bucket, failing with a conflict if it exists.
func (m *Mock) InsertBucket(ctx context.Context, project string, bucket *gcs.Bucket) (*gcs.Bucket, error) {
	if err := m.record("InsertBucket"); err != nil {
		return nil, err
	}
	if _, ok := m.Buckets[bucket.Name]; ok {
		return nil, &googleapi.Error{Code: http.StatusConflict, Message: "bucket already exists"}
	}
	b := m.AddBucket(bucket.Name)
	b.Meta = *bucket
	meta := b.Meta
	return &meta, nil
}

// DeleteBucket removes an empty bucket.
func (m *Mock) DeleteBucket(ctx context.Context, bucket string) error {
	if err := m.record("DeleteBucket"); err != nil {
		return err
	}
	b, err := m.bucket(bucket)
	if err != nil {
		return err
	}
	if len(b.Objects) != 0 {
		return &googleapi.Error{Code: http.StatusConflict, Message: "bucket is not empty"}
	}
	delete(m.Buckets, bucket)
	return nil
}

// GetObject returns a copy of the object metadata.
func (m *Mock) GetObject(ctx context.Context, bucket, object string) (*gcs.Object, error) {
	if err := m.record("GetObject"); err != nil {
		return nil, err
	}
	o, err := m.object(bucket, object)
	if err != nil {
		return nil, err
	}
	meta := o.Meta
	return &meta, nil
}

// DownloadObject writes the object contents to w.
func (m *Mock) DownloadObject(ctx context.Context, bucket, object string, generation int64, w io.Writer) error {
	if err := m.record("DownloadObject"); err != nil {
		return err
	}
	o, err := m.object(bucket, object)
	if err != nil {
		return err
	}
	if generation != 0 && generation != o.Meta.Generation {
		return notFound("generation %d of object %q", generation, object)
	}
	_, err = w.Write(o.Data)
	return err
}

// ListObjects lists objects in name order, grouping by q.Delimiter. Objects and prefixes share
// the page budget as they do in the real service.
func (m *Mock) ListObjects(ctx context.Context, bucket string, q *storagei.Query) (*gcs.Objects, error) {
	if err := m.record("ListObjects"); err != nil {
		return nil, err
	}
	if q == nil {
		q = &storagei.Query{}
	}
	b, err := m.bucket(bucket)
	if err != nil {
		return nil, err
	}
	page := ops.ListNames(m.Names(bucket), storagei.Query{
		Delimiter:  q.Delimiter,
		Prefix:     q.Prefix,
		PageToken:  q.PageToken,
		MaxResults: int64(m.pageSize(q.MaxResults)),
	})
	result := &gcs.Objects{Prefixes: page.Prefixes, NextPageToken: page.NextPageToken}
	for _, name := range page.Items {
		meta := b.Objects[name].Meta
		result.Items = append(result.Items, &meta)
	}
	return result, nil
}

// InsertObject stores the request's media as a new object generation.
func (m *Mock) InsertObject(ctx context.Context, req *storagei.InsertRequest) (*gcs.Object, error) {
	if err := m.record("InsertObject"); err != nil {
		return nil, err
	}
	b, err := m.bucket(req.Bucket)
	if err != nil {
		return nil, err
	}
	if err := checkGeneration(b.Objects[req.Object.Name], req.IfGenerationMatch); err != nil {
		return nil, err
	}
	var data []byte
	if req.Media != nil {
		if data, err = io.ReadAll(req.Media); err != nil {
			return nil, err
		}
	}
	o := m.Put(req.Bucket, req.Object.Name, data)
	o.Meta.ContentType = req.Object.ContentType
	o.Meta.ContentEncoding = req.Object.ContentEncoding
	meta := o.Meta
	return &meta, nil
}

func (m *Mock) deleteObject(bucket, object string, ifGenerationMatch *int64) error {
	if err, ok := m.DeleteErrs[object]; ok {
		return err
	}
	o, err := m.object(bucket, object)
	if err != nil {
		return err
	}
	if err := checkGeneration(o, ifGenerationMatch); err != nil {
		return err
	}
	delete(m.Buckets[bucket].Objects, object)
	return nil
}

// DeleteObject removes one object.
func (m *Mock) DeleteObject(ctx context.Context, bucket, object string, ifGenerationMatch *int64) error {
	if err := m.record("DeleteObject"); err != nil {
		return err
	}
	return m.deleteObject(bucket, object, ifGenerationMatch)
}

// DeleteObjects removes objects as one batch, reporting each outcome to fn.
func (m *Mock) DeleteObjects(ctx context.Context, bucket string, objects []string, fn storagei.DeleteResultFunc) error {
	if err := m.record("DeleteObjects"); err != nil {
		return err
	}
	if len(objects) > storagei.MaxBatchSize {
		return fmt.Errorf("batch of %d deletes exceeds %d", len(objects), storagei.MaxBatchSize)
	}
	m.BatchSizes = append(m.BatchSizes, len(objects))
	// Every item is applied before any result is reported, as the service does.
	errs := make([]error, len(objects))
	for i, name := range objects {
		errs[i] = m.deleteObject(bucket, name, nil)
	}
	for i, name := range objects {
		if err := fn(name, errs[i]); err != nil {
			return err
		}
	}
	return nil
}

// RewriteObject copies an object after RewriteRounds unfinished round trips.
func (m *Mock) RewriteObject(ctx context.Context, req *storagei.RewriteRequest) (*gcs.RewriteResponse, error) {
	if err := m.record("RewriteObject"); err != nil {
		return nil, err
	}
	m.Rewrites = append(m.Rewrites, *req)
	src, err := m.object(req.SrcBucket, req.SrcObject)
	if err != nil {
		return nil, err
	}
	dst, err := m.bucket(req.DstBucket)
	if err != nil {
		return nil, err
	}
	round := 1
	if req.RewriteToken != "" {
		prev, ok := m.rewriting[req.RewriteToken]
		if !ok {
			return nil, &googleapi.Error{Code: http.StatusBadRequest, Message: "invalid rewrite token"}
		}
		delete(m.rewriting, req.RewriteToken)
		round = prev + 1
	}
	if round <= m.RewriteRounds {
		if m.rewriting == nil {
			m.rewriting = make(map[string]int)
		}
		token := fmt.Sprintf("%s/%s#%d", req.SrcBucket, req.SrcObject, round)
		m.rewriting[token] = round
		return &gcs.RewriteResponse{RewriteToken: token, ObjectSize: int64(len(src.Data))}, nil
	}
	if err := checkGeneration(dst.Objects[req.DstObject], req.IfGenerationMatch); err != nil {
		return nil, err
	}
	o := m.Put(req.DstBucket, req.DstObject, src.Data)
	o.Meta.ContentType = src.Meta.ContentType
	o.Meta.ContentEncoding = src.Meta.ContentEncoding
	meta := o.Meta
	return &gcs.RewriteResponse{
		Done:                true,
		Resource:            &meta,
		ObjectSize:          int64(len(src.Data)),
		TotalBytesRewritten: int64(len(src.Data)),
	}, nil
}

// ComposeObject concatenates the source objects into the destination object.
func (m *Mock) ComposeObject(ctx context.Context, bucket, object string, req *gcs.ComposeRequest) (*gcs.Object, error) {
	if err := m.record("ComposeObject"); err != nil {
		return nil, err
	}
	m.Composes = append(m.Composes, req)
	if len(req.SourceObjects) > 32 {
		return nil, &googleapi.Error{Code: http.StatusBadRequest, Message: "too many source objects"}
	}
	var data []byte
	for _, so := range req.SourceObjects {
		src, err := m.object(bucket, so.Name)
		if err != nil {
			return nil, err
		}
		data = append(data, src.Data...)
	}
	o := m.Put(bucket, object, data)
	if req.Destination != nil {
		o.Meta.ContentType = req.Destination.ContentType
		o.Meta.ContentEncoding = req.Destination.ContentEncoding
	}
	meta := o.Meta
	return &meta, nil
}
