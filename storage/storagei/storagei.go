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

// Package storagei provides the storage API surface that the higher level operations are built on.
package storagei

import (
	"golang.org/x/net/context"
	"io"

	storage "google.golang.org/api/storage/v1"
)

// MaxBatchSize is the largest number of calls grouped into one batch request.
const MaxBatchSize = 1000

// Query narrows an object listing.
type Query struct {
	// Delimiter groups names sharing a prefix up to the delimiter into Objects.Prefixes. Empty
	// means a flat listing.
	Delimiter string
	Prefix    string
	PageToken string
	// MaxResults bounds the page size. Zero leaves it to the service.
	MaxResults int64
}

// RewriteRequest is one round trip of a server-side copy.
type RewriteRequest struct {
	SrcBucket string
	SrcObject string
	DstBucket string
	DstObject string
	// RewriteToken continues an unfinished rewrite. Empty starts a new one.
	RewriteToken      string
	IfGenerationMatch *int64
}

// InsertRequest describes an object upload in a single request.
type InsertRequest struct {
	Bucket            string
	Object            *storage.Object
	Media             io.Reader
	IfGenerationMatch *int64
}

// DeleteResultFunc receives the outcome of one delete within a batch. Returning an error stops
// the processing of the remaining results and is returned from DeleteObjects.
type DeleteResultFunc func(object string, err error) error

// Client defines the storage API operations the higher level operations need.
type Client interface {
	ListBuckets(ctx context.Context, project, pageToken string, maxResults int64) (*storage.Buckets, error)
	GetBucket(ctx context.Context, bucket string) (*storage.Bucket, error)
	InsertBucket(ctx context.Context, project string, bucket *storage.Bucket) (*storage.Bucket, error)
	DeleteBucket(ctx context.Context, bucket string) error

	GetObject(ctx context.Context, bucket, object string) (*storage.Object, error)
	// DownloadObject writes the contents of the given generation of an object to w. A zero
	// generation means the live one.
	DownloadObject(ctx context.Context, bucket, object string, generation int64, w io.Writer) error
	ListObjects(ctx context.Context, bucket string, q *Query) (*storage.Objects, error)
	InsertObject(ctx context.Context, req *InsertRequest) (*storage.Object, error)
	DeleteObject(ctx context.Context, bucket, object string, ifGenerationMatch *int64) error
	// DeleteObjects deletes up to MaxBatchSize objects in one round trip and reports every
	// object's outcome to fn. Outcomes are reported in no particular order.
	DeleteObjects(ctx context.Context, bucket string, objects []string, fn DeleteResultFunc) error
	RewriteObject(ctx context.Context, req *RewriteRequest) (*storage.RewriteResponse, error)
	ComposeObject(ctx context.Context, bucket, object string, req *storage.ComposeRequest) (*storage.Object, error)

	// IsNotFound returns whether an error from Client means the bucket or object does not exist.
	IsNotFound(err error) bool
}
