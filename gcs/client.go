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

// Package gcs provides a convenience client over the Cloud Storage JSON API: bucket and object
// operations addressed by gs:// URLs, glob matching of object names, recursive tree copy and
// removal, object composition, and raw partial reads and resumable upload sessions.
package gcs

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/google/gcsutil/auth"
	"github.com/google/gcsutil/locator"
	"github.com/google/gcsutil/storage/gcsapi"
	"github.com/google/gcsutil/storage/rawhttp"
	"github.com/google/gcsutil/storage/storagei"
	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"
	htransport "google.golang.org/api/transport/http"
)

const (
	// DefaultDelimiter groups listings into directory-like prefixes.
	DefaultDelimiter = "/"
	// DefaultStorageClass is the storage class of new buckets unless told otherwise.
	DefaultStorageClass = "STANDARD"
	// maxBucketsPerPage is the page size used when listing buckets.
	maxBucketsPerPage = 1000
)

// Client is the facade over the storage API and the raw HTTP operations.
type Client struct {
	API storagei.Client
	// Raw serves partial reads and resumable upload sessions. It may be nil when those are not
	// used, e.g. with an on-disk backend.
	Raw *rawhttp.Client
}

// Options configures Dial.
type Options struct {
	// Endpoint is the service root, e.g. "https://storage.googleapis.com". Empty selects
	// production.
	Endpoint string
	// ClientOptions are passed to the generated API client after the token source.
	ClientOptions []option.ClientOption
}

// Dial returns a Client whose every request is authorized with a token from g.
func Dial(ctx context.Context, g *auth.Guard, opts *Options) (*Client, error) {
	if opts == nil {
		opts = &Options{}
	}
	copts := append([]option.ClientOption{option.WithTokenSource(g)}, opts.ClientOptions...)
	hc, _, err := htransport.NewClient(ctx, copts...)
	if err != nil {
		return nil, fmt.Errorf("could not create storage transport: %w", err)
	}
	endpoint := ""
	if opts.Endpoint != "" {
		endpoint = opts.Endpoint + "/storage/v1/"
	}
	api, err := gcsapi.NewFromHTTPClient(ctx, hc, endpoint)
	if err != nil {
		return nil, err
	}
	return &Client{
		API: api,
		// The raw client sets its own bearer header, so it must not go through hc.
		Raw: &rawhttp.Client{HTTP: http.DefaultClient, Endpoint: opts.Endpoint, Tokens: g},
	}, nil
}

func (c *Client) notFound(err error) bool {
	return err != nil && c.API.IsNotFound(err)
}

// Buckets returns every bucket of project.
func (c *Client) Buckets(ctx context.Context, project string) ([]*storage.Bucket, error) {
	var result []*storage.Bucket
	token := ""
	for {
		page, err := c.API.ListBuckets(ctx, project, token, maxBucketsPerPage)
		if err != nil {
			return nil, err
		}
		result = append(result, page.Items...)
		if page.NextPageToken == "" {
			return result, nil
		}
		token = page.NextPageToken
	}
}

// Bucket returns the bucket's metadata, or nil if it does not exist.
func (c *Client) Bucket(ctx context.Context, name string) (*storage.Bucket, error) {
	b, err := c.API.GetBucket(ctx, name)
	if c.notFound(err) {
		return nil, nil
	}
	return b, err
}

// BucketOptions describes a new bucket.
type BucketOptions struct {
	// StorageClass defaults to DefaultStorageClass.
	StorageClass string
	Location     string
	// ACL and DefaultObjectACL are predefined ACL names such as "projectPrivate".
	ACL              string
	DefaultObjectACL string
}

// InsertBucket creates a bucket in project.
func (c *Client) InsertBucket(ctx context.Context, project, name string, opts BucketOptions) (*storage.Bucket, error) {
	b := &storage.Bucket{
		Name:         name,
		StorageClass: opts.StorageClass,
		Location:     opts.Location,
	}
	if b.StorageClass == "" {
		b.StorageClass = DefaultStorageClass
	}
	if opts.ACL != "" {
		b.Acl = []*storage.BucketAccessControl{{Entity: opts.ACL}}
	}
	if opts.DefaultObjectACL != "" {
		b.DefaultObjectAcl = []*storage.ObjectAccessControl{{Entity: opts.DefaultObjectACL}}
	}
	return c.API.InsertBucket(ctx, project, b)
}

// DeleteBucket deletes an empty bucket. Deleting a missing bucket is not an error.
func (c *Client) DeleteBucket(ctx context.Context, name string) error {
	err := c.API.DeleteBucket(ctx, name)
	if c.notFound(err) {
		return nil
	}
	return err
}

// ListOptions narrows ListObjects.
type ListOptions struct {
	// Delimiter defaults to DefaultDelimiter unless FlatListing is set.
	Delimiter   string
	FlatListing bool
	// Prefix is appended to the object part of a gs:// URL.
	Prefix     string
	PageToken  string
	MaxResults int64
}

// ListObjects lists one page of objects. bucketOrURL may be a gs:// URL whose object part is used
// as the name prefix.
func (c *Client) ListObjects(ctx context.Context, bucketOrURL string, opts ListOptions) (*storage.Objects, error) {
	loc := locator.Parse(bucketOrURL)
	q := &storagei.Query{
		Delimiter:  opts.Delimiter,
		Prefix:     loc.Object + opts.Prefix,
		PageToken:  opts.PageToken,
		MaxResults: opts.MaxResults,
	}
	if opts.FlatListing {
		q.Delimiter = ""
	} else if q.Delimiter == "" {
		q.Delimiter = DefaultDelimiter
	}
	return c.API.ListObjects(ctx, loc.Bucket, q)
}

// GetObject returns the object's metadata, or nil if it does not exist. When dest is not nil, the
// contents of the generation described by the metadata are written to it.
func (c *Client) GetObject(ctx context.Context, loc locator.Locator, dest io.Writer) (*storage.Object, error) {
	obj, err := c.API.GetObject(ctx, loc.Bucket, loc.Object)
	if c.notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if dest != nil {
		if err := c.API.DownloadObject(ctx, loc.Bucket, loc.Object, obj.Generation, dest); err != nil {
			return nil, fmt.Errorf("could not download %s: %w", loc, err)
		}
	}
	return obj, nil
}

// DeleteOptions are preconditions of DeleteObject.
type DeleteOptions struct {
	IfGenerationMatch *int64
}

// DeleteObject deletes one object. Deleting a missing object is a no-op.
func (c *Client) DeleteObject(ctx context.Context, loc locator.Locator, opts DeleteOptions) error {
	err := c.API.DeleteObject(ctx, loc.Bucket, loc.Object, opts.IfGenerationMatch)
	if c.notFound(err) {
		return nil
	}
	return err
}

// InsertOptions describe an uploaded object.
type InsertOptions struct {
	ContentType     string
	ContentEncoding string
	// IfGenerationMatch of 0 requires that the object does not exist yet.
	IfGenerationMatch *int64
}

// InsertObject uploads src as the object's contents in a single request.
func (c *Client) InsertObject(ctx context.Context, loc locator.Locator, src io.Reader, opts InsertOptions) (*storage.Object, error) {
	return c.API.InsertObject(ctx, &storagei.InsertRequest{
		Bucket: loc.Bucket,
		Object: &storage.Object{
			Name:            loc.Object,
			ContentType:     opts.ContentType,
			ContentEncoding: opts.ContentEncoding,
		},
		Media:             src,
		IfGenerationMatch: opts.IfGenerationMatch,
	})
}

func (c *Client) raw() (*rawhttp.Client, error) {
	if c.Raw == nil {
		return nil, ErrNoRawClient
	}
	return c.Raw, nil
}

// ReadPartial reads the beginning of the object, or streams it whole into opts.Sink. It returns
// nil if the object does not exist.
func (c *Client) ReadPartial(ctx context.Context, loc locator.Locator, opts rawhttp.ReadOptions) (*rawhttp.ReadResult, error) {
	raw, err := c.raw()
	if err != nil {
		return nil, err
	}
	return raw.ReadPartial(ctx, loc.Bucket, loc.Object, opts)
}

// InitiateResumableUpload starts an upload session for the object and returns its URI.
func (c *Client) InitiateResumableUpload(ctx context.Context, loc locator.Locator, contentType, origin string) (string, error) {
	raw, err := c.raw()
	if err != nil {
		return "", err
	}
	return raw.InitiateResumableUpload(ctx, loc.Bucket, loc.Object, contentType, origin)
}
