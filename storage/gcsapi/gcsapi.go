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

// Package gcsapi implements storagei.Client with the generated Cloud Storage JSON API client.
package gcsapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/gcsutil/storage/storagei"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"
	htransport "google.golang.org/api/transport/http"
)

// Client implements storagei.Client against the Cloud Storage JSON API.
type Client struct {
	Service *storage.Service
	// HTTP is the authenticated client shared by the service and batch requests.
	HTTP *http.Client
	// BatchURL is where batch requests are posted.
	BatchURL string
	// apiPath is the URL path of the JSON API root, e.g. "/storage/v1/".
	apiPath string
}

var _ storagei.Client = (*Client)(nil)

// New returns a Client authenticated according to opts, e.g. option.WithTokenSource.
func New(ctx context.Context, opts ...option.ClientOption) (*Client, error) {
	hc, endpoint, err := htransport.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not create storage transport: %w", err)
	}
	return NewFromHTTPClient(ctx, hc, endpoint)
}

// NewFromHTTPClient returns a Client that sends every request through hc, which must already
// authenticate them. An empty endpoint selects the production service.
func NewFromHTTPClient(ctx context.Context, hc *http.Client, endpoint string) (*Client, error) {
	opts := []option.ClientOption{option.WithHTTPClient(hc)}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	svc, err := storage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not create storage service: %w", err)
	}
	base, err := url.Parse(svc.BasePath)
	if err != nil {
		return nil, fmt.Errorf("bad storage endpoint %q: %w", svc.BasePath, err)
	}
	apiPath := base.Path
	if !strings.HasSuffix(apiPath, "/") {
		apiPath += "/"
	}
	batch := *base
	batch.Path = "/batch" + strings.TrimSuffix(apiPath, "/")
	batch.RawPath = ""
	batch.RawQuery = ""
	return &Client{Service: svc, HTTP: hc, BatchURL: batch.String(), apiPath: apiPath}, nil
}

// IsNotFound returns whether err is a 404 response from the API.
func (c *Client) IsNotFound(err error) bool {
	return IsStatus(err, http.StatusNotFound)
}

// IsStatus returns whether err is an API error with the given HTTP status code.
func IsStatus(err error, code int) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == code
}

// ListBuckets lists one page of the project's buckets.
func (c *Client) ListBuckets(ctx context.Context, project, pageToken string, maxResults int64) (*storage.Buckets, error) {
	call := c.Service.Buckets.List(project).Context(ctx)
	if pageToken != "" {
		call.PageToken(pageToken)
	}
	if maxResults > 0 {
		call.MaxResults(maxResults)
	}
	return call.Do()
}

// GetBucket returns the bucket's metadata.
func (c *Client) GetBucket(ctx context.Context, bucket string) (*storage.Bucket, error) {
	return c.Service.Buckets.Get(bucket).Context(ctx).Do()
}

// InsertBucket creates a bucket in the project.
func (c *Client) InsertBucket(ctx context.Context, project string, bucket *storage.Bucket) (*storage.Bucket, error) {
	return c.Service.Buckets.Insert(project, bucket).Context(ctx).Do()
}

// DeleteBucket deletes an empty bucket.
func (c *Client) DeleteBucket(ctx context.Context, bucket string) error {
	return c.Service.Buckets.Delete(bucket).Context(ctx).Do()
}

// GetObject returns the object's metadata.
func (c *Client) GetObject(ctx context.Context, bucket, object string) (*storage.Object, error) {
	return c.Service.Objects.Get(bucket, object).Context(ctx).Do()
}

// DownloadObject copies the object's contents to w.
func (c *Client) DownloadObject(ctx context.Context, bucket, object string, generation int64, w io.Writer) error {
	call := c.Service.Objects.Get(bucket, object).Context(ctx)
	if generation != 0 {
		call.Generation(generation)
	}
	resp, err := call.Download()
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("could not download %s/%s: %w", bucket, object, err)
	}
	return nil
}

// ListObjects lists one page of objects.
func (c *Client) ListObjects(ctx context.Context, bucket string, q *storagei.Query) (*storage.Objects, error) {
	call := c.Service.Objects.List(bucket).Context(ctx)
	if q != nil {
		if q.Delimiter != "" {
			call.Delimiter(q.Delimiter)
		}
		if q.Prefix != "" {
			call.Prefix(q.Prefix)
		}
		if q.PageToken != "" {
			call.PageToken(q.PageToken)
		}
		if q.MaxResults > 0 {
			call.MaxResults(q.MaxResults)
		}
	}
	return call.Do()
}

// InsertObject uploads an object in a single request.
func (c *Client) InsertObject(ctx context.Context, req *storagei.InsertRequest) (*storage.Object, error) {
	call := c.Service.Objects.Insert(req.Bucket, req.Object).Context(ctx)
	media := req.Media
	if media == nil {
		media = bytes.NewReader(nil)
	}
	var mopts []googleapi.MediaOption
	if req.Object.ContentType != "" {
		mopts = append(mopts, googleapi.ContentType(req.Object.ContentType))
	}
	call.Media(media, mopts...)
	if req.Object.ContentEncoding != "" {
		call.ContentEncoding(req.Object.ContentEncoding)
	}
	if req.IfGenerationMatch != nil {
		call.IfGenerationMatch(*req.IfGenerationMatch)
	}
	return call.Do()
}

// DeleteObject deletes the live generation of an object.
func (c *Client) DeleteObject(ctx context.Context, bucket, object string, ifGenerationMatch *int64) error {
	call := c.Service.Objects.Delete(bucket, object).Context(ctx)
	if ifGenerationMatch != nil {
		call.IfGenerationMatch(*ifGenerationMatch)
	}
	return call.Do()
}

// RewriteObject performs one round trip of a server-side copy.
func (c *Client) RewriteObject(ctx context.Context, req *storagei.RewriteRequest) (*storage.RewriteResponse, error) {
	call := c.Service.Objects.Rewrite(req.SrcBucket, req.SrcObject, req.DstBucket, req.DstObject, &storage.Object{}).Context(ctx)
	if req.RewriteToken != "" {
		call.RewriteToken(req.RewriteToken)
	}
	if req.IfGenerationMatch != nil {
		call.IfGenerationMatch(*req.IfGenerationMatch)
	}
	return call.Do()
}

// ComposeObject concatenates the request's source objects into bucket/object.
func (c *Client) ComposeObject(ctx context.Context, bucket, object string, req *storage.ComposeRequest) (*storage.Object, error) {
	return c.Service.Objects.Compose(bucket, object, req).Context(ctx).Do()
}
