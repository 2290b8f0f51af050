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

// Package rawhttp issues the storage requests that the generated API client does not cover:
// partial or streamed media downloads and resumable upload session initiation.
package rawhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	storage "google.golang.org/api/storage/v1"
)

const (
	// DefaultEndpoint is the storage service root.
	DefaultEndpoint = "https://storage.googleapis.com"
	// DefaultLimit is the buffered read size when ReadOptions.Limit is zero.
	DefaultLimit = 1024 * 1024
	// DefaultChunkSize is the read granularity of buffered reads.
	DefaultChunkSize = 16 * 1024
	// DefaultUploadContentType is the declared media type of uploads without one.
	DefaultUploadContentType = "application/octet-stream"
)

// ErrNoSessionURI is returned when a resumable upload initiation succeeds without a Location.
var ErrNoSessionURI = errors.New("resumable upload response has no Location header")

// TokenProvider supplies a bearer token for every request.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
}

// ProtocolError reports an unexpected HTTP status from a raw request.
type ProtocolError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s failed with HTTP status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Client performs raw storage requests. The zero value is not usable: Tokens must be set.
type Client struct {
	// HTTP defaults to http.DefaultClient.
	HTTP *http.Client
	// Endpoint defaults to DefaultEndpoint.
	Endpoint string
	Tokens   TokenProvider
	// ChunkSize defaults to DefaultChunkSize.
	ChunkSize int
}

// ReadOptions controls ReadPartial.
type ReadOptions struct {
	// Limit is the buffered size after which reading stops. Reading stops at the first chunk
	// boundary past Limit, so the result may be longer by up to one chunk.
	Limit int
	// TrimDelimiter cuts the buffered result right after the last occurrence of the delimiter, or
	// to nothing if it does not occur, so that no unterminated record is returned.
	TrimDelimiter []byte
	// Sink receives the whole object when set. Limit and TrimDelimiter are ignored in that case.
	Sink io.Writer
}

// ReadResult is the outcome of a successful ReadPartial.
type ReadResult struct {
	// Data is the buffered content. It is nil when streaming to a Sink.
	Data       []byte
	StatusCode int
	Header     http.Header
	// BytesRead counts the bytes received from the service.
	BytesRead int64
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP == nil {
		return http.DefaultClient
	}
	return c.HTTP
}

func (c *Client) endpoint() string {
	if c.Endpoint == "" {
		return DefaultEndpoint
	}
	return strings.TrimSuffix(c.Endpoint, "/")
}

func (c *Client) chunkSize() int {
	if c.ChunkSize <= 0 {
		return DefaultChunkSize
	}
	return c.ChunkSize
}

// MediaURL returns the download URL for an object's contents.
func (c *Client) MediaURL(bucket, object string) string {
	return fmt.Sprintf("%s/download/storage/v1/b/%s/o/%s?alt=media", c.endpoint(), url.PathEscape(bucket), url.PathEscape(object))
}

// ResumableURL returns the resumable upload initiation URL for a bucket.
func (c *Client) ResumableURL(bucket string) string {
	return fmt.Sprintf("%s/upload/storage/v1/b/%s/o?uploadType=resumable", c.endpoint(), url.PathEscape(bucket))
}

func (c *Client) newRequest(ctx context.Context, method, u string, body io.Reader) (*http.Request, error) {
	if c.Tokens == nil {
		return nil, errors.New("rawhttp: no token provider")
	}
	tok, err := c.Tokens.AccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not get access token: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	return req, nil
}

func protocolError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	return &ProtocolError{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
}

func success(code int) bool { return code >= 200 && code < 300 }

// ReadPartial downloads the beginning of an object, or all of it into opts.Sink. It returns a nil
// result and nil error if the object does not exist.
func (c *Client) ReadPartial(ctx context.Context, bucket, object string, opts ReadOptions) (*ReadResult, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.MediaURL(bucket, object), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if !success(resp.StatusCode) {
		return nil, protocolError("read_partial", resp)
	}
	result := &ReadResult{StatusCode: resp.StatusCode, Header: resp.Header}
	if opts.Sink != nil {
		n, err := io.CopyBuffer(opts.Sink, resp.Body, make([]byte, c.chunkSize()))
		result.BytesRead = n
		if err != nil {
			return nil, fmt.Errorf("could not stream %s/%s: %w", bucket, object, err)
		}
		return result, nil
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	total, err := readPast(resp.Body, limit, c.chunkSize())
	result.BytesRead = int64(len(total))
	if err != nil {
		return nil, fmt.Errorf("could not read %s/%s: %w", bucket, object, err)
	}
	if len(opts.TrimDelimiter) > 0 {
		total = TrimAfterLast(total, opts.TrimDelimiter)
	}
	result.Data = total
	return result, nil
}

// readPast reads r chunk by chunk until EOF or until more than limit bytes have been read.
func readPast(r io.Reader, limit, chunkSize int) ([]byte, error) {
	total := []byte{}
	chunk := make([]byte, chunkSize)
	for len(total) <= limit {
		n, err := r.Read(chunk)
		total = append(total, chunk[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// TrimAfterLast returns b cut right after the last occurrence of delim, or empty if delim does not
// occur.
func TrimAfterLast(b, delim []byte) []byte {
	i := bytes.LastIndex(b, delim)
	if i < 0 {
		return b[:0]
	}
	return b[:i+len(delim)]
}

// InitiateResumableUpload starts a resumable upload session for object and returns the session
// URI from the Location header. The upload itself is left to the caller. An empty contentType
// declares DefaultUploadContentType; a non-empty origin is sent as the Origin header so that
// browsers may upload to the session.
func (c *Client) InitiateResumableUpload(ctx context.Context, bucket, object, contentType, origin string) (string, error) {
	body, err := json.Marshal(&storage.Object{Name: object})
	if err != nil {
		return "", err
	}
	req, err := c.newRequest(ctx, http.MethodPost, c.ResumableURL(bucket), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = DefaultUploadContentType
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("X-Upload-Content-Type", contentType)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if !success(resp.StatusCode) {
		return "", protocolError("initiate_resumable_upload", resp)
	}
	loc := resp.Header.Get("Location")
	if loc == "" {
		return "", ErrNoSessionURI
	}
	return loc, nil
}
