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

package rawhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/gcsutil/auth"
	"github.com/google/gcsutil/testing/testauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	objects  map[string][]byte
	requests []*http.Request
	bodies   [][]byte
}

func (s *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	s.requests = append(s.requests, r)
	s.bodies = append(s.bodies, body)
	switch {
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.EscapedPath(), "/download/storage/v1/b/bkt/o/"):
		if r.URL.Query().Get("alt") != "media" {
			http.Error(w, "alt=media required", http.StatusBadRequest)
			return
		}
		name := strings.TrimPrefix(r.URL.Path, "/download/storage/v1/b/bkt/o/")
		data, ok := s.objects[name]
		if !ok {
			http.Error(w, "No such object", http.StatusNotFound)
			return
		}
		w.Write(data)
	case r.Method == http.MethodPost && r.URL.Path == "/upload/storage/v1/b/bkt/o":
		w.Header().Set("Location", "https://example.com/session?upload_id=xyz")
		w.WriteHeader(http.StatusOK)
	default:
		http.Error(w, "permission denied", http.StatusForbidden)
	}
}

func newTestClient(t *testing.T, objects map[string][]byte) (*Client, *fakeService, *testauth.Authorizer) {
	t.Helper()
	svc := &fakeService{objects: objects}
	srv := httptest.NewServer(svc)
	t.Cleanup(srv.Close)
	a := testauth.New("tok")
	c := &Client{HTTP: srv.Client(), Endpoint: srv.URL, Tokens: auth.NewGuard(a)}
	return c, svc, a
}

func TestReadPartialLimitOvershoot(t *testing.T) {
	c, _, _ := newTestClient(t, map[string][]byte{"big": bytes.Repeat([]byte("x"), 100)})
	c.ChunkSize = 8
	res, err := c.ReadPartial(context.Background(), "bkt", "big", ReadOptions{Limit: 10})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Greater(t, len(res.Data), 10)
	assert.LessOrEqual(t, len(res.Data), 10+c.ChunkSize)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestReadPartialTrim(t *testing.T) {
	tcs := []struct {
		name    string
		content string
		want    string
	}{
		{name: "unterminated tail", content: "a\nb\nc", want: "a\nb\n"},
		{name: "terminated", content: "a\nb\n", want: "a\nb\n"},
		{name: "no delimiter", content: "abc", want: ""},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			c, _, _ := newTestClient(t, map[string][]byte{"obj": []byte(tc.content)})
			res, err := c.ReadPartial(context.Background(), "bkt", "obj", ReadOptions{TrimDelimiter: []byte("\n")})
			require.NoError(t, err)
			require.NotNil(t, res)
			assert.Equal(t, tc.want, string(res.Data))
		})
	}
}

func TestReadPartialMultiByteDelimiter(t *testing.T) {
	c, _, _ := newTestClient(t, map[string][]byte{"obj": []byte("r1\r\nr2\r\nr3")})
	res, err := c.ReadPartial(context.Background(), "bkt", "obj", ReadOptions{TrimDelimiter: []byte("\r\n")})
	require.NoError(t, err)
	assert.Equal(t, "r1\r\nr2\r\n", string(res.Data))
}

func TestReadPartialStream(t *testing.T) {
	content := bytes.Repeat([]byte("0123456789"), 1000)
	c, _, _ := newTestClient(t, map[string][]byte{"dir/obj name": content})
	c.ChunkSize = 8
	var sink bytes.Buffer
	res, err := c.ReadPartial(context.Background(), "bkt", "dir/obj name", ReadOptions{Limit: 10, Sink: &sink})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Nil(t, res.Data)
	assert.Equal(t, int64(len(content)), res.BytesRead)
	assert.Equal(t, content, sink.Bytes())
}

func TestReadPartialNotFound(t *testing.T) {
	c, _, _ := newTestClient(t, nil)
	res, err := c.ReadPartial(context.Background(), "bkt", "missing", ReadOptions{})
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestReadPartialProtocolError(t *testing.T) {
	c, _, _ := newTestClient(t, nil)
	_, err := c.ReadPartial(context.Background(), "other", "obj", ReadOptions{})
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusForbidden, perr.StatusCode)
	assert.Contains(t, perr.Body, "permission denied")
	assert.Contains(t, err.Error(), "HTTP status 403")
}

func TestReadPartialEscapesObjectName(t *testing.T) {
	c, svc, _ := newTestClient(t, map[string][]byte{"a b/c": []byte("ok")})
	_, err := c.ReadPartial(context.Background(), "bkt", "a b/c", ReadOptions{})
	require.NoError(t, err)
	require.Len(t, svc.requests, 1)
	assert.Equal(t, "/download/storage/v1/b/bkt/o/a%20b%2Fc", svc.requests[0].URL.EscapedPath())
}

func TestInitiateResumableUpload(t *testing.T) {
	c, svc, _ := newTestClient(t, nil)
	uri, err := c.InitiateResumableUpload(context.Background(), "bkt", "dir/file.bin", "", "https://app.example.com")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/session?upload_id=xyz", uri)

	require.Len(t, svc.requests, 1)
	req := svc.requests[0]
	assert.Equal(t, "resumable", req.URL.Query().Get("uploadType"))
	assert.Equal(t, "Bearer tok", req.Header.Get("Authorization"))
	assert.Equal(t, DefaultUploadContentType, req.Header.Get("X-Upload-Content-Type"))
	assert.Equal(t, "https://app.example.com", req.Header.Get("Origin"))
	assert.Equal(t, "application/json; charset=UTF-8", req.Header.Get("Content-Type"))
	var body map[string]any
	require.NoError(t, json.Unmarshal(svc.bodies[0], &body))
	assert.Equal(t, map[string]any{"name": "dir/file.bin"}, body)
}

func TestInitiateResumableUploadError(t *testing.T) {
	c, _, _ := newTestClient(t, nil)
	_, err := c.InitiateResumableUpload(context.Background(), "nobucket", "x", "text/plain", "")
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusForbidden, perr.StatusCode)
}

func TestTokenCheckedOnEveryCall(t *testing.T) {
	c, svc, a := newTestClient(t, map[string][]byte{"obj": []byte("x")})
	ctx := context.Background()
	_, err := c.ReadPartial(ctx, "bkt", "obj", ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, a.Refreshes)

	// Age the token past the refresh margin.
	a.Issued = time.Now().Add(-a.Lifetime)
	_, err = c.InitiateResumableUpload(ctx, "bkt", "obj", "text/plain", "")
	require.NoError(t, err)
	assert.Equal(t, 1, a.Refreshes)
	assert.Equal(t, "Bearer refreshed-1", svc.requests[1].Header.Get("Authorization"))
}
