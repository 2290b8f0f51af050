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

package gcsapi

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/gcsutil/storage/storagei"
	"google.golang.org/api/googleapi"
)

// objectPath returns the request path of an object relative to the host.
func (c *Client) objectPath(bucket, object string) string {
	return c.apiPath + "b/" + url.PathEscape(bucket) + "/o/" + url.PathEscape(object)
}

func encodeDeleteBatch(c *Client, bucket string, objects []string) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for i, name := range objects {
		h := textproto.MIMEHeader{}
		h.Set("Content-Type", "application/http")
		h.Set("Content-Transfer-Encoding", "binary")
		h.Set("Content-ID", fmt.Sprintf("<%d>", i))
		pw, err := mw.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := fmt.Fprintf(pw, "DELETE %s HTTP/1.1\r\n\r\n", c.objectPath(bucket, name)); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return body, "multipart/mixed; boundary=" + mw.Boundary(), nil
}

// responseIndex parses a batch part's Content-ID, "<response-N>", back into the request index.
func responseIndex(contentID string) (int, error) {
	id := strings.TrimSuffix(strings.TrimPrefix(contentID, "<"), ">")
	id = strings.TrimPrefix(id, "response-")
	return strconv.Atoi(id)
}

// DeleteObjects deletes objects in one multipart batch request.
func (c *Client) DeleteObjects(ctx context.Context, bucket string, objects []string, fn storagei.DeleteResultFunc) error {
	if len(objects) == 0 {
		return nil
	}
	if len(objects) > storagei.MaxBatchSize {
		return fmt.Errorf("batch of %d deletes exceeds %d", len(objects), storagei.MaxBatchSize)
	}
	body, contentType, err := encodeDeleteBatch(c, bucket, objects)
	if err != nil {
		return fmt.Errorf("could not encode batch: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BatchURL, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := googleapi.CheckResponse(resp); err != nil {
		return err
	}
	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		return fmt.Errorf("unexpected batch response type %q", resp.Header.Get("Content-Type"))
	}

	answered := make([]bool, len(objects))
	mr := multipart.NewReader(resp.Body, params["boundary"])
	for {
		part, err := mr.NextPart()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("could not read batch response: %w", err)
		}
		i, err := responseIndex(part.Header.Get("Content-ID"))
		if err != nil || i < 0 || i >= len(objects) {
			return fmt.Errorf("unexpected batch Content-ID %q", part.Header.Get("Content-ID"))
		}
		itemResp, err := http.ReadResponse(bufio.NewReader(part), nil)
		if err != nil {
			return fmt.Errorf("could not parse batch response for %q: %w", objects[i], err)
		}
		itemErr := googleapi.CheckResponse(itemResp)
		itemResp.Body.Close()
		answered[i] = true
		if err := fn(objects[i], itemErr); err != nil {
			return err
		}
	}
	for i, ok := range answered {
		if ok {
			continue
		}
		if err := fn(objects[i], fmt.Errorf("no response for %q in batch", objects[i])); err != nil {
			return err
		}
	}
	return nil
}
