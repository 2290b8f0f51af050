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
	"fmt"
	"strings"

	"github.com/google/gcsutil/cmd/output"
	"github.com/google/gcsutil/locator"
	"github.com/google/gcsutil/storage/ops"
	"github.com/google/gcsutil/storage/storagei"
	storage "google.golang.org/api/storage/v1"
)

// RewriteOptions are preconditions of Rewrite.
type RewriteOptions struct {
	// IfGenerationMatch applies to the destination object. 0 requires that it does not exist.
	IfGenerationMatch *int64
}

// Rewrite copies src to dst on the server side. Large copies take several round trips, each
// continuing where the previous one stopped.
func (c *Client) Rewrite(ctx context.Context, src, dst locator.Locator, opts RewriteOptions) (*storage.RewriteResponse, error) {
	req := &storagei.RewriteRequest{
		SrcBucket:         src.Bucket,
		SrcObject:         src.Object,
		DstBucket:         dst.Bucket,
		DstObject:         dst.Object,
		IfGenerationMatch: opts.IfGenerationMatch,
	}
	for {
		resp, err := c.API.RewriteObject(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp.Done {
			return resp, nil
		}
		output.Debugf(ctx, "rewrite %s -> %s: %d of %d bytes", src, dst, resp.TotalBytesRewritten, resp.ObjectSize)
		req.RewriteToken = resp.RewriteToken
	}
}

// CopyObject copies src to dst on the server side.
func (c *Client) CopyObject(ctx context.Context, src, dst locator.Locator) (*storage.RewriteResponse, error) {
	return c.Rewrite(ctx, src, dst, RewriteOptions{})
}

type treeCopy struct {
	src, dst string
}

// CopyTree copies every object under the src directory to the same relative name under the dst
// directory. Directory marker objects (names ending in "/") are not copied.
func (c *Client) CopyTree(ctx context.Context, src, dst locator.Locator) error {
	work := []treeCopy{{src: src.Dir().Object, dst: dst.Dir().Object}}
	for len(work) > 0 {
		next := work[len(work)-1]
		work = work[:len(work)-1]
		var prefixes []string
		q := storagei.Query{Prefix: next.src, Delimiter: DefaultDelimiter}
		err := ops.ForEachPage(ctx, c.API, src.Bucket, q, func(page *storage.Objects) error {
			for _, obj := range page.Items {
				if strings.HasSuffix(obj.Name, "/") {
					continue
				}
				from := locator.Locator{Bucket: src.Bucket, Object: obj.Name}
				to := locator.Locator{Bucket: dst.Bucket, Object: next.dst + strings.TrimPrefix(obj.Name, next.src)}
				output.Debugf(ctx, "copy %s -> %s", from, to)
				if _, err := c.CopyObject(ctx, from, to); err != nil {
					return fmt.Errorf("could not copy %s: %w", from, err)
				}
			}
			prefixes = append(prefixes, page.Prefixes...)
			return nil
		})
		if err != nil {
			return err
		}
		// Pushed in reverse so that subdirectories are visited in name order.
		for i := len(prefixes) - 1; i >= 0; i-- {
			p := prefixes[i]
			work = append(work, treeCopy{src: p, dst: next.dst + strings.TrimPrefix(p, next.src)})
		}
	}
	return nil
}

// RemoveTree deletes every object under the loc directory, or in the whole bucket if loc has no
// object part. Objects that disappear concurrently are ignored, and so is a missing bucket.
// Deletions already made are not undone when a later one fails.
func (c *Client) RemoveTree(ctx context.Context, loc locator.Locator) error {
	q := &storagei.Query{Prefix: loc.Dir().Object, MaxResults: storagei.MaxBatchSize}
	for {
		page, err := c.API.ListObjects(ctx, loc.Bucket, q)
		if c.notFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		names := make([]string, 0, len(page.Items))
		for _, obj := range page.Items {
			names = append(names, obj.Name)
		}
		if err := c.deleteNames(ctx, loc.Bucket, names); err != nil {
			return err
		}
		if page.NextPageToken == "" {
			return nil
		}
		q.PageToken = page.NextPageToken
	}
}

func (c *Client) deleteNames(ctx context.Context, bucket string, names []string) error {
	for len(names) > 0 {
		n := min(len(names), storagei.MaxBatchSize)
		batch := names[:n]
		names = names[n:]
		output.Debugf(ctx, "deleting %d objects from %s", len(batch), bucket)
		err := c.API.DeleteObjects(ctx, bucket, batch, func(object string, err error) error {
			if err == nil || c.API.IsNotFound(err) {
				return nil
			}
			return fmt.Errorf("could not delete %s: %w", locator.Locator{Bucket: bucket, Object: object}, err)
		})
		if err != nil {
			return err
		}
	}
	return nil
}
