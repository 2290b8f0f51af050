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

// Package local provides a storagei.Client implementation on local disk. Each bucket is a
// directory under Root and each object a file in it whose name is the path-escaped object name,
// so the flat object namespace needs no directories of its own.
package local

import (
	"context"
	"io"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/gcsutil/cmd/output"
	"github.com/google/gcsutil/storage/ops"
	"github.com/google/gcsutil/storage/storagei"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	storage "google.golang.org/api/storage/v1"
)

const (
	defaultPerm os.FileMode = 0777
	// tmpDir holds partially written objects. Bucket names cannot start with ".", so it never
	// shows up as a bucket.
	tmpDir = ".tmp"
)

var (
	// ErrInvalidName is returned for object names that cannot be stored.
	ErrInvalidName = errors.New("invalid object name")
	// ErrPreconditionFailed is returned when an ifGenerationMatch precondition does not hold.
	ErrPreconditionFailed = errors.New("precondition failed")
)

// StorageClient provides storagei.Client on local disk.
type StorageClient struct {
	Root string
}

var _ storagei.Client = (*StorageClient)(nil)

func (s *StorageClient) bucketPath(bucket string) string {
	return filepath.Join(s.Root, bucket)
}

func (s *StorageClient) objectPath(bucket, object string) (string, error) {
	if object == "" || object == "." || object == ".." {
		return "", errors.Wrapf(ErrInvalidName, "%q", object)
	}
	return filepath.Join(s.Root, bucket, url.PathEscape(object)), nil
}

func (s *StorageClient) statBucket(bucket string) error {
	if bucket == "" || strings.HasPrefix(bucket, ".") || strings.ContainsRune(bucket, os.PathSeparator) {
		return errors.Wrapf(os.ErrNotExist, "bucket %q", bucket)
	}
	fi, err := os.Stat(s.bucketPath(bucket))
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return errors.Wrapf(os.ErrNotExist, "bucket %q", bucket)
	}
	return nil
}

func objectMeta(bucket, object string, fi os.FileInfo) *storage.Object {
	return &storage.Object{
		Bucket:      bucket,
		Name:        object,
		Size:        uint64(fi.Size()),
		Generation:  fi.ModTime().UnixNano(),
		Updated:     fi.ModTime().UTC().Format(time.RFC3339Nano),
		ContentType: mime.TypeByExtension(path.Ext(object)),
	}
}

func checkGeneration(fi os.FileInfo, ifGenerationMatch *int64) error {
	if ifGenerationMatch == nil {
		return nil
	}
	var gen int64
	if fi != nil {
		gen = fi.ModTime().UnixNano()
	}
	if gen != *ifGenerationMatch {
		return ErrPreconditionFailed
	}
	return nil
}

// IsNotFound returns whether an error from StorageClient indicates the bucket or object in
// question does not exist.
func (s *StorageClient) IsNotFound(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}

// ListBuckets lists the bucket directories under Root. The project is ignored.
func (s *StorageClient) ListBuckets(ctx context.Context, project, pageToken string, maxResults int64) (*storage.Buckets, error) {
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		return nil, errors.Wrap(err, "could not list buckets")
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	start, end, next, err := ops.Window(len(names), pageToken, int(maxResults))
	if err != nil {
		return nil, err
	}
	result := &storage.Buckets{NextPageToken: next}
	for _, name := range names[start:end] {
		result.Items = append(result.Items, &storage.Bucket{Name: name, Location: "LOCAL"})
	}
	return result, nil
}

// GetBucket returns the metadata of an existing bucket directory.
func (s *StorageClient) GetBucket(ctx context.Context, bucket string) (*storage.Bucket, error) {
	if err := s.statBucket(bucket); err != nil {
		return nil, err
	}
	return &storage.Bucket{Name: bucket, Location: "LOCAL"}, nil
}

// InsertBucket creates the bucket directory. Only the owner has privileges.
func (s *StorageClient) InsertBucket(ctx context.Context, project string, bucket *storage.Bucket) (*storage.Bucket, error) {
	if bucket.Name == "" || strings.HasPrefix(bucket.Name, ".") {
		return nil, errors.Errorf("invalid bucket name %q", bucket.Name)
	}
	if err := os.MkdirAll(s.Root, defaultPerm); err != nil {
		return nil, errors.Wrap(err, "could not create storage root")
	}
	if err := os.Mkdir(s.bucketPath(bucket.Name), 0700); err != nil {
		return nil, errors.Wrapf(err, "could not create bucket %s", bucket.Name)
	}
	result := *bucket
	result.Location = "LOCAL"
	return &result, nil
}

// DeleteBucket removes an empty bucket directory.
func (s *StorageClient) DeleteBucket(ctx context.Context, bucket string) error {
	if err := s.statBucket(bucket); err != nil {
		return err
	}
	return os.Remove(s.bucketPath(bucket))
}

// GetObject returns the metadata of an object file.
func (s *StorageClient) GetObject(ctx context.Context, bucket, object string) (*storage.Object, error) {
	p, err := s.objectPath(bucket, object)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(p)
	if err != nil {
		return nil, err
	}
	return objectMeta(bucket, object, fi), nil
}

// DownloadObject copies an object file's contents to w.
func (s *StorageClient) DownloadObject(ctx context.Context, bucket, object string, generation int64, w io.Writer) error {
	p, err := s.objectPath(bucket, object)
	if err != nil {
		return err
	}
	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer f.Close()
	if generation != 0 {
		fi, err := f.Stat()
		if err != nil {
			return err
		}
		if fi.ModTime().UnixNano() != generation {
			return errors.Wrapf(os.ErrNotExist, "generation %d of %s", generation, object)
		}
	}
	_, err = io.Copy(w, f)
	return err
}

func (s *StorageClient) objectNames(ctx context.Context, bucket string) ([]string, error) {
	if err := s.statBucket(bucket); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.bucketPath(bucket))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name, err := url.PathUnescape(e.Name())
		if err != nil {
			output.Warningf(ctx, "skipping unrecognized file %q in bucket %s", e.Name(), bucket)
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// ListObjects lists one page of object files.
func (s *StorageClient) ListObjects(ctx context.Context, bucket string, q *storagei.Query) (*storage.Objects, error) {
	if q == nil {
		q = &storagei.Query{}
	}
	names, err := s.objectNames(ctx, bucket)
	if err != nil {
		return nil, err
	}
	page := ops.ListNames(names, *q)
	result := &storage.Objects{Prefixes: page.Prefixes, NextPageToken: page.NextPageToken}
	for _, name := range page.Items {
		obj, err := s.GetObject(ctx, bucket, name)
		if s.IsNotFound(err) {
			continue // Deleted since the directory was read.
		}
		if err != nil {
			return nil, err
		}
		result.Items = append(result.Items, obj)
	}
	return result, nil
}

// writeObject atomically replaces bucket/object with what fill writes.
func (s *StorageClient) writeObject(ctx context.Context, bucket, object string, ifGenerationMatch *int64, fill func(io.Writer) error) (*storage.Object, error) {
	if err := s.statBucket(bucket); err != nil {
		return nil, err
	}
	p, err := s.objectPath(bucket, object)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(p)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err := checkGeneration(fi, ifGenerationMatch); err != nil {
		return nil, errors.Wrapf(err, "write %s/%s", bucket, object)
	}
	tmp := filepath.Join(s.Root, tmpDir)
	if err := os.MkdirAll(tmp, defaultPerm); err != nil {
		return nil, errors.Wrap(err, "could not prepare temporary directory")
	}
	f, err := os.CreateTemp(tmp, uuid.NewString())
	if err != nil {
		return nil, err
	}
	defer os.Remove(f.Name())
	if err := fill(f); err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "could not write %s/%s", bucket, object)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	if err := os.Rename(f.Name(), p); err != nil {
		return nil, errors.Wrapf(err, "could not commit %s/%s", bucket, object)
	}
	output.Debugf(ctx, "wrote %s", p)
	return s.GetObject(ctx, bucket, object)
}

// InsertObject writes the request's media to the object file.
func (s *StorageClient) InsertObject(ctx context.Context, req *storagei.InsertRequest) (*storage.Object, error) {
	obj, err := s.writeObject(ctx, req.Bucket, req.Object.Name, req.IfGenerationMatch, func(w io.Writer) error {
		if req.Media == nil {
			return nil
		}
		_, err := io.Copy(w, req.Media)
		return err
	})
	if err != nil {
		return nil, err
	}
	if req.Object.ContentType != "" {
		obj.ContentType = req.Object.ContentType
	}
	obj.ContentEncoding = req.Object.ContentEncoding
	return obj, nil
}

// DeleteObject removes an object file.
func (s *StorageClient) DeleteObject(ctx context.Context, bucket, object string, ifGenerationMatch *int64) error {
	p, err := s.objectPath(bucket, object)
	if err != nil {
		return err
	}
	fi, err := os.Stat(p)
	if err != nil {
		return err
	}
	if err := checkGeneration(fi, ifGenerationMatch); err != nil {
		return err
	}
	return os.Remove(p)
}

// DeleteObjects removes object files one by one, reporting each outcome to fn.
func (s *StorageClient) DeleteObjects(ctx context.Context, bucket string, objects []string, fn storagei.DeleteResultFunc) error {
	if len(objects) > storagei.MaxBatchSize {
		return errors.Errorf("batch of %d deletes exceeds %d", len(objects), storagei.MaxBatchSize)
	}
	errs := make([]error, len(objects))
	for i, object := range objects {
		errs[i] = s.DeleteObject(ctx, bucket, object, nil)
	}
	for i, object := range objects {
		if err := fn(object, errs[i]); err != nil {
			return err
		}
	}
	return nil
}

// RewriteObject copies an object file in a single round.
func (s *StorageClient) RewriteObject(ctx context.Context, req *storagei.RewriteRequest) (*storage.RewriteResponse, error) {
	src, err := s.objectPath(req.SrcBucket, req.SrcObject)
	if err != nil {
		return nil, err
	}
	in, err := os.Open(src)
	if err != nil {
		return nil, err
	}
	defer in.Close()
	var n int64
	obj, err := s.writeObject(ctx, req.DstBucket, req.DstObject, req.IfGenerationMatch, func(w io.Writer) error {
		n, err = io.Copy(w, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &storage.RewriteResponse{Done: true, Resource: obj, ObjectSize: n, TotalBytesRewritten: n}, nil
}

// ComposeObject concatenates the source object files into bucket/object.
func (s *StorageClient) ComposeObject(ctx context.Context, bucket, object string, req *storage.ComposeRequest) (*storage.Object, error) {
	obj, err := s.writeObject(ctx, bucket, object, nil, func(w io.Writer) error {
		for _, so := range req.SourceObjects {
			if err := s.DownloadObject(ctx, bucket, so.Name, so.Generation, w); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if req.Destination != nil {
		if req.Destination.ContentType != "" {
			obj.ContentType = req.Destination.ContentType
		}
		obj.ContentEncoding = req.Destination.ContentEncoding
	}
	return obj, nil
}
