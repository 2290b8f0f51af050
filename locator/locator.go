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

// Package locator resolves the unified gs://bucket/object notation into bucket and object names.
package locator

import (
	"strings"
)

// Scheme is the prefix that marks a unified storage URL.
const Scheme = "gs://"

// Locator names a bucket and an object, or an object-name prefix, within it. An empty Object
// refers to the bucket itself.
type Locator struct {
	Bucket string
	Object string
}

// Resolve returns the locator for the given bucket and object names. If object is empty and
// bucketOrURL is a gs:// URL, the URL is split on the first "/" after the scheme into the bucket
// and object names. In every other case the inputs are returned unchanged.
func Resolve(bucketOrURL, object string) Locator {
	if object == "" && strings.HasPrefix(bucketOrURL, Scheme) {
		bucket, obj, _ := strings.Cut(strings.TrimPrefix(bucketOrURL, Scheme), "/")
		return Locator{Bucket: bucket, Object: obj}
	}
	return Locator{Bucket: bucketOrURL, Object: object}
}

// Parse returns the locator for a gs:// URL or a bare bucket name.
func Parse(url string) Locator {
	return Resolve(url, "")
}

// IsURL returns whether s uses the unified storage scheme.
func IsURL(s string) bool {
	return strings.HasPrefix(s, Scheme)
}

// String renders the locator as a gs:// URL.
func (l Locator) String() string {
	if l.Object == "" {
		return Scheme + l.Bucket
	}
	return Scheme + l.Bucket + "/" + l.Object
}

// Dir returns l with its object name terminated by "/" so that it can be used as a listing prefix.
// The bucket root stays empty.
func (l Locator) Dir() Locator {
	if l.Object != "" && !strings.HasSuffix(l.Object, "/") {
		l.Object += "/"
	}
	return l
}

// Join returns a locator in the same bucket whose object name is l.Object followed by rel.
func (l Locator) Join(rel string) Locator {
	l.Object += rel
	return l
}

// IsDir returns whether the object name denotes a directory marker or a listing prefix.
func (l Locator) IsDir() bool {
	return l.Object == "" || strings.HasSuffix(l.Object, "/")
}
