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

package cmd

import (
	"errors"
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/gcsutil/locator"
	"github.com/spf13/cobra"
)

var (
	// ErrNotURL is returned for arguments that must be gs:// URLs but are not.
	ErrNotURL = errors.New("expected a gs://bucket[/object] URL")
)

// MustBeNonempty returns an error if the named flag's value is empty.
func MustBeNonempty(name string, value *string) error {
	if value == nil || *value == "" {
		return fmt.Errorf("--%s must be nonempty", name)
	}
	return nil
}

// parseURL returns the locator of a gs:// URL argument that names at least a bucket.
func parseURL(arg string) (locator.Locator, error) {
	if !locator.IsURL(arg) {
		return locator.Locator{}, fmt.Errorf("%w, got %q", ErrNotURL, arg)
	}
	loc := locator.Parse(arg)
	if loc.Bucket == "" {
		return locator.Locator{}, fmt.Errorf("%w, got %q", ErrNotURL, arg)
	}
	return loc, nil
}

func parseURLs(args []string) ([]locator.Locator, error) {
	locs := make([]locator.Locator, 0, len(args))
	for _, arg := range args {
		loc, err := parseURL(arg)
		if err != nil {
			return nil, err
		}
		locs = append(locs, loc)
	}
	return locs, nil
}

func addContentTypeFlag(cmd *cobra.Command, f *string) {
	cmd.PersistentFlags().StringVar(f, "content_type", "",
		"The Content-Type of the written object.")
}

func addContentEncodingFlag(cmd *cobra.Command, f *string) {
	cmd.PersistentFlags().StringVar(f, "content_encoding", "",
		"The Content-Encoding of the written object, e.g. gzip.")
}

func addRecursiveFlag(cmd *cobra.Command, f *bool, usage string) {
	cmd.PersistentFlags().BoolVarP(f, "recursive", "r", false, usage)
}

// sizeFlag parses byte sizes such as "512", "64KiB" or "1MB".
type sizeFlag struct {
	v *int
}

func (s *sizeFlag) String() string {
	if s.v == nil || *s.v <= 0 {
		return "0"
	}
	return humanize.IBytes(uint64(*s.v))
}

func (s *sizeFlag) Set(value string) error {
	n, err := humanize.ParseBytes(value)
	if err != nil {
		return fmt.Errorf("%q is not a byte size: %w", value, err)
	}
	if n > uint64(maxInt) {
		return fmt.Errorf("byte size %q is too large", value)
	}
	*s.v = int(n)
	return nil
}

const maxInt = int(^uint(0) >> 1)

func sizeVar(v *int, name string, defaultValue int, usage string) *flag.Flag {
	*v = defaultValue
	f := &sizeFlag{v: v}
	return &flag.Flag{
		Name:     name,
		Value:    f,
		Usage:    usage,
		DefValue: f.String(),
	}
}

// generationFlag is an optional object generation. Unset leaves the destination nil.
type generationFlag struct {
	v **int64
}

func (g *generationFlag) String() string {
	if g.v == nil || *g.v == nil {
		return ""
	}
	return strconv.FormatInt(**g.v, 10)
}

func (g *generationFlag) Set(value string) error {
	if value == "" {
		*g.v = nil
		return nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil || n < 0 {
		return fmt.Errorf("%q is not an object generation", value)
	}
	*g.v = &n
	return nil
}

func addIfGenerationMatchFlag(cmd *cobra.Command, v **int64) {
	cmd.PersistentFlags().AddGoFlag(&flag.Flag{
		Name:  "if_generation_match",
		Value: &generationFlag{v: v},
		Usage: "Only act if the object's current generation matches. 0 means the object must not " +
			"exist.",
	})
}

// escapeDelimiter interprets backslash escapes such as \n in a delimiter flag.
func escapeDelimiter(s string) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}
	return strconv.Unquote(`"` + strings.ReplaceAll(s, `"`, `\"`) + `"`)
}
