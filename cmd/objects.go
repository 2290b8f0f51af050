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
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/google/gcsutil/cmd/output"
	"github.com/google/gcsutil/gcs"
	"github.com/google/gcsutil/locator"
	"github.com/google/gcsutil/storage/rawhttp"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	storage "google.golang.org/api/storage/v1"
)

var (
	// ErrObjectNotFound is returned by commands that read an object that does not exist.
	ErrObjectNotFound = errors.New("no such object")
	// ErrExists is returned when a write would replace something without --overwrite.
	ErrExists = errors.New("already exists; use --overwrite to replace it")
)

type listing struct {
	long  bool
	human bool
}

func (l *listing) addFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().BoolVarP(&l.long, "long", "l", false,
		"Print size, update time and URL of each object.")
	cmd.PersistentFlags().BoolVar(&l.human, "human_readable", false,
		"Print sizes in KiB, MiB, ... with --long.")
}

func (l *listing) print(ctx context.Context, o *storage.Object) {
	url := locator.Locator{Bucket: o.Bucket, Object: o.Name}
	if !l.long {
		output.Infof(ctx, "%s", url)
		return
	}
	size := fmt.Sprint(o.Size)
	if l.human {
		size = humanize.IBytes(o.Size)
	}
	output.Infof(ctx, "%10s  %s  %s", size, o.Updated, url)
}

type lsCommand struct {
	listing
	recursive bool
}

func (c *lsCommand) run(ctx context.Context, args []string) error {
	gc, err := gcs.FromContext(ctx)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		project, err := gc.RequireProject()
		if err != nil {
			return err
		}
		buckets, err := gc.Client.Buckets(ctx, project)
		if err != nil {
			return err
		}
		for _, b := range buckets {
			output.Infof(ctx, "%s", locator.Locator{Bucket: b.Name})
		}
		return nil
	}
	loc, err := parseURL(args[0])
	if err != nil {
		return err
	}
	opts := gcs.ListOptions{FlatListing: c.recursive}
	for {
		page, err := gc.Client.ListObjects(ctx, loc.String(), opts)
		if err != nil {
			return err
		}
		for _, p := range page.Prefixes {
			output.Infof(ctx, "%s", locator.Locator{Bucket: loc.Bucket, Object: p})
		}
		for _, o := range page.Items {
			if o.Bucket == "" {
				o.Bucket = loc.Bucket
			}
			c.print(ctx, o)
		}
		if page.NextPageToken == "" {
			return nil
		}
		opts.PageToken = page.NextPageToken
	}
}

func makeLsCmd(ctx context.Context, app *AppComponents) *cobra.Command {
	ls := &lsCommand{}
	cmd := &cobra.Command{
		Use:   "ls [flags] [gs://bucket[/prefix]]",
		Short: "Lists buckets, or objects and directories under a prefix",
		Long: `Lists the buckets of --project when no URL is given. Otherwise lists the objects and
directories directly under the URL's prefix, or every object below it with --recursive.`,
		Args: cobra.MaximumNArgs(1),
		RunE: ComposeRunArgs(app.Global, ls.run),
	}
	cmd.SetContext(ctx)
	ls.addFlags(cmd)
	addRecursiveFlag(cmd, &ls.recursive, "List every object under the prefix instead of one level.")
	return cmd
}

func statObject(ctx context.Context, arg string) (*storage.Object, error) {
	gc, err := gcs.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	loc, err := parseURL(arg)
	if err != nil {
		return nil, err
	}
	obj, err := gc.Client.GetObject(ctx, loc, nil)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, loc)
	}
	return obj, nil
}

func makeStatCmd(ctx context.Context, app *AppComponents) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stat [flags] gs://bucket/object...",
		Short: "Prints object metadata",
		Args:  cobra.MinimumNArgs(1),
		RunE: ComposeRunArgs(app.Global, func(ctx context.Context, args []string) error {
			for _, arg := range args {
				obj, err := statObject(ctx, arg)
				if err != nil {
					return err
				}
				output.Infof(ctx, "%s:", arg)
				output.Infof(ctx, "    Size:             %d", obj.Size)
				output.Infof(ctx, "    Content-Type:     %s", obj.ContentType)
				if obj.ContentEncoding != "" {
					output.Infof(ctx, "    Content-Encoding: %s", obj.ContentEncoding)
				}
				output.Infof(ctx, "    Generation:       %d", obj.Generation)
				output.Infof(ctx, "    Updated:          %s", obj.Updated)
				if obj.Md5Hash != "" {
					output.Infof(ctx, "    MD5:              %s", obj.Md5Hash)
				}
				if obj.Crc32c != "" {
					output.Infof(ctx, "    CRC32C:           %s", obj.Crc32c)
				}
			}
			return nil
		}),
	}
	cmd.SetContext(ctx)
	return cmd
}

type catCommand struct {
	limit         int
	trimDelimiter string
}

func (c *catCommand) AddFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().AddGoFlag(sizeVar(&c.limit, "limit", 0,
		"Read only about this many bytes from the start of the object, e.g. 64KiB. The read may "+
			"overshoot by up to one chunk."))
	cmd.PersistentFlags().StringVar(&c.trimDelimiter, "trim_delimiter", "",
		`Cut a limited read after the last occurrence of this delimiter, e.g. "\n".`)
}

func (c *catCommand) PersistentPreRunE(*cobra.Command, []string) error {
	var err error
	c.trimDelimiter, err = escapeDelimiter(c.trimDelimiter)
	if err != nil {
		return fmt.Errorf("bad --trim_delimiter: %w", err)
	}
	return nil
}

func (c *catCommand) InitContext(ctx context.Context) (context.Context, error) { return ctx, nil }

func (c *catCommand) run(ctx context.Context, args []string) error {
	gc, err := gcs.FromContext(ctx)
	if err != nil {
		return err
	}
	w := output.Writer(ctx)
	for _, arg := range args {
		loc, err := parseURL(arg)
		if err != nil {
			return err
		}
		if err := c.cat(ctx, gc.Client, loc, w); err != nil {
			return err
		}
	}
	return nil
}

func (c *catCommand) cat(ctx context.Context, client *gcs.Client, loc locator.Locator, w io.Writer) error {
	partial := c.limit > 0 || c.trimDelimiter != ""
	if !partial && client.Raw == nil {
		obj, err := client.GetObject(ctx, loc, w)
		if err == nil && obj == nil {
			err = fmt.Errorf("%w: %s", ErrObjectNotFound, loc)
		}
		return err
	}
	opts := rawhttp.ReadOptions{Limit: c.limit, TrimDelimiter: []byte(c.trimDelimiter)}
	if !partial {
		opts.Sink = w
	}
	res, err := client.ReadPartial(ctx, loc, opts)
	if err != nil {
		return err
	}
	if res == nil {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, loc)
	}
	if partial {
		_, err = w.Write(res.Data)
	}
	return err
}

func makeCatCmd(ctx context.Context, app *AppComponents) *cobra.Command {
	cat := &catCommand{}
	cmd := &cobra.Command{
		Use:               "cat [flags] gs://bucket/object...",
		Short:             "Writes object contents to stdout",
		Args:              cobra.MinimumNArgs(1),
		PersistentPreRunE: cat.PersistentPreRunE,
		RunE:              ComposeRunArgs(Compose(app.Global, cat), cat.run),
	}
	cmd.SetContext(ctx)
	cat.AddFlags(cmd)
	return cmd
}

func localDestination(loc locator.Locator, args []string) string {
	dst := path.Base(loc.Object)
	if len(args) > 1 {
		dst = args[1]
		if fi, err := os.Stat(dst); err == nil && fi.IsDir() {
			dst = filepath.Join(dst, path.Base(loc.Object))
		}
	}
	return dst
}

func getObject(ctx context.Context, args []string) (err error) {
	gc, err := gcs.FromContext(ctx)
	if err != nil {
		return err
	}
	loc, err := parseURL(args[0])
	if err != nil {
		return err
	}
	if loc.IsDir() {
		return fmt.Errorf("%s does not name an object", loc)
	}
	dst := localDestination(loc, args)
	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if output.AllowOverwrite(ctx) {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(dst, flags, 0644)
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%s %w", dst, ErrExists)
	}
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, f.Close())
		if err != nil {
			os.Remove(dst)
		}
	}()
	obj, err := gc.Client.GetObject(ctx, loc, f)
	if err != nil {
		return err
	}
	if obj == nil {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, loc)
	}
	output.Infof(ctx, "Downloaded %s to %s (%s)", loc, dst, humanize.IBytes(obj.Size))
	return nil
}

func makeGetCmd(ctx context.Context, app *AppComponents) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get [flags] gs://bucket/object [local_path]",
		Short: "Downloads an object to a local file",
		Long: `Downloads an object to local_path, or to a file named after the object's base name in
the current directory. Existing files are kept unless --overwrite is given.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: ComposeRunArgs(app.Global, getObject),
	}
	cmd.SetContext(ctx)
	return cmd
}

type putCommand struct {
	contentType       string
	contentEncoding   string
	ifGenerationMatch *int64
}

func (c *putCommand) run(ctx context.Context, args []string) error {
	gc, err := gcs.FromContext(ctx)
	if err != nil {
		return err
	}
	src := args[0]
	dst, err := parseURL(args[1])
	if err != nil {
		return err
	}
	if dst.IsDir() {
		dst = dst.Join(filepath.Base(src))
	}
	opts := gcs.InsertOptions{
		ContentType:       c.contentType,
		ContentEncoding:   c.contentEncoding,
		IfGenerationMatch: writePrecondition(ctx, c.ifGenerationMatch),
	}
	if opts.ContentType == "" {
		opts.ContentType = mime.TypeByExtension(filepath.Ext(src))
	}
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()
	obj, err := gc.Client.InsertObject(ctx, dst, f, opts)
	if err != nil {
		return fmt.Errorf("could not upload %s to %s: %w", src, dst, err)
	}
	output.Infof(ctx, "Uploaded %s to %s (generation %d)", src, dst, obj.Generation)
	return nil
}

// writePrecondition returns the generation precondition of a write: the explicit one if given,
// otherwise "must not exist" unless --overwrite is set.
func writePrecondition(ctx context.Context, explicit *int64) *int64 {
	if explicit != nil || output.AllowOverwrite(ctx) {
		return explicit
	}
	var none int64
	return &none
}

func makePutCmd(ctx context.Context, app *AppComponents) *cobra.Command {
	put := &putCommand{}
	cmd := &cobra.Command{
		Use:   "put [flags] local_path gs://bucket/object",
		Short: "Uploads a local file as an object",
		Long: `Uploads local_path in a single request. A destination ending in "/" receives the file's
base name. Existing objects are kept unless --overwrite or --if_generation_match is given.`,
		Args: cobra.ExactArgs(2),
		RunE: ComposeRunArgs(app.Global, put.run),
	}
	cmd.SetContext(ctx)
	addContentTypeFlag(cmd, &put.contentType)
	addContentEncodingFlag(cmd, &put.contentEncoding)
	addIfGenerationMatchFlag(cmd, &put.ifGenerationMatch)
	return cmd
}

type rmCommand struct {
	recursive         bool
	ifGenerationMatch *int64
}

func (c *rmCommand) PersistentPreRunE(_ *cobra.Command, args []string) error {
	if c.recursive && c.ifGenerationMatch != nil {
		return errors.New("--if_generation_match cannot be used with --recursive")
	}
	if c.ifGenerationMatch != nil && len(args) > 1 {
		return errors.New("--if_generation_match requires a single object")
	}
	return nil
}

func (c *rmCommand) remove(ctx context.Context, client *gcs.Client, loc locator.Locator) error {
	if c.recursive {
		return client.RemoveTree(ctx, loc)
	}
	return client.DeleteObject(ctx, loc, gcs.DeleteOptions{IfGenerationMatch: c.ifGenerationMatch})
}

func (c *rmCommand) run(ctx context.Context, args []string) error {
	gc, err := gcs.FromContext(ctx)
	if err != nil {
		return err
	}
	locs, err := parseURLs(args)
	if err != nil {
		return err
	}
	var errs error
	for _, loc := range locs {
		if err := c.remove(ctx, gc.Client, loc); err != nil {
			err = fmt.Errorf("could not remove %s: %w", loc, err)
			if !output.AllowRecoverableError(ctx) {
				return err
			}
			output.Errorf(ctx, "%v", err)
			errs = multierr.Append(errs, err)
			continue
		}
		output.Debugf(ctx, "removed %s", loc)
	}
	return errs
}

func makeRmCmd(ctx context.Context, app *AppComponents) *cobra.Command {
	rm := &rmCommand{}
	cmd := &cobra.Command{
		Use:   "rm [flags] gs://bucket/object...",
		Short: "Deletes objects, or whole directories with --recursive",
		Long: `Deletes the named objects. Objects that are already gone are ignored. With --recursive
every object under each URL's directory, or in the whole bucket, is deleted in batches.`,
		Args:              cobra.MinimumNArgs(1),
		PersistentPreRunE: rm.PersistentPreRunE,
		RunE:              ComposeRunArgs(app.Global, rm.run),
	}
	cmd.SetContext(ctx)
	addRecursiveFlag(cmd, &rm.recursive, "Delete every object under each URL.")
	addIfGenerationMatchFlag(cmd, &rm.ifGenerationMatch)
	return cmd
}
