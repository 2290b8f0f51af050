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
	"fmt"
	"path"

	"github.com/google/gcsutil/cmd/output"
	"github.com/google/gcsutil/gcs"
	"github.com/spf13/cobra"
	"google.golang.org/api/iterator"
)

type cpCommand struct {
	recursive         bool
	ifGenerationMatch *int64
}

func (c *cpCommand) run(ctx context.Context, args []string) error {
	gc, err := gcs.FromContext(ctx)
	if err != nil {
		return err
	}
	locs, err := parseURLs(args)
	if err != nil {
		return err
	}
	src, dst := locs[0], locs[1]
	if c.recursive {
		if err := gc.Client.CopyTree(ctx, src, dst); err != nil {
			return err
		}
		output.Infof(ctx, "Copied %s to %s", src.Dir(), dst.Dir())
		return nil
	}
	if dst.IsDir() {
		dst = dst.Dir().Join(path.Base(src.Object))
	}
	resp, err := gc.Client.Rewrite(ctx, src, dst, gcs.RewriteOptions{
		IfGenerationMatch: writePrecondition(ctx, c.ifGenerationMatch),
	})
	if err != nil {
		return fmt.Errorf("could not copy %s to %s: %w", src, dst, err)
	}
	output.Infof(ctx, "Copied %s to %s (%d bytes)", src, dst, resp.ObjectSize)
	return nil
}

func makeCpCmd(ctx context.Context, app *AppComponents) *cobra.Command {
	cp := &cpCommand{}
	cmd := &cobra.Command{
		Use:   "cp [flags] gs://bucket/src gs://bucket/dst",
		Short: "Copies objects within the storage service",
		Long: `Copies an object on the server side. A destination ending in "/" receives the source's
base name, and existing objects are kept unless --overwrite or --if_generation_match is given.
With --recursive every object under the source directory is copied to the same relative name
under the destination directory, replacing existing objects.`,
		Args: cobra.ExactArgs(2),
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if cp.recursive && cp.ifGenerationMatch != nil {
				return fmt.Errorf("--if_generation_match cannot be used with --recursive")
			}
			return nil
		},
		RunE: ComposeRunArgs(app.Global, cp.run),
	}
	cmd.SetContext(ctx)
	addRecursiveFlag(cmd, &cp.recursive, "Copy a directory tree.")
	addIfGenerationMatchFlag(cmd, &cp.ifGenerationMatch)
	return cmd
}

type composeCommand struct {
	destination string
	opts        gcs.ComposeOptions
}

func (c *composeCommand) AddFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&c.destination, "destination", "",
		"The gs:// URL of the composed object.")
	addContentTypeFlag(cmd, &c.opts.ContentType)
	addContentEncodingFlag(cmd, &c.opts.ContentEncoding)
}

func (c *composeCommand) PersistentPreRunE(*cobra.Command, []string) error {
	return MustBeNonempty("destination", &c.destination)
}

func (c *composeCommand) InitContext(ctx context.Context) (context.Context, error) { return ctx, nil }

func (c *composeCommand) run(ctx context.Context, patterns []string) error {
	gc, err := gcs.FromContext(ctx)
	if err != nil {
		return err
	}
	dst, err := parseURL(c.destination)
	if err != nil {
		return err
	}
	if _, err := parseURLs(patterns); err != nil {
		return err
	}
	obj, err := gc.Client.ComposeObject(ctx, patterns, dst, c.opts)
	if err != nil {
		return err
	}
	output.Infof(ctx, "Composed %s (%d bytes, %d components)", dst, obj.Size, obj.ComponentCount)
	return nil
}

func makeComposeCmd(ctx context.Context, app *AppComponents) *cobra.Command {
	compose := &composeCommand{}
	cmd := &cobra.Command{
		Use:   "compose [flags] --destination gs://bucket/object gs://bucket/pattern...",
		Short: "Concatenates objects into one",
		Long: fmt.Sprintf(`Concatenates the objects matched by each glob pattern, in argument order, into the
destination object. All objects must be in the destination's bucket, every pattern must match,
and at most %d distinct objects may be composed.`, gcs.MaxComponents),
		Args:              cobra.MinimumNArgs(1),
		PersistentPreRunE: compose.PersistentPreRunE,
		RunE:              ComposeRunArgs(Compose(app.Global, compose), compose.run),
	}
	cmd.SetContext(ctx)
	compose.AddFlags(cmd)
	return cmd
}

func makeGlobCmd(ctx context.Context, app *AppComponents) *cobra.Command {
	l := &listing{}
	cmd := &cobra.Command{
		Use:   "glob [flags] gs://bucket/pattern...",
		Short: "Lists the objects whose names match shell patterns",
		Long: `Lists the objects whose names match each pattern. "*" matches any characters including
"/", "?" one character, and "[...]" and "[!...]" are character classes. A backslash escapes the
next character. Braces and commas match themselves.`,
		Args: cobra.MinimumNArgs(1),
		RunE: ComposeRunArgs(app.Global, func(ctx context.Context, args []string) error {
			gc, err := gcs.FromContext(ctx)
			if err != nil {
				return err
			}
			locs, err := parseURLs(args)
			if err != nil {
				return err
			}
			for _, loc := range locs {
				it := gc.Client.Glob(ctx, loc)
				for {
					obj, err := it.Next()
					if err == iterator.Done {
						break
					}
					if err != nil {
						return err
					}
					l.print(ctx, obj)
				}
			}
			return nil
		}),
	}
	cmd.SetContext(ctx)
	l.addFlags(cmd)
	return cmd
}
