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

	"github.com/google/gcsutil/cmd/output"
	"github.com/google/gcsutil/gcs"
	"github.com/spf13/cobra"
)

func bucketArg(arg string) (string, error) {
	loc, err := parseURL(arg)
	if err != nil {
		return "", err
	}
	if loc.Object != "" {
		return "", fmt.Errorf("%q names an object, not a bucket", arg)
	}
	return loc.Bucket, nil
}

func makeMbCmd(ctx context.Context, app *AppComponents) *cobra.Command {
	opts := &gcs.BucketOptions{}
	cmd := &cobra.Command{
		Use:   "mb [flags] gs://bucket",
		Short: "Creates a bucket in --project",
		Args:  cobra.ExactArgs(1),
		RunE: ComposeRunArgs(app.Global, func(ctx context.Context, args []string) error {
			gc, err := gcs.FromContext(ctx)
			if err != nil {
				return err
			}
			project, err := gc.RequireProject()
			if err != nil {
				return err
			}
			name, err := bucketArg(args[0])
			if err != nil {
				return err
			}
			b, err := gc.Client.InsertBucket(ctx, project, name, *opts)
			if err != nil {
				return fmt.Errorf("could not create bucket %s: %w", name, err)
			}
			output.Infof(ctx, "Created gs://%s (%s, %s)", b.Name, b.StorageClass, b.Location)
			return nil
		}),
	}
	cmd.SetContext(ctx)
	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.StorageClass, "storage_class", gcs.DefaultStorageClass,
		"The bucket's default storage class.")
	pf.StringVar(&opts.Location, "location", "", "The bucket's location. Defaults to the service's.")
	pf.StringVar(&opts.ACL, "acl", "", "A predefined ACL entity for the bucket.")
	pf.StringVar(&opts.DefaultObjectACL, "default_object_acl", "",
		"A predefined ACL entity for new objects in the bucket.")
	return cmd
}

func makeRbCmd(ctx context.Context, app *AppComponents) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rb [flags] gs://bucket...",
		Short: "Deletes empty buckets",
		Args:  cobra.MinimumNArgs(1),
		RunE: ComposeRunArgs(app.Global, func(ctx context.Context, args []string) error {
			gc, err := gcs.FromContext(ctx)
			if err != nil {
				return err
			}
			for _, arg := range args {
				name, err := bucketArg(arg)
				if err != nil {
					return err
				}
				if err := gc.Client.DeleteBucket(ctx, name); err != nil {
					return fmt.Errorf("could not delete bucket %s: %w", name, err)
				}
				output.Infof(ctx, "Removed gs://%s", name)
			}
			return nil
		}),
	}
	cmd.SetContext(ctx)
	return cmd
}
