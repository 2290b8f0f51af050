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

	"github.com/google/gcsutil/cmd/output"
	"github.com/google/gcsutil/gcs"
	"github.com/spf13/cobra"
)

func makeUploadURLCmd(ctx context.Context, app *AppComponents) *cobra.Command {
	var contentType, origin string
	cmd := &cobra.Command{
		Use:   "upload-url [flags] gs://bucket/object",
		Short: "Starts a resumable upload session and prints its URL",
		Long: `Starts a resumable upload session for the object and prints the session URL. Any client
holding the URL can upload the contents without further credentials. --origin allows browser
uploads from that origin.`,
		Args: cobra.ExactArgs(1),
		RunE: ComposeRunArgs(app.Global, func(ctx context.Context, args []string) error {
			gc, err := gcs.FromContext(ctx)
			if err != nil {
				return err
			}
			loc, err := parseURL(args[0])
			if err != nil {
				return err
			}
			uri, err := gc.Client.InitiateResumableUpload(ctx, loc, contentType, origin)
			if err != nil {
				return err
			}
			output.Infof(ctx, "%s", uri)
			return nil
		}),
	}
	cmd.SetContext(ctx)
	addContentTypeFlag(cmd, &contentType)
	cmd.PersistentFlags().StringVar(&origin, "origin", "",
		"The Origin that browsers upload from, for cross-origin uploads.")
	return cmd
}
