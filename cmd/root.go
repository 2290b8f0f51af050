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
	"golang.org/x/net/context"

	"github.com/google/gcsutil/cmd/output"
	"github.com/spf13/cobra"
)

// makeRootCmd creates an entrypoint for gcsutil.
func makeRootCmd(ctx0 context.Context, app *AppComponents) *cobra.Command {
	flags := &output.Options{Out: app.Out, Err: app.Err}
	ctx := output.NewContext(ctx0, flags)
	// Subcommands validate their own flags after the root validates the global ones.
	cobra.EnableTraverseRunHooks = true
	cmd := &cobra.Command{
		Use: "gcsutil",
		Long: `Command line tool for Google Cloud Storage

Objects are addressed as gs://bucket/object. Credentials come from --credentials or the
application default credentials; --local_root serves buckets from a local directory instead.
`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.Validate(cmd); err != nil {
				return err
			}
			if app.Global != nil {
				if err := app.Global.PersistentPreRunE(cmd, args); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.SetContext(ctx)
	if app.Global != nil {
		app.Global.AddFlags(cmd)
	}
	flags.AddFlags(cmd)
	return cmd
}

// RunFn is the signature of a cobra RunE function.
type RunFn func(*cobra.Command, []string) error
