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
	"io"

	"github.com/spf13/cobra"
)

// CommandComponent is a piece of command setup, such as the storage client configuration or a
// subcommand's own flags.
type CommandComponent interface {
	// InitContext adds what the command needs at run time, e.g. a gcs.Context. It runs only after
	// every PersistentPreRunE has accepted the flags, so no credentials are loaded for a bad
	// command line.
	InitContext(ctx context.Context) (context.Context, error)
	// AddFlags registers the component's flags on cmd.
	AddFlags(cmd *cobra.Command)
	// PersistentPreRunE validates the parsed flags and arguments.
	PersistentPreRunE(cmd *cobra.Command, args []string) error
}

// AppComponents holds what MakeApp needs from its caller. Tests substitute a fake client and
// buffers here.
type AppComponents struct {
	// Global provides flags, validation, and context for every command. Its InitContext must add a
	// gcs.Context.
	Global CommandComponent
	// Out receives command output instead of stdout when set.
	Out io.Writer
	// Err receives warnings, errors and progress messages instead of stderr when set.
	Err io.Writer
}

// MakeApp returns the gcsutil root command with every subcommand attached.
func MakeApp(ctx context.Context, app *AppComponents) *cobra.Command {
	root := makeRootCmd(ctx, app)
	for _, sub := range []func(context.Context, *AppComponents) *cobra.Command{
		makeLsCmd,
		makeStatCmd,
		makeCatCmd,
		makeGetCmd,
		makePutCmd,
		makeCpCmd,
		makeRmCmd,
		makeComposeCmd,
		makeGlobCmd,
		makeMbCmd,
		makeRbCmd,
		makeUploadURLCmd,
	} {
		root.AddCommand(sub(root.Context(), app))
	}
	return root
}

// ComposeInitContext runs InitContext of each non-nil component in order, threading the context
// through, and stops at the first error.
func ComposeInitContext(ctx0 context.Context, cmps ...CommandComponent) (ctx context.Context, err error) {
	ctx = ctx0
	for _, c := range cmps {
		if c == nil {
			continue
		}
		ctx, err = c.InitContext(ctx)
		if err != nil {
			return nil, err
		}
	}
	return ctx, nil
}

// ComposedComponent runs several components as one, e.g. the global storage configuration
// followed by a subcommand's flags.
type ComposedComponent struct {
	Components []CommandComponent
}

// InitContext initializes each component in order.
func (c *ComposedComponent) InitContext(ctx context.Context) (context.Context, error) {
	return ComposeInitContext(ctx, c.Components...)
}

// AddFlags registers the flags of every component.
func (c *ComposedComponent) AddFlags(cmd *cobra.Command) {
	for _, cmp := range c.Components {
		if cmp == nil {
			continue
		}
		cmp.AddFlags(cmd)
	}
}

// PersistentPreRunE returns the first validation error of any component.
func (c *ComposedComponent) PersistentPreRunE(cmd *cobra.Command, args []string) error {
	for _, cmp := range c.Components {
		if cmp == nil {
			continue
		}
		if err := cmp.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
	}
	return nil
}

// Compose returns cmps as a single component. Nil components are skipped.
func Compose(cmps ...CommandComponent) *ComposedComponent { return &ComposedComponent{cmps} }

// PartialComponent builds a CommandComponent from functions. A nil function leaves the context
// unchanged, adds no flags, or accepts every command line.
type PartialComponent struct {
	FInitContext       func(ctx context.Context) (context.Context, error)
	FAddFlags          func(cmd *cobra.Command)
	FPersistentPreRunE func(cmd *cobra.Command, args []string) error
}

// InitContext calls FInitContext if set.
func (p *PartialComponent) InitContext(ctx context.Context) (context.Context, error) {
	if p.FInitContext == nil {
		return ctx, nil
	}
	return p.FInitContext(ctx)
}

// AddFlags calls FAddFlags if set.
func (p *PartialComponent) AddFlags(cmd *cobra.Command) {
	if p.FAddFlags != nil {
		p.FAddFlags(cmd)
	}
}

// PersistentPreRunE calls FPersistentPreRunE if set.
func (p *PartialComponent) PersistentPreRunE(cmd *cobra.Command, args []string) error {
	if p.FPersistentPreRunE == nil {
		return nil
	}
	return p.FPersistentPreRunE(cmd, args)
}

// ComposeRunArgs returns a RunE that initializes cmp, when non-nil, on the command's context and
// then calls run with the positional arguments.
func ComposeRunArgs(cmp CommandComponent, run func(context.Context, []string) error) RunFn {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if cmp != nil {
			var err error
			ctx, err = cmp.InitContext(cmd.Context())
			if err != nil {
				return err
			}
		}
		return run(ctx, args)
	}
}
