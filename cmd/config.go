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
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/gcsutil/auth"
	"github.com/google/gcsutil/cmd/output"
	"github.com/google/gcsutil/gcs"
	"github.com/google/gcsutil/storage/local"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

const (
	// DefaultConfigFile is read from the home directory when --config is not given.
	DefaultConfigFile = ".gcsutil.yaml"
	// EnvPrefix prefixes environment variables that set configuration keys, e.g. GCSUTIL_PROJECT.
	EnvPrefix = "GCSUTIL"
)

// Config is the Global component of gcsutil. Settings come from flags, GCSUTIL_* environment
// variables and a YAML config file, in that order of precedence. Its context holds a gcs.Context
// for the configured backend.
type Config struct {
	File           string
	Project        string
	Credentials    string
	ServiceAccount string
	PrivateKeyFile string
	Endpoint       string
	LocalRoot      string
	Scope          string

	v *viper.Viper
}

// configKeys maps configuration keys to the fields they set.
func (c *Config) configKeys() map[string]*string {
	return map[string]*string{
		"project":          &c.Project,
		"credentials":      &c.Credentials,
		"service_account":  &c.ServiceAccount,
		"private_key_file": &c.PrivateKeyFile,
		"endpoint":         &c.Endpoint,
		"local_root":       &c.LocalRoot,
		"scope":            &c.Scope,
	}
}

// AddFlags adds the configuration flags and binds them to their configuration keys.
func (c *Config) AddFlags(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&c.File, "config", "",
		"Path to a YAML config file. Defaults to ~/"+DefaultConfigFile+" if it exists.")
	pf.StringVar(&c.Project, "project", "",
		"The project that owns new buckets and whose buckets ls lists.")
	pf.StringVar(&c.Credentials, "credentials", "",
		"Path to a JSON credentials file. Defaults to the application default credentials.")
	pf.StringVar(&c.ServiceAccount, "service_account", "",
		"Service account email to authenticate as with --private_key_file.")
	pf.StringVar(&c.PrivateKeyFile, "private_key_file", "",
		"Path to the PEM private key of --service_account.")
	pf.StringVar(&c.Endpoint, "endpoint", "",
		"Storage service root URL, e.g. for an emulator. Defaults to production.")
	pf.StringVar(&c.LocalRoot, "local_root", "",
		"Serve buckets from subdirectories of this directory instead of the storage service.")
	pf.StringVar(&c.Scope, "scope", auth.DefaultScope,
		"The OAuth2 scope to request, either a full URL or a suffix of the storage scope URLs.")
	c.v = viper.New()
	for key := range c.configKeys() {
		if err := c.v.BindPFlag(key, pf.Lookup(key)); err != nil {
			panic(fmt.Errorf("internal: could not bind flag %q: %w", key, err))
		}
	}
}

func (c *Config) readConfigFile() error {
	path := c.File
	optional := path == ""
	if optional {
		home, err := homedir.Dir()
		if err != nil {
			return nil
		}
		path = filepath.Join(home, DefaultConfigFile)
	} else {
		var err error
		if path, err = homedir.Expand(path); err != nil {
			return err
		}
	}
	c.v.SetConfigFile(path)
	err := c.v.ReadInConfig()
	if optional && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not read config file %q: %w", path, err)
	}
	return nil
}

// PersistentPreRunE resolves every setting and returns an error if they conflict.
func (c *Config) PersistentPreRunE(cmd *cobra.Command, _ []string) error {
	if c.v == nil {
		return errors.New("internal: Config flags were not added")
	}
	if err := c.readConfigFile(); err != nil {
		return err
	}
	c.v.SetEnvPrefix(EnvPrefix)
	c.v.AutomaticEnv()
	for key, field := range c.configKeys() {
		*field = c.v.GetString(key)
	}
	var err error
	if c.LocalRoot != "" {
		for name, value := range map[string]string{
			"endpoint":        c.Endpoint,
			"credentials":     c.Credentials,
			"service_account": c.ServiceAccount,
		} {
			if value != "" {
				err = multierr.Append(err, fmt.Errorf("--local_root and --%s are mutually exclusive", name))
			}
		}
	}
	if (c.ServiceAccount == "") != (c.PrivateKeyFile == "") {
		err = multierr.Append(err, errors.New("--service_account and --private_key_file must be given together"))
	}
	if c.ServiceAccount != "" && c.Credentials != "" {
		err = multierr.Append(err, errors.New("--service_account and --credentials are mutually exclusive"))
	}
	return err
}

func (c *Config) authorizer(ctx context.Context) (auth.Authorizer, error) {
	switch {
	case c.ServiceAccount != "":
		path, err := homedir.Expand(c.PrivateKeyFile)
		if err != nil {
			return nil, err
		}
		key, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("could not read private key: %w", err)
		}
		return auth.FromServiceAccountKey(ctx, c.ServiceAccount, key, c.Scope)
	case c.Credentials != "":
		path, err := homedir.Expand(c.Credentials)
		if err != nil {
			return nil, err
		}
		return auth.FromCredentialsFile(ctx, path, c.Scope)
	default:
		return auth.FromDefaultCredentials(ctx, c.Scope)
	}
}

// Client returns a client for the configured backend.
func (c *Config) Client(ctx context.Context) (*gcs.Client, error) {
	if c.LocalRoot != "" {
		root, err := homedir.Expand(c.LocalRoot)
		if err != nil {
			return nil, err
		}
		output.Debugf(ctx, "using buckets under %s", root)
		return &gcs.Client{API: &local.StorageClient{Root: root}}, nil
	}
	a, err := c.authorizer(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not authenticate: %w", err)
	}
	return gcs.Dial(ctx, auth.NewGuard(a), &gcs.Options{Endpoint: c.Endpoint})
}

// InitContext extends ctx with a gcs.Context for the configured backend.
func (c *Config) InitContext(ctx context.Context) (context.Context, error) {
	client, err := c.Client(ctx)
	if err != nil {
		return nil, err
	}
	return gcs.NewContext(ctx, &gcs.Context{Client: client, Project: c.Project}), nil
}
