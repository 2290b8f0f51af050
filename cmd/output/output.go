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

// Package output routes the messages of gcsutil commands. Results go to the output stream, while
// warnings, errors and debug progress go to the message stream so that object data written by cat
// stays clean. With --use_logs every message goes to github.com/google/logger instead.
package output

import (
	"errors"
	"fmt"
	"golang.org/x/net/context"
	"io"
	"os"

	"github.com/google/logger"
	"github.com/spf13/cobra"
)

// ErrNoContext is returned when FromContext cannot find an output.Options in the context.
var ErrNoContext = errors.New("no output context found")

const (
	warningPrefix = "WARNING: "
	errorPrefix   = "ERROR: "
	debugPrefix   = "DEBUG: "
)

// Options controls the meaning of output modalities.
type Options struct {
	Quiet     bool
	Verbose   bool
	UseLogs   bool
	Overwrite bool
	KeepGoing bool
	// Out receives results. Defaults to stdout.
	Out io.Writer
	// Err receives warnings, errors and debug messages. Defaults to stderr.
	Err io.Writer
}

// AddFlags adds flags specific to the Options object to the given command.
func (opts *Options) AddFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().BoolVarP(&opts.Quiet, "quiet", "q", false,
		"Print only errors")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false,
		"Print progress of each request to stderr")
	cmd.PersistentFlags().BoolVar(&opts.UseLogs, "use_logs", false,
		"Send messages to the log instead of stdout/stderr. Object data is still written to stdout.")
	cmd.PersistentFlags().BoolVar(&opts.Overwrite, "overwrite", false,
		"Allow write operations to replace existing local files and objects.")
	cmd.PersistentFlags().BoolVar(&opts.KeepGoing, "keep_going", false,
		"When a command operates on several arguments, report a failing argument and continue "+
			"with the rest. The command still fails at the end.")
}

// Validate returns an error if the Options values are incompatible.
func (opts *Options) Validate(cmd *cobra.Command) error {
	if opts.Quiet && opts.Verbose {
		return fmt.Errorf("cannot specify both --quiet and --verbose")
	}
	cmd.SilenceUsage = true
	return nil
}

type outputKeyType struct{}

var outputKey outputKeyType

// NewContext returns ctx extended with opts added.
func NewContext(ctx context.Context, opts *Options) context.Context {
	return context.WithValue(ctx, outputKey, opts)
}

// FromContext returns the Options value in ctx if it exists.
func FromContext(ctx context.Context) (*Options, error) {
	opts, ok := ctx.Value(outputKey).(*Options)
	if !ok {
		return nil, ErrNoContext
	}
	return opts, nil
}

// AllowOverwrite returns true if --overwrite is true.
func AllowOverwrite(ctx context.Context) bool {
	o, _ := FromContext(ctx)
	return o != nil && o.Overwrite
}

// AllowRecoverableError returns true if --keep_going is true.
func AllowRecoverableError(ctx context.Context) bool {
	o, _ := FromContext(ctx)
	return o != nil && o.KeepGoing
}

// Writer returns the destination of command results that are data rather than messages, such as
// object contents. It is unaffected by --quiet and --use_logs.
func Writer(ctx context.Context) io.Writer {
	opts, err := FromContext(ctx)
	if err == nil && opts.Out != nil {
		return opts.Out
	}
	return os.Stdout
}

type kind int

const (
	kindInfo kind = iota
	kindDebug
	kindWarning
	kindError
)

type ansiColor int

const (
	noColor ansiColor = 0
	red     ansiColor = 31
	yellow  ansiColor = 33
)

var kinds = [...]struct {
	prefix string
	color  ansiColor
	log    func(format string, args ...any)
}{
	kindInfo:    {log: logger.Infof},
	kindDebug:   {prefix: debugPrefix},
	kindWarning: {prefix: warningPrefix, color: yellow, log: logger.Warningf},
	kindError:   {prefix: errorPrefix, color: red, log: logger.Errorf},
}

type sink struct {
	w     io.Writer
	istty bool
}

var (
	stdout = &sink{w: os.Stdout, istty: isTty(os.Stdout)}
	stderr = &sink{w: os.Stderr, istty: isTty(os.Stderr)}
)

func isTty(f *os.File) bool {
	s, err := f.Stat()
	return err == nil && (s.Mode()&os.ModeCharDevice) == os.ModeCharDevice
}

func orDefault(w io.Writer, def *sink) *sink {
	if w != nil {
		return &sink{w: w}
	}
	return def
}

// sink returns where a message of kind k is written, or nil if it is dropped.
func (opts *Options) sink(k kind) *sink {
	switch {
	case k == kindDebug && !opts.Verbose:
		return nil
	case k != kindError && opts.Quiet:
		return nil
	case k == kindInfo:
		return orDefault(opts.Out, stdout)
	}
	return orDefault(opts.Err, stderr)
}

// https://en.wikipedia.org/wiki/ANSI_escape_code
func boldColor(colorCode ansiColor, txt string) string {
	return fmt.Sprintf("\033[1;%dm%s\033[0m", colorCode, txt)
}

// In OSS, there is no Boolean condition for whether a particular verbosity level is active, so this
// type uses delayed string rendering to determine if logging occurred.
type onRender struct{ wasRendered bool }

func (o *onRender) String() string {
	o.wasRendered = true
	return ""
}

func logf(k kind, format string, args ...any) int {
	if k == kindDebug {
		var w onRender
		logger.V(1).Infof(format+"%v", append(args, &w)...)
		if w.wasRendered {
			return 1
		}
		return 0
	}
	kinds[k].log(format, args...)
	return 1
}

// emit writes one line of kind k. Without an output context the message is dropped, which lets
// library code report progress regardless of whether a command is driving it.
func emit(ctx context.Context, k kind, format string, args ...any) (int, error) {
	opts, err := FromContext(ctx)
	if err != nil {
		return 0, nil
	}
	if opts.UseLogs {
		return logf(k, format, args...), nil
	}
	s := opts.sink(k)
	if s == nil {
		return 0, nil
	}
	prefix := kinds[k].prefix
	if s.istty && kinds[k].color != noColor {
		prefix = boldColor(kinds[k].color, prefix)
	}
	return fmt.Fprintf(s.w, prefix+format+"\n", args...)
}

// Infof writes a formatted string with a newline to the output stream.
func Infof(ctx context.Context, format string, args ...any) (int, error) {
	return emit(ctx, kindInfo, format, args...)
}

// Warningf writes a formatted string with a newline to the message stream, prefixed by a warning
// message.
func Warningf(ctx context.Context, format string, args ...any) (int, error) {
	return emit(ctx, kindWarning, format, args...)
}

// Errorf writes a formatted string with a newline to the message stream, prefixed by an error
// message. Errors are shown even with --quiet.
func Errorf(ctx context.Context, format string, args ...any) (int, error) {
	return emit(ctx, kindError, format, args...)
}

// Debugf writes a formatted string with a newline to the message stream when --verbose is set.
func Debugf(ctx context.Context, format string, args ...any) (int, error) {
	return emit(ctx, kindDebug, format, args...)
}
