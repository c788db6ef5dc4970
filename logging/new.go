package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// EnvVar is the environment variable holding the verbosity spec.
const EnvVar = "NVSHIM_LOG"

// Format selects the output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat parses a format name. The empty string means text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	}
	return FormatText, fmt.Errorf("unknown log format: %q", s)
}

// Options configures the logger factory.
type Options struct {
	// Spec is an explicit verbosity spec. It takes precedence over
	// EnvSpec, which normally carries the NVSHIM_LOG value.
	Spec    string
	EnvSpec string
	Format  Format
	// Output defaults to os.Stderr. The shim runs inside a host
	// process whose stdout it must not touch.
	Output io.Writer
}

// New builds a component-filtered slog.Logger.
func New(opts Options) (*slog.Logger, error) {
	specStr := opts.Spec
	if specStr == "" {
		specStr = opts.EnvSpec
	}

	spec, err := ParseSpec(specStr)
	if err != nil {
		return nil, fmt.Errorf("invalid log spec: %w", err)
	}

	output := opts.Output
	if output == nil {
		output = os.Stderr
	}

	// The inner handler passes everything; filtering is ours.
	handlerOpts := &slog.HandlerOptions{Level: LevelTrace.ToSlog()}

	var inner slog.Handler
	switch opts.Format {
	case FormatJSON:
		inner = slog.NewJSONHandler(output, handlerOpts)
	default:
		inner = slog.NewTextHandler(output, handlerOpts)
	}

	return slog.New(NewHandler(inner, &spec)), nil
}

// FromEnv builds a logger from the NVSHIM_LOG environment variable.
func FromEnv() (*slog.Logger, error) {
	return New(Options{EnvSpec: os.Getenv(EnvVar)})
}

// Default returns an info-level text logger on stderr.
func Default() *slog.Logger {
	logger, _ := New(Options{})
	return logger
}
