// Package nmcli drives the NetworkManager command-line utility and interprets
// its terse machine-readable output. It owns the subprocess boundary, the
// structured output parsers, and the classification table for nmcli's known
// failure phrases.
package nmcli

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"
)

// Output captures one finished nmcli invocation. A non-zero Code is not a Go
// error: callers triage the message text instead (see errors.go).
type Output struct {
	Stdout string
	Stderr string
	Code   int
}

// OK reports whether the command exited zero.
func (o Output) OK() bool { return o.Code == 0 }

// Message returns the text to classify a failure by: stderr when present,
// stdout otherwise. nmcli writes some errors to stdout.
func (o Output) Message() string {
	if s := strings.TrimSpace(o.Stderr); s != "" {
		return s
	}
	return strings.TrimSpace(o.Stdout)
}

// Runner executes nmcli with the given arguments. The error return is for
// spawn failures only; command failures come back as Output with a non-zero
// Code so callers can classify the message.
type Runner interface {
	Run(ctx context.Context, args ...string) (Output, error)
}

// ExecRunner invokes a real nmcli binary.
type ExecRunner struct {
	Bin string
}

// NewRunner returns an ExecRunner for the given binary, defaulting to "nmcli".
func NewRunner(bin string) *ExecRunner {
	if bin == "" {
		bin = "nmcli"
	}
	return &ExecRunner{Bin: bin}
}

func (r *ExecRunner) Run(ctx context.Context, args ...string) (Output, error) {
	cmd := exec.CommandContext(ctx, r.Bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := Output{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			out.Code = exitErr.ExitCode()
			log.Debug().Strs("args", args).Int("code", out.Code).Str("msg", out.Message()).Msg("nmcli failed")
			return out, nil
		}
		return out, err
	}
	return out, nil
}
