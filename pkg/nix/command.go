// Package nix talks to the user's Nix installation through the `nix` binary.
//
// All queries go through a Runner so that callers (and tests) can replace the
// real binary. The default Cmd runs `nix` from PATH.
package nix

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrNixNotFound is returned when the nix binary cannot be located.
var ErrNixNotFound = errors.New("nix: binary not found in PATH")

// Runner executes nix with the given arguments and returns its stdout.
type Runner interface {
	Run(ctx context.Context, args ...string) ([]byte, error)
}

// CommandError describes a nix invocation that exited unsuccessfully.
type CommandError struct {
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("nix %s: exit status %d", strings.Join(e.Args, " "), e.ExitCode)
	}
	return fmt.Sprintf("nix %s: exit status %d: %s", strings.Join(e.Args, " "), e.ExitCode, msg)
}

// Cmd runs a nix binary.
type Cmd struct {
	// Binary is the executable to run. Defaults to "nix".
	Binary string
	// ExtraArgs are prepended to every invocation.
	ExtraArgs []string
}

// DefaultCmd returns a Cmd that runs `nix` from PATH.
func DefaultCmd() *Cmd {
	return &Cmd{Binary: "nix"}
}

// Run executes the binary and returns stdout. A non-zero exit is reported as
// a *CommandError carrying stderr.
func (c *Cmd) Run(ctx context.Context, args ...string) ([]byte, error) {
	bin := c.Binary
	if bin == "" {
		bin = "nix"
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNixNotFound, err)
	}

	full := append(append([]string{}, c.ExtraArgs...), args...)
	cmd := exec.CommandContext(ctx, path, full...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &CommandError{
				Args:     full,
				ExitCode: exitErr.ExitCode(),
				Stderr:   stderr.String(),
			}
		}
		return nil, fmt.Errorf("nix %s: %w", strings.Join(full, " "), err)
	}

	return stdout.Bytes(), nil
}
