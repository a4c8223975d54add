// Package command runs external programs for the extraction and torrent adapters.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
)

// maxStderr bounds the stderr excerpt carried in errors.
const maxStderr = 512

// Ensure Runner implements the interface.
var _ driven.CommandRunner = (*Runner)(nil)

// Runner executes programs found on PATH.
type Runner struct{}

// NewRunner creates a runner.
func NewRunner() *Runner {
	return &Runner{}
}

// Run executes name with args and returns its standard output.
func (r *Runner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if err := r.LookPath(name); err != nil {
		return nil, err
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > maxStderr {
			msg = msg[:maxStderr]
		}
		if msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return stdout.Bytes(), nil
}

// LookPath reports domain.ErrToolNotFound when name is not installed.
func (r *Runner) LookPath(name string) error {
	if _, err := exec.LookPath(name); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return fmt.Errorf("%w: %s", domain.ErrToolNotFound, name)
		}
		return fmt.Errorf("%w: %s: %v", domain.ErrToolNotFound, name, err)
	}
	return nil
}
