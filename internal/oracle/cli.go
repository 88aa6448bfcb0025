package oracle

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/felixgeelhaar/quirk/internal/store"
	"github.com/felixgeelhaar/quirk/internal/transcript"
)

// cliTimeout bounds one round trip through an agent binary.
const cliTimeout = 2 * time.Minute

// CLIOracle shells out to an installed agent binary (claude, gemini, ...)
// in print mode, passing the prompt as the final argument.
type CLIOracle struct {
	binary string
	args   []string
}

// NewCLIOracle creates the backend. binary defaults to "claude" with a
// single "-p" flag when no args are given.
func NewCLIOracle(binary string, args ...string) (*CLIOracle, error) {
	if binary == "" {
		binary = "claude"
	}
	if len(args) == 0 {
		args = []string{"-p"}
	}
	return &CLIOracle{binary: binary, args: args}, nil
}

// Name implements Oracle.
func (o *CLIOracle) Name() string {
	return "cli-" + o.binary
}

// IsAvailable implements Oracle: the binary must be on PATH.
func (o *CLIOracle) IsAvailable() bool {
	_, err := exec.LookPath(o.binary)
	return err == nil
}

// ExtractPatterns implements Oracle.
func (o *CLIOracle) ExtractPatterns(ctx context.Context, t *transcript.Transcript) ([]store.Draft, error) {
	return extractPatterns(ctx, o.complete, t)
}

// CheckSimilarity implements Oracle.
func (o *CLIOracle) CheckSimilarity(ctx context.Context, a, b string) (bool, error) {
	return checkSimilarity(ctx, o.complete, a, b)
}

func (o *CLIOracle) complete(ctx context.Context, prompt string) (string, error) {
	if !o.IsAvailable() {
		return "", fmt.Errorf("%w: %s not on PATH", ErrUnavailable, o.binary)
	}

	execCtx, cancel := context.WithTimeout(ctx, cliTimeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, o.binary, append(o.args, prompt)...)
	output, err := cmd.CombinedOutput()
	result := string(output)
	if err != nil {
		if execCtx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("cli oracle timed out: %w", err)
		}
		return "", fmt.Errorf("cli oracle failed: %w\nOutput: %s", err, result)
	}
	return result, nil
}
