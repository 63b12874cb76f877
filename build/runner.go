// Package build runs the configured build, lint and test commands inside a checkout.
package build

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/smartcontractkit/beamline/pkg/logger"
)

// Step is one command of the build.
type Step struct {
	Name    string   `mapstructure:"name" yaml:"name"`
	Command string   `mapstructure:"command" yaml:"command"`
	Args    []string `mapstructure:"args" yaml:"args"`
}

// String returns the command line of the step.
func (s Step) String() string {
	return strings.TrimSpace(s.Command + " " + strings.Join(s.Args, " "))
}

// DefaultSteps installs dependencies, lints, runs the tests with coverage and enforces the
// coverage threshold.
var DefaultSteps = []Step{
	{Name: "install", Command: "npm", Args: []string{"install"}},
	{Name: "quality", Command: "npm", Args: []string{"run", "quality"}},
	{Name: "cover", Command: "npm", Args: []string{"run", "cover"}},
	{Name: "check_coverage", Command: "npm", Args: []string{"run", "check_coverage"}},
}

// StepError reports a failed step together with the tail of its output.
type StepError struct {
	Step   Step
	Output string
	Err    error
}

// Error implements the error interface.
func (e *StepError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("build step %s (%s) failed: %v", e.Step.Name, e.Step, e.Err)
	}

	return fmt.Sprintf("build step %s (%s) failed: %v\n%s", e.Step.Name, e.Step, e.Err, e.Output)
}

// Unwrap returns the process error.
func (e *StepError) Unwrap() error {
	return e.Err
}

// maxOutput bounds the output kept on a StepError.
const maxOutput = 4096

// Runner executes steps sequentially.
type Runner struct {
	// Env is appended to the environment of every step.
	Env []string
	// Timeout bounds each step. Zero means no limit.
	Timeout time.Duration

	lggr logger.Logger
}

// NewRunner creates a Runner.
func NewRunner(lggr logger.Logger) *Runner {
	return &Runner{lggr: lggr}
}

// Run executes steps in dir and stops at the first failure.
func (r *Runner) Run(ctx context.Context, dir string, steps []Step) error {
	if len(steps) == 0 {
		return errors.New("no build steps configured")
	}

	for _, step := range steps {
		if err := r.run(ctx, dir, step); err != nil {
			return err
		}
	}

	return nil
}

func (r *Runner) run(ctx context.Context, dir string, step Step) error {
	if step.Command == "" {
		return &StepError{Step: step, Err: errors.New("command is empty")}
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, step.Command, step.Args...)
	cmd.Dir = dir
	cmd.Env = append(cmd.Environ(), r.Env...)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	start := time.Now()
	r.lggr.Infow("Running build step", "step", step.Name, "command", step.String())
	if err := cmd.Run(); err != nil {
		return &StepError{Step: step, Output: tail(out.String(), maxOutput), Err: err}
	}
	r.lggr.Debugw("Build step finished", "step", step.Name, "duration", time.Since(start))

	return nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}

	return "..." + s[len(s)-n:]
}
