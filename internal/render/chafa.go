package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	osexec "os/exec"
	"strings"

	"github.com/jmgilman/go/exec"
)

// DefaultChafaCommand is the converter binary looked up on PATH.
const DefaultChafaCommand = "chafa"

// DefaultChafaArgs are passed before --size and the file path.
var DefaultChafaArgs = []string{
	"--color-space", "rgb",
	"--dither", "none",
	"--relative", "off",
	"--optimize", "9",
	"--margin-right", "0",
	"--work", "9",
}

// Runner executes a command line and captures its output.
type Runner interface {
	Run(ctx context.Context, args ...string) (*exec.Result, error)
}

// ExecRunner runs commands through a base executor. Every call works on a
// clone, so one runner is safe to share between the UI and the preloader.
type ExecRunner struct {
	base exec.Executor
}

// NewExecRunner creates a runner that does not echo output to the terminal.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{base: exec.New(exec.WithInheritEnv())}
}

// Run executes args[0] with the remaining arguments.
func (r *ExecRunner) Run(ctx context.Context, args ...string) (*exec.Result, error) {
	return r.base.Clone().WithContext(ctx).Run(args...)
}

// ChafaOptions configures NewChafa. Zero values select the defaults.
type ChafaOptions struct {
	Command string
	Args    []string
	Runner  Runner
	Logger  *slog.Logger
}

// Chafa renders images by running the chafa converter.
type Chafa struct {
	viewport
	command string
	args    []string
	runner  Runner
	logger  *slog.Logger
}

// NewChafa creates a chafa backend.
func NewChafa(opts ChafaOptions) *Chafa {
	c := &Chafa{
		command: opts.Command,
		args:    opts.Args,
		runner:  opts.Runner,
		logger:  opts.Logger,
	}
	if c.command == "" {
		c.command = DefaultChafaCommand
	}
	if c.args == nil {
		c.args = DefaultChafaArgs
	}
	if c.runner == nil {
		c.runner = NewExecRunner()
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	return c
}

// Command returns the full argument list used to render path at scale.
func (c *Chafa) Command(path string, scale float64) []string {
	w, h := c.Viewport().Scaled(scale)
	args := make([]string, 0, len(c.args)+4)
	args = append(args, c.command)
	args = append(args, c.args...)
	args = append(args, "--size", fmt.Sprintf("%dx%d", w, h), path)
	return args
}

// Render implements Renderer.
func (c *Chafa) Render(ctx context.Context, path string, scale float64) (string, error) {
	if err := checkSource(path); err != nil {
		return "", err
	}

	args := c.Command(path, scale)
	res, err := c.runner.Run(ctx, args...)
	if err != nil {
		return "", &RenderError{Path: path, Err: classifyRunError(ctx, c.command, err)}
	}
	if res == nil || res.Stdout == "" {
		return "", &RenderError{Path: path, Err: errEmptyOutput}
	}
	c.logger.Debug("chafa rendered", "path", path, "bytes", len(res.Stdout))
	return res.Stdout, nil
}

func classifyRunError(ctx context.Context, command string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	if errors.Is(err, osexec.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrConverterMissing, command)
	}
	var ee *exec.ExecError
	if errors.As(err, &ee) {
		if msg := strings.TrimSpace(ee.Stderr); msg != "" {
			return fmt.Errorf("exit %d: %s", ee.ExitCode, msg)
		}
		return fmt.Errorf("exit %d", ee.ExitCode)
	}
	return err
}

// CheckConverter verifies once at startup that the converter can be run.
// A failure wraps ErrConverterMissing.
func CheckConverter(ctx context.Context, runner Runner, command string) error {
	if runner == nil {
		runner = NewExecRunner()
	}
	if command == "" {
		command = DefaultChafaCommand
	}
	if _, err := runner.Run(ctx, command, "--version"); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrConverterMissing, command, err)
	}
	return nil
}
