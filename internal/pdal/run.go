package pdal

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/appliedgeo/l2d/internal/env"
)

// Runner invokes the pdal executable.
type Runner struct {
	exe     string
	dump    string
	verbose bool
	env     map[string]string
	stdout  io.Writer
	stderr  io.Writer
}

// Option configures a Runner.
type Option func(*Runner)

// WithExecutable sets a custom pdal executable path.
func WithExecutable(path string) Option {
	return func(r *Runner) { r.exe = path }
}

// WithVerbose streams subprocess output and pipeline documents to the
// runner's stdout instead of discarding them.
func WithVerbose(v bool) Option {
	return func(r *Runner) { r.verbose = v }
}

// WithEnv sets key=value for every spawned pdal command.
func WithEnv(key, value string) Option {
	return func(r *Runner) { r.env[key] = value }
}

// WithPipelineDump additionally persists each executed pipeline document to
// path.
func WithPipelineDump(path string) Option {
	return func(r *Runner) { r.dump = path }
}

// WithOutput redirects the runner's stdout and stderr.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(r *Runner) {
		r.stdout = stdout
		r.stderr = stderr
	}
}

// NewRunner returns a Runner using "pdal" from PATH unless overridden.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		exe:    "pdal",
		env:    make(map[string]string),
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Pipeline writes the document to a temporary file and runs
// "pdal pipeline -i <file>". The temporary file is removed afterwards.
func (r *Runner) Pipeline(ctx context.Context, p *Pipeline) error {
	data, err := p.JSON()
	if err != nil {
		return fmt.Errorf("encode pipeline: %w", err)
	}
	if r.verbose {
		fmt.Fprintln(r.stdout, string(data))
	}
	if r.dump != "" {
		if err := p.WriteFile(r.dump); err != nil {
			return fmt.Errorf("dump pipeline: %w", err)
		}
	}

	dir, err := env.WorkDir()
	if err != nil {
		dir = "" // fall back to the system temp dir
	}
	f, err := os.CreateTemp(dir, "pipeline-*.json")
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return err
	}
	defer os.Remove(f.Name())

	log.Debug().Str("file", f.Name()).Msg("running pdal pipeline")
	return r.run(ctx, "pipeline", "-i", f.Name())
}

// GroundOptions mirror the pdal ground kernel flags.
type GroundOptions struct {
	Slope         float64
	CellSize      float64
	MaxWindowSize float64 // zero omits the flag
	MaxDistance   float64 // zero omits the flag
	Approximate   bool
}

// Ground classifies ground returns of input into output using
// "pdal ground".
func (r *Runner) Ground(ctx context.Context, input, output string, opts GroundOptions) error {
	args := []string{
		"ground",
		"-i", input,
		"-o", output,
		"--slope", formatFloat(opts.Slope),
		"--cell_size", formatFloat(opts.CellSize),
	}
	if opts.MaxWindowSize > 0 {
		args = append(args, "--max_window_size", formatFloat(opts.MaxWindowSize))
	}
	if opts.MaxDistance > 0 {
		args = append(args, "--max_distance", formatFloat(opts.MaxDistance))
	}
	if opts.Approximate {
		args = append(args, "--approximate")
	}
	if r.verbose {
		args = append(args, "--developer-debug")
	}
	log.Info().Str("cmd", r.exe+" "+strings.Join(args, " ")).Msg("classifying ground returns")
	return r.run(ctx, args...)
}

func (r *Runner) run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, r.exe, args...)
	if len(r.env) > 0 {
		cmd.Env = mergeEnv(os.Environ(), r.env)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if r.verbose {
		cmd.Stdout = r.stdout
		cmd.Stderr = io.MultiWriter(r.stderr, &stderr)
	}
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s %s: %w: %s", r.exe, args[0], err, msg)
		}
		return fmt.Errorf("%s %s: %w", r.exe, args[0], err)
	}
	return nil
}

// output runs pdal and captures stdout.
func (r *Runner) output(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, r.exe, args...)
	if len(r.env) > 0 {
		cmd.Env = mergeEnv(os.Environ(), r.env)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s %s: %w: %s", r.exe, args[0], err, msg)
		}
		return nil, fmt.Errorf("%s %s: %w", r.exe, args[0], err)
	}
	return stdout.Bytes(), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// mergeEnv returns base with every key in overrides replaced or appended.
func mergeEnv(base []string, overrides map[string]string) []string {
	idx := make(map[string]int, len(base))
	for i, kv := range base {
		if k, _, ok := strings.Cut(kv, "="); ok {
			idx[k] = i
		}
	}
	for k, v := range overrides {
		if i, ok := idx[k]; ok {
			base[i] = k + "=" + v
		} else {
			base = append(base, k+"="+v)
		}
	}
	return base
}
