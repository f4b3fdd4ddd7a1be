package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// Step names a blocking job in the external environment.
type Step string

const (
	StepGenData  Step = "gen_data"
	StepProtocol Step = "protocol"
	StepVerify   Step = "verify"
)

// ErrStepFailed wraps every failure of a non-teardown command.
var ErrStepFailed = errors.New("step failed")

// Environment is the orchestration capability the pipeline drives.
// Implementations must block until the requested step has exited.
type Environment interface {
	Teardown(ctx context.Context, cfg RunConfig) error
	Build(ctx context.Context, cfg RunConfig) error
	RunStep(ctx context.Context, step Step, cfg RunConfig) error
}

// Pipeline runs the teardown, build, generate, protocol, verify cycle
// against an Environment.
type Pipeline struct {
	Env      Environment
	DataDir  string
	Prebuilt bool
	Timeout  time.Duration
	Logger   *slog.Logger

	now func() time.Time
}

// NewPipeline creates a Pipeline. dataDir is wiped before every run.
func NewPipeline(
	env Environment,
	dataDir string,
	prebuilt bool,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		Env:      env,
		DataDir:  dataDir,
		Prebuilt: prebuilt,
		Logger:   logger,
		now:      time.Now,
	}
}

// Run executes one pipeline run and returns the elapsed wall time of the
// generate, protocol and verify steps.
func (p *Pipeline) Run(ctx context.Context, cfg RunConfig) (*Result, error) {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	now := p.now
	if now == nil {
		now = time.Now
	}

	logger := p.Logger.With(
		slog.Int("users", cfg.Users),
		slog.Int("items", cfg.Items),
		slog.Int("features", cfg.Features),
		slog.Int("queries", cfg.Queries),
	)

	p.teardown(ctx, logger, cfg)

	if !p.Prebuilt {
		logger.InfoContext(ctx, "building images")

		if err := p.Env.Build(ctx, cfg); err != nil {
			return nil, fmt.Errorf("build: %w", err)
		}
	}

	if err := resetDir(p.DataDir); err != nil {
		return nil, err
	}

	result := &Result{Config: cfg}

	start := now()
	mark := start

	for _, step := range []Step{StepGenData, StepProtocol, StepVerify} {
		logger.InfoContext(ctx, "running step", slog.String("step", string(step)))

		if err := p.Env.RunStep(ctx, step, cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", step, err)
		}

		t := now()
		result.Stages = append(result.Stages, StageTiming{
			Step:     step,
			Duration: t.Sub(mark),
		})
		mark = t
	}

	result.TotalTime = mark.Sub(start)

	logger.InfoContext(ctx, "pipeline finished",
		slog.Duration("wall_time", result.TotalTime),
	)

	p.teardown(ctx, logger, cfg)

	return result, nil
}

func (p *Pipeline) teardown(ctx context.Context, logger *slog.Logger, cfg RunConfig) {
	if err := p.Env.Teardown(ctx, cfg); err != nil {
		logger.WarnContext(ctx, "teardown failed; continuing",
			slog.String("error", err.Error()),
		)
	}
}

func resetDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("clean output: data directory not set")
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clean output %s: %w", dir, err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output %s: %w", dir, err)
	}

	return nil
}
