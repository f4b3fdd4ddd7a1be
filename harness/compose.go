package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// Services names the compose services used by each step.
type Services struct {
	GenData  string
	Protocol []string
	Verify   string
}

// DefaultServices returns the service names of the reference
// docker-compose.yml.
func DefaultServices() Services {
	return Services{
		GenData:  "gen_data",
		Protocol: []string{"p2", "p1", "p0"},
		Verify:   "verify",
	}
}

// ComposeConfig describes how to invoke docker-compose.
type ComposeConfig struct {
	// Binary is the compose command, e.g. "docker-compose" or
	// "docker compose".
	Binary      string
	File        string
	ProjectName string
	ProjectDir  string
	Services    Services
	// ExtraEnv is added to every command on top of the inherited
	// environment and before the run configuration.
	ExtraEnv map[string]string
}

// Compose implements Environment with docker-compose commands.
type Compose struct {
	cfg    ComposeConfig
	argv   []string
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

// NewCompose creates a Compose environment. Empty fields of cfg fall back
// to docker-compose and DefaultServices.
func NewCompose(cfg ComposeConfig, logger *slog.Logger) (*Compose, error) {
	if strings.TrimSpace(cfg.Binary) == "" {
		cfg.Binary = "docker-compose"
	}

	def := DefaultServices()
	if cfg.Services.GenData == "" {
		cfg.Services.GenData = def.GenData
	}
	if len(cfg.Services.Protocol) == 0 {
		cfg.Services.Protocol = def.Protocol
	}
	if cfg.Services.Verify == "" {
		cfg.Services.Verify = def.Verify
	}

	argv := strings.Fields(cfg.Binary)
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty compose binary")
	}

	if cfg.File != "" {
		argv = append(argv, "-f", cfg.File)
	}
	if cfg.ProjectName != "" {
		argv = append(argv, "-p", cfg.ProjectName)
	}

	return &Compose{
		cfg:    cfg,
		argv:   argv,
		Stdout: os.Stderr,
		Stderr: os.Stderr,
		Logger: logger,
	}, nil
}

// Teardown runs "down -v". Callers treat its error as a warning.
func (c *Compose) Teardown(ctx context.Context, cfg RunConfig) error {
	if err := c.run(ctx, cfg, "down", "-v"); err != nil {
		return fmt.Errorf("teardown: %w", err)
	}

	return nil
}

// Build runs "build".
func (c *Compose) Build(ctx context.Context, cfg RunConfig) error {
	if err := c.run(ctx, cfg, "build"); err != nil {
		return fmt.Errorf("%w: %w", ErrStepFailed, err)
	}

	return nil
}

// RunStep runs the compose command for step and waits for it to exit.
// The protocol step blocks until all three roles have exited.
func (c *Compose) RunStep(ctx context.Context, step Step, cfg RunConfig) error {
	args, err := c.StepArgs(step)
	if err != nil {
		return err
	}

	if err := c.run(ctx, cfg, args...); err != nil {
		return fmt.Errorf("%w: %w", ErrStepFailed, err)
	}

	return nil
}

// StepArgs returns the compose subcommand for step.
func (c *Compose) StepArgs(step Step) ([]string, error) {
	switch step {
	case StepGenData:
		return []string{"run", "--rm", c.cfg.Services.GenData}, nil
	case StepProtocol:
		args := []string{"up", "--abort-on-container-exit"}
		return append(args, c.cfg.Services.Protocol...), nil
	case StepVerify:
		return []string{"run", "--rm", c.cfg.Services.Verify}, nil
	default:
		return nil, fmt.Errorf("unknown step %q", step)
	}
}

// Environ returns the environment passed to every command for cfg.
func (c *Compose) Environ(cfg RunConfig) []string {
	env := os.Environ()
	for k, v := range c.cfg.ExtraEnv {
		env = append(env, k+"="+v)
	}

	return append(env, cfg.Env()...)
}

func (c *Compose) run(ctx context.Context, cfg RunConfig, args ...string) error {
	argv := append(append([]string{}, c.argv[1:]...), args...)

	cmd := exec.CommandContext(ctx, c.argv[0], argv...)
	cmd.Dir = c.cfg.ProjectDir
	cmd.Env = c.Environ(cfg)
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr

	c.Logger.DebugContext(ctx, "exec",
		slog.String("cmd", c.argv[0]),
		slog.Any("args", argv),
	)

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %s: %w",
			c.argv[0], strings.Join(argv, " "), err)
	}

	return nil
}
