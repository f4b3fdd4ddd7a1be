// Package main provides the CLI entry point for mpcbench, a benchmark
// driver for the three-party update protocol.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/weiihann/mpcbench/harness"
	"github.com/weiihann/mpcbench/plan"
	"github.com/weiihann/mpcbench/report"
	"github.com/weiihann/mpcbench/sweep"
)

func main() {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(logger, level)
	if err := root.ExecuteContext(ctx); err != nil {
		logger.Error("mpcbench failed", slog.String("error", err.Error()))
		stop()
		os.Exit(1)
	}
}

func newRootCmd(logger *slog.Logger, level *slog.LevelVar) *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "mpcbench",
		Short: "Benchmark driver for the three-party update protocol",
		Long: `mpcbench runs the data generation, three-party protocol and
verification jobs through docker-compose for each point of a parameter
sweep, measures wall-clock time and writes CSV and PNG artifacts.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if verbose {
				level.Set(slog.LevelDebug)
			}
		},
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable debug logging")

	root.AddCommand(newRunCmd(logger))
	root.AddCommand(newPlanCmd(logger))

	return root
}

// envFlags are the orchestration options shared by all commands.
type envFlags struct {
	composeBin  string
	composeFile string
	projectName string
	projectDir  string
	envFile     string
	dataDir     string
	timeout     time.Duration
	writeJSON   bool
}

func (f *envFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.composeBin, "compose-bin", "docker-compose",
		`Compose command, e.g. "docker-compose" or "docker compose"`)
	flags.StringVar(&f.composeFile, "compose-file", "",
		"Compose file (default: compose's own lookup)")
	flags.StringVar(&f.projectName, "project-name", "",
		"Compose project name")
	flags.StringVar(&f.projectDir, "project-dir", "",
		"Directory to run compose in (default: current directory)")
	flags.StringVar(&f.envFile, "env-file", "",
		"Dotenv file whose variables are passed to every compose command")
	flags.StringVar(&f.dataDir, "data-dir", "data",
		"Protocol data directory, wiped before each run")
	flags.DurationVar(&f.timeout, "timeout", 0,
		"Timeout per pipeline run (0 = wait forever)")
	flags.BoolVar(&f.writeJSON, "json", false,
		"Also write a JSON report next to the CSV")
}

func (f *envFlags) environment(logger *slog.Logger) (*harness.Compose, error) {
	var extra map[string]string

	if f.envFile != "" {
		var err error

		extra, err = godotenv.Read(f.envFile)
		if err != nil {
			return nil, fmt.Errorf("read env file %s: %w", f.envFile, err)
		}

		logger.Debug("loaded env file",
			slog.String("path", f.envFile),
			slog.Int("vars", len(extra)),
		)
	}

	return harness.NewCompose(harness.ComposeConfig{
		Binary:      f.composeBin,
		File:        f.composeFile,
		ProjectName: f.projectName,
		ProjectDir:  f.projectDir,
		ExtraEnv:    extra,
	}, logger)
}

func newRunCmd(logger *slog.Logger) *cobra.Command {
	var (
		vary        string
		metric      string
		params      = sweep.DefaultParams()
		queriesList string
		itemsList   string
		usersList   string
		prebuilt    bool
		outDir      string
		env         envFlags
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one sweep over queries, items or users",
		Long: `Run the pipeline once per value of the varied parameter, holding
the other parameters fixed, and write bench_<vary>.csv and
bench_<vary>.png to the output directory.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dim, err := sweep.ParseDimension(vary)
			if err != nil {
				return err
			}

			m, err := sweep.ParseMetric(metric)
			if err != nil {
				return err
			}

			if err := params.Validate(); err != nil {
				return err
			}

			values, err := parseList(dim, listFor(dim, queriesList, itemsList, usersList))
			if err != nil {
				return err
			}
			if err := checkValues(dim, values); err != nil {
				return err
			}

			compose, err := env.environment(logger)
			if err != nil {
				return err
			}

			_, err = executeSweep(cmd.Context(), logger, compose, sweepOptions{
				dim:      dim,
				metric:   m,
				params:   params,
				values:   values,
				prebuilt: prebuilt,
				outDir:   outDir,
				dataDir:  env.dataDir,
				timeout:  env.timeout,
				json:     env.writeJSON,
			})

			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&vary, "vary", "",
		"Parameter to sweep: queries, items or users")
	flags.StringVar(&metric, "metric", string(sweep.MetricWallClock),
		"Per-update time derivation: wall (total time / count) or timings (lead role timings.txt)")
	flags.IntVar(&params.Users, "users", params.Users, "Number of users")
	flags.IntVar(&params.Items, "items", params.Items, "Number of items")
	flags.IntVar(&params.Features, "features", params.Features, "Number of features")
	flags.IntVar(&params.Queries, "queries", params.Queries, "Number of queries")
	flags.StringVar(&queriesList, "queries-list", "",
		"Comma-separated query counts for --vary queries")
	flags.StringVar(&itemsList, "items-list", "",
		"Comma-separated item counts for --vary items")
	flags.StringVar(&usersList, "users-list", "",
		"Comma-separated user counts for --vary users")
	flags.BoolVar(&prebuilt, "prebuilt", false,
		"Skip the compose build step")
	flags.StringVar(&outDir, "outdir", "results",
		"Directory for CSV, PNG and JSON artifacts")
	env.register(cmd)

	_ = cmd.MarkFlagRequired("vary")

	return cmd
}

func newPlanCmd(logger *slog.Logger) *cobra.Command {
	var (
		file   string
		outDir string
		env    envFlags
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Run every sweep of a YAML plan",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := plan.LoadFromFile(file)
			if err != nil {
				return err
			}

			if outDir == "" {
				outDir = p.OutDir
			}
			if outDir == "" {
				outDir = "results"
			}

			compose, err := env.environment(logger)
			if err != nil {
				return err
			}

			for i, s := range p.Sweeps {
				_, err := executeSweep(cmd.Context(), logger, compose, sweepOptions{
					dim:      s.Vary,
					name:     s.Name,
					metric:   s.Metric,
					params:   p.ParamsFor(i),
					values:   s.Values,
					prebuilt: p.Prebuilt,
					outDir:   outDir,
					dataDir:  env.dataDir,
					timeout:  env.timeout,
					json:     env.writeJSON,
				})
				if err != nil {
					return fmt.Errorf("sweep %d (vary %s): %w", i, s.Vary, err)
				}
			}

			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&file, "file", "f", "", "Path to the plan YAML")
	flags.StringVar(&outDir, "outdir", "",
		"Directory for artifacts (default: plan outdir, then results)")
	env.register(cmd)

	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func listFor(dim sweep.Dimension, queries, items, users string) string {
	switch dim {
	case sweep.Queries:
		return queries
	case sweep.Items:
		return items
	default:
		return users
	}
}

// parseList splits a comma-separated list of counts. Spaces around
// entries and empty entries are ignored.
func parseList(dim sweep.Dimension, s string) ([]int, error) {
	var values []int

	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		v, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("--%s-list: invalid value %q: %w", dim, part, err)
		}

		values = append(values, v)
	}

	return values, nil
}

func checkValues(dim sweep.Dimension, values []int) error {
	if len(values) == 0 {
		return fmt.Errorf("--%s-list: %w", dim, sweep.ErrEmptySweep)
	}

	for _, v := range values {
		if v < 0 {
			return fmt.Errorf("--%s-list: negative value %d", dim, v)
		}
	}

	return nil
}

type sweepOptions struct {
	dim sweep.Dimension
	// name is the artifact base name; empty means the dimension.
	name     string
	metric   sweep.Metric
	params   sweep.Params
	values   []int
	prebuilt bool
	outDir   string
	dataDir  string
	timeout  time.Duration
	json     bool
}

func executeSweep(
	ctx context.Context,
	logger *slog.Logger,
	env harness.Environment,
	opts sweepOptions,
) (report.Artifacts, error) {
	id := uuid.NewString()
	logger = logger.With(
		slog.String("sweep", id),
		slog.String("vary", string(opts.dim)),
	)

	logger.InfoContext(ctx, "starting sweep",
		slog.String("metric", string(opts.metric)),
		slog.Any("values", opts.values),
		slog.Int("users", opts.params.Users),
		slog.Int("items", opts.params.Items),
		slog.Int("features", opts.params.Features),
		slog.Int("queries", opts.params.Queries),
		slog.Bool("prebuilt", opts.prebuilt),
	)

	pipeline := harness.NewPipeline(env, opts.dataDir, opts.prebuilt, logger)
	pipeline.Timeout = opts.timeout

	sweeper := &sweep.Sweeper{
		Runner:    pipeline,
		Dimension: opts.dim,
		Metric:    opts.metric,
		DataDir:   opts.dataDir,
		Logger:    logger,
	}

	started := time.Now()

	rows, err := sweeper.Run(ctx, opts.params, opts.values)
	if err != nil {
		return report.Artifacts{}, err
	}

	summary := report.Summary{
		ID:        id,
		Dimension: opts.dim,
		Metric:    opts.metric,
		Params:    opts.params,
		Started:   started,
		Elapsed:   time.Since(started),
		Rows:      rows,
	}

	name := opts.name
	if name == "" {
		name = string(opts.dim)
	}

	artifacts := report.NamedArtifactPaths(opts.outDir, name)

	if err := report.WriteCSVFile(artifacts.CSV, rows); err != nil {
		return report.Artifacts{}, err
	}
	logger.InfoContext(ctx, "saved CSV", slog.String("path", artifacts.CSV))

	if err := report.PlotSweep(artifacts.Plot, opts.dim, rows); err != nil {
		return report.Artifacts{}, err
	}
	logger.InfoContext(ctx, "saved plot", slog.String("path", artifacts.Plot))

	if opts.json {
		if err := report.WriteJSONFile(artifacts.JSON, summary); err != nil {
			return report.Artifacts{}, err
		}
		logger.InfoContext(ctx, "saved JSON report", slog.String("path", artifacts.JSON))
	}

	if err := report.Generate(os.Stdout, summary); err != nil {
		return report.Artifacts{}, fmt.Errorf("generate report: %w", err)
	}

	return artifacts, nil
}
