// Package sweep runs a series of pipeline runs that vary exactly one
// parameter and turns each run into a result row.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/weiihann/mpcbench/harness"
	"github.com/weiihann/mpcbench/timings"
)

// ErrEmptySweep is returned when a sweep has no values.
var ErrEmptySweep = errors.New("sweep needs at least one value")

// Dimension is the parameter varied by a sweep.
type Dimension string

const (
	Queries Dimension = "queries"
	Items   Dimension = "items"
	Users   Dimension = "users"
)

// Dimensions returns all valid dimensions.
func Dimensions() []Dimension {
	return []Dimension{Queries, Items, Users}
}

// ParseDimension validates s as a Dimension.
func ParseDimension(s string) (Dimension, error) {
	for _, d := range Dimensions() {
		if string(d) == s {
			return d, nil
		}
	}

	return "", fmt.Errorf("unknown dimension %q (want queries, items or users)", s)
}

// Params are the parameters held fixed during a sweep.
type Params struct {
	Users    int `json:"users" yaml:"users"`
	Items    int `json:"items" yaml:"items"`
	Features int `json:"features" yaml:"features"`
	Queries  int `json:"queries" yaml:"queries"`
}

// DefaultParams returns the stock fixed parameters.
func DefaultParams() Params {
	return Params{Users: 100, Items: 200, Features: 40, Queries: 50}
}

// Validate rejects negative parameters.
func (p Params) Validate() error {
	if p.Users < 0 || p.Items < 0 || p.Features < 0 || p.Queries < 0 {
		return fmt.Errorf("parameters must not be negative: %+v", p)
	}

	return nil
}

// At returns the run configuration for value v of dimension d.
func (p Params) At(d Dimension, v int) harness.RunConfig {
	cfg := harness.RunConfig{
		Users:    p.Users,
		Items:    p.Items,
		Features: p.Features,
		Queries:  p.Queries,
	}

	switch d {
	case Queries:
		cfg.Queries = v
	case Items:
		cfg.Items = v
	case Users:
		cfg.Users = v
	}

	return cfg
}

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context, cfg harness.RunConfig) (*harness.Result, error)
}

// Sweeper runs a sweep through a Runner.
type Sweeper struct {
	Runner    Runner
	Dimension Dimension
	Metric    Metric
	// DataDir holds timings.txt after each run when Metric is
	// MetricTimings.
	DataDir string
	Logger  *slog.Logger
}

// Run executes one pipeline run per value, in order, and returns one row
// per run. values must not be empty; nothing runs if it is.
func (s *Sweeper) Run(ctx context.Context, params Params, values []int) ([]Row, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("vary %s: %w", s.Dimension, ErrEmptySweep)
	}

	if err := s.Metric.Validate(); err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(values))

	for i, v := range values {
		cfg := params.At(s.Dimension, v)

		s.Logger.InfoContext(ctx, "running pipeline",
			slog.String("vary", string(s.Dimension)),
			slog.Int("value", v),
			slog.Int("point", i+1),
			slog.Int("points", len(values)),
		)

		result, err := s.Runner.Run(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("%s=%d: %w", s.Dimension, v, err)
		}

		row, err := s.derive(result)
		if err != nil {
			return nil, fmt.Errorf("%s=%d: %w", s.Dimension, v, err)
		}

		rows = append(rows, row)
	}

	return rows, nil
}

func (s *Sweeper) derive(result *harness.Result) (Row, error) {
	switch s.Metric {
	case MetricTimings:
		totals, err := timings.ReadFile(filepath.Join(s.DataDir, timings.FileName))
		if err != nil {
			return Row{}, err
		}

		return DeriveTimings(result.Config, result.Seconds(), totals), nil
	default:
		return DeriveWallClock(result.Config, result.Seconds()), nil
	}
}
