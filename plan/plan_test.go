package plan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiihann/mpcbench/sweep"
)

func TestParse(t *testing.T) {
	t.Run("valid plan", func(t *testing.T) {
		yaml := `
defaults:
  users: 10
  items: 20
  features: 4
  queries: 5
metric: timings
prebuilt: true
outdir: results
sweeps:
  - vary: items
    values: [100, 200, 400]
  - vary: queries
    values: [10, 20]
    metric: wall
`
		p, err := Parse([]byte(yaml))
		require.NoError(t, err)
		assert.Len(t, p.Sweeps, 2)
		assert.True(t, p.Prebuilt)
		assert.Equal(t, "results", p.OutDir)
		assert.Equal(t, sweep.Params{Users: 10, Items: 20, Features: 4, Queries: 5}, p.Defaults)
		assert.Equal(t, sweep.Items, p.Sweeps[0].Vary)
		assert.Equal(t, []int{100, 200, 400}, p.Sweeps[0].Values)
		assert.Equal(t, sweep.MetricTimings, p.Sweeps[0].Metric)
		assert.Equal(t, sweep.MetricWallClock, p.Sweeps[1].Metric)
	})

	t.Run("defaults applied", func(t *testing.T) {
		yaml := `
sweeps:
  - vary: users
    values: [1]
`
		p, err := Parse([]byte(yaml))
		require.NoError(t, err)
		assert.Equal(t, sweep.DefaultParams(), p.Defaults)
		assert.Equal(t, sweep.MetricWallClock, p.Metric)
		assert.Equal(t, sweep.MetricWallClock, p.Sweeps[0].Metric)
	})

	t.Run("partial defaults keep the rest", func(t *testing.T) {
		yaml := `
defaults:
  users: 7
sweeps:
  - vary: items
    values: [1]
`
		p, err := Parse([]byte(yaml))
		require.NoError(t, err)
		assert.Equal(t, 7, p.Defaults.Users)
		assert.Equal(t, 200, p.Defaults.Items)
	})

	t.Run("per sweep params", func(t *testing.T) {
		yaml := `
sweeps:
  - vary: items
    values: [1]
    params: {users: 1, items: 2, features: 3, queries: 4}
  - vary: users
    values: [1]
`
		p, err := Parse([]byte(yaml))
		require.NoError(t, err)
		assert.Equal(t, sweep.Params{Users: 1, Items: 2, Features: 3, Queries: 4}, p.ParamsFor(0))
		assert.Equal(t, sweep.DefaultParams(), p.ParamsFor(1))
	})

	t.Run("partial per sweep params keep defaults", func(t *testing.T) {
		yaml := `
defaults: {users: 10, items: 20, features: 4, queries: 5}
sweeps:
  - vary: items
    values: [1]
    params: {users: 3}
`
		p, err := Parse([]byte(yaml))
		require.NoError(t, err)
		assert.Equal(t, sweep.Params{Users: 3, Items: 20, Features: 4, Queries: 5}, p.ParamsFor(0))
		assert.Equal(t, sweep.Params{Users: 10, Items: 20, Features: 4, Queries: 5}, p.Defaults)
	})

	t.Run("negative per sweep params", func(t *testing.T) {
		yaml := `
sweeps:
  - vary: items
    values: [1]
    params: {features: -4}
`
		_, err := Parse([]byte(yaml))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "negative")
	})

	t.Run("no sweeps", func(t *testing.T) {
		_, err := Parse([]byte("sweeps: []\n"))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "no sweeps")
	})

	t.Run("empty values", func(t *testing.T) {
		yaml := `
sweeps:
  - vary: items
    values: []
`
		_, err := Parse([]byte(yaml))
		assert.ErrorIs(t, err, sweep.ErrEmptySweep)
	})

	t.Run("unknown dimension", func(t *testing.T) {
		yaml := `
sweeps:
  - vary: features
    values: [1]
`
		_, err := Parse([]byte(yaml))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unknown dimension")
	})

	t.Run("negative value", func(t *testing.T) {
		yaml := `
sweeps:
  - vary: users
    values: [1, -2]
`
		_, err := Parse([]byte(yaml))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "negative")
	})

	t.Run("unknown metric", func(t *testing.T) {
		yaml := `
metric: median
sweeps:
  - vary: users
    values: [1]
`
		_, err := Parse([]byte(yaml))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unknown metric")
	})
}

func TestParseArtifactNamesAreUnique(t *testing.T) {
	yaml := `
sweeps:
  - vary: items
    values: [1]
    metric: wall
  - vary: items
    values: [1]
    metric: timings
  - vary: users
    values: [1]
  - vary: items
    values: [2]
    metric: timings
`
	p, err := Parse([]byte(yaml))
	require.NoError(t, err)

	names := make([]string, len(p.Sweeps))
	for i, s := range p.Sweeps {
		names[i] = s.Name
	}
	assert.Equal(t, []string{"items", "items_timings", "users", "items_timings_3"}, names)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sweeps:\n  - vary: queries\n    values: [5]\n"), 0o644))

	p, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, sweep.Queries, p.Sweeps[0].Vary)

	_, err = LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
