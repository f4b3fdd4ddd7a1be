// Package harness drives one benchmark pipeline run of the three-party
// protocol: teardown, build, data generation, protocol execution,
// verification and teardown again, timing the middle of it.
package harness

import (
	"fmt"
	"strconv"
	"time"
)

// RunConfig holds the parameters of a single pipeline run.
type RunConfig struct {
	Users    int `json:"users" yaml:"users"`
	Items    int `json:"items" yaml:"items"`
	Features int `json:"features" yaml:"features"`
	Queries  int `json:"queries" yaml:"queries"`
}

// Env renders the configuration as KEY=VALUE pairs for the
// orchestration commands.
func (c RunConfig) Env() []string {
	return []string{
		"NUM_USERS=" + strconv.Itoa(c.Users),
		"NUM_ITEMS=" + strconv.Itoa(c.Items),
		"NUM_FEATURES=" + strconv.Itoa(c.Features),
		"NUM_QUERIES=" + strconv.Itoa(c.Queries),
	}
}

func (c RunConfig) String() string {
	return fmt.Sprintf("users=%d items=%d features=%d queries=%d",
		c.Users, c.Items, c.Features, c.Queries)
}

// StageTiming is the wall time spent in one timed step.
type StageTiming struct {
	Step     Step          `json:"step"`
	Duration time.Duration `json:"duration_ns"`
}

// Result holds the outcome of a pipeline run.
type Result struct {
	Config    RunConfig     `json:"config"`
	TotalTime time.Duration `json:"total_time_ns"`
	Stages    []StageTiming `json:"stages"`
}

// Seconds returns the total wall time in seconds.
func (r *Result) Seconds() float64 {
	return r.TotalTime.Seconds()
}
