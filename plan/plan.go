// Package plan loads YAML files describing a batch of sweeps.
package plan

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/weiihann/mpcbench/sweep"
)

// Plan is a batch of sweeps sharing fixed parameters.
type Plan struct {
	Defaults sweep.Params `yaml:"defaults"`
	Metric   sweep.Metric `yaml:"metric"`
	Prebuilt bool         `yaml:"prebuilt"`
	OutDir   string       `yaml:"outdir"`
	Sweeps   []Sweep      `yaml:"sweeps"`
}

// Sweep is one entry of a plan.
type Sweep struct {
	Vary   sweep.Dimension `yaml:"vary"`
	Values []int           `yaml:"values"`
	Metric sweep.Metric    `yaml:"metric"`
	// Params holds the plan defaults with this sweep's params block
	// applied on top, or nil when the sweep has none.
	Params *sweep.Params `yaml:"-"`
	// Name is the artifact base name, unique within the plan.
	Name string `yaml:"-"`

	RawParams yaml.Node `yaml:"params"`
}

// LoadFromFile reads and validates the plan at path.
func LoadFromFile(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML plan, applies defaults and validates it.
func Parse(data []byte) (*Plan, error) {
	p := Plan{Defaults: sweep.DefaultParams()}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse plan YAML: %w", err)
	}
	if err := validate(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

func validate(p *Plan) error {
	if len(p.Sweeps) == 0 {
		return fmt.Errorf("plan has no sweeps")
	}
	if p.Metric == "" {
		p.Metric = sweep.MetricWallClock
	}
	if err := p.Metric.Validate(); err != nil {
		return fmt.Errorf("plan: %w", err)
	}
	if err := p.Defaults.Validate(); err != nil {
		return fmt.Errorf("plan defaults: %w", err)
	}
	for i := range p.Sweeps {
		s := &p.Sweeps[i]
		if _, err := sweep.ParseDimension(string(s.Vary)); err != nil {
			return fmt.Errorf("sweep at index %d: %w", i, err)
		}
		if len(s.Values) == 0 {
			return fmt.Errorf("sweep at index %d (vary %s): %w", i, s.Vary, sweep.ErrEmptySweep)
		}
		for _, v := range s.Values {
			if v < 0 {
				return fmt.Errorf("sweep at index %d (vary %s): negative value %d", i, s.Vary, v)
			}
		}
		if s.Metric == "" {
			s.Metric = p.Metric
		}
		if err := s.Metric.Validate(); err != nil {
			return fmt.Errorf("sweep at index %d: %w", i, err)
		}
		if s.RawParams.Kind != 0 {
			params := p.Defaults
			if err := s.RawParams.Decode(&params); err != nil {
				return fmt.Errorf("sweep at index %d: params: %w", i, err)
			}
			if err := params.Validate(); err != nil {
				return fmt.Errorf("sweep at index %d: %w", i, err)
			}
			s.Params = &params
		}
	}
	assignNames(p.Sweeps)
	return nil
}

// assignNames gives each sweep a distinct artifact base name. The first
// sweep over a dimension keeps the dimension name; later ones get the
// metric and, if still taken, the sweep index appended.
func assignNames(sweeps []Sweep) {
	used := make(map[string]bool, len(sweeps))
	for i := range sweeps {
		s := &sweeps[i]
		name := string(s.Vary)
		if used[name] {
			name = fmt.Sprintf("%s_%s", s.Vary, s.Metric)
		}
		if used[name] {
			name = fmt.Sprintf("%s_%s_%d", s.Vary, s.Metric, i)
		}
		used[name] = true
		s.Name = name
	}
}

// ParamsFor returns the fixed parameters of sweep i.
func (p *Plan) ParamsFor(i int) sweep.Params {
	if s := p.Sweeps[i]; s.Params != nil {
		return *s.Params
	}
	return p.Defaults
}
