package harness

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEnv struct {
	calls       []string
	teardownErr error
	buildErr    error
	stepErr     map[Step]error
	onStep      func(Step)
	// block makes RunStep wait for ctx to end on this step.
	block Step
}

func (f *fakeEnv) Teardown(_ context.Context, _ RunConfig) error {
	f.calls = append(f.calls, "teardown")
	return f.teardownErr
}

func (f *fakeEnv) Build(_ context.Context, _ RunConfig) error {
	f.calls = append(f.calls, "build")
	return f.buildErr
}

func (f *fakeEnv) RunStep(ctx context.Context, step Step, _ RunConfig) error {
	f.calls = append(f.calls, string(step))
	if f.onStep != nil {
		f.onStep(step)
	}
	if step == f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.stepErr[step]
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// tickingClock advances one second per call.
func tickingClock() func() time.Time {
	t := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newTestPipeline(t *testing.T, env Environment, prebuilt bool) *Pipeline {
	t.Helper()

	p := NewPipeline(env, filepath.Join(t.TempDir(), "data"), prebuilt, discardLogger())
	p.now = tickingClock()

	return p
}

func TestPipelineRunOrder(t *testing.T) {
	env := &fakeEnv{}
	p := newTestPipeline(t, env, false)

	cfg := RunConfig{Users: 10, Items: 20, Features: 4, Queries: 5}
	result, err := p.Run(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"teardown", "build", "gen_data", "protocol", "verify", "teardown",
	}, env.calls)
	assert.Equal(t, cfg, result.Config)
	assert.Equal(t, 3*time.Second, result.TotalTime)
	assert.InDelta(t, 3.0, result.Seconds(), 1e-9)
	require.Len(t, result.Stages, 3)
	assert.Equal(t, StepProtocol, result.Stages[1].Step)
	assert.Equal(t, time.Second, result.Stages[1].Duration)
}

func TestPipelinePrebuiltSkipsBuild(t *testing.T) {
	env := &fakeEnv{}
	p := newTestPipeline(t, env, true)

	_, err := p.Run(context.Background(), RunConfig{})
	require.NoError(t, err)

	assert.NotContains(t, env.calls, "build")
}

func TestPipelineTeardownFailureIsNotFatal(t *testing.T) {
	env := &fakeEnv{teardownErr: errors.New("no such project")}
	p := newTestPipeline(t, env, false)

	result, err := p.Run(context.Background(), RunConfig{Users: 1})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, []string{
		"teardown", "build", "gen_data", "protocol", "verify", "teardown",
	}, env.calls)
}

func TestPipelineStepFailureAborts(t *testing.T) {
	tests := []struct {
		name      string
		env       *fakeEnv
		wantCalls []string
	}{
		{
			name:      "build",
			env:       &fakeEnv{buildErr: ErrStepFailed},
			wantCalls: []string{"teardown", "build"},
		},
		{
			name:      "gen data",
			env:       &fakeEnv{stepErr: map[Step]error{StepGenData: ErrStepFailed}},
			wantCalls: []string{"teardown", "build", "gen_data"},
		},
		{
			name:      "protocol",
			env:       &fakeEnv{stepErr: map[Step]error{StepProtocol: ErrStepFailed}},
			wantCalls: []string{"teardown", "build", "gen_data", "protocol"},
		},
		{
			name: "verify",
			env:  &fakeEnv{stepErr: map[Step]error{StepVerify: ErrStepFailed}},
			wantCalls: []string{
				"teardown", "build", "gen_data", "protocol", "verify",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPipeline(t, tt.env, false)

			result, err := p.Run(context.Background(), RunConfig{})
			require.Error(t, err)
			assert.Nil(t, result)
			assert.ErrorIs(t, err, ErrStepFailed)
			assert.Equal(t, tt.wantCalls, tt.env.calls)
		})
	}
}

func TestPipelineCleansDataDir(t *testing.T) {
	env := &fakeEnv{}
	p := newTestPipeline(t, env, true)

	require.NoError(t, os.MkdirAll(p.DataDir, 0o755))
	stale := filepath.Join(p.DataDir, "timings.txt")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

	env.onStep = func(step Step) {
		if step == StepGenData {
			_, err := os.Stat(stale)
			assert.True(t, errors.Is(err, os.ErrNotExist),
				"stale file should be removed before data generation")
		}
	}

	_, err := p.Run(context.Background(), RunConfig{})
	require.NoError(t, err)

	info, err := os.Stat(p.DataDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestPipelineTimeout(t *testing.T) {
	env := &fakeEnv{block: StepProtocol}
	p := newTestPipeline(t, env, true)
	p.Timeout = 50 * time.Millisecond

	result, err := p.Run(context.Background(), RunConfig{})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, []string{"teardown", "gen_data", "protocol"}, env.calls)
}

func TestPipelineNoTimeoutByDefault(t *testing.T) {
	env := &fakeEnv{}
	p := newTestPipeline(t, env, true)

	var deadlineSet bool
	p.Env = deadlineEnv{fakeEnv: env, seen: &deadlineSet}

	_, err := p.Run(context.Background(), RunConfig{})
	require.NoError(t, err)
	assert.False(t, deadlineSet)
}

// deadlineEnv records whether any step ran with a deadline.
type deadlineEnv struct {
	*fakeEnv
	seen *bool
}

func (d deadlineEnv) RunStep(ctx context.Context, step Step, cfg RunConfig) error {
	if _, ok := ctx.Deadline(); ok {
		*d.seen = true
	}
	return d.fakeEnv.RunStep(ctx, step, cfg)
}

func TestPipelineRequiresDataDir(t *testing.T) {
	env := &fakeEnv{}
	p := NewPipeline(env, "", true, discardLogger())

	_, err := p.Run(context.Background(), RunConfig{})
	require.Error(t, err)
	assert.NotContains(t, env.calls, string(StepGenData))
}

func TestRunConfigEnv(t *testing.T) {
	cfg := RunConfig{Users: 100, Items: 200, Features: 40, Queries: 50}

	assert.Equal(t, []string{
		"NUM_USERS=100",
		"NUM_ITEMS=200",
		"NUM_FEATURES=40",
		"NUM_QUERIES=50",
	}, cfg.Env())
	assert.Equal(t, "users=100 items=200 features=40 queries=50", cfg.String())
}
