package release

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/smartcontractkit/beamline/alias"
	"github.com/smartcontractkit/beamline/artifact"
	"github.com/smartcontractkit/beamline/build"
	"github.com/smartcontractkit/beamline/deploy"
	"github.com/smartcontractkit/beamline/pkg/logger"
	"github.com/smartcontractkit/beamline/platform"
	"github.com/smartcontractkit/beamline/platform/memory"
	"github.com/smartcontractkit/beamline/smoketest"
	"github.com/smartcontractkit/beamline/vcs"
)

const testFunction = "orders-alice"

type fakeCloner struct {
	commit string
	err    error
}

func (c *fakeCloner) Clone(_ context.Context, _ vcs.Repository, dir string) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	if err := os.WriteFile(filepath.Join(dir, "index.js"), []byte("exports.handler = async () => ({})\n"), 0o600); err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Join(dir, "node_modules", "dep"), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, "node_modules", "dep", "index.js"), []byte("module.exports = 1\n"), 0o600); err != nil {
		return "", err
	}

	return c.commit, nil
}

type fakeBuilder struct {
	err  error
	dirs []string
}

func (b *fakeBuilder) Run(_ context.Context, dir string, _ []build.Step) error {
	b.dirs = append(b.dirs, dir)

	return b.err
}

type mockIntegrator struct {
	mock.Mock
}

func (m *mockIntegrator) OpenPullRequest(ctx context.Context, pr vcs.PullRequest) (*vcs.PullRequestResult, error) {
	args := m.Called(ctx, pr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*vcs.PullRequestResult), args.Error(1)
}

type notification struct {
	subject string
	message string
}

type recordingSink struct {
	mu   sync.Mutex
	sent []notification
	err  error
}

func (s *recordingSink) Send(_ context.Context, subject, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sent = append(s.sent, notification{subject: subject, message: message})

	return s.err
}

func (s *recordingSink) messages() []notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]notification(nil), s.sent...)
}

type fixture struct {
	platform   *memory.Platform
	cloner     *fakeCloner
	builder    *fakeBuilder
	integrator *mockIntegrator
	sink       *recordingSink
	reporter   *MemoryReporter
	root       string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	integrator := &mockIntegrator{}
	integrator.On("OpenPullRequest", mock.Anything, mock.Anything).
		Return(&vcs.PullRequestResult{Number: 7, URL: "https://github.com/acme/orders/pull/7", Branch: "pr-run1"}, nil).
		Maybe()

	return &fixture{
		platform:   memory.New(),
		cloner:     &fakeCloner{commit: "c0ffee"},
		builder:    &fakeBuilder{},
		integrator: integrator,
		sink:       &recordingSink{},
		reporter:   NewMemoryReporter(),
		root:       t.TempDir(),
	}
}

func (f *fixture) orchestrator(t *testing.T) *Orchestrator {
	t.Helper()

	o, err := New(Deps{
		Cloner:     f.cloner,
		Builder:    f.builder,
		Store:      f.platform,
		Platform:   f.platform,
		Integrator: f.integrator,
		Sink:       f.sink,
		Reporter:   f.reporter,
	}, Options{
		Function: platform.Configuration{
			Handler:    "index.handler",
			Role:       "arn:aws:iam::123456789012:role/lambda",
			Runtime:    "nodejs20.x",
			MemoryMB:   128,
			TimeoutSec: 30,
		},
		Includes:      []string{"index.js", "node_modules"},
		BuildSteps:    build.DefaultSteps,
		WorkspaceRoot: f.root,
	}, logger.Test(t))
	require.NoError(t, err)

	return o
}

func (f *fixture) seedStable(current, previous platform.Version, published int) {
	f.platform.SeedFunction(testFunction, []byte("old code"), platform.Configuration{Handler: "index.handler"}, published,
		map[string]platform.Version{alias.CurrentStable: current, alias.PreviousStable: previous})
}

func testInput() Input {
	return Input{
		Repository: vcs.Repository{Owner: "acme", Name: "orders"},
		Project:    "orders",
		Identity:   "alice",
		Org:        "alice-fork",
		RunID:      "run1",
	}
}

func Test_Orchestrator_Run_Success(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seedStable("3", "2", 3)

	run, err := f.orchestrator(t).Run(t.Context(), testInput())
	require.NoError(t, err)

	assert.Equal(t, StatusSucceeded, run.Status)
	assert.Equal(t, platform.Version("4"), run.Version)
	assert.Equal(t, alias.Ring{Current: "4", Previous: "3"}, run.Ring)
	assert.Equal(t, "c0ffee", run.Commit)
	require.NotNil(t, run.PullRequest)
	assert.Equal(t, 7, run.PullRequest.Number)
	assert.Equal(t, map[string]platform.Version{alias.CurrentStable: "4", alias.PreviousStable: "3"},
		f.platform.Aliases(testFunction))

	f.integrator.AssertNumberOfCalls(t, "OpenPullRequest", 1)
	pr := f.integrator.Calls[0].Arguments.Get(1).(vcs.PullRequest)
	assert.Equal(t, "c0ffee", pr.Commit)
	assert.Equal(t, "alice-fork", pr.Org)
	assert.Equal(t, "alice", pr.Committer)
	assert.Equal(t, "run1", pr.RunID)

	sent := f.sink.messages()
	require.Len(t, sent, len(Stages))
	for _, n := range sent {
		assert.Equal(t, "Beamline update:orders run1", n.subject)
	}
	assert.Contains(t, sent[0].message, "Git URL: acme/orders")
	assert.Contains(t, sent[11].message,
		"Update aliases completed. CURR_STABLE alias is: 4 and LAST_STABLE alias is: 3")

	snap, ok := f.platform.VersionSnapshot(testFunction, "4")
	require.True(t, ok)
	assert.Equal(t, run.Digest, snap.Digest)
	assert.Equal(t, "index.handler", snap.Config.Handler)

	_, statErr := os.Stat(filepath.Join(f.root, "run1"))
	require.ErrorIs(t, statErr, os.ErrNotExist)
}

func Test_Orchestrator_Run_StageOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seedStable("3", "2", 3)

	run, err := f.orchestrator(t).Run(t.Context(), testInput())
	require.NoError(t, err)

	got := make([]Stage, 0, len(run.Results))
	for _, r := range run.Results {
		assert.True(t, r.Success, "stage %s", r.Stage)
		assert.False(t, r.Finished.Before(r.Started))
		got = append(got, r.Stage)
	}
	assert.Equal(t, Stages, got)

	reports, err := f.reporter.GetReports()
	require.NoError(t, err)
	require.Len(t, reports, len(Stages))
	assert.Empty(t, FailedReports(reports))
	assert.Equal(t, StageSetup, reports[0].Def.Stage)
	assert.Equal(t, "1.0.0", reports[0].Def.Version.String())
}

func Test_Orchestrator_Run_FirstDeploy(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	run, err := f.orchestrator(t).Run(t.Context(), testInput())
	require.NoError(t, err)

	assert.Equal(t, platform.Version("1"), run.Version)
	assert.Equal(t, alias.Ring{Current: "1", Previous: "1"}, run.Ring)
	assert.Equal(t, 1, f.platform.CallCount(memory.OpCreateFunction))
	assert.Equal(t, 0, f.platform.CallCount(memory.OpUpdateCode))
	assert.Equal(t, 0, f.platform.CallCount(memory.OpUpdateAlias))

	sent := f.sink.messages()
	require.Len(t, sent, len(Stages))
	assert.Contains(t, sent[6].message, "Function code & configuration deployed")
	assert.Contains(t, sent[11].message, "CURR_STABLE and LAST_STABLE aliases created with version: 1")
}

func Test_Orchestrator_Run_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		beforeFunc func(f *fixture)
		wantStage  Stage
		assertErr  func(t *testing.T, err error)
		assertFunc func(t *testing.T, f *fixture)
	}{
		{
			name: "digest mismatch halts before any later platform call",
			beforeFunc: func(f *fixture) {
				f.seedStable("3", "2", 3)
				f.platform.OverrideReportedDigest(testFunction, "tampered")
			},
			wantStage: StageVerifyHash,
			assertErr: func(t *testing.T, err error) {
				t.Helper()
				var ierr *artifact.IntegrityError
				require.ErrorAs(t, err, &ierr)
			},
			assertFunc: func(t *testing.T, f *fixture) {
				t.Helper()
				assert.Equal(t, 0, f.platform.CallCount(memory.OpUpdateConfiguration))
				assert.Equal(t, 0, f.platform.CallCount(memory.OpInvoke))
				assert.Equal(t, 0, f.platform.CallCount(memory.OpPublishVersion))
				assert.Equal(t, 0, f.platform.CallCount(memory.OpGetAliases))
			},
		},
		{
			name: "resolution failure is not treated as absent",
			beforeFunc: func(f *fixture) {
				f.platform.FailOn(memory.OpGetFunction, assert.AnError)
			},
			wantStage: StageResolve,
			assertErr: func(t *testing.T, err error) {
				t.Helper()
				var rerr *deploy.ResolutionError
				require.ErrorAs(t, err, &rerr)
				require.ErrorIs(t, err, assert.AnError)
			},
			assertFunc: func(t *testing.T, f *fixture) {
				t.Helper()
				assert.Equal(t, 0, f.platform.CallCount(memory.OpCreateFunction))
				assert.Equal(t, 0, f.platform.CallCount(memory.OpUpdateCode))
			},
		},
		{
			name: "deploy failure",
			beforeFunc: func(f *fixture) {
				f.seedStable("3", "2", 3)
				f.platform.FailOn(memory.OpUpdateCode, assert.AnError)
			},
			wantStage: StageDeploy,
			assertErr: func(t *testing.T, err error) {
				t.Helper()
				var derr *deploy.DeployError
				require.ErrorAs(t, err, &derr)
			},
		},
		{
			name: "smoke test on latest fails",
			beforeFunc: func(f *fixture) {
				f.seedStable("3", "2", 3)
				f.platform.SetInvokeStatus("", 500)
			},
			wantStage: StageSmokeTestLatest,
			assertErr: func(t *testing.T, err error) {
				t.Helper()
				var failure *smoketest.Failure
				require.ErrorAs(t, err, &failure)
				assert.Equal(t, smoketest.PositionLatest, failure.Position)
				assert.Equal(t, 500, failure.StatusCode)
			},
			assertFunc: func(t *testing.T, f *fixture) {
				t.Helper()
				assert.Equal(t, 0, f.platform.CallCount(memory.OpPublishVersion))
				assert.Equal(t, map[string]platform.Version{alias.CurrentStable: "3", alias.PreviousStable: "2"},
					f.platform.Aliases(testFunction))
			},
		},
		{
			name: "smoke test on promoted alias fails after promotion",
			beforeFunc: func(f *fixture) {
				f.seedStable("3", "2", 3)
				f.platform.SetInvokeStatus(alias.CurrentStable, 502)
			},
			wantStage: StageSmokeTestPromoted,
			assertErr: func(t *testing.T, err error) {
				t.Helper()
				var failure *smoketest.Failure
				require.ErrorAs(t, err, &failure)
				assert.Equal(t, smoketest.PositionPromoted, failure.Position)
			},
			assertFunc: func(t *testing.T, f *fixture) {
				t.Helper()
				assert.Equal(t, map[string]platform.Version{alias.CurrentStable: "4", alias.PreviousStable: "3"},
					f.platform.Aliases(testFunction))
			},
		},
		{
			name: "partial promotion",
			beforeFunc: func(f *fixture) {
				f.seedStable("3", "2", 3)
				f.platform.InjectFault(func(c memory.Call) error {
					if c.Op == memory.OpUpdateAlias && c.Alias == alias.CurrentStable {
						return assert.AnError
					}

					return nil
				})
			},
			wantStage: StagePromote,
			assertErr: func(t *testing.T, err error) {
				t.Helper()
				var partial *alias.PartialPromotionError
				require.ErrorAs(t, err, &partial)
				assert.Contains(t, err.Error(), "manual alias repair required")
			},
			assertFunc: func(t *testing.T, f *fixture) {
				t.Helper()
				assert.Equal(t, map[string]platform.Version{alias.CurrentStable: "3", alias.PreviousStable: "3"},
					f.platform.Aliases(testFunction))
			},
		},
		{
			name: "build failure",
			beforeFunc: func(f *fixture) {
				f.builder.err = &build.StepError{Step: build.Step{Name: "test", Command: "npm"}, Err: assert.AnError}
			},
			wantStage: StageBuild,
			assertErr: func(t *testing.T, err error) {
				t.Helper()
				var serr *build.StepError
				require.ErrorAs(t, err, &serr)
			},
			assertFunc: func(t *testing.T, f *fixture) {
				t.Helper()
				assert.Empty(t, f.platform.Calls())
			},
		},
		{
			name: "fetch failure",
			beforeFunc: func(f *fixture) {
				f.cloner.err = assert.AnError
			},
			wantStage: StageFetch,
			assertErr: func(t *testing.T, err error) {
				t.Helper()
				require.ErrorIs(t, err, assert.AnError)
			},
			assertFunc: func(t *testing.T, f *fixture) {
				t.Helper()
				assert.Empty(t, f.builder.dirs)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			if tt.beforeFunc != nil {
				tt.beforeFunc(f)
			}

			run, err := f.orchestrator(t).Run(t.Context(), testInput())

			var serr *StageError
			require.ErrorAs(t, err, &serr)
			assert.Equal(t, tt.wantStage, serr.Stage)
			if tt.assertErr != nil {
				tt.assertErr(t, err)
			}

			require.NotNil(t, run)
			assert.Equal(t, StatusFailed, run.Status)
			last, ok := run.LastStage()
			require.True(t, ok)
			assert.Equal(t, tt.wantStage, last)
			assert.False(t, run.Results[len(run.Results)-1].Success)

			sent := f.sink.messages()
			require.Len(t, sent, len(run.Results), "one notification per transition")
			assert.Contains(t, sent[len(sent)-1].message, string(tt.wantStage)+" failed")

			reports, err := f.reporter.GetReports()
			require.NoError(t, err)
			require.Len(t, FailedReports(reports), 1)

			f.integrator.AssertNotCalled(t, "OpenPullRequest", mock.Anything, mock.Anything)

			_, statErr := os.Stat(filepath.Join(f.root, "run1"))
			require.ErrorIs(t, statErr, os.ErrNotExist)

			if tt.assertFunc != nil {
				tt.assertFunc(t, f)
			}
		})
	}
}

func Test_Orchestrator_Run_IntegrateFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seedStable("3", "2", 3)
	f.integrator = &mockIntegrator{}
	f.integrator.On("OpenPullRequest", mock.Anything, mock.Anything).Return(nil, assert.AnError).Once()

	run, err := f.orchestrator(t).Run(t.Context(), testInput())

	var serr *StageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, StageIntegrate, serr.Stage)
	assert.Equal(t, StatusFailed, run.Status)
	f.integrator.AssertNumberOfCalls(t, "OpenPullRequest", 1)
}

func Test_Orchestrator_Run_NotificationFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seedStable("3", "2", 3)
	f.sink.err = assert.AnError

	run, err := f.orchestrator(t).Run(t.Context(), testInput())
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, run.Status)
	assert.Len(t, f.sink.messages(), len(Stages))
}

func Test_Orchestrator_Run_InvalidInput(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	in := testInput()
	in.Project = "orders/../etc"

	run, err := f.orchestrator(t).Run(t.Context(), in)
	require.ErrorContains(t, err, "invalid release input")
	assert.Nil(t, run)
	assert.Empty(t, f.sink.messages())
	assert.Empty(t, f.platform.Calls())
}

func Test_New_Validation(t *testing.T) {
	t.Parallel()

	_, err := New(Deps{}, Options{WorkspaceRoot: t.TempDir(), Includes: []string{"index.js"}}, logger.Nop())
	require.ErrorContains(t, err, "cloner is required")

	f := newFixture(t)
	deps := Deps{
		Cloner: f.cloner, Builder: f.builder, Store: f.platform, Platform: f.platform, Integrator: f.integrator,
	}
	_, err = New(deps, Options{Includes: []string{"index.js"}}, logger.Nop())
	require.ErrorContains(t, err, "workspace root is required")

	_, err = New(deps, Options{WorkspaceRoot: t.TempDir()}, logger.Nop())
	require.ErrorContains(t, err, "include path")

	o, err := New(deps, Options{WorkspaceRoot: t.TempDir(), Includes: []string{"index.js"}}, logger.Nop())
	require.NoError(t, err)
	assert.IsType(t, &MemoryReporter{}, o.Reporter())
}

func Test_Input(t *testing.T) {
	t.Parallel()

	in := testInput()
	require.NoError(t, in.Validate())
	assert.Equal(t, "orders-alice", in.FunctionName())

	err := Input{Project: "a b"}.Validate()
	require.ErrorContains(t, err, "repository is required")
	require.ErrorContains(t, err, "project")
	require.ErrorContains(t, err, "identity")
	require.ErrorContains(t, err, "run id")
}
