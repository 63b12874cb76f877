package environment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcontractkit/beamline/artifact/store"
	"github.com/smartcontractkit/beamline/build"
	"github.com/smartcontractkit/beamline/engine/config"
	"github.com/smartcontractkit/beamline/notify"
	"github.com/smartcontractkit/beamline/pkg/logger"
	"github.com/smartcontractkit/beamline/platform"
	"github.com/smartcontractkit/beamline/platform/lambda"
	"github.com/smartcontractkit/beamline/platform/memory"
	"github.com/smartcontractkit/beamline/vcs"
)

func testConfig() *config.Config {
	return &config.Config{
		AWS: config.AWSConfig{Region: "us-east-1"},
		Storage: config.StorageConfig{
			Backend:      config.BackendS3,
			BucketPrefix: "beamline-bucket",
			Channel:      store.DefaultChannel,
		},
		Function: config.FunctionConfig{
			Handler:      "index.handler",
			Role:         "arn:aws:iam::123456789012:role/lambda",
			Runtime:      "nodejs20.x",
			MemoryMB:     256,
			TimeoutSec:   15,
			Description:  "Orders API",
			Includes:     []string{"index.js", "node_modules"},
			SmokePayload: `{"ping":true}`,
		},
		Build: config.BuildConfig{Timeout: time.Minute},
		Git: config.GitConfig{
			BaseURL: "https://github.com",
			Branch:  "main",
			Base:    "develop",
		},
		Notify:    config.NotifyConfig{RelayFunction: "slack-notify", Timeout: time.Second},
		Workspace: config.WorkspaceConfig{Root: "/tmp/beamline"},
	}
}

func Test_Load_DryRun(t *testing.T) {
	t.Parallel()

	env, err := Load(t.Context(), testConfig(), Options{DryRun: true}, logger.Test(t))
	require.NoError(t, err)

	assert.IsType(t, &memory.Platform{}, env.Platform)
	assert.Same(t, env.Platform, env.Store)
	assert.IsType(t, &vcs.LogIntegrator{}, env.Integrator)
	assert.IsType(t, &notify.LogSink{}, env.Sink)
	assert.Equal(t, "main", env.Cloner.Branch)
	assert.Equal(t, time.Minute, env.Builder.Timeout)

	o, err := env.Orchestrator()
	require.NoError(t, err)
	assert.NotNil(t, o)
}

func Test_Load_NilConfig(t *testing.T) {
	t.Parallel()

	_, err := Load(t.Context(), nil, Options{}, logger.Nop())
	require.ErrorContains(t, err, "config is required")
}

func Test_OrchestratorOptions(t *testing.T) {
	t.Parallel()

	got := OrchestratorOptions(testConfig())

	assert.Equal(t, platform.Configuration{
		Handler:     "index.handler",
		Role:        "arn:aws:iam::123456789012:role/lambda",
		Runtime:     "nodejs20.x",
		MemoryMB:    256,
		TimeoutSec:  15,
		Description: "Orders API",
	}, got.Function)
	assert.Equal(t, []string{"index.js", "node_modules"}, got.Includes)
	assert.Equal(t, build.DefaultSteps, got.BuildSteps)
	assert.Equal(t, store.DefaultChannel, got.Channel)
	assert.Equal(t, "/tmp/beamline", got.WorkspaceRoot)
	assert.Equal(t, []byte(`{"ping":true}`), got.SmokePayload)
	assert.Equal(t, "develop", got.Base)

	cfg := testConfig()
	cfg.Function.SmokePayload = ""
	assert.Nil(t, OrchestratorOptions(cfg).SmokePayload)
}

func Test_platformOptions(t *testing.T) {
	t.Parallel()

	assert.Equal(t, lambda.DefaultOptions, platformOptions(testConfig()))

	cfg := testConfig()
	cfg.Function.PollAttempts = 3
	cfg.Function.PollDelay = time.Millisecond
	assert.Equal(t, lambda.Options{PollAttempts: 3, PollDelay: time.Millisecond}, platformOptions(cfg))
}

func Test_newSink(t *testing.T) {
	t.Parallel()

	sess, err := lambda.NewSession("us-east-1", "")
	require.NoError(t, err)

	tests := []struct {
		name       string
		beforeFunc func(cfg *config.Config)
		wantLen    int
		wantRemote notify.Sink
	}{
		{
			name:       "relay function",
			wantLen:    2,
			wantRemote: &notify.FunctionSink{},
		},
		{
			name: "slack webhook takes precedence",
			beforeFunc: func(cfg *config.Config) {
				cfg.Notify.SlackWebhookURL = "https://hooks.slack.com/services/T/B/X"
			},
			wantLen:    2,
			wantRemote: &notify.SlackSink{},
		},
		{
			name: "log only",
			beforeFunc: func(cfg *config.Config) {
				cfg.Notify.RelayFunction = ""
			},
			wantLen: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := testConfig()
			if tt.beforeFunc != nil {
				tt.beforeFunc(cfg)
			}

			sink, err := newSink(cfg, sess, logger.Test(t))
			require.NoError(t, err)

			multi, ok := sink.(notify.Multi)
			require.True(t, ok)
			require.Len(t, multi, tt.wantLen)
			assert.IsType(t, &notify.LogSink{}, multi[0])
			if tt.wantRemote != nil {
				assert.IsType(t, tt.wantRemote, multi[1])
			}
		})
	}
}

func Test_newStore(t *testing.T) {
	t.Parallel()

	sess, err := lambda.NewSession("us-east-1", "")
	require.NoError(t, err)

	s, err := newStore(t.Context(), testConfig(), sess, logger.Test(t))
	require.NoError(t, err)
	assert.IsType(t, &store.S3Store{}, s)

	cfg := testConfig()
	cfg.Storage.Backend = "ftp"
	_, err = newStore(t.Context(), cfg, sess, logger.Test(t))
	require.ErrorContains(t, err, `unknown storage backend "ftp"`)
}

func Test_newIntegrator(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Git.APIURL = "https://github.example.com/api/v3/"

	i, err := newIntegrator(t.Context(), cfg, logger.Test(t))
	require.NoError(t, err)
	assert.IsType(t, &vcs.GitHubIntegrator{}, i)
}
