// Package environment turns a loaded configuration into the concrete collaborators of a
// release: the compute platform, package storage, pull request integrator, notification sink,
// cloner and build runner.
package environment

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws/session"
	lambdalib "github.com/aws/aws-sdk-go/service/lambda"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/smartcontractkit/beamline/artifact/store"
	"github.com/smartcontractkit/beamline/build"
	"github.com/smartcontractkit/beamline/engine/config"
	"github.com/smartcontractkit/beamline/internal/secrets"
	"github.com/smartcontractkit/beamline/notify"
	"github.com/smartcontractkit/beamline/pkg/logger"
	"github.com/smartcontractkit/beamline/platform"
	"github.com/smartcontractkit/beamline/platform/lambda"
	"github.com/smartcontractkit/beamline/platform/memory"
	"github.com/smartcontractkit/beamline/release"
	"github.com/smartcontractkit/beamline/vcs"
)

// Options control how the environment is assembled.
type Options struct {
	// DryRun replaces every remote collaborator with an in-process one. The repository is
	// still cloned and built.
	DryRun bool
}

// Environment holds the collaborators of a release.
type Environment struct {
	Config     *config.Config
	Platform   platform.Platform
	Store      store.Store
	Integrator vcs.Integrator
	Sink       notify.Sink
	Cloner     *vcs.Cloner
	Builder    *build.Runner

	lggr logger.Logger
}

// Load resolves secret references in cfg and assembles the environment it describes.
func Load(ctx context.Context, cfg *config.Config, opts Options, lggr logger.Logger) (*Environment, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	env := &Environment{Config: cfg, lggr: lggr}

	if opts.DryRun {
		lggr.Infow("Dry run: using in-memory platform and storage")
		mem := memory.New()
		env.Platform = mem
		env.Store = mem
		env.Integrator = vcs.NewLogIntegrator(lggr)
		env.Sink = notify.NewLogSink(lggr)
	} else {
		if err := resolveSecrets(ctx, cfg); err != nil {
			return nil, err
		}

		sess, err := lambda.NewSession(cfg.AWS.Region, cfg.AWS.Profile)
		if err != nil {
			return nil, err
		}

		env.Platform = lambda.NewFromSession(sess, platformOptions(cfg), lggr)

		if env.Store, err = newStore(ctx, cfg, sess, lggr); err != nil {
			return nil, err
		}
		if env.Integrator, err = newIntegrator(ctx, cfg, lggr); err != nil {
			return nil, err
		}
		if env.Sink, err = newSink(cfg, sess, lggr); err != nil {
			return nil, err
		}
	}

	env.Cloner = vcs.NewCloner(cfg.Git.BaseURL, cfg.Git.Token, lggr)
	env.Cloner.Branch = cfg.Git.Branch

	env.Builder = build.NewRunner(lggr)
	env.Builder.Timeout = cfg.Build.Timeout

	return env, nil
}

// LoadPlatform assembles only the compute platform. It never dry runs.
func LoadPlatform(cfg *config.Config, lggr logger.Logger) (platform.Platform, error) {
	sess, err := lambda.NewSession(cfg.AWS.Region, cfg.AWS.Profile)
	if err != nil {
		return nil, err
	}

	return lambda.NewFromSession(sess, platformOptions(cfg), lggr), nil
}

// Orchestrator returns a release orchestrator wired to the environment.
func (e *Environment) Orchestrator() (*release.Orchestrator, error) {
	return release.New(release.Deps{
		Cloner:     e.Cloner,
		Builder:    e.Builder,
		Store:      e.Store,
		Platform:   e.Platform,
		Integrator: e.Integrator,
		Sink:       e.Sink,
	}, OrchestratorOptions(e.Config), e.lggr)
}

// OrchestratorOptions maps cfg onto the per run options of the orchestrator.
func OrchestratorOptions(cfg *config.Config) release.Options {
	var payload []byte
	if cfg.Function.SmokePayload != "" {
		payload = []byte(cfg.Function.SmokePayload)
	}

	return release.Options{
		Function:      FunctionConfiguration(cfg.Function),
		Includes:      cfg.Function.Includes,
		BuildSteps:    cfg.BuildSteps(),
		Channel:       cfg.Storage.Channel,
		WorkspaceRoot: cfg.Workspace.Root,
		SmokePayload:  payload,
		Base:          cfg.Git.Base,
	}
}

// FunctionConfiguration maps the function section onto the platform configuration.
func FunctionConfiguration(c config.FunctionConfig) platform.Configuration {
	return platform.Configuration{
		Handler:     c.Handler,
		Role:        c.Role,
		Runtime:     c.Runtime,
		MemoryMB:    c.MemoryMB,
		TimeoutSec:  c.TimeoutSec,
		Description: c.Description,
	}
}

func platformOptions(cfg *config.Config) lambda.Options {
	opts := lambda.DefaultOptions
	if cfg.Function.PollAttempts > 0 {
		opts.PollAttempts = cfg.Function.PollAttempts
	}
	if cfg.Function.PollDelay > 0 {
		opts.PollDelay = cfg.Function.PollDelay
	}

	return opts
}

func resolveSecrets(ctx context.Context, cfg *config.Config) error {
	if !cfg.HasSecretReferences() {
		return nil
	}

	r, err := secrets.NewAWSResolver(ctx, cfg.AWS.Region)
	if err != nil {
		return err
	}

	return cfg.ResolveSecrets(ctx, r)
}

func newStore(ctx context.Context, cfg *config.Config, sess *session.Session, lggr logger.Logger) (store.Store, error) {
	bucket := cfg.Storage.BucketName(cfg.AWS.Region)

	switch cfg.Storage.Backend {
	case config.BackendS3:
		return store.NewS3Store(s3.New(sess), bucket, lggr), nil
	case config.BackendMinIO:
		client, err := store.NewMinIOClient(cfg.Storage.MinIO)
		if err != nil {
			return nil, err
		}
		region := cfg.Storage.MinIO.Region
		if region == "" {
			region = cfg.AWS.Region
		}
		s, err := store.NewMinIOStore(client, bucket, region, lggr)
		if err != nil {
			return nil, err
		}
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, err
		}

		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func newIntegrator(ctx context.Context, cfg *config.Config, lggr logger.Logger) (vcs.Integrator, error) {
	client := vcs.NewGitHubClient(ctx, cfg.Git.Token)
	if cfg.Git.APIURL != "" {
		var err error
		if client, err = client.WithEnterpriseURLs(cfg.Git.APIURL, cfg.Git.APIURL); err != nil {
			return nil, fmt.Errorf("failed to configure GitHub API URL %s: %w", cfg.Git.APIURL, err)
		}
	}

	return vcs.NewGitHubIntegrator(client, lggr), nil
}

// newSink always logs. A Slack webhook takes precedence over the relay function.
func newSink(cfg *config.Config, sess *session.Session, lggr logger.Logger) (notify.Sink, error) {
	sinks := notify.Multi{notify.NewLogSink(lggr)}

	switch {
	case cfg.Notify.SlackWebhookURL != "":
		slack, err := notify.NewSlackSink(cfg.Notify.SlackWebhookURL, cfg.Notify.Timeout)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, slack)
	case cfg.Notify.RelayFunction != "":
		sinks = append(sinks, notify.NewFunctionSink(lambdalib.New(sess), cfg.Notify.RelayFunction))
	}

	return sinks, nil
}
