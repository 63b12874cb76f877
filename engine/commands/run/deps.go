// Package run provides the CLI command that executes a release.
package run

import (
	"context"

	"github.com/segmentio/ksuid"

	"github.com/smartcontractkit/beamline/engine/config"
	"github.com/smartcontractkit/beamline/engine/environment"
	"github.com/smartcontractkit/beamline/pkg/logger"
	"github.com/smartcontractkit/beamline/release"
)

// Releaser executes one release.
type Releaser interface {
	Run(ctx context.Context, in release.Input) (*release.Run, error)
}

// ConfigLoaderFunc loads the configuration file at path, overlaid with the environment.
type ConfigLoaderFunc func(path string) (*config.Config, error)

// ReleaserLoaderFunc builds a Releaser from the configuration.
type ReleaserLoaderFunc func(ctx context.Context, cfg *config.Config, dryRun bool, lggr logger.Logger) (Releaser, error)

// RunIDFunc generates a run id when none is given.
type RunIDFunc func() string

// defaultReleaserLoader is the production implementation that wires the environment.
func defaultReleaserLoader(ctx context.Context, cfg *config.Config, dryRun bool, lggr logger.Logger) (Releaser, error) {
	env, err := environment.Load(ctx, cfg, environment.Options{DryRun: dryRun}, lggr)
	if err != nil {
		return nil, err
	}

	return env.Orchestrator()
}

// defaultRunID returns a time ordered unique id.
func defaultRunID() string {
	return ksuid.New().String()
}

// Deps holds the injectable dependencies for the run command.
// All fields are optional; nil values will use production defaults.
type Deps struct {
	// ConfigLoader loads the configuration.
	// Default: config.Load
	ConfigLoader ConfigLoaderFunc

	// ReleaserLoader builds the orchestrator.
	// Default: environment.Load followed by Environment.Orchestrator
	ReleaserLoader ReleaserLoaderFunc

	// RunID generates run ids.
	// Default: ksuid
	RunID RunIDFunc
}

// applyDefaults fills in nil dependencies with production defaults.
func (d *Deps) applyDefaults() {
	if d.ConfigLoader == nil {
		d.ConfigLoader = config.Load
	}
	if d.ReleaserLoader == nil {
		d.ReleaserLoader = defaultReleaserLoader
	}
	if d.RunID == nil {
		d.RunID = defaultRunID
	}
}
