// Package aliases provides the CLI command that shows the stable alias ring of a function.
package aliases

import (
	"github.com/smartcontractkit/beamline/engine/config"
	"github.com/smartcontractkit/beamline/engine/environment"
	"github.com/smartcontractkit/beamline/pkg/logger"
	"github.com/smartcontractkit/beamline/platform"
)

// ConfigLoaderFunc loads the configuration file at path, overlaid with the environment.
type ConfigLoaderFunc func(path string) (*config.Config, error)

// PlatformLoaderFunc builds the platform the aliases are read from.
type PlatformLoaderFunc func(cfg *config.Config, lggr logger.Logger) (platform.Platform, error)

// Deps holds the injectable dependencies for the aliases command.
// All fields are optional; nil values will use production defaults.
type Deps struct {
	// ConfigLoader loads the configuration.
	// Default: config.Load
	ConfigLoader ConfigLoaderFunc

	// PlatformLoader builds the platform.
	// Default: environment.LoadPlatform
	PlatformLoader PlatformLoaderFunc
}

// applyDefaults fills in nil dependencies with production defaults.
func (d *Deps) applyDefaults() {
	if d.ConfigLoader == nil {
		d.ConfigLoader = config.Load
	}
	if d.PlatformLoader == nil {
		d.PlatformLoader = environment.LoadPlatform
	}
}
