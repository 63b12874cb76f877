package deploy

import (
	"context"
	"fmt"

	"github.com/smartcontractkit/beamline/pkg/logger"
	"github.com/smartcontractkit/beamline/platform"
)

// DeployError reports a failed create, update or configure call.
type DeployError struct {
	Function string
	Op       string
	Err      error
}

// Error implements the error interface.
func (e *DeployError) Error() string {
	return fmt.Sprintf("failed to %s function %s: %v", e.Op, e.Function, e.Err)
}

// Unwrap returns the underlying platform error.
func (e *DeployError) Unwrap() error {
	return e.Err
}

// Deployer pushes code and configuration to the platform.
type Deployer struct {
	platform platform.Platform
	lggr     logger.Logger
}

// NewDeployer creates a new Deployer.
func NewDeployer(p platform.Platform, lggr logger.Logger) *Deployer {
	return &Deployer{platform: p, lggr: lggr}
}

// Deploy creates the function or updates its code depending on the resolved path, then waits
// until the platform reports the function ready for further changes.
func (d *Deployer) Deploy(
	ctx context.Context, res Resolution, name string, code platform.CodeLocation, cfg platform.Configuration,
) error {
	switch res.Path {
	case PathCreate:
		d.lggr.Infow("Creating function", "function", name, "bucket", code.Bucket, "key", code.Key)
		if _, err := d.platform.CreateFunction(ctx, platform.FunctionSpec{Name: name, Code: code, Config: cfg}); err != nil {
			return &DeployError{Function: name, Op: "create", Err: err}
		}
	case PathUpdate:
		d.lggr.Infow("Updating function code", "function", name, "bucket", code.Bucket, "key", code.Key)
		if err := d.platform.UpdateCode(ctx, name, code); err != nil {
			return &DeployError{Function: name, Op: "update code of", Err: err}
		}
	default:
		return &DeployError{Function: name, Op: "deploy", Err: fmt.Errorf("unknown deployment path %q", res.Path)}
	}

	if err := d.platform.WaitReady(ctx, name); err != nil {
		return &DeployError{Function: name, Op: "wait for", Err: err}
	}

	return nil
}

// ReportedDigest fetches the code digest the platform holds for the function.
func (d *Deployer) ReportedDigest(ctx context.Context, name string) (string, error) {
	info, err := d.platform.GetFunction(ctx, name)
	if err != nil {
		return "", &DeployError{Function: name, Op: "read back", Err: err}
	}

	return info.CodeDigest, nil
}

// Configure applies the function configuration and waits for the update to settle.
func (d *Deployer) Configure(ctx context.Context, name string, cfg platform.Configuration) error {
	d.lggr.Infow("Updating function configuration", "function", name,
		"handler", cfg.Handler, "memoryMB", cfg.MemoryMB, "timeoutSec", cfg.TimeoutSec)

	if err := d.platform.UpdateConfiguration(ctx, name, cfg); err != nil {
		return &DeployError{Function: name, Op: "configure", Err: err}
	}
	if err := d.platform.WaitReady(ctx, name); err != nil {
		return &DeployError{Function: name, Op: "wait for", Err: err}
	}

	return nil
}
