// Package deploy decides how the target function is deployed and performs the create or
// update calls against the platform.
package deploy

import (
	"context"
	"errors"
	"fmt"

	"github.com/smartcontractkit/beamline/pkg/logger"
	"github.com/smartcontractkit/beamline/platform"
)

// Path is the deployment route chosen for a function.
type Path string

const (
	// PathCreate is taken when the platform reports the function as absent.
	PathCreate Path = "create"
	// PathUpdate is taken when the function already exists.
	PathUpdate Path = "update"
)

// Resolution is the outcome of resolving a function.
type Resolution struct {
	Path Path
	// Info is the existing function metadata. Nil on the create path.
	Info *platform.FunctionInfo
}

// ResolutionError reports that the existence check failed for a reason other than the
// function being absent. It is fatal: treating it as absent could create a duplicate function.
type ResolutionError struct {
	Function string
	Err      error
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	return fmt.Sprintf("failed to resolve function %s: %v", e.Function, e.Err)
}

// Unwrap returns the underlying platform error.
func (e *ResolutionError) Unwrap() error {
	return e.Err
}

var errNoMetadata = errors.New("platform returned no metadata")

// Resolver decides between the create and update paths.
type Resolver struct {
	platform platform.Platform
	lggr     logger.Logger
}

// NewResolver creates a new Resolver.
func NewResolver(p platform.Platform, lggr logger.Logger) *Resolver {
	return &Resolver{platform: p, lggr: lggr}
}

// Resolve queries the platform for the function. Only the platform's not found signal routes
// to PathCreate; every other failure is returned as a *ResolutionError.
func (r *Resolver) Resolve(ctx context.Context, name string) (Resolution, error) {
	info, err := r.platform.GetFunction(ctx, name)
	switch {
	case err == nil && info != nil:
		r.lggr.Infow("Function exists, taking update path", "function", name, "codeDigest", info.CodeDigest)

		return Resolution{Path: PathUpdate, Info: info}, nil
	case err == nil:
		return Resolution{}, &ResolutionError{Function: name, Err: errNoMetadata}
	case platform.IsNotFound(err):
		r.lggr.Infow("Function does not exist, taking create path", "function", name)

		return Resolution{Path: PathCreate}, nil
	default:
		return Resolution{}, &ResolutionError{Function: name, Err: err}
	}
}
