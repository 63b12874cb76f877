// Package platform defines the capability surface beamline needs from a managed function
// platform, and the value types that cross it.
//
// Implementations live in sub packages: [lambda] talks to AWS Lambda and [memory] is an
// in-process platform used by tests and dry runs.
package platform

import (
	"context"
	"errors"
	"strconv"
)

// LatestQualifier addresses the unpublished code of a function.
const LatestQualifier = "$LATEST"

// ErrFunctionNotFound is returned by [Platform.GetFunction] when the function does not exist.
//
// Implementations must only return it for the platform's own "resource not found" signal.
// Permission errors, throttling and transport failures must be returned as-is so that callers
// never mistake them for an absent function.
var ErrFunctionNotFound = errors.New("function not found")

// IsNotFound reports whether err signals an absent function.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrFunctionNotFound)
}

// Version is the identifier of an immutable published snapshot of a function. Numbered
// versions are decimal strings ("1", "2", ...).
type Version string

// Number returns the numeric form of the version, or false for non numbered versions such
// as $LATEST.
func (v Version) Number() (int64, bool) {
	n, err := strconv.ParseInt(string(v), 10, 64)
	if err != nil {
		return 0, false
	}

	return n, true
}

// String implements fmt.Stringer.
func (v Version) String() string {
	return string(v)
}

// Configuration is the mutable runtime configuration of a function.
type Configuration struct {
	Handler     string `json:"handler" yaml:"handler"`
	Role        string `json:"role" yaml:"role"`
	Runtime     string `json:"runtime" yaml:"runtime"`
	MemoryMB    int64  `json:"memoryMB" yaml:"memory_mb"`
	TimeoutSec  int64  `json:"timeoutSec" yaml:"timeout_sec"`
	Description string `json:"description" yaml:"description"`
}

// FunctionInfo is the platform's view of an existing function.
type FunctionInfo struct {
	Name       string        `json:"name"`
	ARN        string        `json:"arn"`
	CodeDigest string        `json:"codeDigest"`
	Config     Configuration `json:"config"`
}

// CodeLocation points at a stored deployment package.
type CodeLocation struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// FunctionSpec describes a function to create.
type FunctionSpec struct {
	Name   string
	Code   CodeLocation
	Config Configuration
}

// Invocation is the platform reported result of a synchronous invoke.
type Invocation struct {
	StatusCode int
	Body       []byte
	// FunctionError is set by platforms that report handler failures out of band, e.g.
	// Lambda's "Unhandled". It does not change the StatusCode.
	FunctionError string
}

// Platform is the minimum capability surface the release pipeline requires.
type Platform interface {
	// GetFunction returns the function metadata or ErrFunctionNotFound.
	GetFunction(ctx context.Context, name string) (*FunctionInfo, error)
	// CreateFunction creates a function and returns its identifier.
	CreateFunction(ctx context.Context, spec FunctionSpec) (string, error)
	// UpdateCode replaces the function code with the package at loc.
	UpdateCode(ctx context.Context, name string, loc CodeLocation) error
	// UpdateConfiguration replaces the function configuration.
	UpdateConfiguration(ctx context.Context, name string, cfg Configuration) error
	// WaitReady blocks until the function can accept further updates and invocations.
	WaitReady(ctx context.Context, name string) error
	// Invoke synchronously invokes the function. An empty qualifier means $LATEST.
	Invoke(ctx context.Context, name, qualifier string, payload []byte) (*Invocation, error)
	// PublishVersion publishes the current code and configuration. When codeDigest is not
	// empty the platform must refuse to publish code with a different digest.
	PublishVersion(ctx context.Context, name, codeDigest string) (Version, error)
	// GetAliases returns the function aliases keyed by alias name.
	GetAliases(ctx context.Context, name string) (map[string]Version, error)
	// CreateAlias creates a new alias pointing at v.
	CreateAlias(ctx context.Context, name, alias string, v Version) error
	// UpdateAlias repoints an existing alias at v.
	UpdateAlias(ctx context.Context, name, alias string, v Version) error
}
