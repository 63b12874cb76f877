// Package smoketest implements the synchronous invoke-and-classify gate run against freshly
// deployed code and against the promoted alias.
package smoketest

import (
	"context"
	"fmt"
	"net/http"

	"github.com/smartcontractkit/beamline/pkg/logger"
	"github.com/smartcontractkit/beamline/platform"
)

// Position tags where in the pipeline a gate ran.
type Position string

const (
	// PositionLatest is the gate against the unpublished, freshly deployed code.
	PositionLatest Position = "latest"
	// PositionPromoted is the gate against the alias that was just promoted.
	PositionPromoted Position = "promoted"
)

// DefaultPayload is sent when no payload is configured.
var DefaultPayload = []byte("{}")

// Failure reports a failed smoke test. StatusCode is zero when the invocation itself failed.
type Failure struct {
	Position   Position
	Function   string
	Qualifier  string
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("smoke test (%s) of %s:%s failed: %v", f.Position, f.Function, f.Qualifier, f.Err)
	}

	return fmt.Sprintf("smoke test (%s) of %s:%s failed with status %d", f.Position, f.Function, f.Qualifier, f.StatusCode)
}

// Unwrap returns the invocation error, if any.
func (f *Failure) Unwrap() error {
	return f.Err
}

// Gate invokes a function once and classifies the result.
type Gate struct {
	platform platform.Platform
	payload  []byte
	lggr     logger.Logger
}

// NewGate creates a Gate that sends payload on every check. A nil payload sends DefaultPayload.
func NewGate(p platform.Platform, payload []byte, lggr logger.Logger) *Gate {
	if payload == nil {
		payload = DefaultPayload
	}

	return &Gate{platform: p, payload: payload, lggr: lggr}
}

// Check invokes name at qualifier (empty means $LATEST). It passes only when the platform
// reports status 200. There is no retry.
func (g *Gate) Check(ctx context.Context, name, qualifier string, pos Position) error {
	if qualifier == "" {
		qualifier = platform.LatestQualifier
	}

	out, err := g.platform.Invoke(ctx, name, qualifier, g.payload)
	if err != nil {
		return &Failure{Position: pos, Function: name, Qualifier: qualifier, Err: err}
	}

	if out.FunctionError != "" {
		g.lggr.Warnw("Function reported an error during smoke test",
			"function", name, "qualifier", qualifier, "functionError", out.FunctionError, "status", out.StatusCode)
	}

	if !Passed(out.StatusCode) {
		return &Failure{Position: pos, Function: name, Qualifier: qualifier, StatusCode: out.StatusCode}
	}

	g.lggr.Infow("Smoke test passed", "function", name, "qualifier", qualifier, "position", pos)

	return nil
}

// Passed reports whether status is a passing smoke test status.
func Passed(status int) bool {
	return status == http.StatusOK
}
