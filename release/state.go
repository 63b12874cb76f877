package release

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/smartcontractkit/beamline/alias"
	"github.com/smartcontractkit/beamline/artifact"
	"github.com/smartcontractkit/beamline/deploy"
	"github.com/smartcontractkit/beamline/internal/workspace"
	"github.com/smartcontractkit/beamline/platform"
	"github.com/smartcontractkit/beamline/vcs"
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Input identifies one release request.
type Input struct {
	Repository vcs.Repository `json:"repository" yaml:"repository"`
	Project    string         `json:"project" yaml:"project"`
	Identity   string         `json:"identity" yaml:"identity"`
	Org        string         `json:"org" yaml:"org"`
	RunID      string         `json:"runID" yaml:"runID"`
}

// Validate checks that the input can name a function and a branch.
func (in Input) Validate() error {
	var errs []error
	if in.Repository.Owner == "" || in.Repository.Name == "" {
		errs = append(errs, errors.New("repository is required"))
	}
	if !namePattern.MatchString(in.Project) {
		errs = append(errs, fmt.Errorf("project %q must match %s", in.Project, namePattern))
	}
	if !namePattern.MatchString(in.Identity) {
		errs = append(errs, fmt.Errorf("identity %q must match %s", in.Identity, namePattern))
	}
	if !namePattern.MatchString(in.RunID) {
		errs = append(errs, fmt.Errorf("run id %q must match %s", in.RunID, namePattern))
	}

	return errors.Join(errs...)
}

// FunctionName is the platform name of the function released for this input. It is shared
// by every run of the same project and identity.
func (in Input) FunctionName() string {
	return in.Project + "-" + in.Identity
}

// State is carried from stage to stage. Each stage reads what earlier stages produced and
// records its own output.
type State struct {
	Input Input

	Workspace   *workspace.Workspace
	Commit      string
	Artifact    *artifact.Artifact
	Resolution  deploy.Resolution
	Version     platform.Version
	Promotion   alias.Promotion
	PullRequest *vcs.PullRequestResult
}
