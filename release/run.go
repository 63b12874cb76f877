package release

import (
	"time"

	"github.com/smartcontractkit/beamline/alias"
	"github.com/smartcontractkit/beamline/platform"
	"github.com/smartcontractkit/beamline/vcs"
)

// Status is the outcome of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// StageResult is the outcome of one stage.
type StageResult struct {
	Stage    Stage     `json:"stage" yaml:"stage"`
	Success  bool      `json:"success" yaml:"success"`
	Message  string    `json:"message" yaml:"message"`
	ReportID string    `json:"reportID" yaml:"reportID"`
	Started  time.Time `json:"started" yaml:"started"`
	Finished time.Time `json:"finished" yaml:"finished"`
}

// Run is the record of one pipeline execution.
type Run struct {
	ID          string                 `json:"id" yaml:"id"`
	Input       Input                  `json:"input" yaml:"input"`
	Function    string                 `json:"function" yaml:"function"`
	Status      Status                 `json:"status" yaml:"status"`
	Commit      string                 `json:"commit,omitempty" yaml:"commit,omitempty"`
	Digest      string                 `json:"digest,omitempty" yaml:"digest,omitempty"`
	Version     platform.Version       `json:"version,omitempty" yaml:"version,omitempty"`
	Ring        alias.Ring             `json:"ring" yaml:"ring"`
	PullRequest *vcs.PullRequestResult `json:"pullRequest,omitempty" yaml:"pullRequest,omitempty"`
	Error       string                 `json:"error,omitempty" yaml:"error,omitempty"`
	Results     []StageResult          `json:"results" yaml:"results"`
	Started     time.Time              `json:"started" yaml:"started"`
	Finished    time.Time              `json:"finished" yaml:"finished"`
}

func newRun(in Input) *Run {
	return &Run{
		ID:       in.RunID,
		Input:    in,
		Function: in.FunctionName(),
		Status:   StatusRunning,
		Started:  time.Now(),
	}
}

// LastStage returns the last stage that executed and whether any did.
func (r *Run) LastStage() (Stage, bool) {
	if len(r.Results) == 0 {
		return "", false
	}

	return r.Results[len(r.Results)-1].Stage, true
}

func (r *Run) finish(st *State, err error) {
	r.Finished = time.Now()
	r.Commit = st.Commit
	r.Version = st.Version
	r.Ring = st.Promotion.After
	r.PullRequest = st.PullRequest
	if st.Artifact != nil {
		r.Digest = st.Artifact.Digest.String()
	}

	if err != nil {
		r.Status = StatusFailed
		r.Error = err.Error()

		return
	}
	r.Status = StatusSucceeded
}
