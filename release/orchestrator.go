// Package release drives a function through the gated release pipeline. Stages run strictly
// in order, every transition is announced through the notifier and the first failure halts
// the run.
package release

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/smartcontractkit/beamline/alias"
	"github.com/smartcontractkit/beamline/artifact"
	"github.com/smartcontractkit/beamline/artifact/store"
	"github.com/smartcontractkit/beamline/build"
	"github.com/smartcontractkit/beamline/deploy"
	"github.com/smartcontractkit/beamline/internal/workspace"
	"github.com/smartcontractkit/beamline/notify"
	"github.com/smartcontractkit/beamline/pkg/logger"
	"github.com/smartcontractkit/beamline/platform"
	"github.com/smartcontractkit/beamline/smoketest"
	"github.com/smartcontractkit/beamline/vcs"
)

// Cloner checks out a repository into dir and returns the fetched commit.
type Cloner interface {
	Clone(ctx context.Context, repo vcs.Repository, dir string) (string, error)
}

// Builder runs the build steps in dir.
type Builder interface {
	Run(ctx context.Context, dir string, steps []build.Step) error
}

var (
	_ Cloner  = (*vcs.Cloner)(nil)
	_ Builder = (*build.Runner)(nil)
)

// Deps are the collaborators of the orchestrator.
type Deps struct {
	Cloner     Cloner
	Builder    Builder
	Store      store.Store
	Platform   platform.Platform
	Integrator vcs.Integrator
	// Sink receives stage notifications. Nil logs only.
	Sink notify.Sink
	// Reporter records stage reports. Nil keeps them in memory.
	Reporter Reporter
}

func (d Deps) validate() error {
	var errs []error
	if d.Cloner == nil {
		errs = append(errs, errors.New("cloner is required"))
	}
	if d.Builder == nil {
		errs = append(errs, errors.New("builder is required"))
	}
	if d.Store == nil {
		errs = append(errs, errors.New("store is required"))
	}
	if d.Platform == nil {
		errs = append(errs, errors.New("platform is required"))
	}
	if d.Integrator == nil {
		errs = append(errs, errors.New("integrator is required"))
	}

	return errors.Join(errs...)
}

// Options are fixed for every run of an orchestrator.
type Options struct {
	// Function is the configuration applied to the released function.
	Function platform.Configuration
	// Includes are the paths, relative to the checkout, that go into the package.
	Includes []string
	// BuildSteps run in the checkout during the Build stage.
	BuildSteps []build.Step
	// Channel is the storage key prefix of packages.
	Channel string
	// WorkspaceRoot holds one scratch directory per run.
	WorkspaceRoot string
	// SmokePayload is sent by both smoke tests. Nil sends smoketest.DefaultPayload.
	SmokePayload []byte
	// Base is the pull request target branch.
	Base string
}

// Orchestrator executes release runs.
type Orchestrator struct {
	deps     Deps
	opts     Options
	lggr     logger.Logger
	reporter Reporter
	notifier *notify.Notifier
	resolver *deploy.Resolver
	deployer *deploy.Deployer
	gate     *smoketest.Gate
	aliases  *alias.Manager
}

// New creates an Orchestrator.
func New(deps Deps, opts Options, lggr logger.Logger) (*Orchestrator, error) {
	if err := deps.validate(); err != nil {
		return nil, fmt.Errorf("invalid orchestrator dependencies: %w", err)
	}
	if opts.WorkspaceRoot == "" {
		return nil, errors.New("workspace root is required")
	}
	if len(opts.Includes) == 0 {
		return nil, errors.New("at least one include path is required")
	}

	reporter := deps.Reporter
	if reporter == nil {
		reporter = NewMemoryReporter()
	}

	return &Orchestrator{
		deps:     deps,
		opts:     opts,
		lggr:     lggr,
		reporter: reporter,
		notifier: notify.NewNotifier(deps.Sink, lggr),
		resolver: deploy.NewResolver(deps.Platform, lggr),
		deployer: deploy.NewDeployer(deps.Platform, lggr),
		gate:     smoketest.NewGate(deps.Platform, opts.SmokePayload, lggr),
		aliases:  alias.NewManager(deps.Platform, lggr),
	}, nil
}

// Reporter returns the reporter stage reports are recorded in.
func (o *Orchestrator) Reporter() Reporter {
	return o.reporter
}

type stageFunc func(ctx context.Context, st *State) (string, error)

func (o *Orchestrator) stageFuncs() map[Stage]stageFunc {
	return map[Stage]stageFunc{
		StageSetup:             o.setup,
		StageFetch:             o.fetch,
		StageBuild:             o.build,
		StagePackage:           o.pack,
		StageUpload:            o.upload,
		StageResolve:           o.resolve,
		StageDeploy:            o.deploy,
		StageVerifyHash:        o.verifyHash,
		StageConfigure:         o.configure,
		StageSmokeTestLatest:   o.smokeTestLatest,
		StagePublish:           o.publish,
		StagePromote:           o.promote,
		StageSmokeTestPromoted: o.smokeTestPromoted,
		StageIntegrate:         o.integrate,
	}
}

// Run executes every stage for in. It returns the run record together with a *StageError
// naming the halting stage when the run fails. The workspace is released in both cases.
func (o *Orchestrator) Run(ctx context.Context, in Input) (*Run, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("invalid release input: %w", err)
	}

	run := newRun(in)
	st := &State{Input: in}
	subject := notify.Subject(in.Project, in.RunID)
	lggr := o.lggr.With("runID", in.RunID, "function", in.FunctionName())
	funcs := o.stageFuncs()

	for _, s := range Stages {
		started := time.Now()
		lggr.Infow("Stage started", "stage", s)

		msg, err := funcs[s](ctx, st)

		report := NewReport(in.RunID, s, msg, err)
		if rerr := o.reporter.AddReport(report); rerr != nil {
			lggr.Warnw("Failed to record stage report", "stage", s, "error", rerr)
		}

		if err != nil {
			serr := &StageError{Stage: s, Message: err.Error(), Err: err}
			run.Results = append(run.Results, StageResult{
				Stage: s, Message: serr.Message, ReportID: report.ID, Started: started, Finished: time.Now(),
			})
			lggr.Errorw("Stage failed", "stage", s, "error", err)

			o.notifier.Notify(ctx, subject, fmt.Sprintf("%s failed: %s", s, serr.Message))
			o.cleanup(lggr, st)
			run.finish(st, serr)

			return run, serr
		}

		run.Results = append(run.Results, StageResult{
			Stage: s, Success: true, Message: msg, ReportID: report.ID, Started: started, Finished: time.Now(),
		})
		lggr.Infow("Stage completed", "stage", s, "message", msg)

		o.notifier.Notify(ctx, subject, fmt.Sprintf("%s: %s", s, msg))
	}

	o.cleanup(lggr, st)
	run.finish(st, nil)

	return run, nil
}

func (o *Orchestrator) cleanup(lggr logger.Logger, st *State) {
	if st.Workspace == nil {
		return
	}
	if err := st.Workspace.Release(); err != nil {
		lggr.Warnw("Failed to release workspace", "root", st.Workspace.Root, "error", err)
	}
}

func (o *Orchestrator) setup(_ context.Context, st *State) (string, error) {
	ws, err := workspace.Acquire(filepath.Join(o.opts.WorkspaceRoot, st.Input.RunID))
	if err != nil {
		return "", err
	}
	st.Workspace = ws

	return fmt.Sprintf("Release of %s started\nGit URL: %s\nRun ID: %s",
		st.Input.FunctionName(), st.Input.Repository, st.Input.RunID), nil
}

func (o *Orchestrator) fetch(ctx context.Context, st *State) (string, error) {
	commit, err := o.deps.Cloner.Clone(ctx, st.Input.Repository, st.Workspace.GitDir())
	if err != nil {
		return "", err
	}
	st.Commit = commit

	return fmt.Sprintf("Fetched %s at %s", st.Input.Repository, commit), nil
}

func (o *Orchestrator) build(ctx context.Context, st *State) (string, error) {
	if err := o.deps.Builder.Run(ctx, st.Workspace.GitDir(), o.opts.BuildSteps); err != nil {
		return "", err
	}

	return "Build, lint and tests passed", nil
}

func (o *Orchestrator) pack(_ context.Context, st *State) (string, error) {
	name := st.Input.Project + ".zip"
	a, err := artifact.Package(st.Workspace.GitDir(), o.opts.Includes, name,
		filepath.Join(st.Workspace.BuildDir(), name))
	if err != nil {
		return "", err
	}
	st.Artifact = a

	return fmt.Sprintf("Packaged %s (%d bytes, sha256 %s)", a.Name, a.Size(), a.Digest), nil
}

func (o *Orchestrator) upload(ctx context.Context, st *State) (string, error) {
	key := store.Key(o.opts.Channel, st.Input.Project, st.Input.Identity)
	loc, err := o.deps.Store.Put(ctx, key, st.Artifact)
	if err != nil {
		return "", err
	}
	st.Artifact.Location = loc

	return fmt.Sprintf("Uploaded package to %s/%s", loc.Bucket, loc.Key), nil
}

func (o *Orchestrator) resolve(ctx context.Context, st *State) (string, error) {
	res, err := o.resolver.Resolve(ctx, st.Input.FunctionName())
	if err != nil {
		return "", err
	}
	st.Resolution = res

	if res.Path == deploy.PathCreate {
		return fmt.Sprintf("Function %s not found, it will be created", st.Input.FunctionName()), nil
	}

	return fmt.Sprintf("Function %s exists, its code will be updated", st.Input.FunctionName()), nil
}

func (o *Orchestrator) deploy(ctx context.Context, st *State) (string, error) {
	if err := o.deployer.Deploy(ctx, st.Resolution, st.Input.FunctionName(), st.Artifact.Location, o.opts.Function); err != nil {
		return "", err
	}

	if st.Resolution.Path == deploy.PathCreate {
		return "Function code & configuration deployed", nil
	}

	return "Function code updated", nil
}

func (o *Orchestrator) verifyHash(ctx context.Context, st *State) (string, error) {
	reported, err := o.deployer.ReportedDigest(ctx, st.Input.FunctionName())
	if err != nil {
		return "", err
	}
	if err := st.Artifact.Verify(reported); err != nil {
		return "", err
	}
	st.Artifact.Discard()

	return "Code digest verified: " + reported, nil
}

func (o *Orchestrator) configure(ctx context.Context, st *State) (string, error) {
	if err := o.deployer.Configure(ctx, st.Input.FunctionName(), o.opts.Function); err != nil {
		return "", err
	}

	return "Function configuration updated", nil
}

func (o *Orchestrator) smokeTestLatest(ctx context.Context, st *State) (string, error) {
	if err := o.gate.Check(ctx, st.Input.FunctionName(), platform.LatestQualifier, smoketest.PositionLatest); err != nil {
		return "", err
	}

	return "Smoke test passed on " + platform.LatestQualifier, nil
}

func (o *Orchestrator) publish(ctx context.Context, st *State) (string, error) {
	name := st.Input.FunctionName()
	v, err := o.deps.Platform.PublishVersion(ctx, name, st.Artifact.Digest.String())
	if err != nil {
		return "", &deploy.DeployError{Function: name, Op: "publish", Err: err}
	}
	st.Version = v

	return "Published version " + v.String(), nil
}

func (o *Orchestrator) promote(ctx context.Context, st *State) (string, error) {
	p, err := o.aliases.Promote(ctx, st.Input.FunctionName(), st.Version)
	if err != nil {
		return "", err
	}
	st.Promotion = p

	return p.Message(), nil
}

func (o *Orchestrator) smokeTestPromoted(ctx context.Context, st *State) (string, error) {
	if err := o.gate.Check(ctx, st.Input.FunctionName(), alias.CurrentStable, smoketest.PositionPromoted); err != nil {
		return "", err
	}

	return fmt.Sprintf("Smoke test passed on %s (version %s)", alias.CurrentStable, st.Version), nil
}

func (o *Orchestrator) integrate(ctx context.Context, st *State) (string, error) {
	res, err := o.deps.Integrator.OpenPullRequest(ctx, vcs.PullRequest{
		Repository: st.Input.Repository,
		Org:        st.Input.Org,
		Base:       o.opts.Base,
		Commit:     st.Commit,
		Committer:  st.Input.Identity,
		RunID:      st.Input.RunID,
	})
	if err != nil {
		return "", err
	}
	if res == nil {
		return "", errors.New("integrator returned no pull request")
	}
	st.PullRequest = res

	return fmt.Sprintf("Pull request #%d opened: %s", res.Number, res.URL), nil
}
