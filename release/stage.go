package release

import (
	"github.com/Masterminds/semver/v3"
)

// Stage names one step of a release.
type Stage string

const (
	StageSetup             Stage = "Setup"
	StageFetch             Stage = "Fetch"
	StageBuild             Stage = "Build"
	StagePackage           Stage = "Package"
	StageUpload            Stage = "Upload"
	StageResolve           Stage = "Resolve"
	StageDeploy            Stage = "Deploy"
	StageVerifyHash        Stage = "VerifyHash"
	StageConfigure         Stage = "Configure"
	StageSmokeTestLatest   Stage = "SmokeTestLatest"
	StagePublish           Stage = "Publish"
	StagePromote           Stage = "Promote"
	StageSmokeTestPromoted Stage = "SmokeTestPromoted"
	StageIntegrate         Stage = "Integrate"
)

// Stages is the fixed execution order. Every stage consumes the output of the one before it.
var Stages = []Stage{
	StageSetup,
	StageFetch,
	StageBuild,
	StagePackage,
	StageUpload,
	StageResolve,
	StageDeploy,
	StageVerifyHash,
	StageConfigure,
	StageSmokeTestLatest,
	StagePublish,
	StagePromote,
	StageSmokeTestPromoted,
	StageIntegrate,
}

// Definition is the metadata of a stage recorded in reports.
type Definition struct {
	Stage       Stage           `json:"stage" yaml:"stage"`
	Version     *semver.Version `json:"version" yaml:"version"`
	Description string          `json:"description" yaml:"description"`
}

var definitionVersion = semver.MustParse("1.0.0")

var descriptions = map[Stage]string{
	StageSetup:             "Acquire a clean workspace and announce the run",
	StageFetch:             "Clone the source repository",
	StageBuild:             "Install dependencies, lint and test",
	StagePackage:           "Package the deployable files",
	StageUpload:            "Upload the package to object storage",
	StageResolve:           "Decide between creating and updating the function",
	StageDeploy:            "Create the function or replace its code",
	StageVerifyHash:        "Compare the stored code digest with the local digest",
	StageConfigure:         "Apply the function configuration",
	StageSmokeTestLatest:   "Invoke the unpublished code",
	StagePublish:           "Publish an immutable version",
	StagePromote:           "Move the stable aliases to the new version",
	StageSmokeTestPromoted: "Invoke the promoted alias",
	StageIntegrate:         "Open the pull request",
}

// DefinitionOf returns the report definition of s.
func DefinitionOf(s Stage) Definition {
	return Definition{
		Stage:       s,
		Version:     definitionVersion,
		Description: descriptions[s],
	}
}
