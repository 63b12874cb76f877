package run

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/smartcontractkit/beamline/engine/commands/flags"
	"github.com/smartcontractkit/beamline/engine/commands/text"
	"github.com/smartcontractkit/beamline/pkg/logger"
	"github.com/smartcontractkit/beamline/release"
	"github.com/smartcontractkit/beamline/vcs"
)

var (
	runShort = "Release a function"

	runLong = text.LongDesc(`
		Fetches the repository, builds and packages it, deploys the package to the function
		<project>-<user-id>, verifies the stored code digest, smoke tests the new code,
		publishes a version, moves the CURR_STABLE and LAST_STABLE aliases and smoke tests
		the promoted alias. When every stage passes a pull request is opened from the org's
		copy of the repository.

		The first failing stage halts the run and the command exits non-zero.
	`)

	runExample = text.Examples(`
		# Release the orders service for alice
		beamline run --repo acme/orders --project orders --user-id alice --org alice-fork

		# Rehearse without touching the cloud and keep the run record
		beamline run --repo acme/orders --project orders --user-id alice --org alice-fork --dry-run --report-out run.yml
	`)
)

// Config holds the configuration for the run command.
type Config struct {
	// Logger is the logger to use for command output. Required.
	Logger logger.Logger

	// Deps holds optional dependencies that can be overridden.
	// If fields are nil, production defaults are used.
	Deps Deps
}

// Validate checks that all required configuration fields are set.
func (c Config) Validate() error {
	var missing []string

	if c.Logger == nil {
		missing = append(missing, "Logger")
	}

	if len(missing) > 0 {
		return errors.New("run.Config: missing required fields: " + strings.Join(missing, ", "))
	}

	return nil
}

// deps returns the Deps with defaults applied.
func (c *Config) deps() *Deps {
	c.Deps.applyDefaults()

	return &c.Deps
}

type runFlags struct {
	config    string
	repo      string
	project   string
	userID    string
	org       string
	runID     string
	reportOut string
	dryRun    bool
}

// NewCommand creates the run command.
func NewCommand(cfg Config) (*cobra.Command, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.deps()

	cmd := &cobra.Command{
		Use:     "run",
		Short:   runShort,
		Long:    runLong,
		Example: runExample,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := runFlags{
				config:    flags.MustString(cmd.Flags().GetString("config")),
				repo:      flags.MustString(cmd.Flags().GetString("repo")),
				project:   flags.MustString(cmd.Flags().GetString("project")),
				userID:    flags.MustString(cmd.Flags().GetString("user-id")),
				org:       flags.MustString(cmd.Flags().GetString("org")),
				runID:     flags.MustString(cmd.Flags().GetString("run-id")),
				reportOut: flags.MustString(cmd.Flags().GetString("report-out")),
				dryRun:    flags.MustBool(cmd.Flags().GetBool("dry-run")),
			}

			return runRelease(cmd, cfg, f)
		},
	}

	flags.Config(cmd)

	cmd.Flags().StringP("repo", "r", "", "Source repository as owner/name (required)")
	cmd.Flags().StringP("project", "p", "", "Project name (required)")
	cmd.Flags().StringP("user-id", "u", "", "Identity the function is released for (required)")
	cmd.Flags().String("org", "", "Organization owning the pull request branch (required)")
	cmd.Flags().String("run-id", "", "Unique run id (default: generated)")
	cmd.Flags().String("report-out", "", "Write the run record to this file (.json, .yaml or .yml)")
	cmd.Flags().Bool("dry-run", false, "Use an in-memory platform, storage and pull request integrator")
	_ = cmd.MarkFlagRequired("repo")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("user-id")
	_ = cmd.MarkFlagRequired("org")

	return cmd, nil
}

// runRelease executes the run command logic.
func runRelease(cmd *cobra.Command, cfg Config, f runFlags) error {
	ctx := cmd.Context()
	deps := cfg.deps()

	// --- Load

	repo, err := vcs.ParseRepository(f.repo)
	if err != nil {
		return err
	}

	runID := f.runID
	if runID == "" {
		runID = deps.RunID()
	}

	in := release.Input{
		Repository: repo,
		Project:    f.project,
		Identity:   f.userID,
		Org:        f.org,
		RunID:      runID,
	}
	if err = in.Validate(); err != nil {
		return err
	}

	bcfg, err := deps.ConfigLoader(f.config)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err = bcfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	releaser, err := deps.ReleaserLoader(ctx, bcfg, f.dryRun, cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to prepare release: %w", err)
	}

	// --- Execute

	cmd.Printf("Releasing %s from %s (run %s)\n", in.FunctionName(), repo, runID)

	run, runErr := releaser.Run(ctx, in)
	if run != nil {
		renderResults(cmd.OutOrStdout(), run)

		if f.reportOut != "" {
			if err := run.WriteFile(f.reportOut); err != nil {
				cfg.Logger.Errorw("Failed to write run record", "path", f.reportOut, "error", err)
			} else {
				cmd.Printf("Run record written to %s\n", f.reportOut)
			}
		}
	}

	if runErr != nil {
		return runErr
	}

	cmd.Printf("Released %s version %s\n", run.Function, run.Version)

	return nil
}

func renderResults(w io.Writer, run *release.Run) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Stage", "Result", "Message"})
	table.SetAutoWrapText(false)
	table.SetBorders(tablewriter.Border{
		Left:   false,
		Right:  false,
		Top:    true,
		Bottom: true,
	})

	for _, r := range run.Results {
		result := "ok"
		if !r.Success {
			result = "FAILED"
		}
		table.Append([]string{string(r.Stage), result, firstLine(r.Message)})
	}
	table.Render()
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")

	return line
}
