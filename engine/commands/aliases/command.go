package aliases

import (
	"errors"
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/smartcontractkit/beamline/alias"
	"github.com/smartcontractkit/beamline/engine/commands/flags"
	"github.com/smartcontractkit/beamline/engine/commands/text"
	"github.com/smartcontractkit/beamline/pkg/logger"
)

var (
	aliasesShort = "Show the stable aliases of a function"

	aliasesLong = text.LongDesc(`
		Prints the versions CURR_STABLE and LAST_STABLE point at. LAST_STABLE is the rollback
		target of the current production version.

		A function showing only one of the two aliases was left behind by a partially applied
		promotion and needs manual repair before the next release.
	`)

	aliasesExample = text.Examples(`
		# Show the ring of alice's orders function
		beamline aliases --function orders-alice
	`)
)

// Config holds the configuration for the aliases command.
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
		return errors.New("aliases.Config: missing required fields: " + strings.Join(missing, ", "))
	}

	return nil
}

// deps returns the Deps with defaults applied.
func (c *Config) deps() *Deps {
	c.Deps.applyDefaults()

	return &c.Deps
}

type aliasesFlags struct {
	config   string
	function string
}

// NewCommand creates the aliases command.
func NewCommand(cfg Config) (*cobra.Command, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.deps()

	cmd := &cobra.Command{
		Use:     "aliases",
		Short:   aliasesShort,
		Long:    aliasesLong,
		Example: aliasesExample,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := aliasesFlags{
				config:   flags.MustString(cmd.Flags().GetString("config")),
				function: flags.MustString(cmd.Flags().GetString("function")),
			}

			return runAliases(cmd, cfg, f)
		},
	}

	flags.Config(cmd)
	flags.Function(cmd)

	return cmd, nil
}

// runAliases executes the aliases command logic.
func runAliases(cmd *cobra.Command, cfg Config, f aliasesFlags) error {
	deps := cfg.deps()

	bcfg, err := deps.ConfigLoader(f.config)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	p, err := deps.PlatformLoader(bcfg, cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to load platform: %w", err)
	}

	ring, err := alias.NewManager(p, cfg.Logger).Read(cmd.Context(), f.function)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"Alias", "Version"})
	table.AppendBulk([][]string{
		{alias.CurrentStable, display(ring.Current.String())},
		{alias.PreviousStable, display(ring.Previous.String())},
	})
	table.Render()

	if err := ring.Validate(); err != nil {
		cmd.PrintErrf("Warning: %v\n", err)
	}

	return nil
}

func display(v string) string {
	if v == "" {
		return "-"
	}

	return v
}
