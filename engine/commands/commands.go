// Package commands assembles the beamline CLI commands.
//
// Commands can be built through the Commands factory, which shares one logger:
//
//	cmds := commands.New(lggr)
//	runCmd, err := cmds.Run()
//
// or directly through the command packages, which accept injected dependencies for testing:
//
//	cmd, err := run.NewCommand(run.Config{
//	    Logger: lggr,
//	    Deps:   run.Deps{...},
//	})
package commands

import (
	"github.com/spf13/cobra"

	"github.com/smartcontractkit/beamline/engine/commands/aliases"
	"github.com/smartcontractkit/beamline/engine/commands/run"
	"github.com/smartcontractkit/beamline/pkg/logger"
)

// Commands provides a factory for creating CLI commands with shared configuration.
type Commands struct {
	lggr logger.Logger
}

// New creates a new Commands factory with the given logger.
func New(lggr logger.Logger) *Commands {
	return &Commands{lggr: lggr}
}

// Run creates the run command.
func (c *Commands) Run() (*cobra.Command, error) {
	return run.NewCommand(run.Config{Logger: c.lggr})
}

// Aliases creates the aliases command.
func (c *Commands) Aliases() (*cobra.Command, error) {
	return aliases.NewCommand(aliases.Config{Logger: c.lggr})
}

// All creates every command.
func (c *Commands) All() ([]*cobra.Command, error) {
	runCmd, err := c.Run()
	if err != nil {
		return nil, err
	}
	aliasesCmd, err := c.Aliases()
	if err != nil {
		return nil, err
	}

	return []*cobra.Command{runCmd, aliasesCmd}, nil
}
