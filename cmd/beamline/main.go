// Command beamline releases a function through the gated release pipeline.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/smartcontractkit/beamline/engine/cli"
	"github.com/smartcontractkit/beamline/engine/commands"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	level := zapcore.InfoLevel
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if err := level.Set(v); err != nil {
			return fmt.Errorf("invalid LOG_LEVEL %q: %w", v, err)
		}
	}

	lggr, err := cli.NewLogger(level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = lggr.Sync() }()

	base := cli.NewBase(lggr, &cobra.Command{
		Use:           "beamline",
		Short:         "Gated release pipeline for a single function",
		SilenceUsage:  true,
		SilenceErrors: true,
	})

	cmds, err := commands.New(lggr).All()
	if err != nil {
		return err
	}
	base.AddCommand(cmds...)

	return base.Run()
}
