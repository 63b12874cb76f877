// Package cli provides the base of the beamline command line application: the root command,
// the logger and command registration.
package cli

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/smartcontractkit/beamline/pkg/logger"
)

// Base holds the root command and the logger shared by every subcommand.
type Base struct {
	Log logger.Logger

	rootCmd *cobra.Command
}

// NewBase creates a new Base instance.
func NewBase(log logger.Logger, rootCmd *cobra.Command) *Base {
	return &Base{
		Log:     log,
		rootCmd: rootCmd,
	}
}

// AddCommand adds one or more commands to the root command.
func (base *Base) AddCommand(cmds ...*cobra.Command) {
	base.rootCmd.AddCommand(cmds...)
}

// Run executes the root command.
func (base *Base) Run() error {
	return base.rootCmd.Execute()
}

// RootCmd returns the root command.
func (base *Base) RootCmd() *cobra.Command {
	return base.rootCmd
}

// NewLogger creates the application logger. LOG_FORMAT=console or human selects the
// colored console encoder, anything else logs JSON.
func NewLogger(level zapcore.Level) (logger.Logger, error) {
	if f := os.Getenv("LOG_FORMAT"); f == "console" || f == "human" {
		return logger.NewWith(func(config *zap.Config) {
			config.Level.SetLevel(level)
			config.Development = true
			config.DisableStacktrace = true
			config.Encoding = "console"
			config.EncoderConfig = zap.NewDevelopmentEncoderConfig()
			config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		})
	}

	c := logger.Config{Level: level}

	return c.New()
}
