// Package flags provides reusable flag helpers for CLI commands.
//
// Only flags shared by several commands belong here. Command specific flags are defined in
// the command file.
package flags

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// DefaultConfigPath is read when --config is not given.
const DefaultConfigPath = "beamline.yml"

// MustString returns the string value, ignoring the error.
// Safe to use with registered flags where GetString cannot fail.
func MustString(s string, _ error) string { return s }

// MustBool returns the bool value, ignoring the error.
// Safe to use with registered flags where GetBool cannot fail.
func MustBool(b bool, _ error) bool { return b }

// Config adds the --config/-c flag pointing at the YAML configuration file.
// A missing file is not an error: configuration then comes from the environment.
func Config(cmd *cobra.Command) {
	cmd.Flags().StringP("config", "c", DefaultConfigPath, "Path to the configuration file")
}

// Function adds the required --function/-f flag.
// Also accepts the --function-name spelling.
func Function(cmd *cobra.Command) {
	cmd.Flags().StringP("function", "f", "", "Function name (required)")
	_ = cmd.MarkFlagRequired("function")

	existingNormalize := cmd.Flags().GetNormalizeFunc()
	cmd.Flags().SetNormalizeFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		if name == "function-name" {
			return pflag.NormalizedName("function")
		}
		if existingNormalize != nil {
			return existingNormalize(f, name)
		}

		return pflag.NormalizedName(name)
	})
}
