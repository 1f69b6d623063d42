package cmd

import (
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration utilities",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as TOML",
	Long: `Loads configuration from defaults, the config file, environment and
flags (respecting precedence) and prints the merged result to stdout.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return toml.NewEncoder(os.Stdout).Encode(globalConfig)
	},
}
