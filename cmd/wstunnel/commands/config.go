package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haivivi/coiter/pkg/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change the configuration file",
}

var configFormat string

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.Output(globalConfig, cli.OutputOptions{Format: cli.OutputFormat(configFormat)})
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value and save the file",
	Long: fmt.Sprintf(`Set a configuration value and save the file.

Keys: %s. An empty value restores the default.`, strings.Join(cli.Keys, ", ")),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := globalConfig.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := globalConfig.Save(); err != nil {
			return err
		}
		printer.Success("%s saved to %s", args[0], globalConfig.Path())
		return nil
	},
}

func init() {
	configShowCmd.Flags().StringVar(&configFormat, "format", "yaml", "output format (yaml, json)")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
