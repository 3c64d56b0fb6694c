package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haivivi/coiter/cmd/wstunnel/internal/build"
	"github.com/haivivi/coiter/pkg/cli"
)

var versionFormat string

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		if versionFormat == "" {
			fmt.Println(build.String())
			if verbose {
				fmt.Printf("  config: %s\n", globalConfig.Path())
			}
			return nil
		}
		return cli.Output(build.Get(), cli.OutputOptions{Format: cli.OutputFormat(versionFormat)})
	},
}

func init() {
	versionCmd.Flags().StringVar(&versionFormat, "format", "", "output format (yaml, json)")
}
