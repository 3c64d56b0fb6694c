// Package cli provides the configuration, output and terminal styling shared
// by the wstunnel commands.
//
// Configuration is a YAML file, by default ~/.wstunnel/config.yaml. A missing
// file yields the defaults:
//
//	cfg, err := cli.LoadConfig("")
//	delay, err := cfg.Delay()
//
// Structured results go through Output:
//
//	cli.Output(info, cli.OutputOptions{Format: cli.FormatJSON})
package cli
