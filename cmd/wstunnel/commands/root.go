package commands

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/haivivi/coiter/pkg/cli"
)

var (
	// Global flags
	verbose    bool
	cfgFile    string
	readBuffer int

	globalConfig *cli.Config
	printer      = cli.NewPrinter()
)

var rootCmd = &cobra.Command{
	Use:   "wstunnel",
	Short: "Tunnel TCP connections over a websocket",
	Long: `wstunnel - forward TCP connections through a single websocket.

The client side serves a websocket endpoint on localhost and accepts TCP
connections while a server is attached. The server side dials the endpoint
and connects every forwarded connection to a local port.

Settings that are not arguments come from ~/.wstunnel/config.yaml:

  reconnect_delay: 1s     # pause between server reconnects
  read_buffer: 32768      # chunk size for local reads
  listen_host: localhost  # client bind host

Use 'wstunnel config set <key> <value>' to change them.

Examples:
  # Expose local port 5432 through an endpoint on port 8080
  wstunnel client http://localhost:8080/ 5432

  # On the other side, connect the endpoint to local port 5432
  wstunnel server 5432 http://localhost:8080/3kHf0QwMSaCg6e1feA`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.wstunnel/config.yaml)")
	rootCmd.PersistentFlags().IntVar(&readBuffer, "read-buffer", 0, "chunk size for local reads (overrides read_buffer)")

	rootCmd.AddCommand(clientCmd)
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	cfg, err := cli.LoadConfig(cfgFile)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("read-buffer") {
		if readBuffer < 0 {
			return fmt.Errorf("--read-buffer must not be negative, got %d", readBuffer)
		}
		cfg.ReadBuffer = readBuffer
	}
	globalConfig = cfg
	slog.Debug("wstunnel: config loaded", "path", cfg.Path())
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

// usageError prints the usage line of a command and returns the error cobra
// reports.
func usageError(usage string) error {
	fmt.Fprintln(os.Stderr, "Usage: "+usage)
	return fmt.Errorf("invalid arguments")
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	return port, nil
}

func hostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
