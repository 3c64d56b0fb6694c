package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/coiter/pkg/cli"
	"github.com/haivivi/coiter/pkg/tunnel"
)

const serverUsage = "wstunnel server <tcpport> <url>"

var serverCmd = &cobra.Command{
	Use:   "server <tcpport> <url>",
	Short: "Dial a client endpoint and connect it to a local TCP port",
	Long: `Dial the websocket endpoint printed by 'wstunnel client' and connect every
forwarded connection to localhost:<tcpport>. The connection is re-established
after reconnect_delay whenever it drops.`,
	RunE: runServer,
}

var reconnectDelay time.Duration

func init() {
	serverCmd.Flags().DurationVar(&reconnectDelay, "reconnect-delay", 0, "pause between reconnects (overrides reconnect_delay)")
}

func runServer(cmd *cobra.Command, args []string) error {
	if len(args) != 2 {
		return usageError(serverUsage)
	}
	port, err := parsePort(args[0])
	if err != nil {
		usageError(serverUsage)
		return err
	}
	if _, err := tunnel.WebSocketURL(args[1]); err != nil {
		usageError(serverUsage)
		return err
	}
	delay, err := globalConfig.Delay()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("reconnect-delay") {
		delay = reconnectDelay
	}

	server := &tunnel.Server{
		URL:            args[1],
		TCPAddr:        hostPort("localhost", port),
		ReconnectDelay: delay,
		ReadBuffer:     globalConfig.ReadBuffer,
		OnSession: func(s tunnel.Stats) {
			printer.Info("session closed after %s: %d connections (%s in, %s out)",
				cli.FormatDuration(s.Uptime), s.Streams, cli.FormatBytes(s.BytesIn), cli.FormatBytes(s.BytesOut))
		},
	}

	retry := delay
	if retry <= 0 {
		retry = tunnel.DefaultReconnectDelay
	}
	server.OnError = func(err error) {
		printer.Error("%v; retrying in %s", err, cli.FormatDuration(retry))
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	printer.Field("Forwarding", server.TCPAddr)
	return server.Run(ctx)
}
