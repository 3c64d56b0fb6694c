package commands

import (
	"log/slog"
	"net"

	"github.com/spf13/cobra"

	"github.com/haivivi/coiter/pkg/cli"
	"github.com/haivivi/coiter/pkg/tunnel"
)

const clientUsage = "wstunnel client http://localhost:<httpport>/<path> <tcpport>"

var clientCmd = &cobra.Command{
	Use:   "client <url> <tcpport>",
	Short: "Serve the websocket endpoint and forward a local TCP port",
	Long: `Serve the websocket endpoint at <url> and, while a server is attached,
accept TCP connections on <tcpport>.

Only http://localhost URLs are accepted. Without a path, a random one is
generated; pass the printed endpoint to 'wstunnel server'.`,
	RunE: runClient,
}

var listenHost string

func init() {
	clientCmd.Flags().StringVar(&listenHost, "listen-host", "", "bind host (overrides listen_host)")
}

func runClient(cmd *cobra.Command, args []string) error {
	if len(args) != 2 {
		return usageError(clientUsage)
	}
	ep, err := tunnel.ParseEndpoint(args[0])
	if err != nil {
		usageError(clientUsage)
		return err
	}
	port, err := parsePort(args[1])
	if err != nil {
		usageError(clientUsage)
		return err
	}

	host := globalConfig.ListenHost
	if listenHost != "" {
		host = listenHost
	}
	client := &tunnel.Client{
		TCPAddr:    hostPort(host, port),
		Path:       ep.Path,
		ReadBuffer: globalConfig.ReadBuffer,
		OnAttach: func(addr net.Addr) {
			printer.Success("server attached, accepting connections on %s", addr)
		},
		OnDetach: func(s tunnel.Stats) {
			printer.Info("server detached after %s: %d connections (%s in, %s out)",
				cli.FormatDuration(s.Uptime), s.Streams, cli.FormatBytes(s.BytesIn), cli.FormatBytes(s.BytesOut))
		},
		OnRefuse: func(remote string) {
			printer.Warning("refused a second server from %s", remote)
		},
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	printer.Field("Endpoint", ep.String())
	slog.Debug("wstunnel/client: starting", "listen", hostPort(host, ep.Port), "tcp", client.TCPAddr)
	return client.ListenAndServe(ctx, hostPort(host, ep.Port))
}
