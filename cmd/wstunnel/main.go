// Package main is the entry point for wstunnel.
//
// Usage:
//
//	wstunnel client http://localhost:<httpport>/<path> <tcpport>
//	wstunnel server <tcpport> <url>
//
// The client accepts TCP connections on <tcpport> and forwards them over a
// websocket served at the given URL. The server dials that URL and connects
// each forwarded connection to localhost:<tcpport>.
package main

import (
	"fmt"
	"os"

	"github.com/haivivi/coiter/cmd/wstunnel/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
