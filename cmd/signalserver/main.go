// Command signalserver runs the rendez-vous server nodes connect to
// for WebRTC signalling. It never carries application traffic.
package main

import (
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/signalmesh/core/internal/logging"
	"github.com/signalmesh/core/internal/signalserver"
	"github.com/signalmesh/core/internal/wsconn/gorillaws"
)

var version = "dev"

var (
	listenAddr string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "signalserver",
	Short: "Run the signalling (rendez-vous) server",
	Run:   runServe,
}

func init() {
	rootCmd.Flags().StringVar(&listenAddr, "listen", ":8787", "address to bind the WebSocket listener on")
	rootCmd.Flags().BoolVarP(&debug, "verbose", "v", false, "enable debug logging")
}

func runServe(cmd *cobra.Command, args []string) {
	if debug {
		pterm.EnableDebugMessages()
	}
	log := logging.NewPtermLogger()

	pterm.Info.Printfln("signalserver v%s listening on %s", version, listenAddr)

	srv := signalserver.NewServer(log)
	wsServer := gorillaws.NewServer()
	wsServer.SetConnectionCallback(srv.Attach)

	if err := wsServer.Serve(listenAddr); err != nil {
		pterm.Error.Printfln("listener exited: %v", err)
		os.Exit(1)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
