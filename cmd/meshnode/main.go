// Command meshnode joins a signalling server, maintains WebRTC
// connections to peers, and exposes a small set of interactive
// subcommands for exercising the mesh.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/signalmesh/core/internal/identity"
	"github.com/signalmesh/core/internal/logging"
	"github.com/signalmesh/core/internal/node"
	"github.com/signalmesh/core/internal/storage"
	"github.com/signalmesh/core/internal/storage/sqlitestore"
	"github.com/signalmesh/core/internal/webrtcsetup/pionsetup"
	"github.com/signalmesh/core/internal/wsconn/gorillaws"
)

var version = "dev"

var (
	signalURL string
	dbPath    string
	nodeName  string
	debug     bool
)

var rootCmd = &cobra.Command{
	Use:   "meshnode",
	Short: "Join a signalling mesh and exchange messages over WebRTC",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&signalURL, "signal", "ws://127.0.0.1:8787/ws", "signalling server WebSocket URL")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "meshnode.db", "path to the node identity database")
	rootCmd.PersistentFlags().StringVar(&nodeName, "name", "", "display name to announce (only used the first time a config is created)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(joinCmd, listCmd, pingCmd, versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the meshnode version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Connect to the signalling server and stay resident, printing inbound messages",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		client, cfg, err := bootstrap(ctx)
		if err != nil {
			pterm.Error.Printfln("bootstrap failed: %v", err)
			os.Exit(1)
		}
		pterm.Success.Printfln("joined mesh as %s (%s)", cfg.OurNode.Name, cfg.OurNode.Public)

		<-ctx.Done()
		_ = client
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the current roster",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		client, _, err := bootstrap(ctx)
		if err != nil {
			pterm.Error.Printfln("bootstrap failed: %v", err)
			os.Exit(1)
		}
		if err := client.UpdateList(); err != nil {
			pterm.Error.Printfln("failed to request roster: %v", err)
			os.Exit(1)
		}
		time.Sleep(500 * time.Millisecond)
		for _, ni := range client.List() {
			pterm.Println(fmt.Sprintf("%s  %s", ni.Public, ni.Name))
		}
	},
}

var pingCmd = &cobra.Command{
	Use:   "ping [node-id-hex]",
	Short: "Queue a ping payload for the named peer; does not wait for the channel to open",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		dst, err := identity.ParseNodeID(args[0])
		if err != nil {
			pterm.Error.Printfln("invalid node id: %v", err)
			os.Exit(1)
		}

		client, _, err := bootstrap(ctx)
		if err != nil {
			pterm.Error.Printfln("bootstrap failed: %v", err)
			os.Exit(1)
		}
		if err := client.Send(ctx, dst, "ping"); err != nil {
			pterm.Error.Printfln("send failed: %v", err)
			os.Exit(1)
		}
		pterm.Success.Println("ping queued")
	},
}

// bootstrap loads (or creates) the node identity, dials the signalling
// server, and returns a ready ClientCore.
func bootstrap(ctx context.Context) (*node.Client, identity.NodeConfig, error) {
	if debug {
		pterm.EnableDebugMessages()
	}

	cfg, err := loadOrCreateIdentity()
	if err != nil {
		return nil, identity.NodeConfig{}, fmt.Errorf("identity: %w", err)
	}

	spinner, _ := pterm.DefaultSpinner.WithRemoveWhenDone(true).Start("connecting to signalling server...")
	dialer := gorillaws.NewDialer()
	conn, err := dialer.Dial(signalURL)
	if err != nil {
		spinner.Fail("failed to connect")
		return nil, identity.NodeConfig{}, err
	}
	spinner.Success("connected to " + signalURL)

	log := logging.NewPtermLogger()
	factory := pionsetup.NewFactory()
	receive := func(remote identity.NodeID, payload string) {
		pterm.Info.Printfln("[%s] %s", remote, payload)
	}

	client := node.NewClient(conn, factory, receive, log, cfg.OurNode)
	return client, cfg, nil
}

func loadOrCreateIdentity() (identity.NodeConfig, error) {
	store, err := sqlitestore.Open(dbPath)
	if err != nil {
		return identity.NodeConfig{}, err
	}

	text, err := store.Load(storage.NodeConfigKey)
	if err == nil {
		return identity.DecodeConfig(text)
	}

	name := nodeName
	if name == "" {
		name = "unnamed-node"
	}
	cfg := identity.NewNodeConfig(name)
	encoded, err := identity.EncodeConfig(cfg)
	if err != nil {
		return identity.NodeConfig{}, err
	}
	if err := store.Save(storage.NodeConfigKey, encoded); err != nil {
		return identity.NodeConfig{}, err
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
